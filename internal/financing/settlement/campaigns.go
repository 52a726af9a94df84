package settlement

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications"
)

// CreateCampaignRequest carries a farmer's campaign. Without a farmer address a
// ledger account is provisioned (from FarmerSecret when given, otherwise fresh).
type CreateCampaignRequest struct {
	FarmerName    string `json:"farmer_name" binding:"required"`
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	FundingGoal   int64  `json:"funding_goal" binding:"required"`
	FarmerAddress string `json:"farmer_address"`
	FarmerSecret  string `json:"farmer_secret"`
}

func (o *Orchestrator) validateCampaignRequest(req CreateCampaignRequest) error {
	v := o.engine.Validator()
	if strings.TrimSpace(req.FarmerName) == "" {
		return financing.InvalidInput("farmer_name is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return financing.InvalidInput("title is required")
	}
	if err := v.ValidateAmount("funding_goal", req.FundingGoal); err != nil {
		return err
	}
	if req.FarmerAddress != "" {
		if err := v.ValidateAddress("farmer_address", req.FarmerAddress); err != nil {
			return err
		}
	}
	if req.FarmerSecret != "" {
		if err := v.ValidateSecret("farmer_secret", req.FarmerSecret); err != nil {
			return err
		}
	}
	return nil
}

// CreateCampaign records a pending campaign, provisioning the farmer account first when needed
func (o *Orchestrator) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*financing.Campaign, error) {
	if err := o.validateCampaignRequest(req); err != nil {
		return nil, err
	}

	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	const op = "create_campaign"
	log := o.sagaLogger(op, zap.String("title", req.Title))

	address, secret := req.FarmerAddress, req.FarmerSecret
	if address == "" {
		lctx, cancel := o.ledgerCtx(ctx)
		account, err := o.ledger.CreateAccount(lctx, secret)
		cancel()
		if err != nil {
			return nil, o.fail(ctx, log, op, StepProvisionAccount, map[string]string{"farmer_name": req.FarmerName}, err)
		}
		address, secret = account.Address, account.Secret
		log.Info("Farmer account provisioned", zap.String("farmer_address", address))
	}

	var campaign financing.Campaign
	err := o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		campaign, err = financing.CreateCampaign(s, financing.CampaignFields{
			FarmerName:    req.FarmerName,
			Title:         req.Title,
			Description:   req.Description,
			FundingGoal:   req.FundingGoal,
			FarmerAddress: address,
			FarmerSecret:  secret,
		}, o.clock())
		return err
	})
	if err != nil {
		if req.FarmerAddress == "" {
			return nil, o.fail(ctx, log, op, StepRecordCampaign, map[string]string{"farmer_address": address}, err)
		}
		return nil, err
	}

	log.Info("Campaign created", zap.Int64("campaign_id", campaign.ID), zap.String("farmer_address", address))
	o.publish(ctx, notifications.NewEvent(notifications.EventCampaignCreated, "campaign:"+idRef(campaign.ID), map[string]interface{}{
		"title":        campaign.Title,
		"funding_goal": campaign.FundingGoal,
	}).WithCampaign(campaign.ID))
	return &campaign, nil
}

// ApproveCampaign enables token issuance on the farmer account, then commits the approval.
// A ledger failure leaves the campaign pending. Approving twice is rejected so the
// account configuration is not re-submitted.
func (o *Orchestrator) ApproveCampaign(ctx context.Context, id int64) (*financing.Campaign, error) {
	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	const op = "approve_campaign"
	log := o.sagaLogger(op, zap.Int64("campaign_id", id))

	var (
		campaign   financing.Campaign
		symbol     string
		collisions []int64
	)
	err := o.repo.View(ctx, func(s *financing.Snapshot) error {
		c := s.FindCampaign(id)
		if c == nil {
			return financing.NotFound("campaign", id)
		}
		if c.IsApproved() {
			return financing.InvalidState("campaign", id, string(c.Status))
		}
		symbol = financing.DeriveTokenSymbol(c.Title)
		if err := financing.ValidateTokenSymbol(symbol); err != nil {
			return err
		}
		if c.FarmerSecret == "" {
			return financing.InvalidInput("campaign %d has no farmer secret to configure token issuance", id)
		}
		collisions = financing.CampaignsWithSymbol(s, symbol, id)
		campaign = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(collisions) > 0 {
		log.Warn("Token symbol already used by other campaigns",
			zap.String("token_symbol", symbol),
			zap.Int64s("campaign_ids", collisions),
		)
	}

	refs := map[string]string{"campaign_id": idRef(id), "farmer_address": campaign.FarmerAddress, "token_symbol": symbol}

	lctx, cancel := o.ledgerCtx(ctx)
	receipt, err := o.ledger.EnableTokenIssuance(lctx, campaign.FarmerSecret)
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, op, StepEnableIssuance, refs, err)
	}
	refs["tx_hash"] = receipt.TxHash

	var approved financing.Campaign
	err = o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		approved, err = financing.ApproveCampaign(s, id, o.clock())
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, log, op, StepRecordApproval, refs, err)
	}

	log.Info("Campaign approved", zap.String("token_symbol", symbol), zap.String("tx_hash", receipt.TxHash))
	o.publish(ctx, notifications.NewEvent(notifications.EventCampaignApproved, "campaign:"+idRef(id), map[string]interface{}{
		"token_symbol": symbol,
		"tx_hash":      receipt.TxHash,
	}).WithCampaign(id))
	return &approved, nil
}
