package settlement

import (
	"context"

	"go.uber.org/zap"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications"
)

// InvestRequest locks Amount XRP from the investor to the campaign's farmer.
// With Conditional set the lock also requires a crypto-condition fulfillment to finish.
type InvestRequest struct {
	CampaignID      int64  `json:"campaign_id"`
	InvestorAddress string `json:"investor_address"`
	InvestorSecret  string `json:"investor_secret"`
	Amount          int64  `json:"amount"`
	Conditional     bool   `json:"conditional"`
}

// InvestResult is returned once; Fulfillment is never persisted
type InvestResult struct {
	Investment  financing.Investment         `json:"investment"`
	Terms       *calculation.InvestmentTerms `json:"terms"`
	Fulfillment string                       `json:"fulfillment,omitempty"`
}

// ReleaseEscrowRequest finishes an investment's fund lock in the farmer's favour.
// Without AuthorizerSecret the campaign's farmer account signs.
type ReleaseEscrowRequest struct {
	InvestmentID     int64  `json:"investment_id"`
	AuthorizerSecret string `json:"authorizer_secret"`
	Fulfillment      string `json:"fulfillment"`
}

// CancelEscrowRequest returns an investment's locked funds to the investor.
// Without AuthorizerSecret the campaign's farmer account signs.
type CancelEscrowRequest struct {
	InvestmentID     int64  `json:"investment_id"`
	AuthorizerSecret string `json:"authorizer_secret"`
}

// Invest runs the investment saga:
// lock funds, record the locked investment, open the trust line, issue tokens, record settlement.
// Failures after the lock leave the investment locked with FailedStep set.
func (o *Orchestrator) Invest(ctx context.Context, req InvestRequest) (*InvestResult, error) {
	v := o.engine.Validator()
	if err := v.ValidateSecret("investor_secret", req.InvestorSecret); err != nil {
		return nil, err
	}
	if req.InvestorAddress != "" {
		if err := v.ValidateAddress("investor_address", req.InvestorAddress); err != nil {
			return nil, err
		}
	}

	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	const op = "invest"
	log := o.sagaLogger(op, zap.Int64("campaign_id", req.CampaignID), zap.Int64("amount", req.Amount))

	var campaign financing.Campaign
	err := o.repo.View(ctx, func(s *financing.Snapshot) error {
		var err error
		campaign, err = financing.RequireApprovedCampaign(s, req.CampaignID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if campaign.FarmerSecret == "" {
		return nil, financing.InvalidInput("campaign %d has no farmer secret to issue tokens", campaign.ID)
	}

	now := o.clock()
	terms, err := o.engine.InvestmentTerms(req.Amount, now)
	if err != nil {
		return nil, err
	}

	var condition, fulfillment string
	if req.Conditional {
		condition, fulfillment, err = ledger.NewPreimageCondition()
		if err != nil {
			return nil, err
		}
	}

	refs := map[string]string{
		"campaign_id":      idRef(campaign.ID),
		"investor_address": req.InvestorAddress,
		"farmer_address":   campaign.FarmerAddress,
	}

	// Step 1: fund lock. Never retried, a timeout here may still have created the lock.
	lctx, cancel := o.ledgerCtx(ctx)
	handle, err := o.ledger.CreateFundLock(lctx, ledger.LockRequest{
		FromSecret:   req.InvestorSecret,
		AmountXRP:    terms.Amount,
		Destination:  campaign.FarmerAddress,
		ReleaseAfter: terms.ReleaseAfter,
		CancelAfter:  terms.CancelAfter,
		Condition:    condition,
	})
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, op, StepCreateFundLock, refs, err)
	}
	investor := handle.Owner
	if req.InvestorAddress != "" && req.InvestorAddress != investor {
		log.Warn("Investor address differs from lock owner", zap.String("given", req.InvestorAddress), zap.String("owner", investor))
	}
	refs["investor_address"] = investor
	refs["escrow_owner"] = handle.Owner
	refs["escrow_sequence"] = seqRef(handle.Sequence)
	refs["escrow_tx_hash"] = handle.TxHash
	log.Info("Fund lock created", zap.String("escrow_owner", handle.Owner), zap.Uint32("escrow_sequence", handle.Sequence))

	// Step 2: durable locked record before anything else touches the ledger
	var investment financing.Investment
	err = o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		investment, err = financing.RecordInvestment(s, financing.InvestmentFields{
			CampaignID:      campaign.ID,
			InvestorAddress: investor,
			Amount:          terms.Amount,
			TokenAmount:     terms.TokenAmount,
			Lock: financing.LockRef{
				Owner:        handle.Owner,
				Sequence:     handle.Sequence,
				TxHash:       handle.TxHash,
				Condition:    condition,
				ReleaseAfter: terms.ReleaseAfter,
				CancelAfter:  terms.CancelAfter,
			},
		}, o.clock())
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, log, op, StepRecordInvestment, refs, err)
	}
	refs["investment_id"] = idRef(investment.ID)
	log = log.With(zap.Int64("investment_id", investment.ID))
	o.publish(ctx, notifications.NewEvent(notifications.EventInvestmentLocked, "investment:"+idRef(investment.ID), map[string]interface{}{
		"amount":          investment.Amount,
		"escrow_owner":    investment.EscrowOwner,
		"escrow_sequence": investment.EscrowSequence,
		"release_after":   investment.ReleaseAfter,
	}).WithCampaign(campaign.ID))

	// Step 3: trust line for the campaign token
	lctx, cancel = o.ledgerCtx(ctx)
	trust, err := o.ledger.CreateTrustLine(lctx, req.InvestorSecret, campaign.FarmerAddress, investment.TokenSymbol, terms.TrustLimit)
	cancel()
	if err != nil {
		o.markStepFailed(ctx, log, investment.ID, StepCreateTrustLine, err, "")
		return nil, o.fail(ctx, log, op, StepCreateTrustLine, refs, err)
	}
	refs["trust_tx_hash"] = trust.TxHash

	// Step 4: token issuance
	lctx, cancel = o.ledgerCtx(ctx)
	tokens, err := o.ledger.IssueTokens(lctx, campaign.FarmerSecret, investor, investment.TokenSymbol, terms.TokenAmount)
	cancel()
	if err != nil {
		o.markStepFailed(ctx, log, investment.ID, StepIssueTokens, err, trust.TxHash)
		return nil, o.fail(ctx, log, op, StepIssueTokens, refs, err)
	}
	refs["token_tx_hash"] = tokens.TxHash

	// Step 5: settled
	err = o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		investment, err = financing.SettleInvestment(s, investment.ID, trust.TxHash, tokens.TxHash, o.clock())
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, log, op, StepRecordSettlement, refs, err)
	}

	log.Info("Investment settled", zap.String("token_symbol", investment.TokenSymbol), zap.Int64("token_amount", investment.TokenAmount))
	o.publish(ctx, notifications.NewEvent(notifications.EventInvestmentSettled, "investment:"+idRef(investment.ID), map[string]interface{}{
		"token_symbol":  investment.TokenSymbol,
		"token_amount":  investment.TokenAmount,
		"token_tx_hash": investment.TokenTxHash,
	}).WithCampaign(campaign.ID))

	return &InvestResult{Investment: investment, Terms: terms, Fulfillment: fulfillment}, nil
}

func (o *Orchestrator) markStepFailed(ctx context.Context, log *zap.Logger, id int64, step string, cause error, trustTxHash string) {
	err := o.repo.Update(ctx, func(s *financing.Snapshot) error {
		_, err := financing.MarkInvestmentStepFailed(s, id, step, cause.Error(), trustTxHash)
		return err
	})
	if err != nil {
		log.Error("Failed to record failed step", zap.String("step", step), zap.Error(err))
	}
}

// openInvestment loads an investment that can still be finished or cancelled,
// together with the secret that will authorize the ledger call
func (o *Orchestrator) openInvestment(ctx context.Context, id int64, authorizer string) (financing.Investment, string, error) {
	var (
		inv    financing.Investment
		secret = authorizer
	)
	err := o.repo.View(ctx, func(s *financing.Snapshot) error {
		var err error
		inv, err = financing.RequireOpenInvestment(s, id)
		if err != nil {
			return err
		}
		if secret == "" {
			if c := s.FindCampaign(inv.CampaignID); c != nil {
				secret = c.FarmerSecret
			}
		}
		return nil
	})
	if err != nil {
		return inv, "", err
	}
	if secret == "" {
		return inv, "", financing.InvalidInput("authorizer_secret is required for investment %d", id)
	}
	if err := o.engine.Validator().ValidateSecret("authorizer_secret", secret); err != nil {
		return inv, "", err
	}
	return inv, secret, nil
}

func investmentRefs(inv financing.Investment) map[string]string {
	return map[string]string{
		"investment_id":    idRef(inv.ID),
		"campaign_id":      idRef(inv.CampaignID),
		"investor_address": inv.InvestorAddress,
		"escrow_owner":     inv.EscrowOwner,
		"escrow_sequence":  seqRef(inv.EscrowSequence),
		"escrow_tx_hash":   inv.EscrowTxHash,
	}
}

// ReleaseEscrow finishes the investment's fund lock and marks it released.
// Released or cancelled investments are rejected before any ledger call.
func (o *Orchestrator) ReleaseEscrow(ctx context.Context, req ReleaseEscrowRequest) (*financing.Investment, error) {
	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	const op = "release_escrow"
	log := o.sagaLogger(op, zap.Int64("investment_id", req.InvestmentID))

	inv, secret, err := o.openInvestment(ctx, req.InvestmentID, req.AuthorizerSecret)
	if err != nil {
		return nil, err
	}
	if inv.EscrowCondition != "" {
		if req.Fulfillment == "" {
			return nil, financing.InvalidInput("investment %d requires a fulfillment to release", inv.ID)
		}
		if !ledger.VerifyFulfillment(inv.EscrowCondition, req.Fulfillment) {
			return nil, financing.InvalidInput("fulfillment does not match the condition of investment %d", inv.ID)
		}
	}
	refs := investmentRefs(inv)

	lctx, cancel := o.ledgerCtx(ctx)
	receipt, err := o.ledger.FinishFundLock(lctx, ledger.FinishRequest{
		AuthorizerSecret: secret,
		Owner:            inv.EscrowOwner,
		Sequence:         inv.EscrowSequence,
		Condition:        inv.EscrowCondition,
		Fulfillment:      req.Fulfillment,
	})
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, op, StepFinishFundLock, refs, err)
	}
	refs["tx_hash"] = receipt.TxHash

	var released financing.Investment
	err = o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		released, err = financing.ReleaseInvestment(s, inv.ID, o.clock())
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, log, op, StepRecordTermination, refs, err)
	}

	log.Info("Fund lock released", zap.String("tx_hash", receipt.TxHash))
	o.publish(ctx, notifications.NewEvent(notifications.EventInvestmentReleased, "investment:"+idRef(inv.ID), map[string]interface{}{
		"amount":  inv.Amount,
		"tx_hash": receipt.TxHash,
	}).WithCampaign(inv.CampaignID))
	return &released, nil
}

// CancelEscrow cancels the investment's fund lock and marks it cancelled.
// The ledger only accepts the cancel once the lock's cancel time has passed.
func (o *Orchestrator) CancelEscrow(ctx context.Context, req CancelEscrowRequest) (*financing.Investment, error) {
	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	const op = "cancel_escrow"
	log := o.sagaLogger(op, zap.Int64("investment_id", req.InvestmentID))

	inv, secret, err := o.openInvestment(ctx, req.InvestmentID, req.AuthorizerSecret)
	if err != nil {
		return nil, err
	}
	refs := investmentRefs(inv)

	lctx, cancel := o.ledgerCtx(ctx)
	receipt, err := o.ledger.CancelFundLock(lctx, secret, inv.EscrowOwner, inv.EscrowSequence)
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, op, StepCancelFundLock, refs, err)
	}
	refs["tx_hash"] = receipt.TxHash

	var cancelled financing.Investment
	err = o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		cancelled, err = financing.CancelInvestment(s, inv.ID, o.clock())
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, log, op, StepRecordTermination, refs, err)
	}

	log.Info("Fund lock cancelled", zap.String("tx_hash", receipt.TxHash))
	o.publish(ctx, notifications.NewEvent(notifications.EventInvestmentCancelled, "investment:"+idRef(inv.ID), map[string]interface{}{
		"amount":  inv.Amount,
		"tx_hash": receipt.TxHash,
	}).WithCampaign(inv.CampaignID))
	return &cancelled, nil
}
