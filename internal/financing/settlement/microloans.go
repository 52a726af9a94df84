package settlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications"
)

// CreateMicroloanRequest locks LoanAmount XRP from the investor to the farmer for RepaymentDays
type CreateMicroloanRequest struct {
	FarmerAddress   string `json:"farmer_address"`
	InvestorAddress string `json:"investor_address"`
	InvestorSecret  string `json:"investor_secret"`
	LoanAmount      int64  `json:"loan_amount"`
	RepaymentDays   int    `json:"repayment_days"`
}

// MicroloanActionRequest finishes or cancels a microloan's fund lock
type MicroloanActionRequest struct {
	MicroloanID      int64  `json:"microloan_id"`
	AuthorizerSecret string `json:"authorizer_secret"`
}

// CreateMicroloan checks the investor can cover the loan plus reserve, locks the
// funds for the repayment window plus grace period, then records an active microloan.
func (o *Orchestrator) CreateMicroloan(ctx context.Context, req CreateMicroloanRequest) (*financing.Microloan, error) {
	v := o.engine.Validator()
	if err := v.ValidateAddress("farmer_address", req.FarmerAddress); err != nil {
		return nil, err
	}
	if err := v.ValidateAddress("investor_address", req.InvestorAddress); err != nil {
		return nil, err
	}
	if err := v.ValidateSecret("investor_secret", req.InvestorSecret); err != nil {
		return nil, err
	}
	terms, err := o.engine.MicroloanTerms(req.LoanAmount, req.RepaymentDays, o.clock())
	if err != nil {
		return nil, err
	}

	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	const op = "create_microloan"
	log := o.sagaLogger(op,
		zap.String("farmer_address", req.FarmerAddress),
		zap.String("investor_address", req.InvestorAddress),
		zap.Int64("loan_amount", req.LoanAmount),
	)
	refs := map[string]string{"farmer_address": req.FarmerAddress, "investor_address": req.InvestorAddress}

	lctx, cancel := o.ledgerCtx(ctx)
	info, err := o.ledger.AccountInfo(lctx, req.InvestorAddress)
	cancel()
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return nil, financing.InvalidInput("investor account %s does not exist", req.InvestorAddress)
		}
		return nil, o.fail(ctx, log, op, StepCheckBalance, refs, err)
	}
	if !terms.Covers(info.BalanceDrops) {
		return nil, financing.InvalidInput("investor balance %v XRP cannot cover loan of %d XRP plus %d XRP reserve",
			ledger.DropsToXRP(info.BalanceDrops), req.LoanAmount, o.engine.Policy().ReserveXRP)
	}

	cancelAfter := terms.CancelAfter
	lctx, cancel = o.ledgerCtx(ctx)
	handle, err := o.ledger.CreateFundLock(lctx, ledger.LockRequest{
		FromSecret:   req.InvestorSecret,
		AmountXRP:    terms.LoanAmount,
		Destination:  req.FarmerAddress,
		ReleaseAfter: terms.ReleaseAfter,
		CancelAfter:  &cancelAfter,
	})
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, op, StepCreateFundLock, refs, err)
	}
	refs["escrow_owner"] = handle.Owner
	refs["escrow_sequence"] = seqRef(handle.Sequence)
	refs["escrow_tx_hash"] = handle.TxHash

	var loan financing.Microloan
	err = o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		loan, err = financing.RecordMicroloan(s, financing.MicroloanFields{
			FarmerAddress:   req.FarmerAddress,
			InvestorAddress: req.InvestorAddress,
			LoanAmount:      terms.LoanAmount,
			RepaymentDays:   terms.RepaymentDays,
			Lock: financing.LockRef{
				Owner:        handle.Owner,
				Sequence:     handle.Sequence,
				TxHash:       handle.TxHash,
				ReleaseAfter: terms.ReleaseAfter,
				CancelAfter:  &cancelAfter,
			},
		}, o.clock())
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, log, op, StepRecordMicroloan, refs, err)
	}

	log.Info("Microloan created", zap.Int64("microloan_id", loan.ID), zap.Uint32("escrow_sequence", loan.EscrowSequence))
	o.publish(ctx, notifications.NewEvent(notifications.EventMicroloanCreated, "microloan:"+idRef(loan.ID), map[string]interface{}{
		"loan_amount":    loan.LoanAmount,
		"repayment_days": loan.RepaymentDays,
		"release_after":  loan.ReleaseAfter,
		"cancel_after":   loan.CancelAfter,
	}))
	return &loan, nil
}

// FinishMicroloan releases the loan to the farmer and marks it completed
func (o *Orchestrator) FinishMicroloan(ctx context.Context, req MicroloanActionRequest) (*financing.Microloan, error) {
	return o.endMicroloan(ctx, req, "finish_microloan")
}

// CancelMicroloan returns the loan to the investor and marks it cancelled
func (o *Orchestrator) CancelMicroloan(ctx context.Context, req MicroloanActionRequest) (*financing.Microloan, error) {
	return o.endMicroloan(ctx, req, "cancel_microloan")
}

func (o *Orchestrator) endMicroloan(ctx context.Context, req MicroloanActionRequest, op string) (*financing.Microloan, error) {
	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	log := o.sagaLogger(op, zap.Int64("microloan_id", req.MicroloanID))

	var loan financing.Microloan
	err := o.repo.View(ctx, func(s *financing.Snapshot) error {
		var err error
		loan, err = financing.RequireActiveMicroloan(s, req.MicroloanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := o.engine.Validator().ValidateSecret("authorizer_secret", req.AuthorizerSecret); err != nil {
		return nil, err
	}

	refs := map[string]string{
		"microloan_id":     idRef(loan.ID),
		"farmer_address":   loan.FarmerAddress,
		"investor_address": loan.InvestorAddress,
		"escrow_owner":     loan.EscrowOwner,
		"escrow_sequence":  seqRef(loan.EscrowSequence),
		"escrow_tx_hash":   loan.EscrowTxHash,
	}

	finishing := op == "finish_microloan"
	step := StepCancelFundLock
	lctx, cancel := o.ledgerCtx(ctx)
	var receipt *ledger.Receipt
	if finishing {
		step = StepFinishFundLock
		receipt, err = o.ledger.FinishFundLock(lctx, ledger.FinishRequest{
			AuthorizerSecret: req.AuthorizerSecret,
			Owner:            loan.EscrowOwner,
			Sequence:         loan.EscrowSequence,
		})
	} else {
		receipt, err = o.ledger.CancelFundLock(lctx, req.AuthorizerSecret, loan.EscrowOwner, loan.EscrowSequence)
	}
	cancel()
	if err != nil {
		return nil, o.fail(ctx, log, op, step, refs, err)
	}
	refs["tx_hash"] = receipt.TxHash

	var ended financing.Microloan
	err = o.repo.Update(ctx, func(s *financing.Snapshot) error {
		var err error
		if finishing {
			ended, err = financing.CompleteMicroloan(s, loan.ID, o.clock())
		} else {
			ended, err = financing.CancelMicroloan(s, loan.ID, o.clock())
		}
		return err
	})
	if err != nil {
		return nil, o.fail(ctx, log, op, StepRecordTermination, refs, err)
	}

	eventType := notifications.EventMicroloanCancelled
	if finishing {
		eventType = notifications.EventMicroloanCompleted
	}
	log.Info("Microloan ended", zap.String("status", string(ended.Status)), zap.String("tx_hash", receipt.TxHash))
	o.publish(ctx, notifications.NewEvent(eventType, "microloan:"+idRef(loan.ID), map[string]interface{}{
		"loan_amount": loan.LoanAmount,
		"tx_hash":     receipt.TxHash,
	}))
	return &ended, nil
}
