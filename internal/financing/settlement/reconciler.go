package settlement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications"
)

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	Inspected      int     `json:"inspected"`
	Settled        []int64 `json:"settled"`
	NeedsAttention []int64 `json:"needs_attention"`
	RepaymentDue   []int64 `json:"repayment_due"`
}

// Reconciler inspects investments stuck in locked and microloans past their
// release time. It only reads the ledger; it never resubmits a saga step.
type Reconciler struct {
	orch       *Orchestrator
	staleAfter time.Duration
}

func NewReconciler(orch *Orchestrator, staleAfter time.Duration) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Reconciler{orch: orch, staleAfter: staleAfter}
}

// Run performs one pass. A stale locked investment is marked settled only when
// the investor's trust line balance covers every investment already settled
// for that campaign plus this one; the rest are reported. Settlements made
// earlier in the same pass count toward the covered total.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	o := r.orch
	if err := o.lockSaga(ctx); err != nil {
		return nil, err
	}
	defer o.unlockSaga()

	log := o.sagaLogger("reconcile")
	now := o.clock()
	cutoff := now.Add(-r.staleAfter)

	snapshot, err := o.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	settled := settledTokens(snapshot)

	report := &ReconcileReport{}
	for _, inv := range snapshot.Investments {
		if inv.Status != financing.InvestmentStatusLocked || inv.CreatedAt.After(cutoff) {
			continue
		}
		report.Inspected++

		campaign := snapshot.FindCampaign(inv.CampaignID)
		if campaign == nil {
			log.Error("Locked investment references a missing campaign", zap.Int64("investment_id", inv.ID))
			report.NeedsAttention = append(report.NeedsAttention, inv.ID)
			continue
		}

		key := holdingKey(inv)
		expected := settled[key] + inv.TokenAmount
		delivered, err := r.tokensDelivered(ctx, inv, campaign.FarmerAddress, expected)
		if err != nil {
			log.Warn("Trust line lookup failed", zap.Int64("investment_id", inv.ID), zap.Error(err))
		}
		if delivered {
			err := o.repo.Update(ctx, func(s *financing.Snapshot) error {
				_, err := financing.SettleInvestment(s, inv.ID, inv.TrustTxHash, inv.TokenTxHash, now)
				return err
			})
			if err != nil {
				log.Error("Failed to record reconciled settlement", zap.Int64("investment_id", inv.ID), zap.Error(err))
				report.NeedsAttention = append(report.NeedsAttention, inv.ID)
				continue
			}
			settled[key] += inv.TokenAmount
			log.Info("Investment reconciled as settled", zap.Int64("investment_id", inv.ID))
			report.Settled = append(report.Settled, inv.ID)
			o.publish(ctx, notifications.NewEvent(notifications.EventInvestmentSettled, "investment:"+idRef(inv.ID), map[string]interface{}{
				"token_symbol": inv.TokenSymbol,
				"token_amount": inv.TokenAmount,
				"reconciled":   true,
			}).WithCampaign(inv.CampaignID))
			continue
		}

		report.NeedsAttention = append(report.NeedsAttention, inv.ID)
		data := map[string]interface{}{
			"failed_step":     inv.FailedStep,
			"failure_reason":  inv.FailureReason,
			"escrow_owner":    inv.EscrowOwner,
			"escrow_sequence": inv.EscrowSequence,
			"escrow_tx_hash":  inv.EscrowTxHash,
			"cancel_after":    inv.CancelAfter,
		}
		log.Warn("Investment needs reconciliation",
			zap.Int64("investment_id", inv.ID),
			zap.String("failed_step", inv.FailedStep),
			zap.String("escrow_owner", inv.EscrowOwner),
			zap.Uint32("escrow_sequence", inv.EscrowSequence),
		)
		o.publish(ctx, notifications.NewEvent(notifications.EventInvestmentNeedsReconcile, "investment:"+idRef(inv.ID), data).WithCampaign(inv.CampaignID))
	}

	for _, loan := range snapshot.Microloans {
		if loan.Status != financing.MicroloanStatusActive || loan.ReleaseAfter.After(now) {
			continue
		}
		report.RepaymentDue = append(report.RepaymentDue, loan.ID)
		o.publish(ctx, notifications.NewEvent(notifications.EventMicroloanRepaymentDue, "microloan:"+idRef(loan.ID), map[string]interface{}{
			"farmer_address": loan.FarmerAddress,
			"loan_amount":    loan.LoanAmount,
			"cancel_after":   loan.CancelAfter,
		}))
	}

	log.Info("Reconciliation finished",
		zap.Int("inspected", report.Inspected),
		zap.Int("settled", len(report.Settled)),
		zap.Int("needs_attention", len(report.NeedsAttention)),
		zap.Int("repayment_due", len(report.RepaymentDue)),
	)
	return report, nil
}

type holding struct {
	campaignID int64
	investor   string
}

func holdingKey(inv financing.Investment) holding {
	return holding{campaignID: inv.CampaignID, investor: inv.InvestorAddress}
}

// settledTokens sums the tokens already issued per investor and campaign
func settledTokens(s *financing.Snapshot) map[holding]int64 {
	totals := make(map[holding]int64)
	for _, inv := range s.Investments {
		if inv.SettledAt != nil {
			totals[holdingKey(inv)] += inv.TokenAmount
		}
	}
	return totals
}

func (r *Reconciler) tokensDelivered(ctx context.Context, inv financing.Investment, issuer string, expected int64) (bool, error) {
	lctx, cancel := r.orch.ledgerCtx(ctx)
	defer cancel()
	lines, err := r.orch.ledger.ListTrustLines(lctx, inv.InvestorAddress)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if line.Peer == issuer && line.Currency == inv.TokenSymbol {
			return line.BalanceValue() >= float64(expected), nil
		}
	}
	return false, nil
}
