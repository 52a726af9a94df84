package main

import (
	"context"

	"go.uber.org/zap"

	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"
	"farmfund/funding-portal/funding-portal-backend/internal/reports/dashboard"
)

// ReconcileRunner performs one reconciliation pass
type ReconcileRunner interface {
	Run(ctx context.Context) (*settlement.ReconcileReport, error)
}

// SummarySource serves the cached portfolio summary
type SummarySource interface {
	Summary(ctx context.Context) (*dashboard.PortfolioSummary, error)
	InvalidateSummary()
}

// ReconcileWorker settles investments whose tokens already arrived and
// reports the ones that need an operator
type ReconcileWorker struct {
	reconciler ReconcileRunner
	summaries  SummarySource
	logger     *zap.Logger
}

// NewReconcileWorker creates a new reconcile worker. summaries may be nil.
func NewReconcileWorker(reconciler ReconcileRunner, summaries SummarySource, logger *zap.Logger) *ReconcileWorker {
	return &ReconcileWorker{reconciler: reconciler, summaries: summaries, logger: logger}
}

func (w *ReconcileWorker) Run(ctx context.Context) error {
	report, err := w.reconciler.Run(ctx)
	if err != nil {
		return err
	}

	// a settled investment changes the portfolio totals
	if len(report.Settled) > 0 && w.summaries != nil {
		w.summaries.InvalidateSummary()
	}
	if len(report.NeedsAttention) > 0 {
		w.logger.Warn("Investments need manual reconciliation",
			zap.Int64s("investment_ids", report.NeedsAttention))
	}
	return nil
}

// OverdueWorker logs microloans past their release time and stuck investments
type OverdueWorker struct {
	summaries SummarySource
	logger    *zap.Logger
}

func NewOverdueWorker(summaries SummarySource, logger *zap.Logger) *OverdueWorker {
	return &OverdueWorker{summaries: summaries, logger: logger}
}

func (w *OverdueWorker) Run(ctx context.Context) error {
	w.summaries.InvalidateSummary()
	summary, err := w.summaries.Summary(ctx)
	if err != nil {
		return err
	}

	if summary.Microloans.Overdue > 0 {
		w.logger.Warn("Microloans overdue",
			zap.Int("overdue", summary.Microloans.Overdue),
			zap.Int64("outstanding_xrp", summary.Microloans.OutstandingXRP))
	}
	if summary.Investments.NeedsAttention > 0 {
		w.logger.Warn("Investments locked past settlement", zap.Int("count", summary.Investments.NeedsAttention))
	}
	w.logger.Info("Portfolio summary",
		zap.Int("campaigns", summary.Campaigns.Total),
		zap.Int("investments", summary.Investments.Total),
		zap.Int("active_microloans", summary.Microloans.Active))
	return nil
}
