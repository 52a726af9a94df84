package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"
	"farmfund/funding-portal/funding-portal-backend/internal/reports/dashboard"
	"farmfund/funding-portal/funding-portal-backend/internal/reports/export"

	"go.uber.org/zap"
)

const summaryCacheKey = "portfolio"

// SnapshotSource supplies a consistent copy of platform state
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*financing.Snapshot, error)
}

// Service provides business logic for reporting operations
type Service struct {
	source SnapshotSource
	engine *calculation.Engine
	cache  *dashboard.AggregateCache
	pdf    export.PDFOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new reports service. cacheTTL bounds how stale the dashboard summary may be.
func NewService(source SnapshotSource, engine *calculation.Engine, cacheTTL time.Duration, logger *zap.Logger) *Service {
	if engine == nil {
		engine = calculation.NewEngine(calculation.DefaultPolicy())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source: source,
		engine: engine,
		cache:  dashboard.NewAggregateCache(cacheTTL),
		pdf:    export.DefaultPDFOptions(),
		logger: logger,
		now:    time.Now,
	}
}

// Summary returns the portfolio dashboard, served from cache while fresh
func (s *Service) Summary(ctx context.Context) (*dashboard.PortfolioSummary, error) {
	if cached, ok := s.cache.Get(summaryCacheKey); ok {
		return cached.(*dashboard.PortfolioSummary), nil
	}

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	summary := dashboard.Summarize(snap, s.now())
	s.cache.Set(summaryCacheKey, summary)
	return summary, nil
}

// InvalidateSummary forces the next Summary call to recompute
func (s *Service) InvalidateSummary() {
	s.cache.Invalidate()
}

// InvestmentsWorkbook exports investments as xlsx. With campaignID = 0 it also
// includes campaign and microloan sheets.
func (s *Service) InvestmentsWorkbook(ctx context.Context, campaignID int64) ([]byte, error) {
	snap, err := s.scopedSnapshot(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	data, err := export.PortfolioWorkbook(snap, campaignID)
	if err != nil {
		s.logger.Error("Failed to build workbook", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return nil, err
	}
	return data, nil
}

// InvestmentsCSV exports investments as CSV
func (s *Service) InvestmentsCSV(ctx context.Context, campaignID int64) ([]byte, error) {
	snap, err := s.scopedSnapshot(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := export.NewCSVExporter(&buf, export.DefaultCSVOptions()).WriteTable(export.InvestmentTable(snap, campaignID)); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// InvestmentStatement renders the PDF statement of one investment. The
// calculation section is re-derived from the amount and creation time.
func (s *Service) InvestmentStatement(ctx context.Context, investmentID int64) ([]byte, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	inv := snap.FindInvestment(investmentID)
	if inv == nil {
		return nil, financing.NotFound("investment", investmentID)
	}
	campaign := snap.FindCampaign(inv.CampaignID)
	if campaign == nil {
		return nil, financing.NotFound("campaign", inv.CampaignID)
	}

	var steps []calculation.CalculationStep
	if terms, err := s.engine.InvestmentTerms(inv.Amount, inv.CreatedAt); err == nil {
		steps = terms.Steps
	}

	data, err := export.NewPDFGenerator(s.pdf).InvestmentStatement(export.StatementInput{
		Campaign:   *campaign,
		Investment: *inv,
		Steps:      steps,
	})
	if err != nil {
		s.logger.Error("Failed to render statement", zap.Int64("investment_id", investmentID), zap.Error(err))
		return nil, err
	}
	return data, nil
}

func (s *Service) scopedSnapshot(ctx context.Context, campaignID int64) (*financing.Snapshot, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if campaignID > 0 && snap.FindCampaign(campaignID) == nil {
		return nil, financing.NotFound("campaign", campaignID)
	}
	return snap, nil
}
