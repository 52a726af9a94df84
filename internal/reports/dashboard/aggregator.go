package dashboard

import (
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
)

// CampaignSummary counts campaigns by status
type CampaignSummary struct {
	Total     int   `json:"total"`
	Pending   int   `json:"pending"`
	Approved  int   `json:"approved"`
	GoalXRP   int64 `json:"goal_xrp"`
	RaisedXRP int64 `json:"raised_xrp"`
}

// InvestmentSummary totals investments by status. NeedsAttention counts
// locked investments that recorded a failed distribution step.
type InvestmentSummary struct {
	Total          int              `json:"total"`
	ByStatus       map[string]int   `json:"by_status"`
	XRPByStatus    map[string]int64 `json:"xrp_by_status"`
	TokensIssued   int64            `json:"tokens_issued"`
	NeedsAttention int              `json:"needs_attention"`
}

// MicroloanSummary totals microloans. Overdue loans are active past their release time.
type MicroloanSummary struct {
	Total          int   `json:"total"`
	Active         int   `json:"active"`
	Completed      int   `json:"completed"`
	Cancelled      int   `json:"cancelled"`
	OutstandingXRP int64 `json:"outstanding_xrp"`
	Overdue        int   `json:"overdue"`
}

// PortfolioSummary is the dashboard view of the whole platform
type PortfolioSummary struct {
	Campaigns   CampaignSummary   `json:"campaigns"`
	Investments InvestmentSummary `json:"investments"`
	Microloans  MicroloanSummary  `json:"microloans"`
	ComputedAt  time.Time         `json:"computed_at"`
}

// Summarize aggregates a snapshot as of now
func Summarize(snap *financing.Snapshot, now time.Time) *PortfolioSummary {
	summary := &PortfolioSummary{
		Investments: InvestmentSummary{
			ByStatus:    make(map[string]int),
			XRPByStatus: make(map[string]int64),
		},
		ComputedAt: now.UTC(),
	}

	for _, c := range snap.Campaigns {
		summary.Campaigns.Total++
		summary.Campaigns.GoalXRP += c.FundingGoal
		switch c.Status {
		case financing.CampaignStatusPending:
			summary.Campaigns.Pending++
		case financing.CampaignStatusApproved:
			summary.Campaigns.Approved++
		}
	}

	inv := &summary.Investments
	for _, i := range snap.Investments {
		status := string(i.Status)
		inv.Total++
		inv.ByStatus[status]++
		inv.XRPByStatus[status] += i.Amount
		if i.Status != financing.InvestmentStatusCancelled {
			summary.Campaigns.RaisedXRP += i.Amount
		}
		if i.TokenTxHash != "" {
			inv.TokensIssued += i.TokenAmount
		}
		if i.Status == financing.InvestmentStatusLocked && i.FailedStep != "" {
			inv.NeedsAttention++
		}
	}

	loans := &summary.Microloans
	for _, m := range snap.Microloans {
		loans.Total++
		switch m.Status {
		case financing.MicroloanStatusActive:
			loans.Active++
			loans.OutstandingXRP += m.LoanAmount
			if now.After(m.ReleaseAfter) {
				loans.Overdue++
			}
		case financing.MicroloanStatusCompleted:
			loans.Completed++
		case financing.MicroloanStatusCancelled:
			loans.Cancelled++
		}
	}
	return summary
}
