package export

import (
	"sort"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
)

// Column is one exported field and its display label
type Column struct {
	Key   string
	Label string
}

// Table is a named, ordered set of rows ready for any exporter
type Table struct {
	Name    string
	Columns []Column
	Rows    []map[string]interface{}
}

// Keys returns the column keys in order
func (t Table) Keys() []string {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = c.Key
	}
	return keys
}

// Labels returns the column labels in order
func (t Table) Labels() []string {
	labels := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
	}
	return labels
}

var campaignColumns = []Column{
	{"id", "ID"},
	{"title", "Title"},
	{"farmer_name", "Farmer"},
	{"farmer_address", "Farmer Address"},
	{"funding_goal", "Goal (XRP)"},
	{"raised", "Raised (XRP)"},
	{"token_symbol", "Token"},
	{"status", "Status"},
	{"created_at", "Created"},
	{"approved_at", "Approved"},
}

var investmentColumns = []Column{
	{"id", "ID"},
	{"campaign_id", "Campaign"},
	{"investor_address", "Investor"},
	{"amount", "Amount (XRP)"},
	{"token_symbol", "Token"},
	{"token_amount", "Tokens"},
	{"status", "Status"},
	{"escrow_owner", "Lock Owner"},
	{"escrow_sequence", "Lock Sequence"},
	{"escrow_tx_hash", "Lock Tx"},
	{"release_after", "Release After"},
	{"cancel_after", "Cancel After"},
	{"failed_step", "Failed Step"},
	{"created_at", "Created"},
}

var microloanColumns = []Column{
	{"id", "ID"},
	{"farmer_address", "Farmer"},
	{"investor_address", "Investor"},
	{"loan_amount", "Amount (XRP)"},
	{"repayment_days", "Days"},
	{"escrow_owner", "Lock Owner"},
	{"escrow_sequence", "Lock Sequence"},
	{"release_after", "Release After"},
	{"cancel_after", "Cancel After"},
	{"status", "Status"},
	{"created_at", "Created"},
}

// CampaignTable lists campaigns with the XRP raised by investments that were not cancelled.
// Farmer secrets are never exported.
func CampaignTable(snap *financing.Snapshot) Table {
	raised := make(map[int64]int64)
	for _, inv := range snap.Investments {
		if inv.Status != financing.InvestmentStatusCancelled {
			raised[inv.CampaignID] += inv.Amount
		}
	}

	campaigns := append([]financing.Campaign(nil), snap.Campaigns...)
	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].ID < campaigns[j].ID })

	rows := make([]map[string]interface{}, 0, len(campaigns))
	for _, c := range campaigns {
		symbol := ""
		if c.TokenSymbol != nil {
			symbol = *c.TokenSymbol
		}
		rows = append(rows, map[string]interface{}{
			"id":             c.ID,
			"title":          c.Title,
			"farmer_name":    c.FarmerName,
			"farmer_address": c.FarmerAddress,
			"funding_goal":   c.FundingGoal,
			"raised":         raised[c.ID],
			"token_symbol":   symbol,
			"status":         string(c.Status),
			"created_at":     c.CreatedAt,
			"approved_at":    c.ApprovedAt,
		})
	}
	return Table{Name: "Campaigns", Columns: campaignColumns, Rows: rows}
}

// InvestmentTable lists investments, optionally limited to one campaign (campaignID > 0)
func InvestmentTable(snap *financing.Snapshot, campaignID int64) Table {
	rows := make([]map[string]interface{}, 0, len(snap.Investments))
	for _, inv := range snap.Investments {
		if campaignID > 0 && inv.CampaignID != campaignID {
			continue
		}
		rows = append(rows, map[string]interface{}{
			"id":               inv.ID,
			"campaign_id":      inv.CampaignID,
			"investor_address": inv.InvestorAddress,
			"amount":           inv.Amount,
			"token_symbol":     inv.TokenSymbol,
			"token_amount":     inv.TokenAmount,
			"status":           string(inv.Status),
			"escrow_owner":     inv.EscrowOwner,
			"escrow_sequence":  inv.EscrowSequence,
			"escrow_tx_hash":   inv.EscrowTxHash,
			"release_after":    inv.ReleaseAfter,
			"cancel_after":     inv.CancelAfter,
			"failed_step":      inv.FailedStep,
			"created_at":       inv.CreatedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i]["id"].(int64) < rows[j]["id"].(int64) })
	return Table{Name: "Investments", Columns: investmentColumns, Rows: rows}
}

// MicroloanTable lists all microloans
func MicroloanTable(snap *financing.Snapshot) Table {
	rows := make([]map[string]interface{}, 0, len(snap.Microloans))
	for _, m := range snap.Microloans {
		rows = append(rows, map[string]interface{}{
			"id":               m.ID,
			"farmer_address":   m.FarmerAddress,
			"investor_address": m.InvestorAddress,
			"loan_amount":      m.LoanAmount,
			"repayment_days":   m.RepaymentDays,
			"escrow_owner":     m.EscrowOwner,
			"escrow_sequence":  m.EscrowSequence,
			"release_after":    m.ReleaseAfter,
			"cancel_after":     m.CancelAfter,
			"status":           string(m.Status),
			"created_at":       m.CreatedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i]["id"].(int64) < rows[j]["id"].(int64) })
	return Table{Name: "Microloans", Columns: microloanColumns, Rows: rows}
}
