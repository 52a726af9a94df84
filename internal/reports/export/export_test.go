package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var created = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func sampleSnapshot() *financing.Snapshot {
	symbol := "CAC"
	approved := created.Add(time.Hour)
	cancelAfter := created.Add(30 * 24 * time.Hour)

	snap := financing.NewSnapshot()
	snap.Campaigns = []financing.Campaign{
		{ID: 2, Title: "Maize Cooperative", FarmerName: "Joao", FarmerAddress: "rJoao", FundingGoal: 800, Status: financing.CampaignStatusPending, CreatedAt: created},
		{ID: 1, Title: "Cacao Grow", FarmerName: "Ana", FarmerAddress: "rFarmer", FarmerSecret: "sFarmer", FundingGoal: 5000, TokenSymbol: &symbol, Status: financing.CampaignStatusApproved, CreatedAt: created, ApprovedAt: &approved},
	}
	snap.Investments = []financing.Investment{
		{ID: 2, CampaignID: 1, InvestorAddress: "rOther", Amount: 40, TokenSymbol: "CAC", TokenAmount: 40, Status: financing.InvestmentStatusCancelled, CreatedAt: created},
		{ID: 1, CampaignID: 1, InvestorAddress: "rInvestor", Amount: 100, TokenSymbol: "CAC", TokenAmount: 100, EscrowOwner: "rInvestor", EscrowSequence: 4, EscrowTxHash: "ABC", ReleaseAfter: created.Add(2 * time.Minute), CancelAfter: &cancelAfter, Status: financing.InvestmentStatusSettled, CreatedAt: created},
	}
	snap.Microloans = []financing.Microloan{
		{ID: 1, FarmerAddress: "rFarmer", InvestorAddress: "rInvestor", LoanAmount: 50, RepaymentDays: 30, ReleaseAfter: created.Add(30 * 24 * time.Hour), CancelAfter: created.Add(37 * 24 * time.Hour), Status: financing.MicroloanStatusActive, CreatedAt: created},
	}
	return snap
}

func TestCampaignTable(t *testing.T) {
	table := CampaignTable(sampleSnapshot())

	require.Len(t, table.Rows, 2)
	assert.Equal(t, int64(1), table.Rows[0]["id"])
	assert.Equal(t, int64(100), table.Rows[0]["raised"])
	assert.Equal(t, "CAC", table.Rows[0]["token_symbol"])
	assert.Equal(t, "", table.Rows[1]["token_symbol"])

	for _, row := range table.Rows {
		for _, v := range row {
			assert.NotEqual(t, "sFarmer", v)
		}
	}
	assert.NotContains(t, table.Keys(), "farmer_secret")
}

func TestInvestmentTableFilter(t *testing.T) {
	snap := sampleSnapshot()

	all := InvestmentTable(snap, 0)
	require.Len(t, all.Rows, 2)
	assert.Equal(t, int64(1), all.Rows[0]["id"])

	assert.Empty(t, InvestmentTable(snap, 2).Rows)
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(&buf, DefaultCSVOptions()).WriteTable(InvestmentTable(sampleSnapshot(), 1)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,campaign_id,investor_address,amount"))
	assert.Contains(t, lines[1], "rInvestor,100,CAC,100,settled,rInvestor,4,ABC,2026-06-01T09:02:00Z")
	assert.Contains(t, lines[2], "cancelled")
}

func TestPortfolioWorkbook(t *testing.T) {
	data, err := PortfolioWorkbook(sampleSnapshot(), 0)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Investments", "Campaigns", "Microloans"}, f.GetSheetList())

	header, err := f.GetCellValue("Investments", "C1")
	require.NoError(t, err)
	assert.Equal(t, "Investor", header)

	investor, err := f.GetCellValue("Investments", "C2")
	require.NoError(t, err)
	assert.Equal(t, "rInvestor", investor)

	title, err := f.GetCellValue("Campaigns", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Cacao Grow", title)
}

func TestPortfolioWorkbookSingleCampaign(t *testing.T) {
	data, err := PortfolioWorkbook(sampleSnapshot(), 1)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Investments"}, f.GetSheetList())
}

func TestInvestmentStatement(t *testing.T) {
	snap := sampleSnapshot()
	terms, err := calculation.NewEngine(calculation.DefaultPolicy()).InvestmentTerms(100, created)
	require.NoError(t, err)

	gen := NewPDFGenerator(DefaultPDFOptions())
	gen.now = func() time.Time { return created }

	data, err := gen.InvestmentStatement(StatementInput{
		Campaign:   snap.Campaigns[1],
		Investment: snap.Investments[1],
		Steps:      terms.Steps,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 1000)
}
