package financing

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func cacaoFields() CampaignFields {
	return CampaignFields{
		FarmerName:    "Ana",
		Title:         "Cacao Grow",
		Description:   "Shade-grown cacao cooperative",
		FundingGoal:   1000,
		FarmerAddress: "rFarmer",
		FarmerSecret:  "sFarmer",
	}
}

func testLock(seq uint32) LockRef {
	cancelAfter := testNow.Add(30 * 24 * time.Hour)
	return LockRef{
		Owner:        "rInvestor",
		Sequence:     seq,
		TxHash:       fmt.Sprintf("HASH%d", seq),
		ReleaseAfter: testNow.Add(2 * time.Minute),
		CancelAfter:  &cancelAfter,
	}
}

func TestCreateCampaign(t *testing.T) {
	s := NewSnapshot()

	c, err := CreateCampaign(s, cacaoFields(), testNow)
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, CampaignStatusPending, c.Status)
	assert.Nil(t, c.TokenSymbol)
	assert.Equal(t, int64(2), s.NextCampaignID)
	assert.Len(t, s.Campaigns, 1)
}

func TestCreateCampaignRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CampaignFields)
	}{
		{"zero goal", func(f *CampaignFields) { f.FundingGoal = 0 }},
		{"negative goal", func(f *CampaignFields) { f.FundingGoal = -5 }},
		{"missing title", func(f *CampaignFields) { f.Title = "  " }},
		{"missing farmer", func(f *CampaignFields) { f.FarmerName = "" }},
		{"missing address", func(f *CampaignFields) { f.FarmerAddress = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSnapshot()
			f := cacaoFields()
			tt.mutate(&f)

			_, err := CreateCampaign(s, f, testNow)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, s.Campaigns)
			assert.Equal(t, int64(1), s.NextCampaignID)
		})
	}
}

func TestApproveCampaign(t *testing.T) {
	s := NewSnapshot()
	_, err := CreateCampaign(s, cacaoFields(), testNow)
	require.NoError(t, err)

	c, err := ApproveCampaign(s, 1, testNow)
	require.NoError(t, err)
	assert.Equal(t, CampaignStatusApproved, c.Status)
	require.NotNil(t, c.TokenSymbol)
	assert.Equal(t, "CAC", *c.TokenSymbol)
	require.NotNil(t, c.ApprovedAt)

	// idempotent
	again, err := ApproveCampaign(s, 1, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "CAC", *again.TokenSymbol)
	assert.Equal(t, testNow, *again.ApprovedAt)

	_, err = ApproveCampaign(s, 42, testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveCampaignRejectsInvalidSymbol(t *testing.T) {
	s := NewSnapshot()
	f := cacaoFields()
	f.Title = "xrp ledger farm"
	_, err := CreateCampaign(s, f, testNow)
	require.NoError(t, err)

	_, err = ApproveCampaign(s, 1, testNow)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, CampaignStatusPending, s.Campaigns[0].Status)
	assert.Nil(t, s.Campaigns[0].TokenSymbol)
}

func TestDeriveTokenSymbol(t *testing.T) {
	assert.Equal(t, "CAC", DeriveTokenSymbol("Cacao Grow"))
	assert.Equal(t, "COF", DeriveTokenSymbol("  coffee"))
	assert.Equal(t, "AB", DeriveTokenSymbol("ab"))

	assert.NoError(t, ValidateTokenSymbol("CAC"))
	assert.NoError(t, ValidateTokenSymbol("A1B"))
	assert.Error(t, ValidateTokenSymbol("AB"))
	assert.Error(t, ValidateTokenSymbol("A B"))
	assert.Error(t, ValidateTokenSymbol("XRP"))
	assert.Error(t, ValidateTokenSymbol("ÑAB"))
}

func TestCampaignsWithSymbol(t *testing.T) {
	s := NewSnapshot()
	for _, title := range []string{"Cacao Grow", "Cacao Two", "Maize"} {
		f := cacaoFields()
		f.Title = title
		c, err := CreateCampaign(s, f, testNow)
		require.NoError(t, err)
		_, err = ApproveCampaign(s, c.ID, testNow)
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{2}, CampaignsWithSymbol(s, "CAC", 1))
	assert.Empty(t, CampaignsWithSymbol(s, "MAI", 3))
}

func TestTokenSymbolSetIffApproved(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	titles := []string{"Cacao Grow", "Maize Field", "Honey Bees", "Rice Paddy"}

	for round := 0; round < 50; round++ {
		s := NewSnapshot()
		for step := 0; step < 30; step++ {
			if len(s.Campaigns) == 0 || rng.Intn(2) == 0 {
				f := cacaoFields()
				f.Title = titles[rng.Intn(len(titles))]
				_, err := CreateCampaign(s, f, testNow)
				require.NoError(t, err)
				continue
			}
			// ids past the end exercise NotFound
			id := int64(rng.Intn(len(s.Campaigns)+2) + 1)
			_, err := ApproveCampaign(s, id, testNow)
			if id > int64(len(s.Campaigns)) {
				assert.ErrorIs(t, err, ErrNotFound)
			} else {
				require.NoError(t, err)
			}
		}

		for _, c := range s.Campaigns {
			assert.Equal(t, c.IsApproved(), c.TokenSymbol != nil, "campaign %d", c.ID)
		}
	}
}

func TestRecordInvestment(t *testing.T) {
	s := NewSnapshot()
	_, err := CreateCampaign(s, cacaoFields(), testNow)
	require.NoError(t, err)

	_, err = RecordInvestment(s, InvestmentFields{CampaignID: 1, InvestorAddress: "rInvestor", Amount: 100, Lock: testLock(5)}, testNow)
	assert.ErrorIs(t, err, ErrCampaignNotApproved)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Empty(t, s.Investments)

	_, err = RecordInvestment(s, InvestmentFields{CampaignID: 9, InvestorAddress: "rInvestor", Amount: 100, Lock: testLock(5)}, testNow)
	assert.ErrorIs(t, err, ErrCampaignNotApproved)

	_, err = ApproveCampaign(s, 1, testNow)
	require.NoError(t, err)

	inv, err := RecordInvestment(s, InvestmentFields{CampaignID: 1, InvestorAddress: "rInvestor", Amount: 100, TokenAmount: 100, Lock: testLock(5)}, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inv.ID)
	assert.Equal(t, InvestmentStatusLocked, inv.Status)
	assert.Equal(t, "rInvestor", inv.EscrowOwner)
	assert.Equal(t, uint32(5), inv.EscrowSequence)
	assert.Equal(t, "CAC", inv.TokenSymbol)
	assert.Equal(t, int64(2), s.NextInvestmentID)
}

func TestInvestmentTransitions(t *testing.T) {
	s := NewSnapshot()
	_, err := CreateCampaign(s, cacaoFields(), testNow)
	require.NoError(t, err)
	_, err = ApproveCampaign(s, 1, testNow)
	require.NoError(t, err)
	_, err = RecordInvestment(s, InvestmentFields{CampaignID: 1, InvestorAddress: "rInvestor", Amount: 100, Lock: testLock(5)}, testNow)
	require.NoError(t, err)

	inv, err := MarkInvestmentStepFailed(s, 1, "issue_tokens", "tecPATH_DRY", "TRUST1")
	require.NoError(t, err)
	assert.Equal(t, InvestmentStatusLocked, inv.Status)
	assert.Equal(t, "issue_tokens", inv.FailedStep)
	assert.Equal(t, "TRUST1", inv.TrustTxHash)

	inv, err = SettleInvestment(s, 1, "TRUST1", "TOKEN1", testNow)
	require.NoError(t, err)
	assert.Equal(t, InvestmentStatusSettled, inv.Status)
	assert.Empty(t, inv.FailedStep)

	_, err = RequireOpenInvestment(s, 1)
	require.NoError(t, err)

	inv, err = ReleaseInvestment(s, 1, testNow)
	require.NoError(t, err)
	assert.Equal(t, InvestmentStatusReleased, inv.Status)
	require.NotNil(t, inv.ReleasedAt)

	_, err = RequireOpenInvestment(s, 1)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = CancelInvestment(s, 1, testNow)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = RequireOpenInvestment(s, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMicroloanTerminalTransitions(t *testing.T) {
	type op func(*Snapshot, int64, time.Time) (Microloan, error)
	ops := map[string]op{"complete": CompleteMicroloan, "cancel": CancelMicroloan}

	for first, firstOp := range ops {
		for second, secondOp := range ops {
			t.Run(first+"_then_"+second, func(t *testing.T) {
				s := NewSnapshot()
				_, err := RecordMicroloan(s, MicroloanFields{
					FarmerAddress:   "rFarmer",
					InvestorAddress: "rInvestor",
					LoanAmount:      50,
					RepaymentDays:   30,
					Lock:            testLock(9),
				}, testNow)
				require.NoError(t, err)

				loan, err := firstOp(s, 1, testNow)
				require.NoError(t, err)
				assert.NotEqual(t, MicroloanStatusActive, loan.Status)
				assert.True(t, (loan.CompletedAt == nil) != (loan.CancelledAt == nil))

				_, err = secondOp(s, 1, testNow)
				assert.ErrorIs(t, err, ErrInvalidState)
				_, err = RequireActiveMicroloan(s, 1)
				assert.ErrorIs(t, err, ErrInvalidState)
				assert.Equal(t, loan.Status, s.Microloans[0].Status)
			})
		}
	}
}

func TestMicroloanNotFound(t *testing.T) {
	s := NewSnapshot()
	_, err := CompleteMicroloan(s, 3, testNow)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = RecordMicroloan(s, MicroloanFields{LoanAmount: 0, Lock: testLock(1)}, testNow)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	s := NewSnapshot()
	_, err := CreateCampaign(s, cacaoFields(), testNow)
	require.NoError(t, err)
	_, err = ApproveCampaign(s, 1, testNow)
	require.NoError(t, err)

	clone := s.Clone()
	*clone.Campaigns[0].TokenSymbol = "ZZZ"
	clone.Campaigns[0].Title = "changed"

	assert.Equal(t, "CAC", *s.Campaigns[0].TokenSymbol)
	assert.Equal(t, "Cacao Grow", s.Campaigns[0].Title)
}
