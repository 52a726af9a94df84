package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
	"farmfund/funding-portal/funding-portal-backend/internal/store"
)

// MockLedger is a testify mock of ledger.Client
type MockLedger struct {
	mock.Mock
}

var _ ledger.Client = (*MockLedger)(nil)

func (m *MockLedger) receipt(args mock.Arguments) (*ledger.Receipt, error) {
	if r := args.Get(0); r != nil {
		return r.(*ledger.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) CreateAccount(ctx context.Context, seed string) (*ledger.Account, error) {
	args := m.Called(ctx, seed)
	if a := args.Get(0); a != nil {
		return a.(*ledger.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) AccountInfo(ctx context.Context, address string) (*ledger.AccountInfo, error) {
	args := m.Called(ctx, address)
	if a := args.Get(0); a != nil {
		return a.(*ledger.AccountInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) SendPayment(ctx context.Context, fromSecret string, amountXRP int64, destination string) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, fromSecret, amountXRP, destination))
}

func (m *MockLedger) EnableTokenIssuance(ctx context.Context, issuerSecret string) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, issuerSecret))
}

func (m *MockLedger) CreateFundLock(ctx context.Context, req ledger.LockRequest) (*ledger.LockHandle, error) {
	args := m.Called(ctx, req)
	if h := args.Get(0); h != nil {
		return h.(*ledger.LockHandle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) FinishFundLock(ctx context.Context, req ledger.FinishRequest) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, req))
}

func (m *MockLedger) CancelFundLock(ctx context.Context, authorizerSecret, owner string, sequence uint32) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, authorizerSecret, owner, sequence))
}

func (m *MockLedger) CreateTrustLine(ctx context.Context, holderSecret, issuer, currency string, limit int64) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, holderSecret, issuer, currency, limit))
}

func (m *MockLedger) IssueTokens(ctx context.Context, issuerSecret, destination, currency string, amount int64) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, issuerSecret, destination, currency, amount))
}

func (m *MockLedger) MintNFT(ctx context.Context, req ledger.MintRequest) (*ledger.MintedNFT, error) {
	args := m.Called(ctx, req)
	if n := args.Get(0); n != nil {
		return n.(*ledger.MintedNFT), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) TransferNFT(ctx context.Context, ownerSecret, destination, nftID string) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, ownerSecret, destination, nftID))
}

func (m *MockLedger) BurnNFT(ctx context.Context, ownerSecret, nftID string) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, ownerSecret, nftID))
}

func (m *MockLedger) IssueCredential(ctx context.Context, req ledger.CredentialRequest) (*ledger.Receipt, error) {
	return m.receipt(m.Called(ctx, req))
}

func (m *MockLedger) ListNFTs(ctx context.Context, address string) ([]ledger.NFT, error) {
	args := m.Called(ctx, address)
	nfts, _ := args.Get(0).([]ledger.NFT)
	return nfts, args.Error(1)
}

func (m *MockLedger) ListTrustLines(ctx context.Context, address string) ([]ledger.TrustLine, error) {
	args := m.Called(ctx, address)
	lines, _ := args.Get(0).([]ledger.TrustLine)
	return lines, args.Error(1)
}

func (m *MockLedger) ListCredentials(ctx context.Context, address string) ([]ledger.Credential, error) {
	args := m.Called(ctx, address)
	creds, _ := args.Get(0).([]ledger.Credential)
	return creds, args.Error(1)
}

var mockNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newMockOrchestrator(t *testing.T, approve bool) (*Orchestrator, *MockLedger) {
	t.Helper()
	repo := store.NewRepository(store.NewMemoryStore(), nil, nil)
	err := repo.Update(context.Background(), func(s *financing.Snapshot) error {
		_, err := financing.CreateCampaign(s, financing.CampaignFields{
			FarmerName:    "Ana",
			Title:         "Cacao Grow",
			FundingGoal:   1000,
			FarmerAddress: "rFarmer",
			FarmerSecret:  "sFarmer",
		}, mockNow)
		if err != nil || !approve {
			return err
		}
		_, err = financing.ApproveCampaign(s, 1, mockNow)
		return err
	})
	require.NoError(t, err)

	ml := new(MockLedger)
	orch := NewOrchestrator(repo, ml, nil, nil, nil, WithClock(func() time.Time { return mockNow }))
	return orch, ml
}

func TestInvestPendingCampaignMakesNoLedgerCall(t *testing.T) {
	orch, ml := newMockOrchestrator(t, false)

	_, err := orch.Invest(context.Background(), InvestRequest{CampaignID: 1, InvestorAddress: "rInvestor", InvestorSecret: "sInvestor", Amount: 100})
	assert.ErrorIs(t, err, financing.ErrCampaignNotApproved)

	investments, err := orch.ListInvestments(context.Background(), InvestmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, investments)
	ml.AssertNotCalled(t, "CreateFundLock", mock.Anything, mock.Anything)
	ml.AssertExpectations(t)
}

func TestInvestRecordsReturnedLockHandle(t *testing.T) {
	orch, ml := newMockOrchestrator(t, true)
	ctx := context.Background()

	cancelAfter := mockNow.Add(30 * 24 * time.Hour)
	ml.On("CreateFundLock", mock.Anything, mock.MatchedBy(func(req ledger.LockRequest) bool {
		return req.FromSecret == "sInvestor" &&
			req.AmountXRP == 100 &&
			req.Destination == "rFarmer" &&
			req.ReleaseAfter.Equal(mockNow.Add(120*time.Second)) &&
			req.CancelAfter != nil && req.CancelAfter.Equal(cancelAfter) &&
			req.Condition == ""
	})).Return(&ledger.LockHandle{Owner: "rInvestor", Sequence: 42, TxHash: "LOCKHASH"}, nil).Once()
	ml.On("CreateTrustLine", mock.Anything, "sInvestor", "rFarmer", "CAC", int64(1000)).
		Return(&ledger.Receipt{TxHash: "TRUSTHASH"}, nil).Once()
	ml.On("IssueTokens", mock.Anything, "sFarmer", "rInvestor", "CAC", int64(100)).
		Return(&ledger.Receipt{TxHash: "TOKENHASH"}, nil).Once()

	result, err := orch.Invest(ctx, InvestRequest{CampaignID: 1, InvestorAddress: "rInvestor", InvestorSecret: "sInvestor", Amount: 100})
	require.NoError(t, err)

	investments, err := orch.ListInvestments(ctx, InvestmentFilter{})
	require.NoError(t, err)
	require.Len(t, investments, 1)
	inv := investments[0]
	assert.Equal(t, "rInvestor", inv.EscrowOwner)
	assert.Equal(t, uint32(42), inv.EscrowSequence)
	assert.Equal(t, "LOCKHASH", inv.EscrowTxHash)
	assert.Equal(t, "TRUSTHASH", inv.TrustTxHash)
	assert.Equal(t, "TOKENHASH", inv.TokenTxHash)
	assert.Equal(t, financing.InvestmentStatusSettled, inv.Status)
	assert.Equal(t, inv, result.Investment)
	require.Len(t, result.Terms.Steps, 3)
	ml.AssertExpectations(t)
}

func TestIssueTokensFailureRecordsTrustHash(t *testing.T) {
	orch, ml := newMockOrchestrator(t, true)
	ctx := context.Background()

	ml.On("CreateFundLock", mock.Anything, mock.Anything).
		Return(&ledger.LockHandle{Owner: "rInvestor", Sequence: 7, TxHash: "LOCKHASH"}, nil)
	ml.On("CreateTrustLine", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.Receipt{TxHash: "TRUSTHASH"}, nil)
	ml.On("IssueTokens", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &ledger.Error{Op: ledger.OpIssueTokens, Kind: ledger.ErrRejected, Code: "tecPATH_DRY"})

	_, err := orch.Invest(ctx, InvestRequest{CampaignID: 1, InvestorSecret: "sInvestor", Amount: 100})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepIssueTokens, stepErr.Step)
	assert.Equal(t, "TRUSTHASH", stepErr.Refs["trust_tx_hash"])
	assert.Equal(t, "7", stepErr.Refs["escrow_sequence"])
	assert.Contains(t, err.Error(), "escrow_owner=rInvestor")

	inv, err := orch.GetInvestment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, financing.InvestmentStatusLocked, inv.Status)
	assert.Equal(t, StepIssueTokens, inv.FailedStep)
	assert.Equal(t, "TRUSTHASH", inv.TrustTxHash)
}

func TestReleaseAndCancelUnknownIDsMakeNoLedgerCall(t *testing.T) {
	orch, ml := newMockOrchestrator(t, true)
	ctx := context.Background()

	_, err := orch.ReleaseEscrow(ctx, ReleaseEscrowRequest{InvestmentID: 9})
	assert.ErrorIs(t, err, financing.ErrNotFound)
	_, err = orch.CancelEscrow(ctx, CancelEscrowRequest{InvestmentID: 9})
	assert.ErrorIs(t, err, financing.ErrNotFound)

	ml.AssertNotCalled(t, "FinishFundLock", mock.Anything, mock.Anything)
	ml.AssertNotCalled(t, "CancelFundLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReleaseUsesStoredLockIdentifiers(t *testing.T) {
	orch, ml := newMockOrchestrator(t, true)
	ctx := context.Background()

	ml.On("CreateFundLock", mock.Anything, mock.Anything).
		Return(&ledger.LockHandle{Owner: "rInvestor", Sequence: 42, TxHash: "LOCKHASH"}, nil)
	ml.On("CreateTrustLine", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.Receipt{TxHash: "TRUSTHASH"}, nil)
	ml.On("IssueTokens", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&ledger.Receipt{TxHash: "TOKENHASH"}, nil)
	ml.On("FinishFundLock", mock.Anything, ledger.FinishRequest{AuthorizerSecret: "sAdmin", Owner: "rInvestor", Sequence: 42}).
		Return(&ledger.Receipt{TxHash: "FINISHHASH"}, nil).Once()

	_, err := orch.Invest(ctx, InvestRequest{CampaignID: 1, InvestorSecret: "sInvestor", Amount: 100})
	require.NoError(t, err)

	released, err := orch.ReleaseEscrow(ctx, ReleaseEscrowRequest{InvestmentID: 1, AuthorizerSecret: "sAdmin"})
	require.NoError(t, err)
	assert.Equal(t, financing.InvestmentStatusReleased, released.Status)
	ml.AssertExpectations(t)
}
