package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/reports/dashboard"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSource is a mock snapshot source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Snapshot(ctx context.Context) (*financing.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*financing.Snapshot), args.Error(1)
}

func fixtureSnapshot() *financing.Snapshot {
	created := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	symbol := "CAC"
	snap := financing.NewSnapshot()
	snap.Campaigns = []financing.Campaign{{ID: 1, Title: "Cacao Grow", FarmerName: "Ana", FarmerAddress: "rFarmer", FundingGoal: 5000, TokenSymbol: &symbol, Status: financing.CampaignStatusApproved, CreatedAt: created}}
	snap.Investments = []financing.Investment{{ID: 1, CampaignID: 1, InvestorAddress: "rInvestor", Amount: 100, TokenSymbol: "CAC", TokenAmount: 100, EscrowOwner: "rInvestor", EscrowSequence: 1, ReleaseAfter: created.Add(2 * time.Minute), Status: financing.InvestmentStatusLocked, CreatedAt: created}}
	return snap
}

func setupRouter(source SnapshotSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewService(source, nil, time.Minute, zap.NewNop()), zap.NewNop()).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSummaryIsCached(t *testing.T) {
	source := new(MockSource)
	source.On("Snapshot", mock.Anything).Return(fixtureSnapshot(), nil).Once()
	r := setupRouter(source)

	for i := 0; i < 2; i++ {
		w := get(r, "/api/v1/reports/summary")
		require.Equal(t, http.StatusOK, w.Code)

		var summary dashboard.PortfolioSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, 1, summary.Campaigns.Approved)
		assert.Equal(t, 1, summary.Investments.ByStatus["locked"])
	}
	source.AssertExpectations(t)
}

func TestExports(t *testing.T) {
	source := new(MockSource)
	source.On("Snapshot", mock.Anything).Return(fixtureSnapshot(), nil)
	r := setupRouter(source)

	w := get(r, "/api/v1/reports/investments.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeXLSX, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w = get(r, "/api/v1/reports/investments.csv?campaign_id=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rInvestor")

	w = get(r, "/api/v1/investments/1/statement.pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypePDF, w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestExportErrors(t *testing.T) {
	source := new(MockSource)
	source.On("Snapshot", mock.Anything).Return(fixtureSnapshot(), nil)
	r := setupRouter(source)

	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/investments/99/statement.pdf").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/reports/investments.xlsx?campaign_id=7").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/reports/investments.csv?campaign_id=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/investments/x/statement.pdf").Code)

	failing := new(MockSource)
	failing.On("Snapshot", mock.Anything).Return(nil, financing.StoreError("load snapshot", errors.New("disk gone")))
	assert.Equal(t, http.StatusInternalServerError, get(setupRouter(failing), "/api/v1/reports/summary").Code)
}
