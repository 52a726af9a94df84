package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmfund/funding-portal/funding-portal-backend/internal/auth"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/tokenization"
	"farmfund/funding-portal/funding-portal-backend/internal/reports"
	"farmfund/funding-portal/funding-portal-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type apiFixture struct {
	router *gin.Engine
	sim    *ledger.Simulated
	clock  *testClock
	tokens *auth.TokenManager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	sim := ledger.NewSimulated(clock.Now)
	sim.AddAccount("rFarmer", "sFarmer", 50)
	sim.AddAccount("rInvestor", "sInvestor", 500)

	engine := calculation.NewEngine(calculation.DefaultPolicy())
	orch := settlement.NewOrchestrator(
		store.NewRepository(store.NewMemoryStore(), nil, nil),
		sim,
		engine,
		nil,
		nil,
		settlement.WithClock(clock.Now),
	)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	router := NewRouter(Dependencies{
		Orchestrator: orch,
		Tokenization: tokenization.NewService(sim, nil, nil, time.Second, tokenization.WithClock(clock.Now)),
		Reports:      reports.NewService(orch, engine, 0, nil),
		Tokens:       tokens,
	})
	return &apiFixture{router: router, sim: sim, clock: clock, tokens: tokens}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) adminToken(t *testing.T) string {
	t.Helper()
	token, err := f.tokens.Issue("ops@farmfund", auth.RoleAdmin)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) createCampaign(t *testing.T) CampaignResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/campaigns", gin.H{
		"farmer_name":    "Ana",
		"title":          "Cacao Grow",
		"description":    "Shade-grown cacao expansion",
		"funding_goal":   1000,
		"farmer_address": "rFarmer",
		"farmer_secret":  "sFarmer",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var campaign CampaignResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &campaign))
	return campaign
}

func (f *apiFixture) approvedCampaign(t *testing.T) CampaignResponse {
	t.Helper()
	campaign := f.createCampaign(t)
	w := f.do(t, http.MethodPost, "/api/v1/campaigns/"+itoa(campaign.ID)+"/approve", nil, f.adminToken(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &campaign))
	return campaign
}

func (f *apiFixture) invest(t *testing.T, campaignID int64, amount int64) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/v1/investments", gin.H{
		"campaign_id":      campaignID,
		"investor_address": "rInvestor",
		"investor_secret":  "sInvestor",
		"amount":           amount,
	}, "")
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCreateCampaignHidesSecret(t *testing.T) {
	f := newAPIFixture(t)

	campaign := f.createCampaign(t)
	assert.Equal(t, "Cacao Grow", campaign.Title)
	assert.Equal(t, "pending", string(campaign.Status))
	assert.Nil(t, campaign.TokenSymbol)

	w := f.do(t, http.MethodGet, "/api/v1/campaigns/"+itoa(campaign.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sFarmer")
	assert.NotContains(t, w.Body.String(), "farmer_secret")
}

func TestCreateCampaignValidation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/campaigns", gin.H{"farmer_name": "Ana"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_input", decodeError(t, w).Kind)
	assert.Empty(t, f.sim.Calls())
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	campaign := f.createCampaign(t)
	path := "/api/v1/campaigns/" + itoa(campaign.ID) + "/approve"

	w := f.do(t, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	operator, err := f.tokens.Issue("desk@farmfund", auth.RoleOperator)
	require.NoError(t, err)
	w = f.do(t, http.MethodPost, path, nil, operator)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.sim.CallCount(ledger.OpEnableTokenIssuance))

	w = f.do(t, http.MethodPost, path, nil, f.adminToken(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var approved CampaignResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &approved))
	assert.Equal(t, "approved", string(approved.Status))
	require.NotNil(t, approved.TokenSymbol)

	w = f.do(t, http.MethodPost, path, nil, f.adminToken(t))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decodeError(t, w).Kind)
}

func TestInvestInPendingCampaign(t *testing.T) {
	f := newAPIFixture(t)
	campaign := f.createCampaign(t)

	w := f.invest(t, campaign.ID, 100)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "campaign_not_approved", decodeError(t, w).Kind)
	assert.Zero(t, f.sim.CallCount(ledger.OpCreateFundLock))
}

func TestInvestAndRelease(t *testing.T) {
	f := newAPIFixture(t)
	campaign := f.approvedCampaign(t)

	w := f.invest(t, campaign.ID, 100)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result settlement.InvestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "settled", string(result.Investment.Status))
	assert.Equal(t, int64(100), result.Investment.TokenAmount)
	path := "/api/v1/investments/" + itoa(result.Investment.ID)
	admin := f.adminToken(t)

	w = f.do(t, http.MethodPost, path+"/release", nil, admin)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "ledger_failure", body.Kind)
	assert.Equal(t, settlement.StepFinishFundLock, body.Step)
	assert.Equal(t, itoa(result.Investment.ID), body.Refs["investment_id"])
	assert.Equal(t, "rInvestor", body.Refs["escrow_owner"])

	f.clock.Advance(3 * time.Minute)
	w = f.do(t, http.MethodPost, path+"/release", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"released"`)

	w = f.do(t, http.MethodPost, path+"/cancel", nil, admin)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decodeError(t, w).Kind)

	w = f.do(t, http.MethodGet, "/api/v1/investments?campaign_id="+itoa(campaign.ID)+"&status=released", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestEscrowRoutesRequireAdmin(t *testing.T) {
	f := newAPIFixture(t)
	campaign := f.approvedCampaign(t)

	w := f.invest(t, campaign.ID, 100)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result settlement.InvestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	path := "/api/v1/investments/" + itoa(result.Investment.ID)

	f.clock.Advance(3 * time.Minute)
	for _, action := range []string{"/release", "/cancel"} {
		w = f.do(t, http.MethodPost, path+action, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, action)

		operator, err := f.tokens.Issue("desk@farmfund", auth.RoleOperator)
		require.NoError(t, err)
		w = f.do(t, http.MethodPost, path+action, nil, operator)
		assert.Equal(t, http.StatusForbidden, w.Code, action)
	}
	assert.Zero(t, f.sim.CallCount(ledger.OpFinishFundLock))
	assert.Zero(t, f.sim.CallCount(ledger.OpCancelFundLock))

	w = f.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"settled"`)
}

func TestInvestLedgerTimeout(t *testing.T) {
	f := newAPIFixture(t)
	campaign := f.approvedCampaign(t)
	f.sim.FailNext(ledger.OpCreateFundLock, &ledger.Error{Op: ledger.OpCreateFundLock, Kind: ledger.ErrTimeout})

	w := f.invest(t, campaign.ID, 100)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "ledger_timeout", body.Kind)
	assert.Equal(t, settlement.StepCreateFundLock, body.Step)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/campaigns/99", http.StatusNotFound},
		{"/api/v1/campaigns/abc", http.StatusBadRequest},
		{"/api/v1/investments/7", http.StatusNotFound},
		{"/api/v1/investments/-1", http.StatusBadRequest},
		{"/api/v1/microloans/3", http.StatusNotFound},
		{"/api/v1/investments?campaign_id=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAccountRoutes(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/accounts/rInvestor", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var overview tokenization.AccountOverview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, float64(500), overview.BalanceXRP)

	w = f.do(t, http.MethodGet, "/api/v1/accounts/rMissing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "account_not_found", decodeError(t, w).Kind)
}

func TestIssueCredentialRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	req := gin.H{
		"issuer_secret":   "sInvestor",
		"subject":         "rFarmer",
		"credential_type": "organic-certified",
	}

	w := f.do(t, http.MethodPost, "/api/v1/credentials", req, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, f.sim.CallCount(ledger.OpIssueCredential))

	w = f.do(t, http.MethodPost, "/api/v1/credentials", req, f.adminToken(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/accounts/rFarmer/credentials", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "organic-certified")
}

func TestSummaryReport(t *testing.T) {
	f := newAPIFixture(t)
	campaign := f.approvedCampaign(t)
	require.Equal(t, http.StatusCreated, f.invest(t, campaign.ID, 100).Code)

	w := f.do(t, http.MethodGet, "/api/v1/reports/summary", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"settled"`)
}
