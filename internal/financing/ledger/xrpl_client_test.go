package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	binarycodec "github.com/Peersyst/xrpl-go/binary-codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// genesis account of every fresh rippled network
const (
	testSeed    = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	testAddress = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

	testDestination = "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe"
)

// fakeRippled answers the subset of rippled JSON-RPC the client uses.
// Submitted blobs are decoded so tests can inspect the signed fields.
type fakeRippled struct {
	mu sync.Mutex

	engineResult    string
	txResult        string
	openLedgerFee   string
	validatedLedger uint32
	pollsUntilFound int
	httpStatus      int

	methods   []string
	bodies    []string
	submitted []map[string]any
	polled    []string
	polls     int
}

func newFakeRippled() *fakeRippled {
	return &fakeRippled{
		engineResult:    "tesSUCCESS",
		txResult:        "tesSUCCESS",
		openLedgerFee:   "12",
		validatedLedger: 101,
	}
}

func (f *fakeRippled) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.httpStatus != 0 {
		w.WriteHeader(f.httpStatus)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		Method string           `json:"method"`
		Params []map[string]any `json:"params"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.methods = append(f.methods, req.Method)
	f.bodies = append(f.bodies, string(raw))
	params := req.Params[0]

	var result map[string]any
	switch req.Method {
	case "fee":
		result = map[string]any{
			"status": "success",
			"drops": map[string]any{
				"base_fee":        "10",
				"open_ledger_fee": f.openLedgerFee,
			},
		}
	case "submit":
		blob, _ := params["tx_blob"].(string)
		tx, err := binarycodec.Decode(blob)
		if err != nil {
			result = map[string]any{"status": "error", "error": "invalidTransaction", "error_message": err.Error()}
			break
		}
		f.submitted = append(f.submitted, tx)
		result = map[string]any{
			"status":                "success",
			"engine_result":         f.engineResult,
			"engine_result_message": "prelim",
		}
	case "tx":
		f.polls++
		f.polled = append(f.polled, params["transaction"].(string))
		if f.pollsUntilFound < 0 || f.polls <= f.pollsUntilFound {
			result = map[string]any{"status": "error", "error": "txnNotFound"}
			break
		}
		last := f.submitted[len(f.submitted)-1]
		result = map[string]any{
			"status":       "success",
			"hash":         params["transaction"],
			"Account":      last["Account"],
			"Sequence":     last["Sequence"],
			"ledger_index": 101,
			"validated":    true,
			"meta": map[string]any{
				"TransactionResult": f.txResult,
				"nftoken_id":        "000800004E11",
			},
		}
	case "ledger":
		result = map[string]any{"status": "success", "ledger_index": f.validatedLedger}
	case "account_info":
		if params["account"] == "rMissing" {
			result = map[string]any{"status": "error", "error": "actNotFound", "error_message": "Account not found."}
			break
		}
		result = map[string]any{
			"status":               "success",
			"ledger_current_index": 100,
			"account_data": map[string]any{
				"Account":  params["account"],
				"Balance":  "25000000",
				"Sequence": 7,
			},
		}
	case "account_lines":
		result = map[string]any{
			"status": "success",
			"lines": []map[string]any{
				{"account": "rFarmer", "currency": "CAC", "balance": "100", "limit": "1000"},
			},
		}
	case "account_nfts":
		result = map[string]any{
			"status": "success",
			"account_nfts": []map[string]any{
				{"NFTokenID": "0008", "Issuer": "rIssuer", "URI": StrToHex("ipfs://harvest"), "NFTokenTaxon": 4, "Flags": 8, "nft_serial": 2},
			},
		}
	case "account_objects":
		result = map[string]any{
			"status": "success",
			"account_objects": []map[string]any{
				{"Issuer": "rCoop", "Subject": "rFarmer", "CredentialType": StrToHex("organic"), "Flags": lsfAccepted, "Expiration": 1000},
				{"Issuer": "rCoop", "Subject": "rFarmer", "CredentialType": StrToHex("fair-trade"), "Flags": 0},
			},
		}
	default:
		result = map[string]any{"status": "error", "error": "unknownCmd"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func (f *fakeRippled) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, m := range f.methods {
		if m == method {
			n++
		}
	}
	return n
}

func newTestXRPLClient(t *testing.T, fake *fakeRippled) *XRPLClient {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := NewXRPLClient(&XRPLConfig{
		RPCURL:              server.URL,
		RequestTimeout:      time.Second,
		ConfirmationTimeout: 2 * time.Second,
		PollInterval:        5 * time.Millisecond,
		LastLedgerOffset:    20,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestXRPLClientCreateFundLock(t *testing.T) {
	fake := newFakeRippled()
	fake.pollsUntilFound = 2
	client := newTestXRPLClient(t, fake)

	release := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	cancelAfter := release.Add(24 * time.Hour)
	handle, err := client.CreateFundLock(context.Background(), LockRequest{
		FromSecret:   testSeed,
		AmountXRP:    100,
		Destination:  testDestination,
		ReleaseAfter: release,
		CancelAfter:  &cancelAfter,
	})
	require.NoError(t, err)

	assert.Equal(t, testAddress, handle.Owner)
	assert.Equal(t, uint32(7), handle.Sequence)
	assert.Len(t, handle.TxHash, 64)
	assert.Equal(t, 3, fake.called("tx"))
	for _, h := range fake.polled {
		assert.Equal(t, handle.TxHash, h)
	}

	require.Len(t, fake.submitted, 1)
	tx := fake.submitted[0]
	assert.Equal(t, "EscrowCreate", tx["TransactionType"])
	assert.Equal(t, "100000000", tx["Amount"])
	assert.Equal(t, testDestination, tx["Destination"])
	assert.Equal(t, testAddress, tx["Account"])
	assert.EqualValues(t, ToRippleTime(release), tx["FinishAfter"])
	assert.EqualValues(t, ToRippleTime(cancelAfter), tx["CancelAfter"])
	assert.EqualValues(t, 7, tx["Sequence"])
	assert.EqualValues(t, 120, tx["LastLedgerSequence"])
	assert.Equal(t, "12", tx["Fee"])
	assert.NotContains(t, tx, "Condition")
}

func TestXRPLClientSignsLocally(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	_, err := client.SendPayment(context.Background(), testSeed, 5, testDestination)
	require.NoError(t, err)

	for _, body := range fake.bodies {
		assert.NotContains(t, body, testSeed)
		assert.NotContains(t, body, `"secret"`)
	}
	assert.Zero(t, fake.called("wallet_propose"))
	assert.Zero(t, fake.called("sign"))
	assert.Equal(t, 1, fake.called("submit"))

	require.Len(t, fake.submitted, 1)
	tx := fake.submitted[0]
	assert.NotEmpty(t, tx["SigningPubKey"])
	assert.NotEmpty(t, tx["TxnSignature"])
}

func TestXRPLClientCachesSignerWallet(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	_, err := client.EnableTokenIssuance(context.Background(), testSeed)
	require.NoError(t, err)
	_, err = client.CreateTrustLine(context.Background(), testSeed, testDestination, "cac", 1000)
	require.NoError(t, err)

	_, ok := client.wallets.Load(testSeed)
	assert.True(t, ok)
	assert.EqualValues(t, asfDefaultRipple, fake.submitted[0]["SetFlag"])
	limit := fake.submitted[1]["LimitAmount"].(map[string]any)
	assert.Equal(t, "CAC", limit["currency"])
	assert.Equal(t, testDestination, limit["issuer"])
}

func TestXRPLClientIssueTokensFromSignerAddress(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	_, err := client.IssueTokens(context.Background(), testSeed, testDestination, "cac", 250)
	require.NoError(t, err)

	amount := fake.submitted[0]["Amount"].(map[string]any)
	assert.Equal(t, "CAC", amount["currency"])
	assert.Equal(t, testAddress, amount["issuer"])
}

func TestXRPLClientConditionalFinish(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	condition, fulfillment, err := NewPreimageCondition()
	require.NoError(t, err)

	_, err = client.FinishFundLock(context.Background(), FinishRequest{
		AuthorizerSecret: testSeed,
		Owner:            testDestination,
		Sequence:         7,
		Condition:        condition,
		Fulfillment:      fulfillment,
	})
	require.NoError(t, err)

	tx := fake.submitted[0]
	assert.Equal(t, "EscrowFinish", tx["TransactionType"])
	assert.EqualValues(t, 7, tx["OfferSequence"])
	assert.Equal(t, fulfillment, strings.ToUpper(tx["Fulfillment"].(string)))
	assert.Equal(t, "360", tx["Fee"])
}

func TestXRPLClientFeeIsCapped(t *testing.T) {
	fake := newFakeRippled()
	fake.openLedgerFee = "50000"
	client := newTestXRPLClient(t, fake)

	_, err := client.BurnNFT(context.Background(), testSeed, "000800004E11")
	require.NoError(t, err)
	assert.Equal(t, "2000", fake.submitted[0]["Fee"])
}

func TestXRPLClientValidatedFailure(t *testing.T) {
	fake := newFakeRippled()
	fake.txResult = "tecUNFUNDED"
	client := newTestXRPLClient(t, fake)

	_, err := client.SendPayment(context.Background(), testSeed, 5, testDestination)
	require.Error(t, err)

	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "tecUNFUNDED", lerr.Code)
	assert.Len(t, lerr.TxHash, 64)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.ErrorIs(t, err, ErrFailure)
}

func TestXRPLClientPreliminaryRejection(t *testing.T) {
	fake := newFakeRippled()
	fake.engineResult = "temBAD_AMOUNT"
	client := newTestXRPLClient(t, fake)

	_, err := client.SendPayment(context.Background(), testSeed, 5, testDestination)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, fake.called("tx"))
}

func TestXRPLClientExpiredTransaction(t *testing.T) {
	fake := newFakeRippled()
	fake.pollsUntilFound = -1
	fake.validatedLedger = 121
	client := newTestXRPLClient(t, fake)

	_, err := client.BurnNFT(context.Background(), testSeed, "000800004E11")
	require.Error(t, err)

	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "expired", lerr.Code)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, IsTimeout(err))
}

func TestXRPLClientTimeoutIsAmbiguous(t *testing.T) {
	fake := newFakeRippled()
	fake.pollsUntilFound = -1
	fake.validatedLedger = 100
	client := newTestXRPLClient(t, fake)
	client.config.ConfirmationTimeout = 150 * time.Millisecond

	_, err := client.CreateFundLock(context.Background(), LockRequest{
		FromSecret:   testSeed,
		AmountXRP:    10,
		Destination:  testDestination,
		ReleaseAfter: time.Now().Add(time.Minute),
	})
	require.Error(t, err)

	assert.True(t, IsTimeout(err))
	assert.False(t, errors.Is(err, ErrFailure))
	var lerr *Error
	require.True(t, errors.As(err, &lerr))
	require.NotEmpty(t, fake.polled)
	assert.Equal(t, fake.polled[0], lerr.TxHash)
}

func TestXRPLClientRejectsBadSeed(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	_, err := client.SendPayment(context.Background(), "not-a-seed", 5, testDestination)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = client.SendPayment(context.Background(), "", 5, testDestination)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Zero(t, fake.called("submit"))
}

func TestXRPLClientHTTPFailure(t *testing.T) {
	fake := newFakeRippled()
	fake.httpStatus = http.StatusBadGateway
	client := newTestXRPLClient(t, fake)

	_, err := client.AccountInfo(context.Background(), "rFarmer")
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrFailure)
}

func TestXRPLClientAccountInfo(t *testing.T) {
	client := newTestXRPLClient(t, newFakeRippled())

	info, err := client.AccountInfo(context.Background(), "rFarmer")
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), info.BalanceDrops)
	assert.Equal(t, 25.0, info.BalanceXRP())
	assert.Equal(t, uint32(7), info.Sequence)

	_, err = client.AccountInfo(context.Background(), "rMissing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestXRPLClientCreateAccountFromSeed(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	account, err := client.CreateAccount(context.Background(), testSeed)
	require.NoError(t, err)
	assert.Equal(t, testAddress, account.Address)
	assert.Equal(t, testSeed, account.Secret)
	assert.Empty(t, fake.methods)
}

func TestXRPLClientCreateAccountWithoutFaucet(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	account, err := client.CreateAccount(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(account.Address, "r"))
	assert.True(t, strings.HasPrefix(account.Secret, "s"))

	// the generated wallet signs for its own address
	_, err = client.EnableTokenIssuance(context.Background(), account.Secret)
	require.NoError(t, err)
	assert.Equal(t, account.Address, fake.submitted[0]["Account"])
}

func TestXRPLClientMintNFT(t *testing.T) {
	fake := newFakeRippled()
	client := newTestXRPLClient(t, fake)

	minted, err := client.MintNFT(context.Background(), MintRequest{Secret: testSeed, URI: "ipfs://harvest", Taxon: 4, Transferable: true})
	require.NoError(t, err)

	assert.Equal(t, "000800004E11", minted.NFTokenID)
	tx := fake.submitted[0]
	assert.Equal(t, StrToHex("ipfs://harvest"), strings.ToUpper(tx["URI"].(string)))
	assert.EqualValues(t, tfTransferable, tx["Flags"])
	assert.EqualValues(t, 4, tx["NFTokenTaxon"])
}

func TestXRPLClientQueries(t *testing.T) {
	client := newTestXRPLClient(t, newFakeRippled())
	ctx := context.Background()

	lines, err := client.ListTrustLines(ctx, "rInvestor")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, TrustLine{Peer: "rFarmer", Currency: "CAC", Balance: "100", Limit: "1000"}, lines[0])
	assert.Equal(t, 100.0, lines[0].BalanceValue())

	nfts, err := client.ListNFTs(ctx, "rIssuer")
	require.NoError(t, err)
	require.Len(t, nfts, 1)
	assert.Equal(t, "ipfs://harvest", nfts[0].URI)
	assert.Equal(t, uint32(4), nfts[0].Taxon)

	creds, err := client.ListCredentials(ctx, "rFarmer")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "organic", creds[0].CredentialType)
	assert.True(t, creds[0].Accepted)
	require.NotNil(t, creds[0].Expiration)
	assert.Equal(t, FromRippleTime(1000), *creds[0].Expiration)
	assert.False(t, creds[1].Accepted)
	assert.Nil(t, creds[1].Expiration)
}

func TestNewXRPLClientRequiresURL(t *testing.T) {
	_, err := NewXRPLClient(&XRPLConfig{}, nil)
	assert.Error(t, err)
}
