package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Peersyst/xrpl-go/pkg/crypto"
	"github.com/Peersyst/xrpl-go/xrpl/wallet"
	"go.uber.org/zap"
)

const (
	asfDefaultRipple = 8
	tfTransferable   = 8
	tfSellNFToken    = 1
	lsfAccepted      = 0x00010000
)

// XRPLClient talks to a rippled node over JSON-RPC. Transactions are
// autofilled and signed locally, submitted as blobs and then polled until
// validated or expired. Seeds never leave the process.
type XRPLClient struct {
	httpClient *http.Client
	config     *XRPLConfig
	logger     *zap.Logger

	// seed -> *wallet.Wallet
	wallets sync.Map
}

// XRPLConfig contains rippled connection and submission settings
type XRPLConfig struct {
	RPCURL              string        `json:"rpc_url"`
	FaucetURL           string        `json:"faucet_url"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	ConfirmationTimeout time.Duration `json:"confirmation_timeout"`
	PollInterval        time.Duration `json:"poll_interval"`
	LastLedgerOffset    uint32        `json:"last_ledger_offset"`
	// MaxFeeDrops caps the open ledger fee paid per transaction
	MaxFeeDrops int64 `json:"max_fee_drops"`
}

// DefaultXRPLConfig points at the public testnet
func DefaultXRPLConfig() *XRPLConfig {
	return &XRPLConfig{
		RPCURL:              "https://s.altnet.rippletest.net:51234",
		FaucetURL:           "https://faucet.altnet.rippletest.net/accounts",
		RequestTimeout:      15 * time.Second,
		ConfirmationTimeout: 60 * time.Second,
		PollInterval:        time.Second,
		LastLedgerOffset:    20,
		MaxFeeDrops:         2000,
	}
}

var _ Client = (*XRPLClient)(nil)

// NewXRPLClient creates a new rippled JSON-RPC client
func NewXRPLClient(config *XRPLConfig, logger *zap.Logger) (*XRPLClient, error) {
	defaults := DefaultXRPLConfig()
	if config == nil {
		config = defaults
	}
	if config.RPCURL == "" {
		return nil, fmt.Errorf("ledger rpc_url is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.ConfirmationTimeout <= 0 {
		config.ConfirmationTimeout = defaults.ConfirmationTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.LastLedgerOffset == 0 {
		config.LastLedgerOffset = defaults.LastLedgerOffset
	}
	if config.MaxFeeDrops <= 0 {
		config.MaxFeeDrops = defaults.MaxFeeDrops
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &XRPLClient{
		httpClient: &http.Client{},
		config:     config,
		logger:     logger,
	}, nil
}

// =====================================================
// JSON-RPC plumbing
// =====================================================

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (c *XRPLClient) call(ctx context.Context, op, method string, params any, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{Method: method, Params: []any{params}})
	if err != nil {
		return newError(op, ErrMalformed, "", err.Error())
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.config.RPCURL, bytes.NewReader(body))
	if err != nil {
		return newError(op, ErrTransport, "", err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransport(reqCtx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newError(op, ErrTransport, strconv.Itoa(resp.StatusCode), "unexpected http status from "+method)
	}

	var env rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return classifyTransport(reqCtx, op, err)
	}

	var status rpcStatus
	if err := json.Unmarshal(env.Result, &status); err != nil {
		return newError(op, ErrTransport, "", "invalid "+method+" response: "+err.Error())
	}
	if status.Status == "error" {
		return newError(op, classifyResult(status.Error), status.Error, status.ErrorMessage)
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return newError(op, ErrTransport, "", "invalid "+method+" result: "+err.Error())
		}
	}
	return nil
}

// walletFor restores the signing wallet for seed
func (c *XRPLClient) walletFor(op, seed string) (*wallet.Wallet, error) {
	if seed == "" {
		return nil, newError(op, ErrMalformed, "badSecret", "signing secret is required")
	}
	if v, ok := c.wallets.Load(seed); ok {
		return v.(*wallet.Wallet), nil
	}

	w, err := wallet.FromSeed(seed, "")
	if err != nil {
		return nil, newError(op, ErrMalformed, "badSecret", err.Error())
	}
	c.wallets.Store(seed, &w)
	return &w, nil
}

type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultMessage string `json:"engine_result_message"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

type txResult struct {
	Hash        string `json:"hash"`
	Account     string `json:"Account"`
	Sequence    uint32 `json:"Sequence"`
	LedgerIndex uint32 `json:"ledger_index"`
	Validated   bool   `json:"validated"`
	Meta        struct {
		TransactionResult string `json:"TransactionResult"`
		NFTokenID         string `json:"nftoken_id"`
	} `json:"meta"`
}

func (r *txResult) receipt() *Receipt {
	return &Receipt{
		TxHash:      r.Hash,
		Account:     r.Account,
		Sequence:    r.Sequence,
		LedgerIndex: r.LedgerIndex,
		Result:      r.Meta.TransactionResult,
	}
}

// feeQuote holds the node's current fee levels in drops
type feeQuote struct {
	Base int64
	Open int64
}

func (c *XRPLClient) fees(ctx context.Context, op string) (*feeQuote, error) {
	var out struct {
		Drops struct {
			BaseFee       string `json:"base_fee"`
			OpenLedgerFee string `json:"open_ledger_fee"`
		} `json:"drops"`
	}
	if err := c.call(ctx, op, "fee", map[string]any{}, &out); err != nil {
		return nil, err
	}

	base, err := strconv.ParseInt(out.Drops.BaseFee, 10, 64)
	if err != nil || base <= 0 {
		base = 10
	}
	open, err := strconv.ParseInt(out.Drops.OpenLedgerFee, 10, 64)
	if err != nil || open < base {
		open = base
	}
	if open > c.config.MaxFeeDrops {
		open = c.config.MaxFeeDrops
	}
	return &feeQuote{Base: base, Open: open}, nil
}

// autofill sets Sequence, Fee and LastLedgerSequence for account from the
// current open ledger. minFee, when set, raises the fee above the open rate.
func (c *XRPLClient) autofill(ctx context.Context, op, account string, tx map[string]any, minFee func(base int64) int64) (uint32, error) {
	var info struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	params := map[string]any{
		"account":      account,
		"ledger_index": "current",
		"strict":       true,
	}
	if err := c.call(ctx, op, "account_info", params, &info); err != nil {
		return 0, err
	}

	quote, err := c.fees(ctx, op)
	if err != nil {
		return 0, err
	}
	fee := quote.Open
	if minFee != nil {
		if f := minFee(quote.Base); f > fee {
			fee = f
		}
	}

	lastLedger := info.LedgerCurrentIndex + c.config.LastLedgerOffset
	tx["Account"] = account
	tx["Sequence"] = info.AccountData.Sequence
	tx["Fee"] = strconv.FormatInt(fee, 10)
	tx["LastLedgerSequence"] = lastLedger
	return lastLedger, nil
}

// submitAndWait autofills tx for the wallet behind secret, signs it locally,
// submits the blob and waits for a validated result.
func (c *XRPLClient) submitAndWait(ctx context.Context, op, secret string, tx map[string]any) (*txResult, error) {
	return c.submitWithFee(ctx, op, secret, tx, nil)
}

func (c *XRPLClient) submitWithFee(ctx context.Context, op, secret string, tx map[string]any, minFee func(base int64) int64) (*txResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConfirmationTimeout)
	defer cancel()

	w, err := c.walletFor(op, secret)
	if err != nil {
		return nil, err
	}
	lastLedger, err := c.autofill(ctx, op, string(w.ClassicAddress), tx, minFee)
	if err != nil {
		return nil, err
	}

	blob, hash, err := w.Sign(tx)
	if err != nil {
		return nil, newError(op, ErrMalformed, "signing", err.Error())
	}

	var sub submitResult
	if err := c.call(ctx, op, "submit", map[string]any{"tx_blob": blob}, &sub); err != nil {
		if IsTimeout(err) {
			// the blob may have reached the node; the hash is still known
			var lerr *Error
			if errors.As(err, &lerr) {
				lerr.TxHash = hash
			}
		}
		return nil, err
	}
	if sub.TxJSON.Hash != "" {
		hash = sub.TxJSON.Hash
	}

	c.logger.Debug("Transaction submitted",
		zap.String("op", op),
		zap.String("tx_hash", hash),
		zap.String("engine_result", sub.EngineResult),
		zap.Uint32("last_ledger_sequence", lastLedger),
	)

	if !preliminaryAccepted(sub.EngineResult) {
		e := newError(op, classifyResult(sub.EngineResult), sub.EngineResult, sub.EngineResultMessage)
		e.TxHash = hash
		return nil, e
	}

	return c.waitForValidation(ctx, op, hash, lastLedger)
}

// preliminaryAccepted reports whether a submitted tx may still reach a validated ledger
func preliminaryAccepted(code string) bool {
	return code == "tesSUCCESS" || code == "terQUEUED" || strings.HasPrefix(code, "tec")
}

// waitForValidation polls until the transaction is validated, its
// LastLedgerSequence has passed, or ctx expires.
func (c *XRPLClient) waitForValidation(ctx context.Context, op, txHash string, lastLedger uint32) (*txResult, error) {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		var res txResult
		err := c.call(ctx, op, "tx", map[string]any{"transaction": txHash}, &res)
		switch {
		case err == nil && res.Validated:
			if res.Meta.TransactionResult != "tesSUCCESS" {
				code := res.Meta.TransactionResult
				e := newError(op, classifyResult(code), code, "transaction validated with failure")
				e.TxHash = txHash
				return nil, e
			}
			c.logger.Info("Transaction validated",
				zap.String("op", op),
				zap.String("tx_hash", txHash),
				zap.Uint32("ledger_index", res.LedgerIndex),
			)
			return &res, nil

		case err == nil || isNotFound(err):
			expired, checkErr := c.ledgerPassed(ctx, op, lastLedger)
			if checkErr == nil && expired {
				e := newError(op, ErrRejected, "expired", "LastLedgerSequence passed without validation")
				e.TxHash = txHash
				return nil, e
			}

		default:
			// lookups are read-only, keep polling until the deadline
			c.logger.Warn("Transaction lookup failed",
				zap.String("op", op),
				zap.String("tx_hash", txHash),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return nil, &Error{
				Op:      op,
				Kind:    ErrTimeout,
				Message: "transaction not validated before deadline",
				TxHash:  txHash,
			}
		case <-ticker.C:
		}
	}
}

func isNotFound(err error) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Code == "txnNotFound"
}

// ledgerPassed reports whether the latest validated ledger is beyond seq
func (c *XRPLClient) ledgerPassed(ctx context.Context, op string, seq uint32) (bool, error) {
	var out struct {
		LedgerIndex uint32 `json:"ledger_index"`
	}
	if err := c.call(ctx, op, "ledger", map[string]any{"ledger_index": "validated"}, &out); err != nil {
		return false, err
	}
	return out.LedgerIndex > seq, nil
}

// =====================================================
// Accounts
// =====================================================

// CreateAccount derives an account from seed, or generates and funds a new one when seed is empty
func (c *XRPLClient) CreateAccount(ctx context.Context, seed string) (*Account, error) {
	const op = "create_account"

	if seed != "" {
		w, err := c.walletFor(op, seed)
		if err != nil {
			return nil, err
		}
		return &Account{Address: string(w.ClassicAddress), Secret: w.Seed}, nil
	}

	w, err := wallet.New(crypto.ED25519())
	if err != nil {
		return nil, newError(op, ErrMalformed, "", err.Error())
	}
	c.wallets.Store(w.Seed, &w)

	account := &Account{Address: string(w.ClassicAddress), Secret: w.Seed}
	if c.config.FaucetURL != "" {
		if err := c.fundFromFaucet(ctx, account.Address); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// fundFromFaucet asks the test network faucet to fund address and waits until it exists
func (c *XRPLClient) fundFromFaucet(ctx context.Context, address string) error {
	const op = "create_account"

	ctx, cancel := context.WithTimeout(ctx, c.config.ConfirmationTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"destination": address})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.FaucetURL, bytes.NewReader(body))
	if err != nil {
		return newError(op, ErrTransport, "", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, op, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return newError(op, ErrRejected, strconv.Itoa(resp.StatusCode), "faucet refused funding request")
	}

	c.logger.Info("Faucet funding requested", zap.String("address", address))

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := c.AccountInfo(ctx, address); err == nil {
			return nil
		} else if !errors.Is(err, ErrAccountNotFound) && !IsTimeout(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return newError(op, ErrTimeout, "", "faucet funding not validated before deadline")
		case <-ticker.C:
		}
	}
}

// AccountInfo returns the validated balance and sequence for address
func (c *XRPLClient) AccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	const op = "account_info"

	var out struct {
		AccountData struct {
			Account  string `json:"Account"`
			Balance  string `json:"Balance"`
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	params := map[string]any{
		"account":      address,
		"ledger_index": "validated",
		"strict":       true,
	}
	if err := c.call(ctx, op, "account_info", params, &out); err != nil {
		return nil, err
	}

	drops, err := ParseDrops(out.AccountData.Balance)
	if err != nil {
		return nil, newError(op, ErrTransport, "", err.Error())
	}
	return &AccountInfo{
		Address:      out.AccountData.Account,
		BalanceDrops: drops,
		Sequence:     out.AccountData.Sequence,
	}, nil
}

// SendPayment sends whole XRP to destination
func (c *XRPLClient) SendPayment(ctx context.Context, fromSecret string, amountXRP int64, destination string) (*Receipt, error) {
	res, err := c.submitAndWait(ctx, "send_payment", fromSecret, map[string]any{
		"TransactionType": "Payment",
		"Amount":          FormatDrops(amountXRP),
		"Destination":     destination,
	})
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// EnableTokenIssuance sets DefaultRipple so issued tokens can flow between holders
func (c *XRPLClient) EnableTokenIssuance(ctx context.Context, issuerSecret string) (*Receipt, error) {
	res, err := c.submitAndWait(ctx, "enable_token_issuance", issuerSecret, map[string]any{
		"TransactionType": "AccountSet",
		"SetFlag":         uint32(asfDefaultRipple),
	})
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// =====================================================
// Fund locks
// =====================================================

// CreateFundLock submits an EscrowCreate
func (c *XRPLClient) CreateFundLock(ctx context.Context, req LockRequest) (*LockHandle, error) {
	tx := map[string]any{
		"TransactionType": "EscrowCreate",
		"Amount":          FormatDrops(req.AmountXRP),
		"Destination":     req.Destination,
		"FinishAfter":     ToRippleTime(req.ReleaseAfter),
	}
	if req.CancelAfter != nil {
		tx["CancelAfter"] = ToRippleTime(*req.CancelAfter)
	}
	if req.Condition != "" {
		tx["Condition"] = req.Condition
	}

	res, err := c.submitAndWait(ctx, "create_fund_lock", req.FromSecret, tx)
	if err != nil {
		return nil, err
	}
	return &LockHandle{
		Owner:        res.Account,
		Sequence:     res.Sequence,
		TxHash:       res.Hash,
		ReleaseAfter: req.ReleaseAfter,
		CancelAfter:  req.CancelAfter,
	}, nil
}

// FinishFundLock submits an EscrowFinish
func (c *XRPLClient) FinishFundLock(ctx context.Context, req FinishRequest) (*Receipt, error) {
	tx := map[string]any{
		"TransactionType": "EscrowFinish",
		"Owner":           req.Owner,
		"OfferSequence":   req.Sequence,
	}
	var minFee func(int64) int64
	if req.Condition != "" {
		tx["Condition"] = req.Condition
		tx["Fulfillment"] = req.Fulfillment
		minFee = conditionalFinishFee(req.Fulfillment)
	}

	res, err := c.submitWithFee(ctx, "finish_fund_lock", req.AuthorizerSecret, tx, minFee)
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// conditionalFinishFee is base fee * (33 + fulfillment bytes / 16)
func conditionalFinishFee(fulfillment string) func(base int64) int64 {
	size := int64(len(fulfillment) / 2)
	return func(base int64) int64 {
		return base * (33 + (size+15)/16)
	}
}

// CancelFundLock submits an EscrowCancel
func (c *XRPLClient) CancelFundLock(ctx context.Context, authorizerSecret, owner string, sequence uint32) (*Receipt, error) {
	res, err := c.submitAndWait(ctx, "cancel_fund_lock", authorizerSecret, map[string]any{
		"TransactionType": "EscrowCancel",
		"Owner":           owner,
		"OfferSequence":   sequence,
	})
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// =====================================================
// Issued tokens
// =====================================================

// CreateTrustLine submits a TrustSet from the holder toward issuer
func (c *XRPLClient) CreateTrustLine(ctx context.Context, holderSecret, issuer, currency string, limit int64) (*Receipt, error) {
	res, err := c.submitAndWait(ctx, "create_trust_line", holderSecret, map[string]any{
		"TransactionType": "TrustSet",
		"LimitAmount": map[string]any{
			"currency": strings.ToUpper(currency),
			"issuer":   issuer,
			"value":    strconv.FormatInt(limit, 10),
		},
	})
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// IssueTokens pays freshly issued currency from the issuer to destination
func (c *XRPLClient) IssueTokens(ctx context.Context, issuerSecret, destination, currency string, amount int64) (*Receipt, error) {
	const op = "issue_tokens"

	w, err := c.walletFor(op, issuerSecret)
	if err != nil {
		return nil, err
	}
	res, err := c.submitAndWait(ctx, op, issuerSecret, map[string]any{
		"TransactionType": "Payment",
		"Destination":     destination,
		"Amount": map[string]any{
			"currency": strings.ToUpper(currency),
			"issuer":   string(w.ClassicAddress),
			"value":    strconv.FormatInt(amount, 10),
		},
	})
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// =====================================================
// NFTs and credentials
// =====================================================

// MintNFT submits an NFTokenMint
func (c *XRPLClient) MintNFT(ctx context.Context, req MintRequest) (*MintedNFT, error) {
	tx := map[string]any{
		"TransactionType": "NFTokenMint",
		"URI":             StrToHex(req.URI),
		"NFTokenTaxon":    req.Taxon,
	}
	if req.Transferable {
		tx["Flags"] = uint32(tfTransferable)
	}

	res, err := c.submitAndWait(ctx, "mint_nft", req.Secret, tx)
	if err != nil {
		return nil, err
	}
	return &MintedNFT{NFTokenID: res.Meta.NFTokenID, Receipt: *res.receipt()}, nil
}

// TransferNFT offers the token to destination for zero XRP
func (c *XRPLClient) TransferNFT(ctx context.Context, ownerSecret, destination, nftID string) (*Receipt, error) {
	res, err := c.submitAndWait(ctx, "transfer_nft", ownerSecret, map[string]any{
		"TransactionType": "NFTokenCreateOffer",
		"NFTokenID":       nftID,
		"Amount":          "0",
		"Destination":     destination,
		"Flags":           uint32(tfSellNFToken),
	})
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// BurnNFT submits an NFTokenBurn
func (c *XRPLClient) BurnNFT(ctx context.Context, ownerSecret, nftID string) (*Receipt, error) {
	res, err := c.submitAndWait(ctx, "burn_nft", ownerSecret, map[string]any{
		"TransactionType": "NFTokenBurn",
		"NFTokenID":       nftID,
	})
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// IssueCredential submits a CredentialCreate
func (c *XRPLClient) IssueCredential(ctx context.Context, req CredentialRequest) (*Receipt, error) {
	tx := map[string]any{
		"TransactionType": "CredentialCreate",
		"Subject":         req.Subject,
		"CredentialType":  StrToHex(req.CredentialType),
	}
	if req.URI != "" {
		tx["URI"] = StrToHex(req.URI)
	}
	if req.Expiration != nil {
		tx["Expiration"] = ToRippleTime(*req.Expiration)
	}

	res, err := c.submitAndWait(ctx, "issue_credential", req.IssuerSecret, tx)
	if err != nil {
		return nil, err
	}
	return res.receipt(), nil
}

// ListNFTs returns the NFTs held by address
func (c *XRPLClient) ListNFTs(ctx context.Context, address string) ([]NFT, error) {
	var out struct {
		AccountNFTs []struct {
			NFTokenID    string `json:"NFTokenID"`
			Issuer       string `json:"Issuer"`
			URI          string `json:"URI"`
			NFTokenTaxon uint32 `json:"NFTokenTaxon"`
			Flags        uint32 `json:"Flags"`
			Serial       uint32 `json:"nft_serial"`
		} `json:"account_nfts"`
	}
	params := map[string]any{"account": address, "ledger_index": "validated"}
	if err := c.call(ctx, "list_nfts", "account_nfts", params, &out); err != nil {
		return nil, err
	}

	nfts := make([]NFT, 0, len(out.AccountNFTs))
	for _, n := range out.AccountNFTs {
		nfts = append(nfts, NFT{
			NFTokenID: n.NFTokenID,
			Issuer:    n.Issuer,
			URI:       HexToStr(n.URI),
			Taxon:     n.NFTokenTaxon,
			Flags:     n.Flags,
			Serial:    n.Serial,
		})
	}
	return nfts, nil
}

// ListTrustLines returns the issued-currency lines of address
func (c *XRPLClient) ListTrustLines(ctx context.Context, address string) ([]TrustLine, error) {
	var out struct {
		Lines []struct {
			Account  string `json:"account"`
			Currency string `json:"currency"`
			Balance  string `json:"balance"`
			Limit    string `json:"limit"`
		} `json:"lines"`
	}
	params := map[string]any{"account": address, "ledger_index": "validated"}
	if err := c.call(ctx, "list_trust_lines", "account_lines", params, &out); err != nil {
		return nil, err
	}

	lines := make([]TrustLine, 0, len(out.Lines))
	for _, l := range out.Lines {
		lines = append(lines, TrustLine{Peer: l.Account, Currency: l.Currency, Balance: l.Balance, Limit: l.Limit})
	}
	return lines, nil
}

// ListCredentials returns credential objects owned by or issued to address
func (c *XRPLClient) ListCredentials(ctx context.Context, address string) ([]Credential, error) {
	var out struct {
		AccountObjects []struct {
			Issuer         string  `json:"Issuer"`
			Subject        string  `json:"Subject"`
			CredentialType string  `json:"CredentialType"`
			URI            string  `json:"URI"`
			Expiration     *uint32 `json:"Expiration"`
			Flags          uint32  `json:"Flags"`
		} `json:"account_objects"`
	}
	params := map[string]any{
		"account":      address,
		"type":         "credential",
		"ledger_index": "validated",
	}
	if err := c.call(ctx, "list_credentials", "account_objects", params, &out); err != nil {
		return nil, err
	}

	creds := make([]Credential, 0, len(out.AccountObjects))
	for _, o := range out.AccountObjects {
		cred := Credential{
			Issuer:         o.Issuer,
			Subject:        o.Subject,
			CredentialType: HexToStr(o.CredentialType),
			URI:            HexToStr(o.URI),
			Accepted:       o.Flags&lsfAccepted != 0,
		}
		if o.Expiration != nil {
			exp := FromRippleTime(*o.Expiration)
			cred.Expiration = &exp
		}
		creds = append(creds, cred)
	}
	return creds, nil
}
