package ledger

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Operation names used for call recording and failure injection
const (
	OpCreateAccount       = "create_account"
	OpAccountInfo         = "account_info"
	OpSendPayment         = "send_payment"
	OpEnableTokenIssuance = "enable_token_issuance"
	OpCreateFundLock      = "create_fund_lock"
	OpFinishFundLock      = "finish_fund_lock"
	OpCancelFundLock      = "cancel_fund_lock"
	OpCreateTrustLine     = "create_trust_line"
	OpIssueTokens         = "issue_tokens"
	OpMintNFT             = "mint_nft"
	OpTransferNFT         = "transfer_nft"
	OpBurnNFT             = "burn_nft"
	OpIssueCredential     = "issue_credential"
	OpListNFTs            = "list_nfts"
	OpListTrustLines      = "list_trust_lines"
	OpListCredentials     = "list_credentials"
)

const (
	simFundingXRP   int64 = 1000
	simReserveDrops int64 = 1_000_000
	simFeeDrops     int64 = 12
)

const base58Alphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

type simAccount struct {
	address       string
	balance       int64
	sequence      uint32
	defaultRipple bool
}

type escrowKey struct {
	owner    string
	sequence uint32
}

type simEscrow struct {
	destination  string
	amount       int64
	releaseAfter time.Time
	cancelAfter  *time.Time
	condition    string
}

type lineKey struct {
	holder   string
	issuer   string
	currency string
}

type simLine struct {
	balance int64
	limit   int64
}

type simNFT struct {
	NFT
	owner string
}

// Simulated is an in-memory ledger with escrow time windows, trust lines,
// NFTs and credentials. Failures can be injected per operation.
type Simulated struct {
	mu sync.Mutex

	now         func() time.Time
	ledgerIndex uint32

	accounts    map[string]*simAccount
	secrets     map[string]string
	escrows     map[escrowKey]*simEscrow
	lines       map[lineKey]*simLine
	nfts        map[string]*simNFT
	offers      map[string]string
	credentials []Credential

	failures map[string][]error
	calls    []string
}

var _ Client = (*Simulated)(nil)

// NewSimulated creates an empty simulated ledger. A nil clock uses time.Now.
func NewSimulated(now func() time.Time) *Simulated {
	if now == nil {
		now = time.Now
	}
	return &Simulated{
		now:         now,
		ledgerIndex: 1,
		accounts:    make(map[string]*simAccount),
		secrets:     make(map[string]string),
		escrows:     make(map[escrowKey]*simEscrow),
		lines:       make(map[lineKey]*simLine),
		nfts:        make(map[string]*simNFT),
		offers:      make(map[string]string),
		failures:    make(map[string][]error),
	}
}

// AddAccount registers a funded account with a known secret
func (s *Simulated) AddAccount(address, secret string, balanceXRP int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[address] = &simAccount{address: address, balance: XRPToDrops(balanceXRP), sequence: 1}
	if secret != "" {
		s.secrets[secret] = address
	}
}

// FailNext makes the next call to op return err. Calls queue in order.
func (s *Simulated) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls returns the operations invoked so far, in order
func (s *Simulated) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how many times op was invoked
func (s *Simulated) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

// BalanceDrops returns the XRP balance of address, or -1 when it does not exist
func (s *Simulated) BalanceDrops(address string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[address]; ok {
		return acct.balance
	}
	return -1
}

// HasEscrow reports whether a lock is still open
func (s *Simulated) HasEscrow(owner string, sequence uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.escrows[escrowKey{owner, sequence}]
	return ok
}

// TokenIssuanceEnabled reports whether DefaultRipple was set on address
func (s *Simulated) TokenIssuanceEnabled(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[address]
	return ok && acct.defaultRipple
}

// enter records the call and pops an injected failure. Caller holds mu.
func (s *Simulated) enter(ctx context.Context, op string) error {
	s.calls = append(s.calls, op)
	if err := ctx.Err(); err != nil {
		return classifyTransport(ctx, op, err)
	}
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (s *Simulated) signer(op, secret string) (*simAccount, error) {
	address, ok := s.secrets[secret]
	if !ok {
		return nil, newError(op, ErrMalformed, "badSecret", "unknown signing secret")
	}
	acct, ok := s.accounts[address]
	if !ok {
		return nil, newError(op, ErrAccountNotFound, "srcActNotFound", address)
	}
	return acct, nil
}

// apply charges the fee, consumes a sequence and closes a ledger
func (s *Simulated) apply(acct *simAccount) Receipt {
	seq := acct.sequence
	acct.sequence++
	acct.balance -= simFeeDrops
	s.ledgerIndex++

	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", acct.address, seq, s.ledgerIndex)))
	return Receipt{
		TxHash:      strings.ToUpper(hex.EncodeToString(digest[:])),
		Account:     acct.address,
		Sequence:    seq,
		LedgerIndex: s.ledgerIndex,
		Result:      "tesSUCCESS",
	}
}

func (s *Simulated) spendable(acct *simAccount) int64 {
	return acct.balance - simReserveDrops - simFeeDrops
}

func randomToken(prefix string, n int) string {
	var b strings.Builder
	b.WriteString(prefix)
	size := big.NewInt(int64(len(base58Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic(err)
		}
		b.WriteByte(base58Alphabet[idx.Int64()])
	}
	return b.String()
}

// =====================================================
// Accounts
// =====================================================

func (s *Simulated) CreateAccount(ctx context.Context, seed string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpCreateAccount); err != nil {
		return nil, err
	}
	if seed != "" {
		address, ok := s.secrets[seed]
		if !ok {
			return nil, newError(OpCreateAccount, ErrMalformed, "badSeed", "seed is not known to the simulated ledger")
		}
		return &Account{Address: address, Secret: seed}, nil
	}

	account := &Account{Address: randomToken("r", 33), Secret: randomToken("s", 28)}
	s.accounts[account.Address] = &simAccount{address: account.Address, balance: XRPToDrops(simFundingXRP), sequence: 1}
	s.secrets[account.Secret] = account.Address
	s.ledgerIndex++
	return account, nil
}

func (s *Simulated) AccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpAccountInfo); err != nil {
		return nil, err
	}
	acct, ok := s.accounts[address]
	if !ok {
		return nil, newError(OpAccountInfo, ErrAccountNotFound, "actNotFound", address)
	}
	return &AccountInfo{Address: acct.address, BalanceDrops: acct.balance, Sequence: acct.sequence}, nil
}

func (s *Simulated) SendPayment(ctx context.Context, fromSecret string, amountXRP int64, destination string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpSendPayment); err != nil {
		return nil, err
	}
	from, err := s.signer(OpSendPayment, fromSecret)
	if err != nil {
		return nil, err
	}
	if amountXRP <= 0 {
		return nil, newError(OpSendPayment, ErrMalformed, "temBAD_AMOUNT", "amount must be positive")
	}
	to, ok := s.accounts[destination]
	if !ok {
		return nil, newError(OpSendPayment, ErrAccountNotFound, "tecNO_DST", destination)
	}
	drops := XRPToDrops(amountXRP)
	if s.spendable(from) < drops {
		return nil, newError(OpSendPayment, ErrInsufficientFunds, "tecUNFUNDED_PAYMENT", "")
	}

	from.balance -= drops
	to.balance += drops
	receipt := s.apply(from)
	return &receipt, nil
}

func (s *Simulated) EnableTokenIssuance(ctx context.Context, issuerSecret string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpEnableTokenIssuance); err != nil {
		return nil, err
	}
	acct, err := s.signer(OpEnableTokenIssuance, issuerSecret)
	if err != nil {
		return nil, err
	}
	acct.defaultRipple = true
	receipt := s.apply(acct)
	return &receipt, nil
}

// =====================================================
// Fund locks
// =====================================================

func (s *Simulated) CreateFundLock(ctx context.Context, req LockRequest) (*LockHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpCreateFundLock); err != nil {
		return nil, err
	}
	from, err := s.signer(OpCreateFundLock, req.FromSecret)
	if err != nil {
		return nil, err
	}
	if req.AmountXRP <= 0 {
		return nil, newError(OpCreateFundLock, ErrMalformed, "temBAD_AMOUNT", "amount must be positive")
	}
	if req.CancelAfter != nil && !req.CancelAfter.After(req.ReleaseAfter) {
		return nil, newError(OpCreateFundLock, ErrMalformed, "temBAD_EXPIRATION", "cancel time must follow release time")
	}
	if _, ok := s.accounts[req.Destination]; !ok {
		return nil, newError(OpCreateFundLock, ErrAccountNotFound, "tecNO_DST", req.Destination)
	}
	drops := XRPToDrops(req.AmountXRP)
	if s.spendable(from) < drops {
		return nil, newError(OpCreateFundLock, ErrInsufficientFunds, "tecUNFUNDED", "")
	}

	from.balance -= drops
	receipt := s.apply(from)
	s.escrows[escrowKey{from.address, receipt.Sequence}] = &simEscrow{
		destination:  req.Destination,
		amount:       drops,
		releaseAfter: req.ReleaseAfter,
		cancelAfter:  req.CancelAfter,
		condition:    strings.ToUpper(req.Condition),
	}

	return &LockHandle{
		Owner:        from.address,
		Sequence:     receipt.Sequence,
		TxHash:       receipt.TxHash,
		ReleaseAfter: req.ReleaseAfter,
		CancelAfter:  req.CancelAfter,
	}, nil
}

func (s *Simulated) FinishFundLock(ctx context.Context, req FinishRequest) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpFinishFundLock); err != nil {
		return nil, err
	}
	signer, err := s.signer(OpFinishFundLock, req.AuthorizerSecret)
	if err != nil {
		return nil, err
	}
	key := escrowKey{req.Owner, req.Sequence}
	escrow, ok := s.escrows[key]
	if !ok {
		return nil, newError(OpFinishFundLock, ErrRejected, "tecNO_TARGET", "no such escrow")
	}

	now := s.now()
	if now.Before(escrow.releaseAfter) {
		return nil, newError(OpFinishFundLock, ErrRejected, "tecNO_PERMISSION", "escrow is not yet releasable")
	}
	if escrow.cancelAfter != nil && !now.Before(*escrow.cancelAfter) {
		return nil, newError(OpFinishFundLock, ErrRejected, "tecNO_PERMISSION", "escrow has expired")
	}
	if escrow.condition != "" && !VerifyFulfillment(escrow.condition, req.Fulfillment) {
		return nil, newError(OpFinishFundLock, ErrRejected, "tecCRYPTOCONDITION_ERROR", "fulfillment does not match condition")
	}

	dest, ok := s.accounts[escrow.destination]
	if !ok {
		return nil, newError(OpFinishFundLock, ErrAccountNotFound, "tecNO_DST", escrow.destination)
	}
	dest.balance += escrow.amount
	delete(s.escrows, key)
	receipt := s.apply(signer)
	return &receipt, nil
}

func (s *Simulated) CancelFundLock(ctx context.Context, authorizerSecret, owner string, sequence uint32) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpCancelFundLock); err != nil {
		return nil, err
	}
	signer, err := s.signer(OpCancelFundLock, authorizerSecret)
	if err != nil {
		return nil, err
	}
	key := escrowKey{owner, sequence}
	escrow, ok := s.escrows[key]
	if !ok {
		return nil, newError(OpCancelFundLock, ErrRejected, "tecNO_TARGET", "no such escrow")
	}
	if escrow.cancelAfter == nil || s.now().Before(*escrow.cancelAfter) {
		return nil, newError(OpCancelFundLock, ErrRejected, "tecNO_PERMISSION", "escrow is not yet cancellable")
	}

	if acct, ok := s.accounts[owner]; ok {
		acct.balance += escrow.amount
	}
	delete(s.escrows, key)
	receipt := s.apply(signer)
	return &receipt, nil
}

// =====================================================
// Issued tokens
// =====================================================

func (s *Simulated) CreateTrustLine(ctx context.Context, holderSecret, issuer, currency string, limit int64) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpCreateTrustLine); err != nil {
		return nil, err
	}
	holder, err := s.signer(OpCreateTrustLine, holderSecret)
	if err != nil {
		return nil, err
	}
	if len(currency) != 3 || limit < 0 {
		return nil, newError(OpCreateTrustLine, ErrMalformed, "temBAD_CURRENCY", currency)
	}
	if _, ok := s.accounts[issuer]; !ok {
		return nil, newError(OpCreateTrustLine, ErrAccountNotFound, "tecNO_ISSUER", issuer)
	}

	key := lineKey{holder.address, issuer, strings.ToUpper(currency)}
	if line, ok := s.lines[key]; ok {
		line.limit = limit
	} else {
		s.lines[key] = &simLine{limit: limit}
	}
	receipt := s.apply(holder)
	return &receipt, nil
}

func (s *Simulated) IssueTokens(ctx context.Context, issuerSecret, destination, currency string, amount int64) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpIssueTokens); err != nil {
		return nil, err
	}
	issuer, err := s.signer(OpIssueTokens, issuerSecret)
	if err != nil {
		return nil, err
	}
	line, ok := s.lines[lineKey{destination, issuer.address, strings.ToUpper(currency)}]
	if !ok {
		return nil, newError(OpIssueTokens, ErrRejected, "tecPATH_DRY", "destination has no trust line")
	}
	if line.balance+amount > line.limit {
		return nil, newError(OpIssueTokens, ErrRejected, "tecPATH_PARTIAL", "trust line limit exceeded")
	}

	line.balance += amount
	receipt := s.apply(issuer)
	return &receipt, nil
}

// =====================================================
// NFTs and credentials
// =====================================================

func (s *Simulated) MintNFT(ctx context.Context, req MintRequest) (*MintedNFT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpMintNFT); err != nil {
		return nil, err
	}
	minter, err := s.signer(OpMintNFT, req.Secret)
	if err != nil {
		return nil, err
	}

	receipt := s.apply(minter)
	var flags uint32
	if req.Transferable {
		flags = tfTransferable
	}
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", minter.address, req.Taxon, receipt.Sequence)))
	id := fmt.Sprintf("%04X%s", flags, strings.ToUpper(hex.EncodeToString(digest[:30])))

	s.nfts[id] = &simNFT{
		NFT: NFT{
			NFTokenID: id,
			Issuer:    minter.address,
			URI:       req.URI,
			Taxon:     req.Taxon,
			Flags:     flags,
			Serial:    receipt.Sequence,
		},
		owner: minter.address,
	}
	return &MintedNFT{NFTokenID: id, Receipt: receipt}, nil
}

// TransferNFT records a zero-price sell offer; ownership moves once the destination accepts
func (s *Simulated) TransferNFT(ctx context.Context, ownerSecret, destination, nftID string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpTransferNFT); err != nil {
		return nil, err
	}
	owner, err := s.signer(OpTransferNFT, ownerSecret)
	if err != nil {
		return nil, err
	}
	nft, ok := s.nfts[nftID]
	if !ok || nft.owner != owner.address {
		return nil, newError(OpTransferNFT, ErrRejected, "tecNO_ENTRY", "nft not owned by signer")
	}
	if nft.Flags&tfTransferable == 0 && nft.Issuer != owner.address {
		return nil, newError(OpTransferNFT, ErrRejected, "tefNFTOKEN_IS_NOT_TRANSFERABLE", nftID)
	}
	if _, ok := s.accounts[destination]; !ok {
		return nil, newError(OpTransferNFT, ErrAccountNotFound, "tecNO_DST", destination)
	}

	s.offers[nftID] = destination
	receipt := s.apply(owner)
	return &receipt, nil
}

func (s *Simulated) BurnNFT(ctx context.Context, ownerSecret, nftID string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpBurnNFT); err != nil {
		return nil, err
	}
	owner, err := s.signer(OpBurnNFT, ownerSecret)
	if err != nil {
		return nil, err
	}
	nft, ok := s.nfts[nftID]
	if !ok || nft.owner != owner.address {
		return nil, newError(OpBurnNFT, ErrRejected, "tecNO_ENTRY", "nft not owned by signer")
	}

	delete(s.nfts, nftID)
	delete(s.offers, nftID)
	receipt := s.apply(owner)
	return &receipt, nil
}

func (s *Simulated) IssueCredential(ctx context.Context, req CredentialRequest) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpIssueCredential); err != nil {
		return nil, err
	}
	issuer, err := s.signer(OpIssueCredential, req.IssuerSecret)
	if err != nil {
		return nil, err
	}
	if req.CredentialType == "" {
		return nil, newError(OpIssueCredential, ErrMalformed, "temMALFORMED", "credential type is required")
	}
	if _, ok := s.accounts[req.Subject]; !ok {
		return nil, newError(OpIssueCredential, ErrAccountNotFound, "tecNO_TARGET", req.Subject)
	}
	for _, c := range s.credentials {
		if c.Issuer == issuer.address && c.Subject == req.Subject && c.CredentialType == req.CredentialType {
			return nil, newError(OpIssueCredential, ErrRejected, "tecDUPLICATE", req.CredentialType)
		}
	}

	s.credentials = append(s.credentials, Credential{
		Issuer:         issuer.address,
		Subject:        req.Subject,
		CredentialType: req.CredentialType,
		URI:            req.URI,
		Expiration:     req.Expiration,
	})
	receipt := s.apply(issuer)
	return &receipt, nil
}

func (s *Simulated) ListNFTs(ctx context.Context, address string) ([]NFT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpListNFTs); err != nil {
		return nil, err
	}
	if _, ok := s.accounts[address]; !ok {
		return nil, newError(OpListNFTs, ErrAccountNotFound, "actNotFound", address)
	}

	nfts := []NFT{}
	for _, n := range s.nfts {
		if n.owner == address {
			nfts = append(nfts, n.NFT)
		}
	}
	sort.Slice(nfts, func(i, j int) bool { return nfts[i].Serial < nfts[j].Serial })
	return nfts, nil
}

func (s *Simulated) ListTrustLines(ctx context.Context, address string) ([]TrustLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpListTrustLines); err != nil {
		return nil, err
	}
	if _, ok := s.accounts[address]; !ok {
		return nil, newError(OpListTrustLines, ErrAccountNotFound, "actNotFound", address)
	}

	lines := []TrustLine{}
	for key, line := range s.lines {
		switch address {
		case key.holder:
			lines = append(lines, TrustLine{
				Peer:     key.issuer,
				Currency: key.currency,
				Balance:  strconv.FormatInt(line.balance, 10),
				Limit:    strconv.FormatInt(line.limit, 10),
			})
		case key.issuer:
			lines = append(lines, TrustLine{
				Peer:     key.holder,
				Currency: key.currency,
				Balance:  strconv.FormatInt(-line.balance, 10),
				Limit:    "0",
			})
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Currency != lines[j].Currency {
			return lines[i].Currency < lines[j].Currency
		}
		return lines[i].Peer < lines[j].Peer
	})
	return lines, nil
}

func (s *Simulated) ListCredentials(ctx context.Context, address string) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, OpListCredentials); err != nil {
		return nil, err
	}

	creds := []Credential{}
	for _, c := range s.credentials {
		if c.Subject == address || c.Issuer == address {
			creds = append(creds, c)
		}
	}
	return creds, nil
}
