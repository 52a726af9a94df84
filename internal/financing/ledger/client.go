package ledger

import (
	"context"
	"strconv"
	"time"
)

// Client is the boundary to the external ledger. Every method is a blocking
// round trip that returns either a typed result or a *Error.
type Client interface {
	// Accounts
	CreateAccount(ctx context.Context, seed string) (*Account, error)
	AccountInfo(ctx context.Context, address string) (*AccountInfo, error)
	SendPayment(ctx context.Context, fromSecret string, amountXRP int64, destination string) (*Receipt, error)
	EnableTokenIssuance(ctx context.Context, issuerSecret string) (*Receipt, error)

	// Fund locks
	CreateFundLock(ctx context.Context, req LockRequest) (*LockHandle, error)
	FinishFundLock(ctx context.Context, req FinishRequest) (*Receipt, error)
	CancelFundLock(ctx context.Context, authorizerSecret, owner string, sequence uint32) (*Receipt, error)

	// Issued tokens
	CreateTrustLine(ctx context.Context, holderSecret, issuer, currency string, limit int64) (*Receipt, error)
	IssueTokens(ctx context.Context, issuerSecret, destination, currency string, amount int64) (*Receipt, error)

	// NFTs and credentials
	MintNFT(ctx context.Context, req MintRequest) (*MintedNFT, error)
	TransferNFT(ctx context.Context, ownerSecret, destination, nftID string) (*Receipt, error)
	BurnNFT(ctx context.Context, ownerSecret, nftID string) (*Receipt, error)
	IssueCredential(ctx context.Context, req CredentialRequest) (*Receipt, error)

	// Queries reflect current validated state in a single fetch
	ListNFTs(ctx context.Context, address string) ([]NFT, error)
	ListTrustLines(ctx context.Context, address string) ([]TrustLine, error)
	ListCredentials(ctx context.Context, address string) ([]Credential, error)
}

// Account is a ledger account and the secret that signs for it
type Account struct {
	Address string `json:"address"`
	Secret  string `json:"secret,omitempty"`
}

// AccountInfo is the validated state of an account root
type AccountInfo struct {
	Address      string `json:"address"`
	BalanceDrops int64  `json:"balance_drops"`
	Sequence     uint32 `json:"sequence"`
}

// BalanceXRP returns the balance in major units
func (a *AccountInfo) BalanceXRP() float64 {
	return DropsToXRP(a.BalanceDrops)
}

// Receipt is a validated, successful transaction
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	Account     string `json:"account"`
	Sequence    uint32 `json:"sequence"`
	LedgerIndex uint32 `json:"ledger_index"`
	Result      string `json:"result"`
}

// LockRequest describes an escrow from the signer to Destination
type LockRequest struct {
	FromSecret   string
	AmountXRP    int64
	Destination  string
	ReleaseAfter time.Time
	CancelAfter  *time.Time
	Condition    string
}

// LockHandle holds the identifiers needed to finish or cancel a lock later
type LockHandle struct {
	Owner        string     `json:"owner"`
	Sequence     uint32     `json:"sequence"`
	TxHash       string     `json:"tx_hash"`
	ReleaseAfter time.Time  `json:"release_after"`
	CancelAfter  *time.Time `json:"cancel_after,omitempty"`
}

// FinishRequest releases a lock to its destination. Condition and
// Fulfillment are required only for conditional locks.
type FinishRequest struct {
	AuthorizerSecret string
	Owner            string
	Sequence         uint32
	Condition        string
	Fulfillment      string
}

// MintRequest describes a new NFT
type MintRequest struct {
	Secret       string
	URI          string
	Taxon        uint32
	Transferable bool
}

// MintedNFT is the outcome of a successful mint
type MintedNFT struct {
	NFTokenID string  `json:"nftoken_id"`
	Receipt   Receipt `json:"receipt"`
}

// NFT is a token held by an account
type NFT struct {
	NFTokenID string `json:"nftoken_id"`
	Issuer    string `json:"issuer"`
	URI       string `json:"uri"`
	Taxon     uint32 `json:"taxon"`
	Flags     uint32 `json:"flags"`
	Serial    uint32 `json:"serial"`
}

// TrustLine is one side of an issued-currency relationship.
// Peer is the counterparty, usually the issuer.
type TrustLine struct {
	Peer     string `json:"peer"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Limit    string `json:"limit"`
}

// BalanceValue parses the decimal balance; malformed values read as zero
func (t TrustLine) BalanceValue() float64 {
	v, err := strconv.ParseFloat(t.Balance, 64)
	if err != nil {
		return 0
	}
	return v
}

// CredentialRequest describes an attestation issued to Subject
type CredentialRequest struct {
	IssuerSecret   string
	Subject        string
	CredentialType string
	URI            string
	Expiration     *time.Time
}

// Credential is an on-ledger attestation
type Credential struct {
	Issuer         string     `json:"issuer"`
	Subject        string     `json:"subject"`
	CredentialType string     `json:"credential_type"`
	URI            string     `json:"uri,omitempty"`
	Expiration     *time.Time `json:"expiration,omitempty"`
	Accepted       bool       `json:"accepted"`
}
