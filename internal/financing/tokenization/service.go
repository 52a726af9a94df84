package tokenization

import (
	"context"
	"fmt"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"

	"go.uber.org/zap"
)

const defaultTimeout = 90 * time.Second

// Service exposes account balances, NFTs and credentials held on the ledger.
// It keeps no local state; every call is a pass-through to the ledger client.
type Service struct {
	ledger    ledger.Client
	validator *calculation.Validator
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// TokenBalance is an issued-currency balance read from a trust line
type TokenBalance struct {
	Issuer   string  `json:"issuer"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
	Limit    string  `json:"limit"`
}

// AccountOverview combines the XRP balance with issued-token balances
type AccountOverview struct {
	Address      string         `json:"address"`
	BalanceXRP   float64        `json:"balance_xrp"`
	BalanceDrops int64          `json:"balance_drops"`
	Sequence     uint32         `json:"sequence"`
	Tokens       []TokenBalance `json:"tokens"`
}

// MintNFTRequest describes a new NFT. Transferable defaults to true.
type MintNFTRequest struct {
	Secret       string `json:"secret" binding:"required"`
	URI          string `json:"uri" binding:"required"`
	Taxon        uint32 `json:"taxon"`
	Transferable *bool  `json:"transferable,omitempty"`
}

// TransferNFTRequest moves an NFT to Destination
type TransferNFTRequest struct {
	NFTokenID   string `json:"-"`
	OwnerSecret string `json:"owner_secret" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// BurnNFTRequest destroys an NFT held by the signer
type BurnNFTRequest struct {
	NFTokenID   string `json:"-"`
	OwnerSecret string `json:"owner_secret" binding:"required"`
}

// IssueCredentialRequest attests CredentialType about Subject
type IssueCredentialRequest struct {
	IssuerSecret   string     `json:"issuer_secret" binding:"required"`
	Subject        string     `json:"subject" binding:"required"`
	CredentialType string     `json:"credential_type" binding:"required"`
	URI            string     `json:"uri,omitempty"`
	Expiration     *time.Time `json:"expiration,omitempty"`
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the clock used to check credential expirations
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new tokenization service
func NewService(client ledger.Client, validator *calculation.Validator, logger *zap.Logger, timeout time.Duration, opts ...Option) *Service {
	if validator == nil {
		validator = calculation.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &Service{
		ledger:    client,
		validator: validator,
		logger:    logger,
		timeout:   timeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ledgerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// AccountOverview returns the XRP balance and the token balances of an account
func (s *Service) AccountOverview(ctx context.Context, address string) (*AccountOverview, error) {
	if err := s.validator.ValidateAddress("address", address); err != nil {
		return nil, err
	}

	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	info, err := s.ledger.AccountInfo(lctx, address)
	if err != nil {
		return nil, fmt.Errorf("account info: %w", err)
	}
	lines, err := s.ledger.ListTrustLines(lctx, address)
	if err != nil {
		return nil, fmt.Errorf("account lines: %w", err)
	}

	overview := &AccountOverview{
		Address:      info.Address,
		BalanceXRP:   info.BalanceXRP(),
		BalanceDrops: info.BalanceDrops,
		Sequence:     info.Sequence,
		Tokens:       make([]TokenBalance, 0, len(lines)),
	}
	for _, line := range lines {
		overview.Tokens = append(overview.Tokens, TokenBalance{
			Issuer:   line.Peer,
			Currency: line.Currency,
			Balance:  line.BalanceValue(),
			Limit:    line.Limit,
		})
	}
	return overview, nil
}

// TrustLines lists the raw trust lines of an account
func (s *Service) TrustLines(ctx context.Context, address string) ([]ledger.TrustLine, error) {
	if err := s.validator.ValidateAddress("address", address); err != nil {
		return nil, err
	}
	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	lines, err := s.ledger.ListTrustLines(lctx, address)
	if err != nil {
		return nil, fmt.Errorf("account lines: %w", err)
	}
	return lines, nil
}

// NFTs lists the NFTs held by an account
func (s *Service) NFTs(ctx context.Context, address string) ([]ledger.NFT, error) {
	if err := s.validator.ValidateAddress("address", address); err != nil {
		return nil, err
	}
	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	nfts, err := s.ledger.ListNFTs(lctx, address)
	if err != nil {
		return nil, fmt.Errorf("account nfts: %w", err)
	}
	return nfts, nil
}

// Credentials lists credentials issued to or by an account
func (s *Service) Credentials(ctx context.Context, address string) ([]ledger.Credential, error) {
	if err := s.validator.ValidateAddress("address", address); err != nil {
		return nil, err
	}
	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	creds, err := s.ledger.ListCredentials(lctx, address)
	if err != nil {
		return nil, fmt.Errorf("account credentials: %w", err)
	}
	return creds, nil
}

// MintNFT mints a new NFT for the signer
func (s *Service) MintNFT(ctx context.Context, req MintNFTRequest) (*ledger.MintedNFT, error) {
	if err := s.validator.ValidateSecret("secret", req.Secret); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateURI(req.URI, true); err != nil {
		return nil, err
	}
	transferable := true
	if req.Transferable != nil {
		transferable = *req.Transferable
	}

	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	minted, err := s.ledger.MintNFT(lctx, ledger.MintRequest{
		Secret:       req.Secret,
		URI:          req.URI,
		Taxon:        req.Taxon,
		Transferable: transferable,
	})
	if err != nil {
		s.logger.Error("NFT mint failed", zap.String("uri", req.URI), zap.Error(err))
		return nil, fmt.Errorf("mint nft: %w", err)
	}

	s.logger.Info("NFT minted",
		zap.String("nftoken_id", minted.NFTokenID),
		zap.String("tx_hash", minted.Receipt.TxHash),
	)
	return minted, nil
}

// TransferNFT offers the NFT to the destination for zero XRP
func (s *Service) TransferNFT(ctx context.Context, req TransferNFTRequest) (*ledger.Receipt, error) {
	if err := s.validator.ValidateNFTokenID(req.NFTokenID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateSecret("owner_secret", req.OwnerSecret); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateAddress("destination", req.Destination); err != nil {
		return nil, err
	}

	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	receipt, err := s.ledger.TransferNFT(lctx, req.OwnerSecret, req.Destination, req.NFTokenID)
	if err != nil {
		s.logger.Error("NFT transfer failed", zap.String("nftoken_id", req.NFTokenID), zap.Error(err))
		return nil, fmt.Errorf("transfer nft: %w", err)
	}
	s.logger.Info("NFT transfer offered",
		zap.String("nftoken_id", req.NFTokenID),
		zap.String("destination", req.Destination),
		zap.String("tx_hash", receipt.TxHash),
	)
	return receipt, nil
}

// BurnNFT destroys an NFT
func (s *Service) BurnNFT(ctx context.Context, req BurnNFTRequest) (*ledger.Receipt, error) {
	if err := s.validator.ValidateNFTokenID(req.NFTokenID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateSecret("owner_secret", req.OwnerSecret); err != nil {
		return nil, err
	}

	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	receipt, err := s.ledger.BurnNFT(lctx, req.OwnerSecret, req.NFTokenID)
	if err != nil {
		return nil, fmt.Errorf("burn nft: %w", err)
	}
	s.logger.Info("NFT burned", zap.String("nftoken_id", req.NFTokenID), zap.String("tx_hash", receipt.TxHash))
	return receipt, nil
}

// IssueCredential issues an on-ledger credential to the subject
func (s *Service) IssueCredential(ctx context.Context, req IssueCredentialRequest) (*ledger.Receipt, error) {
	if err := s.validator.ValidateSecret("issuer_secret", req.IssuerSecret); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateAddress("subject", req.Subject); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateCredentialType(req.CredentialType); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateURI(req.URI, false); err != nil {
		return nil, err
	}
	if req.Expiration != nil && !req.Expiration.After(s.now()) {
		return nil, financing.InvalidInput("expiration must be in the future")
	}

	lctx, cancel := s.ledgerCtx(ctx)
	defer cancel()

	receipt, err := s.ledger.IssueCredential(lctx, ledger.CredentialRequest{
		IssuerSecret:   req.IssuerSecret,
		Subject:        req.Subject,
		CredentialType: req.CredentialType,
		URI:            req.URI,
		Expiration:     req.Expiration,
	})
	if err != nil {
		s.logger.Error("credential issuance failed",
			zap.String("subject", req.Subject),
			zap.String("credential_type", req.CredentialType),
			zap.Error(err),
		)
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	s.logger.Info("credential issued",
		zap.String("subject", req.Subject),
		zap.String("credential_type", req.CredentialType),
		zap.String("tx_hash", receipt.TxHash),
	)
	return receipt, nil
}
