package calculation

import (
	"strings"
	"unicode"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
)

const (
	maxRepaymentDays  = 3650
	maxAddressLength  = 35
	maxURIBytes       = 256
	maxCredentialType = 64
)

// Validator checks caller input before any ledger call is attempted
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAmount requires a positive whole XRP amount
func (v *Validator) ValidateAmount(field string, amount int64) error {
	if amount <= 0 {
		return financing.InvalidInput("%s must be a positive integer, got %d", field, amount)
	}
	return nil
}

// ValidateAddress performs a shape check on a classic address
func (v *Validator) ValidateAddress(field, address string) error {
	if address == "" {
		return financing.InvalidInput("%s is required", field)
	}
	if !strings.HasPrefix(address, "r") || len(address) > maxAddressLength {
		return financing.InvalidInput("%s %q is not a classic address", field, address)
	}
	for _, r := range address {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return financing.InvalidInput("%s %q contains invalid characters", field, address)
		}
	}
	return nil
}

// ValidateSecret requires a family seed
func (v *Validator) ValidateSecret(field, secret string) error {
	if secret == "" {
		return financing.InvalidInput("%s is required", field)
	}
	if !strings.HasPrefix(secret, "s") {
		return financing.InvalidInput("%s is not a family seed", field)
	}
	return nil
}

// ValidateRepaymentDays bounds the microloan term
func (v *Validator) ValidateRepaymentDays(days int) error {
	if days < 1 || days > maxRepaymentDays {
		return financing.InvalidInput("repayment_days must be between 1 and %d, got %d", maxRepaymentDays, days)
	}
	return nil
}

// ValidateURI bounds NFT and credential URIs to the ledger's field size
func (v *Validator) ValidateURI(uri string, required bool) error {
	if uri == "" {
		if required {
			return financing.InvalidInput("uri is required")
		}
		return nil
	}
	if len(uri) > maxURIBytes {
		return financing.InvalidInput("uri must be at most %d bytes", maxURIBytes)
	}
	return nil
}

// ValidateCredentialType bounds the credential type to the ledger's field size
func (v *Validator) ValidateCredentialType(credentialType string) error {
	if strings.TrimSpace(credentialType) == "" {
		return financing.InvalidInput("credential_type is required")
	}
	if len(credentialType) > maxCredentialType {
		return financing.InvalidInput("credential_type must be at most %d bytes", maxCredentialType)
	}
	return nil
}

// ValidateNFTokenID requires the 64-character hex identifier
func (v *Validator) ValidateNFTokenID(id string) error {
	if len(id) != 64 {
		return financing.InvalidInput("nft id must be 64 hex characters")
	}
	for _, r := range id {
		if !unicode.Is(unicode.ASCII_Hex_Digit, r) {
			return financing.InvalidInput("nft id must be 64 hex characters")
		}
	}
	return nil
}
