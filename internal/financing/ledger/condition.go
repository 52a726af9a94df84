package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DER prefixes for a PREIMAGE-SHA-256 crypto-condition with a 32-byte preimage
const (
	conditionPrefix   = "A0258020"
	conditionSuffix   = "810120"
	fulfillmentPrefix = "A0228020"
)

// NewPreimageCondition returns a fresh condition and its fulfillment as upper-case hex
func NewPreimageCondition() (condition, fulfillment string, err error) {
	preimage := make([]byte, 32)
	if _, err := rand.Read(preimage); err != nil {
		return "", "", fmt.Errorf("failed to generate preimage: %w", err)
	}
	condition, fulfillment = conditionFromPreimage(preimage)
	return condition, fulfillment, nil
}

func conditionFromPreimage(preimage []byte) (string, string) {
	digest := sha256.Sum256(preimage)
	condition := conditionPrefix + strings.ToUpper(hex.EncodeToString(digest[:])) + conditionSuffix
	fulfillment := fulfillmentPrefix + strings.ToUpper(hex.EncodeToString(preimage))
	return condition, fulfillment
}

// VerifyFulfillment checks that fulfillment satisfies condition
func VerifyFulfillment(condition, fulfillment string) bool {
	f := strings.ToUpper(fulfillment)
	if !strings.HasPrefix(f, fulfillmentPrefix) {
		return false
	}
	preimage, err := hex.DecodeString(strings.TrimPrefix(f, fulfillmentPrefix))
	if err != nil || len(preimage) != 32 {
		return false
	}
	expected, _ := conditionFromPreimage(preimage)
	return expected == strings.ToUpper(condition)
}
