package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFailure is satisfied by every definite ledger failure. Timeouts are excluded.
	ErrFailure = errors.New("ledger failure")

	ErrRejected          = errors.New("transaction rejected")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrMalformed         = errors.New("malformed transaction")
	ErrTransport         = errors.New("ledger unreachable")

	// ErrTimeout means the outcome is unknown: the effect may or may not have landed
	ErrTimeout = errors.New("ledger timeout")
)

// Error is the single failure type returned by Client implementations
type Error struct {
	Op      string
	Kind    error
	Code    string
	Message string
	TxHash  string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Kind)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.TxHash != "" {
		fmt.Fprintf(&b, " [tx %s]", e.TxHash)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

func (e *Error) Is(target error) bool {
	return target == ErrFailure && e.Kind != ErrTimeout
}

// IsTimeout reports whether err is an ambiguous ledger outcome
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func newError(op string, kind error, code, message string) *Error {
	return &Error{Op: op, Kind: kind, Code: code, Message: message}
}

// classifyResult maps a rippled engine result or RPC error token to a failure kind
func classifyResult(code string) error {
	switch code {
	case "tecUNFUNDED", "tecUNFUNDED_PAYMENT", "tecUNFUNDED_ADD", "tecUNFUNDED_OFFER",
		"tecINSUFFICIENT_RESERVE", "tecINSUF_RESERVE_LINE", "tecNO_LINE_INSUF_RESERVE",
		"tecINSUFFICIENT_FUNDS", "terINSUF_FEE_B", "tecNO_DST_INSUF_XRP":
		return ErrInsufficientFunds
	case "tecNO_DST", "terNO_ACCOUNT", "actNotFound", "srcActNotFound", "tecNO_ISSUER":
		return ErrAccountNotFound
	case "actMalformed", "invalidParams", "badSeed", "badSecret", "invalidTransaction":
		return ErrMalformed
	}
	if strings.HasPrefix(code, "tem") {
		return ErrMalformed
	}
	return ErrRejected
}

// classifyTransport separates deadline expiry from other I/O failures
func classifyTransport(ctx context.Context, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(op, ErrTimeout, "", err.Error())
	}
	return newError(op, ErrTransport, "", err.Error())
}
