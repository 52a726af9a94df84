package financing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is satisfied by every ValidationError
	ErrValidation = errors.New("validation failed")

	ErrNotFound            = errors.New("not found")
	ErrCampaignNotApproved = errors.New("campaign not approved")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidInput        = errors.New("invalid input")

	// ErrStoreIO marks a failed snapshot read or write
	ErrStoreIO = errors.New("store io failure")
)

// ValidationError reports bad caller input detected before any external call
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFound builds a ValidationError for a missing entity
func NotFound(entity string, id int64) error {
	return &ValidationError{Reason: ErrNotFound, Detail: fmt.Sprintf("%s %d", entity, id)}
}

// InvalidState builds a ValidationError for a transition the entity cannot make
func InvalidState(entity string, id int64, status string) error {
	return &ValidationError{Reason: ErrInvalidState, Detail: fmt.Sprintf("%s %d is %s", entity, id, status)}
}

// InvalidInput builds a ValidationError for a malformed field
func InvalidInput(format string, args ...any) error {
	return &ValidationError{Reason: ErrInvalidInput, Detail: fmt.Sprintf(format, args...)}
}

// StoreError wraps a persistence failure so errors.Is(err, ErrStoreIO) holds
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreIO, err)
}
