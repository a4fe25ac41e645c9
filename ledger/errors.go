/*
errors.go - Centralized error types for the revenue engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps them to status codes; messages are kept stable
  because existing clients match on them.

ERROR CATEGORIES:
  1. Validation errors - malformed input shape
  2. Lookup errors - referenced user/payment type/beneficiary missing
  3. Invariant errors - duplicates, allocation cap, referential block
  4. Store errors - backend/transaction failures

USAGE:
  if errors.Is(err, ledger.ErrAllocationExceeded) {
      var exceeded *ledger.AllocationExceededError
      errors.As(err, &exceeded)
  }

SEE ALSO:
  - allocation/engine.go: raises AllocationExceededError
  - beneficiary/manager.go: raises the rest
  - api/errors.go: status mapping
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

// The client-facing sentinels below are capitalized: their text is returned
// verbatim in the response "message" field and clients match on it.
var (
	// ErrValidation is returned when request fields are malformed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateExact is returned when a beneficiary with the same user,
	// percentage and payment type already exists.
	ErrDuplicateExact = errors.New("Beneficiary already exists")

	// ErrDuplicateUserPaymentType is returned when the user already holds a
	// share of the payment type; the existing record must be updated instead.
	ErrDuplicateUserPaymentType = errors.New("User already has a beneficiary share for this payment type")

	// ErrAllocationExceeded is returned when the percentage total would pass 100.
	ErrAllocationExceeded = errors.New("Total percentage for this payment type cannot exceed 100%")

	// ErrReferentialBlock is returned when deleting a beneficiary that a
	// payment type still references.
	ErrReferentialBlock = errors.New("Beneficiary is still referenced by a payment type")

	// ErrStore is returned when the underlying store or transaction fails.
	ErrStore = errors.New("store failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Record kinds used in NotFoundError.
const (
	KindUser        = "User"
	KindPaymentType = "PaymentType"
	KindBeneficiary = "Beneficiary"
)

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindPaymentType:
		return "Payment type not found"
	default:
		return e.Kind + " not found"
	}
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AllocationExceededError provides details about a rejected allocation.
type AllocationExceededError struct {
	PaymentType PaymentTypeID
	Requested   decimal.Decimal
	Total       decimal.Decimal
}

func (e *AllocationExceededError) Error() string {
	return fmt.Sprintf("%s (would be %s%%)", ErrAllocationExceeded.Error(), e.Total.String())
}

func (e *AllocationExceededError) Unwrap() error { return ErrAllocationExceeded }

// ReferentialBlockError lists the payment types holding a reference.
type ReferentialBlockError struct {
	Beneficiary  BeneficiaryID
	PaymentTypes []PaymentTypeID
}

func (e *ReferentialBlockError) Error() string {
	return ErrReferentialBlock.Error()
}

func (e *ReferentialBlockError) Unwrap() error { return ErrReferentialBlock }

// StoreError wraps a backend failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// WrapStore wraps err as a StoreError unless it already belongs to the
// taxonomy above.
func WrapStore(op string, err error) error {
	if err == nil || IsDomain(err) || errors.Is(err, ErrStore) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a uniqueness or reference conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateExact) ||
		errors.Is(err, ErrDuplicateUserPaymentType) ||
		errors.Is(err, ErrReferentialBlock)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAllocationExceeded) ||
		IsConflict(err)
}

// IsDomain returns true for every error of the taxonomy except store failures.
func IsDomain(err error) bool {
	return IsClientError(err) || IsNotFound(err)
}
