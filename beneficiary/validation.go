package beneficiary

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/ledger"
)

// CreateInput is a create request. Every field is required.
type CreateInput struct {
	UserID        string
	Percentage    *decimal.Decimal
	PaymentTypeID string
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	UserID        *string
	Percentage    *decimal.Decimal
	PaymentTypeID *string
	Role          *string
}

func (in UpdateInput) hasTriple() bool {
	return in.UserID != nil && in.Percentage != nil && in.PaymentTypeID != nil
}

// validateCreate reports every violated field at once.
func validateCreate(in CreateInput) error {
	v := &ledger.ValidationError{}
	if !ledger.ValidID(in.UserID) {
		v.Add("userId", "must be a valid user id")
	}
	checkPercentage(v, in.Percentage, true)
	if !ledger.ValidID(in.PaymentTypeID) {
		v.Add("paymentTypeId", "must be a valid payment type id")
	}
	return v.OrNil()
}

func validateUpdate(in UpdateInput) error {
	v := &ledger.ValidationError{}
	if in.UserID != nil && !ledger.ValidID(*in.UserID) {
		v.Add("userId", "must be a valid user id")
	}
	checkPercentage(v, in.Percentage, false)
	if in.PaymentTypeID != nil && !ledger.ValidID(*in.PaymentTypeID) {
		v.Add("paymentTypeId", "must be a valid payment type id")
	}
	if in.Role != nil && !ledger.Role(*in.Role).Valid() {
		v.Add("role", "must be a known role")
	}
	return v.OrNil()
}

func checkPercentage(v *ledger.ValidationError, p *decimal.Decimal, required bool) {
	switch {
	case p == nil && required:
		v.Add("percentage", "is required")
	case p != nil && p.Exponent() < -ledger.PercentageScale:
		v.Add("percentage", fmt.Sprintf("must have at most %d decimal places", ledger.PercentageScale))
	case p != nil && !ledger.ValidPercentage(*p):
		v.Add("percentage", "must be between 0 and 100")
	}
}
