package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/ledger"
)

// Breach is a stored record that no longer passes Validate against its
// siblings. Concurrent creates on a store without serialisable writes can
// leave these behind.
type Breach struct {
	PaymentType ledger.PaymentTypeID `json:"paymentType"`
	Beneficiary ledger.BeneficiaryID `json:"beneficiary"`
	Total       decimal.Decimal      `json:"total"`
}

// Check re-validates every record of one payment type as if it were being
// updated in place.
func Check(id ledger.PaymentTypeID, existing []ledger.Beneficiary) []Breach {
	var breaches []Breach
	for _, b := range existing {
		_, err := Validate(existing, Candidate{
			PaymentType: id,
			Percentage:  b.Percentage,
			Role:        b.Role,
			ExcludeID:   b.ID,
		})
		var exceeded *ledger.AllocationExceededError
		if errors.As(err, &exceeded) {
			breaches = append(breaches, Breach{PaymentType: id, Beneficiary: b.ID, Total: exceeded.Total})
		}
	}
	return breaches
}

// Audit runs Check over every payment type in the store.
func Audit(ctx context.Context, store ledger.Store) ([]Breach, error) {
	types, err := store.ListPaymentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment types: %w", err)
	}

	var breaches []Breach
	for _, pt := range types {
		id := pt.ID
		existing, err := store.FindBeneficiaries(ctx, ledger.BeneficiaryFilter{PaymentTypeID: &id})
		if err != nil {
			return nil, fmt.Errorf("failed to load beneficiaries of %s: %w", id, err)
		}
		breaches = append(breaches, Check(id, existing)...)
	}
	return breaches, nil
}
