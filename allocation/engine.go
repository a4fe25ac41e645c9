/*
Package allocation enforces the percentage cap of a payment type.

PURPOSE:
  Decides whether a proposed percentage share is admissible given the
  beneficiaries already attached to the payment type. Pure functions over a
  snapshot; the caller is responsible for reading that snapshot inside the
  same transaction that writes the result.

THE RULE:
  others = sum of existing percentages, skipping ExcludeID

  fixed-pool candidate:      total = candidate.Percentage + others
  variable-share candidate:  total = others
                             (vendor / super vendor: paid from
                             per-transaction cuts, so its own share does
                             not count against the pool)

  total > 100  ->  AllocationExceededError

UPDATES:
  The record being updated must be passed as ExcludeID. Otherwise its old
  percentage is summed next to its new one and a legal change from X to Y
  is rejected whenever the pool is already full.

EXAMPLE:
  total, err := allocation.Validate(existing, allocation.Candidate{
      PaymentType: ptID,
      Percentage:  decimal.NewFromInt(20),
      Role:        ledger.RoleBeneficiary,
  })

SEE ALSO:
  - audit.go: after-the-fact checks over stored records
  - beneficiary/manager.go: the transactional caller
*/
package allocation

import (
	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/ledger"
)

// Candidate is a proposed share.
type Candidate struct {
	PaymentType ledger.PaymentTypeID
	Percentage  decimal.Decimal
	Role        ledger.Role
	ExcludeID   ledger.BeneficiaryID // empty on create
}

// Validate returns the computed total, or an AllocationExceededError when
// it passes 100.
func Validate(existing []ledger.Beneficiary, c Candidate) (decimal.Decimal, error) {
	total := sumExcluding(existing, c.ExcludeID)
	if !c.Role.IsVariableShare() {
		total = total.Add(c.Percentage)
	}

	if total.GreaterThan(ledger.MaxPercentage) {
		return total, &ledger.AllocationExceededError{
			PaymentType: c.PaymentType,
			Requested:   c.Percentage,
			Total:       total,
		}
	}
	return total, nil
}

func sumExcluding(bs []ledger.Beneficiary, exclude ledger.BeneficiaryID) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range bs {
		if exclude != "" && b.ID == exclude {
			continue
		}
		sum = sum.Add(b.Percentage)
	}
	return sum
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary splits a payment type's shares by pool.
type Summary struct {
	PaymentType   ledger.PaymentTypeID
	FixedTotal    decimal.Decimal
	VariableTotal decimal.Decimal
	Total         decimal.Decimal
	// Remaining is what a new fixed-pool candidate could still take.
	Remaining decimal.Decimal
	Count     int
}

// Summarize totals the shares of one payment type.
func Summarize(id ledger.PaymentTypeID, existing []ledger.Beneficiary) Summary {
	s := Summary{
		PaymentType:   id,
		FixedTotal:    decimal.Zero,
		VariableTotal: decimal.Zero,
		Count:         len(existing),
	}
	for _, b := range existing {
		if b.Role.IsVariableShare() {
			s.VariableTotal = s.VariableTotal.Add(b.Percentage)
		} else {
			s.FixedTotal = s.FixedTotal.Add(b.Percentage)
		}
	}
	s.Total = s.FixedTotal.Add(s.VariableTotal)
	s.Remaining = ledger.MaxPercentage.Sub(s.Total)
	if s.Remaining.IsNegative() {
		s.Remaining = decimal.Zero
	}
	return s
}
