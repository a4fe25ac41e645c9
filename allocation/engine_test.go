package allocation_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/allocation"
	"github.com/warp/revenue-engine/ledger"
	"github.com/warp/revenue-engine/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const pt ledger.PaymentTypeID = "pt-1"

func pct(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func share(id string, p int64, role ledger.Role) ledger.Beneficiary {
	return ledger.Beneficiary{
		ID:          ledger.BeneficiaryID(id),
		User:        ledger.UserID("user-" + id),
		Percentage:  pct(p),
		Role:        role,
		PaymentType: pt,
	}
}

// =============================================================================
// FIXED-POOL CANDIDATES
// =============================================================================

func TestValidate_FixedCandidateWithinCap(t *testing.T) {
	// GIVEN: one fixed-pool beneficiary at 70%
	existing := []ledger.Beneficiary{share("b1", 70, ledger.RoleBeneficiary)}

	// WHEN: a fixed-pool candidate asks for 20%
	total, err := allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(20), Role: ledger.RoleBeneficiary,
	})

	// THEN: admitted with a total of 90
	require.NoError(t, err)
	assert.True(t, total.Equal(pct(90)), "got %s", total)
}

func TestValidate_FixedCandidateOverCap(t *testing.T) {
	existing := []ledger.Beneficiary{share("b1", 70, ledger.RoleBeneficiary)}

	total, err := allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(40), Role: ledger.RoleAgent,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrAllocationExceeded)
	var exceeded *ledger.AllocationExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.True(t, exceeded.Total.Equal(pct(110)))
	assert.True(t, total.Equal(pct(110)))
	assert.Equal(t, pt, exceeded.PaymentType)
}

func TestValidate_ExactlyHundredAllowed(t *testing.T) {
	existing := []ledger.Beneficiary{share("b1", 60, ledger.RoleAdmin)}

	_, err := allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(40), Role: ledger.RoleAdmin,
	})
	assert.NoError(t, err)
}

func TestValidate_NonVendorFiftyOverExistingSixty(t *testing.T) {
	existing := []ledger.Beneficiary{
		share("b1", 35, ledger.RoleBeneficiary),
		share("b2", 25, ledger.RoleAgent),
	}

	_, err := allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(50), Role: ledger.RoleBeneficiary,
	})
	assert.ErrorIs(t, err, ledger.ErrAllocationExceeded)
}

func TestValidate_DecimalPrecision(t *testing.T) {
	// 33.33 + 33.33 + 33.34 must be exactly 100, not 100.00000001
	existing := []ledger.Beneficiary{
		{ID: "a", Percentage: decimal.RequireFromString("33.33"), Role: ledger.RoleBeneficiary},
		{ID: "b", Percentage: decimal.RequireFromString("33.33"), Role: ledger.RoleBeneficiary},
	}
	total, err := allocation.Validate(existing, allocation.Candidate{
		Percentage: decimal.RequireFromString("33.34"), Role: ledger.RoleBeneficiary,
	})
	require.NoError(t, err)
	assert.True(t, total.Equal(pct(100)))
}

// =============================================================================
// VARIABLE-SHARE CANDIDATES
// =============================================================================

func TestValidate_VendorOwnShareExcluded(t *testing.T) {
	// GIVEN: a vendor already holds 100%
	existing := []ledger.Beneficiary{share("v1", 100, ledger.RoleVendor)}

	// WHEN: a second vendor asks for 100%
	total, err := allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(100), Role: ledger.RoleVendor,
	})

	// THEN: admitted; only the existing 100 counts
	require.NoError(t, err)
	assert.True(t, total.Equal(pct(100)))
}

func TestValidate_SuperVendorStillBoundByExisting(t *testing.T) {
	// The candidate's own share is skipped but the others are not.
	existing := []ledger.Beneficiary{
		share("b1", 80, ledger.RoleBeneficiary),
		share("v1", 30, ledger.RoleVendor),
	}

	_, err := allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(1), Role: ledger.RoleSuperVendor,
	})
	assert.ErrorIs(t, err, ledger.ErrAllocationExceeded)
}

// =============================================================================
// UPDATE EXCLUSION
// =============================================================================

func TestValidate_ExcludeIDPreventsDoubleCount(t *testing.T) {
	// GIVEN: the pool is full, b1 holds 40
	existing := []ledger.Beneficiary{
		share("b1", 40, ledger.RoleBeneficiary),
		share("b2", 60, ledger.RoleBeneficiary),
	}

	// WHEN: b1 moves from 40 to 30
	total, err := allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(30), Role: ledger.RoleBeneficiary, ExcludeID: "b1",
	})

	// THEN: 60 + 30 = 90
	require.NoError(t, err)
	assert.True(t, total.Equal(pct(90)))

	// Without the exclusion the same change would be rejected.
	_, err = allocation.Validate(existing, allocation.Candidate{
		PaymentType: pt, Percentage: pct(30), Role: ledger.RoleBeneficiary,
	})
	assert.ErrorIs(t, err, ledger.ErrAllocationExceeded)
}

// =============================================================================
// SUMMARY / AUDIT
// =============================================================================

func TestSummarize(t *testing.T) {
	s := allocation.Summarize(pt, []ledger.Beneficiary{
		share("b1", 50, ledger.RoleBeneficiary),
		share("b2", 20, ledger.RoleAgent),
		share("v1", 10, ledger.RoleVendor),
	})

	assert.True(t, s.FixedTotal.Equal(pct(70)))
	assert.True(t, s.VariableTotal.Equal(pct(10)))
	assert.True(t, s.Total.Equal(pct(80)))
	assert.True(t, s.Remaining.Equal(pct(20)))
	assert.Equal(t, 3, s.Count)
}

func TestSummarize_RemainingNeverNegative(t *testing.T) {
	s := allocation.Summarize(pt, []ledger.Beneficiary{
		share("v1", 100, ledger.RoleVendor),
		share("v2", 100, ledger.RoleVendor),
	})
	assert.True(t, s.Remaining.IsZero())
}

func TestCheck_ReportsOverAllocatedRecords(t *testing.T) {
	// Two fixed-pool records at 70 each: each fails when re-validated
	// against the other.
	breaches := allocation.Check(pt, []ledger.Beneficiary{
		share("b1", 70, ledger.RoleBeneficiary),
		share("b2", 70, ledger.RoleBeneficiary),
	})
	require.Len(t, breaches, 2)
	assert.True(t, breaches[0].Total.Equal(pct(140)))
}

func TestCheck_VendorShareSkippedForItself(t *testing.T) {
	breaches := allocation.Check(pt, []ledger.Beneficiary{
		share("b1", 70, ledger.RoleBeneficiary),
		share("v1", 100, ledger.RoleVendor),
	})
	// v1 sees 70 (its own share skipped); b1 sees 70 + 100.
	require.Len(t, breaches, 1)
	assert.Equal(t, ledger.BeneficiaryID("b1"), breaches[0].Beneficiary)
}

func TestAudit_ScansEveryPaymentType(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.SavePaymentType(ctx, ledger.PaymentType{ID: "pt-a", Name: "A"}))
	require.NoError(t, mem.SavePaymentType(ctx, ledger.PaymentType{ID: "pt-b", Name: "B"}))

	over := func(id string, p ledger.PaymentTypeID) ledger.Beneficiary {
		b := share(id, 60, ledger.RoleBeneficiary)
		b.PaymentType = p
		return b
	}
	require.NoError(t, mem.SaveBeneficiary(ctx, over("a1", "pt-a")))
	require.NoError(t, mem.SaveBeneficiary(ctx, over("a2", "pt-a")))
	require.NoError(t, mem.SaveBeneficiary(ctx, over("b1", "pt-b")))

	breaches, err := allocation.Audit(ctx, mem)
	require.NoError(t, err)
	require.Len(t, breaches, 2)
	for _, b := range breaches {
		assert.Equal(t, ledger.PaymentTypeID("pt-a"), b.PaymentType)
	}
}
