package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/ledger"
)

func share(pt ledger.PaymentTypeID, pct int64) ledger.Beneficiary {
	return ledger.Beneficiary{
		ID:          ledger.NewBeneficiaryID(),
		User:        ledger.NewUserID(),
		Percentage:  decimal.NewFromInt(pct),
		Role:        ledger.RoleAgent,
		PaymentType: pt,
	}
}

func TestMemory_MissingRecordsReturnNil(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	u, err := m.GetUser(ctx, ledger.NewUserID())
	assert.NoError(t, err)
	assert.Nil(t, u)

	b, err := m.GetBeneficiary(ctx, ledger.NewBeneficiaryID())
	assert.NoError(t, err)
	assert.Nil(t, b)

	removed, err := m.DeleteBeneficiary(ctx, ledger.NewBeneficiaryID())
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestMemory_InsertionOrderAndPaging(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	pt := ledger.NewPaymentTypeID()

	var ids []ledger.BeneficiaryID
	for i := int64(1); i <= 5; i++ {
		b := share(pt, i)
		ids = append(ids, b.ID)
		require.NoError(t, m.SaveBeneficiary(ctx, b))
	}
	// Re-saving keeps the original position.
	first, _ := m.GetBeneficiary(ctx, ids[0])
	first.Percentage = decimal.NewFromInt(9)
	require.NoError(t, m.SaveBeneficiary(ctx, *first))

	page, total, err := m.ListBeneficiaries(ctx, ledger.BeneficiaryFilter{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []ledger.BeneficiaryID{ids[0], ids[1]}, []ledger.BeneficiaryID{page[0].ID, page[1].ID})

	page, _, err = m.ListBeneficiaries(ctx, ledger.BeneficiaryFilter{}, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	// GIVEN: a store with one payment type
	m := NewMemory()
	ctx := context.Background()
	pt := ledger.PaymentType{ID: ledger.NewPaymentTypeID(), Name: "Levy"}
	require.NoError(t, m.SavePaymentType(ctx, pt))

	// WHEN: a transaction writes then fails
	boom := errors.New("boom")
	b := share(pt.ID, 10)
	err := m.WithTx(ctx, func(tx ledger.Store) error {
		require.NoError(t, tx.SaveBeneficiary(ctx, b))
		require.NoError(t, tx.AddPaymentTypeReference(ctx, pt.ID, b.ID))
		return boom
	})

	// THEN: nothing it wrote is visible
	assert.ErrorIs(t, err, boom)
	got, _ := m.GetBeneficiary(ctx, b.ID)
	assert.Nil(t, got)
	stored, _ := m.GetPaymentType(ctx, pt.ID)
	assert.Empty(t, stored.Beneficiaries)
}

func TestMemory_References(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	pt := ledger.PaymentType{ID: ledger.NewPaymentTypeID(), Name: "Levy"}
	require.NoError(t, m.SavePaymentType(ctx, pt))
	b := ledger.NewBeneficiaryID()

	require.NoError(t, m.AddPaymentTypeReference(ctx, pt.ID, b))
	require.NoError(t, m.AddPaymentTypeReference(ctx, pt.ID, b))
	refs, err := m.PaymentTypesReferencing(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []ledger.PaymentTypeID{pt.ID}, refs)

	err = m.AddPaymentTypeReference(ctx, ledger.NewPaymentTypeID(), b)
	assert.True(t, ledger.IsNotFound(err))

	removed, err := m.RemovePaymentTypeReference(ctx, pt.ID, b)
	require.NoError(t, err)
	assert.True(t, removed)
	refs, _ = m.PaymentTypesReferencing(ctx, b)
	assert.Empty(t, refs)
}
