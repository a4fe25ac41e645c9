package beneficiary

import (
	"context"

	"github.com/warp/revenue-engine/allocation"
	"github.com/warp/revenue-engine/ledger"
)

// Link adds a beneficiary to its payment type's reference list. A linked
// beneficiary cannot be deleted until Unlink.
func (m *Manager) Link(ctx context.Context, paymentTypeID, beneficiaryID string) (*ledger.PaymentType, error) {
	v := &ledger.ValidationError{}
	if !ledger.ValidID(beneficiaryID) {
		v.Add("beneficiaryId", "must be a valid beneficiary id")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	ptID, bID := ledger.PaymentTypeID(paymentTypeID), ledger.BeneficiaryID(beneficiaryID)

	var linked *ledger.PaymentType
	err := m.store.WithTx(ctx, func(s ledger.Store) error {
		pt, err := s.GetPaymentType(ctx, ptID)
		if err != nil {
			return err
		}
		if pt == nil {
			return &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: paymentTypeID}
		}
		b, err := s.GetBeneficiary(ctx, bID)
		if err != nil {
			return err
		}
		if b == nil {
			return &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: beneficiaryID}
		}
		if b.PaymentType != ptID {
			v.Add("beneficiaryId", "belongs to a different payment type")
			return v
		}
		if err := s.AddPaymentTypeReference(ctx, ptID, bID); err != nil {
			return err
		}
		linked, err = s.GetPaymentType(ctx, ptID)
		return err
	})
	if err != nil {
		return nil, ledger.WrapStore("link beneficiary", err)
	}
	return linked, nil
}

// Unlink removes a beneficiary from a payment type's reference list.
func (m *Manager) Unlink(ctx context.Context, paymentTypeID, beneficiaryID string) (*ledger.PaymentType, error) {
	ptID, bID := ledger.PaymentTypeID(paymentTypeID), ledger.BeneficiaryID(beneficiaryID)

	var unlinked *ledger.PaymentType
	err := m.store.WithTx(ctx, func(s ledger.Store) error {
		pt, err := s.GetPaymentType(ctx, ptID)
		if err != nil {
			return err
		}
		if pt == nil {
			return &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: paymentTypeID}
		}
		removed, err := s.RemovePaymentTypeReference(ctx, ptID, bID)
		if err != nil {
			return err
		}
		if !removed {
			return &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: beneficiaryID}
		}
		unlinked, err = s.GetPaymentType(ctx, ptID)
		return err
	})
	if err != nil {
		return nil, ledger.WrapStore("unlink beneficiary", err)
	}
	return unlinked, nil
}

// Summary reports how much of a payment type's pool is allocated.
func (m *Manager) Summary(ctx context.Context, paymentTypeID string) (*allocation.Summary, error) {
	ptID := ledger.PaymentTypeID(paymentTypeID)
	pt, err := m.store.GetPaymentType(ctx, ptID)
	if err != nil {
		return nil, ledger.WrapStore("get payment type", err)
	}
	if pt == nil {
		return nil, &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: paymentTypeID}
	}
	existing, err := m.store.FindBeneficiaries(ctx, ledger.BeneficiaryFilter{PaymentTypeID: &ptID})
	if err != nil {
		return nil, ledger.WrapStore("load beneficiaries", err)
	}
	s := allocation.Summarize(ptID, existing)
	return &s, nil
}
