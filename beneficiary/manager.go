/*
Package beneficiary manages the lifecycle of beneficiary shares.

PURPOSE:
  Create, update and delete beneficiaries against the Ledger Store while
  keeping two invariants:

    A. at most one beneficiary per (user, payment type)
    B. the percentage total of a payment type stays within 100%
       (see allocation/engine.go for the role-dependent rule)

TRANSACTIONS:
  Every mutating call is exactly one TxStore.WithTx. All reads that feed an
  invariant check happen inside it, and any error rolls the whole call back.
  No state is kept between calls.

  Create:  validate -> tx{ user, payment type, duplicates, siblings,
           allocation.Validate, save } -> publish
  Update:  validate -> tx{ target, exact-duplicate, apply, link check, siblings,
           allocation.Validate(exclude target), save } -> publish
  Delete:  tx{ referential block, delete } -> publish

EVENTS:
  Published after commit. A publish failure is logged; the request still
  succeeds because the data change is already durable.

SEE ALSO:
  - list.go: paginated listing with per-user dedupe
  - references.go: payment type reference list maintenance
  - ledger/errors.go: error taxonomy
*/
package beneficiary

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/warp/revenue-engine/allocation"
	"github.com/warp/revenue-engine/ledger"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager is the Beneficiary Lifecycle Manager.
type Manager struct {
	store     ledger.TxStore
	publisher Publisher
	exchange  string
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Manager)

// WithPublisher sends committed changes to exchange through p.
func WithPublisher(p Publisher, exchange string) Option {
	return func(m *Manager) {
		m.publisher = p
		if exchange != "" {
			m.exchange = exchange
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store ledger.TxStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		exchange: DefaultExchange,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// =============================================================================
// CREATE
// =============================================================================

// Create adds a beneficiary share. actor is recorded as CreatedBy.
func (m *Manager) Create(ctx context.Context, in CreateInput, actor string) (*ledger.Beneficiary, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	userID := ledger.UserID(in.UserID)
	ptID := ledger.PaymentTypeID(in.PaymentTypeID)
	percentage := *in.Percentage

	var created ledger.Beneficiary
	err := m.store.WithTx(ctx, func(s ledger.Store) error {
		user, err := s.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return &ledger.NotFoundError{Kind: ledger.KindUser, ID: in.UserID}
		}

		pt, err := s.GetPaymentType(ctx, ptID)
		if err != nil {
			return err
		}
		if pt == nil {
			return &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: in.PaymentTypeID}
		}

		held, err := s.FindBeneficiaries(ctx, ledger.BeneficiaryFilter{UserID: &userID, PaymentTypeID: &ptID})
		if err != nil {
			return err
		}
		for _, b := range held {
			if b.Percentage.Equal(percentage) {
				return ledger.ErrDuplicateExact
			}
		}
		if len(held) > 0 {
			return ledger.ErrDuplicateUserPaymentType
		}

		siblings, err := s.FindBeneficiaries(ctx, ledger.BeneficiaryFilter{PaymentTypeID: &ptID})
		if err != nil {
			return err
		}
		if _, err := allocation.Validate(siblings, allocation.Candidate{
			PaymentType: ptID,
			Percentage:  percentage,
			Role:        user.Role,
		}); err != nil {
			return err
		}

		now := m.now().UTC()
		created = ledger.Beneficiary{
			ID:          ledger.NewBeneficiaryID(),
			User:        userID,
			Percentage:  percentage,
			Role:        user.Role,
			PaymentType: ptID,
			CreatedBy:   actor,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.SaveBeneficiary(ctx, created)
	})
	if err != nil {
		return nil, ledger.WrapStore("create beneficiary", err)
	}

	m.logger.Info("beneficiary created",
		"beneficiary", created.ID, "user", created.User,
		"payment_type", created.PaymentType, "percentage", created.Percentage.String())
	m.publish(ctx, EventCreated, created, actor)
	return &created, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// Update applies the supplied fields to an existing beneficiary.
func (m *Manager) Update(ctx context.Context, id string, in UpdateInput, actor string) (*ledger.Beneficiary, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	if !ledger.ValidID(id) {
		return nil, &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: id}
	}
	bID := ledger.BeneficiaryID(id)

	var updated ledger.Beneficiary
	err := m.store.WithTx(ctx, func(s ledger.Store) error {
		current, err := s.GetBeneficiary(ctx, bID)
		if err != nil {
			return err
		}
		if current == nil {
			return &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: id}
		}

		if in.hasTriple() {
			uid, ptid := ledger.UserID(*in.UserID), ledger.PaymentTypeID(*in.PaymentTypeID)
			matches, err := s.FindBeneficiaries(ctx, ledger.BeneficiaryFilter{
				UserID: &uid, PaymentTypeID: &ptid, Percentage: in.Percentage,
			})
			if err != nil {
				return err
			}
			for _, b := range matches {
				if b.ID != bID {
					return ledger.ErrDuplicateExact
				}
			}
		}

		next, err := m.apply(ctx, s, *current, in)
		if err != nil {
			return err
		}

		// A linked share stays on its payment type until it is unlinked.
		if next.PaymentType != current.PaymentType {
			refs, err := s.PaymentTypesReferencing(ctx, bID)
			if err != nil {
				return err
			}
			if len(refs) > 0 {
				return &ledger.ReferentialBlockError{Beneficiary: bID, PaymentTypes: refs}
			}
		}

		if next.User != current.User || next.PaymentType != current.PaymentType {
			held, err := s.FindBeneficiaries(ctx, ledger.BeneficiaryFilter{UserID: &next.User, PaymentTypeID: &next.PaymentType})
			if err != nil {
				return err
			}
			for _, b := range held {
				if b.ID != bID {
					return ledger.ErrDuplicateUserPaymentType
				}
			}
		}

		siblings, err := s.FindBeneficiaries(ctx, ledger.BeneficiaryFilter{PaymentTypeID: &next.PaymentType})
		if err != nil {
			return err
		}
		if _, err := allocation.Validate(siblings, allocation.Candidate{
			PaymentType: next.PaymentType,
			Percentage:  next.Percentage,
			Role:        next.Role,
			ExcludeID:   bID,
		}); err != nil {
			return err
		}

		next.UpdatedAt = m.now().UTC()
		updated = next
		return s.SaveBeneficiary(ctx, updated)
	})
	if err != nil {
		return nil, ledger.WrapStore("update beneficiary", err)
	}

	m.logger.Info("beneficiary updated",
		"beneficiary", updated.ID, "payment_type", updated.PaymentType,
		"percentage", updated.Percentage.String(), "actor", actor)
	m.publish(ctx, EventUpdated, updated, actor)
	return &updated, nil
}

// apply copies the supplied fields onto b. A new user or payment type must
// exist; a new user without an explicit role re-snapshots the role.
func (m *Manager) apply(ctx context.Context, s ledger.Store, b ledger.Beneficiary, in UpdateInput) (ledger.Beneficiary, error) {
	if in.UserID != nil && ledger.UserID(*in.UserID) != b.User {
		user, err := s.GetUser(ctx, ledger.UserID(*in.UserID))
		if err != nil {
			return b, err
		}
		if user == nil {
			return b, &ledger.NotFoundError{Kind: ledger.KindUser, ID: *in.UserID}
		}
		b.User = user.ID
		b.Role = user.Role
	}
	if in.PaymentTypeID != nil && ledger.PaymentTypeID(*in.PaymentTypeID) != b.PaymentType {
		pt, err := s.GetPaymentType(ctx, ledger.PaymentTypeID(*in.PaymentTypeID))
		if err != nil {
			return b, err
		}
		if pt == nil {
			return b, &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: *in.PaymentTypeID}
		}
		b.PaymentType = pt.ID
	}
	if in.Percentage != nil {
		b.Percentage = *in.Percentage
	}
	if in.Role != nil {
		b.Role = ledger.Role(*in.Role)
	}
	return b, nil
}

// =============================================================================
// DELETE / GET
// =============================================================================

// Delete removes a beneficiary no payment type references and returns its
// last state.
func (m *Manager) Delete(ctx context.Context, id string, actor string) (*ledger.Beneficiary, error) {
	if !ledger.ValidID(id) {
		return nil, &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: id}
	}
	bID := ledger.BeneficiaryID(id)

	var deleted ledger.Beneficiary
	err := m.store.WithTx(ctx, func(s ledger.Store) error {
		refs, err := s.PaymentTypesReferencing(ctx, bID)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return &ledger.ReferentialBlockError{Beneficiary: bID, PaymentTypes: refs}
		}

		current, err := s.GetBeneficiary(ctx, bID)
		if err != nil {
			return err
		}
		if current == nil {
			return &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: id}
		}
		ok, err := s.DeleteBeneficiary(ctx, bID)
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: id}
		}
		deleted = *current
		return nil
	})
	if err != nil {
		return nil, ledger.WrapStore("delete beneficiary", err)
	}

	m.logger.Info("beneficiary deleted", "beneficiary", deleted.ID, "actor", actor)
	m.publish(ctx, EventDeleted, deleted, actor)
	return &deleted, nil
}

// Get returns one beneficiary.
func (m *Manager) Get(ctx context.Context, id string) (*ledger.Beneficiary, error) {
	if !ledger.ValidID(id) {
		return nil, &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: id}
	}
	b, err := m.store.GetBeneficiary(ctx, ledger.BeneficiaryID(id))
	if err != nil {
		return nil, ledger.WrapStore("get beneficiary", err)
	}
	if b == nil {
		return nil, &ledger.NotFoundError{Kind: ledger.KindBeneficiary, ID: id}
	}
	return b, nil
}
