// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/revenue-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a ledger.TxStore held in maps. WithTx works on a copy of the
// state and swaps it in on success, so a failed transaction leaves nothing
// behind. Writers are serialised by the mutex.
type Memory struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	users         map[ledger.UserID]ledger.User
	userOrder     []ledger.UserID
	paymentTypes  map[ledger.PaymentTypeID]ledger.PaymentType
	ptOrder       []ledger.PaymentTypeID
	beneficiaries map[ledger.BeneficiaryID]ledger.Beneficiary
	order         []ledger.BeneficiaryID // insertion order
}

var _ ledger.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		users:         make(map[ledger.UserID]ledger.User),
		paymentTypes:  make(map[ledger.PaymentTypeID]ledger.PaymentType),
		beneficiaries: make(map[ledger.BeneficiaryID]ledger.Beneficiary),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.paymentTypes {
		v.Beneficiaries = append([]ledger.BeneficiaryID(nil), v.Beneficiaries...)
		c.paymentTypes[k] = v
	}
	for k, v := range s.beneficiaries {
		c.beneficiaries[k] = v
	}
	c.userOrder = append(c.userOrder, s.userOrder...)
	c.ptOrder = append(c.ptOrder, s.ptOrder...)
	c.order = append(c.order, s.order...)
	return c
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a private copy of the state and commits it if fn
// succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return ledger.WrapStore("commit", err)
	}
	m.state = working
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newMemState()
	return nil
}

// =============================================================================
// LOCKED DELEGATES
// =============================================================================

func (m *Memory) SaveUser(ctx context.Context, u ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SaveUser(ctx, u)
}

func (m *Memory) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetUser(ctx, id)
}

func (m *Memory) ListUsers(ctx context.Context) ([]ledger.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListUsers(ctx)
}

func (m *Memory) SavePaymentType(ctx context.Context, p ledger.PaymentType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SavePaymentType(ctx, p)
}

func (m *Memory) GetPaymentType(ctx context.Context, id ledger.PaymentTypeID) (*ledger.PaymentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetPaymentType(ctx, id)
}

func (m *Memory) ListPaymentTypes(ctx context.Context) ([]ledger.PaymentType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListPaymentTypes(ctx)
}

func (m *Memory) AddPaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AddPaymentTypeReference(ctx, id, bID)
}

func (m *Memory) RemovePaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RemovePaymentTypeReference(ctx, id, bID)
}

func (m *Memory) PaymentTypesReferencing(ctx context.Context, bID ledger.BeneficiaryID) ([]ledger.PaymentTypeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.PaymentTypesReferencing(ctx, bID)
}

func (m *Memory) SaveBeneficiary(ctx context.Context, b ledger.Beneficiary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SaveBeneficiary(ctx, b)
}

func (m *Memory) GetBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (*ledger.Beneficiary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetBeneficiary(ctx, id)
}

func (m *Memory) FindBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter) ([]ledger.Beneficiary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.FindBeneficiaries(ctx, f)
}

func (m *Memory) ListBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter, offset, limit int) ([]ledger.Beneficiary, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListBeneficiaries(ctx, f, offset, limit)
}

func (m *Memory) DeleteBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteBeneficiary(ctx, id)
}

// =============================================================================
// UNLOCKED STATE (also the Store handed to WithTx callbacks)
// =============================================================================

func (s *memState) SaveUser(_ context.Context, u ledger.User) error {
	if _, ok := s.users[u.ID]; !ok {
		s.userOrder = append(s.userOrder, u.ID)
	}
	s.users[u.ID] = u
	return nil
}

func (s *memState) GetUser(_ context.Context, id ledger.UserID) (*ledger.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *memState) ListUsers(_ context.Context) ([]ledger.User, error) {
	out := make([]ledger.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *memState) SavePaymentType(_ context.Context, p ledger.PaymentType) error {
	if _, ok := s.paymentTypes[p.ID]; !ok {
		s.ptOrder = append(s.ptOrder, p.ID)
	}
	p.Beneficiaries = append([]ledger.BeneficiaryID(nil), p.Beneficiaries...)
	s.paymentTypes[p.ID] = p
	return nil
}

func (s *memState) GetPaymentType(_ context.Context, id ledger.PaymentTypeID) (*ledger.PaymentType, error) {
	p, ok := s.paymentTypes[id]
	if !ok {
		return nil, nil
	}
	p.Beneficiaries = append([]ledger.BeneficiaryID(nil), p.Beneficiaries...)
	return &p, nil
}

func (s *memState) ListPaymentTypes(ctx context.Context) ([]ledger.PaymentType, error) {
	out := make([]ledger.PaymentType, 0, len(s.ptOrder))
	for _, id := range s.ptOrder {
		p, _ := s.GetPaymentType(ctx, id)
		out = append(out, *p)
	}
	return out, nil
}

func (s *memState) AddPaymentTypeReference(_ context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) error {
	p, ok := s.paymentTypes[id]
	if !ok {
		return &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: string(id)}
	}
	if p.References(bID) {
		return nil
	}
	p.Beneficiaries = append(append([]ledger.BeneficiaryID(nil), p.Beneficiaries...), bID)
	s.paymentTypes[id] = p
	return nil
}

func (s *memState) RemovePaymentTypeReference(_ context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) (bool, error) {
	p, ok := s.paymentTypes[id]
	if !ok {
		return false, nil
	}
	kept := make([]ledger.BeneficiaryID, 0, len(p.Beneficiaries))
	for _, ref := range p.Beneficiaries {
		if ref != bID {
			kept = append(kept, ref)
		}
	}
	removed := len(kept) != len(p.Beneficiaries)
	p.Beneficiaries = kept
	s.paymentTypes[id] = p
	return removed, nil
}

func (s *memState) PaymentTypesReferencing(_ context.Context, bID ledger.BeneficiaryID) ([]ledger.PaymentTypeID, error) {
	var ids []ledger.PaymentTypeID
	for _, id := range s.ptOrder {
		if s.paymentTypes[id].References(bID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memState) SaveBeneficiary(_ context.Context, b ledger.Beneficiary) error {
	if _, ok := s.beneficiaries[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	s.beneficiaries[b.ID] = b
	return nil
}

func (s *memState) GetBeneficiary(_ context.Context, id ledger.BeneficiaryID) (*ledger.Beneficiary, error) {
	b, ok := s.beneficiaries[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *memState) FindBeneficiaries(_ context.Context, f ledger.BeneficiaryFilter) ([]ledger.Beneficiary, error) {
	var out []ledger.Beneficiary
	for _, id := range s.order {
		if b := s.beneficiaries[id]; f.Matches(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memState) ListBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter, offset, limit int) ([]ledger.Beneficiary, int, error) {
	all, _ := s.FindBeneficiaries(ctx, f)
	total := len(all)
	if offset < 0 || limit <= 0 || offset >= total {
		return []ledger.Beneficiary{}, total, nil
	}
	end := offset + limit
	if end > total || end < offset {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *memState) DeleteBeneficiary(_ context.Context, id ledger.BeneficiaryID) (bool, error) {
	if _, ok := s.beneficiaries[id]; !ok {
		return false, nil
	}
	delete(s.beneficiaries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}
