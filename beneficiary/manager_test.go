package beneficiary_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/revenue-engine/beneficiary"
	"github.com/warp/revenue-engine/ledger"
	"github.com/warp/revenue-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *store.Memory
	mgr   *beneficiary.Manager
	pub   *recordingPublisher
}

type published struct {
	exchange, key string
	event         beneficiary.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, key string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{exchange: exchange, key: key, event: body.(beneficiary.Event)})
	return p.err
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var keys []string
	for _, e := range p.events {
		keys = append(keys, e.key)
	}
	return keys
}

func newFixture(t *testing.T) *fixture {
	mem := store.NewMemory()
	pub := &recordingPublisher{}
	fixed := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: mem,
		pub:   pub,
		mgr: beneficiary.NewManager(mem,
			beneficiary.WithPublisher(pub, "test_exchange"),
			beneficiary.WithClock(func() time.Time { return fixed })),
	}
}

func (f *fixture) user(role ledger.Role) ledger.UserID {
	u := ledger.User{ID: ledger.NewUserID(), Name: string(role), Role: role}
	require.NoError(f.t, f.store.SaveUser(f.ctx, u))
	return u.ID
}

func (f *fixture) paymentType(name string) ledger.PaymentTypeID {
	p := ledger.PaymentType{ID: ledger.NewPaymentTypeID(), Name: name}
	require.NoError(f.t, f.store.SavePaymentType(f.ctx, p))
	return p.ID
}

func (f *fixture) create(u ledger.UserID, p int64, pt ledger.PaymentTypeID) (*ledger.Beneficiary, error) {
	return f.mgr.Create(f.ctx, beneficiary.CreateInput{
		UserID:        string(u),
		Percentage:    pctPtr(p),
		PaymentTypeID: string(pt),
	}, "actor-1")
}

func (f *fixture) mustCreate(u ledger.UserID, p int64, pt ledger.PaymentTypeID) *ledger.Beneficiary {
	b, err := f.create(u, p, pt)
	require.NoError(f.t, err)
	return b
}

func pctPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func strPtr(s string) *string { return &s }

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_SnapshotsRoleAndActor(t *testing.T) {
	f := newFixture(t)
	u := f.user(ledger.RoleAgent)
	pt := f.paymentType("Market levy")

	b, err := f.create(u, 25, pt)

	require.NoError(t, err)
	assert.True(t, ledger.ValidID(string(b.ID)))
	assert.Equal(t, ledger.RoleAgent, b.Role)
	assert.Equal(t, "actor-1", b.CreatedBy)
	assert.True(t, b.Percentage.Equal(decimal.NewFromInt(25)))

	stored, err := f.store.GetBeneficiary(f.ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *b, *stored)
}

func TestCreate_RoleSnapshotSurvivesUserRoleChange(t *testing.T) {
	f := newFixture(t)
	u := f.user(ledger.RoleAgent)
	pt := f.paymentType("Market levy")
	b := f.mustCreate(u, 25, pt)

	// The user is promoted after the share was written.
	require.NoError(t, f.store.SaveUser(f.ctx, ledger.User{ID: u, Role: ledger.RoleVendor}))

	got, err := f.mgr.Get(f.ctx, string(b.ID))
	require.NoError(t, err)
	assert.Equal(t, ledger.RoleAgent, got.Role)
}

func TestCreate_ValidationListsEveryField(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Create(f.ctx, beneficiary.CreateInput{
		UserID:        "not-an-id",
		Percentage:    pctPtr(101),
		PaymentTypeID: "",
	}, "")

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	assert.Equal(t, map[string]bool{"userId": true, "percentage": true, "paymentTypeId": true}, fields)
}

func TestCreate_PercentageRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Create(f.ctx, beneficiary.CreateInput{
		UserID:        string(ledger.NewUserID()),
		PaymentTypeID: string(ledger.NewPaymentTypeID()),
	}, "")

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "percentage", verr.Fields[0].Field)
}

func TestCreate_BoundaryPercentagesAccepted(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("Boundaries")

	_, err := f.create(f.user(ledger.RoleAgent), 0, pt)
	assert.NoError(t, err)
	_, err = f.create(f.user(ledger.RoleAgent), 100, pt)
	assert.NoError(t, err)
}

func TestCreate_PercentageScaleBounded(t *testing.T) {
	// GIVEN: a tiny body carrying a thirty-million-digit fraction
	f := newFixture(t)
	pt := f.paymentType("Scale")
	var huge decimal.Decimal
	require.NoError(t, json.Unmarshal([]byte("1e-30000000"), &huge))

	// WHEN: creating with it
	start := time.Now()
	_, err := f.mgr.Create(f.ctx, beneficiary.CreateInput{
		UserID:        string(f.user(ledger.RoleAgent)),
		Percentage:    &huge,
		PaymentTypeID: string(pt),
	}, "")

	// THEN: rejected as a field error before any arithmetic
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "percentage", verr.Fields[0].Field)
	assert.Equal(t, "must have at most 8 decimal places", verr.Fields[0].Message)
	assert.Less(t, time.Since(start), time.Second)

	// Eight places are fine, and so is a large positive exponent caught by range.
	fine := decimal.RequireFromString("12.12345678")
	_, err = f.mgr.Create(f.ctx, beneficiary.CreateInput{
		UserID: string(f.user(ledger.RoleAgent)), Percentage: &fine, PaymentTypeID: string(pt),
	}, "")
	assert.NoError(t, err)

	big := decimal.New(1, 30000000)
	_, err = f.mgr.Update(f.ctx, string(ledger.NewBeneficiaryID()), beneficiary.UpdateInput{Percentage: &big}, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be between 0 and 100", verr.Fields[0].Message)
}

func TestCreate_UnknownUser(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("Market levy")

	_, err := f.create(ledger.NewUserID(), 10, pt)

	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ledger.KindUser, nf.Kind)
	assert.Equal(t, "User not found", err.Error())
}

func TestCreate_UnknownPaymentType(t *testing.T) {
	f := newFixture(t)

	_, err := f.create(f.user(ledger.RoleAgent), 10, ledger.NewPaymentTypeID())

	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ledger.KindPaymentType, nf.Kind)
}

func TestCreate_DuplicateExact(t *testing.T) {
	f := newFixture(t)
	u := f.user(ledger.RoleAgent)
	pt := f.paymentType("Market levy")
	f.mustCreate(u, 30, pt)

	_, err := f.create(u, 30, pt)

	assert.ErrorIs(t, err, ledger.ErrDuplicateExact)
}

func TestCreate_DuplicateUserPaymentType(t *testing.T) {
	// GIVEN: the user already holds 30% of the payment type
	f := newFixture(t)
	u := f.user(ledger.RoleAgent)
	pt := f.paymentType("Market levy")
	f.mustCreate(u, 30, pt)

	// WHEN: a second share with a different percentage is requested
	_, err := f.create(u, 10, pt)

	// THEN: rejected; the existing share must be updated instead
	assert.ErrorIs(t, err, ledger.ErrDuplicateUserPaymentType)

	all, _ := f.store.FindBeneficiaries(f.ctx, ledger.BeneficiaryFilter{})
	assert.Len(t, all, 1)
}

func TestCreate_SameUserDifferentPaymentTypes(t *testing.T) {
	f := newFixture(t)
	u := f.user(ledger.RoleAgent)

	f.mustCreate(u, 30, f.paymentType("A"))
	f.mustCreate(u, 30, f.paymentType("B"))
}

// =============================================================================
// ALLOCATION SCENARIOS
// =============================================================================

func TestCreate_AllocationScenario(t *testing.T) {
	// GIVEN: payment type P with one fixed-pool beneficiary at 70%
	f := newFixture(t)
	pt := f.paymentType("P")
	f.mustCreate(f.user(ledger.RoleBeneficiary), 70, pt)
	u2 := f.user(ledger.RoleBeneficiary)

	// WHEN: U2 asks for 40%
	_, err := f.create(u2, 40, pt)

	// THEN: 70 + 40 = 110 is rejected and nothing is written
	require.ErrorIs(t, err, ledger.ErrAllocationExceeded)
	all, _ := f.store.FindBeneficiaries(f.ctx, ledger.BeneficiaryFilter{PaymentTypeID: &pt})
	assert.Len(t, all, 1)

	// WHEN: the same request with 20%
	_, err = f.create(u2, 20, pt)

	// THEN: accepted, total 90
	require.NoError(t, err)
	summary, err := f.mgr.Summary(f.ctx, string(pt))
	require.NoError(t, err)
	assert.True(t, summary.Total.Equal(decimal.NewFromInt(90)))
}

func TestCreate_VendorAtHundredBesideVendorAtHundred(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	f.mustCreate(f.user(ledger.RoleVendor), 100, pt)

	_, err := f.create(f.user(ledger.RoleVendor), 100, pt)
	assert.NoError(t, err)

	_, err = f.create(f.user(ledger.RoleSuperVendor), 100, pt)
	assert.ErrorIs(t, err, ledger.ErrAllocationExceeded, "baseline is now 200")
}

func TestCreate_NonVendorFiftyOverSixty(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	f.mustCreate(f.user(ledger.RoleAgent), 40, pt)
	f.mustCreate(f.user(ledger.RoleBeneficiary), 20, pt)

	_, err := f.create(f.user(ledger.RoleAdmin), 50, pt)
	assert.ErrorIs(t, err, ledger.ErrAllocationExceeded)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_OwnPercentageExcludedFromTotal(t *testing.T) {
	// GIVEN: the pool is full (60 + 40)
	f := newFixture(t)
	pt := f.paymentType("P")
	f.mustCreate(f.user(ledger.RoleAgent), 60, pt)
	b := f.mustCreate(f.user(ledger.RoleAgent), 40, pt)

	// WHEN: b goes from 40 to 35 (total - 40 + 35 = 95)
	updated, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{Percentage: pctPtr(35)}, "actor-2")

	// THEN: accepted
	require.NoError(t, err)
	assert.True(t, updated.Percentage.Equal(decimal.NewFromInt(35)))
	assert.Equal(t, b.CreatedBy, updated.CreatedBy)

	// And raising it back to exactly the cap is accepted too
	_, err = f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{Percentage: pctPtr(40)}, "")
	assert.NoError(t, err)
}

func TestUpdate_OverCapRejectedAndRolledBack(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	f.mustCreate(f.user(ledger.RoleAgent), 60, pt)
	b := f.mustCreate(f.user(ledger.RoleAgent), 40, pt)

	_, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{Percentage: pctPtr(41)}, "")
	require.ErrorIs(t, err, ledger.ErrAllocationExceeded)

	stored, _ := f.store.GetBeneficiary(f.ctx, b.ID)
	assert.True(t, stored.Percentage.Equal(decimal.NewFromInt(40)))
}

func TestUpdate_RoleChangeToVendorLiftsOwnShare(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	f.mustCreate(f.user(ledger.RoleAgent), 90, pt)
	b := f.mustCreate(f.user(ledger.RoleAgent), 10, pt)

	// As a fixed-pool share 50 would make 140; as a vendor only 90 counts.
	_, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{
		Percentage: pctPtr(50),
		Role:       strPtr(string(ledger.RoleVendor)),
	}, "")
	require.NoError(t, err)

	stored, _ := f.store.GetBeneficiary(f.ctx, b.ID)
	assert.Equal(t, ledger.RoleVendor, stored.Role)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Update(f.ctx, string(ledger.NewBeneficiaryID()), beneficiary.UpdateInput{Percentage: pctPtr(1)}, "")

	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ledger.KindBeneficiary, nf.Kind)
}

func TestUpdate_ValidatesOnlySuppliedFields(t *testing.T) {
	f := newFixture(t)
	b := f.mustCreate(f.user(ledger.RoleAgent), 10, f.paymentType("P"))

	_, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{
		Percentage: pctPtr(-1),
		Role:       strPtr("emperor"),
	}, "")

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestUpdate_DuplicateExactTriple(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	u1 := f.user(ledger.RoleAgent)
	f.mustCreate(u1, 20, pt)
	b2 := f.mustCreate(f.user(ledger.RoleAgent), 30, pt)

	_, err := f.mgr.Update(f.ctx, string(b2.ID), beneficiary.UpdateInput{
		UserID:        strPtr(string(u1)),
		Percentage:    pctPtr(20),
		PaymentTypeID: strPtr(string(pt)),
	}, "")
	assert.ErrorIs(t, err, ledger.ErrDuplicateExact)
}

func TestUpdate_TripleMatchingItselfIsNotDuplicate(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	u := f.user(ledger.RoleAgent)
	b := f.mustCreate(u, 20, pt)

	_, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{
		UserID:        strPtr(string(u)),
		Percentage:    pctPtr(20),
		PaymentTypeID: strPtr(string(pt)),
	}, "")
	assert.NoError(t, err)
}

func TestUpdate_MovingOntoHeldPairRejected(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	u1 := f.user(ledger.RoleAgent)
	f.mustCreate(u1, 20, pt)
	b2 := f.mustCreate(f.user(ledger.RoleAgent), 30, pt)

	_, err := f.mgr.Update(f.ctx, string(b2.ID), beneficiary.UpdateInput{UserID: strPtr(string(u1))}, "")
	assert.ErrorIs(t, err, ledger.ErrDuplicateUserPaymentType)
}

func TestUpdate_NewUserResnapshotsRole(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	b := f.mustCreate(f.user(ledger.RoleAgent), 20, pt)
	vendor := f.user(ledger.RoleVendor)

	updated, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{UserID: strPtr(string(vendor))}, "")
	require.NoError(t, err)
	assert.Equal(t, vendor, updated.User)
	assert.Equal(t, ledger.RoleVendor, updated.Role)
}

func TestUpdate_MoveToOtherPaymentTypeChecksItsPool(t *testing.T) {
	f := newFixture(t)
	from := f.paymentType("From")
	to := f.paymentType("To")
	f.mustCreate(f.user(ledger.RoleAgent), 80, to)
	b := f.mustCreate(f.user(ledger.RoleAgent), 30, from)

	_, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{PaymentTypeID: strPtr(string(to))}, "")
	assert.ErrorIs(t, err, ledger.ErrAllocationExceeded)

	_, err = f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{PaymentTypeID: strPtr(string(ledger.NewPaymentTypeID()))}, "")
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete_ReferentialBlock(t *testing.T) {
	// GIVEN: a beneficiary linked on its payment type
	f := newFixture(t)
	pt := f.paymentType("P")
	b := f.mustCreate(f.user(ledger.RoleAgent), 20, pt)
	_, err := f.mgr.Link(f.ctx, string(pt), string(b.ID))
	require.NoError(t, err)

	// WHEN: deleting it
	_, err = f.mgr.Delete(f.ctx, string(b.ID), "")

	// THEN: blocked
	var block *ledger.ReferentialBlockError
	require.ErrorAs(t, err, &block)
	assert.Equal(t, []ledger.PaymentTypeID{pt}, block.PaymentTypes)

	// WHEN: the reference is removed, delete succeeds and returns the prior state
	_, err = f.mgr.Unlink(f.ctx, string(pt), string(b.ID))
	require.NoError(t, err)
	deleted, err := f.mgr.Delete(f.ctx, string(b.ID), "")
	require.NoError(t, err)
	assert.Equal(t, b.ID, deleted.ID)

	_, err = f.mgr.Get(f.ctx, string(b.ID))
	assert.True(t, ledger.IsNotFound(err))
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Delete(f.ctx, string(ledger.NewBeneficiaryID()), "")
	assert.True(t, ledger.IsNotFound(err))
}

func TestLink_RejectsForeignPaymentType(t *testing.T) {
	f := newFixture(t)
	b := f.mustCreate(f.user(ledger.RoleAgent), 20, f.paymentType("A"))
	other := f.paymentType("B")

	_, err := f.mgr.Link(f.ctx, string(other), string(b.ID))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestUpdate_LinkedShareCannotChangePaymentType(t *testing.T) {
	// GIVEN: a share linked on payment type A
	f := newFixture(t)
	a, b := f.paymentType("A"), f.paymentType("B")
	share := f.mustCreate(f.user(ledger.RoleAgent), 20, a)
	_, err := f.mgr.Link(f.ctx, string(a), string(share.ID))
	require.NoError(t, err)

	// WHEN: moving it to B
	_, err = f.mgr.Update(f.ctx, string(share.ID), beneficiary.UpdateInput{PaymentTypeID: strPtr(string(b))}, "")

	// THEN: blocked, and the share stays on A
	var block *ledger.ReferentialBlockError
	require.ErrorAs(t, err, &block)
	assert.Equal(t, []ledger.PaymentTypeID{a}, block.PaymentTypes)
	got, err := f.mgr.Get(f.ctx, string(share.ID))
	require.NoError(t, err)
	assert.Equal(t, a, got.PaymentType)

	// Other fields of a linked share can still change.
	_, err = f.mgr.Update(f.ctx, string(share.ID), beneficiary.UpdateInput{Percentage: pctPtr(30), PaymentTypeID: strPtr(string(a))}, "")
	require.NoError(t, err)

	// Once unlinked the move goes through and nothing is left referencing it.
	_, err = f.mgr.Unlink(f.ctx, string(a), string(share.ID))
	require.NoError(t, err)
	moved, err := f.mgr.Update(f.ctx, string(share.ID), beneficiary.UpdateInput{PaymentTypeID: strPtr(string(b))}, "")
	require.NoError(t, err)
	assert.Equal(t, b, moved.PaymentType)
	_, err = f.mgr.Delete(f.ctx, string(share.ID), "")
	assert.NoError(t, err)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestEvents_PublishedAfterCommitOnly(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	u := f.user(ledger.RoleAgent)

	b := f.mustCreate(u, 20, pt)
	_, _ = f.create(u, 20, pt) // duplicate, no event
	_, err := f.mgr.Update(f.ctx, string(b.ID), beneficiary.UpdateInput{Percentage: pctPtr(25)}, "")
	require.NoError(t, err)
	_, err = f.mgr.Delete(f.ctx, string(b.ID), "")
	require.NoError(t, err)

	assert.Equal(t, []string{beneficiary.EventCreated, beneficiary.EventUpdated, beneficiary.EventDeleted}, f.pub.keys())
	assert.Equal(t, "test_exchange", f.pub.events[0].exchange)
	assert.Equal(t, string(b.ID), f.pub.events[0].event.ID)
	assert.Equal(t, "actor-1", f.pub.events[0].event.Actor)
}

func TestEvents_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	_, err := f.create(f.user(ledger.RoleAgent), 20, f.paymentType("P"))
	assert.NoError(t, err)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestProperty_InvariantsHoldAfterMixedSequence(t *testing.T) {
	f := newFixture(t)
	pt := f.paymentType("P")
	roles := []ledger.Role{ledger.RoleAgent, ledger.RoleVendor, ledger.RoleBeneficiary, ledger.RoleSuperVendor, ledger.RoleAdmin}
	users := make([]ledger.UserID, 0, len(roles))
	for _, r := range roles {
		users = append(users, f.user(r))
	}

	// Every request is attempted; only admissible ones succeed.
	for round := 0; round < 4; round++ {
		for i, u := range users {
			p := int64((i*37 + round*23) % 101)
			if _, err := f.create(u, p, pt); err != nil {
				held, _ := f.store.FindBeneficiaries(f.ctx, ledger.BeneficiaryFilter{UserID: &u, PaymentTypeID: &pt})
				if len(held) == 1 {
					_, _ = f.mgr.Update(f.ctx, string(held[0].ID), beneficiary.UpdateInput{Percentage: pctPtr(p)}, "")
				}
			}
		}
	}

	all, err := f.store.FindBeneficiaries(f.ctx, ledger.BeneficiaryFilter{PaymentTypeID: &pt})
	require.NoError(t, err)

	pairs := map[ledger.UserID]int{}
	for _, b := range all {
		pairs[b.User]++
	}
	for u, n := range pairs {
		assert.Equal(t, 1, n, "user %s holds %d shares", u, n)
	}

	// Each fixed-pool record, re-validated in place, still fits.
	fixed := decimal.Zero
	for _, b := range all {
		if !b.Role.IsVariableShare() {
			fixed = fixed.Add(b.Percentage)
		}
	}
	assert.True(t, fixed.LessThanOrEqual(ledger.MaxPercentage), "fixed pool at %s", fixed)
}
