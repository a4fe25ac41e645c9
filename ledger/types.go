/*
Package ledger provides the persisted model of the revenue collection engine.

PURPOSE:
  Users, payment types and beneficiaries live here, together with the
  storage interfaces every backend implements and the error taxonomy shared
  by the allocation engine, the lifecycle manager and the HTTP layer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Role: closed enumeration of user roles, split into fixed-pool and
    variable-share roles
  - User: externally owned identity, referenced by id only
  - PaymentType: a tax/levy category that beneficiaries attach to
  - Beneficiary: a percentage share of a payment type held by a user

DESIGN PRINCIPLES:
  1. Precision: percentages are decimal.Decimal, never float64
  2. Type Safety: distinct ID types so a user id cannot be passed as a
     payment type id
  3. Snapshots: Beneficiary.Role is copied from the user when written and
     never re-derived at read time

SEE ALSO:
  - store.go: persistence interfaces
  - errors.go: error taxonomy
  - allocation/engine.go: the percentage invariant
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type PaymentTypeID string
type BeneficiaryID string

// NewBeneficiaryID returns a fresh random identifier.
func NewBeneficiaryID() BeneficiaryID { return BeneficiaryID(uuid.NewString()) }

// NewUserID returns a fresh random identifier.
func NewUserID() UserID { return UserID(uuid.NewString()) }

// NewPaymentTypeID returns a fresh random identifier.
func NewPaymentTypeID() PaymentTypeID { return PaymentTypeID(uuid.NewString()) }

// ValidID reports whether s is a well-formed identifier.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleSuperAdmin  Role = "super_admin"
	RoleAgent       Role = "agent"
	RoleVendor      Role = "vendor"
	RoleSuperVendor Role = "super_vendor"
	RoleBeneficiary Role = "beneficiary"
)

var knownRoles = map[Role]bool{
	RoleAdmin:       true,
	RoleSuperAdmin:  true,
	RoleAgent:       true,
	RoleVendor:      true,
	RoleSuperVendor: true,
	RoleBeneficiary: true,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return knownRoles[r] }

// IsVariableShare reports whether shares held under this role are paid from
// per-transaction cuts rather than the fixed 100% pool.
func (r Role) IsVariableShare() bool {
	return r == RoleVendor || r == RoleSuperVendor
}

// =============================================================================
// PERCENTAGES
// =============================================================================

var (
	// MaxPercentage is the cap on the fixed allocation pool of a payment type.
	MaxPercentage = decimal.NewFromInt(100)
	minPercentage = decimal.Zero
)

// PercentageScale is the number of decimal places a percentage may carry.
const PercentageScale = 8

// maxPercentageExponent is the largest exponent 100 can be written with (1e2).
const maxPercentageExponent = 2

// ValidPercentageScale reports whether p's exponent lies within
// [-PercentageScale, 2]. It must hold before p is compared or summed:
// decimal arithmetic rescales both operands to the smaller exponent.
func ValidPercentageScale(p decimal.Decimal) bool {
	e := p.Exponent()
	return e >= -PercentageScale && e <= maxPercentageExponent
}

// ValidPercentage reports whether p lies in [0, 100] with at most
// PercentageScale decimal places.
func ValidPercentage(p decimal.Decimal) bool {
	return ValidPercentageScale(p) && !p.LessThan(minPercentage) && !p.GreaterThan(MaxPercentage)
}

// =============================================================================
// ENTITIES
// =============================================================================

// User is an identity owned by the auth system. Only its role matters here.
type User struct {
	ID        UserID
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// PaymentType is a named payment category. Beneficiaries lists the
// beneficiary records explicitly linked to it; a linked beneficiary cannot
// be deleted.
type PaymentType struct {
	ID            PaymentTypeID
	Name          string
	Code          string
	Beneficiaries []BeneficiaryID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// References reports whether id is in the payment type's reference list.
func (p PaymentType) References(id BeneficiaryID) bool {
	for _, ref := range p.Beneficiaries {
		if ref == id {
			return true
		}
	}
	return false
}

// Beneficiary is a percentage share of a payment type held by a user.
type Beneficiary struct {
	ID          BeneficiaryID
	User        UserID
	Percentage  decimal.Decimal
	Role        Role // snapshot of the user's role at write time
	PaymentType PaymentTypeID
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeneficiaryFilter narrows beneficiary queries. Nil fields match anything.
type BeneficiaryFilter struct {
	UserID        *UserID
	PaymentTypeID *PaymentTypeID
	Percentage    *decimal.Decimal
}

// Matches reports whether b satisfies every set field of f.
func (f BeneficiaryFilter) Matches(b Beneficiary) bool {
	if f.UserID != nil && b.User != *f.UserID {
		return false
	}
	if f.PaymentTypeID != nil && b.PaymentType != *f.PaymentTypeID {
		return false
	}
	if f.Percentage != nil && !b.Percentage.Equal(*f.Percentage) {
		return false
	}
	return true
}
