/*
store.go - Persistence interfaces for users, payment types and beneficiaries

PURPOSE:
  Defines the boundary between the domain logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  UserStore:        User lookups (users are owned externally)
  PaymentTypeStore: Payment types and their beneficiary reference lists
  BeneficiaryStore: Beneficiary records
  Store:            All of the above
  TxStore:          Store plus atomic multi-document read-modify-write

LOOKUP CONTRACT:
  Get* methods return (nil, nil) when the record does not exist. Callers turn
  that into a NotFoundError with the context they have.

ORDERING:
  FindBeneficiaries and ListBeneficiaries return records in insertion order.
  The list operation's per-user dedupe keeps the first occurrence, so the
  order is part of the contract.

TRANSACTIONS:
  WithTx runs fn against a Store bound to one transaction. If fn returns an
  error everything fn wrote is rolled back; otherwise it is committed.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite (default)
  - store/postgres/postgres.go: PostgreSQL with serializable transactions

SEE ALSO:
  - errors.go: StoreError wraps backend failures
  - beneficiary/manager.go: the only writer of beneficiaries
*/
package ledger

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

type UserStore interface {
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

type PaymentTypeStore interface {
	SavePaymentType(ctx context.Context, p PaymentType) error
	GetPaymentType(ctx context.Context, id PaymentTypeID) (*PaymentType, error)
	ListPaymentTypes(ctx context.Context) ([]PaymentType, error)

	// AddPaymentTypeReference links a beneficiary to the payment type's
	// reference list. Adding an existing link is a no-op.
	AddPaymentTypeReference(ctx context.Context, id PaymentTypeID, beneficiaryID BeneficiaryID) error

	// RemovePaymentTypeReference unlinks a beneficiary. Returns false if no
	// link existed.
	RemovePaymentTypeReference(ctx context.Context, id PaymentTypeID, beneficiaryID BeneficiaryID) (bool, error)

	// PaymentTypesReferencing returns the ids of every payment type whose
	// reference list contains beneficiaryID.
	PaymentTypesReferencing(ctx context.Context, beneficiaryID BeneficiaryID) ([]PaymentTypeID, error)
}

type BeneficiaryStore interface {
	// SaveBeneficiary inserts or replaces the record with b.ID.
	SaveBeneficiary(ctx context.Context, b Beneficiary) error
	GetBeneficiary(ctx context.Context, id BeneficiaryID) (*Beneficiary, error)

	// FindBeneficiaries returns every record matching the filter.
	FindBeneficiaries(ctx context.Context, filter BeneficiaryFilter) ([]Beneficiary, error)

	// ListBeneficiaries returns one page of matches and the total match count.
	ListBeneficiaries(ctx context.Context, filter BeneficiaryFilter, offset, limit int) ([]Beneficiary, int, error)

	// DeleteBeneficiary removes a record. Returns false if it did not exist.
	DeleteBeneficiary(ctx context.Context, id BeneficiaryID) (bool, error)
}

// Store is the full Ledger Store surface.
type Store interface {
	UserStore
	PaymentTypeStore
	BeneficiaryStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Reset removes every record. Development only.
	Reset(ctx context.Context) error
}
