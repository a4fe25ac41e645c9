/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists users, payment types, their beneficiary reference lists and
  beneficiary shares. This is the default backend; store/postgres speaks
  the same schema for multi-instance deployments.

KEY TABLES:
  users:                       Users referenced by beneficiaries
  payment_types:               Revenue streams
  payment_type_beneficiaries:  Ordered reference list per payment type
  beneficiaries:               Shares; seq keeps insertion order

INDEXES:
  - idx_beneficiaries_user_payment_type: UNIQUE, backs the one share per
    (user, payment type) rule at the database level
  - idx_beneficiaries_payment_type: sibling lookups for allocation checks
  - idx_ptb_beneficiary: referential block lookups on delete

PERCENTAGES:
  Stored as TEXT in decimal.Decimal's canonical String() form, so equality
  filters compare exact strings and never go through float64.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction, so allocation checks and the write that follows them
  cannot interleave with another writer.

WAL MODE:
  Opened with WAL (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/revenue.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  mgr := beneficiary.NewManager(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.TxStore = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and the
	// mutex already serialises writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_type_beneficiaries (
		payment_type_id TEXT NOT NULL REFERENCES payment_types(id) ON DELETE CASCADE,
		beneficiary_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (payment_type_id, beneficiary_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ptb_beneficiary
		ON payment_type_beneficiaries(beneficiary_id);

	CREATE TABLE IF NOT EXISTS beneficiaries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		percentage TEXT NOT NULL,
		role TEXT NOT NULL,
		payment_type_id TEXT NOT NULL REFERENCES payment_types(id),
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_beneficiaries_user_payment_type
		ON beneficiaries(user_id, payment_type_id);
	CREATE INDEX IF NOT EXISTS idx_beneficiaries_payment_type
		ON beneficiaries(payment_type_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. fn must only use the
// Store it is given.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(session{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payment_type_beneficiaries", "beneficiaries", "payment_types", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LOCKED DELEGATES
// =============================================================================

func (s *Store) read() session { return session{q: s.db} }

func (s *Store) SaveUser(ctx context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListUsers(ctx)
}

func (s *Store) SavePaymentType(ctx context.Context, p ledger.PaymentType) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.SavePaymentType(ctx, p) })
}

func (s *Store) GetPaymentType(ctx context.Context, id ledger.PaymentTypeID) (*ledger.PaymentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetPaymentType(ctx, id)
}

func (s *Store) ListPaymentTypes(ctx context.Context) ([]ledger.PaymentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListPaymentTypes(ctx)
}

func (s *Store) AddPaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.AddPaymentTypeReference(ctx, id, bID) })
}

func (s *Store) RemovePaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().RemovePaymentTypeReference(ctx, id, bID)
}

func (s *Store) PaymentTypesReferencing(ctx context.Context, bID ledger.BeneficiaryID) ([]ledger.PaymentTypeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().PaymentTypesReferencing(ctx, bID)
}

func (s *Store) SaveBeneficiary(ctx context.Context, b ledger.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveBeneficiary(ctx, b)
}

func (s *Store) GetBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (*ledger.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetBeneficiary(ctx, id)
}

func (s *Store) FindBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter) ([]ledger.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindBeneficiaries(ctx, f)
}

func (s *Store) ListBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter, offset, limit int) ([]ledger.Beneficiary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListBeneficiaries(ctx, f, offset, limit)
}

func (s *Store) DeleteBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().DeleteBeneficiary(ctx, id)
}

// =============================================================================
// SESSION (queries against a *sql.DB or *sql.Tx, no locking)
// =============================================================================

type session struct {
	q querier
}

// --- users ---

func (ss session) SaveUser(ctx context.Context, u ledger.User) error {
	_, err := ss.q.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, role = excluded.role`,
		string(u.ID), u.Name, u.Email, string(u.Role), formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (ss session) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	users, err := ss.queryUsers(ctx, `SELECT id, name, email, role, created_at FROM users WHERE id = ?`, string(id))
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return &users[0], nil
}

func (ss session) ListUsers(ctx context.Context) ([]ledger.User, error) {
	return ss.queryUsers(ctx, `SELECT id, name, email, role, created_at FROM users ORDER BY rowid`)
}

func (ss session) queryUsers(ctx context.Context, query string, args ...any) ([]ledger.User, error) {
	rows, err := ss.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []ledger.User
	for rows.Next() {
		var u ledger.User
		var id, role, createdAt string
		if err := rows.Scan(&id, &u.Name, &u.Email, &role, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID, u.Role, u.CreatedAt = ledger.UserID(id), ledger.Role(role), parseTime(createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- payment types ---

func (ss session) SavePaymentType(ctx context.Context, p ledger.PaymentType) error {
	_, err := ss.q.ExecContext(ctx, `
		INSERT INTO payment_types (id, name, code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, code = excluded.code, updated_at = excluded.updated_at`,
		string(p.ID), p.Name, p.Code, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save payment type: %w", err)
	}

	if _, err := ss.q.ExecContext(ctx, `DELETE FROM payment_type_beneficiaries WHERE payment_type_id = ?`, string(p.ID)); err != nil {
		return fmt.Errorf("failed to reset payment type references: %w", err)
	}
	for i, bID := range p.Beneficiaries {
		if _, err := ss.q.ExecContext(ctx, `
			INSERT OR IGNORE INTO payment_type_beneficiaries (payment_type_id, beneficiary_id, position)
			VALUES (?, ?, ?)`, string(p.ID), string(bID), i); err != nil {
			return fmt.Errorf("failed to save payment type reference: %w", err)
		}
	}
	return nil
}

func (ss session) GetPaymentType(ctx context.Context, id ledger.PaymentTypeID) (*ledger.PaymentType, error) {
	var p ledger.PaymentType
	var pid, createdAt, updatedAt string
	err := ss.q.QueryRowContext(ctx, `
		SELECT id, name, code, created_at, updated_at FROM payment_types WHERE id = ?`, string(id),
	).Scan(&pid, &p.Name, &p.Code, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment type: %w", err)
	}
	p.ID, p.CreatedAt, p.UpdatedAt = ledger.PaymentTypeID(pid), parseTime(createdAt), parseTime(updatedAt)

	if p.Beneficiaries, err = ss.references(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (ss session) ListPaymentTypes(ctx context.Context) ([]ledger.PaymentType, error) {
	rows, err := ss.q.QueryContext(ctx, `SELECT id FROM payment_types ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment types: %w", err)
	}
	var ids []ledger.PaymentTypeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan payment type: %w", err)
		}
		ids = append(ids, ledger.PaymentTypeID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]ledger.PaymentType, 0, len(ids))
	for _, id := range ids {
		p, err := ss.GetPaymentType(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (ss session) references(ctx context.Context, id ledger.PaymentTypeID) ([]ledger.BeneficiaryID, error) {
	rows, err := ss.q.QueryContext(ctx, `
		SELECT beneficiary_id FROM payment_type_beneficiaries
		WHERE payment_type_id = ? ORDER BY position`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load payment type references: %w", err)
	}
	defer rows.Close()

	refs := []ledger.BeneficiaryID{}
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		refs = append(refs, ledger.BeneficiaryID(b))
	}
	return refs, rows.Err()
}

func (ss session) AddPaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) error {
	var exists int
	err := ss.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_types WHERE id = ?`, string(id)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check payment type: %w", err)
	}
	if exists == 0 {
		return &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: string(id)}
	}

	_, err = ss.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO payment_type_beneficiaries (payment_type_id, beneficiary_id, position)
		SELECT ?, ?, COALESCE(MAX(position), -1) + 1 FROM payment_type_beneficiaries WHERE payment_type_id = ?`,
		string(id), string(bID), string(id))
	if err != nil {
		return fmt.Errorf("failed to add payment type reference: %w", err)
	}
	return nil
}

func (ss session) RemovePaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) (bool, error) {
	res, err := ss.q.ExecContext(ctx, `
		DELETE FROM payment_type_beneficiaries WHERE payment_type_id = ? AND beneficiary_id = ?`,
		string(id), string(bID))
	if err != nil {
		return false, fmt.Errorf("failed to remove payment type reference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (ss session) PaymentTypesReferencing(ctx context.Context, bID ledger.BeneficiaryID) ([]ledger.PaymentTypeID, error) {
	rows, err := ss.q.QueryContext(ctx, `
		SELECT ptb.payment_type_id FROM payment_type_beneficiaries ptb
		JOIN payment_types pt ON pt.id = ptb.payment_type_id
		WHERE ptb.beneficiary_id = ? ORDER BY pt.rowid`, string(bID))
	if err != nil {
		return nil, fmt.Errorf("failed to query payment type references: %w", err)
	}
	defer rows.Close()

	var ids []ledger.PaymentTypeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, ledger.PaymentTypeID(id))
	}
	return ids, rows.Err()
}

// --- beneficiaries ---

const beneficiaryColumns = `id, user_id, percentage, role, payment_type_id, created_by, created_at, updated_at`

func (ss session) SaveBeneficiary(ctx context.Context, b ledger.Beneficiary) error {
	_, err := ss.q.ExecContext(ctx, `
		INSERT INTO beneficiaries (`+beneficiaryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			percentage = excluded.percentage,
			role = excluded.role,
			payment_type_id = excluded.payment_type_id,
			updated_at = excluded.updated_at`,
		string(b.ID), string(b.User), b.Percentage.String(), string(b.Role), string(b.PaymentType),
		b.CreatedBy, formatTime(b.CreatedAt), formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateUserPaymentType
		}
		return fmt.Errorf("failed to save beneficiary: %w", err)
	}
	return nil
}

func (ss session) GetBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (*ledger.Beneficiary, error) {
	bs, err := ss.queryBeneficiaries(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = ?`, string(id))
	if err != nil || len(bs) == 0 {
		return nil, err
	}
	return &bs[0], nil
}

func (ss session) FindBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter) ([]ledger.Beneficiary, error) {
	where, args := filterClause(f)
	return ss.queryBeneficiaries(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries`+where+` ORDER BY seq`, args...)
}

func (ss session) ListBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter, offset, limit int) ([]ledger.Beneficiary, int, error) {
	where, args := filterClause(f)

	var total int
	if err := ss.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM beneficiaries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count beneficiaries: %w", err)
	}

	page, err := ss.queryBeneficiaries(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries`+where+` ORDER BY seq LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	if page == nil {
		page = []ledger.Beneficiary{}
	}
	return page, total, nil
}

func (ss session) DeleteBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (bool, error) {
	res, err := ss.q.ExecContext(ctx, `DELETE FROM beneficiaries WHERE id = ?`, string(id))
	if err != nil {
		return false, fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (ss session) queryBeneficiaries(ctx context.Context, query string, args ...any) ([]ledger.Beneficiary, error) {
	rows, err := ss.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query beneficiaries: %w", err)
	}
	defer rows.Close()

	var out []ledger.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBeneficiary(rows *sql.Rows) (ledger.Beneficiary, error) {
	var b ledger.Beneficiary
	var id, userID, pct, role, ptID, createdAt, updatedAt string
	if err := rows.Scan(&id, &userID, &pct, &role, &ptID, &b.CreatedBy, &createdAt, &updatedAt); err != nil {
		return b, fmt.Errorf("failed to scan beneficiary: %w", err)
	}
	p, err := decimal.NewFromString(pct)
	if err != nil {
		return b, fmt.Errorf("invalid stored percentage %q: %w", pct, err)
	}
	b.ID = ledger.BeneficiaryID(id)
	b.User = ledger.UserID(userID)
	b.Percentage = p
	b.Role = ledger.Role(role)
	b.PaymentType = ledger.PaymentTypeID(ptID)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

func filterClause(f ledger.BeneficiaryFilter) (string, []any) {
	var conds []string
	var args []any
	if f.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, string(*f.UserID))
	}
	if f.PaymentTypeID != nil {
		conds = append(conds, "payment_type_id = ?")
		args = append(args, string(*f.PaymentTypeID))
	}
	if f.Percentage != nil {
		conds = append(conds, "percentage = ?")
		args = append(args, f.Percentage.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
