/*
Package postgres provides a PostgreSQL-backed implementation of ledger.TxStore.

PURPOSE:
  Same schema and contract as store/sqlite, for deployments that run more
  than one API instance against one database.

CONCURRENCY:
  There is no process-local lock. WithTx runs at SERIALIZABLE isolation, so
  two concurrent creates that each see a 60% sibling total and each add 30%
  cannot both commit: one fails with SQLSTATE 40001 and is retried from the
  top, where it now sees 90%.

POOL:
  Configured like the other services in this stack: bounded pool, recycled
  connections, simple protocol for PgBouncer compatibility.

SEE ALSO:
  - store/sqlite/sqlite.go: single-node default
  - ledger/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/ledger"
)

// maxTxAttempts bounds serialization-failure retries in WithTx.
const maxTxAttempts = 5

// Store implements ledger.TxStore using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.TxStore = (*Store)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New connects to databaseURL and migrates the schema.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		seq BIGSERIAL
	);

	CREATE TABLE IF NOT EXISTS payment_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		seq BIGSERIAL
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
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id),
		percentage TEXT NOT NULL,
		role TEXT NOT NULL,
		payment_type_id TEXT NOT NULL REFERENCES payment_types(id),
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_beneficiaries_user_payment_type
		ON beneficiaries(user_id, payment_type_id);
	CREATE INDEX IF NOT EXISTS idx_beneficiaries_payment_type
		ON beneficiaries(payment_type_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn in a SERIALIZABLE transaction, retrying the whole of fn on
// serialization failures. fn must be safe to run more than once.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 5 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxAttempts, err)
}

func (s *Store) runTx(ctx context.Context, fn func(store ledger.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(session{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isRetryable reports serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE payment_type_beneficiaries, beneficiaries, payment_types, users`)
	return err
}

// =============================================================================
// POOL DELEGATES
// =============================================================================

func (s *Store) direct() session { return session{q: s.pool} }

func (s *Store) SaveUser(ctx context.Context, u ledger.User) error {
	return s.direct().SaveUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	return s.direct().GetUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	return s.direct().ListUsers(ctx)
}

func (s *Store) SavePaymentType(ctx context.Context, p ledger.PaymentType) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.SavePaymentType(ctx, p) })
}

func (s *Store) GetPaymentType(ctx context.Context, id ledger.PaymentTypeID) (*ledger.PaymentType, error) {
	return s.direct().GetPaymentType(ctx, id)
}

func (s *Store) ListPaymentTypes(ctx context.Context) ([]ledger.PaymentType, error) {
	return s.direct().ListPaymentTypes(ctx)
}

func (s *Store) AddPaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) error {
	return s.WithTx(ctx, func(tx ledger.Store) error { return tx.AddPaymentTypeReference(ctx, id, bID) })
}

func (s *Store) RemovePaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) (bool, error) {
	return s.direct().RemovePaymentTypeReference(ctx, id, bID)
}

func (s *Store) PaymentTypesReferencing(ctx context.Context, bID ledger.BeneficiaryID) ([]ledger.PaymentTypeID, error) {
	return s.direct().PaymentTypesReferencing(ctx, bID)
}

func (s *Store) SaveBeneficiary(ctx context.Context, b ledger.Beneficiary) error {
	return s.direct().SaveBeneficiary(ctx, b)
}

func (s *Store) GetBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (*ledger.Beneficiary, error) {
	return s.direct().GetBeneficiary(ctx, id)
}

func (s *Store) FindBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter) ([]ledger.Beneficiary, error) {
	return s.direct().FindBeneficiaries(ctx, f)
}

func (s *Store) ListBeneficiaries(ctx context.Context, f ledger.BeneficiaryFilter, offset, limit int) ([]ledger.Beneficiary, int, error) {
	return s.direct().ListBeneficiaries(ctx, f, offset, limit)
}

func (s *Store) DeleteBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (bool, error) {
	return s.direct().DeleteBeneficiary(ctx, id)
}

// =============================================================================
// SESSION
// =============================================================================

type session struct {
	q querier
}

func (ss session) SaveUser(ctx context.Context, u ledger.User) error {
	_, err := ss.q.Exec(ctx, `
        INSERT INTO users (id, name, email, role, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role`,
		string(u.ID), u.Name, u.Email, string(u.Role), u.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (ss session) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	users, err := ss.queryUsers(ctx, `SELECT id, name, email, role, created_at FROM users WHERE id = $1`, string(id))
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return &users[0], nil
}

func (ss session) ListUsers(ctx context.Context) ([]ledger.User, error) {
	return ss.queryUsers(ctx, `SELECT id, name, email, role, created_at FROM users ORDER BY seq`)
}

func (ss session) queryUsers(ctx context.Context, query string, args ...any) ([]ledger.User, error) {
	rows, err := ss.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []ledger.User
	for rows.Next() {
		var u ledger.User
		var id, role string
		if err := rows.Scan(&id, &u.Name, &u.Email, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID, u.Role = ledger.UserID(id), ledger.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (ss session) SavePaymentType(ctx context.Context, p ledger.PaymentType) error {
	_, err := ss.q.Exec(ctx, `
        INSERT INTO payment_types (id, name, code, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, code = EXCLUDED.code, updated_at = EXCLUDED.updated_at`,
		string(p.ID), p.Name, p.Code, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save payment type: %w", err)
	}
	if _, err := ss.q.Exec(ctx, `DELETE FROM payment_type_beneficiaries WHERE payment_type_id = $1`, string(p.ID)); err != nil {
		return fmt.Errorf("failed to reset payment type references: %w", err)
	}
	for i, bID := range p.Beneficiaries {
		if _, err := ss.q.Exec(ctx, `
            INSERT INTO payment_type_beneficiaries (payment_type_id, beneficiary_id, position)
            VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, string(p.ID), string(bID), i); err != nil {
			return fmt.Errorf("failed to save payment type reference: %w", err)
		}
	}
	return nil
}

func (ss session) GetPaymentType(ctx context.Context, id ledger.PaymentTypeID) (*ledger.PaymentType, error) {
	var p ledger.PaymentType
	var pid string
	err := ss.q.QueryRow(ctx, `
        SELECT id, name, code, created_at, updated_at FROM payment_types WHERE id = $1`, string(id),
	).Scan(&pid, &p.Name, &p.Code, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment type: %w", err)
	}
	p.ID = ledger.PaymentTypeID(pid)

	rows, err := ss.q.Query(ctx, `
        SELECT beneficiary_id FROM payment_type_beneficiaries
        WHERE payment_type_id = $1 ORDER BY position`, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment type references: %w", err)
	}
	defer rows.Close()
	p.Beneficiaries = []ledger.BeneficiaryID{}
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		p.Beneficiaries = append(p.Beneficiaries, ledger.BeneficiaryID(b))
	}
	return &p, rows.Err()
}

func (ss session) ListPaymentTypes(ctx context.Context) ([]ledger.PaymentType, error) {
	rows, err := ss.q.Query(ctx, `SELECT id FROM payment_types ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment types: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment types: %w", err)
	}

	out := make([]ledger.PaymentType, 0, len(ids))
	for _, id := range ids {
		p, err := ss.GetPaymentType(ctx, ledger.PaymentTypeID(id))
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (ss session) AddPaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) error {
	var exists bool
	if err := ss.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_types WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check payment type: %w", err)
	}
	if !exists {
		return &ledger.NotFoundError{Kind: ledger.KindPaymentType, ID: string(id)}
	}
	_, err := ss.q.Exec(ctx, `
        INSERT INTO payment_type_beneficiaries (payment_type_id, beneficiary_id, position)
        SELECT $1, $2, COALESCE(MAX(position), -1) + 1 FROM payment_type_beneficiaries WHERE payment_type_id = $1
        ON CONFLICT DO NOTHING`, string(id), string(bID))
	if err != nil {
		return fmt.Errorf("failed to add payment type reference: %w", err)
	}
	return nil
}

func (ss session) RemovePaymentTypeReference(ctx context.Context, id ledger.PaymentTypeID, bID ledger.BeneficiaryID) (bool, error) {
	tag, err := ss.q.Exec(ctx, `
        DELETE FROM payment_type_beneficiaries WHERE payment_type_id = $1 AND beneficiary_id = $2`,
		string(id), string(bID))
	if err != nil {
		return false, fmt.Errorf("failed to remove payment type reference: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (ss session) PaymentTypesReferencing(ctx context.Context, bID ledger.BeneficiaryID) ([]ledger.PaymentTypeID, error) {
	rows, err := ss.q.Query(ctx, `
        SELECT ptb.payment_type_id FROM payment_type_beneficiaries ptb
        JOIN payment_types pt ON pt.id = ptb.payment_type_id
        WHERE ptb.beneficiary_id = $1 ORDER BY pt.seq`, string(bID))
	if err != nil {
		return nil, fmt.Errorf("failed to query payment type references: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	var out []ledger.PaymentTypeID
	for _, id := range ids {
		out = append(out, ledger.PaymentTypeID(id))
	}
	return out, nil
}

const beneficiaryColumns = `id, user_id, percentage, role, payment_type_id, created_by, created_at, updated_at`

func (ss session) SaveBeneficiary(ctx context.Context, b ledger.Beneficiary) error {
	_, err := ss.q.Exec(ctx, `
        INSERT INTO beneficiaries (`+beneficiaryColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET
            user_id = EXCLUDED.user_id,
            percentage = EXCLUDED.percentage,
            role = EXCLUDED.role,
            payment_type_id = EXCLUDED.payment_type_id,
            updated_at = EXCLUDED.updated_at`,
		string(b.ID), string(b.User), b.Percentage.String(), string(b.Role), string(b.PaymentType),
		b.CreatedBy, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateUserPaymentType
		}
		return fmt.Errorf("failed to save beneficiary: %w", err)
	}
	return nil
}

func (ss session) GetBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (*ledger.Beneficiary, error) {
	bs, err := ss.queryBeneficiaries(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, string(id))
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
	if err := ss.q.QueryRow(ctx, `SELECT COUNT(*) FROM beneficiaries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count beneficiaries: %w", err)
	}

	n := len(args)
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries` + where +
		` ORDER BY seq LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	page, err := ss.queryBeneficiaries(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	if page == nil {
		page = []ledger.Beneficiary{}
	}
	return page, total, nil
}

func (ss session) DeleteBeneficiary(ctx context.Context, id ledger.BeneficiaryID) (bool, error) {
	tag, err := ss.q.Exec(ctx, `DELETE FROM beneficiaries WHERE id = $1`, string(id))
	if err != nil {
		return false, fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (ss session) queryBeneficiaries(ctx context.Context, query string, args ...any) ([]ledger.Beneficiary, error) {
	rows, err := ss.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query beneficiaries: %w", err)
	}
	defer rows.Close()

	var out []ledger.Beneficiary
	for rows.Next() {
		var b ledger.Beneficiary
		var id, userID, pct, role, ptID string
		if err := rows.Scan(&id, &userID, &pct, &role, &ptID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		p, err := decimal.NewFromString(pct)
		if err != nil {
			return nil, fmt.Errorf("invalid stored percentage %q: %w", pct, err)
		}
		b.ID, b.User, b.Percentage = ledger.BeneficiaryID(id), ledger.UserID(userID), p
		b.Role, b.PaymentType = ledger.Role(role), ledger.PaymentTypeID(ptID)
		out = append(out, b)
	}
	return out, rows.Err()
}

// filterClause builds a WHERE clause with $n placeholders starting at $1.
func filterClause(f ledger.BeneficiaryFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}
	if f.UserID != nil {
		add("user_id", string(*f.UserID))
	}
	if f.PaymentTypeID != nil {
		add("payment_type_id", string(*f.PaymentTypeID))
	}
	if f.Percentage != nil {
		add("percentage", f.Percentage.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
