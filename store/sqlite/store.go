/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the engine with SQLite. In
  production the same patterns apply to PostgreSQL with minor dialect
  differences.

INTERFACES IMPLEMENTED:
  generic.Store:     Append-only leave ledger
  generic.Directory: Members and organizations
  shift.Store:       Shifts
  timeoff.TxStore:   Leave balances and requests, transactional
  notify.Store:      In-app notifications

OPTIMISTIC CONCURRENCY:
  Shifts, balances and requests carry a version column. Updates are
  conditional:

      UPDATE shifts SET ..., version = version + 1
      WHERE id = ? AND version = ?

  Zero affected rows means another writer got there first and the call
  returns generic.ErrConcurrentModification. No row locks are held between
  the read and the write.

TRANSACTIONS:
  WithTx hands the callback a store bound to one *sql.Tx. Every method
  available outside a transaction is available inside it, so the leave
  workflow can update a balance, append its ledger entry and change a
  request's status atomically. Transactions begin IMMEDIATE so two writers
  serialize at BEGIN instead of failing at COMMIT.

  The pool holds a single connection. Inside fn, only use the store fn
  receives; calling the outer Store would wait for the connection fn holds.

KEY TABLES:
  organizations, members:  Directory
  shifts:                  Shift records
  leave_balances:          One row per (staff, year)
  leave_requests:          Leave requests, attachments as JSON
  transactions:            Immutable ledger of balance changes
  notifications:           In-app notifications

USAGE:
  store, err := sqlite.New("./data/workforce.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Ledger store interface
  - shift/types.go, timeoff/types.go: Domain store interfaces
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/notify"
	"github.com/warp/workforce-engine/shift"
	"github.com/warp/workforce-engine/timeoff"
)

var (
	_ generic.Store     = (*Store)(nil)
	_ generic.Directory = (*Store)(nil)
	_ shift.Store       = (*Store)(nil)
	_ timeoff.TxStore   = (*Store)(nil)
	_ timeoff.Store     = (*txStore)(nil)
	_ notify.Store      = (*Store)(nil)
)

var errConcurrent = generic.ErrConcurrentModification

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements the store methods over a querier. Store and txStore
// both embed it.
type conn struct {
	q querier
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	*conn
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite has a single writer anyway.
	db.SetMaxOpenConns(1)

	store := &Store{conn: &conn{q: db}, db: db}
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

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('manager', 'staff')),
		manager_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_members_org_email
		ON members(organization_id, email COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_members_manager
		ON members(manager_id);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		name TEXT NOT NULL,
		assigned_to TEXT NOT NULL DEFAULT '',
		is_open BOOLEAN NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		timezone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		approval_status TEXT NOT NULL,
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at TEXT,
		review_comment TEXT NOT NULL DEFAULT '',
		clock_in_time TEXT,
		clock_out_time TEXT,
		worked_hours TEXT NOT NULL DEFAULT '0',
		notes TEXT NOT NULL DEFAULT '',
		reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (is_open = (status = 'open'))
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_org_date
		ON shifts(organization_id, date);
	CREATE INDEX IF NOT EXISTS idx_shifts_assignee
		ON shifts(assigned_to);
	-- Reminder sweep (hot path)
	CREATE INDEX IF NOT EXISTS idx_shifts_reminder
		ON shifts(status, reminder_sent, date);

	CREATE TABLE IF NOT EXISTS leave_balances (
		staff_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_annual_leave TEXT NOT NULL,
		used_annual_leave TEXT NOT NULL,
		carry_over TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (staff_id, year)
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('annual', 'sick')),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_requested INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		attachments_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at TEXT,
		manager_comments TEXT NOT NULL DEFAULT '',
		modified_start TEXT,
		modified_end TEXT,
		submitted_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		CHECK (start_date <= end_date)
	);

	-- Overlap checks and per-staff listings
	CREATE INDEX IF NOT EXISTS idx_leave_requests_staff_dates
		ON leave_requests(staff_id, status, start_date, end_date);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_year
		ON transactions(entity_id, year, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		related_id TEXT NOT NULL DEFAULT '',
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id, read, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside one database transaction. The transaction commits
// only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(timeoff.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn: &conn{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the store view handed to WithTx callbacks.
type txStore struct {
	*conn
}

// Reset deletes all data. Used by tests and demo seeding.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"notifications", "transactions", "leave_requests", "leave_balances", "shifts", "members", "organizations"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// affectedOne maps a conditional write's result: one row means it applied,
// zero means the version moved on.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errConcurrent
	}
	return nil
}

func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
