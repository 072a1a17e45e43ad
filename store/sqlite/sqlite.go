/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements attendance.Store, leave.TxStore and directory.Store using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  employees:          Directory records with department for scoping
  leave_types:        Leave-type metadata
  attendance_records: One row per (user, date); unique index backs the
                      one-record-per-day invariant
  leave_balances:     One row per (user, leave_type, year)
  leave_requests:     Requests with their status

UNIQUE INDEXES:
  idx_attendance_user_date:  Resolves concurrent punch races - the losing
                             insert fails instead of duplicating the row
  idx_balances_user_type_year: The (user, leave_type, year) balance key

CONCURRENCY:
  sync.RWMutex around the handle; WithTx holds the write lock for the whole
  transaction and hands the callback a Store bound to the open *sql.Tx, so
  queries inside the transaction never re-acquire the mutex.

WAL MODE:
  Opened with WAL for better concurrency and crash recovery. Use
  ":memory:" for tests.

SEE ALSO:
  - attendance/store.go, leave/store.go, directory/directory.go: Contracts
  - store/memory: In-memory implementation with the same semantics
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

	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/leave"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

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

func (s *Store) migrate() error {
	schema := `
	-- Directory
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department_id TEXT NOT NULL DEFAULT '',
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department_id);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Attendance
	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in TEXT,
		check_out TEXT,
		status TEXT NOT NULL,
		work_hours TEXT NOT NULL DEFAULT '0',
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one attendance record per user per calendar day.
	-- Concurrent punches race past the ledger's read-check; the loser
	-- fails here instead of creating a duplicate.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_user_date
		ON attendance_records(user_id, date);

	CREATE INDEX IF NOT EXISTS idx_attendance_date
		ON attendance_records(date);

	-- Leave balances
	CREATE TABLE IF NOT EXISTS leave_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL DEFAULT 0,
		allocated TEXT NOT NULL DEFAULT '0',
		used TEXT NOT NULL DEFAULT '0',
		carry_over TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_balances_user_type_year
		ON leave_balances(user_id, leave_type_id, year);

	CREATE INDEX IF NOT EXISTS idx_balances_year
		ON leave_balances(year);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_requested TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		reason TEXT,
		applied_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_user
		ON leave_requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The callback receives
// a leave.Store bound to the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin tx", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&leaveTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &core.StorageError{Op: "commit tx", Err: err}
	}
	return nil
}

// dbtx abstracts *sql.DB and *sql.Tx so the query helpers run both
// standalone and inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
