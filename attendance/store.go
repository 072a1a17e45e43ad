/*
store.go - Persistence interface for attendance records

PURPOSE:
  Defines the interface between the attendance ledger and the database.
  Implementations: store/sqlite (production), store/memory (tests/dev).

UNIQUENESS CONTRACT:
  InsertRecord and InsertRecords MUST be backed by a unique constraint on
  (user_id, date). When two concurrent punches race past the ledger's
  read-check, the losing insert must fail with an error satisfying
  errors.Is(err, core.ErrConflict) rather than create a duplicate row.

LOOKUP CONTRACT:
  Point lookups return (nil, nil) when no record exists; "missing" is a
  normal state for the punch state machine, not an error.

SEE ALSO:
  - ledger.go: Uses this interface
  - store/sqlite: Production implementation
*/
package attendance

import (
	"context"

	"github.com/warp/attendance-engine/core"
)

// Store handles persistence of attendance records.
type Store interface {
	// GetRecord returns a record by id, or (nil, nil) if absent.
	GetRecord(ctx context.Context, id string) (*Record, error)

	// GetRecordForDay returns the record for (user, date), or (nil, nil).
	GetRecordForDay(ctx context.Context, userID string, date core.Date) (*Record, error)

	// InsertRecord persists a new record. Fails with a core.ErrConflict
	// error when a record already exists for (user, date).
	InsertRecord(ctx context.Context, rec Record) error

	// InsertRecords persists records atomically: all or none. Same
	// uniqueness behavior as InsertRecord.
	InsertRecords(ctx context.Context, recs []Record) error

	// UpdateRecord overwrites an existing record by id.
	UpdateRecord(ctx context.Context, rec Record) error

	// CloseRecord writes rec's check-out, status and hours, but only if
	// the stored row still has no check-out. Fails with a core.ErrConflict
	// error when a concurrent punch already closed the session, and with
	// core.ErrNotFound when the row is gone.
	CloseRecord(ctx context.Context, rec Record) error

	// DeleteRecord removes a record. Fails with core.ErrNotFound if absent.
	DeleteRecord(ctx context.Context, id string) error

	// ListRecordsByUser returns all records for a user, newest date first.
	ListRecordsByUser(ctx context.Context, userID string) ([]Record, error)

	// ListRecordsForDay returns all records with the given date.
	ListRecordsForDay(ctx context.Context, date core.Date) ([]Record, error)
}
