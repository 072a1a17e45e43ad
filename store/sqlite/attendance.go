/*
attendance.go - SQLite persistence for attendance records

Implements attendance.Store. The date column stores the calendar day as
"YYYY-MM-DD"; timestamps are RFC3339; work hours are decimal strings.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
)

const attendanceColumns = `id, user_id, date, check_in, check_out, status, work_hours, notes, created_at, updated_at`

// GetRecord returns a record by id, or (nil, nil) when absent.
func (s *Store) GetRecord(ctx context.Context, id string) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records WHERE id = ?`, id)
	return scanAttendanceRow(row)
}

// GetRecordForDay returns the record for (user, date), or (nil, nil).
func (s *Store) GetRecordForDay(ctx context.Context, userID string, date core.Date) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records WHERE user_id = ? AND date = ?`,
		userID, date.String())
	return scanAttendanceRow(row)
}

// InsertRecord persists a new record. A (user, date) duplicate surfaces as
// a conflict via the unique index.
func (s *Store) InsertRecord(ctx context.Context, rec attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertAttendance(ctx, s.db, rec)
}

// InsertRecords persists records atomically.
func (s *Store) InsertRecords(ctx context.Context, recs []attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin tx", Err: err}
	}
	defer sqlTx.Rollback()

	for _, rec := range recs {
		if err := insertAttendance(ctx, sqlTx, rec); err != nil {
			return err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return &core.StorageError{Op: "commit tx", Err: err}
	}
	return nil
}

func insertAttendance(ctx context.Context, q dbtx, rec attendance.Record) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO attendance_records
		(id, user_id, date, check_in, check_out, status, work_hours, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		rec.Date.String(),
		nullTime(rec.CheckIn),
		nullTime(rec.CheckOut),
		string(rec.Status),
		rec.WorkHours.String(),
		nullString(rec.Notes),
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ConflictError{Op: "insert attendance record", Detail: "attendance already logged for this date"}
		}
		return &core.StorageError{Op: "insert attendance record", Err: err}
	}
	return nil
}

// UpdateRecord overwrites an existing record.
func (s *Store) UpdateRecord(ctx context.Context, rec attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET check_in = ?, check_out = ?, status = ?, work_hours = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		nullTime(rec.CheckIn),
		nullTime(rec.CheckOut),
		string(rec.Status),
		rec.WorkHours.String(),
		nullString(rec.Notes),
		rec.UpdatedAt.Format(time.RFC3339),
		rec.ID,
	)
	if err != nil {
		return &core.StorageError{Op: "update attendance record", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "attendance record", ID: rec.ID}
	}
	return nil
}

// CloseRecord writes a session's check-out, status and hours, guarded on
// the row still being open. Zero affected rows means either a concurrent
// punch closed it first or the row vanished; the follow-up lookup tells
// the two apart.
func (s *Store) CloseRecord(ctx context.Context, rec attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET check_out = ?, status = ?, work_hours = ?, updated_at = ?
		WHERE id = ? AND check_out IS NULL`,
		nullTime(rec.CheckOut),
		string(rec.Status),
		rec.WorkHours.String(),
		rec.UpdatedAt.Format(time.RFC3339),
		rec.ID,
	)
	if err != nil {
		return &core.StorageError{Op: "close attendance record", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+attendanceColumns+` FROM attendance_records WHERE id = ?`, rec.ID)
		existing, lookupErr := scanAttendanceRow(row)
		if lookupErr != nil {
			return lookupErr
		}
		if existing == nil {
			return &core.NotFoundError{Kind: "attendance record", ID: rec.ID}
		}
		return &core.ConflictError{Op: "close attendance record", Detail: "session already closed"}
	}
	return nil
}

// DeleteRecord removes a record by id.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = ?`, id)
	if err != nil {
		return &core.StorageError{Op: "delete attendance record", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "attendance record", ID: id}
	}
	return nil
}

// ListRecordsByUser returns a user's records, newest date first.
func (s *Store) ListRecordsByUser(ctx context.Context, userID string) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttendance(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records WHERE user_id = ? ORDER BY date DESC`,
		userID)
}

// ListRecordsForDay returns all records with the given date.
func (s *Store) ListRecordsForDay(ctx context.Context, date core.Date) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAttendance(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records WHERE date = ? ORDER BY user_id`,
		date.String())
}

func (s *Store) queryAttendance(ctx context.Context, query string, args ...any) ([]attendance.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.StorageError{Op: "query attendance records", Err: err}
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(r rowScanner) (attendance.Record, error) {
	var (
		rec                  attendance.Record
		dateStr              string
		checkIn, checkOut    sql.NullString
		workHours            string
		notes                sql.NullString
		createdAt, updatedAt string
		status               string
	)

	err := r.Scan(&rec.ID, &rec.UserID, &dateStr, &checkIn, &checkOut,
		&status, &workHours, &notes, &createdAt, &updatedAt)
	if err != nil {
		return rec, err
	}

	rec.Date, _ = core.ParseDate(dateStr)
	rec.CheckIn = parseTimePtr(checkIn)
	rec.CheckOut = parseTimePtr(checkOut)
	rec.Status = attendance.Status(status)
	rec.WorkHours = core.MustParseDecimal(workHours)
	rec.Notes = notes.String
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

func scanAttendanceRow(row *sql.Row) (*attendance.Record, error) {
	rec, err := scanAttendance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "scan attendance record", Err: err}
	}
	return &rec, nil
}
