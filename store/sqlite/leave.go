/*
leave.go - SQLite persistence for leave balances and requests

Implements leave.Store on *Store (standalone calls, mutex-guarded) and on
leaveTx (calls inside WithTx, bound to the open transaction). Both run the
same query helpers, parameterized over the connection.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/leave"
)

const balanceColumns = `id, user_id, leave_type_id, year, month, allocated, used, carry_over, created_at, updated_at`
const requestColumns = `id, user_id, leave_type_id, start_date, end_date, days_requested, status, reason, applied_at, updated_at`

// leaveTx is the leave.Store handed to WithTx callbacks.
type leaveTx struct {
	tx *sql.Tx
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, userID, leaveTypeID, year)
}

func (t *leaveTx) GetBalance(ctx context.Context, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	return getBalance(ctx, t.tx, userID, leaveTypeID, year)
}

func getBalance(ctx context.Context, q dbtx, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM leave_balances WHERE user_id = ? AND leave_type_id = ? AND year = ?`,
		userID, leaveTypeID, year)
	return scanBalanceRow(row)
}

func (s *Store) GetBalanceByID(ctx context.Context, id string) (*leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalanceByID(ctx, s.db, id)
}

func (t *leaveTx) GetBalanceByID(ctx context.Context, id string) (*leave.Balance, error) {
	return getBalanceByID(ctx, t.tx, id)
}

func getBalanceByID(ctx context.Context, q dbtx, id string) (*leave.Balance, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM leave_balances WHERE id = ?`, id)
	return scanBalanceRow(row)
}

func (s *Store) InsertBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertBalance(ctx, s.db, b)
}

func (t *leaveTx) InsertBalance(ctx context.Context, b leave.Balance) error {
	return insertBalance(ctx, t.tx, b)
}

func insertBalance(ctx context.Context, q dbtx, b leave.Balance) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO leave_balances
		(id, user_id, leave_type_id, year, month, allocated, used, carry_over, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.LeaveTypeID, b.Year, b.Month,
		b.Allocated.String(), b.Used.String(), b.CarryOver.String(),
		b.CreatedAt.Format(time.RFC3339), b.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ConflictError{Op: "insert leave balance", Detail: "balance already exists for this user, leave type and year"}
		}
		return &core.StorageError{Op: "insert leave balance", Err: err}
	}
	return nil
}

func (s *Store) UpdateBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateBalance(ctx, s.db, b)
}

func (t *leaveTx) UpdateBalance(ctx context.Context, b leave.Balance) error {
	return updateBalance(ctx, t.tx, b)
}

func updateBalance(ctx context.Context, q dbtx, b leave.Balance) error {
	res, err := q.ExecContext(ctx, `
		UPDATE leave_balances
		SET allocated = ?, used = ?, carry_over = ?, updated_at = ?
		WHERE id = ?`,
		b.Allocated.String(), b.Used.String(), b.CarryOver.String(),
		b.UpdatedAt.Format(time.RFC3339), b.ID,
	)
	if err != nil {
		return &core.StorageError{Op: "update leave balance", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "leave balance", ID: b.ID}
	}
	return nil
}

func (s *Store) DeleteBalance(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteBalance(ctx, s.db, id)
}

func (t *leaveTx) DeleteBalance(ctx context.Context, id string) error {
	return deleteBalance(ctx, t.tx, id)
}

func deleteBalance(ctx context.Context, q dbtx, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM leave_balances WHERE id = ?`, id)
	if err != nil {
		return &core.StorageError{Op: "delete leave balance", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "leave balance", ID: id}
	}
	return nil
}

// AddToUsed applies a delta to the stored used value. The read-modify-write
// is safe standalone (mutex held) and inside WithTx (single transaction).
func (s *Store) AddToUsed(ctx context.Context, userID, leaveTypeID string, year int, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addToUsed(ctx, s.db, userID, leaveTypeID, year, delta)
}

func (t *leaveTx) AddToUsed(ctx context.Context, userID, leaveTypeID string, year int, delta decimal.Decimal) error {
	return addToUsed(ctx, t.tx, userID, leaveTypeID, year, delta)
}

func addToUsed(ctx context.Context, q dbtx, userID, leaveTypeID string, year int, delta decimal.Decimal) error {
	var used string
	err := q.QueryRowContext(ctx,
		`SELECT used FROM leave_balances WHERE user_id = ? AND leave_type_id = ? AND year = ?`,
		userID, leaveTypeID, year,
	).Scan(&used)
	if err == sql.ErrNoRows {
		return &core.NotFoundError{Kind: "leave balance", ID: fmt.Sprintf("%s/%s/%d", userID, leaveTypeID, year)}
	}
	if err != nil {
		return &core.StorageError{Op: "read used", Err: err}
	}

	newUsed := core.MustParseDecimal(used).Add(delta)
	_, err = q.ExecContext(ctx, `
		UPDATE leave_balances SET used = ?, updated_at = ?
		WHERE user_id = ? AND leave_type_id = ? AND year = ?`,
		newUsed.String(), time.Now().UTC().Format(time.RFC3339),
		userID, leaveTypeID, year,
	)
	if err != nil {
		return &core.StorageError{Op: "increment used", Err: err}
	}
	return nil
}

func (s *Store) ListBalancesByYear(ctx context.Context, year int) ([]leave.BalanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBalancesByYear(ctx, s.db, year)
}

func (t *leaveTx) ListBalancesByYear(ctx context.Context, year int) ([]leave.BalanceRow, error) {
	return listBalancesByYear(ctx, t.tx, year)
}

func listBalancesByYear(ctx context.Context, q dbtx, year int) ([]leave.BalanceRow, error) {
	// LEFT JOINs: a balance row survives its employee or leave type being
	// removed from the directory; display fields just come back empty.
	rows, err := q.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.leave_type_id, b.year, b.month,
		       b.allocated, b.used, b.carry_over, b.created_at, b.updated_at,
		       COALESCE(e.name, ''), COALESCE(e.email, ''), COALESCE(t.name, '')
		FROM leave_balances b
		LEFT JOIN employees e ON e.id = b.user_id
		LEFT JOIN leave_types t ON t.id = b.leave_type_id
		WHERE b.year = ?
		ORDER BY COALESCE(e.name, ''), b.user_id`,
		year)
	if err != nil {
		return nil, &core.StorageError{Op: "query leave balances", Err: err}
	}
	defer rows.Close()

	var out []leave.BalanceRow
	for rows.Next() {
		var (
			r                            leave.BalanceRow
			allocated, used, carryOver   string
			createdAt, updatedAt         string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.LeaveTypeID, &r.Year, &r.Month,
			&allocated, &used, &carryOver, &createdAt, &updatedAt,
			&r.UserName, &r.UserEmail, &r.LeaveTypeName); err != nil {
			return nil, &core.StorageError{Op: "scan leave balance", Err: err}
		}
		r.Allocated = core.MustParseDecimal(allocated)
		r.Used = core.MustParseDecimal(used)
		r.CarryOver = core.MustParseDecimal(carryOver)
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanBalanceRow(row *sql.Row) (*leave.Balance, error) {
	var (
		b                          leave.Balance
		allocated, used, carryOver string
		createdAt, updatedAt       string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.LeaveTypeID, &b.Year, &b.Month,
		&allocated, &used, &carryOver, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "scan leave balance", Err: err}
	}

	b.Allocated = core.MustParseDecimal(allocated)
	b.Used = core.MustParseDecimal(used)
	b.CarryOver = core.MustParseDecimal(carryOver)
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return &b, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func (t *leaveTx) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	return getRequest(ctx, t.tx, id)
}

func getRequest(ctx context.Context, q dbtx, id string) (*leave.Request, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "scan leave request", Err: err}
	}
	return &req, nil
}

func (s *Store) InsertRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRequest(ctx, s.db, r)
}

func (t *leaveTx) InsertRequest(ctx context.Context, r leave.Request) error {
	return insertRequest(ctx, t.tx, r)
}

func insertRequest(ctx context.Context, q dbtx, r leave.Request) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO leave_requests
		(id, user_id, leave_type_id, start_date, end_date, days_requested, status, reason, applied_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.LeaveTypeID,
		r.StartDate.String(), r.EndDate.String(),
		r.DaysRequested.String(), string(r.Status), nullString(r.Reason),
		r.AppliedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &core.StorageError{Op: "insert leave request", Err: err}
	}
	return nil
}

func (s *Store) UpdateRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequest(ctx, s.db, r)
}

func (t *leaveTx) UpdateRequest(ctx context.Context, r leave.Request) error {
	return updateRequest(ctx, t.tx, r)
}

func updateRequest(ctx context.Context, q dbtx, r leave.Request) error {
	res, err := q.ExecContext(ctx, `
		UPDATE leave_requests
		SET start_date = ?, end_date = ?, days_requested = ?, status = ?, reason = ?, updated_at = ?
		WHERE id = ?`,
		r.StartDate.String(), r.EndDate.String(),
		r.DaysRequested.String(), string(r.Status), nullString(r.Reason),
		r.UpdatedAt.Format(time.RFC3339), r.ID,
	)
	if err != nil {
		return &core.StorageError{Op: "update leave request", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "leave request", ID: r.ID}
	}
	return nil
}

func (s *Store) DeleteRequest(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRequest(ctx, s.db, id)
}

func (t *leaveTx) DeleteRequest(ctx context.Context, id string) error {
	return deleteRequest(ctx, t.tx, id)
}

func deleteRequest(ctx context.Context, q dbtx, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM leave_requests WHERE id = ?`, id)
	if err != nil {
		return &core.StorageError{Op: "delete leave request", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "leave request", ID: id}
	}
	return nil
}

func (s *Store) ListRequestsByUser(ctx context.Context, userID string) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequestsByUser(ctx, s.db, userID)
}

func (t *leaveTx) ListRequestsByUser(ctx context.Context, userID string) ([]leave.Request, error) {
	return listRequestsByUser(ctx, t.tx, userID)
}

func listRequestsByUser(ctx context.Context, q dbtx, userID string) ([]leave.Request, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE user_id = ? ORDER BY applied_at DESC`,
		userID)
	if err != nil {
		return nil, &core.StorageError{Op: "query leave requests", Err: err}
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, &core.StorageError{Op: "scan leave request", Err: err}
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// SumApprovedDays totals daysRequested over APPROVED requests charged to
// the given start-date year. Summed in Go to keep decimal precision.
func (s *Store) SumApprovedDays(ctx context.Context, userID, leaveTypeID string, year int) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumApprovedDays(ctx, s.db, userID, leaveTypeID, year)
}

func (t *leaveTx) SumApprovedDays(ctx context.Context, userID, leaveTypeID string, year int) (decimal.Decimal, error) {
	return sumApprovedDays(ctx, t.tx, userID, leaveTypeID, year)
}

func sumApprovedDays(ctx context.Context, q dbtx, userID, leaveTypeID string, year int) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT days_requested FROM leave_requests
		WHERE user_id = ? AND leave_type_id = ? AND status = 'APPROVED'
		  AND CAST(substr(start_date, 1, 4) AS INTEGER) = ?`,
		userID, leaveTypeID, year)
	if err != nil {
		return decimal.Zero, &core.StorageError{Op: "query approved days", Err: err}
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var days string
		if err := rows.Scan(&days); err != nil {
			return decimal.Zero, &core.StorageError{Op: "scan approved days", Err: err}
		}
		sum = sum.Add(core.MustParseDecimal(days))
	}
	return sum, rows.Err()
}

func scanRequest(r rowScanner) (leave.Request, error) {
	var (
		req                   leave.Request
		startDate, endDate    string
		days, status          string
		reason                sql.NullString
		appliedAt, updatedAt  string
	)
	err := r.Scan(&req.ID, &req.UserID, &req.LeaveTypeID, &startDate, &endDate,
		&days, &status, &reason, &appliedAt, &updatedAt)
	if err != nil {
		return req, err
	}

	req.StartDate, _ = core.ParseDate(startDate)
	req.EndDate, _ = core.ParseDate(endDate)
	req.DaysRequested = core.MustParseDecimal(days)
	req.Status = leave.RequestStatus(status)
	req.Reason = reason.String
	req.AppliedAt = parseTime(appliedAt)
	req.UpdatedAt = parseTime(updatedAt)
	return req, nil
}
