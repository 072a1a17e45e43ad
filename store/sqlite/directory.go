/*
directory.go - SQLite persistence for employees and leave types

Implements directory.Store. Saves are upserts so the surrounding HR system
can sync its records in without tracking which ones already exist.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/directory"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// GetEmployee returns an employee by id, or (nil, nil) when absent.
func (s *Store) GetEmployee(ctx context.Context, id string) (*directory.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		emp                 directory.Employee
		email               sql.NullString
		hireDate, createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, department_id, hire_date, created_at FROM employees WHERE id = ?`,
		id,
	).Scan(&emp.ID, &emp.Name, &email, &emp.DepartmentID, &hireDate, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "get employee", Err: err}
	}

	emp.Email = email.String
	emp.HireDate = parseTime(hireDate)
	emp.CreatedAt = parseTime(createdAt)
	return &emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]directory.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEmployees(ctx,
		`SELECT id, name, email, department_id, hire_date, created_at FROM employees ORDER BY name`)
}

// ListEmployeesByDepartment returns a department's employees ordered by name.
func (s *Store) ListEmployeesByDepartment(ctx context.Context, departmentID string) ([]directory.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEmployees(ctx,
		`SELECT id, name, email, department_id, hire_date, created_at FROM employees WHERE department_id = ? ORDER BY name`,
		departmentID)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]directory.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.StorageError{Op: "query employees", Err: err}
	}
	defer rows.Close()

	var employees []directory.Employee
	for rows.Next() {
		var (
			emp                 directory.Employee
			email               sql.NullString
			hireDate, createdAt string
		)
		if err := rows.Scan(&emp.ID, &emp.Name, &email, &emp.DepartmentID, &hireDate, &createdAt); err != nil {
			return nil, &core.StorageError{Op: "scan employee", Err: err}
		}
		emp.Email = email.String
		emp.HireDate = parseTime(hireDate)
		emp.CreatedAt = parseTime(createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// SaveEmployee upserts an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp directory.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, department_id, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department_id = excluded.department_id,
			hire_date = excluded.hire_date`,
		emp.ID, emp.Name, nullString(emp.Email), emp.DepartmentID,
		emp.HireDate.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &core.StorageError{Op: "save employee", Err: err}
	}
	return nil
}

// DeleteEmployee removes an employee.
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return &core.StorageError{Op: "delete employee", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "employee", ID: id}
	}
	return nil
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

// GetLeaveType returns a leave type by id, or (nil, nil) when absent.
func (s *Store) GetLeaveType(ctx context.Context, id string) (*directory.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		lt        directory.LeaveType
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM leave_types WHERE id = ?`, id,
	).Scan(&lt.ID, &lt.Name, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "get leave type", Err: err}
	}

	lt.CreatedAt = parseTime(createdAt)
	return &lt, nil
}

// ListLeaveTypes returns all leave types ordered by name.
func (s *Store) ListLeaveTypes(ctx context.Context) ([]directory.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM leave_types ORDER BY name`)
	if err != nil {
		return nil, &core.StorageError{Op: "query leave types", Err: err}
	}
	defer rows.Close()

	var types []directory.LeaveType
	for rows.Next() {
		var (
			lt        directory.LeaveType
			createdAt string
		)
		if err := rows.Scan(&lt.ID, &lt.Name, &createdAt); err != nil {
			return nil, &core.StorageError{Op: "scan leave type", Err: err}
		}
		lt.CreatedAt = parseTime(createdAt)
		types = append(types, lt)
	}
	return types, rows.Err()
}

// SaveLeaveType upserts a leave type.
func (s *Store) SaveLeaveType(ctx context.Context, lt directory.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		lt.ID, lt.Name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &core.StorageError{Op: "save leave type", Err: err}
	}
	return nil
}

// DeleteLeaveType removes a leave type.
func (s *Store) DeleteLeaveType(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM leave_types WHERE id = ?`, id)
	if err != nil {
		return &core.StorageError{Op: "delete leave type", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "leave type", ID: id}
	}
	return nil
}
