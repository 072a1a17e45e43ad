/*
Package directory holds the employee and leave-type records the accounting
engine reads for scoping and display.

PURPOSE:
  The engine is not the system of record for people or departments; the
  surrounding HR application owns those. This package defines just the slice
  the engine needs: who exists, which department they belong to (Manager
  scoping, absence sweeps), and the leave-type metadata joined into balance
  listings.

SEE ALSO:
  - attendance/sweeper.go: Resolves sweep scopes through Store
  - leave/balance.go: Joins employee and leave-type names into listings
*/
package directory

import (
	"context"
	"time"
)

// Employee is the directory view of a person.
type Employee struct {
	ID           string
	Name         string
	Email        string
	DepartmentID string
	HireDate     time.Time
	CreatedAt    time.Time
}

// LeaveType is a kind of leave an employee can request (annual, sick, ...).
type LeaveType struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Store is the persistence interface for directory records.
// Lookups return (nil, nil) when the record does not exist.
type Store interface {
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListEmployeesByDepartment(ctx context.Context, departmentID string) ([]Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error
	DeleteEmployee(ctx context.Context, id string) error

	GetLeaveType(ctx context.Context, id string) (*LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	SaveLeaveType(ctx context.Context, lt LeaveType) error
	DeleteLeaveType(ctx context.Context, id string) error
}
