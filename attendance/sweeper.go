/*
sweeper.go - Daily absence fill-in

PURPOSE:
  Batch job that inserts an Absent record for every user in scope who has
  no attendance record today. Invoked on demand (there is no background
  scheduler); idempotent by construction because a second run sees the
  rows the first one inserted.

SCOPING:
  Admin and HR sweep all users or any single department. A Manager is
  always forced onto their own department, whatever scope they ask for.

SEE ALSO:
  - ledger.go: The per-user punch lifecycle the sweeper backfills
*/
package attendance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/directory"
)

// SweepScope selects the user set: empty DepartmentID means all users.
type SweepScope struct {
	DepartmentID string
}

// SweepResult reports what a sweep did.
type SweepResult struct {
	Date         core.Date
	DepartmentID string // empty when the whole company was swept
	Checked      int    // users in scope
	Inserted     int    // Absent records created
	Records      []Record
}

// NoOp reports that every user in scope already had a record.
func (r SweepResult) NoOp() bool { return r.Inserted == 0 }

// Sweeper fills in missing daily records as Absent.
type Sweeper struct {
	store Store
	users directory.Store
	clock core.Clock
}

func NewSweeper(store Store, users directory.Store, clock core.Clock) *Sweeper {
	return &Sweeper{store: store, users: users, clock: clock}
}

// RunCleanup inserts Absent records for everyone in scope lacking one today.
func (s *Sweeper) RunCleanup(ctx context.Context, ident core.Identity, scope SweepScope) (SweepResult, error) {
	if !ident.IsPrivileged() {
		return SweepResult{}, fmt.Errorf("role %s cannot run the absence sweep: %w", ident.Role, core.ErrForbidden)
	}
	// Managers sweep their own department only, regardless of the
	// requested scope.
	if ident.Role == core.RoleManager {
		scope.DepartmentID = ident.DepartmentID
	}

	now := s.clock.Now()
	today := core.DateOf(now)

	var (
		emps []directory.Employee
		err  error
	)
	if scope.DepartmentID == "" {
		emps, err = s.users.ListEmployees(ctx)
	} else {
		emps, err = s.users.ListEmployeesByDepartment(ctx, scope.DepartmentID)
	}
	if err != nil {
		return SweepResult{}, err
	}

	existing, err := s.store.ListRecordsForDay(ctx, today)
	if err != nil {
		return SweepResult{}, err
	}
	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[rec.UserID] = true
	}

	result := SweepResult{Date: today, DepartmentID: scope.DepartmentID, Checked: len(emps)}

	note := fmt.Sprintf("marked absent by %s (%s) at %s", ident.UserID, ident.Role, now.Format("2006-01-02 15:04:05"))
	var missing []Record
	for _, emp := range emps {
		if seen[emp.ID] {
			continue
		}
		missing = append(missing, Record{
			ID:        uuid.NewString(),
			UserID:    emp.ID,
			Date:      today,
			Status:    StatusAbsent,
			WorkHours: decimal.Zero,
			Notes:     note,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if len(missing) == 0 {
		return result, nil
	}

	if err := s.store.InsertRecords(ctx, missing); err != nil {
		return SweepResult{}, err
	}
	result.Inserted = len(missing)
	result.Records = missing
	return result, nil
}
