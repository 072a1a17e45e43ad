package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/store/sqlite"
)

func newTestSweeper(t *testing.T) (*attendance.Sweeper, *attendance.Ledger, *core.FixedClock, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &core.FixedClock{Current: time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)}
	sweeper := attendance.NewSweeper(store, store, clock)
	ledger := attendance.NewLedger(store, store, clock, core.DefaultPunchPolicy())
	return sweeper, ledger, clock, store
}

func TestSweep_MarksMissingUsersAbsent(t *testing.T) {
	// GIVEN: Three employees, one of whom punched in today
	// WHEN: HR runs the sweep
	// THEN: The two without records get Absent rows; the punched-in
	//       record is untouched

	sweeper, ledger, clock, store := newTestSweeper(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1", "dept-a")
	seedEmployee(t, store, "emp-2", "dept-a")
	seedEmployee(t, store, "emp-3", "dept-b")

	clock.Current = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	_, err := ledger.Punch(ctx, employee("emp-1"))
	require.NoError(t, err)
	clock.Current = time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)

	hr := core.Identity{UserID: "hr-1", Role: core.RoleHRManager}
	result, err := sweeper.RunCleanup(ctx, hr, attendance.SweepScope{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Checked)
	assert.Equal(t, 2, result.Inserted)
	assert.False(t, result.NoOp())

	for _, rec := range result.Records {
		assert.Equal(t, attendance.StatusAbsent, rec.Status)
		assert.Nil(t, rec.CheckIn)
		assert.True(t, rec.WorkHours.IsZero())
		assert.Contains(t, rec.Notes, "marked absent by hr-1 (hr_manager)")
	}

	// emp-1's punch survived.
	rec, err := store.GetRecordForDay(ctx, "emp-1", core.NewDate(2025, time.March, 10))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, attendance.StatusOnTime, rec.Status)
}

func TestSweep_SecondRun_IsNoOp(t *testing.T) {
	// Idempotence: the second sweep sees the rows the first inserted.

	sweeper, _, _, store := newTestSweeper(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-1", "dept-a")
	seedEmployee(t, store, "emp-2", "dept-a")

	admin := core.Identity{UserID: "admin-1", Role: core.RoleAdmin}

	first, err := sweeper.RunCleanup(ctx, admin, attendance.SweepScope{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := sweeper.RunCleanup(ctx, admin, attendance.SweepScope{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Checked)
	assert.Equal(t, 0, second.Inserted)
	assert.True(t, second.NoOp())
}

func TestSweep_DepartmentScope(t *testing.T) {
	sweeper, _, _, store := newTestSweeper(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-a", "dept-a")
	seedEmployee(t, store, "emp-b", "dept-b")

	hr := core.Identity{UserID: "hr-1", Role: core.RoleHRManager}
	result, err := sweeper.RunCleanup(ctx, hr, attendance.SweepScope{DepartmentID: "dept-a"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, "emp-a", result.Records[0].UserID)
}

func TestSweep_ManagerForcedToOwnDepartment(t *testing.T) {
	// A manager asking for a company-wide sweep still only touches their
	// own department.

	sweeper, _, _, store := newTestSweeper(t)
	ctx := context.Background()
	seedEmployee(t, store, "emp-a", "dept-a")
	seedEmployee(t, store, "emp-b", "dept-b")

	mgr := core.Identity{UserID: "mgr-1", Role: core.RoleManager, DepartmentID: "dept-b"}
	result, err := sweeper.RunCleanup(ctx, mgr, attendance.SweepScope{})
	require.NoError(t, err)

	assert.Equal(t, "dept-b", result.DepartmentID)
	assert.Equal(t, 1, result.Checked)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "emp-b", result.Records[0].UserID)
}

func TestSweep_EmployeeForbidden(t *testing.T) {
	sweeper, _, _, _ := newTestSweeper(t)

	_, err := sweeper.RunCleanup(context.Background(), employee("emp-1"), attendance.SweepScope{})
	assert.ErrorIs(t, err, core.ErrForbidden)
}
