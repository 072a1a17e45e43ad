package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(id, userID string, date core.Date) attendance.Record {
	now := date.At(9, 0, time.UTC)
	return attendance.Record{
		ID:        id,
		UserID:    userID,
		Date:      date,
		CheckIn:   &now,
		Status:    attendance.StatusOnTime,
		WorkHours: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// =============================================================================
// ATTENDANCE RECORDS
// =============================================================================

func TestAttendance_UniqueUserDate(t *testing.T) {
	// The (user, date) unique index turns a duplicate insert into a
	// conflict, even across different record ids.

	store := newStore(t)
	ctx := context.Background()
	march10 := core.NewDate(2025, time.March, 10)

	require.NoError(t, store.InsertRecord(ctx, record("rec-1", "emp-1", march10)))

	err := store.InsertRecord(ctx, record("rec-2", "emp-1", march10))
	assert.ErrorIs(t, err, core.ErrConflict)

	// Different user or different date is fine.
	assert.NoError(t, store.InsertRecord(ctx, record("rec-3", "emp-2", march10)))
	assert.NoError(t, store.InsertRecord(ctx, record("rec-4", "emp-1", march10.AddDays(1))))
}

func TestAttendance_BatchInsert_Atomic(t *testing.T) {
	// GIVEN: A batch whose second row collides with an existing record
	// WHEN: Inserting the batch
	// THEN: Nothing from the batch is persisted

	store := newStore(t)
	ctx := context.Background()
	march10 := core.NewDate(2025, time.March, 10)

	require.NoError(t, store.InsertRecord(ctx, record("rec-1", "emp-2", march10)))

	err := store.InsertRecords(ctx, []attendance.Record{
		record("rec-2", "emp-1", march10),
		record("rec-3", "emp-2", march10),
	})
	require.Error(t, err)

	got, err := store.GetRecord(ctx, "rec-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAttendance_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	march10 := core.NewDate(2025, time.March, 10)

	rec := record("rec-1", "emp-1", march10)
	out := march10.At(17, 30, time.UTC)
	rec.CheckOut = &out
	rec.WorkHours = decimal.RequireFromString("8.5")
	rec.Notes = "paired with on-call shift"
	require.NoError(t, store.InsertRecord(ctx, rec))

	got, err := store.GetRecordForDay(ctx, "emp-1", march10)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, got.CheckIn.Equal(*rec.CheckIn))
	assert.True(t, got.CheckOut.Equal(out))
	assert.True(t, got.WorkHours.Equal(rec.WorkHours))
	assert.Equal(t, rec.Notes, got.Notes)
}

func TestAttendance_CloseRecord_OnlyOnce(t *testing.T) {
	// GIVEN: An open session
	// WHEN: Two close attempts race past the ledger's read-check
	// THEN: The first lands, the second conflicts and leaves the first
	//       writer's values in place

	store := newStore(t)
	ctx := context.Background()
	march10 := core.NewDate(2025, time.March, 10)

	rec := record("rec-1", "emp-1", march10)
	require.NoError(t, store.InsertRecord(ctx, rec))

	out := march10.At(17, 0, time.UTC)
	rec.CheckOut = &out
	rec.WorkHours = decimal.RequireFromString("8")
	require.NoError(t, store.CloseRecord(ctx, rec))

	later := march10.At(17, 5, time.UTC)
	rec.CheckOut = &later
	err := store.CloseRecord(ctx, rec)
	assert.ErrorIs(t, err, core.ErrConflict)

	got, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CheckOut.Equal(out))

	err = store.CloseRecord(ctx, record("nope", "emp-1", march10))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAttendance_MissingLookups_ReturnNil(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	got, err := store.GetRecord(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetRecordForDay(ctx, "emp-1", core.NewDate(2025, time.March, 10))
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// LEAVE BALANCES AND TRANSACTIONS
// =============================================================================

func balance(id, userID string, year int) leave.Balance {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	return leave.Balance{
		ID:          id,
		UserID:      userID,
		LeaveTypeID: "annual",
		Year:        year,
		Allocated:   decimal.NewFromInt(12),
		Used:        decimal.Zero,
		CarryOver:   decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestAddToUsed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBalance(ctx, balance("bal-1", "emp-1", 2025)))

	require.NoError(t, store.AddToUsed(ctx, "emp-1", "annual", 2025, decimal.RequireFromString("2.5")))
	require.NoError(t, store.AddToUsed(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(1)))

	b, err := store.GetBalance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(decimal.RequireFromString("3.5")))

	// No row for the key: the caller decides whether to create one.
	err = store.AddToUsed(ctx, "emp-9", "annual", 2025, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A balance row
	// WHEN: A transaction increments used and then fails
	// THEN: The increment is rolled back

	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBalance(ctx, balance("bal-1", "emp-1", 2025)))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s leave.Store) error {
		if err := s.AddToUsed(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(3)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := store.GetBalance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.IsZero())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBalance(ctx, balance("bal-1", "emp-1", 2025)))

	err := store.WithTx(ctx, func(s leave.Store) error {
		return s.AddToUsed(ctx, "emp-1", "annual", 2025, decimal.NewFromInt(3))
	})
	require.NoError(t, err)

	b, err := store.GetBalance(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, b.Used.Equal(decimal.NewFromInt(3)))
}

func TestSumApprovedDays_ByStartYear(t *testing.T) {
	// Requests are charged to their start-date year; pending and
	// rejected ones never count.

	store := newStore(t)
	ctx := context.Background()
	applied := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id string, status leave.RequestStatus, start core.Date, d string) leave.Request {
		return leave.Request{
			ID:            id,
			UserID:        "emp-1",
			LeaveTypeID:   "annual",
			StartDate:     start,
			EndDate:       start.AddDays(2),
			DaysRequested: decimal.RequireFromString(d),
			Status:        status,
			AppliedAt:     applied,
			UpdatedAt:     applied,
		}
	}
	require.NoError(t, store.InsertRequest(ctx, mk("r-1", leave.StatusApproved, core.NewDate(2025, time.July, 7), "3")))
	require.NoError(t, store.InsertRequest(ctx, mk("r-2", leave.StatusApproved, core.NewDate(2025, time.September, 1), "0.5")))
	require.NoError(t, store.InsertRequest(ctx, mk("r-3", leave.StatusPending, core.NewDate(2025, time.October, 6), "2")))
	require.NoError(t, store.InsertRequest(ctx, mk("r-4", leave.StatusApproved, core.NewDate(2026, time.January, 5), "4")))

	sum, err := store.SumApprovedDays(ctx, "emp-1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("3.5")))

	sum, err = store.SumApprovedDays(ctx, "emp-1", "annual", 2026)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(4)))
}
