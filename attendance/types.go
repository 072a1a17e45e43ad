/*
Package attendance implements the daily attendance ledger and the absence
sweeper.

PURPOSE:
  Owns the one-record-per-user-per-day invariant and the punch state machine:

    NoRecord -> CheckedIn -> CheckedOut   (terminal for that date)

  Status is always derived from the timestamps under the punch policy, except
  when a privileged caller overrides it explicitly or the sweeper marks a day
  Absent.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: Closed enum {OnTime, Late, HalfDay, Absent}
  - Record: One attendance row per (user, calendar date)
  - Pure derivation helpers: ArrivalStatus, FinalStatus, WorkHours

DESIGN PRINCIPLES:
  1. Status derivation is pure: same timestamps + policy always yield the
     same status (re-derivable at any time)
  2. The store's unique (user, date) index is the last line of defense
     against concurrent punches; the ledger surfaces the loser as a conflict

SEE ALSO:
  - ledger.go: Punch/check-in/check-out/manual-edit operations
  - sweeper.go: Batch Absent fill-in
  - store.go: Persistence interface
*/
package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
)

// =============================================================================
// STATUS - Closed enum, derived from timestamps
// =============================================================================

type Status string

const (
	StatusOnTime  Status = "on_time"
	StatusLate    Status = "late"
	StatusHalfDay Status = "half_day"
	StatusAbsent  Status = "absent"
)

// ValidStatus reports whether s names a known status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusOnTime, StatusLate, StatusHalfDay, StatusAbsent:
		return true
	}
	return false
}

// =============================================================================
// RECORD - One row per (user, calendar date)
// =============================================================================

type Record struct {
	ID        string
	UserID    string
	Date      core.Date
	CheckIn   *time.Time
	CheckOut  *time.Time
	Status    Status
	WorkHours decimal.Decimal
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the record is a check-in awaiting its check-out.
func (r *Record) Open() bool {
	return r.CheckIn != nil && r.CheckOut == nil
}

// =============================================================================
// STATUS DERIVATION - Pure functions of timestamps and policy
// =============================================================================

// ArrivalStatus derives the check-in status: Late past the cutoff on the
// arrival's own day, OnTime otherwise.
func ArrivalStatus(checkIn time.Time, policy core.PunchPolicy) Status {
	if policy.IsLate(checkIn) {
		return StatusLate
	}
	return StatusOnTime
}

// FinalStatus derives the status after check-out: HalfDay when fewer hours
// were worked than the threshold, otherwise the arrival-derived status.
func FinalStatus(arrival Status, workHours decimal.Decimal, policy core.PunchPolicy) Status {
	if workHours.LessThan(policy.HalfDayThreshold) {
		return StatusHalfDay
	}
	return arrival
}

// WorkHours computes the worked span in hours, rounded to 2 decimals.
// A span that is not positive yields zero.
func WorkHours(checkIn, checkOut time.Time) decimal.Decimal {
	elapsed := checkOut.Sub(checkIn)
	if elapsed <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(elapsed.Hours()).Round(2)
}
