package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOCK - Injected time source (fixed in tests, single canonical location)
// =============================================================================

// Clock supplies "now" to the engine. All wall-clock rules (late cutoff,
// calendar-day boundaries) are evaluated in the clock's location.
type Clock interface {
	// Now returns the current time, already shifted into the canonical location.
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Loc *time.Location
}

func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{Loc: loc}
}

func (c *SystemClock) Now() time.Time { return time.Now().In(c.Loc) }

// FixedClock always returns the same instant. For tests.
type FixedClock struct {
	Current time.Time
}

func (c *FixedClock) Now() time.Time { return c.Current }

// Advance moves the fixed clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.Current = c.Current.Add(d) }

// =============================================================================
// PUNCH POLICY - Attendance thresholds (pure configuration, no state)
// =============================================================================

// ClockTime is a wall-clock time of day, used for the late-arrival cutoff.
type ClockTime struct {
	Hour   int
	Minute int
}

// PunchPolicy holds the attendance thresholds. Zero state: the same policy
// value can be shared by every caller.
type PunchPolicy struct {
	// LateCutoff is the wall-clock time after which an arrival counts as late.
	LateCutoff ClockTime

	// HalfDayThreshold is the minimum worked hours for a full day.
	HalfDayThreshold decimal.Decimal

	// DebounceWindow is the minimum gap between a check-in and the punch that
	// closes it. Guards against accidental double-submission.
	DebounceWindow time.Duration
}

// DefaultPunchPolicy returns the standard thresholds: late after 09:05,
// half day under 4 worked hours, 2 minute punch debounce.
func DefaultPunchPolicy() PunchPolicy {
	return PunchPolicy{
		LateCutoff:       ClockTime{Hour: 9, Minute: 5},
		HalfDayThreshold: decimal.NewFromInt(4),
		DebounceWindow:   2 * time.Minute,
	}
}

// IsLate reports whether an arrival at t is past the cutoff on t's own day.
func (p PunchPolicy) IsLate(t time.Time) bool {
	cutoff := time.Date(t.Year(), t.Month(), t.Day(), p.LateCutoff.Hour, p.LateCutoff.Minute, 0, 0, t.Location())
	return t.After(cutoff)
}
