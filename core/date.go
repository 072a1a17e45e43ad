package core

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar-date value type (no time-of-day component)
// =============================================================================

// Date is a calendar day. It deliberately carries no time-of-day and no
// location: two punches on the same wall-clock day compare equal regardless
// of the timestamp instants involved. The engine evaluates wall-clock days
// in a single canonical location held by the Clock.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// String renders the date as "YYYY-MM-DD" (also the storage format).
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// At anchors the date at the given wall-clock time in loc.
func (d Date) At(hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Comparison
func (d Date) Equal(other Date) bool { return d == other }
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}
func (d Date) After(other Date) bool { return other.Before(d) }

// AddDays returns the date n days later (negative n goes back).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return DateOf(t)
}
