package attendance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
)

func at(hour, min int) time.Time {
	return time.Date(2025, time.March, 10, hour, min, 0, 0, time.UTC)
}

func TestArrivalStatus_CutoffIsInclusive(t *testing.T) {
	policy := core.DefaultPunchPolicy()

	assert.Equal(t, attendance.StatusOnTime, attendance.ArrivalStatus(at(8, 30), policy))
	assert.Equal(t, attendance.StatusOnTime, attendance.ArrivalStatus(at(9, 5), policy),
		"arriving exactly at the cutoff is still on time")
	assert.Equal(t, attendance.StatusLate, attendance.ArrivalStatus(at(9, 6), policy))
}

func TestFinalStatus_HalfDayBoundary(t *testing.T) {
	policy := core.DefaultPunchPolicy()

	assert.Equal(t, attendance.StatusHalfDay,
		attendance.FinalStatus(attendance.StatusOnTime, decimal.RequireFromString("3.99"), policy))
	assert.Equal(t, attendance.StatusOnTime,
		attendance.FinalStatus(attendance.StatusOnTime, decimal.NewFromInt(4), policy),
		"exactly the threshold is a full day")
	assert.Equal(t, attendance.StatusLate,
		attendance.FinalStatus(attendance.StatusLate, decimal.NewFromInt(8), policy),
		"a full late day stays late")
}

func TestWorkHours(t *testing.T) {
	assert.True(t, attendance.WorkHours(at(9, 0), at(17, 30)).Equal(decimal.RequireFromString("8.5")))
	assert.True(t, attendance.WorkHours(at(9, 0), at(9, 40)).Equal(decimal.RequireFromString("0.67")),
		"rounded to two decimals")
	assert.True(t, attendance.WorkHours(at(17, 0), at(9, 0)).IsZero(),
		"inverted span yields zero, not negative hours")
}
