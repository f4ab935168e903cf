package generic_test

import (
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func lisbon(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Lisbon")
	require.NoError(t, err)
	return loc
}

// =============================================================================
// TIME MATH
// =============================================================================

func TestHoursBetween_OrderedInterval(t *testing.T) {
	in := generic.Date(2025, time.March, 10, 9, 0, time.UTC)
	out := generic.Date(2025, time.March, 10, 18, 30, time.UTC)

	h, ok := generic.HoursBetween(in, out)

	require.True(t, ok)
	assert.True(t, h.Value.Equal(decimal.RequireFromString("9.5")), "got %s", h)
	assert.Equal(t, generic.UnitHours, h.Unit)
}

func TestHoursBetween_InvalidIntervalIsReportedNotPanicked(t *testing.T) {
	at := generic.Date(2025, time.March, 10, 9, 0, time.UTC)

	for _, out := range []generic.Instant{at, at - 1} {
		h, ok := generic.HoursBetween(at, out)
		assert.False(t, ok)
		assert.True(t, h.IsZero())
	}
}

func TestRound4(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.23455", "1.2346"},
		{"1.23454", "1.2345"},
		{"-0.00005", "-0.0001"},
		{"2", "2"},
	}
	for _, c := range cases {
		got := generic.Round4(decimal.RequireFromString(c.in))
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)), "Round4(%s) = %s", c.in, got)
	}
}

func TestRound4_SumOfManySessionsDoesNotDrift(t *testing.T) {
	// GIVEN: 1000 sessions of 0.1h overtime each
	// THEN: the rounded aggregate is exactly 100
	amounts := make([]generic.Amount, 1000)
	for i := range amounts {
		amounts[i] = generic.Hours(0.1)
	}
	total := generic.SumAmounts(generic.UnitHours, amounts...)
	assert.True(t, total.Value.Equal(decimal.NewFromInt(100)), "got %s", total)
}

func TestDayHourConversion(t *testing.T) {
	assert.True(t, generic.Days(2.5).ToHours().Equal(generic.Hours(20)))
	assert.True(t, generic.Hours(4).ToDays().Equal(generic.Days(0.5)))
	assert.True(t, generic.DaysToHours(decimal.NewFromInt(3)).Equal(decimal.NewFromInt(24)))
	assert.True(t, generic.HoursToDays(decimal.NewFromInt(12)).Equal(decimal.RequireFromString("1.5")))
}

func TestAmount_NonNegative(t *testing.T) {
	assert.True(t, generic.Hours(-0.00001).NonNegative().IsZero())
	assert.True(t, generic.Hours(3).NonNegative().Equal(generic.Hours(3)))
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestInstant_IsWeekendUsesLocation(t *testing.T) {
	// Saturday 00:30 in Lisbon is still Friday 23:30 one hour west.
	loc := lisbon(t)
	sat := generic.Date(2025, time.January, 4, 0, 30, loc)

	assert.True(t, sat.IsWeekend(loc))
	assert.False(t, sat.IsWeekend(time.FixedZone("UTC-1", -3600)))
}

func TestCalendarYear_Boundaries(t *testing.T) {
	loc := lisbon(t)
	mid := generic.Date(2025, time.July, 1, 12, 0, loc)

	p := generic.CalendarYear(mid, loc)

	assert.Equal(t, generic.InstantOf(time.Date(2025, 1, 1, 0, 0, 0, 0, loc)), p.Start)
	assert.Equal(t, generic.InstantOf(time.Date(2025, 12, 31, 23, 59, 59, 999e6, loc)), p.End)
	assert.True(t, p.Contains(p.Start))
	assert.True(t, p.Contains(p.End))
	assert.False(t, p.Contains(p.End+1))
	assert.False(t, p.Contains(p.Start-1))
}

func TestCalendarYear_Navigation(t *testing.T) {
	p := generic.CalendarYearOf(2025, time.UTC)

	assert.Equal(t, generic.CalendarYearOf(2026, time.UTC), p.NextPeriod(time.UTC))
	assert.Equal(t, generic.CalendarYearOf(2024, time.UTC), p.PreviousPeriod(time.UTC))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrors_UnwrapToSentinels(t *testing.T) {
	ib := &generic.InsufficientBalanceError{
		Available: generic.Hours(19),
		Requested: generic.Hours(24),
		Shortfall: generic.Hours(5),
	}
	wrapped := fmt.Errorf("withdraw: %w", ib)

	assert.True(t, errors.Is(wrapped, generic.ErrInsufficientBalance))
	assert.True(t, generic.IsClientError(wrapped))
	assert.Contains(t, wrapped.Error(), "shortfall 5")

	v := &generic.ValidationError{Field: "clock_out", Message: "must be after clock_in"}
	assert.True(t, errors.Is(v, generic.ErrValidation))
	assert.True(t, generic.IsClientError(v))

	nf := &generic.NotFoundError{Kind: "session", ID: "s-1"}
	assert.True(t, generic.IsNotFound(fmt.Errorf("get: %w", nf)))
	assert.False(t, generic.IsClientError(nf))

	iv := &generic.InvariantViolationError{Pool: "hours", Balance: generic.Hours(-1), Tolerance: generic.Hours(0.1)}
	assert.True(t, errors.Is(iv, generic.ErrInvariantViolation))
}
