package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INSTANT - Milliseconds since the Unix epoch
// =============================================================================

// Instant is the wire representation of every timestamp the engine reads:
// clock-in, clock-out and deduction times are all epoch milliseconds.
// Calendar questions (weekday, year) are answered in a caller-supplied
// location, never the process default.
type Instant int64

const millisPerHour = 3600000

var msPerHour = decimal.NewFromInt(millisPerHour)

// Constructors
func InstantOf(t time.Time) Instant { return Instant(t.UnixMilli()) }
func Now() Instant                  { return InstantOf(time.Now()) }

func Date(year int, month time.Month, day, hour, min int, loc *time.Location) Instant {
	return InstantOf(time.Date(year, month, day, hour, min, 0, 0, locOrUTC(loc)))
}

func (i Instant) Time(loc *time.Location) time.Time {
	return time.UnixMilli(int64(i)).In(locOrUTC(loc))
}

// Comparison
func (i Instant) Before(other Instant) bool { return i < other }
func (i Instant) After(other Instant) bool  { return i > other }
func (i Instant) IsZero() bool              { return i == 0 }

// Properties
func (i Instant) Year(loc *time.Location) int             { return i.Time(loc).Year() }
func (i Instant) Weekday(loc *time.Location) time.Weekday { return i.Time(loc).Weekday() }
func (i Instant) IsWeekend(loc *time.Location) bool {
	wd := i.Weekday(loc)
	return wd == time.Saturday || wd == time.Sunday
}

func (i Instant) String() string { return time.UnixMilli(int64(i)).UTC().Format(time.RFC3339) }

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// =============================================================================
// ELAPSED TIME
// =============================================================================

// HoursBetween returns (b - a) in decimal hours. The boolean is false, and the
// amount zero, when b does not come strictly after a; callers validate
// ordering and decide how to report it.
func HoursBetween(a, b Instant) (Amount, bool) {
	if b <= a {
		return ZeroHours(), false
	}
	return Amount{Value: decimal.NewFromInt(int64(b - a)).Div(msPerHour), Unit: UnitHours}, true
}
