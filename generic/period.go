package generic

import "time"

// =============================================================================
// PERIOD - Closed interval of instants
// =============================================================================

// Period is the closed interval [Start, End].
//
// Examples:
//   - Calendar year 2025 in Lisbon: Jan 1 00:00:00.000 - Dec 31 23:59:59.999 WET
type Period struct {
	Start Instant
	End   Instant
}

// Contains returns true if the instant is within the period [Start, End]
func (p Period) Contains(i Instant) bool {
	return i >= p.Start && i <= p.End
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// CalendarYear returns the local calendar year containing the instant.
// Boundaries follow the location's offsets, so a year that crosses a DST
// change is still exactly Jan 1 00:00 to Dec 31 23:59:59.999 on the wall clock.
func CalendarYear(at Instant, loc *time.Location) Period {
	return CalendarYearOf(at.Year(loc), loc)
}

// CalendarYearOf returns the period for the numbered year in loc.
func CalendarYearOf(year int, loc *time.Location) Period {
	loc = locOrUTC(loc)
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	next := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	return Period{Start: InstantOf(start), End: InstantOf(next) - 1}
}

// NextPeriod returns the calendar year following this one.
func (p Period) NextPeriod(loc *time.Location) Period {
	return CalendarYear(p.End+1, loc)
}

// PreviousPeriod returns the calendar year before this one.
func (p Period) PreviousPeriod(loc *time.Location) Period {
	return CalendarYear(p.Start-1, loc)
}
