package worktime

import (
	"time"

	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// EXCLUSION - Which stored session, if any, to leave out of a scan
// =============================================================================

// Exclusion is passed to every allowance scan. Editing a session must
// exclude it, otherwise its old allowance is counted against its new one.
type Exclusion struct {
	id  SessionID
	set bool
}

// NoExclusion scans every session; used for new sessions and imports.
var NoExclusion = Exclusion{}

// ExcludeSession leaves the named session out of the scan.
func ExcludeSession(id SessionID) Exclusion { return Exclusion{id: id, set: true} }

func (e Exclusion) Excludes(id SessionID) bool { return e.set && e.id == id }

// =============================================================================
// ANNUAL ALLOWANCE TRACKER
// =============================================================================

// UsedAllowanceHours sums UnpaidExtraHours over sessions that clocked in
// during the local calendar year containing at. It is a full scan on every
// call: sessions may be added, edited or deleted in any order.
func UsedAllowanceHours(sessions []Session, at generic.Instant, loc *time.Location, exclude Exclusion) generic.Amount {
	year := generic.CalendarYear(at, loc)
	used := generic.ZeroHours()
	for _, s := range sessions {
		if exclude.Excludes(s.ID) || !year.Contains(s.ClockIn) {
			continue
		}
		used = used.Add(s.UnpaidExtraHours)
	}
	return used.Round4()
}

// RemainingAllowance is max(0, limit - used).
func RemainingAllowance(limit, used generic.Amount) generic.Amount {
	return generic.Amount{Value: limit.Value.Sub(used.Value), Unit: generic.UnitHours}.NonNegative()
}

// AllowanceUsage is the allowance picture for one calendar year.
type AllowanceUsage struct {
	Year      int
	Period    generic.Period
	Limit     generic.Amount
	Used      generic.Amount
	Remaining generic.Amount
}

// AllowanceUsageAt computes used and remaining allowance for the year
// containing at.
func AllowanceUsageAt(sessions []Session, at generic.Instant, loc *time.Location, limit generic.Amount, exclude Exclusion) AllowanceUsage {
	used := UsedAllowanceHours(sessions, at, loc, exclude)
	return AllowanceUsage{
		Year:      at.Year(loc),
		Period:    generic.CalendarYear(at, loc),
		Limit:     limit,
		Used:      used,
		Remaining: RemainingAllowance(limit, used),
	}
}
