// Package worktime implements the work-hours classification and overwork
// bank engine on top of the generic primitives.
//
// Every function in this package is pure: it takes snapshots of sessions,
// deductions and settings and returns values. Service is the only type that
// talks to a Store, and it does so through a single atomic snapshot per call.
package worktime

import (
	"fmt"
	"strings"

	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SessionID string
type DeductionID string

// Source records which flow created a session.
type Source string

const (
	SourceClock    Source = "clock"
	SourceManual   Source = "manual"
	SourceCalendar Source = "calendar"
)

// =============================================================================
// DAY FLAG - Computed or manually overridden special-day marker
// =============================================================================

// DayFlag keeps the provenance of a weekend or bank-holiday marker: either
// the engine computes it from the clock-in instant, or the user set it.
type DayFlag struct {
	overridden bool
	value      bool
}

// Computed defers to the classifier.
func Computed() DayFlag { return DayFlag{} }

// Override pins the flag to v regardless of the calendar.
func Override(v bool) DayFlag { return DayFlag{overridden: true, value: v} }

func (f DayFlag) IsOverridden() bool { return f.overridden }

// Resolve returns the override when present, else the computed value.
func (f DayFlag) Resolve(computed bool) bool {
	if f.overridden {
		return f.value
	}
	return computed
}

func (f DayFlag) String() string {
	if !f.overridden {
		return "computed"
	}
	if f.value {
		return "true"
	}
	return "false"
}

// ParseDayFlag reads the String form. Empty input is Computed.
func ParseDayFlag(s string) (DayFlag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "computed", "auto":
		return Computed(), nil
	case "true", "yes":
		return Override(true), nil
	case "false", "no":
		return Override(false), nil
	}
	return DayFlag{}, &generic.ValidationError{Field: "day_flag", Message: fmt.Sprintf("unknown value %q", s)}
}

// =============================================================================
// BREAKDOWN - Classified hours of one session
// =============================================================================

// Breakdown splits working hours into regular, unpaid allowance (Isenção)
// and paid overtime. The three always sum to the classified working hours.
type Breakdown struct {
	Regular     generic.Amount
	UnpaidExtra generic.Amount
	PaidExtra   generic.Amount
}

func (b Breakdown) Total() generic.Amount {
	return b.Regular.Add(b.UnpaidExtra).Add(b.PaidExtra)
}

// =============================================================================
// SESSION - One clock-in/clock-out interval
// =============================================================================

type Session struct {
	ID       SessionID
	UserID   generic.UserID
	ClockIn  generic.Instant
	ClockOut generic.Instant

	// Derived: (ClockOut - ClockIn) in hours
	TotalHours generic.Amount

	IncludeLunchTime bool
	LunchDuration    generic.Amount

	// Provenance of the special-day markers, and what they resolved to
	WeekendFlag     DayFlag
	BankHolidayFlag DayFlag
	IsWeekend       bool
	IsBankHoliday   bool

	// Derived by ClassifySession
	RegularHours     generic.Amount
	UnpaidExtraHours generic.Amount
	PaidExtraHours   generic.Amount

	// Grants frozen from Settings when the session was first classified
	WeekendDaysOff generic.Amount
	WeekendBonus   generic.Amount

	// Metadata
	LunchAmount  generic.Amount
	DinnerAmount generic.Amount
	Location     string
	Notes        string
	Source       Source

	CreatedAt generic.Instant
	UpdatedAt generic.Instant
}

// WorkingHours is total hours minus lunch when lunch is tracked inside the
// clocked interval.
func (s Session) WorkingHours() generic.Amount {
	return WorkingHours(s.TotalHours, s.IncludeLunchTime, s.LunchDuration)
}

func (s Session) IsSpecialDay() bool { return s.IsWeekend || s.IsBankHoliday }

func (s Session) Breakdown() Breakdown {
	return Breakdown{Regular: s.RegularHours, UnpaidExtra: s.UnpaidExtraHours, PaidExtra: s.PaidExtraHours}
}

// SessionInput is what callers supply. Everything derived is recomputed from
// it on every create, edit and import.
type SessionInput struct {
	ClockIn  generic.Instant
	ClockOut generic.Instant

	IncludeLunchTime bool
	// Nil takes the settings default
	LunchDuration *generic.Amount

	Weekend     DayFlag
	BankHoliday DayFlag

	LunchAmount  generic.Amount
	DinnerAmount generic.Amount
	Location     string
	Notes        string
	Source       Source
}

// InputOf recovers the input a stored session was built from, so an edit
// can change one field and re-classify the rest.
func InputOf(s Session) SessionInput {
	lunch := s.LunchDuration
	return SessionInput{
		ClockIn:          s.ClockIn,
		ClockOut:         s.ClockOut,
		IncludeLunchTime: s.IncludeLunchTime,
		LunchDuration:    &lunch,
		Weekend:          s.WeekendFlag,
		BankHoliday:      s.BankHolidayFlag,
		LunchAmount:      s.LunchAmount,
		DinnerAmount:     s.DinnerAmount,
		Location:         s.Location,
		Notes:            s.Notes,
		Source:           s.Source,
	}
}

// =============================================================================
// SETTINGS - Per-user configuration, read at classification time
// =============================================================================

type Settings struct {
	LunchDuration           generic.Amount // hours
	WeekendDaysOff          generic.Amount // days
	WeekendBonus            generic.Amount // currency
	BankHolidayApplyDaysOff bool
	BankHolidayApplyBonus   bool
	AnnualIsencaoLimit      generic.Amount // hours
}

// DefaultAnnualIsencaoLimit is the yearly allowance cap in hours.
const DefaultAnnualIsencaoLimit = 200

func DefaultSettings() Settings {
	return Settings{
		LunchDuration:      generic.Hours(1),
		WeekendDaysOff:     generic.Days(1),
		WeekendBonus:       generic.NewAmount(0, generic.UnitCurrency),
		AnnualIsencaoLimit: generic.Hours(DefaultAnnualIsencaoLimit),
	}
}

// Validate rejects negative quantities.
func (s Settings) Validate() error {
	checks := []struct {
		field string
		value generic.Amount
	}{
		{"lunch_duration", s.LunchDuration},
		{"weekend_days_off", s.WeekendDaysOff},
		{"weekend_bonus", s.WeekendBonus},
		{"annual_isencao_limit", s.AnnualIsencaoLimit},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return &generic.ValidationError{Field: c.field, Message: "must not be negative"}
		}
	}
	return nil
}

// =============================================================================
// DEDUCTION - Withdrawal from the overwork bank
// =============================================================================

// PoolSplit records how much of a deduction came from each pool.
type PoolSplit struct {
	DaysOffUsed       generic.Amount // days
	OverworkHoursUsed generic.Amount // hours
}

// Deduction is immutable once created. Split is nil on legacy records,
// which are attributed entirely to the overwork-hours pool.
type Deduction struct {
	ID        DeductionID
	UserID    generic.UserID
	Timestamp generic.Instant
	Hours     generic.Amount
	Split     *PoolSplit
	Reason    string
}

func (d Deduction) IsLegacy() bool { return d.Split == nil }
