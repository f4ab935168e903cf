/*
classifier.go - Day and hour classification

PURPOSE:
  Turns one clocked interval into the compliant breakdown of regular,
  unpaid allowance (Isenção) and paid overtime hours. This is the single
  implementation used by session creation, session editing and calendar
  import; none of those flows does threshold arithmetic of its own.

POLICY:
  Regular hours are capped at 8.

  Special day (weekend or bank holiday):
    No allowance. Everything past 8h is paid overtime.

  Normal day:
    Hours 8-10 form the allowance band (at most 2h per session).
    If the band fits in what is left of the annual cap:
      unpaid = band, paid = everything past 10h
    Otherwise:
      unpaid = what is left of the cap, paid = everything past 8h + unpaid

EXAMPLE:
  ClassifySession(9h, normal, 200h left)  -> 8 / 1   / 0
  ClassifySession(11h, normal, 200h left) -> 8 / 2   / 1
  ClassifySession(9h, normal, 0.5h left)  -> 8 / 0.5 / 0.5
  ClassifySession(9h, weekend, any)       -> 8 / 0   / 1

SEE ALSO:
  - allowance.go: Computes the remaining annual allowance
  - service.go: Calls BuildSession inside one store snapshot
*/
package worktime

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// DAY CLASSIFIER
// =============================================================================

// DayKind is the resolved special-day status of a session.
type DayKind struct {
	Weekend     bool
	BankHoliday bool
}

func (k DayKind) IsSpecial() bool { return k.Weekend || k.BankHoliday }

// ClassifyDay resolves both markers for the clock-in instant. Weekend is
// computed in loc; bank holidays are never detected, so an unset holiday
// flag resolves to false.
func ClassifyDay(at generic.Instant, loc *time.Location, weekend, bankHoliday DayFlag) DayKind {
	return DayKind{
		Weekend:     weekend.Resolve(at.IsWeekend(loc)),
		BankHoliday: bankHoliday.Resolve(false),
	}
}

// IsSpecialDay reports whether allowance hours are suspended at the instant.
func IsSpecialDay(at generic.Instant, loc *time.Location, weekend, bankHoliday DayFlag) bool {
	return ClassifyDay(at, loc, weekend, bankHoliday).IsSpecial()
}

// =============================================================================
// HOUR CLASSIFIER
// =============================================================================

const (
	// RegularDayHours is both the regular-hours cap and the overtime
	// threshold on special days.
	RegularDayHours = 8

	// AllowanceBandHours is the per-session allowance band on normal days.
	AllowanceBandHours = 2
)

var (
	regularCap    = decimal.NewFromInt(RegularDayHours)
	allowanceBand = decimal.NewFromInt(AllowanceBandHours)
	bandEnd       = regularCap.Add(allowanceBand)
)

// WorkingHours subtracts lunch from total when lunch falls inside the
// clocked interval. The result is never negative.
func WorkingHours(total generic.Amount, includeLunchTime bool, lunch generic.Amount) generic.Amount {
	working := generic.Amount{Value: total.Value, Unit: generic.UnitHours}
	if includeLunchTime {
		working = working.Sub(lunch)
	}
	return working.NonNegative()
}

// ClassifySession splits working hours given the special-day status and the
// allowance still available this year. All arithmetic is exact, so
// Regular + UnpaidExtra + PaidExtra == working.
func ClassifySession(working generic.Amount, isSpecial bool, remainingAllowance generic.Amount) Breakdown {
	w := decimal.Max(working.Value, decimal.Zero)
	left := decimal.Max(remainingAllowance.Value, decimal.Zero)

	regular := decimal.Min(w, regularCap)
	unpaid := decimal.Zero
	var paid decimal.Decimal

	switch {
	case isSpecial:
		paid = decimal.Max(decimal.Zero, w.Sub(regularCap))
	default:
		potential := decimal.Zero
		if w.GreaterThan(regularCap) {
			potential = decimal.Min(w.Sub(regularCap), allowanceBand)
		}
		if potential.LessThanOrEqual(left) {
			unpaid = potential
			paid = decimal.Max(decimal.Zero, w.Sub(bandEnd))
		} else {
			// Cap reached mid-band: the rest of the band becomes overtime
			unpaid = left
			paid = decimal.Max(decimal.Zero, w.Sub(regularCap).Sub(unpaid))
		}
	}

	return Breakdown{
		Regular:     generic.NewAmountFromDecimal(regular, generic.UnitHours),
		UnpaidExtra: generic.NewAmountFromDecimal(unpaid, generic.UnitHours),
		PaidExtra:   generic.NewAmountFromDecimal(paid, generic.UnitHours),
	}
}

// =============================================================================
// SESSION BUILDER - Shared by create, edit and import
// =============================================================================

// BuildSession validates the input and classifies it against the sessions
// of the snapshot. exclude must name the session being rebuilt on edit so
// its previous allowance is not counted twice. prior, when non-nil, is the
// stored version of the session and supplies its frozen grants.
func BuildSession(
	sessions []Session,
	settings Settings,
	in SessionInput,
	loc *time.Location,
	exclude Exclusion,
	prior *Session,
) (Session, error) {
	total, ok := generic.HoursBetween(in.ClockIn, in.ClockOut)
	if !ok {
		return Session{}, &generic.ValidationError{Field: "clock_out", Message: "must be after clock_in"}
	}

	lunch := settings.LunchDuration
	if in.LunchDuration != nil {
		lunch = *in.LunchDuration
	}
	if lunch.IsNegative() {
		return Session{}, &generic.ValidationError{Field: "lunch_duration", Message: "must not be negative"}
	}
	lunch.Unit = generic.UnitHours

	day := ClassifyDay(in.ClockIn, loc, in.Weekend, in.BankHoliday)
	working := WorkingHours(total, in.IncludeLunchTime, lunch)
	usage := AllowanceUsageAt(sessions, in.ClockIn, loc, settings.AnnualIsencaoLimit, exclude)
	breakdown := ClassifySession(working, day.IsSpecial(), usage.Remaining)
	daysOff, bonus := grantsFor(day, settings, prior)

	source := in.Source
	if source == "" {
		source = SourceManual
	}

	return Session{
		ClockIn:          in.ClockIn,
		ClockOut:         in.ClockOut,
		TotalHours:       total,
		IncludeLunchTime: in.IncludeLunchTime,
		LunchDuration:    lunch,
		WeekendFlag:      in.Weekend,
		BankHolidayFlag:  in.BankHoliday,
		IsWeekend:        day.Weekend,
		IsBankHoliday:    day.BankHoliday,
		RegularHours:     breakdown.Regular,
		UnpaidExtraHours: breakdown.UnpaidExtra,
		PaidExtraHours:   breakdown.PaidExtra,
		WeekendDaysOff:   daysOff,
		WeekendBonus:     bonus,
		LunchAmount:      in.LunchAmount,
		DinnerAmount:     in.DinnerAmount,
		Location:         in.Location,
		Notes:            in.Notes,
		Source:           source,
	}, nil
}

// grantsFor decides the day-off and bonus grants. Weekends always qualify;
// bank holidays qualify per grant through the settings toggles. A grant
// that was already frozen on the prior version of the session is kept.
func grantsFor(day DayKind, settings Settings, prior *Session) (daysOff, bonus generic.Amount) {
	daysOff = generic.ZeroDays()
	bonus = generic.NewAmount(0, generic.UnitCurrency)

	if day.Weekend || (day.BankHoliday && settings.BankHolidayApplyDaysOff) {
		daysOff = settings.WeekendDaysOff
		if prior != nil && prior.WeekendDaysOff.IsPositive() {
			daysOff = prior.WeekendDaysOff
		}
	}
	if day.Weekend || (day.BankHoliday && settings.BankHolidayApplyBonus) {
		bonus = settings.WeekendBonus
		if prior != nil && prior.WeekendBonus.IsPositive() {
			bonus = prior.WeekendBonus
		}
	}
	daysOff.Unit = generic.UnitDays
	bonus.Unit = generic.UnitCurrency
	return daysOff, bonus
}
