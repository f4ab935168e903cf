/*
bank.go - Overwork bank balances

PURPOSE:
  Aggregates every session and deduction of a user into the two pools of
  the overwork bank: banked paid-overtime hours and day-off grants. The
  bank is lifetime-cumulative and always recomputed from the full record
  set; there is no stored balance that could drift from the records.

BALANCE COMPONENTS:
  Accrued:   Σ PaidExtraHours, Σ WeekendDaysOff (and Σ WeekendBonus)
  Used:      Deductions, split per pool; legacy deductions count fully
             against overwork hours
  Remaining: Accrued - Used per pool, plus the combined pool in hours

INVARIANTS:
  The ledger values are never clamped. Verify reports values that only a
  bug can produce; Display is the clamped view for users.

  The overwork-hours pool alone may be negative: requested raw hours always
  draw from it while feasibility is checked against the combined pool.

SEE ALSO:
  - allocator.go: Consumes a Bank to split withdrawals
  - generic/errors.go: InvariantViolationError
*/
package worktime

import (
	"errors"

	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// BANK
// =============================================================================

type Bank struct {
	AccruedOverworkHours generic.Amount
	AccruedDaysOff       generic.Amount
	AccruedHours         generic.Amount // overwork + days off in hours
	AccruedBonus         generic.Amount

	UsedOverworkHours generic.Amount
	UsedDaysOff       generic.Amount
	UsedHours         generic.Amount

	RemainingDaysOff       generic.Amount
	RemainingOverworkHours generic.Amount
	RemainingHours         generic.Amount
}

// ComputeBank aggregates the records of one snapshot. Every total is
// rounded once, at its own boundary.
func ComputeBank(sessions []Session, deductions []Deduction) Bank {
	var overwork, daysOff, bonus []generic.Amount
	for _, s := range sessions {
		overwork = append(overwork, s.PaidExtraHours)
		daysOff = append(daysOff, s.WeekendDaysOff)
		bonus = append(bonus, s.WeekendBonus)
	}

	var usedOverwork, usedDays []generic.Amount
	for _, d := range deductions {
		if d.IsLegacy() {
			usedOverwork = append(usedOverwork, d.Hours)
			continue
		}
		usedDays = append(usedDays, d.Split.DaysOffUsed)
		usedOverwork = append(usedOverwork, d.Split.OverworkHoursUsed)
	}

	b := Bank{
		AccruedOverworkHours: generic.SumAmounts(generic.UnitHours, overwork...),
		AccruedDaysOff:       generic.SumAmounts(generic.UnitDays, daysOff...),
		AccruedBonus:         generic.SumAmounts(generic.UnitCurrency, bonus...),
		UsedOverworkHours:    generic.SumAmounts(generic.UnitHours, usedOverwork...),
		UsedDaysOff:          generic.SumAmounts(generic.UnitDays, usedDays...),
	}
	b.AccruedHours = b.AccruedOverworkHours.Add(b.AccruedDaysOff.ToHours()).Round4()
	b.UsedHours = b.UsedOverworkHours.Add(b.UsedDaysOff.ToHours()).Round4()
	b.RemainingDaysOff = b.AccruedDaysOff.Sub(b.UsedDaysOff).Round4()
	b.RemainingOverworkHours = b.AccruedOverworkHours.Sub(b.UsedOverworkHours).Round4()
	b.RemainingHours = b.RemainingDaysOff.ToHours().Add(b.RemainingOverworkHours).Round4()
	return b
}

// =============================================================================
// INVARIANTS
// =============================================================================

var (
	// RoundingNoise is the drift four-decimal rounding can leave behind.
	RoundingNoise = generic.MustParseDecimal("0.0001")

	// AllocationTolerance is the slack the allocator grants when checking
	// feasibility, so the combined pool may end this far below zero.
	AllocationTolerance = generic.MustParseDecimal("0.1")
)

// Violations lists pools that are negative beyond their tolerance.
func (b Bank) Violations() []*generic.InvariantViolationError {
	var out []*generic.InvariantViolationError
	if b.RemainingHours.Value.LessThan(AllocationTolerance.Neg()) {
		out = append(out, &generic.InvariantViolationError{
			Pool:      "hours",
			Balance:   b.RemainingHours,
			Tolerance: generic.NewAmountFromDecimal(AllocationTolerance, generic.UnitHours),
		})
	}
	if b.RemainingDaysOff.Value.LessThan(RoundingNoise.Neg()) {
		out = append(out, &generic.InvariantViolationError{
			Pool:      "days_off",
			Balance:   b.RemainingDaysOff,
			Tolerance: generic.NewAmountFromDecimal(RoundingNoise, generic.UnitDays),
		})
	}
	return out
}

// Verify joins Violations into one error, nil when the bank is sound.
func (b Bank) Verify() error {
	var errs []error
	for _, v := range b.Violations() {
		errs = append(errs, v)
	}
	return errors.Join(errs...)
}

// =============================================================================
// DISPLAY
// =============================================================================

// BankDisplay is what a user sees: remaining values clamped at zero.
type BankDisplay struct {
	RemainingDaysOff       generic.Amount
	RemainingOverworkHours generic.Amount
	RemainingHours         generic.Amount
	RemainingDaysEquiv     generic.Amount // RemainingHours expressed in days
}

func (b Bank) Display() BankDisplay {
	hours := b.RemainingHours.NonNegative()
	return BankDisplay{
		RemainingDaysOff:       b.RemainingDaysOff.NonNegative(),
		RemainingOverworkHours: b.RemainingOverworkHours.NonNegative(),
		RemainingHours:         hours,
		RemainingDaysEquiv:     hours.ToDays().Round4(),
	}
}
