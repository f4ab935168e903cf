/*
allocator.go - Withdrawal allocation against the overwork bank

PURPOSE:
  Validates a withdrawal request (days + hours) and splits it across the
  two pools of the bank. The split is fixed policy, not an optimization:

    1. Whole requested days come from the days-off pool first
    2. Days the pool can't cover spill into overwork hours at 8h/day
    3. Requested raw hours always come from overwork hours

  Feasibility is checked against the combined pool with a 0.1h tolerance.

EXAMPLE:
  Bank: 2 days off, 3 overwork hours (19h combined)

  Request 1 day + 2 hours:
    total 10h, days off 1, overwork 2       -> accepted
  Request 3 days:
    total 24h > 19h + 0.1h                  -> InsufficientBalanceError

SEE ALSO:
  - bank.go: Produces the balances this allocator reads
  - service.go: Persists the resulting Deduction
*/
package worktime

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// REQUEST
// =============================================================================

type WithdrawalRequest struct {
	Days   decimal.Decimal
	Hours  decimal.Decimal
	Reason string
}

// SanitizeQuantity reads user input. Anything non-numeric or negative is 0.
func SanitizeQuantity(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocation is the two-pool split of one request.
type Allocation struct {
	TotalHours         generic.Amount
	DaysOffToUse       generic.Amount
	OverworkHoursToUse generic.Amount
}

// Allocate splits the request against the bank without creating a record.
func Allocate(req WithdrawalRequest, bank Bank) (Allocation, error) {
	days := nonNegative(req.Days)
	hours := nonNegative(req.Hours)
	if !days.IsPositive() && !hours.IsPositive() {
		return Allocation{}, &generic.ValidationError{Field: "amount", Message: "days or hours must be greater than zero"}
	}

	total := generic.Round4(generic.DaysToHours(days).Add(hours))

	available := decimal.Max(bank.RemainingDaysOff.Value, decimal.Zero)
	daysOff := decimal.Min(days, available)
	shortfallDays := days.Sub(daysOff)
	overwork := generic.Round4(generic.DaysToHours(shortfallDays).Add(hours))

	if total.GreaterThan(bank.RemainingHours.Value.Add(AllocationTolerance)) {
		return Allocation{}, &generic.InsufficientBalanceError{
			Available: bank.RemainingHours,
			Requested: generic.NewAmountFromDecimal(total, generic.UnitHours),
			Shortfall: generic.NewAmountFromDecimal(generic.Round4(total.Sub(bank.RemainingHours.Value)), generic.UnitHours),
		}
	}

	return Allocation{
		TotalHours:         generic.NewAmountFromDecimal(total, generic.UnitHours),
		DaysOffToUse:       generic.NewAmountFromDecimal(daysOff, generic.UnitDays),
		OverworkHoursToUse: generic.NewAmountFromDecimal(overwork, generic.UnitHours),
	}, nil
}

// AllocateDeduction allocates and builds the Deduction record. The caller
// assigns the ID and persists it.
func AllocateDeduction(req WithdrawalRequest, bank Bank, now generic.Instant) (Deduction, error) {
	alloc, err := Allocate(req, bank)
	if err != nil {
		return Deduction{}, err
	}
	return Deduction{
		Timestamp: now,
		Hours:     alloc.TotalHours,
		Split: &PoolSplit{
			DaysOffUsed:       alloc.DaysOffToUse,
			OverworkHoursUsed: alloc.OverworkHoursToUse,
		},
		Reason: req.Reason,
	}, nil
}
