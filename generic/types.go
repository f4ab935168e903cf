/*
Package generic provides the domain-agnostic primitives of the overwork engine.

PURPOSE:
  This package contains the quantities, instants and errors every other
  package is built on. Whether a value is a day-off grant, a span of paid
  overtime or a weekend bonus, it is carried as an Amount with a unit and
  combined with the same decimal arithmetic.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 9.5 hours, 1 day, 25 EUR)
  - Round4: The single rounding primitive used at aggregate boundaries
  - DaysToHours / HoursToDays: The fixed 8-hour workday conversion

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. One rounding rule: Round4 at aggregate boundaries, never mid-expression
  3. No I/O: Everything here is a pure value

USAGE:
  worked := generic.NewAmount(9.5, generic.UnitHours)
  grant := generic.NewAmount(1, generic.UnitDays)
  pool := worked.Add(grant.ToHours()).Round4() // 17.5 hours

SEE ALSO:
  - time.go: Instants and TimeMath
  - period.go: Calendar-year boundaries
  - errors.go: Validation, balance and invariant errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours    Unit = "hours"
	UnitDays     Unit = "days"
	UnitCurrency Unit = "currency"
)

// HoursPerDay is the fixed workday used whenever pools are expressed
// interchangeably in days or hours.
const HoursPerDay = 8

var hoursPerDay = decimal.NewFromInt(HoursPerDay)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func Hours(value float64) Amount { return NewAmount(value, UnitHours) }
func Days(value float64) Amount  { return NewAmount(value, UnitDays) }

func ZeroHours() Amount { return Amount{Value: decimal.Zero, Unit: UnitHours} }
func ZeroDays() Amount  { return Amount{Value: decimal.Zero, Unit: UnitDays} }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) Float64() float64             { return a.Value.InexactFloat64() }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// NonNegative clamps the amount at zero. Only for display values and
// sanitized input, never for ledger totals.
func (a Amount) NonNegative() Amount {
	if a.IsNegative() {
		return a.Zero()
	}
	return a
}

// Round4 rounds to 4 decimal places.
func (a Amount) Round4() Amount { return Amount{Value: Round4(a.Value), Unit: a.Unit} }

// ToHours converts a day amount at HoursPerDay. Other units are relabelled
// as hours unchanged.
func (a Amount) ToHours() Amount {
	if a.Unit == UnitDays {
		return Amount{Value: DaysToHours(a.Value), Unit: UnitHours}
	}
	return Amount{Value: a.Value, Unit: UnitHours}
}

// ToDays converts an hour amount at HoursPerDay.
func (a Amount) ToDays() Amount {
	if a.Unit == UnitHours {
		return Amount{Value: HoursToDays(a.Value), Unit: UnitDays}
	}
	return Amount{Value: a.Value, Unit: UnitDays}
}

func (a Amount) String() string {
	return a.Value.String() + " " + string(a.Unit)
}

// SumAmounts adds amounts and rounds the total once.
func SumAmounts(unit Unit, amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Value)
	}
	return Amount{Value: Round4(total), Unit: unit}
}

// =============================================================================
// TIME MATH - Rounding and day/hour conversion
// =============================================================================

// Round4 rounds x to 4 decimal places, half away from zero.
func Round4(x decimal.Decimal) decimal.Decimal { return x.Round(4) }

func DaysToHours(d decimal.Decimal) decimal.Decimal { return d.Mul(hoursPerDay) }
func HoursToDays(h decimal.Decimal) decimal.Decimal { return h.Div(hoursPerDay) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
