/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's decimal model from the external API contract: quantities
  travel as JSON numbers (hours, days, currency units), instants as epoch
  milliseconds.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Sessions:
    SessionDTO, SessionRequest, ImportEventRequest, ImportResultDTO

  Classification:
    ClassifyRequest, BreakdownDTO

  Bank:
    BankDTO, BankDisplayDTO, ViolationDTO, AllowanceDTO

  Deductions:
    DeductionDTO, WithdrawRequest, Quantity

  Settings:
    SettingsDTO (wraps factory.SettingsJSON)

  Scenarios:
    ScenarioDTO, ScenarioResultDTO

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data
  carriers; the one exception is Quantity, which sanitizes withdrawal input
  the way the allocator expects.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/settings.go: SettingsJSON type
*/
package api

import (
	"bytes"

	"github.com/shopspring/decimal"

	"github.com/warp/overwork-engine/factory"
	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

// =============================================================================
// SESSIONS
// =============================================================================

// SessionDTO represents a classified session in API responses.
type SessionDTO struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ClockIn  int64  `json:"clock_in"`
	ClockOut int64  `json:"clock_out"`

	TotalHours       float64 `json:"total_hours"`
	WorkingHours     float64 `json:"working_hours"`
	IncludeLunchTime bool    `json:"include_lunch_time"`
	LunchDuration    float64 `json:"lunch_duration"`

	WeekendFlag     string `json:"weekend_flag"`
	BankHolidayFlag string `json:"bank_holiday_flag"`
	IsWeekend       bool   `json:"is_weekend"`
	IsBankHoliday   bool   `json:"is_bank_holiday"`

	RegularHours     float64 `json:"regular_hours"`
	UnpaidExtraHours float64 `json:"unpaid_extra_hours"`
	PaidExtraHours   float64 `json:"paid_extra_hours"`

	WeekendDaysOff float64 `json:"weekend_days_off"`
	WeekendBonus   float64 `json:"weekend_bonus"`

	LunchAmount  float64 `json:"lunch_amount"`
	DinnerAmount float64 `json:"dinner_amount"`
	Location     string  `json:"location,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	Source       string  `json:"source"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// SessionRequest is the body for creating or editing a session. Weekend
// and BankHoliday take "computed" (or empty), "true" or "false".
type SessionRequest struct {
	ClockIn          int64    `json:"clock_in"`
	ClockOut         int64    `json:"clock_out"`
	IncludeLunchTime bool     `json:"include_lunch_time"`
	LunchDuration    *float64 `json:"lunch_duration,omitempty"`
	Weekend          string   `json:"weekend,omitempty"`
	BankHoliday      string   `json:"bank_holiday,omitempty"`
	LunchAmount      float64  `json:"lunch_amount,omitempty"`
	DinnerAmount     float64  `json:"dinner_amount,omitempty"`
	Location         string   `json:"location,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	Source           string   `json:"source,omitempty"`
}

// ImportEventRequest is a calendar event handed over by an importer.
type ImportEventRequest struct {
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
}

// MismatchDTO is one description line the engine disagreed with.
type MismatchDTO struct {
	Field     string `json:"field"`
	Described string `json:"described"`
	Computed  string `json:"computed"`
}

type ImportResultDTO struct {
	Session     SessionDTO    `json:"session"`
	Mismatches  []MismatchDTO `json:"mismatches"`
	Description string        `json:"description"` // engine rendering, for write-back
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ClassifyRequest runs the hour classifier without touching any records.
type ClassifyRequest struct {
	WorkingHours       float64 `json:"working_hours"`
	IsSpecialDay       bool    `json:"is_special_day"`
	RemainingAllowance float64 `json:"remaining_allowance"`
}

type BreakdownDTO struct {
	RegularHours     float64 `json:"regular_hours"`
	UnpaidExtraHours float64 `json:"unpaid_extra_hours"`
	PaidExtraHours   float64 `json:"paid_extra_hours"`
}

// =============================================================================
// ALLOWANCE & BANK
// =============================================================================

type AllowanceDTO struct {
	Year        int     `json:"year"`
	PeriodStart int64   `json:"period_start"`
	PeriodEnd   int64   `json:"period_end"`
	Limit       float64 `json:"limit"`
	Used        float64 `json:"used"`
	Remaining   float64 `json:"remaining"`
}

// BankDTO carries the unclamped ledger, the clamped display and any
// invariant violation.
type BankDTO struct {
	AccruedOverworkHours float64 `json:"accrued_overwork_hours"`
	AccruedDaysOff       float64 `json:"accrued_days_off"`
	AccruedHours         float64 `json:"accrued_hours"`
	AccruedBonus         float64 `json:"accrued_bonus"`

	UsedOverworkHours float64 `json:"used_overwork_hours"`
	UsedDaysOff       float64 `json:"used_days_off"`
	UsedHours         float64 `json:"used_hours"`

	RemainingDaysOff       float64 `json:"remaining_days_off"`
	RemainingOverworkHours float64 `json:"remaining_overwork_hours"`
	RemainingHours         float64 `json:"remaining_hours"`

	Display    BankDisplayDTO `json:"display"`
	Violations []ViolationDTO `json:"violations"`
}

type BankDisplayDTO struct {
	RemainingDaysOff       float64 `json:"remaining_days_off"`
	RemainingOverworkHours float64 `json:"remaining_overwork_hours"`
	RemainingHours         float64 `json:"remaining_hours"`
	RemainingDaysEquiv     float64 `json:"remaining_days_equiv"`
}

type ViolationDTO struct {
	Pool      string  `json:"pool"`
	Balance   float64 `json:"balance"`
	Tolerance float64 `json:"tolerance"`
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

// Quantity is a withdrawal quantity. It accepts a JSON number or string;
// anything non-numeric or negative reads as zero.
type Quantity struct {
	decimal.Decimal
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	q.Decimal = worktime.SanitizeQuantity(raw)
	return nil
}

type WithdrawRequest struct {
	Days   Quantity `json:"days"`
	Hours  Quantity `json:"hours"`
	Reason string   `json:"reason,omitempty"`
}

// DeductionDTO represents a deduction. Split fields are absent on legacy
// records.
type DeductionDTO struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id"`
	Timestamp         int64    `json:"timestamp"`
	Hours             float64  `json:"hours"`
	DaysOffUsed       *float64 `json:"days_off_used,omitempty"`
	OverworkHoursUsed *float64 `json:"overwork_hours_used,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	Legacy            bool     `json:"legacy"`
}

// InsufficientBalanceDTO is the detail of a 422 response.
type InsufficientBalanceDTO struct {
	Available float64 `json:"available"`
	Requested float64 `json:"requested"`
	Shortfall float64 `json:"shortfall"`
}

// =============================================================================
// SETTINGS
// =============================================================================

// SettingsDTO is the settings document; on PUT absent fields keep their
// current value.
type SettingsDTO = factory.SettingsJSON

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ScenarioResultDTO struct {
	Scenario   string         `json:"scenario"`
	UserID     string         `json:"user_id"`
	Sessions   []SessionDTO   `json:"sessions"`
	Deductions []DeductionDTO `json:"deductions"`
	Rejected   []string       `json:"rejected,omitempty"`
	Bank       BankDTO        `json:"bank"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSessionDTO(s worktime.Session) SessionDTO {
	return SessionDTO{
		ID:               string(s.ID),
		UserID:           string(s.UserID),
		ClockIn:          int64(s.ClockIn),
		ClockOut:         int64(s.ClockOut),
		TotalHours:       s.TotalHours.Float64(),
		WorkingHours:     s.WorkingHours().Float64(),
		IncludeLunchTime: s.IncludeLunchTime,
		LunchDuration:    s.LunchDuration.Float64(),
		WeekendFlag:      s.WeekendFlag.String(),
		BankHolidayFlag:  s.BankHolidayFlag.String(),
		IsWeekend:        s.IsWeekend,
		IsBankHoliday:    s.IsBankHoliday,
		RegularHours:     s.RegularHours.Float64(),
		UnpaidExtraHours: s.UnpaidExtraHours.Float64(),
		PaidExtraHours:   s.PaidExtraHours.Float64(),
		WeekendDaysOff:   s.WeekendDaysOff.Float64(),
		WeekendBonus:     s.WeekendBonus.Float64(),
		LunchAmount:      s.LunchAmount.Float64(),
		DinnerAmount:     s.DinnerAmount.Float64(),
		Location:         s.Location,
		Notes:            s.Notes,
		Source:           string(s.Source),
		CreatedAt:        int64(s.CreatedAt),
		UpdatedAt:        int64(s.UpdatedAt),
	}
}

func toSessionDTOs(sessions []worktime.Session) []SessionDTO {
	out := make([]SessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionDTO(s))
	}
	return out
}

// toInput converts a request into engine input. Flag strings are parsed
// here so a bad value is a validation error.
func (req SessionRequest) toInput() (worktime.SessionInput, error) {
	weekend, err := worktime.ParseDayFlag(req.Weekend)
	if err != nil {
		return worktime.SessionInput{}, &generic.ValidationError{Field: "weekend", Message: err.Error()}
	}
	bankHoliday, err := worktime.ParseDayFlag(req.BankHoliday)
	if err != nil {
		return worktime.SessionInput{}, &generic.ValidationError{Field: "bank_holiday", Message: err.Error()}
	}

	in := worktime.SessionInput{
		ClockIn:          generic.Instant(req.ClockIn),
		ClockOut:         generic.Instant(req.ClockOut),
		IncludeLunchTime: req.IncludeLunchTime,
		Weekend:          weekend,
		BankHoliday:      bankHoliday,
		LunchAmount:      generic.NewAmount(req.LunchAmount, generic.UnitCurrency),
		DinnerAmount:     generic.NewAmount(req.DinnerAmount, generic.UnitCurrency),
		Location:         req.Location,
		Notes:            req.Notes,
		Source:           worktime.Source(req.Source),
	}
	if req.LunchDuration != nil {
		lunch := generic.Hours(*req.LunchDuration)
		in.LunchDuration = &lunch
	}
	return in, nil
}

func toBreakdownDTO(b worktime.Breakdown) BreakdownDTO {
	return BreakdownDTO{
		RegularHours:     b.Regular.Float64(),
		UnpaidExtraHours: b.UnpaidExtra.Float64(),
		PaidExtraHours:   b.PaidExtra.Float64(),
	}
}

func toAllowanceDTO(u worktime.AllowanceUsage) AllowanceDTO {
	return AllowanceDTO{
		Year:        u.Year,
		PeriodStart: int64(u.Period.Start),
		PeriodEnd:   int64(u.Period.End),
		Limit:       u.Limit.Float64(),
		Used:        u.Used.Float64(),
		Remaining:   u.Remaining.Float64(),
	}
}

func toBankDTO(r worktime.BankReport) BankDTO {
	b := r.Bank
	dto := BankDTO{
		AccruedOverworkHours:   b.AccruedOverworkHours.Float64(),
		AccruedDaysOff:         b.AccruedDaysOff.Float64(),
		AccruedHours:           b.AccruedHours.Float64(),
		AccruedBonus:           b.AccruedBonus.Float64(),
		UsedOverworkHours:      b.UsedOverworkHours.Float64(),
		UsedDaysOff:            b.UsedDaysOff.Float64(),
		UsedHours:              b.UsedHours.Float64(),
		RemainingDaysOff:       b.RemainingDaysOff.Float64(),
		RemainingOverworkHours: b.RemainingOverworkHours.Float64(),
		RemainingHours:         b.RemainingHours.Float64(),
		Display: BankDisplayDTO{
			RemainingDaysOff:       r.Display.RemainingDaysOff.Float64(),
			RemainingOverworkHours: r.Display.RemainingOverworkHours.Float64(),
			RemainingHours:         r.Display.RemainingHours.Float64(),
			RemainingDaysEquiv:     r.Display.RemainingDaysEquiv.Float64(),
		},
		Violations: []ViolationDTO{},
	}
	for _, v := range r.Violations {
		dto.Violations = append(dto.Violations, ViolationDTO{
			Pool:      v.Pool,
			Balance:   v.Balance.Float64(),
			Tolerance: v.Tolerance.Float64(),
		})
	}
	return dto
}

func toDeductionDTO(d worktime.Deduction) DeductionDTO {
	dto := DeductionDTO{
		ID:        string(d.ID),
		UserID:    string(d.UserID),
		Timestamp: int64(d.Timestamp),
		Hours:     d.Hours.Float64(),
		Reason:    d.Reason,
		Legacy:    d.IsLegacy(),
	}
	if d.Split != nil {
		daysOff := d.Split.DaysOffUsed.Float64()
		overwork := d.Split.OverworkHoursUsed.Float64()
		dto.DaysOffUsed = &daysOff
		dto.OverworkHoursUsed = &overwork
	}
	return dto
}

func toDeductionDTOs(deductions []worktime.Deduction) []DeductionDTO {
	out := make([]DeductionDTO, 0, len(deductions))
	for _, d := range deductions {
		out = append(out, toDeductionDTO(d))
	}
	return out
}

func toMismatchDTOs(ms []worktime.FieldMismatch) []MismatchDTO {
	out := make([]MismatchDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, MismatchDTO{Field: m.Field, Described: m.Described, Computed: m.Computed})
	}
	return out
}

