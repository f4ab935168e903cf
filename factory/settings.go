/*
Package factory provides JSON to Go settings conversion.

PURPOSE:
  Converts JSON settings documents into worktime.Settings. Documents are
  patches: any field left out keeps the value of the base settings, so a
  client can change one toggle without restating the rest.

JSON SCHEMA:
  {
    "lunch_duration": 1,                  // hours
    "weekend_days_off": 1,                // days per weekend session
    "weekend_bonus": 25,                  // currency per weekend session
    "bank_holiday_apply_days_off": true,
    "bank_holiday_apply_bonus": false,
    "annual_isencao_limit": 200           // hours per calendar year
  }

USAGE:
  factory := NewSettingsFactory(worktime.DefaultSettings())

  // Patch over the user's current settings
  settings, err := factory.ParseSettings(current, body)

  // Back to JSON
  doc := factory.ToJSON(settings)

SEE ALSO:
  - worktime/types.go: Settings type definition
  - config/config.go: Process-wide defaults under "defaults.*"
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettingsJSON is the JSON representation of settings. Nil fields are
// absent from the document.
type SettingsJSON struct {
	LunchDuration           *float64 `json:"lunch_duration,omitempty"`
	WeekendDaysOff          *float64 `json:"weekend_days_off,omitempty"`
	WeekendBonus            *float64 `json:"weekend_bonus,omitempty"`
	BankHolidayApplyDaysOff *bool    `json:"bank_holiday_apply_days_off,omitempty"`
	BankHolidayApplyBonus   *bool    `json:"bank_holiday_apply_bonus,omitempty"`
	AnnualIsencaoLimit      *float64 `json:"annual_isencao_limit,omitempty"`
}

// =============================================================================
// SETTINGS FACTORY
// =============================================================================

// SettingsFactory converts JSON settings to Go structs.
type SettingsFactory struct {
	defaults worktime.Settings
}

// NewSettingsFactory creates a factory whose documents patch over defaults
// when no base is given.
func NewSettingsFactory(defaults worktime.Settings) *SettingsFactory {
	return &SettingsFactory{defaults: defaults}
}

// Defaults returns the settings documents are applied to by default.
func (f *SettingsFactory) Defaults() worktime.Settings { return f.defaults }

// ParseSettings parses a JSON document and applies it over base.
func (f *SettingsFactory) ParseSettings(base worktime.Settings, jsonStr string) (worktime.Settings, error) {
	var sj SettingsJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return worktime.Settings{}, fmt.Errorf("failed to parse settings JSON: %w", err)
	}
	return f.FromJSON(base, sj)
}

// ParseDefaults parses a document over the factory defaults.
func (f *SettingsFactory) ParseDefaults(jsonStr string) (worktime.Settings, error) {
	return f.ParseSettings(f.defaults, jsonStr)
}

// FromJSON applies sj over base and validates the result.
func (f *SettingsFactory) FromJSON(base worktime.Settings, sj SettingsJSON) (worktime.Settings, error) {
	s := base
	if sj.LunchDuration != nil {
		s.LunchDuration = amount(*sj.LunchDuration, generic.UnitHours)
	}
	if sj.WeekendDaysOff != nil {
		s.WeekendDaysOff = amount(*sj.WeekendDaysOff, generic.UnitDays)
	}
	if sj.WeekendBonus != nil {
		s.WeekendBonus = amount(*sj.WeekendBonus, generic.UnitCurrency)
	}
	if sj.BankHolidayApplyDaysOff != nil {
		s.BankHolidayApplyDaysOff = *sj.BankHolidayApplyDaysOff
	}
	if sj.BankHolidayApplyBonus != nil {
		s.BankHolidayApplyBonus = *sj.BankHolidayApplyBonus
	}
	if sj.AnnualIsencaoLimit != nil {
		s.AnnualIsencaoLimit = amount(*sj.AnnualIsencaoLimit, generic.UnitHours)
	}

	if err := s.Validate(); err != nil {
		return worktime.Settings{}, err
	}
	return s, nil
}

// ToJSON converts Settings to a complete SettingsJSON.
func (f *SettingsFactory) ToJSON(s worktime.Settings) SettingsJSON {
	lunch := s.LunchDuration.Float64()
	daysOff := s.WeekendDaysOff.Float64()
	bonus := s.WeekendBonus.Float64()
	limit := s.AnnualIsencaoLimit.Float64()
	applyDaysOff := s.BankHolidayApplyDaysOff
	applyBonus := s.BankHolidayApplyBonus

	return SettingsJSON{
		LunchDuration:           &lunch,
		WeekendDaysOff:          &daysOff,
		WeekendBonus:            &bonus,
		BankHolidayApplyDaysOff: &applyDaysOff,
		BankHolidayApplyBonus:   &applyBonus,
		AnnualIsencaoLimit:      &limit,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// amount keeps the float's shortest decimal form: 0.1 stays 0.1.
func amount(v float64, unit generic.Unit) generic.Amount {
	return generic.NewAmount(v, unit)
}
