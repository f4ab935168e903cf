package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

func TestParseSettings_FullDocument(t *testing.T) {
	f := NewSettingsFactory(worktime.DefaultSettings())

	jsonStr := `{
		"lunch_duration": 0.5,
		"weekend_days_off": 1.5,
		"weekend_bonus": 40,
		"bank_holiday_apply_days_off": true,
		"bank_holiday_apply_bonus": true,
		"annual_isencao_limit": 150
	}`

	s, err := f.ParseDefaults(jsonStr)
	require.NoError(t, err)

	assert.Equal(t, "0.5", s.LunchDuration.Value.String())
	assert.Equal(t, generic.UnitHours, s.LunchDuration.Unit)
	assert.Equal(t, "1.5", s.WeekendDaysOff.Value.String())
	assert.Equal(t, generic.UnitDays, s.WeekendDaysOff.Unit)
	assert.Equal(t, "40", s.WeekendBonus.Value.String())
	assert.Equal(t, generic.UnitCurrency, s.WeekendBonus.Unit)
	assert.True(t, s.BankHolidayApplyDaysOff)
	assert.True(t, s.BankHolidayApplyBonus)
	assert.Equal(t, "150", s.AnnualIsencaoLimit.Value.String())
}

func TestParseSettings_PatchKeepsBase(t *testing.T) {
	// GIVEN: A user who already set a bonus
	f := NewSettingsFactory(worktime.DefaultSettings())
	base := worktime.DefaultSettings()
	base.WeekendBonus = generic.NewAmount(25, generic.UnitCurrency)

	// WHEN: Only one toggle is sent
	s, err := f.ParseSettings(base, `{"bank_holiday_apply_bonus": true}`)

	// THEN: Everything else is untouched
	require.NoError(t, err)
	assert.True(t, s.BankHolidayApplyBonus)
	assert.False(t, s.BankHolidayApplyDaysOff)
	assert.Equal(t, "25", s.WeekendBonus.Value.String())
	assert.Equal(t, "1", s.LunchDuration.Value.String())
	assert.Equal(t, "200", s.AnnualIsencaoLimit.Value.String())
}

func TestParseSettings_ExplicitZeroIsApplied(t *testing.T) {
	f := NewSettingsFactory(worktime.DefaultSettings())

	s, err := f.ParseDefaults(`{"weekend_days_off": 0}`)

	require.NoError(t, err)
	assert.True(t, s.WeekendDaysOff.IsZero())
}

func TestParseSettings_Rejects(t *testing.T) {
	f := NewSettingsFactory(worktime.DefaultSettings())

	_, err := f.ParseDefaults(`{"annual_isencao_limit": -1}`)
	var verr *generic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "annual_isencao_limit", verr.Field)

	_, err = f.ParseDefaults(`{"lunch_duration": "one"}`)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrValidation)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewSettingsFactory(worktime.DefaultSettings())
	want := worktime.DefaultSettings()
	want.WeekendBonus = generic.NewAmount(12.5, generic.UnitCurrency)
	want.BankHolidayApplyDaysOff = true

	got, err := f.FromJSON(worktime.Settings{}, f.ToJSON(want))

	require.NoError(t, err)
	assert.True(t, want.WeekendBonus.Equal(got.WeekendBonus))
	assert.True(t, want.LunchDuration.Equal(got.LunchDuration))
	assert.True(t, want.AnnualIsencaoLimit.Equal(got.AnnualIsencaoLimit))
	assert.Equal(t, want.BankHolidayApplyDaysOff, got.BankHolidayApplyDaysOff)
	assert.Equal(t, want.BankHolidayApplyBonus, got.BankHolidayApplyBonus)
}
