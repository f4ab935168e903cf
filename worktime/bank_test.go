package worktime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

func accrual(paid, daysOff string) worktime.Session {
	return worktime.Session{PaidExtraHours: hours(paid), WeekendDaysOff: days(daysOff)}
}

func split(daysOff, overwork string) worktime.Deduction {
	return worktime.Deduction{
		Hours: hours(overwork).Add(days(daysOff).ToHours()),
		Split: &worktime.PoolSplit{DaysOffUsed: days(daysOff), OverworkHoursUsed: hours(overwork)},
	}
}

// scenarioEBank holds 2 days off and 3 overwork hours.
func scenarioEBank() []worktime.Session {
	return []worktime.Session{accrual("1", "1"), accrual("2", "1"), accrual("0", "0")}
}

func TestComputeBank_Accrual(t *testing.T) {
	bank := worktime.ComputeBank(scenarioEBank(), nil)

	assertAmount(t, "3", bank.AccruedOverworkHours)
	assertAmount(t, "2", bank.AccruedDaysOff)
	assertAmount(t, "19", bank.AccruedHours)
	assertAmount(t, "19", bank.RemainingHours)
	assert.Equal(t, generic.UnitDays, bank.AccruedDaysOff.Unit)
	assert.Empty(t, bank.Violations())
	assert.NoError(t, bank.Verify())
}

func TestComputeBank_SplitDeductions(t *testing.T) {
	bank := worktime.ComputeBank(scenarioEBank(), []worktime.Deduction{split("1", "2")})

	assertAmount(t, "1", bank.UsedDaysOff)
	assertAmount(t, "2", bank.UsedOverworkHours)
	assertAmount(t, "10", bank.UsedHours)
	assertAmount(t, "1", bank.RemainingDaysOff)
	assertAmount(t, "1", bank.RemainingOverworkHours)
	assertAmount(t, "9", bank.RemainingHours)
}

func TestComputeBank_LegacyDeductionDrawsOverworkOnly(t *testing.T) {
	// GIVEN: A deduction stored before pool splits were recorded
	legacy := worktime.Deduction{Hours: hours("8")}

	// WHEN: The bank is computed
	bank := worktime.ComputeBank(scenarioEBank(), []worktime.Deduction{legacy})

	// THEN: Its hours come entirely out of overwork; days off are untouched
	assertAmount(t, "0", bank.UsedDaysOff)
	assertAmount(t, "8", bank.UsedOverworkHours)
	assertAmount(t, "2", bank.RemainingDaysOff)
	assertAmount(t, "-5", bank.RemainingOverworkHours)
	assertAmount(t, "11", bank.RemainingHours)
	assert.Empty(t, bank.Violations(), "a negative overwork pool alone is legitimate")
}

func TestComputeBank_RoundsAggregatesOnce(t *testing.T) {
	var sessions []worktime.Session
	for i := 0; i < 3; i++ {
		sessions = append(sessions, accrual("0.33335", "0"))
	}

	bank := worktime.ComputeBank(sessions, nil)

	assertAmount(t, "1.0001", bank.AccruedOverworkHours)
}

func TestBank_ViolationsAreReportedNotClamped(t *testing.T) {
	// GIVEN: Deductions that overdraw both pools
	ded := []worktime.Deduction{split("3", "20")}

	// WHEN: The bank is computed
	bank := worktime.ComputeBank(scenarioEBank(), ded)

	// THEN: The ledger keeps the negative values and both pools are flagged
	assertAmount(t, "-1", bank.RemainingDaysOff)
	assertAmount(t, "-25", bank.RemainingHours)

	violations := bank.Violations()
	require.Len(t, violations, 2)
	assert.Equal(t, "hours", violations[0].Pool)
	assert.Equal(t, "days_off", violations[1].Pool)

	err := bank.Verify()
	assert.ErrorIs(t, err, generic.ErrInvariantViolation)

	display := bank.Display()
	assertAmount(t, "0", display.RemainingDaysOff)
	assertAmount(t, "0", display.RemainingHours)
	assertAmount(t, "0", display.RemainingDaysEquiv)
}

func TestBank_ToleranceAbsorbsRoundingSlack(t *testing.T) {
	// 19h available, 19.05h withdrawn: within the 0.1h allocation slack
	bank := worktime.ComputeBank(scenarioEBank(), []worktime.Deduction{split("2", "3.05")})

	assertAmount(t, "-0.05", bank.RemainingHours)
	assert.Empty(t, bank.Violations())
	assertAmount(t, "0", bank.Display().RemainingOverworkHours)
}

func TestBank_DisplayDaysEquivalent(t *testing.T) {
	bank := worktime.ComputeBank([]worktime.Session{accrual("4", "1")}, nil)

	display := bank.Display()

	assertAmount(t, "12", display.RemainingHours)
	assertAmount(t, "1.5", display.RemainingDaysEquiv)
}
