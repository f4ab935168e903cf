package worktime_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

func request(d, h string) worktime.WithdrawalRequest {
	return worktime.WithdrawalRequest{Days: decimal.RequireFromString(d), Hours: decimal.RequireFromString(h)}
}

func TestAllocate_ScenarioE_DaysFirstThenHours(t *testing.T) {
	// GIVEN: 2 days off and 3 overwork hours
	bank := worktime.ComputeBank(scenarioEBank(), nil)

	// WHEN: Taking 1 day and 2 hours
	alloc, err := worktime.Allocate(request("1", "2"), bank)

	// THEN: The day comes from days off, the hours from overwork
	require.NoError(t, err)
	assertAmount(t, "10", alloc.TotalHours)
	assertAmount(t, "1", alloc.DaysOffToUse)
	assertAmount(t, "2", alloc.OverworkHoursToUse)

	ded, err := worktime.AllocateDeduction(request("1", "2"), bank, monday10)
	require.NoError(t, err)
	after := worktime.ComputeBank(scenarioEBank(), []worktime.Deduction{ded})
	assertAmount(t, "1", after.RemainingDaysOff)
	assertAmount(t, "1", after.RemainingOverworkHours)
}

func TestAllocate_ScenarioF_Infeasible(t *testing.T) {
	bank := worktime.ComputeBank(scenarioEBank(), nil)

	_, err := worktime.Allocate(request("3", "0"), bank)

	var ib *generic.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	assertAmount(t, "19", ib.Available)
	assertAmount(t, "24", ib.Requested)
	assertAmount(t, "5", ib.Shortfall)
}

func TestAllocate_ShortfallDaysSpillIntoOverwork(t *testing.T) {
	// 1 day off and 12 overwork hours; 2 days requested
	bank := worktime.ComputeBank([]worktime.Session{accrual("12", "1")}, nil)

	alloc, err := worktime.Allocate(request("2", "0"), bank)

	require.NoError(t, err)
	assertAmount(t, "1", alloc.DaysOffToUse)
	assertAmount(t, "8", alloc.OverworkHoursToUse)
}

func TestAllocate_RawHoursNeverDrawDaysOff(t *testing.T) {
	// Only days off in the bank; raw hours still come from overwork
	bank := worktime.ComputeBank([]worktime.Session{accrual("0", "2")}, nil)

	alloc, err := worktime.Allocate(request("0", "4"), bank)

	require.NoError(t, err)
	assertAmount(t, "0", alloc.DaysOffToUse)
	assertAmount(t, "4", alloc.OverworkHoursToUse)

	ded, err := worktime.AllocateDeduction(request("0", "4"), bank, monday10)
	require.NoError(t, err)
	after := worktime.ComputeBank([]worktime.Session{accrual("0", "2")}, []worktime.Deduction{ded})
	assertAmount(t, "-4", after.RemainingOverworkHours)
	assertAmount(t, "12", after.RemainingHours)
	assert.Empty(t, after.Violations())
}

func TestAllocate_RejectsEmptyRequest(t *testing.T) {
	bank := worktime.ComputeBank(scenarioEBank(), nil)

	for _, req := range []worktime.WithdrawalRequest{
		request("0", "0"),
		request("-1", "0"),
		request("0", "-2"),
		{Days: worktime.SanitizeQuantity("abc"), Hours: worktime.SanitizeQuantity("")},
	} {
		_, err := worktime.Allocate(req, bank)
		var verr *generic.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "amount", verr.Field)
	}
}

func TestAllocate_ToleranceAtTheLimit(t *testing.T) {
	bank := worktime.ComputeBank(scenarioEBank(), nil)

	_, err := worktime.Allocate(request("0", "19.1"), bank)
	assert.NoError(t, err, "0.1h slack is accepted")

	_, err = worktime.Allocate(request("0", "19.1001"), bank)
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
}

func TestAllocate_NegativeDaysOffPoolIsTreatedAsEmpty(t *testing.T) {
	// A legacy-era overdraw left days off below zero
	bank := worktime.ComputeBank(
		[]worktime.Session{accrual("20", "0")},
		[]worktime.Deduction{split("0.5", "0")},
	)
	require.True(t, bank.RemainingDaysOff.IsNegative())

	alloc, err := worktime.Allocate(request("1", "0"), bank)

	require.NoError(t, err)
	assertAmount(t, "0", alloc.DaysOffToUse)
	assertAmount(t, "8", alloc.OverworkHoursToUse)
}

func TestSanitizeQuantity(t *testing.T) {
	cases := map[string]string{
		"1.5":  "1.5",
		" 2 ":  "2",
		"-3":   "0",
		"x":    "0",
		"":     "0",
		"0.25": "0.25",
	}
	for in, want := range cases {
		got := worktime.SanitizeQuantity(in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%q: want %s, got %s", in, want, got)
	}
}

func TestAllocateThenDelete_RestoresBank(t *testing.T) {
	sessions := scenarioEBank()
	before := worktime.ComputeBank(sessions, nil)

	ded, err := worktime.AllocateDeduction(request("1", "1.5"), before, monday10)
	require.NoError(t, err)
	require.NotNil(t, ded.Split)
	assert.Equal(t, monday10, ded.Timestamp)

	// Deleting the deduction is recomputing without it
	after := worktime.ComputeBank(sessions, nil)
	assert.Equal(t, before, after)
}

func TestAllocate_SequentialWithdrawalsNeverBreakInvariants(t *testing.T) {
	sessions := []worktime.Session{accrual("7.3333", "2"), accrual("1.6667", "1")}
	var deductions []worktime.Deduction

	requests := []worktime.WithdrawalRequest{
		request("1", "0.3333"), request("0", "2.6667"), request("2", "0"),
		request("0", "5"), request("0", "1"), request("0", "0.05"),
	}
	for _, req := range requests {
		bank := worktime.ComputeBank(sessions, deductions)
		ded, err := worktime.AllocateDeduction(req, bank, monday10)
		if err != nil {
			assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
			continue
		}
		deductions = append(deductions, ded)
		assert.Empty(t, worktime.ComputeBank(sessions, deductions).Violations())
	}
}
