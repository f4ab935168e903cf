package worktime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
	"github.com/warp/overwork-engine/worktime/store"
)

const alice generic.UserID = "alice"

type fixture struct {
	svc   *worktime.Service
	store *store.Memory
	logs  *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	mem := store.NewMemory()
	n := 0
	svc := worktime.NewService(mem, worktime.Config{
		Location: time.UTC,
		Clock:    func() generic.Instant { return monday10 },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}, zap.New(core))
	return &fixture{svc: svc, store: mem, logs: logs}
}

func TestService_RecordSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := shift(monday10, 11)
	in.Source = worktime.SourceClock
	sess, err := f.svc.RecordSession(ctx, alice, in)

	require.NoError(t, err)
	assert.Equal(t, worktime.SessionID("id-1"), sess.ID)
	assert.Equal(t, alice, sess.UserID)
	assert.Equal(t, monday10, sess.CreatedAt)
	assert.Equal(t, worktime.SourceClock, sess.Source)
	assertBreakdown(t, "8", "2", "1", sess.Breakdown())

	stored, err := f.svc.Sessions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, sess.ID, stored[0].ID)

	assert.Equal(t, 1, f.logs.FilterMessage("session classified").Len())
}

func TestService_RecordSession_InvalidIntervalWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordSession(ctx, alice, worktime.SessionInput{ClockIn: monday10, ClockOut: monday10 - 1})

	assert.ErrorIs(t, err, generic.ErrValidation)
	stored, err := f.svc.Sessions(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_ReclassifySession_ExcludesItself(t *testing.T) {
	// GIVEN: A 2h cap already used up by the session being edited
	f := newFixture(t)
	ctx := context.Background()
	settings := worktime.DefaultSettings()
	settings.AnnualIsencaoLimit = hours("2")
	require.NoError(t, f.svc.UpdateSettings(ctx, alice, settings))

	sess, err := f.svc.RecordSession(ctx, alice, shift(monday10, 10))
	require.NoError(t, err)
	assertBreakdown(t, "8", "2", "0", sess.Breakdown())

	// WHEN: It is edited to end half an hour later
	in := worktime.InputOf(sess)
	in.ClockOut += 30 * 60000
	edited, err := f.svc.ReclassifySession(ctx, alice, sess.ID, in)

	// THEN: Its own allowance is not counted against it
	require.NoError(t, err)
	assert.Equal(t, sess.ID, edited.ID)
	assert.Equal(t, sess.CreatedAt, edited.CreatedAt)
	assertBreakdown(t, "8", "2", "0.5", edited.Breakdown())

	usage, err := f.svc.AllowanceUsage(ctx, alice, monday10)
	require.NoError(t, err)
	assertAmount(t, "2", usage.Used)
	assertAmount(t, "0", usage.Remaining)
}

func TestService_ReclassifySession_UnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReclassifySession(context.Background(), alice, "nope", shift(monday10, 9))

	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestService_DeleteSessionLeavesOthersAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	settings := worktime.DefaultSettings()
	settings.AnnualIsencaoLimit = hours("2")
	require.NoError(t, f.svc.UpdateSettings(ctx, alice, settings))

	first, err := f.svc.RecordSession(ctx, alice, shift(monday10, 10))
	require.NoError(t, err)
	second, err := f.svc.RecordSession(ctx, alice, shift(monday10+24*3600000, 10))
	require.NoError(t, err)
	assertBreakdown(t, "8", "0", "2", second.Breakdown())

	require.NoError(t, f.svc.DeleteSession(ctx, alice, first.ID))

	stored, err := f.svc.Sessions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assertBreakdown(t, "8", "0", "2", stored[0].Breakdown())

	assert.ErrorIs(t, f.svc.DeleteSession(ctx, alice, first.ID), generic.ErrNotFound)
}

func TestService_ImportEvent_LogsMismatches(t *testing.T) {
	// GIVEN: An event whose description claims a different split
	f := newFixture(t)
	ev := worktime.CalendarEvent{
		Start:       monday10,
		End:         monday10 + 10*3600000,
		Title:       "Work",
		Description: "Regular Hours: 8:00\nUnpaid Extra (Isenção): 1:00\nPaid Overtime: 0:00\nLunch: 1:00",
	}

	// WHEN: It is imported
	result, err := f.svc.ImportEvent(context.Background(), alice, ev)

	// THEN: Engine values are stored and the disagreement is reported
	require.NoError(t, err)
	assert.Equal(t, worktime.SourceCalendar, result.Session.Source)
	assert.True(t, result.Session.IncludeLunchTime)
	assertBreakdown(t, "8", "1", "0", result.Session.Breakdown())
	assert.Empty(t, result.Mismatches)

	ev.Description = "Regular Hours: 8:00\nUnpaid Extra (Isenção): 0:00\nPaid Overtime: 2:00\nWeekend: no"
	ev.Start += 24 * 3600000
	ev.End += 24 * 3600000
	result, err = f.svc.ImportEvent(context.Background(), alice, ev)
	require.NoError(t, err)
	assertBreakdown(t, "8", "2", "0", result.Session.Breakdown())
	require.Len(t, result.Mismatches, 2)

	warnings := f.logs.FilterMessage("imported breakdown differs from engine")
	require.Equal(t, 2, warnings.Len())
	assert.Equal(t, zapcore.WarnLevel, warnings.All()[0].Level)
	assert.Equal(t, "unpaid_extra_hours", warnings.All()[0].ContextMap()["field"])
}

func TestService_ImportEvent_BankHolidayFromDescription(t *testing.T) {
	f := newFixture(t)
	ev := worktime.CalendarEvent{
		Start:       monday10,
		End:         monday10 + 9*3600000,
		Description: "Bank Holiday: yes",
	}

	result, err := f.svc.ImportEvent(context.Background(), alice, ev)

	require.NoError(t, err)
	assert.True(t, result.Session.IsBankHoliday)
	assert.True(t, result.Session.BankHolidayFlag.IsOverridden())
	assertBreakdown(t, "8", "0", "1", result.Session.Breakdown())
}

func TestService_ImportEvent_BadDescription(t *testing.T) {
	f := newFixture(t)
	ev := worktime.CalendarEvent{Start: monday10, End: monday10 + 3600000, Description: "Paid Overtime: lots"}

	_, err := f.svc.ImportEvent(context.Background(), alice, ev)

	assert.ErrorIs(t, err, generic.ErrValidation)
	stored, _ := f.svc.Sessions(context.Background(), alice)
	assert.Empty(t, stored)
}

func TestService_Withdraw(t *testing.T) {
	// GIVEN: Two Saturdays of 9.5h: 2 days off and 3 overwork hours
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RecordSession(ctx, alice, shift(saturday15, 9.5))
	require.NoError(t, err)
	_, err = f.svc.RecordSession(ctx, alice, shift(saturday15+7*24*3600000, 9.5))
	require.NoError(t, err)

	report, err := f.svc.Bank(ctx, alice)
	require.NoError(t, err)
	assertAmount(t, "2", report.Bank.RemainingDaysOff)
	assertAmount(t, "3", report.Bank.RemainingOverworkHours)

	// WHEN: Withdrawing 1 day and 2 hours
	ded, err := f.svc.Withdraw(ctx, alice, worktime.WithdrawalRequest{
		Days:   decimal.NewFromInt(1),
		Hours:  decimal.NewFromInt(2),
		Reason: "dentist",
	})

	// THEN: The deduction is split and persisted
	require.NoError(t, err)
	assert.Equal(t, alice, ded.UserID)
	assert.Equal(t, monday10, ded.Timestamp)
	assertAmount(t, "10", ded.Hours)
	assertAmount(t, "1", ded.Split.DaysOffUsed)
	assertAmount(t, "2", ded.Split.OverworkHoursUsed)

	report, err = f.svc.Bank(ctx, alice)
	require.NoError(t, err)
	assertAmount(t, "1", report.Bank.RemainingDaysOff)
	assertAmount(t, "1", report.Bank.RemainingOverworkHours)
	assert.Empty(t, report.Violations)
	assert.Equal(t, 1, f.logs.FilterMessage("deduction created").Len())

	// WHEN: Withdrawing more than is left
	_, err = f.svc.Withdraw(ctx, alice, worktime.WithdrawalRequest{Days: decimal.NewFromInt(3)})

	// THEN: Nothing is stored and the rejection is logged
	assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
	deductions, err := f.svc.Deductions(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, deductions, 1)
	rejected := f.logs.FilterMessage("deduction rejected")
	require.Equal(t, 1, rejected.Len())
	assert.Equal(t, "15", rejected.All()[0].ContextMap()["shortfall_hours"])

	// WHEN: The deduction is deleted
	require.NoError(t, f.svc.DeleteDeduction(ctx, alice, ded.ID))

	// THEN: The bank is whole again
	report, err = f.svc.Bank(ctx, alice)
	require.NoError(t, err)
	assertAmount(t, "19", report.Bank.RemainingHours)
	assert.ErrorIs(t, f.svc.DeleteDeduction(ctx, alice, ded.ID), generic.ErrNotFound)
}

func TestService_Withdraw_EmptyRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Withdraw(context.Background(), alice, worktime.WithdrawalRequest{})

	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Equal(t, 0, f.logs.FilterMessage("deduction rejected").Len())
}

func TestService_Bank_LogsInvariantViolations(t *testing.T) {
	// GIVEN: A legacy deduction larger than anything ever accrued
	f := newFixture(t)
	ctx := context.Background()
	err := f.store.Atomic(ctx, alice, func(tx worktime.Tx) error {
		return tx.PutDeduction(ctx, worktime.Deduction{ID: "legacy", UserID: alice, Timestamp: monday10, Hours: hours("20")})
	})
	require.NoError(t, err)

	// WHEN: The bank is read
	report, err := f.svc.Bank(ctx, alice)

	// THEN: The ledger is not clamped and the violation is logged at error
	require.NoError(t, err)
	assertAmount(t, "-20", report.Bank.RemainingHours)
	assertAmount(t, "0", report.Display.RemainingHours)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "hours", report.Violations[0].Pool)

	logged := f.logs.FilterMessage("overwork bank invariant violated")
	require.Equal(t, 1, logged.Len())
	assert.Equal(t, zapcore.ErrorLevel, logged.All()[0].Level)
}

func TestService_Withdraw_RefusesBrokenBank(t *testing.T) {
	// GIVEN: A bank the legacy import already overdrew
	f := newFixture(t)
	ctx := context.Background()
	err := f.store.Atomic(ctx, alice, func(tx worktime.Tx) error {
		return tx.PutDeduction(ctx, worktime.Deduction{ID: "legacy", UserID: alice, Timestamp: monday10, Hours: hours("20")})
	})
	require.NoError(t, err)

	// WHEN: A withdrawal is attempted
	_, err = f.svc.Withdraw(ctx, alice, worktime.WithdrawalRequest{Hours: decimal.NewFromInt(1)})

	// THEN: The violation is the error and nothing is stored
	var violation *generic.InvariantViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "hours", violation.Pool)
	assert.NotErrorIs(t, err, generic.ErrInsufficientBalance)

	stored, err := f.svc.Deductions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, f.logs.FilterMessage("deduction refused on inconsistent bank").Len())
}

func TestService_PatchSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: A stored weekend grant
	next := worktime.DefaultSettings()
	next.WeekendDaysOff = days("2")
	require.NoError(t, f.svc.UpdateSettings(ctx, alice, next))

	// WHEN: Another field is patched
	got, err := f.svc.PatchSettings(ctx, alice, func(s worktime.Settings) (worktime.Settings, error) {
		s.WeekendBonus = generic.NewAmountFromDecimal(decimal.NewFromInt(25), generic.UnitCurrency)
		return s, nil
	})

	// THEN: The patch sees the stored value and keeps it
	require.NoError(t, err)
	assertAmount(t, "2", got.WeekendDaysOff)
	assertAmount(t, "25", got.WeekendBonus)

	// Invalid results and patch errors store nothing
	_, err = f.svc.PatchSettings(ctx, alice, func(s worktime.Settings) (worktime.Settings, error) {
		s.WeekendDaysOff = days("-1")
		return s, nil
	})
	assert.ErrorIs(t, err, generic.ErrValidation)

	boom := errors.New("boom")
	_, err = f.svc.PatchSettings(ctx, alice, func(worktime.Settings) (worktime.Settings, error) { return worktime.Settings{}, boom })
	assert.ErrorIs(t, err, boom)

	stored, err := f.svc.Settings(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestService_Settings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Settings(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, worktime.DefaultSettings(), got)

	bad := worktime.DefaultSettings()
	bad.WeekendDaysOff = days("-1")
	assert.ErrorIs(t, f.svc.UpdateSettings(ctx, alice, bad), generic.ErrValidation)

	// Changing the grant does not touch sessions already classified
	sess, err := f.svc.RecordSession(ctx, alice, shift(saturday15, 8))
	require.NoError(t, err)
	next := worktime.DefaultSettings()
	next.WeekendDaysOff = days("2")
	require.NoError(t, f.svc.UpdateSettings(ctx, alice, next))

	got, err = f.svc.Settings(ctx, alice)
	require.NoError(t, err)
	assertAmount(t, "2", got.WeekendDaysOff)

	stored, err := f.svc.Sessions(ctx, alice)
	require.NoError(t, err)
	assertAmount(t, "1", stored[0].WeekendDaysOff)
	assert.Equal(t, sess.ID, stored[0].ID)
}

func TestMemoryStore_RollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.store.Atomic(ctx, alice, func(tx worktime.Tx) error {
		if err := tx.PutSession(ctx, worktime.Session{ID: "s-1", ClockIn: monday10, ClockOut: monday10 + 1}); err != nil {
			return err
		}
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		require.Len(t, snap.Sessions, 1, "staged writes are visible inside the unit")
		return boom
	})

	assert.ErrorIs(t, err, boom)
	stored, err := f.svc.Sessions(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
