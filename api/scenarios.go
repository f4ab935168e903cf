/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate one user with realistic
  sessions and deductions. Everything goes through worktime.Service, so a
  scenario exercises the same classification path as real traffic.

AVAILABLE SCENARIOS:
  regular-week:         Five weekdays showing regular, allowance and paid hours
  weekend-bank:         Weekend days off plus paid overtime, then one accepted
                        and one rejected withdrawal
  allowance-exhausted:  A small annual cap filled up, later hours all paid
  calendar-import:      An imported event whose description disagrees with
                        the engine

HOW SCENARIOS WORK:
  1. Refuse users that already have records
  2. Anchor the week on the Monday before the current one
  3. Record sessions, import events or withdraw through the service
  4. Return sessions, deductions, rejections and the resulting bank

USAGE VIA API:
  POST /api/users/{user}/scenarios/weekend-bank

ADDING NEW SCENARIOS:
  1. Add to 'scenarios' slice with ID, name, description
  2. Create loader function: loadXxxScenario(ctx, user, week)
  3. Add case to scenarioLoaders

SEE ALSO:
  - handlers.go: Handler and error helpers
  - worktime/service.go: Operations every loader calls
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "regular-week",
		Name:        "Regular Week",
		Description: "Five weekdays of 8, 9, 11, 10 and 7.5 working hours",
	},
	{
		ID:          "weekend-bank",
		Name:        "Weekend Bank",
		Description: "Two weekend days off and 3h paid overtime; withdraw 1 day + 2h, then 3 days is rejected",
	},
	{
		ID:          "allowance-exhausted",
		Name:        "Allowance Exhausted",
		Description: "A 4h annual cap consumed by two long days; the third long day is all paid overtime",
	},
	{
		ID:          "calendar-import",
		Name:        "Calendar Import",
		Description: "Imported Saturday event with a stale breakdown in its description",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context, user generic.UserID, w week) (*scenarioRun, error)

var scenarioLoaders = map[string]scenarioLoader{
	"regular-week":        (*Handler).loadRegularWeekScenario,
	"weekend-bank":        (*Handler).loadWeekendBankScenario,
	"allowance-exhausted": (*Handler).loadAllowanceExhaustedScenario,
	"calendar-import":     (*Handler).loadCalendarImportScenario,
}

// scenarioRun collects what a loader did that a snapshot can't show.
type scenarioRun struct {
	rejected []string
}

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario populates one user with a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userParam(r)
	id := chi.URLParam(r, "id")

	load, ok := scenarioLoaders[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", id))
		return
	}

	snap, err := h.Service.Snapshot(ctx, user)
	if err != nil {
		h.writeEngineError(w, "Failed to read user", err)
		return
	}
	if len(snap.Sessions) > 0 || len(snap.Deductions) > 0 || snap.HasSettings {
		writeError(w, http.StatusConflict, "User already has records", nil)
		return
	}

	run, err := load(h, ctx, user, weekBefore(h.Clock(), h.Service.Location()))
	if err != nil {
		h.writeEngineError(w, "Failed to load scenario", err)
		return
	}

	result, err := h.scenarioResult(ctx, id, user, run)
	if err != nil {
		h.writeEngineError(w, "Failed to load scenario", err)
		return
	}
	h.Logger.Info("scenario loaded", zap.String("scenario", id), zap.String("user_id", string(user)))
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) scenarioResult(ctx context.Context, id string, user generic.UserID, run *scenarioRun) (ScenarioResultDTO, error) {
	snap, err := h.Service.Snapshot(ctx, user)
	if err != nil {
		return ScenarioResultDTO{}, err
	}
	report, err := h.Service.Bank(ctx, user)
	if err != nil {
		return ScenarioResultDTO{}, err
	}
	return ScenarioResultDTO{
		Scenario:   id,
		UserID:     string(user),
		Sessions:   toSessionDTOs(snap.Sessions),
		Deductions: toDeductionDTOs(snap.Deductions),
		Rejected:   run.rejected,
		Bank:       toBankDTO(report),
	}, nil
}

// =============================================================================
// WEEK ANCHOR
// =============================================================================

// week is the Monday 00:00 a scenario is laid out from.
type week struct {
	monday time.Time
}

func weekBefore(now generic.Instant, loc *time.Location) week {
	t := now.Time(loc)
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	y, m, d := t.Date()
	return week{monday: time.Date(y, m, d-offset-7, 0, 0, 0, 0, loc)}
}

// at returns day (0 = Monday) at hour:minute, local to the week.
func (w week) at(day, hour, minute int) generic.Instant {
	y, m, d := w.monday.Date()
	return generic.InstantOf(time.Date(y, m, d+day, hour, minute, 0, 0, w.monday.Location()))
}

func (w week) shift(day, startHour, endHour, endMinute int) worktime.SessionInput {
	return worktime.SessionInput{
		ClockIn:  w.at(day, startHour, 0),
		ClockOut: w.at(day, endHour, endMinute),
		Source:   worktime.SourceClock,
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) record(ctx context.Context, user generic.UserID, inputs ...worktime.SessionInput) error {
	for _, in := range inputs {
		sess, err := h.Service.RecordSession(ctx, user, in)
		if err != nil {
			return err
		}
		h.countClassified(sess)
	}
	return nil
}

// regular-week: 8h, 9h, 11h, 10h with a tracked lunch (9h working) and 7.5h.
func (h *Handler) loadRegularWeekScenario(ctx context.Context, user generic.UserID, w week) (*scenarioRun, error) {
	withLunch := w.shift(3, 8, 18, 0)
	withLunch.IncludeLunchTime = true

	err := h.record(ctx, user,
		w.shift(0, 9, 17, 0),
		w.shift(1, 9, 18, 0),
		w.shift(2, 8, 19, 0),
		withLunch,
		w.shift(4, 9, 16, 30),
	)
	return &scenarioRun{}, err
}

// weekend-bank: Saturday and Sunday 8h each grant two days off; Monday 13h
// adds 3h paid overtime.
func (h *Handler) loadWeekendBankScenario(ctx context.Context, user generic.UserID, w week) (*scenarioRun, error) {
	if err := h.record(ctx, user,
		w.shift(5, 9, 17, 0),
		w.shift(6, 9, 17, 0),
		w.shift(7, 8, 21, 0),
	); err != nil {
		return nil, err
	}

	run := &scenarioRun{}
	if _, err := h.Service.Withdraw(ctx, user, worktime.WithdrawalRequest{
		Days:   decimal.NewFromInt(1),
		Hours:  decimal.NewFromInt(2),
		Reason: "long weekend",
	}); err != nil {
		return nil, err
	}
	h.Metrics.Deductions.WithLabelValues("created").Inc()

	_, err := h.Service.Withdraw(ctx, user, worktime.WithdrawalRequest{
		Days:   decimal.NewFromInt(3),
		Reason: "holiday",
	})
	switch {
	case generic.IsClientError(err):
		h.Metrics.Deductions.WithLabelValues("rejected").Inc()
		run.rejected = append(run.rejected, err.Error())
	case err != nil:
		return nil, err
	}
	return run, nil
}

// allowance-exhausted: a 4h cap, then three 10h weekdays.
func (h *Handler) loadAllowanceExhaustedScenario(ctx context.Context, user generic.UserID, w week) (*scenarioRun, error) {
	settings := h.Settings.Defaults()
	settings.AnnualIsencaoLimit = generic.Hours(4)
	if err := h.Service.UpdateSettings(ctx, user, settings); err != nil {
		return nil, err
	}

	err := h.record(ctx, user,
		w.shift(0, 8, 18, 0),
		w.shift(1, 8, 18, 0),
		w.shift(2, 8, 18, 0),
	)
	return &scenarioRun{}, err
}

// calendar-import: a 10h Saturday whose description claims a weekday split.
func (h *Handler) loadCalendarImportScenario(ctx context.Context, user generic.UserID, w week) (*scenarioRun, error) {
	res, err := h.Service.ImportEvent(ctx, user, worktime.CalendarEvent{
		Start: w.at(5, 8, 0),
		End:   w.at(5, 18, 0),
		Title: "Release night",
		Description: "Regular Hours: 8:00\n" +
			"Unpaid Extra (Isenção): 2:00\n" +
			"Paid Overtime: 0:00\n" +
			"Weekend: Yes\n" +
			"Bank Holiday: No\n",
		Location: "Office",
	})
	if err != nil {
		return nil, err
	}
	h.countClassified(res.Session)
	h.Metrics.ImportMismatches.Add(float64(len(res.Mismatches)))
	return &scenarioRun{}, nil
}
