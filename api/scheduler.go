/*
scheduler.go - Periodic overwork bank auditor

PURPOSE:
  Sweeps every known user on a cron schedule, recomputes their bank and
  reports invariant violations through logs and metrics. A violation is
  state no sequence of valid operations produces (legacy imports, manual
  database edits), so it is surfaced rather than corrected.

DESIGN:
  - Runs a background goroutine that sleeps until the next cron tick
  - Runs once immediately on start
  - Keeps the most recent result for the admin endpoint
  - RunNow runs a sweep synchronously (admin endpoint, tests)

CONFIGURATION:
  - Schedule: standard 5-field cron expression (default: hourly)
  - Enabled: whether the auditor is active (default: true)

USAGE:
  auditor, err := NewBankAuditor(svc, store, metrics, logger, "0 * * * *")
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - worktime/bank.go: Bank.Violations
  - handlers.go: writeEngineError maps violations to 409
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

// DefaultAuditSchedule runs the auditor at the top of every hour.
const DefaultAuditSchedule = "0 * * * *"

// UserLister enumerates users with stored records.
type UserLister interface {
	Users(ctx context.Context) ([]generic.UserID, error)
}

// AuditResult is the outcome of one sweep.
type AuditResult struct {
	RanAt      int64           `json:"ran_at"`
	Users      int             `json:"users"`
	Violations []UserViolation `json:"violations"`
	Errors     []string        `json:"errors,omitempty"`
}

type UserViolation struct {
	UserID string `json:"user_id"`
	ViolationDTO
}

// BankAuditor checks bank invariants for every user on a schedule.
type BankAuditor struct {
	Service *worktime.Service
	Users   UserLister
	Metrics *Metrics
	Logger  *zap.Logger
	Enabled bool

	schedule cron.Schedule
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	lastMu sync.Mutex
	last   *AuditResult
}

// NewBankAuditor parses expr as a 5-field cron expression or a descriptor
// such as "@hourly".
func NewBankAuditor(svc *worktime.Service, users UserLister, metrics *Metrics, logger *zap.Logger, expr string) (*BankAuditor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid audit schedule %q: %w", expr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &BankAuditor{
		Service:  svc,
		Users:    users,
		Metrics:  metrics,
		Logger:   logger.Named("auditor"),
		Enabled:  true,
		schedule: schedule,
	}, nil
}

// Start begins the auditor.
func (a *BankAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		a.Logger.Info("auditor disabled, not starting")
		return
	}
	if a.running {
		return
	}

	a.stop = make(chan struct{})
	a.running = true
	a.wg.Add(1)
	go a.run()

	a.Logger.Info("auditor started", zap.Time("next_run", a.schedule.Next(time.Now())))
}

// Stop stops the auditor and waits for an in-flight sweep.
func (a *BankAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	close(a.stop)
	a.wg.Wait()
	a.running = false
	a.Logger.Info("auditor stopped")
}

func (a *BankAuditor) run() {
	defer a.wg.Done()

	// Run immediately on start
	a.RunNow(context.Background())

	for {
		now := time.Now()
		timer := time.NewTimer(a.schedule.Next(now).Sub(now))
		select {
		case <-timer.C:
			a.RunNow(context.Background())
		case <-a.stop:
			timer.Stop()
			return
		}
	}
}

// RunNow sweeps every user once and records the result.
func (a *BankAuditor) RunNow(ctx context.Context) AuditResult {
	result := AuditResult{RanAt: int64(generic.Now()), Violations: []UserViolation{}}

	users, err := a.Users.Users(ctx)
	if err != nil {
		a.Logger.Error("failed to list users", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		a.remember(result)
		return result
	}
	result.Users = len(users)

	for _, user := range users {
		report, err := a.Service.Bank(ctx, user)
		if err != nil {
			a.Logger.Error("failed to compute bank", zap.String("user_id", string(user)), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", user, err))
			continue
		}
		for _, v := range report.Violations {
			a.Metrics.InvariantViolations.WithLabelValues(v.Pool).Inc()
			result.Violations = append(result.Violations, UserViolation{
				UserID: string(user),
				ViolationDTO: ViolationDTO{
					Pool:      v.Pool,
					Balance:   v.Balance.Float64(),
					Tolerance: v.Tolerance.Float64(),
				},
			})
		}
	}

	a.Logger.Info("audit complete",
		zap.Int("users", result.Users),
		zap.Int("violations", len(result.Violations)),
		zap.Int("errors", len(result.Errors)),
	)
	a.remember(result)
	return result
}

// Last returns the most recent sweep, if any.
func (a *BankAuditor) Last() (AuditResult, bool) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	if a.last == nil {
		return AuditResult{}, false
	}
	return *a.last, true
}

func (a *BankAuditor) remember(r AuditResult) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	a.last = &r
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunAudit triggers a sweep and returns its result.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "Auditor not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Auditor.RunNow(r.Context()))
}

// LastAudit returns the most recent sweep.
func (h *Handler) LastAudit(w http.ResponseWriter, r *http.Request) {
	if h.Auditor == nil {
		writeError(w, http.StatusServiceUnavailable, "Auditor not configured", nil)
		return
	}
	last, ok := h.Auditor.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "No audit has run yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, last)
}
