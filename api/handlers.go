/*
handlers.go - HTTP API handlers for the overwork engine

PURPOSE:
  Exposes the work-hours engine via REST API. Handles HTTP request and
  response, JSON serialization, and delegates every rule to
  worktime.Service.

ENDPOINTS:
  Classification:
    POST   /api/classify                            Classify hours, no records touched

  Sessions:
    GET    /api/users/{user}/sessions               List sessions
    POST   /api/users/{user}/sessions               Record a session
    POST   /api/users/{user}/sessions/import        Import a calendar event
    PUT    /api/users/{user}/sessions/{id}          Edit and re-classify
    DELETE /api/users/{user}/sessions/{id}          Delete

  Bank:
    GET    /api/users/{user}/allowance?at=<ms>      Allowance for the year containing at
    GET    /api/users/{user}/bank                   Ledger, display and violations

  Deductions:
    GET    /api/users/{user}/deductions             List deductions
    POST   /api/users/{user}/deductions             Withdraw days and/or hours
    DELETE /api/users/{user}/deductions/{id}        Delete

  Settings:
    GET    /api/users/{user}/settings
    PUT    /api/users/{user}/settings               Patch, absent fields kept

  Admin:
    POST   /api/admin/audit                         Run the bank auditor now
    GET    /api/admin/audit                         Last audit result

  Operational:
    GET    /healthz                                 Liveness, pings the store

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown session or deduction
  - 409: Bank invariant violated (withdrawals against a broken ledger)
  - 422: Insufficient balance (available, requested, shortfall)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. The {user} path segment is trusted.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/overwork-engine/factory"
	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *worktime.Service
	Settings *factory.SettingsFactory
	Metrics  *Metrics
	Logger   *zap.Logger

	// Auditor is optional; without it /api/admin/audit answers 503
	Auditor *BankAuditor

	// Health is optional; when set /healthz answers 503 while it fails
	Health Pinger

	// Clock supplies the default instant for allowance queries
	Clock func() generic.Instant
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a handler over the given service.
func NewHandler(svc *worktime.Service, settings *factory.SettingsFactory, metrics *Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Handler{
		Service:  svc,
		Settings: settings,
		Metrics:  metrics,
		Logger:   logger,
		Clock:    generic.Now,
	}
}

func userParam(r *http.Request) generic.UserID {
	return generic.UserID(chi.URLParam(r, "user"))
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classify runs the hour classifier on raw numbers.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.WorkingHours < 0 {
		h.writeEngineError(w, "Invalid classification", &generic.ValidationError{Field: "working_hours", Message: "must not be negative"})
		return
	}

	b := worktime.ClassifySession(generic.Hours(req.WorkingHours), req.IsSpecialDay, generic.Hours(req.RemainingAllowance))
	writeJSON(w, http.StatusOK, toBreakdownDTO(b))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns the user's sessions ordered by clock-in.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Service.Sessions(r.Context(), userParam(r))
	if err != nil {
		h.writeEngineError(w, "Failed to list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// CreateSession records a clocked or manual session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeSessionRequest(w, r)
	if !ok {
		return
	}
	if in.Source == "" {
		in.Source = worktime.SourceManual
	}

	sess, err := h.Service.RecordSession(r.Context(), userParam(r), in)
	if err != nil {
		h.writeEngineError(w, "Failed to record session", err)
		return
	}
	h.countClassified(sess)
	writeJSON(w, http.StatusCreated, toSessionDTO(sess))
}

// UpdateSession replaces a session's input and re-classifies it.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeSessionRequest(w, r)
	if !ok {
		return
	}

	id := worktime.SessionID(chi.URLParam(r, "id"))
	sess, err := h.Service.ReclassifySession(r.Context(), userParam(r), id, in)
	if err != nil {
		h.writeEngineError(w, "Failed to update session", err)
		return
	}
	h.countClassified(sess)
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

// DeleteSession removes a session. Other sessions are not rebalanced.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := worktime.SessionID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteSession(r.Context(), userParam(r), id); err != nil {
		h.writeEngineError(w, "Failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportSession classifies a calendar event and stores it.
func (h *Handler) ImportSession(w http.ResponseWriter, r *http.Request) {
	var req ImportEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Service.ImportEvent(r.Context(), userParam(r), worktime.CalendarEvent{
		Start:       generic.Instant(req.Start),
		End:         generic.Instant(req.End),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		h.writeEngineError(w, "Failed to import event", err)
		return
	}
	h.countClassified(res.Session)
	h.Metrics.ImportMismatches.Add(float64(len(res.Mismatches)))

	writeJSON(w, http.StatusCreated, ImportResultDTO{
		Session:     toSessionDTO(res.Session),
		Mismatches:  toMismatchDTOs(res.Mismatches),
		Description: worktime.FormatDescription(res.Session),
	})
}

func decodeSessionRequest(w http.ResponseWriter, r *http.Request) (worktime.SessionInput, bool) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return worktime.SessionInput{}, false
	}
	in, err := req.toInput()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "validation", "Invalid session", validationDetails(err))
		return worktime.SessionInput{}, false
	}
	return in, true
}

func (h *Handler) countClassified(s worktime.Session) {
	h.Metrics.SessionsClassified.WithLabelValues(string(s.Source), dayLabel(s.IsSpecialDay())).Inc()
}

// =============================================================================
// ALLOWANCE & BANK HANDLERS
// =============================================================================

// GetAllowance reports allowance usage for the year containing ?at=<ms>,
// defaulting to now.
func (h *Handler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	at := h.Clock()
	if raw := r.URL.Query().Get("at"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at parameter", err)
			return
		}
		at = generic.Instant(ms)
	}

	usage, err := h.Service.AllowanceUsage(r.Context(), userParam(r), at)
	if err != nil {
		h.writeEngineError(w, "Failed to compute allowance", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllowanceDTO(usage))
}

// GetBank returns the ledger. Violations are reported in the body, the
// request itself succeeds.
func (h *Handler) GetBank(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.Bank(r.Context(), userParam(r))
	if err != nil {
		h.writeEngineError(w, "Failed to compute bank", err)
		return
	}
	writeJSON(w, http.StatusOK, toBankDTO(report))
}

// =============================================================================
// DEDUCTION HANDLERS
// =============================================================================

// ListDeductions returns the user's deductions ordered by timestamp.
func (h *Handler) ListDeductions(w http.ResponseWriter, r *http.Request) {
	deductions, err := h.Service.Deductions(r.Context(), userParam(r))
	if err != nil {
		h.writeEngineError(w, "Failed to list deductions", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeductionDTOs(deductions))
}

// CreateDeduction withdraws from the bank, days off first.
func (h *Handler) CreateDeduction(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := h.Service.Withdraw(r.Context(), userParam(r), worktime.WithdrawalRequest{
		Days:   req.Days.Decimal,
		Hours:  req.Hours.Decimal,
		Reason: req.Reason,
	})
	switch {
	case errors.Is(err, generic.ErrInsufficientBalance):
		h.Metrics.Deductions.WithLabelValues("rejected").Inc()
	case errors.Is(err, generic.ErrValidation):
		h.Metrics.Deductions.WithLabelValues("invalid").Inc()
	case errors.Is(err, generic.ErrInvariantViolation):
		h.Metrics.Deductions.WithLabelValues("refused").Inc()
	case err == nil:
		h.Metrics.Deductions.WithLabelValues("created").Inc()
	}
	if err != nil {
		h.writeEngineError(w, "Failed to create deduction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeductionDTO(d))
}

// DeleteDeduction removes a deduction, restoring its hours to the bank.
func (h *Handler) DeleteDeduction(w http.ResponseWriter, r *http.Request) {
	id := worktime.DeductionID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteDeduction(r.Context(), userParam(r), id); err != nil {
		h.writeEngineError(w, "Failed to delete deduction", err)
		return
	}
	h.Metrics.Deductions.WithLabelValues("deleted").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns stored settings, or the defaults.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Settings(r.Context(), userParam(r))
	if err != nil {
		h.writeEngineError(w, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Settings.ToJSON(s))
}

// UpdateSettings applies a partial document over the current settings.
// Existing sessions keep their frozen grants.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var doc SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Service.PatchSettings(r.Context(), userParam(r), func(current worktime.Settings) (worktime.Settings, error) {
		return h.Settings.FromJSON(current, doc)
	})
	if err != nil {
		h.writeEngineError(w, "Failed to update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Settings.ToJSON(updated))
}

// =============================================================================
// OPERATIONAL HANDLERS
// =============================================================================

// Healthz reports liveness, including the store when one is configured.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeProblem(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// writeEngineError maps the generic error taxonomy to a status code.
// Anything unrecognized is logged and answered with 500.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	var insufficient *generic.InsufficientBalanceError
	var violation *generic.InvariantViolationError

	switch {
	case errors.As(err, &insufficient):
		writeProblem(w, http.StatusUnprocessableEntity, "insufficient_balance", message, InsufficientBalanceDTO{
			Available: insufficient.Available.Float64(),
			Requested: insufficient.Requested.Float64(),
			Shortfall: insufficient.Shortfall.Float64(),
		})
	case errors.Is(err, generic.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "validation", message, validationDetails(err))
	case generic.IsNotFound(err):
		writeProblem(w, http.StatusNotFound, "not_found", message, err.Error())
	case errors.As(err, &violation):
		writeProblem(w, http.StatusConflict, "invariant_violation", message, ViolationDTO{
			Pool:      violation.Pool,
			Balance:   violation.Balance.Float64(),
			Tolerance: violation.Tolerance.Float64(),
		})
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func validationDetails(err error) any {
	var ve *generic.ValidationError
	if errors.As(err, &ve) {
		return map[string]string{"field": ve.Field, "message": ve.Message}
	}
	return err.Error()
}
