/*
service.go - Engine operations over a Store

PURPOSE:
  Wires the pure engine to persistence. Each operation opens one unit of
  work, reads one snapshot, computes against it and stages the resulting
  writes, so classification and allocation always see a consistent view.

CALL SITES:
  RecordSession:     clock-out or manual creation   (NoExclusion)
  ReclassifySession: edit, full re-classification    (ExcludeSession(id))
  ImportEvent:       calendar import                 (NoExclusion)

  All three go through BuildSession; none classifies on its own.

LOGGING:
  debug: classification results
  info:  deductions created, rejected or deleted
  warn:  imported descriptions that disagree with the engine
  error: bank invariant violations

EXAMPLE:
  svc := worktime.NewService(store, worktime.Config{Location: lisbon}, logger)

  sess, err := svc.RecordSession(ctx, "u-1", worktime.SessionInput{
      ClockIn:  in,
      ClockOut: out,
      Source:   worktime.SourceClock,
  })

  ded, err := svc.Withdraw(ctx, "u-1", worktime.WithdrawalRequest{Days: one})
*/
package worktime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// SERVICE
// =============================================================================

// Config carries the engine's explicit environment.
type Config struct {
	// Location answers weekday and calendar-year questions. Nil is UTC.
	Location *time.Location

	// Defaults apply to users that never stored settings.
	Defaults Settings

	// Clock and NewID are replaceable for tests.
	Clock func() generic.Instant
	NewID func() string
}

type Service struct {
	Store  Store
	config Config
	logger *zap.Logger
}

func NewService(store Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Defaults == (Settings{}) {
		cfg.Defaults = DefaultSettings()
	}
	if cfg.Clock == nil {
		cfg.Clock = generic.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, config: cfg, logger: logger.Named("worktime")}
}

func (s *Service) Location() *time.Location { return s.config.Location }

func (s *Service) settingsOf(snap Snapshot) Settings {
	if snap.HasSettings {
		return snap.Settings
	}
	return s.config.Defaults
}

// =============================================================================
// SESSIONS
// =============================================================================

// RecordSession classifies a new session and persists it.
func (s *Service) RecordSession(ctx context.Context, userID generic.UserID, in SessionInput) (Session, error) {
	var out Session
	err := s.Store.Atomic(ctx, userID, func(tx Tx) error {
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		sess, err := s.build(snap, in, NoExclusion, nil)
		if err != nil {
			return err
		}
		now := s.config.Clock()
		sess.ID = SessionID(s.config.NewID())
		sess.UserID = userID
		sess.CreatedAt = now
		sess.UpdatedAt = now
		if err := tx.PutSession(ctx, sess); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// ReclassifySession replaces a session's inputs and re-derives every
// computed field. Other sessions are never touched.
func (s *Service) ReclassifySession(ctx context.Context, userID generic.UserID, id SessionID, in SessionInput) (Session, error) {
	var out Session
	err := s.Store.Atomic(ctx, userID, func(tx Tx) error {
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		prior, ok := snap.Session(id)
		if !ok {
			return &generic.NotFoundError{Kind: "session", ID: string(id)}
		}
		if in.Source == "" {
			in.Source = prior.Source
		}
		sess, err := s.build(snap, in, ExcludeSession(id), &prior)
		if err != nil {
			return err
		}
		sess.ID = id
		sess.UserID = userID
		sess.CreatedAt = prior.CreatedAt
		sess.UpdatedAt = s.config.Clock()
		if err := tx.PutSession(ctx, sess); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// DeleteSession removes a session. Other sessions keep their classification.
func (s *Service) DeleteSession(ctx context.Context, userID generic.UserID, id SessionID) error {
	return s.Store.Atomic(ctx, userID, func(tx Tx) error {
		return tx.DeleteSession(ctx, id)
	})
}

// Sessions lists a user's sessions ordered by clock-in.
func (s *Service) Sessions(ctx context.Context, userID generic.UserID) ([]Session, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snap.Sessions, nil
}

func (s *Service) build(snap Snapshot, in SessionInput, exclude Exclusion, prior *Session) (Session, error) {
	sess, err := BuildSession(snap.Sessions, s.settingsOf(snap), in, s.config.Location, exclude, prior)
	if err != nil {
		return Session{}, err
	}
	s.logger.Debug("session classified",
		zap.String("user_id", string(snap.UserID)),
		zap.Stringer("clock_in", sess.ClockIn),
		zap.Bool("special_day", sess.IsSpecialDay()),
		zap.String("working_hours", sess.WorkingHours().Value.String()),
		zap.String("regular_hours", sess.RegularHours.Value.String()),
		zap.String("unpaid_extra_hours", sess.UnpaidExtraHours.Value.String()),
		zap.String("paid_extra_hours", sess.PaidExtraHours.Value.String()),
	)
	return sess, nil
}

// =============================================================================
// CALENDAR IMPORT
// =============================================================================

// CalendarEvent is a calendar entry handed over by an importer.
type CalendarEvent struct {
	Start       generic.Instant
	End         generic.Instant
	Title       string
	Description string
	Location    string
}

// ImportResult carries the stored session and any disagreement between the
// event's description and the engine. Engine values are what gets stored.
type ImportResult struct {
	Session    Session
	Mismatches []FieldMismatch
}

// ImportEvent turns a calendar event into a session through the same
// classification path as RecordSession.
func (s *Service) ImportEvent(ctx context.Context, userID generic.UserID, ev CalendarEvent) (ImportResult, error) {
	desc := ParseDescription(ev.Description)

	in := SessionInput{
		ClockIn:  ev.Start,
		ClockOut: ev.End,
		Location: ev.Location,
		Notes:    ev.Title,
		Source:   SourceCalendar,
	}
	if desc.Weekend != nil {
		in.Weekend = Override(*desc.Weekend)
	}
	if desc.BankHoliday != nil {
		in.BankHoliday = Override(*desc.BankHoliday)
	}
	if desc.Lunch != nil {
		in.IncludeLunchTime = true
		in.LunchDuration = desc.Lunch
	}

	sess, err := s.RecordSession(ctx, userID, in)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{Session: sess}
	if described, ok := desc.Breakdown(); ok {
		result.Mismatches = CompareBreakdown(described, sess.Breakdown())
		for _, m := range result.Mismatches {
			s.logger.Warn("imported breakdown differs from engine",
				zap.String("user_id", string(userID)),
				zap.String("session_id", string(sess.ID)),
				zap.String("field", m.Field),
				zap.String("described", m.Described),
				zap.String("computed", m.Computed),
			)
		}
	}
	return result, nil
}

// =============================================================================
// ALLOWANCE & BANK
// =============================================================================

// AllowanceUsage reports the allowance for the year containing at.
func (s *Service) AllowanceUsage(ctx context.Context, userID generic.UserID, at generic.Instant) (AllowanceUsage, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return AllowanceUsage{}, err
	}
	limit := s.settingsOf(snap).AnnualIsencaoLimit
	return AllowanceUsageAt(snap.Sessions, at, s.config.Location, limit, NoExclusion), nil
}

// BankReport is the bank plus any invariant it breaks.
type BankReport struct {
	Bank       Bank
	Display    BankDisplay
	Violations []*generic.InvariantViolationError
}

// Bank computes the user's bank. Violations are logged and returned, never
// clamped away.
func (s *Service) Bank(ctx context.Context, userID generic.UserID) (BankReport, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return BankReport{}, err
	}
	bank := s.computeBank(snap)
	return BankReport{Bank: bank, Display: bank.Display(), Violations: bank.Violations()}, nil
}

func (s *Service) computeBank(snap Snapshot) Bank {
	bank := ComputeBank(snap.Sessions, snap.Deductions)
	for _, v := range bank.Violations() {
		s.logger.Error("overwork bank invariant violated",
			zap.String("user_id", string(snap.UserID)),
			zap.String("pool", v.Pool),
			zap.String("balance", v.Balance.Value.String()),
			zap.Error(v),
		)
	}
	return bank
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

// Withdraw allocates the request against the current bank and persists the
// deduction. Rejected requests create nothing. A bank that already breaks an
// invariant is never allocated against; the violation is returned instead.
func (s *Service) Withdraw(ctx context.Context, userID generic.UserID, req WithdrawalRequest) (Deduction, error) {
	var out Deduction
	err := s.Store.Atomic(ctx, userID, func(tx Tx) error {
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		bank := s.computeBank(snap)
		if err := bank.Verify(); err != nil {
			return err
		}
		ded, err := AllocateDeduction(req, bank, s.config.Clock())
		if err != nil {
			return err
		}
		ded.ID = DeductionID(s.config.NewID())
		ded.UserID = userID
		if err := tx.PutDeduction(ctx, ded); err != nil {
			return fmt.Errorf("failed to store deduction: %w", err)
		}
		out = ded
		return nil
	})

	var ib *generic.InsufficientBalanceError
	switch {
	case errors.As(err, &ib):
		s.logger.Info("deduction rejected",
			zap.String("user_id", string(userID)),
			zap.String("requested_hours", ib.Requested.Value.String()),
			zap.String("available_hours", ib.Available.Value.String()),
			zap.String("shortfall_hours", ib.Shortfall.Value.String()),
		)
		return Deduction{}, err
	case errors.Is(err, generic.ErrInvariantViolation):
		s.logger.Warn("deduction refused on inconsistent bank", zap.String("user_id", string(userID)), zap.Error(err))
		return Deduction{}, err
	case err != nil:
		return Deduction{}, err
	}

	s.logger.Info("deduction created",
		zap.String("user_id", string(userID)),
		zap.String("deduction_id", string(out.ID)),
		zap.String("hours", out.Hours.Value.String()),
		zap.String("days_off_used", out.Split.DaysOffUsed.Value.String()),
		zap.String("overwork_hours_used", out.Split.OverworkHoursUsed.Value.String()),
	)
	return out, nil
}

// DeleteDeduction removes a deduction unconditionally; the bank is
// recomputed from the survivors on the next read.
func (s *Service) DeleteDeduction(ctx context.Context, userID generic.UserID, id DeductionID) error {
	err := s.Store.Atomic(ctx, userID, func(tx Tx) error {
		return tx.DeleteDeduction(ctx, id)
	})
	if err == nil {
		s.logger.Info("deduction deleted", zap.String("user_id", string(userID)), zap.String("deduction_id", string(id)))
	}
	return err
}

// Deductions lists a user's deductions ordered by timestamp.
func (s *Service) Deductions(ctx context.Context, userID generic.UserID) ([]Deduction, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snap.Deductions, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings returns the stored settings, or the defaults.
func (s *Service) Settings(ctx context.Context, userID generic.UserID) (Settings, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	return s.settingsOf(snap), nil
}

// UpdateSettings replaces the settings. Existing sessions keep the values
// they were classified with.
func (s *Service) UpdateSettings(ctx context.Context, userID generic.UserID, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.Store.Atomic(ctx, userID, func(tx Tx) error {
		return tx.PutSettings(ctx, settings)
	})
}

// PatchSettings applies patch to the current settings and stores the result
// in the same unit of work, so concurrent patches never drop each other's
// fields.
func (s *Service) PatchSettings(ctx context.Context, userID generic.UserID, patch func(Settings) (Settings, error)) (Settings, error) {
	var out Settings
	err := s.Store.Atomic(ctx, userID, func(tx Tx) error {
		snap, err := tx.Snapshot(ctx)
		if err != nil {
			return err
		}
		next, err := patch(s.settingsOf(snap))
		if err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := tx.PutSettings(ctx, next); err != nil {
			return fmt.Errorf("failed to store settings: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return Settings{}, err
	}
	return out, nil
}

// Snapshot reads one consistent snapshot.
func (s *Service) Snapshot(ctx context.Context, userID generic.UserID) (Snapshot, error) {
	var snap Snapshot
	err := s.Store.Atomic(ctx, userID, func(tx Tx) error {
		var err error
		snap, err = tx.Snapshot(ctx)
		return err
	})
	return snap, err
}
