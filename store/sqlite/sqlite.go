/*
Package sqlite provides a SQLite-backed implementation of worktime.Store.

PURPOSE:
  Persists sessions, deductions and settings per user. Every engine
  operation runs inside one SQLite transaction, so the snapshot it reads and
  the writes it stages commit or roll back together.

KEY TABLES:
  sessions:   One row per clock-in/clock-out interval, derived fields included
  deductions: Withdrawals; split columns are NULL on legacy rows
  settings:   One row per user

ENCODING:
  Decimals are stored as TEXT so values round-trip bit-for-bit.
  Instants are INTEGER epoch milliseconds. Day flags are stored as
  "computed", "true" or "false" to keep their provenance.

CONCURRENCY:
  The database is opened with _txlock=immediate: a unit of work takes the
  write lock when it begins, so two devices can never allocate against the
  same stale read. A single pooled connection keeps ":memory:" databases
  shared across calls.

USAGE:
  store, err := sqlite.New("./data/overwork.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := worktime.NewService(store, cfg, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - worktime/store.go: Interface definitions
  - worktime/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

// Store implements worktime.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ worktime.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		clock_in INTEGER NOT NULL,
		clock_out INTEGER NOT NULL,
		total_hours TEXT NOT NULL,
		include_lunch_time BOOLEAN NOT NULL DEFAULT FALSE,
		lunch_duration TEXT NOT NULL,
		weekend_flag TEXT NOT NULL DEFAULT 'computed',
		bank_holiday_flag TEXT NOT NULL DEFAULT 'computed',
		is_weekend BOOLEAN NOT NULL DEFAULT FALSE,
		is_bank_holiday BOOLEAN NOT NULL DEFAULT FALSE,
		regular_hours TEXT NOT NULL,
		unpaid_extra_hours TEXT NOT NULL,
		paid_extra_hours TEXT NOT NULL,
		weekend_days_off TEXT NOT NULL,
		weekend_bonus TEXT NOT NULL,
		lunch_amount TEXT NOT NULL DEFAULT '0',
		dinner_amount TEXT NOT NULL DEFAULT '0',
		location TEXT,
		notes TEXT,
		source TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- Allowance scans filter by user and clock-in year
	CREATE INDEX IF NOT EXISTS idx_sessions_user_clock_in
		ON sessions(user_id, clock_in);

	-- days_off_used and overwork_hours_used are NULL on legacy rows
	CREATE TABLE IF NOT EXISTS deductions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		hours TEXT NOT NULL,
		days_off_used TEXT,
		overwork_hours_used TEXT,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deductions_user_timestamp
		ON deductions(user_id, timestamp);

	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT PRIMARY KEY,
		lunch_duration TEXT NOT NULL,
		weekend_days_off TEXT NOT NULL,
		weekend_bonus TEXT NOT NULL,
		bank_holiday_apply_days_off BOOLEAN NOT NULL DEFAULT FALSE,
		bank_holiday_apply_bonus BOOLEAN NOT NULL DEFAULT FALSE,
		annual_isencao_limit TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNIT OF WORK (worktime.Store interface)
// =============================================================================

// Atomic runs fn inside one immediate transaction scoped to userID.
func (s *Store) Atomic(ctx context.Context, userID generic.UserID, fn func(tx worktime.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, userID: userID}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx     *sql.Tx
	userID generic.UserID
}

func (ts *txStore) Snapshot(ctx context.Context) (worktime.Snapshot, error) {
	snap := worktime.Snapshot{UserID: ts.userID}

	sessions, err := ts.loadSessions(ctx)
	if err != nil {
		return snap, err
	}
	snap.Sessions = sessions

	deductions, err := ts.loadDeductions(ctx)
	if err != nil {
		return snap, err
	}
	snap.Deductions = deductions

	settings, ok, err := ts.loadSettings(ctx)
	if err != nil {
		return snap, err
	}
	snap.Settings, snap.HasSettings = settings, ok

	return snap, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

const sessionColumns = `id, user_id, clock_in, clock_out, total_hours, include_lunch_time, lunch_duration,
	weekend_flag, bank_holiday_flag, is_weekend, is_bank_holiday,
	regular_hours, unpaid_extra_hours, paid_extra_hours, weekend_days_off, weekend_bonus,
	lunch_amount, dinner_amount, location, notes, source, created_at, updated_at`

func (ts *txStore) PutSession(ctx context.Context, sess worktime.Session) error {
	query := `
		INSERT OR REPLACE INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ts.tx.ExecContext(ctx, query,
		sess.ID,
		ts.userID,
		int64(sess.ClockIn),
		int64(sess.ClockOut),
		sess.TotalHours.Value.String(),
		sess.IncludeLunchTime,
		sess.LunchDuration.Value.String(),
		sess.WeekendFlag.String(),
		sess.BankHolidayFlag.String(),
		sess.IsWeekend,
		sess.IsBankHoliday,
		sess.RegularHours.Value.String(),
		sess.UnpaidExtraHours.Value.String(),
		sess.PaidExtraHours.Value.String(),
		sess.WeekendDaysOff.Value.String(),
		sess.WeekendBonus.Value.String(),
		sess.LunchAmount.Value.String(),
		sess.DinnerAmount.Value.String(),
		nullString(sess.Location),
		nullString(sess.Notes),
		sess.Source,
		int64(sess.CreatedAt),
		int64(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (ts *txStore) DeleteSession(ctx context.Context, id worktime.SessionID) error {
	res, err := ts.tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, ts.userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireAffected(res, "session", string(id))
}

func (ts *txStore) loadSessions(ctx context.Context) ([]worktime.Session, error) {
	rows, err := ts.tx.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY clock_in, id`, ts.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []worktime.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

func scanSession(rows *sql.Rows) (worktime.Session, error) {
	var (
		sess                                      worktime.Session
		clockIn, clockOut, createdAt, updatedAt   int64
		total, lunch, regular, unpaid, paid       string
		daysOff, bonus, lunchAmount, dinnerAmount string
		weekendFlag, bankHolidayFlag, source      string
		location, notes                           sql.NullString
	)

	err := rows.Scan(
		&sess.ID, &sess.UserID, &clockIn, &clockOut, &total, &sess.IncludeLunchTime, &lunch,
		&weekendFlag, &bankHolidayFlag, &sess.IsWeekend, &sess.IsBankHoliday,
		&regular, &unpaid, &paid, &daysOff, &bonus,
		&lunchAmount, &dinnerAmount, &location, &notes, &source, &createdAt, &updatedAt,
	)
	if err != nil {
		return sess, fmt.Errorf("failed to scan session: %w", err)
	}

	sess.ClockIn = generic.Instant(clockIn)
	sess.ClockOut = generic.Instant(clockOut)
	sess.CreatedAt = generic.Instant(createdAt)
	sess.UpdatedAt = generic.Instant(updatedAt)
	sess.Location = location.String
	sess.Notes = notes.String
	sess.Source = worktime.Source(source)

	if sess.WeekendFlag, err = worktime.ParseDayFlag(weekendFlag); err != nil {
		return sess, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	if sess.BankHolidayFlag, err = worktime.ParseDayFlag(bankHolidayFlag); err != nil {
		return sess, fmt.Errorf("session %s: %w", sess.ID, err)
	}

	fields := []struct {
		dst  *generic.Amount
		raw  string
		unit generic.Unit
	}{
		{&sess.TotalHours, total, generic.UnitHours},
		{&sess.LunchDuration, lunch, generic.UnitHours},
		{&sess.RegularHours, regular, generic.UnitHours},
		{&sess.UnpaidExtraHours, unpaid, generic.UnitHours},
		{&sess.PaidExtraHours, paid, generic.UnitHours},
		{&sess.WeekendDaysOff, daysOff, generic.UnitDays},
		{&sess.WeekendBonus, bonus, generic.UnitCurrency},
		{&sess.LunchAmount, lunchAmount, generic.UnitCurrency},
		{&sess.DinnerAmount, dinnerAmount, generic.UnitCurrency},
	}
	for _, f := range fields {
		if *f.dst, err = parseAmount(f.raw, f.unit); err != nil {
			return sess, fmt.Errorf("session %s: %w", sess.ID, err)
		}
	}

	return sess, nil
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

func (ts *txStore) PutDeduction(ctx context.Context, d worktime.Deduction) error {
	var daysOff, overwork sql.NullString
	if d.Split != nil {
		daysOff = sql.NullString{String: d.Split.DaysOffUsed.Value.String(), Valid: true}
		overwork = sql.NullString{String: d.Split.OverworkHoursUsed.Value.String(), Valid: true}
	}

	query := `
		INSERT INTO deductions (id, user_id, timestamp, hours, days_off_used, overwork_hours_used, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ts.tx.ExecContext(ctx, query,
		d.ID,
		ts.userID,
		int64(d.Timestamp),
		d.Hours.Value.String(),
		daysOff,
		overwork,
		nullString(d.Reason),
	)
	if err != nil {
		return fmt.Errorf("failed to save deduction: %w", err)
	}
	return nil
}

func (ts *txStore) DeleteDeduction(ctx context.Context, id worktime.DeductionID) error {
	res, err := ts.tx.ExecContext(ctx, `DELETE FROM deductions WHERE id = ? AND user_id = ?`, id, ts.userID)
	if err != nil {
		return fmt.Errorf("failed to delete deduction: %w", err)
	}
	return requireAffected(res, "deduction", string(id))
}

func (ts *txStore) loadDeductions(ctx context.Context) ([]worktime.Deduction, error) {
	rows, err := ts.tx.QueryContext(ctx, `
		SELECT id, user_id, timestamp, hours, days_off_used, overwork_hours_used, reason
		FROM deductions WHERE user_id = ? ORDER BY timestamp, id
	`, ts.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deductions: %w", err)
	}
	defer rows.Close()

	var deductions []worktime.Deduction
	for rows.Next() {
		var (
			d                 worktime.Deduction
			timestamp         int64
			hours             string
			daysOff, overwork sql.NullString
			reason            sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.UserID, &timestamp, &hours, &daysOff, &overwork, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan deduction: %w", err)
		}
		d.Timestamp = generic.Instant(timestamp)
		d.Reason = reason.String
		if d.Hours, err = parseAmount(hours, generic.UnitHours); err != nil {
			return nil, fmt.Errorf("deduction %s: %w", d.ID, err)
		}

		// Both split columns present, or the row is legacy
		if daysOff.Valid && overwork.Valid {
			split := &worktime.PoolSplit{}
			if split.DaysOffUsed, err = parseAmount(daysOff.String, generic.UnitDays); err != nil {
				return nil, fmt.Errorf("deduction %s: %w", d.ID, err)
			}
			if split.OverworkHoursUsed, err = parseAmount(overwork.String, generic.UnitHours); err != nil {
				return nil, fmt.Errorf("deduction %s: %w", d.ID, err)
			}
			d.Split = split
		}
		deductions = append(deductions, d)
	}

	return deductions, rows.Err()
}

// =============================================================================
// SETTINGS
// =============================================================================

func (ts *txStore) PutSettings(ctx context.Context, s worktime.Settings) error {
	query := `
		INSERT OR REPLACE INTO settings
		(user_id, lunch_duration, weekend_days_off, weekend_bonus,
		 bank_holiday_apply_days_off, bank_holiday_apply_bonus, annual_isencao_limit)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ts.tx.ExecContext(ctx, query,
		ts.userID,
		s.LunchDuration.Value.String(),
		s.WeekendDaysOff.Value.String(),
		s.WeekendBonus.Value.String(),
		s.BankHolidayApplyDaysOff,
		s.BankHolidayApplyBonus,
		s.AnnualIsencaoLimit.Value.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (ts *txStore) loadSettings(ctx context.Context) (worktime.Settings, bool, error) {
	var (
		s                            worktime.Settings
		lunch, daysOff, bonus, limit string
	)
	err := ts.tx.QueryRowContext(ctx, `
		SELECT lunch_duration, weekend_days_off, weekend_bonus,
		       bank_holiday_apply_days_off, bank_holiday_apply_bonus, annual_isencao_limit
		FROM settings WHERE user_id = ?
	`, ts.userID).Scan(&lunch, &daysOff, &bonus, &s.BankHolidayApplyDaysOff, &s.BankHolidayApplyBonus, &limit)
	if err == sql.ErrNoRows {
		return worktime.Settings{}, false, nil
	}
	if err != nil {
		return worktime.Settings{}, false, fmt.Errorf("failed to load settings: %w", err)
	}

	if s.LunchDuration, err = parseAmount(lunch, generic.UnitHours); err != nil {
		return s, false, err
	}
	if s.WeekendDaysOff, err = parseAmount(daysOff, generic.UnitDays); err != nil {
		return s, false, err
	}
	if s.WeekendBonus, err = parseAmount(bonus, generic.UnitCurrency); err != nil {
		return s, false, err
	}
	if s.AnnualIsencaoLimit, err = parseAmount(limit, generic.UnitHours); err != nil {
		return s, false, err
	}
	return s, true, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Users lists every user with at least one stored record.
func (s *Store) Users(ctx context.Context) ([]generic.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM sessions
		UNION SELECT user_id FROM deductions
		UNION SELECT user_id FROM settings
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []generic.UserID
	for rows.Next() {
		var id generic.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value string, unit generic.Unit) (generic.Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("bad decimal %q: %w", value, err)
	}
	return generic.NewAmountFromDecimal(d, unit), nil
}
