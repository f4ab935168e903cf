/*
store.go - Persistence contract the engine is driven through

PURPOSE:
  The engine owns no long-lived state. Records belong to the persistence
  layer, which must hand the engine one internally consistent snapshot of a
  user's sessions, deductions and settings per operation, and commit any
  writes made against that snapshot together.

KEY INTERFACES:
  Store: Opens an atomic unit of work scoped to one user
  Tx:    Reads the snapshot, stages writes

ATOMICITY:
  Atomic(ctx, user, fn) runs fn against one consistent view. If fn returns
  an error nothing it wrote is kept. Implementations serialize units of
  work for the same user, so an allocation can never be evaluated against a
  read that straddles another device's write.

IMPLEMENTATIONS:
  - worktime/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite, one immediate transaction per unit

SEE ALSO:
  - service.go: The only caller of Atomic
*/
package worktime

import (
	"context"

	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is one user's records at a single point in time. Sessions are
// ordered by ClockIn, deductions by Timestamp.
type Snapshot struct {
	UserID     generic.UserID
	Sessions   []Session
	Deductions []Deduction

	// Settings is meaningful only when HasSettings is true
	Settings    Settings
	HasSettings bool
}

// Session returns the stored session with the given id.
func (s Snapshot) Session(id SessionID) (Session, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

// Deduction returns the stored deduction with the given id.
func (s Snapshot) Deduction(id DeductionID) (Deduction, bool) {
	for _, d := range s.Deductions {
		if d.ID == id {
			return d, true
		}
	}
	return Deduction{}, false
}

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

// Tx is a unit of work bound to one user.
type Tx interface {
	// Snapshot returns the user's records, including writes already staged
	// in this unit of work.
	Snapshot(ctx context.Context) (Snapshot, error)

	// PutSession inserts or replaces a session by ID.
	PutSession(ctx context.Context, s Session) error

	// DeleteSession removes a session. Returns a NotFoundError if missing.
	DeleteSession(ctx context.Context, id SessionID) error

	// PutDeduction inserts a deduction. Deductions are never replaced.
	PutDeduction(ctx context.Context, d Deduction) error

	// DeleteDeduction removes a deduction. Returns a NotFoundError if missing.
	DeleteDeduction(ctx context.Context, id DeductionID) error

	// PutSettings replaces the user's settings.
	PutSettings(ctx context.Context, s Settings) error
}

// Store opens units of work.
type Store interface {
	Atomic(ctx context.Context, userID generic.UserID, fn func(tx Tx) error) error
}
