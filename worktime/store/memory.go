// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.Mutex
	users map[generic.UserID]*records
}

type records struct {
	sessions   map[worktime.SessionID]worktime.Session
	deductions map[worktime.DeductionID]worktime.Deduction
	settings   *worktime.Settings
}

func newRecords() *records {
	return &records{
		sessions:   make(map[worktime.SessionID]worktime.Session),
		deductions: make(map[worktime.DeductionID]worktime.Deduction),
	}
}

func (r *records) clone() *records {
	c := newRecords()
	for k, v := range r.sessions {
		c.sessions[k] = v
	}
	for k, v := range r.deductions {
		c.deductions[k] = v
	}
	if r.settings != nil {
		s := *r.settings
		c.settings = &s
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{users: make(map[generic.UserID]*records)}
}

// Atomic runs fn against a private copy of the user's records and swaps it
// in only when fn succeeds and wrote something. Units of work are serialized.
func (m *Memory) Atomic(_ context.Context, userID generic.UserID, fn func(worktime.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[userID]
	if !ok {
		current = newRecords()
	}
	staged := current.clone()

	tx := &memoryTx{userID: userID, recs: staged}
	if err := fn(tx); err != nil {
		return err // Rollback: staged copy is dropped
	}
	if tx.dirty {
		m.users[userID] = staged
	}
	return nil
}

// Users lists every user with at least one committed write.
func (m *Memory) Users(_ context.Context) ([]generic.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]generic.UserID, 0, len(m.users))
	for id := range m.users {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, nil
}

type memoryTx struct {
	userID generic.UserID
	recs   *records
	dirty  bool
}

func (tx *memoryTx) Snapshot(_ context.Context) (worktime.Snapshot, error) {
	snap := worktime.Snapshot{UserID: tx.userID}
	for _, s := range tx.recs.sessions {
		snap.Sessions = append(snap.Sessions, s)
	}
	for _, d := range tx.recs.deductions {
		copied := d
		if d.Split != nil {
			split := *d.Split
			copied.Split = &split
		}
		snap.Deductions = append(snap.Deductions, copied)
	}
	sort.Slice(snap.Sessions, func(i, j int) bool {
		a, b := snap.Sessions[i], snap.Sessions[j]
		if a.ClockIn != b.ClockIn {
			return a.ClockIn < b.ClockIn
		}
		return a.ID < b.ID
	})
	sort.Slice(snap.Deductions, func(i, j int) bool {
		a, b := snap.Deductions[i], snap.Deductions[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.ID < b.ID
	})
	if tx.recs.settings != nil {
		snap.Settings = *tx.recs.settings
		snap.HasSettings = true
	}
	return snap, nil
}

func (tx *memoryTx) PutSession(_ context.Context, s worktime.Session) error {
	tx.recs.sessions[s.ID] = s
	tx.dirty = true
	return nil
}

func (tx *memoryTx) DeleteSession(_ context.Context, id worktime.SessionID) error {
	if _, ok := tx.recs.sessions[id]; !ok {
		return &generic.NotFoundError{Kind: "session", ID: string(id)}
	}
	delete(tx.recs.sessions, id)
	tx.dirty = true
	return nil
}

func (tx *memoryTx) PutDeduction(_ context.Context, d worktime.Deduction) error {
	tx.recs.deductions[d.ID] = d
	tx.dirty = true
	return nil
}

func (tx *memoryTx) DeleteDeduction(_ context.Context, id worktime.DeductionID) error {
	if _, ok := tx.recs.deductions[id]; !ok {
		return &generic.NotFoundError{Kind: "deduction", ID: string(id)}
	}
	delete(tx.recs.deductions, id)
	tx.dirty = true
	return nil
}

func (tx *memoryTx) PutSettings(_ context.Context, s worktime.Settings) error {
	tx.recs.settings = &s
	tx.dirty = true
	return nil
}

// Compile-time check
var _ worktime.Store = (*Memory)(nil)
