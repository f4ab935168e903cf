package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

func TestMemory_RollbackAndUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// GIVEN: One committed session for bob
	require.NoError(t, m.Atomic(ctx, "bob", func(tx worktime.Tx) error {
		return tx.PutSession(ctx, worktime.Session{ID: "s1", UserID: "bob", ClockIn: 2})
	}))

	// WHEN: A second unit of work fails after staging writes
	boom := errors.New("boom")
	err := m.Atomic(ctx, "bob", func(tx worktime.Tx) error {
		if err := tx.PutSession(ctx, worktime.Session{ID: "s0", UserID: "bob", ClockIn: 1}); err != nil {
			return err
		}
		if err := tx.DeleteSession(ctx, "s1"); err != nil {
			return err
		}
		return boom
	})

	// THEN: Nothing it staged is visible
	require.ErrorIs(t, err, boom)
	var snap worktime.Snapshot
	require.NoError(t, m.Atomic(ctx, "bob", func(tx worktime.Tx) error {
		var err error
		snap, err = tx.Snapshot(ctx)
		return err
	}))
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, worktime.SessionID("s1"), snap.Sessions[0].ID)

	require.NoError(t, m.Atomic(ctx, "alice", func(tx worktime.Tx) error {
		return tx.PutSettings(ctx, worktime.DefaultSettings())
	}))
	users, err := m.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.UserID{"alice", "bob"}, users)
}

func TestMemory_DeleteMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Atomic(ctx, "bob", func(tx worktime.Tx) error {
		return tx.DeleteDeduction(ctx, "nope")
	})
	assert.True(t, generic.IsNotFound(err))
}

func TestMemory_ReadOnlyUnitsCommitNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	svc := worktime.NewService(m, worktime.Config{}, nil)

	// GIVEN: A user that is only ever read
	_, err := svc.Bank(ctx, "ghost")
	require.NoError(t, err)
	_, err = svc.Settings(ctx, "ghost")
	require.NoError(t, err)

	// THEN: No records exist for them
	users, err := m.Users(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
