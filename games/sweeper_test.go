package games_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/partyrooms/games"
	"github.com/Seednode/partyrooms/storage"
)

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	registry := games.NewRegistry(zerolog.Nop())
	past := time.Now().Add(-48 * time.Hour)

	for _, code := range []string{"OLD", "WATCHED", "KEEP", "FRESH"} {
		ttl := time.Hour
		if code == "FRESH" {
			ttl = 72 * time.Hour
		}
		r, err := games.NewRoom(code, games.GameChallenges, "host", past, ttl)
		require.NoError(t, err)
		r.Permanent = code == "KEEP"
		require.NoError(t, store.Create(ctx, r))
	}

	viewer := &member{id: "viewer"}
	registry.Join("WATCHED", viewer)

	sweeper := games.NewSweeper(store, registry, time.Hour, zerolog.Nop())
	deleted, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD"}, deleted)

	_, err = store.Get(ctx, "OLD")
	assert.ErrorIs(t, err, games.ErrRoomNotFound)
	for _, code := range []string{"WATCHED", "KEEP", "FRESH"} {
		_, err := store.Get(ctx, code)
		assert.NoError(t, err, code)
	}

	registry.LeaveAll(viewer)
	deleted, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"WATCHED"}, deleted)
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	store := storage.NewMemory()
	sweeper := games.NewSweeper(store, nil, 5*time.Millisecond, zerolog.Nop())

	r, err := games.NewRoom("GONE", games.GameGuessing, "host", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), r))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
