package storage

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/partyrooms/games"
)

type storeCase struct {
	name string
	open func(t *testing.T) games.Store
}

var stores = []storeCase{
	{"memory", func(t *testing.T) games.Store { return NewMemory() }},
	{"sqlite", func(t *testing.T) games.Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "rooms.db"), zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}},
}

func forEachStore(t *testing.T, fn func(t *testing.T, s games.Store)) {
	for _, sc := range stores {
		t.Run(sc.name, func(t *testing.T) {
			fn(t, sc.open(t))
		})
	}
}

func newRoom(t *testing.T, code string, gt games.GameType, created time.Time, ttl time.Duration) *games.Room {
	t.Helper()
	r, err := games.NewRoom(code, gt, "host", created, ttl)
	require.NoError(t, err)
	return r
}

func TestStore_CreateGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s games.Store) {
		ctx := context.Background()
		now := time.Now().Truncate(time.Millisecond)

		r := newRoom(t, "ABC123", games.GameGuessing, now, time.Hour)
		r.Questions = []games.Question{{Text: "How many?", RangeMin: 0, RangeMax: 10}}
		r.Players = []games.Player{{Name: "Al", SessionID: "al", Score: 10}, {Name: "Bo", SessionID: "bo"}}
		require.NoError(t, s.Create(ctx, r))

		assert.ErrorIs(t, s.Create(ctx, newRoom(t, "ABC123", games.GameChallenges, now, time.Hour)), games.ErrDuplicateRoom)

		got, err := s.Get(ctx, "ABC123")
		require.NoError(t, err)
		assert.Equal(t, games.GameGuessing, got.GameType)
		assert.Equal(t, "host", got.HostID)
		assert.Equal(t, r.Players, got.Players)
		assert.Equal(t, r.Questions, got.Questions)
		assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))
		assert.Equal(t, int64(0), got.Version)

		_, err = s.Get(ctx, "MISSING")
		assert.ErrorIs(t, err, games.ErrRoomNotFound)
	})
}

func TestStore_GetReturnsCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s games.Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, newRoom(t, "COPY", games.GameChallenges, time.Now(), time.Hour)))

		r, err := s.Get(ctx, "COPY")
		require.NoError(t, err)
		r.Challenges = append(r.Challenges, games.Challenge{ID: "1", Text: "sing"})

		again, err := s.Get(ctx, "COPY")
		require.NoError(t, err)
		assert.Empty(t, again.Challenges)
	})
}

func TestStore_SaveIsCompareAndSwap(t *testing.T) {
	forEachStore(t, func(t *testing.T, s games.Store) {
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, newRoom(t, "CAS", games.GameGuessing, time.Now(), time.Hour)))

		a, err := s.Get(ctx, "CAS")
		require.NoError(t, err)
		b, err := s.Get(ctx, "CAS")
		require.NoError(t, err)

		_, err = a.AddPlayer("Al", "al")
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, a))
		assert.Equal(t, int64(1), a.Version)

		_, err = b.AddPlayer("Bo", "bo")
		require.NoError(t, err)
		assert.ErrorIs(t, s.Save(ctx, b), games.ErrVersionConflict)

		got, err := s.Get(ctx, "CAS")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		require.Len(t, got.Players, 1)
		assert.Equal(t, "Al", got.Players[0].Name)

		missing := newRoom(t, "GHOST", games.GameGuessing, time.Now(), time.Hour)
		assert.ErrorIs(t, s.Save(ctx, missing), games.ErrRoomNotFound)
	})
}

func TestStore_RoundStatePersists(t *testing.T) {
	forEachStore(t, func(t *testing.T, s games.Store) {
		ctx := context.Background()
		r := newRoom(t, "ROUND", games.GameGuessing, time.Now(), time.Hour)
		require.NoError(t, s.Create(ctx, r))

		answer := 6.0
		started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		r.Players = []games.Player{{Name: "Al", Score: 882}, {Name: "Bo", Score: 882}}
		r.Questions = []games.Question{{Text: "How many?", RangeMax: 10}}
		r.GameStarted = true
		r.Phase = games.PhaseResults
		r.Answers = map[string]float64{"Al": 5, "Bo": 7}
		r.RoundScores = map[string]int{"Al": 882, "Bo": 882}
		r.CorrectAnswer = &answer
		r.RoundStartedAt = &started
		require.NoError(t, s.Save(ctx, r))

		got, err := s.Get(ctx, "ROUND")
		require.NoError(t, err)
		assert.Equal(t, games.PhaseResults, got.Phase)
		assert.True(t, got.GameStarted)
		assert.Equal(t, r.Answers, got.Answers)
		assert.Equal(t, r.RoundScores, got.RoundScores)
		require.NotNil(t, got.CorrectAnswer)
		assert.Equal(t, 6.0, *got.CorrectAnswer)
		require.NotNil(t, got.RoundStartedAt)
		assert.True(t, got.RoundStartedAt.Equal(started))
	})
}

func TestStore_DeleteExpired(t *testing.T) {
	forEachStore(t, func(t *testing.T, s games.Store) {
		ctx := context.Background()
		now := time.Now()
		old := now.Add(-48 * time.Hour)

		require.NoError(t, s.Create(ctx, newRoom(t, "OLD1", games.GameChallenges, old, time.Hour)))
		require.NoError(t, s.Create(ctx, newRoom(t, "OLD2", games.GameGuessing, old, time.Hour)))
		require.NoError(t, s.Create(ctx, newRoom(t, "BUSY", games.GameGuessing, old, time.Hour)))
		require.NoError(t, s.Create(ctx, newRoom(t, "NEW", games.GameGuessing, now, time.Hour)))

		perm := newRoom(t, "PERM", games.GameGuessing, old, time.Hour)
		perm.Permanent = true
		require.NoError(t, s.Create(ctx, perm))

		deleted, err := s.DeleteExpired(ctx, now, func(code string) bool { return code == "BUSY" })
		require.NoError(t, err)
		sort.Strings(deleted)
		assert.Equal(t, []string{"OLD1", "OLD2"}, deleted)

		for _, code := range []string{"BUSY", "NEW", "PERM"} {
			_, err := s.Get(ctx, code)
			assert.NoError(t, err, code)
		}

		deleted, err = s.DeleteExpired(ctx, now, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"BUSY"}, deleted)
	})
}

func TestSQLite_ReopenKeepsRooms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	r := newRoom(t, "DURABLE", games.GameChallenges, time.Now(), time.Hour)
	r.Challenges = []games.Challenge{{ID: "1", Text: "sing"}}
	require.NoError(t, s.Create(ctx, r))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "DURABLE")
	require.NoError(t, err)
	assert.Equal(t, r.Challenges, got.Challenges)
}
