package games

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ABC123", "ABC123", false},
		{"  party-room_1 ", "party-room_1", false},
		{"", "", true},
		{"   ", "", true},
		{"has space", "", true},
		{"emoji🎉", "", true},
		{strings.Repeat("a", 32), strings.Repeat("a", 32), false},
		{strings.Repeat("a", 33), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeRoomCode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRoom(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r, err := NewRoom(" ABC123 ", GameGuessing, "host-session", now, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "ABC123", r.Code)
	assert.Equal(t, GameGuessing, r.GameType)
	assert.True(t, r.IsHost("host-session"))
	assert.False(t, r.IsHost(""))
	assert.Equal(t, now.Add(time.Hour), r.ExpiresAt)
	assert.Equal(t, PhaseLobby, r.Phase)
	assert.False(t, r.GameStarted)

	_, err = NewRoom("ABC123", GameType("poker"), "host-session", now, time.Hour)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseGameType(t *testing.T) {
	gt, err := ParseGameType("Guessing")
	require.NoError(t, err)
	assert.Equal(t, GameGuessing, gt)

	gt, err = ParseGameType("challenges")
	require.NoError(t, err)
	assert.Equal(t, GameChallenges, gt)

	_, err = ParseGameType("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRoom_AddPlayer(t *testing.T) {
	r := &Room{Code: "R", GameType: GameGuessing, HostID: "host"}

	added, err := r.AddPlayer(" Al ", "s1")
	require.NoError(t, err)
	assert.True(t, added)

	// same session reclaiming its name is not a new player
	added, err = r.AddPlayer("Al", "s1")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = r.AddPlayer("Al", "s2")
	assert.ErrorIs(t, err, ErrDuplicatePlayerName)

	_, err = r.AddPlayer("", "s3")
	assert.ErrorIs(t, err, ErrValidation)

	require.Len(t, r.Players, 1)
	assert.Equal(t, Player{Name: "Al", SessionID: "s1"}, r.Players[0])

	name, ok := r.PlayerFor("s1")
	assert.True(t, ok)
	assert.Equal(t, "Al", name)

	_, ok = r.PlayerFor("s2")
	assert.False(t, ok)
}

func TestRoom_CloneIsDeep(t *testing.T) {
	answer := 3.0
	started := time.Now()
	r := &Room{
		Code:           "R",
		Players:        []Player{{Name: "Al", Score: 10}},
		Challenges:     []Challenge{{ID: "1", Text: "sing"}},
		Questions:      []Question{{Text: "q", RangeMax: 10}},
		Answers:        map[string]float64{"Al": 1},
		RoundScores:    map[string]int{"Al": 5},
		CorrectAnswer:  &answer,
		RoundStartedAt: &started,
	}

	c := r.Clone()
	c.Players[0].Score = 99
	c.Challenges[0].Text = "dance"
	c.Questions[0].Text = "other"
	c.Answers["Al"] = 2
	c.RoundScores["Al"] = 0
	*c.CorrectAnswer = 4
	*c.RoundStartedAt = started.Add(time.Hour)

	assert.Equal(t, 10, r.Players[0].Score)
	assert.Equal(t, "sing", r.Challenges[0].Text)
	assert.Equal(t, "q", r.Questions[0].Text)
	assert.Equal(t, 1.0, r.Answers["Al"])
	assert.Equal(t, 5, r.RoundScores["Al"])
	assert.Equal(t, 3.0, *r.CorrectAnswer)
	assert.True(t, r.RoundStartedAt.Equal(started))
}

func TestRoom_SnapshotFlattensMaps(t *testing.T) {
	r := &Room{
		Code:        "R",
		GameType:    GameGuessing,
		HostID:      "secret-host-session",
		Players:     []Player{{Name: "Bo", SessionID: "b"}, {Name: "Al", SessionID: "a"}, {Name: "Cy"}},
		Answers:     map[string]float64{"Al": 5, "Bo": 7},
		RoundScores: map[string]int{"Al": 882, "Bo": 882},
	}

	s := r.Snapshot()

	assert.Equal(t, []GuessView{{PlayerName: "Bo", Guess: 7}, {PlayerName: "Al", Guess: 5}}, s.Answers)
	assert.Equal(t, []RoundScoreView{{PlayerName: "Bo", Points: 882}, {PlayerName: "Al", Points: 882}}, s.RoundScores)
	assert.Equal(t, []PlayerView{{Name: "Bo"}, {Name: "Al"}, {Name: "Cy"}}, s.Players)
	assert.Nil(t, s.Challenges)
	assert.NotNil(t, s.Questions)
}
