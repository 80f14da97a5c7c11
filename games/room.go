/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package games holds the authoritative room state for partyrooms: the room
// model, the challenge-deck and guessing state machines, scoring, the
// connection registry and the engine that serializes every mutation of a room.
package games

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// GameType selects which variant a room plays. It never changes after creation.
type GameType string

const (
	GameChallenges GameType = "challenges"
	GameGuessing   GameType = "guessing"
)

func ParseGameType(s string) (GameType, error) {
	switch GameType(strings.ToLower(strings.TrimSpace(s))) {
	case GameChallenges:
		return GameChallenges, nil
	case GameGuessing:
		return GameGuessing, nil
	}
	return "", fmt.Errorf("%w: unknown game type %q", ErrValidation, s)
}

// Phase is the guessing variant's round sub-stage.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseQuestion
	PhaseGuessing
	PhaseAwaitingAnswer
	PhaseResults
	PhaseGameOver
)

const (
	maxRoomCodeLen  = 32
	maxNameLen      = 32
	maxChallengeLen = 500
	maxQuestionLen  = 500
)

type Player struct {
	Name      string
	Score     int
	SessionID string // owner of this name; never broadcast
}

type Challenge struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	Text     string  `json:"text"`
	RangeMin float64 `json:"rangeMin"`
	RangeMax float64 `json:"rangeMax"`
}

// Room is the whole shared state of one game session. Rooms handed out by a
// Store are private copies; changes only take effect through Store.Save.
type Room struct {
	Code        string
	GameType    GameType
	HostID      string
	Players     []Player
	GameStarted bool
	Permanent   bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Version     int64

	Challenges []Challenge

	Questions            []Question
	CurrentQuestionIndex int
	Phase                Phase
	Answers              map[string]float64
	RoundScores          map[string]int
	CorrectAnswer        *float64
	RoundStartedAt       *time.Time
}

// NewRoom validates the code and returns an unsaved room owned by hostID. An
// empty hostID leaves the room to be claimed by its first joiner.
func NewRoom(code string, gameType GameType, hostID string, now time.Time, ttl time.Duration) (*Room, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	if gameType != GameChallenges && gameType != GameGuessing {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrValidation, gameType)
	}
	return &Room{
		Code:      code,
		GameType:  gameType,
		HostID:    hostID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Answers:   make(map[string]float64),
	}, nil
}

// NormalizeRoomCode trims the code and checks it against [A-Za-z0-9_-]{1,32}.
func NormalizeRoomCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: room code is required", ErrValidation)
	}
	if len(code) > maxRoomCodeLen {
		return "", fmt.Errorf("%w: room code is longer than %d characters", ErrValidation, maxRoomCodeLen)
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", fmt.Errorf("%w: room code may only contain letters, digits, '-' and '_'", ErrValidation)
		}
	}
	return code, nil
}

func normalizePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: player name is required", ErrValidation)
	}
	if len([]rune(name)) > maxNameLen {
		return "", fmt.Errorf("%w: player name is longer than %d characters", ErrValidation, maxNameLen)
	}
	return name, nil
}

func (r *Room) IsHost(sessionID string) bool {
	return sessionID != "" && r.HostID == sessionID
}

func (r *Room) requireHost(sessionID string) error {
	if !r.IsHost(sessionID) {
		return ErrNotHost
	}
	return nil
}

func (r *Room) requireType(t GameType) error {
	if r.GameType != t {
		return fmt.Errorf("%w: room %s plays %s", ErrWrongGameType, r.Code, r.GameType)
	}
	return nil
}

func (r *Room) playerIndex(name string) int {
	return slices.IndexFunc(r.Players, func(p Player) bool { return p.Name == name })
}

// AddPlayer appends a player owned by sessionID. A session that already owns
// the name gets it back (reconnect); any other session is refused.
func (r *Room) AddPlayer(name, sessionID string) (added bool, err error) {
	name, err = normalizePlayerName(name)
	if err != nil {
		return false, err
	}

	if i := r.playerIndex(name); i >= 0 {
		if sessionID != "" && r.Players[i].SessionID == sessionID {
			return false, nil
		}
		return false, fmt.Errorf("%w: %q is already taken", ErrDuplicatePlayerName, name)
	}

	r.Players = append(r.Players, Player{Name: name, SessionID: sessionID})
	return true, nil
}

// PlayerFor returns the name owned by sessionID, if any.
func (r *Room) PlayerFor(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	for _, p := range r.Players {
		if p.SessionID == sessionID {
			return p.Name, true
		}
	}
	return "", false
}

// Touch pushes the expiry out by ttl from now.
func (r *Room) Touch(now time.Time, ttl time.Duration) {
	if ttl > 0 {
		r.ExpiresAt = now.Add(ttl)
	}
}

// Clone returns a deep copy.
func (r *Room) Clone() *Room {
	c := *r
	c.Players = slices.Clone(r.Players)
	c.Challenges = slices.Clone(r.Challenges)
	c.Questions = slices.Clone(r.Questions)
	c.Answers = maps.Clone(r.Answers)
	c.RoundScores = maps.Clone(r.RoundScores)
	if c.Answers == nil {
		c.Answers = make(map[string]float64)
	}
	if r.CorrectAnswer != nil {
		v := *r.CorrectAnswer
		c.CorrectAnswer = &v
	}
	if r.RoundStartedAt != nil {
		v := *r.RoundStartedAt
		c.RoundStartedAt = &v
	}
	return &c
}
