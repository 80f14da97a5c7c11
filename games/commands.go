/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Command is one validated inbound action. The set of implementations is
// closed: only this package can add variants.
type Command interface {
	Room() string
	Name() string
	command()
}

type CreateRoom struct {
	RoomCode string
	GameType GameType
}

type JoinRoom struct {
	RoomCode   string
	PlayerName string // optional; empty joins as a spectator or host
}

type AddChallenge struct {
	RoomCode string
	Text     string
}

type StartGame struct {
	RoomCode string
}

type AddQuestion struct {
	RoomCode string
	Question Question
}

type UpdateQuestion struct {
	RoomCode string
	Index    int
	Question Question
}

type StartPhase struct {
	RoomCode string
	Phase    Phase
}

type SubmitGuess struct {
	RoomCode   string
	PlayerName string
	Guess      float64
}

type SetAnswer struct {
	RoomCode      string
	CorrectAnswer float64
}

type NextQuestion struct {
	RoomCode string
}

// closeGuessing is posted by the engine's guess timer, never by clients.
type closeGuessing struct {
	RoomCode  string
	Index     int
	StartedAt time.Time
}

func (c CreateRoom) Room() string     { return c.RoomCode }
func (c JoinRoom) Room() string       { return c.RoomCode }
func (c AddChallenge) Room() string   { return c.RoomCode }
func (c StartGame) Room() string      { return c.RoomCode }
func (c AddQuestion) Room() string    { return c.RoomCode }
func (c UpdateQuestion) Room() string { return c.RoomCode }
func (c StartPhase) Room() string     { return c.RoomCode }
func (c SubmitGuess) Room() string    { return c.RoomCode }
func (c SetAnswer) Room() string      { return c.RoomCode }
func (c NextQuestion) Room() string   { return c.RoomCode }
func (c closeGuessing) Room() string  { return c.RoomCode }

func (CreateRoom) Name() string     { return "create_room" }
func (JoinRoom) Name() string       { return "join_room" }
func (AddChallenge) Name() string   { return "add_challenge" }
func (StartGame) Name() string      { return "start_game" }
func (AddQuestion) Name() string    { return "add_question" }
func (UpdateQuestion) Name() string { return "update_question" }
func (StartPhase) Name() string     { return "start_phase" }
func (SubmitGuess) Name() string    { return "submit_guess" }
func (SetAnswer) Name() string      { return "set_answer" }
func (NextQuestion) Name() string   { return "next_question" }
func (closeGuessing) Name() string  { return "guess_timeout" }

func (CreateRoom) command()     {}
func (JoinRoom) command()       {}
func (AddChallenge) command()   {}
func (StartGame) command()      {}
func (AddQuestion) command()    {}
func (UpdateQuestion) command() {}
func (StartPhase) command()     {}
func (SubmitGuess) command()    {}
func (SetAnswer) command()      {}
func (NextQuestion) command()   {}
func (closeGuessing) command()  {}

// ClientMessage is the wire shape of every inbound frame.
type ClientMessage struct {
	Type          string        `json:"type"`
	RoomCode      string        `json:"roomCode"`
	GameType      string        `json:"gameType,omitempty"`      // create_room
	PlayerName    string        `json:"playerName,omitempty"`    // join_room / submit_guess
	Challenge     string        `json:"challenge,omitempty"`     // add_challenge
	Question      *wireQuestion `json:"question,omitempty"`      // add_question / update_question
	Index         *int          `json:"index,omitempty"`         // update_question
	Phase         *int          `json:"phase,omitempty"`         // start_phase
	Guess         *float64      `json:"guess,omitempty"`         // submit_guess
	CorrectAnswer *float64      `json:"correctAnswer,omitempty"` // set_answer
}

type wireQuestion struct {
	Text     string   `json:"text"`
	RangeMin *float64 `json:"rangeMin"`
	RangeMax *float64 `json:"rangeMax"`
}

// DecodeCommand parses one inbound frame into a typed, validated Command.
func DecodeCommand(data []byte) (Command, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: malformed message", ErrValidation)
	}
	return msg.Command()
}

// Command validates the payload for msg.Type.
func (msg ClientMessage) Command() (Command, error) {
	code, err := NormalizeRoomCode(msg.RoomCode)
	if err != nil {
		return nil, err
	}

	switch msg.Type {
	case "create_room":
		gt, err := ParseGameType(msg.GameType)
		if err != nil {
			return nil, err
		}
		return CreateRoom{RoomCode: code, GameType: gt}, nil

	case "join_room":
		name := strings.TrimSpace(msg.PlayerName)
		if name != "" {
			if name, err = normalizePlayerName(name); err != nil {
				return nil, err
			}
		}
		return JoinRoom{RoomCode: code, PlayerName: name}, nil

	case "add_challenge":
		text := strings.TrimSpace(msg.Challenge)
		if text == "" {
			return nil, fmt.Errorf("%w: challenge text is required", ErrValidation)
		}
		if len([]rune(text)) > maxChallengeLen {
			return nil, fmt.Errorf("%w: challenge is longer than %d characters", ErrValidation, maxChallengeLen)
		}
		return AddChallenge{RoomCode: code, Text: text}, nil

	case "start_game":
		return StartGame{RoomCode: code}, nil

	case "add_question":
		q, err := msg.Question.validate()
		if err != nil {
			return nil, err
		}
		return AddQuestion{RoomCode: code, Question: q}, nil

	case "update_question":
		if msg.Index == nil {
			return nil, fmt.Errorf("%w: question index is required", ErrValidation)
		}
		q, err := msg.Question.validate()
		if err != nil {
			return nil, err
		}
		return UpdateQuestion{RoomCode: code, Index: *msg.Index, Question: q}, nil

	case "start_phase":
		if msg.Phase == nil {
			return nil, fmt.Errorf("%w: phase is required", ErrValidation)
		}
		p := Phase(*msg.Phase)
		if p != PhaseGuessing && p != PhaseAwaitingAnswer {
			return nil, fmt.Errorf("%w: phase %d cannot be started manually", ErrInvalidPhase, p)
		}
		return StartPhase{RoomCode: code, Phase: p}, nil

	case "submit_guess":
		name, err := normalizePlayerName(msg.PlayerName)
		if err != nil {
			return nil, err
		}
		if err := requireFinite("guess", msg.Guess); err != nil {
			return nil, err
		}
		return SubmitGuess{RoomCode: code, PlayerName: name, Guess: *msg.Guess}, nil

	case "set_answer":
		if err := requireFinite("correctAnswer", msg.CorrectAnswer); err != nil {
			return nil, err
		}
		return SetAnswer{RoomCode: code, CorrectAnswer: *msg.CorrectAnswer}, nil

	case "next_question":
		return NextQuestion{RoomCode: code}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Type)
}

func (q *wireQuestion) validate() (Question, error) {
	if q == nil {
		return Question{}, fmt.Errorf("%w: question is required", ErrValidation)
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Question{}, fmt.Errorf("%w: question text is required", ErrValidation)
	}
	if len([]rune(text)) > maxQuestionLen {
		return Question{}, fmt.Errorf("%w: question is longer than %d characters", ErrValidation, maxQuestionLen)
	}
	if err := requireFinite("rangeMin", q.RangeMin); err != nil {
		return Question{}, err
	}
	if err := requireFinite("rangeMax", q.RangeMax); err != nil {
		return Question{}, err
	}
	if *q.RangeMin > *q.RangeMax {
		return Question{}, fmt.Errorf("%w: rangeMin must not exceed rangeMax", ErrValidation)
	}
	return Question{Text: text, RangeMin: *q.RangeMin, RangeMax: *q.RangeMax}, nil
}

func requireFinite(field string, v *float64) error {
	if v == nil {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrValidation, field)
	}
	return nil
}
