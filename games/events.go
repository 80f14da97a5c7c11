package games

import "time"

// Messages sent to clients. Every message carries its own type tag.

type RoomCreatedMessage struct {
	Type     string `json:"type"` // "room_created"
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode"`
	IsHost   bool   `json:"isHost"`
	Token    string `json:"token,omitempty"`
}

type RoomJoinedMessage struct {
	Type    string   `json:"type"` // "room_joined"
	Success bool     `json:"success"`
	Room    Snapshot `json:"room"`
	IsHost  bool     `json:"isHost"`
	Token   string   `json:"token,omitempty"`
}

type RoomUpdatedMessage struct {
	Type string   `json:"type"` // "room_updated"
	Room Snapshot `json:"room"`
}

// ChallengeAddedMessage is sent as "challenge_added" before the deck is
// started and as "challenge_added_mid_game" afterwards.
type ChallengeAddedMessage struct {
	Type      string    `json:"type"`
	Challenge Challenge `json:"challenge"`
	Count     int       `json:"count"`
}

type GameStartedMessage struct {
	Type       string      `json:"type"` // "game_started"
	Challenges []Challenge `json:"challenges"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

const (
	TypeRoomCreated           = "room_created"
	TypeRoomJoined            = "room_joined"
	TypeRoomUpdated           = "room_updated"
	TypeChallengeAdded        = "challenge_added"
	TypeChallengeAddedMidGame = "challenge_added_mid_game"
	TypeGameStarted           = "game_started"
	TypeError                 = "error"
)

func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: UserMessage(err)}
}

type PlayerView struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type GuessView struct {
	PlayerName string  `json:"playerName"`
	Guess      float64 `json:"guess"`
}

type RoundScoreView struct {
	PlayerName string `json:"playerName"`
	Points     int    `json:"points"`
}

// Snapshot is the full room state as sent over the wire. Maps are flattened
// into lists ordered like Players so every client renders the same order.
type Snapshot struct {
	RoomCode             string           `json:"roomCode"`
	GameType             GameType         `json:"gameType"`
	Players              []PlayerView     `json:"players"`
	GameStarted          bool             `json:"gameStarted"`
	Permanent            bool             `json:"permanent"`
	ExpiresAt            time.Time        `json:"expiresAt"`
	Version              int64            `json:"version"`
	Challenges           []Challenge      `json:"challenges,omitempty"`
	Questions            []Question       `json:"questions,omitempty"`
	CurrentQuestionIndex int              `json:"currentQuestionIndex"`
	Phase                Phase            `json:"phase"`
	Answers              []GuessView      `json:"answers"`
	RoundScores          []RoundScoreView `json:"roundScores,omitempty"`
	CorrectAnswer        *float64         `json:"correctAnswer"`
	RoundStartedAt       *time.Time       `json:"roundStartedAt"`
}

func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		RoomCode:             r.Code,
		GameType:             r.GameType,
		Players:              make([]PlayerView, 0, len(r.Players)),
		GameStarted:          r.GameStarted,
		Permanent:            r.Permanent,
		ExpiresAt:            r.ExpiresAt,
		Version:              r.Version,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		Phase:                r.Phase,
		Answers:              make([]GuessView, 0, len(r.Answers)),
	}

	if r.GameType == GameChallenges {
		s.Challenges = append([]Challenge{}, r.Challenges...)
	} else {
		s.Questions = append([]Question{}, r.Questions...)
	}

	for _, p := range r.Players {
		s.Players = append(s.Players, PlayerView{Name: p.Name, Score: p.Score})
		if g, ok := r.Answers[p.Name]; ok {
			s.Answers = append(s.Answers, GuessView{PlayerName: p.Name, Guess: g})
		}
		if pts, ok := r.RoundScores[p.Name]; ok {
			s.RoundScores = append(s.RoundScores, RoundScoreView{PlayerName: p.Name, Points: pts})
		}
	}

	if r.CorrectAnswer != nil {
		v := *r.CorrectAnswer
		s.CorrectAnswer = &v
	}
	if r.RoundStartedAt != nil {
		v := *r.RoundStartedAt
		s.RoundStartedAt = &v
	}
	return s
}

func roomUpdated(r *Room) RoomUpdatedMessage {
	return RoomUpdatedMessage{Type: TypeRoomUpdated, Room: r.Snapshot()}
}
