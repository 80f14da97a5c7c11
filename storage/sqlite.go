/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/Seednode/partyrooms/games"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite stores one row per room. The game state is a JSON document; the
// columns the store filters on (version, permanent, expiry) are kept apart.
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// any pending migrations.
func OpenSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := s.db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		body, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		s.log.Info().Str("migration", f).Msg("STORE: applied migration")
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, r *games.Room) error {
	state, err := encodeState(r)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rooms (code, game_type, version, permanent, expires_at, state)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Code, string(r.GameType), r.Version, r.Permanent, r.ExpiresAt.UnixMilli(), state,
	)
	if err != nil {
		return fmt.Errorf("insert room %s: %w", r.Code, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return games.ErrDuplicateRoom
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, code string) (*games.Room, error) {
	var (
		gameType  string
		version   int64
		permanent bool
		expiresAt int64
		state     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT game_type, version, permanent, expires_at, state
		FROM rooms WHERE code = ?`, code,
	).Scan(&gameType, &version, &permanent, &expiresAt, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, games.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select room %s: %w", code, err)
	}

	r, err := decodeState(state)
	if err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	r.Code = code
	r.GameType = games.GameType(gameType)
	r.Version = version
	r.Permanent = permanent
	r.ExpiresAt = time.UnixMilli(expiresAt)
	return r, nil
}

func (s *SQLite) Save(ctx context.Context, r *games.Room) error {
	state, err := encodeState(r)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE rooms
		SET version = version + 1, permanent = ?, expires_at = ?, state = ?
		WHERE code = ? AND version = ?`,
		r.Permanent, r.ExpiresAt.UnixMilli(), state, r.Code, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update room %s: %w", r.Code, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE code = ?`, r.Code).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return games.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		return games.ErrVersionConflict
	}

	r.Version++
	return nil
}

func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time, keep func(string) bool) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT code FROM rooms WHERE permanent = 0 AND expires_at < ?`, now.UnixMilli())
	if err != nil {
		return nil, err
	}

	var candidates []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, code)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var deleted []string
	for _, code := range candidates {
		if keep != nil && keep(code) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE code = ?`, code); err != nil {
			return nil, fmt.Errorf("delete room %s: %w", code, err)
		}
		deleted = append(deleted, code)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return deleted, nil
}

// roomState is the persisted JSON document. Maps are stored as explicit
// name/value lists.
type roomState struct {
	HostID               string            `json:"hostId"`
	Players              []playerState     `json:"players"`
	GameStarted          bool              `json:"gameStarted"`
	CreatedAt            time.Time         `json:"createdAt"`
	Challenges           []games.Challenge `json:"challenges,omitempty"`
	Questions            []games.Question  `json:"questions,omitempty"`
	CurrentQuestionIndex int               `json:"currentQuestionIndex"`
	Phase                games.Phase       `json:"phase"`
	Answers              []answerState     `json:"answers,omitempty"`
	RoundScores          []roundScoreState `json:"roundScores,omitempty"`
	CorrectAnswer        *float64          `json:"correctAnswer,omitempty"`
	RoundStartedAt       *time.Time        `json:"roundStartedAt,omitempty"`
}

type playerState struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	SessionID string `json:"sessionId,omitempty"`
}

type answerState struct {
	PlayerName string  `json:"playerName"`
	Guess      float64 `json:"guess"`
}

type roundScoreState struct {
	PlayerName string `json:"playerName"`
	Points     int    `json:"points"`
}

func encodeState(r *games.Room) (string, error) {
	st := roomState{
		HostID:               r.HostID,
		GameStarted:          r.GameStarted,
		CreatedAt:            r.CreatedAt,
		Challenges:           r.Challenges,
		Questions:            r.Questions,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		Phase:                r.Phase,
		CorrectAnswer:        r.CorrectAnswer,
		RoundStartedAt:       r.RoundStartedAt,
	}
	for _, p := range r.Players {
		st.Players = append(st.Players, playerState{Name: p.Name, Score: p.Score, SessionID: p.SessionID})
		if g, ok := r.Answers[p.Name]; ok {
			st.Answers = append(st.Answers, answerState{PlayerName: p.Name, Guess: g})
		}
		if pts, ok := r.RoundScores[p.Name]; ok {
			st.RoundScores = append(st.RoundScores, roundScoreState{PlayerName: p.Name, Points: pts})
		}
	}

	b, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encode room %s: %w", r.Code, err)
	}
	return string(b), nil
}

func decodeState(data string) (*games.Room, error) {
	var st roomState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, err
	}

	r := &games.Room{
		HostID:               st.HostID,
		GameStarted:          st.GameStarted,
		CreatedAt:            st.CreatedAt,
		Challenges:           st.Challenges,
		Questions:            st.Questions,
		CurrentQuestionIndex: st.CurrentQuestionIndex,
		Phase:                st.Phase,
		Answers:              make(map[string]float64, len(st.Answers)),
		CorrectAnswer:        st.CorrectAnswer,
		RoundStartedAt:       st.RoundStartedAt,
	}
	for _, p := range st.Players {
		r.Players = append(r.Players, games.Player{Name: p.Name, Score: p.Score, SessionID: p.SessionID})
	}
	for _, a := range st.Answers {
		r.Answers[a.PlayerName] = a.Guess
	}
	if st.RoundScores != nil {
		r.RoundScores = make(map[string]int, len(st.RoundScores))
		for _, s := range st.RoundScores {
			r.RoundScores[s.PlayerName] = s.Points
		}
	}
	return r, nil
}

var _ games.Store = (*SQLite)(nil)
