/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	mailboxSize     = 64
	maxSaveAttempts = 3
)

// errNoop tells mutate that nothing changed and nothing should be saved.
var errNoop = errors.New("no-op")

// Engine is the single authority for every room. All commands for one room
// code are applied one at a time, in arrival order, by that code's actor.
type Engine struct {
	store    Store
	registry *Registry
	tokens   *Tokens
	log      zerolog.Logger

	roomTTL      time.Duration
	guessTimeout time.Duration

	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	actors map[string]*actor
	timers map[string]*time.Timer
	closed bool
}

type Options struct {
	RoomTTL time.Duration
	// GuessTimeout closes phase 2 on the server. Zero leaves it to the host.
	GuessTimeout time.Duration
	Tokens       *Tokens
	Log          zerolog.Logger
}

type actor struct {
	inbox   chan request
	pending int
}

type request struct {
	ctx  context.Context
	from Member
	cmd  Command
	done chan error
}

func NewEngine(store Store, registry *Registry, opts Options) *Engine {
	return &Engine{
		store:        store,
		registry:     registry,
		tokens:       opts.Tokens,
		log:          opts.Log,
		roomTTL:      opts.RoomTTL,
		guessTimeout: opts.GuessTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
		actors:       make(map[string]*actor),
		timers:       make(map[string]*time.Timer),
	}
}

// Dispatch applies cmd on behalf of from and waits for it to finish. Rule
// violations and failures are also reported to from as an error message.
func (e *Engine) Dispatch(ctx context.Context, from Member, cmd Command) error {
	if from == nil || from.ID() == "" {
		return fmt.Errorf("%w: missing session", ErrValidation)
	}

	req := request{ctx: ctx, from: from, cmd: cmd, done: make(chan error, 1)}
	if err := e.enqueue(req); err != nil {
		from.Send(NewErrorMessage(err))
		return err
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) enqueue(req request) error {
	code := req.cmd.Room()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.New("engine closed")
	}
	a, ok := e.actors[code]
	if !ok {
		a = &actor{inbox: make(chan request, mailboxSize)}
		e.actors[code] = a
		go e.run(code, a)
	}
	a.pending++
	e.mu.Unlock()

	a.inbox <- req
	return nil
}

// run drains one room's mailbox and exits once nothing is pending. A new
// actor for the code can only be created after this one has been removed.
func (e *Engine) run(code string, a *actor) {
	for req := range a.inbox {
		req.done <- e.process(req)

		e.mu.Lock()
		a.pending--
		if a.pending == 0 {
			delete(e.actors, code)
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

func (e *Engine) process(req request) error {
	start := e.now()
	err := e.handle(req.ctx, req.from, req.cmd)

	ev := e.log.Debug()
	if err != nil {
		if IsDomainError(err) {
			ev = e.log.Info()
		} else {
			ev = e.log.Error()
		}
		ev = ev.Err(err)
		if req.from != nil {
			req.from.Send(NewErrorMessage(err))
		}
	}

	session := ""
	if req.from != nil {
		session = req.from.ID()
	}
	ev.Str("room", req.cmd.Room()).
		Str("action", req.cmd.Name()).
		Str("session", session).
		Dur("took", e.now().Sub(start)).
		Msg("GAMES: action")

	return err
}

func (e *Engine) handle(ctx context.Context, from Member, cmd Command) error {
	caller := ""
	if from != nil {
		caller = from.ID()
	}

	switch c := cmd.(type) {
	case CreateRoom:
		return e.createRoom(ctx, from, c)

	case JoinRoom:
		return e.joinRoom(ctx, from, c)

	case AddChallenge:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			ch := Challenge{ID: e.newID(), Text: c.Text}
			if err := r.AddChallenge(ch); err != nil {
				return nil, err
			}
			kind := TypeChallengeAdded
			if r.GameStarted {
				kind = TypeChallengeAddedMidGame
			}
			return func(r *Room) {
				e.registry.Broadcast(r.Code, ChallengeAddedMessage{Type: kind, Challenge: ch, Count: len(r.Challenges)})
			}, nil
		})

	case StartGame:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			if r.GameType == GameChallenges {
				deck, err := r.StartDeck()
				if err != nil {
					return nil, err
				}
				return func(r *Room) {
					e.registry.Broadcast(r.Code, GameStartedMessage{Type: TypeGameStarted, Challenges: deck})
				}, nil
			}
			return e.broadcastAfter(r.StartGuessing(caller))
		})

	case AddQuestion:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			return e.broadcastAfter(r.AddQuestion(caller, c.Question))
		})

	case UpdateQuestion:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			return e.broadcastAfter(r.UpdateQuestion(caller, c.Index, c.Question))
		})

	case StartPhase:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			if err := r.StartPhase(caller, c.Phase, e.now()); err != nil {
				return nil, err
			}
			return func(r *Room) {
				if r.Phase == PhaseGuessing {
					e.scheduleGuessTimeout(r.Code, r.CurrentQuestionIndex, *r.RoundStartedAt)
				} else {
					e.stopGuessTimeout(r.Code)
				}
				e.registry.Broadcast(r.Code, roomUpdated(r))
			}, nil
		})

	case SubmitGuess:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			advanced, err := r.SubmitGuess(caller, c.PlayerName, c.Guess)
			if err != nil {
				return nil, err
			}
			return func(r *Room) {
				if advanced {
					e.stopGuessTimeout(r.Code)
				}
				e.registry.Broadcast(r.Code, roomUpdated(r))
			}, nil
		})

	case SetAnswer:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			return e.broadcastAfter(r.SetAnswer(caller, c.CorrectAnswer))
		})

	case NextQuestion:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			return e.broadcastAfter(r.NextQuestion(caller))
		})

	case closeGuessing:
		return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
			if !r.CloseGuessing(c.Index, c.StartedAt) {
				return nil, errNoop
			}
			return func(r *Room) {
				e.registry.Broadcast(r.Code, roomUpdated(r))
			}, nil
		})
	}

	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name())
}

func (e *Engine) broadcastAfter(err error) (func(*Room), error) {
	if err != nil {
		return nil, err
	}
	return func(r *Room) {
		e.registry.Broadcast(r.Code, roomUpdated(r))
	}, nil
}

// mutate loads the room, applies the change and saves it, retrying when the
// store reports a concurrent write. emit runs only after a successful save.
func (e *Engine) mutate(ctx context.Context, code string, apply func(r *Room) (emit func(*Room), err error)) error {
	for attempt := 1; ; attempt++ {
		r, err := e.store.Get(ctx, code)
		if err != nil {
			return err
		}

		emit, err := apply(r)
		if errors.Is(err, errNoop) {
			return nil
		}
		if err != nil {
			return err
		}

		r.Touch(e.now(), e.roomTTL)

		err = e.store.Save(ctx, r)
		if errors.Is(err, ErrVersionConflict) && attempt < maxSaveAttempts {
			e.log.Warn().Str("room", code).Int("attempt", attempt).Msg("GAMES: version conflict, retrying")
			continue
		}
		if err != nil {
			return err
		}

		if emit != nil {
			emit(r)
		}
		return nil
	}
}

func (e *Engine) createRoom(ctx context.Context, from Member, c CreateRoom) error {
	r, err := NewRoom(c.RoomCode, c.GameType, from.ID(), e.now(), e.roomTTL)
	if err != nil {
		return err
	}

	token, err := e.issue(from.ID(), r.Code, "", true)
	if err != nil {
		return err
	}

	if err := e.store.Create(ctx, r); err != nil {
		return err
	}

	e.registry.Join(r.Code, from)
	from.Send(RoomCreatedMessage{
		Type:     TypeRoomCreated,
		Success:  true,
		RoomCode: r.Code,
		IsHost:   true,
		Token:    token,
	})
	return nil
}

func (e *Engine) joinRoom(ctx context.Context, from Member, c JoinRoom) error {
	return e.mutate(ctx, c.RoomCode, func(r *Room) (func(*Room), error) {
		// Rooms seeded at startup have no host until someone joins.
		if r.HostID == "" {
			r.HostID = from.ID()
		}

		name := c.PlayerName
		if name != "" {
			if _, err := r.AddPlayer(name, from.ID()); err != nil {
				return nil, err
			}
		} else {
			name, _ = r.PlayerFor(from.ID())
		}

		isHost := r.IsHost(from.ID())
		token, err := e.issue(from.ID(), r.Code, name, isHost)
		if err != nil {
			return nil, err
		}

		return func(r *Room) {
			e.registry.Join(r.Code, from)
			from.Send(RoomJoinedMessage{
				Type:    TypeRoomJoined,
				Success: true,
				Room:    r.Snapshot(),
				IsHost:  isHost,
				Token:   token,
			})
			e.registry.Broadcast(r.Code, roomUpdated(r))
		}, nil
	})
}

func (e *Engine) issue(sessionID, room, player string, host bool) (string, error) {
	if e.tokens == nil {
		return "", nil
	}
	return e.tokens.Issue(sessionID, room, player, host)
}

// Seed creates a permanent room with no host if it does not exist yet.
func (e *Engine) Seed(ctx context.Context, code string, gameType GameType) error {
	now := e.now()
	r, err := NewRoom(code, gameType, "", now, e.roomTTL)
	if err != nil {
		return err
	}
	r.Permanent = true

	err = e.store.Create(ctx, r)
	if errors.Is(err, ErrDuplicateRoom) {
		return nil
	}
	return err
}

// Snapshot returns the current state of a room for read-only callers.
func (e *Engine) Snapshot(ctx context.Context, code string) (Snapshot, error) {
	code, err := NormalizeRoomCode(code)
	if err != nil {
		return Snapshot{}, err
	}
	r, err := e.store.Get(ctx, code)
	if err != nil {
		return Snapshot{}, err
	}
	return r.Snapshot(), nil
}

func (e *Engine) scheduleGuessTimeout(code string, index int, startedAt time.Time) {
	if e.guessTimeout <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if t, ok := e.timers[code]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(e.guessTimeout, func() {
		e.mu.Lock()
		if e.timers[code] == timer {
			delete(e.timers, code)
		}
		e.mu.Unlock()

		req := request{
			ctx:  context.Background(),
			cmd:  closeGuessing{RoomCode: code, Index: index, StartedAt: startedAt},
			done: make(chan error, 1),
		}
		if err := e.enqueue(req); err != nil {
			e.log.Debug().Err(err).Str("room", code).Msg("GAMES: guess timeout dropped")
		}
	})
	e.timers[code] = timer
}

func (e *Engine) stopGuessTimeout(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[code]; ok {
		t.Stop()
		delete(e.timers, code)
	}
}

// Close stops pending guess timers and refuses further commands.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for code, t := range e.timers {
		t.Stop()
		delete(e.timers, code)
	}
}
