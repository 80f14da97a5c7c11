package games

import (
	"fmt"
	"time"
)

const (
	minGuessingPlayers   = 2
	minGuessingQuestions = 1
)

func (r *Room) requirePhase(want Phase, action string) error {
	if r.Phase != want {
		return fmt.Errorf("%w: %s needs phase %d, room is in phase %d", ErrInvalidPhase, action, want, r.Phase)
	}
	return nil
}

// AddQuestion appends q while the room is still in the lobby.
func (r *Room) AddQuestion(caller string, q Question) error {
	if err := r.requireType(GameGuessing); err != nil {
		return err
	}
	if err := r.requireHost(caller); err != nil {
		return err
	}
	if err := r.requirePhase(PhaseLobby, "add_question"); err != nil {
		return err
	}

	r.Questions = append(r.Questions, q)
	return nil
}

func (r *Room) UpdateQuestion(caller string, index int, q Question) error {
	if err := r.requireType(GameGuessing); err != nil {
		return err
	}
	if err := r.requireHost(caller); err != nil {
		return err
	}
	if err := r.requirePhase(PhaseLobby, "update_question"); err != nil {
		return err
	}
	if index < 0 || index >= len(r.Questions) {
		return fmt.Errorf("%w: question index %d out of range", ErrValidation, index)
	}

	r.Questions[index] = q
	return nil
}

// StartGuessing moves the lobby to the first question.
func (r *Room) StartGuessing(caller string) error {
	if err := r.requireType(GameGuessing); err != nil {
		return err
	}
	if err := r.requireHost(caller); err != nil {
		return err
	}
	if err := r.requirePhase(PhaseLobby, "start_game"); err != nil {
		return err
	}
	if len(r.Players) < minGuessingPlayers {
		return fmt.Errorf("%w: at least %d players are needed to start", ErrValidation, minGuessingPlayers)
	}
	if len(r.Questions) < minGuessingQuestions {
		return fmt.Errorf("%w: add at least %d question before starting", ErrValidation, minGuessingQuestions)
	}

	r.GameStarted = true
	r.Phase = PhaseQuestion
	r.CurrentQuestionIndex = 0
	r.resetRound()
	return nil
}

// StartPhase handles the host's manual transitions: 1→2 opens guessing and
// 2→3 closes it early.
func (r *Room) StartPhase(caller string, p Phase, now time.Time) error {
	if err := r.requireType(GameGuessing); err != nil {
		return err
	}
	if err := r.requireHost(caller); err != nil {
		return err
	}

	switch p {
	case PhaseGuessing:
		if err := r.requirePhase(PhaseQuestion, "start_phase(2)"); err != nil {
			return err
		}
		started := now
		r.RoundStartedAt = &started
		clear(r.Answers)
		r.Phase = PhaseGuessing
	case PhaseAwaitingAnswer:
		if err := r.requirePhase(PhaseGuessing, "start_phase(3)"); err != nil {
			return err
		}
		r.Phase = PhaseAwaitingAnswer
	default:
		return fmt.Errorf("%w: phase %d cannot be started manually", ErrInvalidPhase, p)
	}
	return nil
}

// SubmitGuess records a guess for name. It reports whether every player has
// now answered, in which case the room has moved on to phase 3.
func (r *Room) SubmitGuess(caller, name string, guess float64) (advanced bool, err error) {
	if err := r.requireType(GameGuessing); err != nil {
		return false, err
	}
	if err := r.requirePhase(PhaseGuessing, "submit_guess"); err != nil {
		return false, err
	}

	i := r.playerIndex(name)
	if i < 0 {
		return false, fmt.Errorf("%w: unknown player %q", ErrValidation, name)
	}
	if owner := r.Players[i].SessionID; owner != "" && owner != caller {
		return false, ErrForbidden
	}
	if _, ok := r.Answers[name]; ok {
		return false, ErrDuplicateAnswer
	}

	if r.Answers == nil {
		r.Answers = make(map[string]float64)
	}
	r.Answers[name] = guess

	if r.allAnswered() {
		r.Phase = PhaseAwaitingAnswer
		return true, nil
	}
	return false, nil
}

func (r *Room) allAnswered() bool {
	for _, p := range r.Players {
		if _, ok := r.Answers[p.Name]; !ok {
			return false
		}
	}
	return true
}

// SetAnswer records the correct answer and adds each player's points for the
// current question to their score.
func (r *Room) SetAnswer(caller string, correct float64) error {
	if err := r.requireType(GameGuessing); err != nil {
		return err
	}
	if err := r.requireHost(caller); err != nil {
		return err
	}
	if err := r.requirePhase(PhaseAwaitingAnswer, "set_answer"); err != nil {
		return err
	}

	q := r.Questions[r.CurrentQuestionIndex]
	answer := correct
	r.CorrectAnswer = &answer
	r.RoundScores = make(map[string]int, len(r.Answers))

	for i := range r.Players {
		guess, ok := r.Answers[r.Players[i].Name]
		if !ok {
			continue
		}
		delta := Score(correct, guess, q.RangeMin, q.RangeMax)
		r.Players[i].Score += delta
		r.RoundScores[r.Players[i].Name] = delta
	}

	r.Phase = PhaseResults
	return nil
}

// NextQuestion advances to the next question, or ends the game after the
// last one. Game over is terminal: calling it again leaves the room at 5.
func (r *Room) NextQuestion(caller string) error {
	if err := r.requireType(GameGuessing); err != nil {
		return err
	}
	if err := r.requireHost(caller); err != nil {
		return err
	}
	if r.Phase != PhaseResults && r.Phase != PhaseGameOver {
		return fmt.Errorf("%w: next_question needs phase %d, room is in phase %d", ErrInvalidPhase, PhaseResults, r.Phase)
	}
	if r.Phase == PhaseGameOver {
		return nil
	}

	if r.CurrentQuestionIndex+1 < len(r.Questions) {
		r.CurrentQuestionIndex++
		r.Phase = PhaseQuestion
		r.resetRound()
		return nil
	}

	r.Phase = PhaseGameOver
	return nil
}

// CloseGuessing ends phase 2 when its time is up. It only applies to the
// round identified by index and startedAt.
func (r *Room) CloseGuessing(index int, startedAt time.Time) bool {
	if r.GameType != GameGuessing || r.Phase != PhaseGuessing {
		return false
	}
	if r.CurrentQuestionIndex != index || r.RoundStartedAt == nil || !r.RoundStartedAt.Equal(startedAt) {
		return false
	}

	r.Phase = PhaseAwaitingAnswer
	return true
}

func (r *Room) resetRound() {
	if r.Answers == nil {
		r.Answers = make(map[string]float64)
	}
	clear(r.Answers)
	r.RoundScores = nil
	r.CorrectAnswer = nil
	r.RoundStartedAt = nil
}
