package games

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// AddChallenge appends c to the deck. Challenges added after the start are
// appended too; they are never shuffled into the remaining deck.
func (r *Room) AddChallenge(c Challenge) error {
	if err := r.requireType(GameChallenges); err != nil {
		return err
	}
	if c.ID == "" || c.Text == "" {
		return fmt.Errorf("%w: challenge needs an id and text", ErrValidation)
	}

	r.Challenges = append(r.Challenges, c)
	return nil
}

// StartDeck marks the deck started and returns a shuffled copy for display.
// The stored order is left as it is.
func (r *Room) StartDeck() ([]Challenge, error) {
	if err := r.requireType(GameChallenges); err != nil {
		return nil, err
	}
	if len(r.Challenges) < 1 {
		return nil, fmt.Errorf("%w: add at least one challenge before starting", ErrValidation)
	}

	r.GameStarted = true
	return shuffled(r.Challenges), nil
}

// shuffled is a Fisher-Yates shuffle over a copy of in.
func shuffled[T any](in []T) []T {
	out := slices.Clone(in)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
