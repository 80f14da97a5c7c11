package games

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_ExactGuessIsMax(t *testing.T) {
	cases := []struct {
		correct, min, max float64
	}{
		{6, 0, 10},
		{0, 0, 1},
		{-40, -100, 100},
		{1969, 1900, 2025},
	}

	for _, c := range cases {
		assert.Equal(t, 1000, Score(c.correct, c.correct, c.min, c.max))
	}
}

func TestScore_KnownValues(t *testing.T) {
	tests := []struct {
		name                     string
		correct, guess, min, max float64
		want                     int
	}{
		{"a tenth of the range", 6, 5, 0, 10, 882},
		{"a tenth the other way", 6, 7, 0, 10, 882},
		{"28 percent is under half", 50, 78, 0, 100, 375},
		{"one sigma", 0, 20, 0, 100, 607},
		{"whole range away", 0, 100, 0, 100, 0},
		{"far outside the range", 0, 1e9, 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.correct, tt.guess, tt.min, tt.max))
		})
	}
}

func TestScore_MatchesFormula(t *testing.T) {
	correct, min, max := 42.0, 10.0, 90.0
	for guess := 0.0; guess <= 100; guess += 3.5 {
		n := math.Abs(correct-guess) / (max - min)
		want := int(math.Round(1000 * math.Exp(-(n*n)/(2*0.2*0.2))))
		assert.Equal(t, want, Score(correct, guess, min, max), "guess %v", guess)
	}
}

func TestScore_MonotonicInDistance(t *testing.T) {
	correct := 500.0
	prev := Score(correct, correct, 0, 1000)
	for d := 1.0; d <= 1000; d += 7 {
		above := Score(correct, correct+d, 0, 1000)
		below := Score(correct, correct-d, 0, 1000)

		assert.LessOrEqual(t, above, prev)
		assert.Equal(t, above, below)
		prev = above
	}
}

func TestScore_ZeroWidthRange(t *testing.T) {
	assert.Equal(t, 1000, Score(5, 5, 5, 5))
	assert.Equal(t, 0, Score(5, 6, 5, 5))
	assert.Equal(t, 882, Score(5, 5.1, 5, 5))

	// inverted ranges floor the same way
	assert.Equal(t, 1000, Score(5, 5, 10, 0))
}
