package games

import "math"

const (
	maxPoints   = 1000
	scoreSigma  = 0.2
	minDistance = 1.0
)

// Score awards up to 1000 points on a Gaussian falloff around the correct
// answer, with distance measured as a fraction of the question's range.
func Score(correct, guess, rangeMin, rangeMax float64) int {
	maxDistance := math.Max(minDistance, rangeMax-rangeMin)
	normalized := math.Abs(correct-guess) / maxDistance
	points := maxPoints * math.Exp(-(normalized*normalized)/(2*scoreSigma*scoreSigma))

	return max(0, int(math.Round(points)))
}
