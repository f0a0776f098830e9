package ctxengine

import "github.com/flemzord/brandai/internal/provider"

// TokenEstimator estimates the token count of a string.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0 (English approximation).
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Always round up to avoid underestimation.
	return int(float64(len(text))/e.CharsPerToken) + 1
}

// EstimateMessages returns the total estimated tokens for a chat transcript.
func EstimateMessages(estimator TokenEstimator, messages []provider.Message) int {
	total := 0
	for _, m := range messages {
		// Per-message overhead: role tokens + formatting (~4 tokens).
		total += 4 + estimator.Estimate(m.Content)
	}
	return total
}
