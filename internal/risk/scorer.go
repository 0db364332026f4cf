package risk

import (
	"context"
	"errors"
)

// ErrScorerUnavailable is returned when no classifier is configured.
var ErrScorerUnavailable = errors.New("fraud classifier not available")

// Scorer is the supervised classifier. It returns a fraud probability in
// [0,1]; how it was trained is outside this module.
type Scorer interface {
	Score(ctx context.Context, f Features) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, f Features) (float64, error)

func (fn ScorerFunc) Score(ctx context.Context, f Features) (float64, error) {
	return fn(ctx, f)
}

// Category buckets a probability for display.
func Category(p float64) string {
	switch {
	case p >= 0.7:
		return "High Risk"
	case p >= 0.3:
		return "Suspicious"
	default:
		return "Legitimate"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
