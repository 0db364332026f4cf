package detection

import (
	"math"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// Aggregate attaches the behavioural profile to every community result.
// The enhanced score adds the largest case score (0-100) to the behavioural
// score and caps the sum at 1.0, so any community with a case saturates.
func Aggregate(results []domain.CommunityResult, behavior domain.BehavioralProfile) []domain.EnhancedResult {
	out := make([]domain.EnhancedResult, 0, len(results))
	for _, r := range results {
		out = append(out, domain.EnhancedResult{
			CommunityResult: r,
			Behavior:        behavior,
			EnhancedScore:   math.Min(1.0, float64(r.MaxSuspicionScore())+behavior.Score),
		})
	}
	return out
}
