package detection

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

func highRisk(id string) bool {
	return strings.Contains(strings.ToLower(id), "crypto")
}

func TestScoreBehaviorStructuringBand(t *testing.T) {
	history := []domain.NormalizedRecord{
		record("C1", "M1", "980", -48*time.Hour),
		record("C1", "M2", "120", -72*time.Hour),
	}
	candidate := record("C1", "M3", "950", 0)

	profile := NewBehaviorScorer(highRisk).Score(candidate, history)

	assert.Contains(t, profile.AmountFlags, "amount_900-1000")
	assert.GreaterOrEqual(t, profile.Score, 0.25)
	stats, ok := profile.AmountAnalysis["range_900-1000"]
	require.True(t, ok)
	assert.Equal(t, 1, stats.Count)
	assert.True(t, stats.Total.Equal(decimal.NewFromInt(980)))
}

func TestScoreBehaviorUnknownSender(t *testing.T) {
	history := []domain.NormalizedRecord{record("C1", "M1", "980", -time.Hour)}
	candidate := record("C9", "M1", "950", -10*time.Hour)

	profile := NewBehaviorScorer(highRisk).Score(candidate, history)

	assert.Zero(t, profile.Score)
	assert.Empty(t, profile.AmountFlags)
	assert.Empty(t, profile.TemporalFlags)
	assert.Empty(t, profile.MerchantFlags)
}

func TestScoreBehaviorIgnoresOutOfWindowHistory(t *testing.T) {
	history := []domain.NormalizedRecord{
		record("C1", "M1", "980", -31*24*time.Hour),
		record("C1", "M2", "990", time.Hour),
		record("C1", "M3", "10", -40*24*time.Hour),
	}
	candidate := record("C1", "M9", "950", 0)

	profile := NewBehaviorScorer(highRisk).Score(candidate, history)

	assert.Empty(t, profile.AmountFlags)
	assert.Empty(t, profile.MerchantFlags)
	assert.Zero(t, profile.Score)
}

func TestScoreBehaviorLateNight(t *testing.T) {
	history := []domain.NormalizedRecord{record("C1", "M1", "10", -24*time.Hour)}
	candidate := domain.NormalizedRecord{
		SenderID:  "C1",
		Amount:    decimal.NewFromInt(20),
		Timestamp: time.Date(2024, 3, 10, 5, 59, 0, 0, time.UTC),
	}

	profile := NewBehaviorScorer(highRisk).Score(candidate, history)

	assert.Contains(t, profile.TemporalFlags, "late_night")
}

func TestScoreBehaviorRapidBurstAndConcentration(t *testing.T) {
	history := []domain.NormalizedRecord{
		record("C1", "crypto_hub", "10", -50*time.Minute),
		record("C1", "crypto_hub", "10", -30*time.Minute),
		record("C1", "crypto_hub", "10", -10*time.Minute),
		record("C1", "crypto_hub", "10", -60*time.Minute),
	}
	candidate := record("C1", "crypto_hub", "10", 0)

	profile := NewBehaviorScorer(highRisk).Score(candidate, history)

	assert.Equal(t, []string{"rapid_4"}, profile.TemporalFlags)
	assert.Equal(t, 4, profile.TemporalAnalysis.LastHour)
	assert.Equal(t, []string{"concentrated_crypto_hub", "high_risk_merchant"}, profile.MerchantFlags)
	assert.InDelta(t, 0.4+0.2+0.3, profile.Score, 1e-9)
}

func TestScoreBehaviorHighRiskWithoutConcentration(t *testing.T) {
	history := []domain.NormalizedRecord{
		record("C1", "crypto_hub", "10", -72*time.Hour),
		record("C1", "grocer", "10", -48*time.Hour),
	}
	candidate := record("C1", "grocer", "10", 0)

	profile := NewBehaviorScorer(highRisk).Score(candidate, history)

	assert.Equal(t, []string{"high_risk_merchant"}, profile.MerchantFlags)
	assert.InDelta(t, 0.3, profile.Score, 1e-9)
}

func TestAggregateSaturatesWithCases(t *testing.T) {
	results := []domain.CommunityResult{
		{CommunityID: "1", FanInCases: []domain.DetectionCase{{SuspicionScore: 31}}},
		{CommunityID: "2"},
	}
	profile := domain.NewBehavioralProfile()
	profile.Score = 0.45

	enhanced := Aggregate(results, profile)

	require.Len(t, enhanced, 2)
	assert.Equal(t, 1.0, enhanced[0].EnhancedScore)
	assert.InDelta(t, 0.45, enhanced[1].EnhancedScore, 1e-9)
	assert.Equal(t, "2", enhanced[1].CommunityID)
}
