package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PatternType names a laundering typology.
type PatternType string

const (
	// PatternFanIn is classic smurfing: many senders, one receiver.
	PatternFanIn PatternType = "Classic_Smurfing"
	// PatternFanOut is structuring: one sender split across many receivers.
	PatternFanOut PatternType = "Transaction_Splitting"
)

// DetectionCase is a single qualifying fan-in or fan-out group.
type DetectionCase struct {
	Pattern          PatternType     `json:"pattern_type"`
	Principal        string          `json:"principal"`
	Counterparties   []string        `json:"counterparties"`
	TransactionCount int             `json:"transaction_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AverageAmount    decimal.Decimal `json:"average_amount,omitempty"`
	AmountRange      string          `json:"amount_range,omitempty"`
	TimeWindowHours  float64         `json:"time_window_hours"`
	FirstTransaction time.Time       `json:"first_transaction"`
	LastTransaction  time.Time       `json:"last_transaction"`
	SuspicionScore   int             `json:"suspicion_score"`
}

// CommunityResult is the outcome of running both detectors over a community.
type CommunityResult struct {
	CommunityID string          `json:"community_id"`
	FanInCases  []DetectionCase `json:"smurfing_cases"`
	FanOutCases []DetectionCase `json:"structuring_cases"`
	MemberCount int             `json:"member_count"`
	RecordCount int             `json:"transaction_count"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
}

// MaxSuspicionScore returns the highest case score in the result, or 0.
func (r CommunityResult) MaxSuspicionScore() int {
	best := 0
	for _, c := range r.FanInCases {
		if c.SuspicionScore > best {
			best = c.SuspicionScore
		}
	}
	for _, c := range r.FanOutCases {
		if c.SuspicionScore > best {
			best = c.SuspicionScore
		}
	}
	return best
}

// BandStats summarises history amounts inside a structuring band.
type BandStats struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// TemporalAnalysis holds burst details for a behavioural profile.
type TemporalAnalysis struct {
	LastHour int `json:"last_hour,omitempty"`
}

// BehavioralProfile scores a candidate transaction against its sender's
// recent history. It is computed on demand and never stored.
type BehavioralProfile struct {
	Score            float64              `json:"behavioral_score"`
	AmountFlags      []string             `json:"amount_flags"`
	TemporalFlags    []string             `json:"temporal_flags"`
	MerchantFlags    []string             `json:"merchant_flags"`
	AmountAnalysis   map[string]BandStats `json:"amount_analysis"`
	TemporalAnalysis TemporalAnalysis     `json:"temporal_analysis"`
}

// NewBehavioralProfile returns an empty profile with non-nil collections.
func NewBehavioralProfile() BehavioralProfile {
	return BehavioralProfile{
		AmountFlags:    []string{},
		TemporalFlags:  []string{},
		MerchantFlags:  []string{},
		AmountAnalysis: map[string]BandStats{},
	}
}

// EnhancedResult joins a community result with the behavioural profile of
// the transaction that triggered the evaluation.
type EnhancedResult struct {
	CommunityResult
	Behavior      BehavioralProfile `json:"behavior"`
	EnhancedScore float64           `json:"enhanced_suspicion_score"`
}
