package service

import (
	"time"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/risk"
)

// Evaluation is the outcome of scoring one candidate transaction against
// the published dataset.
type Evaluation struct {
	Candidate        domain.NormalizedRecord  `json:"-"`
	Results          []domain.EnhancedResult  `json:"analysis"`
	Behavior         domain.BehavioralProfile `json:"behavior"`
	TransactionCount int                      `json:"transaction_count"`
	Threshold        float64                  `json:"threshold"`
	Flagged          bool                     `json:"flagged"`
}

// Detection is the outcome of a full detection run over the base dataset.
type Detection struct {
	Results                []domain.CommunityResult `json:"analysis"`
	SynthesizedCommunities bool                     `json:"synthesized_communities"`
	Diagnostics            []domain.Diagnostic      `json:"diagnostics,omitempty"`
	Timestamp              time.Time                `json:"timestamp"`
}

// FraudSection reports the classifier verdict after rule adjustments.
type FraudSection struct {
	System string `json:"system"`
	risk.Assessment
	Error string `json:"error,omitempty"`
}

// SmurfingSection reports laundering detection for the analysed transaction.
type SmurfingSection struct {
	System           string                  `json:"system"`
	Threshold        float64                 `json:"threshold"`
	Results          []domain.EnhancedResult `json:"analysis,omitempty"`
	TransactionCount int                     `json:"transaction_count"`
	Flagged          bool                    `json:"flagged"`
	Error            string                  `json:"error,omitempty"`
}

// Analysis combines fraud scoring and laundering detection for one
// transaction. Each section fails independently.
type Analysis struct {
	Timestamp time.Time        `json:"timestamp"`
	Fraud     *FraudSection    `json:"fraud_detection"`
	Smurfing  *SmurfingSection `json:"smurfing_detection"`
}

// Prediction is the bare classifier output for one transaction.
type Prediction struct {
	TransactionID string        `json:"Transaction_ID"`
	RiskScore     float64       `json:"risk_score"`
	Category      string        `json:"category"`
	Features      risk.Features `json:"features"`
}

// Section system names.
const (
	SystemClassifier = "ml_fraud_detection"
	SystemRulesOnly  = "rule_based_fraud_detection"
	SystemSmurfing   = "smurfing_detection"
)
