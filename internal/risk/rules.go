package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Verdicts reported by Assess.
const (
	VerdictFraud    = "Fraud"
	VerdictNotFraud = "Not Fraud"
)

// RuleConfig holds the thresholds of the rule adjustments.
type RuleConfig struct {
	FraudThreshold        float64
	SmurfingThreshold     float64
	GeoDistanceAlertMiles float64
	HighAmountThreshold   decimal.Decimal
	NightStartHour        int
	NightEndHour          int
	MerchantKeywords      []string
}

// DefaultRuleConfig returns the production rule thresholds.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		FraudThreshold:        0.7,
		SmurfingThreshold:     0.5,
		GeoDistanceAlertMiles: 200,
		HighAmountThreshold:   decimal.NewFromInt(1000),
		NightStartHour:        0,
		NightEndHour:          6,
		MerchantKeywords:      []string{"highrisk", "fraud", "electronics"},
	}
}

// Assessment is the classifier probability after rule adjustments.
type Assessment struct {
	Result             string          `json:"result"`
	BaseConfidence     float64         `json:"base_confidence"`
	AdjustedConfidence float64         `json:"adjusted_confidence"`
	Threshold          float64         `json:"threshold"`
	Flags              []string        `json:"flags"`
	AboveThreshold     bool            `json:"is_above_threshold"`
	Amount             decimal.Decimal `json:"amount"`
	RulesApplied       int             `json:"rules_applied"`
}

// Assess raises the base probability for every rule tx triggers. Each step
// is capped at 1.0.
func (c RuleConfig) Assess(tx Transaction, base float64) Assessment {
	base = clamp01(base)
	adjusted := base
	flags := []string{}

	bump := func(flag string, delta float64) {
		flags = append(flags, flag)
		adjusted = math.Min(adjusted+delta, 1.0)
	}

	if tx.Amount.GreaterThan(c.HighAmountThreshold) {
		bump("high_amount_"+tx.Amount.String(), 0.25)
	}
	if tx.Home != nil && tx.MerchantAt != nil {
		if d := GreatCircleMiles(*tx.Home, *tx.MerchantAt); d > c.GeoDistanceAlertMiles {
			bump(fmt.Sprintf("geolocation_mismatch_%.1f_miles", d), 0.3)
		}
	}
	if h := tx.Timestamp.Hour(); h >= c.NightStartHour && h < c.NightEndHour {
		bump(fmt.Sprintf("late_night_%dh", h), 0.15)
	}
	merchant := strings.ToLower(tx.Merchant)
	for _, kw := range c.MerchantKeywords {
		if kw != "" && strings.Contains(merchant, strings.ToLower(kw)) {
			bump("high_risk_merchant", 0.2)
			break
		}
	}

	above := adjusted >= c.FraudThreshold
	result := VerdictNotFraud
	if above {
		result = VerdictFraud
	}
	return Assessment{
		Result:             result,
		BaseConfidence:     base,
		AdjustedConfidence: adjusted,
		Threshold:          c.FraudThreshold,
		Flags:              flags,
		AboveThreshold:     above,
		Amount:             tx.Amount,
		RulesApplied:       len(flags),
	}
}
