package detection

import (
	"errors"

	"github.com/shopspring/decimal"
)

// FanInParams tune the classic smurfing detector.
type FanInParams struct {
	MinTransactions    int
	MaxAmount          decimal.Decimal
	MaxTimeWindowHours float64
	MinSenders         int
}

// DefaultFanInParams returns the production thresholds.
func DefaultFanInParams() FanInParams {
	return FanInParams{
		MinTransactions:    3,
		MaxAmount:          decimal.NewFromInt(10000),
		MaxTimeWindowHours: 24,
		MinSenders:         2,
	}
}

// Validate rejects thresholds the detector cannot divide by.
func (p FanInParams) Validate() error {
	if !p.MaxAmount.IsPositive() {
		return errors.New("fan-in max amount must be positive")
	}
	if p.MinTransactions < 1 || p.MinSenders < 1 {
		return errors.New("fan-in minimum counts must be at least 1")
	}
	return nil
}

// FanOutParams tune the structuring detector.
type FanOutParams struct {
	MinSplit           int
	MaxTimeWindowHours float64
	AmountVariation    decimal.Decimal
	MinTotalAmount     decimal.Decimal
}

// DefaultFanOutParams returns the production thresholds.
func DefaultFanOutParams() FanOutParams {
	return FanOutParams{
		MinSplit:           2,
		MaxTimeWindowHours: 12,
		AmountVariation:    decimal.NewFromInt(3),
		MinTotalAmount:     decimal.NewFromInt(3000),
	}
}

// Validate rejects thresholds the detector cannot divide by.
func (p FanOutParams) Validate() error {
	if !p.MinTotalAmount.IsPositive() {
		return errors.New("fan-out min total amount must be positive")
	}
	if !p.AmountVariation.IsPositive() {
		return errors.New("fan-out amount variation must be positive")
	}
	if p.MinSplit < 1 {
		return errors.New("fan-out min split must be at least 1")
	}
	return nil
}

var (
	hundred = decimal.NewFromInt(100)
	twenty  = decimal.NewFromInt(20)
)

// boundedScore returns min(100, round(ratio*scale)), rounding half to even.
func boundedScore(total, divisor, scale decimal.Decimal) int {
	score := total.Div(divisor).Mul(scale).RoundBank(0)
	if score.GreaterThan(hundred) {
		return 100
	}
	if score.IsNegative() {
		return 0
	}
	return int(score.IntPart())
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}
