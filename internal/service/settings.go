package service

import (
	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/config"
	"github.com/vanshika/fintrace/amlwatch/internal/detection"
	"github.com/vanshika/fintrace/amlwatch/internal/risk"
)

// DetectionOptions converts configured thresholds into detector options.
func DetectionOptions(cfg config.DetectionConfig) detection.Options {
	return detection.Options{
		FanIn: detection.FanInParams{
			MinTransactions:    cfg.FanIn.MinTransactions,
			MaxAmount:          decimal.NewFromFloat(cfg.FanIn.MaxAmount),
			MaxTimeWindowHours: cfg.FanIn.MaxTimeWindowHours,
			MinSenders:         cfg.FanIn.MinSenders,
		},
		FanOut: detection.FanOutParams{
			MinSplit:           cfg.FanOut.MinSplit,
			MaxTimeWindowHours: cfg.FanOut.MaxTimeWindowHours,
			AmountVariation:    decimal.NewFromFloat(cfg.FanOut.AmountVariation),
			MinTotalAmount:     decimal.NewFromFloat(cfg.FanOut.MinTotalAmount),
		},
		Workers: cfg.Workers,
	}
}

// RuleConfig converts configured risk thresholds into rule settings.
func RuleConfig(cfg config.RiskConfig) risk.RuleConfig {
	return risk.RuleConfig{
		FraudThreshold:        cfg.FraudThreshold,
		SmurfingThreshold:     cfg.SmurfingThreshold,
		GeoDistanceAlertMiles: cfg.GeoDistanceAlertMiles,
		HighAmountThreshold:   decimal.NewFromFloat(cfg.HighAmountThreshold),
		NightStartHour:        cfg.NightStartHour,
		NightEndHour:          cfg.NightEndHour,
		MerchantKeywords:      cfg.MerchantKeywords,
	}
}
