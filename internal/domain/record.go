package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is a single input row keyed by its source column name. Column
// sets vary between datasets; the ingest package resolves them onto
// NormalizedRecord.
type RawRecord map[string]string

// NormalizedRecord is the canonical transaction row used by every detector.
type NormalizedRecord struct {
	TransactionID    string
	SenderID         string
	ReceiverID       string
	Amount           decimal.Decimal
	Timestamp        time.Time
	SecondsSincePrev float64
	HighRiskMerchant bool
	BankLocation     string
	PaymentType      string
	MerchantLat      float64
	MerchantLong     float64
}

// Diagnostic records an item skipped during a best-effort stage.
type Diagnostic struct {
	Stage  string `json:"stage"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// Diagnostic stages.
const (
	StageNormalize = "normalize"
	StageGraph     = "graph"
	StageFanOut    = "fan_out"
)
