package detection

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// Band is an inclusive amount range commonly used to stay under reporting
// thresholds.
type Band struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

func (b Band) contains(v decimal.Decimal) bool {
	return !v.LessThan(b.Low) && !v.GreaterThan(b.High)
}

func (b Band) label() string {
	return b.Low.String() + "-" + b.High.String()
}

// StructuringBands are the amount ranges checked by the behavioural scorer.
var StructuringBands = []Band{
	{Low: decimal.NewFromInt(900), High: decimal.NewFromInt(1000)},
	{Low: decimal.NewFromInt(4500), High: decimal.NewFromInt(5000)},
	{Low: decimal.NewFromInt(9000), High: decimal.NewFromInt(10000)},
}

const (
	historyWindow      = 30 * 24 * time.Hour
	burstWindow        = time.Hour
	burstMinimum       = 3
	lateNightLastHour  = 5
	concentrationShare = 0.7

	bandWeight          = 0.25
	lateNightWeight     = 0.2
	burstWeightPerTx    = 0.1
	concentrationWeight = 0.2
	highRiskWeight      = 0.3
)

// BehaviorScorer evaluates one candidate against its sender's recent history.
type BehaviorScorer struct {
	isHighRisk func(string) bool
}

// NewBehaviorScorer returns a scorer using isHighRisk to classify receivers.
// A nil matcher never flags a receiver as high risk.
func NewBehaviorScorer(isHighRisk func(string) bool) *BehaviorScorer {
	if isHighRisk == nil {
		isHighRisk = func(string) bool { return false }
	}
	return &BehaviorScorer{isHighRisk: isHighRisk}
}

// Score builds the profile for candidate from the base records. Senders
// without any base records get an empty profile. The score is not capped.
func (s *BehaviorScorer) Score(candidate domain.NormalizedRecord, base []domain.NormalizedRecord) domain.BehavioralProfile {
	profile := domain.NewBehavioralProfile()
	if !hasSent(candidate.SenderID, base) {
		return profile
	}

	history := senderHistory(candidate, base)

	for _, band := range StructuringBands {
		if !band.contains(candidate.Amount) {
			continue
		}
		stats := domain.BandStats{Total: decimal.Zero}
		for _, rec := range history {
			if band.contains(rec.Amount) {
				stats.Count++
				stats.Total = stats.Total.Add(rec.Amount)
			}
		}
		if stats.Count > 0 {
			profile.AmountFlags = append(profile.AmountFlags, "amount_"+band.label())
			profile.AmountAnalysis["range_"+band.label()] = stats
			profile.Score += bandWeight
		}
	}

	if candidate.Timestamp.Hour() <= lateNightLastHour {
		profile.TemporalFlags = append(profile.TemporalFlags, "late_night")
		profile.Score += lateNightWeight
	}

	burstStart := candidate.Timestamp.Add(-burstWindow)
	recent := 0
	for _, rec := range history {
		if !rec.Timestamp.Before(burstStart) {
			recent++
		}
	}
	if recent >= burstMinimum {
		profile.TemporalFlags = append(profile.TemporalFlags, fmt.Sprintf("rapid_%d", recent))
		profile.TemporalAnalysis.LastHour = recent
		profile.Score += burstWeightPerTx * float64(recent)
	}

	if top, share := topReceiver(history); top != "" {
		if share > concentrationShare {
			profile.MerchantFlags = append(profile.MerchantFlags, "concentrated_"+top)
			profile.Score += concentrationWeight
		}
		if s.isHighRisk(top) {
			profile.MerchantFlags = append(profile.MerchantFlags, "high_risk_merchant")
			profile.Score += highRiskWeight
		}
	}

	return profile
}

func hasSent(sender string, base []domain.NormalizedRecord) bool {
	if sender == "" {
		return false
	}
	for _, rec := range base {
		if rec.SenderID == sender {
			return true
		}
	}
	return false
}

// senderHistory returns the sender's records in [ts-30d, ts).
func senderHistory(candidate domain.NormalizedRecord, base []domain.NormalizedRecord) []domain.NormalizedRecord {
	start := candidate.Timestamp.Add(-historyWindow)
	var out []domain.NormalizedRecord
	for _, rec := range base {
		if rec.SenderID != candidate.SenderID {
			continue
		}
		if rec.Timestamp.Before(start) || !rec.Timestamp.Before(candidate.Timestamp) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// topReceiver returns the most frequent receiver in history and its share.
// Ties go to the receiver seen first.
func topReceiver(history []domain.NormalizedRecord) (string, float64) {
	if len(history) == 0 {
		return "", 0
	}
	counts := make(map[string]int)
	var order []string
	for _, rec := range history {
		if _, ok := counts[rec.ReceiverID]; !ok {
			order = append(order, rec.ReceiverID)
		}
		counts[rec.ReceiverID]++
	}
	top := order[0]
	for _, r := range order[1:] {
		if counts[r] > counts[top] {
			top = r
		}
	}
	return top, float64(counts[top]) / float64(len(history))
}
