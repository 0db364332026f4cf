package detection

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// DetectFanIn groups records by receiver and reports every receiver that
// collected several sub-threshold payments from distinct senders inside
// the time window.
func DetectFanIn(records []domain.NormalizedRecord, p FanInParams) []domain.DetectionCase {
	groups := make(map[string][]domain.NormalizedRecord)
	for _, rec := range records {
		if rec.ReceiverID == "" {
			continue
		}
		groups[rec.ReceiverID] = append(groups[rec.ReceiverID], rec)
	}

	receivers := make([]string, 0, len(groups))
	for r := range groups {
		receivers = append(receivers, r)
	}
	sort.Strings(receivers)

	var cases []domain.DetectionCase
	for _, receiver := range receivers {
		if c, ok := evaluateFanIn(receiver, groups[receiver], p); ok {
			cases = append(cases, c)
		}
	}
	return cases
}

func evaluateFanIn(receiver string, group []domain.NormalizedRecord, p FanInParams) (domain.DetectionCase, bool) {
	if len(group) < p.MinTransactions {
		return domain.DetectionCase{}, false
	}

	total := decimal.Zero
	first, last := group[0].Timestamp, group[0].Timestamp
	var senders []string
	seen := make(map[string]struct{})

	for _, rec := range group {
		if !rec.Amount.LessThan(p.MaxAmount) {
			return domain.DetectionCase{}, false
		}
		total = total.Add(rec.Amount)
		if rec.Timestamp.Before(first) {
			first = rec.Timestamp
		}
		if rec.Timestamp.After(last) {
			last = rec.Timestamp
		}
		if _, ok := seen[rec.SenderID]; !ok {
			seen[rec.SenderID] = struct{}{}
			senders = append(senders, rec.SenderID)
		}
	}

	window := last.Sub(first).Hours()
	if window >= p.MaxTimeWindowHours || len(senders) < p.MinSenders {
		return domain.DetectionCase{}, false
	}

	return domain.DetectionCase{
		Pattern:          domain.PatternFanIn,
		Principal:        receiver,
		Counterparties:   senders,
		TransactionCount: len(group),
		TotalAmount:      total,
		AverageAmount:    total.Div(decimal.NewFromInt(int64(len(group)))).RoundBank(2),
		TimeWindowHours:  round2(window),
		FirstTransaction: first.Truncate(time.Minute),
		LastTransaction:  last.Truncate(time.Minute),
		SuspicionScore:   boundedScore(total, p.MaxAmount, hundred),
	}, true
}
