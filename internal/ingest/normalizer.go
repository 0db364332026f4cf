package ingest

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// DefaultHighRiskKeywords flag merchants commonly used to cash out.
var DefaultHighRiskKeywords = []string{"electronics", "jewelry", "crypto"}

// Normalizer maps heterogeneous rows onto domain.NormalizedRecord.
type Normalizer struct {
	keywords []string
	nowFn    func() time.Time
}

// NewNormalizer returns a Normalizer flagging receivers that contain any of
// the given keywords. A nil slice selects DefaultHighRiskKeywords.
func NewNormalizer(keywords []string) *Normalizer {
	if keywords == nil {
		keywords = DefaultHighRiskKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Normalizer{
		keywords: lowered,
		nowFn:    time.Now,
	}
}

// WithClock overrides the time provider used for candidates without a timestamp.
func (n *Normalizer) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		n.nowFn = nowFn
	}
}

// IsHighRisk reports whether the identifier contains a high-risk keyword.
func (n *Normalizer) IsHighRisk(identifier string) bool {
	lower := strings.ToLower(identifier)
	for _, kw := range n.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Normalize converts dataset rows into records sorted by (sender, timestamp)
// with per-sender time gaps. Rows without a sender, receiver, amount or
// parsable timestamp are dropped and reported as diagnostics.
func (n *Normalizer) Normalize(rows []domain.RawRecord) ([]domain.NormalizedRecord, []domain.Diagnostic) {
	records := make([]domain.NormalizedRecord, 0, len(rows))
	var diags []domain.Diagnostic

	for i, row := range rows {
		rec, reason := n.normalizeRow(row)
		if reason != "" {
			diags = append(diags, domain.Diagnostic{
				Stage:  domain.StageNormalize,
				Item:   "row " + strconv.Itoa(i),
				Reason: reason,
			})
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SenderID != records[j].SenderID {
			return records[i].SenderID < records[j].SenderID
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	for i := 1; i < len(records); i++ {
		if records[i].SenderID == records[i-1].SenderID {
			records[i].SecondsSincePrev = records[i].Timestamp.Sub(records[i-1].Timestamp).Seconds()
		}
	}

	return records, diags
}

func (n *Normalizer) normalizeRow(row domain.RawRecord) (domain.NormalizedRecord, string) {
	sender, ok := lookup(row, SenderColumns)
	if !ok {
		return domain.NormalizedRecord{}, "missing sender"
	}
	receiver, ok := lookup(row, ReceiverColumns)
	if !ok {
		return domain.NormalizedRecord{}, "missing receiver"
	}
	rawAmount, ok := lookup(row, AmountColumns)
	if !ok {
		return domain.NormalizedRecord{}, "missing amount"
	}
	rawTs, _ := lookup(row, TimestampColumns)
	ts, ok := ParseTimestamp(rawTs)
	if !ok {
		return domain.NormalizedRecord{}, "invalid timestamp"
	}

	rec := n.build(row, sender, receiver, ts)
	amount, err := ParseAmount(rawAmount)
	if err == nil {
		rec.Amount = amount
	}
	if rec.Amount.IsNegative() {
		return domain.NormalizedRecord{}, "negative amount"
	}
	return rec, ""
}

// NormalizeCandidate converts a single caller supplied transaction. Only the
// amount is required; sender and receiver default to empty and the
// timestamp to the current time.
func (n *Normalizer) NormalizeCandidate(row domain.RawRecord) (domain.NormalizedRecord, error) {
	rawAmount, ok := lookup(row, AmountColumns)
	if !ok {
		return domain.NormalizedRecord{}, &domain.ValidationError{Field: "amount", Message: "is required"}
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return domain.NormalizedRecord{}, &domain.ValidationError{Field: "amount", Message: "must be numeric"}
	}
	if amount.IsNegative() {
		return domain.NormalizedRecord{}, &domain.ValidationError{Field: "amount", Message: "must not be negative"}
	}

	sender, _ := lookup(row, SenderColumns)
	receiver, _ := lookup(row, ReceiverColumns)
	rawTs, _ := lookup(row, TimestampColumns)
	ts, ok := ParseTimestamp(rawTs)
	if !ok {
		ts = n.nowFn().UTC()
	}

	rec := n.build(row, sender, receiver, ts)
	rec.Amount = amount
	return rec, nil
}

func (n *Normalizer) build(row domain.RawRecord, sender, receiver string, ts time.Time) domain.NormalizedRecord {
	txID, _ := lookup(row, TransactionIDColumns)
	return domain.NormalizedRecord{
		TransactionID:    txID,
		SenderID:         sender,
		ReceiverID:       receiver,
		Timestamp:        ts,
		HighRiskMerchant: n.IsHighRisk(receiver),
		BankLocation:     lookupOr(row, BankLocationColumns, unknownValue),
		PaymentType:      lookupOr(row, PaymentTypeColumns, unknownValue),
		MerchantLat:      lookupFloat(row, MerchantLatColumns),
		MerchantLong:     lookupFloat(row, MerchantLongColumns),
	}
}
