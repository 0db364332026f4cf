package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

// Source column aliases, in resolution order. The first non-empty value wins.
var (
	SenderColumns        = []string{"cc_num", "cardNum", "Sender_account", "sender"}
	ReceiverColumns      = []string{"merchant", "Receiver_account", "receiver"}
	AmountColumns        = []string{"amt", "amount", "Amount"}
	TransactionIDColumns = []string{"trans_num", "transactionId", "Transaction_ID"}
	TimestampColumns     = []string{"trans_date_trans_time", "DateTime", "timestamp", "unix_time"}
	BankLocationColumns  = []string{"state", "Sender_bank_location"}
	PaymentTypeColumns   = []string{"category", "Payment_type"}
	MerchantLatColumns   = []string{"merch_lat"}
	MerchantLongColumns  = []string{"merch_long"}
)

const unknownValue = "unknown"

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	time.DateOnly,
}

// lookup returns the first non-empty value among the candidate columns.
func lookup(row domain.RawRecord, columns []string) (string, bool) {
	for _, col := range columns {
		if v := strings.TrimSpace(row[col]); v != "" {
			return v, true
		}
	}
	return "", false
}

func lookupOr(row domain.RawRecord, columns []string, fallback string) string {
	if v, ok := lookup(row, columns); ok {
		return v
	}
	return fallback
}

func lookupFloat(row domain.RawRecord, columns []string) float64 {
	v, ok := lookup(row, columns)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseAmount coerces a raw amount into a decimal.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	value = strings.TrimPrefix(value, "$")
	return decimal.NewFromString(value)
}

// ParseTimestamp accepts the layouts seen in card-transaction exports and
// epoch seconds. Times without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		whole := int64(secs)
		nanos := int64((secs - float64(whole)) * float64(time.Second))
		return time.Unix(whole, nanos).UTC(), true
	}
	return time.Time{}, false
}
