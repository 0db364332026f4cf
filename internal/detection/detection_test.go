package detection

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/snapshot"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func record(sender, receiver, amount string, offset time.Duration) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		SenderID:   sender,
		ReceiverID: receiver,
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  base.Add(offset),
	}
}

func TestDetectFanInQualifyingGroup(t *testing.T) {
	records := []domain.NormalizedRecord{
		record("S1", "M1", "1000", 0),
		record("S2", "M1", "1200", time.Hour),
		record("S3", "M1", "900", 2*time.Hour),
	}

	cases := DetectFanIn(records, DefaultFanInParams())

	require.Len(t, cases, 1)
	c := cases[0]
	assert.Equal(t, domain.PatternFanIn, c.Pattern)
	assert.Equal(t, "M1", c.Principal)
	assert.Equal(t, []string{"S1", "S2", "S3"}, c.Counterparties)
	assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(3100)))
	assert.Equal(t, "1033.33", c.AverageAmount.StringFixed(2))
	assert.Equal(t, 31, c.SuspicionScore)
	assert.Equal(t, 2.0, c.TimeWindowHours)
	assert.Equal(t, base, c.FirstTransaction)
	assert.Equal(t, base.Add(2*time.Hour), c.LastTransaction)
}

func TestDetectFanInRejectsWideWindow(t *testing.T) {
	records := []domain.NormalizedRecord{
		record("S1", "M1", "1000", 0),
		record("S2", "M1", "1200", 10*time.Hour),
		record("S3", "M1", "900", 30*time.Hour),
	}

	assert.Empty(t, DetectFanIn(records, DefaultFanInParams()))
}

func TestDetectFanInThresholds(t *testing.T) {
	tests := []struct {
		name    string
		records []domain.NormalizedRecord
	}{
		{
			name: "too few transactions",
			records: []domain.NormalizedRecord{
				record("S1", "M1", "100", 0),
				record("S2", "M1", "100", time.Minute),
			},
		},
		{
			name: "amount at the ceiling",
			records: []domain.NormalizedRecord{
				record("S1", "M1", "100", 0),
				record("S2", "M1", "10000", time.Minute),
				record("S3", "M1", "100", 2*time.Minute),
			},
		},
		{
			name: "single sender",
			records: []domain.NormalizedRecord{
				record("S1", "M1", "100", 0),
				record("S1", "M1", "100", time.Minute),
				record("S1", "M1", "100", 2*time.Minute),
			},
		},
		{
			name: "window equal to limit",
			records: []domain.NormalizedRecord{
				record("S1", "M1", "100", 0),
				record("S2", "M1", "100", time.Hour),
				record("S3", "M1", "100", 24*time.Hour),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, DetectFanIn(tt.records, DefaultFanInParams()))
		})
	}
}

func TestDetectFanInScoreIsCapped(t *testing.T) {
	records := []domain.NormalizedRecord{
		record("S1", "M1", "9999", 0),
		record("S2", "M1", "9999", time.Minute),
		record("S3", "M1", "9999", 2*time.Minute),
	}

	cases := DetectFanIn(records, DefaultFanInParams())

	require.Len(t, cases, 1)
	assert.Equal(t, 100, cases[0].SuspicionScore)
}

func TestDetectFanOutQualifyingSender(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{
		record("A", "M1", "3000", 0),
		record("A", "M2", "3200", 2*time.Hour),
		record("A", "M3", "3100", 5*time.Hour),
	})

	cases, diags := DetectFanOut(snap.Graph(), []string{"A"}, DefaultFanOutParams())

	require.Empty(t, diags)
	require.Len(t, cases, 1)
	c := cases[0]
	assert.Equal(t, domain.PatternFanOut, c.Pattern)
	assert.Equal(t, "A", c.Principal)
	assert.Equal(t, []string{"M1", "M2", "M3"}, c.Counterparties)
	assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(9300)))
	assert.Equal(t, "3000.00-3200.00", c.AmountRange)
	assert.Equal(t, 62, c.SuspicionScore)
	assert.Equal(t, 5.0, c.TimeWindowHours)
}

func TestDetectFanOutRatioBoundary(t *testing.T) {
	tests := []struct {
		name    string
		high    string
		low     string
		matches bool
	}{
		{name: "ratio equal to variation", high: "3000", low: "1000", matches: false},
		{name: "ratio just under variation", high: "2999.99", low: "1000", matches: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshot.FromRecords([]domain.NormalizedRecord{
				record("A", "M1", tt.high, 0),
				record("A", "M2", tt.low, time.Hour),
			})

			cases, _ := DetectFanOut(snap.Graph(), []string{"A"}, DefaultFanOutParams())

			if tt.matches {
				assert.Len(t, cases, 1)
			} else {
				assert.Empty(t, cases)
			}
		})
	}
}

func TestDetectFanOutSkipsBadMembers(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{
		record("Z", "M1", "0", 0),
		record("Z", "M2", "5000", time.Hour),
		record("A", "M1", "3000", 0),
		record("A", "M2", "3200", time.Hour),
	})

	cases, diags := DetectFanOut(snap.Graph(), []string{"ghost", "Z", "A"}, DefaultFanOutParams())

	require.Len(t, cases, 1)
	assert.Equal(t, "A", cases[0].Principal)
	require.Len(t, diags, 2)
	assert.Equal(t, "ghost", diags[0].Item)
	assert.Equal(t, "not in graph", diags[0].Reason)
	assert.Equal(t, "Z", diags[1].Item)
	assert.Equal(t, "zero minimum amount", diags[1].Reason)
}

func TestDetectFanOutCapsHugeTotals(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{
		record("A", "M1", "1000000000000000000000000", 0),
		record("A", "M2", "1000000000000000000000000", time.Hour),
	})

	cases, diags := DetectFanOut(snap.Graph(), []string{"A"}, DefaultFanOutParams())

	require.Empty(t, diags)
	require.Len(t, cases, 1)
	assert.Equal(t, 100, cases[0].SuspicionScore)
}

func TestDetectFanOutOverCandidateView(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{
		record("A", "M1", "3000", 0),
		record("A", "M2", "3200", time.Hour),
	})
	view := snap.WithCandidate(record("A", "M9", "3100", 2*time.Hour)).Graph()

	cases, diags := DetectFanOut(view, []string{"A", "M9"}, DefaultFanOutParams())

	assert.Empty(t, diags)
	require.Len(t, cases, 1)
	assert.Equal(t, []string{"M1", "M2", "M9"}, cases[0].Counterparties)
}

func TestBoundedScore(t *testing.T) {
	tests := []struct {
		name    string
		total   string
		divisor string
		scale   decimal.Decimal
		want    int
	}{
		{name: "within range", total: "9300", divisor: "3000", scale: twenty, want: 62},
		{name: "exactly one hundred", total: "5", divisor: "1", scale: twenty, want: 100},
		{name: "beyond int64", total: "1e30", divisor: "1", scale: hundred, want: 100},
		{name: "negative", total: "-5", divisor: "1", scale: twenty, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := boundedScore(decimal.RequireFromString(tt.total), decimal.RequireFromString(tt.divisor), tt.scale)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFanOutRequiresTotalAboveMinimum(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{
		record("A", "M1", "1500", 0),
		record("A", "M2", "1500", time.Hour),
	})

	cases, diags := DetectFanOut(snap.Graph(), []string{"A"}, DefaultFanOutParams())

	assert.Empty(t, cases)
	assert.Empty(t, diags)
}

func TestDetectAllRestrictsToCommunities(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{
		record("S1", "M1", "1000", 0),
		record("S2", "M1", "1200", time.Hour),
		record("S3", "M1", "900", 2*time.Hour),
		record("A", "M7", "3000", 0),
		record("A", "M8", "3200", 2*time.Hour),
	})
	communities := community.Map{
		"10": {ID: "10", Members: []string{"A"}},
		"2":  {ID: "2", Members: []string{"M1"}},
	}

	results, err := DetectAll(context.Background(), snap, communities, DefaultOptions())

	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "2", results[0].CommunityID)
	assert.Len(t, results[0].FanInCases, 1)
	assert.Empty(t, results[0].FanOutCases)
	assert.Equal(t, 3, results[0].RecordCount)
	assert.Equal(t, 1, results[0].MemberCount)

	assert.Equal(t, "10", results[1].CommunityID)
	assert.Empty(t, results[1].FanInCases)
	assert.Len(t, results[1].FanOutCases, 1)
	assert.Equal(t, 2, results[1].RecordCount)
}

func TestDetectAllIsDeterministic(t *testing.T) {
	records := []domain.NormalizedRecord{
		record("S1", "M1", "1000", 0),
		record("S2", "M1", "1200", time.Hour),
		record("S3", "M1", "900", 2*time.Hour),
		record("A", "M1", "3000", 0),
		record("A", "M2", "3200", 2*time.Hour),
	}
	snap := snapshot.FromRecords(records)
	communities := community.Synthesize(snap.Records())
	opts := DefaultOptions()
	opts.Workers = 2

	first, err := DetectAll(context.Background(), snap, communities, opts)
	require.NoError(t, err)
	second, err := DetectAll(context.Background(), snap, communities, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, snap.Records(), len(records))
}

func TestDetectAllHonoursCancellation(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{record("A", "M1", "10", 0)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DetectAll(ctx, snap, community.Synthesize(snap.Records()), DefaultOptions())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectAllRejectsInvalidParams(t *testing.T) {
	snap := snapshot.FromRecords([]domain.NormalizedRecord{record("A", "M1", "10", 0)})
	opts := DefaultOptions()
	opts.FanIn.MaxAmount = decimal.Zero

	_, err := DetectAll(context.Background(), snap, community.Synthesize(snap.Records()), opts)

	assert.Error(t, err)
}
