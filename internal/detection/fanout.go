package detection

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/graph"
)

// DetectFanOut inspects the graph successors of each member and reports
// senders that split a large total into similar amounts across several
// receivers in a short window. Members that cannot be evaluated are
// skipped and reported.
func DetectFanOut(view graph.View, members []string, p FanOutParams) ([]domain.DetectionCase, []domain.Diagnostic) {
	var (
		cases []domain.DetectionCase
		diags []domain.Diagnostic
	)
	for _, member := range members {
		c, ok, reason := evaluateFanOut(view, member, p)
		if reason != "" {
			diags = append(diags, domain.Diagnostic{Stage: domain.StageFanOut, Item: member, Reason: reason})
			continue
		}
		if ok {
			cases = append(cases, c)
		}
	}
	return cases, diags
}

func evaluateFanOut(view graph.View, node string, p FanOutParams) (domain.DetectionCase, bool, string) {
	successors, ok := view.Successors(node)
	if !ok {
		return domain.DetectionCase{}, false, "not in graph"
	}
	if len(successors) < p.MinSplit {
		return domain.DetectionCase{}, false, ""
	}

	var (
		total       = decimal.Zero
		minAmt      decimal.Decimal
		maxAmt      decimal.Decimal
		first, last time.Time
	)
	for i, s := range successors {
		edge, ok := view.Edge(node, s)
		if !ok {
			return domain.DetectionCase{}, false, "missing edge to " + s
		}
		total = total.Add(edge.Amount)
		if i == 0 {
			minAmt, maxAmt = edge.Amount, edge.Amount
			first, last = edge.Timestamp, edge.Timestamp
			continue
		}
		minAmt = decimal.Min(minAmt, edge.Amount)
		maxAmt = decimal.Max(maxAmt, edge.Amount)
		if edge.Timestamp.Before(first) {
			first = edge.Timestamp
		}
		if edge.Timestamp.After(last) {
			last = edge.Timestamp
		}
	}
	if !minAmt.IsPositive() {
		return domain.DetectionCase{}, false, "zero minimum amount"
	}

	window := last.Sub(first).Hours()
	if window >= p.MaxTimeWindowHours {
		return domain.DetectionCase{}, false, ""
	}
	// max/min < variation, compared without division so the bound is exact.
	if !maxAmt.LessThan(p.AmountVariation.Mul(minAmt)) {
		return domain.DetectionCase{}, false, ""
	}
	if !total.GreaterThan(p.MinTotalAmount) {
		return domain.DetectionCase{}, false, ""
	}

	return domain.DetectionCase{
		Pattern:          domain.PatternFanOut,
		Principal:        node,
		Counterparties:   append([]string(nil), successors...),
		TransactionCount: len(successors),
		TotalAmount:      total,
		AmountRange:      minAmt.StringFixed(2) + "-" + maxAmt.StringFixed(2),
		TimeWindowHours:  round2(window),
		FirstTransaction: first.Truncate(time.Minute),
		LastTransaction:  last.Truncate(time.Minute),
		SuspicionScore:   boundedScore(total, p.MinTotalAmount, twenty),
	}, true, ""
}
