// Package snapshot holds the immutable dataset view shared by detection
// requests and the transient views used to evaluate one candidate.
package snapshot

import (
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/graph"
	"github.com/vanshika/fintrace/amlwatch/internal/ingest"
)

// Snapshot pairs normalized records with the graph built from them. Neither
// is modified after Build returns; callers must treat Records as read-only.
type Snapshot struct {
	records     []domain.NormalizedRecord
	graph       graph.View
	diagnostics []domain.Diagnostic
	candidate   *domain.NormalizedRecord
}

// Build normalizes rows and constructs the transaction graph.
func Build(rows []domain.RawRecord, normalizer *ingest.Normalizer) (*Snapshot, error) {
	if len(rows) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	if normalizer == nil {
		normalizer = ingest.NewNormalizer(nil)
	}

	records, diags := normalizer.Normalize(rows)
	g, graphDiags := graph.Build(records)

	return &Snapshot{
		records:     records,
		graph:       g,
		diagnostics: append(diags, graphDiags...),
	}, nil
}

// FromRecords wraps already normalized records, which must be ordered by
// (sender, timestamp).
func FromRecords(records []domain.NormalizedRecord) *Snapshot {
	g, diags := graph.Build(records)
	return &Snapshot{records: records, graph: g, diagnostics: diags}
}

// WithCandidate returns a transient view holding the base records plus rec
// and a graph overlay with rec's edge. The receiver is left untouched.
func (s *Snapshot) WithCandidate(rec domain.NormalizedRecord) *Snapshot {
	rec.SecondsSincePrev = s.gapBefore(rec)

	n := len(s.records)
	// The full slice expression forces append to copy into a new array.
	records := append(s.records[:n:n], rec)

	return &Snapshot{
		records:     records,
		graph:       graph.NewOverlay(s.graph, rec),
		diagnostics: s.diagnostics,
		candidate:   &rec,
	}
}

func (s *Snapshot) gapBefore(rec domain.NormalizedRecord) float64 {
	if rec.SenderID == "" {
		return 0
	}
	var latest domain.NormalizedRecord
	found := false
	for _, r := range s.records {
		if r.SenderID != rec.SenderID || r.Timestamp.After(rec.Timestamp) {
			continue
		}
		if !found || r.Timestamp.After(latest.Timestamp) {
			latest = r
			found = true
		}
	}
	if !found {
		return 0
	}
	return rec.Timestamp.Sub(latest.Timestamp).Seconds()
}

// Records returns the normalized records backing the view.
func (s *Snapshot) Records() []domain.NormalizedRecord { return s.records }

// Graph returns the transaction graph of the view.
func (s *Snapshot) Graph() graph.View { return s.graph }

// Diagnostics lists rows skipped while building the snapshot.
func (s *Snapshot) Diagnostics() []domain.Diagnostic { return s.diagnostics }

// Candidate returns the record appended by WithCandidate, if any.
func (s *Snapshot) Candidate() (domain.NormalizedRecord, bool) {
	if s.candidate == nil {
		return domain.NormalizedRecord{}, false
	}
	return *s.candidate, true
}

func (s *Snapshot) RecordCount() int { return len(s.records) }

func (s *Snapshot) EdgeCount() int { return s.graph.EdgeCount() }
