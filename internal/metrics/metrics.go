// Package metrics exposes Prometheus instrumentation for detection runs,
// candidate evaluations and snapshot reloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
)

const namespace = "amlwatch"

// Candidate evaluation outcomes.
const (
	OutcomeFlagged  = "flagged"
	OutcomeClear    = "clear"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	casesTotal        *prometheus.CounterVec
	evaluationsTotal  *prometheus.CounterVec
	detectionDuration prometheus.Histogram
	snapshotRecords   prometheus.Gauge
}

// New creates the collectors and registers them on a dedicated registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		casesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_cases_total",
			Help:      "Detection cases emitted, by pattern",
		}, []string{"pattern"}),
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_evaluations_total",
			Help:      "Candidate transaction evaluations, by outcome",
		}, []string{"outcome"}),
		detectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Duration of a detection run over all communities",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		snapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Normalized records in the published snapshot",
		}),
	}

	all := []prometheus.Collector{
		m.casesTotal,
		m.evaluationsTotal,
		m.detectionDuration,
		m.snapshotRecords,
		collectors.NewGoCollector(),
	}
	for _, c := range all {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveDetection records the duration of a run and the cases it found.
func (m *Metrics) ObserveDetection(elapsed time.Duration, results []domain.CommunityResult) {
	if m == nil {
		return
	}
	m.detectionDuration.Observe(elapsed.Seconds())
	for _, r := range results {
		m.casesTotal.WithLabelValues(string(domain.PatternFanIn)).Add(float64(len(r.FanInCases)))
		m.casesTotal.WithLabelValues(string(domain.PatternFanOut)).Add(float64(len(r.FanOutCases)))
	}
}

// CandidateEvaluated counts one candidate evaluation with the given outcome.
func (m *Metrics) CandidateEvaluated(outcome string) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(outcome).Inc()
}

// SnapshotPublished records the size of a newly published snapshot.
func (m *Metrics) SnapshotPublished(records int) {
	if m == nil {
		return
	}
	m.snapshotRecords.Set(float64(records))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
