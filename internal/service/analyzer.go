package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vanshika/fintrace/amlwatch/internal/community"
	"github.com/vanshika/fintrace/amlwatch/internal/detection"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/ingest"
	"github.com/vanshika/fintrace/amlwatch/internal/metrics"
	"github.com/vanshika/fintrace/amlwatch/internal/risk"
	"github.com/vanshika/fintrace/amlwatch/internal/snapshot"
)

// ErrExtractorUnavailable is returned when identity extraction is not configured.
var ErrExtractorUnavailable = errors.New("identity extractor not available")

// DatasetSource yields the raw transaction rows a snapshot is built from.
type DatasetSource interface {
	LoadRows(ctx context.Context) ([]domain.RawRecord, error)
}

// CSVDataset reads rows from a CSV file on every load.
type CSVDataset struct {
	Path string
}

func (d CSVDataset) LoadRows(context.Context) ([]domain.RawRecord, error) {
	return ingest.ReadCSVFile(d.Path)
}

// Options wires an Analyzer.
type Options struct {
	Dataset          DatasetSource
	Communities      community.Source
	Detection        detection.Options
	Rules            risk.RuleConfig
	HighRiskKeywords []string
	Scorer           risk.Scorer
	Extractor        risk.IdentityExtractor
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// Analyzer orchestrates snapshot reloads, detection runs and candidate
// evaluation over the published snapshot.
type Analyzer struct {
	store      SnapshotStore
	reloadMu   sync.Mutex
	dataset    DatasetSource
	source     community.Source
	normalizer *ingest.Normalizer
	behavior   *detection.BehaviorScorer
	detection  detection.Options
	rules      risk.RuleConfig
	scorer     risk.Scorer
	extractor  risk.IdentityExtractor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	nowFn      func() time.Time
	newID      func() string
}

// NewAnalyzer constructs an Analyzer. Nothing is loaded until Reload or
// Publish is called.
func NewAnalyzer(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	normalizer := ingest.NewNormalizer(opts.HighRiskKeywords)
	return &Analyzer{
		dataset:    opts.Dataset,
		source:     opts.Communities,
		normalizer: normalizer,
		behavior:   detection.NewBehaviorScorer(normalizer.IsHighRisk),
		detection:  opts.Detection,
		rules:      opts.Rules,
		scorer:     opts.Scorer,
		extractor:  opts.Extractor,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "analyzer"),
		nowFn:      time.Now,
		newID:      uuid.NewString,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (a *Analyzer) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		a.nowFn = nowFn
		a.normalizer.WithClock(nowFn)
	}
}

// Reload reads the dataset and communities and publishes a new state.
func (a *Analyzer) Reload(ctx context.Context) error {
	if a.dataset == nil {
		return errors.New("no dataset source configured")
	}
	rows, err := a.dataset.LoadRows(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	return a.Publish(ctx, rows)
}

// Publish builds a state from rows and swaps it in. Concurrent publishes
// are serialized; readers keep the previous state until the swap.
func (a *Analyzer) Publish(ctx context.Context, rows []domain.RawRecord) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	snap, err := snapshot.Build(rows, a.normalizer)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}
	communities, synthesized, err := community.Load(ctx, a.source, snap.Records())
	if err != nil {
		return err
	}

	a.store.Publish(&State{
		Snapshot:               snap,
		Communities:            communities,
		SynthesizedCommunities: synthesized,
		LoadedAt:               a.nowFn().UTC(),
	})
	a.metrics.SnapshotPublished(snap.RecordCount())
	a.logger.Info("snapshot published",
		"rows", len(rows),
		"records", snap.RecordCount(),
		"edges", snap.EdgeCount(),
		"skipped", len(snap.Diagnostics()),
		"communities", len(communities),
		"synthesized_communities", synthesized,
	)
	return nil
}

// State returns the published state.
func (a *Analyzer) State() (*State, error) {
	return a.store.Load()
}

// Loaded reports whether a state has been published.
func (a *Analyzer) Loaded() bool {
	_, err := a.store.Load()
	return err == nil
}

// DetectAll runs both detectors over every community of the base snapshot.
func (a *Analyzer) DetectAll(ctx context.Context) (Detection, error) {
	st, err := a.store.Load()
	if err != nil {
		return Detection{}, err
	}

	start := time.Now()
	results, err := detection.DetectAll(ctx, st.Snapshot, st.Communities, a.detection)
	if err != nil {
		return Detection{}, err
	}
	a.metrics.ObserveDetection(time.Since(start), results)

	return Detection{
		Results:                results,
		SynthesizedCommunities: st.SynthesizedCommunities,
		Diagnostics:            st.Snapshot.Diagnostics(),
		Timestamp:              a.nowFn().UTC(),
	}, nil
}

// EvaluateCandidate scores raw against the published snapshot through a
// transient view holding the base records plus the candidate. The
// published snapshot is never modified. A missing or invalid amount yields
// a *domain.ValidationError and no detection is attempted.
func (a *Analyzer) EvaluateCandidate(ctx context.Context, raw domain.RawRecord) (Evaluation, error) {
	st, err := a.store.Load()
	if err != nil {
		return Evaluation{}, err
	}

	candidate, err := a.normalizer.NormalizeCandidate(raw)
	if err != nil {
		a.metrics.CandidateEvaluated(metrics.OutcomeRejected)
		return Evaluation{}, err
	}
	if candidate.TransactionID == "" {
		candidate.TransactionID = a.newID()
	}

	view := st.Snapshot.WithCandidate(candidate)
	candidate, _ = view.Candidate()

	start := time.Now()
	results, err := detection.DetectAll(ctx, view, st.Communities, a.detection)
	if err != nil {
		a.metrics.CandidateEvaluated(metrics.OutcomeError)
		return Evaluation{}, err
	}
	a.metrics.ObserveDetection(time.Since(start), results)

	profile := a.behavior.Score(candidate, st.Snapshot.Records())
	enhanced := detection.Aggregate(results, profile)

	eval := Evaluation{
		Candidate:        candidate,
		Results:          enhanced,
		Behavior:         profile,
		TransactionCount: view.RecordCount(),
		Threshold:        a.rules.SmurfingThreshold,
		Flagged:          flagged(enhanced, a.rules.SmurfingThreshold),
	}
	if eval.Flagged {
		a.metrics.CandidateEvaluated(metrics.OutcomeFlagged)
	} else {
		a.metrics.CandidateEvaluated(metrics.OutcomeClear)
	}
	a.logger.Debug("candidate evaluated",
		"transaction_id", candidate.TransactionID,
		"sender", maskIdentifier(candidate.SenderID),
		"behavioral_score", profile.Score,
		"flagged", eval.Flagged,
	)
	return eval, nil
}

// Analyze runs the rule-adjusted classifier and candidate evaluation for
// one transaction. Failures are reported inside the affected section.
func (a *Analyzer) Analyze(ctx context.Context, tx risk.Transaction) Analysis {
	out := Analysis{Timestamp: a.nowFn().UTC()}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = out.Timestamp
	}

	fraud := &FraudSection{System: SystemClassifier}
	base := 0.0
	switch {
	case a.scorer == nil:
		fraud.System = SystemRulesOnly
	default:
		p, err := a.scorer.Score(ctx, risk.BuildFeatures(tx))
		if err != nil {
			fraud.Error = err.Error()
		}
		base = p
	}
	if fraud.Error == "" {
		fraud.Assessment = a.rules.Assess(tx, base)
	}
	out.Fraud = fraud

	smurfing := &SmurfingSection{System: SystemSmurfing, Threshold: a.rules.SmurfingThreshold}
	eval, err := a.EvaluateCandidate(ctx, CandidateRow(tx))
	if err != nil {
		smurfing.Error = err.Error()
	} else {
		smurfing.Results = eval.Results
		smurfing.TransactionCount = eval.TransactionCount
		smurfing.Flagged = eval.Flagged
	}
	out.Smurfing = smurfing

	return out
}

// Predict returns the classifier probability and its category.
func (a *Analyzer) Predict(ctx context.Context, tx risk.Transaction) (Prediction, error) {
	if a.scorer == nil {
		return Prediction{}, risk.ErrScorerUnavailable
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = a.nowFn().UTC()
	}
	features := risk.BuildFeatures(tx)
	p, err := a.scorer.Score(ctx, features)
	if err != nil {
		return Prediction{}, fmt.Errorf("score transaction: %w", err)
	}

	id := tx.TransactionID
	if id == "" {
		id = "N/A"
	}
	return Prediction{
		TransactionID: id,
		RiskScore:     p,
		Category:      risk.Category(p),
		Features:      features,
	}, nil
}

// ExtractIdentity reads the name and date of birth from an identity document.
func (a *Analyzer) ExtractIdentity(ctx context.Context, image []byte, contentType string) (risk.Identity, error) {
	if a.extractor == nil {
		return risk.Identity{}, ErrExtractorUnavailable
	}
	text, err := a.extractor.Extract(ctx, image, contentType)
	if err != nil {
		return risk.Identity{}, fmt.Errorf("extract identity: %w", err)
	}
	return risk.ParseIdentity(text)
}

// CandidateRow maps a scored transaction onto the dataset column names the
// normalizer understands.
func CandidateRow(tx risk.Transaction) domain.RawRecord {
	row := domain.RawRecord{
		"cc_num":   tx.CardNumber,
		"merchant": tx.Merchant,
		"amt":      tx.Amount.String(),
		"category": tx.Category,
	}
	if tx.TransactionID != "" {
		row["trans_num"] = tx.TransactionID
	}
	if !tx.Timestamp.IsZero() {
		row["trans_date_trans_time"] = tx.Timestamp.UTC().Format("2006-01-02 15:04:05")
	}
	if tx.MerchantAt != nil {
		row["merch_lat"] = fmt.Sprintf("%f", tx.MerchantAt.Lat)
		row["merch_long"] = fmt.Sprintf("%f", tx.MerchantAt.Long)
	}
	return row
}

func flagged(results []domain.EnhancedResult, threshold float64) bool {
	for _, r := range results {
		if r.EnhancedScore >= threshold {
			return true
		}
	}
	return false
}
