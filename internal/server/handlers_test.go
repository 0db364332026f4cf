package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/fintrace/amlwatch/internal/config"
	"github.com/vanshika/fintrace/amlwatch/internal/detection"
	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/risk"
	"github.com/vanshika/fintrace/amlwatch/internal/service"
)

type stubExtractor struct {
	text string
}

func (s stubExtractor) Extract(context.Context, []byte, string) (string, error) {
	return s.text, nil
}

type stubDataset struct {
	rows []domain.RawRecord
}

func (s stubDataset) LoadRows(context.Context) ([]domain.RawRecord, error) {
	return s.rows, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fanInRows() []domain.RawRecord {
	return []domain.RawRecord{
		{"cc_num": "S1", "merchant": "M1", "amt": "1000", "trans_date_trans_time": "2024-03-10 10:00:00"},
		{"cc_num": "S2", "merchant": "M1", "amt": "1200", "trans_date_trans_time": "2024-03-10 11:00:00"},
		{"cc_num": "S3", "merchant": "M1", "amt": "900", "trans_date_trans_time": "2024-03-10 12:00:00"},
	}
}

func newTestRouter(t *testing.T, opts service.Options, publish bool) http.Handler {
	t.Helper()
	opts.Detection = detection.DefaultOptions()
	opts.Rules = risk.DefaultRuleConfig()
	opts.Logger = discardLogger()
	if opts.Dataset == nil {
		opts.Dataset = stubDataset{rows: fanInRows()}
	}
	analyzer := service.NewAnalyzer(opts)
	if publish {
		require.NoError(t, analyzer.Reload(context.Background()))
	}
	return NewRouter(discardLogger(), RouterDependencies{
		Health: HealthServices{SnapshotHealthService{State: analyzer}},
		API:    NewAPIHandlers(discardLogger(), analyzer),
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleDetectSmurfing(t *testing.T) {
	h := newTestRouter(t, service.Options{}, true)

	rec := doJSON(t, h, http.MethodGet, "/detect_smurfing", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Status   string `json:"status"`
		Analysis []struct {
			CommunityID string `json:"community_id"`
			FanIn       []struct {
				Principal      string `json:"principal"`
				SuspicionScore int    `json:"suspicion_score"`
			} `json:"smurfing_cases"`
		} `json:"analysis"`
		Synthesized bool `json:"synthesized_communities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "success", payload.Status)
	assert.True(t, payload.Synthesized)
	require.Len(t, payload.Analysis, 1)
	require.Len(t, payload.Analysis[0].FanIn, 1)
	assert.Equal(t, "M1", payload.Analysis[0].FanIn[0].Principal)
	assert.Equal(t, 31, payload.Analysis[0].FanIn[0].SuspicionScore)
}

func TestHandleDetectSmurfingWithoutSnapshot(t *testing.T) {
	h := newTestRouter(t, service.Options{}, false)

	rec := doJSON(t, h, http.MethodGet, "/detect_smurfing", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestHandleDetectSmurfingMethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, service.Options{}, true)

	rec := doJSON(t, h, http.MethodPost, "/detect_smurfing", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestHandleEvaluate(t *testing.T) {
	h := newTestRouter(t, service.Options{}, true)

	rec := doJSON(t, h, http.MethodPost, "/evaluate",
		`{"cc_num":"S1","merchant":"M1","amt":950,"trans_date_trans_time":"2024-03-10 12:30:00","trans_num":"tx-77"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		TransactionID    string `json:"transaction_id"`
		TransactionCount int    `json:"transaction_count"`
		Flagged          bool   `json:"flagged"`
		Analysis         []struct {
			EnhancedScore float64 `json:"enhanced_suspicion_score"`
		} `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "tx-77", payload.TransactionID)
	assert.Equal(t, 4, payload.TransactionCount)
	assert.True(t, payload.Flagged)
	require.Len(t, payload.Analysis, 1)
	assert.Equal(t, 1.0, payload.Analysis[0].EnhancedScore)
}

func TestHandleEvaluateValidation(t *testing.T) {
	h := newTestRouter(t, service.Options{}, true)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing amount", body: `{"cc_num":"S1"}`},
		{name: "non numeric amount", body: `{"amt":"lots"}`},
		{name: "nested value", body: `{"amt":10,"meta":{"a":1}}`},
		{name: "malformed json", body: `{"amt":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/evaluate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleAnalyzeTransaction(t *testing.T) {
	h := newTestRouter(t, service.Options{}, true)

	rec := doJSON(t, h, http.MethodPost, "/analyze_transaction",
		`{"cardNum":"S9","merchant":"electronics_hub","amount":1500,"trans_date_trans_time":"2024-03-10 02:00:00"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Fraud struct {
			System string   `json:"system"`
			Result string   `json:"result"`
			Flags  []string `json:"flags"`
		} `json:"fraud_detection"`
		Smurfing struct {
			Threshold        float64 `json:"threshold"`
			TransactionCount int     `json:"transaction_count"`
		} `json:"smurfing_detection"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, service.SystemRulesOnly, payload.Fraud.System)
	assert.Equal(t, []string{"high_amount_1500", "late_night_2h", "high_risk_merchant"}, payload.Fraud.Flags)
	assert.Equal(t, risk.VerdictNotFraud, payload.Fraud.Result)
	assert.Equal(t, 0.5, payload.Smurfing.Threshold)
	assert.Equal(t, 4, payload.Smurfing.TransactionCount)
}

func TestHandleAnalyzeTransactionRequiresAmount(t *testing.T) {
	h := newTestRouter(t, service.Options{}, true)

	rec := doJSON(t, h, http.MethodPost, "/analyze_transaction", `{"cardNum":"S9","lat":120}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "amount failed required")
}

func TestHandlePredict(t *testing.T) {
	h := newTestRouter(t, service.Options{}, true)
	rec := doJSON(t, h, http.MethodPost, "/predict", `{"amount":10}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	scorer := risk.ScorerFunc(func(context.Context, risk.Features) (float64, error) { return 0.8, nil })
	h = newTestRouter(t, service.Options{Scorer: scorer}, true)
	rec = doJSON(t, h, http.MethodPost, "/predict", `{"transactionId":"T-1","amount":"10.50","dob":"1990-01-01"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload service.Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "T-1", payload.TransactionID)
	assert.Equal(t, "High Risk", payload.Category)
}

func TestHandleExtractID(t *testing.T) {
	h := newTestRouter(t, service.Options{Extractor: stubExtractor{text: `{"name":"Jane Doe","dob":"1990-01-31"}`}}, true)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "id.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract_id", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var identity risk.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &identity))
	assert.Equal(t, "Jane Doe", identity.Name)

	rec = doJSON(t, h, http.MethodPost, "/extract_id", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReload(t *testing.T) {
	h := newTestRouter(t, service.Options{}, false)

	rec := doJSON(t, h, http.MethodPost, "/admin/reload", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var payload reloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 3, payload.Records)
	assert.Equal(t, 1, payload.Communities)
	assert.True(t, payload.SynthesizedCommunities)
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t, service.Options{}, false)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")

	h = newTestRouter(t, service.Options{}, true)
	rec = doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&domain.ValidationError{Field: "amount"}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&risk.ExtractionError{Reason: "x"}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.ErrNoSnapshot))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := NewRouter(discardLogger(), RouterDependencies{
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	first := doJSON(t, h, http.MethodGet, "/unknown", "")
	second := doJSON(t, h, http.MethodGet, "/unknown", "")
	metrics := doJSON(t, h, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, metrics.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(discardLogger(), RouterDependencies{AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/evaluate", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerAddress(t *testing.T) {
	srv := New(discardLogger(), config.HTTPConfig{Host: "127.0.0.1", Port: 9999, ShutdownTimeout: time.Second}, http.NotFoundHandler())
	assert.Equal(t, "127.0.0.1:9999", srv.httpServer.Addr)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(discardLogger(), config.HTTPConfig{ShutdownTimeout: time.Second}, NewRouter(discardLogger(), RouterDependencies{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
