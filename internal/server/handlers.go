package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vanshika/fintrace/amlwatch/internal/domain"
	"github.com/vanshika/fintrace/amlwatch/internal/ingest"
	"github.com/vanshika/fintrace/amlwatch/internal/risk"
	"github.com/vanshika/fintrace/amlwatch/internal/service"
)

const maxImageBytes = 10 << 20

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger   *slog.Logger
	analyzer *service.Analyzer
	validate *validator.Validate
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, analyzer *service.Analyzer) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		analyzer: analyzer,
		validate: validator.New(),
	}
}

func (h *APIHandlers) handleDetectSmurfing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	res, err := h.analyzer.DetectAll(r.Context())
	if err != nil {
		h.logger.Error("detection failed", "error", err)
		respondJSON(w, statusFor(err), map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, detectResponse{
		Status:                 "success",
		Analysis:               res.Results,
		SynthesizedCommunities: res.SynthesizedCommunities,
		Timestamp:              formatTime(res.Timestamp),
	})
}

func (h *APIHandlers) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	raw, err := toRawRecord(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eval, err := h.analyzer.EvaluateCandidate(r.Context(), raw)
	if err != nil {
		h.respondServiceError(w, "candidate evaluation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, evaluateResponse{
		TransactionID: eval.Candidate.TransactionID,
		Evaluation:    eval,
	})
}

func (h *APIHandlers) handleAnalyzeTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	tx, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, h.analyzer.Analyze(r.Context(), tx))
}

func (h *APIHandlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	tx, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	prediction, err := h.analyzer.Predict(r.Context(), tx)
	if err != nil {
		h.respondServiceError(w, "prediction failed", err)
		return
	}
	respondJSON(w, http.StatusOK, prediction)
}

func (h *APIHandlers) handleExtractID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	identity, err := h.analyzer.ExtractIdentity(r.Context(), image, header.Header.Get("Content-Type"))
	if err != nil {
		h.respondServiceError(w, "identity extraction failed", err)
		return
	}
	respondJSON(w, http.StatusOK, identity)
}

func (h *APIHandlers) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := h.analyzer.Reload(r.Context()); err != nil {
		h.logger.Error("reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload dataset")
		return
	}

	st, err := h.analyzer.State()
	if err != nil {
		h.respondServiceError(w, "reload failed", err)
		return
	}
	respondJSON(w, http.StatusOK, reloadResponse{
		Status:                 "reloaded",
		Records:                st.Snapshot.RecordCount(),
		Skipped:                len(st.Snapshot.Diagnostics()),
		Communities:            len(st.Communities),
		SynthesizedCommunities: st.SynthesizedCommunities,
		LoadedAt:               formatTime(st.LoadedAt),
	})
}

func (h *APIHandlers) decodeTransaction(w http.ResponseWriter, r *http.Request) (risk.Transaction, bool) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "no transaction data provided")
		return risk.Transaction{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return risk.Transaction{}, false
	}
	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return risk.Transaction{}, false
	}
	return tx, true
}

func (h *APIHandlers) respondServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var validationErr *domain.ValidationError
	var extractionErr *risk.ExtractionError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &extractionErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoSnapshot),
		errors.Is(err, risk.ErrScorerUnavailable),
		errors.Is(err, service.ErrExtractorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type detectResponse struct {
	Status                 string                   `json:"status"`
	Analysis               []domain.CommunityResult `json:"analysis"`
	SynthesizedCommunities bool                     `json:"synthesized_communities"`
	Timestamp              string                   `json:"timestamp"`
}

type evaluateResponse struct {
	TransactionID string `json:"transaction_id"`
	service.Evaluation
}

type reloadResponse struct {
	Status                 string `json:"status"`
	Records                int    `json:"records"`
	Skipped                int    `json:"skipped"`
	Communities            int    `json:"communities"`
	SynthesizedCommunities bool   `json:"synthesized_communities"`
	LoadedAt               string `json:"loaded_at"`
}

type transactionRequest struct {
	TransactionID string           `json:"transactionId"`
	CardNumber    string           `json:"cardNum"`
	Merchant      string           `json:"merchant"`
	Category      string           `json:"category"`
	Gender        string           `json:"gender"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Timestamp     string           `json:"trans_date_trans_time"`
	CityPop       float64          `json:"city_pop" validate:"gte=0"`
	DOB           string           `json:"dob"`
	Lat           *float64         `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Long          *float64         `json:"long" validate:"omitempty,gte=-180,lte=180"`
	MerchantLat   *float64         `json:"merch_lat" validate:"omitempty,gte=-90,lte=90"`
	MerchantLong  *float64         `json:"merch_long" validate:"omitempty,gte=-180,lte=180"`
}

func (req transactionRequest) toTransaction() (risk.Transaction, error) {
	if req.Amount.IsNegative() {
		return risk.Transaction{}, errors.New("amount must not be negative")
	}
	tx := risk.Transaction{
		TransactionID: strings.TrimSpace(req.TransactionID),
		CardNumber:    strings.TrimSpace(req.CardNumber),
		Merchant:      strings.TrimSpace(req.Merchant),
		Category:      req.Category,
		Gender:        req.Gender,
		Amount:        *req.Amount,
		CityPop:       req.CityPop,
	}
	if req.Timestamp != "" {
		ts, ok := ingest.ParseTimestamp(req.Timestamp)
		if !ok {
			return risk.Transaction{}, fmt.Errorf("invalid trans_date_trans_time %q", req.Timestamp)
		}
		tx.Timestamp = ts
	}
	if req.DOB != "" {
		dob, err := time.Parse("2006-01-02", req.DOB)
		if err != nil {
			return risk.Transaction{}, fmt.Errorf("invalid dob %q", req.DOB)
		}
		tx.DateOfBirth = dob
	}
	if req.Lat != nil && req.Long != nil {
		tx.Home = &risk.Coordinates{Lat: *req.Lat, Long: *req.Long}
	}
	if req.MerchantLat != nil && req.MerchantLong != nil {
		tx.MerchantAt = &risk.Coordinates{Lat: *req.MerchantLat, Long: *req.MerchantLong}
	}
	return tx, nil
}

// toRawRecord flattens a JSON object of scalars into a dataset row.
func toRawRecord(payload map[string]any) (domain.RawRecord, error) {
	if payload == nil {
		return nil, errors.New("transaction object is required")
	}
	raw := make(domain.RawRecord, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case nil:
		case string:
			raw[key] = v
		case json.Number:
			raw[key] = v.String()
		case bool:
			raw[key] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("field %q must be a scalar", key)
		}
	}
	return raw, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid transaction: " + strings.Join(fields, ", ")
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
