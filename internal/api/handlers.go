package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/trendpulse/trendpulse/internal/models"
	"github.com/trendpulse/trendpulse/internal/services"
	"github.com/trendpulse/trendpulse/internal/utils"
)

type restHandler struct {
	service *services.TrendService
	logger  *slog.Logger
	maxBody int64
}

type errorResponse struct {
	Error string `json:"error"`
}

type bannerResponse struct {
	Message      string            `json:"message"`
	Description  string            `json:"description"`
	Status       string            `json:"status"`
	VelocityMode string            `json:"velocity_mode"`
	Endpoints    map[string]string `json:"endpoints"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

var endpoints = map[string]string{
	"GET /health":         "Health check",
	"POST /api/analyze":   "Analyze single trend",
	"POST /api/batch":     "Analyze multiple trends",
	"POST /api":           "Analyze a single trend or a batch, by body shape",
	"GET /api/demo":       "Analyze a synthetic series",
	"POST /analyze":       "Analyze single trend",
	"POST /batch-analyze": "Analyze multiple trends",
}

func (h *restHandler) banner(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, bannerResponse{
		Message:      "TrendPulse API v" + Version,
		Description:  "Cultural Trend Prediction Platform",
		Status:       "healthy",
		VelocityMode: string(h.service.Mode()),
		Endpoints:    endpoints,
	})
}

func (h *restHandler) health(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// POST /analyze
func (h *restHandler) analyze(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var in models.TrendInput
	if err := json.Unmarshal(body, &in); err != nil {
		jsonErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.analyzeOne(w, r, in)
}

// POST /batch-analyze, accepting a bare array or {"trends": [...]}.
func (h *restHandler) batch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	entries, err := decodeBatch(body)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.analyzeMany(w, r, entries)
}

// POST /api dispatches on body shape the way the serverless deployment does.
func (h *restHandler) dispatch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		jsonErr(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	_, hasKeyword := fields["keyword"]
	_, hasValues := fields["values"]
	_, hasTrends := fields["trends"]
	switch {
	case hasKeyword && hasValues:
		var in models.TrendInput
		if err := json.Unmarshal(body, &in); err != nil {
			jsonErr(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		h.analyzeOne(w, r, in)
	case hasTrends:
		entries, err := decodeBatch(body)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		h.analyzeMany(w, r, entries)
	default:
		jsonErr(w, http.StatusBadRequest, "Missing keyword and values")
	}
}

// GET /api/demo?keyword=&pattern=&days=&seed=
func (h *restHandler) demo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days := 0
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}
	seed := uint64(1)
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "seed must be a non-negative integer")
			return
		}
		seed = n
	}

	res, err := h.service.Demo(r.Context(), q.Get("keyword"), q.Get("pattern"), days, seed)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *restHandler) analyzeOne(w http.ResponseWriter, r *http.Request, in models.TrendInput) {
	res, err := h.service.Analyze(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *restHandler) analyzeMany(w http.ResponseWriter, r *http.Request, entries []models.TrendInput) {
	res, err := h.service.AnalyzeBatch(r.Context(), entries)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *restHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		jsonErr(w, http.StatusBadRequest, "invalid body")
		return nil, false
	}
	return body, true
}

func (h *restHandler) writeServiceError(w http.ResponseWriter, err error) {
	if utils.IsInvalidInput(err) {
		jsonErr(w, http.StatusBadRequest, utils.PublicMessage(err, "invalid request"))
		return
	}
	h.logger.Error("request failed", slog.Any("error", err))
	jsonErr(w, http.StatusInternalServerError, "internal error")
}

type batchRequest struct {
	Trends []models.TrendInput `json:"trends"`
}

func decodeBatch(body []byte) ([]models.TrendInput, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []models.TrendInput
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var req batchRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, err
	}
	return req.Trends, nil
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
