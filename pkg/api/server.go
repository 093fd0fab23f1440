// Package api exposes the engine over HTTP: ingestion, settlement,
// statistics, calibration data and monthly statements.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/courtedge/courtedge/pkg/analytics"
	"github.com/courtedge/courtedge/pkg/ledger"
	"github.com/courtedge/courtedge/pkg/metrics"
	"github.com/courtedge/courtedge/pkg/pipeline"
	"github.com/courtedge/courtedge/pkg/profitshare"
	"github.com/courtedge/courtedge/pkg/signal"
)

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	engine     *pipeline.Engine
	statements *profitshare.Generator
	metrics    *metrics.EngineMetrics
	log        zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(engine *pipeline.Engine, statements *profitshare.Generator, em *metrics.EngineMetrics, log zerolog.Logger) *Handler {
	return &Handler{engine: engine, statements: statements, metrics: em, log: log}
}

// Router builds the chi router with all routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/signals", h.IngestSignal)
		r.Post("/settle", h.Settle)
		r.Get("/bets/pending", h.PendingBets)
		r.Get("/balance", h.Balance)
		r.Get("/statistics", h.Statistics)
		r.Get("/calibration", h.Calibration)
		r.Get("/statements/{year}/{month}", h.Statement)
	})
	return r
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "courtedge",
	})
}

// IngestSignal runs one match signal through the pipeline.
func (h *Handler) IngestSignal(w http.ResponseWriter, r *http.Request) {
	var sig signal.MatchSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	res, err := h.engine.ProcessSignal(r.Context(), &sig)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBankroll) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type settleRequest struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
}

// Settle resolves all pending bets on a match. An empty winner voids
// them.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.MatchID == "" {
		respondError(w, http.StatusBadRequest, "match_id is required")
		return
	}

	settled, err := h.engine.SettleMatch(r.Context(), req.MatchID, req.Winner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"settled": settled,
		"balance": h.engine.Ledger().Balance(),
	})
}

// PendingBets lists unsettled bets.
func (h *Handler) PendingBets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Ledger().PendingBets())
}

// Balance returns the current bankroll.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	led := h.engine.Ledger()
	respondJSON(w, http.StatusOK, map[string]any{
		"balance":  led.Balance(),
		"starting": led.StartingBalance(),
		"peak":     led.Peak(),
	})
}

// Statistics returns the performance report, optionally windowed by
// from/to RFC3339 query params.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	var win analytics.Window
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		win.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		win.To = t
	}
	respondJSON(w, http.StatusOK, h.engine.Statistics(win))
}

// Calibration returns recent calibration records plus the per-bucket
// summary. limit caps the record count.
func (h *Handler) Calibration(w http.ResponseWriter, r *http.Request) {
	rec := h.engine.Calibration()
	if rec == nil {
		respondError(w, http.StatusNotFound, "calibration not enabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": rec.Data(limit),
		"summary": rec.Summary(),
	})
}

// Statement regenerates and returns the statement for one month.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	if h.statements == nil {
		respondError(w, http.StatusNotFound, "statements not enabled")
		return
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2000 || year > 2200 {
		respondError(w, http.StatusBadRequest, "year must be a valid year")
		return
	}
	monthNum, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || monthNum < 1 || monthNum > 12 {
		respondError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}

	st, err := h.statements.Generate(r.Context(), h.engine.Ledger().Snapshot(), year, time.Month(monthNum))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
