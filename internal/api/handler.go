// Package api exposes the ledger engine as a JSON HTTP API.
//
// This is a thin boundary: handlers decode requests, run the
// caller-facing checks (notably the over-payment guard before a
// settlement) and render engine results. No ledger policy lives here.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	expensesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_expenses_recorded_total",
		Help: "Expenses successfully recorded",
	})

	paymentsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payments_applied_total",
		Help: "Payments successfully applied",
	})

	expensesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_expenses_cancelled_total",
		Help: "Expenses cancelled by their creator",
	})
)

// Handler bundles the HTTP handlers over one ledger engine.
type Handler struct {
	engine *ledger.Engine
}

// NewHandler creates a Handler for the given engine.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{engine: engine}
}

// Register mounts the API routes under /api/v1.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.instrument)

	api.HandleFunc("/expenses", h.GetExpenseByDescription).Methods(http.MethodGet).Queries("description", "{description}")
	api.HandleFunc("/expenses", h.CreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses/{id:[0-9]+}", h.GetExpense).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{id:[0-9]+}", h.CancelExpense).Methods(http.MethodDelete)
	api.HandleFunc("/payments", h.CreatePayment).Methods(http.MethodPost)
	api.HandleFunc("/debts", h.ListDebts).Methods(http.MethodGet)
	api.HandleFunc("/debts/grouped", h.ListGroupedDebts).Methods(http.MethodGet)
	api.HandleFunc("/statistics", h.GetStatistics).Methods(http.MethodGet)
	api.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latencies per route template.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]any{"success": false, "error": msg})
}

// respondEngineError maps the ledger error taxonomy to HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	var integrityErr *models.IntegrityError

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusUnprocessableEntity, validationErr.Reason)
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.As(err, &integrityErr):
		slog.Error("integrity violation", "error", err)
		respondError(w, http.StatusInternalServerError, integrityErr.Reason)
	default:
		slog.Error("internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
