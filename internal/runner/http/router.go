package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vehosts/vehosts/internal/runner/executor"
)

// RunService executes project scripts. Satisfied by executor.Service.
type RunService interface {
	Run(ctx context.Context, req executor.Request) (executor.Result, error)
	Health(ctx context.Context) error
}

// Router exposes HTTP endpoints for the execution service.
type Router struct {
	mux                *http.ServeMux
	logger             *slog.Logger
	runner             RunService
	authToken          string
	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	runResults         *prometheus.CounterVec
}

const healthCheckTimeout = 2 * time.Second

// New creates and registers handlers.
func New(logger *slog.Logger, runner RunService, authToken string) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		runner:    runner,
		authToken: authToken,
	}
	r.initMetrics()
	r.routes()
	return r
}

// ServeHTTP satisfies http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) routes() {
	r.mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealth))
	r.mux.HandleFunc("/run", r.instrument("/run", r.handleRun))
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()
	component := map[string]any{"status": "up"}
	status := "ok"
	if err := r.runner.Health(ctx); err != nil {
		status = "degraded"
		component = map[string]any{
			"status": "down",
			"error":  err.Error(),
		}
	}
	payload := map[string]any{
		"status": status,
		"components": map[string]any{
			"workspace": component,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	r.writeJSON(w, code, payload)
}

func (r *Router) handleRun(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.authToken != "" && !r.authorized(req) {
		r.writeError(w, http.StatusUnauthorized, "invalid runner token")
		return
	}
	var payload executor.Request
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		r.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := r.runner.Run(req.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, executor.ErrInvalidRequest):
			r.recordRunResult("rejected")
			r.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, executor.ErrEntryNotFound):
			r.recordRunResult("rejected")
			r.writeError(w, http.StatusNotFound, "main file not found")
		case errors.Is(err, executor.ErrRunInProgress):
			r.recordRunResult("rejected")
			r.writeError(w, http.StatusConflict, "run already in progress for this project")
		default:
			r.recordRunResult("failure")
			r.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if result.Success {
		r.recordRunResult("success")
	} else {
		r.recordRunResult("failure")
	}
	r.writeJSON(w, http.StatusOK, result)
}

// authorized checks the shared runner token in constant time.
func (r *Router) authorized(req *http.Request) bool {
	token := strings.TrimSpace(req.Header.Get("X-Runner-Token"))
	if len(token) != len(r.authToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(r.authToken)) == 1
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Error("failed to encode response", "error", err)
	}
}

func (r *Router) writeError(w http.ResponseWriter, status int, msg string) {
	r.writeJSON(w, status, map[string]string{"error": msg})
}
