// Package health exposes the HTTP surface of the service: liveness,
// detailed provider health, Prometheus metrics and the generation API.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/atelier/internal/core/domain"
	"github.com/vietddude/atelier/internal/orchestrator"
	"github.com/vietddude/atelier/internal/routing"
)

// Status is an aggregate service health level.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Server provides the HTTP endpoints.
type Server struct {
	orch   *orchestrator.Orchestrator
	log    *slog.Logger
	server *http.Server
}

// NewServer creates the HTTP server on the given port.
func NewServer(orch *orchestrator.Orchestrator, port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		orch: orch,
		log:  log,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/generate", s.handleGenerate)
	mux.HandleFunc("POST /v1/validate", s.handleValidate)
	mux.HandleFunc("POST /v1/cache/cleanup", s.handleCacheCleanup)
	mux.HandleFunc("POST /v1/breakers/{name}/reset", s.handleBreakerReset)

	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts down the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// aggregate computes the worst-case service status: every breaker open
// means no provider can serve, any open breaker or unavailable provider
// degrades the service.
func (s *Server) aggregate(ctx context.Context) Status {
	breakers, providers := s.orch.HealthStatus(ctx)

	openCount := 0
	for _, b := range breakers {
		if b.State == routing.StateOpen {
			openCount++
		}
	}
	if len(breakers) > 0 && openCount == len(breakers) {
		return StatusCritical
	}

	if openCount > 0 {
		return StatusDegraded
	}
	for _, p := range providers {
		if !p.Available {
			return StatusDegraded
		}
	}
	return StatusHealthy
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.aggregate(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	breakers, providers := s.orch.HealthStatus(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    s.aggregate(r.Context()),
		"providers": providers,
		"breakers":  breakers,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var params domain.ParameterSet
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	resp := s.orch.Generate(r.Context(), params)

	code := http.StatusOK
	if !resp.Success {
		switch {
		case resp.Err != nil && resp.Err.Type == domain.ErrValidation:
			code = http.StatusUnprocessableEntity
		default:
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var params domain.ParameterSet
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	report := s.orch.ValidateOnly(params)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	maxAgeDays := queryInt(r, "max_age_days", 0)
	keepCount := queryInt(r, "keep_count", 0)
	if maxAgeDays <= 0 && keepCount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_age_days or keep_count required"})
		return
	}

	removed, err := s.orch.CleanupCache(r.Context(), maxAgeDays, keepCount)
	if err != nil {
		s.log.Error("cache cleanup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.orch.ResetBreaker(name) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown provider: " + name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"provider": name, "state": "closed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
