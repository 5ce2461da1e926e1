// Package api serves read-only observation of a running simulation over HTTP.
// GET endpoints are public; POST /api/v1/stop requires a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/metrics"
	"github.com/talgya/crisis-grid/internal/persistence"
)

// Server serves the world state over HTTP.
type Server struct {
	Eng      *engine.Engine
	Exporter *metrics.Exporter // nil disables /metrics
	DB       *persistence.DB   // nil disables /api/v1/runs
	RunID    string
	Strategy string
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// Requests per client IP per minute; 0 uses the default.
	RatePerMin int
	// Proxy addresses whose X-Forwarded-For header names the client.
	TrustedProxies []string
}

// Handler builds the routed, rate-limited handler.
func (s *Server) Handler() http.Handler {
	rate := s.RatePerMin
	if rate == 0 {
		rate = 600
	}
	limiter := NewRateLimiter(rate, time.Minute)
	limiter.TrustProxies(s.TrustedProxies...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/v1/hospitals", s.handleHospitals)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("POST /api/v1/stop", s.adminOnly(s.handleStop))

	if g := s.Exporter.Gatherer(); g != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}

	return RateLimitMiddleware(limiter, mux)
}

// Start begins serving in a goroutine. The returned server can be shut down by the caller.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "metrics", s.Exporter != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting up to timeout for in-flight requests.
func Shutdown(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CRISIS_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.View(func(sim *engine.Simulation) {
		status = map[string]any{
			"run_id":   s.RunID,
			"strategy": s.Strategy,
			"map":      sim.Layout.Name,
			"seed":     sim.Params.Seed,
			"tick":     sim.CurrentTick(),
			"phase":    sim.Phase().String(),
			"census":   sim.Census(),
		}
	})
	writeJSON(w, status)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var st engine.State
	s.Eng.View(func(sim *engine.Simulation) { st = sim.ExportState() })
	writeJSON(w, st)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var snap metrics.Snapshot
	s.Eng.View(func(sim *engine.Simulation) { snap = sim.Metrics.Snapshot() })
	writeJSON(w, snap)
}

func (s *Server) handleHospitals(w http.ResponseWriter, r *http.Request) {
	var qs engine.QueueState
	s.Eng.View(func(sim *engine.Simulation) { qs = sim.HospitalQueueState() })
	writeJSON(w, qs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	events := []engine.Event{}
	s.Eng.View(func(sim *engine.Simulation) {
		for _, e := range sim.Events {
			if category == "" || e.Category == category {
				events = append(events, e)
			}
		}
	})

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.Runs()
	if err != nil {
		slog.Error("list runs", "error", err)
		http.Error(w, "list runs failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Eng.Stop()
	var tick uint64
	s.Eng.View(func(sim *engine.Simulation) { tick = sim.CurrentTick() })
	slog.Info("stop requested over HTTP", "tick", tick)
	writeJSON(w, map[string]any{"tick": tick, "message": "stopping after current tick"})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
