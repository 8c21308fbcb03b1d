// Package server exposes the dashboard operations as JSON endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"ga4revenue/internal/api"
	"ga4revenue/internal/apperr"
	"ga4revenue/internal/attribution"
	"ga4revenue/internal/config"
	"ga4revenue/internal/metrics"
	"ga4revenue/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Dashboard is the set of operations the server exposes. *service.Dashboard
// implements it.
type Dashboard interface {
	TestConnection(ctx context.Context) (*service.ConnectionResult, error)
	AttributionReport(ctx context.Context, days int) (*service.AttributionReport, error)
	TimeSeries(ctx context.Context, days int) (*api.TimeSeries, error)
	Analyze(ctx context.Context, data attribution.StructuredData, days int) (*service.InsightsResult, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	dashboard Dashboard
	metrics   *metrics.Metrics
	cfg       config.ServerConfig
}

// InsightsRequest is the body of POST /api/insights
type InsightsRequest struct {
	StructuredData attribution.StructuredData `json:"structured_data"`
	Days           int                        `json:"days"`
}

// New creates a server. A nil metrics disables /metrics.
func New(dashboard Dashboard, m *metrics.Metrics, cfg config.ServerConfig) *Server {
	return &Server{
		dashboard: dashboard,
		metrics:   m,
		cfg:       cfg,
	}
}

// Routes returns the router with all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status":    "healthy",
			"service":   "ga4revenue",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}
		r.Post("/connection/test", s.handleConnectionTest)
		r.Get("/attribution", s.handleAttribution)
		r.Get("/timeseries", s.handleTimeSeries)
		r.Post("/insights", s.handleInsights)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("Dashboard server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down dashboard server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// handleConnectionTest re-authenticates from scratch.
// POST /api/connection/test
func (s *Server) handleConnectionTest(w http.ResponseWriter, r *http.Request) {
	result, err := s.dashboard.TestConnection(r.Context())
	if err != nil {
		var details interface{}
		if result != nil {
			details = result.KeyDiagnostics
		}
		writeError(w, r, err, details)
		return
	}
	writeSuccess(w, r, result)
}

// handleAttribution returns the table HTML, chart data and structured data.
// GET /api/attribution?days=30
func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	report, err := s.dashboard.AttributionReport(r.Context(), days)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeSuccess(w, r, report)
}

// GET /api/timeseries?days=30
func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	series, err := s.dashboard.TimeSeries(r.Context(), days)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeSuccess(w, r, series)
}

// handleInsights analyses structured data returned by /api/attribution.
// POST /api/insights
// Body: {"structured_data": {...}, "days": 30}
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req InsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.Wrap(apperr.InvalidInput, "request body must be valid JSON", err), nil)
		return
	}
	if req.Days == 0 {
		req.Days = service.DefaultDays
	}

	result, err := s.dashboard.Analyze(r.Context(), req.StructuredData, req.Days)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeSuccess(w, r, result)
}

// daysParam reads ?days=, defaulting to service.DefaultDays
func daysParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("days"))
	if raw == "" {
		return service.DefaultDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Newf(apperr.InvalidInput, "days must be a whole number, got %q", raw)
	}
	return days, nil
}
