// Package http exposes the geocoding API plus health, readiness, and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/disasterwatch/geocoder/internal/domain"
)

// Geocoder is the engine surface the server serves.
type Geocoder interface {
	Geocode(ctx context.Context, locations []string, opts domain.Options) (domain.GeocodeResponse, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the geocoding API over HTTP.
type Server struct {
	httpServer *http.Server
	engine     Geocoder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with geocode, health, readiness, and
// metrics routes.
func NewServer(addr string, engine Geocoder, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		logger: logger,
	}

	mux.HandleFunc("POST /geocode", s.handleGeocode)
	mux.HandleFunc("GET /geocode/{location}", s.handleGeocodeOne)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type geocodeRequest struct {
	Locations []string       `json:"locations"`
	Options   requestOptions `json:"options"`
}

type requestOptions struct {
	PreferLowerAdminLevels  *bool `json:"prefer_lower_admin_levels"`
	IncludeConfidenceScores bool  `json:"include_confidence_scores"`
}

func (o requestOptions) toDomain() domain.Options {
	opts := domain.DefaultOptions()
	if o.PreferLowerAdminLevels != nil {
		opts.PreferLowerAdminLevels = *o.PreferLowerAdminLevels
	}
	opts.IncludeConfidenceScores = o.IncludeConfidenceScores
	return opts
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Locations) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "locations must not be empty"})
		return
	}

	s.respond(w, r, req.Locations, req.Options.toDomain())
}

// handleGeocodeOne is the single-location convenience route; options arrive
// as query parameters.
func (s *Server) handleGeocodeOne(w http.ResponseWriter, r *http.Request) {
	location := r.PathValue("location")
	if location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location must not be empty"})
		return
	}

	opts := domain.DefaultOptions()
	q := r.URL.Query()
	if q.Get("prefer_lower_admin_levels") == "false" {
		opts.PreferLowerAdminLevels = false
	}
	if q.Get("include_confidence_scores") == "true" {
		opts.IncludeConfidenceScores = true
	}

	s.respond(w, r, []string{location}, opts)
}

// respond runs the batch and writes the result. Resolution failures ride
// inside the 200 response; only infrastructure failure becomes a 5xx.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, locations []string, opts domain.Options) {
	resp, err := s.engine.Geocode(r.Context(), locations, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("geocode batch failed", "error", err, "batch_size", len(locations))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "geocoding backend unavailable"})
		return
	}

	s.logger.Info("geocode request served",
		"locations", len(locations),
		"results", len(resp.Results),
		"errors", len(resp.Errors),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.engine.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
