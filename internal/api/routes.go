package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lexhub-io/lexhub/internal/api/middleware"
)

const (
	healthCheckTimeout = 2 * time.Second
	expectedURLParts   = 2
)

// Version is the service version reported by the health endpoints.
// Overridden at build time via ldflags.
var Version = "dev" //nolint: gochecknoglobals

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// Route represents an HTTP route configuration with a path and handler.
	// Used for declarative route registration with middleware bypass support.
	Route struct {
		Path    string           // The URL path for this route (e.g., "GET /ping")
		Handler http.HandlerFunc // The HTTP handler function for this route
	}
)

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Public health endpoints
	s.registerPublicRoutes(
		mux,
		Route{"GET /ping", s.handlePing},     // K8s liveness probe
		Route{"GET /ready", s.handleReady},   // K8s readiness probe
		Route{"GET /health", s.handleHealth}, // Basic health check - status, uptime, version
		Route{"/", s.handleNotFound},         // Catch-all handler for 404 responses
	)

	// Ingestion endpoint
	mux.HandleFunc("POST /api/v1/ingest", s.handleIngest)

	// Lexicon read endpoints
	mux.HandleFunc("GET /api/v1/lexicons", s.handleListLexicons)
	mux.HandleFunc("GET /api/v1/lexicons/suggest", s.handleSuggestNsids)
	mux.HandleFunc("GET /api/v1/lexicons/{nsid}", s.handleLexiconHistory)
	mux.HandleFunc("GET /api/v1/repos/{did}/lexicons", s.handleRepoLexicons)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
}

// registerPublicRoutes registers HTTP routes that bypass authentication and
// rate limiting. This is a convenience method that:
//  1. Registers the route handler with the HTTP mux
//  2. Registers the path as a public endpoint (bypasses auth middleware)
//
// Public routes should only be used for health check endpoints that need to
// be accessible without credentials (e.g., K8s probes, monitoring tools).
//
// Security Warning: Never register business logic endpoints as public routes.
func (s *Server) registerPublicRoutes(mux *http.ServeMux, routes ...Route) {
	validHTTPMethods := map[string]bool{
		"GET":    true,
		"POST":   true,
		"PUT":    true,
		"PATCH":  true,
		"DELETE": true,
	}

	for _, route := range routes {
		mux.Handle(route.Path, route.Handler)

		// Strip the method prefix for public endpoint bypass registration.
		// Go 1.22+ method-based routing uses "GET /path" format, but
		// r.URL.Path seen by the middleware is just "/path".
		path := route.Path

		parts := strings.Fields(path)
		if len(parts) == expectedURLParts && validHTTPMethods[parts[0]] {
			path = strings.TrimSpace(parts[1])
		}

		if path == "" {
			s.logger.Warn("Malformed route path detected, ignoring route", slog.String("path", route.Path))

			continue
		}

		middleware.RegisterPublicEndpoint(path)
	}
}

// handlePing responds to ping requests for basic server validation.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Lexhub-Version", Version)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("Failed to write ping response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleReady responds to Kubernetes readiness probes with a storage health
// check.
//
// Response codes:
//   - 200 OK: the store is healthy and ready to accept traffic
//   - 503 Service Unavailable: the store is unhealthy or unreachable
//
// K8s readiness probes use this endpoint to decide whether the pod should
// receive traffic; on 503, K8s stops routing requests until it recovers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if s.store == nil {
		s.logger.Warn("Store not configured - readiness check disabled",
			slog.String("correlation_id", correlationID),
		)

		s.writeText(w, correlationID, http.StatusOK, "ready")

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Error("Storage health check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		s.writeText(w, correlationID, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	s.writeText(w, correlationID, http.StatusOK, "ready")
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	// Calculate uptime if server has started
	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	health := HealthStatus{
		Status:      "healthy",
		ServiceName: "lexhub",
		Version:     Version,
		Uptime:      uptime,
	}

	data, err := json.Marshal(health)
	if err != nil {
		s.logger.Error("Failed to encode health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		writeError(w, r, s.logger, http.StatusInternalServerError, CodeInternal, "failed to encode health response")

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Lexhub-Version", Version)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleNotFound returns the standard error envelope for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, s.logger, http.StatusNotFound, CodeNotFound, "the requested resource was not found")
}

// writeText writes a plain-text response body, logging write failures.
func (s *Server) writeText(w http.ResponseWriter, correlationID string, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}
