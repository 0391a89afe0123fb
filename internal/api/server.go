// Package api is the HTTP surface of the reporting service: routing,
// parameter parsing, error mapping, and transport middleware. All
// computation lives behind the report service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TracklensDev/tracklens/internal/clientip"
	"github.com/TracklensDev/tracklens/internal/logger"
	"github.com/TracklensDev/tracklens/internal/ratelimit"
	"github.com/TracklensDev/tracklens/internal/report"
)

// Server holds dependencies for API handlers
type Server struct {
	reports        *report.Service
	limiter        ratelimit.RateLimiter
	allowedOrigins []string
	version        string
}

// NewServer creates a new API server. A nil limiter disables rate
// limiting; empty origins disable CORS (same-origin deployments).
func NewServer(reports *report.Service, limiter ratelimit.RateLimiter, allowedOrigins []string, version string) *Server {
	return &Server{
		reports:        reports,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		version:        version,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	// Middleware. The compressor sits outside FlyLogger so the logger
	// sees plaintext bodies when it extracts 4xx error messages.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(clientip.Middleware)
	r.Use(logger.Middleware)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Content-Encoding"},
			MaxAge:         300,
		}))
	}
	r.Use(responseCompressor())
	r.Use(FlyLogger)
	r.Use(middleware.Recoverer)
	if s.limiter != nil {
		r.Use(ratelimit.Middleware(s.limiter))
	}
	r.Use(validateContentType)
	r.Use(debugLoggingMiddleware())

	// Health check
	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/workspaces", s.handleListWorkspaces)

		// Offline compute accepts large exported payloads, optionally
		// zstd-compressed by the client. The size limit applies to the
		// decompressed body.
		r.With(decompressMiddleware()).Post("/reports/compute", withMaxBody(MaxBodyXL, s.handleCompute))

		r.Route("/workspaces/{workspaceID}", func(r chi.Router) {
			r.Use(SpanEnricher)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/reports/projects", s.handleProjectReport)
			r.Get("/reports/clients", s.handleClientReport)
			r.Get("/reports/team", s.handleTeamReport)
			r.Get("/reports/financial-summary", s.handleFinancialReport)
			r.Get("/reports/productivity", s.handleProductivityReport)
			r.Get("/reports/billing", s.handleBillingReport)
			r.Get("/employees/{employeeName}/breakdown", s.handleEmployeeBreakdown)
		})
	})

	return r
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleRoot returns API info
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "tracklens",
		"version": s.version,
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
