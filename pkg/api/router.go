// Package api provides the REST API server for the upload, job polling and
// export surface.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/pkg/api/auth"
	"github.com/pitchsight/pitchsight/pkg/api/handlers"
	apiMiddleware "github.com/pitchsight/pitchsight/pkg/api/middleware"
	"github.com/pitchsight/pitchsight/pkg/export"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - POST /api/v1/sessions - Create session
//   - GET /api/v1/sessions - Paginated session list
//   - GET /api/v1/sessions/{id} - Session with jobs
//   - DELETE /api/v1/sessions/{id} - Cascade delete
//   - DELETE /api/v1/sessions/bulk - Filtered bulk delete
//   - POST /api/v1/videos/upload/initiate - Presigned upload handshake, phase one
//   - POST /api/v1/videos/upload/complete - Preflight + dispatch, phase two
//   - GET /api/v1/analysis-jobs/{id} - Job row including artifacts
//   - POST /api/v1/analysis-jobs/{id}/export-pdf - Gated PDF export
func NewRouter(store *jobstore.GORMStore, coordinator *upload.Coordinator, exporter *export.Service, jwtService *auth.JWTService, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	healthHandler := handlers.NewHealthHandler(store)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	sessionHandler := handlers.NewSessionHandler(coordinator)
	videoHandler := handlers.NewVideoHandler(coordinator)
	jobHandler := handlers.NewJobHandler(store, exporter)

	// API v1 routes - all owner-scoped, all authenticated
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiMiddleware.JWTAuth(jwtService))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.List)
			r.Delete("/bulk", sessionHandler.BulkDelete)
			r.Get("/{id}", sessionHandler.Get)
			r.Delete("/{id}", sessionHandler.Delete)
		})

		r.Route("/videos/upload", func(r chi.Router) {
			r.Post("/initiate", videoHandler.InitiateUpload)
			r.Post("/complete", videoHandler.CompleteUpload)
		})

		r.Route("/analysis-jobs", func(r chi.Router) {
			r.Get("/{id}", jobHandler.Get)
			r.Post("/{id}/export-pdf", jobHandler.ExportPDF)
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs requests using the internal logger.
//
// Healthcheck requests are logged at DEBUG level to reduce noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
