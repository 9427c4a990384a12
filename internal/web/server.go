// Package web provides the HTTP API for the explorer.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/explorer/internal/config"
	"github.com/JonMunkholm/explorer/internal/core"
	"github.com/JonMunkholm/explorer/internal/metrics"
	"github.com/JonMunkholm/explorer/internal/web/middleware"
)

// Server is the HTTP server for the explorer.
type Server struct {
	service *core.Service
	cfg     *config.Config
	metrics *metrics.Metrics
	router  *chi.Mux
	server  *http.Server

	generalLimiter *rateLimiter
	uploadLimiter  *rateLimiter
	queryLimiter   *rateLimiter
}

// NewServer creates a Server. m may be nil, in which case /metrics is not
// served.
func NewServer(service *core.Service, cfg *config.Config, m *metrics.Metrics) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		metrics: m,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.generalLimiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadLimiter = newRateLimiter(cfg.Rate.UploadLimit, time.Minute)
		s.queryLimiter = newRateLimiter(cfg.Rate.QueryLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger(s.metrics))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5, "application/json", "text/csv"))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	s.router.Use(s.generalLimiter.middleware)
}

// setupRoutes configures all HTTP routes.
//
// Uploads, sample loads, progress streams and exports run without the
// request timeout; everything else is bounded by SERVER_REQUEST_TIMEOUT.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		r.Get("/prompts", s.handlePrompts)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.sessionCtx)

			// Long-running
			r.With(s.uploadLimiter.middleware).Post("/upload", s.handleUpload)
			r.With(s.uploadLimiter.middleware).Post("/sample", s.handleLoadSample)
			r.Get("/progress", s.handleProgress)
			r.Get("/export", s.handleExport)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

				r.Get("/", s.handleView)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/history", s.handleHistory)
				r.Post("/reset", s.handleReset)

				r.With(s.queryLimiter.middleware).Post("/query", s.handleQuery)

				// View parameters
				r.Patch("/view", s.handleUpdateView)
				r.Put("/search", s.handleSearch)
				r.Post("/sort", s.handleSort)
				r.Post("/columns/toggle", s.handleToggleColumn)
				r.Put("/page", s.handleSetPage)
				r.Put("/page-size", s.handleSetPageSize)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// API only; nothing is meant to be rendered.
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
