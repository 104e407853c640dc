// Package web provides the HTTP server and handlers for the Trasporti API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/JonMunkholm/trasporti/internal/auth"
	"github.com/JonMunkholm/trasporti/internal/config"
	"github.com/JonMunkholm/trasporti/internal/core"
	"github.com/JonMunkholm/trasporti/internal/metrics"
	"github.com/JonMunkholm/trasporti/internal/web/middleware"
)

// Options wires the server's dependencies.
type Options struct {
	Config  *config.Config
	Service *core.Service
	Auth    *auth.Authenticator
	Metrics *metrics.Metrics
}

// Server is the HTTP server for the Trasporti API.
type Server struct {
	cfg     *config.Config
	service *core.Service
	auth    *auth.Authenticator
	metrics *metrics.Metrics
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance. ctx bounds background work such
// as rate limiter cleanup.
func NewServer(ctx context.Context, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	s := &Server{
		cfg:     opts.Config,
		service: opts.Service,
		auth:    opts.Auth,
		metrics: opts.Metrics,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware(ctx)
	s.setupRoutes(ctx)
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := middleware.NewRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, s.respondError)
		s.router.Use(limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(ctx context.Context) {
	// Pages and operations
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(s.cfg.Server.MaxBodyBytes))

		login := r.With()
		if s.cfg.Rate.Enabled {
			login = r.With(middleware.NewRateLimiter(ctx, s.cfg.Rate.LoginLimit, s.respondError).Handler)
		}
		login.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(s.auth.Issuer(), s.respondError))

			r.Get("/me", s.handleMe)
			r.Get("/schema", s.handleSchema)
			r.With(middleware.RequireRole(auth.RoleAdmin, s.respondError)).Post("/users", s.handleCreateUser)

			r.Route("/trasporti", func(r chi.Router) {
				r.Get("/", s.handleList)
				r.Get("/search", s.handleList)
				r.Get("/recent", s.handleRecent)
				r.Post("/", s.handleCreate)

				r.Get("/{id}", s.handleGet)
				r.Put("/{id}", s.handleReplace)
				r.Patch("/{id}", s.handlePatch)
				r.Delete("/{id}", s.handleDelete)
			})
		})
	})
}

// Start begins listening for HTTP requests. It returns nil after a
// graceful Shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
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
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Restrict resources to our origin
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
