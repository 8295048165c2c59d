// Package server exposes the HTTP API: registration, login, profile and the
// LinkedIn connection flow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/postforge/postforge/internal/auth/jwt"
	identity "github.com/postforge/postforge/internal/identity/service"
	"github.com/postforge/postforge/internal/middleware"
	oauth "github.com/postforge/postforge/internal/oauth/service"
	"github.com/postforge/postforge/internal/shared/cache"
	"github.com/postforge/postforge/internal/shared/health"
	"github.com/postforge/postforge/internal/shared/logger"
	"github.com/postforge/postforge/internal/shared/metrics"
	"github.com/postforge/postforge/internal/shared/tracing"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Identity   *identity.Service
	OAuth      *oauth.Service
	JWTManager *jwt.Manager
	Health     *health.Checker
	Metrics    *metrics.Metrics
	Tracing    *tracing.Provider
	Logger     *logger.Logger

	// RateLimit applies to the unauthenticated auth endpoints. Zero disables.
	RateLimit       int64
	RateLimitWindow time.Duration
	Cache           *cache.Client
}

// Server is the HTTP server for the API.
type Server struct {
	config   Config
	identity *identity.Service
	oauth    *oauth.Service
	log      *logger.Logger
	http     *http.Server
}

// New creates a new server with all routes registered.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		config:   cfg,
		identity: cfg.Identity,
		oauth:    cfg.OAuth,
		log:      log.WithComponent("server"),
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return s
}

// Handler builds the routing table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	authed := middleware.Auth(s.config.JWTManager, s.log)

	limited := func(h http.Handler) http.Handler { return h }
	if s.config.RateLimit > 0 {
		limited = middleware.RateLimit(middleware.RateLimitConfig{
			Limit:   s.config.RateLimit,
			Window:  s.config.RateLimitWindow,
			Cache:   s.config.Cache,
			Metrics: s.config.Metrics,
			Logger:  s.log,
		})
	}

	// Credential endpoints are rate limited; everything else relies on auth.
	mux.Handle("POST /auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(s.handleLogin)))

	mux.Handle("GET /me", authed(http.HandlerFunc(s.handleMe)))
	mux.Handle("PATCH /me/preferences", authed(http.HandlerFunc(s.handleUpdatePreferences)))

	mux.Handle("GET /auth/linkedin", authed(http.HandlerFunc(s.handleLinkedInConnect)))
	mux.Handle("GET /auth/linkedin/callback", http.HandlerFunc(s.handleLinkedInCallback))
	mux.Handle("GET /auth/linkedin/status", authed(http.HandlerFunc(s.handleLinkedInStatus)))
	mux.Handle("POST /auth/linkedin/refresh", authed(http.HandlerFunc(s.handleLinkedInRefresh)))
	mux.Handle("DELETE /auth/linkedin", authed(http.HandlerFunc(s.handleLinkedInDisconnect)))

	if s.config.Health != nil {
		mux.Handle("GET /healthz", s.config.Health.Handler())
	}
	if s.config.Metrics != nil {
		mux.Handle("GET /metrics", s.config.Metrics.Handler())
	}

	var handler http.Handler = mux
	if s.config.Metrics != nil {
		handler = middleware.Metrics(s.config.Metrics)(handler)
	}
	handler = middleware.Tracing(s.config.Tracing)(handler)
	handler = middleware.Logging(s.log)(handler)
	handler = middleware.Security()(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.Recovery(s.log)(handler)

	return handler
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
