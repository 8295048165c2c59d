// Package main is the entry point for the postforge API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postforge/postforge/internal/auth/jwt"
	"github.com/postforge/postforge/internal/config"
	"github.com/postforge/postforge/internal/connection"
	"github.com/postforge/postforge/internal/database"
	identityrepo "github.com/postforge/postforge/internal/identity/repository"
	identity "github.com/postforge/postforge/internal/identity/service"
	"github.com/postforge/postforge/internal/maintenance"
	"github.com/postforge/postforge/internal/oauth/provider"
	oauth "github.com/postforge/postforge/internal/oauth/service"
	"github.com/postforge/postforge/internal/oauth/state"
	"github.com/postforge/postforge/internal/server"
	"github.com/postforge/postforge/internal/shared/cache"
	"github.com/postforge/postforge/internal/shared/events"
	"github.com/postforge/postforge/internal/shared/health"
	"github.com/postforge/postforge/internal/shared/logger"
	"github.com/postforge/postforge/internal/shared/metrics"
	"github.com/postforge/postforge/internal/shared/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "postforge",
		Environment: os.Getenv("ENVIRONMENT"),
	})

	log := logger.Default()
	log.Info("starting postforge server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Optional infrastructure
	var redisClient *cache.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.New(cache.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("redis unavailable, using in-process rate limiting", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	var natsClient *events.Client
	if cfg.NATS.Enabled {
		natsClient, err = events.New(events.Config{URL: cfg.NATS.URL, Name: "postforge"})
		if err != nil {
			log.Warn("nats unavailable, domain events disabled", "error", err)
			natsClient = nil
		} else {
			defer natsClient.Close()
		}
	}

	var tracingProvider *tracing.Provider
	if cfg.Tracing.Enabled {
		var cleanup func(context.Context) error
		tracingProvider, cleanup, err = tracing.Init(tracing.Config{
			ServiceName: "postforge",
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRate:  cfg.Tracing.SampleRatio,
			Insecure:    cfg.Tracing.Insecure,
			Enabled:     true,
		})
		if err != nil {
			log.Warn("tracing unavailable", "error", err)
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := cleanup(shutdownCtx); err != nil {
					log.Warn("tracing shutdown error", "error", err)
				}
			}()
		}
	}

	m := metrics.New(metrics.Config{})

	// Auth and OAuth
	jwtManager, err := jwt.NewManager(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		TokenTTL:       cfg.JWT.TokenTTL,
		Issuer:         cfg.JWT.Issuer,
	})
	if err != nil {
		log.Error("failed to initialize JWT manager", "error", err)
		os.Exit(1)
	}

	stateCodec, err := state.NewCodec([]byte(cfg.OAuth.StateSecret))
	if err != nil {
		log.Error("invalid oauth state secret", "error", err)
		os.Exit(1)
	}

	linkedIn := provider.NewLinkedInProvider(provider.LinkedInConfig{
		ClientID:     cfg.OAuth.LinkedIn.ClientID,
		ClientSecret: cfg.OAuth.LinkedIn.ClientSecret,
		RedirectURL:  cfg.OAuth.LinkedIn.RedirectURL,
	})

	connectionRepo := connection.NewPostgres(pool)

	identityService := identity.New(identity.Config{
		Repository: identityrepo.NewPostgres(pool),
		Events:     natsClient,
		Logger:     log,
	})

	oauthService := oauth.New(oauth.Config{
		Provider:    linkedIn,
		Connections: connectionRepo,
		State:       stateCodec,
		Events:      natsClient,
		Metrics:     m,
		Logger:      log,
	})

	// Health
	healthChecker := health.NewChecker(
		health.WithVersion(version()),
		health.WithTimeout(5*time.Second),
	)
	healthChecker.Register("database", health.PostgresCheck(pool.Ping))
	if redisClient != nil {
		healthChecker.Register("redis", health.RedisCheck(redisClient.Ping))
	}
	if natsClient != nil {
		healthChecker.Register("nats", health.NATSCheck(natsClient.Connected))
	}

	// Maintenance sweeper
	sweeper := maintenance.NewSweeper(maintenance.SweeperConfig{
		Schedule:      cfg.Maintenance.SweepSchedule,
		ExpiryHorizon: cfg.Maintenance.ExpiryHorizon,
		Connections:   connectionRepo,
		Metrics:       m,
		Logger:        log,
	})
	if err := sweeper.Start(); err != nil {
		log.Error("failed to start maintenance sweeper", "error", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Identity:        identityService,
		OAuth:           oauthService,
		JWTManager:      jwtManager,
		Health:          healthChecker,
		Metrics:         m,
		Tracing:         tracingProvider,
		Logger:          log,
		RateLimit:       rateLimitOrZero(cfg),
		RateLimitWindow: cfg.RateLimit.Window,
		Cache:           redisClient,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	log.Info("server stopped")
}

func rateLimitOrZero(cfg *config.Config) int64 {
	if !cfg.RateLimit.Enabled {
		return 0
	}
	return cfg.RateLimit.Limit
}

func version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}
