// Package maintenance runs scheduled background jobs.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/postforge/postforge/internal/connection"
	"github.com/postforge/postforge/internal/shared/logger"
	"github.com/postforge/postforge/internal/shared/metrics"
)

// SweeperConfig holds sweeper configuration.
type SweeperConfig struct {
	// Schedule is a cron expression; defaults to hourly.
	Schedule string

	// ExpiryHorizon is how far ahead a connection's token expiry counts as
	// expiring. Tokens are never refreshed here; the gauge exists so operators
	// can see reconnect pressure building up.
	ExpiryHorizon time.Duration

	Connections connection.Repository
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

// Sweeper periodically counts connections whose tokens expire soon and
// publishes the count as a gauge.
type Sweeper struct {
	config SweeperConfig
	cron   *cron.Cron
	log    *logger.Logger
}

// NewSweeper creates a sweeper. Call Start to begin the schedule.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	if cfg.ExpiryHorizon <= 0 {
		cfg.ExpiryHorizon = 24 * time.Hour
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	return &Sweeper{
		config: cfg,
		cron:   cron.New(),
		log:    log.WithComponent("maintenance"),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("maintenance sweeper started", "schedule", s.config.Schedule)
	return nil
}

// Sweep runs one count pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	horizon := time.Now().Add(s.config.ExpiryHorizon)

	count, err := s.config.Connections.CountExpiringBefore(ctx, connection.ProviderLinkedIn, horizon)
	if err != nil {
		s.log.WithError(err).Warn("expiring connections sweep failed")
		return
	}

	if s.config.Metrics != nil {
		s.config.Metrics.SetConnectionsExpiring(connection.ProviderLinkedIn, float64(count))
	}
	s.log.Debug("expiring connections sweep complete",
		"provider", connection.ProviderLinkedIn,
		"count", count,
	)
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
