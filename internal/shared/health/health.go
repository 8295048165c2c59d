// Package health provides health check utilities for the postforge API.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusUp indicates the component is healthy.
	StatusUp Status = "up"
	// StatusDown indicates the component is unhealthy.
	StatusDown Status = "down"
	// StatusDegraded indicates the component is partially healthy.
	StatusDegraded Status = "degraded"
)

// Check represents a health check function.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency_ms"`
}

// Response represents the overall health response.
type Response struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Checker manages health checks for a service.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	version string
	timeout time.Duration
}

// Option is a functional option for configuring the Checker.
type Option func(*Checker)

// WithVersion sets the service version.
func WithVersion(version string) Option {
	return func(c *Checker) {
		c.version = version
	}
}

// WithTimeout sets the timeout for individual health checks.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		c.timeout = timeout
	}
}

// NewChecker creates a new health checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		checks:  make(map[string]Check),
		timeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Register adds a health check for a component.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs all health checks and returns the overall health.
func (c *Checker) Check(ctx context.Context) Response {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	response := Response{
		Status:     StatusUp,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	if len(checks) == 0 {
		return response
	}

	// Run checks concurrently
	var wg sync.WaitGroup
	results := make(chan struct {
		name   string
		health ComponentHealth
	}, len(checks))

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			start := time.Now()
			health := check(checkCtx)
			health.Latency = time.Since(start)

			results <- struct {
				name   string
				health ComponentHealth
			}{name, health}
		}(name, check)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		response.Components[result.name] = result.health

		switch result.health.Status {
		case StatusDown:
			response.Status = StatusDown
		case StatusDegraded:
			if response.Status != StatusDown {
				response.Status = StatusDegraded
			}
		}
	}

	return response
}

// IsHealthy returns true if all components are healthy.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	return c.Check(ctx).Status == StatusUp
}

// Handler returns an http.Handler for the health endpoint.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")

		if response.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
		}
	})
}

// Common health check implementations

// PostgresCheck creates a health check for PostgreSQL.
func PostgresCheck(pingFunc func(context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := pingFunc(ctx); err != nil {
			return ComponentHealth{
				Status:  StatusDown,
				Message: "database connection failed",
			}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// RedisCheck creates a health check for Redis.
func RedisCheck(pingFunc func(context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := pingFunc(ctx); err != nil {
			return ComponentHealth{
				Status:  StatusDegraded,
				Message: "redis connection failed",
			}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// NATSCheck creates a health check for NATS.
func NATSCheck(connectedFunc func() bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if !connectedFunc() {
			return ComponentHealth{
				Status:  StatusDegraded,
				Message: "nats disconnected",
			}
		}
		return ComponentHealth{Status: StatusUp}
	}
}
