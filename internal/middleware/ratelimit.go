package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/postforge/postforge/internal/shared/cache"
	"github.com/postforge/postforge/internal/shared/errors"
	"github.com/postforge/postforge/internal/shared/logger"
	"github.com/postforge/postforge/internal/shared/metrics"
)

// RateLimitConfig holds rate limiting middleware configuration.
type RateLimitConfig struct {
	// Limit is the number of requests allowed per Window per client.
	Limit  int64
	Window time.Duration

	// Cache backs the shared sliding window. When nil, or when Redis is
	// unreachable, limiting falls back to a per-process token bucket.
	Cache   *cache.Client
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// RateLimit returns middleware that limits requests per client IP.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	local := newLocalLimiter(cfg.Limit, cfg.Window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := clientIP(r)

			allowed, remaining, resetAt := checkLimit(r, cfg, local, clientKey, log)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(cfg.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !resetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			}

			if !allowed {
				if cfg.Metrics != nil {
					cfg.Metrics.RecordRateLimitDrop(r.URL.Path)
				}
				writeAuthError(w, errors.RateLimited("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func checkLimit(r *http.Request, cfg RateLimitConfig, local *localLimiter, clientKey string, log *logger.Logger) (allowed bool, remaining int64, resetAt time.Time) {
	if cfg.Cache != nil {
		allowed, remaining, resetAt, err := cfg.Cache.CheckRateLimit(r.Context(), cache.RateLimitConfig{
			Key:    clientKey,
			Limit:  cfg.Limit,
			Window: cfg.Window,
		})
		if err == nil {
			return allowed, remaining, resetAt
		}
		log.WithContext(r.Context()).WithError(err).Warn("redis rate limit check failed, using local limiter")
	}

	if local.allow(clientKey) {
		return true, cfg.Limit, time.Time{}
	}
	return false, 0, time.Now().Add(cfg.Window)
}

// localLimiter is a per-process fallback keyed by client, used when no shared
// store is available.
type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLocalLimiter(limit int64, window time.Duration) *localLimiter {
	return &localLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    int(limit),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First address is the originating client.
		for i := 0; i < len(forwarded); i++ {
			if forwarded[i] == ',' {
				return forwarded[:i]
			}
		}
		return forwarded
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
