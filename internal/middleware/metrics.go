package middleware

import (
	"net/http"
	"time"

	"github.com/postforge/postforge/internal/shared/metrics"
)

// Metrics returns middleware that records request counts, durations and
// in-flight gauge for every request.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPInFlightAdd(1)
			defer m.HTTPInFlightAdd(-1)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			m.RecordHTTPRequest(r.Method, r.URL.Path, rw.status, time.Since(start))
		})
	}
}
