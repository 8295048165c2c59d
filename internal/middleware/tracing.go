package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/postforge/postforge/internal/shared/tracing"
)

// Tracing returns middleware that opens a server span per request. A nil
// provider disables tracing.
func Tracing(provider *tracing.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if provider == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := provider.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			tracing.WithHTTPAttributes(span, r.Method, r.URL.Path, rw.status)
		})
	}
}
