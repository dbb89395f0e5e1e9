package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder is what the metrics collector exposes to this package.
type HTTPRecorder interface {
	RecordHTTP(route, status string, d time.Duration)
}

// Metrics records per-route request counts and latency. Routes are the chi
// patterns, not raw paths, so UUIDs don't explode label cardinality.
func Metrics(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			rec.RecordHTTP(route, strconv.Itoa(rw.status), time.Since(start))
		})
	}
}
