package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xasusq-eng/Kovers/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// knownPaths keeps the metric path label at a fixed cardinality. The
// route table has no path parameters, so exact matching suffices.
var knownPaths = map[string]bool{
	"/":                  true,
	"/health":            true,
	"/metrics":           true,
	"/api/auth/register": true,
	"/api/auth/login":    true,
	"/api/auth/guest":    true,
	"/api/auth/logout":   true,
	"/api/me":            true,
	"/api/users/search":  true,
	"/api/rooms":         true,
	"/api/dm":            true,
	"/api/messages":      true,
	"/api/calls":         true,
	"/api/calls/start":   true,
	"/api/calls/join":    true,
	"/api/calls/end":     true,
}

// Metrics returns middleware that records Prometheus metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if !knownPaths[path] {
			path = "other"
		}

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(time.Since(start).Seconds())
	})
}
