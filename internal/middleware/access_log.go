package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/better-wallet/webconnect/internal/metrics"
)

// MaxBodySize is the maximum allowed request body size (1MB)
const MaxBodySize = 1 << 20

// LimitBody caps request bodies at MaxBodySize
func LimitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		next.ServeHTTP(w, r)
	})
}

// StatusRecorder captures the status code written by a handler. Only the
// first WriteHeader takes effect.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	written    bool
}

// NewStatusRecorder creates a recorder defaulting to 200 OK
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	if !r.written {
		r.StatusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// AccessLog logs every request and counts it by route pattern and status.
// It must wrap the ServeMux directly so the matched pattern is visible.
func AccessLog(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := NewStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if m != nil {
				m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.StatusCode)).Inc()
			}
			logger.Debug(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", rec.StatusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
