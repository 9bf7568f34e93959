package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"dojo/internal/adapters/http/perf"
)

// DefaultSlowRequest is the threshold for slow request warnings.
const DefaultSlowRequest = 300 * time.Millisecond

var requestIDCounter atomic.Uint64

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// Timing logs request durations and records them in collector when it is non-nil.
// Requests to /static/ are skipped. Slow requests log at WARN, the rest at DEBUG.
func Timing(collector *perf.Collector, slow time.Duration) func(http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowRequest
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				elapsed := time.Since(start)
				level := slog.LevelDebug
				msg := "request"
				if elapsed >= slow {
					level, msg = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, msg,
					"request_id", requestIDCounter.Add(1),
					"method", r.Method,
					"path", r.URL.Path,
					"status", sw.status,
					"duration_ms", elapsed.Milliseconds(),
				)
				if collector != nil {
					collector.Record(perf.Sample{
						Route:    r.Method + " " + r.URL.Path,
						Status:   sw.status,
						Duration: elapsed,
						At:       start,
					})
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
