package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fastqueue/fastqueue/internal/logging"
	"github.com/fastqueue/fastqueue/internal/metrics"
	"github.com/fastqueue/fastqueue/internal/observability"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request count and latency by method and route
// pattern, and logs non-2xx responses with the request's trace/span id
// attached so a log line can be correlated back to a trace. route is the
// mux pattern, not the raw path, so label cardinality stays bounded
// regardless of path parameters.
func metricsMiddleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(sw, r)
		duration := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(sw.status), duration)

		if sw.status >= 400 {
			ctx := r.Context()
			log := logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx))
			log.Warn("request failed", "method", r.Method, "route", route, "status", sw.status, "duration_ms", duration.Milliseconds())
		}
	}
}
