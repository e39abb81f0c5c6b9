// Package metrics exposes broker operation counters and histograms to
// Prometheus for scraping by external monitoring systems.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for broker metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	messagesPublishedTotal *prometheus.CounterVec
	messagesLeasedTotal    *prometheus.CounterVec
	messagesAckedTotal     *prometheus.CounterVec
	messagesNackedTotal    *prometheus.CounterVec
	messagesExpiredTotal   *prometheus.CounterVec
	messagesDeadLetterTotal *prometheus.CounterVec

	leaseDuration   *prometheus.HistogramVec
	cleanupDuration prometheus.Histogram

	queueDepth *prometheus.GaugeVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var defaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem under the
// given namespace (typically "fastqueue").
func InitPrometheus(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		messagesPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "messages_published_total", Help: "Total messages fanned out to queues by publish"},
			[]string{"topic_id"},
		),
		messagesLeasedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "messages_leased_total", Help: "Total messages returned by lease"},
			[]string{"queue_id"},
		),
		messagesAckedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "messages_acked_total", Help: "Total ack calls that removed a message"},
			[]string{"queue_id"},
		),
		messagesNackedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "messages_nacked_total", Help: "Total nack calls that reset an existing message"},
			[]string{"queue_id"},
		),
		messagesExpiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "messages_expired_total", Help: "Total messages deleted by the cleanup scheduler's expire step"},
			[]string{"queue_id"},
		),
		messagesDeadLetterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "messages_dead_lettered_total", Help: "Total messages migrated to a dead queue by the cleanup scheduler"},
			[]string{"queue_id", "dead_queue_id"},
		),

		leaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "lease_duration_seconds", Help: "Time spent in the lease store call", Buckets: defaultDurationBuckets},
			[]string{"queue_id"},
		),
		cleanupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Name: "cleanup_tick_duration_seconds", Help: "Time spent running one full cleanup tick across all queues", Buckets: defaultDurationBuckets},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "queue_depth", Help: "Consumable message count observed at last stats call"},
			[]string{"queue_id"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests served"},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency", Buckets: defaultDurationBuckets},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		pm.messagesPublishedTotal, pm.messagesLeasedTotal, pm.messagesAckedTotal, pm.messagesNackedTotal,
		pm.messagesExpiredTotal, pm.messagesDeadLetterTotal, pm.leaseDuration, pm.cleanupDuration,
		pm.queueDepth, pm.httpRequestsTotal, pm.httpRequestDuration,
	)

	promMetrics = pm
}

// RecordPublish records the number of messages fanned out for a publish call.
func RecordPublish(topicID string, count int) {
	if promMetrics == nil || count <= 0 {
		return
	}
	promMetrics.messagesPublishedTotal.WithLabelValues(topicID).Add(float64(count))
}

// RecordLease records a lease call's returned count and duration.
func RecordLease(queueID string, count int, duration time.Duration) {
	if promMetrics == nil {
		return
	}
	if count > 0 {
		promMetrics.messagesLeasedTotal.WithLabelValues(queueID).Add(float64(count))
	}
	promMetrics.leaseDuration.WithLabelValues(queueID).Observe(duration.Seconds())
}

// RecordAck increments the ack counter for queueID.
func RecordAck(queueID string) {
	if promMetrics == nil {
		return
	}
	promMetrics.messagesAckedTotal.WithLabelValues(queueID).Inc()
}

// RecordNack increments the nack counter for queueID.
func RecordNack(queueID string) {
	if promMetrics == nil {
		return
	}
	promMetrics.messagesNackedTotal.WithLabelValues(queueID).Inc()
}

// RecordExpired records messages removed by the cleanup scheduler's expire step.
func RecordExpired(queueID string, count int64) {
	if promMetrics == nil || count <= 0 {
		return
	}
	promMetrics.messagesExpiredTotal.WithLabelValues(queueID).Add(float64(count))
}

// RecordDeadLettered records messages migrated to a dead queue.
func RecordDeadLettered(queueID, deadQueueID string, count int64) {
	if promMetrics == nil || count <= 0 {
		return
	}
	promMetrics.messagesDeadLetterTotal.WithLabelValues(queueID, deadQueueID).Add(float64(count))
}

// RecordCleanupTick records the wall time of one full cleanup tick.
func RecordCleanupTick(duration time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.cleanupDuration.Observe(duration.Seconds())
}

// SetQueueDepth records the consumable-message count observed for queueID.
func SetQueueDepth(queueID string, depth int64) {
	if promMetrics == nil {
		return
	}
	promMetrics.queueDepth.WithLabelValues(queueID).Set(float64(depth))
}

// RecordHTTPRequest records one HTTP request's route, status, and latency.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if promMetrics == nil {
		return
	}
	promMetrics.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	promMetrics.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for Prometheus scraping.
func Handler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// Registry returns the prometheus registry, for tests that want to assert
// on collected series directly.
func Registry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
