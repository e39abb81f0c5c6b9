// Package api exposes the broker's topic, queue, and message operations as
// an HTTP facade over net/http's method-pattern ServeMux.
package api

import (
	"net/http"

	"github.com/fastqueue/fastqueue/internal/broker"
	"github.com/fastqueue/fastqueue/internal/metrics"
	"github.com/fastqueue/fastqueue/internal/observability"
)

// Dependencies bundles the managers the HTTP facade dispatches to.
type Dependencies struct {
	Topics   *broker.TopicManager
	Queues   *broker.QueueManager
	Messages *broker.MessageBroker
}

// NewServer builds the routed HTTP handler, wrapped with tracing and
// per-route Prometheus instrumentation.
func NewServer(deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	topics := &topicHandler{topics: deps.Topics}
	queues := &queueHandler{queues: deps.Queues}
	messages := &messageHandler{messages: deps.Messages}

	route := func(pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, metricsMiddleware(pattern, handler))
	}

	route("POST /topics", topics.create)
	route("GET /topics", topics.list)
	route("GET /topics/{id}", topics.get)
	route("DELETE /topics/{id}", topics.delete)
	route("POST /topics/{id}/messages", messages.publish)

	route("POST /queues", queues.create)
	route("GET /queues", queues.list)
	route("GET /queues/{id}", queues.get)
	route("PUT /queues/{id}", queues.update)
	route("DELETE /queues/{id}", queues.delete)
	route("GET /queues/{id}/stats", queues.stats)
	route("PUT /queues/{id}/purge", queues.purge)
	route("PUT /queues/{id}/redrive", queues.redrive)
	route("GET /queues/{id}/messages", messages.lease)

	route("PUT /messages/{id}/ack", messages.ack)
	route("PUT /messages/{id}/nack", messages.nack)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	return observability.HTTPMiddleware(mux)
}
