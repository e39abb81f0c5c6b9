package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fastqueue/fastqueue/internal/broker"
	"github.com/fastqueue/fastqueue/internal/metrics"
)

type messageHandler struct {
	messages *broker.MessageBroker
}

type publishRequest struct {
	Data       json.RawMessage   `json:"data"`
	Attributes map[string]string `json:"attributes"`
}

func (h *messageHandler) publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	topicID := r.PathValue("id")
	msgs, err := h.messages.Publish(r.Context(), topicID, req.Data, req.Attributes)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordPublish(topicID, len(msgs))
	writeJSON(w, http.StatusCreated, listEnvelope{Data: msgs})
}

func (h *messageHandler) lease(w http.ResponseWriter, r *http.Request) {
	queueID := r.PathValue("id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	start := time.Now()
	msgs, err := h.messages.Lease(r.Context(), queueID, limit)
	metrics.RecordLease(queueID, len(msgs), time.Since(start))
	if err != nil {
		writeError(w, err)
		return
	}
	writeList(w, msgs)
}

func (h *messageHandler) ack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	queueID, err := h.messages.Ack(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if queueID != "" {
		metrics.RecordAck(queueID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *messageHandler) nack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	queueID, err := h.messages.Nack(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if queueID != "" {
		metrics.RecordNack(queueID)
	}
	w.WriteHeader(http.StatusNoContent)
}
