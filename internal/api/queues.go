package api

import (
	"encoding/json"
	"net/http"

	"github.com/fastqueue/fastqueue/internal/broker"
	"github.com/fastqueue/fastqueue/internal/filter"
)

type queueHandler struct {
	queues *broker.QueueManager
}

type queueRequest struct {
	ID                      string         `json:"id"`
	TopicID                 *string        `json:"topic_id"`
	DeadQueueID             *string        `json:"dead_queue_id"`
	AckDeadlineSeconds      int            `json:"ack_deadline_seconds"`
	MessageRetentionSeconds int            `json:"message_retention_seconds"`
	MessageFilters          filter.Filters `json:"message_filters"`
	MessageMaxDeliveries    *int           `json:"message_max_deliveries"`
	DeliveryDelaySeconds    *int           `json:"delivery_delay_seconds"`
}

func (req queueRequest) toParams(id string) broker.QueueParams {
	return broker.QueueParams{
		ID:                      id,
		TopicID:                 req.TopicID,
		DeadQueueID:             req.DeadQueueID,
		AckDeadlineSeconds:      req.AckDeadlineSeconds,
		MessageRetentionSeconds: req.MessageRetentionSeconds,
		MessageFilters:          req.MessageFilters,
		MessageMaxDeliveries:    req.MessageMaxDeliveries,
		DeliveryDelaySeconds:    req.DeliveryDelaySeconds,
	}
}

func (h *queueHandler) create(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	q, err := h.queues.Create(r.Context(), req.toParams(req.ID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *queueHandler) get(w http.ResponseWriter, r *http.Request) {
	q, err := h.queues.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *queueHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	queues, err := h.queues.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeList(w, queues)
}

func (h *queueHandler) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	q, err := h.queues.Update(r.Context(), req.toParams(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *queueHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.queues.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *queueHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queues.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *queueHandler) purge(w http.ResponseWriter, r *http.Request) {
	if err := h.queues.Purge(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type redriveRequest struct {
	DestinationQueueID string `json:"destination_queue_id"`
}

func (h *queueHandler) redrive(w http.ResponseWriter, r *http.Request) {
	var req redriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if _, err := h.queues.Redrive(r.Context(), r.PathValue("id"), req.DestinationQueueID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
