package api

import (
	"encoding/json"
	"net/http"

	"github.com/fastqueue/fastqueue/internal/broker"
)

type topicHandler struct {
	topics *broker.TopicManager
}

type createTopicRequest struct {
	ID string `json:"id"`
}

func (h *topicHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	t, err := h.topics.Create(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *topicHandler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.topics.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *topicHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	topics, err := h.topics.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeList(w, topics)
}

func (h *topicHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.topics.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
