package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// listEnvelope wraps list results in the spec's {"data": [...]} shape.
type listEnvelope struct {
	Data any `json:"data"`
}

func writeList(w http.ResponseWriter, items any) {
	writeJSON(w, http.StatusOK, listEnvelope{Data: items})
}

const (
	defaultOffset = 0
	defaultLimit  = 50
	maxLimit      = 500
)

func pagination(r *http.Request) (offset, limit int) {
	offset, limit = defaultOffset, defaultLimit
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}
