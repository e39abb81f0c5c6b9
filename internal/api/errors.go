package api

import (
	"net/http"

	"github.com/fastqueue/fastqueue/internal/broker"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps the broker error taxonomy to an HTTP status and writes a
// JSON error body. Unclassified errors are treated as internal.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case broker.IsNotFound(err):
		status = http.StatusNotFound
	case broker.IsAlreadyExists(err):
		status = http.StatusUnprocessableEntity
	case broker.IsInvalid(err):
		status = http.StatusUnprocessableEntity
	case broker.IsConflict(err):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
