package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"redish/server/internal/apperr"
	"redish/server/internal/observability"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeXML(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// respondError maps a service error to its status. Only the message of a
// typed error reaches the client; anything else is logged and answered with
// a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind != apperr.KindInternal {
		if e.Err != nil {
			observability.GetLogEntry(r).WithError(e.Err).Debug(e.Message)
		}
		writeError(w, e.Kind.Status(), e.Message)
		return
	}

	observability.GetLogEntry(r).WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid JSON").WithCause(err)
	}
	return nil
}
