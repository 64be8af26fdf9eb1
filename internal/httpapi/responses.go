// Package httpapi is the admin HTTP surface spec.md §6 specifies: a plain
// net/http.ServeMux (Go 1.22+ method+pattern routing), no third-party
// router, matching the teacher's own net/http + struct-per-handler idiom
// (internal/http/responses.go in the teacher tree).
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nlbx/reqsched/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("httpapi: encode response failed", "error", err)
	}
}

// writeError maps the apperr.Kind taxonomy to the HTTP status spec.md §7
// assigns it, via errors.As/errors.Is rather than string matching.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindBadInput, apperr.KindConflict:
		status = http.StatusBadRequest
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindAuthRequired:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.BadInput("invalid request body: " + err.Error())
	}
	return nil
}
