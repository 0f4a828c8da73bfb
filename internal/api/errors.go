package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/joestump/card-runner/internal/directory"
	"github.com/joestump/card-runner/internal/validate"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody decodes the JSON request body into v and validates it. On
// failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, validator *validate.Validator) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	if err := validator.Struct(v); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: "VALIDATION_ERROR", Fields: verr.Fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

// writeStoreError reports a failed direct store call as a storage outage.
func writeStoreError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	writeCoreError(w, r, logger, directory.StoreUnavailable(op, err))
}

// writeCoreError maps errors from the directory package to HTTP responses.
// Server-side failures are logged with the request id.
func writeCoreError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var nf *directory.NotFoundError
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, fmt.Sprintf("The %s with the given ID was not found.", nf.Entity), "NOT_FOUND")
		return
	case errors.Is(err, directory.ErrNotPublisher):
		writeError(w, http.StatusForbidden, "only publishers can create cards", "NOT_PUBLISHER")
		return
	}

	logger.ErrorContext(r.Context(), "request failed",
		"request_id", middleware.GetReqID(r.Context()), "error", err)

	switch {
	case errors.Is(err, directory.ErrAllocationExhausted):
		writeError(w, http.StatusServiceUnavailable, "no business number available, try again", "ALLOCATION_EXHAUSTED")
	case errors.Is(err, directory.ErrPartialWrite):
		writeError(w, http.StatusServiceUnavailable, "the change was only partly applied, retry the request", "PARTIAL_WRITE")
	case errors.Is(err, directory.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable", "STORE_UNAVAILABLE")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}
