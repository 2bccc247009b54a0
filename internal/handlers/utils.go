package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/session"
	"media-viewer-engine/internal/variant"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged since the status line is already out.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// respondJSON writes v with status code.
func respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// writeSessionError maps engine errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, session.ErrNoSlot):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrClosed):
		status = http.StatusConflict
	case errors.Is(err, media.ErrInvalidReference), errors.Is(err, variant.ErrNoVariant),
		errors.Is(err, session.ErrUnknownInput):
		status = http.StatusBadRequest
	default:
		logging.Warn("request failed: %v", err)
		status = http.StatusBadGateway
	}
	writeJSONError(w, err.Error(), status)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
