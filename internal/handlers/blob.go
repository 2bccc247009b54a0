package handlers

import (
	"bytes"
	"net/http"
	"time"

	"media-viewer-engine/internal/cache"
	"media-viewer-engine/internal/streaming"

	"github.com/gorilla/mux"
)

// GetBlob serves the bytes behind a view token; the token is the request
// path itself. Tokens are never reused,
// so responses are cacheable forever; a released or unknown token is 404.
// The handle stays acquired until the body is written or the client stalls
// past the write timeout.
func (h *Handlers) GetBlob(w http.ResponseWriter, r *http.Request) {
	token := cache.TokenPrefix + mux.Vars(r)["token"]

	handle, ok := h.sess.Lookup(token)
	if !ok {
		writeJSONError(w, "unknown view token", http.StatusNotFound)
		return
	}
	if err := handle.Acquire(); err != nil {
		writeJSONError(w, "view token released", http.StatusNotFound)
		return
	}
	defer handle.Release()

	data, err := handle.Bytes()
	if err != nil {
		writeJSONError(w, "view token released", http.StatusNotFound)
		return
	}

	tw := streaming.NewTimeoutWriter(r.Context(), w, streaming.DefaultConfig())
	defer tw.Close()

	w.Header().Set("Content-Type", handle.ContentType())
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+token+`"`)
	http.ServeContent(tw, r, "", time.Time{}, bytes.NewReader(data))
}
