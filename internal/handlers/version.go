package handlers

import (
	"net/http"

	"media-viewer-engine/internal/startup"
)

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, startup.GetBuildInfo())
}
