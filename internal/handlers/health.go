package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-viewer-engine/internal/session"
	"media-viewer-engine/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Session  session.State    `json:"session"`
	Progress session.Progress `json:"progress"`

	FetchesActive int `json:"fetchesActive"`
	FetchesPeak   int `json:"fetchesPeak"`
	Subscribers   int `json:"subscribers"`

	MemoryUsage  float64 `json:"memoryUsage"`
	MemoryPaused bool    `json:"memoryPaused"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports session and scheduler health. An open session with
// every slot failed, or with image work paused for memory, is degraded; one
// that is not open yet is starting.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	state := h.sess.State()
	stats := h.sess.SchedulerStats()
	usage, paused := h.sess.MemoryPressure()

	response := HealthResponse{
		Version:       startup.Version,
		Uptime:        time.Since(h.started).Round(time.Second).String(),
		Session:       state,
		Progress:      h.sess.Progress(),
		FetchesActive: stats.Active,
		FetchesPeak:   stats.Peak,
		Subscribers:   h.hub.ClientCount(),
		MemoryUsage:   usage,
		MemoryPaused:  paused,
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	status := http.StatusOK
	switch state {
	case session.StateActive:
		response.Status = statusHealthy
		if paused {
			response.Status = statusDegraded
		}
		response.Ready = true
	case session.StateEmpty:
		response.Status = statusDegraded
		response.Ready = true
	default:
		response.Status = statusStarting
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}

// LivenessCheck reports 200 whenever the server is running.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the session is open.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	switch h.sess.State() {
	case session.StateActive, session.StateEmpty:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	default:
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
}
