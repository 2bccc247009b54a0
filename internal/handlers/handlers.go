package handlers

import (
	"net/http"
	"time"

	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/session"

	"github.com/gorilla/mux"
)

// Handlers serves one session.
type Handlers struct {
	sess    *session.Session
	hub     *Hub
	started time.Time
	log     logging.Logger

	unsubscribe func()
}

// New binds sess. Every state change the session reports is pushed to
// websocket subscribers until Close.
func New(sess *session.Session) *Handlers {
	h := &Handlers{
		sess:    sess,
		hub:     NewHub(),
		started: time.Now(),
		log:     logging.For("http"),
	}
	h.unsubscribe = sess.OnStateChanged(func(slot int) {
		h.hub.Broadcast(Event{Type: EventState, Slot: slot})
	})
	return h
}

// Hub returns the websocket hub.
func (h *Handlers) Hub() *Hub {
	return h.hub
}

// Close stops pushing state changes and disconnects subscribers.
func (h *Handlers) Close() {
	h.unsubscribe()
	h.hub.Close()
}

// RouterConfig selects optional routes.
type RouterConfig struct {
	MetricsEnabled bool
}

// NewRouter registers every route on a new mux router.
func NewRouter(h *Handlers, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	if cfg.MetricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	r.HandleFunc("/blob/{token}", h.GetBlob).Methods("GET", "HEAD")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/progress", h.GetProgress).Methods("GET")
	api.HandleFunc("/slots/{slot:[0-9]+}", h.GetSlot).Methods("GET")
	api.HandleFunc("/slots/{slot:[0-9]+}/variant", h.ToggleVariant).Methods("POST")
	api.HandleFunc("/navigate", h.Navigate).Methods("POST")
	api.HandleFunc("/references", h.AddReferences).Methods("POST")
	api.HandleFunc("/container", h.SetContainer).Methods("PUT")
	api.HandleFunc("/natural", h.SetNatural).Methods("PUT")
	api.HandleFunc("/viewport", h.ApplyInput).Methods("POST")
	api.HandleFunc("/viewport/reset", h.ResetViewport).Methods("POST")
	api.HandleFunc("/key", h.Key).Methods("POST")
	api.HandleFunc("/autoplay", h.Autoplay).Methods("POST")
	api.HandleFunc("/events", h.Events).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})
	return r
}
