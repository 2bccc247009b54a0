package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/session"
	"media-viewer-engine/internal/viewport"

	"github.com/gorilla/mux"
)

// GetSession returns the full snapshot.
func (h *Handlers) GetSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.sess.Snapshot())
}

// GetProgress returns slot counts by load state.
func (h *Handlers) GetProgress(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.sess.Progress())
}

func slotParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil {
		return 0, fmt.Errorf("%w: %s", session.ErrNoSlot, mux.Vars(r)["slot"])
	}
	return i, nil
}

// GetSlot returns one slot.
func (h *Handlers) GetSlot(w http.ResponseWriter, r *http.Request) {
	i, err := slotParam(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	sl, err := h.sess.Slot(i)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sl)
}

// ToggleVariant swaps a slot between its renditions and returns the slot
// once the other rendition is showing.
func (h *Handlers) ToggleVariant(w http.ResponseWriter, r *http.Request) {
	i, err := slotParam(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if err := h.sess.ToggleVariant(r.Context(), i); err != nil {
		writeSessionError(w, err)
		return
	}
	sl, err := h.sess.Slot(i)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sl)
}

type navigateRequest struct {
	Action string `json:"action"`
	Slot   *int   `json:"slot,omitempty"`
}

type navigateResponse struct {
	Moved   bool `json:"moved"`
	Current int  `json:"current"`
}

// Navigate moves the current slot. Next and previous at the ends report
// moved=false rather than failing.
func (h *Handlers) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	before := h.sess.Current()
	var err error
	switch req.Action {
	case "next":
		_, err = h.sess.Next()
	case "previous":
		_, err = h.sess.Previous()
	case "first":
		err = h.sess.GoTo(0)
	case "last":
		err = h.sess.GoTo(h.sess.Len() - 1)
	case "goto":
		if req.Slot == nil {
			writeJSONError(w, "goto requires slot", http.StatusBadRequest)
			return
		}
		err = h.sess.GoTo(*req.Slot)
	default:
		writeJSONError(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	current := h.sess.Current()
	respondJSON(w, http.StatusOK, navigateResponse{Moved: current != before, Current: current})
}

type referencesRequest struct {
	References []media.ManifestEntry `json:"references"`
}

// AddReferences appends references to the open session. File entries are
// refused: the server does not read paths chosen by clients.
func (h *Handlers) AddReferences(w http.ResponseWriter, r *http.Request) {
	var req referencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	refs := make([]media.Reference, 0, len(req.References))
	for i, e := range req.References {
		if e.File != "" {
			writeJSONError(w, fmt.Sprintf("reference %d: file entries are not accepted", i), http.StatusBadRequest)
			return
		}
		ref, err := e.Reference()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		refs = append(refs, ref)
	}
	if err := h.sess.AddReferences(refs); err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, h.sess.Progress())
}

// SetContainer records the renderer's container size.
func (h *Handlers) SetContainer(w http.ResponseWriter, r *http.Request) {
	h.setSize(w, r, h.sess.SetContainer)
}

// SetNatural records the natural size the renderer measured.
func (h *Handlers) SetNatural(w http.ResponseWriter, r *http.Request) {
	h.setSize(w, r, h.sess.SetNaturalSize)
}

func (h *Handlers) setSize(w http.ResponseWriter, r *http.Request, set func(viewport.Size) (viewport.State, error)) {
	var size viewport.Size
	if !decodeJSON(w, r, &size) {
		return
	}
	if size.Width < 0 || size.Height < 0 {
		writeJSONError(w, "size must not be negative", http.StatusBadRequest)
		return
	}
	st, err := set(size)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// ApplyInput feeds one viewport input event and returns the transform.
func (h *Handlers) ApplyInput(w http.ResponseWriter, r *http.Request) {
	var in session.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	st, err := h.sess.Apply(in)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// ResetViewport returns the current slot to fit.
func (h *Handlers) ResetViewport(w http.ResponseWriter, _ *http.Request) {
	st, err := h.sess.ResetViewport()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

type keyRequest struct {
	Key    string `json:"key,omitempty"`
	Intent string `json:"intent,omitempty"`
}

type keyResponse struct {
	Intent  session.Intent `json:"intent"`
	Current int            `json:"current"`
}

// Key dispatches a keyboard key, or an intent named directly. Keys with no
// binding are accepted and ignored.
func (h *Handlers) Key(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	intent := session.IntentForKey(req.Key)
	if req.Intent != "" {
		var ok bool
		if intent, ok = session.ParseIntent(req.Intent); !ok {
			writeJSONError(w, fmt.Sprintf("unknown intent %q", req.Intent), http.StatusBadRequest)
			return
		}
	}
	if err := h.sess.Dispatch(r.Context(), intent); err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, keyResponse{Intent: intent, Current: h.sess.Current()})
}

type autoplayRequest struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
}

type autoplayResponse struct {
	Autoplay bool `json:"autoplay"`
}

// Autoplay starts or stops autoplay. Interval is a Go duration; empty
// selects the session default.
func (h *Handlers) Autoplay(w http.ResponseWriter, r *http.Request) {
	var req autoplayRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !req.Enabled {
		h.sess.StopAutoplay()
		respondJSON(w, http.StatusOK, autoplayResponse{Autoplay: false})
		return
	}

	var interval time.Duration
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil || d <= 0 {
			writeJSONError(w, fmt.Sprintf("invalid interval %q", req.Interval), http.StatusBadRequest)
			return
		}
		interval = d
	}
	if err := h.sess.StartAutoplay(interval); err != nil {
		writeSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, autoplayResponse{Autoplay: h.sess.Autoplaying()})
}
