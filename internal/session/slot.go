package session

import (
	"media-viewer-engine/internal/cache"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/thumbnail"
	"media-viewer-engine/internal/viewport"
)

// LoadState is the load progress of one slot.
type LoadState string

const (
	LoadPending LoadState = "pending"
	LoadLoading LoadState = "loading"
	LoadLoaded  LoadState = "loaded"
	LoadFailed  LoadState = "failed"
	LoadInvalid LoadState = "invalid"
)

// State is the lifecycle state of a session.
type State string

const (
	// StateIdle means Open has not been called.
	StateIdle State = "idle"
	// StateActive means at least one slot is loaded or still loading.
	StateActive State = "active"
	// StateEmpty means every slot failed or was invalid.
	StateEmpty State = "empty"
	// StateClosed means the session was torn down.
	StateClosed State = "closed"
)

type toggleMemo struct {
	before viewport.State
	after  viewport.State
}

type slot struct {
	ref     media.Reference
	key     media.SourceKey
	load    LoadState
	entry   *cache.Entry
	err     error
	retries int
	exif    *media.Exif
	toggled *toggleMemo
}

func (s *slot) handle() *cache.Handle {
	if s.entry == nil {
		return nil
	}
	return s.entry.Handle
}

// Slot is a snapshot of one display position.
type Slot struct {
	Index          int                 `json:"index"`
	Name           string              `json:"name"`
	Key            media.SourceKey     `json:"key"`
	Load           LoadState           `json:"load"`
	Variant        media.Quality       `json:"variant,omitempty"`
	ViewToken      string              `json:"viewToken,omitempty"`
	ContentType    string              `json:"contentType,omitempty"`
	ThumbnailToken string              `json:"thumbnailToken,omitempty"`
	Thumbnail      string              `json:"thumbnail"`
	Size           *media.SizeMetadata `json:"size,omitempty"`
	Exif           *media.Exif         `json:"exif,omitempty"`
	Location       *media.LatLng       `json:"location,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// Progress counts slots by load state and thumbnail outcome.
type Progress struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	Loading          int `json:"loading"`
	Loaded           int `json:"loaded"`
	Failed           int `json:"failed"`
	Invalid          int `json:"invalid"`
	Thumbnails       int `json:"thumbnails"`
	ThumbnailsFailed int `json:"thumbnailsFailed"`
}

// Done reports whether every slot reached a terminal load state.
func (p Progress) Done() bool {
	return p.Pending == 0 && p.Loading == 0
}

// Snapshot is the full pull-based view of a session.
type Snapshot struct {
	State     State          `json:"state"`
	Current   int            `json:"current"`
	Autoplay  bool           `json:"autoplay"`
	ViewToken string         `json:"viewToken,omitempty"`
	Viewport  viewport.State `json:"viewport"`
	Container viewport.Size  `json:"container"`
	Natural   viewport.Size  `json:"natural"`
	// Selection is the rectangle being dragged, for the host to outline.
	Selection *viewport.Rect `json:"selection,omitempty"`
	Progress  Progress       `json:"progress"`
	Slots     []Slot         `json:"slots"`
}

// slotSnapshot builds the public view of slot i. Callers hold s.mu.
func (s *Session) slotSnapshot(i int) Slot {
	sl := s.slots[i]
	out := Slot{
		Index:     i,
		Name:      sl.ref.DisplayName(),
		Key:       sl.key,
		Load:      s.loadStateLocked(sl),
		Exif:      sl.exif,
		Thumbnail: thumbnail.StatusUnknown.String(),
	}
	if sl.ref.HasVariants() {
		out.Variant = sl.ref.EffectiveQuality()
	}
	if h := sl.handle(); h != nil {
		out.ViewToken = h.Token()
		out.ContentType = h.ContentType()
		out.Size = sl.entry.Metadata
	}
	if sl.exif != nil {
		out.Location = sl.exif.Location
	}
	if sl.err != nil {
		out.Error = sl.err.Error()
	}
	if s.thumbs != nil {
		st := s.thumbs.State(i)
		out.Thumbnail = st.Status.String()
		out.ThumbnailToken = st.Token()
	}
	return out
}

func (s *Session) loadStateLocked(sl *slot) LoadState {
	if sl.load == LoadPending && s.sched != nil && s.sched.Running(sl.key) {
		return LoadLoading
	}
	return sl.load
}
