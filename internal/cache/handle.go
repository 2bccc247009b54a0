package cache

import (
	"errors"
	"sync"

	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/metrics"

	"github.com/google/uuid"
)

// TokenPrefix starts every view token.
const TokenPrefix = "/blob/"

// ErrReleased is returned when a handle is used after its last reference
// was released.
var ErrReleased = errors.New("handle released")

// Handle is a reference-counted image payload with a view token.
type Handle struct {
	token       string
	key         media.SourceKey
	contentType string
	size        int
	registry    *Registry

	mu       sync.Mutex
	data     []byte
	refs     int
	released bool
}

// Token returns the view token.
func (h *Handle) Token() string { return h.token }

// Key returns the source key the payload was fetched for.
func (h *Handle) Key() media.SourceKey { return h.key }

// ContentType returns the payload's MIME type.
func (h *Handle) ContentType() string { return h.contentType }

// Size returns the payload length in bytes. It stays valid after release.
func (h *Handle) Size() int { return h.size }

// Bytes returns the payload. Callers must not modify it.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrReleased
	}
	return h.data, nil
}

// Acquire adds a reference.
func (h *Handle) Acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrReleased
	}
	h.refs++
	return nil
}

// Release drops a reference. The call that drops the last one frees the
// payload, unregisters the token and returns true. Releasing a freed
// handle is a no-op.
func (h *Handle) Release() bool {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return false
	}
	h.refs--
	if h.refs > 0 {
		h.mu.Unlock()
		return false
	}
	h.released = true
	h.data = nil
	h.mu.Unlock()

	if h.registry != nil {
		h.registry.remove(h.token)
	}
	metrics.HandlesLive.Dec()
	metrics.HandleReleases.Inc()
	return true
}

// Refs returns the current reference count.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Released reports whether the payload has been freed.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Registry maps view tokens to live handles.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// NewHandle wraps data in a handle holding one reference, owned by the
// caller, and registers its token.
func (r *Registry) NewHandle(key media.SourceKey, data []byte, contentType string) *Handle {
	h := &Handle{
		token:       TokenPrefix + uuid.NewString(),
		key:         key,
		contentType: contentType,
		size:        len(data),
		registry:    r,
		data:        data,
		refs:        1,
	}

	r.mu.Lock()
	r.handles[h.token] = h
	r.mu.Unlock()

	metrics.HandlesLive.Inc()
	return h
}

// Lookup returns the live handle for token.
func (r *Registry) Lookup(token string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[token]
	return h, ok
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

func (r *Registry) remove(token string) {
	r.mu.Lock()
	delete(r.handles, token)
	r.mu.Unlock()
}
