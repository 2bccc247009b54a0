package cache

import (
	"errors"
	"sync"

	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/metrics"
)

var (
	// ErrExists is returned by Put when the key already has an entry.
	ErrExists = errors.New("cache entry exists")

	// ErrClosed is returned by Put after Teardown.
	ErrClosed = errors.New("cache closed")
)

// Entry is an immutable cache record.
type Entry struct {
	Key      media.SourceKey
	Handle   *Handle
	Metadata *media.SizeMetadata
}

// Cache maps source keys to entries for one session. Safe for concurrent
// use.
type Cache struct {
	mu      sync.RWMutex
	entries map[media.SourceKey]*Entry
	closed  bool
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[media.SourceKey]*Entry)}
}

// Get returns the entry for key.
func (c *Cache) Get(key media.SourceKey) (*Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return e, ok
}

// Put stores e. On success the cache owns the reference the caller held on
// e.Handle. On error ownership stays with the caller.
func (c *Cache) Put(e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, ok := c.entries[e.Key]; ok {
		return ErrExists
	}
	c.entries[e.Key] = e
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a snapshot of all entries in no particular order.
func (c *Cache) Entries() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Teardown releases the cache's reference on every handle, empties the
// cache and rejects further Puts. It returns the number of handles freed
// by this call; handles still referenced elsewhere are freed by their last
// holder.
func (c *Cache) Teardown() int {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[media.SourceKey]*Entry)
	c.closed = true
	c.mu.Unlock()

	freed := 0
	for _, e := range entries {
		if e.Handle.Release() {
			freed++
		}
	}
	metrics.CacheEntries.Set(0)
	return freed
}
