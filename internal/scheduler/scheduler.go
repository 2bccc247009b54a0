package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-viewer-engine/internal/cache"
	"media-viewer-engine/internal/fetch"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/metrics"
	"media-viewer-engine/internal/queue"
)

const (
	// DefaultLimit is the default number of concurrent fetches.
	DefaultLimit = 48

	// DefaultFetchTimeout bounds a single fetch.
	DefaultFetchTimeout = 60 * time.Second

	// TopPriority sorts ahead of any slot index.
	TopPriority = -1 << 30

	// NoSlot marks requests made for the cache alone, such as prefetches.
	NoSlot = -1
)

// ErrClosed is returned by Enqueue after Close, and delivered to requests
// that were still queued when Close was called.
var ErrClosed = errors.New("scheduler closed")

// Result is delivered to each request's Done callback.
type Result struct {
	Key  media.SourceKey
	Slot int
	// Entry is set on success.
	Entry *cache.Entry
	Err   error
	// Cached is true when the entry was already cached at Enqueue time.
	Cached bool
}

// Request asks for one reference on behalf of one slot.
type Request struct {
	Ref      media.Reference
	Slot     int
	Priority int
	// Done may be nil.
	Done func(Result)
}

// Config tunes the scheduler.
type Config struct {
	Limit        int
	FetchTimeout time.Duration
}

// DefaultConfig returns DefaultLimit and DefaultFetchTimeout.
func DefaultConfig() Config {
	return Config{Limit: DefaultLimit, FetchTimeout: DefaultFetchTimeout}
}

// Stats is a point-in-time view of scheduler activity.
type Stats struct {
	Active     int
	Peak       int
	Queued     int
	Dispatched int
	Attached   int
}

type waiter struct {
	slot int
	done func(Result)
}

type job struct {
	key      media.SourceKey
	ref      media.Reference
	waiters  []waiter
	finished bool
}

// Scheduler is the load scheduler. Create one per session with New.
type Scheduler struct {
	fetcher  fetch.Fetcher
	cache    *cache.Cache
	registry *cache.Registry
	cfg      Config
	log      logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queue   *queue.Queue[media.SourceKey, *job]
	pending map[media.SourceKey]*job
	active  int
	stats   Stats
	closed  bool
}

// New creates a scheduler that stores results in c, wrapping payloads in
// handles from reg.
func New(f fetch.Fetcher, c *cache.Cache, reg *cache.Registry, cfg Config) *Scheduler {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		fetcher:  f,
		cache:    c,
		registry: reg,
		cfg:      cfg,
		log:      logging.For("scheduler"),
		ctx:      ctx,
		cancel:   cancel,
		queue:    queue.New[media.SourceKey, *job](),
		pending:  make(map[media.SourceKey]*job),
	}
}

// Limit returns the concurrency ceiling.
func (s *Scheduler) Limit() int {
	return s.cfg.Limit
}

// Enqueue submits a request. It returns an error wrapping
// media.ErrInvalidReference for invalid references, and ErrClosed after
// Close; in both cases Done is never called.
func (s *Scheduler) Enqueue(req Request) error {
	if err := req.Ref.Validate(); err != nil {
		return err
	}
	key := req.Ref.Key()
	w := waiter{slot: req.Slot, done: req.Done}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if j, ok := s.pending[key]; ok {
		j.waiters = append(j.waiters, w)
		if s.queue.Contains(key) {
			s.queue.Push(key, j, req.Priority)
		}
		s.stats.Attached++
		s.mu.Unlock()
		metrics.FetchDedupTotal.Inc()
		s.log.Debug("slot %d attached to pending %s", req.Slot, key)
		return nil
	}

	if entry, ok := s.cache.Get(key); ok {
		s.mu.Unlock()
		deliver([]waiter{w}, Result{Key: key, Entry: entry, Cached: true})
		return nil
	}

	j := &job{key: key, ref: req.Ref, waiters: []waiter{w}}
	s.pending[key] = j
	s.queue.Push(key, j, req.Priority)
	s.pumpLocked()
	s.mu.Unlock()
	return nil
}

// pumpLocked starts queued jobs while capacity remains.
func (s *Scheduler) pumpLocked() {
	for s.active < s.cfg.Limit {
		_, j, ok := s.queue.Pop()
		if !ok {
			break
		}
		s.active++
		s.stats.Dispatched++
		if s.active > s.stats.Peak {
			s.stats.Peak = s.active
			metrics.FetchPeakInFlight.Set(float64(s.stats.Peak))
		}
		s.wg.Add(1)
		go s.run(j)
	}
	metrics.FetchesInFlight.Set(float64(s.active))
	metrics.LoadQueueDepth.Set(float64(s.queue.Len()))
}

func (s *Scheduler) run(j *job) {
	defer s.wg.Done()

	kind := string(j.ref.Kind())
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.FetchTimeout)
	start := time.Now()
	payload, err := s.fetcher.Fetch(ctx, j.ref)
	cancel()
	metrics.FetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.FetchesTotal.WithLabelValues(kind, "success").Inc()
	case errors.Is(err, context.Canceled):
		metrics.FetchesTotal.WithLabelValues(kind, "canceled").Inc()
	default:
		metrics.FetchesTotal.WithLabelValues(kind, "error").Inc()
		s.log.Warn("fetch %s failed: %v", j.key, err)
	}

	s.complete(j, payload, err)
}

// complete installs the result and notifies waiters until none remain.
func (s *Scheduler) complete(j *job, payload *fetch.Payload, err error) {
	var entry *cache.Entry
	if err == nil {
		h := s.registry.NewHandle(j.key, payload.Data, payload.ContentType)
		entry = &cache.Entry{
			Key:      j.key,
			Handle:   h,
			Metadata: media.ParseSizeMetadata(payload.Meta),
		}
	}

	s.mu.Lock()
	if entry != nil {
		if putErr := s.cache.Put(entry); putErr != nil {
			entry.Handle.Release()
			entry = nil
			err = fmt.Errorf("%w: %v", ErrClosed, putErr)
		}
	}
	j.finished = true
	if err != nil {
		// Failures are not sticky: drop the key now so the next request
		// fetches again.
		delete(s.pending, j.key)
	}
	s.active--
	s.pumpLocked()
	s.mu.Unlock()

	result := Result{Key: j.key, Entry: entry, Err: err}
	for {
		s.mu.Lock()
		waiters := j.waiters
		j.waiters = nil
		if len(waiters) == 0 {
			if s.pending[j.key] == j {
				delete(s.pending, j.key)
			}
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		deliver(waiters, result)
	}
}

func deliver(waiters []waiter, r Result) {
	for _, w := range waiters {
		if w.done == nil {
			continue
		}
		r.Slot = w.slot
		w.done(r)
	}
}

// Prioritize raises a still-queued key to priority without adding a
// waiter. It reports whether the key was queued.
func (s *Scheduler) Prioritize(key media.SourceKey, priority int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.pending[key]
	if !ok || s.closed || !s.queue.Contains(key) {
		return false
	}
	s.queue.Push(key, j, priority)
	return true
}

// Pending reports whether key is queued or being fetched.
func (s *Scheduler) Pending(key media.SourceKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.pending[key]
	return ok && !j.finished
}

// Running reports whether key has been dispatched and not yet completed.
func (s *Scheduler) Running(key media.SourceKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.pending[key]
	return ok && !j.finished && !s.queue.Contains(key)
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Active = s.active
	st.Queued = s.queue.Len()
	return st
}

// Close cancels running fetches, drops queued requests (their waiters get
// ErrClosed) and waits for every running fetch to finish delivering. A
// payload that arrives after Close is released rather than cached if the
// cache has been torn down. Close is idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := s.queue.Clear()
	for _, j := range dropped {
		delete(s.pending, j.key)
	}
	metrics.LoadQueueDepth.Set(0)
	s.mu.Unlock()

	s.cancel()
	for _, j := range dropped {
		deliver(j.waiters, Result{Key: j.key, Err: ErrClosed})
	}
	s.wg.Wait()

	st := s.Stats()
	s.log.Debug("closed after %d dispatches (peak %d in flight)", st.Dispatched, st.Peak)
}
