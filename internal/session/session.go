package session

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
	"media-viewer-engine/internal/memory"
	"media-viewer-engine/internal/scheduler"
	"media-viewer-engine/internal/thumbnail"
	"media-viewer-engine/internal/variant"
	"media-viewer-engine/internal/viewport"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrClosed is returned by every operation on a closed or unopened
	// session.
	ErrClosed = errors.New("session closed")

	// ErrNoSlot is returned for slot indexes outside the session.
	ErrNoSlot = errors.New("no such slot")

	// ErrUnknownInput is returned for input kinds and intents the session
	// does not recognise.
	ErrUnknownInput = errors.New("unknown input")
)

// Config tunes a session.
type Config struct {
	Scheduler scheduler.Config

	ThumbnailLimit    int
	ThumbnailInterval time.Duration
	ThumbnailSize     int
	ThumbnailTimeout  time.Duration
	// Monitor, when set, throttles thumbnail polling and holds generations
	// under memory pressure.
	Monitor *memory.Monitor

	Viewport    viewport.Config
	SwapTimeout time.Duration

	// ExifDelay defers the EXIF read after a slot becomes current.
	ExifDelay time.Duration
	// AutoplayInterval is used by StartAutoplay when given no interval.
	AutoplayInterval time.Duration
	// InitRetries is how many times a failed slot is re-requested while
	// no slot has loaded yet.
	InitRetries int
	// NaturalSizeCacheSize bounds the decoded-size memo.
	NaturalSizeCacheSize int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Scheduler:            scheduler.DefaultConfig(),
		ThumbnailLimit:       thumbnail.DefaultLimit,
		ThumbnailInterval:    thumbnail.DefaultInterval,
		ThumbnailSize:        media.DefaultThumbnailSize,
		ThumbnailTimeout:     thumbnail.DefaultTimeout,
		Viewport:             viewport.DefaultConfig(),
		SwapTimeout:          variant.DefaultSwapTimeout,
		ExifDelay:            300 * time.Millisecond,
		AutoplayInterval:     5 * time.Second,
		InitRetries:          2,
		NaturalSizeCacheSize: 256,
	}
}

// Session is one viewing session. All methods are safe for concurrent use.
type Session struct {
	fetcher fetch.Fetcher
	cfg     Config
	log     logging.Logger

	exifGroup singleflight.Group
	exifReads sync.WaitGroup
	naturals  *lru.Cache[string, viewport.Size]

	obsMu     sync.Mutex
	observers map[int]func(slot int)
	nextObs   int

	mu       sync.Mutex
	state    State
	gen      int
	cache    *cache.Cache
	registry *cache.Registry
	sched    *scheduler.Scheduler
	thumbs   *thumbnail.Pipeline
	variants *variant.Manager
	engine   *viewport.Engine
	slots    []*slot
	current  int
	resolved bool
	exifMemo map[media.SourceKey]*media.Exif
	exifTime *time.Timer
	autoplay *autoplay
}

// New creates an idle session that fetches through f.
func New(f fetch.Fetcher, cfg Config) *Session {
	def := DefaultConfig()
	if cfg.ExifDelay <= 0 {
		cfg.ExifDelay = def.ExifDelay
	}
	if cfg.AutoplayInterval <= 0 {
		cfg.AutoplayInterval = def.AutoplayInterval
	}
	if cfg.InitRetries < 0 {
		cfg.InitRetries = 0
	}
	if cfg.NaturalSizeCacheSize <= 0 {
		cfg.NaturalSizeCacheSize = def.NaturalSizeCacheSize
	}
	naturals, _ := lru.New[string, viewport.Size](cfg.NaturalSizeCacheSize)
	return &Session{
		fetcher:   f,
		cfg:       cfg,
		log:       logging.For("session"),
		naturals:  naturals,
		observers: make(map[int]func(int)),
		state:     StateIdle,
		engine:    viewport.NewEngine(cfg.Viewport),
	}
}

// OnStateChanged registers fn to be called, outside any session lock,
// whenever the state of slot changes. Viewport changes are reported for
// the current slot. It returns a function that removes the observer.
func (s *Session) OnStateChanged(fn func(slot int)) (remove func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) notify(slots ...int) {
	s.obsMu.Lock()
	fns := make([]func(int), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, i := range slots {
		for _, fn := range fns {
			fn(i)
		}
	}
}

// Open (re)initialises the session with refs and starts loading them.
// Invalid references become invalid slots; they are not an error. start
// is clamped into range.
func (s *Session) Open(refs []media.Reference, start int) error {
	s.teardown(false)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.cache = cache.New()
	s.registry = cache.NewRegistry()
	s.sched = scheduler.New(s.fetcher, s.cache, s.registry, s.cfg.Scheduler)
	s.variants = variant.New(s.sched, s.cache, variant.Config{SwapTimeout: s.cfg.SwapTimeout})
	s.thumbs = thumbnail.New(s.thumbnailCandidates, media.NewThumbnailer(s.cfg.ThumbnailSize), s.registry, thumbnail.Config{
		Limit:    s.cfg.ThumbnailLimit,
		Interval: s.cfg.ThumbnailInterval,
		Timeout:  s.cfg.ThumbnailTimeout,
		Monitor:  s.cfg.Monitor,
		OnDone: func(slot int, _ thumbnail.State) {
			s.notify(slot)
		},
	})
	s.slots = nil
	s.current = 0
	s.resolved = false
	s.exifMemo = make(map[media.SourceKey]*media.Exif)
	s.state = StateActive

	reqs := s.appendSlotsLocked(refs, 0)
	if len(s.slots) > 0 {
		s.current = max(0, min(start, len(s.slots)-1))
	}
	s.engine.SetNatural(viewport.Size{})
	s.engine.Reset(viewport.CauseNavigation)
	s.promoteCurrentLocked(reqs)
	s.updateEmptyLocked()
	thumbs := s.thumbs
	s.mu.Unlock()

	thumbs.Start()
	s.log.Info("opened session with %d references (start %d)", len(refs), start)
	s.enqueue(gen, reqs)
	s.notify(s.allSlots()...)
	return nil
}

// AddReferences appends refs to the open session without touching
// existing slots. New slots are prioritised as if they started at the
// head of the list, so progressively added items are not starved behind a
// long tail.
func (s *Session) AddReferences(refs []media.Reference) error {
	s.mu.Lock()
	if s.state != StateActive && s.state != StateEmpty {
		s.mu.Unlock()
		return ErrClosed
	}
	gen := s.gen
	first := len(s.slots)
	reqs := s.appendSlotsLocked(refs, first)
	s.updateEmptyLocked()
	s.mu.Unlock()

	s.enqueue(gen, reqs)
	added := make([]int, 0, len(refs))
	for i := range refs {
		added = append(added, first+i)
	}
	s.notify(added...)
	return nil
}

// appendSlotsLocked adds a slot per reference and returns the load
// requests to issue once the lock is released. Priorities are offset by
// boost.
func (s *Session) appendSlotsLocked(refs []media.Reference, boost int) []scheduler.Request {
	var reqs []scheduler.Request
	for _, ref := range refs {
		i := len(s.slots)
		sl := &slot{ref: ref, load: LoadPending}
		s.slots = append(s.slots, sl)
		if err := ref.Validate(); err != nil {
			sl.load = LoadInvalid
			sl.err = err
			s.log.Warn("slot %d: %v", i, err)
			continue
		}
		sl.key = ref.Key()
		reqs = append(reqs, scheduler.Request{Ref: ref, Slot: i, Priority: i - boost})
	}
	return reqs
}

// promoteCurrentLocked moves the current slot's request to the front.
func (s *Session) promoteCurrentLocked(reqs []scheduler.Request) {
	for i := range reqs {
		if reqs[i].Slot == s.current {
			reqs[i].Priority = scheduler.TopPriority
		}
	}
}

func (s *Session) enqueue(gen int, reqs []scheduler.Request) {
	if len(reqs) == 0 {
		return
	}
	s.mu.Lock()
	sched := s.sched
	stale := gen != s.gen
	s.mu.Unlock()
	if sched == nil || stale {
		return
	}
	for _, req := range reqs {
		req.Done = func(r scheduler.Result) { s.onResult(gen, r) }
		if err := sched.Enqueue(req); err != nil && !errors.Is(err, scheduler.ErrClosed) {
			s.log.Warn("slot %d not queued: %v", req.Slot, err)
		}
	}
}

func (s *Session) prioritize(gen int, key media.SourceKey) {
	s.mu.Lock()
	sched := s.sched
	stale := gen != s.gen
	s.mu.Unlock()
	if sched == nil || stale {
		return
	}
	if sched.Prioritize(key, scheduler.TopPriority) {
		s.log.Debug("raised %s to the front of the queue", key)
	}
}

func (s *Session) onResult(gen int, r scheduler.Result) {
	s.mu.Lock()
	if gen != s.gen || r.Slot < 0 || r.Slot >= len(s.slots) {
		s.mu.Unlock()
		return
	}
	sl := s.slots[r.Slot]
	if sl.key != r.Key {
		// The slot moved to another variant while this load was in flight.
		s.mu.Unlock()
		return
	}

	var retry []scheduler.Request
	var prefetch *media.Reference
	switch {
	case r.Err == nil:
		if sl.load == LoadLoaded && sl.entry == r.Entry {
			s.mu.Unlock()
			return
		}
		sl.load = LoadLoaded
		sl.entry = r.Entry
		sl.err = nil
		s.resolved = true
		if s.state == StateEmpty {
			s.state = StateActive
		}
		if r.Slot == s.current {
			s.engine.SetNatural(s.naturalSize(r.Entry.Handle))
			s.scheduleExifLocked()
			ref := sl.ref
			prefetch = &ref
		}
	case errors.Is(r.Err, scheduler.ErrClosed) || errors.Is(r.Err, context.Canceled):
		s.mu.Unlock()
		return
	case sl.load == LoadLoaded:
		// A duplicate request failed after the slot already loaded.
		s.mu.Unlock()
		return
	case !s.resolved && sl.retries < s.cfg.InitRetries:
		sl.retries++
		s.log.Debug("slot %d failed before any slot resolved, retry %d/%d: %v", r.Slot, sl.retries, s.cfg.InitRetries, r.Err)
		retry = append(retry, scheduler.Request{Ref: sl.ref, Slot: r.Slot, Priority: r.Slot})
	default:
		sl.load = LoadFailed
		sl.err = r.Err
		s.log.Warn("slot %d unresolved: %v", r.Slot, r.Err)
		s.updateEmptyLocked()
	}
	variants := s.variants
	s.mu.Unlock()

	if prefetch != nil {
		variants.Prefetch(*prefetch)
	}
	s.enqueue(gen, retry)
	s.notify(r.Slot)
}

// updateEmptyLocked enters StateEmpty when no slot can ever load.
func (s *Session) updateEmptyLocked() {
	if s.state != StateActive && s.state != StateEmpty {
		return
	}
	for _, sl := range s.slots {
		if sl.load != LoadFailed && sl.load != LoadInvalid {
			s.state = StateActive
			return
		}
	}
	if s.state != StateEmpty {
		s.log.Warn("no resolvable references in session of %d slots", len(s.slots))
	}
	s.state = StateEmpty
}

func (s *Session) thumbnailCandidates() []thumbnail.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []thumbnail.Candidate
	for i, sl := range s.slots {
		if sl.load == LoadLoaded && sl.entry != nil {
			out = append(out, thumbnail.Candidate{Slot: i, Handle: sl.entry.Handle})
		}
	}
	return out
}

func (s *Session) allSlots() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.slots))
	for i := range out {
		out[i] = i
	}
	return out
}

func (s *Session) slotLocked(i int) (*slot, error) {
	if s.state != StateActive && s.state != StateEmpty {
		return nil, ErrClosed
	}
	if i < 0 || i >= len(s.slots) {
		return nil, fmt.Errorf("%w: %d", ErrNoSlot, i)
	}
	return s.slots[i], nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of slots.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Current returns the current slot index.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CurrentViewToken returns the view token of the current slot, or "" while
// it is not loaded.
func (s *Session) CurrentViewToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= len(s.slots) {
		return ""
	}
	if h := s.slots[s.current].handle(); h != nil {
		return h.Token()
	}
	return ""
}

// ViewportState returns the current transform.
func (s *Session) ViewportState() viewport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

// Slot returns a snapshot of slot i.
func (s *Session) Slot(i int) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.slotLocked(i); err != nil {
		return Slot{}, err
	}
	return s.slotSnapshot(i), nil
}

// Slots returns a snapshot of every slot.
func (s *Session) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Slot, len(s.slots))
	for i := range s.slots {
		out[i] = s.slotSnapshot(i)
	}
	return out
}

// Progress counts slots by state.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() Progress {
	p := Progress{Total: len(s.slots)}
	for _, sl := range s.slots {
		switch s.loadStateLocked(sl) {
		case LoadPending:
			p.Pending++
		case LoadLoading:
			p.Loading++
		case LoadLoaded:
			p.Loaded++
		case LoadFailed:
			p.Failed++
		case LoadInvalid:
			p.Invalid++
		}
	}
	if s.thumbs != nil {
		counts := s.thumbs.Counts()
		p.Thumbnails = counts[thumbnail.StatusDone]
		p.ThumbnailsFailed = counts[thumbnail.StatusFailed]
	}
	return p
}

// Snapshot returns the whole session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:     s.state,
		Current:   s.current,
		Autoplay:  s.autoplay != nil,
		Viewport:  s.engine.State(),
		Container: s.engine.Container(),
		Natural:   s.engine.Natural(),
		Progress:  s.progressLocked(),
		Slots:     make([]Slot, len(s.slots)),
	}
	for i := range s.slots {
		snap.Slots[i] = s.slotSnapshot(i)
	}
	if s.current < len(s.slots) {
		snap.ViewToken = snap.Slots[s.current].ViewToken
	}
	if r, ok := s.engine.Selection(); ok {
		snap.Selection = &r
	}
	return snap
}

// Lookup resolves a view token to its handle, for renderers that serve
// handle bytes.
func (s *Session) Lookup(token string) (*cache.Handle, bool) {
	s.mu.Lock()
	reg := s.registry
	s.mu.Unlock()
	if reg == nil {
		return nil, false
	}
	return reg.Lookup(token)
}

// SchedulerStats returns load scheduler counters.
func (s *Session) SchedulerStats() scheduler.Stats {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched == nil {
		return scheduler.Stats{}
	}
	return sched.Stats()
}

// MemoryPressure reports the memory monitor's last usage ratio and whether
// thumbnail work is paused. Both are zero without a monitor.
func (s *Session) MemoryPressure() (usage float64, paused bool) {
	return s.cfg.Monitor.Usage(), s.cfg.Monitor.IsPaused()
}

// Close tears the session down: it stops autoplay and timers, cancels
// outstanding fetches, stops the thumbnail pipeline and releases every
// handle. Further calls return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()
	return s.teardown(true)
}

// teardown stops and releases the current components. With final set
// the session moves to StateClosed, otherwise back to StateIdle.
func (s *Session) teardown(final bool) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	s.stopAutoplayLocked()
	if s.exifTime != nil {
		s.exifTime.Stop()
		s.exifTime = nil
	}
	sched, thumbs, c, reg := s.sched, s.thumbs, s.cache, s.registry
	s.sched, s.thumbs, s.variants, s.cache, s.registry = nil, nil, nil, nil, nil
	s.slots = nil
	s.current = 0
	if final {
		s.state = StateClosed
	} else {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if sched == nil {
		return nil
	}

	var g errgroup.Group
	g.Go(func() error {
		sched.Close()
		return nil
	})
	g.Go(func() error {
		thumbs.Close()
		return nil
	})
	err := g.Wait()
	s.exifReads.Wait()
	freed := c.Teardown()
	s.naturals.Purge()

	if n := reg.Len(); n != 0 {
		s.log.Debug("%d handles still held after teardown", n)
	}
	s.log.Info("session torn down, %d handles released", freed)
	return err
}
