package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-viewer-engine/internal/cache"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/memory"
	"media-viewer-engine/internal/metrics"
	"media-viewer-engine/internal/queue"
)

const (
	// DefaultLimit is the default number of concurrent generations.
	DefaultLimit = 4

	// DefaultInterval is the default poll cadence.
	DefaultInterval = 250 * time.Millisecond

	// DefaultTimeout bounds one generation.
	DefaultTimeout = 30 * time.Second
)

// ErrTimeout marks a generation abandoned after Config.Timeout.
var ErrTimeout = errors.New("thumbnail generation timed out")

// Status is the thumbnail state of one slot.
type Status int

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Candidate is a slot whose image is loaded.
type Candidate struct {
	Slot   int
	Handle *cache.Handle
}

// Source lists the current candidates. It is called from the poller and
// must not call back into the pipeline.
type Source func() []Candidate

// Generator turns image bytes into thumbnail bytes. Implementations should
// give up when ctx ends; the pipeline stops waiting for them either way.
type Generator interface {
	Generate(ctx context.Context, data []byte) ([]byte, error)
}

// State is the thumbnail outcome for a slot.
type State struct {
	Status Status
	// Handle is set when Status is StatusDone.
	Handle *cache.Handle
	Err    error
}

// Token returns the thumbnail's view token, or "".
func (s State) Token() string {
	if s.Handle == nil {
		return ""
	}
	return s.Handle.Token()
}

// Config tunes the pipeline.
type Config struct {
	Limit    int
	Interval time.Duration
	// Timeout bounds each generation. A slot whose generation outlives it
	// fails with ErrTimeout.
	Timeout time.Duration
	// Monitor, when set, suppresses polling under memory pressure and
	// holds generations while usage is critical.
	Monitor *memory.Monitor
	// OnDone is called outside the pipeline's lock when a slot finishes.
	OnDone func(slot int, st State)
}

// Pipeline is the thumbnail pipeline for one session.
type Pipeline struct {
	source   Source
	gen      Generator
	registry *cache.Registry
	cfg      Config
	log      logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	states  map[int]*State
	queue   *queue.Queue[int, Candidate]
	active  int
	started bool
	closed  bool
}

// New creates a pipeline. Call Start to begin polling, or drive it with
// Tick.
func New(source Source, gen Generator, reg *cache.Registry, cfg Config) *Pipeline {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		source:   source,
		gen:      gen,
		registry: reg,
		cfg:      cfg,
		log:      logging.For("thumbnail"),
		ctx:      ctx,
		cancel:   cancel,
		states:   make(map[int]*State),
		queue:    queue.New[int, Candidate](),
	}
}

// Start launches the background poller. It is a no-op after the first call
// or after Close.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.poll()
}

func (p *Pipeline) poll() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick scans the source once, queues new candidates and starts work up to
// the limit. It returns the number of slots queued by this scan.
func (p *Pipeline) Tick() int {
	if p.cfg.Monitor.ShouldThrottle() {
		metrics.ThumbnailPollerTicks.WithLabelValues("throttled").Inc()
		return 0
	}
	metrics.ThumbnailPollerTicks.WithLabelValues("scanned").Inc()

	candidates := p.source()

	var failed []int
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	queued := 0
	for _, c := range candidates {
		if c.Handle == nil {
			continue
		}
		if st, ok := p.states[c.Slot]; ok && st.Status != StatusUnknown {
			continue
		}
		if err := c.Handle.Acquire(); err != nil {
			p.states[c.Slot] = &State{Status: StatusFailed, Err: err}
			metrics.ThumbnailsTotal.WithLabelValues("error_released").Inc()
			failed = append(failed, c.Slot)
			continue
		}
		p.states[c.Slot] = &State{Status: StatusQueued}
		p.queue.Push(c.Slot, c, c.Slot)
		queued++
	}
	p.pumpLocked()
	p.mu.Unlock()

	for _, slot := range failed {
		p.notify(slot)
	}
	return queued
}

func (p *Pipeline) pumpLocked() {
	for p.active < p.cfg.Limit {
		_, c, ok := p.queue.Pop()
		if !ok {
			break
		}
		p.active++
		p.wg.Add(1)
		go p.run(c)
	}
	metrics.ThumbnailQueueDepth.Set(float64(p.queue.Len()))
}

func (p *Pipeline) run(c Candidate) {
	defer p.wg.Done()

	thumb, err := p.generate(c)
	c.Handle.Release()

	p.mu.Lock()
	p.active--
	if p.closed {
		p.mu.Unlock()
		return
	}
	st := p.states[c.Slot]
	switch {
	case err == nil:
		key := media.SourceKey("thumb:" + string(c.Handle.Key()))
		*st = State{Status: StatusDone, Handle: p.registry.NewHandle(key, thumb, media.ThumbnailContentType)}
		metrics.ThumbnailsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, media.ErrDecode):
		*st = State{Status: StatusFailed, Err: err}
		metrics.ThumbnailsTotal.WithLabelValues("error_decode").Inc()
	case errors.Is(err, cache.ErrReleased):
		*st = State{Status: StatusFailed, Err: err}
		metrics.ThumbnailsTotal.WithLabelValues("error_released").Inc()
	case errors.Is(err, ErrTimeout):
		*st = State{Status: StatusFailed, Err: err}
		metrics.ThumbnailsTotal.WithLabelValues("error_timeout").Inc()
	default:
		*st = State{Status: StatusFailed, Err: err}
		metrics.ThumbnailsTotal.WithLabelValues("error").Inc()
	}
	if err != nil {
		p.log.Debug("slot %d thumbnail failed: %v", c.Slot, err)
	}
	p.pumpLocked()
	p.mu.Unlock()

	p.notify(c.Slot)
}

// generate runs the generator under the per-item timeout. On timeout or
// Close it returns without waiting; the generator's late result is dropped.
func (p *Pipeline) generate(c Candidate) ([]byte, error) {
	data, err := c.Handle.Bytes()
	if err != nil {
		return nil, err
	}
	if !p.cfg.Monitor.WaitIfPaused(p.ctx) && p.ctx.Err() != nil {
		return nil, p.ctx.Err()
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	type result struct {
		thumb []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		thumb, err := p.gen.Generate(ctx, data)
		done <- result{thumb, err}
	}()

	select {
	case r := <-done:
		return r.thumb, r.err
	case <-ctx.Done():
		if err := p.ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %v", ErrTimeout, p.cfg.Timeout)
	}
}

func (p *Pipeline) notify(slot int) {
	if p.cfg.OnDone == nil {
		return
	}
	p.cfg.OnDone(slot, p.State(slot))
}

// State returns the thumbnail state of slot.
func (p *Pipeline) State(slot int) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.states[slot]; ok {
		return *st
	}
	return State{}
}

// Counts returns the number of slots in each status. Slots the pipeline
// has never seen are not counted.
func (p *Pipeline) Counts() map[Status]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Status]int)
	for _, st := range p.states {
		out[st.Status]++
	}
	return out
}

// Close stops polling, drops queued work, abandons running generations
// and releases every thumbnail handle and every source reference the
// pipeline still holds. Idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	dropped := p.queue.Clear()
	p.mu.Unlock()

	p.cancel()
	for _, c := range dropped {
		c.Handle.Release()
	}
	p.wg.Wait()

	p.mu.Lock()
	states := p.states
	p.states = make(map[int]*State)
	p.mu.Unlock()

	for _, st := range states {
		if st.Handle != nil {
			st.Handle.Release()
		}
	}
	metrics.ThumbnailQueueDepth.Set(0)
}
