// Package variant switches a slot between its compressed and original
// renditions without losing the viewport.
//
// Toggle resolves the alternate rendition through the load scheduler at top
// priority (or straight from the cache), pre-decodes it off-screen and
// hands back everything the caller needs to swap it in: the new reference
// and cache entry, its decoded size and the viewport to restore. Swapping
// is left to the caller, who owns the slot and the viewport engine.
package variant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-viewer-engine/internal/cache"
	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/metrics"
	"media-viewer-engine/internal/scheduler"
	"media-viewer-engine/internal/viewport"
)

// DefaultSwapTimeout bounds the pre-decode wait.
const DefaultSwapTimeout = 2 * time.Second

// PrefetchPriority sorts background prefetches behind every slot.
const PrefetchPriority = 1 << 30

var (
	// ErrSwapTimeout is logged when pre-decode does not finish in time.
	// The swap goes ahead regardless.
	ErrSwapTimeout = errors.New("variant pre-decode timed out")

	// ErrNoVariant is returned for references without renditions, such as
	// materialized blobs.
	ErrNoVariant = errors.New("reference has no variants")
)

// Loader is the part of the load scheduler the manager needs.
type Loader interface {
	Enqueue(req scheduler.Request) error
}

// Lookup is the part of the resource cache the manager needs.
type Lookup interface {
	Get(key media.SourceKey) (*cache.Entry, bool)
}

// Decoder fully decodes a handle and reports its natural size.
type Decoder func(ctx context.Context, h *cache.Handle) (viewport.Size, error)

// DecodeHandle is the default Decoder. It decodes the whole image, not
// just its header, so the caller can swap without a blank frame.
func DecodeHandle(ctx context.Context, h *cache.Handle) (viewport.Size, error) {
	data, err := h.Bytes()
	if err != nil {
		return viewport.Size{}, err
	}
	if err := ctx.Err(); err != nil {
		return viewport.Size{}, err
	}
	img, err := media.Decode(data)
	if err != nil {
		return viewport.Size{}, err
	}
	b := img.Bounds()
	return viewport.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}, nil
}

// Config tunes the manager.
type Config struct {
	SwapTimeout time.Duration
	Decode      Decoder
}

// Swap describes a completed toggle.
type Swap struct {
	Slot      int
	Reference media.Reference
	Entry     *cache.Entry
	// Natural is the decoded size, empty if pre-decode failed or timed out.
	Natural viewport.Size
	// Viewport is the transform to restore; the caller re-clamps it.
	Viewport viewport.State
	// Outcome is "cached" or "fetched", or "timeout" when pre-decode did
	// not confirm in time.
	Outcome string
}

// Manager performs variant toggles for one session.
type Manager struct {
	loader Loader
	cache  Lookup
	cfg    Config
	log    logging.Logger
}

// New creates a manager.
func New(loader Loader, c Lookup, cfg Config) *Manager {
	if cfg.SwapTimeout <= 0 {
		cfg.SwapTimeout = DefaultSwapTimeout
	}
	if cfg.Decode == nil {
		cfg.Decode = DecodeHandle
	}
	return &Manager{loader: loader, cache: c, cfg: cfg, log: logging.For("variant")}
}

// Alternate returns ref at the other quality.
func Alternate(ref media.Reference) (media.Reference, error) {
	if !ref.HasVariants() {
		return ref, ErrNoVariant
	}
	return ref.WithQuality(ref.EffectiveQuality().Toggle()), nil
}

// Toggle resolves the other rendition of ref for slot and pre-decodes it.
// saved is returned unchanged in the Swap for the caller to restore. It
// blocks until the rendition is available, ctx is done or the load fails.
func (m *Manager) Toggle(ctx context.Context, slot int, ref media.Reference, saved viewport.State) (*Swap, error) {
	alt, err := Alternate(ref)
	if err != nil {
		return nil, err
	}

	swap := &Swap{Slot: slot, Reference: alt, Viewport: saved, Outcome: "cached"}
	entry, ok := m.cache.Get(alt.Key())
	if !ok {
		entry, err = m.load(ctx, slot, alt)
		if err != nil {
			metrics.VariantSwapsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		swap.Outcome = "fetched"
	}
	swap.Entry = entry

	natural, err := m.predecode(ctx, entry.Handle)
	switch {
	case errors.Is(err, ErrSwapTimeout):
		m.log.Warn("slot %d: %v after %s, swapping anyway", slot, err, m.cfg.SwapTimeout)
		swap.Outcome = "timeout"
	case err != nil:
		m.log.Debug("slot %d: pre-decode of %s failed: %v", slot, alt.Key(), err)
	default:
		swap.Natural = natural
	}
	metrics.VariantSwapsTotal.WithLabelValues(swap.Outcome).Inc()
	return swap, nil
}

func (m *Manager) load(ctx context.Context, slot int, ref media.Reference) (*cache.Entry, error) {
	results := make(chan scheduler.Result, 1)
	err := m.loader.Enqueue(scheduler.Request{
		Ref:      ref,
		Slot:     slot,
		Priority: scheduler.TopPriority,
		Done:     func(r scheduler.Result) { results <- r },
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-results:
		if r.Err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ref.Key(), r.Err)
		}
		return r.Entry, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) predecode(ctx context.Context, h *cache.Handle) (viewport.Size, error) {
	// The decode goroutine holds its own reference so a teardown during
	// the wait cannot free the bytes under it.
	if err := h.Acquire(); err != nil {
		return viewport.Size{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SwapTimeout)
	defer cancel()

	type decoded struct {
		size viewport.Size
		err  error
	}
	done := make(chan decoded, 1)
	go func() {
		defer h.Release()
		size, err := m.cfg.Decode(ctx, h)
		done <- decoded{size, err}
	}()

	select {
	case d := <-done:
		return d.size, d.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return viewport.Size{}, ErrSwapTimeout
		}
		return viewport.Size{}, ctx.Err()
	}
}

// Prefetch loads the original rendition of ref in the background when ref
// is compressed, so a later toggle is served from the cache. It is a no-op
// for other references.
func (m *Manager) Prefetch(ref media.Reference) {
	if !ref.HasVariants() || ref.EffectiveQuality() != media.QualityCompressed {
		return
	}
	orig := ref.WithQuality(media.QualityOriginal)
	if _, ok := m.cache.Get(orig.Key()); ok {
		return
	}
	err := m.loader.Enqueue(scheduler.Request{
		Ref:      orig,
		Slot:     scheduler.NoSlot,
		Priority: PrefetchPriority,
	})
	if err != nil && !errors.Is(err, scheduler.ErrClosed) {
		m.log.Debug("prefetch of %s not queued: %v", orig.Key(), err)
	}
}
