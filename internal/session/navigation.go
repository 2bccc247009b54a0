package session

import (
	"context"
	"fmt"
	"time"

	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/metrics"
	"media-viewer-engine/internal/scheduler"
	"media-viewer-engine/internal/variant"
	"media-viewer-engine/internal/viewport"
)

type autoplay struct {
	interval time.Duration
	stop     chan struct{}
}

type followUp struct {
	gen      int
	reqs     []scheduler.Request
	raise    media.SourceKey
	prefetch *media.Reference
	variants *variant.Manager
	slot     int
}

func (s *Session) run(f followUp) {
	if f.prefetch != nil && f.variants != nil {
		f.variants.Prefetch(*f.prefetch)
	}
	s.enqueue(f.gen, f.reqs)
	if f.raise != "" {
		s.prioritize(f.gen, f.raise)
	}
	s.notify(f.slot)
}

// navigateLocked makes target current. The viewport is reset unless
// preserve is set, in which case it is only re-clamped for the new image.
func (s *Session) navigateLocked(target int, action string, preserve bool) followUp {
	s.current = target
	sl := s.slots[target]

	natural := viewport.Size{}
	if h := sl.handle(); h != nil {
		natural = s.naturalSize(h)
	}
	s.engine.SetNatural(natural)
	if !preserve {
		s.engine.Reset(viewport.CauseNavigation)
	}
	s.scheduleExifLocked()
	metrics.NavigationTotal.WithLabelValues(action).Inc()

	f := followUp{gen: s.gen, variants: s.variants, slot: target}
	switch sl.load {
	case LoadLoaded:
		ref := sl.ref
		f.prefetch = &ref
	case LoadPending:
		// Already requested and waited on; only move it to the front.
		f.raise = sl.key
	}
	return f
}

func (s *Session) step(delta int, action string) (bool, error) {
	s.mu.Lock()
	if _, err := s.slotLocked(s.current); err != nil {
		s.mu.Unlock()
		return false, err
	}
	target := s.current + delta
	if target < 0 || target >= len(s.slots) {
		s.mu.Unlock()
		return false, nil
	}
	f := s.navigateLocked(target, action, s.autoplay != nil)
	s.mu.Unlock()

	s.run(f)
	return true, nil
}

// Next moves to the following slot. At the last slot it does nothing and
// returns false.
func (s *Session) Next() (bool, error) {
	return s.step(1, "next")
}

// Previous moves to the preceding slot. At the first slot it does nothing
// and returns false.
func (s *Session) Previous() (bool, error) {
	return s.step(-1, "previous")
}

// GoTo makes slot i current.
func (s *Session) GoTo(i int) error {
	s.mu.Lock()
	if _, err := s.slotLocked(i); err != nil {
		s.mu.Unlock()
		return err
	}
	f := s.navigateLocked(i, "goto", s.autoplay != nil)
	s.mu.Unlock()

	s.run(f)
	return nil
}

// StartAutoplay advances one slot every interval, wrapping from the last
// slot to the first, and keeps the viewport across transitions. A
// non-positive interval selects the configured default. Calling it while
// autoplay runs restarts the timer.
func (s *Session) StartAutoplay(interval time.Duration) error {
	if interval <= 0 {
		interval = s.cfg.AutoplayInterval
	}
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrClosed
	}
	s.stopAutoplayLocked()
	a := &autoplay{interval: interval, stop: make(chan struct{})}
	s.autoplay = a
	gen, current := s.gen, s.current
	s.mu.Unlock()

	go s.runAutoplay(gen, a)
	s.log.Debug("autoplay started every %s", interval)
	s.notify(current)
	return nil
}

// StopAutoplay stops autoplay. It is a no-op when autoplay is not running.
func (s *Session) StopAutoplay() {
	s.mu.Lock()
	running := s.autoplay != nil
	s.stopAutoplayLocked()
	current := s.current
	s.mu.Unlock()

	if running {
		s.notify(current)
	}
}

// Autoplaying reports whether autoplay is running.
func (s *Session) Autoplaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoplay != nil
}

func (s *Session) stopAutoplayLocked() {
	if s.autoplay != nil {
		close(s.autoplay.stop)
		s.autoplay = nil
	}
}

func (s *Session) runAutoplay(gen int, a *autoplay) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			s.advanceAutoplay(gen, a)
		}
	}
}

func (s *Session) advanceAutoplay(gen int, a *autoplay) {
	s.mu.Lock()
	if gen != s.gen || s.autoplay != a || len(s.slots) == 0 {
		s.mu.Unlock()
		return
	}
	f := s.navigateLocked((s.current+1)%len(s.slots), "autoplay", true)
	s.mu.Unlock()

	s.run(f)
}

// ToggleVariant switches slot i between its compressed and original
// renditions. For the current slot the viewport is carried across the
// swap, and toggling twice without touching the viewport restores it
// exactly. It blocks until the other rendition is loaded and pre-decoded
// (or the pre-decode times out).
func (s *Session) ToggleVariant(ctx context.Context, i int) error {
	s.mu.Lock()
	sl, err := s.slotLocked(i)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !sl.ref.HasVariants() {
		s.mu.Unlock()
		return fmt.Errorf("slot %d: %w", i, variant.ErrNoVariant)
	}
	gen, ref, variants := s.gen, sl.ref, s.variants
	before := viewport.Identity()
	restore := before
	if i == s.current {
		before = s.engine.State()
		restore = before
		if sl.toggled != nil && sl.toggled.after == before {
			restore = sl.toggled.before
		}
	}
	s.mu.Unlock()

	swap, err := variants.Toggle(ctx, i, ref, restore)
	if err != nil {
		return fmt.Errorf("slot %d: %w", i, err)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return ErrClosed
	}
	sl = s.slots[i]
	sl.ref = swap.Reference
	sl.key = swap.Reference.Key()
	sl.entry = swap.Entry
	sl.load = LoadLoaded
	sl.err = nil
	sl.exif = s.exifMemo[sl.key]
	if i == s.current {
		natural := swap.Natural
		if natural.Empty() {
			natural = s.naturalSize(swap.Entry.Handle)
		} else {
			s.naturals.Add(swap.Entry.Handle.Token(), natural)
		}
		s.engine.SetNatural(natural)
		after := s.engine.SetState(swap.Viewport)
		sl.toggled = &toggleMemo{before: before, after: after}
		s.scheduleExifLocked()
	}
	key := sl.key
	s.mu.Unlock()

	s.log.Debug("slot %d now shows %s (%s)", i, key, swap.Outcome)
	s.run(followUp{gen: gen, prefetch: &swap.Reference, variants: variants, slot: i})
	return nil
}
