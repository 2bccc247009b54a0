package session

import (
	"errors"
	"time"

	"media-viewer-engine/internal/cache"
	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/metrics"
	"media-viewer-engine/internal/viewport"
)

// naturalSize returns the displayed pixel size of the image behind h, read
// from the image header and EXIF orientation once per view token. Undecodable bytes yield an
// empty size, which the viewport treats as not yet known.
func (s *Session) naturalSize(h *cache.Handle) viewport.Size {
	if size, ok := s.naturals.Get(h.Token()); ok {
		return size
	}
	data, err := h.Bytes()
	if err != nil {
		return viewport.Size{}
	}
	dims, err := media.DisplayDimensions(data)
	if err != nil {
		s.log.Debug("natural size of %s unavailable: %v", h.Key(), err)
		return viewport.Size{}
	}
	size := viewport.Size{Width: float64(dims.Width), Height: float64(dims.Height)}
	s.naturals.Add(h.Token(), size)
	return size
}

// SetNaturalSize records the natural size of the current image as measured
// by the host, overriding the size read from the image header.
func (s *Session) SetNaturalSize(size viewport.Size) (viewport.State, error) {
	s.mu.Lock()
	sl, err := s.slotLocked(s.current)
	if err != nil {
		s.mu.Unlock()
		return viewport.State{}, err
	}
	if h := sl.handle(); h != nil && !size.Empty() {
		s.naturals.Add(h.Token(), size)
	}
	st := s.engine.SetNatural(size)
	current := s.current
	s.mu.Unlock()

	s.notify(current)
	return st, nil
}

// scheduleExifLocked arms the deferred EXIF read for the current slot,
// replacing any read armed for a previous slot.
func (s *Session) scheduleExifLocked() {
	if s.exifTime != nil {
		s.exifTime.Stop()
		s.exifTime = nil
	}
	if s.current >= len(s.slots) {
		return
	}
	sl := s.slots[s.current]
	if sl.load != LoadLoaded {
		return
	}
	if x, ok := s.exifMemo[sl.key]; ok {
		sl.exif = x
		return
	}
	gen, idx := s.gen, s.current
	s.exifTime = time.AfterFunc(s.cfg.ExifDelay, func() {
		s.readExif(gen, idx)
	})
}

func (s *Session) readExif(gen, idx int) {
	s.mu.Lock()
	if gen != s.gen || idx >= len(s.slots) {
		s.mu.Unlock()
		return
	}
	sl := s.slots[idx]
	h := sl.handle()
	if sl.load != LoadLoaded || h == nil {
		s.mu.Unlock()
		return
	}
	key := sl.key
	if _, ok := s.exifMemo[key]; ok {
		s.mu.Unlock()
		return
	}
	if err := h.Acquire(); err != nil {
		s.mu.Unlock()
		return
	}
	// Registered under s.mu, where teardown bumps gen, so teardown waits
	// for every read that passed the gen check.
	s.exifReads.Add(1)
	defer s.exifReads.Done()
	s.mu.Unlock()

	v, err, _ := s.exifGroup.Do(string(key), func() (any, error) {
		data, err := h.Bytes()
		if err != nil {
			return nil, err
		}
		return media.ExtractExif(data)
	})
	h.Release()

	var x *media.Exif
	switch {
	case err == nil:
		x = v.(*media.Exif)
		metrics.ExifExtractionsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, media.ErrNoExif):
		metrics.ExifExtractionsTotal.WithLabelValues("absent").Inc()
	default:
		metrics.ExifExtractionsTotal.WithLabelValues("error").Inc()
		s.log.Debug("exif read for %s failed: %v", key, err)
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.exifMemo[key] = x
	var changed []int
	for i, other := range s.slots {
		if other.key == key {
			other.exif = x
			changed = append(changed, i)
		}
	}
	s.mu.Unlock()

	s.notify(changed...)
}
