package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"media-viewer-engine/internal/viewport"
)

func TestIntentForKey(t *testing.T) {
	tests := []struct {
		key  string
		want Intent
	}{
		{"ArrowRight", IntentNext},
		{"l", IntentNext},
		{"ArrowLeft", IntentPrevious},
		{"Home", IntentFirst},
		{"End", IntentLast},
		{"+", IntentZoomIn},
		{"-", IntentZoomOut},
		{"0", IntentReset},
		{"v", IntentToggleVariant},
		{" ", IntentToggleAutoplay},
		{"Escape", IntentClose},
		{"q", IntentClose},
		{"x", IntentNone},
		{"", IntentNone},
	}
	for _, tt := range tests {
		if got := IntentForKey(tt.key); got != tt.want {
			t.Errorf("IntentForKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseIntent(t *testing.T) {
	if got, ok := ParseIntent("toggle_variant"); !ok || got != IntentToggleVariant {
		t.Errorf("ParseIntent(toggle_variant) = %q, %v", got, ok)
	}
	if _, ok := ParseIntent("jump"); ok {
		t.Error("ParseIntent accepted unknown intent")
	}
	if _, ok := ParseIntent(""); ok {
		t.Error("ParseIntent accepted empty intent")
	}
}

func TestDispatch(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	s.SetContainer(viewport.Size{Width: 400, Height: 300})
	if err := s.Open(ids("a", "b", "c"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "loads", func() bool { return s.Progress().Loaded == 3 })
	ctx := context.Background()

	steps := []struct {
		intent  Intent
		current int
	}{
		{IntentLast, 2},
		{IntentPrevious, 1},
		{IntentFirst, 0},
		{IntentNext, 1},
		{IntentNone, 1},
	}
	for _, st := range steps {
		if err := s.Dispatch(ctx, st.intent); err != nil {
			t.Fatalf("Dispatch(%q): %v", st.intent, err)
		}
		if got := s.Current(); got != st.current {
			t.Errorf("after %q current = %d, want %d", st.intent, got, st.current)
		}
	}

	s.Dispatch(ctx, IntentZoomIn)
	if z := s.ViewportState().Zoom; z <= 1 {
		t.Errorf("zoom after zoom_in = %v", z)
	}
	s.Dispatch(ctx, IntentReset)
	if st := s.ViewportState(); st != viewport.Identity() {
		t.Errorf("viewport after reset = %+v", st)
	}
	s.Dispatch(ctx, IntentZoomOut)
	if st := s.ViewportState(); st != viewport.Identity() {
		t.Errorf("zoom_out at floor = %+v, want identity", st)
	}

	s.Dispatch(ctx, IntentToggleAutoplay)
	if !s.Autoplaying() {
		t.Error("toggle_autoplay did not start autoplay")
	}
	s.Dispatch(ctx, IntentToggleAutoplay)
	if s.Autoplaying() {
		t.Error("toggle_autoplay did not stop autoplay")
	}

	if err := s.Dispatch(ctx, IntentToggleVariant); err != nil {
		t.Fatalf("toggle_variant: %v", err)
	}
	if sl, _ := s.Slot(1); sl.Variant != "original" {
		t.Errorf("slot 1 variant = %q", sl.Variant)
	}

	if err := s.Dispatch(ctx, Intent("dance")); !errors.Is(err, ErrUnknownInput) {
		t.Errorf("unknown intent = %v, want ErrUnknownInput", err)
	}
	if err := s.Dispatch(ctx, IntentClose); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state after close = %s", s.State())
	}
}

func TestApplyGestures(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())

	if _, err := s.Apply(Input{Kind: InputWheel, DeltaY: -1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Apply before Open = %v, want ErrClosed", err)
	}

	s.SetContainer(viewport.Size{Width: 400, Height: 300})
	if err := s.Open(ids("a"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "load", func() bool { return s.Progress().Loaded == 1 })

	seq := []Input{
		{Kind: InputSelectStart, X: 100, Y: 75},
		{Kind: InputSelectMove, X: 300, Y: 225},
		{Kind: InputSelectEnd},
	}
	var changes atomic.Int32
	remove := s.OnStateChanged(func(int) { changes.Add(1) })
	for _, in := range seq[:2] {
		if _, err := s.Apply(in); err != nil {
			t.Fatalf("Apply(%s): %v", in.Kind, err)
		}
	}
	want := viewport.Rect{From: viewport.Point{X: 100, Y: 75}, To: viewport.Point{X: 300, Y: 225}}
	if sel := s.Snapshot().Selection; sel == nil || *sel != want {
		t.Errorf("selection while dragging = %v, want %+v", sel, want)
	}
	if n := changes.Load(); n != 2 {
		t.Errorf("observers notified %d times while selecting, want 2", n)
	}
	remove()
	if _, err := s.Apply(seq[2]); err != nil {
		t.Fatalf("Apply(%s): %v", seq[2].Kind, err)
	}
	if sel := s.Snapshot().Selection; sel != nil {
		t.Errorf("selection after release = %+v, want none", *sel)
	}
	if z := s.ViewportState().Zoom; z != 2 {
		t.Fatalf("zoom after selecting the middle half = %v, want 2", z)
	}

	s.Apply(Input{Kind: InputPanStart, X: 200, Y: 150})
	st, _ := s.Apply(Input{Kind: InputPanMove, X: 230, Y: 140})
	s.Apply(Input{Kind: InputPanEnd})
	if st.TranslateX != 30 || st.TranslateY != -10 {
		t.Errorf("pan = (%v,%v), want (30,-10)", st.TranslateX, st.TranslateY)
	}

	s.Apply(Input{Kind: InputPinchStart, X: 150, Y: 150, X2: 250, Y2: 150})
	st, _ = s.Apply(Input{Kind: InputPinchMove, X: 100, Y: 150, X2: 300, Y2: 150})
	s.Apply(Input{Kind: InputPinchEnd})
	if st.Zoom != 4 {
		t.Errorf("pinch zoom = %v, want 4", st.Zoom)
	}

	if _, err := s.Apply(Input{Kind: "spin"}); !errors.Is(err, ErrUnknownInput) {
		t.Errorf("unknown input kind = %v, want ErrUnknownInput", err)
	}
}

func TestSetContainerRecentres(t *testing.T) {
	lib := newLibrary(t)
	s := newTestSession(t, lib, testConfig())
	s.SetContainer(viewport.Size{Width: 400, Height: 300})
	if err := s.Open(ids("a"), 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitFor(t, "load", func() bool { return s.Progress().Loaded == 1 })

	s.Apply(Input{Kind: InputClick, X: 300, Y: 200})
	// Fullscreen: base scale goes from 0.5 to 1.
	st, err := s.SetContainer(viewport.Size{Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("SetContainer: %v", err)
	}
	if st.Zoom != 2 || st.TranslateX != -200 || st.TranslateY != -100 {
		t.Errorf("after resize = %+v, want zoom 2 at (-200,-100)", st)
	}
}
