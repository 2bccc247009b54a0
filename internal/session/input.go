package session

import (
	"context"
	"fmt"

	"media-viewer-engine/internal/viewport"
)

// Intent is a host-independent user action.
type Intent string

const (
	IntentNone           Intent = ""
	IntentNext           Intent = "next"
	IntentPrevious       Intent = "previous"
	IntentFirst          Intent = "first"
	IntentLast           Intent = "last"
	IntentZoomIn         Intent = "zoom_in"
	IntentZoomOut        Intent = "zoom_out"
	IntentReset          Intent = "reset"
	IntentToggleVariant  Intent = "toggle_variant"
	IntentToggleAutoplay Intent = "toggle_autoplay"
	IntentClose          Intent = "close"
)

var keyIntents = map[string]Intent{
	"ArrowRight": IntentNext,
	"Right":      IntentNext,
	"PageDown":   IntentNext,
	"l":          IntentNext,
	"ArrowLeft":  IntentPrevious,
	"Left":       IntentPrevious,
	"PageUp":     IntentPrevious,
	"h":          IntentPrevious,
	"Home":       IntentFirst,
	"End":        IntentLast,
	"+":          IntentZoomIn,
	"=":          IntentZoomIn,
	"-":          IntentZoomOut,
	"_":          IntentZoomOut,
	"0":          IntentReset,
	"v":          IntentToggleVariant,
	"V":          IntentToggleVariant,
	" ":          IntentToggleAutoplay,
	"Space":      IntentToggleAutoplay,
	"p":          IntentToggleAutoplay,
	"Escape":     IntentClose,
	"Esc":        IntentClose,
	"q":          IntentClose,
}

// IntentForKey maps a host key name (DOM KeyboardEvent.key style, or a
// single printable character) to an intent. Unknown keys map to
// IntentNone.
func IntentForKey(key string) Intent {
	return keyIntents[key]
}

// ParseIntent accepts an intent by its string value.
func ParseIntent(s string) (Intent, bool) {
	switch i := Intent(s); i {
	case IntentNext, IntentPrevious, IntentFirst, IntentLast,
		IntentZoomIn, IntentZoomOut, IntentReset,
		IntentToggleVariant, IntentToggleAutoplay, IntentClose:
		return i, true
	}
	return IntentNone, false
}

// Dispatch performs intent.
func (s *Session) Dispatch(ctx context.Context, intent Intent) error {
	switch intent {
	case IntentNone:
		return nil
	case IntentNext:
		_, err := s.Next()
		return err
	case IntentPrevious:
		_, err := s.Previous()
		return err
	case IntentFirst:
		return s.GoTo(0)
	case IntentLast:
		return s.GoTo(s.Len() - 1)
	case IntentZoomIn, IntentZoomOut:
		_, err := s.Apply(Input{Kind: InputKeyZoom, ZoomIn: intent == IntentZoomIn})
		return err
	case IntentReset:
		_, err := s.ResetViewport()
		return err
	case IntentToggleVariant:
		return s.ToggleVariant(ctx, s.Current())
	case IntentToggleAutoplay:
		if s.Autoplaying() {
			s.StopAutoplay()
			return nil
		}
		return s.StartAutoplay(0)
	case IntentClose:
		return s.Close()
	default:
		return fmt.Errorf("%w: intent %q", ErrUnknownInput, intent)
	}
}

// InputKind names a viewport input event.
type InputKind string

const (
	InputWheel       InputKind = "wheel"
	InputClick       InputKind = "click"
	InputKeyZoom     InputKind = "key_zoom"
	InputPanStart    InputKind = "pan_start"
	InputPanMove     InputKind = "pan_move"
	InputPanEnd      InputKind = "pan_end"
	InputSelectStart InputKind = "select_start"
	InputSelectMove  InputKind = "select_move"
	InputSelectEnd   InputKind = "select_end"
	InputPinchStart  InputKind = "pinch_start"
	InputPinchMove   InputKind = "pinch_move"
	InputPinchEnd    InputKind = "pinch_end"
)

// Input is one pointer, wheel or keyboard-zoom event. Positions are
// container coordinates with the origin at the top-left corner; X2/Y2 is
// the second touch point of a pinch.
type Input struct {
	Kind   InputKind `json:"kind"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	X2     float64   `json:"x2,omitempty"`
	Y2     float64   `json:"y2,omitempty"`
	DeltaY float64   `json:"deltaY,omitempty"`
	ZoomIn bool      `json:"zoomIn,omitempty"`
}

// Apply feeds one input event to the viewport of the current slot and
// returns the resulting transform. Observers are notified when the
// transform or the selection rectangle changes.
func (s *Session) Apply(in Input) (viewport.State, error) {
	s.mu.Lock()
	if _, err := s.slotLocked(s.current); err != nil {
		s.mu.Unlock()
		return viewport.State{}, err
	}
	e := s.engine
	before := e.State()
	selBefore, selectingBefore := e.Selection()
	p := viewport.Point{X: in.X, Y: in.Y}
	q := viewport.Point{X: in.X2, Y: in.Y2}

	switch in.Kind {
	case InputWheel:
		e.Wheel(p, in.DeltaY)
	case InputClick:
		e.Click(p)
	case InputKeyZoom:
		e.ZoomStep(in.ZoomIn)
	case InputPanStart:
		e.BeginPan(p)
	case InputPanMove:
		e.MovePan(p)
	case InputPanEnd:
		e.EndPan()
	case InputSelectStart:
		e.BeginSelect(p)
	case InputSelectMove:
		e.MoveSelect(p)
	case InputSelectEnd:
		e.EndSelect()
	case InputPinchStart:
		e.BeginPinch(p, q)
	case InputPinchMove:
		e.MovePinch(p, q)
	case InputPinchEnd:
		e.EndPinch()
	default:
		s.mu.Unlock()
		return before, fmt.Errorf("%w: kind %q", ErrUnknownInput, in.Kind)
	}
	after, current := e.State(), s.current
	selAfter, selectingAfter := e.Selection()
	s.mu.Unlock()

	if after != before || selAfter != selBefore || selectingAfter != selectingBefore {
		s.notify(current)
	}
	return after, nil
}

// ResetViewport returns the current slot to the fit state.
func (s *Session) ResetViewport() (viewport.State, error) {
	s.mu.Lock()
	if _, err := s.slotLocked(s.current); err != nil {
		s.mu.Unlock()
		return viewport.State{}, err
	}
	st := s.engine.Reset(viewport.CauseExplicit)
	current := s.current
	s.mu.Unlock()

	s.notify(current)
	return st, nil
}

// SetContainer records the host's container size, for example after a
// resize or a fullscreen transition. The image point at the centre stays
// put and the transform is re-clamped. It may be called before Open.
func (s *Session) SetContainer(size viewport.Size) (viewport.State, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return viewport.State{}, ErrClosed
	}
	st := s.engine.SetContainer(size)
	current, n := s.current, len(s.slots)
	s.mu.Unlock()

	if n > 0 {
		s.notify(current)
	}
	return st, nil
}
