package viewport

import (
	"math"
	"time"

	"media-viewer-engine/internal/metrics"
)

// Reset causes, used as metric labels.
const (
	CauseNavigation  = "navigation"
	CauseWheel       = "wheel"
	CauseDoubleClick = "double_click"
	CauseExplicit    = "explicit"
)

// Config tunes gesture handling.
type Config struct {
	MaxZoom float64
	Wheel   WheelConfig

	// ClickStep is added to zoom by a single click.
	ClickStep float64
	// DoubleClickWindow is the longest gap between two clicks that still
	// counts as a double click.
	DoubleClickWindow time.Duration
	// DoubleClickFactor multiplies the pre-click zoom on double click.
	DoubleClickFactor float64

	// ResetEpsilon is how close to the floor a zoom-out must land to
	// snap to a full reset.
	ResetEpsilon float64
	// MinSelection is the smallest rectangle side, in pixels, that
	// triggers a rectangle zoom.
	MinSelection float64
}

// DefaultConfig returns the gesture tuning used by the viewer.
func DefaultConfig() Config {
	return Config{
		MaxZoom: 10,
		Wheel: WheelConfig{
			BaseStep: 0.1,
			Slope:    0.15,
			MinStep:  0.05,
			MaxStep:  1.0,
		},
		ClickStep:         1.0,
		DoubleClickWindow: 300 * time.Millisecond,
		DoubleClickFactor: 0.5,
		ResetEpsilon:      0.01,
		MinSelection:      10,
	}
}

type gesture int

const (
	gestureNone gesture = iota
	gesturePan
	gestureSelect
	gesturePinch
)

// Engine tracks the viewport of the image on display and applies gesture
// input to it. Pointer positions passed to its methods are container
// coordinates with the origin at the top-left corner.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	cfg Config
	now func() time.Time

	state     State
	container Size
	natural   Size

	clickArmed  bool
	clickAt     time.Time
	clickBefore State

	mode       gesture
	panLast    Point
	selection  Rect
	pinchZoom  float64
	pinchStart float64
}

// NewEngine returns an engine in the reset state.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = def.MaxZoom
	}
	if cfg.Wheel == (WheelConfig{}) {
		cfg.Wheel = def.Wheel
	}
	if cfg.ClickStep <= 0 {
		cfg.ClickStep = def.ClickStep
	}
	if cfg.DoubleClickWindow <= 0 {
		cfg.DoubleClickWindow = def.DoubleClickWindow
	}
	if cfg.DoubleClickFactor <= 0 {
		cfg.DoubleClickFactor = def.DoubleClickFactor
	}
	if cfg.ResetEpsilon <= 0 {
		cfg.ResetEpsilon = def.ResetEpsilon
	}
	if cfg.MinSelection <= 0 {
		cfg.MinSelection = def.MinSelection
	}
	return &Engine{cfg: cfg, now: time.Now, state: Identity()}
}

// State returns the current transform.
func (e *Engine) State() State { return e.state }

// Container returns the last container size supplied by the host.
func (e *Engine) Container() Size { return e.container }

// Natural returns the natural size of the image on display.
func (e *Engine) Natural() Size { return e.natural }

// Floor returns the zoom floor for the current sizes.
func (e *Engine) Floor() float64 { return Floor(e.container, e.natural) }

// Degenerate reports whether a size is still unknown.
func (e *Engine) Degenerate() bool { return degenerate(e.container, e.natural) }

// Zoomed reports whether zoom is above the floor.
func (e *Engine) Zoomed() bool {
	return !e.Degenerate() && e.state.Zoom > e.Floor()+e.cfg.ResetEpsilon
}

// SetState installs s after clamping it and returns what was installed.
func (e *Engine) SetState(s State) State {
	e.state = e.clamp(s)
	return e.state
}

// Reset returns to zoom = Floor with no translation and abandons any
// gesture in progress.
func (e *Engine) Reset(cause string) State {
	e.mode = gestureNone
	e.clickArmed = false
	e.state = State{Zoom: e.Floor()}
	metrics.ViewportResetsTotal.WithLabelValues(cause).Inc()
	return e.state
}

// SetNatural records the natural size of the image on display and
// re-clamps the current transform against it.
func (e *Engine) SetNatural(n Size) State {
	e.natural = n
	e.state = e.clamp(e.state)
	return e.state
}

// SetContainer records a new container size. The image point at the
// container centre stays at the centre, then the transform is re-clamped.
func (e *Engine) SetContainer(c Size) State {
	if !degenerate(e.container, e.natural) && !degenerate(c, e.natural) {
		ratio := BaseScale(c, e.natural) / BaseScale(e.container, e.natural)
		e.state.TranslateX *= ratio
		e.state.TranslateY *= ratio
	}
	e.container = c
	e.clickArmed = false
	e.state = e.clamp(e.state)
	return e.state
}

func (e *Engine) clamp(s State) State {
	return Clamp(s, e.container, e.natural, e.cfg.MaxZoom)
}

func (e *Engine) limitZoom(z float64) float64 {
	return math.Max(e.Floor(), math.Min(e.cfg.MaxZoom, z))
}

// centered converts a top-left container position to centre-relative.
func (e *Engine) centered(p Point) Point {
	return Point{p.X - e.container.Width/2, p.Y - e.container.Height/2}
}

// Wheel applies one wheel tick at pointer position at. A positive deltaY
// zooms out, a negative one zooms in. Zooming out to the floor resets.
func (e *Engine) Wheel(at Point, deltaY float64) State {
	if e.Degenerate() {
		e.state = Identity()
		return e.state
	}
	if deltaY == 0 {
		return e.state
	}
	step := WheelStep(e.state.Zoom, e.cfg.Wheel)
	zoom := e.state.Zoom + step
	if deltaY > 0 {
		zoom = e.state.Zoom - step
	}
	if zoom <= e.Floor()+e.cfg.ResetEpsilon {
		return e.Reset(CauseWheel)
	}
	zoom = math.Min(zoom, e.cfg.MaxZoom)
	e.state = e.clamp(ZoomOnPoint(e.state, zoom, e.centered(at)))
	return e.state
}

// ZoomStep applies one wheel step anchored at the container centre, as
// used by the keyboard.
func (e *Engine) ZoomStep(in bool) State {
	delta := 1.0
	if in {
		delta = -1
	}
	return e.Wheel(Point{e.container.Width / 2, e.container.Height / 2}, delta)
}

// Click zooms in by ClickStep at the click position. A second click within
// DoubleClickWindow restores the pre-click transform and then zooms out by
// DoubleClickFactor around the centre.
func (e *Engine) Click(at Point) State {
	if e.Degenerate() {
		e.state = Identity()
		return e.state
	}
	now := e.now()
	if e.clickArmed && now.Sub(e.clickAt) <= e.cfg.DoubleClickWindow {
		e.clickArmed = false
		before := e.clickBefore
		zoom := before.Zoom * e.cfg.DoubleClickFactor
		if zoom <= e.Floor()+e.cfg.ResetEpsilon {
			return e.Reset(CauseDoubleClick)
		}
		e.state = e.clamp(ZoomOnPoint(before, zoom, Point{}))
		return e.state
	}

	e.clickBefore = e.state
	e.clickAt = now
	e.clickArmed = true
	zoom := math.Min(e.state.Zoom+e.cfg.ClickStep, e.cfg.MaxZoom)
	e.state = e.clamp(ZoomOnPoint(e.state, zoom, e.centered(at)))
	return e.state
}

// BeginPan starts a drag. It reports false, and nothing happens, unless
// the image is zoomed above the floor.
func (e *Engine) BeginPan(at Point) bool {
	if !e.Zoomed() {
		return false
	}
	e.mode = gesturePan
	e.panLast = at
	return true
}

// MovePan translates by the pointer movement since the last call.
func (e *Engine) MovePan(at Point) State {
	if e.mode != gesturePan {
		return e.state
	}
	d := at.Sub(e.panLast)
	e.panLast = at
	e.state = e.clamp(State{
		Zoom:       e.state.Zoom,
		TranslateX: e.state.TranslateX + d.X,
		TranslateY: e.state.TranslateY + d.Y,
	})
	return e.state
}

// EndPan finishes a drag.
func (e *Engine) EndPan() {
	if e.mode == gesturePan {
		e.mode = gestureNone
	}
}

// BeginSelect starts a rectangle selection.
func (e *Engine) BeginSelect(at Point) {
	if e.Degenerate() {
		return
	}
	e.mode = gestureSelect
	e.selection = Rect{From: at, To: at}
}

// MoveSelect extends the selection to at.
func (e *Engine) MoveSelect(at Point) {
	if e.mode == gestureSelect {
		e.selection.To = at
	}
}

// Selection returns the rectangle being dragged, if any.
func (e *Engine) Selection() (Rect, bool) {
	return e.selection, e.mode == gestureSelect
}

// EndSelect zooms so the selection fills the container, anchored at the
// selection centre. Selections smaller than MinSelection on either side
// are ignored; the return value reports whether a zoom was applied.
func (e *Engine) EndSelect() bool {
	if e.mode != gestureSelect {
		return false
	}
	e.mode = gestureNone
	r := e.selection
	if r.Width() < e.cfg.MinSelection || r.Height() < e.cfg.MinSelection {
		return false
	}
	zoom := e.limitZoom(SelectZoom(e.state.Zoom, e.container, r))
	e.state = e.clamp(ZoomOnPoint(e.state, zoom, e.centered(r.Center())))
	return true
}

// BeginPinch starts a two-finger zoom with touch points a and b.
func (e *Engine) BeginPinch(a, b Point) {
	if e.Degenerate() {
		return
	}
	e.mode = gesturePinch
	e.pinchZoom = e.state.Zoom
	e.pinchStart = a.Distance(b)
}

// MovePinch scales zoom by the change in touch distance, anchored at the
// container centre.
func (e *Engine) MovePinch(a, b Point) State {
	if e.mode != gesturePinch {
		return e.state
	}
	zoom := e.limitZoom(PinchZoom(e.pinchZoom, e.pinchStart, a.Distance(b)))
	e.state = e.clamp(ZoomOnPoint(e.state, zoom, Point{}))
	return e.state
}

// EndPinch finishes a pinch.
func (e *Engine) EndPinch() {
	if e.mode == gesturePinch {
		e.mode = gestureNone
	}
}
