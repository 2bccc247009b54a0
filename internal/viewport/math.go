package viewport

import "math"

// Size is a width and height in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether either side is not positive.
func (s Size) Empty() bool {
	return !(s.Width > 0) || !(s.Height > 0)
}

// Point is a position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// State is the transform applied by the host renderer.
type State struct {
	Zoom       float64 `json:"zoom"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

// Identity is the reset transform.
func Identity() State {
	return State{Zoom: 1}
}

// Translate returns the translation as a point.
func (s State) Translate() Point {
	return Point{s.TranslateX, s.TranslateY}
}

func degenerate(container, natural Size) bool {
	return container.Empty() || natural.Empty()
}

// BaseScale is the scale at which the host renders the image before any
// zoom: contained in the container, never upscaled.
func BaseScale(container, natural Size) float64 {
	if degenerate(container, natural) {
		return 1
	}
	return math.Min(1, math.Min(container.Width/natural.Width, container.Height/natural.Height))
}

// MinZoomToFit is the factor at which the natural size covers the container
// on its limiting axis.
func MinZoomToFit(container, natural Size) float64 {
	if degenerate(container, natural) {
		return 1
	}
	if natural.Width/natural.Height > container.Width/container.Height {
		return container.Width / natural.Width
	}
	return container.Height / natural.Height
}

// Floor is the lowest zoom a State may carry: MinZoomToFit, but never
// below 1.
func Floor(container, natural Size) float64 {
	return math.Max(1, MinZoomToFit(container, natural))
}

// ScaledSize is the on-screen size of the image at zoom.
func ScaledSize(container, natural Size, zoom float64) Size {
	base := BaseScale(container, natural)
	return Size{
		Width:  natural.Width * base * zoom,
		Height: natural.Height * base * zoom,
	}
}

// MaxOffset is the largest translation on each axis that keeps the scaled
// image covering the container.
func MaxOffset(container, natural Size, zoom float64) Point {
	scaled := ScaledSize(container, natural, zoom)
	return Point{
		X: math.Max(0, (scaled.Width-container.Width)/2),
		Y: math.Max(0, (scaled.Height-container.Height)/2),
	}
}

// ImagePointAt returns the point of the zoom-1 image under p. p is relative
// to the container centre.
func ImagePointAt(s State, p Point) Point {
	return Point{
		X: (p.X - s.TranslateX) / s.Zoom,
		Y: (p.Y - s.TranslateY) / s.Zoom,
	}
}

// ZoomOnPoint changes zoom to newZoom while keeping the image point under p
// fixed on screen. p is relative to the container centre.
func ZoomOnPoint(s State, newZoom float64, p Point) State {
	img := ImagePointAt(s, p)
	return State{
		Zoom:       newZoom,
		TranslateX: p.X - img.X*newZoom,
		TranslateY: p.Y - img.Y*newZoom,
	}
}

// Clamp bounds zoom to [Floor, maxZoom] and translation to MaxOffset.
// A non-positive maxZoom leaves zoom unbounded above. Degenerate sizes
// yield Identity.
func Clamp(s State, container, natural Size, maxZoom float64) State {
	if degenerate(container, natural) {
		return Identity()
	}
	floor := Floor(container, natural)
	zoom := math.Max(floor, s.Zoom)
	if maxZoom > 0 {
		zoom = math.Min(zoom, math.Max(maxZoom, floor))
	}
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return Identity()
	}
	limit := MaxOffset(container, natural, zoom)
	return State{
		Zoom:       zoom,
		TranslateX: clampAbs(s.TranslateX, limit.X),
		TranslateY: clampAbs(s.TranslateY, limit.Y),
	}
}

func clampAbs(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

// WheelConfig shapes the dynamic wheel step.
type WheelConfig struct {
	BaseStep float64
	Slope    float64
	MinStep  float64
	MaxStep  float64
}

// WheelStep is the zoom change for one wheel tick at zoom. It grows with
// zoom so that ticks feel even across the range.
func WheelStep(zoom float64, cfg WheelConfig) float64 {
	step := cfg.BaseStep * (1 + zoom*cfg.Slope)
	return math.Max(cfg.MinStep, math.Min(cfg.MaxStep, step))
}

// SelectZoom is the zoom that makes rect fill the container.
func SelectZoom(oldZoom float64, container Size, rect Rect) float64 {
	if container.Empty() || rect.Width() <= 0 || rect.Height() <= 0 {
		return oldZoom
	}
	return oldZoom * math.Min(container.Width/rect.Width(), container.Height/rect.Height())
}

// PinchZoom scales startZoom by the change in touch distance.
func PinchZoom(startZoom, startDistance, distance float64) float64 {
	if startDistance <= 0 {
		return startZoom
	}
	return startZoom * distance / startDistance
}

// Rect is a rectangle given by two corners.
type Rect struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Width returns the absolute width.
func (r Rect) Width() float64 { return math.Abs(r.To.X - r.From.X) }

// Height returns the absolute height.
func (r Rect) Height() float64 { return math.Abs(r.To.Y - r.From.Y) }

// Center returns the midpoint.
func (r Rect) Center() Point {
	return Point{(r.From.X + r.To.X) / 2, (r.From.Y + r.To.Y) / 2}
}
