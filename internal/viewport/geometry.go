// Package viewport maps annotation coordinates from natural image space onto
// a zoomable, pannable, scrollable on-screen image.
package viewport

// Point is a 2D point with floating-point coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains returns true if the point is inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Intersects returns true if this rectangle intersects with another.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.X+other.Width && r.X+r.Width > other.X &&
		r.Y < other.Y+other.Height && r.Y+r.Height > other.Y
}

// State is everything the mapper needs to place a marker on screen.
type State struct {
	NaturalWidth    float64 `json:"naturalWidth"`
	NaturalHeight   float64 `json:"naturalHeight"`
	DisplayedWidth  float64 `json:"displayedWidth"`
	DisplayedHeight float64 `json:"displayedHeight"`
	Zoom            float64 `json:"zoom"`
	PanX            float64 `json:"panX"`
	PanY            float64 `json:"panY"`
	ScrollX         float64 `json:"scrollX"`
	ScrollY         float64 `json:"scrollY"`

	// ImageLeft and ImageTop locate the image element inside its scroll
	// container.
	ImageLeft float64 `json:"imageLeft"`
	ImageTop  float64 `json:"imageTop"`
}

// Ready reports whether the natural size is known.
func (s State) Ready() bool {
	return s.NaturalWidth > 0 && s.NaturalHeight > 0
}

// Scale returns the natural-to-screen scale factors. A zero displayed size
// means the image is shown at its natural size.
func (s State) Scale() (float64, float64) {
	dw, dh := s.DisplayedWidth, s.DisplayedHeight
	if dw <= 0 {
		dw = s.NaturalWidth
	}
	if dh <= 0 {
		dh = s.NaturalHeight
	}
	zoom := s.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return dw / s.NaturalWidth * zoom, dh / s.NaturalHeight * zoom
}

// Offset returns the screen position of the image origin.
func (s State) Offset() Point {
	return Point{
		X: s.ImageLeft - s.ScrollX + s.PanX + BorderCorrection,
		Y: s.ImageTop - s.ScrollY + s.PanY + BorderCorrection,
	}
}
