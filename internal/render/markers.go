// Package render turns annotations into on-screen markers and drawn overlays.
package render

import (
	"image/color"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/viewport"
)

// DefaultMinSize is the smallest width or height a marker is drawn with.
const DefaultMinSize = 10.0

// Marker is one annotation placed on screen.
type Marker struct {
	Rect       viewport.Rect     `json:"rect"`
	Annotation domain.Annotation `json:"annotation"`
	Color      color.RGBA        `json:"-"`
}

var categoryColors = map[domain.Category]color.RGBA{
	domain.CategoryFormat:       {R: 230, G: 159, B: 0, A: 255},
	domain.CategoryResource:     {R: 86, G: 180, B: 233, A: 255},
	domain.CategoryContent:      {R: 204, G: 121, B: 167, A: 255},
	domain.CategoryImageQuality: {R: 213, G: 94, B: 0, A: 255},
}

// CategoryColor returns the outline color used for a category.
func CategoryColor(c domain.Category) color.RGBA {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return color.RGBA{R: 255, A: 255}
}

// Markers projects annotations onto the screen. Marker sizes below minSize
// are raised to it; the annotations themselves are left untouched.
func Markers(annotations []domain.Annotation, s viewport.State, minSize float64) ([]Marker, error) {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	rects, err := viewport.ProjectAll(annotations, s)
	if err != nil {
		return nil, err
	}

	markers := make([]Marker, len(annotations))
	for i, a := range annotations {
		markers[i] = Marker{
			Rect:       clampRect(rects[i], minSize),
			Annotation: a,
			Color:      CategoryColor(a.Category),
		}
	}
	return markers, nil
}

// HitTest returns the topmost marker containing p.
func HitTest(markers []Marker, p viewport.Point) (Marker, bool) {
	for i := len(markers) - 1; i >= 0; i-- {
		if markers[i].Rect.Contains(p) {
			return markers[i], true
		}
	}
	return Marker{}, false
}

func clampRect(r viewport.Rect, minSize float64) viewport.Rect {
	r.Width = max(r.Width, minSize)
	r.Height = max(r.Height, minSize)
	return r
}
