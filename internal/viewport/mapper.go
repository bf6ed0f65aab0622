package viewport

import (
	"errors"

	"github.com/jaki95/check-engine/internal/domain"
)

// BorderCorrection compensates for the image element's 1px border.
const BorderCorrection = 1.0

// ErrNotReady is returned while the image natural size is unknown.
var ErrNotReady = errors.New("viewport not ready: natural image size unknown")

// Project converts one annotation into screen coordinates.
func Project(a domain.Annotation, s State) (Rect, error) {
	if !s.Ready() {
		return Rect{}, ErrNotReady
	}
	scaleX, scaleY := s.Scale()
	off := s.Offset()
	return Rect{
		X:      a.X*scaleX + off.X,
		Y:      a.Y*scaleY + off.Y,
		Width:  a.W * scaleX,
		Height: a.H * scaleY,
	}, nil
}

// ProjectAll projects every annotation, preserving order.
func ProjectAll(annotations []domain.Annotation, s State) ([]Rect, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	out := make([]Rect, len(annotations))
	for i, a := range annotations {
		// cannot fail once ready
		out[i], _ = Project(a, s)
	}
	return out, nil
}

// Unproject converts a screen point back into natural image coordinates.
func Unproject(p Point, s State) (Point, error) {
	if !s.Ready() {
		return Point{}, ErrNotReady
	}
	scaleX, scaleY := s.Scale()
	off := s.Offset()
	return Point{
		X: (p.X - off.X) / scaleX,
		Y: (p.Y - off.Y) / scaleY,
	}, nil
}
