package viewport

import (
	"context"
	"sync"
	"time"
)

const (
	MinZoom  = 0.1
	MaxZoom  = 10.0
	ZoomStep = 1.25
)

// Viewport is the interaction state of one image view. Every state change
// invokes the invalidate callback so the caller can reproject its markers.
type Viewport struct {
	mu    sync.Mutex
	state State
	ready *ReadyGate

	onInvalidate func(State)
}

// New creates a viewport at zoom 1. onInvalidate may be nil.
func New(readyTimeout time.Duration, onInvalidate func(State)) *Viewport {
	return &Viewport{
		state:        State{Zoom: 1},
		ready:        NewReadyGate(readyTimeout),
		onInvalidate: onInvalidate,
	}
}

// State returns a copy of the current state.
func (v *Viewport) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Ready returns the gate resolved by ImageLoaded.
func (v *Viewport) Ready() *ReadyGate {
	return v.ready
}

// WaitReady waits for the image to load and returns the state at that point.
func (v *Viewport) WaitReady(ctx context.Context) (State, error) {
	if _, _, err := v.ready.Wait(ctx); err != nil {
		return State{}, err
	}
	return v.State(), nil
}

// ImageLoaded records the natural size of the loaded image. When no displayed
// size is known yet, the image is assumed to be shown at natural size.
func (v *Viewport) ImageLoaded(width, height float64) {
	v.update(func(s *State) {
		s.NaturalWidth, s.NaturalHeight = width, height
		if s.DisplayedWidth <= 0 || s.DisplayedHeight <= 0 {
			s.DisplayedWidth, s.DisplayedHeight = width, height
		}
	})
	v.ready.Resolve(width, height)
}

// Resize records a new displayed size of the image element.
func (v *Viewport) Resize(width, height float64) {
	v.update(func(s *State) {
		s.DisplayedWidth, s.DisplayedHeight = width, height
	})
}

// SetImageOffset records where the image element sits in its container.
func (v *Viewport) SetImageOffset(left, top float64) {
	v.update(func(s *State) {
		s.ImageLeft, s.ImageTop = left, top
	})
}

// SetZoom sets the zoom level, clamped to [MinZoom, MaxZoom].
func (v *Viewport) SetZoom(zoom float64) {
	v.update(func(s *State) {
		s.Zoom = clampZoom(zoom)
	})
}

// ZoomIn increases the zoom level.
func (v *Viewport) ZoomIn() {
	v.update(func(s *State) {
		s.Zoom = clampZoom(s.Zoom * ZoomStep)
	})
}

// ZoomOut decreases the zoom level.
func (v *Viewport) ZoomOut() {
	v.update(func(s *State) {
		s.Zoom = clampZoom(s.Zoom / ZoomStep)
	})
}

// Wheel zooms in for positive deltas and out for negative ones.
func (v *Viewport) Wheel(deltaY float64) {
	if deltaY > 0 {
		v.ZoomIn()
	} else if deltaY < 0 {
		v.ZoomOut()
	}
}

// Drag moves the image by a pan delta.
func (v *Viewport) Drag(dx, dy float64) {
	v.update(func(s *State) {
		s.PanX += dx
		s.PanY += dy
	})
}

// Scroll records the container scroll position.
func (v *Viewport) Scroll(x, y float64) {
	v.update(func(s *State) {
		s.ScrollX, s.ScrollY = x, y
	})
}

// Reset restores zoom 1 and clears pan and scroll.
func (v *Viewport) Reset() {
	v.update(func(s *State) {
		s.Zoom = 1
		s.PanX, s.PanY = 0, 0
		s.ScrollX, s.ScrollY = 0, 0
	})
}

func (v *Viewport) update(fn func(s *State)) {
	v.mu.Lock()
	fn(&v.state)
	snapshot := v.state
	v.mu.Unlock()

	if v.onInvalidate != nil {
		v.onInvalidate(snapshot)
	}
}

func clampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}
