package viewport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultReadyTimeout bounds how long callers wait for an image to load.
const DefaultReadyTimeout = 5 * time.Second

// ReadyGate is resolved exactly once, by the image-load event, with the
// natural image size.
type ReadyGate struct {
	timeout time.Duration

	once   sync.Once
	done   chan struct{}
	width  float64
	height float64
}

// NewReadyGate creates an unresolved gate. A non-positive timeout selects
// DefaultReadyTimeout.
func NewReadyGate(timeout time.Duration) *ReadyGate {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	return &ReadyGate{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Resolve records the natural size. Only the first call has any effect.
// It reports whether this call resolved the gate.
func (g *ReadyGate) Resolve(width, height float64) bool {
	resolved := false
	g.once.Do(func() {
		g.width, g.height = width, height
		close(g.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the gate resolves.
func (g *ReadyGate) Done() <-chan struct{} {
	return g.done
}

// Resolved reports whether the gate has been resolved.
func (g *ReadyGate) Resolved() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate resolves, ctx ends or the gate timeout
// elapses, and returns the natural size.
func (g *ReadyGate) Wait(ctx context.Context) (float64, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	select {
	case <-g.done:
		return g.width, g.height, nil
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}
