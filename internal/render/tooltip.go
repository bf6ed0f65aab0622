package render

import (
	"sync"
	"time"

	"github.com/jaki95/check-engine/internal/viewport"
)

// DefaultHideDelay is how long a tooltip lingers after the pointer leaves.
const DefaultHideDelay = 300 * time.Millisecond

// TooltipState is what a tooltip currently shows.
type TooltipState struct {
	Visible bool
	Text    string
	At      viewport.Point
}

// Tooltip shows marker details. Each tooltip owns its hide timer, so hiding
// one never affects another.
type Tooltip struct {
	delay    time.Duration
	onChange func(TooltipState)

	mu    sync.Mutex
	state TooltipState
	timer *time.Timer
	gen   uint64
}

// NewTooltip creates a hidden tooltip. onChange may be nil.
func NewTooltip(delay time.Duration, onChange func(TooltipState)) *Tooltip {
	if delay < 0 {
		delay = DefaultHideDelay
	}
	return &Tooltip{delay: delay, onChange: onChange}
}

// Show displays text at p and cancels any pending hide.
func (t *Tooltip) Show(text string, p viewport.Point) {
	t.mu.Lock()
	t.cancelLocked()
	t.state = TooltipState{Visible: true, Text: text, At: p}
	state := t.state
	t.mu.Unlock()

	t.notify(state)
}

// ShowMarker displays the message of m next to its top-left corner.
func (t *Tooltip) ShowMarker(m Marker) {
	t.Show(m.Annotation.Message, viewport.Point{X: m.Rect.X, Y: m.Rect.Y})
}

// Hide schedules the tooltip to disappear after the hide delay. A Show in the
// meantime keeps it visible.
func (t *Tooltip) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Visible {
		return
	}
	t.cancelLocked()
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() {
		t.hideIf(gen)
	})
}

// HideNow hides the tooltip immediately.
func (t *Tooltip) HideNow() {
	t.mu.Lock()
	t.cancelLocked()
	changed := t.state.Visible
	t.state = TooltipState{}
	t.mu.Unlock()

	if changed {
		t.notify(TooltipState{})
	}
}

// State returns what the tooltip currently shows.
func (t *Tooltip) State() TooltipState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tooltip) hideIf(gen uint64) {
	t.mu.Lock()
	// a Show or HideNow happened after this timer was armed
	if gen != t.gen || !t.state.Visible {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.state = TooltipState{}
	t.mu.Unlock()

	t.notify(TooltipState{})
}

func (t *Tooltip) cancelLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Tooltip) notify(s TooltipState) {
	if t.onChange != nil {
		t.onChange(s)
	}
}
