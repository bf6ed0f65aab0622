package progress

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/job"
)

// Stage represents the current stage of a check run
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageChecking     Stage = "checking"
	StagePaused       Stage = "paused"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Event represents a progress event
type Event struct {
	Stage     Stage                           `json:"stage"`
	Progress  float64                         `json:"progress"`
	Phase     string                          `json:"phase"`
	Message   string                          `json:"message"`
	Counters  map[domain.Category]job.Counter `json:"counters,omitempty"`
	Timestamp time.Time                       `json:"timestamp"`
	Error     string                          `json:"error,omitempty"`
}

// ProgressTracker tracks per-category progress of one check run
type ProgressTracker struct {
	mu        sync.RWMutex
	stage     Stage
	phase     string
	message   string
	counters  map[domain.Category]job.Counter
	error     error
	listeners []func(Event)
}

// NewProgressTracker creates a new ProgressTracker instance
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stage:     StageInitializing,
		counters:  make(map[domain.Category]job.Counter),
		listeners: make([]func(Event), 0),
	}
}

// AddListener adds a new progress event listener
func (pt *ProgressTracker) AddListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.listeners = append(pt.listeners, listener)
}

// RemoveListener removes a progress event listener
func (pt *ProgressTracker) RemoveListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	listenerPtr := reflect.ValueOf(listener).Pointer()
	for i := range pt.listeners {
		if reflect.ValueOf(pt.listeners[i]).Pointer() == listenerPtr {
			pt.listeners = append(pt.listeners[:i], pt.listeners[i+1:]...)
			break
		}
	}
}

// SetTotal declares how many items a category will check.
func (pt *ProgressTracker) SetTotal(category domain.Category, total int) {
	pt.mu.Lock()
	c := pt.counters[category]
	c.Total = total
	pt.counters[category] = c
	pt.mu.Unlock()
}

// Advance records processed items and errors found for a category and
// notifies all listeners.
func (pt *ProgressTracker) Advance(category domain.Category, processed, errors int, message string) {
	pt.mu.Lock()
	c := pt.counters[category]
	c.Processed += processed
	c.Errors += errors
	if c.Processed > c.Total {
		c.Total = c.Processed
	}
	pt.counters[category] = c
	pt.stage = StageChecking
	pt.phase = string(category)
	pt.message = message
	event := pt.eventLocked()
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

// SetStage moves the tracker to a new stage and notifies all listeners
func (pt *ProgressTracker) SetStage(stage Stage, message string) {
	pt.mu.Lock()
	pt.stage = stage
	pt.message = message
	event := pt.eventLocked()
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

// SetError sets an error state and notifies all listeners
func (pt *ProgressTracker) SetError(err error) {
	pt.mu.Lock()
	pt.stage = StageError
	pt.error = err
	pt.message = err.Error()
	event := pt.eventLocked()
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

// Progress returns overall completion in percent across all categories.
func (pt *ProgressTracker) Progress() float64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.progressLocked()
}

func (pt *ProgressTracker) progressLocked() float64 {
	if pt.stage == StageComplete {
		return job.ProgressComplete
	}
	processed, total := 0, 0
	for _, c := range pt.counters {
		processed += c.Processed
		total += c.Total
	}
	if total == 0 {
		return job.ProgressStart
	}
	return float64(processed) / float64(total) * job.ProgressComplete
}

func (pt *ProgressTracker) eventLocked() Event {
	counters := make(map[domain.Category]job.Counter, len(pt.counters))
	for k, v := range pt.counters {
		counters[k] = v
	}
	event := Event{
		Stage:     pt.stage,
		Progress:  pt.progressLocked(),
		Phase:     pt.phase,
		Message:   pt.message,
		Counters:  counters,
		Timestamp: time.Now(),
	}
	if pt.error != nil {
		event.Error = pt.error.Error()
	}
	return event
}

// notifyListeners sends an event to all registered listeners
func (pt *ProgressTracker) notifyListeners(event Event) {
	pt.mu.RLock()
	listeners := make([]func(Event), len(pt.listeners))
	copy(listeners, pt.listeners)
	pt.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// GetCurrentState returns the current progress state
func (pt *ProgressTracker) GetCurrentState() Event {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.eventLocked()
}

// MarshalJSON implements json.Marshaler for Event
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}
