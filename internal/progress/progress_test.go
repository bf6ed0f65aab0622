package progress

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jaki95/check-engine/internal/domain"
)

func TestProgressTracker(t *testing.T) {
	tracker := NewProgressTracker()

	// Test progress updates
	var receivedEvents []Event
	tracker.AddListener(func(event Event) {
		receivedEvents = append(receivedEvents, event)
	})

	tracker.SetTotal(domain.CategoryFormat, 10)
	tracker.SetTotal(domain.CategoryImageQuality, 10)

	// Send some progress updates
	tracker.Advance(domain.CategoryFormat, 5, 1, "checking formats")
	tracker.Advance(domain.CategoryFormat, 5, 0, "formats checked")

	// Verify received events
	if len(receivedEvents) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(receivedEvents))
	}
	if receivedEvents[0].Progress != 25 {
		t.Errorf("Expected progress 25, got %f", receivedEvents[0].Progress)
	}
	if receivedEvents[1].Progress != 50 {
		t.Errorf("Expected progress 50, got %f", receivedEvents[1].Progress)
	}
	if got := receivedEvents[1].Counters[domain.CategoryFormat]; got.Processed != 10 || got.Errors != 1 {
		t.Errorf("Unexpected format counter: %+v", got)
	}
	if receivedEvents[1].Phase != "format" {
		t.Errorf("Expected phase format, got %s", receivedEvents[1].Phase)
	}

	// Test error handling
	tracker.SetError(context.Canceled)

	// Verify error state
	state := tracker.GetCurrentState()
	if state.Stage != StageError {
		t.Errorf("Expected error stage, got %s", state.Stage)
	}
	if state.Error != context.Canceled.Error() {
		t.Errorf("Expected error %v, got %s", context.Canceled, state.Error)
	}
}

func TestEventCountersAreCopies(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.SetTotal(domain.CategoryContent, 4)

	var first Event
	tracker.AddListener(func(event Event) {
		if first.Counters == nil {
			first = event
		}
	})

	tracker.Advance(domain.CategoryContent, 1, 0, "")
	tracker.Advance(domain.CategoryContent, 1, 0, "")

	if first.Counters[domain.CategoryContent].Processed != 1 {
		t.Errorf("Expected first event to keep processed 1, got %d", first.Counters[domain.CategoryContent].Processed)
	}
}

func TestProgressWithoutTotals(t *testing.T) {
	tracker := NewProgressTracker()
	if tracker.Progress() != 0 {
		t.Errorf("Expected 0 progress, got %f", tracker.Progress())
	}

	// processed beyond the declared total grows the total
	tracker.Advance(domain.CategoryResource, 3, 0, "")
	if tracker.Progress() != 100 {
		t.Errorf("Expected 100 progress, got %f", tracker.Progress())
	}

	tracker.SetStage(StageComplete, "done")
	if tracker.GetCurrentState().Progress != 100 {
		t.Errorf("Expected complete stage to report 100")
	}
}

func TestEventJSON(t *testing.T) {
	// Test JSON marshaling/unmarshaling
	event := Event{
		Stage:     StageChecking,
		Progress:  50.0,
		Phase:     "content",
		Message:   "Checking...",
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	var unmarshaled Event
	if err := json.Unmarshal(data, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}

	if unmarshaled.Stage != event.Stage {
		t.Errorf("Expected stage %s, got %s", event.Stage, unmarshaled.Stage)
	}
	if unmarshaled.Progress != event.Progress {
		t.Errorf("Expected progress %f, got %f", event.Progress, unmarshaled.Progress)
	}
	if unmarshaled.Phase != event.Phase {
		t.Errorf("Expected phase %s, got %s", event.Phase, unmarshaled.Phase)
	}
}

func TestListenerManagement(t *testing.T) {
	tracker := NewProgressTracker()

	// Add a listener
	var receivedEvents []Event
	listener := func(event Event) {
		receivedEvents = append(receivedEvents, event)
	}
	tracker.AddListener(listener)

	// Send an event
	tracker.SetStage(StageChecking, "Test")

	// Verify event was received
	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event, got %d", len(receivedEvents))
	}

	// Remove the listener
	tracker.RemoveListener(listener)

	// Send another event
	tracker.SetStage(StageChecking, "Test 2")

	// Verify no new events were received
	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event after removal, got %d", len(receivedEvents))
	}
}
