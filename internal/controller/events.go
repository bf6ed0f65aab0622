package controller

import "github.com/jaki95/check-engine/internal/job"

// EventKind says what changed on a task.
type EventKind string

const (
	EventStatus    EventKind = "status"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventAdvisory  EventKind = "advisory"
)

// Event is delivered to listeners after a change has been applied. Task is a
// copy of the task state at that point.
type Event struct {
	Task job.Task
	Kind EventKind

	// Advisory carries the banner text of an EventAdvisory.
	Advisory string
}

// Listener receives task events on the polling goroutine.
type Listener func(Event)
