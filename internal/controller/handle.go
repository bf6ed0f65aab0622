package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jaki95/check-engine/internal/job"
)

// Handle owns the poll loop of one task. The loop ends on any terminal
// status, on a cancel acknowledgement or on Stop.
type Handle struct {
	id string
	c  *Controller

	mu          sync.Mutex
	task        job.Task
	history     []job.Status
	lastSeq     int64
	lastUpdated time.Time
	err         error
	finished    bool

	done chan struct{}
	stop context.CancelFunc
}

// ID returns the task ID. It is empty for a synchronous check.
func (h *Handle) ID() string {
	return h.id
}

// Task returns a copy of the current task state.
func (h *Handle) Task() job.Task {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.task.Clone()
}

// History returns every status the task went through, in order.
func (h *Handle) History() []job.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]job.Status, len(h.history))
	copy(out, h.history)
	return out
}

// Done is closed when polling has ended.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until polling ends or ctx is done. It returns a
// *TaskFailedError for FAILED tasks and ErrStopped after Stop.
func (h *Handle) Wait(ctx context.Context) (job.Task, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return *h.task.Clone(), h.err
	case <-ctx.Done():
		return h.Task(), ctx.Err()
	}
}

// Stop ends polling without touching the remote task.
func (h *Handle) Stop() {
	h.stop()
}

func (h *Handle) terminal() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task.Status.IsTerminal()
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	interval := h.c.opts.PollInterval
	delay := interval
	var backoff retry.Backoff

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.stopped()
			return
		case <-timer.C:
		}

		resp, err := h.c.transport.Progress(ctx, h.id)
		switch {
		case ctx.Err() != nil:
			h.stopped()
			return
		case errors.Is(err, job.ErrNotFound):
			slog.Error("Task no longer known to the service", "taskId", h.id, "error", err)
			h.finish(err)
			return
		case err != nil:
			if backoff == nil {
				backoff = h.c.pollBackoff()
			}
			delay, _ = backoff.Next()
			slog.Warn("Progress poll failed", "taskId", h.id, "error", err, "retryIn", delay)
		default:
			backoff = nil
			delay = interval
			if h.apply(resp) {
				return
			}
		}

		timer.Reset(delay)
	}
}

// apply reconciles one snapshot and reports whether polling must end.
func (h *Handle) apply(resp job.ProgressResponse) bool {
	if resp.Status == "" {
		slog.Debug("Snapshot without status ignored", "taskId", h.id)
		return false
	}
	if err := job.ValidateStatus(resp.Status); err != nil {
		slog.Warn("Snapshot with unknown status ignored", "taskId", h.id, "error", err)
		return false
	}

	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return true
	}
	if !h.newerLocked(resp) {
		h.mu.Unlock()
		slog.Debug("Stale snapshot discarded", "taskId", h.id, "seq", resp.Seq)
		return false
	}
	path, ok := job.Path(h.task.Status, resp.Status)
	if !ok {
		from := h.task.Status
		h.mu.Unlock()
		slog.Warn("Snapshot with illegal transition discarded", "taskId", h.id, "from", from, "to", resp.Status)
		return false
	}

	if resp.Seq > 0 {
		h.lastSeq = resp.Seq
	}
	if resp.UpdatedAt != nil {
		h.lastUpdated = *resp.UpdatedAt
		h.task.UpdatedAt = *resp.UpdatedAt
	}
	h.task.Seq = resp.Seq

	if resp.CurrentPhase != "" {
		h.task.Phase = resp.CurrentPhase
	}
	// a paused task keeps showing the progress it had when it paused
	if resp.Status != job.StatusPaused {
		h.task.Progress = resp.Progress
		h.task.Counters = resp.Counters()
	}
	if resp.Status == job.StatusCompleted {
		// commit derived data before anyone is told about completion
		h.c.session.ApplyResult(resp.Result)
		h.task.Result = resp.Result
		h.task.Progress = job.ProgressComplete
	}

	var events []Event
	for _, s := range path {
		h.setStatusLocked(s)
		events = append(events, Event{Task: *h.task.Clone(), Kind: EventStatus})
	}
	if resp.Status != job.StatusPaused {
		events = append(events, Event{Task: *h.task.Clone(), Kind: EventProgress})
	}
	status := resp.Status
	h.mu.Unlock()

	for _, e := range events {
		h.c.emit(e)
	}

	switch status {
	case job.StatusCompleted:
		h.complete(resp)
		return true
	case job.StatusFailed:
		h.finish(&TaskFailedError{TaskID: h.id, Message: resp.ErrorMessage})
		return true
	case job.StatusCancelled:
		h.finish(nil)
		return true
	}
	return false
}

// complete ends polling of a task whose result is already in the session.
func (h *Handle) complete(resp job.ProgressResponse) {
	h.finish(nil)
	if adv := resp.Result.Advisory(); adv != "" {
		slog.Warn("Check completed with degraded services", "taskId", h.id, "advisory", adv)
		h.c.emit(Event{Task: h.Task(), Kind: EventAdvisory, Advisory: adv})
	}
}

// acknowledge applies the optimistic effect of an acknowledged command. The
// next applied snapshot overrides it.
func (h *Handle) acknowledge(action job.Action) {
	var target job.Status
	switch action {
	case job.ActionPause:
		target = job.StatusPaused
	case job.ActionResume:
		target = job.StatusRunning
	case job.ActionCancel:
		target = job.StatusCancelled
	default:
		return
	}

	h.mu.Lock()
	path, ok := job.Path(h.task.Status, target)
	if !ok || h.finished {
		h.mu.Unlock()
		return
	}
	var events []Event
	for _, s := range path {
		h.setStatusLocked(s)
		events = append(events, Event{Task: *h.task.Clone(), Kind: EventStatus})
	}
	h.mu.Unlock()

	for _, e := range events {
		h.c.emit(e)
	}
	if target == job.StatusCancelled {
		h.finish(nil)
		h.stop()
	}
}

// setStatusLocked records one legal status change.
func (h *Handle) setStatusLocked(s job.Status) {
	if h.task.Status == s {
		return
	}
	h.task.Status = s
	h.history = append(h.history, s)
	if s.IsTerminal() {
		end := h.c.now()
		h.task.EndTime = &end
	}
}

// newerLocked reports whether resp is newer than the last applied snapshot,
// by seq when present and by updatedAt otherwise.
func (h *Handle) newerLocked(resp job.ProgressResponse) bool {
	if resp.Seq > 0 {
		return resp.Seq > h.lastSeq
	}
	if resp.UpdatedAt != nil && !h.lastUpdated.IsZero() {
		return resp.UpdatedAt.After(h.lastUpdated)
	}
	return true
}

// finish records the outcome once and emits the matching terminal event.
func (h *Handle) finish(err error) {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	h.err = err
	task := *h.task.Clone()
	h.mu.Unlock()

	var failed *TaskFailedError
	switch {
	case errors.As(err, &failed):
		slog.Error("Check failed", "taskId", h.id, "error", failed.Message)
		h.c.emit(Event{Task: task, Kind: EventFailed})
	case err != nil:
		h.c.emit(Event{Task: task, Kind: EventFailed})
	case task.Status == job.StatusCancelled:
		slog.Info("Check cancelled", "taskId", h.id)
		h.c.emit(Event{Task: task, Kind: EventCancelled})
	case task.Status == job.StatusCompleted:
		slog.Info("Check completed", "taskId", h.id, "errors", len(h.c.session.Errors()))
		h.c.emit(Event{Task: task, Kind: EventCompleted})
	}
}

func (h *Handle) stopped() {
	h.finish(ErrStopped)
}
