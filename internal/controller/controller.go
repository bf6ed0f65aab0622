// Package controller drives check tasks through their lifecycle by issuing
// commands and polling the check service for progress.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/session"
	"github.com/jaki95/check-engine/internal/transport"
)

const (
	DefaultPollInterval      = 500 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultControlRetries    = 2
	DefaultControlRetryDelay = 200 * time.Millisecond
)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	PollInterval      time.Duration
	MaxBackoff        time.Duration
	ControlRetries    uint64
	ControlRetryDelay time.Duration
	Listeners         []Listener
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.MaxBackoff < o.PollInterval {
		o.MaxBackoff = o.PollInterval
	}
	if o.ControlRetries == 0 {
		o.ControlRetries = DefaultControlRetries
	}
	if o.ControlRetryDelay <= 0 {
		o.ControlRetryDelay = DefaultControlRetryDelay
	}
	return o
}

// Controller starts tasks and owns their poll loops. Completed results are
// handed to the session.
type Controller struct {
	transport transport.Transport
	session   *session.Session
	opts      Options

	mu      sync.Mutex
	handles map[string]*Handle
	now     func() time.Time
}

// New creates a controller.
func New(t transport.Transport, s *session.Session, opts Options) *Controller {
	return &Controller{
		transport: t,
		session:   s,
		opts:      opts.withDefaults(),
		handles:   make(map[string]*Handle),
		now:       time.Now,
	}
}

// Session returns the session results are applied to.
func (c *Controller) Session() *session.Session {
	return c.session
}

// Start submits a check. Empty ProjectID and RuleConfig are taken from the
// session. A synchronous answer is applied immediately and the returned
// handle is already done; an asynchronous one starts the poll loop.
func (c *Controller) Start(ctx context.Context, req job.StartRequest) (*Handle, error) {
	if req.ProjectID == "" {
		req.ProjectID = c.session.ProjectID()
	}
	if req.RuleConfig == nil {
		req.RuleConfig = c.session.RuleConfig()
	}

	resp, err := c.transport.Start(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Async {
		return c.completeSync(req.ProjectID, resp.Result), nil
	}
	if resp.TaskID == "" {
		return nil, fmt.Errorf("%w: async start returned no task id", ErrProtocol)
	}

	h := c.newHandle(resp.TaskID, req.ProjectID)
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.stop = cancel
	// registered only once stop is set, so a concurrent Cancel can end it
	c.register(h)
	go h.run(pollCtx)

	slog.Info("Check started", "taskId", h.id, "projectId", req.ProjectID)
	return h, nil
}

// completeSync treats a synchronous result as an instantaneous
// PENDING -> RUNNING -> COMPLETED run.
func (c *Controller) completeSync(projectID string, result *domain.Result) *Handle {
	h := c.newHandle("", projectID)
	h.stop = func() {}

	c.session.ApplyResult(result)

	h.mu.Lock()
	h.setStatusLocked(job.StatusRunning)
	h.setStatusLocked(job.StatusCompleted)
	h.task.Progress = job.ProgressComplete
	h.task.Result = result
	h.finished = true
	task := h.task.Clone()
	h.mu.Unlock()

	c.emit(Event{Task: *task, Kind: EventStatus})
	c.emit(Event{Task: *task, Kind: EventCompleted})
	if adv := result.Advisory(); adv != "" {
		c.emit(Event{Task: *task, Kind: EventAdvisory, Advisory: adv})
	}

	close(h.done)
	slog.Info("Check completed synchronously", "projectId", projectID)
	return h
}

// Handle returns the handle of a task started by this controller.
func (c *Controller) Handle(taskID string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[taskID]
	return h, ok
}

// Pause asks the service to pause a task.
func (c *Controller) Pause(ctx context.Context, taskID string) error {
	return c.control(ctx, taskID, job.ActionPause)
}

// Resume asks the service to resume a paused task.
func (c *Controller) Resume(ctx context.Context, taskID string) error {
	return c.control(ctx, taskID, job.ActionResume)
}

// Cancel asks the service to cancel a task. On acknowledgement the local
// poll loop ends.
func (c *Controller) Cancel(ctx context.Context, taskID string) error {
	return c.control(ctx, taskID, job.ActionCancel)
}

func (c *Controller) control(ctx context.Context, taskID string, action job.Action) error {
	h, known := c.Handle(taskID)
	if known && h.terminal() {
		return fmt.Errorf("%w: %s", ErrTaskTerminal, taskID)
	}

	req := job.ControlRequest{TaskID: taskID, Action: action}
	backoff := retry.WithMaxRetries(c.opts.ControlRetries, retry.NewConstant(c.opts.ControlRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := c.transport.Control(ctx, req)
		var codeErr *transport.CodeError
		if err != nil && !errors.As(err, &codeErr) {
			slog.Warn("Control command failed, retrying", "taskId", taskID, "action", action, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("Control command acknowledged", "taskId", taskID, "action", action)
	if known {
		h.acknowledge(action)
	}
	return nil
}

func (c *Controller) newHandle(taskID, projectID string) *Handle {
	now := c.now()
	return &Handle{
		id: taskID,
		c:  c,
		task: job.Task{
			ID:        taskID,
			ProjectID: projectID,
			Status:    job.StatusPending,
			Counters:  make(map[domain.Category]job.Counter),
			CreatedAt: now,
			UpdatedAt: now,
		},
		history: []job.Status{job.StatusPending},
		done:    make(chan struct{}),
	}
}

func (c *Controller) register(h *Handle) {
	c.mu.Lock()
	c.handles[h.id] = h
	c.mu.Unlock()
}

func (c *Controller) emit(e Event) {
	for _, l := range c.opts.Listeners {
		l(e)
	}
}

func (c *Controller) pollBackoff() retry.Backoff {
	return retry.WithCappedDuration(c.opts.MaxBackoff, retry.NewExponential(c.opts.PollInterval))
}
