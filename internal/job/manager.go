package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaki95/check-engine/internal/domain"
)

type entry struct {
	task       *Task
	ruleConfig json.RawMessage
	cancelFunc context.CancelFunc
	resumed    chan struct{} // non-nil while paused
}

// Manager handles server-side task bookkeeping
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*entry
	now  func() time.Time
}

// NewManager creates a new task manager
func NewManager() *Manager {
	return &Manager{
		jobs: make(map[string]*entry),
		now:  time.Now,
	}
}

// CreateJob registers a new pending task and returns a copy of it together
// with the context the runner must honour.
func (m *Manager) CreateJob(projectID string, ruleConfig json.RawMessage) (*Task, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	now := m.now()

	task := &Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    StatusPending,
		Progress:  ProgressStart,
		Phase:     "queued",
		Counters:  make(map[domain.Category]Counter),
		CreatedAt: now,
		UpdatedAt: now,
		Seq:       1,
	}

	m.mu.Lock()
	m.jobs[task.ID] = &entry{task: task, ruleConfig: ruleConfig, cancelFunc: cancel}
	m.mu.Unlock()

	return task.Clone(), ctx
}

// GetJob returns a copy of the task so callers never race with the runner.
func (m *Manager) GetJob(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.task.Clone(), nil
}

// RuleConfig returns the rule configuration a task was started with.
func (m *Manager) RuleConfig(id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.ruleConfig, nil
}

// Snapshot returns the wire snapshot served to pollers.
func (m *Manager) Snapshot(id string) (ProgressResponse, error) {
	task, err := m.GetJob(id)
	if err != nil {
		return ProgressResponse{Code: CodeNotFound, ErrorMessage: err.Error()}, err
	}
	return NewProgressResponse(task), nil
}

// MarkRunning moves a pending or paused task to running.
func (m *Manager) MarkRunning(id, phase string) error {
	return m.mutate(id, func(e *entry) error {
		if err := m.transitionLocked(e, StatusRunning); err != nil {
			return err
		}
		e.task.Phase = phase
		return nil
	})
}

// UpdateProgress records progress for a running task.
func (m *Manager) UpdateProgress(id string, progress float64, phase string, counters map[domain.Category]Counter) error {
	return m.mutate(id, func(e *entry) error {
		if e.task.Status != StatusRunning {
			return fmt.Errorf("%w: cannot update progress in status %s", ErrInvalidState, e.task.Status)
		}
		e.task.Progress = progress
		if phase != "" {
			e.task.Phase = phase
		}
		for cat, c := range counters {
			e.task.Counters[cat] = c
		}
		return nil
	})
}

// Complete attaches the final result and finishes the task.
func (m *Manager) Complete(id string, result *domain.Result) error {
	return m.mutate(id, func(e *entry) error {
		if err := m.transitionLocked(e, StatusCompleted); err != nil {
			return err
		}
		e.task.Progress = ProgressComplete
		e.task.Phase = "completed"
		e.task.Result = result
		return nil
	})
}

// Fail finishes the task with an error message.
func (m *Manager) Fail(id string, cause error) error {
	return m.mutate(id, func(e *entry) error {
		if err := m.transitionLocked(e, StatusFailed); err != nil {
			return err
		}
		e.task.Phase = "failed"
		if cause != nil {
			e.task.Error = cause.Error()
		}
		return nil
	})
}

// PauseJob pauses a running task. A task that already reached a terminal
// status cannot be paused.
func (m *Manager) PauseJob(id string) error {
	return m.mutate(id, func(e *entry) error {
		if err := m.transitionLocked(e, StatusPaused); err != nil {
			return err
		}
		if e.resumed == nil {
			e.resumed = make(chan struct{})
		}
		return nil
	})
}

// ResumeJob resumes a paused task.
func (m *Manager) ResumeJob(id string) error {
	return m.mutate(id, func(e *entry) error {
		if e.task.Status != StatusPaused {
			return fmt.Errorf("%w: cannot resume task in status %s", ErrInvalidState, e.task.Status)
		}
		return m.transitionLocked(e, StatusRunning)
	})
}

// CancelJob cancels a pending, running or paused task.
func (m *Manager) CancelJob(id string) error {
	return m.mutate(id, func(e *entry) error {
		if e.task.Status == StatusPending {
			// pending tasks pass through running on their way out
			if err := m.transitionLocked(e, StatusRunning); err != nil {
				return err
			}
		}
		if err := m.transitionLocked(e, StatusCancelled); err != nil {
			return err
		}
		e.cancelFunc()
		e.task.Phase = "cancelled"
		return nil
	})
}

// WaitWhilePaused blocks until the task is no longer paused or ctx ends.
func (m *Manager) WaitWhilePaused(ctx context.Context, id string) error {
	for {
		m.mu.RLock()
		e, ok := m.jobs[id]
		if !ok {
			m.mu.RUnlock()
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		resumed := e.resumed
		m.mu.RUnlock()

		if resumed == nil {
			return nil
		}
		select {
		case <-resumed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ListJobs lists all tasks with pagination, oldest first.
func (m *Manager) ListJobs(page, pageSize int) *Response {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	m.mu.RLock()
	jobs := make([]*Task, 0, len(m.jobs))
	for _, e := range m.jobs {
		jobs = append(jobs, e.task.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	totalPages := (len(jobs) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize

	if start >= len(jobs) {
		return &Response{
			Jobs:       []*Task{},
			Page:       page,
			PageSize:   pageSize,
			TotalJobs:  len(jobs),
			TotalPages: totalPages,
		}
	}

	if end > len(jobs) {
		end = len(jobs)
	}

	return &Response{
		Jobs:       jobs[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalJobs:  len(jobs),
		TotalPages: totalPages,
	}
}

// RemoveFinished drops terminal tasks that ended more than retention ago and
// returns how many were removed.
func (m *Manager) RemoveFinished(retention time.Duration) int {
	cutoff := m.now().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.jobs {
		if !e.task.Status.IsTerminal() || e.task.EndTime == nil {
			continue
		}
		if e.task.EndTime.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) mutate(id string, fn func(e *entry) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(e); err != nil {
		return err
	}
	e.task.Seq++
	e.task.UpdatedAt = m.now()
	return nil
}

func (m *Manager) transitionLocked(e *entry, to Status) error {
	if e.task.Status == to {
		return nil
	}
	if err := ValidateTransition(e.task.Status, to); err != nil {
		return err
	}
	if e.task.Status == StatusPaused && e.resumed != nil {
		close(e.resumed)
		e.resumed = nil
	}
	e.task.Status = to
	if to.IsTerminal() {
		end := m.now()
		e.task.EndTime = &end
	}
	return nil
}
