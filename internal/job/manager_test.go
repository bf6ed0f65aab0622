package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/check-engine/internal/domain"
)

func TestJobProgressTracking(t *testing.T) {
	manager := NewManager()

	task, _ := manager.CreateJob("project-1", nil)
	taskID := task.ID

	if task.Status != StatusPending {
		t.Errorf("Expected initial status %s, got %s", StatusPending, task.Status)
	}
	if task.Progress != 0 {
		t.Errorf("Expected initial progress 0, got %f", task.Progress)
	}

	if err := manager.MarkRunning(taskID, "format"); err != nil {
		t.Fatalf("Failed to mark task running: %v", err)
	}

	counters := map[domain.Category]Counter{
		domain.CategoryFormat: {Processed: 5, Total: 10, Errors: 1},
	}
	if err := manager.UpdateProgress(taskID, 25, "format", counters); err != nil {
		t.Fatalf("Failed to update task progress: %v", err)
	}

	updated, err := manager.GetJob(taskID)
	if err != nil {
		t.Fatalf("Failed to get updated task: %v", err)
	}
	if updated.Progress != 25 {
		t.Errorf("Expected progress 25, got %f", updated.Progress)
	}
	if updated.Counters[domain.CategoryFormat].Errors != 1 {
		t.Errorf("Expected 1 format error, got %d", updated.Counters[domain.CategoryFormat].Errors)
	}

	result := &domain.Result{Errors: []domain.ErrorRecord{{ErrorType: "regex", Category: domain.CategoryFormat, Message: "bad"}}}
	if err := manager.Complete(taskID, result); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}

	final, err := manager.GetJob(taskID)
	if err != nil {
		t.Fatalf("Failed to get final task: %v", err)
	}
	if final.Progress != 100 {
		t.Errorf("Expected final progress 100, got %f", final.Progress)
	}
	if final.Status != StatusCompleted {
		t.Errorf("Expected status completed, got %s", final.Status)
	}
	if final.EndTime == nil {
		t.Error("Expected end time to be set for completed task")
	}
	if final.Seq <= updated.Seq {
		t.Errorf("Expected seq to grow, got %d after %d", final.Seq, updated.Seq)
	}
}

func TestGetJobReturnsCopy(t *testing.T) {
	manager := NewManager()
	task, _ := manager.CreateJob("p", nil)
	require.NoError(t, manager.MarkRunning(task.ID, "format"))

	got, err := manager.GetJob(task.ID)
	require.NoError(t, err)
	got.Counters[domain.CategoryFormat] = Counter{Errors: 99}
	got.Status = StatusFailed

	again, err := manager.GetJob(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, again.Status)
	assert.Empty(t, again.Counters)
}

func TestUnknownJob(t *testing.T) {
	manager := NewManager()

	_, err := manager.GetJob("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, manager.PauseJob("missing"), ErrNotFound)
	assert.ErrorIs(t, manager.CancelJob("missing"), ErrNotFound)

	resp, err := manager.Snapshot("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeNotFound, resp.Code)
}

func TestPauseResumeCancel(t *testing.T) {
	manager := NewManager()
	task, ctx := manager.CreateJob("p", nil)
	require.NoError(t, manager.MarkRunning(task.ID, "format"))

	require.NoError(t, manager.PauseJob(task.ID))
	got, _ := manager.GetJob(task.ID)
	assert.Equal(t, StatusPaused, got.Status)

	assert.ErrorIs(t, manager.UpdateProgress(task.ID, 50, "", nil), ErrInvalidState)

	require.NoError(t, manager.ResumeJob(task.ID))
	assert.ErrorIs(t, manager.ResumeJob(task.ID), ErrInvalidState)

	require.NoError(t, manager.CancelJob(task.ID))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	got, _ = manager.GetJob(task.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.NotNil(t, got.EndTime)
}

func TestTerminalStateWins(t *testing.T) {
	manager := NewManager()
	task, _ := manager.CreateJob("p", nil)
	require.NoError(t, manager.MarkRunning(task.ID, "format"))
	require.NoError(t, manager.Complete(task.ID, &domain.Result{}))

	assert.ErrorIs(t, manager.PauseJob(task.ID), ErrInvalidState)
	assert.ErrorIs(t, manager.CancelJob(task.ID), ErrInvalidState)
	assert.ErrorIs(t, manager.Fail(task.ID, errors.New("late")), ErrInvalidState)
}

func TestCancelPendingJob(t *testing.T) {
	manager := NewManager()
	task, ctx := manager.CreateJob("p", nil)

	require.NoError(t, manager.CancelJob(task.ID))
	assert.Error(t, ctx.Err())

	got, _ := manager.GetJob(task.ID)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestWaitWhilePaused(t *testing.T) {
	manager := NewManager()
	task, _ := manager.CreateJob("p", nil)
	require.NoError(t, manager.MarkRunning(task.ID, "format"))

	// not paused: returns immediately
	require.NoError(t, manager.WaitWhilePaused(context.Background(), task.ID))

	require.NoError(t, manager.PauseJob(task.ID))

	done := make(chan error, 1)
	go func() {
		done <- manager.WaitWhilePaused(context.Background(), task.ID)
	}()

	select {
	case <-done:
		t.Fatal("WaitWhilePaused returned while task is paused")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, manager.ResumeJob(task.ID))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitWhilePaused did not return after resume")
	}
}

func TestWaitWhilePausedHonoursContext(t *testing.T) {
	manager := NewManager()
	task, _ := manager.CreateJob("p", nil)
	require.NoError(t, manager.MarkRunning(task.ID, "format"))
	require.NoError(t, manager.PauseJob(task.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, manager.WaitWhilePaused(ctx, task.ID), context.DeadlineExceeded)
}

func TestListJobs(t *testing.T) {
	manager := NewManager()
	base := time.Unix(1000, 0)
	tick := 0
	manager.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	var ids []string
	for i := 0; i < 25; i++ {
		task, _ := manager.CreateJob("p", nil)
		ids = append(ids, task.ID)
	}

	tests := []struct {
		name          string
		page          int
		pageSize      int
		expectedLen   int
		expectedPage  int
		expectedSize  int
		expectedFirst string
	}{
		{"first page", 1, 10, 10, 1, 10, ids[0]},
		{"last partial page", 3, 10, 5, 3, 10, ids[20]},
		{"page past the end", 4, 10, 0, 4, 10, ""},
		{"invalid page size falls back to default", 1, 1000, 10, 1, DefaultPageSize, ids[0]},
		{"zero page becomes first", 0, 5, 5, 1, 5, ids[0]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := manager.ListJobs(tt.page, tt.pageSize)
			assert.Len(t, resp.Jobs, tt.expectedLen)
			assert.Equal(t, tt.expectedPage, resp.Page)
			assert.Equal(t, tt.expectedSize, resp.PageSize)
			assert.Equal(t, 25, resp.TotalJobs)
			if tt.expectedFirst != "" {
				assert.Equal(t, tt.expectedFirst, resp.Jobs[0].ID)
			}
		})
	}
}

func TestRemoveFinished(t *testing.T) {
	manager := NewManager()
	now := time.Unix(10_000, 0)
	manager.now = func() time.Time { return now }

	done, _ := manager.CreateJob("p", nil)
	require.NoError(t, manager.MarkRunning(done.ID, "format"))
	require.NoError(t, manager.Complete(done.ID, &domain.Result{}))

	running, _ := manager.CreateJob("p", nil)
	require.NoError(t, manager.MarkRunning(running.ID, "format"))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 0, manager.RemoveFinished(3*time.Hour))
	assert.Equal(t, 1, manager.RemoveFinished(time.Hour))

	_, err := manager.GetJob(done.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = manager.GetJob(running.ID)
	assert.NoError(t, err)
}
