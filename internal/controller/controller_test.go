package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/check-engine/internal/domain"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/session"
	"github.com/jaki95/check-engine/internal/transport"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Start(ctx context.Context, req job.StartRequest) (job.StartResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(job.StartResponse), args.Error(1)
}

func (m *mockTransport) Progress(ctx context.Context, taskID string) (job.ProgressResponse, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(job.ProgressResponse), args.Error(1)
}

func (m *mockTransport) Control(ctx context.Context, req job.ControlRequest) (job.ControlResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(job.ControlResponse), args.Error(1)
}

// recorder collects listener events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) kinds() []EventKind {
	var out []EventKind
	for _, e := range r.snapshot() {
		out = append(out, e.Kind)
	}
	return out
}

func snapshot(seq int64, status job.Status, progress float64) job.ProgressResponse {
	return job.ProgressResponse{
		Code:         job.CodeOK,
		TaskID:       "t-1",
		Status:       status,
		Progress:     progress,
		CurrentPhase: "format",
		Seq:          seq,
		FormatTotal:  10,
	}
}

func scenarioResult() *domain.Result {
	return &domain.Result{Errors: []domain.ErrorRecord{{
		RowIndex:       domain.Ptr(3),
		Column:         domain.Ptr("image"),
		ErrorType:      "stainValue",
		Category:       domain.CategoryImageQuality,
		Message:        "stain",
		HiddenFileName: domain.Ptr("p1.jpg"),
		Details:        &domain.Details{Locations: []domain.Location{{10, 20, 30, 40}, {50, 60, 10, 10}}},
	}}}
}

func newController(t *testing.T, tr transport.Transport, rec *recorder) *Controller {
	t.Helper()
	opts := Options{
		PollInterval:      time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
		ControlRetryDelay: time.Millisecond,
	}
	if rec != nil {
		opts.Listeners = []Listener{rec.listen}
	}
	return New(tr, session.New("project-1", nil), opts)
}

func startAsync(t *testing.T, c *Controller, tr *mockTransport) *Handle {
	t.Helper()
	tr.On("Start", mock.Anything, mock.MatchedBy(func(req job.StartRequest) bool {
		return req.ProjectID == "project-1" && req.Async
	})).Return(job.StartResponse{Code: job.CodeOK, Async: true, TaskID: "t-1"}, nil).Once()

	h, err := c.Start(context.Background(), job.StartRequest{Async: true})
	require.NoError(t, err)
	return h
}

func wait(t *testing.T, h *Handle) (job.Task, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	task, err := h.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return task, err
}

func assertLegal(t *testing.T, history []job.Status) {
	t.Helper()
	for i := 1; i < len(history); i++ {
		assert.NoError(t, job.ValidateTransition(history[i-1], history[i]), "history %v", history)
	}
}

func TestAsyncRunToCompletion(t *testing.T) {
	tr := new(mockTransport)
	rec := &recorder{}
	c := newController(t, tr, rec)

	completed := snapshot(3, job.StatusCompleted, 100)
	completed.Result = scenarioResult()

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusRunning, 10), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(2, job.StatusRunning, 60), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(completed, nil).Once()
	h := startAsync(t, c, tr)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, task.Status)
	assert.Equal(t, float64(job.ProgressComplete), task.Progress)
	assert.Equal(t, []job.Status{job.StatusPending, job.StatusRunning, job.StatusCompleted}, h.History())

	// the pipeline committed before Done closed
	s := c.Session()
	assert.Len(t, s.Annotations(), 2)
	assert.Equal(t, []domain.CellKey{{RowIndex: 3, Column: "image"}}, s.Aggregation().Cells.Keys())

	kinds := rec.kinds()
	assert.Contains(t, kinds, EventProgress)
	assert.Equal(t, EventCompleted, kinds[len(kinds)-1])
	tr.AssertExpectations(t)
}

func TestPollingStopsOnTerminalStatus(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusCancelled, 10), nil).Once()
	h := startAsync(t, c, tr)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, task.Status)

	// give a leaked loop the chance to poll again
	time.Sleep(10 * time.Millisecond)
	tr.AssertNumberOfCalls(t, "Progress", 1)
}

func TestFailedTaskSurfacesError(t *testing.T) {
	tr := new(mockTransport)
	rec := &recorder{}
	c := newController(t, tr, rec)

	failed := snapshot(2, job.StatusFailed, 40)
	failed.ErrorMessage = "detector offline"
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusRunning, 40), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(failed, nil).Once()
	h := startAsync(t, c, tr)

	task, err := wait(t, h)
	var taskErr *TaskFailedError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "detector offline", taskErr.Message)
	assert.Equal(t, job.StatusFailed, task.Status)
	assert.Contains(t, rec.kinds(), EventFailed)
}

func TestStaleAndDuplicateSnapshotsDiscarded(t *testing.T) {
	tr := new(mockTransport)
	rec := &recorder{}
	c := newController(t, tr, rec)

	completed := snapshot(5, job.StatusCompleted, 100)
	completed.Result = &domain.Result{}

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(3, job.StatusRunning, 50), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(3, job.StatusRunning, 50), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(2, job.StatusRunning, 20), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(completed, nil).Once()
	h := startAsync(t, c, tr)

	_, err := wait(t, h)
	require.NoError(t, err)

	var progress []float64
	for _, e := range rec.snapshot() {
		if e.Kind == EventProgress {
			progress = append(progress, e.Task.Progress)
		}
	}
	assert.Equal(t, []float64{50, 100}, progress)
}

func TestUpdatedAtOrdersSnapshotsWithoutSeq(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	t0 := time.Unix(1000, 0)
	t1 := t0.Add(time.Second)
	first := snapshot(0, job.StatusRunning, 30)
	first.UpdatedAt = &t1
	older := snapshot(0, job.StatusRunning, 10)
	older.UpdatedAt = &t0
	done := snapshot(0, job.StatusCancelled, 30)
	later := t1.Add(time.Second)
	done.UpdatedAt = &later

	tr.On("Progress", mock.Anything, "t-1").Return(first, nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(older, nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(done, nil).Once()
	h := startAsync(t, c, tr)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, 30.0, task.Progress)
}

func TestIllegalSnapshotDiscardedAndGapsFilled(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusPaused, 30), nil).Once()
	// PENDING is never reachable again
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(2, job.StatusPending, 0), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(3, job.StatusCompleted, 100), nil).Once()
	h := startAsync(t, c, tr)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, task.Status)

	history := h.History()
	assert.Equal(t, []job.Status{
		job.StatusPending, job.StatusRunning, job.StatusPaused, job.StatusRunning, job.StatusCompleted,
	}, history)
	assertLegal(t, history)
}

func TestPausedSnapshotKeepsProgress(t *testing.T) {
	tr := new(mockTransport)
	rec := &recorder{}
	c := newController(t, tr, rec)

	paused := snapshot(2, job.StatusPaused, 0)
	paused.FormatProcessed = 0
	paused.CurrentPhase = "paused"
	running := snapshot(1, job.StatusRunning, 40)
	running.FormatProcessed = 4

	tr.On("Progress", mock.Anything, "t-1").Return(running, nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(paused, nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(3, job.StatusCancelled, 40), nil).Once()
	h := startAsync(t, c, tr)

	_, err := wait(t, h)
	require.NoError(t, err)

	var seenPaused job.Task
	for _, e := range rec.snapshot() {
		if e.Kind == EventStatus && e.Task.Status == job.StatusPaused {
			seenPaused = e.Task
		}
	}
	assert.Equal(t, 40.0, seenPaused.Progress)
	assert.Equal(t, 4, seenPaused.Counters[domain.CategoryFormat].Processed)
	assert.Equal(t, "paused", seenPaused.Phase)
}

func TestMissingStatusIsNoOp(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	tr.On("Progress", mock.Anything, "t-1").Return(job.ProgressResponse{Code: job.CodeOK, Progress: 99}, nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusCancelled, 5), nil).Once()
	h := startAsync(t, c, tr)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, 5.0, task.Progress)
}

func TestTransportErrorsBackOffAndRecover(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	b := c.pollBackoff()
	var delays []time.Duration
	for i := 0; i < 5; i++ {
		d, stop := b.Next()
		require.False(t, stop)
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond,
	}, delays)

	netErr := errors.New("connection refused")
	tr.On("Progress", mock.Anything, "t-1").Return(job.ProgressResponse{}, netErr).Times(3)
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusCompleted, 100), nil).Once()
	h := startAsync(t, c, tr)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, task.Status)
	tr.AssertNumberOfCalls(t, "Progress", 4)
}

func TestUnknownTaskEndsPolling(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	tr.On("Progress", mock.Anything, "t-1").
		Return(job.ProgressResponse{}, &transport.CodeError{Op: "poll progress", Code: job.CodeNotFound}).Once()
	h := startAsync(t, c, tr)

	_, err := wait(t, h)
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestSyncStartBypassesPolling(t *testing.T) {
	tr := new(mockTransport)
	rec := &recorder{}
	c := newController(t, tr, rec)

	result := scenarioResult()
	result.ServiceUnavailable = true
	tr.On("Start", mock.Anything, mock.Anything).Return(job.StartResponse{Code: job.CodeOK, Result: result}, nil).Once()

	h, err := c.Start(context.Background(), job.StartRequest{})
	require.NoError(t, err)

	select {
	case <-h.Done():
	default:
		t.Fatal("sync handle should already be done")
	}

	task, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, task.Status)
	assert.Equal(t, []job.Status{job.StatusPending, job.StatusRunning, job.StatusCompleted}, h.History())
	assert.Len(t, c.Session().Annotations(), 2)
	assert.NotEmpty(t, c.Session().Advisory())
	assert.Contains(t, rec.kinds(), EventAdvisory)
	tr.AssertNotCalled(t, "Progress", mock.Anything, mock.Anything)
}

func TestAsyncStartWithoutTaskID(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)
	tr.On("Start", mock.Anything, mock.Anything).Return(job.StartResponse{Code: job.CodeOK, Async: true}, nil).Once()

	_, err := c.Start(context.Background(), job.StartRequest{Async: true})
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestStop(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusRunning, 10), nil).Maybe()
	h := startAsync(t, c, tr)

	h.Stop()
	_, err := wait(t, h)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPauseResumeOptimisticThenReconciled(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	gate := make(chan struct{})
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusRunning, 10), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(2, job.StatusPaused, 10), nil).
		Run(func(mock.Arguments) { <-gate }).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(3, job.StatusRunning, 20), nil).Once()
	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(4, job.StatusCompleted, 100), nil).Once()
	h := startAsync(t, c, tr)

	require.Eventually(t, func() bool { return h.Task().Status == job.StatusRunning }, time.Second, time.Millisecond)

	tr.On("Control", mock.Anything, job.ControlRequest{TaskID: "t-1", Action: job.ActionPause}).
		Return(job.ControlResponse{Code: job.CodeOK}, nil).Once()
	require.NoError(t, c.Pause(context.Background(), "t-1"))
	assert.Equal(t, job.StatusPaused, h.Task().Status, "pause is applied optimistically")
	close(gate)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, task.Status)
	assertLegal(t, h.History())
}

func TestCancelAcknowledgementEndsPolling(t *testing.T) {
	tr := new(mockTransport)
	rec := &recorder{}
	c := newController(t, tr, rec)

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusRunning, 10), nil).Maybe()
	h := startAsync(t, c, tr)
	require.Eventually(t, func() bool { return h.Task().Status == job.StatusRunning }, time.Second, time.Millisecond)

	tr.On("Control", mock.Anything, job.ControlRequest{TaskID: "t-1", Action: job.ActionCancel}).
		Return(job.ControlResponse{Code: job.CodeOK}, nil).Once()
	require.NoError(t, c.Cancel(context.Background(), "t-1"))

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, task.Status)
	assert.Contains(t, rec.kinds(), EventCancelled)
}

func TestCommandsOnTerminalTaskAreNotSent(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusCompleted, 100), nil).Once()
	h := startAsync(t, c, tr)
	_, err := wait(t, h)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Pause(context.Background(), "t-1"), ErrTaskTerminal)
	assert.ErrorIs(t, c.Cancel(context.Background(), "t-1"), ErrTaskTerminal)
	tr.AssertNotCalled(t, "Control", mock.Anything, mock.Anything)
}

func TestControlRetriesTransportFailures(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	netErr := errors.New("connection reset")
	req := job.ControlRequest{TaskID: "remote", Action: job.ActionPause}

	tr.On("Control", mock.Anything, req).Return(job.ControlResponse{}, netErr).Twice()
	tr.On("Control", mock.Anything, req).Return(job.ControlResponse{Code: job.CodeOK}, nil).Once()
	require.NoError(t, c.Pause(context.Background(), "remote"))
	tr.AssertNumberOfCalls(t, "Control", 3)
}

func TestControlGivesUpAfterRetries(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	netErr := errors.New("connection reset")
	tr.On("Control", mock.Anything, mock.Anything).Return(job.ControlResponse{}, netErr)

	err := c.Resume(context.Background(), "remote")
	assert.ErrorIs(t, err, netErr)
	tr.AssertNumberOfCalls(t, "Control", 3)
}

func TestControlDoesNotRetryServiceRejection(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	rejected := &transport.CodeError{Op: "pause task", Code: job.CodeInvalid, Message: "invalid job state"}
	tr.On("Control", mock.Anything, mock.Anything).Return(job.ControlResponse{Code: job.CodeInvalid}, rejected).Once()

	err := c.Pause(context.Background(), "remote")
	assert.ErrorIs(t, err, job.ErrInvalidRequest)
	tr.AssertNumberOfCalls(t, "Control", 1)
}

func TestCancelRightAfterStart(t *testing.T) {
	tr := new(mockTransport)
	c := newController(t, tr, nil)

	tr.On("Progress", mock.Anything, "t-1").Return(snapshot(1, job.StatusRunning, 10), nil).Maybe()
	tr.On("Control", mock.Anything, job.ControlRequest{TaskID: "t-1", Action: job.ActionCancel}).
		Return(job.ControlResponse{Code: job.CodeOK}, nil).Once()

	cancelled := make(chan error, 1)
	go func() {
		for {
			if _, ok := c.Handle("t-1"); ok {
				cancelled <- c.Cancel(context.Background(), "t-1")
				return
			}
			time.Sleep(10 * time.Microsecond)
		}
	}()

	h := startAsync(t, c, tr)

	select {
	case err := <-cancelled:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel never reached the handle")
	}

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelled, task.Status)
	assertLegal(t, h.History())
}

func TestCompletedSnapshotWithMalformedRecord(t *testing.T) {
	const body = `{"code":0,"taskId":"t-1","status":"COMPLETED","progress":100,"currentPhase":"completed","seq":4,
		"result":{"errors":[
			{"rowIndex":3,"column":"image","errorType":"stainValue","category":"image_quality","message":"stain",
			 "hiddenFileName":"p1.jpg","details":{"locations":[[10,20,30,40]]}},
			{"rowIndex":4,"column":"sku","errorType":"regex","category":"format","message":""}
		]}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/checks":
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `{"code":0,"async":true,"taskId":"t-1"}`)
		case "/api/checks/t-1/progress":
			fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	c := newController(t, transport.NewHTTP(srv.URL), rec)

	h, err := c.Start(context.Background(), job.StartRequest{Async: true})
	require.NoError(t, err)

	task, err := wait(t, h)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, task.Status)

	errs := c.Session().Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "stainValue", errs[0].ErrorType)
	assert.Len(t, c.Session().Annotations(), 1)
	assert.Contains(t, rec.kinds(), EventCompleted)
}
