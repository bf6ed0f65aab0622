package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/results"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTP {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTP(srv.URL + "/")
}

func TestHTTPStart(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/checks", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req job.StartRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "project-1", req.ProjectID)
		assert.True(t, req.Async)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(job.StartResponse{Code: job.CodeOK, Async: true, TaskID: "t-1"})
	})

	resp, err := h.Start(context.Background(), job.StartRequest{ProjectID: "project-1", Async: true})
	require.NoError(t, err)
	assert.Equal(t, "t-1", resp.TaskID)
}

func TestHTTPProgressNotFound(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checks/missing/progress", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(job.ProgressResponse{Code: job.CodeNotFound, ErrorMessage: "job not found: missing"})
	})

	_, err := h.Progress(context.Background(), "missing")
	require.Error(t, err)

	var codeErr *CodeError
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, job.CodeNotFound, codeErr.Code)
	assert.ErrorIs(t, err, job.ErrNotFound)
}

func TestHTTPControl(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checks/t-1/control", r.URL.Path)
		var req job.ControlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Action == job.ActionPause {
			json.NewEncoder(w).Encode(job.ControlResponse{Code: job.CodeOK})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(job.ControlResponse{Code: job.CodeInvalid, Message: "invalid job state"})
	})

	_, err := h.Control(context.Background(), job.ControlRequest{TaskID: "t-1", Action: job.ActionPause})
	require.NoError(t, err)

	_, err = h.Control(context.Background(), job.ControlRequest{TaskID: "t-1", Action: job.ActionResume})
	assert.ErrorIs(t, err, job.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "resume task")
}

func TestHTTPErrorsPage(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checks/t-1/errors", r.URL.Path)
		assert.Equal(t, "format", r.URL.Query().Get("category"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"code":0,"records":[{"errorType":"regex","category":"format","message":"m"}],"page":2,"pageSize":1,"totalPages":3,"total":3}`))
	})

	page, err := h.ErrorsPage(context.Background(), "t-1", results.Filter{Category: "format"}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Records, 1)
}

func TestHTTPNonJSONError(t *testing.T) {
	h := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := h.Progress(context.Background(), "t-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestHTTPRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(job.ProgressResponse{Code: job.CodeOK, Status: job.StatusRunning})
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL, WithRateLimit(1, 1))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.Progress(ctx, "t-1")
	require.NoError(t, err)

	// the second request would have to wait about a second
	_, err = h.Progress(ctx, "t-1")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCodeErrorUnwrap(t *testing.T) {
	assert.ErrorIs(t, &CodeError{Code: job.CodeInvalid}, job.ErrInvalidRequest)
	assert.NotErrorIs(t, &CodeError{Code: job.CodeInternal}, job.ErrNotFound)
	assert.Equal(t, "poll progress: service returned code 500", (&CodeError{Op: "poll progress", Code: 500}).Error())
}
