package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/results"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// HTTP talks to the check service over its JSON API.
type HTTP struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(h *HTTP) {
		if perSecond <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// NewHTTP creates a transport for the service at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start submits a check.
func (h *HTTP) Start(ctx context.Context, req job.StartRequest) (job.StartResponse, error) {
	var resp job.StartResponse
	if err := h.do(ctx, http.MethodPost, "/api/checks", req, &resp); err != nil {
		return resp, fmt.Errorf("start check: %w", err)
	}
	if resp.Code != job.CodeOK {
		return resp, &CodeError{Op: "start check", Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

// Progress polls one task.
func (h *HTTP) Progress(ctx context.Context, taskID string) (job.ProgressResponse, error) {
	var resp job.ProgressResponse
	path := "/api/checks/" + url.PathEscape(taskID) + "/progress"
	if err := h.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return resp, fmt.Errorf("poll progress: %w", err)
	}
	if resp.Code != job.CodeOK {
		return resp, &CodeError{Op: "poll progress", Code: resp.Code, Message: resp.ErrorMessage}
	}
	return resp, nil
}

// Control sends pause, resume or cancel.
func (h *HTTP) Control(ctx context.Context, req job.ControlRequest) (job.ControlResponse, error) {
	var resp job.ControlResponse
	path := "/api/checks/" + url.PathEscape(req.TaskID) + "/control"
	if err := h.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return resp, fmt.Errorf("%s task: %w", req.Action, err)
	}
	if resp.Code != job.CodeOK {
		return resp, &CodeError{Op: string(req.Action) + " task", Code: resp.Code, Message: resp.Message}
	}
	return resp, nil
}

// ErrorsPage fetches one page of a task's errors.
func (h *HTTP) ErrorsPage(ctx context.Context, taskID string, filter results.Filter, page, pageSize int) (results.Page, error) {
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.ErrorType != "" {
		q.Set("errorType", filter.ErrorType)
	}
	q.Set("page", fmt.Sprint(page))
	q.Set("pageSize", fmt.Sprint(pageSize))

	var resp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		results.Page
	}
	path := "/api/checks/" + url.PathEscape(taskID) + "/errors?" + q.Encode()
	if err := h.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return results.Page{}, fmt.Errorf("list errors: %w", err)
	}
	if resp.Code != job.CodeOK {
		return results.Page{}, &CodeError{Op: "list errors", Code: resp.Code, Message: resp.Message}
	}
	return resp.Page, nil
}

// ListTasks fetches one page of tasks.
func (h *HTTP) ListTasks(ctx context.Context, page, pageSize int) (*job.Response, error) {
	var resp job.Response
	path := fmt.Sprintf("/api/checks?page=%d&pageSize=%d", page, pageSize)
	if err := h.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &resp, nil
}

// do sends one request and decodes the JSON body into out. The service puts
// its result code in the body, so non-2xx bodies are decoded as well.
func (h *HTTP) do(ctx context.Context, method, path string, body, out any) error {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
