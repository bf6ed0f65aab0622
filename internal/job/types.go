package job

import (
	"encoding/json"
	"time"

	"github.com/jaki95/check-engine/internal/domain"
)

// Status is a lifecycle state of a check task.
type Status string

// Constants for task status
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether s is absorbing.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Action is a task control command.
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionCancel Action = "cancel"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionPause || a == ActionResume || a == ActionCancel
}

// Response codes carried in every wire response.
const (
	CodeOK       = 0
	CodeInvalid  = 400
	CodeNotFound = 404
	CodeInternal = 500
)

// Constants for progress percentages
const (
	ProgressStart    = 0
	ProgressComplete = 100
)

// Constants for pagination
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Counter tracks per-category progress of a running check.
type Counter struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Errors    int `json:"errors"`
}

// Task is a single run of the check engine.
type Task struct {
	ID        string                      `json:"id"`
	ProjectID string                      `json:"projectId"`
	Status    Status                      `json:"status"`
	Progress  float64                     `json:"progress"`
	Phase     string                      `json:"currentPhase"`
	Counters  map[domain.Category]Counter `json:"counters"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
	EndTime   *time.Time                  `json:"endTime,omitempty"`
	Seq       int64                       `json:"seq"`
	Result    *domain.Result              `json:"result,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

// Clone returns a copy of t that shares no mutable maps with it.
func (t *Task) Clone() *Task {
	c := *t
	c.Counters = make(map[domain.Category]Counter, len(t.Counters))
	for k, v := range t.Counters {
		c.Counters[k] = v
	}
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	return &c
}

// StartRequest starts a check for a project.
type StartRequest struct {
	ProjectID  string          `json:"projectId" binding:"required"`
	RuleConfig json.RawMessage `json:"ruleConfig"`
	Async      bool            `json:"async"`
}

// StartResponse carries either a task ID (async) or the final result (sync).
type StartResponse struct {
	Code    int            `json:"code"`
	Async   bool           `json:"async"`
	TaskID  string         `json:"taskId,omitempty"`
	Result  *domain.Result `json:"result,omitempty"`
	Message string         `json:"message,omitempty"`
}

// ControlRequest pauses, resumes or cancels a task.
type ControlRequest struct {
	TaskID string `json:"taskId"`
	Action Action `json:"action" binding:"required"`
}

// ControlResponse acknowledges a control command.
type ControlResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// ProgressResponse is one polled snapshot of a task.
type ProgressResponse struct {
	Code         int        `json:"code"`
	TaskID       string     `json:"taskId,omitempty"`
	Status       Status     `json:"status,omitempty"`
	Progress     float64    `json:"progress"`
	CurrentPhase string     `json:"currentPhase"`
	Seq          int64      `json:"seq,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`

	FormatProcessed       int `json:"formatProcessed"`
	FormatTotal           int `json:"formatTotal"`
	FormatErrors          int `json:"formatErrors"`
	ResourceProcessed     int `json:"resourceProcessed"`
	ResourceTotal         int `json:"resourceTotal"`
	ResourceErrors        int `json:"resourceErrors"`
	ContentProcessed      int `json:"contentProcessed"`
	ContentTotal          int `json:"contentTotal"`
	ContentErrors         int `json:"contentErrors"`
	ImageQualityProcessed int `json:"imageQualityProcessed"`
	ImageQualityTotal     int `json:"imageQualityTotal"`
	ImageQualityErrors    int `json:"imageQualityErrors"`

	Result       *domain.Result `json:"result,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// Counters returns the per-category counters of the snapshot.
func (p *ProgressResponse) Counters() map[domain.Category]Counter {
	return map[domain.Category]Counter{
		domain.CategoryFormat:       {Processed: p.FormatProcessed, Total: p.FormatTotal, Errors: p.FormatErrors},
		domain.CategoryResource:     {Processed: p.ResourceProcessed, Total: p.ResourceTotal, Errors: p.ResourceErrors},
		domain.CategoryContent:      {Processed: p.ContentProcessed, Total: p.ContentTotal, Errors: p.ContentErrors},
		domain.CategoryImageQuality: {Processed: p.ImageQualityProcessed, Total: p.ImageQualityTotal, Errors: p.ImageQualityErrors},
	}
}

// NewProgressResponse builds the wire snapshot of a task.
func NewProgressResponse(t *Task) ProgressResponse {
	updated := t.UpdatedAt
	resp := ProgressResponse{
		Code:         CodeOK,
		TaskID:       t.ID,
		Status:       t.Status,
		Progress:     t.Progress,
		CurrentPhase: t.Phase,
		Seq:          t.Seq,
		UpdatedAt:    &updated,
		ErrorMessage: t.Error,
	}
	for cat, c := range t.Counters {
		switch cat {
		case domain.CategoryFormat:
			resp.FormatProcessed, resp.FormatTotal, resp.FormatErrors = c.Processed, c.Total, c.Errors
		case domain.CategoryResource:
			resp.ResourceProcessed, resp.ResourceTotal, resp.ResourceErrors = c.Processed, c.Total, c.Errors
		case domain.CategoryContent:
			resp.ContentProcessed, resp.ContentTotal, resp.ContentErrors = c.Processed, c.Total, c.Errors
		case domain.CategoryImageQuality:
			resp.ImageQualityProcessed, resp.ImageQualityTotal, resp.ImageQualityErrors = c.Processed, c.Total, c.Errors
		}
	}
	if t.Status == StatusCompleted {
		resp.Result = t.Result
	}
	return resp
}

// Response represents a page of tasks.
type Response struct {
	Jobs       []*Task `json:"jobs"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalJobs  int     `json:"totalJobs"`
	TotalPages int     `json:"totalPages"`
}
