// Package transport carries check commands and progress polls between the
// controller and the check service.
package transport

import (
	"context"
	"fmt"

	"github.com/jaki95/check-engine/internal/job"
)

// Transport is the request/response channel to the check service.
type Transport interface {
	Start(ctx context.Context, req job.StartRequest) (job.StartResponse, error)
	Progress(ctx context.Context, taskID string) (job.ProgressResponse, error)
	Control(ctx context.Context, req job.ControlRequest) (job.ControlResponse, error)
}

// CodeError is returned when the service answers with a non-zero code.
type CodeError struct {
	Op      string
	Code    int
	Message string
}

func (e *CodeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: service returned code %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: service returned code %d: %s", e.Op, e.Code, e.Message)
}

// Unwrap maps the code onto the job package sentinels.
func (e *CodeError) Unwrap() error {
	switch e.Code {
	case job.CodeNotFound:
		return job.ErrNotFound
	case job.CodeInvalid:
		return job.ErrInvalidRequest
	default:
		return nil
	}
}
