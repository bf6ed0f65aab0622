package job

import "errors"

var (
	ErrNotFound       = errors.New("task not found")
	ErrInvalidState   = errors.New("invalid task state")
	ErrInvalidStatus  = errors.New("invalid task status")
	ErrInvalidRequest = errors.New("invalid request")
)
