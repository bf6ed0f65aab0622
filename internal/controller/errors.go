package controller

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskTerminal is returned for commands on a task that already
	// reached a terminal status. The command is not sent.
	ErrTaskTerminal = errors.New("task already finished")

	// ErrStopped is returned by Wait after Stop ended polling early.
	ErrStopped = errors.New("polling stopped")

	// ErrProtocol marks a service response that breaks the contract.
	ErrProtocol = errors.New("protocol error")
)

// TaskFailedError is returned by Wait when the service reports FAILED.
type TaskFailedError struct {
	TaskID  string
	Message string
}

func (e *TaskFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task %s failed", e.TaskID)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}
