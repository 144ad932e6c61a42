package client

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBaseURL indicates the configured API base URL cannot be used.
	ErrInvalidBaseURL = errors.New("invalid base url")

	// ErrUnexpectedStatus indicates the server answered outside the 2xx range.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// FetchError wraps a failed read call. The local cache stays valid when one
// occurs; callers surface it as a dismissible banner state.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("client: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("client: %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CommandError wraps a failed write call (mark-read, save-preferences).
// It triggers a bounded rollback of the optimistic mutation and a one-shot
// user-visible notice; it is never retried silently.
type CommandError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *CommandError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("client: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("client: %s failed: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
