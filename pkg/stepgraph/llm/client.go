// Package llm defines the completion-service collaborator that steps call
// through Context.LLM.
//
// Client is the only contract the engine knows about. The package ships a
// MockClient for tests and demos and an OpenAIClient that talks to any
// OpenAI-compatible chat completions endpoint, Ollama's /v1 API included.
//
// Completion failures are ordinary step failures: a step that gets an error
// from Complete, or cannot parse the returned text, returns the error and
// the recovery policy decides what happens next.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client performs completions.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ErrEmptyResponse indicates the service returned no choices.
var ErrEmptyResponse = errors.New("empty completion response")

// Error wraps a failed completion call.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
