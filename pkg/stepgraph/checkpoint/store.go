// Package checkpoint persists run snapshots keyed by thread id.
//
// A thread is a sequence of runs that share State: a conversation, a
// document under review, a pipeline that paused at an approval gate. The
// engine loads the thread's checkpoint before the first step and saves a
// new one after every step, so a later run with the same thread id resumes
// where the last one stopped.
//
// Every backend satisfies the same Store contract: memory, file, SQLite,
// Redis, and PostgreSQL.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store persists one checkpoint document per thread.
// Implementations must be safe for concurrent use. Concurrent saves for the
// same thread are last-writer-wins.
type Store interface {
	// Save stores data as the thread's checkpoint, replacing any previous one.
	Save(ctx context.Context, threadID string, data []byte) error

	// Load retrieves the thread's checkpoint.
	// Returns ErrNotFound if the thread has none.
	Load(ctx context.Context, threadID string) ([]byte, error)

	// List returns every stored thread ordered by thread id.
	// Returns an empty slice (not error) if the store is empty.
	List(ctx context.Context) ([]Info, error)

	// Delete removes the thread's checkpoint.
	// Returns nil if the thread has none.
	Delete(ctx context.Context, threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a stored thread without loading its document.
type Info struct {
	ThreadID  string    `json:"thread_id"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a thread has no checkpoint.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrInvalidThreadID indicates an empty thread id.
	ErrInvalidThreadID = errors.New("invalid thread id")
)

func validateThreadID(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidThreadID)
	}
	return nil
}
