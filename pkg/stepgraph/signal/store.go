package signal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSignalNotFound is returned when a signal cannot be found.
var ErrSignalNotFound = errors.New("signal not found")

// Store records signals and their outcomes.
type Store interface {
	// Enqueue records a pending signal.
	Enqueue(ctx context.Context, signal *Signal) error

	// Get retrieves a signal by ID.
	Get(ctx context.Context, signalID string) (*Signal, error)

	// MarkProcessed marks a signal as successfully processed.
	MarkProcessed(ctx context.Context, signalID string) error

	// MarkFailed marks a signal as failed with an error.
	MarkFailed(ctx context.Context, signalID string, err error) error

	// List returns a thread's signals, oldest first.
	List(ctx context.Context, threadID string) ([]*Signal, error)

	// Delete removes a thread's signals.
	Delete(ctx context.Context, threadID string) error
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	signals  map[string]*Signal
	byThread map[string][]string // threadID -> signal IDs
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory signal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:  make(map[string]*Signal),
		byThread: make(map[string][]string),
	}
}

// Enqueue records a pending signal.
func (s *MemoryStore) Enqueue(_ context.Context, signal *Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.signals[signal.ID]; !exists {
		s.byThread[signal.ThreadID] = append(s.byThread[signal.ThreadID], signal.ID)
	}
	s.signals[signal.ID] = signal.Clone()
	return nil
}

// Get retrieves a signal by ID.
func (s *MemoryStore) Get(_ context.Context, signalID string) (*Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[signalID]
	if !ok {
		return nil, ErrSignalNotFound
	}
	return sig.Clone(), nil
}

// MarkProcessed marks a signal as successfully processed.
func (s *MemoryStore) MarkProcessed(_ context.Context, signalID string) error {
	return s.mark(signalID, StatusProcessed, "")
}

// MarkFailed marks a signal as failed with an error.
func (s *MemoryStore) MarkFailed(_ context.Context, signalID string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.mark(signalID, StatusFailed, msg)
}

func (s *MemoryStore) mark(signalID string, status Status, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[signalID]
	if !ok {
		return ErrSignalNotFound
	}
	now := time.Now()
	sig.Status = status
	sig.ProcessedAt = &now
	sig.Error = msg
	return nil
}

// List returns a thread's signals, oldest first.
func (s *MemoryStore) List(_ context.Context, threadID string) ([]*Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byThread[threadID]
	out := make([]*Signal, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.signals[id].Clone())
	}
	return out, nil
}

// Delete removes a thread's signals.
func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byThread[threadID] {
		delete(s.signals, id)
	}
	delete(s.byThread, threadID)
	return nil
}
