// Package query answers read-only questions about checkpointed threads.
//
// Queries load a thread's latest checkpoint and report part of it: its
// status, the gate it is paused at, a state field, the error records. They
// never modify the thread and need no compiled graph, so a CLI or server
// can inspect threads of any workflow.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/registry"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

var (
	// ErrQueryNotFound is returned when a query handler doesn't exist.
	ErrQueryNotFound = errors.New("query not found")

	// ErrThreadNotFound is returned when a thread has no checkpoint.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrFieldNotFound is returned by the field query for an unknown field.
	ErrFieldNotFound = errors.New("field not found")
)

// Snapshot is the queryable view of a thread's latest checkpoint.
type Snapshot struct {
	ThreadID  string            `json:"thread_id"`
	RunID     string            `json:"run_id"`
	Status    checkpoint.Status `json:"status"`
	Step      string            `json:"step,omitempty"`
	NextStep  string            `json:"next_step,omitempty"`
	Sequence  int               `json:"sequence"`
	UpdatedAt time.Time         `json:"updated_at"`

	// Fields holds the state fields as decoded from JSON.
	Fields map[string]any `json:"fields"`
	Meta   state.Meta     `json:"meta"`
}

// PendingGate returns the gate a paused thread waits at, or "".
func (s *Snapshot) PendingGate() string {
	if s.Status == checkpoint.StatusPaused {
		return s.NextStep
	}
	return ""
}

// Decode builds a Snapshot from a stored checkpoint document.
func Decode(data []byte) (*Snapshot, error) {
	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Fields map[string]any `json:"fields"`
		Meta   state.Meta     `json:"meta"`
	}
	if err := json.Unmarshal(cp.State, &doc); err != nil {
		return nil, fmt.Errorf("decode state document: %w", err)
	}
	return &Snapshot{
		ThreadID:  cp.ThreadID,
		RunID:     cp.RunID,
		Status:    cp.Status,
		Step:      cp.Step,
		NextStep:  cp.NextStep,
		Sequence:  cp.Sequence,
		UpdatedAt: cp.Timestamp,
		Fields:    doc.Fields,
		Meta:      doc.Meta,
	}, nil
}

// Loader retrieves a thread's snapshot.
type Loader func(ctx context.Context, threadID string) (*Snapshot, error)

// StoreLoader loads snapshots from a checkpoint store.
func StoreLoader(store checkpoint.Store) Loader {
	return func(ctx context.Context, threadID string) (*Snapshot, error) {
		data, err := store.Load(ctx, threadID)
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
		}
		if err != nil {
			return nil, err
		}
		return Decode(data)
	}
}

// Handler computes a query result from a snapshot.
// arg is query-specific and may be empty.
type Handler func(ctx context.Context, snap *Snapshot, arg string) (any, error)

// Built-in query names.
const (
	QueryStatus      = "status"       // Returns the checkpoint status
	QueryNextStep    = "next_step"    // Returns where a resumed run continues
	QueryPendingGate = "pending_gate" // Returns the gate a paused thread waits at
	QueryFields      = "fields"       // Returns all state fields
	QueryField       = "field"        // Returns the field named by arg
	QueryErrors      = "errors"       // Returns the error records
	QueryLog         = "log"          // Returns the audit log
	QuerySnapshot    = "snapshot"     // Returns the full snapshot
)

// Executor runs queries against threads.
type Executor struct {
	handlers *registry.Registry[string, Handler]
	load     Loader
}

// NewExecutor creates an executor with the built-in queries registered.
func NewExecutor(load Loader) *Executor {
	e := &Executor{
		handlers: registry.New[string, Handler](),
		load:     load,
	}
	for name, h := range builtins() {
		// builtin names are distinct
		_ = e.handlers.Register(name, h)
	}
	return e
}

// Register adds a custom query.
func (e *Executor) Register(name string, h Handler) error {
	if name == "" {
		return errors.New("query name is required")
	}
	if h == nil {
		return errors.New("handler is required")
	}
	return e.handlers.Register(name, h)
}

// Names returns all registered query names, sorted.
func (e *Executor) Names() []string {
	return e.handlers.Keys()
}

// Execute loads threadID and runs the named query.
func (e *Executor) Execute(ctx context.Context, threadID, name, arg string) (any, error) {
	if threadID == "" {
		return nil, errors.New("thread ID is required")
	}
	h, ok := e.handlers.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, name)
	}
	snap, err := e.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return h(ctx, snap, arg)
}

// Snapshot loads the thread's snapshot.
func (e *Executor) Snapshot(ctx context.Context, threadID string) (*Snapshot, error) {
	return e.load(ctx, threadID)
}

// Result wraps a query result with metadata.
type Result struct {
	// QueryName is the query that was executed.
	QueryName string `json:"query_name"`

	// ThreadID is the thread that was queried.
	ThreadID string `json:"thread_id"`

	// Value is the query result.
	Value any `json:"value"`

	// Error contains error details if the query failed.
	Error string `json:"error,omitempty"`
}

// ExecuteMultiple runs several queries, keyed by name with their args,
// against one snapshot. Results are sorted by query name and include
// failures.
func (e *Executor) ExecuteMultiple(ctx context.Context, threadID string, queries map[string]string) ([]Result, error) {
	snap, err := e.load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	slices.Sort(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		r := Result{QueryName: name, ThreadID: threadID}
		h, ok := e.handlers.Lookup(name)
		if !ok {
			r.Error = fmt.Errorf("%w: %s", ErrQueryNotFound, name).Error()
		} else if v, err := h(ctx, snap, queries[name]); err != nil {
			r.Error = err.Error()
		} else {
			r.Value = v
		}
		results = append(results, r)
	}
	return results, nil
}

func builtins() map[string]Handler {
	return map[string]Handler{
		QueryStatus: func(_ context.Context, s *Snapshot, _ string) (any, error) {
			return s.Status, nil
		},
		QueryNextStep: func(_ context.Context, s *Snapshot, _ string) (any, error) {
			return s.NextStep, nil
		},
		QueryPendingGate: func(_ context.Context, s *Snapshot, _ string) (any, error) {
			return s.PendingGate(), nil
		},
		QueryFields: func(_ context.Context, s *Snapshot, _ string) (any, error) {
			return s.Fields, nil
		},
		QueryField: func(_ context.Context, s *Snapshot, name string) (any, error) {
			v, ok := s.Fields[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
			}
			return v, nil
		},
		QueryErrors: func(_ context.Context, s *Snapshot, _ string) (any, error) {
			return s.Meta.Errors, nil
		},
		QueryLog: func(_ context.Context, s *Snapshot, _ string) (any, error) {
			return s.Meta.Log, nil
		},
		QuerySnapshot: func(_ context.Context, s *Snapshot, _ string) (any, error) {
			return s, nil
		},
	}
}
