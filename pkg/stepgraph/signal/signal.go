// Package signal delivers gate signals to paused threads.
//
// A Signal names a thread, the workflow that owns it, the gate's signal
// field and the label to write there. The Dispatcher hands each signal to
// the handler registered for its workflow, which normally resumes the
// thread's run, and records the outcome in a Store.
//
// Delivery is synchronous. Signals to the same thread are delivered one at
// a time in arrival order; signals to different threads run concurrently.
package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// Status represents the current state of a signal.
type Status string

// Signal status constants.
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Signal is a label for a gate on a paused thread.
type Signal struct {
	// ID uniquely identifies this signal.
	ID string `json:"id"`

	ThreadID string `json:"thread_id"`
	Workflow string `json:"workflow"`

	// Field is the gate's signal field, Label the value written to it.
	Field string `json:"field"`
	Label string `json:"label"`

	// Input is merged into the state together with the label.
	Input state.Update `json:"input,omitempty"`

	// SenderID identifies who sent the signal.
	SenderID string `json:"sender_id,omitempty"`

	// Status is the current signal status.
	Status Status `json:"status"`

	// Timestamps
	SentAt      time.Time  `json:"sent_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// Error contains error details if processing failed.
	Error string `json:"error,omitempty"`
}

// New creates a pending signal.
func New(threadID, workflow, field, label string) *Signal {
	return &Signal{
		ID:       fmt.Sprintf("sig-%s", uuid.New().String()[:8]),
		ThreadID: threadID,
		Workflow: workflow,
		Field:    field,
		Label:    label,
		Status:   StatusPending,
		SentAt:   time.Now(),
	}
}

// WithInput sets extra fields merged alongside the label.
func (s *Signal) WithInput(u state.Update) *Signal {
	s.Input = u
	return s
}

// WithSender sets the sender ID on the signal.
func (s *Signal) WithSender(senderID string) *Signal {
	s.SenderID = senderID
	return s
}

// Update returns the state update the signal carries: its input plus the
// label under the signal field.
func (s *Signal) Update() state.Update {
	u := make(state.Update, len(s.Input)+1)
	for k, v := range s.Input {
		u[k] = v
	}
	if s.Field != "" {
		u[s.Field] = s.Label
	}
	return u
}

// Clone creates a deep copy of the signal.
func (s *Signal) Clone() *Signal {
	c := *s
	if s.Input != nil {
		c.Input = deepcopy.Copy(s.Input).(state.Update)
	}
	if s.ProcessedAt != nil {
		t := *s.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}
