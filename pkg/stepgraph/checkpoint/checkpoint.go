package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// ErrVersionMismatch indicates a document written by an incompatible version.
var ErrVersionMismatch = errors.New("checkpoint version mismatch")

// Status records where the run stood when the checkpoint was written.
type Status string

const (
	// StatusRunning means the run was between steps. Resume at NextStep.
	StatusRunning Status = "running"
	// StatusPaused means the run stopped at the gate named by NextStep.
	StatusPaused Status = "paused"
	// StatusCompleted means the run reached END.
	StatusCompleted Status = "completed"
	// StatusFailed means recovery was exhausted.
	StatusFailed Status = "failed"
)

// Finished reports whether a new run on the thread starts from the entry step.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Checkpoint is the persisted snapshot of a thread.
type Checkpoint struct {
	Version   int       `json:"version"`
	ThreadID  string    `json:"thread_id"`
	RunID     string    `json:"run_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Step is the step that ran last. Empty before the first step.
	Step string `json:"step,omitempty"`

	// NextStep is where a resumed run continues.
	NextStep string `json:"next_step,omitempty"`

	Status Status `json:"status"`

	// State is the encoded state document.
	State json.RawMessage `json:"state"`
}

// New creates a running checkpoint. State must already be JSON-encoded.
func New(threadID, runID string, sequence int, state []byte) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		ThreadID:  threadID,
		RunID:     runID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		Status:    StatusRunning,
		State:     state,
	}
}

// At records the step that ran and where execution continues.
func (c *Checkpoint) At(step, next string) *Checkpoint {
	c.Step = step
	c.NextStep = next
	return c
}

// WithStatus sets the status.
func (c *Checkpoint) WithStatus(s Status) *Checkpoint {
	c.Status = s
	return c
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint and checks its version.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if c.Version != Version {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrVersionMismatch, c.Version, Version)
	}
	return &c, nil
}
