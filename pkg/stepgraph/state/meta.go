package state

import "fmt"

// ErrorRecord describes one failed step attempt.
type ErrorRecord struct {
	Step    string `json:"step"`
	Attempt int    `json:"attempt"`
	Message string `json:"message"`
}

// String formats the record the way it appears in the audit log.
func (r ErrorRecord) String() string {
	return fmt.Sprintf("Error at step %s (attempt %d): %s", r.Step, r.Attempt, r.Message)
}

// Meta is the bookkeeping the engine keeps alongside the user fields.
// Steps never write Meta; the engine and the recovery policy do.
type Meta struct {
	// CurrentStep is the step most recently entered.
	CurrentStep string `json:"current_step"`

	// RetryCount is the number of retries spent on the current failure.
	// It resets to 0 whenever a step completes.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the retry limit in effect for the run.
	MaxRetries int `json:"max_retries"`

	// LastSuccessfulStep is the most recent step that completed.
	LastSuccessfulStep string `json:"last_successful_step,omitempty"`

	// FailedStep is the step whose failure is being recovered.
	FailedStep string `json:"failed_step,omitempty"`

	// Errors lists every failed attempt of the run in order.
	Errors []ErrorRecord `json:"errors,omitempty"`

	// Log is the run's audit trail.
	Log []string `json:"log,omitempty"`

	// Steps counts step executions in the run, including retries.
	Steps int `json:"steps"`

	// Rollbacks counts rollbacks performed in the run.
	Rollbacks int `json:"rollbacks"`
}

// Clone returns a copy of m that shares no slices with it.
func (m Meta) Clone() Meta {
	out := m
	if m.Errors != nil {
		out.Errors = make([]ErrorRecord, len(m.Errors))
		copy(out.Errors, m.Errors)
	}
	if m.Log != nil {
		out.Log = make([]string, len(m.Log))
		copy(out.Log, m.Log)
	}
	return out
}

// ResetRun clears the run-scoped bookkeeping while keeping MaxRetries.
// Applied when a finished thread is invoked again.
func (m Meta) ResetRun() Meta {
	return Meta{MaxRetries: m.MaxRetries}
}
