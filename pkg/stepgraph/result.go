package stepgraph

import "github.com/randalmurphal/stepgraph/pkg/stepgraph/state"

// Outcome is how a Run ended.
type Outcome int

// Run outcomes. The zero value means the run returned an error before
// reaching one of them.
const (
	// Completed means the run reached END.
	Completed Outcome = iota + 1
	// Failed means a step failed and recovery was exhausted.
	Failed
	// Paused means the run stopped at a gate awaiting a signal.
	Paused
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Paused:
		return "paused"
	default:
		return "none"
	}
}

// Result is the value of a Run.
//
// Callers must check Outcome: a Failed run returns a nil error together
// with the ordered error records.
type Result struct {
	// State is the final state, or the state at the point of failure.
	State state.State
	// Outcome is how the run ended.
	Outcome Outcome

	RunID    string
	ThreadID string

	// PausedAt is the gate the run stopped at when Outcome is Paused.
	PausedAt StepID
	// FailedStep is the step whose failure ended the run when Outcome is Failed.
	FailedStep StepID
	// Errors lists every recorded step failure, oldest first.
	Errors []state.ErrorRecord
	// Steps counts step executions and gate passes in this call.
	Steps int
}
