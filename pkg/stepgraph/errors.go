package stepgraph

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent step.
	ErrEntryNotFound = errors.New("entry point step not found")

	// ErrStepNotFound is matched by every *UnknownStepError.
	ErrStepNotFound = errors.New("step not found")

	// ErrNoOutgoingEdge indicates a step has no edge, conditional edge, or gate routes.
	ErrNoOutgoingEdge = errors.New("step has no outgoing edge")

	// ErrMultipleEdges indicates a step has more than one outgoing edge.
	ErrMultipleEdges = errors.New("step has multiple outgoing edges")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")

	// ErrInvalidGate indicates a gate's signal field cannot carry a label.
	ErrInvalidGate = errors.New("invalid gate")

	// ErrInvalidCondition indicates a condition reads a path its schema
	// field cannot hold.
	ErrInvalidCondition = errors.New("invalid condition")
)

// Sentinel errors for execution.
var (
	// ErrMaxSteps indicates the run exceeded the configured step bound.
	ErrMaxSteps = errors.New("exceeded maximum steps")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrThreadIDRequired indicates a checkpoint store was configured without a thread ID.
	ErrThreadIDRequired = errors.New("thread ID required for checkpointing")

	// ErrInvalidResumeStep indicates a checkpoint names a step the graph doesn't have.
	ErrInvalidResumeStep = errors.New("invalid resume step")
)

// DuplicateStepError reports a step id registered more than once.
type DuplicateStepError struct {
	ID StepID
}

// Error implements the error interface.
func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step ID: %s", e.ID)
}

// UnknownStepError reports a reference to a step that was never registered.
type UnknownStepError struct {
	// ID is the missing step.
	ID StepID
	// Ref describes where the reference came from, e.g. "edge from load".
	Ref string
}

// Error implements the error interface.
func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q referenced by %s", e.ID, e.Ref)
}

// Unwrap returns ErrStepNotFound for errors.Is support.
func (e *UnknownStepError) Unwrap() error {
	return ErrStepNotFound
}

// RoutingError reports a router or gate label with no route.
// Routing errors are configuration errors and are never retried.
type RoutingError struct {
	// From is the step owning the conditional edge or gate.
	From StepID
	// Label is the value that had no route.
	Label string
	// Known lists the labels the route table accepts.
	Known []string
}

// Error implements the error interface.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing from %s: label %q has no route (known: %v)", e.From, e.Label, e.Known)
}

// ConditionError reports a condition edge whose expression failed to
// evaluate, such as a type error or a division by zero. Like routing errors
// it is never retried.
type ConditionError struct {
	// From is the step owning the condition edge.
	From StepID
	// Condition is the expression source.
	Condition string
	// Err is the evaluation error.
	Err error
}

// Error implements the error interface.
func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %q from %s: %v", e.Condition, e.From, e.Err)
}

// Unwrap returns the evaluation error.
func (e *ConditionError) Unwrap() error {
	return e.Err
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// StepID is the step where checkpointing failed.
	StepID StepID
	// Op is the operation that failed ("load", "decode", "serialize", "save").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at step %s: %v", e.Op, e.StepID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// StepError wraps an error with step context.
// It is what the recovery policy receives for a failed step.
type StepError struct {
	// StepID is the identifier of the step that failed.
	StepID StepID
	// Attempt is the 1-based attempt number.
	Attempt int
	// Err is the underlying error from the step.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (attempt %d): %v", e.StepID, e.Attempt, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StepError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from step execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// StepID is the identifier of the step that panicked.
	StepID StepID
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("step %s panicked: %v", e.StepID, e.Value)
}

// CancellationError captures the state when execution was cancelled.
// It preserves the state at the point of cancellation for recovery.
type CancellationError struct {
	// StepID is the step that was about to execute or was executing.
	StepID StepID
	// State is the state at cancellation.
	State state.State
	// Cause is the underlying cancellation cause (context.Canceled or context.DeadlineExceeded).
	Cause error
	// WasExecuting is true if cancellation occurred during step execution
	// or a retry wait.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during step %s: %v", e.StepID, e.Cause)
	}
	return fmt.Sprintf("cancelled before step %s: %v", e.StepID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// MaxStepsError provides context when the step bound is exceeded.
// It includes the state at termination for inspection.
type MaxStepsError struct {
	// Max is the configured step bound.
	Max int
	// StepID is the step that would have executed next.
	StepID StepID
	// State is the state at termination.
	State state.State
}

// Error implements the error interface.
func (e *MaxStepsError) Error() string {
	return fmt.Sprintf("exceeded maximum steps (%d) at step %s", e.Max, e.StepID)
}

// Unwrap returns ErrMaxSteps for errors.Is support.
func (e *MaxStepsError) Unwrap() error {
	return ErrMaxSteps
}
