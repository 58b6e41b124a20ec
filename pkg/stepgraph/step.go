package stepgraph

import (
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/expr"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// StepID names a step. Callers declare their step names as constants.
type StepID string

// END is the terminal step identifier.
// Use this as an edge or route target to indicate the run should complete.
const END StepID = "__end__"

// StepFunc is the signature for all step functions.
// Steps receive the execution context and current state and return the
// fields to overwrite. A nil or empty Update leaves the state unchanged.
//
// Steps may be invoked again with unchanged state when the recovery policy
// retries or rolls back, so they must tolerate re-execution.
//
// Example:
//
//	func transform(ctx stepgraph.Context, s state.State) (state.Update, error) {
//	    return state.Update{"output": strings.ToUpper(s.String("input"))}, nil
//	}
type StepFunc func(ctx Context, s state.State) (state.Update, error)

// RouterFunc picks the label of a conditional edge based on state.
// The label is looked up in the edge's route table; a label with no route
// aborts the run with a *RoutingError.
//
// Routers must be deterministic for a given state. Anything that varies
// between runs, such as the time of day, belongs in state.
type RouterFunc func(ctx Context, s state.State) string

// node is a registered step or gate.
type node struct {
	id   StepID
	fn   StepFunc
	gate *gate
}

// gate pauses a run until signalField holds a label.
type gate struct {
	field  string
	routes map[string]StepID
}

// branch is a conditional edge. cond is set for condition edges, whose
// label comes from the expression instead of router.
type branch struct {
	router RouterFunc
	cond   *expr.Expr
	routes map[string]StepID
}
