package stepgraph

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/expr"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/registry"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// Graph is a mutable builder for step graphs.
// Use NewGraph to create a new graph, then chain AddStep, AddEdge,
// AddConditionalEdge, AddGate, and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	schema := state.MustSchema(
//	    state.Field{Name: "input", Default: ""},
//	    state.Field{Name: "output", Default: ""},
//	)
//	graph := stepgraph.NewGraph(schema).
//	    AddStep("load", load).
//	    AddStep("transform", transform).
//	    AddEdge("load", "transform").
//	    AddEdge("transform", stepgraph.END).
//	    SetEntry("load")
//
//	compiled, err := graph.Compile()
type Graph struct {
	mu       sync.RWMutex
	schema   *state.Schema
	steps    *registry.Registry[StepID, *node]
	order    []StepID
	edges    map[StepID][]StepID
	branches map[StepID][]*branch
	entry    StepID
	errs     []error
}

// NewGraph creates a new graph builder over schema.
// Panics if schema is nil.
func NewGraph(schema *state.Schema) *Graph {
	if schema == nil {
		panic("stepgraph: schema cannot be nil")
	}
	return &Graph{
		schema:   schema,
		steps:    registry.New[StepID, *node](),
		edges:    make(map[StepID][]StepID),
		branches: make(map[StepID][]*branch),
	}
}

// AddStep registers a named step.
// Returns the graph for method chaining.
//
// A second registration under the same id is reported by Compile as a
// *DuplicateStepError.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
func (g *Graph) AddStep(id StepID, fn StepFunc) *Graph {
	validateID(id)
	if fn == nil {
		panic("stepgraph: step function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.register(&node{id: id, fn: fn})
	return g
}

// AddGate registers a step that pauses the run until the string field
// signalField holds a label, then routes on it through routes. The field is
// reset to its default when the label is consumed, so a later visit to the
// same gate pauses again.
// Returns the graph for method chaining.
//
// Panics if id is invalid (see AddStep), signalField is empty, or routes
// is empty.
func (g *Graph) AddGate(id StepID, signalField string, routes map[string]StepID) *Graph {
	validateID(id)
	if signalField == "" {
		panic("stepgraph: gate signal field cannot be empty")
	}
	if len(routes) == 0 {
		panic("stepgraph: gate routes cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.register(&node{id: id, gate: &gate{field: signalField, routes: maps.Clone(routes)}})
	return g
}

// AddEdge adds an unconditional edge from one step to another.
// The target can be a step ID or END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph) AddEdge(from, to StepID) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds an edge whose target is chosen at run time:
// router returns a label and routes maps it to the next step or END.
// Returns the graph for method chaining.
//
// Route targets are validated at Compile() time.
//
// Panics if router is nil or routes is empty.
func (g *Graph) AddConditionalEdge(from StepID, router RouterFunc, routes map[string]StepID) *Graph {
	if router == nil {
		panic("stepgraph: router function cannot be nil")
	}
	if len(routes) == 0 {
		panic("stepgraph: conditional edge routes cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.branches[from] = append(g.branches[from], &branch{router: router, routes: maps.Clone(routes)})
	return g
}

// Route labels of a condition edge.
const (
	LabelTrue  = "true"
	LabelFalse = "false"
)

// AddConditionEdge routes from to then when condition is truthy over the
// state's fields and to otherwise when it is not. See package expr for the
// syntax. Its route labels are LabelTrue and LabelFalse.
//
// Compile checks every field the condition reads against the schema. An
// evaluation error at run time aborts the run with a *ConditionError.
//
// Panics if condition does not parse.
//
// Example:
//
//	g.AddConditionEdge(analyze, "risk == 'high'", review, transform)
func (g *Graph) AddConditionEdge(from StepID, condition string, then, otherwise StepID) *Graph {
	e, err := expr.Compile(condition)
	if err != nil {
		panic(fmt.Sprintf("stepgraph: condition edge from %s: %v", from, err))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.branches[from] = append(g.branches[from], &branch{
		cond:   e,
		routes: map[string]StepID{LabelTrue: then, LabelFalse: otherwise},
	})
	return g
}

// SetEntry designates the entry step.
// This must be called before Compile().
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph) SetEntry(id StepID) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entry = id
	return g
}

// register adds n to the step registry, recording failures for Compile.
// Callers hold g.mu.
func (g *Graph) register(n *node) {
	err := g.steps.Register(n.id, n)
	var dup *registry.DuplicateError[StepID]
	switch {
	case err == nil:
		g.order = append(g.order, n.id)
	case errors.As(err, &dup):
		g.errs = append(g.errs, &DuplicateStepError{ID: n.id})
	default:
		g.errs = append(g.errs, fmt.Errorf("register step %s: %w", n.id, err))
	}
}

// validateID panics on ids the builder never accepts.
func validateID(id StepID) {
	if id == "" {
		panic("stepgraph: step ID cannot be empty")
	}

	lower := strings.ToLower(string(id))
	if lower == "end" || lower == string(END) {
		panic("stepgraph: step ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(string(id), " \t\n\r") {
		panic("stepgraph: step ID cannot contain whitespace")
	}
}
