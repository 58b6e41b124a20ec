package stepgraph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/registry"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// Run() calls. The graph structure cannot be modified after compilation.
//
// Use the introspection methods (StepIDs, Successors, etc.) to examine
// the graph structure for debugging or visualization.
type CompiledGraph struct {
	schema   *state.Schema
	steps    *registry.Registry[StepID, *node]
	order    []StepID
	edges    map[StepID]StepID
	branches map[StepID]*branch
	entry    StepID

	// Pre-computed for efficient lookup
	successors   map[StepID][]StepID
	predecessors map[StepID][]StepID
}

// Schema returns the state schema the graph runs over.
func (cg *CompiledGraph) Schema() *state.Schema {
	return cg.schema
}

// EntryPoint returns the entry step ID.
func (cg *CompiledGraph) EntryPoint() StepID {
	return cg.entry
}

// StepIDs returns all step identifiers in registration order.
func (cg *CompiledGraph) StepIDs() []StepID {
	return slices.Clone(cg.order)
}

// HasStep checks if a step exists in the graph.
func (cg *CompiledGraph) HasStep(id StepID) bool {
	return cg.steps.Has(id)
}

// Successors returns the sorted step IDs reachable in one hop from id,
// including every route target of a conditional edge or gate.
// Returns nil for END or unknown steps.
func (cg *CompiledGraph) Successors(id StepID) []StepID {
	if id == END {
		return nil
	}
	return slices.Clone(cg.successors[id])
}

// Predecessors returns the step IDs that have an edge or route to id.
func (cg *CompiledGraph) Predecessors(id StepID) []StepID {
	return slices.Clone(cg.predecessors[id])
}

// Routes returns a copy of the label table of a conditional edge or gate,
// or nil for steps with a fixed edge.
func (cg *CompiledGraph) Routes(id StepID) map[string]StepID {
	if b, ok := cg.branches[id]; ok {
		return maps.Clone(b.routes)
	}
	if n, ok := cg.steps.Lookup(id); ok && n.gate != nil {
		return maps.Clone(n.gate.routes)
	}
	return nil
}

// IsConditional returns true if the step has a conditional edge.
func (cg *CompiledGraph) IsConditional(id StepID) bool {
	_, ok := cg.branches[id]
	return ok
}

// IsGate returns true if the step is a pause gate.
func (cg *CompiledGraph) IsGate(id StepID) bool {
	n, ok := cg.steps.Lookup(id)
	return ok && n.gate != nil
}

// SignalField returns the state field a gate reads, or "" for other steps.
func (cg *CompiledGraph) SignalField(id StepID) string {
	if n, ok := cg.steps.Lookup(id); ok && n.gate != nil {
		return n.gate.field
	}
	return ""
}

// Mermaid renders the graph as a Mermaid flowchart. Fixed edges are plain
// arrows, route labels annotate conditional and gate edges, and gates are
// drawn as diamonds.
func (cg *CompiledGraph) Mermaid() string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	fmt.Fprintf(&b, "    __start__([start]) --> %s\n", cg.entry)

	for _, id := range cg.order {
		if cg.IsGate(id) {
			fmt.Fprintf(&b, "    %s{%s}\n", id, id)
		} else {
			fmt.Fprintf(&b, "    %s[%s]\n", id, id)
		}
	}
	fmt.Fprintf(&b, "    %s([end])\n", END)

	for _, id := range cg.order {
		if to, ok := cg.edges[id]; ok {
			fmt.Fprintf(&b, "    %s --> %s\n", id, to)
			continue
		}
		routes := cg.Routes(id)
		for _, label := range slices.Sorted(maps.Keys(routes)) {
			fmt.Fprintf(&b, "    %s -->|%s| %s\n", id, label, routes[label])
		}
	}
	return b.String()
}

// lookup returns the registered step or gate for id.
// Used internally by the executor.
func (cg *CompiledGraph) lookup(id StepID) (*node, error) {
	n, err := cg.steps.Get(id)
	if err != nil {
		return nil, &UnknownStepError{ID: id, Ref: "run"}
	}
	return n, nil
}
