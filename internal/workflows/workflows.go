// Package workflows holds the demo graphs served by the stepgraph CLI and
// HTTP server.
//
// Step bodies are deterministic so the graphs run without a model. Steps
// that can use a completion client check ctx.LLM() and fall back to the
// deterministic path when it is nil.
package workflows

import (
	"fmt"
	"maps"
	"slices"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/recovery"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/registry"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// Workflow is a named, compiled demo graph.
type Workflow struct {
	Name        string
	Description string
	Graph       *stepgraph.CompiledGraph

	// Inputs names the fields a caller normally sets.
	Inputs []string

	// Policy, when set, replaces the caller's recovery policy.
	Policy *recovery.Policy
}

// Schema returns the workflow's state schema.
func (w *Workflow) Schema() *state.Schema {
	return w.Graph.Schema()
}

// Gates maps each gate step to its signal field.
func (w *Workflow) Gates() map[stepgraph.StepID]string {
	gates := make(map[stepgraph.StepID]string)
	for _, id := range w.Graph.StepIDs() {
		if w.Graph.IsGate(id) {
			gates[id] = w.Graph.SignalField(id)
		}
	}
	return gates
}

// Labels returns the labels a gate accepts, sorted.
func (w *Workflow) Labels(gate stepgraph.StepID) []string {
	return slices.Sorted(maps.Keys(w.Graph.Routes(gate)))
}

// ParseInput converts textual key=value pairs into a typed Update using the
// schema's field types.
func (w *Workflow) ParseInput(pairs map[string]string) (state.Update, error) {
	u := make(state.Update, len(pairs))
	for name, text := range pairs {
		v, err := w.Schema().ParseValue(name, text)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		u[name] = v
	}
	return u, nil
}

// RunOptions returns the options the workflow requires, such as its
// recovery policy. Callers append their own.
func (w *Workflow) RunOptions() []stepgraph.RunOption {
	opts := []stepgraph.RunOption{stepgraph.WithGraphName(w.Name)}
	if w.Policy != nil {
		opts = append(opts, stepgraph.WithRecovery(*w.Policy))
	}
	return opts
}

// Catalog is the set of available workflows keyed by name.
type Catalog = registry.Registry[string, *Workflow]

// builders lists every workflow constructor.
var builders = []func() (*Workflow, error){
	Text,
	Sentiment,
	Chat,
	Persistent,
	Agent,
	Document,
	Approval,
}

// NewCatalog builds and compiles every workflow. The returned catalog is
// frozen.
func NewCatalog() (*Catalog, error) {
	c := registry.New[string, *Workflow]()
	for _, build := range builders {
		w, err := build()
		if err != nil {
			return nil, err
		}
		if err := c.Register(w.Name, w); err != nil {
			return nil, err
		}
	}
	c.Freeze()
	return c, nil
}

func compile(name string, g *stepgraph.Graph) (*stepgraph.CompiledGraph, error) {
	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", name, err)
	}
	return compiled, nil
}

// appendLine returns lines with line added, leaving lines untouched.
func appendLine(lines []string, line string) []string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines...)
	return append(out, line)
}
