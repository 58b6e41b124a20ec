package stepgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/expr"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. No step id was registered twice
//  2. Entry point must be set and reference an existing step
//  3. All edge sources and targets must reference existing steps or END
//  4. All conditional and gate routes must target existing steps or END
//  5. Gate signal fields must be string fields of the schema
//  5a. Condition edges may only read fields of the schema
//  6. Every step has exactly one outgoing edge (fixed, conditional, or gate)
//  7. END must be reachable from the entry point
//
// Unreachable steps (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
//
// A successful Compile freezes the step registry; steps added afterwards
// make the next Compile fail.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	errs := slices.Clone(g.errs)

	if g.entry == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if !g.steps.Has(g.entry) {
		errs = append(errs, fmt.Errorf("%w: %w", ErrEntryNotFound, &UnknownStepError{ID: g.entry, Ref: "entry point"}))
	}

	for _, from := range slices.Sorted(maps.Keys(g.edges)) {
		if !g.steps.Has(from) {
			errs = append(errs, &UnknownStepError{ID: from, Ref: "edge source"})
		}
		for _, to := range g.edges[from] {
			if to != END && !g.steps.Has(to) {
				errs = append(errs, &UnknownStepError{ID: to, Ref: fmt.Sprintf("edge from %s", from)})
			}
		}
	}

	for _, from := range slices.Sorted(maps.Keys(g.branches)) {
		if !g.steps.Has(from) {
			errs = append(errs, &UnknownStepError{ID: from, Ref: "conditional edge source"})
		}
		for _, b := range g.branches[from] {
			errs = append(errs, g.checkRoutes(from, b.routes)...)
			if b.cond != nil {
				errs = append(errs, g.checkCondition(from, b.cond)...)
			}
		}
	}

	for _, id := range g.order {
		n, _ := g.steps.Lookup(id)
		if n.gate != nil {
			errs = append(errs, g.checkGate(n)...)
		}

		outgoing := len(g.edges[id]) + len(g.branches[id])
		if n.gate != nil {
			outgoing++
		}
		switch {
		case outgoing == 0:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id))
		case outgoing > 1:
			errs = append(errs, fmt.Errorf("%w: %s has %d", ErrMultipleEdges, id, outgoing))
		}
	}

	if g.steps.Has(g.entry) && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	g.warnUnreachableSteps()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g.steps.Freeze()
	return g.buildCompiledGraph(), nil
}

// checkRoutes validates the targets of a route table owned by from.
func (g *Graph) checkRoutes(from StepID, routes map[string]StepID) []error {
	var errs []error
	for _, label := range slices.Sorted(maps.Keys(routes)) {
		to := routes[label]
		if to != END && !g.steps.Has(to) {
			errs = append(errs, &UnknownStepError{ID: to, Ref: fmt.Sprintf("route %q from %s", label, from)})
		}
	}
	return errs
}

// checkGate validates a gate's signal field and routes.
func (g *Graph) checkGate(n *node) []error {
	errs := g.checkRoutes(n.id, n.gate.routes)

	def, ok := g.schema.DefaultOf(n.gate.field)
	if !ok {
		return append(errs, fmt.Errorf("gate %s: %w", n.id, &state.UnknownFieldError{Field: n.gate.field}))
	}
	if _, isString := def.(string); !isString {
		errs = append(errs, fmt.Errorf("%w: gate %s field %q must hold a string", ErrInvalidGate, n.id, n.gate.field))
	}
	return errs
}

// checkCondition validates the field paths a condition reads. A dotted
// path must start at a field that can hold a map.
func (g *Graph) checkCondition(from StepID, e *expr.Expr) []error {
	var errs []error
	for _, ref := range e.Refs() {
		root, rest, dotted := strings.Cut(ref, ".")
		def, ok := g.schema.DefaultOf(root)
		if !ok {
			errs = append(errs, fmt.Errorf("condition %q from %s: %w", e, from, &state.UnknownFieldError{Field: root}))
			continue
		}
		if !dotted || def == nil {
			continue
		}
		if _, isMap := def.(map[string]any); !isMap {
			errs = append(errs, fmt.Errorf("%w: %q from %s reads %s of %s field %q",
				ErrInvalidCondition, e, from, rest, reflect.TypeOf(def), root))
		}
	}
	return errs
}

// targets returns every step id reachable in one hop from id.
func (g *Graph) targets(id StepID) []StepID {
	out := slices.Clone(g.edges[id])
	for _, b := range g.branches[id] {
		out = append(out, slices.Collect(maps.Values(b.routes))...)
	}
	if n, ok := g.steps.Lookup(id); ok && n.gate != nil {
		out = append(out, slices.Collect(maps.Values(n.gate.routes))...)
	}
	return out
}

// hasPathToEnd checks if there's a path from entry to END.
// Route tables are known at build time, so reachability is exact up to
// what routers actually return.
func (g *Graph) hasPathToEnd() bool {
	canReachEnd := map[StepID]bool{END: true}

	// Keep propagating until no changes
	changed := true
	for changed {
		changed = false
		for _, id := range g.order {
			if canReachEnd[id] {
				continue
			}
			for _, to := range g.targets(id) {
				if canReachEnd[to] {
					canReachEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd[g.entry]
}

// warnUnreachableSteps logs warnings for steps not reachable from entry.
func (g *Graph) warnUnreachableSteps() {
	if g.entry == "" {
		return
	}

	reachable := g.findReachableSteps()

	for _, id := range g.order {
		if !reachable[id] {
			slog.Warn("step is unreachable from entry", "step_id", string(id))
		}
	}
}

// findReachableSteps returns the set of steps reachable from the entry point.
func (g *Graph) findReachableSteps() map[StepID]bool {
	reachable := map[StepID]bool{g.entry: true}

	// BFS from entry
	queue := []StepID{g.entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.targets(current) {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph) buildCompiledGraph() *CompiledGraph {
	cg := &CompiledGraph{
		schema:       g.schema,
		steps:        g.steps,
		order:        slices.Clone(g.order),
		edges:        make(map[StepID]StepID, len(g.edges)),
		branches:     make(map[StepID]*branch, len(g.branches)),
		entry:        g.entry,
		successors:   make(map[StepID][]StepID, len(g.order)),
		predecessors: make(map[StepID][]StepID),
	}

	for from, targets := range g.edges {
		cg.edges[from] = targets[0]
	}
	for from, bs := range g.branches {
		cg.branches[from] = &branch{router: bs[0].router, cond: bs[0].cond, routes: maps.Clone(bs[0].routes)}
	}

	for _, id := range g.order {
		succ := g.targets(id)
		slices.Sort(succ)
		succ = slices.Compact(succ)
		cg.successors[id] = succ
		for _, to := range succ {
			if to != END {
				cg.predecessors[to] = append(cg.predecessors[to], id)
			}
		}
	}

	return cg
}
