package benchmarks

import (
	"fmt"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

var benchSchema = state.MustSchema(
	state.Field{Name: "value", Default: 0},
	state.Field{Name: "tags", Default: []string{}},
	state.Field{Name: "attrs", Default: map[string]any{}},
	state.Field{Name: "note", Default: ""},
)

func stepID(n int) stepgraph.StepID {
	return stepgraph.StepID(fmt.Sprintf("step-%d", n))
}

func increment(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{"value": s.Int("value") + 1}, nil
}

func buildLinearGraph(n int) *stepgraph.Graph {
	g := stepgraph.NewGraph(benchSchema)
	for i := 0; i < n; i++ {
		g.AddStep(stepID(i), increment)
	}
	for i := 0; i < n-1; i++ {
		g.AddEdge(stepID(i), stepID(i+1))
	}
	g.AddEdge(stepID(n-1), stepgraph.END)
	return g.SetEntry(stepID(0))
}

func buildBranchingGraph() *stepgraph.Graph {
	parity := func(_ stepgraph.Context, s state.State) string {
		if s.Int("value")%2 == 0 {
			return "even"
		}
		return "odd"
	}
	return stepgraph.NewGraph(benchSchema).
		AddStep("start", increment).
		AddStep("even", increment).
		AddStep("odd", increment).
		AddConditionalEdge("start", parity, map[string]stepgraph.StepID{
			"even": "even",
			"odd":  "odd",
		}).
		AddEdge("even", stepgraph.END).
		AddEdge("odd", stepgraph.END).
		SetEntry("start")
}

// buildLoopGraph cycles through "loop" until value reaches iterations.
func buildLoopGraph(iterations int) *stepgraph.Graph {
	return stepgraph.NewGraph(benchSchema).
		AddStep("loop", increment).
		AddStep("done", increment).
		AddConditionalEdge("loop", stepgraph.When(fmt.Sprintf("value >= %d", iterations), "done", "loop"),
			map[string]stepgraph.StepID{"loop": "loop", "done": "done"}).
		AddEdge("done", stepgraph.END).
		SetEntry("loop")
}

func mustCompile(g *stepgraph.Graph) *stepgraph.CompiledGraph {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

func largeUpdate() state.Update {
	tags := make([]string, 50)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag-%d", i)
	}
	attrs := make(map[string]any, 20)
	for i := 0; i < 20; i++ {
		attrs[fmt.Sprintf("key-%d", i)] = fmt.Sprintf("value-%d", i)
	}
	return state.Update{
		"value": 42,
		"tags":  tags,
		"attrs": attrs,
		"note":  "a longer note carried through every checkpoint of the run",
	}
}
