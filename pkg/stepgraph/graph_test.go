package stepgraph

import (
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewGraph verifies basic graph creation.
func TestNewGraph(t *testing.T) {
	graph := NewGraph(testSchema())
	assert.NotNil(t, graph)
	assert.Equal(t, 0, graph.steps.Len())
	assert.Empty(t, graph.edges)
	assert.Empty(t, graph.entry)
}

// TestNewGraph_NilSchema_Panics tests that a nil schema panics.
func TestNewGraph_NilSchema_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "stepgraph: schema cannot be nil", func() {
		NewGraph(nil)
	})
}

// TestGraph_AddStep tests successful step addition.
func TestGraph_AddStep(t *testing.T) {
	graph := NewGraph(testSchema()).
		AddStep("a", increment).
		AddStep("b", increment)

	assert.Equal(t, 2, graph.steps.Len())
	assert.True(t, graph.steps.Has("a"))
	assert.Equal(t, []StepID{"a", "b"}, graph.order)
}

// TestGraph_AddStep_Chaining tests fluent API chaining.
func TestGraph_AddStep_Chaining(t *testing.T) {
	graph := NewGraph(testSchema())
	result := graph.AddStep("a", increment)
	assert.Same(t, graph, result)
}

// TestGraph_AddStep_EmptyID_Panics tests that empty step ID panics.
func TestGraph_AddStep_EmptyID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "stepgraph: step ID cannot be empty", func() {
		NewGraph(testSchema()).AddStep("", increment)
	})
}

// TestGraph_AddStep_ReservedID_Panics tests that reserved IDs panic.
func TestGraph_AddStep_ReservedID_Panics(t *testing.T) {
	testCases := []struct {
		name string
		id   StepID
	}{
		{"END uppercase", "END"},
		{"end lowercase", "end"},
		{"End mixed case", "End"},
		{"__end__ literal", "__end__"},
		{"__END__ uppercase", "__END__"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.PanicsWithValue(t, "stepgraph: step ID cannot be reserved word 'END'", func() {
				NewGraph(testSchema()).AddStep(tc.id, increment)
			})
		})
	}
}

// TestGraph_AddStep_WhitespaceID_Panics tests that IDs with whitespace panic.
func TestGraph_AddStep_WhitespaceID_Panics(t *testing.T) {
	for _, id := range []StepID{"step a", "step\ta", "step\na", " step", "step "} {
		t.Run(string(id), func(t *testing.T) {
			assert.PanicsWithValue(t, "stepgraph: step ID cannot contain whitespace", func() {
				NewGraph(testSchema()).AddStep(id, increment)
			})
		})
	}
}

// TestGraph_AddStep_NilFunc_Panics tests that nil function panics.
func TestGraph_AddStep_NilFunc_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "stepgraph: step function cannot be nil", func() {
		NewGraph(testSchema()).AddStep("a", nil)
	})
}

// TestGraph_AddStep_Duplicate_Recorded tests that duplicates surface at Compile.
func TestGraph_AddStep_Duplicate_Recorded(t *testing.T) {
	graph := NewGraph(testSchema()).
		AddStep("a", increment).
		AddStep("a", passthrough)

	require.Len(t, graph.errs, 1)
	var dup *DuplicateStepError
	require.ErrorAs(t, graph.errs[0], &dup)
	assert.Equal(t, StepID("a"), dup.ID)
}

// TestGraph_AddGate tests gate registration and its panics.
func TestGraph_AddGate(t *testing.T) {
	routes := map[string]StepID{"approve": END}
	graph := NewGraph(testSchema()).AddGate("review", "decision", routes)

	n, ok := graph.steps.Lookup("review")
	require.True(t, ok)
	require.NotNil(t, n.gate)
	assert.Equal(t, "decision", n.gate.field)

	routes["reject"] = "elsewhere"
	assert.NotContains(t, n.gate.routes, "reject", "routes are copied")

	assert.PanicsWithValue(t, "stepgraph: gate signal field cannot be empty", func() {
		NewGraph(testSchema()).AddGate("g", "", routes)
	})
	assert.PanicsWithValue(t, "stepgraph: gate routes cannot be empty", func() {
		NewGraph(testSchema()).AddGate("g", "decision", nil)
	})
}

// TestGraph_AddEdge tests edge addition.
func TestGraph_AddEdge(t *testing.T) {
	graph := NewGraph(testSchema()).
		AddStep("a", increment).
		AddStep("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END)

	assert.Equal(t, []StepID{"b"}, graph.edges["a"])
	assert.Equal(t, []StepID{END}, graph.edges["b"])
}

// TestGraph_AddConditionalEdge tests conditional edge addition and panics.
func TestGraph_AddConditionalEdge(t *testing.T) {
	router := func(ctx Context, s state.State) string { return "done" }
	graph := NewGraph(testSchema()).
		AddStep("a", increment).
		AddConditionalEdge("a", router, map[string]StepID{"done": END})

	require.Len(t, graph.branches["a"], 1)

	assert.PanicsWithValue(t, "stepgraph: router function cannot be nil", func() {
		NewGraph(testSchema()).AddConditionalEdge("a", nil, map[string]StepID{"x": END})
	})
	assert.PanicsWithValue(t, "stepgraph: conditional edge routes cannot be empty", func() {
		NewGraph(testSchema()).AddConditionalEdge("a", router, map[string]StepID{})
	})
}

// TestGraph_SetEntry tests entry point setting.
func TestGraph_SetEntry(t *testing.T) {
	graph := NewGraph(testSchema()).
		AddStep("start", increment).
		SetEntry("start")

	assert.Equal(t, StepID("start"), graph.entry)
}
