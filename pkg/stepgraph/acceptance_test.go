package stepgraph

import (
	"strings"
	"testing"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipelineGraph is the load -> transform -> finalize pipeline.
func pipelineGraph(t *testing.T) *CompiledGraph {
	load := func(ctx Context, s state.State) (state.Update, error) {
		return state.Update{"trail": append(s.Strings("trail"), "loaded: "+s.String("input"))}, nil
	}
	transform := func(ctx Context, s state.State) (state.Update, error) {
		return state.Update{"output": strings.ToUpper(s.String("input"))}, nil
	}
	finalize := func(ctx Context, s state.State) (state.Update, error) {
		return state.Update{"done": true}, nil
	}
	return mustCompile(t, NewGraph(testSchema()).
		AddStep("load", load).
		AddStep("transform", transform).
		AddStep("finalize", finalize).
		AddEdge("load", "transform").
		AddEdge("transform", "finalize").
		AddEdge("finalize", END).
		SetEntry("load"))
}

// TestAcceptance_LinearPipeline runs load -> transform -> finalize on "hello".
func TestAcceptance_LinearPipeline(t *testing.T) {
	result, err := pipelineGraph(t).Run(testCtx(), state.Update{"input": "hello"})

	require.NoError(t, err)
	assert.Equal(t, Completed, result.Outcome)
	assert.Equal(t, "HELLO", result.State.String("output"))
	assert.True(t, result.State.Bool("done"))

	m := result.State.Meta()
	assert.Equal(t, "finalize", m.CurrentStep)
	assert.Equal(t, 0, m.RetryCount)
}

// TestAcceptance_IdempotentReentry tests that identical runs give identical State.
func TestAcceptance_IdempotentReentry(t *testing.T) {
	compiled := pipelineGraph(t)

	first, err := compiled.Run(testCtx(), state.Update{"input": "hello"})
	require.NoError(t, err)
	second, err := compiled.Run(testCtx(), state.Update{"input": "hello"})
	require.NoError(t, err)

	assert.Equal(t, first.State.Values(), second.State.Values())
	assert.Equal(t, first.State.Meta(), second.State.Meta())
}

// TestAcceptance_AlwaysFailing tests an always-failing step with one retry.
func TestAcceptance_AlwaysFailing(t *testing.T) {
	compiled := mustCompile(t, NewGraph(testSchema()).
		AddStep("load", makeFailingStep(errBoom, nil)).
		AddEdge("load", END).
		SetEntry("load"))

	result, err := compiled.Run(testCtx(), nil, WithMaxRetries(1))

	require.NoError(t, err)
	assert.Equal(t, Failed, result.Outcome)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, state.ErrorRecord{Step: "load", Attempt: 1, Message: "boom"}, result.Errors[0])
	assert.Equal(t, state.ErrorRecord{Step: "load", Attempt: 2, Message: "boom"}, result.Errors[1])
}

// TestAcceptance_ChatExit tests that an exit message ends a conversational
// loop regardless of prior cycles.
func TestAcceptance_ChatExit(t *testing.T) {
	respond := func(ctx Context, s state.State) (state.Update, error) {
		msg := strings.ToLower(strings.TrimSpace(s.String("input")))
		trail := append(s.Strings("trail"), msg)
		if msg == "bye" {
			return state.Update{"trail": trail, "done": true}, nil
		}
		return state.Update{"trail": trail, "output": "echo: " + msg}, nil
	}
	router := func(ctx Context, s state.State) string {
		if s.Bool("done") {
			return "end"
		}
		return "continue"
	}
	compiled := mustCompile(t, NewGraph(testSchema()).
		AddStep("respond", respond).
		AddGate("await_input", "decision", map[string]StepID{"message": "respond"}).
		AddConditionalEdge("respond", router, map[string]StepID{
			"continue": "await_input",
			"end":      END,
		}).
		SetEntry("await_input"))

	store := checkpoint.NewMemoryStore()
	opts := []RunOption{WithCheckpointStore(store), WithThreadID("chat")}

	for _, msg := range []string{"hi", "how are you"} {
		result, err := compiled.Run(testCtx(), state.Update{"input": msg, "decision": "message"}, opts...)
		require.NoError(t, err)
		assert.Equal(t, Paused, result.Outcome)
		assert.Equal(t, StepID("await_input"), result.PausedAt)
	}

	result, err := compiled.Run(testCtx(), state.Update{"input": "bye", "decision": "message"}, opts...)
	require.NoError(t, err)
	assert.Equal(t, Completed, result.Outcome)
	assert.Equal(t, []string{"hi", "how are you", "bye"}, result.State.Strings("trail"))
}

// TestAcceptance_ReusableCompiledGraph tests that one compiled graph serves many runs.
func TestAcceptance_ReusableCompiledGraph(t *testing.T) {
	compiled := pipelineGraph(t)

	for _, input := range []string{"a", "bc", "def"} {
		result, err := compiled.Run(testCtx(), state.Update{"input": input})
		require.NoError(t, err)
		assert.Equal(t, strings.ToUpper(input), result.State.String("output"))
	}
}
