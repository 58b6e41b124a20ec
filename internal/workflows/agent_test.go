package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

func TestAgent_Planner(t *testing.T) {
	w := mustBuild(t, Agent)

	tests := []struct {
		name   string
		query  string
		tool   string
		answer string
	}{
		{
			name:   "time",
			query:  "What time is it?",
			tool:   "get_current_time",
			answer: "Monday, January 06, 2025 at 03:04 PM",
		},
		{
			name:   "calculation",
			query:  "What is 5+3?",
			tool:   "calculate",
			answer: "8",
		},
		{
			name:   "nested calculation",
			query:  "compute (2 + 3) * 4 please",
			tool:   "calculate",
			answer: "20",
		},
		{
			name:   "weather",
			query:  "What's the weather in Paris?",
			tool:   "get_weather",
			answer: "Partly cloudy, 65°F (18°C)",
		},
		{
			name:   "unknown city",
			query:  "weather for Atlantis",
			tool:   "get_weather",
			answer: "Weather data not available for Atlantis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runWorkflow(t, w, nil, state.Update{"user_query": tt.query, "now": "2025-01-06T15:04:00Z"})

			require.Equal(t, stepgraph.Completed, result.Outcome)
			assert.Equal(t, tt.tool, plan(tt.query, "").Tool)
			assert.Equal(t, tt.answer, result.State.String("final_answer"))
			assert.Equal(t, 2, result.State.Int("step_count"))
		})
	}

	t.Run("no tool applies", func(t *testing.T) {
		result := runWorkflow(t, w, nil, state.Update{"user_query": "tell me a story"})
		require.Equal(t, stepgraph.Completed, result.Outcome)
		assert.Equal(t, fallbackAnswer, result.State.String("final_answer"))
		assert.Equal(t, noTool, result.State.String("tool_name"))
		assert.Equal(t, 1, result.State.Int("step_count"))
	})
}

func TestAgent_Model(t *testing.T) {
	w := mustBuild(t, Agent)

	t.Run("tool call then answer", func(t *testing.T) {
		client := llm.NewMockClient("").WithResponses(
			`{"thought": "need math", "tool": "calculate", "args": {"expression": "6*7"}}`,
			`{"thought": "done", "answer": "The answer is 42."}`,
		)
		result := runWorkflow(t, w, client, state.Update{"user_query": "six times seven?"})

		require.Equal(t, stepgraph.Completed, result.Outcome)
		assert.Equal(t, "42", result.State.String("tool_result"))
		assert.Equal(t, "The answer is 42.", result.State.String("final_answer"))
		assert.Equal(t, 2, client.CallCount())

		last := client.LastCall()
		assert.Contains(t, last.SystemPrompt, "- calculate: Calculate a math expression.")
		require.Len(t, last.Messages, 3)
		assert.Equal(t, "Tool returned: 42", last.Messages[1].Content)
	})

	t.Run("plain text is the answer", func(t *testing.T) {
		client := llm.NewMockClient("  Just ask me anything.  ")
		result := runWorkflow(t, w, client, state.Update{"user_query": "hi"})
		assert.Equal(t, "Just ask me anything.", result.State.String("final_answer"))
	})

	t.Run("reasoning is bounded", func(t *testing.T) {
		client := llm.NewMockClient(`{"tool": "calculate", "args": {"expression": "1+1"}}`)
		result := runWorkflow(t, w, client, state.Update{"user_query": "loop forever"})

		require.Equal(t, stepgraph.Completed, result.Outcome)
		assert.Equal(t, fallbackAnswer, result.State.String("final_answer"))
		assert.Equal(t, MaxReasoningSteps+1, result.State.Int("step_count"))
		assert.Equal(t, MaxReasoningSteps, client.CallCount())
	})

	t.Run("unknown tool", func(t *testing.T) {
		client := llm.NewMockClient("").WithResponses(
			`{"tool": "launch_rocket"}`,
			`{"answer": "cannot do that"}`,
		)
		result := runWorkflow(t, w, client, state.Update{"user_query": "launch"})
		assert.Equal(t, "Unknown tool: launch_rocket", result.State.String("tool_result"))
		assert.Equal(t, "cannot do that", result.State.String("final_answer"))
	})
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2+2", "4"},
		{"10 / 4", "2.5"},
		{"7 % 3", "1"},
		{"(1+2)*(3+4)", "21"},
		{"1/0", "Error: division by zero"},
		{"os.exit(1)", "Error: Invalid characters in expression"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Contains(t, calculate(tt.in), tt.want)
		})
	}
}

func TestCurrentTime(t *testing.T) {
	assert.Equal(t, "Monday, January 06, 2025 at 03:04 PM", currentTime("2025-01-06T15:04:00Z"))
	assert.Contains(t, currentTime("yesterday"), "Error: invalid time")
	assert.NotEmpty(t, currentTime(""))
}
