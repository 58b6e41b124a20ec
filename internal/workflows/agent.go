package workflows

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/expr"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/template"
)

// AgentName is the tool-calling agent.
const AgentName = "agent"

const (
	agentReason  stepgraph.StepID = "reason"
	agentExecute stepgraph.StepID = "execute"
	agentRespond stepgraph.StepID = "respond"
)

// MaxReasoningSteps bounds reason visits per run.
const MaxReasoningSteps = 3

const noTool = "none"

const fallbackAnswer = "I'm not sure how to help with that."

// Tool is a function the agent can call.
type Tool struct {
	Name        string
	Description string
	Params      []string
	Call        func(s state.State, args map[string]any) string
}

// Tools lists the agent's tools in prompt order.
var Tools = []Tool{
	{
		Name:        "get_current_time",
		Description: "Get the current date and time. No parameters needed.",
		Call:        func(s state.State, _ map[string]any) string { return currentTime(s.String("now")) },
	},
	{
		Name:        "calculate",
		Description: "Calculate a math expression. Parameter: expression (string)",
		Params:      []string{"expression"},
		Call:        func(_ state.State, args map[string]any) string { return calculate(argString(args, "expression")) },
	},
	{
		Name:        "get_weather",
		Description: "Get weather for a city. Parameter: city (string)",
		Params:      []string{"city"},
		Call:        func(_ state.State, args map[string]any) string { return weather(argString(args, "city")) },
	},
}

func findTool(name string) (Tool, bool) {
	for _, t := range Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

var weatherData = map[string]string{
	"new york": "Sunny, 72°F (22°C)",
	"london":   "Cloudy, 59°F (15°C)",
	"tokyo":    "Rainy, 68°F (20°C)",
	"paris":    "Partly cloudy, 65°F (18°C)",
}

var agentSystemPrompt = template.Parse(`You are a helpful assistant with access to tools.

Available tools:
${tools}

Respond in this EXACT JSON format (no other text):

If you need to use a tool:
{"thought": "your reasoning", "tool": "tool_name", "args": {"param": "value"}}

If you have the final answer:
{"thought": "your reasoning", "answer": "your final answer to the user"}`)

// Agent builds the reason/act loop: reason picks a tool or answers,
// execute runs the tool and returns to reason, respond ends the run.
// reason gives up after MaxReasoningSteps visits.
//
// get_current_time reads the "now" field (RFC 3339) so runs are
// reproducible; it falls back to the wall clock when now is empty.
func Agent() (*Workflow, error) {
	schema, err := state.NewSchema(
		state.Field{Name: "user_query", Default: ""},
		state.Field{Name: "now", Default: ""},
		state.Field{Name: "thought", Default: ""},
		state.Field{Name: "tool_name", Default: ""},
		state.Field{Name: "tool_args", Default: map[string]any{}},
		state.Field{Name: "tool_result", Default: ""},
		state.Field{Name: "final_answer", Default: ""},
		state.Field{Name: "step_count", Default: 0},
	)
	if err != nil {
		return nil, err
	}

	g := stepgraph.NewGraph(schema).
		AddStep(agentReason, reason).
		AddStep(agentExecute, executeTool).
		AddStep(agentRespond, formatAnswer).
		AddConditionalEdge(agentReason, routeAgent, map[string]stepgraph.StepID{
			"execute": agentExecute,
			"respond": agentRespond,
		}).
		AddEdge(agentExecute, agentReason).
		AddEdge(agentRespond, stepgraph.END).
		SetEntry(agentReason)

	compiled, err := compile(AgentName, g)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		Name:        AgentName,
		Description: "Reason/act loop over time, calculator and weather tools",
		Graph:       compiled,
		Inputs:      []string{"user_query", "now"},
	}, nil
}

// agentDecision is one reasoning step: a tool call or a final answer.
type agentDecision struct {
	Thought string         `json:"thought"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Answer  string         `json:"answer"`
}

func reason(ctx stepgraph.Context, s state.State) (state.Update, error) {
	steps := s.Int("step_count") + 1
	if steps > MaxReasoningSteps {
		return state.Update{
			"thought":      "reasoning limit reached",
			"final_answer": fallbackAnswer,
			"tool_name":    noTool,
			"step_count":   steps,
		}, nil
	}

	var d agentDecision
	var err error
	if ctx.LLM() == nil {
		d = plan(s.String("user_query"), s.String("tool_result"))
	} else if d, err = askAgent(ctx, s); err != nil {
		return nil, err
	}

	u := state.Update{"thought": d.Thought, "step_count": steps}
	switch {
	case d.Answer != "":
		u["final_answer"] = d.Answer
		u["tool_name"] = noTool
	case d.Tool != "":
		args := d.Args
		if args == nil {
			args = map[string]any{}
		}
		u["tool_name"] = d.Tool
		u["tool_args"] = args
	default:
		u["final_answer"] = fallbackAnswer
		u["tool_name"] = noTool
	}
	return u, nil
}

func askAgent(ctx stepgraph.Context, s state.State) (agentDecision, error) {
	var lines []string
	for _, t := range Tools {
		lines = append(lines, t.Name+": "+t.Description)
	}
	system, err := agentSystemPrompt.Render(map[string]any{"tools": lines})
	if err != nil {
		return agentDecision{}, err
	}

	msgs := []llm.Message{llm.UserMessage(s.String("user_query"))}
	if result := s.String("tool_result"); result != "" {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleAssistant, Content: "Tool returned: " + result},
			llm.UserMessage("Now provide the final answer based on this result."),
		)
	}
	resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{SystemPrompt: system, Messages: msgs})
	if err != nil {
		return agentDecision{}, err
	}

	var d agentDecision
	if err := llm.ExtractJSON(resp.Content, &d); err != nil {
		var parseErr *llm.ParseError
		if !errors.As(err, &parseErr) {
			return agentDecision{}, err
		}
		return agentDecision{Thought: "Providing direct answer", Answer: strings.TrimSpace(resp.Content)}, nil
	}
	return d, nil
}

var (
	weatherCity = regexp.MustCompile(`(?i)weather\s+(?:in|for|at)\s+([a-z .]+?)[?.!]*$`)
	mathExpr    = regexp.MustCompile(`[0-9(][0-9+\-*/().% ]*[0-9)]`)
)

// plan is the model-free policy: answer from a tool result, or pick a tool
// by keyword.
func plan(query, toolResult string) agentDecision {
	if toolResult != "" {
		return agentDecision{Thought: "I have the answer now", Answer: toolResult}
	}
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "weather"):
		city := ""
		if m := weatherCity.FindStringSubmatch(strings.TrimSpace(query)); m != nil {
			city = strings.TrimSpace(m[1])
		}
		return agentDecision{Thought: "Need weather data", Tool: "get_weather", Args: map[string]any{"city": city}}
	case strings.Contains(q, "time") || strings.Contains(q, "date"):
		return agentDecision{Thought: "User wants current time", Tool: "get_current_time", Args: map[string]any{}}
	}
	if m := mathExpr.FindString(query); m != "" && strings.ContainsAny(m, "+-*/%") {
		return agentDecision{Thought: "Need to calculate", Tool: "calculate", Args: map[string]any{"expression": m}}
	}
	return agentDecision{Thought: "No tool applies"}
}

func routeAgent(_ stepgraph.Context, s state.State) string {
	if s.String("final_answer") != "" {
		return "respond"
	}
	if name := s.String("tool_name"); name != "" && name != noTool {
		return "execute"
	}
	return "respond"
}

func executeTool(ctx stepgraph.Context, s state.State) (state.Update, error) {
	name := s.String("tool_name")
	tool, ok := findTool(name)
	if !ok {
		return state.Update{"tool_result": "Unknown tool: " + name, "tool_name": noTool}, nil
	}
	result := tool.Call(s, s.Map("tool_args"))
	ctx.Logger().Debug("tool called", "tool", name, "result", result)
	return state.Update{"tool_result": result}, nil
}

func formatAnswer(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{"final_answer": strings.TrimSpace(s.String("final_answer"))}, nil
}

func currentTime(now string) string {
	t := time.Now()
	if now != "" {
		parsed, err := time.Parse(time.RFC3339, now)
		if err != nil {
			return "Error: invalid time " + strconv.Quote(now)
		}
		t = parsed
	}
	return t.Format("Monday, January 02, 2006 at 03:04 PM")
}

// calculate evaluates arithmetic only; identifiers are rejected.
func calculate(expression string) string {
	const allowed = "0123456789+-*/().% "
	for _, c := range expression {
		if !strings.ContainsRune(allowed, c) {
			return "Error: Invalid characters in expression"
		}
	}
	v, err := expr.Number(expression, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func weather(city string) string {
	if w, ok := weatherData[strings.ToLower(strings.TrimSpace(city))]; ok {
		return w
	}
	return "Weather data not available for " + city
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
