package workflows

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// PersistentName is the single-turn chat meant to run under a thread id.
const PersistentName = "persistent"

const (
	persistentProcess stepgraph.StepID = "process"
	persistentRespond stepgraph.StepID = "respond"
)

const persistentSystemPrompt = "You are a helpful assistant. Keep responses concise (1-2 sentences). Remember details the user shares."

// Persistent builds process -> respond -> END. Every run completes; with a
// checkpoint store and thread id the history carries over to the next run
// on the same thread, so threads hold separate conversations.
func Persistent() (*Workflow, error) {
	schema, err := state.NewSchema(
		state.Field{Name: "current_input", Default: ""},
		state.Field{Name: "messages", Default: []string{}},
		state.Field{Name: "turn_count", Default: 0},
	)
	if err != nil {
		return nil, err
	}

	g := stepgraph.NewGraph(schema).
		AddStep(persistentProcess, processPersistent).
		AddStep(persistentRespond, respondPersistent).
		AddEdge(persistentProcess, persistentRespond).
		AddEdge(persistentRespond, stepgraph.END).
		SetEntry(persistentProcess)

	compiled, err := compile(PersistentName, g)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		Name:        PersistentName,
		Description: "One chat turn per run; history persists per thread",
		Graph:       compiled,
		Inputs:      []string{"current_input"},
	}, nil
}

func processPersistent(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{
		"messages":   appendLine(s.Strings("messages"), "user: "+strings.TrimSpace(s.String("current_input"))),
		"turn_count": s.Int("turn_count") + 1,
	}, nil
}

func respondPersistent(ctx stepgraph.Context, s state.State) (state.Update, error) {
	history := s.Strings("messages")
	text, err := reply(ctx, persistentSystemPrompt, history, func() string {
		first := strings.TrimPrefix(history[0], "user: ")
		return fmt.Sprintf("Turn %d. You first said %q.", s.Int("turn_count"), first)
	})
	if err != nil {
		return nil, err
	}
	return state.Update{"messages": appendLine(history, "assistant: "+text)}, nil
}
