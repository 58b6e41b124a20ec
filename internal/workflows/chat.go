package workflows

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// ChatName is the conversational loop.
const ChatName = "chat"

const (
	chatAwaitInput stepgraph.StepID = "await_input"
	chatProcess    stepgraph.StepID = "process"
	chatRespond    stepgraph.StepID = "respond"
)

// ChatSignalField is the gate field a caller sets to deliver a message.
const ChatSignalField = "decision"

// ChatMessageLabel is the label that hands current_input to the loop.
const ChatMessageLabel = "message"

var exitWords = map[string]bool{"bye": true, "exit": true, "quit": true, "goodbye": true}

const chatSystemPrompt = "You are a helpful assistant. Keep responses concise (1-2 sentences)."

// Chat builds the loop await_input -> process -> respond -> await_input.
// Each turn pauses at the await_input gate; an exit word ends the run.
//
// History lines are "user: ..." and "assistant: ...".
func Chat() (*Workflow, error) {
	schema, err := state.NewSchema(
		state.Field{Name: "current_input", Default: ""},
		state.Field{Name: "messages", Default: []string{}},
		state.Field{Name: "turn_count", Default: 0},
		state.Field{Name: "should_continue", Default: true},
		state.Field{Name: ChatSignalField, Default: ""},
	)
	if err != nil {
		return nil, err
	}

	g := stepgraph.NewGraph(schema).
		AddGate(chatAwaitInput, ChatSignalField, map[string]stepgraph.StepID{
			ChatMessageLabel: chatProcess,
		}).
		AddStep(chatProcess, processChatMessage).
		AddStep(chatRespond, respondChat).
		AddEdge(chatProcess, chatRespond).
		AddConditionalEdge(chatRespond, shouldContinue, map[string]stepgraph.StepID{
			"continue": chatAwaitInput,
			"end":      stepgraph.END,
		}).
		SetEntry(chatAwaitInput)

	compiled, err := compile(ChatName, g)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		Name:        ChatName,
		Description: "Conversation loop pausing for each message; bye, exit, quit or goodbye ends it",
		Graph:       compiled,
		Inputs:      []string{"current_input", ChatSignalField},
	}, nil
}

func processChatMessage(_ stepgraph.Context, s state.State) (state.Update, error) {
	input := strings.TrimSpace(s.String("current_input"))
	if exitWords[strings.ToLower(input)] {
		return state.Update{"should_continue": false}, nil
	}
	return state.Update{
		"messages":        appendLine(s.Strings("messages"), "user: "+input),
		"turn_count":      s.Int("turn_count") + 1,
		"should_continue": true,
	}, nil
}

func respondChat(ctx stepgraph.Context, s state.State) (state.Update, error) {
	if !s.Bool("should_continue") {
		return nil, nil
	}
	history := s.Strings("messages")
	reply, err := reply(ctx, chatSystemPrompt, history, func() string {
		return fmt.Sprintf("You said %q (turn %d).", s.String("current_input"), s.Int("turn_count"))
	})
	if err != nil {
		return nil, err
	}
	return state.Update{"messages": appendLine(history, "assistant: "+reply)}, nil
}

func shouldContinue(_ stepgraph.Context, s state.State) string {
	if s.Bool("should_continue") {
		return "continue"
	}
	return "end"
}

// reply asks the completion client for the next assistant turn, or returns
// fallback() when no client is configured.
func reply(ctx stepgraph.Context, system string, history []string, fallback func() string) (string, error) {
	if ctx.LLM() == nil {
		return fallback(), nil
	}
	resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     toMessages(history),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// toMessages converts "role: content" history lines to completion messages.
func toMessages(history []string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history))
	for _, line := range history {
		role, content, ok := strings.Cut(line, ": ")
		if !ok {
			msgs = append(msgs, llm.UserMessage(line))
			continue
		}
		r := llm.RoleUser
		if role == string(llm.RoleAssistant) {
			r = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: r, Content: content})
	}
	return msgs
}
