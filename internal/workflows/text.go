package workflows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// TextName is the linear text pipeline.
const TextName = "text"

const (
	textLoad      stepgraph.StepID = "load"
	textTransform stepgraph.StepID = "transform"
	textFinalize  stepgraph.StepID = "finalize"
)

var errEmptyInput = errors.New("input is empty")

// Text builds load -> transform -> finalize: trim the input, upper-case it
// and count its words, then write a summary line.
func Text() (*Workflow, error) {
	schema, err := state.NewSchema(
		state.Field{Name: "input", Default: ""},
		state.Field{Name: "text", Default: ""},
		state.Field{Name: "output", Default: ""},
		state.Field{Name: "word_count", Default: 0},
		state.Field{Name: "summary", Default: ""},
	)
	if err != nil {
		return nil, err
	}

	g := stepgraph.NewGraph(schema).
		AddStep(textLoad, loadText).
		AddStep(textTransform, transformText).
		AddStep(textFinalize, finalizeText).
		AddEdge(textLoad, textTransform).
		AddEdge(textTransform, textFinalize).
		AddEdge(textFinalize, stepgraph.END).
		SetEntry(textLoad)

	compiled, err := compile(TextName, g)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		Name:        TextName,
		Description: "Linear pipeline: load, upper-case with word count, finalize",
		Graph:       compiled,
		Inputs:      []string{"input"},
	}, nil
}

func loadText(_ stepgraph.Context, s state.State) (state.Update, error) {
	text := strings.TrimSpace(s.String("input"))
	if text == "" {
		return nil, errEmptyInput
	}
	return state.Update{"text": text}, nil
}

func transformText(_ stepgraph.Context, s state.State) (state.Update, error) {
	text := s.String("text")
	return state.Update{
		"output":     strings.ToUpper(text),
		"word_count": len(strings.Fields(text)),
	}, nil
}

func finalizeText(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{
		"summary": fmt.Sprintf("Processed %d words: %s", s.Int("word_count"), s.String("output")),
	}, nil
}
