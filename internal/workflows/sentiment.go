package workflows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/template"
)

// SentimentName is the sentiment router.
const SentimentName = "sentiment"

const (
	sentimentProcess  stepgraph.StepID = "process"
	sentimentAnalyze  stepgraph.StepID = "analyze"
	sentimentPositive stepgraph.StepID = "positive"
	sentimentNegative stepgraph.StepID = "negative"
	sentimentNeutral  stepgraph.StepID = "neutral"
)

const (
	labelPositive = "positive"
	labelNegative = "negative"
	labelNeutral  = "neutral"
)

var (
	positiveWords = map[string]bool{
		"good": true, "great": true, "excellent": true, "happy": true,
		"love": true, "wonderful": true, "amazing": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "terrible": true, "awful": true, "sad": true,
		"hate": true, "horrible": true, "angry": true,
	}
)

const sentimentSystemPrompt = `You are a sentiment analyzer. Analyze the sentiment of the user's message.

Respond with ONLY a JSON object in this exact format:
{"sentiment": "positive" or "negative" or "neutral", "confidence": 0.0 to 1.0, "reasoning": "brief explanation"}`

var sentimentPrompt = template.Parse("Analyze the sentiment of: ${processed_input}")

// Sentiment builds process -> analyze -> {positive|negative|neutral} -> END.
// analyze uses keyword counts, or the completion client when one is set.
func Sentiment() (*Workflow, error) {
	schema, err := state.NewSchema(
		state.Field{Name: "user_input", Default: ""},
		state.Field{Name: "processed_input", Default: ""},
		state.Field{Name: "word_count", Default: 0},
		state.Field{Name: "sentiment", Default: labelNeutral},
		state.Field{Name: "confidence", Default: 0.0},
		state.Field{Name: "reasoning", Default: ""},
		state.Field{Name: "response", Default: ""},
	)
	if err != nil {
		return nil, err
	}
	if err := sentimentPrompt.Check(schema); err != nil {
		return nil, err
	}

	g := stepgraph.NewGraph(schema).
		AddStep(sentimentProcess, processSentimentInput).
		AddStep(sentimentAnalyze, analyzeSentiment).
		AddStep(sentimentPositive, respondPositive).
		AddStep(sentimentNegative, respondNegative).
		AddStep(sentimentNeutral, respondNeutral).
		AddEdge(sentimentProcess, sentimentAnalyze).
		AddConditionalEdge(sentimentAnalyze, routeBySentiment, map[string]stepgraph.StepID{
			labelPositive: sentimentPositive,
			labelNegative: sentimentNegative,
			labelNeutral:  sentimentNeutral,
		}).
		AddEdge(sentimentPositive, stepgraph.END).
		AddEdge(sentimentNegative, stepgraph.END).
		AddEdge(sentimentNeutral, stepgraph.END).
		SetEntry(sentimentProcess)

	compiled, err := compile(SentimentName, g)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		Name:        SentimentName,
		Description: "Conditional routing on keyword or model sentiment",
		Graph:       compiled,
		Inputs:      []string{"user_input"},
	}, nil
}

func processSentimentInput(_ stepgraph.Context, s state.State) (state.Update, error) {
	cleaned := strings.TrimSpace(s.String("user_input"))
	return state.Update{
		"processed_input": cleaned,
		"word_count":      len(strings.Fields(cleaned)),
	}, nil
}

func analyzeSentiment(ctx stepgraph.Context, s state.State) (state.Update, error) {
	if ctx.LLM() == nil {
		return state.Update{
			"sentiment":  keywordSentiment(s.String("processed_input")),
			"confidence": 1.0,
			"reasoning":  "keyword match",
		}, nil
	}

	prompt, err := sentimentPrompt.RenderState(s)
	if err != nil {
		return nil, err
	}
	resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{
		SystemPrompt: sentimentSystemPrompt,
		Messages:     []llm.Message{llm.UserMessage(prompt)},
	})
	if err != nil {
		return nil, err
	}

	var verdict struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := llm.ExtractJSON(resp.Content, &verdict); err != nil {
		var parseErr *llm.ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		ctx.Logger().Warn("unparseable sentiment, using neutral", "error", err)
		return state.Update{
			"sentiment":  labelNeutral,
			"confidence": 0.5,
			"reasoning":  "could not parse model output",
		}, nil
	}

	label := strings.ToLower(strings.TrimSpace(verdict.Sentiment))
	if label != labelPositive && label != labelNegative {
		label = labelNeutral
	}
	return state.Update{
		"sentiment":  label,
		"confidence": verdict.Confidence,
		"reasoning":  verdict.Reasoning,
	}, nil
}

// keywordSentiment compares the number of distinct positive and negative
// keywords in text.
func keywordSentiment(text string) string {
	seen := make(map[string]bool)
	var pos, neg int
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if seen[w] {
			continue
		}
		seen[w] = true
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return labelPositive
	case neg > pos:
		return labelNegative
	default:
		return labelNeutral
	}
}

func routeBySentiment(_ stepgraph.Context, s state.State) string {
	return s.String("sentiment")
}

func respondPositive(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{"response": fmt.Sprintf(
		"That's wonderful! I love your positive energy. You shared %d words of joy!", s.Int("word_count"))}, nil
}

func respondNegative(stepgraph.Context, state.State) (state.Update, error) {
	return state.Update{"response": "I hear you. It sounds like things are tough. Remember, it's okay to feel this way."}, nil
}

func respondNeutral(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{"response": fmt.Sprintf(
		"Thanks for sharing! You wrote %d words. How can I help you further?", s.Int("word_count"))}, nil
}
