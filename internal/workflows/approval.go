package workflows

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// ApprovalName is the human review pipeline.
const ApprovalName = "approval"

const (
	approvalLoad      stepgraph.StepID = "load"
	approvalAnalyze   stepgraph.StepID = "analyze"
	approvalReview    stepgraph.StepID = "review"
	approvalTransform stepgraph.StepID = "transform"
	approvalApprove   stepgraph.StepID = "approve"
	approvalGenerate  stepgraph.StepID = "generate"
	approvalReject    stepgraph.StepID = "reject"
)

// Gate fields and labels for the approval workflow.
const (
	ReviewField   = "decision"
	ApprovalField = "approval"

	LabelApprove = "approve"
	LabelReject  = "reject"
	LabelRevise  = "revise"
)

// Approval statuses written to the status field.
const (
	StatusRejected  = "rejected"
	StatusGenerated = "generated"
)

var riskKeywords = []string{"delete", "drop", "production", "payment", "security", "credential"}

var errEmptyDocument = errors.New("document is empty")

// Approval builds load -> analyze, then routes high-risk documents through
// the review gate. Approved or low-risk documents are transformed and wait
// at the approval gate, which either generates the output or sends the
// document back through transform.
func Approval() (*Workflow, error) {
	schema, err := state.NewSchema(
		state.Field{Name: "document", Default: ""},
		state.Field{Name: "risk", Default: ""},
		state.Field{Name: "analysis", Default: ""},
		state.Field{Name: ReviewField, Default: ""},
		state.Field{Name: ApprovalField, Default: ""},
		state.Field{Name: "feedback", Default: ""},
		state.Field{Name: "transformed", Default: ""},
		state.Field{Name: "revisions", Default: 0},
		state.Field{Name: "output", Default: ""},
		state.Field{Name: "status", Default: ""},
	)
	if err != nil {
		return nil, err
	}

	g := stepgraph.NewGraph(schema).
		AddStep(approvalLoad, loadApprovalDocument).
		AddStep(approvalAnalyze, analyzeRisk).
		AddGate(approvalReview, ReviewField, map[string]stepgraph.StepID{
			LabelApprove: approvalTransform,
			LabelReject:  approvalReject,
		}).
		AddStep(approvalTransform, transformDocument).
		AddGate(approvalApprove, ApprovalField, map[string]stepgraph.StepID{
			LabelApprove: approvalGenerate,
			LabelRevise:  approvalTransform,
		}).
		AddStep(approvalGenerate, generateOutput).
		AddStep(approvalReject, rejectDocument).
		AddEdge(approvalLoad, approvalAnalyze).
		AddConditionEdge(approvalAnalyze, "risk == 'high'", approvalReview, approvalTransform).
		AddEdge(approvalTransform, approvalApprove).
		AddEdge(approvalGenerate, stepgraph.END).
		AddEdge(approvalReject, stepgraph.END).
		SetEntry(approvalLoad)

	compiled, err := compile(ApprovalName, g)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		Name:        ApprovalName,
		Description: "Risk review and approval gates around a document transform",
		Graph:       compiled,
		Inputs:      []string{"document", "feedback", ReviewField, ApprovalField},
	}, nil
}

func loadApprovalDocument(_ stepgraph.Context, s state.State) (state.Update, error) {
	doc := strings.TrimSpace(s.String("document"))
	if doc == "" {
		return nil, errEmptyDocument
	}
	return state.Update{"document": doc}, nil
}

func analyzeRisk(_ stepgraph.Context, s state.State) (state.Update, error) {
	lower := strings.ToLower(s.String("document"))
	var hits []string
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) == 0 {
		return state.Update{"risk": "low", "analysis": "no risk keywords"}, nil
	}
	return state.Update{
		"risk":     "high",
		"analysis": "risk keywords: " + strings.Join(hits, ", "),
	}, nil
}

// transformDocument rewrites the document, folding in reviewer feedback
// on revisions.
func transformDocument(ctx stepgraph.Context, s state.State) (state.Update, error) {
	revisions := s.Int("revisions")
	if s.String("transformed") != "" {
		revisions++
	}
	doc := s.String("document")
	feedback := strings.TrimSpace(s.String("feedback"))

	var out string
	if client := ctx.LLM(); client != nil {
		prompt := "Rewrite this document clearly and concisely:\n\n" + doc
		if feedback != "" {
			prompt += "\n\nReviewer feedback: " + feedback
		}
		resp, err := client.Complete(ctx, llm.CompletionRequest{
			Messages:  []llm.Message{llm.UserMessage(prompt)},
			MaxTokens: 1024,
		})
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		out = strings.TrimSpace(resp.Content)
	} else {
		out = capitalize(doc)
		if !strings.HasSuffix(out, ".") {
			out += "."
		}
		if feedback != "" {
			out += " (revised: " + feedback + ")"
		}
	}
	return state.Update{"transformed": out, "revisions": revisions, "feedback": ""}, nil
}

func generateOutput(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{
		"output": fmt.Sprintf("[approved after %d revision(s)] %s", s.Int("revisions"), s.String("transformed")),
		"status": StatusGenerated,
	}, nil
}

func rejectDocument(_ stepgraph.Context, s state.State) (state.Update, error) {
	return state.Update{
		"output": "rejected: " + s.String("analysis"),
		"status": StatusRejected,
	}, nil
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
