package workflows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/recovery"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/template"
)

// DocumentName is the document analysis pipeline.
const DocumentName = "document"

const (
	docLoad    stepgraph.StepID = "load"
	docParse   stepgraph.StepID = "parse"
	docExtract stepgraph.StepID = "extract"
	docPrompts stepgraph.StepID = "prompts"
	docAnalyze stepgraph.StepID = "analyze"
	docSeed    stepgraph.StepID = "seed"
	docMerge   stepgraph.StepID = "merge"
)

// DefaultMaxAnalyses is how many prompts analyze sends by default.
const DefaultMaxAnalyses = 3

// Section kinds.
const (
	KindSection    = "section"
	KindSubsection = "subsection"
)

var (
	errNoSections  = errors.New("document has no sections")
	errNoAnalyses  = errors.New("no analyses produced")
	errNoDocTitle  = errors.New("document has no title")
	documentPolicy = recovery.Policy{MaxRetries: 3, MaxRollbacks: 1}
)

// OutlineSection is a level-2 heading with its text and subsections.
type OutlineSection struct {
	Title       string              `json:"title"`
	Content     string              `json:"content"`
	Subsections []OutlineSubsection `json:"subsections"`
}

// OutlineSubsection is a level-3 heading with its list items.
type OutlineSubsection struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// Section is one entry of the flattened outline.
type Section struct {
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Parent  string   `json:"parent,omitempty"`
	Content string   `json:"content,omitempty"`
	Items   []string `json:"items,omitempty"`
}

// Prompt is an analysis request for one section.
type Prompt struct {
	Section string `json:"section"`
	Parent  string `json:"parent,omitempty"`
	Kind    string `json:"kind"`
	Text    string `json:"text"`
}

// Analysis is the result for one prompt.
type Analysis struct {
	Section  string         `json:"section"`
	Kind     string         `json:"kind"`
	Priority string         `json:"priority"`
	Summary  string         `json:"summary"`
	Detail   map[string]any `json:"detail,omitempty"`
}

var (
	sectionPrompt = template.Parse(`Analyze the following document section and provide:
1. A brief summary (2-3 sentences)
2. Key requirements or points (bullet list)
3. Priority level (High/Medium/Low)
4. Any potential risks or concerns

Section: ${title}
Content: ${content}`)

	requirementPrompt = template.Parse(`Review these requirements and provide:
1. Feasibility assessment
2. Implementation complexity (Simple/Medium/Complex)
3. Dependencies on other features
4. Estimated effort (hours)

Subsection: ${title}
Parent Section: ${parent}
Requirements:
${items}`)
)

const analystSystemPrompt = "You are a technical analyst. Provide concise, structured analysis. Respond in JSON format."

// SampleDocument is analyzed when input_file is empty.
const SampleDocument = `# Project Requirements Document

## 1. Overview
This document outlines the requirements for the new Customer Portal system.
The portal will serve as the primary interface for customer interactions.

## 2. Functional Requirements

### 2.1 User Authentication
- Users must be able to register with email
- Password requirements: 8+ characters, 1 number, 1 special char
- Support for OAuth (Google, Microsoft)

### 2.2 Dashboard
- Display account summary
- Show recent transactions
- Notification center

### 2.3 Account Management
- Profile editing
- Password reset
- Two-factor authentication setup

## 3. Non-Functional Requirements

### 3.1 Performance
- Page load time < 2 seconds
- Support 10,000 concurrent users
- 99.9% uptime SLA

### 3.2 Security
- All data encrypted at rest
- TLS 1.3 for transit
- Annual security audits

## 4. Timeline
- Phase 1: Q1 2025 - Authentication & Dashboard
- Phase 2: Q2 2025 - Account Management
- Phase 3: Q3 2025 - Full Launch
`

// Document builds load -> parse -> extract -> prompts -> analyze -> seed ->
// merge over a markdown document. Failed steps are retried three times,
// then rolled back once to the previous step.
func Document() (*Workflow, error) {
	schema, err := state.NewSchema(
		state.Field{Name: "input_file", Default: ""},
		state.Field{Name: "raw_content", Default: ""},
		state.Field{Name: "title", Default: ""},
		state.Field{Name: "outline", Default: []OutlineSection{}},
		state.Field{Name: "sections", Default: []Section{}},
		state.Field{Name: "prompts", Default: []Prompt{}},
		state.Field{Name: "analyses", Default: []Analysis{}},
		state.Field{Name: "max_analyses", Default: DefaultMaxAnalyses},
		state.Field{Name: "schema_data", Default: map[string]any{}},
		state.Field{Name: "final_output", Default: map[string]any{}},
	)
	if err != nil {
		return nil, err
	}

	g := stepgraph.NewGraph(schema).
		AddStep(docLoad, loadDocument).
		AddStep(docParse, parseDocument).
		AddStep(docExtract, extractSections).
		AddStep(docPrompts, generatePrompts).
		AddStep(docAnalyze, analyzeSections).
		AddStep(docSeed, seedSchema).
		AddStep(docMerge, mergeOutput).
		AddEdge(docLoad, docParse).
		AddEdge(docParse, docExtract).
		AddEdge(docExtract, docPrompts).
		AddEdge(docPrompts, docAnalyze).
		AddEdge(docAnalyze, docSeed).
		AddEdge(docSeed, docMerge).
		AddEdge(docMerge, stepgraph.END).
		SetEntry(docLoad)

	compiled, err := compile(DocumentName, g)
	if err != nil {
		return nil, err
	}
	policy := documentPolicy
	return &Workflow{
		Name:        DocumentName,
		Description: "Seven-step markdown analysis pipeline with retry and rollback",
		Graph:       compiled,
		Inputs:      []string{"input_file", "max_analyses"},
		Policy:      &policy,
	}, nil
}

func loadDocument(_ stepgraph.Context, s state.State) (state.Update, error) {
	content := s.String("input_file")
	if strings.TrimSpace(content) == "" {
		content = SampleDocument
	}
	return state.Update{"raw_content": content}, nil
}

// parseDocument reads the markdown outline: the level-1 heading is the
// title, level-2 headings open sections, level-3 headings open
// subsections, and list items under a subsection become its items.
func parseDocument(_ stepgraph.Context, s state.State) (state.Update, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse([]byte(s.String("raw_content")), p)

	var (
		title   string
		outline []OutlineSection
	)
	current := func() *OutlineSection {
		if len(outline) == 0 {
			return nil
		}
		return &outline[len(outline)-1]
	}

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Heading:
			text := plainText(n)
			switch n.Level {
			case 1:
				title = text
			case 2:
				outline = append(outline, OutlineSection{Title: text})
			case 3:
				if sec := current(); sec != nil {
					sec.Subsections = append(sec.Subsections, OutlineSubsection{Title: text})
				}
			}
			return ast.SkipChildren
		case *ast.ListItem:
			sec := current()
			if sec == nil {
				return ast.SkipChildren
			}
			item := plainText(n)
			if k := len(sec.Subsections); k > 0 {
				sec.Subsections[k-1].Items = append(sec.Subsections[k-1].Items, item)
			} else {
				sec.Content += "- " + item + "\n"
			}
			return ast.SkipChildren
		case *ast.Paragraph:
			if sec := current(); sec != nil {
				sec.Content += plainText(n) + "\n"
			}
			return ast.SkipChildren
		}
		return ast.GoToNext
	})

	if title == "" {
		return nil, errNoDocTitle
	}
	if len(outline) == 0 {
		return nil, errNoSections
	}
	return state.Update{"title": title, "outline": outline}, nil
}

// plainText concatenates the literal text under n.
func plainText(n ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if entering {
			if leaf := node.AsLeaf(); leaf != nil {
				b.Write(leaf.Literal)
			}
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}

func extractSections(_ stepgraph.Context, s state.State) (state.Update, error) {
	outline, _ := fieldAs[[]OutlineSection](s, "outline")
	var sections []Section
	for _, sec := range outline {
		sections = append(sections, Section{
			Kind:    KindSection,
			Title:   sec.Title,
			Content: strings.TrimSpace(sec.Content),
		})
		for _, sub := range sec.Subsections {
			sections = append(sections, Section{
				Kind:   KindSubsection,
				Title:  sub.Title,
				Parent: sec.Title,
				Items:  sub.Items,
			})
		}
	}
	if len(sections) == 0 {
		return nil, errNoSections
	}
	return state.Update{"sections": sections}, nil
}

func generatePrompts(_ stepgraph.Context, s state.State) (state.Update, error) {
	sections, _ := fieldAs[[]Section](s, "sections")
	var prompts []Prompt
	for _, sec := range sections {
		switch {
		case sec.Kind == KindSection:
			text, err := sectionPrompt.Render(map[string]any{"title": sec.Title, "content": truncate(sec.Content, 500)})
			if err != nil {
				return nil, err
			}
			prompts = append(prompts, Prompt{Section: sec.Title, Kind: "section_analysis", Text: text})
		case sec.Kind == KindSubsection && len(sec.Items) > 0:
			items := sec.Items
			if len(items) > 5 {
				items = items[:5]
			}
			text, err := requirementPrompt.Render(map[string]any{"title": sec.Title, "parent": sec.Parent, "items": items})
			if err != nil {
				return nil, err
			}
			prompts = append(prompts, Prompt{Section: sec.Title, Parent: sec.Parent, Kind: "requirement_analysis", Text: text})
		}
	}
	return state.Update{"prompts": prompts}, nil
}

func analyzeSections(ctx stepgraph.Context, s state.State) (state.Update, error) {
	prompts, _ := fieldAs[[]Prompt](s, "prompts")
	if n := s.Int("max_analyses"); n > 0 && len(prompts) > n {
		prompts = prompts[:n]
	}

	analyses := make([]Analysis, 0, len(prompts))
	for _, p := range prompts {
		a := Analysis{Section: p.Section, Kind: p.Kind, Priority: priorityOf(p.Text)}
		if ctx.LLM() == nil {
			a.Summary = fmt.Sprintf("%s: %d prompt lines reviewed", p.Section, strings.Count(p.Text, "\n")+1)
		} else {
			resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{
				SystemPrompt: analystSystemPrompt,
				Messages:     []llm.Message{llm.UserMessage(p.Text)},
				Temperature:  0.3,
			})
			if err != nil {
				return nil, fmt.Errorf("analyze %s: %w", p.Section, err)
			}
			var detail map[string]any
			if err := llm.ExtractJSON(resp.Content, &detail); err != nil {
				detail = map[string]any{"raw_analysis": resp.Content}
			}
			a.Detail = detail
			a.Summary = summaryOf(detail, p.Section)
		}
		analyses = append(analyses, a)
	}
	if len(analyses) == 0 {
		return nil, errNoAnalyses
	}
	return state.Update{"analyses": analyses}, nil
}

func seedSchema(_ stepgraph.Context, s state.State) (state.Update, error) {
	sections, _ := fieldAs[[]Section](s, "sections")
	analyses, _ := fieldAs[[]Analysis](s, "analyses")

	var sectionCount, subsectionCount, requirementCount int
	for _, sec := range sections {
		if sec.Kind == KindSection {
			sectionCount++
		} else {
			subsectionCount++
			requirementCount += len(sec.Items)
		}
	}
	priorities := make(map[string]any, len(analyses))
	for _, a := range analyses {
		priorities[a.Section] = a.Priority
	}

	return state.Update{"schema_data": map[string]any{
		"document_title":    s.String("title"),
		"section_count":     sectionCount,
		"subsection_count":  subsectionCount,
		"requirement_count": requirementCount,
		"analyzed_count":    len(analyses),
		"priorities":        priorities,
	}}, nil
}

func mergeOutput(_ stepgraph.Context, s state.State) (state.Update, error) {
	analyses, _ := fieldAs[[]Analysis](s, "analyses")
	summaries := make([]any, 0, len(analyses))
	for _, a := range analyses {
		summaries = append(summaries, a.Section+": "+a.Summary)
	}
	return state.Update{"final_output": map[string]any{
		"title":     s.String("title"),
		"schema":    s.Map("schema_data"),
		"summaries": summaries,
		"status":    "completed",
	}}, nil
}

func priorityOf(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "security") || strings.Contains(t, "authentication") || strings.Contains(t, "performance"):
		return "High"
	case strings.Contains(t, "timeline") || strings.Contains(t, "dashboard"):
		return "Medium"
	default:
		return "Low"
	}
}

func summaryOf(detail map[string]any, section string) string {
	for _, key := range []string{"summary", "feasibility", "raw_analysis"} {
		if v, ok := detail[key].(string); ok && v != "" {
			return truncate(v, 200)
		}
	}
	return section + ": analyzed"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// fieldAs returns the named field as T.
func fieldAs[T any](s state.State, name string) (T, bool) {
	v, _ := s.Get(name)
	t, ok := v.(T)
	return t, ok
}
