package stepgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
)

// Context provides execution context to steps.
// It extends context.Context with stepgraph-specific services and metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each step with updated StepID and enriched logger.
type Context interface {
	context.Context

	// Services

	// Logger returns the configured logger, enriched with run and step context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// LLM returns the completion client, or nil if not configured.
	// Steps should check for nil before using.
	LLM() llm.Client

	// Metadata

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// ThreadID returns the checkpoint thread, or "" for unpersisted runs.
	ThreadID() string

	// StepID returns the current step being executed.
	// Empty string before execution starts.
	StepID() StepID

	// Attempt returns the attempt number (1 = first attempt).
	Attempt() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger    *slog.Logger
	llmClient llm.Client
	runID     string
	threadID  string
	stepID    StepID
	attempt   int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// LLM returns the completion client.
func (c *executionContext) LLM() llm.Client {
	return c.llmClient
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// ThreadID returns the checkpoint thread identifier.
func (c *executionContext) ThreadID() string {
	return c.threadID
}

// StepID returns the current step identifier.
func (c *executionContext) StepID() StepID {
	return c.stepID
}

// Attempt returns the attempt number.
func (c *executionContext) Attempt() int {
	return c.attempt
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, thread_id, step_id, and attempt
// during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLLM sets the completion client for the context.
func WithLLM(client llm.Client) ContextOption {
	return func(c *executionContext) {
		c.llmClient = client
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated. WithRunID as a RunOption
// takes precedence.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// WithContextThreadID sets the default checkpoint thread for runs using
// the context. WithThreadID as a RunOption takes precedence.
func WithContextThreadID(id string) ContextOption {
	return func(c *executionContext) {
		c.threadID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// stepgraph-specific services and metadata.
//
// Example:
//
//	ctx := stepgraph.NewContext(context.Background(),
//	    stepgraph.WithLogger(myLogger),
//	    stepgraph.WithLLM(llm.NewMockClient("ok")))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		attempt: 1,
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// forRun returns the context a run executes under: inner as the
// cancellation and span carrier, runID and threadID resolved from options.
func forRun(parent Context, inner context.Context, runID, threadID string) *executionContext {
	logger := parent.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context:   inner,
		logger:    logger,
		llmClient: parent.LLM(),
		runID:     runID,
		threadID:  threadID,
		attempt:   1,
	}
}

// withStep returns a new context for one attempt of a step.
// The logger is enriched with run, thread, step, and attempt.
func (c *executionContext) withStep(inner context.Context, stepID StepID, attempt int) *executionContext {
	return &executionContext{
		Context:   inner,
		logger:    observability.EnrichLogger(c.logger, c.runID, c.threadID, string(stepID), attempt),
		llmClient: c.llmClient,
		runID:     c.runID,
		threadID:  c.threadID,
		stepID:    stepID,
		attempt:   attempt,
	}
}
