package stepgraph

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/recovery"
)

// DefaultMaxSteps bounds step executions per Run unless overridden.
const DefaultMaxSteps = 1000

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxSteps  int
	timeout   time.Duration
	threadID  string
	runID     string
	graphName string

	store                  checkpoint.Store
	checkpointFailureFatal bool

	policy recovery.Policy

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxSteps:  DefaultMaxSteps,
		graphName: "stepgraph",
		policy:    recovery.DefaultPolicy(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxSteps bounds the number of step executions in one Run, retries
// and gate passes included.
// Default: 1000. n <= 0 removes the bound.
//
// Cycles are legal, so an unbounded run over a miswired conditional edge
// never terminates. If a run exceeds the bound, Run returns *MaxStepsError.
//
// Example:
//
//	result, err := compiled.Run(ctx, nil, stepgraph.WithMaxSteps(100))
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) {
		c.maxSteps = n
	}
}

// WithTimeout bounds the wall-clock duration of one Run. When it elapses
// Run returns *CancellationError wrapping context.DeadlineExceeded.
// Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithThreadID names the checkpoint thread the run loads from and saves to.
// Overrides the thread set on the Context.
func WithThreadID(id string) RunOption {
	return func(c *runConfig) {
		c.threadID = id
	}
}

// WithRunID sets the run identifier used in logs, spans, and checkpoints.
// Overrides the run ID of the Context.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithGraphName sets the graph.name attribute of the run span.
// Default: "stepgraph".
func WithGraphName(name string) RunOption {
	return func(c *runConfig) {
		if name != "" {
			c.graphName = name
		}
	}
}

// WithCheckpointStore enables persistence. The run loads the thread's
// checkpoint before the first step and saves after every step.
// Requires a thread ID from WithThreadID or the Context.
func WithCheckpointStore(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.store = store
	}
}

// WithCheckpointFailureFatal makes checkpoint save failures abort the run
// with *CheckpointError. By default they are logged and the run continues.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = fatal
	}
}

// WithRecovery replaces the recovery policy.
// Default: recovery.DefaultPolicy().
func WithRecovery(p recovery.Policy) RunOption {
	return func(c *runConfig) {
		c.policy = p
	}
}

// WithMaxRetries sets how many times a failing step is retried before the
// run rolls back. Ignored if n < 0.
func WithMaxRetries(n int) RunOption {
	return func(c *runConfig) {
		if n >= 0 {
			c.policy.MaxRetries = n
		}
	}
}

// WithObservabilityLogger enables run-level structured logging: run start
// and end, step start and end, retries, rollbacks, and checkpoints.
// Step functions log through Context.Logger regardless.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics from the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder routes metrics to r.
func WithMetricsRecorder(r observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithTracing enables OpenTelemetry spans from the global tracer provider.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager routes spans to m.
func WithSpanManager(m observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.spans = m
		}
	}
}
