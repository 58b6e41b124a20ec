/*
Package stepgraph runs directed graphs of named steps over a shared,
schema-defined State.

# Overview

A step reads the current State and returns a partial Update. The engine
merges the update, asks the router for the next step, and repeats until it
reaches END. Failed steps go to a recovery policy that retries them, rolls
back to the last step that succeeded, or fails the run. Runs can checkpoint
after every step under a thread ID and pause at gates until an external
signal arrives.

# Basic Usage

Declare a schema, register steps, connect them, then compile and run:

	schema := state.MustSchema(
	    state.Field{Name: "input", Default: ""},
	    state.Field{Name: "output", Default: ""},
	)

	func transform(ctx stepgraph.Context, s state.State) (state.Update, error) {
	    return state.Update{"output": strings.ToUpper(s.String("input"))}, nil
	}

	func main() {
	    graph := stepgraph.NewGraph(schema).
	        AddStep("transform", transform).
	        AddEdge("transform", stepgraph.END).
	        SetEntry("transform")

	    compiled, err := graph.Compile()
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := stepgraph.NewContext(context.Background())
	    result, err := compiled.Run(ctx, state.Update{"input": "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(result.State.String("output")) // "HELLO"
	}

# Conditional Branching

A conditional edge maps router labels to steps. Compile checks that every
route target exists; a label with no route aborts the run with a
*RoutingError.

	graph.AddConditionalEdge("analyze", func(ctx stepgraph.Context, s state.State) string {
	    return s.String("sentiment")
	}, map[string]stepgraph.StepID{
	    "positive": "celebrate",
	    "negative": "console",
	    "neutral":  stepgraph.END,
	})

A condition edge is the two-way form written as an expression over the
state's fields. Compile rejects a condition that reads a field the schema
does not declare.

	graph.AddConditionEdge("analyze", "risk == 'high'", "review", "transform")

# Loops

Cycles are allowed and unbounded by design. Bound a run with WithMaxSteps
(default 1000) or WithTimeout, and bound specific loops with a counter in
State.

# Recovery

A step that returns an error or panics is handed to the recovery policy:

	result, err := compiled.Run(ctx, nil,
	    stepgraph.WithRecovery(recovery.Policy{
	        MaxRetries: 2,
	        Backoff:    recovery.Backoff{Initial: 100 * time.Millisecond, Factor: 2},
	    }))

The policy retries while attempts remain, then rolls back to the last
successful step, then fails. Every failure is appended to Result.Errors.
Exhausted recovery is a Failed outcome with a nil error.

# Checkpointing and Gates

With a store and a thread ID, the run loads the thread before the first
step and saves after every step:

	store, err := checkpoint.NewSQLiteStore("./threads.db")
	result, err := compiled.Run(ctx, state.Update{"message": "hi"},
	    stepgraph.WithCheckpointStore(store),
	    stepgraph.WithThreadID("alice"))

A gate pauses the run until its signal field holds a label:

	graph.AddGate("review", "decision", map[string]stepgraph.StepID{
	    "approve": "publish",
	    "reject":  stepgraph.END,
	})

	result, _ := compiled.Run(ctx, nil, opts...)       // result.Outcome == Paused
	result, _ = compiled.Run(ctx, state.Update{"decision": "approve"}, opts...)

# Observability

Enable logging, metrics, and tracing:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	result, err := compiled.Run(ctx, nil,
	    stepgraph.WithObservabilityLogger(logger),
	    stepgraph.WithMetrics(true),
	    stepgraph.WithTracing(true),
	    stepgraph.WithRunID("run-123"))

Logs include structured fields: run_id, thread_id, step_id, duration_ms, attempt.
OpenTelemetry metrics: stepgraph.step.executions, stepgraph.step.latency_ms, etc.
OpenTelemetry tracing: stepgraph.run > stepgraph.step.{id} spans.

# Thread Safety

  - Graph is NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use (immutable)
  - Context IS safe for concurrent use
  - checkpoint.Store implementations are safe for concurrent use

# Subpackages

  - state: Schema, State, Update, and the checkpoint codec
  - registry: Build-once registry used for steps and workflows
  - recovery: Retry, rollback, and backoff
  - checkpoint: Thread-keyed stores (memory, file, SQLite, Redis, PostgreSQL)
  - llm: Completion client interface, mock, and OpenAI-compatible client
  - observability: Logging, metrics, and tracing helpers
  - config: YAML/JSON configuration
  - server: JSON HTTP API
*/
package stepgraph
