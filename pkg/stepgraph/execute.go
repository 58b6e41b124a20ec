package stepgraph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/observability"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/recovery"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// Run executes the graph. The run starts from the schema defaults, or from
// the thread's checkpoint when a store and thread ID are configured, with
// initial merged on top.
//
// Execution flow:
//  1. Load the thread's checkpoint and pick the start step
//  2. Check for cancellation and the step bound
//  3. Execute the current step and merge its update into State
//  4. On failure, let the recovery policy retry, roll back, or fail
//  5. On success, route to the next step (fixed edge, conditional edge, or gate)
//  6. Checkpoint, then repeat until END, a gate pauses, or recovery fails
//
// Completed, Failed, and Paused runs return a nil error; inspect
// Result.Outcome. Configuration errors (unknown fields, routing errors),
// cancellation, the step bound, and fatal checkpoint failures return an
// error together with the State at the point of failure.
//
// Resuming: a paused checkpoint resumes at its gate, an interrupted one at
// the step it was about to run, and a finished one starts over at the
// entry with run bookkeeping reset and field values kept.
//
// Example:
//
//	ctx := stepgraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, state.Update{"input": "hello"})
//	if err != nil {
//	    // configuration or infrastructure error
//	}
//	if result.Outcome == stepgraph.Failed {
//	    // result.Errors explains why
//	}
func (cg *CompiledGraph) Run(ctx Context, initial state.Update, opts ...RunOption) (result Result, runErr error) {
	if ctx == nil {
		return Result{}, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.policy.Validate(); err != nil {
		return Result{}, err
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}
	threadID := cfg.threadID
	if threadID == "" {
		threadID = ctx.ThreadID()
	}
	if cfg.store != nil && threadID == "" {
		return Result{RunID: runID}, ErrThreadIDRequired
	}

	var inner context.Context = ctx
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		inner, cancel = context.WithTimeout(inner, cfg.timeout)
		defer cancel()
	}

	inner, runSpan := cfg.spans.StartRunSpan(inner, cfg.graphName, runID, threadID)
	defer func() {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	r := &run{
		graph: cg,
		cfg:   &cfg,
		ctx:   forRun(ctx, inner, runID, threadID),
	}
	elapsed := observability.TimedOperation()
	start := time.Now()

	s, startStep, err := r.load(initial)
	if err == nil {
		observability.LogRunStart(cfg.logger, runID, threadID, string(startStep))
		result, runErr = r.loop(s, startStep)
	} else {
		result, runErr = r.result(s, 0), err
	}

	durationMs := elapsed()
	outcome := result.Outcome.String()
	if runErr != nil {
		outcome = "error"
	}
	cfg.metrics.RecordRun(r.ctx, outcome, time.Since(start))

	switch {
	case runErr != nil:
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, result.State.Meta().CurrentStep)
	case result.Outcome == Completed:
		observability.LogRunComplete(cfg.logger, runID, durationMs, result.Steps)
	case result.Outcome == Failed:
		observability.LogRunFailed(cfg.logger, runID, string(result.FailedStep), len(result.Errors), durationMs)
	case result.Outcome == Paused:
		observability.LogRunPaused(cfg.logger, runID, string(result.PausedAt))
	}

	return result, runErr
}

// run is the per-call execution state.
type run struct {
	graph    *CompiledGraph
	cfg      *runConfig
	ctx      *executionContext
	seq      int
	executed int
}

// load builds the starting State and picks the start step.
func (r *run) load(initial state.Update) (state.State, StepID, error) {
	s := r.graph.schema.Default()
	start := r.graph.entry

	if r.cfg.store != nil {
		loaded, next, err := r.restore()
		if err != nil {
			return s, start, err
		}
		if next != "" {
			s, start = loaded, next
		}
	}

	s, err := s.Merge(initial)
	if err != nil {
		return s, start, err
	}

	m := s.Meta()
	m.MaxRetries = r.cfg.policy.MaxRetries
	return s.WithMeta(m), start, nil
}

// restore reads the thread's checkpoint. It returns an empty step when
// the thread has none.
func (r *run) restore() (state.State, StepID, error) {
	data, err := r.cfg.store.Load(r.ctx, r.ctx.threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return state.State{}, "", nil
	}
	if err != nil {
		return state.State{}, "", &CheckpointError{StepID: r.graph.entry, Op: "load", Err: err}
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return state.State{}, "", &CheckpointError{StepID: r.graph.entry, Op: "decode", Err: err}
	}
	s, err := r.graph.schema.Unmarshal(cp.State)
	if err != nil {
		return state.State{}, "", &CheckpointError{StepID: StepID(cp.Step), Op: "decode", Err: err}
	}
	r.seq = cp.Sequence

	if cp.Status.Finished() {
		return s.WithMeta(s.Meta().ResetRun()), r.graph.entry, nil
	}

	next := StepID(cp.NextStep)
	if !r.graph.HasStep(next) {
		return state.State{}, "", &CheckpointError{
			StepID: next,
			Op:     "resume",
			Err:    fmt.Errorf("%w: %s", ErrInvalidResumeStep, next),
		}
	}
	return s, next, nil
}

// loop runs steps from current until the run ends.
func (r *run) loop(s state.State, current StepID) (Result, error) {
	logger := r.cfg.logger

	for current != END {
		if r.cfg.maxSteps > 0 && r.executed >= r.cfg.maxSteps {
			return r.result(s, 0), &MaxStepsError{Max: r.cfg.maxSteps, StepID: current, State: s}
		}

		// Check for cancellation before executing the step
		select {
		case <-r.ctx.Done():
			return r.result(s, 0), &CancellationError{StepID: current, State: s, Cause: r.ctx.Err()}
		default:
		}

		n, err := r.graph.lookup(current)
		if err != nil {
			return r.result(s, 0), err
		}
		r.executed++

		if n.gate != nil {
			next, to, paused, err := r.passGate(s, n)
			if err != nil {
				return r.result(s, 0), err
			}
			if paused {
				if err := r.save(next, current, current, checkpoint.StatusPaused); err != nil {
					return r.result(next, 0), err
				}
				res := r.result(next, Paused)
				res.PausedAt = current
				return res, nil
			}
			if err := r.save(next, current, to, statusFor(to)); err != nil {
				return r.result(next, 0), err
			}
			s, current = next, to
			continue
		}

		m := s.Meta()
		m.CurrentStep = string(current)
		m.Steps++
		s = s.WithMeta(m)
		attempt := m.RetryCount + 1

		stepInner, span := r.cfg.spans.StartStepSpan(r.ctx, string(current), attempt)
		sctx := r.ctx.withStep(stepInner, current, attempt)
		observability.LogStepStart(logger, string(current), attempt)

		elapsed := observability.TimedOperation()
		start := time.Now()
		next, err := execute(sctx, n, s)
		r.cfg.metrics.RecordStepExecution(stepInner, string(current), time.Since(start), err)
		r.cfg.spans.EndSpanWithError(span, err)

		if err != nil {
			if cause := r.ctx.Err(); cause != nil {
				return r.result(s, 0), &CancellationError{StepID: current, State: s, Cause: cause, WasExecuting: true}
			}
			if isConfigError(err) {
				return r.result(s, 0), &StepError{StepID: current, Attempt: attempt, Err: err}
			}
			observability.LogStepError(logger, string(current), attempt, err)

			d := r.cfg.policy.Decide(s.Meta(), string(current), err)
			s = s.WithMeta(d.Meta)

			switch d.Action {
			case recovery.Retry:
				observability.LogRetry(logger, string(current), d.Meta.RetryCount, r.cfg.policy.MaxRetries, d.Delay)
				r.cfg.metrics.RecordRetry(r.ctx, string(current))
				if err := r.save(s, current, current, checkpoint.StatusRunning); err != nil {
					return r.result(s, 0), err
				}
				if err := recovery.Wait(r.ctx, d.Delay); err != nil {
					return r.result(s, 0), &CancellationError{StepID: current, State: s, Cause: err, WasExecuting: true}
				}

			case recovery.Rollback:
				target := StepID(d.Target)
				observability.LogRollback(logger, string(current), d.Target, d.Meta.Rollbacks)
				r.cfg.metrics.RecordRollback(r.ctx, string(current), d.Target)
				if err := r.save(s, current, target, checkpoint.StatusRunning); err != nil {
					return r.result(s, 0), err
				}
				current = target

			default:
				if err := r.save(s, current, "", checkpoint.StatusFailed); err != nil {
					return r.result(s, 0), err
				}
				res := r.result(s, Failed)
				res.FailedStep = current
				return res, nil
			}
			continue
		}

		next = next.WithMeta(recovery.Succeeded(next.Meta(), string(current)))
		observability.LogStepComplete(logger, string(current), elapsed())

		to, err := r.graph.route(sctx, next, current)
		if err != nil {
			return r.result(next, 0), err
		}
		if err := r.save(next, current, to, statusFor(to)); err != nil {
			return r.result(next, 0), err
		}
		s, current = next, to
	}

	return r.result(s, Completed), nil
}

// passGate consumes the gate's signal. With no signal the run pauses at
// the gate; otherwise the signal field is reset and the label routed.
func (r *run) passGate(s state.State, n *node) (state.State, StepID, bool, error) {
	m := s.Meta()
	m.CurrentStep = string(n.id)

	label := s.String(n.gate.field)
	if label == "" {
		m.Log = append(m.Log, fmt.Sprintf("Paused at %s awaiting %s", n.id, n.gate.field))
		return s.WithMeta(m), n.id, true, nil
	}

	to, ok := n.gate.routes[label]
	if !ok {
		return s, "", false, &RoutingError{
			From:  n.id,
			Label: label,
			Known: slices.Sorted(maps.Keys(n.gate.routes)),
		}
	}

	next, err := s.Merge(state.Update{n.gate.field: nil})
	if err != nil {
		return s, "", false, err
	}
	m.Log = append(m.Log, fmt.Sprintf("%s: %s", n.id, label))
	return next.WithMeta(m), to, false, nil
}

// route determines the next step after from succeeded.
// Checks conditional edges first, then fixed edges.
func (cg *CompiledGraph) route(ctx Context, s state.State, from StepID) (StepID, error) {
	if b, ok := cg.branches[from]; ok {
		label, err := b.label(ctx, s, from)
		if err != nil {
			return "", err
		}
		to, ok := b.routes[label]
		if !ok {
			return "", &RoutingError{
				From:  from,
				Label: label,
				Known: slices.Sorted(maps.Keys(b.routes)),
			}
		}
		return to, nil
	}

	to, ok := cg.edges[from]
	if !ok {
		// Compile guarantees an outgoing edge
		return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
	}
	return to, nil
}

// save checkpoints s after step. Failures are logged and swallowed unless
// checkpoint failures are fatal.
func (r *run) save(s state.State, step, next StepID, status checkpoint.Status) error {
	if r.cfg.store == nil {
		return nil
	}

	stateBytes, err := state.Marshal(s)
	if err != nil {
		return r.checkpointFailed(step, "serialize", err)
	}

	r.seq++
	cp := checkpoint.New(r.ctx.threadID, r.ctx.runID, r.seq, stateBytes).
		At(string(step), string(next)).
		WithStatus(status)

	data, err := cp.Marshal()
	if err != nil {
		return r.checkpointFailed(step, "marshal", err)
	}

	if err := r.cfg.store.Save(r.ctx, r.ctx.threadID, data); err != nil {
		return r.checkpointFailed(step, "save", err)
	}

	observability.LogCheckpoint(r.cfg.logger, r.ctx.threadID, string(step), len(data))
	r.cfg.metrics.RecordCheckpoint(r.ctx, string(step), int64(len(data)))
	return nil
}

func (r *run) checkpointFailed(step StepID, op string, err error) error {
	if r.cfg.checkpointFailureFatal {
		return &CheckpointError{StepID: step, Op: op, Err: err}
	}
	observability.LogCheckpointError(r.cfg.logger, string(step), op, err)
	return nil
}

// result builds a Result around s.
func (r *run) result(s state.State, outcome Outcome) Result {
	return Result{
		State:    s,
		Outcome:  outcome,
		RunID:    r.ctx.runID,
		ThreadID: r.ctx.threadID,
		Errors:   s.Meta().Errors,
		Steps:    r.executed,
	}
}

// execute runs one step with panic recovery and merges its update.
func execute(ctx Context, n *node, s state.State) (next state.State, err error) {
	defer func() {
		if v := recover(); v != nil {
			next = s
			err = &PanicError{
				StepID: n.id,
				Value:  v,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	update, err := n.fn(ctx, s)
	if err != nil {
		return s, err
	}
	return s.Merge(update)
}

// label picks the branch's route label for s.
func (b *branch) label(ctx Context, s state.State, from StepID) (string, error) {
	if b.cond == nil {
		return callRouter(ctx, b.router, s, from)
	}
	ok, err := b.cond.Bool(s.Values())
	if err != nil {
		return "", &ConditionError{From: from, Condition: b.cond.String(), Err: err}
	}
	if ok {
		return LabelTrue, nil
	}
	return LabelFalse, nil
}

// callRouter invokes a router with panic recovery.
func callRouter(ctx Context, router RouterFunc, s state.State, from StepID) (label string, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{
				StepID: from,
				Value:  v,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return router(ctx, s), nil
}

// statusFor is the checkpoint status after routing to next.
func statusFor(next StepID) checkpoint.Status {
	if next == END {
		return checkpoint.StatusCompleted
	}
	return checkpoint.StatusRunning
}

// isConfigError reports errors that retrying cannot fix.
func isConfigError(err error) bool {
	var (
		unknownField *state.UnknownFieldError
		mismatch     *state.TypeMismatchError
		routing      *RoutingError
		unknownStep  *UnknownStepError
	)
	return errors.As(err, &unknownField) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &routing) ||
		errors.As(err, &unknownStep)
}
