package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/checkpoint"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/llm"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/query"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/signal"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// ErrNotPaused is returned by PendingGate for a thread that is not waiting
// at one of the workflow's gates.
var ErrNotPaused = errors.New("thread is not paused at a gate")

// ErrNoStore is returned by operations that need a checkpoint store.
var ErrNoStore = errors.New("no checkpoint store configured")

// Runner runs catalog workflows against a shared checkpoint store. The CLI
// and the HTTP server both run workflows through it.
type Runner struct {
	Catalog *Catalog

	// Store persists threads. Without one every run starts fresh.
	Store checkpoint.Store

	// LLM is handed to steps through ctx.LLM(). Nil runs the model-free
	// paths.
	LLM llm.Client

	Logger *slog.Logger

	// Options are applied to every run before the workflow's own options.
	Options []stepgraph.RunOption
}

// Workflow returns the named workflow.
func (r *Runner) Workflow(name string) (*Workflow, error) {
	return r.Catalog.Get(name)
}

// Run runs the named workflow on threadID with input merged over the
// thread's state. An empty threadID gets a generated one when a store is
// configured.
func (r *Runner) Run(ctx context.Context, name, threadID string, input state.Update) (*Workflow, stepgraph.Result, error) {
	w, err := r.Workflow(name)
	if err != nil {
		return nil, stepgraph.Result{}, err
	}
	if threadID == "" && r.Store != nil {
		threadID = "thread-" + uuid.NewString()
	}

	ctxOpts := []stepgraph.ContextOption{stepgraph.WithContextThreadID(threadID)}
	if r.Logger != nil {
		ctxOpts = append(ctxOpts, stepgraph.WithLogger(r.Logger))
	}
	if r.LLM != nil {
		ctxOpts = append(ctxOpts, stepgraph.WithLLM(r.LLM))
	}
	sctx := stepgraph.NewContext(ctx, ctxOpts...)

	opts := make([]stepgraph.RunOption, 0, len(r.Options)+4)
	opts = append(opts, r.Options...)
	opts = append(opts, w.RunOptions()...)
	if r.Store != nil {
		opts = append(opts, stepgraph.WithCheckpointStore(r.Store), stepgraph.WithThreadID(threadID))
	}

	result, err := w.Graph.Run(sctx, input, opts...)
	return w, result, err
}

// PendingGate returns the gate of w that threadID is paused at.
func (r *Runner) PendingGate(ctx context.Context, w *Workflow, threadID string) (stepgraph.StepID, error) {
	if r.Store == nil {
		return "", ErrNoStore
	}
	snap, err := query.StoreLoader(r.Store)(ctx, threadID)
	if err != nil {
		return "", err
	}
	gate := stepgraph.StepID(snap.PendingGate())
	if gate == "" || !w.Graph.IsGate(gate) {
		return "", fmt.Errorf("%w: %s is %s", ErrNotPaused, threadID, snap.Status)
	}
	return gate, nil
}

// HandleSignals registers a handler per workflow on d. Each handler
// resumes the signal's thread with the signal's update and returns a
// Report.
func (r *Runner) HandleSignals(d *signal.Dispatcher) error {
	for _, name := range r.Catalog.Keys() {
		if err := d.Handle(name, r.signalHandler(name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) signalHandler(name string) signal.Handler {
	return func(ctx context.Context, sig *signal.Signal) (any, error) {
		w, result, err := r.Run(ctx, name, sig.ThreadID, sig.Update())
		if err != nil {
			return nil, fmt.Errorf("resume %s: %w", sig.ThreadID, err)
		}
		return NewReport(w, result), nil
	}
}

// Report is the JSON view of a run.
type Report struct {
	Workflow   string              `json:"workflow"`
	RunID      string              `json:"run_id"`
	ThreadID   string              `json:"thread_id,omitempty"`
	Outcome    string              `json:"outcome"`
	PausedAt   string              `json:"paused_at,omitempty"`
	Field      string              `json:"field,omitempty"`
	Labels     []string            `json:"labels,omitempty"`
	FailedStep string              `json:"failed_step,omitempty"`
	Steps      int                 `json:"steps"`
	Fields     map[string]any      `json:"fields"`
	Errors     []state.ErrorRecord `json:"errors,omitempty"`
}

// NewReport summarizes result. A paused run names its gate, the field to
// set, and the labels the gate accepts.
func NewReport(w *Workflow, result stepgraph.Result) Report {
	rep := Report{
		Workflow:   w.Name,
		RunID:      result.RunID,
		ThreadID:   result.ThreadID,
		Outcome:    result.Outcome.String(),
		FailedStep: string(result.FailedStep),
		Steps:      result.Steps,
		Fields:     result.State.Values(),
		Errors:     result.Errors,
	}
	if result.Outcome == stepgraph.Paused {
		rep.PausedAt = string(result.PausedAt)
		rep.Field = w.Graph.SignalField(result.PausedAt)
		rep.Labels = w.Labels(result.PausedAt)
	}
	return rep
}
