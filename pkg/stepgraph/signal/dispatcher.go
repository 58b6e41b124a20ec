package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/registry"
)

// ErrNoHandler is returned when no handler exists for a signal's workflow.
var ErrNoHandler = errors.New("no handler for signal")

// ErrInvalidSignal is returned for a signal missing its thread, workflow, or label.
var ErrInvalidSignal = errors.New("invalid signal")

// Handler applies a signal and returns a result for the sender, typically
// the resumed run's outcome.
type Handler func(ctx context.Context, sig *Signal) (any, error)

// Dispatcher routes signals to per-workflow handlers.
type Dispatcher struct {
	handlers *registry.Registry[string, Handler]
	store    Store
	logger   *slog.Logger

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// NewDispatcher creates a new signal dispatcher.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{
		handlers: registry.New[string, Handler](),
		store:    store,
		logger:   slog.Default(),
		threads:  make(map[string]*sync.Mutex),
	}
}

// WithLogger sets the logger for the dispatcher.
func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// Handle registers the handler for a workflow's signals.
func (d *Dispatcher) Handle(workflow string, h Handler) error {
	if workflow == "" {
		return errors.New("workflow name is required")
	}
	if h == nil {
		return errors.New("handler is required")
	}
	return d.handlers.Register(workflow, h)
}

// Workflows returns the workflows with a registered handler, sorted.
func (d *Dispatcher) Workflows() []string {
	return d.handlers.Keys()
}

// Send records sig and delivers it. The handler's result is returned;
// a handler error marks the signal failed and is returned as well.
func (d *Dispatcher) Send(ctx context.Context, sig *Signal) (any, error) {
	switch {
	case sig.ThreadID == "":
		return nil, fmt.Errorf("%w: thread id is required", ErrInvalidSignal)
	case sig.Workflow == "":
		return nil, fmt.Errorf("%w: workflow is required", ErrInvalidSignal)
	case sig.Label == "":
		return nil, fmt.Errorf("%w: label is required", ErrInvalidSignal)
	}

	if err := d.store.Enqueue(ctx, sig); err != nil {
		return nil, fmt.Errorf("failed to enqueue signal: %w", err)
	}
	d.logger.Debug("signal sent",
		"signal_id", sig.ID,
		"thread_id", sig.ThreadID,
		"workflow", sig.Workflow,
		"label", sig.Label,
	)

	lock := d.threadLock(sig.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	return d.deliver(ctx, sig)
}

func (d *Dispatcher) deliver(ctx context.Context, sig *Signal) (any, error) {
	handler, ok := d.handlers.Lookup(sig.Workflow)
	if !ok {
		d.logger.Warn("no handler for signal",
			"signal_id", sig.ID,
			"workflow", sig.Workflow,
		)
		d.markFailed(ctx, sig, ErrNoHandler)
		return nil, fmt.Errorf("%w: workflow %q", ErrNoHandler, sig.Workflow)
	}

	result, err := handler(ctx, sig)
	if err != nil {
		d.logger.Error("signal processing failed",
			"signal_id", sig.ID,
			"thread_id", sig.ThreadID,
			"error", err,
		)
		d.markFailed(ctx, sig, err)
		return result, err
	}

	if markErr := d.store.MarkProcessed(ctx, sig.ID); markErr != nil {
		d.logger.Error("failed to mark signal as processed",
			"signal_id", sig.ID,
			"error", markErr,
		)
	}
	d.logger.Debug("signal processed",
		"signal_id", sig.ID,
		"thread_id", sig.ThreadID,
	)
	return result, nil
}

func (d *Dispatcher) markFailed(ctx context.Context, sig *Signal, cause error) {
	if err := d.store.MarkFailed(ctx, sig.ID, cause); err != nil {
		d.logger.Error("failed to mark signal as failed",
			"signal_id", sig.ID,
			"error", err,
		)
	}
}

// History returns a thread's signals, oldest first.
func (d *Dispatcher) History(ctx context.Context, threadID string) ([]*Signal, error) {
	return d.store.List(ctx, threadID)
}

// Forget drops a thread's signal history.
func (d *Dispatcher) Forget(ctx context.Context, threadID string) error {
	d.mu.Lock()
	delete(d.threads, threadID)
	d.mu.Unlock()
	return d.store.Delete(ctx, threadID)
}

func (d *Dispatcher) threadLock(threadID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.threads[threadID]
	if !ok {
		l = &sync.Mutex{}
		d.threads[threadID] = l
	}
	return l
}
