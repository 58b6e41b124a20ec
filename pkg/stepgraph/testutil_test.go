package stepgraph

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

// testSchema is the schema used across tests.
func testSchema() *state.Schema {
	return state.MustSchema(
		state.Field{Name: "input", Default: ""},
		state.Field{Name: "output", Default: ""},
		state.Field{Name: "count", Default: 0},
		state.Field{Name: "trail", Default: []string{}},
		state.Field{Name: "done", Default: false},
		state.Field{Name: "decision", Default: ""},
	)
}

var errBoom = errors.New("boom")

// increment is a step that increments count.
func increment(ctx Context, s state.State) (state.Update, error) {
	return state.Update{"count": s.Int("count") + 1}, nil
}

// passthrough returns no update.
func passthrough(ctx Context, s state.State) (state.Update, error) {
	return nil, nil
}

// makeTrackingStep creates a step that appends its name to trail.
func makeTrackingStep(name string) StepFunc {
	return func(ctx Context, s state.State) (state.Update, error) {
		return state.Update{"trail": append(s.Strings("trail"), name)}, nil
	}
}

// makeFailingStep creates a step that always returns err and counts calls.
func makeFailingStep(err error, calls *atomic.Int32) StepFunc {
	return func(ctx Context, s state.State) (state.Update, error) {
		if calls != nil {
			calls.Add(1)
		}
		return nil, err
	}
}

// makeFlakyStep creates a step that fails the first n calls, then appends
// name to trail.
func makeFlakyStep(name string, n int32, calls *atomic.Int32) StepFunc {
	return func(ctx Context, s state.State) (state.Update, error) {
		if calls.Add(1) <= n {
			return nil, errBoom
		}
		return state.Update{"trail": append(s.Strings("trail"), name)}, nil
	}
}

// makePanicStep creates a step that panics with the given value.
func makePanicStep(value any) StepFunc {
	return func(ctx Context, s state.State) (state.Update, error) {
		panic(value)
	}
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
