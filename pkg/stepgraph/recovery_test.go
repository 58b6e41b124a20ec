package stepgraph

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph/recovery"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoStepGraph wires a -> b -> END.
func twoStepGraph(t *testing.T, a, b StepFunc) *CompiledGraph {
	t.Helper()
	return mustCompile(t, NewGraph(testSchema()).
		AddStep("a", a).
		AddStep("b", b).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a"))
}

// TestRecovery_RetryThenRollback tests that retries are spent before rolling back.
func TestRecovery_RetryThenRollback(t *testing.T) {
	var (
		calls    atomic.Int32
		attempts []int
	)
	flaky := makeFlakyStep("b", 3, &calls)
	b := func(ctx Context, s state.State) (state.Update, error) {
		attempts = append(attempts, ctx.Attempt())
		return flaky(ctx, s)
	}
	compiled := twoStepGraph(t, makeTrackingStep("a"), b)

	result, err := compiled.Run(testCtx(), nil, WithMaxRetries(2))

	require.NoError(t, err)
	assert.Equal(t, Completed, result.Outcome)
	assert.Equal(t, []string{"a", "a", "b"}, result.State.Strings("trail"))
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []int{1, 2, 3, 1}, attempts, "retry count is zero on entry after rollback")

	require.Len(t, result.Errors, 3)
	for i, rec := range result.Errors {
		assert.Equal(t, "b", rec.Step)
		assert.Equal(t, i+1, rec.Attempt)
		assert.Equal(t, errBoom.Error(), rec.Message)
	}

	m := result.State.Meta()
	assert.Equal(t, 1, m.Rollbacks)
	assert.Equal(t, 0, m.RetryCount)
	assert.Equal(t, 2, m.MaxRetries)
	assert.Equal(t, "b", m.LastSuccessfulStep)
	assert.Equal(t, 6, result.Steps)
}

// TestRecovery_FailsWithoutRollbackTarget tests a step that always fails
// before anything has succeeded.
func TestRecovery_FailsWithoutRollbackTarget(t *testing.T) {
	var calls atomic.Int32
	compiled := mustCompile(t, NewGraph(testSchema()).
		AddStep("a", makeFailingStep(errBoom, &calls)).
		AddEdge("a", END).
		SetEntry("a"))

	result, err := compiled.Run(testCtx(), nil, WithMaxRetries(1))

	require.NoError(t, err)
	assert.Equal(t, Failed, result.Outcome)
	assert.Equal(t, StepID("a"), result.FailedStep)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Attempt)
	assert.Equal(t, 2, result.Errors[1].Attempt)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "a", result.State.Meta().FailedStep)
}

// TestRecovery_MaxRollbacks tests that the rollback bound ends the run.
func TestRecovery_MaxRollbacks(t *testing.T) {
	var calls atomic.Int32
	compiled := twoStepGraph(t, makeTrackingStep("a"), makeFailingStep(errBoom, &calls))

	result, err := compiled.Run(testCtx(), nil,
		WithRecovery(recovery.Policy{MaxRetries: 2, MaxRollbacks: 1}))

	require.NoError(t, err)
	assert.Equal(t, Failed, result.Outcome)
	assert.Equal(t, StepID("b"), result.FailedStep)
	assert.Equal(t, []string{"a", "a"}, result.State.Strings("trail"))
	assert.Len(t, result.Errors, 6)
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, 1, result.State.Meta().Rollbacks)
}

// TestRecovery_UnlimitedRollbacksHitMaxSteps tests that a permanently failing
// step with unlimited rollbacks is stopped by the step bound.
func TestRecovery_UnlimitedRollbacksHitMaxSteps(t *testing.T) {
	compiled := twoStepGraph(t, makeTrackingStep("a"), makeFailingStep(errBoom, nil))

	_, err := compiled.Run(testCtx(), nil, WithMaxRetries(0), WithMaxSteps(20))

	assert.ErrorIs(t, err, ErrMaxSteps)
}

// TestRecovery_ZeroRetriesRollsBackImmediately tests rollback without retries.
func TestRecovery_ZeroRetriesRollsBackImmediately(t *testing.T) {
	var calls atomic.Int32
	compiled := twoStepGraph(t, makeTrackingStep("a"), makeFlakyStep("b", 1, &calls))

	result, err := compiled.Run(testCtx(), nil, WithMaxRetries(0))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "b"}, result.State.Strings("trail"))
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.State.Meta().Rollbacks)
}

// TestRecovery_RetryCountResetsOnSuccess tests that an earlier failure does
// not exhaust retries for a later one.
func TestRecovery_RetryCountResetsOnSuccess(t *testing.T) {
	var aCalls, bCalls atomic.Int32
	compiled := twoStepGraph(t,
		makeFlakyStep("a", 1, &aCalls),
		makeFlakyStep("b", 1, &bCalls))

	result, err := compiled.Run(testCtx(), nil, WithMaxRetries(1))

	require.NoError(t, err)
	assert.Equal(t, Completed, result.Outcome)
	assert.Equal(t, []string{"a", "b"}, result.State.Strings("trail"))
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 0, result.State.Meta().Rollbacks)
}

// TestRecovery_FailedStepStateUnchanged tests that a failed attempt does not
// leak a partial update.
func TestRecovery_FailedStepStateUnchanged(t *testing.T) {
	var calls atomic.Int32
	step := func(ctx Context, s state.State) (state.Update, error) {
		if calls.Add(1) == 1 {
			return state.Update{"output": "partial"}, errBoom
		}
		return state.Update{"count": s.Int("count") + 1}, nil
	}
	compiled := mustCompile(t, NewGraph(testSchema()).
		AddStep("a", step).
		AddEdge("a", END).
		SetEntry("a"))

	result, err := compiled.Run(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, "", result.State.String("output"))
	assert.Equal(t, 1, result.State.Int("count"))
}

// TestRecovery_Backoff tests that retries wait out the backoff.
func TestRecovery_Backoff(t *testing.T) {
	var calls atomic.Int32
	compiled := mustCompile(t, NewGraph(testSchema()).
		AddStep("a", makeFlakyStep("a", 2, &calls)).
		AddEdge("a", END).
		SetEntry("a"))

	start := time.Now()
	result, err := compiled.Run(testCtx(), nil, WithRecovery(recovery.Policy{
		MaxRetries: 2,
		Backoff:    recovery.Backoff{Initial: 10 * time.Millisecond, Factor: 2},
	}))

	require.NoError(t, err)
	assert.Equal(t, Completed, result.Outcome)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

// TestRecovery_CancelledDuringBackoff tests cancellation while waiting to retry.
func TestRecovery_CancelledDuringBackoff(t *testing.T) {
	compiled := mustCompile(t, NewGraph(testSchema()).
		AddStep("a", makeFailingStep(errBoom, nil)).
		AddEdge("a", END).
		SetEntry("a"))

	_, err := compiled.Run(testCtx(), nil,
		WithTimeout(20*time.Millisecond),
		WithRecovery(recovery.Policy{MaxRetries: 1, Backoff: recovery.Backoff{Initial: time.Hour}}))

	var ce *CancellationError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.WasExecuting)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, ce.State.Meta().Errors, 1)
}
