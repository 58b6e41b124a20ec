package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordStepExecution(ctx, "step", time.Millisecond, nil)
		m.RecordStepExecution(ctx, "step", time.Millisecond, errors.New("x"))
		m.RecordRetry(ctx, "step")
		m.RecordRollback(ctx, "step", "prev")
		m.RecordRun(ctx, "completed", time.Second)
		m.RecordCheckpoint(ctx, "step", 10)
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	t.Run("returns context unchanged", func(t *testing.T) {
		runCtx, span := sm.StartRunSpan(ctx, "g", "run", "thread")
		assert.Equal(t, ctx, runCtx)
		assert.NotNil(t, span)
		assert.False(t, span.IsRecording())

		stepCtx, span := sm.StartStepSpan(ctx, "step", 1)
		assert.Equal(t, ctx, stepCtx)
		assert.NotNil(t, span)
	})

	t.Run("end and events do not panic", func(t *testing.T) {
		_, span := sm.StartRunSpan(ctx, "g", "run", "")
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(ctx, "event", attribute.String("k", "v"))
			sm.EndSpanWithError(span, errors.New("x"))
			sm.EndSpanWithError(nil, nil)
		})
	})
}
