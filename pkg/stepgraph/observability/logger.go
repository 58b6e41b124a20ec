// Package observability provides the logging, metrics, and tracing hooks the
// step graph engine calls while it runs.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Every helper accepts a nil logger and every recorder has a no-op
// implementation, so all of it is opt-in.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id, thread_id, step_id, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "alice", "transform", 2)
//	enriched.Info("doing work") // includes run_id, thread_id, step_id, attempt
func EnrichLogger(logger *slog.Logger, runID, threadID, stepID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("run_id", runID),
		slog.String("step_id", stepID),
		slog.Int("attempt", attempt),
	}
	if threadID != "" {
		attrs = append(attrs, slog.String("thread_id", threadID))
	}
	return logger.With(attrs...)
}

// LogRunStart logs the start of a run.
func LogRunStart(logger *slog.Logger, runID, threadID, startStep string) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("run_id", runID),
		slog.String("thread_id", threadID),
		slog.String("start_step", startStep),
	)
}

// LogRunComplete logs a run that reached END.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, steps int) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps_executed", steps),
	)
}

// LogRunFailed logs a run whose recovery options were exhausted.
func LogRunFailed(logger *slog.Logger, runID, failedStep string, errorCount int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("run_id", runID),
		slog.String("failed_step", failedStep),
		slog.Int("errors", errorCount),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRunPaused logs a run that stopped at a gate waiting for a signal.
func LogRunPaused(logger *slog.Logger, runID, gate string) {
	if logger == nil {
		return
	}
	logger.Info("run paused",
		slog.String("run_id", runID),
		slog.String("gate", gate),
	)
}

// LogRunError logs a run aborted by a configuration or infrastructure error.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastStep string) {
	if logger == nil {
		return
	}
	logger.Error("run aborted",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_step", lastStep),
	)
}

// LogStepStart logs step execution start.
func LogStepStart(logger *slog.Logger, stepID string, attempt int) {
	if logger == nil {
		return
	}
	logger.Debug("step starting",
		slog.String("step_id", stepID),
		slog.Int("attempt", attempt),
	)
}

// LogStepComplete logs successful step completion.
func LogStepComplete(logger *slog.Logger, stepID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("step completed",
		slog.String("step_id", stepID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStepError logs a step failure before recovery decides what to do.
func LogStepError(logger *slog.Logger, stepID string, attempt int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("step failed",
		slog.String("step_id", stepID),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// LogRetry logs a retry decision.
func LogRetry(logger *slog.Logger, stepID string, retry, maxRetries int, delay time.Duration) {
	if logger == nil {
		return
	}
	logger.Info("retrying step",
		slog.String("step_id", stepID),
		slog.Int("retry", retry),
		slog.Int("max_retries", maxRetries),
		slog.Duration("delay", delay),
	)
}

// LogRollback logs a rollback decision.
func LogRollback(logger *slog.Logger, failedStep, target string, rollbacks int) {
	if logger == nil {
		return
	}
	logger.Warn("rolling back",
		slog.String("failed_step", failedStep),
		slog.String("target", target),
		slog.Int("rollbacks", rollbacks),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, threadID, stepID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("thread_id", threadID),
		slog.String("step_id", stepID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs checkpoint failure (non-fatal).
func LogCheckpointError(logger *slog.Logger, stepID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("step_id", stepID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
