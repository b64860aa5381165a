/*
Package log provides structured logging for Vigil using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	executorLog := log.WithComponent("monitor-executor")
	executorLog.Info().Int("batch_size", 42).Msg("Batch processed")

Worker loops log failures with structured fields and continue:

	workerLog.Error().
		Err(err).
		Str("worker", "collect-due").
		Int("batch_size", n).
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Msg("Cycle failed")

# Integration Points

This package integrates with:

  - pkg/worker: Worker cycle logging with worker/batch_size/elapsed_ms fields
  - pkg/store: Transaction and migration logging
  - pkg/notify: Per-channel delivery outcomes
  - cmd/vigil: Startup and shutdown logging

Never log notification payload bodies or monitor request headers at info
level; headers may carry credentials.
*/
package log
