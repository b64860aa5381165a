package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the persisted task run status
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
	RunStatusAborted  RunStatus = "aborted"
	RunStatusDead     RunStatus = "dead"
)

// Run is one execution of a task, identified by (organization, task,
// started_at).
//
// Invariant: a Finished run's exit code is nil or <= 0; a Failed run's
// exit code is nil or > 0.
type Run struct {
	OrganizationID uuid.UUID
	TaskID         ID
	StartedAt      time.Time

	Status          RunStatus
	CompletedAt     *time.Time
	ExitCode        *int
	ErrorMessage    *string
	LastHeartbeatAt *time.Time
}

// Heartbeat records a liveness signal from the running job
func (r *Run) Heartbeat(now time.Time) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: status %s", ErrRunNotRunning, r.Status)
	}
	beat := now
	r.LastHeartbeatAt = &beat
	return nil
}

// HeartbeatExpired reports whether the run missed its heartbeat window
func (r *Run) HeartbeatExpired(timeout time.Duration, now time.Time) bool {
	if r.Status != RunStatusRunning || r.LastHeartbeatAt == nil {
		return false
	}
	return now.Sub(*r.LastHeartbeatAt) >= timeout
}

// finish closes the run with a terminal status, enforcing the exit-code
// sign invariant.
func (r *Run) finish(status RunStatus, exitCode *int, errorMessage *string, now time.Time) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: status %s", ErrRunNotRunning, r.Status)
	}
	if exitCode != nil {
		if status == RunStatusFinished && *exitCode > 0 {
			return fmt.Errorf("%w: finished run with exit code %d", ErrExitCode, *exitCode)
		}
		if status == RunStatusFailed && *exitCode <= 0 {
			return fmt.Errorf("%w: failed run with exit code %d", ErrExitCode, *exitCode)
		}
	}

	r.Status = status
	completed := now
	r.CompletedAt = &completed
	r.ExitCode = exitCode
	r.ErrorMessage = errorMessage
	return nil
}

// markDead closes the run after a heartbeat timeout
func (r *Run) markDead(now time.Time) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: status %s", ErrRunNotRunning, r.Status)
	}
	r.Status = RunStatusDead
	completed := now
	r.CompletedAt = &completed
	return nil
}
