package task

import "errors"

var (
	// ErrIllegalTransition is returned when a requested transition is
	// not legal from the task's current status.
	ErrIllegalTransition = errors.New("illegal task transition")

	// ErrInvalidCron is returned for unparsable cron expressions
	ErrInvalidCron = errors.New("invalid cron schedule")

	// ErrInvalidUserID is returned for empty or whitespace user task ids
	ErrInvalidUserID = errors.New("invalid user task id")

	// ErrUserIDTaken is returned when a user id collides with a
	// non-archived task of the same organization.
	ErrUserIDTaken = errors.New("user task id already in use")

	// ErrMissingSchedule is returned when a transition needs next_due_at
	// but the task has no cron schedule.
	ErrMissingSchedule = errors.New("task has no cron schedule")

	// ErrExitCode is returned when a finish call carries an exit code
	// with the wrong sign for its outcome.
	ErrExitCode = errors.New("exit code does not match run outcome")

	// ErrRunNotRunning is returned for heartbeats or completions against
	// a run that already finished.
	ErrRunNotRunning = errors.New("task run is not running")
)
