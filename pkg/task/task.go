package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the persisted task status discriminator
type Status string

const (
	StatusPending  Status = "pending"
	StatusDue      Status = "due"
	StatusLate     Status = "late"
	StatusAbsent   Status = "absent"
	StatusRunning  Status = "running"
	StatusHealthy  Status = "healthy"
	StatusFailing  Status = "failing"
	StatusArchived Status = "archived"
)

// Task is the boundary record for a scheduled task.
//
// Invariant: NextDueAt is present iff the status demands it: Due, Late
// and Absent always carry it; Pending, Healthy and Failing carry it
// exactly when the task has a cron schedule; Archived never does.
type Task struct {
	OrganizationID uuid.UUID
	ID             ID

	CronSchedule     *string
	ScheduleTimezone *string

	StartWindow      time.Duration
	LatenessWindow   time.Duration
	HeartbeatTimeout time.Duration

	Status             Status
	PreviousStatus     *Status
	LastStatusChangeAt *time.Time
	NextDueAt          *time.Time

	Metadata map[string]string

	EmailNotificationEnabled bool
	SMSNotificationEnabled   bool
	PushNotificationEnabled  bool

	CreatedAt time.Time
}

// NewTaskParams carries the caller-supplied attributes for Create
type NewTaskParams struct {
	OrganizationID   uuid.UUID
	ID               ID
	CronSchedule     string
	ScheduleTimezone string
	StartWindow      time.Duration
	LatenessWindow   time.Duration
	HeartbeatTimeout time.Duration
	Metadata         map[string]string

	// IsActive marks a task already known to be running on schedule; it
	// starts Healthy instead of waiting for its first check-in.
	IsActive bool
}

// Create builds a new task. With a cron schedule the task starts
// Healthy (active) or Pending with its first due instant; without one
// it starts Pending and only moves when started externally.
func Create(p NewTaskParams, now time.Time) (*Task, error) {
	id := p.ID
	if id.IsZero() {
		id = NewID()
	}

	t := &Task{
		OrganizationID:   p.OrganizationID,
		ID:               id,
		StartWindow:      p.StartWindow,
		LatenessWindow:   p.LatenessWindow,
		HeartbeatTimeout: p.HeartbeatTimeout,
		Status:           StatusPending,
		Metadata:         p.Metadata,
		CreatedAt:        now,
	}

	if p.CronSchedule != "" {
		sched, err := ParseSchedule(p.CronSchedule, p.ScheduleTimezone)
		if err != nil {
			return nil, err
		}
		t.CronSchedule = &p.CronSchedule
		if p.ScheduleTimezone != "" {
			t.ScheduleTimezone = &p.ScheduleTimezone
		}
		next := sched.NextAfter(now)
		t.NextDueAt = &next
		if p.IsActive {
			t.Status = StatusHealthy
		}
	}

	return t, nil
}

// Schedule parses the task's cron schedule, or nil when it has none
func (t *Task) Schedule() (*Schedule, error) {
	if t.CronSchedule == nil {
		return nil, nil
	}
	tz := ""
	if t.ScheduleTimezone != nil {
		tz = *t.ScheduleTimezone
	}
	return ParseSchedule(*t.CronSchedule, tz)
}

// transition records a status change with its audit fields
func (t *Task) transition(to Status, now time.Time) {
	prev := t.Status
	t.PreviousStatus = &prev
	t.Status = to
	changedAt := now
	t.LastStatusChangeAt = &changedAt
}

// MarkDue moves a scheduled task into the check-in window. Legal from
// Pending, Healthy, Failing and Absent once next_due_at has passed.
func (t *Task) MarkDue(now time.Time) error {
	switch t.Status {
	case StatusPending, StatusHealthy, StatusFailing, StatusAbsent:
	default:
		return fmt.Errorf("%w: %s -> due", ErrIllegalTransition, t.Status)
	}
	if t.NextDueAt == nil {
		return fmt.Errorf("%w: due transition without next_due_at", ErrMissingSchedule)
	}
	if now.Before(*t.NextDueAt) {
		return fmt.Errorf("%w: task not due until %s", ErrIllegalTransition, t.NextDueAt)
	}
	t.transition(StatusDue, now)
	return nil
}

// MarkLate moves a Due task past its start window
func (t *Task) MarkLate(now time.Time) error {
	if t.Status != StatusDue {
		return fmt.Errorf("%w: %s -> late", ErrIllegalTransition, t.Status)
	}
	if t.NextDueAt == nil {
		return fmt.Errorf("%w: late transition without next_due_at", ErrMissingSchedule)
	}
	if now.Before(t.NextDueAt.Add(t.StartWindow)) {
		return fmt.Errorf("%w: start window still open", ErrIllegalTransition)
	}
	t.transition(StatusLate, now)
	return nil
}

// MarkAbsent moves a Late task past its lateness window. The caller
// opens the TaskRunningLate incident in the same transaction.
func (t *Task) MarkAbsent(now time.Time) error {
	if t.Status != StatusLate {
		return fmt.Errorf("%w: %s -> absent", ErrIllegalTransition, t.Status)
	}
	if t.NextDueAt == nil {
		return fmt.Errorf("%w: absent transition without next_due_at", ErrMissingSchedule)
	}
	if now.Before(t.NextDueAt.Add(t.StartWindow).Add(t.LatenessWindow)) {
		return fmt.Errorf("%w: lateness window still open", ErrIllegalTransition)
	}
	t.transition(StatusAbsent, now)
	return nil
}

// Start begins a run for the task. Legal from every status except
// Running and Archived. The returned run starts with a fresh heartbeat
// clock, and the task's next due instant advances past now.
func (t *Task) Start(now time.Time) (*Run, error) {
	switch t.Status {
	case StatusPending, StatusDue, StatusLate, StatusAbsent, StatusHealthy, StatusFailing:
	default:
		return nil, fmt.Errorf("%w: %s -> running", ErrIllegalTransition, t.Status)
	}

	if sched, err := t.Schedule(); err != nil {
		return nil, err
	} else if sched != nil {
		next := sched.NextAfter(now)
		t.NextDueAt = &next
	} else {
		t.NextDueAt = nil
	}

	t.transition(StatusRunning, now)

	heartbeat := now
	return &Run{
		OrganizationID:  t.OrganizationID,
		TaskID:          t.ID,
		StartedAt:       now,
		Status:          RunStatusRunning,
		LastHeartbeatAt: &heartbeat,
	}, nil
}

// Finish completes the task's current run. Success moves the task to
// Healthy; failure moves it to Failing and the caller opens a
// TaskFailed incident. Exit codes must match the outcome: success
// accepts codes <= 0, failure codes > 0.
func (t *Task) Finish(run *Run, success bool, exitCode *int, errorMessage *string, now time.Time) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> finished", ErrIllegalTransition, t.Status)
	}

	if success {
		if err := run.finish(RunStatusFinished, exitCode, nil, now); err != nil {
			return err
		}
		t.transition(StatusHealthy, now)
		return nil
	}

	if err := run.finish(RunStatusFailed, exitCode, errorMessage, now); err != nil {
		return err
	}
	t.transition(StatusFailing, now)
	return nil
}

// Abort cancels the task's current run without marking the task
// unhealthy.
func (t *Task) Abort(run *Run, now time.Time) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> aborted", ErrIllegalTransition, t.Status)
	}
	if err := run.finish(RunStatusAborted, nil, nil, now); err != nil {
		return err
	}
	t.transition(StatusHealthy, now)
	return nil
}

// MarkDead records a heartbeat-timeout death detected by the dead-run
// collector. The run becomes Dead, the task Failing; the caller opens
// the TaskHeartbeatTimedOut incident in the same transaction.
func (t *Task) MarkDead(run *Run, now time.Time) error {
	if t.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> failing (dead run)", ErrIllegalTransition, t.Status)
	}
	if err := run.markDead(now); err != nil {
		return err
	}
	t.transition(StatusFailing, now)
	return nil
}

// Archive retires the task. Archived is a terminal sink from any
// non-Running status; a Running task must finish or die first. The
// caller resolves any live incident in the same transaction.
func (t *Task) Archive(now time.Time) error {
	switch t.Status {
	case StatusRunning:
		return fmt.Errorf("%w: running task cannot be archived", ErrIllegalTransition)
	case StatusArchived:
		return fmt.Errorf("%w: task already archived", ErrIllegalTransition)
	}
	t.transition(StatusArchived, now)
	t.NextDueAt = nil
	return nil
}
