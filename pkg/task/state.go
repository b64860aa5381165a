package task

import (
	"fmt"
	"time"
)

// State is the closed set of in-memory task states. Variants that can
// only exist on the schedule (Due, Late, Absent) carry their due
// instant by value; the rest carry it optionally, matching tasks with
// and without a cron schedule.
type State interface {
	Status() Status
	nextDueAt() *time.Time
}

// Pending is a task waiting for its first due instant or external start
type Pending struct{ NextDueAt *time.Time }

// Due is a task inside its check-in window
type Due struct{ NextDueAt time.Time }

// Late is a task past its start window
type Late struct{ NextDueAt time.Time }

// Absent is a task that missed its lateness window
type Absent struct{ NextDueAt time.Time }

// Running is a task with an active run
type Running struct{ NextDueAt *time.Time }

// Healthy is a task whose last run finished successfully
type Healthy struct{ NextDueAt *time.Time }

// Failing is a task whose last run failed or died
type Failing struct{ NextDueAt *time.Time }

// Archived is a terminally retired task
type Archived struct{}

func (Pending) Status() Status  { return StatusPending }
func (Due) Status() Status      { return StatusDue }
func (Late) Status() Status     { return StatusLate }
func (Absent) Status() Status   { return StatusAbsent }
func (Running) Status() Status  { return StatusRunning }
func (Healthy) Status() Status  { return StatusHealthy }
func (Failing) Status() Status  { return StatusFailing }
func (Archived) Status() Status { return StatusArchived }

func (s Pending) nextDueAt() *time.Time { return s.NextDueAt }
func (s Due) nextDueAt() *time.Time     { return &s.NextDueAt }
func (s Late) nextDueAt() *time.Time    { return &s.NextDueAt }
func (s Absent) nextDueAt() *time.Time  { return &s.NextDueAt }
func (s Running) nextDueAt() *time.Time { return s.NextDueAt }
func (s Healthy) nextDueAt() *time.Time { return s.NextDueAt }
func (s Failing) nextDueAt() *time.Time { return s.NextDueAt }
func (Archived) nextDueAt() *time.Time  { return nil }

// StateOf reconstructs the in-memory state from a boundary record. The
// boundary status always matches the variant; a Due/Late/Absent record
// without next_due_at violates the schedule invariant.
func StateOf(t *Task) (State, error) {
	switch t.Status {
	case StatusPending:
		return Pending{NextDueAt: t.NextDueAt}, nil
	case StatusDue:
		if t.NextDueAt == nil {
			return nil, fmt.Errorf("%w: due task without next_due_at", ErrMissingSchedule)
		}
		return Due{NextDueAt: *t.NextDueAt}, nil
	case StatusLate:
		if t.NextDueAt == nil {
			return nil, fmt.Errorf("%w: late task without next_due_at", ErrMissingSchedule)
		}
		return Late{NextDueAt: *t.NextDueAt}, nil
	case StatusAbsent:
		if t.NextDueAt == nil {
			return nil, fmt.Errorf("%w: absent task without next_due_at", ErrMissingSchedule)
		}
		return Absent{NextDueAt: *t.NextDueAt}, nil
	case StatusRunning:
		return Running{NextDueAt: t.NextDueAt}, nil
	case StatusHealthy:
		return Healthy{NextDueAt: t.NextDueAt}, nil
	case StatusFailing:
		return Failing{NextDueAt: t.NextDueAt}, nil
	case StatusArchived:
		return Archived{}, nil
	default:
		return nil, fmt.Errorf("unknown task status %q", t.Status)
	}
}

// ApplyState projects a state variant onto the boundary record
func (t *Task) ApplyState(s State) {
	t.Status = s.Status()
	t.NextDueAt = s.nextDueAt()
}
