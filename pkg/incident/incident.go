package incident

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/vigil/pkg/probe"
)

var (
	// ErrAlreadyResolved is returned when resolving a resolved incident
	ErrAlreadyResolved = errors.New("incident already resolved")

	// ErrNotConfirmable is returned when confirming an incident that is
	// not waiting for confirmation.
	ErrNotConfirmable = errors.New("incident is not awaiting confirmation")
)

// Status represents the incident lifecycle status
type Status string

const (
	StatusToBeConfirmed Status = "to_be_confirmed"
	StatusOngoing       Status = "ongoing"
	StatusResolved      Status = "resolved"
)

// Priority orders incidents for operators
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// SourceKind tags the origin of an incident
type SourceKind string

const (
	SourceKindHTTPMonitor SourceKind = "http_monitor"
	SourceKindTask        SourceKind = "task"
)

// Source is the tagged origin of an incident. ID is the monitor UUID or
// the task id in its persisted string form.
type Source struct {
	Kind SourceKind
	ID   string
}

// MonitorSource tags a monitor as incident origin
func MonitorSource(monitorID uuid.UUID) Source {
	return Source{Kind: SourceKindHTTPMonitor, ID: monitorID.String()}
}

// TaskSource tags a task as incident origin
func TaskSource(taskID string) Source {
	return Source{Kind: SourceKindTask, ID: taskID}
}

// CauseKind tags why an incident was opened
type CauseKind string

const (
	CauseMonitorDown           CauseKind = "http_monitor_down"
	CauseTaskRunningLate       CauseKind = "task_running_late"
	CauseTaskFailed            CauseKind = "task_failed"
	CauseTaskHeartbeatTimedOut CauseKind = "task_heartbeat_timed_out"
)

// Cause is the tagged union describing what went wrong. ErrorKind and
// HTTPCode are only meaningful for monitor causes.
type Cause struct {
	Kind      CauseKind       `json:"kind"`
	ErrorKind probe.ErrorKind `json:"error_kind,omitempty"`
	HTTPCode  *int            `json:"http_code,omitempty"`
}

// MonitorDownCause builds the cause for a down monitor
func MonitorDownCause(errorKind probe.ErrorKind, httpCode *int) Cause {
	return Cause{Kind: CauseMonitorDown, ErrorKind: errorKind, HTTPCode: httpCode}
}

// Incident is one opened deviation for a monitor or task.
//
// Invariant: at most one incident per (organization, source) is
// non-resolved at any time; the opening transaction enforces it under
// the source row lock.
type Incident struct {
	OrganizationID uuid.UUID
	ID             uuid.UUID

	Cause    Cause
	Status   Status
	Priority Priority
	Source   Source

	CreatedAt  time.Time
	ResolvedAt *time.Time

	AcknowledgedBy []uuid.UUID
}

// New opens an incident in memory. toBeConfirmed incidents wait for a
// manual or policy confirmation before escalating.
func New(org uuid.UUID, source Source, cause Cause, priority Priority, toBeConfirmed bool, now time.Time) *Incident {
	status := StatusOngoing
	if toBeConfirmed {
		status = StatusToBeConfirmed
	}
	if priority == "" {
		priority = PriorityMedium
	}
	return &Incident{
		OrganizationID: org,
		ID:             uuid.New(),
		Cause:          cause,
		Status:         status,
		Priority:       priority,
		Source:         source,
		CreatedAt:      now,
	}
}

// Live reports whether the incident is not yet resolved
func (i *Incident) Live() bool {
	return i.Status != StatusResolved
}

// Confirm transitions a to-be-confirmed incident to ongoing
func (i *Incident) Confirm() error {
	if i.Status != StatusToBeConfirmed {
		return ErrNotConfirmable
	}
	i.Status = StatusOngoing
	return nil
}

// Acknowledge records that a user saw the incident. It is idempotent:
// the second call by the same user reports false and changes nothing,
// and the caller skips the timeline event and notification cancel.
func (i *Incident) Acknowledge(userID uuid.UUID) bool {
	for _, id := range i.AcknowledgedBy {
		if id == userID {
			return false
		}
	}
	i.AcknowledgedBy = append(i.AcknowledgedBy, userID)
	return true
}

// Resolve closes the incident
func (i *Incident) Resolve(now time.Time) error {
	if i.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	i.Status = StatusResolved
	resolved := now
	i.ResolvedAt = &resolved
	return nil
}
