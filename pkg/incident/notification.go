package incident

import (
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/vigil/pkg/probe"
)

// NotificationType tags a notification queue entry
type NotificationType string

const (
	NotificationCreation     NotificationType = "incident_creation"
	NotificationConfirmation NotificationType = "incident_confirmation"
	NotificationResolution   NotificationType = "incident_resolution"
)

// ChannelFlags selects delivery channels, copied from the source
// monitor or task at enqueue time.
type ChannelFlags struct {
	Email bool
	SMS   bool
	Push  bool
}

// Payload carries everything a channel renderer needs, so the
// dispatcher never reads the incident row back. Task incidents carry
// the task id; monitor incidents the monitor URL.
type Payload struct {
	CauseKind      CauseKind       `json:"cause_kind"`
	ErrorKind      probe.ErrorKind `json:"error_kind,omitempty"`
	HTTPCode       *int            `json:"http_code,omitempty"`
	MonitorURL     string          `json:"monitor_url,omitempty"`
	IncidentTaskID string          `json:"incident_task_id,omitempty"`
}

// Notification is one durable queue entry, keyed by (organization,
// incident, escalation_level, type). The row lives until its
// transactional drain; acknowledge and resolve cancel all rows for the
// incident en masse.
type Notification struct {
	OrganizationID  uuid.UUID
	IncidentID      uuid.UUID
	EscalationLevel int
	Type            NotificationType

	DueAt    time.Time
	Channels ChannelFlags
	Payload  Payload
}

// NewNotification builds a level-zero entry due immediately
func NewNotification(i *Incident, typ NotificationType, flags ChannelFlags, payload Payload, now time.Time) Notification {
	return Notification{
		OrganizationID: i.OrganizationID,
		IncidentID:     i.ID,
		Type:           typ,
		DueAt:          now,
		Channels:       flags,
		Payload:        payload,
	}
}

// EscalationRows builds the follow-up entries for an unacknowledged
// incident: one row per offset, due later, at increasing escalation
// levels. Acknowledge or resolve deletes them before they fire.
func EscalationRows(i *Incident, typ NotificationType, flags ChannelFlags, payload Payload, now time.Time, offsets []time.Duration) []Notification {
	rows := make([]Notification, 0, len(offsets))
	for level, offset := range offsets {
		rows = append(rows, Notification{
			OrganizationID:  i.OrganizationID,
			IncidentID:      i.ID,
			EscalationLevel: level + 1,
			Type:            typ,
			DueAt:           now.Add(offset),
			Channels:        flags,
			Payload:         payload,
		})
	}
	return rows
}
