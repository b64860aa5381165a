package incident

import (
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/vigil/pkg/probe"
)

// EventType tags a timeline event
type EventType string

const (
	EventCreation      EventType = "creation"
	EventNotification  EventType = "notification"
	EventResolution    EventType = "resolution"
	EventComment       EventType = "comment"
	EventAcknowledged  EventType = "acknowledged"
	EventConfirmation  EventType = "confirmation"
	EventMonitorPinged EventType = "monitor_pinged"
)

// Event is one append-only timeline row for an incident, keyed by
// (organization, incident, created_at). The payload shape depends on
// the event type and is persisted as an opaque structured blob.
type Event struct {
	OrganizationID uuid.UUID
	IncidentID     uuid.UUID
	CreatedAt      time.Time
	Type           EventType
	Payload        any
}

// CreationPayload records why the incident opened
type CreationPayload struct {
	Cause Cause `json:"cause"`
}

// NotificationPayload records one dispatcher fan-out with the
// per-channel success bitmap.
type NotificationPayload struct {
	NotificationType NotificationType `json:"notification_type"`
	EscalationLevel  int              `json:"escalation_level"`
	EmailSent        bool             `json:"email_sent"`
	SMSSent          bool             `json:"sms_sent"`
	PushSent         bool             `json:"push_sent"`
}

// AcknowledgedPayload records who acknowledged the incident
type AcknowledgedPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// CommentPayload records an operator comment
type CommentPayload struct {
	UserID  uuid.UUID `json:"user_id"`
	Message string    `json:"message"`
}

// MonitorPingedPayload records the probe that moved a monitor across
// the Down boundary.
type MonitorPingedPayload struct {
	ErrorKind probe.ErrorKind `json:"error_kind"`
	HTTPCode  *int            `json:"http_code,omitempty"`
}

// NewCreationEvent builds the timeline entry for Open
func NewCreationEvent(i *Incident) Event {
	return Event{
		OrganizationID: i.OrganizationID,
		IncidentID:     i.ID,
		CreatedAt:      i.CreatedAt,
		Type:           EventCreation,
		Payload:        CreationPayload{Cause: i.Cause},
	}
}

// NewResolutionEvent builds the timeline entry for Resolve
func NewResolutionEvent(i *Incident, now time.Time) Event {
	return Event{
		OrganizationID: i.OrganizationID,
		IncidentID:     i.ID,
		CreatedAt:      now,
		Type:           EventResolution,
	}
}

// NewConfirmationEvent builds the timeline entry for Confirm
func NewConfirmationEvent(i *Incident, now time.Time) Event {
	return Event{
		OrganizationID: i.OrganizationID,
		IncidentID:     i.ID,
		CreatedAt:      now,
		Type:           EventConfirmation,
	}
}

// NewAcknowledgedEvent builds the timeline entry for Acknowledge
func NewAcknowledgedEvent(i *Incident, userID uuid.UUID, now time.Time) Event {
	return Event{
		OrganizationID: i.OrganizationID,
		IncidentID:     i.ID,
		CreatedAt:      now,
		Type:           EventAcknowledged,
		Payload:        AcknowledgedPayload{UserID: userID},
	}
}

// NewCommentEvent builds the timeline entry for an operator comment
func NewCommentEvent(i *Incident, userID uuid.UUID, message string, now time.Time) Event {
	return Event{
		OrganizationID: i.OrganizationID,
		IncidentID:     i.ID,
		CreatedAt:      now,
		Type:           EventComment,
		Payload:        CommentPayload{UserID: userID, Message: message},
	}
}

// NewMonitorPingedEvent builds the timeline entry for a probe crossing
// the Down boundary.
func NewMonitorPingedEvent(i *Incident, errorKind probe.ErrorKind, httpCode *int, now time.Time) Event {
	return Event{
		OrganizationID: i.OrganizationID,
		IncidentID:     i.ID,
		CreatedAt:      now,
		Type:           EventMonitorPinged,
		Payload:        MonitorPingedPayload{ErrorKind: errorKind, HTTPCode: httpCode},
	}
}

// NewNotificationEvent builds the timeline entry for a dispatcher
// fan-out result.
func NewNotificationEvent(org, incidentID uuid.UUID, payload NotificationPayload, now time.Time) Event {
	return Event{
		OrganizationID: org,
		IncidentID:     incidentID,
		CreatedAt:      now,
		Type:           EventNotification,
		Payload:        payload,
	}
}
