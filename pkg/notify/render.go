package notify

import (
	"fmt"

	"github.com/cuemby/vigil/pkg/incident"
)

// Rendered is the per-channel text for one notification row
type Rendered struct {
	Subject string
	Body    string
	SMS     string
	Push    PushMessage
}

// Render builds the channel messages for a notification row from its
// payload alone; the dispatcher never reads the incident back.
func Render(n incident.Notification) Rendered {
	subject := subjectFor(n)
	body := bodyFor(n)
	sms := smsFor(n)

	return Rendered{
		Subject: subject,
		Body:    body,
		SMS:     sms,
		Push:    PushMessage{Title: subject, Body: sms},
	}
}

func subjectFor(n incident.Notification) string {
	target := targetOf(n.Payload)
	switch n.Type {
	case incident.NotificationCreation:
		if n.EscalationLevel > 0 {
			return fmt.Sprintf("[vigil] STILL DOWN: %s (escalation %d)", target, n.EscalationLevel)
		}
		return fmt.Sprintf("[vigil] Incident: %s", target)
	case incident.NotificationConfirmation:
		return fmt.Sprintf("[vigil] Incident confirmed: %s", target)
	case incident.NotificationResolution:
		return fmt.Sprintf("[vigil] Resolved: %s", target)
	default:
		return fmt.Sprintf("[vigil] %s", target)
	}
}

func bodyFor(n incident.Notification) string {
	p := n.Payload
	body := fmt.Sprintf("Incident %s for %s.\n\nCause: %s", n.IncidentID, targetOf(p), causeText(p))
	if n.Type == incident.NotificationResolution {
		body = fmt.Sprintf("Incident %s for %s is resolved.", n.IncidentID, targetOf(p))
	}
	if n.EscalationLevel > 0 {
		body += fmt.Sprintf("\n\nThis is escalation level %d. Acknowledge the incident to stop further notifications.", n.EscalationLevel)
	}
	return body
}

func smsFor(n incident.Notification) string {
	switch n.Type {
	case incident.NotificationResolution:
		return fmt.Sprintf("vigil: %s resolved", targetOf(n.Payload))
	default:
		return fmt.Sprintf("vigil: %s: %s", targetOf(n.Payload), causeText(n.Payload))
	}
}

// targetOf names what the incident is about: the monitor URL or task id
func targetOf(p incident.Payload) string {
	if p.MonitorURL != "" {
		return p.MonitorURL
	}
	if p.IncidentTaskID != "" {
		return "task " + p.IncidentTaskID
	}
	return "unknown source"
}

func causeText(p incident.Payload) string {
	switch p.CauseKind {
	case incident.CauseMonitorDown:
		if p.HTTPCode != nil {
			return fmt.Sprintf("endpoint down (%s, HTTP %d)", p.ErrorKind, *p.HTTPCode)
		}
		return fmt.Sprintf("endpoint down (%s)", p.ErrorKind)
	case incident.CauseTaskRunningLate:
		return "task missed its schedule"
	case incident.CauseTaskFailed:
		return "task run failed"
	case incident.CauseTaskHeartbeatTimedOut:
		return "task stopped sending heartbeats"
	default:
		return string(p.CauseKind)
	}
}
