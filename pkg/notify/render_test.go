package notify

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/probe"
)

func TestRenderMonitorCreation(t *testing.T) {
	code := 503
	n := incident.Notification{
		IncidentID: uuid.New(),
		Type:       incident.NotificationCreation,
		Payload: incident.Payload{
			CauseKind:  incident.CauseMonitorDown,
			ErrorKind:  probe.ErrorKindHTTPCodeError,
			HTTPCode:   &code,
			MonitorURL: "https://example.com/health",
		},
	}

	r := Render(n)
	assert.Contains(t, r.Subject, "https://example.com/health")
	assert.Contains(t, r.Body, "HTTP 503")
	assert.Contains(t, r.SMS, "https://example.com/health")
	assert.Equal(t, r.Subject, r.Push.Title)
}

func TestRenderEscalationMentionsLevel(t *testing.T) {
	n := incident.Notification{
		IncidentID:      uuid.New(),
		Type:            incident.NotificationCreation,
		EscalationLevel: 2,
		Payload: incident.Payload{
			CauseKind:  incident.CauseMonitorDown,
			ErrorKind:  probe.ErrorKindTimeout,
			MonitorURL: "https://example.com",
		},
	}

	r := Render(n)
	assert.Contains(t, r.Subject, "escalation 2")
	assert.Contains(t, r.Body, "escalation level 2")
}

func TestRenderTaskResolution(t *testing.T) {
	n := incident.Notification{
		IncidentID: uuid.New(),
		Type:       incident.NotificationResolution,
		Payload: incident.Payload{
			CauseKind:      incident.CauseTaskHeartbeatTimedOut,
			IncidentTaskID: "nightly-backup",
		},
	}

	r := Render(n)
	assert.Contains(t, r.Subject, "Resolved")
	assert.Contains(t, r.Subject, "task nightly-backup")
	assert.Contains(t, r.SMS, "resolved")
}
