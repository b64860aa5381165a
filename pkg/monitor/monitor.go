package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/vigil/pkg/probe"
)

// Status represents the persisted monitor status discriminator
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusInactive   Status = "inactive"
	StatusUp         Status = "up"
	StatusRecovering Status = "recovering"
	StatusSuspicious Status = "suspicious"
	StatusDown       Status = "down"
	StatusArchived   Status = "archived"
)

// Monitor is the boundary record for an HTTP monitor: the flat,
// persistable projection of the in-memory state variants.
//
// Invariant: NextPingAt is non-nil iff the status is neither inactive
// nor archived. StatusCounter resets on every status transition.
type Monitor struct {
	OrganizationID uuid.UUID
	ID             uuid.UUID

	URL            string
	Interval       time.Duration
	RequestTimeout time.Duration
	RequestHeaders []probe.Header

	RecoveryConfirmationThreshold int
	DowntimeConfirmationThreshold int

	Status             Status
	StatusCounter      int
	LastStatusChangeAt time.Time
	NextPingAt         *time.Time

	LastHTTPCode *int
	ErrorKind    probe.ErrorKind

	Metadata map[string]string

	EmailNotificationEnabled bool
	SMSNotificationEnabled   bool
	PushNotificationEnabled  bool

	CreatedAt time.Time
}

// Active reports whether the monitor participates in the ping cycle
func (m *Monitor) Active() bool {
	return m.Status != StatusInactive && m.Status != StatusArchived
}

// Endpoint builds the probe target for this monitor
func (m *Monitor) Endpoint() probe.Endpoint {
	return probe.Endpoint{
		URL:     m.URL,
		Timeout: m.RequestTimeout,
		Headers: m.RequestHeaders,
	}
}

// Archive transitions the monitor to archived, clearing the ping
// schedule. Resolution of any live incident is the caller's concern and
// must happen in the same transaction.
func (m *Monitor) Archive(now time.Time) {
	m.Status = StatusArchived
	m.StatusCounter = 0
	m.LastStatusChangeAt = now
	m.NextPingAt = nil
}

// Pause transitions the monitor to inactive, clearing the ping schedule
func (m *Monitor) Pause(now time.Time) {
	m.Status = StatusInactive
	m.StatusCounter = 0
	m.LastStatusChangeAt = now
	m.NextPingAt = nil
}

// Resume reactivates an inactive monitor for immediate probing
func (m *Monitor) Resume(now time.Time) {
	m.Status = StatusUnknown
	m.StatusCounter = 0
	m.LastStatusChangeAt = now
	m.NextPingAt = &now
}
