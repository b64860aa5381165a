package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/monitor"
	"github.com/cuemby/vigil/pkg/task"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// Contacts are the delivery endpoints registered for an organization,
// aggregated across its contact rows.
type Contacts struct {
	Emails           []string
	PhoneNumbers     []string
	PushDeviceTokens []string
}

// Tx is the transactional surface the workers operate on. Every method
// runs inside the enclosing transaction; the Select* methods lock the
// returned rows with FOR UPDATE SKIP LOCKED so that concurrent worker
// replicas never pick the same row twice.
type Tx interface {
	// SelectDueMonitors returns active monitors whose next ping instant
	// has passed, row-locked, oldest schedule first.
	SelectDueMonitors(ctx context.Context, now time.Time, limit int) ([]*monitor.Monitor, error)
	InsertMonitor(ctx context.Context, m *monitor.Monitor) error
	UpdateMonitor(ctx context.Context, m *monitor.Monitor) error

	// SelectDueTasks returns scheduled tasks whose due instant has
	// passed and which await a check-in, row-locked.
	SelectDueTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error)
	// SelectLateTasks returns Due tasks past their start window, row-locked.
	SelectLateTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error)
	// SelectAbsentTasks returns Late tasks past their lateness window,
	// row-locked.
	SelectAbsentTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error)
	GetTask(ctx context.Context, org uuid.UUID, id task.ID) (*task.Task, error)
	InsertTask(ctx context.Context, t *task.Task) error
	UpdateTask(ctx context.Context, t *task.Task) error

	// SelectExpiredRuns returns running runs whose heartbeat window has
	// lapsed, row-locked.
	SelectExpiredRuns(ctx context.Context, now time.Time, limit int) ([]*task.Run, error)
	InsertRun(ctx context.Context, r *task.Run) error
	UpdateRun(ctx context.Context, r *task.Run) error

	// LiveIncidentBySource returns the single non-resolved incident for
	// a source, locked, or ErrNotFound.
	LiveIncidentBySource(ctx context.Context, org uuid.UUID, source incident.Source) (*incident.Incident, error)
	GetIncident(ctx context.Context, org, id uuid.UUID) (*incident.Incident, error)
	InsertIncident(ctx context.Context, i *incident.Incident) error
	UpdateIncident(ctx context.Context, i *incident.Incident) error
	AppendEvent(ctx context.Context, e incident.Event) error

	InsertNotifications(ctx context.Context, rows []incident.Notification) error
	// SelectDueNotifications returns queue rows whose due instant has
	// passed, row-locked.
	SelectDueNotifications(ctx context.Context, now time.Time, limit int) ([]*incident.Notification, error)
	DeleteNotification(ctx context.Context, n *incident.Notification) error
	// CancelNotifications deletes every pending queue row for an
	// incident in one statement.
	CancelNotifications(ctx context.Context, org, incidentID uuid.UUID) error

	OrganizationContacts(ctx context.Context, org uuid.UUID) (Contacts, error)

	// EnsureTimelinePartition creates the timeline partition covering
	// the given month if it does not exist yet.
	EnsureTimelinePartition(ctx context.Context, month time.Time) error
}

// Store opens transactions over the backing database
type Store interface {
	// InTx runs fn inside one transaction, committing on nil and
	// rolling back on error or panic.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
