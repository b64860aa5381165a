package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/log"
	"github.com/cuemby/vigil/pkg/monitor"
	"github.com/cuemby/vigil/pkg/store"
	"github.com/cuemby/vigil/pkg/task"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
	os.Exit(m.Run())
}

// fakeStore runs transactions against one shared in-memory fakeTx.
// Row claims mimic FOR UPDATE SKIP LOCKED: a row claimed by an open
// transaction is invisible to concurrent selects and released when the
// transaction ends.
type fakeStore struct {
	tx *fakeTx
}

func newFakeStore() *fakeStore {
	return &fakeStore{tx: newFakeTx()}
}

func (s *fakeStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	claims := &claimSet{tx: s.tx}
	err := fn(&fakeTxView{tx: s.tx, claims: claims})
	claims.release()
	return err
}

func (s *fakeStore) Close() {}

type fakeTx struct {
	mu sync.Mutex

	monitors      []*monitor.Monitor
	tasks         []*task.Task
	runs          []*task.Run
	incidents     []*incident.Incident
	events        []incident.Event
	notifications []incident.Notification
	contacts      map[uuid.UUID]store.Contacts
	partitions    []time.Time

	claimed map[string]bool
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		contacts: make(map[uuid.UUID]store.Contacts),
		claimed:  make(map[string]bool),
	}
}

// claimSet tracks the rows one transaction has locked
type claimSet struct {
	tx   *fakeTx
	keys []string
}

// claim must be called with tx.mu held
func (c *claimSet) claim(key string) bool {
	if c.tx.claimed[key] {
		return false
	}
	c.tx.claimed[key] = true
	c.keys = append(c.keys, key)
	return true
}

func (c *claimSet) release() {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	for _, key := range c.keys {
		delete(c.tx.claimed, key)
	}
	c.keys = nil
}

// fakeTxView is the store.Tx handed to one transaction
type fakeTxView struct {
	tx     *fakeTx
	claims *claimSet
}

func (v *fakeTxView) SelectDueMonitors(ctx context.Context, now time.Time, limit int) ([]*monitor.Monitor, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()

	var out []*monitor.Monitor
	for _, m := range v.tx.monitors {
		if len(out) >= limit {
			break
		}
		if !m.Active() || m.NextPingAt == nil || m.NextPingAt.After(now) {
			continue
		}
		if !v.claims.claim("monitor/" + m.ID.String()) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (v *fakeTxView) InsertMonitor(ctx context.Context, m *monitor.Monitor) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	v.tx.monitors = append(v.tx.monitors, m)
	return nil
}

func (v *fakeTxView) UpdateMonitor(ctx context.Context, m *monitor.Monitor) error {
	return nil // monitors are shared pointers; mutation is the update
}

func (v *fakeTxView) SelectDueTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	return v.selectTasks(now, limit, func(t *task.Task) bool {
		switch t.Status {
		case task.StatusPending, task.StatusHealthy, task.StatusFailing, task.StatusAbsent:
		default:
			return false
		}
		return t.NextDueAt != nil && !now.Before(*t.NextDueAt)
	})
}

func (v *fakeTxView) SelectLateTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	return v.selectTasks(now, limit, func(t *task.Task) bool {
		return t.Status == task.StatusDue && t.NextDueAt != nil &&
			!now.Before(t.NextDueAt.Add(t.StartWindow))
	})
}

func (v *fakeTxView) SelectAbsentTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	return v.selectTasks(now, limit, func(t *task.Task) bool {
		return t.Status == task.StatusLate && t.NextDueAt != nil &&
			!now.Before(t.NextDueAt.Add(t.StartWindow).Add(t.LatenessWindow))
	})
}

func (v *fakeTxView) selectTasks(now time.Time, limit int, match func(*task.Task) bool) ([]*task.Task, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()

	var out []*task.Task
	for _, t := range v.tx.tasks {
		if len(out) >= limit {
			break
		}
		if !match(t) {
			continue
		}
		if !v.claims.claim("task/" + t.ID.String()) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (v *fakeTxView) GetTask(ctx context.Context, org uuid.UUID, id task.ID) (*task.Task, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	for _, t := range v.tx.tasks {
		if t.OrganizationID == org && t.ID.String() == id.String() && t.Status != task.StatusArchived {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *fakeTxView) InsertTask(ctx context.Context, t *task.Task) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	v.tx.tasks = append(v.tx.tasks, t)
	return nil
}

func (v *fakeTxView) UpdateTask(ctx context.Context, t *task.Task) error {
	return nil
}

func (v *fakeTxView) SelectExpiredRuns(ctx context.Context, now time.Time, limit int) ([]*task.Run, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()

	var out []*task.Run
	for _, r := range v.tx.runs {
		if len(out) >= limit {
			break
		}
		t := v.findTask(r.OrganizationID, r.TaskID)
		if t == nil || !r.HeartbeatExpired(t.HeartbeatTimeout, now) {
			continue
		}
		key := fmt.Sprintf("run/%s/%s", r.TaskID, r.StartedAt.Format(time.RFC3339Nano))
		if !v.claims.claim(key) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (v *fakeTxView) findTask(org uuid.UUID, id task.ID) *task.Task {
	for _, t := range v.tx.tasks {
		if t.OrganizationID == org && t.ID.String() == id.String() && t.Status != task.StatusArchived {
			return t
		}
	}
	return nil
}

func (v *fakeTxView) InsertRun(ctx context.Context, r *task.Run) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	v.tx.runs = append(v.tx.runs, r)
	return nil
}

func (v *fakeTxView) UpdateRun(ctx context.Context, r *task.Run) error {
	return nil
}

func (v *fakeTxView) LiveIncidentBySource(ctx context.Context, org uuid.UUID, source incident.Source) (*incident.Incident, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	for _, i := range v.tx.incidents {
		if i.OrganizationID == org && i.Source == source && i.Live() {
			return i, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *fakeTxView) GetIncident(ctx context.Context, org, id uuid.UUID) (*incident.Incident, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	for _, i := range v.tx.incidents {
		if i.OrganizationID == org && i.ID == id {
			return i, nil
		}
	}
	return nil, store.ErrNotFound
}

func (v *fakeTxView) InsertIncident(ctx context.Context, i *incident.Incident) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	v.tx.incidents = append(v.tx.incidents, i)
	return nil
}

func (v *fakeTxView) UpdateIncident(ctx context.Context, i *incident.Incident) error {
	return nil
}

func (v *fakeTxView) AppendEvent(ctx context.Context, e incident.Event) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	v.tx.events = append(v.tx.events, e)
	return nil
}

func (v *fakeTxView) InsertNotifications(ctx context.Context, rows []incident.Notification) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	v.tx.notifications = append(v.tx.notifications, rows...)
	return nil
}

func (v *fakeTxView) SelectDueNotifications(ctx context.Context, now time.Time, limit int) ([]*incident.Notification, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()

	var out []*incident.Notification
	for i := range v.tx.notifications {
		if len(out) >= limit {
			break
		}
		// Copy: DeleteNotification compacts the backing slice.
		n := v.tx.notifications[i]
		if n.DueAt.After(now) {
			continue
		}
		if !v.claims.claim(notificationKey(&n)) {
			continue
		}
		out = append(out, &n)
	}
	return out, nil
}

func notificationKey(n *incident.Notification) string {
	return fmt.Sprintf("notification/%s/%d/%s", n.IncidentID, n.EscalationLevel, n.Type)
}

func (v *fakeTxView) DeleteNotification(ctx context.Context, n *incident.Notification) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()

	kept := v.tx.notifications[:0]
	for _, row := range v.tx.notifications {
		if row.IncidentID == n.IncidentID && row.EscalationLevel == n.EscalationLevel && row.Type == n.Type {
			continue
		}
		kept = append(kept, row)
	}
	v.tx.notifications = kept
	return nil
}

func (v *fakeTxView) CancelNotifications(ctx context.Context, org, incidentID uuid.UUID) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()

	kept := v.tx.notifications[:0]
	for _, row := range v.tx.notifications {
		if row.OrganizationID == org && row.IncidentID == incidentID {
			continue
		}
		kept = append(kept, row)
	}
	v.tx.notifications = kept
	return nil
}

func (v *fakeTxView) OrganizationContacts(ctx context.Context, org uuid.UUID) (store.Contacts, error) {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	return v.tx.contacts[org], nil
}

func (v *fakeTxView) EnsureTimelinePartition(ctx context.Context, month time.Time) error {
	v.tx.mu.Lock()
	defer v.tx.mu.Unlock()
	v.tx.partitions = append(v.tx.partitions, month)
	return nil
}
