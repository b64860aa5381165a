package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vigil/pkg/config"
	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/task"
)

func collectorConfig() config.CollectorConfig {
	return config.CollectorConfig{
		Interval:        time.Second,
		ConcurrentTasks: 1,
		SelectLimit:     100,
	}
}

func newCronTask(t *testing.T, created time.Time) *task.Task {
	t.Helper()
	tk, err := task.Create(task.NewTaskParams{
		OrganizationID:   uuid.New(),
		ID:               task.InternalID(uuid.New()),
		CronSchedule:     "*/15 * * * *",
		StartWindow:      time.Minute,
		LatenessWindow:   2 * time.Minute,
		HeartbeatTimeout: 30 * time.Second,
	}, created)
	require.NoError(t, err)
	return tk
}

func TestCollectorsWalkDueLateAbsent(t *testing.T) {
	created := time.Date(2025, 3, 1, 14, 14, 50, 0, time.UTC)
	fs := newFakeStore()

	tk := newCronTask(t, created)
	tk.EmailNotificationEnabled = true
	fs.tx.tasks = append(fs.tx.tasks, tk)

	require.Equal(t, task.StatusPending, tk.Status)
	require.NotNil(t, tk.NextDueAt)
	dueAt := *tk.NextDueAt
	require.Equal(t, time.Date(2025, 3, 1, 14, 15, 0, 0, time.UTC), dueAt)

	due := NewDueCollector(fs, collectorConfig())
	late := NewLateCollector(fs, collectorConfig())
	absent := NewAbsentCollector(fs, collectorConfig())

	// One second before the due instant nothing is claimed.
	due.now = func() time.Time { return dueAt.Add(-time.Second) }
	claimed, err := due.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, claimed)

	due.now = func() time.Time { return dueAt }
	claimed, err = due.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, claimed)
	assert.Equal(t, task.StatusDue, tk.Status)

	// Still inside the start window.
	late.now = func() time.Time { return dueAt.Add(59 * time.Second) }
	claimed, err = late.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, claimed)

	late.now = func() time.Time { return dueAt.Add(time.Minute) }
	claimed, err = late.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, claimed)
	assert.Equal(t, task.StatusLate, tk.Status)

	absent.now = func() time.Time { return dueAt.Add(3 * time.Minute) }
	claimed, err = absent.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, claimed)
	assert.Equal(t, task.StatusAbsent, tk.Status)

	// Going absent opened the running-late incident with its
	// notification rows.
	require.Len(t, fs.tx.incidents, 1)
	inc := fs.tx.incidents[0]
	assert.Equal(t, incident.CauseTaskRunningLate, inc.Cause.Kind)
	assert.Equal(t, incident.TaskSource(tk.ID.String()), inc.Source)
	require.NotEmpty(t, fs.tx.notifications)
	assert.Equal(t, tk.ID.String(), fs.tx.notifications[0].Payload.IncidentTaskID)
}

func TestAbsentCollectorDoesNotDuplicateIncidents(t *testing.T) {
	created := time.Date(2025, 3, 1, 14, 14, 50, 0, time.UTC)
	fs := newFakeStore()

	tk := newCronTask(t, created)
	fs.tx.tasks = append(fs.tx.tasks, tk)
	dueAt := *tk.NextDueAt

	require.NoError(t, tk.MarkDue(dueAt))
	require.NoError(t, tk.MarkLate(dueAt.Add(time.Minute)))

	// A live incident for the task already exists.
	existing := incident.New(tk.OrganizationID, incident.TaskSource(tk.ID.String()),
		incident.Cause{Kind: incident.CauseTaskRunningLate}, incident.PriorityMedium, false, dueAt)
	fs.tx.incidents = append(fs.tx.incidents, existing)

	absent := NewAbsentCollector(fs, collectorConfig())
	absent.now = func() time.Time { return dueAt.Add(3 * time.Minute) }
	claimed, err := absent.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, claimed)

	assert.Len(t, fs.tx.incidents, 1)
	assert.Empty(t, fs.tx.notifications)
}

func TestDeadRunCollector(t *testing.T) {
	created := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	fs := newFakeStore()

	tk := newCronTask(t, created)
	tk.SMSNotificationEnabled = true
	started := created.Add(time.Minute)
	run, err := tk.Start(started)
	require.NoError(t, err)
	fs.tx.tasks = append(fs.tx.tasks, tk)
	fs.tx.runs = append(fs.tx.runs, run)

	c := NewDeadRunCollector(fs, collectorConfig())

	// The heartbeat window is still open.
	c.now = func() time.Time { return started.Add(29 * time.Second) }
	claimed, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, claimed)
	assert.Equal(t, task.StatusRunning, tk.Status)

	c.now = func() time.Time { return started.Add(31 * time.Second) }
	claimed, err = c.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, claimed)

	assert.Equal(t, task.RunStatusDead, run.Status)
	assert.Equal(t, task.StatusFailing, tk.Status)

	require.Len(t, fs.tx.incidents, 1)
	assert.Equal(t, incident.CauseTaskHeartbeatTimedOut, fs.tx.incidents[0].Cause.Kind)
	require.NotEmpty(t, fs.tx.notifications)
	assert.True(t, fs.tx.notifications[0].Channels.SMS)
	assert.Equal(t, tk.ID.String(), fs.tx.notifications[0].Payload.IncidentTaskID)
}

func TestDeadRunCollectorSkipsMismatchedTask(t *testing.T) {
	created := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	fs := newFakeStore()
	started := created.Add(time.Minute)

	good := newCronTask(t, created)
	goodRun, err := good.Start(started)
	require.NoError(t, err)

	// A running run whose task is no longer Running. MarkDead rejects
	// the pair; the collector must log it and keep going.
	bad := newCronTask(t, created)
	badRun, err := bad.Start(started)
	require.NoError(t, err)
	bad.Status = task.StatusHealthy

	fs.tx.tasks = append(fs.tx.tasks, bad, good)
	fs.tx.runs = append(fs.tx.runs, badRun, goodRun)

	c := NewDeadRunCollector(fs, collectorConfig())
	c.now = func() time.Time { return started.Add(31 * time.Second) }

	claimed, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)

	assert.Equal(t, task.RunStatusRunning, badRun.Status, "mismatched run untouched")
	assert.Equal(t, task.StatusHealthy, bad.Status)

	assert.Equal(t, task.RunStatusDead, goodRun.Status)
	assert.Equal(t, task.StatusFailing, good.Status)
	require.Len(t, fs.tx.incidents, 1)
	assert.Equal(t, incident.TaskSource(good.ID.String()), fs.tx.incidents[0].Source)
}

func TestPartitionMaintainerCoversTwoMonths(t *testing.T) {
	fs := newFakeStore()
	p := NewPartitionMaintainer(fs)
	p.now = func() time.Time { return time.Date(2025, 12, 15, 3, 0, 0, 0, time.UTC) }

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, fs.tx.partitions, 2)
	assert.Equal(t, time.December, fs.tx.partitions[0].Month())
	assert.Equal(t, time.January, fs.tx.partitions[1].Month())
}
