package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/vigil/pkg/config"
	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/incident/lifecycle"
	"github.com/cuemby/vigil/pkg/log"
	"github.com/cuemby/vigil/pkg/metrics"
	"github.com/cuemby/vigil/pkg/store"
	"github.com/cuemby/vigil/pkg/task"
)

// DueCollector moves scheduled tasks whose due instant has passed into
// the check-in window.
type DueCollector struct {
	store store.Store
	cfg   config.CollectorConfig
	now   func() time.Time
}

// NewDueCollector creates the due collector worker
func NewDueCollector(st store.Store, cfg config.CollectorConfig) *DueCollector {
	return &DueCollector{store: st, cfg: cfg, now: time.Now}
}

func (c *DueCollector) Name() string            { return "collect-due" }
func (c *DueCollector) Interval() time.Duration { return c.cfg.Interval }
func (c *DueCollector) Replicas() int           { return c.cfg.ConcurrentTasks }

func (c *DueCollector) RunOnce(ctx context.Context) (int, error) {
	now := c.now()
	return collectTasks(ctx, c.store, c.Name(), func(tx store.Tx) ([]*task.Task, error) {
		return tx.SelectDueTasks(ctx, now, c.cfg.SelectLimit)
	}, func(t *task.Task) error {
		return t.MarkDue(now)
	})
}

// LateCollector moves Due tasks past their start window to Late
type LateCollector struct {
	store store.Store
	cfg   config.CollectorConfig
	now   func() time.Time
}

// NewLateCollector creates the late collector worker
func NewLateCollector(st store.Store, cfg config.CollectorConfig) *LateCollector {
	return &LateCollector{store: st, cfg: cfg, now: time.Now}
}

func (c *LateCollector) Name() string            { return "collect-late" }
func (c *LateCollector) Interval() time.Duration { return c.cfg.Interval }
func (c *LateCollector) Replicas() int           { return c.cfg.ConcurrentTasks }

func (c *LateCollector) RunOnce(ctx context.Context) (int, error) {
	now := c.now()
	return collectTasks(ctx, c.store, c.Name(), func(tx store.Tx) ([]*task.Task, error) {
		return tx.SelectLateTasks(ctx, now, c.cfg.SelectLimit)
	}, func(t *task.Task) error {
		return t.MarkLate(now)
	})
}

// collectTasks is the shared claim-transition-update cycle for the
// plain collectors. A task rejecting its transition is logged and left
// untouched; it must not fail the rest of the batch.
func collectTasks(ctx context.Context, st store.Store, name string, sel func(store.Tx) ([]*task.Task, error), mark func(*task.Task) error) (int, error) {
	logger := log.WithWorker(name)
	var claimed int
	err := st.InTx(ctx, func(tx store.Tx) error {
		tasks, err := sel(tx)
		if err != nil {
			return err
		}
		claimed = len(tasks)

		for _, t := range tasks {
			from := t.Status
			if err := mark(t); err != nil {
				logger.Error().Err(err).Str("task_id", t.ID.String()).Msg("Skipping task with illegal transition")
				continue
			}
			metrics.TaskTransitionsTotal.WithLabelValues(string(from), string(t.Status)).Inc()
			if err := tx.UpdateTask(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// AbsentCollector moves Late tasks past their lateness window to
// Absent and opens the running-late incident.
type AbsentCollector struct {
	store store.Store
	cfg   config.CollectorConfig
	now   func() time.Time
}

// NewAbsentCollector creates the absent collector worker
func NewAbsentCollector(st store.Store, cfg config.CollectorConfig) *AbsentCollector {
	return &AbsentCollector{store: st, cfg: cfg, now: time.Now}
}

func (c *AbsentCollector) Name() string            { return "collect-absent" }
func (c *AbsentCollector) Interval() time.Duration { return c.cfg.Interval }
func (c *AbsentCollector) Replicas() int           { return c.cfg.ConcurrentTasks }

func (c *AbsentCollector) RunOnce(ctx context.Context) (int, error) {
	now := c.now()
	var claimed int

	err := c.store.InTx(ctx, func(tx store.Tx) error {
		tasks, err := tx.SelectAbsentTasks(ctx, now, c.cfg.SelectLimit)
		if err != nil {
			return err
		}
		claimed = len(tasks)

		logger := log.WithWorker(c.Name())
		for _, t := range tasks {
			from := t.Status
			if err := t.MarkAbsent(now); err != nil {
				logger.Error().Err(err).Str("task_id", t.ID.String()).Msg("Skipping task with illegal transition")
				continue
			}
			metrics.TaskTransitionsTotal.WithLabelValues(string(from), string(t.Status)).Inc()
			if err := tx.UpdateTask(ctx, t); err != nil {
				return err
			}

			if _, err := lifecycle.Open(ctx, tx, lifecycle.Params{
				OrganizationID: t.OrganizationID,
				Source:         incident.TaskSource(t.ID.String()),
				Cause:          incident.Cause{Kind: incident.CauseTaskRunningLate},
				Channels:       taskChannelFlags(t),
				Payload:        taskPayload(t, incident.CauseTaskRunningLate),
			}, now); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// DeadRunCollector declares runs dead after a missed heartbeat window,
// fails their task and opens the heartbeat-timeout incident.
type DeadRunCollector struct {
	store store.Store
	cfg   config.CollectorConfig
	now   func() time.Time
}

// NewDeadRunCollector creates the dead-run collector worker
func NewDeadRunCollector(st store.Store, cfg config.CollectorConfig) *DeadRunCollector {
	return &DeadRunCollector{store: st, cfg: cfg, now: time.Now}
}

func (c *DeadRunCollector) Name() string            { return "collect-dead-runs" }
func (c *DeadRunCollector) Interval() time.Duration { return c.cfg.Interval }
func (c *DeadRunCollector) Replicas() int           { return c.cfg.ConcurrentTasks }

func (c *DeadRunCollector) RunOnce(ctx context.Context) (int, error) {
	now := c.now()
	var claimed int

	err := c.store.InTx(ctx, func(tx store.Tx) error {
		runs, err := tx.SelectExpiredRuns(ctx, now, c.cfg.SelectLimit)
		if err != nil {
			return err
		}
		claimed = len(runs)

		logger := log.WithWorker(c.Name())
		for _, r := range runs {
			t, err := tx.GetTask(ctx, r.OrganizationID, r.TaskID)
			if errors.Is(err, store.ErrNotFound) {
				// Task archived between the run select and here.
				continue
			}
			if err != nil {
				return err
			}

			from := t.Status
			if err := t.MarkDead(r, now); err != nil {
				logger.Error().Err(err).Str("task_id", t.ID.String()).Msg("Skipping run with illegal transition")
				continue
			}
			metrics.TaskTransitionsTotal.WithLabelValues(string(from), string(t.Status)).Inc()
			metrics.DeadTaskRunsTotal.Inc()
			logger.Warn().
				Str("task_id", t.ID.String()).
				Time("started_at", r.StartedAt).
				Msg("Task run declared dead")

			if err := tx.UpdateRun(ctx, r); err != nil {
				return err
			}
			if err := tx.UpdateTask(ctx, t); err != nil {
				return err
			}

			if _, err := lifecycle.Open(ctx, tx, lifecycle.Params{
				OrganizationID: t.OrganizationID,
				Source:         incident.TaskSource(t.ID.String()),
				Cause:          incident.Cause{Kind: incident.CauseTaskHeartbeatTimedOut},
				Channels:       taskChannelFlags(t),
				Payload:        taskPayload(t, incident.CauseTaskHeartbeatTimedOut),
			}, now); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func taskChannelFlags(t *task.Task) incident.ChannelFlags {
	return incident.ChannelFlags{
		Email: t.EmailNotificationEnabled,
		SMS:   t.SMSNotificationEnabled,
		Push:  t.PushNotificationEnabled,
	}
}

func taskPayload(t *task.Task, cause incident.CauseKind) incident.Payload {
	return incident.Payload{
		CauseKind:      cause,
		IncidentTaskID: t.ID.String(),
	}
}
