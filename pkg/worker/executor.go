package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/vigil/pkg/config"
	"github.com/cuemby/vigil/pkg/filestore"
	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/incident/lifecycle"
	"github.com/cuemby/vigil/pkg/log"
	"github.com/cuemby/vigil/pkg/metrics"
	"github.com/cuemby/vigil/pkg/monitor"
	"github.com/cuemby/vigil/pkg/probe"
	"github.com/cuemby/vigil/pkg/store"
)

// MonitorExecutor claims due monitors, probes them concurrently and
// applies the resulting state transitions with their incident side
// effects, all inside one transaction per batch.
type MonitorExecutor struct {
	store  store.Store
	prober probe.Prober
	files  filestore.Storage
	cfg    config.MonitorExecutorConfig
	now    func() time.Time
}

// NewMonitorExecutor creates the executor worker
func NewMonitorExecutor(st store.Store, prober probe.Prober, files filestore.Storage, cfg config.MonitorExecutorConfig) *MonitorExecutor {
	return &MonitorExecutor{
		store:  st,
		prober: prober,
		files:  files,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (e *MonitorExecutor) Name() string            { return "monitor-executor" }
func (e *MonitorExecutor) Interval() time.Duration { return e.cfg.Interval }
func (e *MonitorExecutor) Replicas() int           { return e.cfg.ConcurrentTasks }

// RunOnce executes one claim-probe-apply cycle
func (e *MonitorExecutor) RunOnce(ctx context.Context) (int, error) {
	now := e.now()
	var claimed int

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		monitors, err := tx.SelectDueMonitors(ctx, now, e.cfg.SelectLimit)
		if err != nil {
			return err
		}
		claimed = len(monitors)
		if claimed == 0 {
			return nil
		}

		responses := e.probeAll(ctx, monitors)
		for i, m := range monitors {
			if err := e.apply(ctx, tx, m, responses[i], now); err != nil {
				return fmt.Errorf("failed to apply probe to monitor %s: %w", m.ID, err)
			}
		}
		return nil
	})
	return claimed, err
}

// probeAll pings every claimed monitor through a bounded pool and
// returns the responses in monitor order.
func (e *MonitorExecutor) probeAll(ctx context.Context, monitors []*monitor.Monitor) []probe.Response {
	responses := make([]probe.Response, len(monitors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PingConcurrency)
	for i, m := range monitors {
		g.Go(func() error {
			resp := e.prober.Ping(gctx, m.Endpoint())
			responses[i] = resp

			outcome := "success"
			if resp.ErrorKind != probe.ErrorKindNone {
				outcome = "failure"
			}
			metrics.ProbesTotal.WithLabelValues(outcome, string(resp.ErrorKind)).Inc()
			metrics.ProbeDuration.Observe(resp.ResponseTime.Seconds())
			return nil
		})
	}
	// Probers never return errors; the group only bounds concurrency.
	_ = g.Wait()
	return responses
}

func (e *MonitorExecutor) apply(ctx context.Context, tx store.Tx, m *monitor.Monitor, resp probe.Response, now time.Time) error {
	logger := log.WithMonitorID(m.ID.String())

	state, err := monitor.StateOf(m)
	if err != nil {
		// An invariant-violating row must not poison the rest of the
		// batch; leave it untouched and move on.
		logger.Error().Err(err).Msg("Skipping monitor with invalid state")
		return nil
	}

	outcome := monitor.Classify(resp)
	next, effects, err := monitor.Transition(state, outcome, m.DowntimeConfirmationThreshold, m.RecoveryConfirmationThreshold)
	if err != nil {
		logger.Error().Err(err).Msg("Skipping monitor with illegal transition")
		return nil
	}

	wasDown := state.Status() == monitor.StatusDown
	if effects.StatusChanged {
		metrics.MonitorTransitionsTotal.WithLabelValues(string(state.Status()), string(next.Status())).Inc()
		logger.Info().
			Str("from", string(state.Status())).
			Str("to", string(next.Status())).
			Msg("Monitor status changed")
	}

	m.Apply(next, effects, outcome, now)
	if err := tx.UpdateMonitor(ctx, m); err != nil {
		return err
	}

	switch {
	case effects.OpenIncident:
		inc, err := lifecycle.Open(ctx, tx, lifecycle.Params{
			OrganizationID: m.OrganizationID,
			Source:         incident.MonitorSource(m.ID),
			Cause:          incident.MonitorDownCause(outcome.ErrorKind, outcome.HTTPCode),
			Channels:       e.channelFlags(m),
			Payload:        e.notificationPayload(m, outcome),
		}, now)
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, incident.NewMonitorPingedEvent(inc, outcome.ErrorKind, outcome.HTTPCode, now)); err != nil {
			return err
		}
		e.persistScreenshot(ctx, m, resp)

	case effects.ResolveIncident:
		if err := e.appendPingEvent(ctx, tx, m, outcome, now); err != nil {
			return err
		}
		if err := lifecycle.Resolve(ctx, tx, m.OrganizationID, incident.MonitorSource(m.ID), e.channelFlags(m), e.notificationPayload(m, outcome), now); err != nil {
			return err
		}

	case wasDown || next.Status() == monitor.StatusDown:
		// Probes while the incident stays live still land on its timeline.
		if err := e.appendPingEvent(ctx, tx, m, outcome, now); err != nil {
			return err
		}
	}
	return nil
}

// appendPingEvent records the probe on the live incident's timeline,
// if one exists.
func (e *MonitorExecutor) appendPingEvent(ctx context.Context, tx store.Tx, m *monitor.Monitor, outcome monitor.Outcome, now time.Time) error {
	inc, err := tx.LiveIncidentBySource(ctx, m.OrganizationID, incident.MonitorSource(m.ID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, incident.NewMonitorPingedEvent(inc, outcome.ErrorKind, outcome.HTTPCode, now))
}

// persistScreenshot uploads the failure screenshot, when the prober
// captured one and a file store is wired. Upload failures are logged
// and dropped: a missing screenshot must not fail the state update.
func (e *MonitorExecutor) persistScreenshot(ctx context.Context, m *monitor.Monitor, resp probe.Response) {
	if e.files == nil || len(resp.Screenshot) == 0 {
		return
	}
	logger := log.WithMonitorID(m.ID.String())
	key := filestore.Key(m.OrganizationID, uuid.New())
	if err := e.files.Put(ctx, key, "image/png", resp.Screenshot); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to store screenshot")
		return
	}
	logger.Debug().Str("key", key).Msg("Screenshot stored")
}

func (e *MonitorExecutor) channelFlags(m *monitor.Monitor) incident.ChannelFlags {
	return incident.ChannelFlags{
		Email: m.EmailNotificationEnabled,
		SMS:   m.SMSNotificationEnabled,
		Push:  m.PushNotificationEnabled,
	}
}

func (e *MonitorExecutor) notificationPayload(m *monitor.Monitor, outcome monitor.Outcome) incident.Payload {
	return incident.Payload{
		CauseKind:  incident.CauseMonitorDown,
		ErrorKind:  outcome.ErrorKind,
		HTTPCode:   outcome.HTTPCode,
		MonitorURL: m.URL,
	}
}
