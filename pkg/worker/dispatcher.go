package worker

import (
	"context"
	"time"

	"github.com/cuemby/vigil/pkg/config"
	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/log"
	"github.com/cuemby/vigil/pkg/metrics"
	"github.com/cuemby/vigil/pkg/notify"
	"github.com/cuemby/vigil/pkg/store"
)

// Dispatcher drains due notification queue rows and fans each one out
// to its enabled channels. Channel failures are isolated: every
// enabled channel is attempted, the per-channel outcome lands on the
// incident timeline, and the row is deleted either way. Delivery is
// at-least-once, since a crash between send and commit replays the
// row.
type Dispatcher struct {
	store  store.Store
	mailer notify.Mailer
	sms    notify.SMSSender
	push   notify.PushSender
	cfg    config.DispatcherConfig
	now    func() time.Time
}

// NewDispatcher creates the notification dispatcher worker. Nil
// senders disable their channel.
func NewDispatcher(st store.Store, mailer notify.Mailer, sms notify.SMSSender, push notify.PushSender, cfg config.DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		store:  st,
		mailer: mailer,
		sms:    sms,
		push:   push,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (d *Dispatcher) Name() string            { return "notification-dispatcher" }
func (d *Dispatcher) Interval() time.Duration { return d.cfg.Interval }
func (d *Dispatcher) Replicas() int           { return d.cfg.ConcurrentTasks }

// RunOnce drains one batch of due notifications
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.now()
	var claimed int

	err := d.store.InTx(ctx, func(tx store.Tx) error {
		rows, err := tx.SelectDueNotifications(ctx, now, d.cfg.SelectLimit)
		if err != nil {
			return err
		}
		claimed = len(rows)

		for _, n := range rows {
			if err := d.dispatch(ctx, tx, n, now); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (d *Dispatcher) dispatch(ctx context.Context, tx store.Tx, n *incident.Notification, now time.Time) error {
	contacts, err := tx.OrganizationContacts(ctx, n.OrganizationID)
	if err != nil {
		return err
	}

	rendered := notify.Render(*n)
	result := incident.NotificationPayload{
		NotificationType: n.Type,
		EscalationLevel:  n.EscalationLevel,
	}

	if n.Channels.Email && d.mailer != nil && len(contacts.Emails) > 0 {
		result.EmailSent = d.sendEmail(ctx, n, contacts.Emails, rendered)
	}
	if n.Channels.SMS && d.sms != nil && len(contacts.PhoneNumbers) > 0 {
		result.SMSSent = d.sendSMS(ctx, n, contacts.PhoneNumbers, rendered)
	}
	if n.Channels.Push && d.push != nil && len(contacts.PushDeviceTokens) > 0 {
		result.PushSent = d.sendPush(ctx, n, contacts.PushDeviceTokens, rendered)
	}

	if err := tx.AppendEvent(ctx, incident.NewNotificationEvent(n.OrganizationID, n.IncidentID, result, now)); err != nil {
		return err
	}
	return tx.DeleteNotification(ctx, n)
}

func (d *Dispatcher) sendEmail(ctx context.Context, n *incident.Notification, to []string, r notify.Rendered) bool {
	err := d.mailer.Send(ctx, notify.EmailMessage{To: to, Subject: r.Subject, Body: r.Body})
	d.observe(n, "email", err)
	return err == nil
}

func (d *Dispatcher) sendSMS(ctx context.Context, n *incident.Notification, phones []string, r notify.Rendered) bool {
	ok := true
	for _, phone := range phones {
		if err := d.sms.Send(ctx, phone, r.SMS); err != nil {
			d.observe(n, "sms", err)
			ok = false
			continue
		}
		d.observe(n, "sms", nil)
	}
	return ok
}

func (d *Dispatcher) sendPush(ctx context.Context, n *incident.Notification, tokens []string, r notify.Rendered) bool {
	err := d.push.Send(ctx, tokens, r.Push)
	d.observe(n, "push", err)
	return err == nil
}

func (d *Dispatcher) observe(n *incident.Notification, channel string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		logger := log.WithIncidentID(n.IncidentID.String())
		logger.Error().Err(err).
			Str("channel", channel).
			Int("escalation_level", n.EscalationLevel).
			Msg("Notification delivery failed")
	}
	metrics.NotificationsSentTotal.WithLabelValues(channel, outcome).Inc()
}
