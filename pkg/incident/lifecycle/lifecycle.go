package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/log"
	"github.com/cuemby/vigil/pkg/metrics"
	"github.com/cuemby/vigil/pkg/store"
)

// EscalationOffsets are the follow-up delays for unacknowledged
// incident-creation notifications, one escalation level per entry.
var EscalationOffsets = []time.Duration{10 * time.Minute, 30 * time.Minute}

// Params describes the incident to open
type Params struct {
	OrganizationID uuid.UUID
	Source         incident.Source
	Cause          incident.Cause
	Priority       incident.Priority
	ToBeConfirmed  bool

	Channels incident.ChannelFlags
	Payload  incident.Payload
}

// Open opens an incident for the source unless one is already live, in
// which case the live incident is returned unchanged. A fresh incident
// gets its creation timeline event, the level-zero creation
// notification and the escalation rows, all in the caller's
// transaction.
func Open(ctx context.Context, tx store.Tx, p Params, now time.Time) (*incident.Incident, error) {
	existing, err := tx.LiveIncidentBySource(ctx, p.OrganizationID, p.Source)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	inc := incident.New(p.OrganizationID, p.Source, p.Cause, p.Priority, p.ToBeConfirmed, now)
	if err := tx.InsertIncident(ctx, inc); err != nil {
		return nil, err
	}
	if err := tx.AppendEvent(ctx, incident.NewCreationEvent(inc)); err != nil {
		return nil, err
	}

	rows := []incident.Notification{
		incident.NewNotification(inc, incident.NotificationCreation, p.Channels, p.Payload, now),
	}
	rows = append(rows, incident.EscalationRows(inc, incident.NotificationCreation, p.Channels, p.Payload, now, EscalationOffsets)...)
	if err := tx.InsertNotifications(ctx, rows); err != nil {
		return nil, err
	}

	metrics.IncidentsOpenedTotal.WithLabelValues(string(p.Source.Kind)).Inc()
	logger := log.WithIncidentID(inc.ID.String())
	logger.Info().
		Str("source_kind", string(p.Source.Kind)).
		Str("source_id", p.Source.ID).
		Str("cause", string(p.Cause.Kind)).
		Msg("Incident opened")
	return inc, nil
}

// Resolve closes the live incident for the source, if any. Pending
// notifications are cancelled before the resolution notice is
// enqueued, so an escalation never fires after the incident closed.
func Resolve(ctx context.Context, tx store.Tx, org uuid.UUID, source incident.Source, channels incident.ChannelFlags, payload incident.Payload, now time.Time) error {
	inc, err := tx.LiveIncidentBySource(ctx, org, source)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := inc.Resolve(now); err != nil {
		return err
	}
	if err := tx.UpdateIncident(ctx, inc); err != nil {
		return err
	}
	if err := tx.CancelNotifications(ctx, org, inc.ID); err != nil {
		return err
	}
	if err := tx.AppendEvent(ctx, incident.NewResolutionEvent(inc, now)); err != nil {
		return err
	}
	resolution := incident.NewNotification(inc, incident.NotificationResolution, channels, payload, now)
	if err := tx.InsertNotifications(ctx, []incident.Notification{resolution}); err != nil {
		return err
	}

	metrics.IncidentsResolvedTotal.Inc()
	logger := log.WithIncidentID(inc.ID.String())
	logger.Info().Msg("Incident resolved")
	return nil
}

// Acknowledge records that a user saw the incident and stops pending
// notifications. Acknowledging twice is a no-op.
func Acknowledge(ctx context.Context, tx store.Tx, org, incidentID, userID uuid.UUID, now time.Time) error {
	inc, err := tx.GetIncident(ctx, org, incidentID)
	if err != nil {
		return err
	}
	if !inc.Acknowledge(userID) {
		return nil
	}
	if err := tx.UpdateIncident(ctx, inc); err != nil {
		return err
	}
	if err := tx.CancelNotifications(ctx, org, inc.ID); err != nil {
		return err
	}
	return tx.AppendEvent(ctx, incident.NewAcknowledgedEvent(inc, userID, now))
}

// Confirm promotes a to-be-confirmed incident to ongoing and enqueues
// its confirmation notification.
func Confirm(ctx context.Context, tx store.Tx, org, incidentID uuid.UUID, channels incident.ChannelFlags, payload incident.Payload, now time.Time) error {
	inc, err := tx.GetIncident(ctx, org, incidentID)
	if err != nil {
		return err
	}
	if err := inc.Confirm(); err != nil {
		return fmt.Errorf("failed to confirm incident %s: %w", inc.ID, err)
	}
	if err := tx.UpdateIncident(ctx, inc); err != nil {
		return err
	}
	if err := tx.AppendEvent(ctx, incident.NewConfirmationEvent(inc, now)); err != nil {
		return err
	}
	confirmation := incident.NewNotification(inc, incident.NotificationConfirmation, channels, payload, now)
	return tx.InsertNotifications(ctx, []incident.Notification{confirmation})
}

// Comment appends an operator comment to the incident timeline
func Comment(ctx context.Context, tx store.Tx, org, incidentID, userID uuid.UUID, message string, now time.Time) error {
	inc, err := tx.GetIncident(ctx, org, incidentID)
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, incident.NewCommentEvent(inc, userID, message, now))
}
