package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/vigil/pkg/incident"
	"github.com/cuemby/vigil/pkg/monitor"
	"github.com/cuemby/vigil/pkg/probe"
	"github.com/cuemby/vigil/pkg/task"
)

// Postgres implements Store over a pgx connection pool
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects the pool and verifies the database is reachable
func Open(ctx context.Context, databaseURL string, maxConnections int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = int32(maxConnections)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// InTx runs fn inside one transaction
func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// Close releases the connection pool
func (p *Postgres) Close() {
	p.pool.Close()
}

// pgTx implements Tx over one open pgx transaction
type pgTx struct {
	tx pgx.Tx
}

const monitorColumns = `organization_id, id, url, interval_seconds, request_timeout_seconds,
	request_headers, recovery_confirmation_threshold, downtime_confirmation_threshold,
	status, status_counter, last_status_change_at, next_ping_at,
	last_http_code, error_kind, metadata,
	email_notification_enabled, sms_notification_enabled, push_notification_enabled, created_at`

func (t *pgTx) SelectDueMonitors(ctx context.Context, now time.Time, limit int) ([]*monitor.Monitor, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+monitorColumns+`
		FROM http_monitors
		WHERE next_ping_at <= $1 AND status NOT IN ('inactive', 'archived')
		ORDER BY next_ping_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due monitors: %w", err)
	}
	defer rows.Close()

	var monitors []*monitor.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, rows.Err()
}

func scanMonitor(row pgx.Row) (*monitor.Monitor, error) {
	var (
		m                       monitor.Monitor
		intervalSec, timeoutSec int64
		headersJSON             []byte
		metadataJSON            []byte
		errorKind               string
	)
	err := row.Scan(
		&m.OrganizationID, &m.ID, &m.URL, &intervalSec, &timeoutSec,
		&headersJSON, &m.RecoveryConfirmationThreshold, &m.DowntimeConfirmationThreshold,
		&m.Status, &m.StatusCounter, &m.LastStatusChangeAt, &m.NextPingAt,
		&m.LastHTTPCode, &errorKind, &metadataJSON,
		&m.EmailNotificationEnabled, &m.SMSNotificationEnabled, &m.PushNotificationEnabled, &m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan monitor: %w", err)
	}
	m.Interval = time.Duration(intervalSec) * time.Second
	m.RequestTimeout = time.Duration(timeoutSec) * time.Second
	m.ErrorKind = probe.ErrorKind(errorKind)
	if err := json.Unmarshal(headersJSON, &m.RequestHeaders); err != nil {
		return nil, fmt.Errorf("failed to decode monitor headers: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode monitor metadata: %w", err)
	}
	return &m, nil
}

func (t *pgTx) InsertMonitor(ctx context.Context, m *monitor.Monitor) error {
	headersJSON, err := json.Marshal(orEmptyHeaders(m.RequestHeaders))
	if err != nil {
		return fmt.Errorf("failed to encode monitor headers: %w", err)
	}
	metadataJSON, err := json.Marshal(orEmptyMap(m.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode monitor metadata: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO http_monitors (`+monitorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		m.OrganizationID, m.ID, m.URL,
		int64(m.Interval/time.Second), int64(m.RequestTimeout/time.Second),
		headersJSON, m.RecoveryConfirmationThreshold, m.DowntimeConfirmationThreshold,
		m.Status, m.StatusCounter, m.LastStatusChangeAt, m.NextPingAt,
		m.LastHTTPCode, string(m.ErrorKind), metadataJSON,
		m.EmailNotificationEnabled, m.SMSNotificationEnabled, m.PushNotificationEnabled, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert monitor %s: %w", m.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateMonitor(ctx context.Context, m *monitor.Monitor) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE http_monitors
		SET status = $3, status_counter = $4, last_status_change_at = $5,
			next_ping_at = $6, last_http_code = $7, error_kind = $8
		WHERE organization_id = $1 AND id = $2`,
		m.OrganizationID, m.ID,
		m.Status, m.StatusCounter, m.LastStatusChangeAt,
		m.NextPingAt, m.LastHTTPCode, string(m.ErrorKind),
	)
	if err != nil {
		return fmt.Errorf("failed to update monitor %s: %w", m.ID, err)
	}
	return nil
}

const taskColumns = `organization_id, id, cron_schedule, schedule_timezone,
	start_window_seconds, lateness_window_seconds, heartbeat_timeout_seconds,
	status, previous_status, last_status_change_at, next_due_at, metadata,
	email_notification_enabled, sms_notification_enabled, push_notification_enabled, created_at`

func (t *pgTx) SelectDueTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	return t.selectTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status IN ('pending', 'healthy', 'failing', 'absent') AND next_due_at <= $1
		ORDER BY next_due_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
}

func (t *pgTx) SelectLateTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	return t.selectTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'due'
			AND next_due_at + make_interval(secs => start_window_seconds) <= $1
		ORDER BY next_due_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
}

func (t *pgTx) SelectAbsentTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	return t.selectTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE status = 'late'
			AND next_due_at + make_interval(secs => start_window_seconds + lateness_window_seconds) <= $1
		ORDER BY next_due_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
}

func (t *pgTx) selectTasks(ctx context.Context, query string, now time.Time, limit int) ([]*task.Task, error) {
	rows, err := t.tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		tk, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, tk)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		tk             task.Task
		id             string
		previousStatus *string
		metadataJSON   []byte

		startWindowSec, latenessSec, hbSec int64
	)
	err := row.Scan(
		&tk.OrganizationID, &id, &tk.CronSchedule, &tk.ScheduleTimezone,
		&startWindowSec, &latenessSec, &hbSec,
		&tk.Status, &previousStatus, &tk.LastStatusChangeAt, &tk.NextDueAt, &metadataJSON,
		&tk.EmailNotificationEnabled, &tk.SMSNotificationEnabled, &tk.PushNotificationEnabled, &tk.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	tk.ID, err = task.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task id %q: %w", id, err)
	}
	tk.StartWindow = time.Duration(startWindowSec) * time.Second
	tk.LatenessWindow = time.Duration(latenessSec) * time.Second
	tk.HeartbeatTimeout = time.Duration(hbSec) * time.Second
	if previousStatus != nil {
		prev := task.Status(*previousStatus)
		tk.PreviousStatus = &prev
	}
	if err := json.Unmarshal(metadataJSON, &tk.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode task metadata: %w", err)
	}
	return &tk, nil
}

func (t *pgTx) GetTask(ctx context.Context, org uuid.UUID, id task.ID) (*task.Task, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE organization_id = $1 AND id = $2 AND status <> 'archived'
		FOR UPDATE`, org, id.String())
	tk, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tk, err
}

func (t *pgTx) InsertTask(ctx context.Context, tk *task.Task) error {
	metadataJSON, err := json.Marshal(orEmptyMap(tk.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode task metadata: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		tk.OrganizationID, tk.ID.String(), tk.CronSchedule, tk.ScheduleTimezone,
		int64(tk.StartWindow/time.Second), int64(tk.LatenessWindow/time.Second), int64(tk.HeartbeatTimeout/time.Second),
		tk.Status, tk.PreviousStatus, tk.LastStatusChangeAt, tk.NextDueAt, metadataJSON,
		tk.EmailNotificationEnabled, tk.SMSNotificationEnabled, tk.PushNotificationEnabled, tk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", tk.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateTask(ctx context.Context, tk *task.Task) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE tasks
		SET status = $3, previous_status = $4, last_status_change_at = $5, next_due_at = $6
		WHERE organization_id = $1 AND id = $2 AND status <> 'archived'`,
		tk.OrganizationID, tk.ID.String(),
		tk.Status, tk.PreviousStatus, tk.LastStatusChangeAt, tk.NextDueAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", tk.ID, err)
	}
	return nil
}

const runColumns = `organization_id, task_id, started_at, status,
	completed_at, exit_code, error_message, last_heartbeat_at`

func (t *pgTx) SelectExpiredRuns(ctx context.Context, now time.Time, limit int) ([]*task.Run, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT r.organization_id, r.task_id, r.started_at, r.status,
			r.completed_at, r.exit_code, r.error_message, r.last_heartbeat_at
		FROM task_runs r
		JOIN tasks t ON t.organization_id = r.organization_id
			AND t.id = r.task_id AND t.status <> 'archived'
		WHERE r.status = 'running'
			AND r.last_heartbeat_at + make_interval(secs => t.heartbeat_timeout_seconds) <= $1
		ORDER BY r.last_heartbeat_at
		LIMIT $2
		FOR UPDATE OF r SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired runs: %w", err)
	}
	defer rows.Close()

	var runs []*task.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*task.Run, error) {
	var (
		r      task.Run
		taskID string
	)
	err := row.Scan(
		&r.OrganizationID, &taskID, &r.StartedAt, &r.Status,
		&r.CompletedAt, &r.ExitCode, &r.ErrorMessage, &r.LastHeartbeatAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task run: %w", err)
	}
	r.TaskID, err = task.ParseID(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run task id %q: %w", taskID, err)
	}
	return &r, nil
}

func (t *pgTx) InsertRun(ctx context.Context, r *task.Run) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO task_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.OrganizationID, r.TaskID.String(), r.StartedAt, r.Status,
		r.CompletedAt, r.ExitCode, r.ErrorMessage, r.LastHeartbeatAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run for task %s: %w", r.TaskID, err)
	}
	return nil
}

func (t *pgTx) UpdateRun(ctx context.Context, r *task.Run) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE task_runs
		SET status = $4, completed_at = $5, exit_code = $6, error_message = $7, last_heartbeat_at = $8
		WHERE organization_id = $1 AND task_id = $2 AND started_at = $3`,
		r.OrganizationID, r.TaskID.String(), r.StartedAt,
		r.Status, r.CompletedAt, r.ExitCode, r.ErrorMessage, r.LastHeartbeatAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update run for task %s: %w", r.TaskID, err)
	}
	return nil
}

const incidentColumns = `organization_id, id, cause, status, priority,
	source_kind, source_id, created_at, resolved_at, acknowledged_by`

func (t *pgTx) LiveIncidentBySource(ctx context.Context, org uuid.UUID, source incident.Source) (*incident.Incident, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE organization_id = $1 AND source_kind = $2 AND source_id = $3
			AND status <> 'resolved'
		FOR UPDATE`, org, string(source.Kind), source.ID)
	i, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return i, err
}

func (t *pgTx) GetIncident(ctx context.Context, org, id uuid.UUID) (*incident.Incident, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE`, org, id)
	i, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return i, err
}

func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var (
		i          incident.Incident
		causeJSON  []byte
		sourceKind string
	)
	err := row.Scan(
		&i.OrganizationID, &i.ID, &causeJSON, &i.Status, &i.Priority,
		&sourceKind, &i.Source.ID, &i.CreatedAt, &i.ResolvedAt, &i.AcknowledgedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan incident: %w", err)
	}
	i.Source.Kind = incident.SourceKind(sourceKind)
	if err := json.Unmarshal(causeJSON, &i.Cause); err != nil {
		return nil, fmt.Errorf("failed to decode incident cause: %w", err)
	}
	return &i, nil
}

func (t *pgTx) InsertIncident(ctx context.Context, i *incident.Incident) error {
	causeJSON, err := json.Marshal(i.Cause)
	if err != nil {
		return fmt.Errorf("failed to encode incident cause: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO incidents (`+incidentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		i.OrganizationID, i.ID, causeJSON, i.Status, i.Priority,
		string(i.Source.Kind), i.Source.ID, i.CreatedAt, i.ResolvedAt, i.AcknowledgedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident %s: %w", i.ID, err)
	}
	return nil
}

func (t *pgTx) UpdateIncident(ctx context.Context, i *incident.Incident) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE incidents
		SET status = $3, priority = $4, resolved_at = $5, acknowledged_by = $6
		WHERE organization_id = $1 AND id = $2`,
		i.OrganizationID, i.ID,
		i.Status, i.Priority, i.ResolvedAt, i.AcknowledgedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident %s: %w", i.ID, err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e incident.Event) error {
	var payloadJSON []byte
	if e.Payload != nil {
		var err error
		if payloadJSON, err = json.Marshal(e.Payload); err != nil {
			return fmt.Errorf("failed to encode event payload: %w", err)
		}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO incident_timeline_events (organization_id, incident_id, created_at, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		e.OrganizationID, e.IncidentID, e.CreatedAt, string(e.Type), payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append timeline event: %w", err)
	}
	return nil
}

const notificationColumns = `organization_id, incident_id, escalation_level, notification_type,
	notification_due_at, email_enabled, sms_enabled, push_enabled, payload`

func (t *pgTx) InsertNotifications(ctx context.Context, rows []incident.Notification) error {
	for _, n := range rows {
		payloadJSON, err := json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode notification payload: %w", err)
		}
		_, err = t.tx.Exec(ctx, `
			INSERT INTO incident_notifications (`+notificationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			n.OrganizationID, n.IncidentID, n.EscalationLevel, string(n.Type),
			n.DueAt, n.Channels.Email, n.Channels.SMS, n.Channels.Push, payloadJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert notification for incident %s: %w", n.IncidentID, err)
		}
	}
	return nil
}

func (t *pgTx) SelectDueNotifications(ctx context.Context, now time.Time, limit int) ([]*incident.Notification, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM incident_notifications
		WHERE notification_due_at <= $1
		ORDER BY notification_due_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*incident.Notification
	for rows.Next() {
		var (
			n           incident.Notification
			typ         string
			payloadJSON []byte
		)
		err := rows.Scan(
			&n.OrganizationID, &n.IncidentID, &n.EscalationLevel, &typ,
			&n.DueAt, &n.Channels.Email, &n.Channels.SMS, &n.Channels.Push, &payloadJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = incident.NotificationType(typ)
		if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode notification payload: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

func (t *pgTx) DeleteNotification(ctx context.Context, n *incident.Notification) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM incident_notifications
		WHERE organization_id = $1 AND incident_id = $2
			AND escalation_level = $3 AND notification_type = $4`,
		n.OrganizationID, n.IncidentID, n.EscalationLevel, string(n.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to delete notification for incident %s: %w", n.IncidentID, err)
	}
	return nil
}

func (t *pgTx) CancelNotifications(ctx context.Context, org, incidentID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM incident_notifications
		WHERE organization_id = $1 AND incident_id = $2`,
		org, incidentID,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel notifications for incident %s: %w", incidentID, err)
	}
	return nil
}

func (t *pgTx) OrganizationContacts(ctx context.Context, org uuid.UUID) (Contacts, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT email, phone_number, push_device_token
		FROM organization_contacts
		WHERE organization_id = $1`, org)
	if err != nil {
		return Contacts{}, fmt.Errorf("failed to select organization contacts: %w", err)
	}
	defer rows.Close()

	var contacts Contacts
	for rows.Next() {
		var email, phone, token *string
		if err := rows.Scan(&email, &phone, &token); err != nil {
			return Contacts{}, fmt.Errorf("failed to scan organization contact: %w", err)
		}
		if email != nil {
			contacts.Emails = append(contacts.Emails, *email)
		}
		if phone != nil {
			contacts.PhoneNumbers = append(contacts.PhoneNumbers, *phone)
		}
		if token != nil {
			contacts.PushDeviceTokens = append(contacts.PushDeviceTokens, *token)
		}
	}
	return contacts, rows.Err()
}

func (t *pgTx) EnsureTimelinePartition(ctx context.Context, month time.Time) error {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	name := fmt.Sprintf("incident_timeline_events_y%dm%02d", from.Year(), int(from.Month()))

	// Partition bounds cannot be parameterized; the identifier and
	// bounds are derived from the timestamp alone.
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF incident_timeline_events
		FOR VALUES FROM ('%s') TO ('%s')`,
		name, from.Format("2006-01-02"), to.Format("2006-01-02"),
	)
	if _, err := t.tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create timeline partition %s: %w", name, err)
	}
	return nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyHeaders(h []probe.Header) []probe.Header {
	if h == nil {
		return []probe.Header{}
	}
	return h
}
