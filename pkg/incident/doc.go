/*
Package incident implements the incident lifecycle for Vigil.

An incident is the durable record of a deviation: a confirmed-down
monitor, a task that missed its window, a failed or dead run. Its
lifecycle is small and strict:

	ToBeConfirmed ──confirm──► Ongoing ──resolve──► Resolved
	       │                      ▲
	       └──────── open ────────┘ (policy may open directly as Ongoing)

At most one non-resolved incident exists per (organization, source);
the opening transaction checks uniqueness while holding the source's
row lock, so two executors cannot double-open.

Three row families hang off an incident:

  - Event: append-only timeline rows (creation, notification,
    resolution, comment, acknowledged, confirmation, monitor_pinged)
    with typed payloads, partitioned by month in the store.
  - Notification: durable queue entries drained transactionally by the
    dispatcher. Escalation is just more rows at higher levels with
    later due times; acknowledge/resolve deletes them all at once.
  - AcknowledgedBy: the set of users who saw the incident. Acknowledge
    is idempotent; the second call by a user is a no-op and produces
    no timeline event.

The package holds the pure lifecycle; pkg/store persists it and
pkg/worker drives it.
*/
package incident
