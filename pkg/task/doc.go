/*
Package task implements the scheduled task and task run state machines.

A task that should check in on a cron schedule walks a due cycle driven
by the collector workers, and a run cycle driven by external check-ins:

	          next_due_at passes      start window      lateness window
	 Pending ───────────────► Due ───────────────► Late ─────────────► Absent
	    │                      │                     │                    │
	    │        start         │        start        │       start       │
	    └──────────┬───────────┴──────────┬──────────┴─────────┬─────────┘
	               ▼                      ▼                    ▼
	            Running ── finish(ok) ─► Healthy ──┐
	               │                               │ next cron instant
	               ├────── finish(fail) ─► Failing ─┤ passes: back to Due
	               ├────── abort ────────► Healthy  │
	               └────── dead (no heartbeat) ─► Failing ─┘

Absent and Failing transitions open incidents (TaskRunningLate,
TaskFailed, TaskHeartbeatTimedOut); Archive is a terminal sink from any
non-Running status and resolves live incidents.

Task runs are identified by (organization, task, started_at) and end as
Finished, Failed, Aborted or Dead. Exit codes carry the outcome's sign:
Finished accepts <= 0, Failed requires > 0 (or none).

Every transition records previous_status and last_status_change_at.
Transitions that need next_due_at without a cron schedule are rejected
as ErrMissingSchedule rather than guessed.

Cron expressions are parsed with robfig/cron in the standard 5-field
form, with the 6-field seconds form accepted as a fallback; schedules
evaluate in the task's IANA timezone (UTC by default).
*/
package task
