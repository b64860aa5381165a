/*
Package worker implements the periodic workers that drive Vigil.

	┌──────────────────────┐     claim batch      ┌────────────────┐
	│  monitor-executor ×N │──SKIP LOCKED────────▶│                │
	│  collect-due         │                      │                │
	│  collect-late        │   transition +       │   PostgreSQL   │
	│  collect-absent      │   side effects       │                │
	│  collect-dead-runs   │──same transaction───▶│                │
	│  notification-       │                      │                │
	│    dispatcher        │                      └────────────────┘
	│  partition-          │
	│    maintenance       │
	└──────────────────────┘

Every worker follows one shape: claim up to select_limit rows with
FOR UPDATE SKIP LOCKED, apply the domain transition, write the row and
its side effects back, commit. Replicas of the same worker poll the
same table concurrently and never claim the same row. A cycle failure
rolls the whole batch back; the rows are reclaimed on a later tick.

The Supervisor starts Replicas() Loop goroutines per worker and stops
them gracefully, draining in-flight cycles. Each cycle reports its
duration, batch size and error count through the metrics package.
*/
package worker
