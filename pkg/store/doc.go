/*
Package store implements the PostgreSQL persistence layer for Vigil.

All worker access goes through one shape:

	store.InTx(ctx, func(tx store.Tx) error {
	    rows, err := tx.SelectDueMonitors(ctx, now, limit)
	    ...
	})

The Select* methods issue SELECT ... FOR UPDATE SKIP LOCKED LIMIT n, so
any number of worker replicas can poll the same table concurrently:
each row is claimed by exactly one open transaction, and a crashed
worker's claim evaporates with its transaction. State change and side
effects (incident rows, timeline events, notification queue rows)
commit atomically or not at all.

Schema migrations are embedded SQL files applied with goose over the
pgx database/sql driver. incident_timeline_events is range-partitioned
by month on created_at; EnsureTimelinePartition creates upcoming
partitions and is driven by the partition maintenance worker.
*/
package store
