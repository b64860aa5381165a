package worker

import (
	"context"
	"time"

	"github.com/cuemby/vigil/pkg/store"
)

// partitionInterval is how often the maintainer checks for missing
// timeline partitions. Partitions are monthly, so daily is ample.
const partitionInterval = 24 * time.Hour

// PartitionMaintainer keeps the incident timeline's monthly partitions
// ahead of the calendar.
type PartitionMaintainer struct {
	store store.Store
	now   func() time.Time
}

// NewPartitionMaintainer creates the partition maintenance worker
func NewPartitionMaintainer(st store.Store) *PartitionMaintainer {
	return &PartitionMaintainer{store: st, now: time.Now}
}

func (p *PartitionMaintainer) Name() string            { return "partition-maintenance" }
func (p *PartitionMaintainer) Interval() time.Duration { return partitionInterval }
func (p *PartitionMaintainer) Replicas() int           { return 1 }

// RunOnce ensures the current and next month's partitions exist
func (p *PartitionMaintainer) RunOnce(ctx context.Context) (int, error) {
	now := p.now().UTC()
	err := p.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.EnsureTimelinePartition(ctx, now); err != nil {
			return err
		}
		return tx.EnsureTimelinePartition(ctx, now.AddDate(0, 1, 0))
	})
	return 0, err
}
