package worker

import (
	"context"
	"time"

	"github.com/cuemby/vigil/pkg/config"
	"github.com/cuemby/vigil/pkg/registry"
)

// Worker is one periodic unit of work. RunOnce performs a single cycle
// and reports how many rows it claimed; the surrounding loop handles
// scheduling, metrics and error logging.
type Worker interface {
	Name() string
	Interval() time.Duration
	Replicas() int
	RunOnce(ctx context.Context) (int, error)
}

// All builds the complete worker set from the collaborator registry
// and the daemon configuration.
func All(reg *registry.Registry, cfg config.Config) []Worker {
	return []Worker{
		NewMonitorExecutor(reg.Store, reg.Prober, reg.Files, cfg.Monitors),
		NewDueCollector(reg.Store, cfg.TaskCollect),
		NewLateCollector(reg.Store, cfg.TaskCollect),
		NewAbsentCollector(reg.Store, cfg.TaskCollect),
		NewDeadRunCollector(reg.Store, cfg.DeadTaskRuns),
		NewDispatcher(reg.Store, reg.Mailer, reg.SMS, reg.Push, cfg.Notifications),
		NewPartitionMaintainer(reg.Store),
	}
}
