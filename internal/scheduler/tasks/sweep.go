package tasks

import (
	"context"

	"github.com/castarr/castarr/internal/config"
	"github.com/castarr/castarr/internal/scheduler"
	"github.com/castarr/castarr/internal/syncer"
)

const SweepTaskID = "sweep"

// RegisterSweepTask registers the daily lifecycle sweep: expired
// availability records and inactive series are purged.
func RegisterSweepTask(sched *scheduler.Scheduler, service *syncer.Service, cfg *config.SyncConfig) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          SweepTaskID,
		Name:        "Lifecycle Sweep",
		Description: "Remove expired availability records and purge inactive series",
		Cron:        cfg.SweepCron,
		Func: func(ctx context.Context) error {
			return service.Sweep(ctx)
		},
	})
}
