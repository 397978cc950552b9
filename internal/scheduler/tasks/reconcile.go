// Package tasks wires the long-running services into the scheduler.
package tasks

import (
	"context"

	"github.com/castarr/castarr/internal/config"
	"github.com/castarr/castarr/internal/scheduler"
	"github.com/castarr/castarr/internal/syncer"
)

const ReconcileTaskID = "reconcile"

// RegisterReconcileTask registers the hourly reconciliation cycle. It also
// runs once on startup so a restart never waits an hour for fresh state.
func RegisterReconcileTask(sched *scheduler.Scheduler, service *syncer.Service, cfg *config.SyncConfig) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ReconcileTaskID,
		Name:        "Reconcile",
		Description: "Match candidate feed items against watched series and drive downloads",
		Cron:        cfg.Cron,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			return service.Run(ctx)
		},
	})
}
