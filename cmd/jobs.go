package main

import (
	"rotapool/internal/jobs"
	"rotapool/internal/registry"
	"rotapool/pkg/lock"
	"rotapool/pkg/logger"
)

const (
	usageRolloverLockKey = "jobs:usage-rollover-lock"
	eventPruneLockKey    = "jobs:event-prune-lock"
)

// initJobs registers background jobs; each is guarded by its own distributed lock
func (app *Application) initJobs() error {
	app.jobsManager = jobs.NewManager(app.ctx)
	client := app.redisClient.GetClient()
	prefix := app.config.Redis.KeyPrefix

	var registries []*registry.Registry
	for _, m := range app.managers() {
		registries = append(registries, m.Registry())
	}
	app.jobsManager.Register(jobs.NewUsageRolloverJob(
		app.config.Jobs.UsageRolloverInterval,
		registries,
		lock.NewRedisLock(client, prefix+usageRolloverLockKey),
	))

	if app.mysqlRepo != nil {
		app.jobsManager.Register(jobs.NewEventPruneJob(
			app.config.Jobs.EventPruneInterval,
			app.config.Jobs.EventRetention,
			app.mysqlRepo.ResourceEvent,
			lock.NewRedisLock(client, prefix+eventPruneLockKey),
		))
	}

	logger.InfoCtx(app.ctx, "Registered background jobs: %v", app.jobsManager.Jobs())
	return nil
}
