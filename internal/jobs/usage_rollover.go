package jobs

import (
	"context"
	"fmt"
	"time"

	"rotapool/internal/model"
	"rotapool/internal/registry"
	"rotapool/pkg/lock"
	"rotapool/pkg/logger"
)

// DefaultUsageRolloverInterval is used when no interval is configured
const DefaultUsageRolloverInterval = 5 * time.Minute

// UsageRolloverJob zeroes daily usage counters left over from an earlier UTC day.
// Selection already ignores stale counters; the job keeps stored values truthful.
type UsageRolloverJob struct {
	interval        time.Duration
	registries      []*registry.Registry
	distributedLock lock.DistributedLock
	now             func() time.Time
}

// NewUsageRolloverJob creates the rollover job over registries. A nil lock runs unguarded.
func NewUsageRolloverJob(interval time.Duration, registries []*registry.Registry, l lock.DistributedLock) *UsageRolloverJob {
	if interval <= 0 {
		interval = DefaultUsageRolloverInterval
	}
	return &UsageRolloverJob{
		interval:        interval,
		registries:      registries,
		distributedLock: l,
		now:             time.Now,
	}
}

func (j *UsageRolloverJob) Name() string {
	return "usage-rollover"
}

func (j *UsageRolloverJob) Interval() time.Duration {
	return j.interval
}

func (j *UsageRolloverJob) Run(ctx context.Context) error {
	if len(j.registries) == 0 {
		return fmt.Errorf("no registries configured")
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running usage rollover, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	today := model.UsageDay(j.now())
	var firstErr error
	for _, reg := range j.registries {
		rolled, err := j.rollRegistry(ctx, reg, today)
		if err != nil {
			logger.WarnCtx(ctx, "usage rollover of %s pool failed: %v", reg.Kind(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if rolled > 0 {
			logger.InfoCtx(ctx, "usage rollover: %d %s counters moved to %s", rolled, reg.Kind(), today)
		}
	}
	return firstErr
}

func (j *UsageRolloverJob) rollRegistry(ctx context.Context, reg *registry.Registry, today string) (int, error) {
	ids, err := reg.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s ids: %w", reg.Kind(), err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	results, err := reg.LoadMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s resources: %w", reg.Kind(), err)
	}

	rolled := 0
	for _, r := range results {
		if r.Err != nil {
			logger.DebugCtx(ctx, "usage rollover skipping %s: %v", r.ID, r.Err)
			continue
		}
		if r.Resource.Metrics.UsageDay == today {
			continue
		}
		if _, err := reg.RollUsageDay(ctx, r.ID, today); err != nil {
			return rolled, fmt.Errorf("failed to roll usage of %s: %w", r.ID, err)
		}
		rolled++
	}
	return rolled, nil
}
