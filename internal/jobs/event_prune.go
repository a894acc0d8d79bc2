package jobs

import (
	"context"
	"time"

	"rotapool/pkg/lock"
	"rotapool/pkg/logger"
)

// EventPruner deletes lifecycle events older than a cutoff
type EventPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventPruneJob trims the lifecycle event log to a retention window
type EventPruneJob struct {
	interval        time.Duration
	retention       time.Duration
	pruner          EventPruner
	distributedLock lock.DistributedLock
	now             func() time.Time
}

// NewEventPruneJob creates the prune job. It aligns to its interval so instances prune together.
func NewEventPruneJob(interval, retention time.Duration, pruner EventPruner, l lock.DistributedLock) *EventPruneJob {
	return &EventPruneJob{
		interval:        interval,
		retention:       retention,
		pruner:          pruner,
		distributedLock: l,
		now:             time.Now,
	}
}

func (j *EventPruneJob) Name() string {
	return "event-prune"
}

func (j *EventPruneJob) Interval() time.Duration {
	return j.interval
}

func (j *EventPruneJob) AlignToInterval() bool {
	return true
}

func (j *EventPruneJob) Run(ctx context.Context) error {
	if j.pruner == nil || j.retention <= 0 {
		return nil
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is pruning events, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.InfoCtx(ctx, "pruned %d lifecycle events older than %s", deleted, cutoff.Format(time.RFC3339))
	}
	return nil
}
