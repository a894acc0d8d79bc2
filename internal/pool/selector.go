package pool

import (
	"context"
	"fmt"
	"sort"

	"rotapool/internal/model"
	"rotapool/internal/scoring"
	"rotapool/pkg/logger"

	"github.com/google/uuid"
)

type candidate struct {
	res  *model.Resource
	eval scoring.Evaluation
}

// Acquire picks the best active resource matching filter and records one use of it.
// A nil handle with a nil error means the pool is exhausted for this filter.
func (m *Manager) Acquire(ctx context.Context, filter model.SelectionFilter) (*model.ResourceHandle, error) {
	if _, ok := ctx.Deadline(); !ok && m.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.acquireTimeout)
		defer cancel()
	}

	ids, err := m.registry.ListPartition(ctx, model.StatusActive)
	if err != nil {
		return nil, storeError("list active "+string(m.Kind()), err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	results, err := m.registry.LoadMany(ctx, ids)
	if err != nil {
		return nil, storeError("load candidates", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, storeError("acquire", err)
	}

	now := m.now()
	candidates := make([]candidate, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			logger.WarnCtx(ctx, "skipping %s %s during selection: %v", m.Kind(), r.ID, r.Err)
			continue
		}
		if !matches(r.Resource.Config, filter) {
			continue
		}

		eval := scoring.Evaluate(m.strategy, r.Resource, now)
		if eval.DailyUsage >= int64(r.Resource.Config.DailyLimit) {
			continue
		}
		if m.healthGate && !scoring.IsHealthy(eval.Health, m.healthThreshold) {
			continue
		}
		candidates = append(candidates, candidate{res: r.Resource, eval: eval})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.eval.Selection != b.eval.Selection {
			return a.eval.Selection > b.eval.Selection
		}
		return a.res.Config.ID < b.res.Config.ID
	})

	for _, c := range candidates {
		id := c.res.Config.ID
		usage, err := m.registry.RecordUsage(ctx, id, now)
		if err != nil {
			return nil, storeError("record usage of "+id, err)
		}

		// Another caller took the last unit between the scan and the increment
		if usage > int64(c.res.Config.DailyLimit) {
			if err := m.registry.ReleaseUsage(ctx, id, now); err != nil {
				logger.WarnCtx(ctx, "failed to release usage of %s: %v", id, err)
			}
			logger.DebugCtx(ctx, "%s %s lost quota race, trying next candidate", m.Kind(), id)
			continue
		}

		handle := m.newHandle(c, usage)
		logger.DebugCtx(ctx, "acquired %s %s, lease: %s, score: %.3f, health: %.3f, usage: %d/%d",
			m.Kind(), id, handle.LeaseID, handle.Score, handle.HealthScore, usage, c.res.Config.DailyLimit)
		return handle, nil
	}

	logger.DebugCtx(ctx, "%s pool exhausted, %d active, region: %q, priority: %q",
		m.Kind(), len(ids), filter.Region, filter.Priority)
	return nil, nil
}

func matches(cfg *model.ResourceConfig, filter model.SelectionFilter) bool {
	if filter.Region != "" && cfg.Region != filter.Region {
		return false
	}
	if filter.Priority != "" && cfg.Priority != filter.Priority {
		return false
	}
	return true
}

func (m *Manager) newHandle(c candidate, usage int64) *model.ResourceHandle {
	cfg := c.res.Config
	h := &model.ResourceHandle{
		ID:          cfg.ID,
		Kind:        cfg.Kind,
		LeaseID:     uuid.New().String(),
		Score:       c.eval.Selection,
		HealthScore: c.eval.Health,
		DailyUsage:  usage,
		Region:      cfg.Region,
		Priority:    cfg.Priority,
		AcquiredAt:  m.now(),
	}
	if m.adapter.tracksLatency() {
		h.ResponseTime = c.res.Metrics.AverageResponseTime
	}
	m.adapter.fillHandle(h, cfg)
	return h
}

// ValidateFilter rejects filter values outside the known tags
func ValidateFilter(filter model.SelectionFilter) error {
	if filter.Region != "" {
		if _, err := model.ParseRegion(string(filter.Region)); err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
		}
	}
	if filter.Priority != "" {
		if _, err := model.ParsePriority(string(filter.Priority)); err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
		}
	}
	return nil
}
