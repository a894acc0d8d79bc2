package pool

import (
	"context"

	"rotapool/internal/model"
	"rotapool/internal/scoring"
	"rotapool/pkg/logger"
)

// GetStatistics aggregates partition sizes and the health of active resources.
// Averages cover active resources that could be loaded; an empty pool reports zeros.
func (m *Manager) GetStatistics(ctx context.Context) (*model.PoolStatistics, error) {
	stats := &model.PoolStatistics{
		Kind:               m.Kind(),
		StatusCounts:       make(map[model.ResourceStatus]int, len(model.AllStatuses)),
		RegionDistribution: make(map[model.Region]int),
		PriorityCounts:     make(map[model.Priority]int),
	}

	for _, status := range model.AllStatuses {
		n, err := m.registry.CountPartition(ctx, status)
		if err != nil {
			return nil, storeError("count "+string(status), err)
		}
		stats.StatusCounts[status] = n
	}
	stats.ActiveCount = stats.StatusCounts[model.StatusActive]
	stats.SuspendedCount = stats.StatusCounts[m.strategy.FailureStatus()]

	total, err := m.registry.CountAll(ctx)
	if err != nil {
		return nil, storeError("count all", err)
	}
	stats.TotalCount = total

	ids, err := m.registry.ListPartition(ctx, model.StatusActive)
	if err != nil {
		return nil, storeError("list active", err)
	}
	results, err := m.registry.LoadMany(ctx, ids)
	if err != nil {
		return nil, storeError("load active", err)
	}

	now := m.now()
	var healthSum, responseSum float64
	loaded := 0
	for _, r := range results {
		if r.Err != nil {
			logger.WarnCtx(ctx, "skipping %s %s in statistics: %v", m.Kind(), r.ID, r.Err)
			continue
		}
		eval := scoring.Evaluate(m.strategy, r.Resource, now)
		healthSum += eval.Health
		responseSum += r.Resource.Metrics.AverageResponseTime
		stats.TotalDailyUsage += eval.DailyUsage
		stats.RegionDistribution[r.Resource.Config.Region]++
		stats.PriorityCounts[r.Resource.Config.Priority]++
		loaded++
	}

	if loaded > 0 {
		stats.AvgHealthScore = healthSum / float64(loaded)
		if m.adapter.tracksLatency() {
			stats.AvgResponseTime = responseSum / float64(loaded)
		}
	}
	return stats, nil
}
