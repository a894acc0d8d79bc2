package pool

import (
	"context"
	"testing"

	"rotapool/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatistics_EmptyPool(t *testing.T) {
	m, _ := newTestManager(t, model.KindProxy, Options{})

	stats, err := m.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCount)
	assert.Zero(t, stats.ActiveCount)
	assert.Equal(t, 0.0, stats.AvgHealthScore)
	assert.Equal(t, 0.0, stats.AvgResponseTime)
	assert.Empty(t, stats.RegionDistribution)
}

func TestGetStatistics(t *testing.T) {
	m, _ := newTestManager(t, model.KindProxy, Options{})
	ctx := context.Background()

	a := addProxy(t, m, "10.0.0.1", func(c *model.ResourceConfig) { c.Region = model.RegionEU })
	b := addProxy(t, m, "10.0.0.2", func(c *model.ResourceConfig) { c.Region = model.RegionEU })
	failing := addProxy(t, m, "10.0.0.3", func(c *model.ResourceConfig) {
		c.Region = model.RegionUS
		c.MaxConsecutiveErrors = 1
	})

	require.NoError(t, m.ReportSuccess(ctx, a, 0))
	require.NoError(t, m.ReportSuccess(ctx, b, 0))
	require.NoError(t, m.ReportError(ctx, b, "timeout"))
	require.NoError(t, m.ReportError(ctx, failing, "refused"))
	_, err := m.Acquire(ctx, model.SelectionFilter{})
	require.NoError(t, err)

	stats, err := m.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.KindProxy, stats.Kind)
	assert.Equal(t, 3, stats.TotalCount)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 1, stats.SuspendedCount)
	assert.Equal(t, 1, stats.StatusCounts[model.StatusError])
	assert.Equal(t, map[model.Region]int{model.RegionEU: 2}, stats.RegionDistribution)
	assert.Equal(t, int64(1), stats.TotalDailyUsage)
	// a: 1.0; b: (0.5 - 0.15) = 0.35
	assert.InDelta(t, (1.0+0.35)/2, stats.AvgHealthScore, 1e-9)
}
