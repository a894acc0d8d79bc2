package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rotapool/internal/model"
	redisstore "rotapool/pkg/store/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, kind model.ResourceKind) (*Registry, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := redisstore.NewMetricsStore(redisstore.NewRedisClientFrom(client))
	return New(store, kind, ""), mr
}

func accountConfig(username string) *model.ResourceConfig {
	return &model.ResourceConfig{
		ID:                   "acc_" + username,
		Kind:                 model.KindAccount,
		Status:               model.StatusActive,
		Priority:             model.PriorityNormal,
		Region:               model.RegionUS,
		DailyLimit:           100,
		MaxConsecutiveErrors: 5,
		CreatedAt:            testNow,
		Account:              &model.AccountCredential{Username: username},
	}
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	reg, mr := newTestRegistry(t, model.KindAccount)
	ctx := context.Background()

	created, err := reg.Save(ctx, accountConfig("alice"), testNow)
	require.NoError(t, err)
	assert.True(t, created)

	assert.True(t, mr.Exists("account:acc_alice:config"))
	assert.True(t, mr.Exists("account:acc_alice:metrics"))
	ok, err := mr.SIsMember("accounts:active", "acc_alice")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = mr.SIsMember("accounts:all", "acc_alice")
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := reg.Load(ctx, "acc_alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Config.Account.Username)
	assert.Equal(t, "2026-03-02", res.Metrics.UsageDay)
	assert.Zero(t, res.Metrics.TotalRequests)
}

func TestRegistry_SaveIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t, model.KindAccount)
	ctx := context.Background()

	_, err := reg.Save(ctx, accountConfig("alice"), testNow)
	require.NoError(t, err)
	_, err = reg.RecordError(ctx, "acc_alice", "boom")
	require.NoError(t, err)
	require.NoError(t, reg.SetStatus(ctx, "acc_alice", model.StatusMaintenance))

	updated := accountConfig("alice")
	updated.Priority = model.PriorityHigh
	created, err := reg.Save(ctx, updated, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)

	total, err := reg.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	res, err := reg.Load(ctx, "acc_alice")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, res.Config.Priority, "config fields are upserted")
	assert.Equal(t, model.StatusMaintenance, res.Config.Status, "status survives re-add")
	assert.Equal(t, int64(1), res.Metrics.FailedRequests, "metrics survive re-add")

	active, err := reg.CountPartition(ctx, model.StatusActive)
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestRegistry_SaveRejectsForeignKind(t *testing.T) {
	reg, _ := newTestRegistry(t, model.KindProxy)

	_, err := reg.Save(context.Background(), accountConfig("alice"), testNow)
	assert.True(t, errors.Is(err, model.ErrInvalidConfig))
}

func TestRegistry_LoadNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t, model.KindAccount)

	_, err := reg.Load(context.Background(), "acc_ghost")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRegistry_LoadManyIsolatesBadRecords(t *testing.T) {
	reg, mr := newTestRegistry(t, model.KindAccount)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := reg.Save(ctx, accountConfig(name), testNow)
		require.NoError(t, err)
	}
	mr.HSet("account:acc_b:config", "priority", "urgent")
	mr.Del("account:acc_c:metrics")

	results, err := reg.LoadMany(ctx, []string{"acc_a", "acc_b", "acc_c", "acc_d"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Resource)
	assert.True(t, errors.Is(results[1].Err, model.ErrMalformedRecord))
	assert.True(t, errors.Is(results[2].Err, model.ErrMalformedRecord))
	assert.True(t, errors.Is(results[3].Err, model.ErrNotFound))
}

func TestRegistry_UsageRollsOverByDay(t *testing.T) {
	reg, _ := newTestRegistry(t, model.KindAccount)
	ctx := context.Background()

	_, err := reg.Save(ctx, accountConfig("alice"), testNow)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		usage, err := reg.RecordUsage(ctx, "acc_alice", testNow)
		require.NoError(t, err)
		assert.Equal(t, int64(i), usage)
	}

	tomorrow := testNow.Add(24 * time.Hour)
	usage, err := reg.RecordUsage(ctx, "acc_alice", tomorrow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage)

	res, err := reg.Load(ctx, "acc_alice")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", res.Metrics.UsageDay)
	require.NotNil(t, res.Metrics.LastUsed)
	assert.True(t, res.Metrics.LastUsed.Equal(tomorrow))

	usage, err = reg.RollUsageDay(ctx, "acc_alice", "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage, "same day keeps the counter")

	usage, err = reg.RollUsageDay(ctx, "acc_alice", "2026-03-04")
	require.NoError(t, err)
	assert.Zero(t, usage)
	res, err = reg.Load(ctx, "acc_alice")
	require.NoError(t, err)
	assert.Zero(t, res.Metrics.DailyUsage)
	assert.Equal(t, "2026-03-04", res.Metrics.UsageDay)

	_, err = reg.RecordUsage(ctx, "acc_alice", testNow.Add(48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, reg.ReleaseUsage(ctx, "acc_alice", testNow.Add(48*time.Hour)))
	res, err = reg.Load(ctx, "acc_alice")
	require.NoError(t, err)
	assert.Zero(t, res.Metrics.DailyUsage)
}

func TestRegistry_ReleaseUsageAfterRollover(t *testing.T) {
	reg, _ := newTestRegistry(t, model.KindAccount)
	ctx := context.Background()

	_, err := reg.Save(ctx, accountConfig("alice"), testNow)
	require.NoError(t, err)
	_, err = reg.RecordUsage(ctx, "acc_alice", testNow)
	require.NoError(t, err)

	// The rollover job runs between the increment and the release
	_, err = reg.RollUsageDay(ctx, "acc_alice", model.UsageDay(testNow.Add(24*time.Hour)))
	require.NoError(t, err)
	require.NoError(t, reg.ReleaseUsage(ctx, "acc_alice", testNow))

	res, err := reg.Load(ctx, "acc_alice")
	require.NoError(t, err, "record must stay readable")
	assert.Zero(t, res.Metrics.DailyUsage)

	// A release on the same day never drives the counter negative
	require.NoError(t, reg.ReleaseUsage(ctx, "acc_alice", testNow.Add(24*time.Hour)))
	res, err = reg.Load(ctx, "acc_alice")
	require.NoError(t, err)
	assert.Zero(t, res.Metrics.DailyUsage)
}

func TestRegistry_ConcurrentSaveCreatesOnce(t *testing.T) {
	reg, mr := newTestRegistry(t, model.KindAccount)
	ctx := context.Background()

	const writers = 8
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := reg.Save(ctx, accountConfig("alice"), testNow)
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	members, err := mr.Members("accounts:all")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc_alice"}, members)
	members, err = mr.Members("accounts:active")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc_alice"}, members)
}

func TestRegistry_OutcomeCounters(t *testing.T) {
	reg, _ := newTestRegistry(t, model.KindProxy)
	ctx := context.Background()

	cfg := &model.ResourceConfig{
		ID: "socks5_h_1080", Kind: model.KindProxy, Status: model.StatusActive,
		Priority: model.PriorityNormal, Region: model.RegionGlobal,
		DailyLimit: 10, MaxConsecutiveErrors: 5,
		Proxy: &model.ProxyEndpoint{Host: "h", Port: 1080},
	}
	_, err := reg.Save(ctx, cfg, testNow)
	require.NoError(t, err)

	streak, err := reg.RecordError(ctx, cfg.ID, "refused")
	require.NoError(t, err)
	assert.Equal(t, int64(1), streak)
	streak, err = reg.RecordError(ctx, cfg.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), streak)

	require.NoError(t, reg.RecordSuccess(ctx, cfg.ID, testNow))
	avg, err := reg.RecordLatency(ctx, cfg.ID, 2.0, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, avg, 1e-9)

	res, err := reg.Load(ctx, cfg.ID)
	require.NoError(t, err)
	m := res.Metrics
	assert.Equal(t, int64(3), m.TotalRequests)
	assert.Equal(t, int64(1), m.SuccessfulRequests)
	assert.Equal(t, int64(2), m.FailedRequests)
	assert.Zero(t, m.ConsecutiveErrors)
	assert.Equal(t, "refused", m.LastError, "empty reason keeps the last one")
	require.NotNil(t, m.LastSuccess)
	assert.InDelta(t, 0.4, m.AverageResponseTime, 1e-9)
}

func TestRegistry_SetStatusAndRemove(t *testing.T) {
	reg, mr := newTestRegistry(t, model.KindAccount)
	ctx := context.Background()

	_, err := reg.Save(ctx, accountConfig("alice"), testNow)
	require.NoError(t, err)

	require.NoError(t, reg.SetStatus(ctx, "acc_alice", model.StatusSuspended))
	active, err := reg.ListPartition(ctx, model.StatusActive)
	require.NoError(t, err)
	assert.Empty(t, active)
	suspended, err := reg.ListPartition(ctx, model.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc_alice"}, suspended)
	assert.Equal(t, "suspended", mr.HGet("account:acc_alice:config", "status"))

	require.NoError(t, reg.Remove(ctx, "acc_alice"))
	assert.False(t, mr.Exists("account:acc_alice:config"))
	assert.False(t, mr.Exists("account:acc_alice:metrics"))
	ids, err := reg.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	exists, err := reg.Exists(ctx, "acc_alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegistry_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	reg := New(redisstore.NewMetricsStore(redisstore.NewRedisClientFrom(client)), model.KindAccount, "rp:")

	_, err := reg.Save(context.Background(), accountConfig("alice"), testNow)
	require.NoError(t, err)
	assert.True(t, mr.Exists("rp:account:acc_alice:config"))
	assert.Equal(t, "rp:accounts:active", reg.PartitionKey(model.StatusActive))
}
