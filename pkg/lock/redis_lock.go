// Package lock provides a Redis lease lock so only one instance runs a background job at a time.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rotapool/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultTTL         = 30 * time.Second
	acquireTimeout     = 5 * time.Second
	renewInterval      = 10 * time.Second
	maxHoldDuration    = 2 * time.Minute
	defaultLockKeyName = "rotapool:jobs-lock"
)

// Only the holder's token may release or extend the lease
var (
	unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
	renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)
)

// DistributedLock lease lock
type DistributedLock interface {
	// TryLock acquires the lock without waiting for the current holder
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock if still held by this instance
	Unlock(ctx context.Context) error

	// IsHeld reports whether this instance believes it holds the lock
	IsHeld() bool
}

// RedisLock SET NX PX lock renewed in the background while held
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	mu           sync.Mutex
	held         bool
	acquiredAt   time.Time
	stopRenew    chan struct{}
	renewStopped bool
}

var _ DistributedLock = (*RedisLock)(nil)

// NewRedisLock creates a lock on key. A nil client yields a lock that always succeeds (single-instance mode).
func NewRedisLock(client *redis.Client, key string) *RedisLock {
	if key == "" {
		key = defaultLockKeyName
	}
	return &RedisLock{
		client: client,
		key:    key,
		token:  uuid.New().String(),
		ttl:    defaultTTL,
	}
}

// WithTTL overrides the lease duration
func (l *RedisLock) WithTTL(ttl time.Duration) *RedisLock {
	if ttl > 0 {
		l.ttl = ttl
	}
	return l
}

// TryLock implements DistributedLock
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		l.mu.Lock()
		l.held = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		logger.DebugCtx(ctx, "lock %s held by another instance", l.key)
		return false, nil
	}

	l.mu.Lock()
	l.held = true
	l.acquiredAt = time.Now()
	// Fresh channel per acquisition so TryLock/Unlock can cycle
	l.stopRenew = make(chan struct{})
	l.renewStopped = false
	stop := l.stopRenew
	l.mu.Unlock()

	go l.renew(ctx, stop)

	logger.DebugCtx(ctx, "lock %s acquired", l.key)
	return true, nil
}

// Unlock implements DistributedLock
func (l *RedisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held && (l.stopRenew == nil || l.renewStopped) {
		l.mu.Unlock()
		return nil
	}
	l.held = false
	if l.stopRenew != nil && !l.renewStopped {
		l.renewStopped = true
		close(l.stopRenew)
	}
	l.mu.Unlock()

	if l.client == nil {
		return nil
	}

	released, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if released == 1 {
		logger.DebugCtx(ctx, "lock %s released", l.key)
	} else {
		logger.WarnCtx(ctx, "lock %s was already expired or taken over", l.key)
	}
	return nil
}

// IsHeld implements DistributedLock
func (l *RedisLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *RedisLock) renew(ctx context.Context, stop <-chan struct{}) {
	interval := renewInterval
	if l.ttl/3 < interval {
		interval = l.ttl / 3
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			held := time.Since(l.acquiredAt)
			l.mu.Unlock()

			// Leave the release to Unlock; only stop extending
			if held > maxHoldDuration {
				logger.WarnCtx(ctx, "lock %s held for %.0fs, no longer renewing", l.key, held.Seconds())
				l.lose()
				return
			}

			ok, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
			if err != nil {
				logger.WarnCtx(ctx, "failed to renew lock %s: %v", l.key, err)
				l.lose()
				return
			}
			if ok == 0 {
				logger.WarnCtx(ctx, "lock %s lost before renewal", l.key)
				l.lose()
				return
			}
		}
	}
}

func (l *RedisLock) lose() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
}
