package redis

import (
	"context"
	"fmt"
	"strconv"

	"rotapool/internal/model"
	"rotapool/pkg/interfaces"

	"github.com/go-redis/redis/v8"
)

// incrOnDayScript resets the counter when the stored day stamp belongs to another day.
// An empty stamp keeps the counter as is.
var incrOnDayScript = redis.NewScript(`
local stamp = redis.call("HGET", KEYS[1], ARGV[2])
if stamp and stamp ~= "" and stamp ~= ARGV[3] then
	redis.call("HSET", KEYS[1], ARGV[1], 0)
end
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
return redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[4])
`)

// decrOnDayScript gives back usage of the stamped day only, clamping at zero.
// A counter already rolled over to another day is left alone.
var decrOnDayScript = redis.NewScript(`
local cur = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0") or 0
if redis.call("HGET", KEYS[1], ARGV[2]) ~= ARGV[3] then
	return cur
end
local v = cur - tonumber(ARGV[4])
if v < 0 then
	v = 0
end
redis.call("HSET", KEYS[1], ARGV[1], v)
return v
`)

// blendScript folds a sample into an exponentially smoothed float field.
// The result is returned as a string so Redis does not truncate it to an integer reply.
var blendScript = redis.NewScript(`
local cur = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0") or 0
local w = tonumber(ARGV[3])
local v = cur * (1 - w) + tonumber(ARGV[2]) * w
local s = string.format("%.17g", v)
redis.call("HSET", KEYS[1], ARGV[1], s)
return s
`)

// MetricsStore Redis implementation of interfaces.MetricsStore
type MetricsStore struct {
	redis *redis.Client
}

var _ interfaces.MetricsStore = (*MetricsStore)(nil)

// NewMetricsStore creates a Redis-backed metrics store
func NewMetricsStore(redisClient *RedisClient) *MetricsStore {
	return &MetricsStore{
		redis: redisClient.GetClient(),
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrStoreUnavailable, op, err)
}

// HashGetAll returns all fields of a hash
func (s *MetricsStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable("hgetall "+key, err)
	}
	return fields, nil
}

// HashGetAllBatch fetches several hashes using a single pipeline
func (s *MetricsStore) HashGetAllBatch(ctx context.Context, keys []string) ([]interfaces.HashResult, error) {
	if len(keys) == 0 {
		return []interfaces.HashResult{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, 0, len(keys))
	for _, key := range keys {
		cmds = append(cmds, pipe.HGetAll(ctx, key))
	}

	_, execErr := pipe.Exec(ctx)
	if execErr != nil && ctx.Err() != nil {
		return nil, unavailable("pipeline hgetall", execErr)
	}

	results := make([]interfaces.HashResult, len(keys))
	failed := 0
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		results[i] = interfaces.HashResult{Key: keys[i], Fields: fields}
		if err != nil {
			results[i].Err = unavailable("hgetall "+keys[i], err)
			failed++
		}
	}

	// Every command failing means the connection itself is gone
	if failed == len(keys) && execErr != nil {
		return nil, unavailable("pipeline hgetall", execErr)
	}

	return results, nil
}

// HashSet sets the given fields
func (s *MetricsStore) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		values = append(values, k, v)
	}
	if err := s.redis.HSet(ctx, key, values...).Err(); err != nil {
		return unavailable("hset "+key, err)
	}
	return nil
}

// HashIncr increments an integer field
func (s *MetricsStore) HashIncr(ctx context.Context, key, field string, delta int64) (int64, error) {
	v, err := s.redis.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, unavailable("hincrby "+key, err)
	}
	return v, nil
}

// HashIncrOnDay increments a day-scoped counter, rolling it over when the day changed
func (s *MetricsStore) HashIncrOnDay(ctx context.Context, key, field, stampField, day string, delta int64) (int64, error) {
	v, err := incrOnDayScript.Run(ctx, s.redis, []string{key}, field, stampField, day, delta).Int64()
	if err != nil {
		return 0, unavailable("incr on day "+key, err)
	}
	return v, nil
}

// HashDecrOnDay releases part of a day-scoped counter while it still belongs to day
func (s *MetricsStore) HashDecrOnDay(ctx context.Context, key, field, stampField, day string, delta int64) (int64, error) {
	v, err := decrOnDayScript.Run(ctx, s.redis, []string{key}, field, stampField, day, delta).Int64()
	if err != nil {
		return 0, unavailable("decr on day "+key, err)
	}
	return v, nil
}

// HashBlend folds a sample into a smoothed float field
func (s *MetricsStore) HashBlend(ctx context.Context, key, field string, sample, weight float64) (float64, error) {
	raw, err := blendScript.Run(ctx, s.redis, []string{key}, field,
		strconv.FormatFloat(sample, 'g', -1, 64),
		strconv.FormatFloat(weight, 'g', -1, 64)).Text()
	if err != nil {
		return 0, unavailable("blend "+key, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: blended value %q: %v", model.ErrMalformedRecord, raw, err)
	}
	return v, nil
}

// Delete removes keys
func (s *MetricsStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// SetAdd adds members to a set, returning the number newly added
func (s *MetricsStore) SetAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.redis.SAdd(ctx, key, toArgs(members)...).Result()
	if err != nil {
		return 0, unavailable("sadd "+key, err)
	}
	return n, nil
}

// SetRemove removes members from a set
func (s *MetricsStore) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	if err := s.redis.SRem(ctx, key, toArgs(members)...).Err(); err != nil {
		return unavailable("srem "+key, err)
	}
	return nil
}

// SetMembers lists set members
func (s *MetricsStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		return nil, unavailable("smembers "+key, err)
	}
	return members, nil
}

// SetCount returns set cardinality
func (s *MetricsStore) SetCount(ctx context.Context, key string) (int64, error) {
	n, err := s.redis.SCard(ctx, key).Result()
	if err != nil {
		return 0, unavailable("scard "+key, err)
	}
	return n, nil
}

// SetIsMember reports membership
func (s *MetricsStore) SetIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, unavailable("sismember "+key, err)
	}
	return ok, nil
}

// SetMove removes member from every set in from and adds it to to inside MULTI/EXEC
func (s *MetricsStore) SetMove(ctx context.Context, member string, from []string, to string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range from {
			if key == to {
				continue
			}
			pipe.SRem(ctx, key, member)
		}
		pipe.SAdd(ctx, to, member)
		return nil
	})
	if err != nil {
		return unavailable("move "+member+" to "+to, err)
	}
	return nil
}

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}
