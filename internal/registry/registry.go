// Package registry maps resource ids to their persisted config and metrics hashes
// and maintains the status partition sets.
package registry

import (
	"context"
	"fmt"
	"time"

	"rotapool/internal/model"
	"rotapool/pkg/interfaces"
)

// Key layout, per kind:
//
//	{prefix}{kind}:{id}:config    config hash
//	{prefix}{kind}:{id}:metrics   metrics hash
//	{prefix}{plural}:{status}     status partition set
//	{prefix}{plural}:all          every registered id
const (
	configSuffix  = ":config"
	metricsSuffix = ":metrics"
	allPartition  = "all"
)

var pluralKinds = map[model.ResourceKind]string{
	model.KindAccount: "accounts",
	model.KindProxy:   "proxies",
}

// Registry owns no state beyond the store reference
type Registry struct {
	store  interfaces.MetricsStore
	kind   model.ResourceKind
	prefix string
}

// LoadResult outcome of loading one id in a batch
type LoadResult struct {
	ID       string
	Resource *model.Resource
	Err      error
}

// New creates a registry for one resource kind
func New(store interfaces.MetricsStore, kind model.ResourceKind, keyPrefix string) *Registry {
	return &Registry{
		store:  store,
		kind:   kind,
		prefix: keyPrefix,
	}
}

// Kind returns the resource kind this registry serves
func (r *Registry) Kind() model.ResourceKind {
	return r.kind
}

func (r *Registry) configKey(id string) string {
	return r.prefix + string(r.kind) + ":" + id + configSuffix
}

func (r *Registry) metricsKey(id string) string {
	return r.prefix + string(r.kind) + ":" + id + metricsSuffix
}

// PartitionKey returns the set key of a status partition
func (r *Registry) PartitionKey(status model.ResourceStatus) string {
	return r.prefix + pluralKinds[r.kind] + ":" + string(status)
}

func (r *Registry) allKey() string {
	return r.prefix + pluralKinds[r.kind] + ":" + allPartition
}

func (r *Registry) statusKeys() []string {
	keys := make([]string, 0, len(model.AllStatuses))
	for _, st := range model.AllStatuses {
		keys = append(keys, r.PartitionKey(st))
	}
	return keys
}

// Exists reports whether id is registered
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	return r.store.SetIsMember(ctx, r.allKey(), id)
}

// Save upserts a config. A new id gets zero metrics and joins the partition of cfg.Status.
// An existing id keeps its stored status, creation time and metrics.
// Creation is claimed by joining the all set, so concurrent saves of one id create it once.
func (r *Registry) Save(ctx context.Context, cfg *model.ResourceConfig, now time.Time) (bool, error) {
	if cfg.Kind != r.kind {
		return false, fmt.Errorf("%w: kind %s does not belong to the %s registry", model.ErrInvalidConfig, cfg.Kind, r.kind)
	}

	added, err := r.store.SetAdd(ctx, r.allKey(), cfg.ID)
	if err != nil {
		return false, fmt.Errorf("failed to index resource: %w", err)
	}

	fields := EncodeConfig(cfg)
	if added == 0 {
		delete(fields, fieldStatus)
		delete(fields, fieldCreatedAt)
		if err := r.store.HashSet(ctx, r.configKey(cfg.ID), fields); err != nil {
			return false, fmt.Errorf("failed to update config: %w", err)
		}
		return false, nil
	}

	// Metrics before config: a partition scan sees either nothing or a complete record
	metrics := &model.ResourceMetrics{UsageDay: model.UsageDay(now)}
	if err := r.store.HashSet(ctx, r.metricsKey(cfg.ID), EncodeMetrics(metrics)); err != nil {
		return false, r.abandon(ctx, cfg.ID, fmt.Errorf("failed to initialize metrics: %w", err))
	}
	if err := r.store.HashSet(ctx, r.configKey(cfg.ID), fields); err != nil {
		return false, r.abandon(ctx, cfg.ID, fmt.Errorf("failed to save config: %w", err))
	}
	if err := r.store.SetMove(ctx, cfg.ID, r.statusKeys(), r.PartitionKey(cfg.Status)); err != nil {
		return false, r.abandon(ctx, cfg.ID, fmt.Errorf("failed to index resource: %w", err))
	}
	return true, nil
}

// abandon drops the creation claim on id so a retry creates it again
func (r *Registry) abandon(ctx context.Context, id string, cause error) error {
	if err := r.store.SetRemove(ctx, r.allKey(), id); err != nil {
		return fmt.Errorf("%w (release claim: %v)", cause, err)
	}
	return cause
}

// Load retrieves config and metrics of one resource
func (r *Registry) Load(ctx context.Context, id string) (*model.Resource, error) {
	results, err := r.LoadMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return results[0].Resource, results[0].Err
}

// LoadMany retrieves several resources in one round trip. A bad record only fails its own entry.
func (r *Registry) LoadMany(ctx context.Context, ids []string) ([]LoadResult, error) {
	keys := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		keys = append(keys, r.configKey(id), r.metricsKey(id))
	}

	hashes, err := r.store.HashGetAllBatch(ctx, keys)
	if err != nil {
		return nil, err
	}

	results := make([]LoadResult, len(ids))
	for i, id := range ids {
		results[i] = r.decode(id, hashes[2*i], hashes[2*i+1])
	}
	return results, nil
}

func (r *Registry) decode(id string, configHash, metricsHash interfaces.HashResult) LoadResult {
	res := LoadResult{ID: id}

	if configHash.Err != nil {
		res.Err = configHash.Err
		return res
	}
	if metricsHash.Err != nil {
		res.Err = metricsHash.Err
		return res
	}
	if len(configHash.Fields) == 0 {
		res.Err = fmt.Errorf("%w: %s %s", model.ErrNotFound, r.kind, id)
		return res
	}
	if len(metricsHash.Fields) == 0 {
		res.Err = fmt.Errorf("%w: metrics missing for %s", model.ErrMalformedRecord, id)
		return res
	}

	cfg, err := DecodeConfig(configHash.Fields)
	if err != nil {
		res.Err = fmt.Errorf("config of %s: %w", id, err)
		return res
	}
	if cfg.Kind != r.kind || cfg.ID != id {
		res.Err = fmt.Errorf("%w: record %s holds %s/%s", model.ErrMalformedRecord, id, cfg.Kind, cfg.ID)
		return res
	}

	metrics, err := DecodeMetrics(metricsHash.Fields)
	if err != nil {
		res.Err = fmt.Errorf("metrics of %s: %w", id, err)
		return res
	}

	res.Resource = &model.Resource{Config: cfg, Metrics: metrics}
	return res
}

// ListPartition lists ids in a status partition. Order is unspecified.
func (r *Registry) ListPartition(ctx context.Context, status model.ResourceStatus) ([]string, error) {
	return r.store.SetMembers(ctx, r.PartitionKey(status))
}

// ListAll lists every registered id
func (r *Registry) ListAll(ctx context.Context) ([]string, error) {
	return r.store.SetMembers(ctx, r.allKey())
}

// CountPartition returns the size of a status partition
func (r *Registry) CountPartition(ctx context.Context, status model.ResourceStatus) (int, error) {
	n, err := r.store.SetCount(ctx, r.PartitionKey(status))
	return int(n), err
}

// CountAll returns the number of registered ids
func (r *Registry) CountAll(ctx context.Context) (int, error) {
	n, err := r.store.SetCount(ctx, r.allKey())
	return int(n), err
}

// RecordUsage bumps the day-scoped usage counter and stamps last_used. Returns the new usage.
func (r *Registry) RecordUsage(ctx context.Context, id string, now time.Time) (int64, error) {
	key := r.metricsKey(id)
	usage, err := r.store.HashIncrOnDay(ctx, key, fieldDailyUsage, fieldUsageDay, model.UsageDay(now), 1)
	if err != nil {
		return 0, err
	}
	if err := r.store.HashSet(ctx, key, map[string]string{fieldLastUsed: formatTime(&now)}); err != nil {
		return usage, err
	}
	return usage, nil
}

// ReleaseUsage gives back one unit of usage taken at now by a selection that lost a quota race.
// Nothing is released once the counter has rolled over to another day.
func (r *Registry) ReleaseUsage(ctx context.Context, id string, now time.Time) error {
	_, err := r.store.HashDecrOnDay(ctx, r.metricsKey(id), fieldDailyUsage, fieldUsageDay, model.UsageDay(now), 1)
	return err
}

// RollUsageDay zeroes usage carried over from an earlier day and stamps day.
// Atomic with concurrent RecordUsage; an unstamped counter is adopted into day as is.
func (r *Registry) RollUsageDay(ctx context.Context, id, day string) (int64, error) {
	return r.store.HashIncrOnDay(ctx, r.metricsKey(id), fieldDailyUsage, fieldUsageDay, day, 0)
}

// RecordSuccess counts a successful request and clears the error streak
func (r *Registry) RecordSuccess(ctx context.Context, id string, now time.Time) error {
	key := r.metricsKey(id)
	if _, err := r.store.HashIncr(ctx, key, fieldTotalRequests, 1); err != nil {
		return err
	}
	if _, err := r.store.HashIncr(ctx, key, fieldSuccessfulRequests, 1); err != nil {
		return err
	}
	return r.store.HashSet(ctx, key, map[string]string{
		fieldConsecutiveErrors: "0",
		fieldLastSuccess:       formatTime(&now),
	})
}

// RecordLatency folds a response time sample (seconds) into the smoothed average
func (r *Registry) RecordLatency(ctx context.Context, id string, seconds, weight float64) (float64, error) {
	return r.store.HashBlend(ctx, r.metricsKey(id), fieldAverageResponseTime, seconds, weight)
}

// RecordError counts a failed request and returns the new consecutive error count
func (r *Registry) RecordError(ctx context.Context, id, reason string) (int64, error) {
	key := r.metricsKey(id)
	if _, err := r.store.HashIncr(ctx, key, fieldTotalRequests, 1); err != nil {
		return 0, err
	}
	if _, err := r.store.HashIncr(ctx, key, fieldFailedRequests, 1); err != nil {
		return 0, err
	}
	streak, err := r.store.HashIncr(ctx, key, fieldConsecutiveErrors, 1)
	if err != nil {
		return 0, err
	}
	if reason != "" {
		if err := r.store.HashSet(ctx, key, map[string]string{fieldLastError: reason}); err != nil {
			return streak, err
		}
	}
	return streak, nil
}

// ResetErrorStreak sets consecutive errors back to zero
func (r *Registry) ResetErrorStreak(ctx context.Context, id string) error {
	return r.store.HashSet(ctx, r.metricsKey(id), map[string]string{fieldConsecutiveErrors: "0"})
}

// SetStatus moves id into the partition of status and records it on the config
func (r *Registry) SetStatus(ctx context.Context, id string, status model.ResourceStatus) error {
	if err := r.store.SetMove(ctx, id, r.statusKeys(), r.PartitionKey(status)); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", id, status, err)
	}
	if err := r.store.HashSet(ctx, r.configKey(id), map[string]string{fieldStatus: string(status)}); err != nil {
		return fmt.Errorf("failed to update status of %s: %w", id, err)
	}
	return nil
}

// Remove deletes both hashes and every partition membership
func (r *Registry) Remove(ctx context.Context, id string) error {
	for _, key := range append(r.statusKeys(), r.allKey()) {
		if err := r.store.SetRemove(ctx, key, id); err != nil {
			return fmt.Errorf("failed to unindex %s: %w", id, err)
		}
	}
	if err := r.store.Delete(ctx, r.configKey(id), r.metricsKey(id)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}
