// Package pool selects, accounts for and demotes pooled resources of one kind.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rotapool/internal/model"
	"rotapool/internal/registry"
	"rotapool/internal/scoring"
	"rotapool/pkg/config"
	"rotapool/pkg/interfaces"
	"rotapool/pkg/logger"
	"rotapool/pkg/status"
)

const defaultProbeConcurrency = 10

// Options pool policy
type Options struct {
	HealthThreshold      float64
	HealthGate           *bool // nil uses the kind default
	AcquireTimeout       time.Duration
	DailyLimit           int // default for new resources
	MaxConsecutiveErrors int // default for new resources
	ProbeConcurrency     int
}

// OptionsFromConfig maps a pool config section to options
func OptionsFromConfig(cfg config.PoolConfig) Options {
	return Options{
		HealthThreshold:      cfg.HealthThreshold,
		HealthGate:           cfg.HealthGate,
		AcquireTimeout:       cfg.AcquireTimeout,
		DailyLimit:           cfg.DailyLimit,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		ProbeConcurrency:     cfg.Probe.Concurrency,
	}
}

// Manager caller-facing API of one resource pool.
// It keeps no resource state; every call reads and writes through the registry.
type Manager struct {
	registry *registry.Registry
	strategy scoring.Strategy
	adapter  adapter

	probe  interfaces.CapabilityProbe // Optional, run when a resource is first added
	events interfaces.EventRecorder   // Optional

	reasons *status.Sanitizer

	healthThreshold      float64
	healthGate           bool
	acquireTimeout       time.Duration
	dailyLimit           int
	maxConsecutiveErrors int
	probeConcurrency     int

	now func() time.Time
}

// NewManager creates a pool manager over reg
func NewManager(reg *registry.Registry, opts Options) *Manager {
	strategy := scoring.ForKind(reg.Kind())

	m := &Manager{
		registry:             reg,
		strategy:             strategy,
		adapter:              adapterFor(reg.Kind()),
		healthThreshold:      opts.HealthThreshold,
		healthGate:           strategy.GatesOnHealth(),
		acquireTimeout:       opts.AcquireTimeout,
		dailyLimit:           opts.DailyLimit,
		maxConsecutiveErrors: opts.MaxConsecutiveErrors,
		probeConcurrency:     opts.ProbeConcurrency,
		reasons:              status.NewSanitizer(),
		now:                  time.Now,
	}
	if opts.HealthGate != nil {
		m.healthGate = *opts.HealthGate
	}
	if m.healthThreshold <= 0 {
		m.healthThreshold = scoring.DefaultHealthThreshold
	}
	if m.dailyLimit <= 0 {
		m.dailyLimit = model.DefaultDailyLimit
	}
	if m.maxConsecutiveErrors <= 0 {
		m.maxConsecutiveErrors = model.DefaultMaxConsecutiveErrors
	}
	if m.probeConcurrency <= 0 {
		m.probeConcurrency = defaultProbeConcurrency
	}
	return m
}

// SetProbe sets the capability probe run on newly added resources
func (m *Manager) SetProbe(probe interfaces.CapabilityProbe) {
	m.probe = probe
}

// SetEventRecorder sets the lifecycle event sink
func (m *Manager) SetEventRecorder(events interfaces.EventRecorder) {
	m.events = events
}

// Kind returns the resource kind of the pool
func (m *Manager) Kind() model.ResourceKind {
	return m.strategy.Kind()
}

// HealthGate reports whether Acquire excludes unhealthy candidates
func (m *Manager) HealthGate() bool {
	return m.healthGate
}

// Registry exposes the underlying registry to background jobs
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// prepare validates cfg and fills defaults, returning a copy
func (m *Manager) prepare(cfg *model.ResourceConfig) (*model.ResourceConfig, error) {
	if cfg == nil {
		return nil, invalid("config is nil")
	}

	c := *cfg
	if c.Account != nil {
		cred := *c.Account
		c.Account = &cred
	}
	if c.Proxy != nil {
		ep := *c.Proxy
		c.Proxy = &ep
	}

	if c.Kind == "" {
		c.Kind = m.Kind()
	}
	if c.Kind != m.Kind() {
		return nil, invalid("kind %s does not belong to the %s pool", c.Kind, m.Kind())
	}
	if err := m.adapter.validate(&c); err != nil {
		return nil, err
	}

	id := m.adapter.deriveID(&c)
	if c.ID != "" && c.ID != id {
		return nil, invalid("id %q does not match derived id %q", c.ID, id)
	}
	c.ID = id

	if c.Status == "" {
		c.Status = model.StatusActive
	}
	if _, err := model.ParseStatus(string(c.Status)); err != nil {
		return nil, invalid("%v", err)
	}
	if c.Priority == "" {
		c.Priority = model.PriorityNormal
	}
	if _, err := model.ParsePriority(string(c.Priority)); err != nil {
		return nil, invalid("%v", err)
	}
	if c.Region == "" {
		c.Region = model.RegionGlobal
	}
	if _, err := model.ParseRegion(string(c.Region)); err != nil {
		return nil, invalid("%v", err)
	}

	if c.DailyLimit < 0 || c.MaxConsecutiveErrors < 0 {
		return nil, invalid("daily_limit and max_consecutive_errors must be positive")
	}
	if c.DailyLimit == 0 {
		c.DailyLimit = m.dailyLimit
	}
	if c.MaxConsecutiveErrors == 0 {
		c.MaxConsecutiveErrors = m.maxConsecutiveErrors
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}
	return &c, nil
}

// AddResource registers cfg and returns its derived id. Adding an existing id updates its
// config but keeps status and metrics. A new resource is probed first when a probe is set.
func (m *Manager) AddResource(ctx context.Context, cfg *model.ResourceConfig) (string, error) {
	c, err := m.prepare(cfg)
	if err != nil {
		return "", err
	}

	target := c.Status
	probing := m.probe != nil && target == model.StatusActive
	if probing {
		c.Status = model.StatusTesting
	}

	created, err := m.registry.Save(ctx, c, m.now())
	if err != nil {
		return "", fmt.Errorf("failed to add %s %s: %w", m.Kind(), c.ID, err)
	}
	if !created {
		logger.DebugCtx(ctx, "%s %s already registered, config updated", m.Kind(), c.ID)
		return c.ID, nil
	}

	logger.InfoCtx(ctx, "%s %s added, status: %s, region: %s, priority: %s",
		m.Kind(), c.ID, c.Status, c.Region, c.Priority)
	m.emit(ctx, &interfaces.ResourceEvent{
		ResourceID: c.ID,
		Type:       interfaces.EventResourceAdded,
		ToStatus:   c.Status,
	})

	if probing {
		if err := m.runProbe(ctx, c, target); err != nil {
			return c.ID, err
		}
	}
	return c.ID, nil
}

// runProbe moves a testing resource to target or to the failure status
func (m *Manager) runProbe(ctx context.Context, cfg *model.ResourceConfig, target model.ResourceStatus) error {
	healthy, latency := m.probe.Probe(ctx, cfg)

	next := target
	reason := ""
	if !healthy {
		next = model.StatusError
		reason = "capability probe failed"
	} else if m.overErrorLimit(ctx, cfg) {
		// Errors reported while the probe ran still count
		next = m.strategy.FailureStatus()
		reason = "too many errors while testing"
	}

	if healthy && latency > 0 && m.adapter.tracksLatency() {
		if _, err := m.registry.RecordLatency(ctx, cfg.ID, latency.Seconds(), scoring.LatencySmoothing); err != nil {
			logger.WarnCtx(ctx, "failed to record probe latency of %s: %v", cfg.ID, err)
		}
	}

	if err := m.registry.SetStatus(ctx, cfg.ID, next); err != nil {
		return fmt.Errorf("failed to apply probe result to %s: %w", cfg.ID, err)
	}
	// A demotion from testing may have been overwritten by the move above
	if next == target && m.overErrorLimit(ctx, cfg) {
		next = m.strategy.FailureStatus()
		reason = "too many errors while testing"
		if err := m.registry.SetStatus(ctx, cfg.ID, next); err != nil {
			return fmt.Errorf("failed to demote %s after probe: %w", cfg.ID, err)
		}
	}

	if next == target {
		logger.InfoCtx(ctx, "%s %s passed probe in %v", m.Kind(), cfg.ID, latency)
	} else {
		logger.WarnCtx(ctx, "%s %s failed probe, moved to %s", m.Kind(), cfg.ID, next)
	}

	event := &interfaces.ResourceEvent{
		ResourceID: cfg.ID,
		Type:       interfaces.EventResourceProbed,
		FromStatus: model.StatusTesting,
		ToStatus:   next,
		Reason:     reason,
	}
	if latency > 0 {
		ms := latency.Milliseconds()
		event.LatencyMs = &ms
	}
	m.emit(ctx, event)
	return nil
}

// overErrorLimit reports whether the stored error streak of cfg reached its threshold
func (m *Manager) overErrorLimit(ctx context.Context, cfg *model.ResourceConfig) bool {
	res, err := m.registry.Load(ctx, cfg.ID)
	if err != nil {
		logger.WarnCtx(ctx, "failed to read error streak of %s: %v", cfg.ID, err)
		return false
	}
	return res.Metrics.ConsecutiveErrors >= int64(cfg.MaxConsecutiveErrors)
}

// AddResourceBatch adds every config, probing with bounded concurrency.
// The result maps each id to whether it was added; configs that fail validation
// appear as error_{identity} with false.
func (m *Manager) AddResourceBatch(ctx context.Context, cfgs []*model.ResourceConfig) map[string]bool {
	results := make(map[string]bool, len(cfgs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, m.probeConcurrency)

	for _, cfg := range cfgs {
		cfg := cfg
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			id, err := m.AddResource(ctx, cfg)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case id == "":
				logger.ErrorCtx(ctx, "failed to add %s %s: %v", m.Kind(), m.adapter.identity(cfg), err)
				results["error_"+m.adapter.identity(cfg)] = false
			case err != nil:
				logger.ErrorCtx(ctx, "failed to add %s %s: %v", m.Kind(), id, err)
				results[id] = false
			default:
				results[id] = true
			}
		}()
	}
	wg.Wait()

	added := 0
	for _, ok := range results {
		if ok {
			added++
		}
	}
	logger.InfoCtx(ctx, "%s batch add completed: %d/%d successful", m.Kind(), added, len(cfgs))
	return results
}

// GetResource returns the stored state of id with derived scores.
// Proxy passwords are masked; Acquire is the only way to obtain them.
func (m *Manager) GetResource(ctx context.Context, id string) (*model.ResourceDetail, error) {
	res, err := m.registry.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	eval := scoring.Evaluate(m.strategy, res, m.now())
	return &model.ResourceDetail{
		Config:      m.adapter.redact(res.Config),
		Metrics:     res.Metrics,
		SuccessRate: res.Metrics.SuccessRate(),
		HealthScore: eval.Health,
		Healthy:     scoring.IsHealthy(eval.Health, m.healthThreshold),
		DailyUsage:  eval.DailyUsage,
	}, nil
}

// RemoveResource deletes id with its metrics and partition memberships
func (m *Manager) RemoveResource(ctx context.Context, id string) error {
	exists, err := m.registry.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, m.Kind(), id)
	}

	if err := m.registry.Remove(ctx, id); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "%s %s removed", m.Kind(), id)
	m.emit(ctx, &interfaces.ResourceEvent{ResourceID: id, Type: interfaces.EventResourceRemoved})
	return nil
}

// emit records a lifecycle event. Failures are logged only.
func (m *Manager) emit(ctx context.Context, event *interfaces.ResourceEvent) {
	if m.events == nil {
		return
	}
	event.Kind = m.Kind()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}
	if err := m.events.RecordEvent(ctx, event); err != nil {
		logger.WarnCtx(ctx, "failed to record %s event for %s: %v", event.Type, event.ResourceID, err)
	}
}

// storeError marks err as a store failure unless it already is one
func storeError(op string, err error) error {
	if errors.Is(err, model.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrStoreUnavailable, op, err)
}
