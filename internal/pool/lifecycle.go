package pool

import (
	"context"
	"fmt"
	"time"

	"rotapool/internal/model"
	"rotapool/internal/scoring"
	"rotapool/pkg/interfaces"
	"rotapool/pkg/logger"
)

// ReportSuccess records a successful use of id and clears its error streak.
// For proxies a positive latency is folded into the smoothed response time.
func (m *Manager) ReportSuccess(ctx context.Context, id string, latency time.Duration) error {
	exists, err := m.registry.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, m.Kind(), id)
	}

	if err := m.registry.RecordSuccess(ctx, id, m.now()); err != nil {
		return fmt.Errorf("failed to record success of %s: %w", id, err)
	}

	if latency > 0 && m.adapter.tracksLatency() {
		avg, err := m.registry.RecordLatency(ctx, id, latency.Seconds(), scoring.LatencySmoothing)
		if err != nil {
			return fmt.Errorf("failed to record latency of %s: %w", id, err)
		}
		logger.DebugCtx(ctx, "%s %s success recorded, latency: %v, avg response time: %.3fs", m.Kind(), id, latency, avg)
		return nil
	}

	logger.DebugCtx(ctx, "%s %s success recorded", m.Kind(), id)
	return nil
}

// ReportError records a failed use of id. Reaching the resource's consecutive error
// threshold while active or testing demotes it to the kind's failure status.
// Credentials in reason are redacted before it is stored.
func (m *Manager) ReportError(ctx context.Context, id, reason string) error {
	res, err := m.registry.Load(ctx, id)
	if err != nil {
		return err
	}

	reason = m.reasons.Sanitize(reason)
	category := m.reasons.Classify(reason)

	streak, err := m.registry.RecordError(ctx, id, reason)
	if err != nil {
		return fmt.Errorf("failed to record error of %s: %w", id, err)
	}
	logger.WarnCtx(ctx, "%s %s error (%s): %s, consecutive: %d/%d",
		m.Kind(), id, category, reason, streak, res.Config.MaxConsecutiveErrors)

	if streak < int64(res.Config.MaxConsecutiveErrors) || !demotable(res.Config.Status) {
		return nil
	}

	failure := m.strategy.FailureStatus()
	if err := m.registry.SetStatus(ctx, id, failure); err != nil {
		return fmt.Errorf("failed to demote %s: %w", id, err)
	}

	logger.WarnCtx(ctx, "%s %s moved to %s after %d consecutive errors", m.Kind(), id, failure, streak)
	m.emit(ctx, &interfaces.ResourceEvent{
		ResourceID: id,
		Type:       interfaces.EventResourceDemoted,
		FromStatus: res.Config.Status,
		ToStatus:   failure,
		Reason:     fmt.Sprintf("too many errors: %s", reason),
		Category:   string(category),
	})
	return nil
}

// demotable reports whether an error streak may move a resource out of status.
// Testing counts too, so a resource failing while probed never reaches active.
func demotable(status model.ResourceStatus) bool {
	return status == model.StatusActive || status == model.StatusTesting
}

// SetStatus applies an administrative status change. Moving a resource back to
// active clears its error streak so the next failure does not demote it again.
func (m *Manager) SetStatus(ctx context.Context, id string, status model.ResourceStatus) error {
	if _, err := model.ParseStatus(string(status)); err != nil {
		return invalid("%v", err)
	}

	res, err := m.registry.Load(ctx, id)
	if err != nil {
		return err
	}
	from := res.Config.Status

	if err := m.registry.SetStatus(ctx, id, status); err != nil {
		return err
	}
	if status == model.StatusActive && from != model.StatusActive {
		if err := m.registry.ResetErrorStreak(ctx, id); err != nil {
			return fmt.Errorf("failed to reset error streak of %s: %w", id, err)
		}
	}

	logger.InfoCtx(ctx, "%s %s status changed: %s -> %s", m.Kind(), id, from, status)
	m.emit(ctx, &interfaces.ResourceEvent{
		ResourceID: id,
		Type:       interfaces.EventResourceStatusSet,
		FromStatus: from,
		ToStatus:   status,
	})
	return nil
}
