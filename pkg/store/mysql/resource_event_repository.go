package mysql

import (
	"context"
	"fmt"
	"time"

	"rotapool/internal/model"
	"rotapool/pkg/interfaces"
	"rotapool/pkg/logger"

	"github.com/google/uuid"
)

const defaultEventListLimit = 100

// ResourceEventRepository persists pool lifecycle events
type ResourceEventRepository struct {
	ds *Datastore
}

var _ interfaces.EventRecorder = (*ResourceEventRepository)(nil)

// NewResourceEventRepository creates a new resource event repository
func NewResourceEventRepository(ds *Datastore) *ResourceEventRepository {
	return &ResourceEventRepository{ds: ds}
}

// RecordEvent implements interfaces.EventRecorder
func (r *ResourceEventRepository) RecordEvent(ctx context.Context, event *interfaces.ResourceEvent) error {
	if event == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	row := FromResourceEventDomain(event, uuid.New().String(), logger.TraceID(ctx))
	if err := r.Create(ctx, row); err != nil {
		return fmt.Errorf("failed to record %s event for %s: %w", event.Type, event.ResourceID, err)
	}
	return nil
}

// Create inserts one event row
func (r *ResourceEventRepository) Create(ctx context.Context, row *ResourceEvent) error {
	return r.ds.DB(ctx).Create(row).Error
}

// ListByResource returns the latest events of one resource, newest first
func (r *ResourceEventRepository) ListByResource(ctx context.Context, kind model.ResourceKind, resourceID string, limit int) ([]*interfaces.ResourceEvent, error) {
	if limit <= 0 {
		limit = defaultEventListLimit
	}

	var rows []*ResourceEvent
	err := r.ds.DB(ctx).
		Where("resource_kind = ? AND resource_id = ?", string(kind), resourceID).
		Order("event_time DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events of %s: %w", resourceID, err)
	}
	return toDomainEvents(rows), nil
}

// ListRecent returns the latest events of a pool, optionally narrowed to one event type
func (r *ResourceEventRepository) ListRecent(ctx context.Context, kind model.ResourceKind, eventType interfaces.ResourceEventType, limit int) ([]*interfaces.ResourceEvent, error) {
	if limit <= 0 {
		limit = defaultEventListLimit
	}

	query := r.ds.DB(ctx).Model(&ResourceEvent{}).Where("resource_kind = ?", string(kind))
	if eventType != "" {
		query = query.Where("event_type = ?", string(eventType))
	}

	var rows []*ResourceEvent
	if err := query.Order("event_time DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent %s events: %w", kind, err)
	}
	return toDomainEvents(rows), nil
}

// DeleteBefore removes events older than cutoff and returns the number deleted
func (r *ResourceEventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("event_time < ?", cutoff.UTC()).Delete(&ResourceEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete events before %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}

func toDomainEvents(rows []*ResourceEvent) []*interfaces.ResourceEvent {
	events := make([]*interfaces.ResourceEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, ToResourceEventDomain(row))
	}
	return events
}
