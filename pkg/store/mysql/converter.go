package mysql

import (
	"rotapool/internal/model"
	"rotapool/pkg/interfaces"
)

// FromResourceEventDomain converts a lifecycle event to its MySQL row
func FromResourceEventDomain(event *interfaces.ResourceEvent, eventID, traceID string) *ResourceEvent {
	if event == nil {
		return nil
	}

	row := &ResourceEvent{
		EventID:      eventID,
		ResourceID:   event.ResourceID,
		ResourceKind: string(event.Kind),
		EventType:    string(event.Type),
		FromStatus:   string(event.FromStatus),
		ToStatus:     string(event.ToStatus),
		Reason:       truncate(event.Reason, 1024),
		LatencyMs:    event.LatencyMs,
		TraceID:      traceID,
		EventTime:    event.OccurredAt.UTC(),
	}
	if event.Category != "" {
		row.Metadata = JSONMap{"category": event.Category}
	}
	return row
}

// ToResourceEventDomain converts a MySQL row back to a lifecycle event
func ToResourceEventDomain(row *ResourceEvent) *interfaces.ResourceEvent {
	if row == nil {
		return nil
	}

	category, _ := row.Metadata["category"].(string)
	return &interfaces.ResourceEvent{
		ResourceID: row.ResourceID,
		Kind:       model.ResourceKind(row.ResourceKind),
		Type:       interfaces.ResourceEventType(row.EventType),
		FromStatus: model.ResourceStatus(row.FromStatus),
		ToStatus:   model.ResourceStatus(row.ToStatus),
		Reason:     row.Reason,
		Category:   category,
		LatencyMs:  row.LatencyMs,
		OccurredAt: row.EventTime,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
