package interfaces

import (
	"context"
	"time"

	"rotapool/internal/model"
)

// ResourceEventType lifecycle event kinds
type ResourceEventType string

const (
	EventResourceAdded     ResourceEventType = "RESOURCE_ADDED"      // New resource registered
	EventResourceProbed    ResourceEventType = "RESOURCE_PROBED"     // Capability probe finished
	EventResourceDemoted   ResourceEventType = "RESOURCE_DEMOTED"    // Moved out of active after consecutive errors
	EventResourceStatusSet ResourceEventType = "RESOURCE_STATUS_SET" // Administrative status change
	EventResourceRemoved   ResourceEventType = "RESOURCE_REMOVED"    // Explicit removal
)

// ResourceEvent one lifecycle transition of a resource
type ResourceEvent struct {
	ResourceID string
	Kind       model.ResourceKind
	Type       ResourceEventType
	FromStatus model.ResourceStatus
	ToStatus   model.ResourceStatus
	Reason     string
	Category   string // Failure class of Reason, demotions only
	LatencyMs  *int64
	OccurredAt time.Time
}

// EventRecorder persists lifecycle events. Failures must not block pool operations.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *ResourceEvent) error
}
