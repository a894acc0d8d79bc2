package model

import "time"

// ResourceEvent one lifecycle transition of a pooled account or proxy
type ResourceEvent struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	EventID      string    `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex"`
	ResourceID   string    `gorm:"column:resource_id;type:varchar(255);not null;index:idx_resource_event_time,priority:1"`
	ResourceKind string    `gorm:"column:resource_kind;type:varchar(20);not null;index:idx_kind_type_time,priority:1"`
	EventType    string    `gorm:"column:event_type;type:varchar(50);not null;index:idx_kind_type_time,priority:2"`
	FromStatus   string    `gorm:"column:from_status;type:varchar(20)"`
	ToStatus     string    `gorm:"column:to_status;type:varchar(20)"`
	Reason       string    `gorm:"column:reason;type:varchar(1024)"`
	LatencyMs    *int64    `gorm:"column:latency_ms"`
	TraceID      string    `gorm:"column:trace_id;type:varchar(64)"`
	EventTime    time.Time `gorm:"column:event_time;type:datetime(3);not null;index:idx_resource_event_time,priority:2;index:idx_kind_type_time,priority:3;index:idx_event_time"`
	Metadata     JSONMap   `gorm:"column:metadata;type:json"`
}

func (ResourceEvent) TableName() string { return "resource_events" }
