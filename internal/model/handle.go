package model

import "time"

// SelectionFilter caller-supplied criteria for Acquire. Empty fields match anything.
type SelectionFilter struct {
	Region   Region   `json:"region,omitempty" form:"region"`
	Priority Priority `json:"priority,omitempty" form:"priority"`
}

// ResourceHandle snapshot returned to the caller of Acquire
type ResourceHandle struct {
	ID           string             `json:"id"`
	Kind         ResourceKind       `json:"kind"`
	LeaseID      string             `json:"lease_id"` // Correlates the acquire with later outcome reports in logs
	Score        float64            `json:"score"`
	HealthScore  float64            `json:"health_score"`
	DailyUsage   int64              `json:"daily_usage"` // Usage after this acquisition
	Region       Region             `json:"region"`
	Priority     Priority           `json:"priority"`
	ResponseTime float64            `json:"response_time,omitempty"`
	ProxyURL     string             `json:"proxy_url,omitempty"`
	Account      *AccountCredential `json:"account,omitempty"`
	Proxy        *ProxyEndpoint     `json:"proxy,omitempty"`
	AcquiredAt   time.Time          `json:"acquired_at"`
}

// PoolStatistics aggregate view of a pool
type PoolStatistics struct {
	Kind               ResourceKind           `json:"kind"`
	TotalCount         int                    `json:"total_count"`
	ActiveCount        int                    `json:"active_count"`
	SuspendedCount     int                    `json:"suspended_count"` // Resources in the pool's failure partition
	StatusCounts       map[ResourceStatus]int `json:"status_counts"`
	AvgHealthScore     float64                `json:"avg_health_score"`
	AvgResponseTime    float64                `json:"avg_response_time,omitempty"`
	TotalDailyUsage    int64                  `json:"total_daily_usage"`
	RegionDistribution map[Region]int         `json:"region_distribution,omitempty"`
	PriorityCounts     map[Priority]int       `json:"priority_counts,omitempty"`
}

// ResourceDetail stored state of one resource plus its derived scores
type ResourceDetail struct {
	Config      *ResourceConfig  `json:"config"`
	Metrics     *ResourceMetrics `json:"metrics"`
	SuccessRate float64          `json:"success_rate"`
	HealthScore float64          `json:"health_score"`
	Healthy     bool             `json:"healthy"`
	DailyUsage  int64            `json:"effective_daily_usage"`
}
