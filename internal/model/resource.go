package model

import (
	"fmt"
	"time"
)

// ResourceKind distinguishes the poolable resource families
type ResourceKind string

const (
	KindAccount ResourceKind = "account" // Login session (username + email)
	KindProxy   ResourceKind = "proxy"   // SOCKS5 endpoint (host:port + credentials)
)

// ResourceStatus resource lifecycle status, materialized as partition membership
type ResourceStatus string

const (
	StatusActive      ResourceStatus = "active"      // Eligible for selection
	StatusSuspended   ResourceStatus = "suspended"   // Demoted after repeated failures (accounts)
	StatusError       ResourceStatus = "error"       // Demoted after repeated failures or failed probe (proxies)
	StatusTesting     ResourceStatus = "testing"     // Capability probe in progress
	StatusMaintenance ResourceStatus = "maintenance" // Administratively parked
	StatusBanned      ResourceStatus = "banned"      // Administratively banned by the upstream
)

// AllStatuses lists every status partition in a stable order
var AllStatuses = []ResourceStatus{
	StatusActive,
	StatusSuspended,
	StatusError,
	StatusTesting,
	StatusMaintenance,
	StatusBanned,
}

// ParseStatus maps a persisted tag back to a status
func ParseStatus(s string) (ResourceStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrMalformedRecord, s)
}

// Priority selection priority tag
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

var priorityWeights = map[Priority]float64{
	PriorityHigh:   1.0,
	PriorityNormal: 0.8,
	PriorityLow:    0.6,
}

// Weight returns the fixed selection weight of the priority
func (p Priority) Weight() float64 {
	return priorityWeights[p]
}

// ParsePriority maps a persisted tag back to a priority
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if _, ok := priorityWeights[p]; !ok {
		return "", fmt.Errorf("%w: unknown priority %q", ErrMalformedRecord, s)
	}
	return p, nil
}

// Region geographic tag used as a selection filter
type Region string

const (
	RegionUS     Region = "us"
	RegionEU     Region = "eu"
	RegionAsia   Region = "asia"
	RegionGlobal Region = "global"
)

// ParseRegion maps a persisted tag back to a region
func ParseRegion(s string) (Region, error) {
	switch r := Region(s); r {
	case RegionUS, RegionEU, RegionAsia, RegionGlobal:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown region %q", ErrMalformedRecord, s)
}

// ParseKind maps a persisted tag back to a resource kind
func ParseKind(s string) (ResourceKind, error) {
	switch k := ResourceKind(s); k {
	case KindAccount, KindProxy:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrMalformedRecord, s)
}

const (
	DefaultDailyLimit           = 1000
	DefaultMaxConsecutiveErrors = 5
	DefaultProxyMaxConcurrent   = 10
)

// AccountCredential login identity of an account resource
type AccountCredential struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ProxyEndpoint connection details of a SOCKS5 proxy resource
type ProxyEndpoint struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Provider      string `json:"provider"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// ResourceConfig static configuration of a pooled resource.
// Exactly one of Account or Proxy is set, matching Kind.
type ResourceConfig struct {
	ID                   string             `json:"id"`
	Kind                 ResourceKind       `json:"kind"`
	Status               ResourceStatus     `json:"status"`
	Priority             Priority           `json:"priority"`
	Region               Region             `json:"region"`
	DailyLimit           int                `json:"daily_limit"`
	MaxConsecutiveErrors int                `json:"max_consecutive_errors"`
	CreatedAt            time.Time          `json:"created_at"`
	Account              *AccountCredential `json:"account,omitempty"`
	Proxy                *ProxyEndpoint     `json:"proxy,omitempty"`
}

// ResourceMetrics mutable usage and health counters of a resource
type ResourceMetrics struct {
	TotalRequests       int64      `json:"total_requests"`
	SuccessfulRequests  int64      `json:"successful_requests"`
	FailedRequests      int64      `json:"failed_requests"`
	ConsecutiveErrors   int64      `json:"consecutive_errors"`
	DailyUsage          int64      `json:"daily_usage"`
	UsageDay            string     `json:"usage_day,omitempty"`      // UTC day (YYYY-MM-DD) DailyUsage belongs to
	AverageResponseTime float64    `json:"average_response_time"`    // Seconds, proxies only
	LastUsed            *time.Time `json:"last_used,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// SuccessRate returns successful/total, 1.0 for an untested resource
func (m *ResourceMetrics) SuccessRate() float64 {
	if m.TotalRequests <= 0 {
		return 1.0
	}
	rate := float64(m.SuccessfulRequests) / float64(m.TotalRequests)
	if rate > 1 {
		return 1
	}
	if rate < 0 {
		return 0
	}
	return rate
}

// EffectiveDailyUsage returns DailyUsage if it belongs to the UTC day of now, otherwise 0.
// A counter without a day stamp is taken at face value.
func (m *ResourceMetrics) EffectiveDailyUsage(now time.Time) int64 {
	if m.UsageDay != "" && m.UsageDay != UsageDay(now) {
		return 0
	}
	return m.DailyUsage
}

// UsageDay returns the UTC calendar day key for t
func UsageDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Resource config and metrics loaded together
type Resource struct {
	Config  *ResourceConfig  `json:"config"`
	Metrics *ResourceMetrics `json:"metrics"`
}
