// Package scoring computes health and selection scores of pooled resources.
// Everything here is pure; a Strategy per resource kind supplies the kind-specific terms.
package scoring

import (
	"math"

	"rotapool/internal/model"
)

const (
	// UsageSoftThreshold daily usage above which health is throttled, independent of the limit
	UsageSoftThreshold = 800
	usageThrottle      = 0.8

	// DefaultHealthThreshold minimum health score for the health gate
	DefaultHealthThreshold = 0.7

	// LatencySmoothing weight of a new response time sample
	LatencySmoothing = 0.2

	slowResponseSeconds = 3.0
	slowThrottle        = 0.8
	responseCeiling     = 5.0

	healthWeight   = 0.5
	headroomWeight = 0.3
	rankWeight     = 0.2
)

// Strategy kind-specific scoring terms
type Strategy interface {
	Kind() model.ResourceKind
	// ErrorPenalty maps a consecutive error count to the penalty subtracted from success rate
	ErrorPenalty(consecutiveErrors int64) float64
	// TimeFactor multiplies the health score
	TimeFactor(m *model.ResourceMetrics) float64
	// RankTerm is the third component of the selection score
	RankTerm(cfg *model.ResourceConfig, m *model.ResourceMetrics) float64
	// GatesOnHealth reports whether selection excludes unhealthy candidates by default
	GatesOnHealth() bool
	// FailureStatus is the status a resource is demoted to after too many consecutive errors
	FailureStatus() model.ResourceStatus
}

type penalty struct {
	perError float64
	cap      float64
}

func (p penalty) apply(consecutiveErrors int64) float64 {
	if consecutiveErrors <= 0 {
		return 0
	}
	return math.Min(float64(consecutiveErrors)*p.perError, p.cap)
}

// AccountStrategy login accounts: priority drives ranking, no latency term, no health gate
type AccountStrategy struct{}

var accountPenalty = penalty{perError: 0.10, cap: 0.5}

func (AccountStrategy) Kind() model.ResourceKind { return model.KindAccount }

func (AccountStrategy) ErrorPenalty(n int64) float64 { return accountPenalty.apply(n) }

func (AccountStrategy) TimeFactor(*model.ResourceMetrics) float64 { return 1.0 }

func (AccountStrategy) RankTerm(cfg *model.ResourceConfig, _ *model.ResourceMetrics) float64 {
	return rankWeight * cfg.Priority.Weight()
}

func (AccountStrategy) GatesOnHealth() bool { return false }

func (AccountStrategy) FailureStatus() model.ResourceStatus { return model.StatusSuspended }

// ProxyStrategy SOCKS5 proxies: harsher error penalty, response time drives ranking
type ProxyStrategy struct{}

var proxyPenalty = penalty{perError: 0.15, cap: 0.6}

func (ProxyStrategy) Kind() model.ResourceKind { return model.KindProxy }

func (ProxyStrategy) ErrorPenalty(n int64) float64 { return proxyPenalty.apply(n) }

func (ProxyStrategy) TimeFactor(m *model.ResourceMetrics) float64 {
	if m.AverageResponseTime < slowResponseSeconds {
		return 1.0
	}
	return slowThrottle
}

func (ProxyStrategy) RankTerm(_ *model.ResourceConfig, m *model.ResourceMetrics) float64 {
	return rankWeight * math.Max(0, (responseCeiling-m.AverageResponseTime)/responseCeiling)
}

func (ProxyStrategy) GatesOnHealth() bool { return true }

func (ProxyStrategy) FailureStatus() model.ResourceStatus { return model.StatusError }

// ForKind returns the strategy of a resource kind
func ForKind(kind model.ResourceKind) Strategy {
	if kind == model.KindProxy {
		return ProxyStrategy{}
	}
	return AccountStrategy{}
}
