package scoring

import (
	"math"
	"time"

	"rotapool/internal/model"
)

// HealthScore combines success rate, error streak, usage and latency into [0, 1].
// dailyUsage is the effective usage for the current day.
func HealthScore(s Strategy, m *model.ResourceMetrics, dailyUsage int64) float64 {
	usageFactor := 1.0
	if dailyUsage >= UsageSoftThreshold {
		usageFactor = usageThrottle
	}

	score := (m.SuccessRate() - s.ErrorPenalty(m.ConsecutiveErrors)) * usageFactor * s.TimeFactor(m)
	return clamp01(score)
}

// IsHealthy reports whether the health score reaches threshold
func IsHealthy(health, threshold float64) bool {
	return health >= threshold
}

// SelectionScore ranks an eligible candidate. Requires cfg.DailyLimit > 0.
func SelectionScore(s Strategy, cfg *model.ResourceConfig, m *model.ResourceMetrics, health float64, dailyUsage int64) float64 {
	headroom := 1 - float64(dailyUsage)/float64(cfg.DailyLimit)
	return healthWeight*health + headroomWeight*headroom + s.RankTerm(cfg, m)
}

// Evaluation scores of one resource at a point in time
type Evaluation struct {
	DailyUsage int64
	Health     float64
	Selection  float64
}

// Evaluate computes both scores using the usage effective at now
func Evaluate(s Strategy, res *model.Resource, now time.Time) Evaluation {
	usage := res.Metrics.EffectiveDailyUsage(now)
	health := HealthScore(s, res.Metrics, usage)
	return Evaluation{
		DailyUsage: usage,
		Health:     health,
		Selection:  SelectionScore(s, res.Config, res.Metrics, health, usage),
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
