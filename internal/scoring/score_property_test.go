package scoring

import (
	"testing"

	"rotapool/internal/model"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_ScoresStayInUnitRange checks that health and success rate stay in [0, 1]
// for any counter state the public API can produce.
//
// Property: successful <= total, consecutive <= failed, non-negative usage and latency
// always yield 0 <= successRate <= 1 and 0 <= healthScore <= 1 for both kinds.
func TestProperty_ScoresStayInUnitRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	for _, s := range []Strategy{AccountStrategy{}, ProxyStrategy{}} {
		s := s
		properties.Property(string(s.Kind())+" health score in [0,1]", prop.ForAll(
			func(successful, failed, streak, usage int64, latency float64) bool {
				if streak > failed {
					streak = failed
				}
				m := &model.ResourceMetrics{
					TotalRequests:       successful + failed,
					SuccessfulRequests:  successful,
					FailedRequests:      failed,
					ConsecutiveErrors:   streak,
					DailyUsage:          usage,
					AverageResponseTime: latency,
				}

				rate := m.SuccessRate()
				health := HealthScore(s, m, usage)
				return rate >= 0 && rate <= 1 && health >= 0 && health <= 1
			},
			gen.Int64Range(0, 10000),
			gen.Int64Range(0, 10000),
			gen.Int64Range(0, 50),
			gen.Int64Range(0, 5000),
			gen.Float64Range(0, 30),
		))
	}

	properties.TestingRun(t)
}

// TestProperty_ErrorsNeverRaiseHealth checks that one more consecutive error never increases health.
func TestProperty_ErrorsNeverRaiseHealth(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("extra error lowers or keeps health", prop.ForAll(
		func(successful, streak int64) bool {
			for _, s := range []Strategy{AccountStrategy{}, ProxyStrategy{}} {
				before := &model.ResourceMetrics{
					TotalRequests: successful + streak, SuccessfulRequests: successful,
					FailedRequests: streak, ConsecutiveErrors: streak,
				}
				after := &model.ResourceMetrics{
					TotalRequests: successful + streak + 1, SuccessfulRequests: successful,
					FailedRequests: streak + 1, ConsecutiveErrors: streak + 1,
				}
				if HealthScore(s, after, 0) > HealthScore(s, before, 0) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 1000),
		gen.Int64Range(0, 20),
	))

	properties.TestingRun(t)
}
