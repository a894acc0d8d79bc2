package interfaces

import (
	"context"
	"time"

	"rotapool/internal/model"
)

// CapabilityProbe verifies a resource is reachable before it enters the active partition.
// Implementations never return errors: any failure or timeout is reported as unhealthy.
type CapabilityProbe interface {
	// Probe returns healthy and the measured latency (zero when unknown)
	Probe(ctx context.Context, cfg *model.ResourceConfig) (healthy bool, latency time.Duration)
}
