package pool

import (
	"fmt"

	"rotapool/internal/model"
)

// adapter kind-specific config handling: id derivation, validation and handle payloads
type adapter interface {
	deriveID(cfg *model.ResourceConfig) string
	validate(cfg *model.ResourceConfig) error
	// identity names a config in batch results when it cannot be given an id
	identity(cfg *model.ResourceConfig) string
	fillHandle(h *model.ResourceHandle, cfg *model.ResourceConfig)
	// redact returns cfg fit for admin reads, without secrets
	redact(cfg *model.ResourceConfig) *model.ResourceConfig
	tracksLatency() bool
}

func adapterFor(kind model.ResourceKind) adapter {
	if kind == model.KindProxy {
		return proxyAdapter{}
	}
	return accountAdapter{}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
