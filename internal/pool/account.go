package pool

import (
	"strings"

	"rotapool/internal/model"
)

const accountIDPrefix = "acc_"

// AccountID derives the id of an account from its username
func AccountID(username string) string {
	return accountIDPrefix + username
}

// NewAccountConfig builds an account config with pool defaults left to AddResource
func NewAccountConfig(username, email string) *model.ResourceConfig {
	return &model.ResourceConfig{
		Kind:    model.KindAccount,
		Account: &model.AccountCredential{Username: username, Email: email},
	}
}

type accountAdapter struct{}

func (accountAdapter) deriveID(cfg *model.ResourceConfig) string {
	return AccountID(cfg.Account.Username)
}

func (accountAdapter) validate(cfg *model.ResourceConfig) error {
	if cfg.Account == nil {
		return invalid("account credentials missing")
	}
	if cfg.Proxy != nil {
		return invalid("account %q carries proxy settings", cfg.Account.Username)
	}
	username := strings.TrimSpace(cfg.Account.Username)
	if username == "" {
		return invalid("account username is required")
	}
	if strings.ContainsAny(username, ": ") {
		return invalid("account username %q contains separator characters", username)
	}
	cfg.Account.Username = username
	return nil
}

func (accountAdapter) identity(cfg *model.ResourceConfig) string {
	if cfg != nil && cfg.Account != nil && cfg.Account.Username != "" {
		return cfg.Account.Username
	}
	return "unknown"
}

func (accountAdapter) fillHandle(h *model.ResourceHandle, cfg *model.ResourceConfig) {
	cred := *cfg.Account
	h.Account = &cred
}

func (accountAdapter) redact(cfg *model.ResourceConfig) *model.ResourceConfig { return cfg }

func (accountAdapter) tracksLatency() bool { return false }
