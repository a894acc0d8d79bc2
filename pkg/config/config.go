package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// adjustments collected by the last validateAndApplyDefaults run, logged by the caller once the logger is up
var adjustments []string

// Config global configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	MySQL        MySQLConfig        `yaml:"mysql"`
	Logger       LoggerConfig       `yaml:"logger"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Pools        PoolsConfig        `yaml:"pools"`
	Jobs         JobsConfig         `yaml:"jobs"`
	Notification NotificationConfig `yaml:"notification"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // API key for admin routes (optional, if empty, auth is disabled)
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"` // Prepended to every pool key, e.g. "rotapool:"
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// MySQLConfig MySQL configuration, backs the optional lifecycle event log
type MySQLConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// RateLimitConfig per-client limits on the HTTP API
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables limiting
	Burst             int     `yaml:"burst"`
}

// PoolsConfig one section per resource kind
type PoolsConfig struct {
	Accounts PoolConfig `yaml:"accounts"`
	Proxies  PoolConfig `yaml:"proxies"`
}

// PoolConfig selection and lifecycle policy of one pool
type PoolConfig struct {
	Enabled              bool          `yaml:"enabled"`
	HealthThreshold      float64       `yaml:"health_threshold"`       // Minimum health score for the health gate
	HealthGate           *bool         `yaml:"health_gate"`            // Overrides the kind default (accounts off, proxies on)
	DailyLimit           int           `yaml:"daily_limit"`            // Default daily limit for new resources
	MaxConsecutiveErrors int           `yaml:"max_consecutive_errors"` // Default suspension threshold for new resources
	AcquireTimeout       time.Duration `yaml:"acquire_timeout"`        // Applied when the caller has no deadline
	Probe                ProbeConfig   `yaml:"probe"`
}

// ProbeConfig capability probe run when resources are added
type ProbeConfig struct {
	Enabled     bool          `yaml:"enabled"`
	TargetURL   string        `yaml:"target_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"` // Parallel probes during batch add
}

// NotificationConfig alert channels for demotions and failed probes
type NotificationConfig struct {
	FeishuWebhookURL string `yaml:"feishu_webhook_url"` // Falls back to FEISHU_WEBHOOK_URL
}

// JobsConfig background job intervals
type JobsConfig struct {
	UsageRolloverInterval time.Duration `yaml:"usage_rollover_interval"`
	EventPruneInterval    time.Duration `yaml:"event_prune_interval"` // only with mysql enabled
	EventRetention        time.Duration `yaml:"event_retention"`
}

// DefaultPoolConfig returns the default policy of a pool
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Enabled:              true,
		HealthThreshold:      0.7,
		DailyLimit:           1000,
		MaxConsecutiveErrors: 5,
		AcquireTimeout:       5 * time.Second,
		Probe:                DefaultProbeConfig(),
	}
}

// DefaultProbeConfig returns the default probe settings
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		TargetURL:   "https://httpbin.org/ip",
		Timeout:     10 * time.Second,
		Concurrency: 10,
	}
}

// DefaultRedisConfig returns the default Redis connection settings
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
	}
}

// DefaultJobsConfig returns the default job intervals
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		UsageRolloverInterval: 5 * time.Minute,
		EventPruneInterval:    time.Hour,
		EventRetention:        30 * 24 * time.Hour,
	}
}

// Init initializes configuration
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	cfg, err := Parse(data)
	if err != nil {
		return err
	}

	GlobalConfig = cfg
	return nil
}

// Parse decodes YAML and fills in defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	adjustments = validateAndApplyDefaults(&cfg)
	return &cfg, nil
}

// Adjustments returns the defaults applied by the last Parse
func Adjustments() []string {
	return adjustments
}

// validateAndApplyDefaults replaces invalid or missing values with defaults and reports each replacement
func validateAndApplyDefaults(cfg *Config) []string {
	var applied []string
	note := func(format string, args ...interface{}) {
		applied = append(applied, fmt.Sprintf(format, args...))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		note("server.port %d invalid, using 8080", cfg.Server.Port)
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}

	redisDefaults := DefaultRedisConfig()
	if cfg.Redis.Addr == "" {
		note("redis.addr empty, using %s", redisDefaults.Addr)
		cfg.Redis.Addr = redisDefaults.Addr
	}
	if cfg.Redis.DialTimeout <= 0 {
		cfg.Redis.DialTimeout = redisDefaults.DialTimeout
	}
	if cfg.Redis.ReadTimeout <= 0 {
		cfg.Redis.ReadTimeout = redisDefaults.ReadTimeout
	}
	if cfg.Redis.WriteTimeout <= 0 {
		cfg.Redis.WriteTimeout = redisDefaults.WriteTimeout
	}
	if cfg.Redis.PoolSize <= 0 {
		cfg.Redis.PoolSize = redisDefaults.PoolSize
	}

	if cfg.MySQL.Enabled && cfg.MySQL.Port <= 0 {
		cfg.MySQL.Port = 3306
	}

	if cfg.RateLimit.RequestsPerSecond < 0 {
		note("rate_limit.requests_per_second %v negative, disabling", cfg.RateLimit.RequestsPerSecond)
		cfg.RateLimit.RequestsPerSecond = 0
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.RequestsPerSecond) + 1
	}

	applyPoolDefaults("pools.accounts", &cfg.Pools.Accounts, note)
	applyPoolDefaults("pools.proxies", &cfg.Pools.Proxies, note)

	jobDefaults := DefaultJobsConfig()
	if cfg.Jobs.UsageRolloverInterval <= 0 {
		cfg.Jobs.UsageRolloverInterval = jobDefaults.UsageRolloverInterval
	}
	if cfg.Jobs.EventPruneInterval <= 0 {
		cfg.Jobs.EventPruneInterval = jobDefaults.EventPruneInterval
	}
	if cfg.Jobs.EventRetention <= 0 {
		cfg.Jobs.EventRetention = jobDefaults.EventRetention
	}

	return applied
}

func applyPoolDefaults(section string, pool *PoolConfig, note func(string, ...interface{})) {
	defaults := DefaultPoolConfig()

	if pool.HealthThreshold <= 0 || pool.HealthThreshold > 1 {
		if pool.HealthThreshold != 0 {
			note("%s.health_threshold %v outside (0,1], using %v", section, pool.HealthThreshold, defaults.HealthThreshold)
		}
		pool.HealthThreshold = defaults.HealthThreshold
	}
	if pool.DailyLimit <= 0 {
		if pool.DailyLimit != 0 {
			note("%s.daily_limit %d invalid, using %d", section, pool.DailyLimit, defaults.DailyLimit)
		}
		pool.DailyLimit = defaults.DailyLimit
	}
	if pool.MaxConsecutiveErrors <= 0 {
		if pool.MaxConsecutiveErrors != 0 {
			note("%s.max_consecutive_errors %d invalid, using %d", section, pool.MaxConsecutiveErrors, defaults.MaxConsecutiveErrors)
		}
		pool.MaxConsecutiveErrors = defaults.MaxConsecutiveErrors
	}
	if pool.AcquireTimeout <= 0 {
		pool.AcquireTimeout = defaults.AcquireTimeout
	}

	if pool.Probe.TargetURL == "" {
		pool.Probe.TargetURL = defaults.Probe.TargetURL
	}
	if pool.Probe.Timeout <= 0 {
		if pool.Probe.Timeout != 0 {
			note("%s.probe.timeout %v invalid, using %v", section, pool.Probe.Timeout, defaults.Probe.Timeout)
		}
		pool.Probe.Timeout = defaults.Probe.Timeout
	}
	if pool.Probe.Concurrency <= 0 {
		pool.Probe.Concurrency = defaults.Probe.Concurrency
	}
}
