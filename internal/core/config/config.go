package config

import (
	"time"

	redisclient "github.com/vietddude/atelier/internal/infra/redis"
	"github.com/vietddude/atelier/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Catalog   CatalogConfig      `yaml:"catalog"`
	Cache     CacheConfig        `yaml:"cache"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
	Providers []ProviderConfig   `yaml:"providers"`
	Retry     RetryConfig        `yaml:"retry"`
	Breaker   BreakerConfig      `yaml:"breaker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CatalogConfig points at the compatibility catalog file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig selects the prompt cache backend and its retention policy.
type CacheConfig struct {
	Backend    string `yaml:"backend"`      // postgres, redis, memory
	MaxAgeDays int    `yaml:"max_age_days"` // 0 = no age-based cleanup
	KeepCount  int    `yaml:"keep_count"`   // 0 = no size-based cleanup
}

// ProviderConfig holds settings for one image generation provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"` // http, grpc
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig holds the per-provider retry policy.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Timeout           time.Duration `yaml:"timeout"`
}

// BreakerConfig holds the circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	MonitoringWindow time.Duration `yaml:"monitoring_window"`
}
