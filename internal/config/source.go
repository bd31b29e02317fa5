package config

import (
	"fmt"
	"time"
)

const (
	defaultSourceCacheTTL = 60 * time.Second
	defaultSourcePageSize = 100
)

type SourceConfig struct {
	// BaseURL specifies the URL of the upstream block explorer API,
	// including the protocol prefix.
	BaseURL       string        `mapstructure:"base-url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
	CacheTTL      time.Duration `mapstructure:"cache-ttl"`
	PageSize      int           `mapstructure:"page-size"`
}

func (cfg *SourceConfig) Validate() error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("source base-url is required")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}
	if cfg.MaxRetryTimes == 0 {
		return fmt.Errorf("source max-retry-times must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("source retry-interval must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("source cache-ttl must be positive")
	}
	if cfg.PageSize <= 0 {
		return fmt.Errorf("source page-size must be positive")
	}
	return nil
}
