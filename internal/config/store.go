package config

import (
	"fmt"
	"time"
)

const defaultStoreCacheTTL = 5 * time.Minute

type StoreConfig struct {
	CacheTTL time.Duration `mapstructure:"cache-ttl"`
	// ResultTTL bounds how long stored results and finished jobs are kept
	// before the cleanup poller removes them. Zero disables expiry.
	ResultTTL time.Duration `mapstructure:"result-ttl"`
}

func (cfg *StoreConfig) Validate() error {
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("store cache-ttl must be positive")
	}
	if cfg.ResultTTL < 0 {
		return fmt.Errorf("store result-ttl must not be negative")
	}
	return nil
}
