package config

import (
	"errors"
	"time"
)

type PollerConfig struct {
	StatsPollingInterval   time.Duration `mapstructure:"stats-polling-interval"`
	CleanupPollingInterval time.Duration `mapstructure:"cleanup-polling-interval"`
	ExpiredResultsLimit    uint64        `mapstructure:"expired-results-limit"`
}

func (cfg *PollerConfig) Validate() error {
	if cfg.StatsPollingInterval <= 0 {
		return errors.New("stats-polling-interval must be positive")
	}

	if cfg.CleanupPollingInterval <= 0 {
		return errors.New("cleanup-polling-interval must be positive")
	}

	if cfg.ExpiredResultsLimit <= 0 {
		return errors.New("expired-results-limit must be positive")
	}

	return nil
}
