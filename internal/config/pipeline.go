package config

import (
	"fmt"
	"time"
)

const defaultMaxWorkers = 8

type PipelineConfig struct {
	// MaxWorkers bounds concurrent pipeline executions and therefore
	// simultaneous outbound calls to the source and the compute service.
	MaxWorkers    int           `mapstructure:"max-workers"`
	StageRetries  uint          `mapstructure:"stage-retries"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
	StageTimeout  time.Duration `mapstructure:"stage-timeout"`
}

func (cfg *PipelineConfig) Validate() error {
	if cfg.MaxWorkers <= 0 {
		return fmt.Errorf("pipeline max-workers must be positive")
	}
	if cfg.StageRetries == 0 {
		return fmt.Errorf("pipeline stage-retries must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("pipeline retry-interval must be positive")
	}
	if cfg.StageTimeout <= 0 {
		return fmt.Errorf("pipeline stage-timeout must be positive")
	}
	return nil
}
