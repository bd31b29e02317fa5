package config

import (
	"fmt"
	"time"
)

type GatewayMode string

const (
	GatewayModeSimulator GatewayMode = "simulator"
	GatewayModeRemote    GatewayMode = "remote"
)

func (m GatewayMode) String() string {
	return string(m)
}

type GatewayConfig struct {
	// Mode selects the single gateway implementation at construction time.
	// Callers never branch on it afterwards.
	Mode          string        `mapstructure:"mode"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxPolls      uint          `mapstructure:"max-polls"`
	PollInterval  time.Duration `mapstructure:"poll-interval"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
}

func (cfg *GatewayConfig) Validate() error {
	switch GatewayMode(cfg.Mode) {
	case GatewayModeSimulator:
	case GatewayModeRemote:
		if cfg.Endpoint == "" {
			return fmt.Errorf("gateway endpoint is required in remote mode")
		}
		if cfg.Timeout <= 0 {
			return fmt.Errorf("gateway timeout must be positive")
		}
	default:
		return fmt.Errorf("gateway mode %q does not exist. should be one of {%s, %s}",
			cfg.Mode, GatewayModeSimulator, GatewayModeRemote)
	}
	if cfg.MaxPolls == 0 {
		return fmt.Errorf("gateway max-polls must be positive")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("gateway poll-interval must be positive")
	}
	if cfg.MaxRetryTimes == 0 {
		return fmt.Errorf("gateway max-retry-times must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("gateway retry-interval must be positive")
	}
	return nil
}
