package config

import "fmt"

type QueueConfig struct {
	Url      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Exchange string `mapstructure:"exchange"`
}

func (cfg *QueueConfig) Validate() error {
	if cfg.Url == "" {
		return fmt.Errorf("queue url is required")
	}
	if cfg.Exchange == "" {
		return fmt.Errorf("queue exchange is required")
	}
	return nil
}
