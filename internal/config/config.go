package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Codec    CodecConfig    `mapstructure:"codec"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Store    StoreConfig    `mapstructure:"store"`
	Db       DbConfig       `mapstructure:"db"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Queue    *QueueConfig   `mapstructure:"queue"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Source.Validate(); err != nil {
		return err
	}
	if err := cfg.Codec.Validate(); err != nil {
		return err
	}
	if err := cfg.Gateway.Validate(); err != nil {
		return err
	}
	if err := cfg.Store.Validate(); err != nil {
		return err
	}
	if err := cfg.Db.Validate(); err != nil {
		return err
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return err
	}
	// queue is optional: without it the pipeline simply does not publish
	// result events
	if cfg.Queue != nil {
		if err := cfg.Queue.Validate(); err != nil {
			return err
		}
	}
	if err := cfg.Poller.Validate(); err != nil {
		return err
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}

// New returns a fully parsed Config object from the given config file path
func New(cfgFile string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file %s: %w", cfgFile, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("source.cache-ttl", defaultSourceCacheTTL)
	viper.SetDefault("source.page-size", defaultSourcePageSize)
	viper.SetDefault("codec.scaling-factor", defaultScalingFactor)
	viper.SetDefault("codec.bucket-count", defaultBucketCount)
	viper.SetDefault("codec.bucket-policy", defaultBucketPolicy)
	viper.SetDefault("store.cache-ttl", defaultStoreCacheTTL)
	viper.SetDefault("pipeline.max-workers", defaultMaxWorkers)
}
