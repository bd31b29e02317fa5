package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:       "http://localhost:8232",
			Timeout:       20 * time.Second,
			MaxRetryTimes: 5,
			RetryInterval: 500 * time.Millisecond,
			CacheTTL:      60 * time.Second,
			PageSize:      100,
		},
		Codec: CodecConfig{
			ScalingFactor: 1e6,
			BucketCount:   8,
			BucketPolicy:  "dynamic-max",
		},
		Gateway: GatewayConfig{
			Mode:          "simulator",
			MaxPolls:      10,
			PollInterval:  time.Second,
			MaxRetryTimes: 3,
			RetryInterval: time.Second,
		},
		Store: StoreConfig{
			CacheTTL:  5 * time.Minute,
			ResultTTL: 24 * time.Hour,
		},
		Db: DbConfig{
			Username: "test",
			Password: "test",
			Address:  "mongodb://localhost:27017",
			DbName:   "test",
		},
		Pipeline: PipelineConfig{
			MaxWorkers:    8,
			StageRetries:  3,
			RetryInterval: time.Second,
			StageTimeout:  30 * time.Second,
		},
		Queue: &QueueConfig{
			Url:      "localhost:5672",
			User:     "test",
			Password: "test",
			Exchange: "pipeline.results",
		},
		Poller: PollerConfig{
			StatsPollingInterval:   10 * time.Second,
			CleanupPollingInterval: time.Minute,
			ExpiredResultsLimit:    100,
		},
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 2112,
		},
	}
}

func TestConfig_OptionalQueue(t *testing.T) {
	// Test with Queue config present
	cfg := validConfig()

	err := cfg.Validate()
	require.NoError(t, err)
	assert.NotNil(t, cfg.Queue)

	// Test with Queue config absent
	cfg.Queue = nil
	err = cfg.Validate()
	require.NoError(t, err)
	assert.Nil(t, cfg.Queue)
}

func TestConfig_CodecBucketPolicy(t *testing.T) {
	cfg := validConfig()

	cfg.Codec.BucketPolicy = "static"
	err := cfg.Validate()
	require.Error(t, err, "static policy without a width must fail")

	cfg.Codec.BucketWidth = 0.0001
	err = cfg.Validate()
	require.NoError(t, err)

	cfg.Codec.BucketPolicy = "adaptive"
	err = cfg.Validate()
	require.Error(t, err)
}

func TestConfig_GatewayMode(t *testing.T) {
	cfg := validConfig()

	cfg.Gateway.Mode = "remote"
	err := cfg.Validate()
	require.Error(t, err, "remote mode without endpoint must fail")

	cfg.Gateway.Endpoint = "http://localhost:9090"
	cfg.Gateway.Timeout = 10 * time.Second
	err = cfg.Validate()
	require.NoError(t, err)
}
