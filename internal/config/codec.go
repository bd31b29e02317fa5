package config

import (
	"fmt"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

const (
	defaultScalingFactor = 1e6
	defaultBucketCount   = 8
	defaultBucketPolicy  = string(types.BucketPolicyDynamicMax)
)

type CodecConfig struct {
	ScalingFactor float64 `mapstructure:"scaling-factor"`
	BucketCount   int     `mapstructure:"bucket-count"`
	// BucketPolicy selects how the histogram bucket width is derived:
	// "static" uses bucket-width as configured, "dynamic-max" derives it
	// from the batch's maximum fee. Fixed per deployment.
	BucketPolicy string  `mapstructure:"bucket-policy"`
	BucketWidth  float64 `mapstructure:"bucket-width"`
}

func (cfg *CodecConfig) Validate() error {
	if cfg.ScalingFactor <= 0 {
		return fmt.Errorf("codec scaling-factor must be positive")
	}
	if cfg.BucketCount <= 0 {
		return fmt.Errorf("codec bucket-count must be positive")
	}
	switch types.BucketPolicy(cfg.BucketPolicy) {
	case types.BucketPolicyStatic:
		if cfg.BucketWidth <= 0 {
			return fmt.Errorf("codec bucket-width must be positive with the static bucket policy")
		}
	case types.BucketPolicyDynamicMax:
	default:
		return fmt.Errorf("codec bucket-policy %q does not exist. should be one of {%s, %s}",
			cfg.BucketPolicy, types.BucketPolicyStatic, types.BucketPolicyDynamicMax)
	}
	return nil
}

func (cfg *CodecConfig) Policy() types.BucketPolicy {
	return types.BucketPolicy(cfg.BucketPolicy)
}
