package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

func dynamicCfg(buckets int) *config.CodecConfig {
	return &config.CodecConfig{
		ScalingFactor: 1e6,
		BucketCount:   buckets,
		BucketPolicy:  string(types.BucketPolicyDynamicMax),
	}
}

func TestAggregate_SinglePass(t *testing.T) {
	records := []types.RawTransaction{
		{TxID: "a", Fee: 0.0001, ShieldedSpends: 2},
		{TxID: "b", Fee: 0.0002},
		{TxID: "c", Fee: 0.0004, Shielded: true},
		{TxID: "d", Fee: 0.0008},
	}

	agg := New(dynamicCfg(4), nil).Aggregate(records, types.WindowHour, "http://localhost:8232")

	assert.EqualValues(t, 4, agg.TxCount)
	assert.EqualValues(t, 2, agg.ShieldedCount)
	assert.InDelta(t, 0.0015, agg.TotalFees, 1e-12)
	assert.InDelta(t,
		0.0001*0.0001+0.0002*0.0002+0.0004*0.0004+0.0008*0.0008,
		agg.FeeSumSq, 1e-18)
	assert.Equal(t, types.WindowHour, agg.Window)

	require.NoError(t, agg.Validate())
}

func TestAggregate_HistogramSumsToTxCount(t *testing.T) {
	records := []types.RawTransaction{
		{Fee: 0}, {Fee: 0.00001}, {Fee: 0.0001}, {Fee: 0.001}, {Fee: 0.01},
	}

	agg := New(dynamicCfg(4), nil).Aggregate(records, types.WindowDay, "src")

	assert.EqualValues(t, agg.TxCount, agg.HistogramTotal())

	// max fee lands in the last bucket despite floor(maxFee/width) == B
	assert.EqualValues(t, 1, agg.FeeHistogram[3])
}

func TestAggregate_StaticWidth(t *testing.T) {
	cfg := &config.CodecConfig{
		ScalingFactor: 1e6,
		BucketCount:   4,
		BucketPolicy:  string(types.BucketPolicyStatic),
		BucketWidth:   0.001,
	}

	agg := New(cfg, nil)
	assert.Equal(t, 0.001, agg.BucketWidth(nil))

	records := []types.RawTransaction{
		{Fee: 0.0005}, // bucket 0
		{Fee: 0.0015}, // bucket 1
		{Fee: 0.0099}, // clamped to bucket 3
	}
	out := agg.Aggregate(records, types.WindowHour, "src")
	assert.EqualValues(t, 1, out.FeeHistogram[0])
	assert.EqualValues(t, 1, out.FeeHistogram[1])
	assert.EqualValues(t, 1, out.FeeHistogram[3])
}

func TestAggregate_EmptyBatch(t *testing.T) {
	agg := New(dynamicCfg(8), nil).Aggregate(nil, types.WindowWeek, "src")

	assert.Zero(t, agg.TxCount)
	assert.Zero(t, agg.HistogramTotal())
	require.NoError(t, agg.Validate())
}

func TestShieldedPredicates(t *testing.T) {
	tx := types.RawTransaction{ShieldedSpends: 1}
	assert.True(t, ByShieldedTransfers(tx))
	assert.False(t, ByShieldedFlag(tx))

	flagged := types.RawTransaction{Shielded: true}
	assert.True(t, ByShieldedTransfers(flagged))
	assert.True(t, ByShieldedFlag(flagged))
}
