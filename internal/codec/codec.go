package codec

import (
	"math"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// VectorCodec converts aggregate records to fixed-point vectors and back.
// Every scalar is scaled by one scaling factor and rounded half away from
// zero; the histogram occupies exactly BucketCount trailing positions.
type VectorCodec struct {
	cfg *config.CodecConfig
}

func New(cfg *config.CodecConfig) *VectorCodec {
	return &VectorCodec{cfg: cfg}
}

// scaleValue rounds half away from zero after scaling, rejecting values
// outside the representable int64 range.
func (c *VectorCodec) scaleValue(field string, v float64) (int64, error) {
	scaled := math.Round(v * c.cfg.ScalingFactor)
	// float64(MaxInt64) is 2^63, already out of range, hence >=
	if math.IsNaN(scaled) || scaled >= math.MaxInt64 || scaled < math.MinInt64 {
		metrics.IncEncodingOverflow()
		return 0, &types.EncodingOverflowError{Field: field, Value: v}
	}
	return int64(scaled), nil
}

// Encode maps a record into the layout [tx_count, shielded_count,
// total_fees, fee_sum_sq, bucket_0 .. bucket_{B-1}]. bucketWidth is the
// effective width the histogram was built with; it is pinned in the metadata
// together with the bucket policy so Decode never re-derives either.
func (c *VectorCodec) Encode(record types.AggregateRecord, bucketWidth float64) (types.EncodedVector, error) {
	bucketCount := c.cfg.BucketCount
	values := make([]int64, 0, 4+bucketCount)

	scalars := []struct {
		field string
		value float64
	}{
		{"tx_count", float64(record.TxCount)},
		{"shielded_count", float64(record.ShieldedCount)},
		{"total_fees", record.TotalFees},
		{"fee_sum_sq", record.FeeSumSq},
	}
	for _, s := range scalars {
		v, err := c.scaleValue(s.field, s.value)
		if err != nil {
			return types.EncodedVector{}, err
		}
		values = append(values, v)
	}

	// normalize the histogram into exactly bucketCount buckets, clamping
	// stray keys into the last one
	buckets := make([]uint64, bucketCount)
	for key, count := range record.FeeHistogram {
		idx := int(key)
		if idx > bucketCount-1 {
			idx = bucketCount - 1
		}
		buckets[idx] += count
	}
	for _, count := range buckets {
		v, err := c.scaleValue("bucket", float64(count))
		if err != nil {
			return types.EncodedVector{}, err
		}
		values = append(values, v)
	}

	vector := types.EncodedVector{
		Values: values,
		Metadata: types.VectorMetadata{
			ScalingFactor:   c.cfg.ScalingFactor,
			BucketCount:     bucketCount,
			BucketWidth:     bucketWidth,
			BucketPolicy:    c.cfg.Policy(),
			VarianceMode:    types.VarianceModeVariance,
			SourceTimestamp: record.Timestamp,
			Window:          record.Window,
			Source:          record.Source,
		},
	}
	if err := vector.Validate(); err != nil {
		return types.EncodedVector{}, err
	}
	return vector, nil
}

// Decode inverts Encode and derives the plaintext ratio statistics. The
// dispersion field carries raw variance, per metadata variance_mode.
func (c *VectorCodec) Decode(vector types.EncodedVector) (types.AggregateRecord, types.DerivedStats, error) {
	if err := vector.Validate(); err != nil {
		return types.AggregateRecord{}, types.DerivedStats{}, err
	}

	scale := vector.Metadata.ScalingFactor
	record := types.AggregateRecord{
		TxCount:       uint(math.Round(float64(vector.Values[0]) / scale)),
		ShieldedCount: uint(math.Round(float64(vector.Values[1]) / scale)),
		TotalFees:     float64(vector.Values[2]) / scale,
		FeeSumSq:      float64(vector.Values[3]) / scale,
		FeeHistogram:  make(map[uint32]uint64),
		Window:        vector.Metadata.Window,
		Timestamp:     vector.Metadata.SourceTimestamp,
		Source:        vector.Metadata.Source,
	}

	for i := 0; i < vector.Metadata.BucketCount; i++ {
		count := uint64(math.Round(float64(vector.Values[4+i]) / scale))
		if count > 0 {
			record.FeeHistogram[uint32(i)] = count
		}
	}

	stats := deriveStats(record)
	return record, stats, nil
}

func deriveStats(record types.AggregateRecord) types.DerivedStats {
	if record.TxCount == 0 {
		return types.DerivedStats{}
	}

	n := float64(record.TxCount)
	avg := record.TotalFees / n
	variance := record.FeeSumSq/n - avg*avg
	if variance < 0 {
		// fixed-point rounding can push a near-zero variance negative
		variance = 0
	}

	return types.DerivedStats{
		ShieldedRatio: float64(record.ShieldedCount) / n,
		AvgFee:        avg,
		FeeVariance:   variance,
	}
}
