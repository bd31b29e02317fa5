package types

import "time"

// Enum values for histogram bucket width policy. The policy is pinned in the
// vector metadata at encode time; decode reads it back instead of guessing.
type BucketPolicy string

const (
	BucketPolicyStatic     BucketPolicy = "static"
	BucketPolicyDynamicMax BucketPolicy = "dynamic-max"
)

func (p BucketPolicy) String() string {
	return string(p)
}

// VarianceModeVariance pins the decode convention for the fee dispersion
// field: raw variance, not its square root.
const VarianceModeVariance = "variance"

// VectorMetadata travels with an encoded vector and carries everything the
// decode step needs to reverse the encoding.
type VectorMetadata struct {
	ScalingFactor   float64           `json:"scaling_factor"`
	BucketCount     int               `json:"bucket_count"`
	BucketWidth     float64           `json:"bucket_width"`
	BucketPolicy    BucketPolicy      `json:"bucket_policy"`
	VarianceMode    string            `json:"variance_mode"`
	SourceTimestamp time.Time         `json:"source_timestamp"`
	Window          AggregationWindow `json:"window"`
	Source          string            `json:"source"`
}

// EncodedVector is the fixed-point representation of an AggregateRecord,
// laid out as [tx_count, shielded_count, total_fees, fee_sum_sq,
// bucket_0 .. bucket_{B-1}].
type EncodedVector struct {
	Values   []int64        `json:"values"`
	Metadata VectorMetadata `json:"metadata"`
}

// scalarSlots is the number of non-histogram positions in the layout.
const scalarSlots = 4

func (v *EncodedVector) ExpectedLen() int {
	return scalarSlots + v.Metadata.BucketCount
}

// Validate enforces the layout invariant len(values) == 4 + bucket_count.
func (v *EncodedVector) Validate() error {
	if len(v.Values) != v.ExpectedLen() {
		return &DecodeMismatchError{Expected: v.ExpectedLen(), Got: len(v.Values)}
	}
	return nil
}
