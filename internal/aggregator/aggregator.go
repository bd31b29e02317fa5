package aggregator

import (
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// ShieldedPredicate decides whether a transaction counts as shielded. The
// predicate is a deployment policy, not a hard-coded rule: different
// upstreams expose shielding through counts or through a flag.
type ShieldedPredicate func(tx types.RawTransaction) bool

// ByShieldedTransfers counts a transaction as shielded when it carries at
// least one shielded spend or output, falling back to the upstream flag.
func ByShieldedTransfers(tx types.RawTransaction) bool {
	return tx.ShieldedSpends > 0 || tx.ShieldedOuts > 0 || tx.Shielded
}

// ByShieldedFlag trusts the upstream boolean only.
func ByShieldedFlag(tx types.RawTransaction) bool {
	return tx.Shielded
}

type Aggregator struct {
	cfg        *config.CodecConfig
	isShielded ShieldedPredicate
}

func New(cfg *config.CodecConfig, predicate ShieldedPredicate) *Aggregator {
	if predicate == nil {
		predicate = ByShieldedTransfers
	}
	return &Aggregator{cfg: cfg, isShielded: predicate}
}

// BucketWidth resolves the effective histogram bucket width for a batch.
// With the static policy it is the configured width; with dynamic-max it is
// derived from the batch's maximum fee. The caller records the result in the
// vector metadata so decode never has to rediscover it.
func (a *Aggregator) BucketWidth(records []types.RawTransaction) float64 {
	if a.cfg.Policy() == types.BucketPolicyStatic {
		return a.cfg.BucketWidth
	}

	var maxFee float64
	for _, tx := range records {
		if tx.Fee > maxFee {
			maxFee = tx.Fee
		}
	}
	if maxFee == 0 {
		// empty or zero-fee batch, any positive width keeps everything in
		// bucket 0
		return 1
	}
	return maxFee / float64(a.cfg.BucketCount)
}

// Aggregate folds a batch of transactions into a single record in one pass.
func (a *Aggregator) Aggregate(
	records []types.RawTransaction, window types.AggregationWindow, source string,
) types.AggregateRecord {
	width := a.BucketWidth(records)
	bucketCount := uint32(a.cfg.BucketCount)

	agg := types.AggregateRecord{
		FeeHistogram: make(map[uint32]uint64),
		Window:       window,
		Timestamp:    time.Now().UTC(),
		Source:       source,
	}

	for _, tx := range records {
		agg.TxCount++
		if a.isShielded(tx) {
			agg.ShieldedCount++
		}
		agg.TotalFees += tx.Fee
		agg.FeeSumSq += tx.Fee * tx.Fee

		bucket := uint32(tx.Fee / width)
		if bucket > bucketCount-1 {
			bucket = bucketCount - 1
		}
		agg.FeeHistogram[bucket]++
	}

	return agg
}
