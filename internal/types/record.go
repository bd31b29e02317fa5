package types

import (
	"fmt"
	"time"
)

// RawTransaction is a single upstream transaction record, already parsed
// from the provider's JSON.
type RawTransaction struct {
	TxID           string  `json:"tx_id"`
	BlockHeight    uint64  `json:"block_height"`
	Fee            float64 `json:"fee"`
	ShieldedSpends uint    `json:"shielded_spends"`
	ShieldedOuts   uint    `json:"shielded_outputs"`
	Shielded       bool    `json:"shielded"`
	Timestamp      int64   `json:"timestamp"`
}

// AggregateRecord is the statistical reduction of one batch of transactions.
type AggregateRecord struct {
	TxCount       uint              `json:"tx_count"`
	ShieldedCount uint              `json:"shielded_count"`
	TotalFees     float64           `json:"total_fees"`
	FeeSumSq      float64           `json:"fee_sum_sq"`
	FeeHistogram  map[uint32]uint64 `json:"fee_histogram"`
	Window        AggregationWindow `json:"window"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
}

func (r *AggregateRecord) Validate() error {
	if r.ShieldedCount > r.TxCount {
		return fmt.Errorf("shielded_count %d exceeds tx_count %d", r.ShieldedCount, r.TxCount)
	}
	if r.TotalFees < 0 || r.FeeSumSq < 0 {
		return fmt.Errorf("negative fee statistics")
	}
	return nil
}

// HistogramTotal sums the histogram counts. Once a record is fully populated
// this must equal TxCount.
func (r *AggregateRecord) HistogramTotal() uint64 {
	var total uint64
	for _, c := range r.FeeHistogram {
		total += c
	}
	return total
}

// DerivedStats are the plaintext ratios computed at decode time.
type DerivedStats struct {
	ShieldedRatio float64 `json:"shielded_ratio"`
	AvgFee        float64 `json:"avg_fee"`
	FeeVariance   float64 `json:"fee_variance"`
}
