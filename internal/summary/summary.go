package summary

import (
	"context"
	"fmt"

	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// maxTextLen bounds the natural-language summary.
const maxTextLen = 300

// Summary is the generator output: a bounded embedding plus a short
// human-readable description.
type Summary struct {
	Embedding map[string]float64 `json:"embedding"`
	Text      string             `json:"text"`
}

// GeneratorInterface is the summary generator contract. Any implementation
// producing an embedding with values in [0,1] and text under 300 characters
// is acceptable; the pipeline treats it as a black box.
type GeneratorInterface interface {
	Generate(ctx context.Context, record types.AggregateRecord, stats types.DerivedStats) (Summary, error)
}

// StatsGenerator is the built-in deterministic implementation, used when no
// external model is wired in.
type StatsGenerator struct{}

func NewStatsGenerator() *StatsGenerator {
	return &StatsGenerator{}
}

func (g *StatsGenerator) Generate(
	_ context.Context, record types.AggregateRecord, stats types.DerivedStats,
) (Summary, error) {
	embedding := map[string]float64{
		"shielded_ratio": clamp01(stats.ShieldedRatio),
		"activity":       squash(float64(record.TxCount) / 1000),
		"fee_intensity":  squash(stats.AvgFee * 1e4),
		"fee_dispersion": squash(stats.FeeVariance * 1e8),
	}

	text := fmt.Sprintf(
		"%d transactions over the last %s from %s: %.1f%% shielded, average fee %.8f with %d fee buckets populated.",
		record.TxCount,
		record.Window,
		record.Source,
		stats.ShieldedRatio*100,
		stats.AvgFee,
		len(record.FeeHistogram),
	)
	if len(text) > maxTextLen {
		text = text[:maxTextLen]
	}

	return Summary{Embedding: embedding, Text: text}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// squash maps a non-negative value into [0,1), monotonically.
func squash(v float64) float64 {
	if v < 0 {
		v = 0
	}
	return v / (v + 1)
}
