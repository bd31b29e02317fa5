package sourceclient

import (
	"context"
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

type sourceClientWithMetrics struct {
	source SourceInterface
}

func NewSourceClientWithMetrics(source SourceInterface) SourceInterface {
	return &sourceClientWithMetrics{source: source}
}

func (s *sourceClientWithMetrics) FetchBatch(
	ctx context.Context, cursor Cursor,
) ([]types.RawTransaction, *Cursor, error) {
	start := time.Now()
	records, next, err := s.source.FetchBatch(ctx, cursor)
	metrics.ObserveSourceClientLatency("FetchBatch", time.Since(start), err)
	return records, next, err
}

func (s *sourceClientWithMetrics) FetchRange(
	ctx context.Context, startHeight, endHeight uint64,
) ([]types.RawTransaction, error) {
	start := time.Now()
	records, err := s.source.FetchRange(ctx, startHeight, endHeight)
	metrics.ObserveSourceClientLatency("FetchRange", time.Since(start), err)
	return records, err
}

func (s *sourceClientWithMetrics) BaseURL() string {
	return s.source.BaseURL()
}
