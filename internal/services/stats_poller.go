package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
	"github.com/veilscan/shielded-stats-pipeline/internal/utils/poller"
)

var gaugedStages = []types.JobStage{
	types.StageIngested,
	types.StageEncoded,
	types.StageSubmitted,
	types.StageComputed,
	types.StageDecoded,
	types.StageStored,
	types.StageSummarized,
	types.StageFailed,
}

// StartStatsPoller starts the stats polling service
func (s *Service) StartStatsPoller(ctx context.Context) {
	statsPoller := poller.NewPoller(
		s.cfg.Poller.StatsPollingInterval,
		metrics.RecordPollerDuration("stats", s.calculateAndUpdateStats),
	)
	go statsPoller.Start(ctx)
}

// calculateAndUpdateStats recomputes the pipeline-wide counters and exports
// them as gauges. Stages with no jobs are written as zero so the gauges
// reset after cleanup.
func (s *Service) calculateAndUpdateStats(ctx context.Context) error {
	counts, err := s.db.CountJobsByStage(ctx)
	if err != nil {
		return fmt.Errorf("failed to count jobs by stage: %w", err)
	}
	for _, stage := range gaugedStages {
		metrics.SetJobsByStage(stage.String(), float64(counts[stage]))
	}

	stored, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count stored results: %w", err)
	}
	metrics.SetStoredResults(float64(stored))

	log.Ctx(ctx).Debug().
		Uint64("stored_results", stored).
		Msg("Updated pipeline stats")
	return nil
}
