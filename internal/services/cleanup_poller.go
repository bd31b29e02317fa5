package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/utils/poller"
)

// StartCleanupPoller starts the expiry sweep for stored results and
// finished jobs. A zero result-ttl disables it.
func (s *Service) StartCleanupPoller(ctx context.Context) {
	if s.cfg.Store.ResultTTL == 0 {
		log.Info().Msg("Result expiry disabled, cleanup poller not started")
		return
	}

	cleanupPoller := poller.NewPoller(
		s.cfg.Poller.CleanupPollingInterval,
		metrics.RecordPollerDuration("cleanup", s.sweepExpired),
	)
	go cleanupPoller.Start(ctx)
}

func (s *Service) sweepExpired(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.Store.ResultTTL)
	limit := s.cfg.Poller.ExpiredResultsLimit

	deletedResults, err := s.store.DeleteExpired(ctx, cutoff, limit)
	if err != nil {
		return fmt.Errorf("failed to delete expired results: %w", err)
	}

	deletedJobs, err := s.db.DeleteExpiredJobs(ctx, cutoff, limit)
	if err != nil {
		return fmt.Errorf("failed to delete expired jobs: %w", err)
	}

	if deletedResults > 0 || deletedJobs > 0 {
		log.Ctx(ctx).Info().
			Uint64("deleted_results", deletedResults).
			Uint64("deleted_jobs", deletedJobs).
			Time("cutoff", cutoff).
			Msg("Expired pipeline data removed")
	}
	return nil
}
