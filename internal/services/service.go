package services

import (
	"context"

	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	"github.com/veilscan/shielded-stats-pipeline/internal/pipeline"
	"github.com/veilscan/shielded-stats-pipeline/internal/store"
)

// JobStatusProvider is the slice of the orchestrator the HTTP surface
// needs.
type JobStatusProvider interface {
	GetStatus(ctx context.Context, jobKey string) (pipeline.JobStatus, error)
}

type Service struct {
	cfg   *config.Config
	db    db.DbInterface
	store *store.ResultStore
	jobs  JobStatusProvider
}

func NewService(
	cfg *config.Config,
	db db.DbInterface,
	resultStore *store.ResultStore,
	jobs JobStatusProvider,
) *Service {
	return &Service{
		cfg:   cfg,
		db:    db,
		store: resultStore,
		jobs:  jobs,
	}
}

// StartBackgroundServices launches the pollers and mounts the status
// routes. The pollers stop when ctx is cancelled.
func (s *Service) StartBackgroundServices(ctx context.Context) {
	s.StartStatsPoller(ctx)
	s.StartCleanupPoller(ctx)
	s.RegisterHttpRoutes()
}
