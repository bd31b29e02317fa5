package db

import (
	"context"
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// ResultFilter narrows ListResults. Zero values match everything.
type ResultFilter struct {
	Source       string
	StoredAfter  time.Time
	StoredBefore time.Time
	Limit        int64
}

type DbInterface interface {
	Ping(ctx context.Context) error

	// results
	SaveResult(ctx context.Context, result *model.StoredResult, overwrite bool) error
	GetResult(ctx context.Context, key string) (*model.StoredResult, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]model.ResultSummary, error)
	DeleteResult(ctx context.Context, key string) error
	DeleteExpiredResults(ctx context.Context, before time.Time, limit uint64) (uint64, error)
	CountResults(ctx context.Context) (uint64, error)

	// jobs
	SaveNewJob(ctx context.Context, job *model.PipelineJobDocument) error
	GetJob(ctx context.Context, jobKey string) (*model.PipelineJobDocument, error)
	UpdateJobStage(
		ctx context.Context,
		jobKey string,
		qualifiedStages []types.JobStage,
		newStage types.JobStage,
		lastError *string,
		resultRef *string,
	) error
	IncrementJobAttempts(ctx context.Context, jobKey string) error
	CountJobsByStage(ctx context.Context) (map[types.JobStage]uint64, error)
	DeleteExpiredJobs(ctx context.Context, before time.Time, limit uint64) (uint64, error)
}
