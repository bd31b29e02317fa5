package db

import (
	"context"
	"time"

	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) run(method string, f func() error) error {
	start := time.Now()
	err := f()
	metrics.ObserveDbLatency(method, time.Since(start), err)
	return err
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) SaveResult(ctx context.Context, result *model.StoredResult, overwrite bool) error {
	return d.run("SaveResult", func() error {
		return d.db.SaveResult(ctx, result, overwrite)
	})
}

func (d *DbWithMetrics) GetResult(ctx context.Context, key string) (result *model.StoredResult, err error) {
	//nolint:errcheck
	d.run("GetResult", func() error {
		result, err = d.db.GetResult(ctx, key)
		return err
	})

	return
}

func (d *DbWithMetrics) ListResults(ctx context.Context, filter ResultFilter) (summaries []model.ResultSummary, err error) {
	//nolint:errcheck
	d.run("ListResults", func() error {
		summaries, err = d.db.ListResults(ctx, filter)
		return err
	})

	return
}

func (d *DbWithMetrics) DeleteResult(ctx context.Context, key string) error {
	return d.run("DeleteResult", func() error {
		return d.db.DeleteResult(ctx, key)
	})
}

func (d *DbWithMetrics) DeleteExpiredResults(ctx context.Context, before time.Time, limit uint64) (deleted uint64, err error) {
	//nolint:errcheck
	d.run("DeleteExpiredResults", func() error {
		deleted, err = d.db.DeleteExpiredResults(ctx, before, limit)
		return err
	})

	return
}

func (d *DbWithMetrics) CountResults(ctx context.Context) (count uint64, err error) {
	//nolint:errcheck
	d.run("CountResults", func() error {
		count, err = d.db.CountResults(ctx)
		return err
	})

	return
}

func (d *DbWithMetrics) SaveNewJob(ctx context.Context, job *model.PipelineJobDocument) error {
	return d.run("SaveNewJob", func() error {
		return d.db.SaveNewJob(ctx, job)
	})
}

func (d *DbWithMetrics) GetJob(ctx context.Context, jobKey string) (job *model.PipelineJobDocument, err error) {
	//nolint:errcheck
	d.run("GetJob", func() error {
		job, err = d.db.GetJob(ctx, jobKey)
		return err
	})

	return
}

func (d *DbWithMetrics) UpdateJobStage(
	ctx context.Context,
	jobKey string,
	qualifiedStages []types.JobStage,
	newStage types.JobStage,
	lastError *string,
	resultRef *string,
) error {
	return d.run("UpdateJobStage", func() error {
		return d.db.UpdateJobStage(ctx, jobKey, qualifiedStages, newStage, lastError, resultRef)
	})
}

func (d *DbWithMetrics) IncrementJobAttempts(ctx context.Context, jobKey string) error {
	return d.run("IncrementJobAttempts", func() error {
		return d.db.IncrementJobAttempts(ctx, jobKey)
	})
}

func (d *DbWithMetrics) CountJobsByStage(ctx context.Context) (counts map[types.JobStage]uint64, err error) {
	//nolint:errcheck
	d.run("CountJobsByStage", func() error {
		counts, err = d.db.CountJobsByStage(ctx)
		return err
	})

	return
}

func (d *DbWithMetrics) DeleteExpiredJobs(ctx context.Context, before time.Time, limit uint64) (deleted uint64, err error) {
	//nolint:errcheck
	d.run("DeleteExpiredJobs", func() error {
		deleted, err = d.db.DeleteExpiredJobs(ctx, before, limit)
		return err
	})

	return
}
