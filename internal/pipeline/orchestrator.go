package pipeline

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/veilscan/shielded-stats-pipeline/internal/aggregator"
	"github.com/veilscan/shielded-stats-pipeline/internal/clients/sourceclient"
	"github.com/veilscan/shielded-stats-pipeline/internal/codec"
	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	"github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/gateway"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/tracing"
	"github.com/veilscan/shielded-stats-pipeline/internal/queue"
	"github.com/veilscan/shielded-stats-pipeline/internal/store"
	"github.com/veilscan/shielded-stats-pipeline/internal/summary"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// Orchestrator drives jobs through the stage sequence. Each job runs on the
// shared worker pool; the registry keeps exactly one entry per key so
// repeated Start calls are no-ops.
type Orchestrator struct {
	cfg        *config.Config
	db         db.DbInterface
	source     sourceclient.SourceInterface
	gateway    gateway.GatewayInterface
	aggregator *aggregator.Aggregator
	codec      *codec.VectorCodec
	store      *store.ResultStore
	summarizer summary.GeneratorInterface
	queue      queue.PublisherInterface

	jobs     *xsync.Map[string, *jobEntry]
	pool     pond.Pool
	inflight conc.WaitGroup
}

func New(
	cfg *config.Config,
	dbClient db.DbInterface,
	source sourceclient.SourceInterface,
	gw gateway.GatewayInterface,
	resultStore *store.ResultStore,
	summarizer summary.GeneratorInterface,
	publisher queue.PublisherInterface,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		db:         dbClient,
		source:     source,
		gateway:    gw,
		aggregator: aggregator.New(&cfg.Codec, aggregator.ByShieldedTransfers),
		codec:      codec.New(&cfg.Codec),
		store:      resultStore,
		summarizer: summarizer,
		queue:      publisher,
		jobs:       xsync.NewMap[string, *jobEntry](),
		pool:       pond.NewPool(cfg.Pipeline.MaxWorkers),
	}
}

// Start registers a job and schedules it on the worker pool. It returns once
// the job is accepted; the run itself is asynchronous. Starting a key that
// is already running or finished successfully, locally or in the database,
// is a no-op; starting a FAILED key runs it again.
func (o *Orchestrator) Start(ctx context.Context, jobKey string, params JobParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := &jobEntry{
		running: true,
		status: JobStatus{
			JobKey:      jobKey,
			Stage:       types.StageIngested,
			StartHeight: params.StartHeight,
			EndHeight:   params.EndHeight,
			Window:      params.Window,
			UpdatedAt:   now,
		},
	}
	if existing, loaded := o.jobs.LoadOrStore(jobKey, entry); loaded {
		if !existing.tryRestart() {
			log.Ctx(ctx).Debug().Str("jobKey", jobKey).Msg("Job already registered, skipping")
			return nil
		}
		return o.restart(ctx, jobKey, existing, params)
	}

	err := o.db.SaveNewJob(ctx, &model.PipelineJobDocument{
		JobKey:      jobKey,
		Stage:       types.StageIngested,
		StartHeight: params.StartHeight,
		EndHeight:   params.EndHeight,
		Window:      params.Window.String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if !db.IsDuplicateKeyError(err) {
			o.jobs.Delete(jobKey)
			return err
		}
		// another process owns this key; mirror its persisted state so
		// GetStatus answers, but do not run it twice
		persisted, getErr := o.db.GetJob(ctx, jobKey)
		if getErr != nil {
			o.jobs.Delete(jobKey)
			return getErr
		}
		entry.setRunning(false)
		entry.setStage(persisted.Stage, persisted.LastError, persisted.ResultRef)
		log.Ctx(ctx).Warn().
			Str("jobKey", jobKey).
			Str("stage", persisted.Stage.String()).
			Msg("Job already persisted, skipping")
		return nil
	}

	o.schedule(ctx, jobKey, entry, params)
	return nil
}

// restart re-runs a previously failed job. The persisted stage is reset
// through the qualified filter first, so only one process wins a concurrent
// restart race.
func (o *Orchestrator) restart(ctx context.Context, jobKey string, entry *jobEntry, params JobParams) error {
	qualified := types.QualifiedStagesFor(types.StageIngested)
	if err := o.db.UpdateJobStage(ctx, jobKey, qualified, types.StageIngested, nil, nil); err != nil {
		entry.setRunning(false)
		if db.IsStaleStageError(err) {
			if persisted, getErr := o.db.GetJob(ctx, jobKey); getErr == nil {
				entry.setStage(persisted.Stage, persisted.LastError, persisted.ResultRef)
			}
			log.Ctx(ctx).Warn().Str("jobKey", jobKey).Msg("Job restarted elsewhere, skipping")
			return nil
		}
		entry.setStage(types.StageFailed, nil, nil)
		return err
	}
	entry.setStage(types.StageIngested, nil, nil)

	log.Ctx(ctx).Info().Str("jobKey", jobKey).Msg("Restarting failed job")
	o.schedule(ctx, jobKey, entry, params)
	return nil
}

func (o *Orchestrator) schedule(ctx context.Context, jobKey string, entry *jobEntry, params JobParams) {
	task := o.pool.SubmitErr(func() error {
		defer entry.setRunning(false)
		return o.runJob(context.WithoutCancel(ctx), jobKey, entry, params)
	})
	o.inflight.Go(func() {
		// runJob has already logged and recorded the failure
		_ = task.Wait()
	})
}

// GetStatus reports the job's current snapshot, falling back to the
// database for jobs started by an earlier process.
func (o *Orchestrator) GetStatus(ctx context.Context, jobKey string) (JobStatus, error) {
	if entry, ok := o.jobs.Load(jobKey); ok {
		return entry.snapshot(), nil
	}

	persisted, err := o.db.GetJob(ctx, jobKey)
	if err != nil {
		return JobStatus{}, err
	}
	window, _ := types.ParseAggregationWindow(persisted.Window)
	return JobStatus{
		JobKey:      persisted.JobKey,
		Stage:       persisted.Stage,
		Attempts:    persisted.Attempts,
		LastError:   persisted.LastError,
		ResultRef:   persisted.ResultRef,
		StartHeight: persisted.StartHeight,
		EndHeight:   persisted.EndHeight,
		Window:      window,
		UpdatedAt:   persisted.UpdatedAt,
	}, nil
}

// Stop drains in-flight jobs and shuts the worker pool down.
func (o *Orchestrator) Stop() {
	o.inflight.Wait()
	o.pool.StopAndWait()
}

// runJob executes the whole stage sequence for one job. Any error that
// survives a stage's retry budget moves the job to FAILED.
func (o *Orchestrator) runJob(ctx context.Context, jobKey string, entry *jobEntry, params JobParams) error {
	ctx = tracing.InjectTraceID(ctx)
	ctx = tracing.InjectJobKey(ctx, jobKey)

	var records []types.RawTransaction
	if err := o.step(ctx, jobKey, entry, "ingest", o.cfg.Pipeline.StageRetries, func(ctx context.Context) error {
		var err error
		records, err = o.source.FetchRange(ctx, params.StartHeight, params.EndHeight)
		return err
	}); err != nil {
		return o.fail(ctx, jobKey, entry, "ingest", err)
	}

	record := o.aggregator.Aggregate(records, params.Window, o.source.BaseURL())
	bucketWidth := o.aggregator.BucketWidth(records)

	var vector types.EncodedVector
	if err := o.step(ctx, jobKey, entry, "encode", 1, func(ctx context.Context) error {
		var err error
		vector, err = o.codec.Encode(record, bucketWidth)
		return err
	}); err != nil {
		return o.fail(ctx, jobKey, entry, "encode", err)
	}
	if err := o.transition(ctx, jobKey, entry, types.StageEncoded, nil, nil); err != nil {
		return o.fail(ctx, jobKey, entry, "encode", err)
	}

	var token string
	submittedAt := time.Now().UTC()
	if err := o.step(ctx, jobKey, entry, "submit", o.cfg.Pipeline.StageRetries, func(ctx context.Context) error {
		var err error
		token, err = o.gateway.Submit(ctx, vector, vectorFingerprint(vector))
		return err
	}); err != nil {
		return o.fail(ctx, jobKey, entry, "submit", err)
	}
	if err := o.transition(ctx, jobKey, entry, types.StageSubmitted, nil, nil); err != nil {
		return o.fail(ctx, jobKey, entry, "submit", err)
	}

	// the poll budget inside AwaitResult is the retry mechanism here, a
	// spent budget fails the job
	var blob []byte
	if err := o.step(ctx, jobKey, entry, "await", 1, func(ctx context.Context) error {
		var err error
		blob, err = gateway.AwaitResult(ctx, o.gateway, &o.cfg.Gateway, token)
		return err
	}); err != nil {
		return o.fail(ctx, jobKey, entry, "await", err)
	}
	if err := o.transition(ctx, jobKey, entry, types.StageComputed, nil, nil); err != nil {
		return o.fail(ctx, jobKey, entry, "await", err)
	}

	var (
		decoded types.AggregateRecord
		stats   types.DerivedStats
	)
	var resultVector types.EncodedVector
	if err := o.step(ctx, jobKey, entry, "decode", 1, func(ctx context.Context) error {
		var err error
		resultVector, err = gateway.DecodeResult(blob)
		if err != nil {
			return err
		}
		decoded, stats, err = o.codec.Decode(resultVector)
		return err
	}); err != nil {
		return o.fail(ctx, jobKey, entry, "decode", err)
	}
	if err := o.transition(ctx, jobKey, entry, types.StageDecoded, nil, nil); err != nil {
		return o.fail(ctx, jobKey, entry, "decode", err)
	}

	referenceID := uuid.NewString()
	result := &model.StoredResult{
		Key:         jobKey,
		ReferenceID: referenceID,
		Payload:     blob,
		Metadata:    resultVector.Metadata,
		Stats:       stats,
		Provenance: model.Provenance{
			SourceURL:   o.source.BaseURL(),
			BlockRange:  params.BlockRange(),
			SubmittedAt: submittedAt,
		},
		StoredAt: time.Now().UTC(),
	}
	if err := o.step(ctx, jobKey, entry, "store", o.cfg.Pipeline.StageRetries, func(ctx context.Context) error {
		err := o.store.Put(ctx, result, false)
		if types.IsStorageConflictError(err) {
			// a previous run of this job stored the result before failing
			// at a later stage; the re-run owns the key and replaces it
			return o.store.Put(ctx, result, true)
		}
		return err
	}); err != nil {
		return o.fail(ctx, jobKey, entry, "store", err)
	}
	if err := o.transition(ctx, jobKey, entry, types.StageStored, nil, &referenceID); err != nil {
		return o.fail(ctx, jobKey, entry, "store", err)
	}

	if err := o.step(ctx, jobKey, entry, "summarize", 1, func(ctx context.Context) error {
		sum, err := o.summarizer.Generate(ctx, decoded, stats)
		if err != nil {
			return err
		}
		result.Summary = sum.Text
		return o.store.Put(ctx, result, true)
	}); err != nil {
		return o.fail(ctx, jobKey, entry, "summarize", err)
	}
	if err := o.transition(ctx, jobKey, entry, types.StageSummarized, nil, nil); err != nil {
		return o.fail(ctx, jobKey, entry, "summarize", err)
	}

	log.Ctx(ctx).Info().
		Str("referenceId", referenceID).
		Uint("txCount", decoded.TxCount).
		Msg("Pipeline job finished")

	if o.queue != nil {
		event := &queue.ResultStoredEvent{
			JobKey:      jobKey,
			ReferenceID: referenceID,
			Source:      result.Provenance.SourceURL,
			BlockRange:  result.Provenance.BlockRange,
			StoredAt:    result.StoredAt,
		}
		if err := o.queue.PublishResultStored(ctx, event); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to publish result stored event")
		}
	}
	return nil
}

// step runs one stage body under the per-stage retry budget. Only errors the
// taxonomy marks retryable are retried; everything else surfaces on the
// first attempt.
func (o *Orchestrator) step(
	ctx context.Context,
	jobKey string,
	entry *jobEntry,
	stageName string,
	attempts uint,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	err := retry.Do(
		func() error {
			stageCtx, cancel := context.WithTimeout(ctx, o.cfg.Pipeline.StageTimeout)
			defer cancel()
			return fn(stageCtx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(o.cfg.Pipeline.RetryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(types.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			metrics.IncJobRetry(stageName)
			entry.incrementAttempts()
			if dbErr := o.db.IncrementJobAttempts(ctx, jobKey); dbErr != nil {
				log.Ctx(ctx).Error().Err(dbErr).Msg("Failed to record job attempt")
			}
			log.Ctx(ctx).Warn().Err(err).
				Str("stage", stageName).
				Uint("attempt", n+1).
				Msg("Retrying pipeline stage")
		}),
	)
	metrics.ObserveStageDuration(stageName, time.Since(start), err)
	return err
}

// transition advances the persisted job through the qualified-stage filter,
// then mirrors the move into the in-memory entry.
func (o *Orchestrator) transition(
	ctx context.Context,
	jobKey string,
	entry *jobEntry,
	next types.JobStage,
	lastError *string,
	resultRef *string,
) error {
	qualified := types.QualifiedStagesFor(next)
	if err := o.db.UpdateJobStage(ctx, jobKey, qualified, next, lastError, resultRef); err != nil {
		return err
	}
	entry.setStage(next, lastError, resultRef)
	return nil
}

func (o *Orchestrator) fail(
	ctx context.Context, jobKey string, entry *jobEntry, stageName string, cause error,
) error {
	reason := cause.Error()
	if err := o.transition(ctx, jobKey, entry, types.StageFailed, &reason, nil); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to record job failure")
	}
	log.Ctx(ctx).Error().Err(cause).
		Str("stage", stageName).
		Msg("Pipeline job failed")

	if o.queue != nil {
		event := &queue.JobFailedEvent{
			JobKey:   jobKey,
			Stage:    types.StageFailed,
			Reason:   reason,
			FailedAt: time.Now().UTC(),
		}
		if err := o.queue.PublishJobFailed(ctx, event); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to publish job failed event")
		}
	}
	return cause
}
