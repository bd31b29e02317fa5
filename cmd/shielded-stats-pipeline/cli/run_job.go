package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veilscan/shielded-stats-pipeline/internal/clients/sourceclient"
	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	dbmodel "github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/gateway"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/pipeline"
	"github.com/veilscan/shielded-stats-pipeline/internal/store"
	"github.com/veilscan/shielded-stats-pipeline/internal/summary"
	"github.com/veilscan/shielded-stats-pipeline/internal/types"
)

// RunJobCmd runs a single pipeline job to a terminal stage and exits
// Usage: ./shielded-stats-pipeline run-job --config config.yml --start 100 --end 200 [--window hour] [--key <key>]
func RunJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-job",
		Short: "Run one pipeline job for a block range and wait for it to finish",
		Run:   runJob,
	}

	cmd.Flags().Uint64("start", 0, "First block height of the range (inclusive)")
	cmd.Flags().Uint64("end", 0, "Last block height of the range (inclusive)")
	cmd.Flags().String("window", types.WindowHour.String(), "Aggregation window: hour, day or week")
	cmd.Flags().String("key", "", "Job key. Derived from the range and window if omitted")

	return cmd
}

func runJob(cmd *cobra.Command, _ []string) {
	cfg, err := config.New(GetConfigPath())
	if err != nil {
		log.Err(err).Msg("Failed to load config")
		os.Exit(1)
	}

	start, err := cmd.Flags().GetUint64("start")
	if err != nil {
		log.Err(err).Msg("Failed to parse start flag")
		os.Exit(1)
	}
	end, err := cmd.Flags().GetUint64("end")
	if err != nil {
		log.Err(err).Msg("Failed to parse end flag")
		os.Exit(1)
	}
	windowFlag, err := cmd.Flags().GetString("window")
	if err != nil {
		log.Err(err).Msg("Failed to parse window flag")
		os.Exit(1)
	}
	window, err := types.ParseAggregationWindow(windowFlag)
	if err != nil {
		log.Err(err).Msg("Failed to parse window flag")
		os.Exit(1)
	}
	jobKey, err := cmd.Flags().GetString("key")
	if err != nil {
		log.Err(err).Msg("Failed to parse key flag")
		os.Exit(1)
	}

	params := pipeline.JobParams{StartHeight: start, EndHeight: end, Window: window}
	if jobKey == "" {
		jobKey = pipeline.DeriveJobKey(params)
	}

	if err := RunJob(cmd.Context(), cfg, jobKey, params); err != nil {
		log.Err(err).Msg("Pipeline job did not finish cleanly")
		os.Exit(1)
	}

	os.Exit(0)
}

func RunJob(ctx context.Context, cfg *config.Config, jobKey string, params pipeline.JobParams) error {
	if err := dbmodel.Setup(ctx, &cfg.Db); err != nil {
		return fmt.Errorf("failed to set up pipeline db model: %w", err)
	}

	dbClient, err := db.New(ctx, cfg.Db)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	metrics.Init(cfg.Metrics.GetMetricsPort())

	sourceClient := sourceclient.NewSourceClient(&cfg.Source)
	computeGateway := gateway.New(&cfg.Gateway)
	resultStore := store.New(dbClient, cfg.Store.CacheTTL)

	orchestrator := pipeline.New(
		cfg,
		dbClient,
		sourceClient,
		computeGateway,
		resultStore,
		summary.NewStatsGenerator(),
		nil,
	)
	defer orchestrator.Stop()

	log := log.Ctx(ctx)
	log.Info().
		Str("job_key", jobKey).
		Str("range", params.BlockRange()).
		Str("window", params.Window.String()).
		Msg("Starting pipeline job")

	if err := orchestrator.Start(ctx, jobKey, params); err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobKey, err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		status, err := orchestrator.GetStatus(ctx, jobKey)
		if err != nil {
			return fmt.Errorf("failed to read job status: %w", err)
		}
		if status.Stage.IsTerminal() {
			if status.Stage == types.StageFailed {
				reason := "unknown"
				if status.LastError != nil {
					reason = *status.LastError
				}
				return fmt.Errorf("job %s failed: %s", jobKey, reason)
			}
			log.Info().
				Str("job_key", jobKey).
				Str("stage", status.Stage.String()).
				Msg("Pipeline job finished")

			result, err := resultStore.Get(ctx, jobKey)
			if err != nil {
				return fmt.Errorf("failed to load stored result: %w", err)
			}
			log.Info().
				Str("reference_id", result.ReferenceID).
				Float64("shielded_ratio", result.Stats.ShieldedRatio).
				Float64("avg_fee", result.Stats.AvgFee).
				Str("summary", result.Summary).
				Msg("Stored result")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
