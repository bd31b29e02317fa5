package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veilscan/shielded-stats-pipeline/internal/clients/sourceclient"
	"github.com/veilscan/shielded-stats-pipeline/internal/config"
	"github.com/veilscan/shielded-stats-pipeline/internal/db"
	dbmodel "github.com/veilscan/shielded-stats-pipeline/internal/db/model"
	"github.com/veilscan/shielded-stats-pipeline/internal/gateway"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/metrics"
	"github.com/veilscan/shielded-stats-pipeline/internal/observability/tracing"
	"github.com/veilscan/shielded-stats-pipeline/internal/pipeline"
	"github.com/veilscan/shielded-stats-pipeline/internal/queue"
	"github.com/veilscan/shielded-stats-pipeline/internal/services"
	"github.com/veilscan/shielded-stats-pipeline/internal/store"
	"github.com/veilscan/shielded-stats-pipeline/internal/summary"
)

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the shielded stats pipeline server",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	// load config
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg(fmt.Sprintf("error while loading config file: %s", cfgPath))
	}

	err = dbmodel.Setup(ctx, &cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while setting up pipeline db model")
	}

	// create new db client
	var dbClient db.DbInterface
	dbClient, err = db.New(ctx, cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating db client")
	}
	dbClient = db.NewDbWithMetrics(dbClient)

	var sourceClient sourceclient.SourceInterface
	sourceClient = sourceclient.NewSourceClient(&cfg.Source)
	sourceClient = sourceclient.NewSourceClientWithMetrics(sourceClient)

	computeGateway := gateway.NewGatewayWithMetrics(gateway.New(&cfg.Gateway))

	var publisher queue.PublisherInterface
	if cfg.Queue != nil {
		queueManager, err := queue.NewQueueManager(cfg.Queue)
		if err != nil {
			log.Fatal().Err(err).Msg("error while creating queue manager")
		}
		defer queueManager.Shutdown()
		publisher = queueManager
	}

	resultStore := store.New(dbClient, cfg.Store.CacheTTL)

	orchestrator := pipeline.New(
		cfg,
		dbClient,
		sourceClient,
		computeGateway,
		resultStore,
		summary.NewStatsGenerator(),
		publisher,
	)
	defer orchestrator.Stop()

	service := services.NewService(cfg, dbClient, resultStore, orchestrator)

	// initialize metrics with the metrics port from config
	metricsPort := cfg.Metrics.GetMetricsPort()
	metrics.Init(metricsPort)

	service.StartBackgroundServices(ctx)

	log.Info().Msg("Pipeline server started")
	<-ctx.Done()
	log.Info().Msg("Shutting down pipeline server")
	return nil
}
