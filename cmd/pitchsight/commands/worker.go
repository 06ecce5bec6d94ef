package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/pkg/config"
	"github.com/pitchsight/pitchsight/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the analysis worker",
	Long: `Start the analysis worker pool. Workers poll the dispatch queue,
claim queued jobs, download the uploaded video, run the pose analysis passes
and persist the findings and report.

Multiple worker processes can poll the same queue; the claim protocol
guarantees each job runs on exactly one worker at a time.

Examples:
  # Start with default config location
  pitchsight worker

  # Start with custom config file
  pitchsight worker --config /etc/pitchsight/config.yaml

  # Override concurrency
  PITCHSIGHT_WORKER_CONCURRENCY=8 pitchsight worker`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObservability, err := setupObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownObservability()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	deps, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	deps.startMetrics(ctx)

	w := worker.New(deps.store, deps.blobs, deps.queue, deps.pipeline, cfg.Worker.PoolConfig())

	logger.Info("Worker is running. Press Ctrl+C to stop.")
	w.Run(ctx)

	logger.Info("Worker stopped gracefully")
	return nil
}
