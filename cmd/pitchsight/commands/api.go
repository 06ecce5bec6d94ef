package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/pkg/api"
	"github.com/pitchsight/pitchsight/pkg/config"
	"github.com/pitchsight/pitchsight/pkg/export"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the PitchSight API server",
	Long: `Start the REST API server serving session management, the two-phase
video upload handshake, job polling and PDF export.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/pitchsight/config.yaml.

Examples:
  # Start with default config location
  pitchsight api

  # Start with custom config file
  pitchsight api --config /etc/pitchsight/config.yaml

  # Start with environment variable overrides
  PITCHSIGHT_LOGGING_LEVEL=DEBUG pitchsight api`,
	RunE: runAPI,
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	coordinator := upload.NewCoordinator(deps.store, deps.blobs, deps.queue, deps.pipeline, cfg.Upload.CoordinatorConfig())
	exporter := export.NewService(deps.store, deps.pipeline)

	server, err := api.NewServer(cfg.API, deps.store, coordinator, exporter)
	if err != nil {
		return err
	}

	deps.startMetrics(ctx)

	logger.Info("API server is running. Press Ctrl+C to stop.")
	return server.Start(ctx)
}
