package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/internal/telemetry"
	"github.com/pitchsight/pitchsight/pkg/blob"
	"github.com/pitchsight/pitchsight/pkg/config"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/metrics"
	"github.com/pitchsight/pitchsight/pkg/queue"
)

// runtimeDeps holds the shared infrastructure both long-running commands wire
// up: job store, blob store, dispatch queue and optional metrics.
type runtimeDeps struct {
	store         *jobstore.GORMStore
	blobs         blob.Store
	queue         queue.Queue
	pipeline      *metrics.Pipeline
	metricsServer *metrics.Server
}

// buildRuntime connects the database, blob store and dispatch queue.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtimeDeps, error) {
	store, err := jobstore.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, cfg.Blob.StoreConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	sqsClient, err := newSQSClient(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	q, err := queue.NewSQSQueue(sqsClient, cfg.Queue.ClientConfig(cfg.Worker.VisibilityTimeout))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	deps := &runtimeDeps{store: store, blobs: blobs, queue: q}

	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		deps.pipeline = metrics.NewPipeline(reg)
		deps.metricsServer = metrics.NewServer(reg, cfg.Metrics.Port)
	}

	return deps, nil
}

// Close releases the runtime's database connection.
func (d *runtimeDeps) Close() {
	if err := d.store.Close(); err != nil {
		logger.Error("Failed to close job store", "error", err)
	}
}

// startMetrics runs the metrics server in the background when enabled.
func (d *runtimeDeps) startMetrics(ctx context.Context) {
	if d.metricsServer == nil {
		logger.Info("Metrics collection disabled")
		return
	}
	go func() {
		if err := d.metricsServer.Start(ctx); err != nil {
			logger.Error("Metrics server error", "error", err)
		}
	}()
}

// newSQSClient builds the SQS client. LocalStack-style stacks serve S3 and
// SQS from one endpoint, so the queue client reuses the blob section's
// credentials and endpoint override.
func newSQSClient(ctx context.Context, b config.BlobConfig) (*sqs.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if b.Region != "" {
		opts = append(opts, awsconfig.WithRegion(b.Region))
	}
	if b.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(b.AccessKeyID, b.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if b.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.Endpoint)
		}
	}), nil
}

// initLogger initializes the structured logger from configuration.
func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// setupObservability initializes tracing and profiling. The returned function
// shuts both down and must be deferred by the caller.
func setupObservability(ctx context.Context, cfg *config.Config) (func(), error) {
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "pitchsight",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "pitchsight",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		_ = telemetryShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	return func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}, nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
