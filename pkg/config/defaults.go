package config

import (
	"strings"
	"time"

	"github.com/pitchsight/pitchsight/internal/bytesize"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Called after loading configuration from file and environment variables.
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	cfg.Database.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
	cfg.API.ApplyDefaults()
	applyBlobDefaults(&cfg.Blob)
	applyQueueDefaults(&cfg.Queue)
	applyUploadDefaults(&cfg.Upload)
	applyWorkerDefaults(&cfg.Worker)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false, zero value is fine

	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyBlobDefaults sets blob store defaults.
// Bucket has no default, it is required and must be configured.
func applyBlobDefaults(cfg *BlobConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.HeadTimeout == 0 {
		cfg.HeadTimeout = 5 * time.Second
	}
}

// applyQueueDefaults sets dispatch queue defaults.
// URL has no default, it is required and must be configured.
func applyQueueDefaults(cfg *QueueConfig) {
	if cfg.WaitTime == 0 {
		cfg.WaitTime = 20 * time.Second
	}
}

// applyUploadDefaults sets upload handshake defaults.
func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.PresignTTL == 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
}

// applyWorkerDefaults sets worker pool defaults. The visibility timeout must
// cover the longest expected analysis; the deadline sits inside it so a
// deadline-shaped failure is redelivered rather than double-claimed.
func applyWorkerDefaults(cfg *WorkerConfig) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.VisibilityTimeout == 0 {
		cfg.VisibilityTimeout = time.Hour
	}
	if cfg.JobDeadline == 0 {
		cfg.JobDeadline = 45 * time.Minute
	}
	if cfg.MaxReceiveCount == 0 {
		cfg.MaxReceiveCount = 3
	}
	if cfg.OffloadThreshold == 0 {
		cfg.OffloadThreshold = 256 * bytesize.KiB
	}
	if cfg.RescanInterval == 0 {
		cfg.RescanInterval = time.Minute
	}
	if cfg.RescanAfter == 0 {
		cfg.RescanAfter = 5 * time.Minute
	}
	// WorkDir defaults to os.TempDir inside the worker itself
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files, testing, and
// documentation.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: jobstore.Config{
			Type: jobstore.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
		Blob: BlobConfig{
			Bucket: "pitchsight-videos",
		},
		Queue: QueueConfig{
			URL: "pitchsight-jobs",
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
