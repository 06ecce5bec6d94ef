// Package config loads the PitchSight configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pitchsight/pitchsight/internal/bytesize"
	"github.com/pitchsight/pitchsight/pkg/api"
	"github.com/pitchsight/pitchsight/pkg/blob"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/queue"
	"github.com/pitchsight/pitchsight/pkg/upload"
	"github.com/pitchsight/pitchsight/pkg/worker"
)

// Config represents the PitchSight configuration.
//
// This structure captures static configuration for both the API server and
// the analysis worker:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Database connection (job store persistence)
//   - Blob storage (uploaded videos, offloaded results)
//   - Dispatch queue
//   - Upload handshake and worker pool tuning
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (PITCHSIGHT_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the job store (SQLite or PostgreSQL).
	Database jobstore.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains REST API server configuration
	API api.Config `mapstructure:"api" yaml:"api"`

	// Blob configures the S3-compatible video and results store
	Blob BlobConfig `mapstructure:"blob" yaml:"blob"`

	// Queue configures the SQS-compatible dispatch queue
	Queue QueueConfig `mapstructure:"queue" yaml:"queue"`

	// Upload tunes the two-phase upload handshake
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Worker tunes the analysis worker pool
	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// BlobConfig configures the S3-compatible blob store holding uploaded videos
// and offloaded analysis results.
type BlobConfig struct {
	// Bucket is the bucket name (required).
	// Override: PITCHSIGHT_BLOB_BUCKET or BLOB_BUCKET
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`

	// Region is the AWS region
	// Default: us-east-1
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores
	// (MinIO, LocalStack). Empty uses AWS.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey provide static credentials.
	// Empty falls back to the default AWS credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible endpoints.
	UsePathStyle bool `mapstructure:"use_path_style" yaml:"use_path_style"`

	// HeadTimeout bounds the upload preflight existence check
	// Default: 5s
	HeadTimeout time.Duration `mapstructure:"head_timeout" yaml:"head_timeout"`
}

// StoreConfig converts to the blob store's own configuration type.
func (c *BlobConfig) StoreConfig() blob.S3Config {
	return blob.S3Config{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		UsePathStyle:    c.UsePathStyle,
		HeadTimeout:     c.HeadTimeout,
	}
}

// QueueConfig configures the SQS-compatible dispatch queue.
type QueueConfig struct {
	// URL identifies the queue (required).
	// Override: PITCHSIGHT_QUEUE_URL or QUEUE_URL
	URL string `mapstructure:"url" validate:"required" yaml:"url"`

	// WaitTime is the long-poll duration for receives.
	// Override: WORKER_POLL_SECONDS
	// Default: 20s
	WaitTime time.Duration `mapstructure:"wait_time" yaml:"wait_time"`
}

// ClientConfig converts to the queue client's own configuration type. The
// visibility timeout comes from the worker section so the queue and the
// stale-claim reclaim share one value.
func (c *QueueConfig) ClientConfig(visibility time.Duration) queue.Config {
	return queue.Config{
		URL:               c.URL,
		WaitTime:          c.WaitTime,
		VisibilityTimeout: visibility,
	}
}

// UploadConfig tunes the two-phase upload handshake.
type UploadConfig struct {
	// PresignTTL bounds how long an issued upload URL stays valid.
	// Override: PRESIGNED_URL_TTL_SECONDS
	// Default: 15m
	PresignTTL time.Duration `mapstructure:"presign_ttl" yaml:"presign_ttl"`
}

// CoordinatorConfig converts to the upload coordinator's configuration type.
func (c *UploadConfig) CoordinatorConfig() upload.Config {
	return upload.Config{PresignTTL: c.PresignTTL}
}

// WorkerConfig tunes the analysis worker pool.
type WorkerConfig struct {
	// Concurrency bounds in-flight jobs per worker process.
	// Default: 4
	Concurrency int `mapstructure:"concurrency" validate:"omitempty,min=1" yaml:"concurrency"`

	// VisibilityTimeout must cover the longest expected analysis; it also
	// gates stale-claim reclaim.
	// Override: WORKER_VISIBILITY_TIMEOUT_SECONDS
	// Default: 1h
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" yaml:"visibility_timeout"`

	// JobDeadline bounds one processing attempt end to end.
	// Override: WORKER_JOB_DEADLINE_SECONDS
	// Default: 45m
	JobDeadline time.Duration `mapstructure:"job_deadline" yaml:"job_deadline"`

	// MaxReceiveCount is the delivery cap before a message's job is failed
	// outright.
	// Override: MAX_RECEIVE_COUNT
	// Default: 3
	MaxReceiveCount int `mapstructure:"max_receive_count" validate:"omitempty,min=1" yaml:"max_receive_count"`

	// OffloadThreshold is the results envelope size above which the payload
	// is mirrored to the blob store. Accepts human-readable sizes ("256KiB",
	// "1Mi") or plain byte counts.
	// Default: 256KiB
	OffloadThreshold bytesize.ByteSize `mapstructure:"offload_threshold" yaml:"offload_threshold"`

	// RescanInterval and RescanAfter drive the safety net that re-dispatches
	// queued jobs whose message was lost.
	// Defaults: 1m, 5m
	RescanInterval time.Duration `mapstructure:"rescan_interval" yaml:"rescan_interval"`
	RescanAfter    time.Duration `mapstructure:"rescan_after" yaml:"rescan_after"`

	// WorkDir holds downloaded videos during processing.
	// Default: os.TempDir
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir,omitempty"`
}

// PoolConfig converts to the worker pool's own configuration type.
func (c *WorkerConfig) PoolConfig() worker.Config {
	return worker.Config{
		Concurrency:       c.Concurrency,
		VisibilityTimeout: c.VisibilityTimeout,
		JobDeadline:       c.JobDeadline,
		MaxReceiveCount:   c.MaxReceiveCount,
		OffloadThreshold:  int(c.OffloadThreshold),
		RescanInterval:    c.RescanInterval,
		RescanAfter:       c.RescanAfter,
		WorkDir:           c.WorkDir,
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PITCHSIGHT_* plus the bare aliases below)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks. Runs even when
	// no file was found so bound environment variables still apply.
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  pitchsight init\n\n"+
				"Or specify a custom config file:\n"+
				"  pitchsight <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  pitchsight init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config files may contain credentials, restrict to owner read/write.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the PITCHSIGHT_ prefix and underscores.
	// Example: PITCHSIGHT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("PITCHSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Deployment environments set a handful of flat variable names; bind
	// them onto their config keys so both spellings work.
	_ = v.BindEnv("blob.bucket", "PITCHSIGHT_BLOB_BUCKET", "BLOB_BUCKET")
	_ = v.BindEnv("queue.url", "PITCHSIGHT_QUEUE_URL", "QUEUE_URL")
	_ = v.BindEnv("worker.max_receive_count", "PITCHSIGHT_WORKER_MAX_RECEIVE_COUNT", "MAX_RECEIVE_COUNT")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/pitchsight/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// secondsOverrides maps flat integer-seconds environment variables onto
// duration fields. These variables predate the structured config and are kept
// for deployment compatibility.
var secondsOverrides = []struct {
	env   string
	field func(*Config) *time.Duration
}{
	{"PRESIGNED_URL_TTL_SECONDS", func(c *Config) *time.Duration { return &c.Upload.PresignTTL }},
	{"WORKER_VISIBILITY_TIMEOUT_SECONDS", func(c *Config) *time.Duration { return &c.Worker.VisibilityTimeout }},
	{"WORKER_JOB_DEADLINE_SECONDS", func(c *Config) *time.Duration { return &c.Worker.JobDeadline }},
	{"WORKER_POLL_SECONDS", func(c *Config) *time.Duration { return &c.Queue.WaitTime }},
}

// applyEnvOverrides applies the integer-seconds environment aliases. Viper's
// duration decode hook would read "3600" as nanoseconds, so these are parsed
// explicitly.
func applyEnvOverrides(cfg *Config) error {
	for _, o := range secondsOverrides {
		raw := os.Getenv(o.env)
		if raw == "" {
			continue
		}
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %q is not an integer", o.env, raw)
		}
		*o.field(cfg) = time.Duration(secs) * time.Second
	}
	return nil
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable, use defaults
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		// Covers bytesize.ByteSize fields ("256KiB", "1Mi").
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pitchsight")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "pitchsight")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
