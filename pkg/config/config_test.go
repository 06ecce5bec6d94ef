package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pitchsight/pitchsight/internal/bytesize"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
blob:
  bucket: test-bucket
queue:
  url: https://sqs.test/jobs
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default log level INFO, got %s", cfg.Logging.Level)
	}
	if cfg.Database.Type != jobstore.DatabaseTypeSQLite {
		t.Errorf("expected default sqlite database, got %s", cfg.Database.Type)
	}
	if cfg.Worker.VisibilityTimeout != time.Hour {
		t.Errorf("expected default visibility 1h, got %s", cfg.Worker.VisibilityTimeout)
	}
	if cfg.Worker.JobDeadline != 45*time.Minute {
		t.Errorf("expected default deadline 45m, got %s", cfg.Worker.JobDeadline)
	}
	if cfg.Worker.MaxReceiveCount != 3 {
		t.Errorf("expected default receive cap 3, got %d", cfg.Worker.MaxReceiveCount)
	}
	if cfg.Queue.WaitTime != 20*time.Second {
		t.Errorf("expected default poll 20s, got %s", cfg.Queue.WaitTime)
	}
	if cfg.Upload.PresignTTL != 15*time.Minute {
		t.Errorf("expected default presign TTL 15m, got %s", cfg.Upload.PresignTTL)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("expected default API port 8080, got %d", cfg.API.Port)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
blob:
  bucket: match-videos
  region: eu-west-2
  use_path_style: true
queue:
  url: https://sqs.test/jobs
  wait_time: 5s
worker:
  concurrency: 8
  visibility_timeout: 2h
  job_deadline: 30m
  offload_threshold: 1Mi
upload:
  presign_ttl: 5m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected level normalized to DEBUG, got %s", cfg.Logging.Level)
	}
	if cfg.Blob.Region != "eu-west-2" {
		t.Errorf("unexpected region: %s", cfg.Blob.Region)
	}
	if !cfg.Blob.UsePathStyle {
		t.Error("expected path-style addressing")
	}
	if cfg.Worker.Concurrency != 8 {
		t.Errorf("unexpected concurrency: %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.VisibilityTimeout != 2*time.Hour {
		t.Errorf("unexpected visibility: %s", cfg.Worker.VisibilityTimeout)
	}
	if cfg.Upload.PresignTTL != 5*time.Minute {
		t.Errorf("unexpected presign TTL: %s", cfg.Upload.PresignTTL)
	}
	if cfg.Worker.OffloadThreshold != bytesize.MiB {
		t.Errorf("unexpected offload threshold: %s", cfg.Worker.OffloadThreshold)
	}
}

func TestLoad_EnvAliases(t *testing.T) {
	t.Setenv("BLOB_BUCKET", "env-bucket")
	t.Setenv("QUEUE_URL", "https://sqs.env/jobs")
	t.Setenv("PRESIGNED_URL_TTL_SECONDS", "900")
	t.Setenv("WORKER_VISIBILITY_TIMEOUT_SECONDS", "3600")
	t.Setenv("WORKER_JOB_DEADLINE_SECONDS", "2700")
	t.Setenv("WORKER_POLL_SECONDS", "10")
	t.Setenv("MAX_RECEIVE_COUNT", "5")

	path := writeConfigFile(t, `
blob:
  bucket: file-bucket
queue:
  url: https://sqs.file/jobs
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Blob.Bucket != "env-bucket" {
		t.Errorf("env must override file bucket, got %s", cfg.Blob.Bucket)
	}
	if cfg.Queue.URL != "https://sqs.env/jobs" {
		t.Errorf("env must override file queue URL, got %s", cfg.Queue.URL)
	}
	if cfg.Upload.PresignTTL != 15*time.Minute {
		t.Errorf("expected 900s presign TTL, got %s", cfg.Upload.PresignTTL)
	}
	if cfg.Worker.VisibilityTimeout != time.Hour {
		t.Errorf("expected 3600s visibility, got %s", cfg.Worker.VisibilityTimeout)
	}
	if cfg.Worker.JobDeadline != 45*time.Minute {
		t.Errorf("expected 2700s deadline, got %s", cfg.Worker.JobDeadline)
	}
	if cfg.Queue.WaitTime != 10*time.Second {
		t.Errorf("expected 10s poll, got %s", cfg.Queue.WaitTime)
	}
	if cfg.Worker.MaxReceiveCount != 5 {
		t.Errorf("expected receive cap 5, got %d", cfg.Worker.MaxReceiveCount)
	}
}

func TestLoad_BadSecondsAlias(t *testing.T) {
	t.Setenv("WORKER_POLL_SECONDS", "twenty")

	path := writeConfigFile(t, `
blob:
  bucket: b
queue:
  url: q
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-integer seconds alias")
	}
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("BLOB_BUCKET", "env-only-bucket")
	t.Setenv("QUEUE_URL", "https://sqs.env/only")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Blob.Bucket != "env-only-bucket" {
		t.Errorf("expected env bucket without a file, got %s", cfg.Blob.Bucket)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default logging, got %s", cfg.Logging.Level)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Blob.Bucket = "saved-bucket"
	cfg.Worker.Concurrency = 2

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Blob.Bucket != "saved-bucket" {
		t.Errorf("unexpected bucket after round trip: %s", loaded.Blob.Bucket)
	}
	if loaded.Worker.Concurrency != 2 {
		t.Errorf("unexpected concurrency after round trip: %d", loaded.Worker.Concurrency)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "LOUD"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log format")
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_MissingBucket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Blob.Bucket = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing bucket")
	}
}

func TestValidate_MissingQueueURL(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Queue.URL = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing queue URL")
	}
}

func TestValidate_DeadlineExceedsVisibility(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Worker.JobDeadline = 2 * time.Hour
	cfg.Worker.VisibilityTimeout = time.Hour

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error when deadline exceeds visibility")
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for sample rate above 1.0")
	}
}

func TestValidate_PostgresRequiresHost(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database = jobstore.Config{Type: jobstore.DatabaseTypePostgres}
	cfg.Database.ApplyDefaults()
	cfg.Database.Postgres.Host = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for postgres without host")
	}
}
