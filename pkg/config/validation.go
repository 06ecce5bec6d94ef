package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct tags cover range and enum checks; cross-field rules that tags cannot
// express are checked explicitly afterwards.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling is enabled but no endpoint is configured")
	}

	// A deadline longer than the visibility timeout would let a second worker
	// claim a job the first is still processing.
	if cfg.Worker.JobDeadline > cfg.Worker.VisibilityTimeout {
		return fmt.Errorf("worker job_deadline (%s) must not exceed visibility_timeout (%s)",
			cfg.Worker.JobDeadline, cfg.Worker.VisibilityTimeout)
	}

	return nil
}
