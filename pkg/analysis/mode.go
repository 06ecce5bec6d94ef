// Package analysis implements the pose-based biomechanical analysis pipeline:
// mode resolution, the PoseAnalyzer/MetricsComputer ports, per-mode finding
// generators, and coach report assembly.
//
// The pose-extraction and metrics libraries themselves are external
// collaborators; this package ships deterministic default implementations so
// the pipeline runs end to end in development and tests.
package analysis

import (
	"fmt"
)

// Mode is the analysis specialization. It is a closed set: each mode is bound
// to its finding generator in a lookup table at startup, never dispatched by
// arbitrary string.
type Mode string

const (
	ModeBatting       Mode = "batting"
	ModeBowling       Mode = "bowling"
	ModeWicketkeeping Mode = "wicketkeeping"
	ModeFielding      Mode = "fielding"
)

// DefaultMode is used when neither the job nor the session pins a mode.
const DefaultMode = ModeBatting

// AllModes returns the closed mode set.
func AllModes() []Mode {
	return []Mode{ModeBatting, ModeBowling, ModeWicketkeeping, ModeFielding}
}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBatting, ModeBowling, ModeWicketkeeping, ModeFielding:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown analysis mode %q", s)
}

// IsValidMode reports whether s names a known mode.
func IsValidMode(s string) bool {
	_, err := ParseMode(s)
	return err == nil
}

// ResolveMode applies the resolution rule, executed once per job at worker
// start:
//
//	mode := job.analysis_mode || session.analysis_context || "batting"
//
// Unknown values are skipped rather than rejected so a stale session hint
// cannot fail a job.
func ResolveMode(jobMode, sessionContext string) Mode {
	if m, err := ParseMode(jobMode); err == nil {
		return m
	}
	if m, err := ParseMode(sessionContext); err == nil {
		return m
	}
	return DefaultMode
}
