package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the job store and pipeline boundaries. Callers match
// with errors.Is; the HTTP layer maps them onto the error taxonomy
// (validation, precondition-failed, upload-missing, transient).
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrJobNotFound     = errors.New("analysis job not found")

	// ErrJobNotClaimable is returned when the conditional claim update matched
	// no row: another worker won the race or the job is not queued.
	ErrJobNotClaimable = errors.New("job is not claimable")

	// ErrTransitionConflict is returned when a guarded status transition
	// matched no row because the job was no longer in the expected state.
	ErrTransitionConflict = errors.New("job status transition conflict")

	// ErrUploadMissing is returned by the preflight when no object exists at
	// the job's s3_key.
	ErrUploadMissing = errors.New("upload not found")

	// ErrSessionTerminal is returned when an upload is initiated against a
	// session that can no longer accept one.
	ErrSessionTerminal = errors.New("session is in a terminal state")

	// ErrNotOwner is returned when the authorization context does not own the
	// addressed session.
	ErrNotOwner = errors.New("caller does not own this session")

	// ErrInfraUnavailable marks a transient infrastructure failure (blob
	// store or queue outage). Callers retry; the HTTP layer maps it to 503.
	ErrInfraUnavailable = errors.New("infrastructure temporarily unavailable")
)

// NotExportableError is the precondition failure returned when an export is
// attempted on a non-terminal job. The current status is included so callers
// can surface it.
type NotExportableError struct {
	JobID  string
	Status JobStatus
}

func (e *NotExportableError) Error() string {
	return fmt.Sprintf("job %s is not exportable: status is %q, want done or completed", e.JobID, e.Status)
}

// ArtifactMissingError is the guardrail violation raised when a pass finished
// but its findings or report are absent. It enumerates the missing artifacts.
type ArtifactMissingError struct {
	Pass    string // "quick" or "deep"
	Missing []string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("%s pass produced incomplete artifacts: missing %s", e.Pass, strings.Join(e.Missing, ", "))
}
