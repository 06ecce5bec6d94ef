package models

import (
	"time"
)

// JobStatus is the analysis job state machine.
//
//	awaiting_upload ──(preflight ok)──▶ queued
//	awaiting_upload ──(preflight 404)──▶ failed
//	failed          ──(complete retry)──▶ queued
//	queued          ──(claim)──▶ quick_running
//	quick_running   ──(quick ok)──▶ quick_done ──▶ deep_running ──(deep ok)──▶ done
//	quick_running   ──(error)──▶ failed
//	deep_running    ──(error)──▶ failed
//
// "completed" is a legacy alias for "done"; it is accepted wherever
// terminality is checked but never written by new code.
type JobStatus string

const (
	JobAwaitingUpload JobStatus = "awaiting_upload"
	JobQueued         JobStatus = "queued"
	JobQuickRunning   JobStatus = "quick_running"
	JobQuickDone      JobStatus = "quick_done"
	JobDeepRunning    JobStatus = "deep_running"
	JobDone           JobStatus = "done"
	JobCompleted      JobStatus = "completed" // legacy alias for done
	JobFailed         JobStatus = "failed"
)

// Stage labels are the human-readable counterpart of JobStatus, surfaced in
// the API and in log lines.
const (
	StageAwaitingUpload = "AWAITING_UPLOAD"
	StageQueued         = "QUEUED"
	StageQuickAnalysis  = "QUICK_ANALYSIS"
	StageQuickDone      = "QUICK_DONE"
	StageDeepAnalysis   = "DEEP_ANALYSIS"
	StageDone           = "DONE"
	StageFailed         = "FAILED"
)

// jobTransitions is the allowed forward-transition table. Retry from failed
// back to queued is the only backward edge.
var jobTransitions = map[JobStatus][]JobStatus{
	JobAwaitingUpload: {JobQueued, JobFailed},
	JobQueued:         {JobQuickRunning, JobFailed},
	JobQuickRunning:   {JobQuickDone, JobFailed},
	JobQuickDone:      {JobDeepRunning, JobFailed},
	JobDeepRunning:    {JobDone, JobFailed},
	JobFailed:         {JobQueued},
}

// CanTransition reports whether moving from s to target follows the state
// machine.
func (s JobStatus) CanTransition(target JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the job finished successfully.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobCompleted
}

// Claimable reports whether a worker may claim the job. Only queued jobs are
// claimable; awaiting_upload is explicitly not.
func (s JobStatus) Claimable() bool {
	return s == JobQueued
}

// Enqueued reports whether CompleteUpload has already dispatched the job. A
// second CompleteUpload for any of these states is a no-op success.
func (s JobStatus) Enqueued() bool {
	switch s {
	case JobQueued, JobQuickRunning, JobQuickDone, JobDeepRunning, JobDone, JobCompleted:
		return true
	}
	return false
}

// Stage returns the stage label conventionally paired with the status.
func (s JobStatus) Stage() string {
	switch s {
	case JobAwaitingUpload:
		return StageAwaitingUpload
	case JobQueued:
		return StageQueued
	case JobQuickRunning:
		return StageQuickAnalysis
	case JobQuickDone:
		return StageQuickDone
	case JobDeepRunning:
		return StageDeepAnalysis
	case JobDone, JobCompleted:
		return StageDone
	case JobFailed:
		return StageFailed
	}
	return string(s)
}

// AnalysisJob is one attempted analysis over one session's video.
//
// Artifact columns (findings/reports) are authoritative for reads; the opaque
// result envelopes mirror them so downstream renderers see a self-contained
// payload. Both are written in the same store transaction as the status
// transition.
type AnalysisJob struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	SessionID string `gorm:"index;not null;size:36" json:"session_id"`

	Status      JobStatus `gorm:"index;size:32;not null" json:"status"`
	Stage       string    `gorm:"size:64" json:"stage"`
	ProgressPct int       `gorm:"default:0" json:"progress_pct"`

	// AnalysisMode pins the analysis specialization for this job. Empty means
	// "resolve from session context, then default to batting".
	AnalysisMode string `gorm:"size:32" json:"analysis_mode,omitempty"`

	SampleFPS     int  `gorm:"not null" json:"sample_fps"`
	IncludeFrames bool `json:"include_frames"`

	// S3Key locates the uploaded video. Set at job creation, never rewritten.
	S3Key string `gorm:"size:512;not null" json:"s3_key"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// Opaque result envelopes, one per pass. May be offloaded to the blob
	// store and referenced via the *ResultsS3Key columns when large.
	QuickResults *AnalysisResults `gorm:"type:text" json:"quick_results,omitempty"`
	DeepResults  *AnalysisResults `gorm:"type:text" json:"deep_results,omitempty"`

	// Structured artifacts, directly consumed by the export gate and the UI.
	QuickFindings *Findings `gorm:"type:text" json:"quick_findings,omitempty"`
	QuickReport   *Report   `gorm:"type:text" json:"quick_report,omitempty"`
	DeepFindings  *Findings `gorm:"type:text" json:"deep_findings,omitempty"`
	DeepReport    *Report   `gorm:"type:text" json:"deep_report,omitempty"`

	QuickResultsS3Key string `gorm:"size:512" json:"quick_results_s3_key,omitempty"`
	DeepResultsS3Key  string `gorm:"size:512" json:"deep_results_s3_key,omitempty"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the table name for AnalysisJob.
func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// ResolvedMode returns the authoritative analysis mode for rendering: the mode
// recorded in the deep results envelope, then quick, then the job's pinned
// mode, then batting.
func (j *AnalysisJob) ResolvedMode() string {
	if j.DeepResults != nil && j.DeepResults.AnalysisModeUsed != "" {
		return j.DeepResults.AnalysisModeUsed
	}
	if j.QuickResults != nil && j.QuickResults.AnalysisModeUsed != "" {
		return j.QuickResults.AnalysisModeUsed
	}
	if j.AnalysisMode != "" {
		return j.AnalysisMode
	}
	return "batting"
}
