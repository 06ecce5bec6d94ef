// Package upload implements the two-phase video upload flow: initiate issues
// a presigned PUT bound to a new analysis job, complete verifies the object
// landed and dispatches the job exactly once.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/internal/telemetry"
	"github.com/pitchsight/pitchsight/pkg/analysis"
	"github.com/pitchsight/pitchsight/pkg/blob"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/metrics"
	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/queue"
)

// ErrInvalidMode is returned when the initiate request pins an unknown
// analysis mode.
var ErrInvalidMode = errors.New("invalid analysis mode")

const (
	defaultSampleFPS = 10
	maxSampleFPS     = 30
)

// Config tunes the coordinator.
type Config struct {
	// PresignTTL bounds how long an issued upload URL stays valid.
	// Default: 15m.
	PresignTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.PresignTTL <= 0 {
		c.PresignTTL = 15 * time.Minute
	}
}

// Coordinator drives the upload flow against the store, blob store and queue.
type Coordinator struct {
	store   *jobstore.GORMStore
	blobs   blob.Store
	queue   queue.Queue
	metrics *metrics.Pipeline
	config  Config
}

// NewCoordinator wires the upload flow. metrics may be nil.
func NewCoordinator(store *jobstore.GORMStore, blobs blob.Store, q queue.Queue, m *metrics.Pipeline, cfg Config) *Coordinator {
	cfg.applyDefaults()
	return &Coordinator{
		store:   store,
		blobs:   blobs,
		queue:   q,
		metrics: m,
		config:  cfg,
	}
}

// InitiateRequest carries the client's upload intent.
type InitiateRequest struct {
	// AnalysisMode optionally pins the analysis specialization. Empty defers
	// to the session's analysis context.
	AnalysisMode string

	// SampleFPS is the pose sampling rate; defaults to 10, capped at 30.
	SampleFPS int

	// IncludeFrames requests per-frame pose output in the result envelope.
	IncludeFrames bool
}

// InitiateResult is what the client needs to perform the upload and later
// complete it.
type InitiateResult struct {
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id"`
	UploadURL string    `json:"upload_url"`
	S3Key     string    `json:"s3_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Initiate creates an awaiting_upload job under the session and returns a
// presigned PUT URL for its video key. The session must be owned by ownerID
// and not terminal.
func (c *Coordinator) Initiate(ctx context.Context, ownerID, sessionID string, req InitiateRequest) (*InitiateResult, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanUploadInitiate)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.SessionID(sessionID), telemetry.OwnerID(ownerID))

	if req.AnalysisMode != "" && !analysis.IsValidMode(req.AnalysisMode) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.AnalysisMode)
	}
	if req.SampleFPS <= 0 {
		req.SampleFPS = defaultSampleFPS
	}
	if req.SampleFPS > maxSampleFPS {
		req.SampleFPS = maxSampleFPS
	}

	session, err := c.store.GetOwnedSession(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, models.ErrSessionTerminal
	}

	jobID := uuid.New().String()
	key := blob.VideoKey(ownerID, sessionID, jobID, "mp4")

	job := &models.AnalysisJob{
		ID:            jobID,
		SessionID:     sessionID,
		Status:        models.JobAwaitingUpload,
		AnalysisMode:  req.AnalysisMode,
		SampleFPS:     req.SampleFPS,
		IncludeFrames: req.IncludeFrames,
		S3Key:         key,
	}
	if _, err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	url, err := c.blobs.PresignPut(ctx, key, blob.ContentTypeMP4, c.config.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	c.metrics.RecordUploadInitiated()
	logger.InfoCtx(ctx, "Upload initiated",
		logger.KeyJobID, jobID,
		logger.KeySessionID, sessionID,
		logger.KeyS3Key, key,
	)

	return &InitiateResult{
		JobID:     jobID,
		SessionID: sessionID,
		UploadURL: url,
		S3Key:     key,
		ExpiresAt: time.Now().Add(c.config.PresignTTL),
	}, nil
}

// Complete verifies the uploaded object exists and dispatches the job. It is
// idempotent: repeated calls (and retries of failed jobs) converge on one
// queued dispatch, and calls after dispatch succeed without a second queue
// send.
func (c *Coordinator) Complete(ctx context.Context, ownerID, jobID string) (*models.AnalysisJob, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanUploadComplete)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.JobID(jobID), telemetry.OwnerID(ownerID))

	job, err := c.complete(ctx, ownerID, jobID)
	c.metrics.RecordUploadCompleted(err)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return job, err
}

func (c *Coordinator) complete(ctx context.Context, ownerID, jobID string) (*models.AnalysisJob, error) {
	job, err := c.store.GetOwnedJob(ctx, jobID, ownerID)
	if err != nil {
		return nil, err
	}

	if job.Status.Enqueued() {
		logger.DebugCtx(ctx, "Upload already completed",
			logger.KeyJobID, jobID, logger.KeyStatus, string(job.Status))
		return job, nil
	}

	// Preflight: the object must exist before the job may run. A missing
	// object fails the job; a blob store outage leaves it retryable.
	headCtx, headSpan := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobHead, job.S3Key)
	_, err = c.blobs.Head(headCtx, job.S3Key)
	headSpan.End()
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			msg := fmt.Sprintf("uploaded video not found at %s", job.S3Key)
			if failErr := c.store.MarkJobFailed(ctx, jobID, msg); failErr != nil {
				logger.WarnCtx(ctx, "Failed to record preflight failure",
					logger.KeyJobID, jobID, logger.KeyError, failErr)
			}
			return nil, models.ErrUploadMissing
		}
		return nil, fmt.Errorf("%w: upload preflight failed: %w", models.ErrInfraUnavailable, err)
	}

	enqueued, job, err := c.store.TryEnqueue(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !enqueued {
		// Lost the race to a concurrent Complete; the winner sends the
		// message.
		return job, nil
	}

	if err := c.store.UpdateSessionStatus(ctx, job.SessionID, models.SessionUploaded); err != nil {
		logger.WarnCtx(ctx, "Failed to update session status",
			logger.KeySessionID, job.SessionID, logger.KeyError, err)
	}

	// The queued row is committed before the send, so a lost message is
	// recoverable by the rescan loop.
	body, err := queue.JobMessage{JobID: job.ID, SessionID: job.SessionID, S3Key: job.S3Key}.Encode()
	if err != nil {
		return nil, err
	}
	if err := c.queue.Send(ctx, body); err != nil {
		logger.WarnCtx(ctx, "Failed to send dispatch message, rescan will retry",
			logger.KeyJobID, job.ID, logger.KeyError, err)
	} else {
		c.metrics.RecordEnqueued("upload")
	}

	logger.InfoCtx(ctx, "Upload completed, job dispatched",
		logger.KeyJobID, job.ID,
		logger.KeySessionID, job.SessionID,
		logger.KeyStatus, string(job.Status),
	)
	return job, nil
}
