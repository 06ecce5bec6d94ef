// Package worker consumes dispatch messages and runs the two-pass analysis
// pipeline: claim the job, extract pose data from the uploaded video, generate
// findings and a report per pass, and persist everything transactionally.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/internal/telemetry"
	"github.com/pitchsight/pitchsight/pkg/analysis"
	"github.com/pitchsight/pitchsight/pkg/blob"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/metrics"
	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/queue"
)

// Config tunes the worker pool.
type Config struct {
	// Concurrency bounds in-flight jobs. Default: 4.
	Concurrency int

	// VisibilityTimeout must match the queue's; it also gates stale-claim
	// reclaim. Default: 15m.
	VisibilityTimeout time.Duration

	// JobDeadline bounds one processing attempt end to end. Default: 10m.
	JobDeadline time.Duration

	// MaxReceiveCount is the delivery cap before a message's job is failed
	// outright. Default: 5.
	MaxReceiveCount int

	// OffloadThreshold is the envelope size above which results are mirrored
	// to the blob store. Default: 256 KiB.
	OffloadThreshold int

	// RescanInterval and RescanAfter drive the safety net that re-dispatches
	// queued jobs whose message was lost. Defaults: 1m, 5m.
	RescanInterval time.Duration
	RescanAfter    time.Duration

	// WorkDir holds downloaded videos during processing. Default: os.TempDir.
	WorkDir string
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 15 * time.Minute
	}
	if c.JobDeadline <= 0 {
		c.JobDeadline = 10 * time.Minute
	}
	if c.MaxReceiveCount <= 0 {
		c.MaxReceiveCount = 5
	}
	if c.OffloadThreshold <= 0 {
		c.OffloadThreshold = 256 * 1024
	}
	if c.RescanInterval <= 0 {
		c.RescanInterval = time.Minute
	}
	if c.RescanAfter <= 0 {
		c.RescanAfter = 5 * time.Minute
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
}

// Worker polls the queue and processes analysis jobs.
type Worker struct {
	store   *jobstore.GORMStore
	blobs   blob.Store
	queue   queue.Queue
	metrics *metrics.Pipeline
	config  Config

	dispatcher *analysis.Dispatcher
	analyze    analysis.PoseAnalyzer
	compute    analysis.MetricsComputer
}

// New builds a worker with the default pose analyzer and metrics computer.
// metrics may be nil.
func New(store *jobstore.GORMStore, blobs blob.Store, q queue.Queue, m *metrics.Pipeline, cfg Config) *Worker {
	cfg.applyDefaults()
	return &Worker{
		store:      store,
		blobs:      blobs,
		queue:      q,
		metrics:    m,
		config:     cfg,
		dispatcher: analysis.NewDispatcher(),
		analyze:    analysis.DefaultPoseAnalyzer,
		compute:    analysis.DefaultMetricsComputer,
	}
}

// SetAnalyzer swaps the pose extraction and metric computation functions.
// Used by tests and by deployments with an external pose service.
func (w *Worker) SetAnalyzer(analyze analysis.PoseAnalyzer, compute analysis.MetricsComputer) {
	if analyze != nil {
		w.analyze = analyze
	}
	if compute != nil {
		w.compute = compute
	}
}

// Run polls until ctx is cancelled, then drains in-flight jobs.
func (w *Worker) Run(ctx context.Context) {
	logger.Info("Starting worker",
		"concurrency", w.config.Concurrency,
		"visibility_timeout", w.config.VisibilityTimeout.String(),
	)

	go w.rescanLoop(ctx)

	sem := make(chan struct{}, w.config.Concurrency)
	var wg sync.WaitGroup

messageLoop:
	for {
		select {
		case <-ctx.Done():
			break messageLoop
		default:
		}

		messages, err := w.queue.Receive(ctx, w.config.Concurrency)
		if err != nil {
			if ctx.Err() != nil {
				break messageLoop
			}
			logger.Error("Failed to receive messages", logger.KeyError, err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				break messageLoop
			}
			continue
		}

		for _, msg := range messages {
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func(msg queue.Message) {
					defer wg.Done()
					defer func() { <-sem }()
					w.handleMessage(ctx, msg)
				}(msg)
			case <-ctx.Done():
				break messageLoop
			}
		}
	}

	logger.Info("Waiting for in-flight jobs to finish")
	wg.Wait()
	logger.Info("Worker stopped")
}

// HandleMessage processes a single dispatch message. Exposed for tests and
// for the single-binary development mode.
func (w *Worker) HandleMessage(ctx context.Context, msg queue.Message) {
	w.handleMessage(ctx, msg)
}

func (w *Worker) handleMessage(ctx context.Context, msg queue.Message) {
	payload, err := queue.DecodeJobMessage(msg.Body)
	if err != nil {
		// Poison message; nothing to retry.
		logger.Warn("Dropping malformed dispatch message",
			logger.KeyMessageID, msg.ID, logger.KeyError, err)
		w.deleteMessage(ctx, msg)
		return
	}

	ctx, span := telemetry.StartJobSpan(ctx, telemetry.SpanWorkerMessage,
		payload.JobID, payload.SessionID, telemetry.ReceiveCount(msg.ReceiveCount))
	defer span.End()

	lc := logger.NewJobContext(payload.JobID, payload.SessionID)
	lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	if msg.ReceiveCount > 1 {
		w.metrics.RecordRedelivery()
	}
	if msg.ReceiveCount > w.config.MaxReceiveCount {
		logger.ErrorCtx(ctx, "Delivery cap exceeded, failing job",
			logger.KeyReceipts, msg.ReceiveCount)
		if err := w.store.MarkJobFailed(ctx, payload.JobID, "analysis retries exhausted"); err != nil && !errors.Is(err, models.ErrJobNotFound) {
			logger.ErrorCtx(ctx, "Failed to fail job", logger.KeyError, err)
		}
		w.metrics.RecordJobFailed("max_receives")
		w.deleteMessage(ctx, msg)
		return
	}

	job, session, err := w.store.GetJobWithSession(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) || errors.Is(err, models.ErrSessionNotFound) {
			// The row was deleted after dispatch; the message is noise.
			logger.WarnCtx(ctx, "Dropping message for missing job")
			w.deleteMessage(ctx, msg)
			return
		}
		logger.ErrorCtx(ctx, "Failed to load job, leaving message for redelivery",
			logger.KeyError, err)
		return
	}

	claimed, err := w.store.ClaimJob(ctx, job.ID, w.config.VisibilityTimeout)
	w.metrics.RecordClaim(err)
	if err != nil {
		if errors.Is(err, models.ErrJobNotClaimable) {
			// Another worker holds it, or the job already finished or failed.
			// Either way this delivery is a duplicate; awaiting_upload is the
			// one state worth waiting out.
			if job.Status == models.JobAwaitingUpload {
				logger.WarnCtx(ctx, "Job not yet dispatched, leaving message",
					logger.KeyStatus, string(job.Status))
				return
			}
			logger.DebugCtx(ctx, "Dropping duplicate delivery",
				logger.KeyStatus, string(job.Status))
			w.deleteMessage(ctx, msg)
			return
		}
		logger.ErrorCtx(ctx, "Claim failed, leaving message for redelivery",
			logger.KeyError, err)
		return
	}

	w.metrics.JobStarted()
	defer w.metrics.JobFinished()

	mode := analysis.ResolveMode(claimed.AnalysisMode, session.AnalysisContext)
	ctx = logger.WithContext(ctx, lc.WithMode(string(mode)))
	telemetry.SetAttributes(ctx, telemetry.Mode(string(mode)))

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobDeadline)
	defer cancel()

	err = w.processJob(jobCtx, claimed, mode)
	switch {
	case err == nil:
		w.deleteMessage(ctx, msg)

	case errors.Is(err, context.DeadlineExceeded):
		// Deliberately unacknowledged: the stale-claim reclaim lets the next
		// delivery resume, and the delivery cap bounds total attempts.
		logger.ErrorCtx(ctx, "Job deadline exceeded, leaving message for retry",
			logger.KeyReceipts, msg.ReceiveCount)
		w.metrics.RecordJobFailed("deadline")

	default:
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Job failed", logger.KeyError, err)
		if failErr := w.store.MarkJobFailed(ctx, claimed.ID, err.Error()); failErr != nil {
			logger.ErrorCtx(ctx, "Failed to record job failure", logger.KeyError, failErr)
		}
		w.metrics.RecordJobFailed("analysis")
		w.deleteMessage(ctx, msg)
	}
}

// processJob runs the passes the claimed job still needs. A job reclaimed in
// deep_running resumes at the deep pass; its quick artifacts are already
// committed.
func (w *Worker) processJob(ctx context.Context, job *models.AnalysisJob, mode analysis.Mode) error {
	videoPath := filepath.Join(w.config.WorkDir, job.ID+".mp4")
	dlCtx, dlSpan := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobDownload, job.S3Key)
	err := w.blobs.Download(dlCtx, job.S3Key, videoPath)
	dlSpan.End()
	if err != nil {
		return fmt.Errorf("failed to download video: %w", err)
	}
	defer os.Remove(videoPath)

	exCtx, exSpan := telemetry.StartSpan(ctx, telemetry.SpanAnalysisExtract)
	telemetry.SetAttributes(exCtx, telemetry.SampleFPS(job.SampleFPS))
	seq, err := w.analyze(exCtx, videoPath, job.SampleFPS)
	exSpan.End()
	if err != nil {
		return fmt.Errorf("pose extraction failed: %w", err)
	}
	m, err := w.compute(seq)
	if err != nil {
		return fmt.Errorf("metric computation failed: %w", err)
	}

	if job.Status == models.JobQuickRunning {
		if err := w.runPass(ctx, job, mode, analysis.PassQuick, seq, m); err != nil {
			return err
		}
		if err := w.store.StartDeepPass(ctx, job.ID); err != nil {
			return err
		}
	}
	return w.runPass(ctx, job, mode, analysis.PassDeep, seq, m)
}

func (w *Worker) runPass(ctx context.Context, job *models.AnalysisJob, mode analysis.Mode, pass string, seq *analysis.PoseSequence, m *analysis.Metrics) error {
	ctx, span := telemetry.StartPassSpan(ctx, job.ID, string(mode), pass)
	defer span.End()

	start := time.Now()
	err := w.runPassInner(ctx, job, mode, pass, seq, m)
	w.metrics.RecordPass(string(mode), pass, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return err
}

func (w *Worker) runPassInner(ctx context.Context, job *models.AnalysisJob, mode analysis.Mode, pass string, seq *analysis.PoseSequence, m *analysis.Metrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	progress := 25
	if pass == analysis.PassDeep {
		progress = 75
	}
	if err := w.store.UpdateJobProgress(ctx, job.ID, progress, ""); err != nil {
		logger.WarnCtx(ctx, "Failed to update progress", logger.KeyError, err)
	}

	findings, err := w.dispatcher.Generate(mode, m, analysis.GeneratorContext{Mode: mode, Pass: pass})
	if err != nil {
		return err
	}
	report := analysis.BuildReport(mode, pass, findings)

	results := &models.AnalysisResults{
		AnalysisModeUsed: string(mode),
		Pass:             pass,
		SampleFPS:        seq.SampleFPS,
		FrameCount:       m.FrameCount,
		PoseReliability:  m.AvgConfidence,
		GeneratedAt:      time.Now().UTC(),
		Metrics:          m.Flatten(),
		Findings:         findings,
		Report:           report,
	}
	if job.IncludeFrames {
		frames, err := json.Marshal(seq.Frames)
		if err != nil {
			return fmt.Errorf("failed to encode frames: %w", err)
		}
		results.Frames = frames
	}

	resultsKey, err := w.maybeOffload(ctx, job, pass, results)
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Pass complete",
		logger.KeyPass, pass,
		logger.KeyFindingsLen, len(findings.Findings),
		logger.KeyReportLen, len(report.Text),
	)

	if pass == analysis.PassQuick {
		return w.store.CompleteQuickPass(ctx, job.ID, results, findings, report, resultsKey)
	}
	return w.store.CompleteDeepPass(ctx, job.ID, results, findings, report, resultsKey)
}

// maybeOffload mirrors oversized envelopes to the blob store and returns the
// key, or "" when the envelope stays inline only.
func (w *Worker) maybeOffload(ctx context.Context, job *models.AnalysisJob, pass string, results *models.AnalysisResults) (string, error) {
	encoded, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	if len(encoded) < w.config.OffloadThreshold {
		return "", nil
	}

	parts := splitKey(job.S3Key)
	key := blob.ResultsKey(parts.owner, parts.session, job.ID, pass)
	putCtx, putSpan := telemetry.StartBlobSpan(ctx, telemetry.SpanBlobPut, key)
	err = w.blobs.Put(putCtx, key, encoded, "application/json")
	putSpan.End()
	if err != nil {
		return "", fmt.Errorf("failed to offload results: %w", err)
	}
	w.metrics.RecordResultsOffloaded()

	// The inline copy keeps findings and report but drops the frame payload
	// that pushed it over the threshold.
	results.Frames = nil
	return key, nil
}

type keyParts struct {
	owner   string
	session string
}

// splitKey recovers owner and session from the video key layout
// {owner}/{session}/{job}.{ext}.
func splitKey(s3Key string) keyParts {
	dir, _ := filepath.Split(s3Key)
	dir = filepath.Clean(dir)
	session := filepath.Base(dir)
	owner := filepath.Base(filepath.Dir(dir))
	return keyParts{owner: owner, session: session}
}

func (w *Worker) deleteMessage(ctx context.Context, msg queue.Message) {
	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		logger.WarnCtx(ctx, "Failed to delete message",
			logger.KeyMessageID, msg.ID, logger.KeyError, err)
	}
}

// rescanLoop periodically re-dispatches queued jobs whose message never
// arrived, which happens when the process dies between the enqueue commit and
// the queue send.
func (w *Worker) rescanLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.rescan(ctx)
		}
	}
}

func (w *Worker) rescan(ctx context.Context) {
	jobs, err := w.store.StaleQueuedJobs(ctx, w.config.RescanAfter, 50)
	if err != nil {
		logger.Error("Rescan query failed", logger.KeyError, err)
		return
	}

	for _, job := range jobs {
		body, err := queue.JobMessage{JobID: job.ID, SessionID: job.SessionID, S3Key: job.S3Key}.Encode()
		if err != nil {
			continue
		}
		if err := w.queue.Send(ctx, body); err != nil {
			logger.Warn("Rescan re-dispatch failed",
				logger.KeyJobID, job.ID, logger.KeyError, err)
			continue
		}
		// Bump updated_at so the job does not re-qualify every tick.
		if err := w.store.UpdateJobProgress(ctx, job.ID, job.ProgressPct, ""); err != nil {
			logger.Warn("Failed to touch requeued job",
				logger.KeyJobID, job.ID, logger.KeyError, err)
		}
		w.metrics.RecordEnqueued("rescan")
		logger.Info("Re-dispatched stale queued job", logger.KeyJobID, job.ID)
	}
}
