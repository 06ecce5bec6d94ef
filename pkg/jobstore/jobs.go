package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// CreateJob persists a new analysis job in awaiting_upload.
func (s *GORMStore) CreateJob(ctx context.Context, job *models.AnalysisJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.JobAwaitingUpload
	}
	if job.Stage == "" {
		job.Stage = job.Status.Stage()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", fmt.Errorf("job %s already exists: %w", job.ID, err)
		}
		return "", err
	}
	return job.ID, nil
}

// GetJob loads a job by ID.
func (s *GORMStore) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrJobNotFound)
	}
	return &job, nil
}

// GetJobWithSession loads a job and its owning session in one call. Workers
// and the export path need both for mode resolution and ownership checks.
func (s *GORMStore) GetJobWithSession(ctx context.Context, id string) (*models.AnalysisJob, *models.Session, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var session models.Session
	err = s.db.WithContext(ctx).Where("id = ?", job.SessionID).First(&session).Error
	if err != nil {
		return nil, nil, convertNotFoundError(err, models.ErrSessionNotFound)
	}
	return job, &session, nil
}

// GetOwnedJob loads a job and enforces that ownerID owns its session.
func (s *GORMStore) GetOwnedJob(ctx context.Context, id, ownerID string) (*models.AnalysisJob, error) {
	job, session, err := s.GetJobWithSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, models.ErrNotOwner
	}
	return job, nil
}

// ListJobsForSession returns a session's jobs, newest first.
func (s *GORMStore) ListJobsForSession(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error) {
	var jobs []*models.AnalysisJob
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// TryEnqueue is the guarded dispatch transition behind CompleteUpload. Exactly
// one caller wins the move from awaiting_upload (or failed, for retries) into
// queued; that caller is responsible for the queue send. Losers get
// enqueued=false with the job's current state so they can answer idempotently.
func (s *GORMStore) TryEnqueue(ctx context.Context, jobID string) (enqueued bool, job *models.AnalysisJob, err error) {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.AnalysisJob{}).
		Where("id = ? AND status IN ?", jobID, []models.JobStatus{models.JobAwaitingUpload, models.JobFailed}).
		Updates(map[string]any{
			"status":        models.JobQueued,
			"stage":         models.StageQueued,
			"error_message": "",
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, nil, result.Error
	}

	job, err = s.GetJob(ctx, jobID)
	if err != nil {
		return false, nil, err
	}
	return result.RowsAffected == 1, job, nil
}

// ClaimJob atomically moves a queued job into its running state for one
// worker. A job already running is reclaimable only when its updated_at is
// older than the visibility timeout, which is when the queue would have
// redelivered its message; live workers keep updated_at fresh through
// progress updates. A reclaimed deep_running job resumes at the deep pass.
//
// Returns ErrJobNotClaimable when another worker holds the job.
func (s *GORMStore) ClaimJob(ctx context.Context, jobID string, visibility time.Duration) (*models.AnalysisJob, error) {
	var claimed *models.AnalysisJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.AnalysisJob
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}

		stale := time.Now().Add(-visibility)
		next := models.JobQuickRunning
		switch job.Status {
		case models.JobQueued:
		case models.JobQuickRunning:
			if !job.UpdatedAt.Before(stale) {
				return models.ErrJobNotClaimable
			}
		case models.JobDeepRunning:
			if !job.UpdatedAt.Before(stale) {
				return models.ErrJobNotClaimable
			}
			next = models.JobDeepRunning
		default:
			return models.ErrJobNotClaimable
		}

		now := time.Now()
		result := tx.Model(&models.AnalysisJob{}).
			Where("id = ? AND status = ? AND updated_at = ?", jobID, job.Status, job.UpdatedAt).
			Updates(map[string]any{
				"status":     next,
				"stage":      next.Stage(),
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrJobNotClaimable
		}

		job.Status = next
		job.Stage = next.Stage()
		job.UpdatedAt = now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateJobProgress records progress and keeps the claim alive by bumping
// updated_at.
func (s *GORMStore) UpdateJobProgress(ctx context.Context, jobID string, progressPct int, stage string) error {
	updates := map[string]any{
		"progress_pct": progressPct,
		"updated_at":   time.Now(),
	}
	if stage != "" {
		updates["stage"] = stage
	}
	result := s.db.WithContext(ctx).
		Model(&models.AnalysisJob{}).
		Where("id = ?", jobID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// TransitionJob performs a guarded status transition with optional extra
// column updates. The move must follow the state machine and the row must
// still be in from; otherwise ErrTransitionConflict.
func (s *GORMStore) TransitionJob(ctx context.Context, jobID string, from, to models.JobStatus, extra map[string]any) error {
	if !from.CanTransition(to) {
		return models.ErrTransitionConflict
	}
	return s.transitionTx(s.db.WithContext(ctx), jobID, from, to, extra)
}

func (s *GORMStore) transitionTx(tx *gorm.DB, jobID string, from, to models.JobStatus, extra map[string]any) error {
	updates := map[string]any{
		"status":     to,
		"stage":      to.Stage(),
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&models.AnalysisJob{}).
		Where("id = ? AND status = ?", jobID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var job models.AnalysisJob
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}
		return models.ErrTransitionConflict
	}
	return nil
}

// passArtifacts verifies the guardrail: a pass may not be marked done without
// a complete artifact set.
func passArtifacts(pass string, results *models.AnalysisResults, findings *models.Findings, report *models.Report) error {
	var missing []string
	if results == nil {
		missing = append(missing, "results")
	}
	if findings == nil || len(findings.Findings) == 0 {
		missing = append(missing, "findings")
	}
	if report == nil || report.Text == "" {
		missing = append(missing, "report")
	}
	if len(missing) > 0 {
		return &models.ArtifactMissingError{Pass: pass, Missing: missing}
	}
	return nil
}

// CompleteQuickPass persists the quick artifacts and moves the job
// quick_running -> quick_done. The session moves to processing in the same
// transaction. resultsS3Key, when set, records an offloaded envelope.
func (s *GORMStore) CompleteQuickPass(ctx context.Context, jobID string, results *models.AnalysisResults, findings *models.Findings, report *models.Report, resultsS3Key string) error {
	if err := passArtifacts("quick", results, findings, report); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transitionTx(tx, jobID, models.JobQuickRunning, models.JobQuickDone, map[string]any{
			"quick_results":        results,
			"quick_findings":       findings,
			"quick_report":         report,
			"quick_results_s3_key": resultsS3Key,
			"progress_pct":         50,
		})
		if err != nil {
			return err
		}
		return s.setSessionStatusForJob(tx, jobID, models.SessionProcessing)
	})
}

// StartDeepPass moves quick_done -> deep_running.
func (s *GORMStore) StartDeepPass(ctx context.Context, jobID string) error {
	return s.TransitionJob(ctx, jobID, models.JobQuickDone, models.JobDeepRunning, nil)
}

// CompleteDeepPass persists the deep artifacts and finishes the job:
// deep_running -> done, completed_at set, session -> ready, all in one
// transaction.
func (s *GORMStore) CompleteDeepPass(ctx context.Context, jobID string, results *models.AnalysisResults, findings *models.Findings, report *models.Report, resultsS3Key string) error {
	if err := passArtifacts("deep", results, findings, report); err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transitionTx(tx, jobID, models.JobDeepRunning, models.JobDone, map[string]any{
			"deep_results":        results,
			"deep_findings":       findings,
			"deep_report":         report,
			"deep_results_s3_key": resultsS3Key,
			"progress_pct":        100,
			"completed_at":        now,
		})
		if err != nil {
			return err
		}
		return s.setSessionStatusForJob(tx, jobID, models.SessionReady)
	})
}

// MarkJobFailed moves any non-terminal job to failed with the message, and
// fails the session alongside it. Failing an already-failed or finished job
// is a no-op.
func (s *GORMStore) MarkJobFailed(ctx context.Context, jobID, message string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AnalysisJob{}).
			Where("id = ? AND status NOT IN ?", jobID, []models.JobStatus{
				models.JobDone, models.JobCompleted, models.JobFailed,
			}).
			Updates(map[string]any{
				"status":        models.JobFailed,
				"stage":         models.StageFailed,
				"error_message": message,
				"updated_at":    time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var job models.AnalysisJob
			if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
				return convertNotFoundError(err, models.ErrJobNotFound)
			}
			return nil
		}
		return s.setSessionStatusForJob(tx, jobID, models.SessionFailed)
	})
}

// StaleQueuedJobs returns jobs sitting in queued longer than olderThan. These
// are jobs whose dispatch message was lost after the DB commit; the worker's
// rescan loop re-enqueues them.
func (s *GORMStore) StaleQueuedJobs(ctx context.Context, olderThan time.Duration, limit int) ([]*models.AnalysisJob, error) {
	cutoff := time.Now().Add(-olderThan)
	q := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", models.JobQueued, cutoff).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var jobs []*models.AnalysisJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *GORMStore) setSessionStatusForJob(tx *gorm.DB, jobID string, status models.SessionStatus) error {
	var job models.AnalysisJob
	if err := tx.Select("session_id").Where("id = ?", jobID).First(&job).Error; err != nil {
		return convertNotFoundError(err, models.ErrJobNotFound)
	}
	return tx.Model(&models.Session{}).
		Where("id = ?", job.SessionID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}
