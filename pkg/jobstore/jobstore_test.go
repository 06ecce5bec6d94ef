package jobstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	// In-memory SQLite is per-connection; pin the pool so every goroutine
	// sees the same database.
	sqlDB, err := store.DB().DB()
	if err != nil {
		t.Fatalf("failed to get underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return store
}

func createTestSession(t *testing.T, store *GORMStore, ownerID string) *models.Session {
	t.Helper()
	session := &models.Session{
		OwnerID:   ownerID,
		Title:     "nets session",
		PlayerIDs: models.StringList{"player-1"},
	}
	if _, err := store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func createTestJob(t *testing.T, store *GORMStore, sessionID string, status models.JobStatus) *models.AnalysisJob {
	t.Helper()
	job := &models.AnalysisJob{
		SessionID: sessionID,
		Status:    status,
		SampleFPS: 10,
		S3Key:     "owner/session/job.mp4",
	}
	if _, err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func testArtifacts(mode string) (*models.AnalysisResults, *models.Findings, *models.Report) {
	findings := &models.Findings{
		Findings: []models.Finding{
			{Code: "HEAD_MOVEMENT", Title: "Head stability", Severity: models.SeverityLow, Message: "steady"},
		},
		OverallLevel: models.SeverityLow,
	}
	report := &models.Report{Text: "Summary\nAll good."}
	results := &models.AnalysisResults{
		AnalysisModeUsed: mode,
		Findings:         findings,
		Report:           report,
	}
	return results, findings, report
}

func TestConfig(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()
		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected sqlite, got %s", config.Type)
		}
	})

	t.Run("invalid type rejected", func(t *testing.T) {
		if _, err := New(&Config{Type: "invalid"}); err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("postgres defaults", func(t *testing.T) {
		config := &Config{Type: DatabaseTypePostgres}
		config.ApplyDefaults()
		if config.Postgres.Port != 5432 {
			t.Errorf("expected port 5432, got %d", config.Postgres.Port)
		}
		if config.Postgres.SSLMode != "disable" {
			t.Errorf("expected sslmode disable, got %s", config.Postgres.SSLMode)
		}
	})
}

func TestSessionOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")

		got, err := store.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.Status != models.SessionPending {
			t.Errorf("expected pending status, got %s", got.Status)
		}
		if len(got.PlayerIDs) != 1 || got.PlayerIDs[0] != "player-1" {
			t.Errorf("unexpected player IDs: %v", got.PlayerIDs)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		if _, err := store.GetSession(ctx, "nope"); !errors.Is(err, models.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("ownership enforced", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		if _, err := store.GetOwnedSession(ctx, session.ID, "coach-2"); !errors.Is(err, models.ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("list excludes failed by default", func(t *testing.T) {
		owner := "coach-list"
		ok := createTestSession(t, store, owner)
		failed := createTestSession(t, store, owner)
		if err := store.UpdateSessionStatus(ctx, failed.ID, models.SessionFailed); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		sessions, err := store.ListSessions(ctx, ListSessionsOptions{OwnerID: owner})
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) != 1 || sessions[0].ID != ok.ID {
			t.Errorf("expected only the non-failed session, got %d", len(sessions))
		}

		all, err := store.ListSessions(ctx, ListSessionsOptions{OwnerID: owner, IncludeFailed: true})
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 sessions with failed included, got %d", len(all))
		}
	})

	t.Run("delete cascades and returns blob keys", func(t *testing.T) {
		session := createTestSession(t, store, "coach-del")
		job := createTestJob(t, store, session.ID, models.JobQueued)

		keys, err := store.DeleteSession(ctx, session.ID, "coach-del")
		if err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if len(keys) != 1 || keys[0] != job.S3Key {
			t.Errorf("expected job s3 key in cleanup list, got %v", keys)
		}
		if _, err := store.GetJob(ctx, job.ID); !errors.Is(err, models.ErrJobNotFound) {
			t.Errorf("expected job deleted with session, got %v", err)
		}
	})

	t.Run("delete by non-owner refused", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		if _, err := store.DeleteSession(ctx, session.ID, "coach-2"); !errors.Is(err, models.ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("bulk delete skips foreign sessions", func(t *testing.T) {
		mine := createTestSession(t, store, "coach-bulk")
		theirs := createTestSession(t, store, "someone-else")

		deleted, _, err := store.BulkDeleteSessions(ctx, "coach-bulk", []string{mine.ID, theirs.ID, "missing"})
		if err != nil {
			t.Fatalf("bulk delete failed: %v", err)
		}
		if len(deleted) != 1 || deleted[0] != mine.ID {
			t.Errorf("expected only my session deleted, got %v", deleted)
		}
		if _, err := store.GetSession(ctx, theirs.ID); err != nil {
			t.Errorf("foreign session must survive, got %v", err)
		}
	})
}

func TestTryEnqueue(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("winner moves awaiting_upload to queued", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobAwaitingUpload)

		won, got, err := store.TryEnqueue(ctx, job.ID)
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if !won {
			t.Error("expected to win the enqueue")
		}
		if got.Status != models.JobQueued {
			t.Errorf("expected queued, got %s", got.Status)
		}
	})

	t.Run("second enqueue loses but succeeds", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobAwaitingUpload)

		if _, _, err := store.TryEnqueue(ctx, job.ID); err != nil {
			t.Fatalf("first enqueue failed: %v", err)
		}
		won, got, err := store.TryEnqueue(ctx, job.ID)
		if err != nil {
			t.Fatalf("second enqueue errored: %v", err)
		}
		if won {
			t.Error("second enqueue must not win")
		}
		if !got.Status.Enqueued() {
			t.Errorf("expected enqueued state, got %s", got.Status)
		}
	})

	t.Run("retry from failed", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)
		if err := store.MarkJobFailed(ctx, job.ID, "boom"); err != nil {
			t.Fatalf("failed to mark failed: %v", err)
		}

		won, got, err := store.TryEnqueue(ctx, job.ID)
		if err != nil {
			t.Fatalf("retry enqueue failed: %v", err)
		}
		if !won || got.Status != models.JobQueued {
			t.Errorf("expected retry to requeue, won=%v status=%s", won, got.Status)
		}
		if got.ErrorMessage != "" {
			t.Errorf("expected error message cleared on retry, got %q", got.ErrorMessage)
		}
	})
}

func TestClaimJob(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()
	visibility := 15 * time.Minute

	t.Run("claims queued job", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)

		claimed, err := store.ClaimJob(ctx, job.ID, visibility)
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		if claimed.Status != models.JobQuickRunning {
			t.Errorf("expected quick_running, got %s", claimed.Status)
		}
	})

	t.Run("awaiting_upload is not claimable", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobAwaitingUpload)

		if _, err := store.ClaimJob(ctx, job.ID, visibility); !errors.Is(err, models.ErrJobNotClaimable) {
			t.Errorf("expected ErrJobNotClaimable, got %v", err)
		}
	})

	t.Run("missing job", func(t *testing.T) {
		if _, err := store.ClaimJob(ctx, "nope", visibility); !errors.Is(err, models.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
	})

	t.Run("live running job is not reclaimable", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)
		if _, err := store.ClaimJob(ctx, job.ID, visibility); err != nil {
			t.Fatalf("claim failed: %v", err)
		}

		if _, err := store.ClaimJob(ctx, job.ID, visibility); !errors.Is(err, models.ErrJobNotClaimable) {
			t.Errorf("expected ErrJobNotClaimable for in-flight job, got %v", err)
		}
	})

	t.Run("stale running job is reclaimable", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)
		if _, err := store.ClaimJob(ctx, job.ID, visibility); err != nil {
			t.Fatalf("claim failed: %v", err)
		}

		// Zero visibility makes any prior claim immediately stale, simulating
		// a worker that died holding the job.
		claimed, err := store.ClaimJob(ctx, job.ID, 0)
		if err != nil {
			t.Fatalf("reclaim failed: %v", err)
		}
		if claimed.Status != models.JobQuickRunning {
			t.Errorf("expected quick_running after reclaim, got %s", claimed.Status)
		}
	})

	t.Run("only one concurrent claimer wins", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)

		const claimers = 8
		var wg sync.WaitGroup
		wins := make(chan struct{}, claimers)
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.ClaimJob(ctx, job.ID, visibility); err == nil {
					wins <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(wins)

		won := 0
		for range wins {
			won++
		}
		if won != 1 {
			t.Errorf("expected exactly one winning claim, got %d", won)
		}
	})
}

func TestPassCompletion(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	runningJob := func(t *testing.T) (*models.Session, *models.AnalysisJob) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)
		claimed, err := store.ClaimJob(ctx, job.ID, time.Minute)
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		return session, claimed
	}

	t.Run("quick pass persists artifacts and session status", func(t *testing.T) {
		session, job := runningJob(t)
		results, findings, report := testArtifacts("batting")

		if err := store.CompleteQuickPass(ctx, job.ID, results, findings, report, ""); err != nil {
			t.Fatalf("quick completion failed: %v", err)
		}

		got, err := store.GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if got.Status != models.JobQuickDone {
			t.Errorf("expected quick_done, got %s", got.Status)
		}
		if got.QuickFindings == nil || len(got.QuickFindings.Findings) != 1 {
			t.Errorf("quick findings not persisted: %+v", got.QuickFindings)
		}
		if got.QuickReport == nil || got.QuickReport.Text == "" {
			t.Error("quick report not persisted")
		}
		if got.QuickResults == nil || got.QuickResults.AnalysisModeUsed != "batting" {
			t.Error("quick results envelope not persisted")
		}

		sess, err := store.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if sess.Status != models.SessionProcessing {
			t.Errorf("expected processing session, got %s", sess.Status)
		}
	})

	t.Run("guardrail refuses incomplete artifacts", func(t *testing.T) {
		_, job := runningJob(t)
		results, _, report := testArtifacts("batting")

		err := store.CompleteQuickPass(ctx, job.ID, results, nil, report, "")
		var missing *models.ArtifactMissingError
		if !errors.As(err, &missing) {
			t.Fatalf("expected ArtifactMissingError, got %v", err)
		}
		if len(missing.Missing) != 1 || missing.Missing[0] != "findings" {
			t.Errorf("unexpected missing set: %v", missing.Missing)
		}

		got, _ := store.GetJob(ctx, job.ID)
		if got.Status != models.JobQuickRunning {
			t.Errorf("guardrail must not advance status, got %s", got.Status)
		}
	})

	t.Run("full pipeline to done", func(t *testing.T) {
		session, job := runningJob(t)
		results, findings, report := testArtifacts("bowling")

		if err := store.CompleteQuickPass(ctx, job.ID, results, findings, report, ""); err != nil {
			t.Fatalf("quick completion failed: %v", err)
		}
		if err := store.StartDeepPass(ctx, job.ID); err != nil {
			t.Fatalf("deep start failed: %v", err)
		}
		if err := store.CompleteDeepPass(ctx, job.ID, results, findings, report, "o/s/j/deep_results.json"); err != nil {
			t.Fatalf("deep completion failed: %v", err)
		}

		got, err := store.GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if got.Status != models.JobDone {
			t.Errorf("expected done, got %s", got.Status)
		}
		if got.CompletedAt == nil {
			t.Error("expected completed_at set")
		}
		if got.ProgressPct != 100 {
			t.Errorf("expected progress 100, got %d", got.ProgressPct)
		}
		if got.DeepResultsS3Key != "o/s/j/deep_results.json" {
			t.Errorf("expected offload key persisted, got %q", got.DeepResultsS3Key)
		}

		sess, _ := store.GetSession(ctx, session.ID)
		if sess.Status != models.SessionReady {
			t.Errorf("expected ready session, got %s", sess.Status)
		}
	})

	t.Run("transition conflict detected", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)
		results, findings, report := testArtifacts("batting")

		err := store.CompleteQuickPass(ctx, job.ID, results, findings, report, "")
		if !errors.Is(err, models.ErrTransitionConflict) {
			t.Errorf("expected ErrTransitionConflict for queued job, got %v", err)
		}
	})
}

func TestMarkJobFailed(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("fails job and session", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)

		if err := store.MarkJobFailed(ctx, job.ID, "decode error"); err != nil {
			t.Fatalf("mark failed errored: %v", err)
		}

		got, _ := store.GetJob(ctx, job.ID)
		if got.Status != models.JobFailed || got.ErrorMessage != "decode error" {
			t.Errorf("unexpected job state: %s %q", got.Status, got.ErrorMessage)
		}
		sess, _ := store.GetSession(ctx, session.ID)
		if sess.Status != models.SessionFailed {
			t.Errorf("expected failed session, got %s", sess.Status)
		}
	})

	t.Run("terminal job untouched", func(t *testing.T) {
		session := createTestSession(t, store, "coach-1")
		job := createTestJob(t, store, session.ID, models.JobQueued)
		claimed, err := store.ClaimJob(ctx, job.ID, time.Minute)
		if err != nil {
			t.Fatalf("claim failed: %v", err)
		}
		results, findings, report := testArtifacts("batting")
		if err := store.CompleteQuickPass(ctx, claimed.ID, results, findings, report, ""); err != nil {
			t.Fatalf("quick completion failed: %v", err)
		}
		if err := store.StartDeepPass(ctx, claimed.ID); err != nil {
			t.Fatalf("deep start failed: %v", err)
		}
		if err := store.CompleteDeepPass(ctx, claimed.ID, results, findings, report, ""); err != nil {
			t.Fatalf("deep completion failed: %v", err)
		}

		if err := store.MarkJobFailed(ctx, claimed.ID, "late failure"); err != nil {
			t.Fatalf("mark failed errored: %v", err)
		}
		got, _ := store.GetJob(ctx, claimed.ID)
		if got.Status != models.JobDone {
			t.Errorf("done job must stay done, got %s", got.Status)
		}
	})
}

func TestStaleQueuedJobs(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	session := createTestSession(t, store, "coach-1")
	stale := createTestJob(t, store, session.ID, models.JobQueued)
	createTestJob(t, store, session.ID, models.JobAwaitingUpload)

	// Age the queued row past the cutoff.
	old := time.Now().Add(-time.Hour)
	if err := store.DB().Model(&models.AnalysisJob{}).
		Where("id = ?", stale.ID).
		Update("updated_at", old).Error; err != nil {
		t.Fatalf("failed to age job: %v", err)
	}

	jobs, err := store.StaleQueuedJobs(ctx, 30*time.Minute, 10)
	if err != nil {
		t.Fatalf("stale scan failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != stale.ID {
		t.Fatalf("expected the aged queued job, got %d", len(jobs))
	}
}

func TestUpdateJobProgress(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	session := createTestSession(t, store, "coach-1")
	job := createTestJob(t, store, session.ID, models.JobQueued)

	if err := store.UpdateJobProgress(ctx, job.ID, 42, models.StageQuickAnalysis); err != nil {
		t.Fatalf("progress update failed: %v", err)
	}
	got, _ := store.GetJob(ctx, job.ID)
	if got.ProgressPct != 42 || got.Stage != models.StageQuickAnalysis {
		t.Errorf("unexpected progress state: %d %s", got.ProgressPct, got.Stage)
	}

	if err := store.UpdateJobProgress(ctx, "missing", 10, ""); !errors.Is(err, models.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
