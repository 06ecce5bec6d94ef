package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pitchsight/pitchsight/pkg/blob"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/queue"
)

type fixture struct {
	store *jobstore.GORMStore
	blobs *blob.MemoryStore
	queue *queue.MemoryQueue
	coord *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := jobstore.New(&jobstore.Config{
		Type:   jobstore.DatabaseTypeSQLite,
		SQLite: jobstore.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	sqlDB, err := store.DB().DB()
	if err != nil {
		t.Fatalf("failed to get underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = store.Close() })

	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(queue.Config{})
	return &fixture{
		store: store,
		blobs: blobs,
		queue: q,
		coord: NewCoordinator(store, blobs, q, nil, Config{PresignTTL: 10 * time.Minute}),
	}
}

func (f *fixture) createSession(t *testing.T, ownerID string) *models.Session {
	t.Helper()
	session := &models.Session{OwnerID: ownerID, Title: "nets"}
	if _, err := f.store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func TestInitiate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates job and presigns", func(t *testing.T) {
		f := newFixture(t)
		session := f.createSession(t, "coach-1")

		res, err := f.coord.Initiate(ctx, "coach-1", session.ID, InitiateRequest{AnalysisMode: "bowling"})
		if err != nil {
			t.Fatalf("initiate failed: %v", err)
		}
		if res.UploadURL == "" {
			t.Error("expected upload URL")
		}
		if res.S3Key != blob.VideoKey("coach-1", session.ID, res.JobID, "mp4") {
			t.Errorf("unexpected key layout: %s", res.S3Key)
		}

		job, err := f.store.GetJob(ctx, res.JobID)
		if err != nil {
			t.Fatalf("failed to load job: %v", err)
		}
		if job.Status != models.JobAwaitingUpload {
			t.Errorf("expected awaiting_upload, got %s", job.Status)
		}
		if job.AnalysisMode != "bowling" {
			t.Errorf("expected pinned mode, got %q", job.AnalysisMode)
		}
		if job.SampleFPS != defaultSampleFPS {
			t.Errorf("expected default sample fps, got %d", job.SampleFPS)
		}
	})

	t.Run("rejects invalid mode", func(t *testing.T) {
		f := newFixture(t)
		session := f.createSession(t, "coach-1")

		_, err := f.coord.Initiate(ctx, "coach-1", session.ID, InitiateRequest{AnalysisMode: "tennis"})
		if !errors.Is(err, ErrInvalidMode) {
			t.Errorf("expected ErrInvalidMode, got %v", err)
		}
	})

	t.Run("rejects foreign session", func(t *testing.T) {
		f := newFixture(t)
		session := f.createSession(t, "coach-1")

		_, err := f.coord.Initiate(ctx, "coach-2", session.ID, InitiateRequest{})
		if !errors.Is(err, models.ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("rejects terminal session", func(t *testing.T) {
		f := newFixture(t)
		session := f.createSession(t, "coach-1")
		if err := f.store.UpdateSessionStatus(ctx, session.ID, models.SessionReady); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}

		_, err := f.coord.Initiate(ctx, "coach-1", session.ID, InitiateRequest{})
		if !errors.Is(err, models.ErrSessionTerminal) {
			t.Errorf("expected ErrSessionTerminal, got %v", err)
		}
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	initiate := func(t *testing.T, f *fixture) (*models.Session, *InitiateResult) {
		session := f.createSession(t, "coach-1")
		res, err := f.coord.Initiate(ctx, "coach-1", session.ID, InitiateRequest{})
		if err != nil {
			t.Fatalf("initiate failed: %v", err)
		}
		return session, res
	}

	t.Run("missing object fails the job", func(t *testing.T) {
		f := newFixture(t)
		_, res := initiate(t, f)

		_, err := f.coord.Complete(ctx, "coach-1", res.JobID)
		if !errors.Is(err, models.ErrUploadMissing) {
			t.Fatalf("expected ErrUploadMissing, got %v", err)
		}

		job, _ := f.store.GetJob(ctx, res.JobID)
		if job.Status != models.JobFailed {
			t.Errorf("expected failed job, got %s", job.Status)
		}
		if f.queue.Len() != 0 {
			t.Errorf("no message must be sent on preflight failure")
		}
	})

	t.Run("blob outage leaves job retryable", func(t *testing.T) {
		f := newFixture(t)
		_, res := initiate(t, f)
		f.blobs.HeadErr = errors.New("connection refused")

		_, err := f.coord.Complete(ctx, "coach-1", res.JobID)
		if err == nil || errors.Is(err, models.ErrUploadMissing) {
			t.Fatalf("expected transient error, got %v", err)
		}

		job, _ := f.store.GetJob(ctx, res.JobID)
		if job.Status != models.JobAwaitingUpload {
			t.Errorf("transient preflight error must not change status, got %s", job.Status)
		}
	})

	t.Run("dispatches exactly once", func(t *testing.T) {
		f := newFixture(t)
		session, res := initiate(t, f)
		if err := f.blobs.Put(ctx, res.S3Key, []byte("video"), blob.ContentTypeMP4); err != nil {
			t.Fatalf("failed to store blob: %v", err)
		}

		job, err := f.coord.Complete(ctx, "coach-1", res.JobID)
		if err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		if job.Status != models.JobQueued {
			t.Errorf("expected queued, got %s", job.Status)
		}

		// Second complete is a no-op success.
		again, err := f.coord.Complete(ctx, "coach-1", res.JobID)
		if err != nil {
			t.Fatalf("repeat complete failed: %v", err)
		}
		if again.Status != models.JobQueued {
			t.Errorf("expected queued, got %s", again.Status)
		}
		if f.queue.Len() != 1 {
			t.Errorf("expected exactly one dispatch message, got %d", f.queue.Len())
		}

		sess, _ := f.store.GetSession(ctx, session.ID)
		if sess.Status != models.SessionUploaded {
			t.Errorf("expected uploaded session, got %s", sess.Status)
		}
	})

	t.Run("concurrent completes send one message", func(t *testing.T) {
		f := newFixture(t)
		_, res := initiate(t, f)
		if err := f.blobs.Put(ctx, res.S3Key, []byte("video"), blob.ContentTypeMP4); err != nil {
			t.Fatalf("failed to store blob: %v", err)
		}

		const callers = 6
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.coord.Complete(ctx, "coach-1", res.JobID)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("concurrent complete failed: %v", err)
			}
		}
		if f.queue.Len() != 1 {
			t.Errorf("expected exactly one dispatch message, got %d", f.queue.Len())
		}
	})

	t.Run("retry after failure requeues", func(t *testing.T) {
		f := newFixture(t)
		_, res := initiate(t, f)

		// First attempt fails preflight.
		if _, err := f.coord.Complete(ctx, "coach-1", res.JobID); !errors.Is(err, models.ErrUploadMissing) {
			t.Fatalf("expected ErrUploadMissing, got %v", err)
		}

		// Client re-uploads and retries.
		if err := f.blobs.Put(ctx, res.S3Key, []byte("video"), blob.ContentTypeMP4); err != nil {
			t.Fatalf("failed to store blob: %v", err)
		}
		job, err := f.coord.Complete(ctx, "coach-1", res.JobID)
		if err != nil {
			t.Fatalf("retry complete failed: %v", err)
		}
		if job.Status != models.JobQueued {
			t.Errorf("expected queued after retry, got %s", job.Status)
		}
		if job.ErrorMessage != "" {
			t.Errorf("expected error cleared, got %q", job.ErrorMessage)
		}
	})
}
