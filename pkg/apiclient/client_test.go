package apiclient

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pitchsight/pitchsight/pkg/api"
	"github.com/pitchsight/pitchsight/pkg/api/auth"
	"github.com/pitchsight/pitchsight/pkg/blob"
	"github.com/pitchsight/pitchsight/pkg/export"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/queue"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

const testSecret = "test-secret-key-for-testing-only-32chars"

type clientFixture struct {
	client *Client
	blobs  *blob.MemoryStore
	store  *jobstore.GORMStore
}

func newClientFixture(t *testing.T) *clientFixture {
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
	coordinator := upload.NewCoordinator(store, blobs, q, nil, upload.Config{})
	exporter := export.NewService(store, nil)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("failed to create JWT service: %v", err)
	}
	token, _, err := jwtService.GenerateToken("coach-1", "Coach One", "coach")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	srv := httptest.NewServer(api.NewRouter(store, coordinator, exporter, jwtService, 30*time.Second))
	t.Cleanup(srv.Close)

	return &clientFixture{
		client: New(srv.URL).WithToken(token),
		blobs:  blobs,
		store:  store,
	}
}

func TestClientSessionLifecycle(t *testing.T) {
	f := newClientFixture(t)
	ctx := t.Context()

	session, err := f.client.CreateSession(ctx, CreateSessionRequest{
		Title:           "Thursday nets",
		AnalysisContext: "bowling",
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if session.ID == "" || session.Title != "Thursday nets" {
		t.Fatalf("unexpected session: %+v", session)
	}

	got, err := f.client.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session failed: %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("expected session %s, got %s", session.ID, got.ID)
	}

	page, err := f.client.ListSessions(ctx, ListSessionsOptions{Limit: 10})
	if err != nil {
		t.Fatalf("list sessions failed: %v", err)
	}
	if len(page.Sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(page.Sessions))
	}

	if err := f.client.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("delete session failed: %v", err)
	}

	_, err = f.client.GetSession(ctx, session.ID)
	if !IsNotFound(err) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func TestClientUploadHandshake(t *testing.T) {
	f := newClientFixture(t)
	ctx := t.Context()

	session, err := f.client.CreateSession(ctx, CreateSessionRequest{Title: "s"})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	initiated, err := f.client.InitiateUpload(ctx, InitiateUploadRequest{
		SessionID: session.ID,
		SampleFPS: 15,
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if initiated.UploadURL == "" || initiated.S3Key == "" {
		t.Fatalf("incomplete initiate result: %+v", initiated)
	}

	// The memory blob store issues fake URLs, so the PUT happens directly.
	if err := f.blobs.Put(ctx, initiated.S3Key, []byte("video"), blob.ContentTypeMP4); err != nil {
		t.Fatalf("failed to store video: %v", err)
	}

	job, err := f.client.CompleteUpload(ctx, initiated.JobID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if job.Status != models.JobQueued {
		t.Errorf("expected queued job, got %s", job.Status)
	}

	polled, err := f.client.GetJob(ctx, initiated.JobID)
	if err != nil {
		t.Fatalf("get job failed: %v", err)
	}
	if polled.ID != initiated.JobID {
		t.Errorf("expected job %s, got %s", initiated.JobID, polled.ID)
	}

	// Export before the job is terminal is a conflict
	_, err = f.client.ExportPDF(ctx, initiated.JobID)
	if !IsConflict(err) {
		t.Errorf("expected conflict exporting a queued job, got %v", err)
	}
}

func TestClientAuthErrors(t *testing.T) {
	f := newClientFixture(t)
	bare := f.client.WithToken("")

	_, err := bare.ListSessions(t.Context(), ListSessionsOptions{})
	if !IsAuthError(err) {
		t.Errorf("expected auth error without token, got %v", err)
	}
}

func TestPutVideo(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.PutVideo(t.Context(), srv.URL+"/bucket/key.mp4", bytes.NewReader([]byte("frames"))); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if string(gotBody) != "frames" {
		t.Errorf("unexpected body: %q", gotBody)
	}
	if gotContentType != "video/mp4" {
		t.Errorf("unexpected content type: %q", gotContentType)
	}
}

func TestPutVideo_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.PutVideo(t.Context(), srv.URL+"/k", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for rejected upload")
	}
}
