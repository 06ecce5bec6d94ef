//go:build integration

package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// startPostgres runs a throwaway PostgreSQL container and returns a store
// backed by it.
func startPostgres(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pitchsight_test"),
		tcpostgres.WithUsername("pitchsight"),
		tcpostgres.WithPassword("pitchsight"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	store, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "pitchsight_test",
			User:     "pitchsight",
			Password: "pitchsight",
			SSLMode:  "disable",
		},
	})
	if err != nil {
		t.Fatalf("failed to create postgres store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresPipeline(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()

	session := &models.Session{OwnerID: "coach-1", Title: "integration"}
	if _, err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	job := &models.AnalysisJob{
		SessionID: session.ID,
		Status:    models.JobAwaitingUpload,
		SampleFPS: 10,
		S3Key:     "coach-1/" + session.ID + "/job.mp4",
	}
	if _, err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	won, _, err := store.TryEnqueue(ctx, job.ID)
	if err != nil || !won {
		t.Fatalf("enqueue failed: won=%v err=%v", won, err)
	}

	claimed, err := store.ClaimJob(ctx, job.ID, 15*time.Minute)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed.Status != models.JobQuickRunning {
		t.Fatalf("expected quick_running, got %s", claimed.Status)
	}

	findings := &models.Findings{
		Findings:     []models.Finding{{Code: "HEAD_MOVEMENT", Title: "Head stability", Severity: models.SeverityLow}},
		OverallLevel: models.SeverityLow,
	}
	report := &models.Report{Text: "Summary\nSteady head position."}
	results := &models.AnalysisResults{AnalysisModeUsed: "batting", Findings: findings, Report: report}

	if err := store.CompleteQuickPass(ctx, job.ID, results, findings, report, ""); err != nil {
		t.Fatalf("quick completion failed: %v", err)
	}
	if err := store.StartDeepPass(ctx, job.ID); err != nil {
		t.Fatalf("deep start failed: %v", err)
	}
	if err := store.CompleteDeepPass(ctx, job.ID, results, findings, report, ""); err != nil {
		t.Fatalf("deep completion failed: %v", err)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if got.Status != models.JobDone {
		t.Errorf("expected done, got %s", got.Status)
	}
	if got.QuickFindings == nil || got.DeepFindings == nil {
		t.Error("expected artifact columns to round-trip through postgres")
	}

	sess, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if sess.Status != models.SessionReady {
		t.Errorf("expected ready session, got %s", sess.Status)
	}
}
