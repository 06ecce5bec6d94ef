package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/models"
)

func fullFindings() *models.Findings {
	return &models.Findings{
		Findings: []models.Finding{
			{
				Code: "HEAD_MOVEMENT", Title: "Head stability", Severity: models.SeverityHigh,
				Message:    "Head drifting 8.1 degrees.",
				WhyMatters: "A moving head misjudges length.",
				Evidence: map[string]any{
					"head_drift_deg":   8.1,
					"avg_confidence":   0.86,
					"frame_count":      60,
					"worst_frames":     []int{12, 40, 41},
					"worst_timestamps": []float64{1.2, 4.0, 4.1},
				},
				SuggestedDrills: []string{"Balance-beam shadow batting", "Tennis-ball wall drills"},
			},
			{
				Code: "BALANCE_DRIFT", Title: "Base stability", Severity: models.SeverityMedium,
				Message: "Balance score 0.55.",
				Evidence: map[string]any{
					"balance_score":    0.55,
					"worst_frames":     []int{40},
					"worst_timestamps": []float64{4.0},
				},
				SuggestedDrills: []string{"Single-leg landing drills"},
			},
			{
				Code: "TRIGGER_TIMING", Title: "Trigger timing", Severity: models.SeverityLow,
				Message: "Trigger 140 ms before release.",
			},
		},
		OverallLevel: models.SeverityHigh,
	}
}

func terminalJob(findings *models.Findings, report *models.Report) *models.AnalysisJob {
	return &models.AnalysisJob{
		ID:           "job-1",
		SessionID:    "sess-1",
		Status:       models.JobDone,
		DeepFindings: findings,
		DeepReport:   report,
		DeepResults:  &models.AnalysisResults{AnalysisModeUsed: "batting"},
	}
}

func TestExportable(t *testing.T) {
	statuses := []models.JobStatus{
		models.JobAwaitingUpload, models.JobQueued, models.JobQuickRunning,
		models.JobQuickDone, models.JobDeepRunning, models.JobFailed,
	}
	for _, status := range statuses {
		err := Exportable(&models.AnalysisJob{ID: "j", Status: status})
		var notExportable *models.NotExportableError
		if !errors.As(err, &notExportable) {
			t.Errorf("status %s: expected NotExportableError, got %v", status, err)
			continue
		}
		if notExportable.Status != status {
			t.Errorf("status %s: error must carry the current status, got %s", status, notExportable.Status)
		}
	}

	if err := Exportable(&models.AnalysisJob{Status: models.JobDone}); err != nil {
		t.Errorf("done must be exportable, got %v", err)
	}
	if err := Exportable(&models.AnalysisJob{Status: models.JobCompleted}); err != nil {
		t.Errorf("legacy completed must be exportable, got %v", err)
	}
}

func TestBuildDocument(t *testing.T) {
	session := &models.Session{ID: "sess-1", Title: "Tuesday nets"}

	t.Run("prefers deep artifacts", func(t *testing.T) {
		job := terminalJob(fullFindings(), &models.Report{
			Text:     "Summary\nDeep summary.",
			Sections: []models.ReportSection{{Title: "Summary", Body: "Deep summary."}},
		})
		job.QuickFindings = &models.Findings{
			Findings:     []models.Finding{{Code: "X", Title: "Quick only", Severity: models.SeverityLow}},
			OverallLevel: models.SeverityLow,
		}

		doc, err := BuildDocument(job, session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if doc.Title != "Batting Analysis Report" {
			t.Errorf("unexpected title: %s", doc.Title)
		}
		if doc.Partial {
			t.Error("deep-backed document must not be partial")
		}
		if doc.Summary != "Deep summary." {
			t.Errorf("expected deep summary, got %q", doc.Summary)
		}
		if len(doc.Findings) != 3 {
			t.Fatalf("expected 3 findings, got %d", len(doc.Findings))
		}
		if doc.Findings[0].Severity != models.SeverityHigh {
			t.Error("findings must be sorted worst first")
		}
	})

	t.Run("falls back to quick artifacts", func(t *testing.T) {
		job := terminalJob(nil, nil)
		job.QuickFindings = fullFindings()
		job.QuickReport = &models.Report{Text: "Summary\nQuick summary."}

		doc, err := BuildDocument(job, session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if !doc.Partial {
			t.Error("quick-backed document must be partial")
		}
	})

	t.Run("splits priorities and secondary focus", func(t *testing.T) {
		doc, err := BuildDocument(terminalJob(fullFindings(), nil), session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		// One high finding extends to two priorities; the remaining low one
		// is not important enough for secondary focus.
		if len(doc.TopPriorities) != 2 {
			t.Fatalf("expected 2 top priorities, got %d", len(doc.TopPriorities))
		}
		if doc.TopPriorities[0].Code != "HEAD_MOVEMENT" || doc.TopPriorities[1].Code != "BALANCE_DRIFT" {
			t.Errorf("unexpected priority order: %s, %s", doc.TopPriorities[0].Code, doc.TopPriorities[1].Code)
		}
		if len(doc.SecondaryFocus) != 0 {
			t.Errorf("expected no secondary focus, got %d", len(doc.SecondaryFocus))
		}
	})

	t.Run("high-heavy findings fill both lists", func(t *testing.T) {
		findings := &models.Findings{
			Findings: []models.Finding{
				{Code: "A", Title: "A", Severity: models.SeverityHigh},
				{Code: "B", Title: "B", Severity: models.SeverityHigh},
				{Code: "C", Title: "C", Severity: models.SeverityHigh},
				{Code: "D", Title: "D", Severity: models.SeverityMedium},
				{Code: "E", Title: "E", Severity: models.SeverityLow},
			},
			OverallLevel: models.SeverityHigh,
		}
		doc, err := BuildDocument(terminalJob(findings, nil), session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if len(doc.TopPriorities) != 3 {
			t.Fatalf("expected 3 top priorities, got %d", len(doc.TopPriorities))
		}
		if len(doc.SecondaryFocus) != 1 || doc.SecondaryFocus[0].Code != "D" {
			t.Fatalf("expected the medium finding as secondary focus, got %+v", doc.SecondaryFocus)
		}
	})

	t.Run("exactly three focus bullets", func(t *testing.T) {
		job := terminalJob(fullFindings(), nil)
		doc, err := BuildDocument(job, session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if len(doc.Focus) != focusBulletCount {
			t.Fatalf("expected %d focus bullets, got %d", focusBulletCount, len(doc.Focus))
		}
		// The high-severity finding's drills lead the list.
		if doc.Focus[0] != "Balance-beam shadow batting" {
			t.Errorf("expected worst finding's drill first, got %q", doc.Focus[0])
		}
	})

	t.Run("thin findings pad the focus list", func(t *testing.T) {
		findings := &models.Findings{
			Findings:     []models.Finding{{Code: "X", Title: "Only one", Severity: models.SeverityLow}},
			OverallLevel: models.SeverityLow,
		}
		doc, err := BuildDocument(terminalJob(findings, nil), session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if len(doc.Focus) != focusBulletCount {
			t.Errorf("expected padded focus list of %d, got %d", focusBulletCount, len(doc.Focus))
		}
	})

	t.Run("appendix aggregates finding evidence", func(t *testing.T) {
		doc, err := BuildDocument(terminalJob(fullFindings(), nil), session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		app := doc.Appendix
		if app.PoseReliability != 0.86 {
			t.Errorf("expected reliability from evidence, got %v", app.PoseReliability)
		}
		if app.FrameCount != 60 {
			t.Errorf("expected frame count from evidence, got %d", app.FrameCount)
		}
		// Worst frames are merged across findings, deduplicated, ascending.
		want := []int{12, 40, 41}
		if len(app.WorstFrames) != len(want) {
			t.Fatalf("expected %v, got %v", want, app.WorstFrames)
		}
		for i, idx := range want {
			if app.WorstFrames[i] != idx {
				t.Fatalf("expected %v, got %v", want, app.WorstFrames)
			}
		}
		if len(app.WorstTimestamps) != 3 || app.WorstTimestamps[0] != 1.2 {
			t.Errorf("unexpected timestamps: %v", app.WorstTimestamps)
		}
	})

	t.Run("appendix prefers the results envelope", func(t *testing.T) {
		job := terminalJob(fullFindings(), nil)
		job.DeepResults = &models.AnalysisResults{
			AnalysisModeUsed: "batting",
			PoseReliability:  0.91,
			FrameCount:       80,
			SampleFPS:        10,
		}
		doc, err := BuildDocument(job, session)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if doc.Appendix.PoseReliability != 0.91 || doc.Appendix.FrameCount != 80 || doc.Appendix.SampleFPS != 10 {
			t.Errorf("expected envelope values, got %+v", doc.Appendix)
		}
	})

	t.Run("no artifacts at all", func(t *testing.T) {
		_, err := BuildDocument(terminalJob(nil, nil), session)
		var missing *models.ArtifactMissingError
		if !errors.As(err, &missing) {
			t.Errorf("expected ArtifactMissingError, got %v", err)
		}
	})
}

func TestEvidencePairs(t *testing.T) {
	pairs := evidencePairs(map[string]any{
		"head_drift_deg":   8.1,
		"frame_count":      60,
		"worst_frames":     []int{12, 40},
		"worst_timestamps": []float64{1.2},
		"opaque":           map[string]any{"nested": true},
	})
	if len(pairs) != 2 {
		t.Fatalf("expected scalar pairs only, got %v", pairs)
	}
	if pairs[0] != "frame count: 60" || pairs[1] != "head drift deg: 8.1" {
		t.Errorf("unexpected pairs: %v", pairs)
	}
}

func TestRender(t *testing.T) {
	session := &models.Session{ID: "sess-1", Title: "Tuesday nets"}
	job := terminalJob(fullFindings(), nil)

	doc, err := BuildDocument(job, session)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	pdf, err := Render(doc)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("output must be a PDF")
	}
	// Compression is off, so the sections are greppable in the raw bytes.
	for _, want := range []string{
		"Batting Analysis Report",
		"Top Priorities",
		"Focus This Week",
		"head drift deg: 8.1",
		"Evidence Appendix",
		"Lowest-confidence frames:",
	} {
		if !bytes.Contains(pdf, []byte(want)) {
			t.Errorf("expected %q in PDF bytes", want)
		}
	}
}

func TestServiceExport(t *testing.T) {
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
	defer store.Close()
	ctx := context.Background()

	session := &models.Session{OwnerID: "coach-1", Title: "Tuesday nets"}
	if _, err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	job := terminalJob(fullFindings(), nil)
	job.ID = ""
	job.SessionID = session.ID
	job.SampleFPS = 10
	job.S3Key = "k"
	if _, err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	svc := NewService(store, nil)

	t.Run("renders for the owner", func(t *testing.T) {
		pdf, err := svc.Export(ctx, "coach-1", job.ID)
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if !bytes.Contains(pdf, []byte("Batting Analysis Report")) {
			t.Error("expected titled PDF")
		}
	})

	t.Run("refuses non-owner", func(t *testing.T) {
		if _, err := svc.Export(ctx, "coach-2", job.ID); !errors.Is(err, models.ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("refuses non-terminal job", func(t *testing.T) {
		pending := &models.AnalysisJob{SessionID: session.ID, Status: models.JobQueued, SampleFPS: 10, S3Key: "k"}
		if _, err := store.CreateJob(ctx, pending); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		_, err := svc.Export(ctx, "coach-1", pending.ID)
		var notExportable *models.NotExportableError
		if !errors.As(err, &notExportable) {
			t.Errorf("expected NotExportableError, got %v", err)
		}
	})
}
