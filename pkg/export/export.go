// Package export renders finished analysis jobs into coach-facing PDF
// reports. Export is gated on job terminality; the document consolidation
// prefers deep-pass artifacts and falls back to quick-pass ones when a legacy
// row carries only those.
package export

import (
	"context"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/internal/telemetry"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/metrics"
	"github.com/pitchsight/pitchsight/pkg/models"
)

// Service exposes PDF export over the job store.
type Service struct {
	store   *jobstore.GORMStore
	metrics *metrics.Pipeline
}

// NewService wires the export path. metrics may be nil.
func NewService(store *jobstore.GORMStore, m *metrics.Pipeline) *Service {
	return &Service{store: store, metrics: m}
}

// Export renders the job's consolidated report as PDF bytes. The job must be
// owned by ownerID and in a terminal success state.
func (s *Service) Export(ctx context.Context, ownerID, jobID string) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanExportPDF)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.JobID(jobID), telemetry.OwnerID(ownerID))

	pdf, err := s.export(ctx, ownerID, jobID)
	s.metrics.RecordExport(err)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return pdf, err
}

func (s *Service) export(ctx context.Context, ownerID, jobID string) ([]byte, error) {
	job, session, err := s.store.GetJobWithSession(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, models.ErrNotOwner
	}

	if err := Exportable(job); err != nil {
		return nil, err
	}

	doc, err := BuildDocument(job, session)
	if err != nil {
		return nil, err
	}

	pdf, err := Render(doc)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Report exported",
		logger.KeyJobID, jobID,
		logger.KeyMode, doc.Mode,
		"bytes", len(pdf),
	)
	return pdf, nil
}

// Exportable gates export on terminal success. Anything else is a
// precondition failure carrying the current status.
func Exportable(job *models.AnalysisJob) error {
	if job.Status.Terminal() {
		return nil
	}
	return &models.NotExportableError{JobID: job.ID, Status: job.Status}
}
