package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// GetJob returns the full job row, artifacts included.
func (c *Client) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	if err := c.get(ctx, "/api/v1/analysis-jobs/"+url.PathEscape(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitForJob polls the job until it reaches done or failed, or ctx expires.
// Returns the final job row; a failed job is not an error here, callers check
// the status.
func (c *Client) WaitForJob(ctx context.Context, id string, pollInterval time.Duration) (*models.AnalysisJob, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() || job.Status == models.JobFailed {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ExportPDF renders the job's consolidated report and returns the PDF bytes.
// Non-terminal jobs fail with a 409; IsConflict distinguishes that case.
func (c *Client) ExportPDF(ctx context.Context, id string) ([]byte, error) {
	pdf, err := c.doRaw(ctx, http.MethodPost, "/api/v1/analysis-jobs/"+url.PathEscape(id)+"/export-pdf", nil)
	if err != nil {
		return nil, err
	}
	if len(pdf) < 4 || string(pdf[:4]) != "%PDF" {
		return nil, fmt.Errorf("export returned a non-PDF payload")
	}
	return pdf, nil
}
