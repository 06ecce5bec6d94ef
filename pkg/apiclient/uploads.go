package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

// InitiateUploadRequest carries the upload intent for one video.
type InitiateUploadRequest struct {
	SessionID     string `json:"session_id"`
	AnalysisMode  string `json:"analysis_mode,omitempty"`
	SampleFPS     int    `json:"sample_fps,omitempty"`
	IncludeFrames bool   `json:"include_frames,omitempty"`
}

// InitiateUpload creates an analysis job and returns the presigned PUT URL
// for its video.
func (c *Client) InitiateUpload(ctx context.Context, req InitiateUploadRequest) (*upload.InitiateResult, error) {
	var result upload.InitiateResult
	if err := c.post(ctx, "/api/v1/videos/upload/initiate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PutVideo uploads the video bytes to a presigned URL from InitiateUpload.
// The PUT goes directly to the blob store, not through the API server.
func (c *Client) PutVideo(ctx context.Context, uploadURL string, video io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, video)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "video/mp4")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("video upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("video upload rejected with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// CompleteUpload confirms the video landed and dispatches the analysis job.
func (c *Client) CompleteUpload(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	body := map[string]string{"job_id": jobID}
	if err := c.post(ctx, "/api/v1/videos/upload/complete", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// UploadVideo runs the whole handshake: initiate, PUT the bytes, complete.
// Returns the dispatched job.
func (c *Client) UploadVideo(ctx context.Context, req InitiateUploadRequest, video []byte) (*models.AnalysisJob, error) {
	initiated, err := c.InitiateUpload(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.PutVideo(ctx, initiated.UploadURL, bytes.NewReader(video)); err != nil {
		return nil, err
	}
	return c.CompleteUpload(ctx, initiated.JobID)
}
