package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

// CreateSessionRequest carries the fields for a new session.
type CreateSessionRequest struct {
	Title           string `json:"title"`
	AnalysisContext string `json:"analysis_context,omitempty"`
}

// CreateSession creates a new coaching session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	var session models.Session
	if err := c.post(ctx, "/api/v1/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession returns one session with its analysis jobs.
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(id), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessionsOptions filters and pages the session list.
type ListSessionsOptions struct {
	Status        string
	Limit         int
	Offset        int
	IncludeFailed bool
}

// SessionPage is one page of the session list.
type SessionPage struct {
	Sessions []models.Session `json:"sessions"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListSessions returns the caller's sessions, newest first.
func (c *Client) ListSessions(ctx context.Context, opts ListSessionsOptions) (*SessionPage, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status_filter", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.IncludeFailed {
		q.Set("exclude_failed", "false")
	}

	path := "/api/v1/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page SessionPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DeleteSession cascade-deletes a session, its jobs and its blobs.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/v1/sessions/"+url.PathEscape(id), nil)
}

// BulkDeleteSessions purges every caller session matching the filter. A zero
// olderThanDays matches regardless of age.
func (c *Client) BulkDeleteSessions(ctx context.Context, status string, olderThanDays int) (*upload.BulkDeleteResult, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status_filter", status)
	}
	if olderThanDays > 0 {
		q.Set("older_than_days", fmt.Sprint(olderThanDays))
	}

	path := "/api/v1/sessions/bulk"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result upload.BulkDeleteResult
	if err := c.delete(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
