package upload

import (
	"context"
	"time"

	"github.com/pitchsight/pitchsight/internal/logger"
	"github.com/pitchsight/pitchsight/pkg/jobstore"
	"github.com/pitchsight/pitchsight/pkg/models"
)

// CreateSession persists a new session for the owner.
func (c *Coordinator) CreateSession(ctx context.Context, ownerID, title, analysisContext string) (*models.Session, error) {
	session := &models.Session{
		OwnerID:         ownerID,
		Title:           title,
		AnalysisContext: analysisContext,
	}
	if _, err := c.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Session created",
		logger.KeySessionID, session.ID,
		logger.KeyOwnerID, ownerID,
	)
	return session, nil
}

// GetSession loads an owned session with its jobs.
func (c *Coordinator) GetSession(ctx context.Context, ownerID, sessionID string) (*models.Session, error) {
	return c.store.GetOwnedSession(ctx, sessionID, ownerID)
}

// ListSessions pages through the owner's sessions.
func (c *Coordinator) ListSessions(ctx context.Context, ownerID string, opts jobstore.ListSessionsOptions) ([]*models.Session, error) {
	opts.OwnerID = ownerID
	return c.store.ListSessions(ctx, opts)
}

// DeleteSession cascade-deletes a session and its jobs, then best-effort
// deletes the referenced blobs. The DB commit wins; blob deletion failures are
// logged and counted, never surfaced.
func (c *Coordinator) DeleteSession(ctx context.Context, ownerID, sessionID string) (blobsDeleted int, err error) {
	keys, err := c.store.DeleteSession(ctx, sessionID, ownerID)
	if err != nil {
		return 0, err
	}

	deleted := c.deleteBlobs(ctx, keys)

	logger.InfoCtx(ctx, "Session deleted",
		logger.KeySessionID, sessionID,
		"blobs_deleted", deleted,
		"blobs_total", len(keys),
	)
	return deleted, nil
}

// BulkDeleteOptions scope a bulk purge. Both filters are optional.
type BulkDeleteOptions struct {
	// Status keeps only sessions in the given state.
	Status models.SessionStatus

	// OlderThanDays keeps only sessions created at least this many days ago.
	OlderThanDays int
}

// BulkDeleteResult reports what a bulk purge removed.
type BulkDeleteResult struct {
	DeletedCount   int `json:"deleted_count"`
	S3FilesDeleted int `json:"s3_files_deleted"`
}

// BulkDelete removes every session of the owner matching the filter, jobs and
// blobs included. Sessions that vanish mid-purge are skipped.
func (c *Coordinator) BulkDelete(ctx context.Context, ownerID string, opts BulkDeleteOptions) (*BulkDeleteResult, error) {
	listOpts := jobstore.ListSessionsOptions{
		OwnerID:       ownerID,
		Status:        opts.Status,
		IncludeFailed: true,
	}
	if opts.OlderThanDays > 0 {
		listOpts.OlderThan = time.Now().AddDate(0, 0, -opts.OlderThanDays)
	}

	sessions, err := c.store.ListSessions(ctx, listOpts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}

	deleted, keys, err := c.store.BulkDeleteSessions(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}

	result := &BulkDeleteResult{
		DeletedCount:   len(deleted),
		S3FilesDeleted: c.deleteBlobs(ctx, keys),
	}

	logger.InfoCtx(ctx, "Sessions bulk-deleted",
		logger.KeyOwnerID, ownerID,
		"deleted", result.DeletedCount,
		"blobs_deleted", result.S3FilesDeleted,
	)
	return result, nil
}

// deleteBlobs removes the given keys from the blob store, logging failures.
func (c *Coordinator) deleteBlobs(ctx context.Context, keys []string) int {
	deleted := 0
	for _, key := range keys {
		if err := c.blobs.Delete(ctx, key); err != nil {
			logger.WarnCtx(ctx, "Failed to delete blob, leaving orphan",
				"key", key,
				logger.KeyError, err,
			)
			continue
		}
		deleted++
	}
	return deleted
}
