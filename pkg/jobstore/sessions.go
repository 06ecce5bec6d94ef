package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// ListSessionsOptions filter and page the session list. By default failed
// sessions are excluded; set IncludeFailed or an explicit Status to see them.
type ListSessionsOptions struct {
	OwnerID       string
	Status        models.SessionStatus
	IncludeFailed bool

	// OlderThan keeps only sessions created before the given time. Zero
	// disables the filter.
	OlderThan time.Time

	Limit  int
	Offset int
}

// CreateSession persists a new session, generating an ID when absent.
func (s *GORMStore) CreateSession(ctx context.Context, session *models.Session) (string, error) {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = models.SessionPending
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", err
	}
	return session.ID, nil
}

// GetSession loads a session with its jobs, newest job first.
func (s *GORMStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrSessionNotFound)
	}
	return &session, nil
}

// GetOwnedSession loads a session and enforces ownership. A session owned by
// someone else returns ErrNotOwner, never the session.
func (s *GORMStore) GetOwnedSession(ctx context.Context, id, ownerID string) (*models.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, models.ErrNotOwner
	}
	return session, nil
}

// ListSessions returns the owner's sessions, newest first.
func (s *GORMStore) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]*models.Session, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")

	if opts.OwnerID != "" {
		q = q.Where("owner_id = ?", opts.OwnerID)
	}
	switch {
	case opts.Status != "":
		q = q.Where("status = ?", opts.Status)
	case !opts.IncludeFailed:
		q = q.Where("status <> ?", models.SessionFailed)
	}
	if !opts.OlderThan.IsZero() {
		q = q.Where("created_at < ?", opts.OlderThan)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var sessions []*models.Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateSessionStatus moves a session to status.
func (s *GORMStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session and its jobs after an ownership check. It
// returns every blob key referenced by the deleted jobs so the caller can
// best-effort clean the object store after the transaction commits.
func (s *GORMStore) DeleteSession(ctx context.Context, id, ownerID string) ([]string, error) {
	var blobKeys []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
			return convertNotFoundError(err, models.ErrSessionNotFound)
		}
		if session.OwnerID != ownerID {
			return models.ErrNotOwner
		}

		var jobs []models.AnalysisJob
		if err := tx.Where("session_id = ?", id).Find(&jobs).Error; err != nil {
			return err
		}
		for _, job := range jobs {
			if job.S3Key != "" {
				blobKeys = append(blobKeys, job.S3Key)
			}
			if job.QuickResultsS3Key != "" {
				blobKeys = append(blobKeys, job.QuickResultsS3Key)
			}
			if job.DeepResultsS3Key != "" {
				blobKeys = append(blobKeys, job.DeepResultsS3Key)
			}
		}

		if err := tx.Where("session_id = ?", id).Delete(&models.AnalysisJob{}).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return blobKeys, nil
}

// BulkDeleteSessions deletes every listed session the owner actually owns and
// reports the deleted IDs along with all blob keys to clean. Sessions that do
// not exist or belong to someone else are skipped, not errors.
func (s *GORMStore) BulkDeleteSessions(ctx context.Context, ownerID string, ids []string) (deleted []string, blobKeys []string, err error) {
	for _, id := range ids {
		keys, delErr := s.DeleteSession(ctx, id, ownerID)
		if delErr != nil {
			if errors.Is(delErr, models.ErrSessionNotFound) || errors.Is(delErr, models.ErrNotOwner) {
				continue
			}
			return deleted, blobKeys, delErr
		}
		deleted = append(deleted, id)
		blobKeys = append(blobKeys, keys...)
	}
	return deleted, blobKeys, nil
}
