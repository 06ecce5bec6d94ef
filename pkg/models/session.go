package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus tracks the user-visible lifecycle of a coaching session.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionUploaded   SessionStatus = "uploaded"
	SessionProcessing SessionStatus = "processing"
	SessionReady      SessionStatus = "ready"
	SessionFailed     SessionStatus = "failed"
)

// IsValid reports whether s is a known session status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionPending, SessionUploaded, SessionProcessing, SessionReady, SessionFailed:
		return true
	}
	return false
}

// Terminal reports whether the session can no longer accept new uploads.
func (s SessionStatus) Terminal() bool {
	return s == SessionReady || s == SessionFailed
}

// StringList is a JSON-serialized list of string IDs stored in a text column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// Session is the user-visible container for one uploaded video and its
// analysis. It owns its AnalysisJobs; deleting a session cascades to the jobs
// and (best-effort) to the stored blob.
type Session struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	OwnerID string `gorm:"index;not null;size:36" json:"owner_id"`
	Title   string `gorm:"size:255" json:"title"`

	// PlayerIDs is the ordered list of players visible in the video.
	PlayerIDs StringList `gorm:"type:text" json:"player_ids"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	// AnalysisContext is the session-level default-mode hint consulted when a
	// job does not pin an analysis mode (batting, bowling, ...).
	AnalysisContext string `gorm:"size:32" json:"analysis_context,omitempty"`

	CameraView string        `gorm:"size:64" json:"camera_view,omitempty"`
	Status     SessionStatus `gorm:"index;size:32;default:pending" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Jobs []AnalysisJob `gorm:"foreignKey:SessionID" json:"jobs,omitempty"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}
