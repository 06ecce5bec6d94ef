// Package models defines the persistent data model for the video-analysis
// pipeline: coaching sessions, analysis jobs, and the structured coaching
// artifacts (findings and reports) produced by the workers.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Session{},
		&AnalysisJob{},
	}
}
