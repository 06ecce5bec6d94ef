package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Severity grades a single finding and the overall level of a findings set.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// rank orders severities for comparisons; unknown values sort lowest.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Finding is a single structured coaching observation keyed by a stable
// uppercase code.
type Finding struct {
	Code     string   `json:"code"`
	Title    string   `json:"title"`
	Severity Severity `json:"severity"`

	// Message describes what is happening; WhyMatters carries the coach-facing
	// impact.
	Message    string `json:"message"`
	WhyMatters string `json:"why_matters"`

	// Evidence holds metric-specific backing data, including worst frame
	// indices and timestamp ranges.
	Evidence map[string]any `json:"evidence,omitempty"`

	// SuggestedDrills is capped at three entries by the generators.
	SuggestedDrills []string `json:"suggested_drills,omitempty"`

	// Phase is "quick", "deep", or empty when the finding is pass-agnostic.
	Phase string `json:"phase,omitempty"`
}

// Findings is the ordered findings set produced by one generator pass.
type Findings struct {
	Findings     []Finding `json:"findings"`
	OverallLevel Severity  `json:"overall_level"`
}

// Value implements driver.Valuer.
func (f Findings) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (f *Findings) Scan(value any) error {
	return scanJSON(value, f, "Findings")
}

// ReportSection is one titled block of assembled coaching prose.
type ReportSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Report carries the assembled coach-facing prose for one pass.
type Report struct {
	Text     string          `json:"text"`
	Sections []ReportSection `json:"sections,omitempty"`
}

// Value implements driver.Valuer.
func (r Report) Value() (driver.Value, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (r *Report) Scan(value any) error {
	return scanJSON(value, r, "Report")
}

// AnalysisResults is the opaque result envelope persisted per pass. The
// analysis_mode_used field is the authoritative record of the mode resolved at
// analysis time; the embedded findings/report mirror the top-level columns.
type AnalysisResults struct {
	AnalysisModeUsed string    `json:"analysis_mode_used"`
	Pass             string    `json:"pass"` // "quick" or "deep"
	SampleFPS        int       `json:"sample_fps"`
	FrameCount       int       `json:"frame_count"`
	PoseReliability  float64   `json:"pose_reliability"`
	GeneratedAt      time.Time `json:"generated_at"`

	Metrics map[string]float64 `json:"metrics,omitempty"`

	Findings *Findings `json:"findings,omitempty"`
	Report   *Report   `json:"report,omitempty"`

	// Frames carries the raw per-frame pose samples when the job requested
	// them. Envelopes over the offload threshold are mirrored to the blob
	// store.
	Frames json.RawMessage `json:"frames,omitempty"`
}

// Value implements driver.Valuer.
func (r AnalysisResults) Value() (driver.Value, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (r *AnalysisResults) Scan(value any) error {
	return scanJSON(value, r, "AnalysisResults")
}

func scanJSON(value any, dest any, what string) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %s", value, what)
	}
}
