package analysis

import (
	"fmt"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// PassQuick and PassDeep label the two analysis tiers.
const (
	PassQuick = "quick"
	PassDeep  = "deep"
)

// GeneratorContext carries the per-job inputs a finding generator needs
// besides the metrics.
type GeneratorContext struct {
	Mode Mode
	Pass string // PassQuick or PassDeep
}

// Generator produces a findings set for one mode from computed metrics.
type Generator func(m *Metrics, gc GeneratorContext) *models.Findings

// Dispatcher routes metrics to the generator for the resolved mode. The
// binding table is built once at construction; modes are a closed enum, never
// dispatched by arbitrary string.
type Dispatcher struct {
	generators map[Mode]Generator
}

// NewDispatcher builds the mode→generator table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		generators: map[Mode]Generator{
			ModeBatting:       generateBattingFindings,
			ModeBowling:       generateBowlingFindings,
			ModeWicketkeeping: generateWicketkeepingFindings,
			ModeFielding:      generateFieldingFindings,
		},
	}
}

// Generate dispatches to the generator bound to mode.
func (d *Dispatcher) Generate(mode Mode, m *Metrics, gc GeneratorContext) (*models.Findings, error) {
	gen, ok := d.generators[mode]
	if !ok {
		return nil, fmt.Errorf("no findings generator bound for mode %q", mode)
	}
	gc.Mode = mode
	return gen(m, gc), nil
}

// CodesForMode returns the stable finding-code set a mode may emit. The
// export gate and tests use this to verify mode isolation.
func CodesForMode(mode Mode) []string {
	switch mode {
	case ModeBatting:
		return []string{
			CodeHeadMovement, CodeBackliftAngle, CodeBalanceDrift,
			CodeTriggerTiming, CodeLowPoseConfidence,
		}
	case ModeBowling:
		return []string{
			CodeInsufficientBallTracking, CodeInconsistentReleasePoint,
			CodeSwingAnalysis, CodeFrontArmCollapse, CodeActionAlignment,
			CodeLowPoseConfidence,
		}
	case ModeWicketkeeping:
		return []string{
			CodeLateGloveRise, CodeStanceWidth, CodeHeadPositionKeeping,
			CodeFootworkRecovery, CodeLowPoseConfidence,
		}
	case ModeFielding:
		return []string{
			CodeSlowApproach, CodeThrowAlignment, CodePickupTechnique,
			CodeAnticipationDelay, CodeLowPoseConfidence,
		}
	}
	return nil
}

// Stable finding codes. Codes are uppercase identifiers keyed by downstream
// renderers and drills content; never rename an existing code.
const (
	// Shared
	CodeLowPoseConfidence = "LOW_POSE_CONFIDENCE"

	// Batting
	CodeHeadMovement  = "HEAD_MOVEMENT"
	CodeBackliftAngle = "BACKLIFT_ANGLE"
	CodeBalanceDrift  = "BALANCE_DRIFT"
	CodeTriggerTiming = "TRIGGER_TIMING"

	// Bowling
	CodeInsufficientBallTracking = "INSUFFICIENT_BALL_TRACKING"
	CodeInconsistentReleasePoint = "INCONSISTENT_RELEASE_POINT"
	CodeSwingAnalysis            = "SWING_ANALYSIS"
	CodeFrontArmCollapse         = "FRONT_ARM_COLLAPSE"
	CodeActionAlignment          = "ACTION_ALIGNMENT"

	// Wicketkeeping
	CodeLateGloveRise       = "LATE_GLOVE_RISE"
	CodeStanceWidth         = "STANCE_WIDTH"
	CodeHeadPositionKeeping = "HEAD_POSITION_KEEPING"
	CodeFootworkRecovery    = "FOOTWORK_RECOVERY"

	// Fielding
	CodeSlowApproach      = "SLOW_APPROACH"
	CodeThrowAlignment    = "THROW_ALIGNMENT"
	CodePickupTechnique   = "PICKUP_TECHNIQUE"
	CodeAnticipationDelay = "ANTICIPATION_DELAY"
)

// lowConfidenceThreshold triggers the shared LOW_POSE_CONFIDENCE finding.
const lowConfidenceThreshold = 0.5

// severityAbove grades a value where higher is worse.
func severityAbove(value, mediumAt, highAt float64) models.Severity {
	switch {
	case value >= highAt:
		return models.SeverityHigh
	case value >= mediumAt:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// severityBelow grades a value where lower is worse.
func severityBelow(value, mediumAt, highAt float64) models.Severity {
	switch {
	case value <= highAt:
		return models.SeverityHigh
	case value <= mediumAt:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// baseEvidence returns the evidence fields every finding carries.
func baseEvidence(m *Metrics) map[string]any {
	return map[string]any{
		"worst_frames":     m.WorstFrames,
		"worst_timestamps": m.WorstTimestamps,
		"avg_confidence":   round2(m.AvgConfidence),
		"frame_count":      m.FrameCount,
	}
}

func withEvidence(base map[string]any, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// finalize computes the overall level and appends the shared low-confidence
// finding when pose detection was unreliable.
func finalize(findings []models.Finding, m *Metrics, gc GeneratorContext) *models.Findings {
	if m.AvgConfidence < lowConfidenceThreshold {
		findings = append(findings, models.Finding{
			Code:       CodeLowPoseConfidence,
			Title:      "Unreliable pose detection",
			Severity:   models.SeverityMedium,
			Message:    fmt.Sprintf("Average pose-detection confidence was %.0f%%; measurements may be noisy.", m.AvgConfidence*100),
			WhyMatters: "Coaching calls made on noisy pose data can point at the wrong mechanics; re-record with better lighting and framing before acting on borderline findings.",
			Evidence:   baseEvidence(m),
			SuggestedDrills: []string{
				"Re-film from a stable side-on camera position",
				"Record in daylight or well-lit nets",
			},
			Phase: gc.Pass,
		})
	}

	overall := models.SeverityLow
	for _, f := range findings {
		if f.Severity.AtLeast(overall) {
			overall = f.Severity
		}
	}

	return &models.Findings{Findings: findings, OverallLevel: overall}
}
