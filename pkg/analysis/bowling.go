package analysis

import (
	"fmt"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// minBallTrackingRatio is the fraction of frames that must carry a detected
// ball before swing and release findings are trustworthy.
const minBallTrackingRatio = 0.5

// generateBowlingFindings additionally consumes ball-tracking signals when
// present: with enough tracked frames it grades swing trajectory, otherwise it
// reports INSUFFICIENT_BALL_TRACKING instead.
func generateBowlingFindings(m *Metrics, gc GeneratorContext) *models.Findings {
	findings := []models.Finding{
		{
			Code:       CodeInconsistentReleasePoint,
			Title:      "Release point consistency",
			Severity:   severityAbove(m.ReleasePointStdDeg, 4, 8),
			Message:    fmt.Sprintf("Release arm angle varies by ±%.1f° across deliveries.", m.ReleasePointStdDeg),
			WhyMatters: "A wandering release point is the single biggest driver of both-sides-of-the-wicket inaccuracy; grooving one slot multiplies every other skill.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"release_point_std_deg": round2(m.ReleasePointStdDeg),
			}),
			SuggestedDrills: []string{
				"Target bowling at a single off-stump cone, 24 balls",
				"One-step release drills in front of a mirror",
				"Film every sixth ball and compare arm slot",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeFrontArmCollapse,
			Title:      "Front arm drive",
			Severity:   severityAbove(m.FrontArmCollapseDeg, 25, 40),
			Message:    fmt.Sprintf("Front arm collapsing %.1f° early through the crease.", m.FrontArmCollapseDeg),
			WhyMatters: "The front arm pulls the trunk through the action; when it collapses early, pace leaks and the back arm drags deliveries down leg.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"front_arm_collapse_deg": round2(m.FrontArmCollapseDeg),
			}),
			SuggestedDrills: []string{
				"Walk-through actions driving the front elbow at the target",
				"Resistance-band front-arm pulls",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeActionAlignment,
			Title:      "Action alignment",
			Severity:   severityAbove(m.ActionAlignmentDeg, 5, 10),
			Message:    fmt.Sprintf("Hip-shoulder separation varies %.1f° between deliveries.", m.ActionAlignmentDeg),
			WhyMatters: "Mixed alignment loads the spine asymmetrically ball after ball; it is the classic precursor to lumbar stress injuries in young quicks.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"action_alignment_deg": round2(m.ActionAlignmentDeg),
			}),
			SuggestedDrills: []string{
				"Line drills over a marked run-up",
				"Back-foot landing checks against a crease line",
			},
			Phase: gc.Pass,
		},
	}

	if m.BallDetectionRatio < minBallTrackingRatio {
		findings = append(findings, models.Finding{
			Code:       CodeInsufficientBallTracking,
			Title:      "Insufficient ball tracking",
			Severity:   models.SeverityMedium,
			Message:    fmt.Sprintf("The ball was detected in only %.0f%% of frames; swing analysis is unavailable.", m.BallDetectionRatio*100),
			WhyMatters: "Without a reliable ball track, swing and seam movement cannot be separated from release variation, so those calls are withheld rather than guessed.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"ball_detection_ratio": round2(m.BallDetectionRatio),
			}),
			SuggestedDrills: []string{
				"Re-film against a plain sightscreen background",
				"Use a brighter or newer ball for filming sessions",
			},
			Phase: gc.Pass,
		})
	} else {
		findings = append(findings, models.Finding{
			Code:       CodeSwingAnalysis,
			Title:      "Swing trajectory",
			Severity:   severityAbove(m.SwingDeviationDeg, 6, 12),
			Message:    fmt.Sprintf("Tracked deliveries deviate %.1f° laterally after release.", m.SwingDeviationDeg),
			WhyMatters: "Knowing the actual movement off the straight tells the bowler which wrist position is paying off and which deliveries are drifting unintentionally.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"swing_deviation_deg":  round2(m.SwingDeviationDeg),
				"ball_detection_ratio": round2(m.BallDetectionRatio),
			}),
			SuggestedDrills: []string{
				"Wrist-position checks with a taped ball",
				"Half-run-up swing sessions aiming at fourth stump",
			},
			Phase: gc.Pass,
		})
	}

	return finalize(findings, m, gc)
}
