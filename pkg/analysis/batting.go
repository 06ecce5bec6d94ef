package analysis

import (
	"fmt"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// generateBattingFindings covers head stability, backlift shape, balance, and
// trigger timing. It always emits the four core observations so the coach
// report has a complete picture even when everything grades low.
func generateBattingFindings(m *Metrics, gc GeneratorContext) *models.Findings {
	findings := []models.Finding{
		{
			Code:       CodeHeadMovement,
			Title:      "Head movement through the shot",
			Severity:   severityAbove(m.HeadDriftDeg, 8, 15),
			Message:    fmt.Sprintf("Lateral head drift of %.1f° measured between setup and contact.", m.HeadDriftDeg),
			WhyMatters: "A still head keeps the eyes level and the weight over the ball; drift late in the downswing costs timing against pace.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"head_drift_deg": round2(m.HeadDriftDeg),
			}),
			SuggestedDrills: []string{
				"Shadow batting with a book balanced on the cap peak",
				"Underarm feeds focusing on watching the ball onto the bat",
				"Mirror work holding the finish position for three seconds",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeBackliftAngle,
			Title:      "Backlift angle",
			Severity:   severityAbove(m.BackliftAngleDeg-30, 12, 25),
			Message:    fmt.Sprintf("Average backlift of %.1f° relative to the stumps.", m.BackliftAngleDeg),
			WhyMatters: "A backlift far outside first slip lengthens the path back to a straight bat and opens the face on contact.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"backlift_angle_deg": round2(m.BackliftAngleDeg),
			}),
			SuggestedDrills: []string{
				"Top-hand-only drives off a tee",
				"Stump-line wall drill keeping the hands inside the line",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeBalanceDrift,
			Title:      "Balance at contact",
			Severity:   severityBelow(m.BalanceScore, 0.6, 0.35),
			Message:    fmt.Sprintf("Balance score %.2f (1.0 is perfectly stable through contact).", m.BalanceScore),
			WhyMatters: "Falling to the off side pulls the hands away from the body and turns straight balls into leading edges.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"balance_score": round2(m.BalanceScore),
			}),
			SuggestedDrills: []string{
				"Single-leg landing holds after the stride",
				"Front-foot drives finishing tall and still",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeTriggerTiming,
			Title:      "Trigger movement timing",
			Severity:   severityAbove(m.TriggerDelayMs, 200, 300),
			Message:    fmt.Sprintf("Trigger movement completing ~%.0f ms before release.", m.TriggerDelayMs),
			WhyMatters: "A late trigger leaves the batter moving at release, so length judgement suffers first against the shorter ball.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"trigger_delay_ms": round2(m.TriggerDelayMs),
			}),
			SuggestedDrills: []string{
				"Rhythm work off a bowling machine at fixed length",
				"Call 'set' aloud as the bowler loads up",
			},
			Phase: gc.Pass,
		},
	}

	return finalize(findings, m, gc)
}
