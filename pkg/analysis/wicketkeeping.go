package analysis

import (
	"fmt"

	"github.com/pitchsight/pitchsight/pkg/models"
)

func generateWicketkeepingFindings(m *Metrics, gc GeneratorContext) *models.Findings {
	findings := []models.Finding{
		{
			Code:       CodeLateGloveRise,
			Title:      "Glove rise timing",
			Severity:   severityAbove(m.GloveRiseDelayMs, 120, 180),
			Message:    fmt.Sprintf("Gloves rising ~%.0f ms after the ball pitches.", m.GloveRiseDelayMs),
			WhyMatters: "Late hands force a snatch at the ball instead of giving with it; edges that should stick go down.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"glove_rise_delay_ms": round2(m.GloveRiseDelayMs),
			}),
			SuggestedDrills: []string{
				"Wall rebound catching with soft hands",
				"Rhythm takes off a keeping tee, 20 reps each side",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeStanceWidth,
			Title:      "Stance width",
			Severity:   severityAbove(m.StanceWidthRatio-1.0, 0.15, 0.3),
			Message:    fmt.Sprintf("Stance width %.2fx shoulder width in the set position.", m.StanceWidthRatio),
			WhyMatters: "An over-wide base locks the hips; the first lateral step down leg side arrives late on anything off the pads.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"stance_width_ratio": round2(m.StanceWidthRatio),
			}),
			SuggestedDrills: []string{
				"Lateral shuffle drills between cones",
				"Set-position holds checking width against a marked line",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeHeadPositionKeeping,
			Title:      "Head position through the take",
			Severity:   severityAbove(m.HeadLevelVarDeg, 4, 8),
			Message:    fmt.Sprintf("Head level varies %.1f° between deliveries.", m.HeadLevelVarDeg),
			WhyMatters: "Keepers sight the ball off the pitch from a level head; bobbing between takes is why low takes get grassed standing back.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"head_level_var_deg": round2(m.HeadLevelVarDeg),
			}),
			SuggestedDrills: []string{
				"Low takes from kneeling position",
				"Eyes-level walking takes with a partner feeding",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeFootworkRecovery,
			Title:      "Recovery footwork",
			Severity:   severityAbove(m.RecoveryStepMs, 320, 420),
			Message:    fmt.Sprintf("~%.0f ms to recover the base after moving laterally.", m.RecoveryStepMs),
			WhyMatters: "Slow recovery leaves the keeper stranded for the second chance: the deflection, the overthrow, the run-out opportunity.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"recovery_step_ms": round2(m.RecoveryStepMs),
			}),
			SuggestedDrills: []string{
				"Ladder footwork into a set position",
				"Random-direction reaction takes",
			},
			Phase: gc.Pass,
		},
	}

	return finalize(findings, m, gc)
}
