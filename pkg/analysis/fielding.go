package analysis

import (
	"fmt"

	"github.com/pitchsight/pitchsight/pkg/models"
)

func generateFieldingFindings(m *Metrics, gc GeneratorContext) *models.Findings {
	findings := []models.Finding{
		{
			Code:       CodeSlowApproach,
			Title:      "Attack speed to the ball",
			Severity:   severityBelow(m.ApproachSpeedScore, 0.6, 0.4),
			Message:    fmt.Sprintf("Approach speed score %.2f (1.0 is a full-commitment attack).", m.ApproachSpeedScore),
			WhyMatters: "Every tenth of a second walking to the ball is a run conceded or a run-out chance gone; attacking the ball also sets the feet for the throw.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"approach_speed_score": round2(m.ApproachSpeedScore),
			}),
			SuggestedDrills: []string{
				"Attack-and-gather off a rolled feed, 10 reps",
				"Race-the-ball drills from a standing start",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeThrowAlignment,
			Title:      "Throwing alignment",
			Severity:   severityAbove(m.ThrowAlignmentDeg, 6, 12),
			Message:    fmt.Sprintf("Shoulder line off target by %.1f° at release.", m.ThrowAlignmentDeg),
			WhyMatters: "Throws miss the stumps sideways before they miss long; squaring the shoulders to the target fixes most wayward arms without touching arm mechanics.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"throw_alignment_deg": round2(m.ThrowAlignmentDeg),
			}),
			SuggestedDrills: []string{
				"Step-and-throw at a single stump from 20 m",
				"Crow-hop alignment drills along a marked line",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodePickupTechnique,
			Title:      "Pick-up cleanliness",
			Severity:   severityBelow(m.PickupCleanliness, 0.7, 0.5),
			Message:    fmt.Sprintf("Clean-pickup score %.2f across attempts.", m.PickupCleanliness),
			WhyMatters: "A fumbled pick-up turns a tight single into an easy two; clean hands under pressure come from grooved low-body positions, not luck.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"pickup_cleanliness": round2(m.PickupCleanliness),
			}),
			SuggestedDrills: []string{
				"One-hand pick-ups on the move, both hands",
				"Short-hop gathers off uneven bounce",
			},
			Phase: gc.Pass,
		},
		{
			Code:       CodeAnticipationDelay,
			Title:      "First-step anticipation",
			Severity:   severityAbove(m.ReactionDelayMs, 220, 300),
			Message:    fmt.Sprintf("First movement ~%.0f ms after bat contact.", m.ReactionDelayMs),
			WhyMatters: "The best fielders move on the batter's shape, not the ball; a slow first step shrinks the circle a fielder can cover by metres.",
			Evidence: withEvidence(baseEvidence(m), map[string]any{
				"reaction_delay_ms": round2(m.ReactionDelayMs),
			}),
			SuggestedDrills: []string{
				"Reaction-ball drops from a partner",
				"Read-the-shape drills watching a batter shadow-play",
			},
			Phase: gc.Pass,
		},
	}

	return finalize(findings, m, gc)
}
