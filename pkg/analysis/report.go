package analysis

import (
	"fmt"
	"strings"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// modeLabels maps modes to their display names used in report titles.
var modeLabels = map[Mode]string{
	ModeBatting:       "Batting",
	ModeBowling:       "Bowling",
	ModeWicketkeeping: "Wicketkeeping",
	ModeFielding:      "Fielding",
}

// ModeLabel returns the display name for a mode, falling back to a title-cased
// rendering of the raw value for forward compatibility.
func ModeLabel(mode Mode) string {
	if label, ok := modeLabels[mode]; ok {
		return label
	}
	if mode == "" {
		return modeLabels[DefaultMode]
	}
	return strings.ToUpper(string(mode[0])) + string(mode[1:])
}

// BuildReport assembles the coach-facing prose for one pass from its findings.
func BuildReport(mode Mode, pass string, findings *models.Findings) *models.Report {
	if findings == nil {
		return nil
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "%s analysis (%s pass) reviewed %d areas; overall attention level: %s.",
		ModeLabel(mode), pass, len(findings.Findings), findings.OverallLevel)

	var focus strings.Builder
	var drills []string
	seen := map[string]bool{}
	for _, f := range findings.Findings {
		fmt.Fprintf(&focus, "%s [%s]: %s %s\n", f.Title, f.Severity, f.Message, f.WhyMatters)
		for _, d := range f.SuggestedDrills {
			if !seen[d] {
				seen[d] = true
				drills = append(drills, d)
			}
		}
	}

	sections := []models.ReportSection{
		{Title: "Summary", Body: summary.String()},
		{Title: "Focus Areas", Body: strings.TrimRight(focus.String(), "\n")},
		{Title: "Suggested Drills", Body: "- " + strings.Join(drills, "\n- ")},
	}

	var text strings.Builder
	for i, s := range sections {
		if i > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(s.Title)
		text.WriteString("\n")
		text.WriteString(s.Body)
	}

	return &models.Report{
		Text:     text.String(),
		Sections: sections,
	}
}
