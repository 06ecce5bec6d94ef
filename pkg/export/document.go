package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pitchsight/pitchsight/pkg/analysis"
	"github.com/pitchsight/pitchsight/pkg/models"
)

// focusBulletCount is the fixed length of the Focus This Week list.
const focusBulletCount = 3

// Bounds for the coach summary lists: top priorities lead with up to three
// high-severity findings and never fewer than two when the findings allow it;
// secondary focus carries up to two of the remaining medium-or-worse ones.
const (
	minTopPriorities  = 2
	maxTopPriorities  = 3
	maxSecondaryFocus = 2
)

// fallbackFocus pads the focus list when the findings carry fewer than three
// distinct drills.
var fallbackFocus = []string{
	"Repeat this week's baseline drills with full attention on setup",
	"Record one more session from the same camera angle for comparison",
	"Review the focus areas above before the next net session",
}

// Document is the consolidated, render-ready report model. Building it is
// separate from rendering so tests can assert on content without parsing PDF
// output.
type Document struct {
	Title   string
	Mode    string
	Session string
	Overall models.Severity
	Summary string

	// TopPriorities carries the findings the coach should act on first;
	// SecondaryFocus the remaining ones still worth attention. Both draw from
	// Findings, which holds the full consolidated set worst first.
	TopPriorities  []models.Finding
	SecondaryFocus []models.Finding

	Findings []models.Finding
	Focus    []string

	Appendix Appendix

	// Partial marks a document built from quick-pass artifacts only.
	Partial bool
}

// Appendix is the clip-level evidence trail behind the findings: how reliable
// pose detection was and which parts of the clip are worth re-watching.
type Appendix struct {
	PoseReliability float64
	FrameCount      int
	SampleFPS       int
	WorstFrames     []int
	WorstTimestamps []float64
}

// BuildDocument consolidates a terminal job's artifacts. Deep-pass artifacts
// win; quick-pass ones back a partial report for legacy rows that finished
// before the deep pass existed.
func BuildDocument(job *models.AnalysisJob, session *models.Session) (*Document, error) {
	findings := job.DeepFindings
	report := job.DeepReport
	results := job.DeepResults
	partial := false
	if findings == nil || len(findings.Findings) == 0 {
		findings = job.QuickFindings
		report = job.QuickReport
		results = job.QuickResults
		partial = true
	}
	if findings == nil || len(findings.Findings) == 0 {
		return nil, &models.ArtifactMissingError{Pass: "deep", Missing: []string{"findings"}}
	}

	mode := analysis.ModeLabel(analysis.Mode(job.ResolvedMode()))

	summary := ""
	if report != nil {
		summary = firstSection(report, "Summary")
	}
	if summary == "" {
		summary = fmt.Sprintf("%s analysis reviewed %d areas; overall attention level: %s.",
			mode, len(findings.Findings), findings.OverallLevel)
	}

	sorted := make([]models.Finding, len(findings.Findings))
	copy(sorted, findings.Findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return severityRank(sorted[i].Severity) > severityRank(sorted[j].Severity)
	})

	top := topPriorities(sorted)

	title := session.Title
	if title == "" {
		title = session.ID
	}

	return &Document{
		Title:          fmt.Sprintf("%s Analysis Report", mode),
		Mode:           strings.ToLower(mode),
		Session:        title,
		Overall:        findings.OverallLevel,
		Summary:        summary,
		TopPriorities:  top,
		SecondaryFocus: secondaryFocus(sorted[len(top):]),
		Findings:       sorted,
		Focus:          focusBullets(sorted),
		Appendix:       buildAppendix(sorted, results),
		Partial:        partial,
	}, nil
}

// topPriorities returns the sorted prefix the coach summary leads with: every
// high-severity finding up to the cap, extended with the next-worst entries so
// the list reaches two whenever the findings allow it.
func topPriorities(sorted []models.Finding) []models.Finding {
	n := 0
	for n < len(sorted) && n < maxTopPriorities && sorted[n].Severity == models.SeverityHigh {
		n++
	}
	for n < minTopPriorities && n < len(sorted) {
		n++
	}
	return sorted[:n]
}

// secondaryFocus picks up to two of the remaining findings that still grade
// medium or worse. Low-severity leftovers stay in the full findings section
// only.
func secondaryFocus(rest []models.Finding) []models.Finding {
	var out []models.Finding
	for _, f := range rest {
		if len(out) == maxSecondaryFocus {
			break
		}
		if f.Severity.AtLeast(models.SeverityMedium) {
			out = append(out, f)
		}
	}
	return out
}

// focusBullets picks exactly three drills, worst findings first, padding from
// the fallback list when the findings are thin.
func focusBullets(sorted []models.Finding) []string {
	var bullets []string
	seen := map[string]bool{}
	for _, f := range sorted {
		for _, d := range f.SuggestedDrills {
			if len(bullets) == focusBulletCount {
				return bullets
			}
			if !seen[d] {
				seen[d] = true
				bullets = append(bullets, d)
			}
		}
	}
	for _, d := range fallbackFocus {
		if len(bullets) == focusBulletCount {
			break
		}
		if !seen[d] {
			seen[d] = true
			bullets = append(bullets, d)
		}
	}
	return bullets
}

// buildAppendix folds the per-finding evidence back into one clip-level
// summary. The results envelope is authoritative for reliability and frame
// counts; findings evidence fills the gaps for rows whose envelope was
// offloaded or predates those fields.
func buildAppendix(findings []models.Finding, results *models.AnalysisResults) Appendix {
	var app Appendix
	if results != nil {
		app.PoseReliability = results.PoseReliability
		app.FrameCount = results.FrameCount
		app.SampleFPS = results.SampleFPS
	}

	frameSeen := map[int]bool{}
	tsSeen := map[float64]bool{}
	for _, f := range findings {
		if app.PoseReliability == 0 {
			if c, ok := evidenceFloat(f.Evidence["avg_confidence"]); ok {
				app.PoseReliability = c
			}
		}
		if app.FrameCount == 0 {
			if n, ok := evidenceFloat(f.Evidence["frame_count"]); ok {
				app.FrameCount = int(n)
			}
		}
		for _, idx := range evidenceInts(f.Evidence["worst_frames"]) {
			if !frameSeen[idx] {
				frameSeen[idx] = true
				app.WorstFrames = append(app.WorstFrames, idx)
			}
		}
		for _, ts := range evidenceFloats(f.Evidence["worst_timestamps"]) {
			if !tsSeen[ts] {
				tsSeen[ts] = true
				app.WorstTimestamps = append(app.WorstTimestamps, ts)
			}
		}
	}
	sort.Ints(app.WorstFrames)
	sort.Float64s(app.WorstTimestamps)
	return app
}

// evidencePairs returns a finding's scalar evidence entries as formatted
// "key: value" strings, sorted by key. Slice-valued entries feed the appendix
// instead; anything else is dropped rather than printed raw.
func evidencePairs(evidence map[string]any) []string {
	keys := make([]string, 0, len(evidence))
	for k, v := range evidence {
		if _, ok := formatEvidenceValue(v); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := formatEvidenceValue(evidence[k])
		pairs = append(pairs, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), v))
	}
	return pairs
}

func formatEvidenceValue(v any) (string, bool) {
	switch vv := v.(type) {
	case string:
		return vv, true
	case bool:
		return strconv.FormatBool(vv), true
	case int:
		return strconv.Itoa(vv), true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	}
	return "", false
}

// evidenceInts coerces a slice-valued evidence entry. Values freshly produced
// by the generators are typed; values read back from the JSON columns arrive
// as []any of float64.
func evidenceInts(v any) []int {
	switch vv := v.(type) {
	case []int:
		return vv
	case []any:
		out := make([]int, 0, len(vv))
		for _, e := range vv {
			if f, ok := e.(float64); ok {
				out = append(out, int(f))
			}
		}
		return out
	}
	return nil
}

func evidenceFloats(v any) []float64 {
	switch vv := v.(type) {
	case []float64:
		return vv
	case []any:
		out := make([]float64, 0, len(vv))
		for _, e := range vv {
			if f, ok := e.(float64); ok {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

func evidenceFloat(v any) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case int:
		return float64(vv), true
	}
	return 0, false
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityHigh:
		return 2
	case models.SeverityMedium:
		return 1
	}
	return 0
}

func firstSection(report *models.Report, title string) string {
	for _, s := range report.Sections {
		if s.Title == title {
			return s.Body
		}
	}
	return ""
}
