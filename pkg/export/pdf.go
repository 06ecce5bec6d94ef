package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/pitchsight/pitchsight/pkg/models"
)

// drillRenderCap bounds the drills printed per finding.
const drillRenderCap = 3

// Render lays the document out as an A4 PDF: a one-page coach summary (top
// priorities, secondary focus, the week's action list), the consolidated
// findings, then the evidence appendix. Compression is off so the content
// streams stay inspectable; reports are a few pages at most.
func Render(doc *Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetTitle(doc.Title, false)
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 10, tr(doc.Title), "", "L", false)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(90, 90, 90)
	subtitle := fmt.Sprintf("Session: %s    Overall attention level: %s", doc.Session, doc.Overall)
	if doc.Partial {
		subtitle += "    (quick-pass results only)"
	}
	pdf.MultiCell(0, 6, tr(subtitle), "", "L", false)
	pdf.Ln(4)
	pdf.SetTextColor(0, 0, 0)

	heading(pdf, "Summary")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5.5, tr(doc.Summary), "", "L", false)
	pdf.Ln(2)

	heading(pdf, "Top Priorities")
	for i, f := range doc.TopPriorities {
		renderPriority(pdf, tr, i, f)
	}
	pdf.Ln(2)

	if len(doc.SecondaryFocus) > 0 {
		heading(pdf, "Secondary Focus")
		for i, f := range doc.SecondaryFocus {
			renderPriority(pdf, tr, i, f)
		}
		pdf.Ln(2)
	}

	heading(pdf, "Focus This Week")
	pdf.SetFont("Helvetica", "", 11)
	for i, bullet := range doc.Focus {
		pdf.MultiCell(0, 5.5, tr(fmt.Sprintf("%d. %s", i+1, bullet)), "", "L", false)
	}
	pdf.Ln(2)

	heading(pdf, "Findings")
	for _, f := range doc.Findings {
		renderFinding(pdf, tr, f)
	}

	renderAppendix(pdf, tr, doc.Appendix)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, text, "", "L", false)
	pdf.Ln(1)
}

func badge(s models.Severity) string {
	return strings.ToUpper(string(s))
}

// renderPriority prints one numbered coach-summary line: title, severity
// badge, and the what-is-happening message underneath.
func renderPriority(pdf *gofpdf.Fpdf, tr func(string) string, i int, f models.Finding) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.MultiCell(0, 5.5, tr(fmt.Sprintf("%d. %s  [%s]", i+1, f.Title, badge(f.Severity))), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr("    "+f.Message), "", "L", false)
}

// renderFinding prints one consolidated-findings block, field by field: title
// with severity badge, the what/why lines, the formatted evidence pairs, and
// up to three drills.
func renderFinding(pdf *gofpdf.Fpdf, tr func(string) string, f models.Finding) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("%s  [%s]", f.Title, badge(f.Severity))), "", "L", false)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 5.5, tr(f.Message), "", "L", false)
	if f.WhyMatters != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, tr("Why it matters: "+f.WhyMatters), "", "L", false)
	}

	if pairs := evidencePairs(f.Evidence); len(pairs) > 0 {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 4.5, tr("Evidence: "+strings.Join(pairs, "; ")), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	drills := f.SuggestedDrills
	if len(drills) > drillRenderCap {
		drills = drills[:drillRenderCap]
	}
	if len(drills) > 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, "Drills:", "", "L", false)
		for _, d := range drills {
			pdf.MultiCell(0, 5, tr("  - "+d), "", "L", false)
		}
	}
	pdf.Ln(2)
}

// renderAppendix prints the clip-level evidence trail: pose-detection
// reliability, the lowest-confidence frames, and the timestamp windows worth
// re-watching.
func renderAppendix(pdf *gofpdf.Fpdf, tr func(string) string, a Appendix) {
	heading(pdf, "Evidence Appendix")
	pdf.SetFont("Helvetica", "", 10)

	reliability := fmt.Sprintf("Pose detection reliability: %.0f%% average keypoint confidence", a.PoseReliability*100)
	if a.FrameCount > 0 {
		reliability += fmt.Sprintf(" across %d sampled frames", a.FrameCount)
	}
	if a.SampleFPS > 0 {
		reliability += fmt.Sprintf(" at %d fps", a.SampleFPS)
	}
	pdf.MultiCell(0, 5, tr(reliability+"."), "", "L", false)

	if len(a.WorstFrames) > 0 {
		frames := make([]string, len(a.WorstFrames))
		for i, idx := range a.WorstFrames {
			frames[i] = fmt.Sprintf("#%d", idx)
		}
		pdf.MultiCell(0, 5, tr("Lowest-confidence frames: "+strings.Join(frames, ", ")), "", "L", false)
	}
	if len(a.WorstTimestamps) > 0 {
		windows := make([]string, len(a.WorstTimestamps))
		for i, ts := range a.WorstTimestamps {
			windows[i] = reviewWindow(ts)
		}
		pdf.MultiCell(0, 5, tr("Clip ranges to review: "+strings.Join(windows, ", ")), "", "L", false)
	}
}

// reviewWindow widens a point timestamp into a one-second window so the coach
// can scrub straight to it.
func reviewWindow(ts float64) string {
	start := ts - 0.5
	if start < 0 {
		start = 0
	}
	return fmt.Sprintf("%.1fs-%.1fs", start, ts+0.5)
}
