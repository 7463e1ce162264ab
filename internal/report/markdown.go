package report

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/pixelproof/pixelproof/internal/consolidate"
	"github.com/pixelproof/pixelproof/internal/model"
)

// timestampFormat renders report timestamps for human readers.
const timestampFormat = "2006-01-02 15:04:05 MST"

// MarkdownWriter outputs reports in Markdown format, for sharing and for
// attaching to case documentation. Tables, GitHub-flavored alerts, and
// the mermaid suspicion chart come from the nao1215/markdown builder.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ConsolidatedReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeVerdict(md, report)
	w.writeIntegrity(md, report)
	w.writeAnalysis(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the condensed summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.ScanSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("PixelProof Scan Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + summary.SourcePath + "`"},
			{"Format", summary.Format},
			{"Analyzed", summary.GeneratedAt.Format(timestampFormat)},
			{"Run ID", summary.RunID},
			{"SHA-256", "`" + summary.SHA256 + "`"},
			{"Overall Score", fmt.Sprintf("%.2f / 100", summary.OverallScore)},
			{"Assessment", "**" + summary.Assessment + "**"},
		},
	})
	md.PlainText("")

	if len(summary.Lines) > 0 {
		lines := slices.Clone(summary.Lines)
		slices.SortFunc(lines, func(a, b model.SummaryLine) int {
			return strings.Compare(a.Analyzer, b.Analyzer)
		})

		rows := make([][]string, 0, len(lines))
		for _, line := range lines {
			rows = append(rows, []string{
				line.Analyzer,
				string(line.Status),
				line.Suspicion.String(),
				truncateString(line.Note, 60),
			})
		}
		md.H2("Analysis")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Analyzer", "Status", "Suspicion", "Note"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with acquisition information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ConsolidatedReport) {
	md.H1("PixelProof Forensic Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + report.ImageInfo.Path + "`"},
			{"Format", report.ImageInfo.Format},
			{"Dimensions", fmt.Sprintf("%dx%d", report.ImageInfo.Width, report.ImageInfo.Height)},
			{"Size", fmt.Sprintf("%d bytes", report.ImageInfo.SizeBytes)},
			{"Analyzed", report.ReportMetadata.GeneratedAt.Format(timestampFormat)},
			{"Run ID", report.ReportMetadata.RunID},
			{"Tool Version", report.ReportMetadata.Version},
		},
	})
	md.PlainText("")
}

// writeVerdict writes the consolidated verdict with its alert and the
// suspicion distribution chart.
func (w *MarkdownWriter) writeVerdict(md *markdown.Markdown, report *model.ConsolidatedReport) {
	md.H2("Verdict")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Overall Score", "Assessment"},
		Rows: [][]string{
			{fmt.Sprintf("%.2f / 100", report.OverallScore), "**" + report.Assessment + "**"},
		},
	})
	md.PlainText("")

	if len(report.Analysis) > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of the suspicion levels the
// analyzers reported.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.ConsolidatedReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Suspicion Level Distribution"),
		piechart.WithShowData(true),
	)

	levels := []struct {
		level model.Suspicion
		label string
	}{
		{model.SuspicionVeryHigh, "Very High"},
		{model.SuspicionHigh, "High"},
		{model.SuspicionModerate, "Moderate"},
		{model.SuspicionLow, "Low"},
		{model.SuspicionNone, "None"},
	}
	for _, l := range levels {
		if n := report.CountBySuspicion(l.level); n > 0 {
			chart.LabelAndIntValue(l.label, uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes the GitHub alert matching the assessment.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ConsolidatedReport) {
	elevated := report.CountBySuspicion(model.SuspicionHigh) +
		report.CountBySuspicion(model.SuspicionVeryHigh)

	switch report.Assessment {
	case consolidate.AssessmentManipulationLikely:
		md.Cautionf(
			"Manipulation likely: overall score %.1f. %d analyzer(s) reported elevated suspicion.",
			report.OverallScore, elevated,
		)
	case consolidate.AssessmentSuspicious:
		md.Warningf(
			"Suspicious: overall score %.1f crosses the review threshold.",
			report.OverallScore,
		)
	case consolidate.AssessmentMinorAnomalies:
		md.Importantf(
			"Minor anomalies: overall score %.1f. Review the individual findings below.",
			report.OverallScore,
		)
	default:
		md.Tip(fmt.Sprintf(
			"No significant manipulation signals. Overall score %.1f.",
			report.OverallScore,
		))
	}

	incomplete := report.CountByStatus(model.StatusFailed) + report.CountByStatus(model.StatusTimeout)
	if incomplete > 0 {
		md.Note(fmt.Sprintf(
			"%d analyzer(s) did not complete; their checks are missing from this verdict.",
			incomplete,
		))
	}
	md.PlainText("")
}

// writeIntegrity writes the hash and chain-of-custody section.
func (w *MarkdownWriter) writeIntegrity(md *markdown.Markdown, report *model.ConsolidatedReport) {
	md.H2("Integrity and Custody")
	md.PlainText("")

	tlsh := "-"
	if report.Integrity.TLSH != "" {
		tlsh = "`" + report.Integrity.TLSH + "`"
	}

	rows := [][]string{
		{"SHA-256", "`" + report.Integrity.SHA256 + "`"},
		{"SHA-1", "`" + report.Integrity.SHA1 + "`"},
		{"MD5", "`" + report.Integrity.MD5 + "`"},
		{"TLSH", tlsh},
		{"Original Path", "`" + report.Custody.OriginalPath + "`"},
		{"Working Copy", "`" + report.Custody.CopyPath + "`"},
		{"Acquired At", report.Custody.AcquiredAt.Format(timestampFormat)},
		{"Timestamps Preserved", strconv.FormatBool(report.Custody.PreservedMetadata)},
	}
	if host := report.Custody.Host; host != nil {
		rows = append(rows, []string{
			"Acquired On",
			fmt.Sprintf("%s (%s/%s)", host.Hostname, host.OS, host.KernelArch),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeAnalysis writes the per-analyzer outcome table and one metrics
// section per analyzer.
func (w *MarkdownWriter) writeAnalysis(md *markdown.Markdown, report *model.ConsolidatedReport) {
	md.H2("Analysis")
	md.PlainText("")

	if len(report.Analysis) == 0 {
		md.PlainText("No analyzers ran.")
		md.PlainText("")
		return
	}

	names := report.AnalyzerNames()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		result := report.Analysis[name]
		rows = append(rows, []string{
			name,
			string(result.Status),
			result.Suspicion.String(),
			fmt.Sprintf("%.3f", consolidate.Weight(name)),
			fmt.Sprintf("%d ms", result.DurationMS),
			truncateString(headline(result), 60),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Analyzer", "Status", "Suspicion", "Weight", "Duration", "Headline"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, name := range names {
		w.writeAnalyzerSection(md, name, report.Analysis[name])
	}
}

// writeAnalyzerSection writes one analyzer's scalar metrics. Nested
// finding structures stay in the JSON report.
func (w *MarkdownWriter) writeAnalyzerSection(md *markdown.Markdown, name string, result *model.AnalyzerResult) {
	md.PlainText("### " + name)
	md.PlainText("")

	if !result.Succeeded() {
		md.PlainTextf("Did not complete (%s): %s", result.Status, result.ErrorMessage)
		md.PlainText("")
		return
	}

	rows := scalarFindingRows(result.Findings)
	if len(rows) == 0 {
		md.PlainText("No recorded metrics.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [PixelProof](https://github.com/pixelproof/pixelproof)*")
}

// headline returns the analyzer's one-line summary finding, or the error
// message for analyzers that did not complete.
func headline(result *model.AnalyzerResult) string {
	if !result.Succeeded() {
		return result.ErrorMessage
	}
	if note, ok := result.Findings["summary"].(string); ok {
		return note
	}
	return "-"
}

// scalarFindingRows renders the scalar findings sorted by key. The
// summary headline and nested structures are excluded.
func scalarFindingRows(findings map[string]any) [][]string {
	keys := make([]string, 0, len(findings))
	for key := range findings {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		if key == "summary" {
			continue
		}
		value, ok := scalarString(findings[key])
		if !ok {
			continue
		}
		rows = append(rows, []string{key, truncateString(value, 80)})
	}
	return rows
}

// scalarString formats single-value findings; composite values report
// false and are skipped.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(t), true
	case model.Suspicion:
		return t.String(), true
	default:
		return "", false
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
