package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pixelproof/pixelproof/internal/consolidate"
	"github.com/pixelproof/pixelproof/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// Plain ASCII formatting keeps the output usable in every terminal and
// safe to pipe into files or other tools.
type SimpleWriter struct {
	baseWriter

	// verbose adds the published weight share behind each analyzer line.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in human-readable format by condensing
// it into its summary view first.
func (w *SimpleWriter) Write(report *model.ConsolidatedReport) (int, error) {
	return w.WriteSummary(model.NewScanSummary(report))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.ScanSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeVerdict(&sb, summary)
	w.writeAnalysis(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with acquisition information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      PIXELPROOF FORENSIC REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Source:    %s\n", summary.SourcePath))
	sb.WriteString(fmt.Sprintf("Format:    %s\n", summary.Format))
	sb.WriteString(fmt.Sprintf("Analyzed:  %s\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Run ID:    %s\n", summary.RunID))
	sb.WriteString(fmt.Sprintf("SHA-256:   %s\n", summary.SHA256))
	sb.WriteString("\n")
}

// writeVerdict writes the consolidated verdict section.
func (w *SimpleWriter) writeVerdict(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("VERDICT\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Overall score: %.2f / 100\n", summary.OverallScore))
	sb.WriteString(fmt.Sprintf("  Assessment:    %s\n", strings.ToUpper(summary.Assessment)))
	sb.WriteString("\n")
}

// writeAnalysis writes one outcome line per analyzer plus the totals.
func (w *SimpleWriter) writeAnalysis(sb *strings.Builder, summary *model.ScanSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ANALYSIS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(summary.Lines) == 0 {
		sb.WriteString("  No analyzers ran\n\n")
		return
	}

	lines := slices.Clone(summary.Lines)
	slices.SortFunc(lines, func(a, b model.SummaryLine) int {
		return strings.Compare(a.Analyzer, b.Analyzer)
	})

	for _, line := range lines {
		w.writeAnalyzerLine(sb, line)
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("  %d analyzers: %d succeeded, %d failed, %d timed out\n",
		summary.TotalAnalyzers(), summary.SuccessCount, summary.FailedCount, summary.TimeoutCount))
	sb.WriteString("\n")
}

// writeAnalyzerLine writes one analyzer's outcome.
func (w *SimpleWriter) writeAnalyzerLine(sb *strings.Builder, line model.SummaryLine) {
	indicator := suspicionIndicator(line.Suspicion)
	level := line.Suspicion.String()
	if line.Status != model.StatusSuccess {
		indicator = "x"
		level = strings.ToUpper(string(line.Status))
	}

	sb.WriteString(fmt.Sprintf("  [%-3s] %-16s %-12s %s\n", indicator, line.Analyzer, level, line.Note))

	if w.verbose {
		sb.WriteString(fmt.Sprintf("        weight %.3f\n", consolidate.Weight(line.Analyzer)))
	}
}

// suspicionIndicator returns a visual indicator for the suspicion level.
func suspicionIndicator(suspicion model.Suspicion) string {
	switch suspicion {
	case model.SuspicionVeryHigh:
		return "!!!"
	case model.SuspicionHigh:
		return "!!"
	case model.SuspicionModerate:
		return "!"
	case model.SuspicionLow:
		return "-"
	case model.SuspicionNone:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by PixelProof\n")
	sb.WriteString("https://github.com/pixelproof/pixelproof\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
