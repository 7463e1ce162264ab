package report

import (
	"io"

	"github.com/pixelproof/pixelproof/internal/model"
)

// Writer defines the interface for report output. Implementations render
// consolidated reports in one format each; destinations are plain
// io.Writers, so the same implementation serves files, stdout, and
// network connections.
type Writer interface {
	// Write outputs the full report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ConsolidatedReport) (int, error)

	// WriteSummary outputs only the condensed summary view. This is
	// useful for terminal verdicts and archive listings without the
	// full finding payloads.
	WriteSummary(summary *model.ScanSummary) (int, error)
}

// MultiWriter writes to multiple Writers in sequence, for emitting a
// terminal verdict and one or more report files in one pass. It is a
// separate type rather than io.MultiWriter because Writers consume
// reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers. Returns the total
// bytes written across all writers and stops on the first error.
func (m *MultiWriter) Write(report *model.ConsolidatedReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.ScanSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides the shared output destination for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Ensure all writers implement Writer.
var (
	_ Writer = (*MultiWriter)(nil)
	_ Writer = (*SimpleWriter)(nil)
	_ Writer = (*JSONWriter)(nil)
	_ Writer = (*MarkdownWriter)(nil)
)
