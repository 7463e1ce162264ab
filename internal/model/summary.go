package model

import "time"

// ScanSummary is a condensed, human-readable view of a consolidated report.
// It carries the verdict and per-analyzer one-liners without the full
// finding payloads, for terminal output and for quick archive listings.
type ScanSummary struct {
	// RunID identifies the pipeline run.
	RunID string `json:"run_id"`

	// SourcePath is the original image path.
	SourcePath string `json:"source_path"`

	// Format is the detected image format.
	Format string `json:"format"`

	// GeneratedAt is when the underlying report was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// OverallScore is the consolidated suspicion score.
	OverallScore float64 `json:"overall_score"`

	// Assessment is the label derived from the score.
	Assessment string `json:"assessment"`

	// SHA256 is the content hash of the evidence.
	SHA256 string `json:"sha256"`

	// === Analyzer outcome counts ===

	// SuccessCount is the number of analyzers that completed.
	SuccessCount int `json:"success_count"`

	// FailedCount is the number of analyzers that faulted.
	FailedCount int `json:"failed_count"`

	// TimeoutCount is the number of analyzers that exceeded their deadline.
	TimeoutCount int `json:"timeout_count"`

	// Lines are per-analyzer one-line outcomes, sorted by analyzer name.
	Lines []SummaryLine `json:"lines,omitempty"`
}

// SummaryLine is one analyzer's outcome in a scan summary.
type SummaryLine struct {
	// Analyzer is the analyzer's registry name.
	Analyzer string `json:"analyzer"`

	// Status is the analyzer's terminal status.
	Status Status `json:"status"`

	// Suspicion is the reported level, none unless the status is success.
	Suspicion Suspicion `json:"suspicion"`

	// Note is a short outcome description: the headline finding for a
	// successful run, the error message otherwise.
	Note string `json:"note,omitempty"`
}

// NewScanSummary condenses a consolidated report into a summary.
func NewScanSummary(report *ConsolidatedReport) *ScanSummary {
	summary := &ScanSummary{
		RunID:        report.ReportMetadata.RunID,
		SourcePath:   report.ImageInfo.Path,
		Format:       report.ImageInfo.Format,
		GeneratedAt:  report.ReportMetadata.GeneratedAt,
		OverallScore: report.OverallScore,
		Assessment:   report.Assessment,
		SHA256:       report.Integrity.SHA256,
		SuccessCount: report.CountByStatus(StatusSuccess),
		FailedCount:  report.CountByStatus(StatusFailed),
		TimeoutCount: report.CountByStatus(StatusTimeout),
	}

	for _, name := range report.AnalyzerNames() {
		result := report.Analysis[name]
		line := SummaryLine{
			Analyzer:  name,
			Status:    result.Status,
			Suspicion: result.Suspicion,
		}
		if result.Succeeded() {
			line.Note = findingNote(result)
		} else {
			line.Note = result.ErrorMessage
		}
		summary.Lines = append(summary.Lines, line)
	}
	return summary
}

// findingNote extracts a short headline from an analyzer's findings.
func findingNote(result *AnalyzerResult) string {
	if note, ok := result.Findings["summary"].(string); ok {
		return note
	}
	return ""
}

// TotalAnalyzers returns how many analyzers ran.
func (s *ScanSummary) TotalAnalyzers() int {
	return s.SuccessCount + s.FailedCount + s.TimeoutCount
}
