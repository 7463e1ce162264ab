package model

import (
	"slices"
	"time"
)

// ReportMetadata identifies one report: when it was generated, by which
// version of the tool, and under which run id.
type ReportMetadata struct {
	// GeneratedAt is when the report was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// Version is the pixelproof version that produced the report.
	Version string `json:"version"`

	// RunID uniquely identifies the pipeline run.
	RunID string `json:"run_id"`
}

// ImageInfo describes the analyzed image as decoded from the working copy.
type ImageInfo struct {
	// Path is the original source path the user supplied.
	Path string `json:"path"`

	// Format is the detected image format.
	Format string `json:"format"`

	// Width is the pixel width.
	Width int `json:"width"`

	// Height is the pixel height.
	Height int `json:"height"`

	// SizeBytes is the encoded file size.
	SizeBytes int64 `json:"size_bytes"`
}

// ConsolidatedReport is the canonical result of a full pipeline run, the
// only entity exposed past the pipeline boundary. The analysis mapping
// contains exactly one entry per analyzer that was enabled for the run,
// including analyzers that failed or timed out.
type ConsolidatedReport struct {
	// ReportMetadata identifies the report itself.
	ReportMetadata ReportMetadata `json:"report_metadata"`

	// ImageInfo describes the analyzed image.
	ImageInfo ImageInfo `json:"image_info"`

	// Integrity holds the content hashes of the source, verified to match
	// the working copy at acquisition time.
	Integrity IntegrityRecord `json:"integrity"`

	// Custody is the chain-of-custody entry for the working copy.
	Custody CustodyRecord `json:"custody"`

	// Analysis maps analyzer name to that analyzer's result.
	Analysis map[string]*AnalyzerResult `json:"analysis"`

	// OverallScore is the consolidated suspicion score in [0, 100],
	// computed by the documented weighted aggregation.
	OverallScore float64 `json:"overall_score"`

	// Assessment is the label derived from OverallScore.
	Assessment string `json:"assessment"`
}

// AnalyzerNames returns the analysis keys in stable sorted order.
// Report writers iterate this so output is deterministic.
func (r *ConsolidatedReport) AnalyzerNames() []string {
	names := make([]string, 0, len(r.Analysis))
	for name := range r.Analysis {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CountByStatus returns how many analyzers finished with the given status.
func (r *ConsolidatedReport) CountByStatus(status Status) int {
	count := 0
	for _, result := range r.Analysis {
		if result.Status == status {
			count++
		}
	}
	return count
}

// CountBySuspicion returns how many successful analyzers reported the
// given suspicion level.
func (r *ConsolidatedReport) CountBySuspicion(level Suspicion) int {
	count := 0
	for _, result := range r.Analysis {
		if result.Succeeded() && result.Suspicion == level {
			count++
		}
	}
	return count
}

// MaxSuspicion returns the highest suspicion level any successful
// analyzer reported, or SuspicionNone when none succeeded.
func (r *ConsolidatedReport) MaxSuspicion() Suspicion {
	maxLevel := SuspicionNone
	for _, result := range r.Analysis {
		if result.Succeeded() && result.Suspicion > maxLevel {
			maxLevel = result.Suspicion
		}
	}
	return maxLevel
}
