// Package consolidate merges the outputs of one pipeline run into the
// canonical consolidated report. Consolidation is a pure merge: it cannot
// fail, and the analysis mapping it produces carries exactly one entry per
// analyzer that ran, including analyzers that failed or timed out.
package consolidate

import (
	"log/slog"
	"math"
	"time"

	"github.com/pixelproof/pixelproof/internal/model"
)

// Assessment labels derived from the overall score.
const (
	AssessmentAuthenticLikely    = "authentic_likely"
	AssessmentMinorAnomalies     = "minor_anomalies"
	AssessmentSuspicious         = "suspicious"
	AssessmentManipulationLikely = "manipulation_likely"
)

// Score boundaries between assessment labels.
const (
	scoreMinorAnomalies     = 20
	scoreSuspicious         = 40
	scoreManipulationLikely = 60
)

// defaultAnalyzerWeight applies to analyzers registered outside the
// published table, so their evidence still registers in the score.
const defaultAnalyzerWeight = 0.05

// analyzerWeights is the published aggregation weight per built-in
// analyzer. The weights sum to 1.0; changing them changes the meaning of
// every archived score.
var analyzerWeights = map[string]float64{
	"clone_detection": 0.20,
	"ela":             0.15,
	"splicing":        0.15,
	"jpeg_quality":    0.125,
	"noise":           0.125,
	"metadata":        0.10,
	"luminance":       0.075,
	"edge":            0.075,
}

// Options configure a Consolidator.
type Options struct {
	// Logger receives the consolidation summary record.
	Logger *slog.Logger

	// Version is stamped into the report metadata.
	Version string
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) func(*Options) {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithVersion sets the version stamped into reports.
func WithVersion(version string) func(*Options) {
	return func(o *Options) {
		o.Version = version
	}
}

// Consolidator assembles consolidated reports.
type Consolidator struct {
	logger  *slog.Logger
	version string
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(opts ...func(*Options)) *Consolidator {
	options := &Options{
		Version: "dev",
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Consolidator{
		logger:  options.Logger,
		version: options.Version,
	}
}

// Consolidate builds the canonical report for one run from the verified
// integrity record, the custody record, and the per-analyzer results.
func (c *Consolidator) Consolidate(
	runID string,
	info model.ImageInfo,
	integrity model.IntegrityRecord,
	custody model.CustodyRecord,
	results map[string]*model.AnalyzerResult,
) *model.ConsolidatedReport {
	score := OverallScore(results)

	report := &model.ConsolidatedReport{
		ReportMetadata: model.ReportMetadata{
			GeneratedAt: time.Now().UTC(),
			Version:     c.version,
			RunID:       runID,
		},
		ImageInfo:    info,
		Integrity:    integrity,
		Custody:      custody,
		Analysis:     results,
		OverallScore: score,
		Assessment:   Assessment(score),
	}

	c.logger.Info("consolidated analysis results",
		slog.String("run_id", runID),
		slog.Int("analyzers", len(results)),
		slog.Float64("overall_score", score),
		slog.String("assessment", report.Assessment))
	return report
}

// Weight returns the published aggregation weight for an analyzer name.
func Weight(name string) float64 {
	if w, ok := analyzerWeights[name]; ok {
		return w
	}
	return defaultAnalyzerWeight
}

// OverallScore computes the weighted suspicion score over a result set:
// each successful analyzer contributes its weight times its suspicion
// level's score, failed and timed-out analyzers contribute nothing, and
// the sum is capped at 100. The score never decreases when any single
// analyzer's suspicion rises.
func OverallScore(results map[string]*model.AnalyzerResult) float64 {
	total := 0.0
	for name, result := range results {
		if result == nil || !result.Succeeded() {
			continue
		}
		total += Weight(name) * result.Suspicion.Score()
	}
	return math.Min(math.Round(total*100)/100, 100)
}

// Assessment maps an overall score onto its verdict label.
func Assessment(score float64) string {
	switch {
	case score < scoreMinorAnomalies:
		return AssessmentAuthenticLikely
	case score < scoreSuspicious:
		return AssessmentMinorAnomalies
	case score < scoreManipulationLikely:
		return AssessmentSuspicious
	default:
		return AssessmentManipulationLikely
	}
}
