package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/pixelproof/pixelproof/internal/config"
	"github.com/pixelproof/pixelproof/internal/database"
	"github.com/pixelproof/pixelproof/internal/integrity"
	"github.com/pixelproof/pixelproof/internal/model"
	"github.com/spf13/cobra"
)

// Change directions shared by the score and per-analyzer deltas.
const (
	changeWorsened  = "worsened"
	changeImproved  = "improved"
	changeUnchanged = "unchanged"
)

// TLSH distance bands for the comparison header. Distances are unbounded;
// near-duplicate files typically land under 50.
const (
	fuzzyCloseThreshold   = 50
	fuzzyRelatedThreshold = 150
)

// NewCompareCmd creates the compare command.
// This command compares two scans stored in the archive database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [run-id] [run-id]",
		Short: "Compare two archived scans",
		Long: `Compare loads two archived scans and shows how their verdicts differ.

Run ids may be abbreviated to any unique prefix; 'pixelproof history'
lists them. With a single run id the command picks the most recent other
scan of the same content (matching SHA-256) as the baseline, which
answers whether a re-scan of known content changed its assessment.

The comparison covers content identity (exact digests plus TLSH fuzzy
distance), the overall score movement, and per-analyzer suspicion
changes. The older run is always presented as the baseline.

Examples:
  # Compare two archived runs by id prefix
  pixelproof compare 3f2a91c4 9d0b77e1

  # Compare a run against the previous scan of the same content
  pixelproof compare 3f2a91c4

  # Output comparison result in JSON format
  pixelproof compare --json 3f2a91c4 9d0b77e1`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runCompareCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(resolveDBDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open scan archive: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	baseline, candidate, err := loadComparableRuns(ctx, db, args)
	if err != nil {
		return err
	}

	result := compareRuns(baseline, candidate)

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	return writeComparisonText(cmd.OutOrStdout(), result)
}

// resolveDBDir returns the scan-archive directory, honoring a config
// file when one is present.
func resolveDBDir() string {
	cfg := config.NewConfig()
	if path := config.FindConfigFile(""); path != "" {
		if fc, err := config.LoadConfigFile(path); err == nil {
			if err := cfg.Apply(fc); err == nil && cfg.DBDir != "" {
				return cfg.DBDir
			}
		}
	}
	return config.XDGDataDir()
}

// loadComparableRuns resolves the command arguments into a baseline and
// a candidate report. Two ids compare the older against the newer
// regardless of argument order; one id is matched against the most
// recent other run that archived the same content.
func loadComparableRuns(ctx context.Context, db *database.ScanDB, args []string) (baseline, candidate *model.ConsolidatedReport, err error) {
	candidate, err = loadRun(ctx, db, args[0])
	if err != nil {
		return nil, nil, err
	}

	if len(args) == 2 {
		baseline, err = loadRun(ctx, db, args[1])
		if err != nil {
			return nil, nil, err
		}
	} else {
		baseline, err = previousRunForContent(ctx, db, candidate)
		if err != nil {
			return nil, nil, err
		}
	}

	if candidate.ReportMetadata.GeneratedAt.Before(baseline.ReportMetadata.GeneratedAt) {
		baseline, candidate = candidate, baseline
	}
	return baseline, candidate, nil
}

// loadRun fetches one archived report by run id or unique prefix.
func loadRun(ctx context.Context, db *database.ScanDB, idOrPrefix string) (*model.ConsolidatedReport, error) {
	archived, err := db.GetReportByPrefix(ctx, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %q: %w", idOrPrefix, err)
	}
	if archived == nil {
		return nil, fmt.Errorf("no archived run matches %q (use 'pixelproof history' to list runs)", idOrPrefix)
	}
	return archived, nil
}

// previousRunForContent finds the most recent other archived run whose
// source bytes hash to the same SHA-256 as the given report.
func previousRunForContent(ctx context.Context, db *database.ScanDB, current *model.ConsolidatedReport) (*model.ConsolidatedReport, error) {
	runs, err := db.RunsForSHA256(ctx, current.Integrity.SHA256)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan archive: %w", err)
	}

	for _, meta := range runs {
		if meta.RunID == current.ReportMetadata.RunID {
			continue
		}
		other, err := db.GetReport(ctx, meta.RunID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %q: %w", meta.RunID, err)
		}
		if other != nil {
			return other, nil
		}
	}

	return nil, fmt.Errorf("no other archived run shares content with %s (pass two run ids to compare different images)",
		shortID(current.ReportMetadata.RunID))
}

// ComparisonResult holds the result of comparing two archived scans.
type ComparisonResult struct {
	// Baseline summarizes the older of the two runs.
	Baseline RunDigest `json:"baseline"`

	// Candidate summarizes the newer run.
	Candidate RunDigest `json:"candidate"`

	// SameContent is true when both runs hash to the same SHA-256.
	SameContent bool `json:"same_content"`

	// FuzzyDistance is the TLSH distance between the two sources.
	// Nil when either run lacks a fuzzy hash.
	FuzzyDistance *int `json:"fuzzy_distance,omitempty"`

	// ContentRelation classifies the content identity in words.
	ContentRelation string `json:"content_relation"`

	// ScoreDelta is the candidate overall score minus the baseline one.
	ScoreDelta float64 `json:"score_delta"`

	// Direction is "worsened", "improved", or "unchanged".
	Direction string `json:"direction"`

	// AnalyzerDeltas lists per-analyzer suspicion movement, sorted by
	// analyzer name.
	AnalyzerDeltas []AnalyzerDelta `json:"analyzer_deltas"`
}

// RunDigest is the subset of an archived run shown in comparisons.
type RunDigest struct {
	// RunID is the full run id.
	RunID string `json:"run_id"`

	// SourcePath is the image path the run analyzed.
	SourcePath string `json:"source_path"`

	// GeneratedAt is when the run's report was assembled.
	GeneratedAt time.Time `json:"generated_at"`

	// SHA256 is the source content hash.
	SHA256 string `json:"sha256"`

	// OverallScore is the consolidated suspicion score.
	OverallScore float64 `json:"overall_score"`

	// Assessment is the verdict label derived from the score.
	Assessment string `json:"assessment"`
}

// AnalyzerDelta records how one analyzer's suspicion level moved
// between two runs.
type AnalyzerDelta struct {
	// Analyzer is the analyzer name.
	Analyzer string `json:"analyzer"`

	// Baseline is the suspicion level in the baseline run, or "-" when
	// the analyzer has no successful result there.
	Baseline string `json:"baseline"`

	// Candidate is the suspicion level in the candidate run, or "-".
	Candidate string `json:"candidate"`

	// Change is "worsened", "improved", or "unchanged".
	Change string `json:"change"`
}

// compareRuns builds the comparison between an older baseline and a
// newer candidate report.
func compareRuns(baseline, candidate *model.ConsolidatedReport) *ComparisonResult {
	result := &ComparisonResult{
		Baseline:  newRunDigest(baseline),
		Candidate: newRunDigest(candidate),
	}

	result.SameContent = strings.EqualFold(baseline.Integrity.SHA256, candidate.Integrity.SHA256)
	if baseline.Integrity.TLSH != "" && candidate.Integrity.TLSH != "" {
		if distance, err := integrity.FuzzyDistance(baseline.Integrity.TLSH, candidate.Integrity.TLSH); err == nil {
			result.FuzzyDistance = &distance
		}
	}
	result.ContentRelation = classifyContentRelation(result.SameContent, result.FuzzyDistance)

	result.ScoreDelta = candidate.OverallScore - baseline.OverallScore
	switch {
	case result.ScoreDelta > 0:
		result.Direction = changeWorsened
	case result.ScoreDelta < 0:
		result.Direction = changeImproved
	default:
		result.Direction = changeUnchanged
	}

	result.AnalyzerDeltas = analyzerDeltas(baseline, candidate)
	return result
}

// newRunDigest extracts the comparison-facing fields of a report.
func newRunDigest(r *model.ConsolidatedReport) RunDigest {
	return RunDigest{
		RunID:        r.ReportMetadata.RunID,
		SourcePath:   r.ImageInfo.Path,
		GeneratedAt:  r.ReportMetadata.GeneratedAt,
		SHA256:       r.Integrity.SHA256,
		OverallScore: r.OverallScore,
		Assessment:   r.Assessment,
	}
}

// classifyContentRelation puts the content identity into words for the
// comparison header.
func classifyContentRelation(sameContent bool, distance *int) string {
	if sameContent {
		return "identical content (SHA-256 match)"
	}
	if distance == nil {
		return "different content (no fuzzy hashes to relate)"
	}
	switch d := *distance; {
	case d == 0:
		return "different bytes with identical structure (TLSH distance 0)"
	case d <= fuzzyCloseThreshold:
		return fmt.Sprintf("near-duplicate content (TLSH distance %d)", d)
	case d <= fuzzyRelatedThreshold:
		return fmt.Sprintf("related content (TLSH distance %d)", d)
	default:
		return fmt.Sprintf("unrelated content (TLSH distance %d)", d)
	}
}

// analyzerDeltas computes per-analyzer suspicion movement across the
// union of analyzers present in either run.
func analyzerDeltas(baseline, candidate *model.ConsolidatedReport) []AnalyzerDelta {
	names := make(map[string]struct{}, len(candidate.Analysis))
	for name := range baseline.Analysis {
		names[name] = struct{}{}
	}
	for name := range candidate.Analysis {
		names[name] = struct{}{}
	}

	deltas := make([]AnalyzerDelta, 0, len(names))
	for name := range names {
		baseLevel, baseOK := successfulSuspicion(baseline, name)
		candLevel, candOK := successfulSuspicion(candidate, name)

		delta := AnalyzerDelta{
			Analyzer:  name,
			Baseline:  "-",
			Candidate: "-",
			Change:    changeUnchanged,
		}
		if baseOK {
			delta.Baseline = baseLevel.String()
		}
		if candOK {
			delta.Candidate = candLevel.String()
		}
		switch {
		case baseOK && candOK && candLevel > baseLevel:
			delta.Change = changeWorsened
		case baseOK && candOK && candLevel < baseLevel:
			delta.Change = changeImproved
		}
		deltas = append(deltas, delta)
	}

	slices.SortFunc(deltas, func(a, b AnalyzerDelta) int {
		return strings.Compare(a.Analyzer, b.Analyzer)
	})
	return deltas
}

// successfulSuspicion returns the suspicion level the named analyzer
// reported, and whether it completed successfully in that run.
func successfulSuspicion(r *model.ConsolidatedReport, name string) (model.Suspicion, bool) {
	result, ok := r.Analysis[name]
	if !ok || !result.Succeeded() {
		return model.SuspicionNone, false
	}
	return result.Suspicion, true
}

// writeComparisonText renders the comparison result for the terminal.
func writeComparisonText(w io.Writer, result *ComparisonResult) error {
	fmt.Fprintln(w, "Scan Comparison")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nBaseline:  %s  %s  %s\n",
		shortID(result.Baseline.RunID),
		result.Baseline.GeneratedAt.Format("2006-01-02 15:04:05"),
		result.Baseline.SourcePath)
	fmt.Fprintf(w, "Candidate: %s  %s  %s\n",
		shortID(result.Candidate.RunID),
		result.Candidate.GeneratedAt.Format("2006-01-02 15:04:05"),
		result.Candidate.SourcePath)

	fmt.Fprintf(w, "\nContent: %s\n", result.ContentRelation)

	fmt.Fprintf(w, "\nOverall score: %.2f -> %.2f (%s)\n",
		result.Baseline.OverallScore,
		result.Candidate.OverallScore,
		formatScoreDelta(result.ScoreDelta))
	fmt.Fprintf(w, "Assessment:    %s -> %s\n",
		result.Baseline.Assessment,
		result.Candidate.Assessment)

	if len(result.AnalyzerDeltas) > 0 {
		fmt.Fprintln(w, "\nAnalyzer suspicion:")
		fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s\n", "Analyzer", "Baseline", "Candidate", "Change")
		fmt.Fprintln(w, "  "+strings.Repeat("-", 50))
		for _, delta := range result.AnalyzerDeltas {
			marker := " "
			switch delta.Change {
			case changeWorsened:
				marker = "+"
			case changeImproved:
				marker = "-"
			}
			fmt.Fprintf(w, "  %-16s  %-10s  %-10s  %s %s\n",
				delta.Analyzer, delta.Baseline, delta.Candidate, marker, delta.Change)
		}
	}

	return nil
}

// formatScoreDelta formats a signed score movement for display.
func formatScoreDelta(delta float64) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("+%.2f, %s", delta, changeWorsened)
	case delta < 0:
		return fmt.Sprintf("%.2f, %s", delta, changeImproved)
	default:
		return changeUnchanged
	}
}
