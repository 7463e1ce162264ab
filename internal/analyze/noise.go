package analyze

import (
	"context"
	"fmt"

	"github.com/pixelproof/pixelproof/internal/model"
)

const (
	// noiseMedianSize is the median filter window for the noise estimate.
	noiseMedianSize = 5

	// noiseBlockSize is the block side for the variance map.
	noiseBlockSize = 32
)

// NoiseAnalyzer studies the spatial distribution of sensor noise. A
// camera deposits statistically uniform noise across the frame; a region
// pasted from another image, denoised, or synthesized carries a noise
// level of its own, which shows up as high variation across the block
// variance map.
//
// The noise estimate is the residual against a median-filtered copy, a
// high-pass view that keeps grain and drops scene content.
type NoiseAnalyzer struct{}

// NewNoiseAnalyzer creates a NoiseAnalyzer.
func NewNoiseAnalyzer() *NoiseAnalyzer {
	return &NoiseAnalyzer{}
}

// Name returns the analyzer name.
func (a *NoiseAnalyzer) Name() string {
	return "noise"
}

// Category returns the analyzer category.
func (a *NoiseAnalyzer) Category() string {
	return CategoryPixelStatistics
}

// Analyze computes the block variance map of the noise residual and its
// coefficient of variation.
func (a *NoiseAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	residual := AbsDiff(subject.Gray, MedianFilter(subject.Gray, noiseMedianSize))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	variances := blockVariances(residual, noiseBlockSize)
	if len(variances) == 0 {
		return &model.AnalyzerResult{
			Status:    model.StatusSuccess,
			Suspicion: model.SuspicionLow,
			Findings: map[string]any{
				"block_count": 0,
				"summary":     "image smaller than one analysis block",
			},
		}, nil
	}

	mean, std := MeanStd(variances)
	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}
	consistency := noiseConsistency(cv)

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: noiseSuspicion(cv),
		Findings: map[string]any{
			"noise_cv":            round2(cv),
			"mean_block_variance": round2(mean),
			"std_block_variance":  round2(std),
			"block_count":         len(variances),
			"consistency":         consistency,
			"summary":             fmt.Sprintf("noise variation %.2f across %d blocks (%s)", cv, len(variances), consistency),
		},
	}, nil
}

// noiseSuspicion maps the coefficient of variation onto a suspicion level.
func noiseSuspicion(cv float64) model.Suspicion {
	switch {
	case cv < 0.5:
		return model.SuspicionLow
	case cv < 0.8:
		return model.SuspicionModerate
	case cv < 1.2:
		return model.SuspicionHigh
	default:
		return model.SuspicionVeryHigh
	}
}

// noiseConsistency labels the coefficient of variation for the report.
func noiseConsistency(cv float64) string {
	switch {
	case cv < 0.3:
		return "very_consistent"
	case cv < 0.5:
		return "consistent"
	case cv < 0.8:
		return "somewhat_inconsistent"
	case cv < 1.2:
		return "inconsistent"
	default:
		return "very_inconsistent"
	}
}

// Ensure NoiseAnalyzer implements Analyzer.
var _ Analyzer = (*NoiseAnalyzer)(nil)
