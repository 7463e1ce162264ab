package analyze

import (
	"context"
	"fmt"
	"math"

	"github.com/pixelproof/pixelproof/internal/model"
)

const (
	// luminanceBlurSize is the Gaussian window applied before gradients,
	// so sensor noise does not drown the lighting signal.
	luminanceBlurSize = 5

	// luminanceBlockSize is the block side for the direction map.
	luminanceBlockSize = 32
)

// LuminanceAnalyzer checks whether the lighting direction is coherent
// across the image. Every scene lit by real light sources produces
// gradient directions that drift smoothly; a subject pasted in from a
// photo lit differently breaks that coherence.
//
// Per block the analyzer computes the circular variance of the gradient
// direction field (1 minus the mean resultant length). The spread of that
// map, as std/mean, is the inconsistency signal.
type LuminanceAnalyzer struct{}

// NewLuminanceAnalyzer creates a LuminanceAnalyzer.
func NewLuminanceAnalyzer() *LuminanceAnalyzer {
	return &LuminanceAnalyzer{}
}

// Name returns the analyzer name.
func (a *LuminanceAnalyzer) Name() string {
	return "luminance"
}

// Category returns the analyzer category.
func (a *LuminanceAnalyzer) Category() string {
	return CategoryPixelStatistics
}

// Analyze computes the per-block circular variance map of gradient
// directions and its spread.
func (a *LuminanceAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blurred := GaussianBlur(subject.Gray, luminanceBlurSize)
	gx, gy := Sobel(blurred)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	circVars := directionVariances(gx, gy, luminanceBlockSize)
	if len(circVars) == 0 {
		return &model.AnalyzerResult{
			Status:    model.StatusSuccess,
			Suspicion: model.SuspicionLow,
			Findings: map[string]any{
				"block_count": 0,
				"summary":     "image smaller than one analysis block",
			},
		}, nil
	}

	mean, std := MeanStd(circVars)
	inconsistency := 0.0
	if mean > 0 {
		inconsistency = std / mean
	}

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: luminanceSuspicion(inconsistency),
		Findings: map[string]any{
			"direction_inconsistency": round2(inconsistency),
			"mean_circular_variance":  round2(mean),
			"block_count":             len(circVars),
			"summary":                 fmt.Sprintf("lighting direction variation %.2f across %d blocks", inconsistency, len(circVars)),
		},
	}, nil
}

// directionVariances computes the circular variance of the gradient
// direction field per full size×size block.
func directionVariances(gx, gy *GrayPlane, size int) []float64 {
	variances := make([]float64, 0, (gx.Height/size)*(gx.Width/size))

	for y := 0; y+size <= gx.Height; y += size {
		for x := 0; x+size <= gx.Width; x += size {
			var sumCos, sumSin float64
			for dy := 0; dy < size; dy++ {
				for dx := 0; dx < size; dx++ {
					theta := math.Atan2(gy.At(x+dx, y+dy), gx.At(x+dx, y+dy))
					sumCos += math.Cos(theta)
					sumSin += math.Sin(theta)
				}
			}
			n := float64(size * size)
			resultant := math.Hypot(sumCos, sumSin) / n
			variances = append(variances, 1-resultant)
		}
	}
	return variances
}

// luminanceSuspicion maps the inconsistency signal onto a suspicion level.
func luminanceSuspicion(inconsistency float64) model.Suspicion {
	switch {
	case inconsistency < 0.3:
		return model.SuspicionLow
	case inconsistency < 0.6:
		return model.SuspicionModerate
	case inconsistency < 1.0:
		return model.SuspicionHigh
	default:
		return model.SuspicionVeryHigh
	}
}

// Ensure LuminanceAnalyzer implements Analyzer.
var _ Analyzer = (*LuminanceAnalyzer)(nil)
