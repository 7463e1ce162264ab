package analyze

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"

	"github.com/pixelproof/pixelproof/internal/model"
)

// elaHeatmapName is the visual artifact written under the scratch dir.
const elaHeatmapName = "ela_heatmap.png"

// ELAAnalyzer performs error level analysis: it re-encodes the image at a
// known JPEG quality and measures how strongly each pixel responds. An
// untouched single-generation image responds uniformly; a pasted or
// locally edited region has a different compression history and stands
// out in the difference.
//
// Lossless sources are first normalized through one JPEG pass, so the
// measured difference reflects uneven compression response rather than
// the quantization cost of the first save.
type ELAAnalyzer struct {
	// quality is the re-encode quality, 1..100.
	quality int
}

// NewELAAnalyzer creates an ELAAnalyzer re-encoding at the given quality.
// Out-of-range values fall back to quality 90.
func NewELAAnalyzer(quality int) *ELAAnalyzer {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &ELAAnalyzer{quality: quality}
}

// Name returns the analyzer name.
func (a *ELAAnalyzer) Name() string {
	return "ela"
}

// Category returns the analyzer category.
func (a *ELAAnalyzer) Category() string {
	return CategoryCompression
}

// Analyze computes the error level statistics and writes the amplified
// heat map under the subject's scratch directory.
func (a *ELAAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	baseline := subject.Artifact.Image
	normalized := false
	if !subject.Artifact.IsJPEG() {
		img, err := recompress(baseline, a.quality)
		if err != nil {
			return nil, fmt.Errorf("normalize source: %w", err)
		}
		baseline = img
		normalized = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reference, err := recompress(baseline, a.quality)
	if err != nil {
		return nil, fmt.Errorf("recompress at quality %d: %w", a.quality, err)
	}

	diff := rgbAbsDiff(baseline, reference)
	meanDiff, stdDiff := MeanStd(diff.Pix)
	maxDiff := 0.0
	for _, v := range diff.Pix {
		if v > maxDiff {
			maxDiff = v
		}
	}

	heatmapPath := ""
	if subject.ScratchDir != "" {
		heatmapPath = filepath.Join(subject.ScratchDir, elaHeatmapName)
		if err := writePlanePNG(heatmapPath, amplifyDiff(diff, maxDiff)); err != nil {
			return nil, err
		}
	}

	findings := map[string]any{
		"quality":         a.quality,
		"mean_difference": round2(meanDiff),
		"max_difference":  round2(maxDiff),
		"std_difference":  round2(stdDiff),
		"normalized":      normalized,
		"summary":         fmt.Sprintf("mean error level %.1f at quality %d", meanDiff, a.quality),
	}
	if heatmapPath != "" {
		findings["heatmap"] = heatmapPath
	}

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: elaSuspicion(meanDiff),
		Findings:  findings,
	}, nil
}

// elaSuspicion maps the mean error level onto a suspicion level.
func elaSuspicion(meanDiff float64) model.Suspicion {
	switch {
	case meanDiff < 10:
		return model.SuspicionLow
	case meanDiff < 25:
		return model.SuspicionModerate
	case meanDiff < 50:
		return model.SuspicionHigh
	default:
		return model.SuspicionVeryHigh
	}
}

// recompress encodes the image as JPEG at the given quality and decodes
// it again.
func recompress(img image.Image, quality int) (image.Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	out, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return out, nil
}

// rgbAbsDiff returns the per-pixel mean absolute channel difference of
// two images on the 0..255 scale, over their common extent.
func rgbAbsDiff(a, b image.Image) *GrayPlane {
	ab, bb := a.Bounds(), b.Bounds()
	w := min(ab.Dx(), bb.Dx())
	h := min(ab.Dy(), bb.Dy())

	out := NewGrayPlane(w, h)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ar, ag, abl, _ := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			br, bg, bbl, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			d := absDiff16(ar, br) + absDiff16(ag, bg) + absDiff16(abl, bbl)
			out.Pix[i] = d / (3 * 257.0)
			i++
		}
	}
	return out
}

// absDiff16 is the absolute difference of two 16-bit channel samples.
func absDiff16(a, b uint32) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

// amplifyDiff stretches the difference plane so its maximum hits 255,
// making faint response differences visible in the heat map.
func amplifyDiff(diff *GrayPlane, maxDiff float64) *GrayPlane {
	out := NewGrayPlane(diff.Width, diff.Height)
	if maxDiff <= 0 {
		return out
	}
	scale := 255.0 / maxDiff
	for i, v := range diff.Pix {
		out.Pix[i] = v * scale
	}
	return out
}

// Ensure ELAAnalyzer implements Analyzer.
var _ Analyzer = (*ELAAnalyzer)(nil)
