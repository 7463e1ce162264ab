package analyze

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pixelproof/pixelproof/internal/model"
)

// JPEGQualityAnalyzer estimates the quality the JPEG was last saved at
// and looks for double-compression traces. A photo edited and re-saved
// has been through the codec twice; the second pass stamps a fresh 8×8
// block grid over the remnants of the first, raising the discontinuity
// at block boundaries relative to block interiors.
//
// Quality estimation reads the luminance quantization table straight from
// the stream. When the table is unreadable the analyzer falls back to
// recompressing at candidate qualities and keeping the closest match.
//
// Non-JPEG input has no JPEG compression history: the analyzer reports
// success with suspicion none and a not_jpeg note.
type JPEGQualityAnalyzer struct{}

// NewJPEGQualityAnalyzer creates a JPEGQualityAnalyzer.
func NewJPEGQualityAnalyzer() *JPEGQualityAnalyzer {
	return &JPEGQualityAnalyzer{}
}

// Name returns the analyzer name.
func (a *JPEGQualityAnalyzer) Name() string {
	return "jpeg_quality"
}

// Category returns the analyzer category.
func (a *JPEGQualityAnalyzer) Category() string {
	return CategoryCompression
}

// Analyze estimates the save quality and the double-compression signal.
func (a *JPEGQualityAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	if !subject.Artifact.IsJPEG() {
		return &model.AnalyzerResult{
			Status:    model.StatusSuccess,
			Suspicion: model.SuspicionNone,
			Findings: map[string]any{
				"note":    "not_jpeg",
				"summary": "not a JPEG, compression history not applicable",
			},
		}, nil
	}

	findings := map[string]any{}

	quality := 0
	if table, err := luminanceQuantTable(subject.Artifact.Data); err == nil {
		tableMean := 0.0
		for _, v := range table {
			tableMean += float64(v)
		}
		tableMean /= float64(len(table))

		quality = qualityFromTableMean(tableMean)
		findings["estimation_method"] = "quantization_table"
		findings["quantization_mean"] = round2(tableMean)
	} else {
		q, rerr := a.recompressionEstimate(ctx, subject)
		if rerr != nil {
			return nil, rerr
		}
		quality = q
		findings["estimation_method"] = "recompression"
	}
	findings["estimated_quality"] = quality

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blockiness, boundary, interior := blockDiscontinuity(subject.Gray)
	label, suspicion := doubleCompressionVerdict(blockiness)

	findings["block_boundary_mean"] = round2(boundary)
	findings["block_interior_mean"] = round2(interior)
	findings["blockiness"] = round2(blockiness)
	findings["double_compression"] = label
	findings["summary"] = fmt.Sprintf("estimated quality %d, double compression %s", quality, label)

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: suspicion,
		Findings:  findings,
	}, nil
}

// luminanceQuantTable walks the JPEG segment stream and returns the 64
// luminance quantization values (table id 0) in stream order.
func luminanceQuantTable(data []byte) ([]int, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errors.New("not a jpeg stream")
	}

	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return nil, errors.New("marker desync")
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			// Fill byte, resync on the next 0xFF.
			i++
			continue
		case marker == 0xD9 || marker == 0xDA:
			// EOI or start of scan: all tables precede the scan.
			return nil, errors.New("no luminance quantization table")
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			// Standalone markers carry no length.
			i += 2
			continue
		}

		length := int(data[i+2])<<8 | int(data[i+3])
		if length < 2 || i+2+length > len(data) {
			return nil, errors.New("truncated segment")
		}

		if marker == 0xDB {
			if table, ok := findLuminanceTable(data[i+4 : i+2+length]); ok {
				return table, nil
			}
		}
		i += 2 + length
	}
	return nil, errors.New("no luminance quantization table")
}

// findLuminanceTable scans one DQT payload, which may hold several
// tables, for table id 0.
func findLuminanceTable(seg []byte) ([]int, bool) {
	j := 0
	for j < len(seg) {
		pqtq := seg[j]
		j++
		precision := pqtq >> 4
		id := pqtq & 0x0F

		n := 64
		if precision == 1 {
			n = 128
		}
		if j+n > len(seg) {
			return nil, false
		}

		if id == 0 {
			table := make([]int, 64)
			for k := 0; k < 64; k++ {
				if precision == 1 {
					table[k] = int(seg[j+2*k])<<8 | int(seg[j+2*k+1])
				} else {
					table[k] = int(seg[j+k])
				}
			}
			return table, true
		}
		j += n
	}
	return nil, false
}

// qualityFromTableMean maps the mean quantization value onto an estimated
// save quality.
func qualityFromTableMean(mean float64) int {
	switch {
	case mean < 10:
		return 95
	case mean < 20:
		return 85
	case mean < 40:
		return 75
	case mean < 60:
		return 60
	default:
		return 50
	}
}

// recompressionEstimate re-encodes at candidate qualities and keeps the
// one whose decode lands closest to the artifact's pixels.
func (a *JPEGQualityAnalyzer) recompressionEstimate(ctx context.Context, subject *Subject) (int, error) {
	best := 50
	bestDiff := math.MaxFloat64
	for q := 50; q <= 95; q += 5 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		re, err := recompress(subject.Artifact.Image, q)
		if err != nil {
			continue
		}
		if mean := Mean(rgbAbsDiff(subject.Artifact.Image, re).Pix); mean < bestDiff {
			bestDiff = mean
			best = q
		}
	}
	return best, nil
}

// blockDiscontinuity measures the mean luminance step across 8×8 block
// boundaries against the mean step inside blocks. The excess of boundary
// over interior is the blockiness signal; natural edges contribute to
// both and cancel out.
func blockDiscontinuity(g *GrayPlane) (blockiness, boundary, interior float64) {
	var bSum, iSum float64
	var bN, iN int

	for y := 0; y < g.Height; y++ {
		for x := 1; x < g.Width; x++ {
			d := math.Abs(g.At(x, y) - g.At(x-1, y))
			if x%8 == 0 {
				bSum += d
				bN++
			} else {
				iSum += d
				iN++
			}
		}
	}
	for y := 1; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			d := math.Abs(g.At(x, y) - g.At(x, y-1))
			if y%8 == 0 {
				bSum += d
				bN++
			} else {
				iSum += d
				iN++
			}
		}
	}

	if bN > 0 {
		boundary = bSum / float64(bN)
	}
	if iN > 0 {
		interior = iSum / float64(iN)
	}
	blockiness = boundary - interior
	if blockiness < 0 {
		blockiness = 0
	}
	return blockiness, boundary, interior
}

// doubleCompressionVerdict maps the blockiness signal onto a label and a
// suspicion level.
func doubleCompressionVerdict(blockiness float64) (string, model.Suspicion) {
	switch {
	case blockiness < 2:
		return "not_detected", model.SuspicionLow
	case blockiness < 5:
		return "possible", model.SuspicionModerate
	case blockiness < 10:
		return "probable", model.SuspicionHigh
	default:
		return "very_probable", model.SuspicionVeryHigh
	}
}

// Ensure JPEGQualityAnalyzer implements Analyzer.
var _ Analyzer = (*JPEGQualityAnalyzer)(nil)
