package analyze

import (
	"context"
	"fmt"
	"math"

	"github.com/pixelproof/pixelproof/internal/model"
)

const (
	// splicingBlockSize is the block side for the evidence maps.
	splicingBlockSize = 32

	// splicingMedianSize is the median window behind the noise map.
	splicingMedianSize = 5
)

// splicing evidence map weights.
const (
	splicingMapNoiseWeight = 0.4
	splicingMapDCTWeight   = 0.3
	splicingMapColorWeight = 0.3
)

// splicing score fusion weights.
const (
	splicingBoundaryWeight = 0.4
	splicingNoiseWeight    = 0.3
	splicingDCTWeight      = 0.2
	splicingColorWeight    = 0.1
)

// SplicingAnalyzer fuses several per-block evidence maps into one
// composite verdict on whether the image was assembled from more than one
// source. Individually weak signals (noise energy, high-frequency DCT
// energy, chroma variance) agree along a splice boundary; the analyzer
// combines the normalized maps and measures the gradient of the combined
// map, which spikes where statistically different regions meet.
type SplicingAnalyzer struct{}

// NewSplicingAnalyzer creates a SplicingAnalyzer.
func NewSplicingAnalyzer() *SplicingAnalyzer {
	return &SplicingAnalyzer{}
}

// Name returns the analyzer name.
func (a *SplicingAnalyzer) Name() string {
	return "splicing"
}

// Category returns the analyzer category.
func (a *SplicingAnalyzer) Category() string {
	return CategoryComposite
}

// Analyze builds the evidence maps, fuses them, and scores the result.
func (a *SplicingAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	gray := subject.Gray
	blocksX := gray.Width / splicingBlockSize
	blocksY := gray.Height / splicingBlockSize
	if blocksX < 2 || blocksY < 2 {
		return &model.AnalyzerResult{
			Status:    model.StatusSuccess,
			Suspicion: model.SuspicionLow,
			Findings: map[string]any{
				"block_count": blocksX * blocksY,
				"summary":     "image too small for a block evidence grid",
			},
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	noiseMap := noiseEnergyMap(gray, blocksX, blocksY)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dctMap := dctEnergyMap(gray, blocksX, blocksY)
	colorMap := chromaVarianceMap(subject, blocksX, blocksY)

	noiseScore := math.Min(coefficientOfVariation(noiseMap.Pix)*50, 100)
	dctScore := math.Min(coefficientOfVariation(dctMap.Pix)*50, 100)
	colorScore := math.Min(coefficientOfVariation(colorMap.Pix)*50, 100)

	combined := NewGrayPlane(blocksX, blocksY)
	normNoise := normalizePlane(noiseMap)
	normDCT := normalizePlane(dctMap)
	normColor := normalizePlane(colorMap)
	for i := range combined.Pix {
		combined.Pix[i] = splicingMapNoiseWeight*normNoise.Pix[i] +
			splicingMapDCTWeight*normDCT.Pix[i] +
			splicingMapColorWeight*normColor.Pix[i]
	}

	boundary := Magnitude(Sobel(combined))
	boundaryScore := Mean(boundary.Pix) * 100

	global := splicingBoundaryWeight*boundaryScore +
		splicingNoiseWeight*noiseScore +
		splicingDCTWeight*dctScore +
		splicingColorWeight*colorScore

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: splicingSuspicion(global),
		Findings: map[string]any{
			"global_score":   round2(global),
			"boundary_score": round2(boundaryScore),
			"noise_score":    round2(noiseScore),
			"dct_score":      round2(dctScore),
			"color_score":    round2(colorScore),
			"blocks_x":       blocksX,
			"blocks_y":       blocksY,
			"summary":        fmt.Sprintf("splicing evidence score %.1f", global),
		},
	}, nil
}

// noiseEnergyMap is the mean squared noise residual per block.
func noiseEnergyMap(gray *GrayPlane, blocksX, blocksY int) *GrayPlane {
	residual := AbsDiff(gray, MedianFilter(gray, splicingMedianSize))

	out := NewGrayPlane(blocksX, blocksY)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			sum := 0.0
			for dy := 0; dy < splicingBlockSize; dy++ {
				row := (by*splicingBlockSize + dy) * gray.Width
				for dx := 0; dx < splicingBlockSize; dx++ {
					v := residual.Pix[row+bx*splicingBlockSize+dx]
					sum += v * v
				}
			}
			out.Set(bx, by, sum/float64(splicingBlockSize*splicingBlockSize))
		}
	}
	return out
}

// dctEnergyMap is the high-frequency DCT magnitude per block: the block
// is downsampled to 8×8, transformed, and the bottom-right quadrant
// magnitudes are summed.
func dctEnergyMap(gray *GrayPlane, blocksX, blocksY int) *GrayPlane {
	out := NewGrayPlane(blocksX, blocksY)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			coefs := DCT8(downsampleTile(gray, bx*splicingBlockSize, by*splicingBlockSize, splicingBlockSize))

			energy := 0.0
			for v := 4; v < 8; v++ {
				for u := 4; u < 8; u++ {
					energy += math.Abs(coefs[v*8+u])
				}
			}
			out.Set(bx, by, energy)
		}
	}
	return out
}

// chromaVarianceMap is the summed variance of the two opponent chroma
// channels per block. A grayscale image yields a zero map.
func chromaVarianceMap(subject *Subject, blocksX, blocksY int) *GrayPlane {
	img := subject.Artifact.Image
	bounds := img.Bounds()

	out := NewGrayPlane(blocksX, blocksY)
	o1 := make([]float64, 0, splicingBlockSize*splicingBlockSize)
	o2 := make([]float64, 0, splicingBlockSize*splicingBlockSize)

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			o1 = o1[:0]
			o2 = o2[:0]
			for dy := 0; dy < splicingBlockSize; dy++ {
				for dx := 0; dx < splicingBlockSize; dx++ {
					px := bounds.Min.X + bx*splicingBlockSize + dx
					py := bounds.Min.Y + by*splicingBlockSize + dy
					r16, g16, b16, _ := img.At(px, py).RGBA()
					r := float64(r16) / 257.0
					g := float64(g16) / 257.0
					b := float64(b16) / 257.0
					o1 = append(o1, (r-g)/math.Sqrt2)
					o2 = append(o2, (r+g-2*b)/math.Sqrt(6))
				}
			}
			_, std1 := MeanStd(o1)
			_, std2 := MeanStd(o2)
			out.Set(bx, by, std1*std1+std2*std2)
		}
	}
	return out
}

// splicingSuspicion maps the global score onto a suspicion level.
func splicingSuspicion(global float64) model.Suspicion {
	switch {
	case global < 20:
		return model.SuspicionLow
	case global < 40:
		return model.SuspicionModerate
	case global < 60:
		return model.SuspicionHigh
	default:
		return model.SuspicionVeryHigh
	}
}

// Ensure SplicingAnalyzer implements Analyzer.
var _ Analyzer = (*SplicingAnalyzer)(nil)
