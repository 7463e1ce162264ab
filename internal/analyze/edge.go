package analyze

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/pixelproof/pixelproof/internal/model"
)

const (
	// edgeBlockSize is the block side for the density maps.
	edgeBlockSize = 32

	// edgeWeakThreshold and edgeStrongThreshold are the hysteresis bounds
	// on gradient magnitude.
	edgeWeakThreshold   = 50.0
	edgeStrongThreshold = 150.0

	// houghThreshold is the accumulator votes a line direction needs to
	// be traced at all.
	houghThreshold = 50

	// houghMinLineLength and houghMaxLineGap shape segment extraction
	// along a traced line.
	houghMinLineLength = 30
	houghMaxLineGap    = 10

	// houghMaxPeaks caps how many accumulator peaks are traced.
	houghMaxPeaks = 256

	// houghAngleSteps is the angular resolution, one degree per step.
	houghAngleSteps = 180
)

// EdgeAnalyzer compares edge structure across blur scales and counts
// straight-line artifacts. Natural edges thin out consistently as the
// image is smoothed; the hard seam of a pasted region behaves differently
// from photographic edges across scales. Long straight edges are also how
// rectangular patches and text overlays betray themselves.
type EdgeAnalyzer struct{}

// NewEdgeAnalyzer creates an EdgeAnalyzer.
func NewEdgeAnalyzer() *EdgeAnalyzer {
	return &EdgeAnalyzer{}
}

// Name returns the analyzer name.
func (a *EdgeAnalyzer) Name() string {
	return "edge"
}

// Category returns the analyzer category.
func (a *EdgeAnalyzer) Category() string {
	return CategoryPixelStatistics
}

// Analyze builds edge maps at three scales, measures the spread of their
// per-block density variation, and counts straight-line segments on the
// unsmoothed map.
func (a *EdgeAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	scales := []struct {
		name string
		blur int
	}{
		{name: "raw", blur: 0},
		{name: "gaussian5", blur: 5},
		{name: "gaussian9", blur: 9},
	}

	cvs := make([]float64, 0, len(scales))
	densityMeans := make([]float64, 0, len(scales))
	var rawEdges *GrayPlane

	for i, scale := range scales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		plane := subject.Gray
		if scale.blur > 0 {
			plane = GaussianBlur(plane, scale.blur)
		}
		edges := hysteresisEdges(plane, edgeWeakThreshold, edgeStrongThreshold)
		if i == 0 {
			rawEdges = edges
		}

		densities := edgeDensities(edges, edgeBlockSize)
		densityMeans = append(densityMeans, Mean(densities))
		cvs = append(cvs, coefficientOfVariation(densities))
	}

	multiScale := StdDev(cvs)

	lineCount, err := houghLineCount(ctx, rawEdges)
	if err != nil {
		return nil, err
	}

	roundedCVs := make([]float64, len(cvs))
	for i, cv := range cvs {
		roundedCVs[i] = round2(cv)
	}

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: edgeSuspicion(multiScale, lineCount),
		Findings: map[string]any{
			"scale_cvs":                 roundedCVs,
			"multi_scale_inconsistency": round2(multiScale),
			"straight_line_count":       lineCount,
			"edge_density":              round2(Mean(densityMeans)),
			"summary":                   fmt.Sprintf("multi-scale edge variation %.2f, %d straight-line segments", multiScale, lineCount),
		},
	}, nil
}

// hysteresisEdges builds a binary edge map: pixels at or above the strong
// threshold seed the map, weak pixels join only when 8-connected to an
// accepted pixel.
func hysteresisEdges(g *GrayPlane, weak, strong float64) *GrayPlane {
	mag := Magnitude(Sobel(g))
	w, h := g.Width, g.Height

	out := NewGrayPlane(w, h)
	stack := make([]int, 0, 1024)
	for i, v := range mag.Pix {
		if v >= strong {
			out.Pix[i] = 1
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				j := ny*w + nx
				if out.Pix[j] == 0 && mag.Pix[j] >= weak {
					out.Pix[j] = 1
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

// edgeDensities computes the edge-pixel fraction per full size×size block.
func edgeDensities(edges *GrayPlane, size int) []float64 {
	densities := make([]float64, 0, (edges.Height/size)*(edges.Width/size))
	area := float64(size * size)

	for y := 0; y+size <= edges.Height; y += size {
		for x := 0; x+size <= edges.Width; x += size {
			count := 0.0
			for dy := 0; dy < size; dy++ {
				row := (y + dy) * edges.Width
				for dx := 0; dx < size; dx++ {
					count += edges.Pix[row+x+dx]
				}
			}
			densities = append(densities, count/area)
		}
	}
	return densities
}

// houghPeak is one accumulator cell over the vote threshold.
type houghPeak struct {
	theta int
	rho   int
	votes int
}

// houghLineCount accumulates edge pixels into a (rho, theta) Hough space
// and extracts straight segments along every qualifying direction.
// Segment pixels are erased as segments are accepted, so overlapping
// peaks do not double-count the same edge.
func houghLineCount(ctx context.Context, edges *GrayPlane) (int, error) {
	w, h := edges.Width, edges.Height
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	rhoSpan := 2*diag + 1

	sinT := make([]float64, houghAngleSteps)
	cosT := make([]float64, houghAngleSteps)
	for t := 0; t < houghAngleSteps; t++ {
		theta := float64(t) * math.Pi / houghAngleSteps
		sinT[t] = math.Sin(theta)
		cosT[t] = math.Cos(theta)
	}

	acc := make([]int32, houghAngleSteps*rhoSpan)
	visited := 0
	for i, v := range edges.Pix {
		if v == 0 {
			continue
		}
		if visited++; visited%8192 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		x, y := float64(i%w), float64(i/w)
		for t := 0; t < houghAngleSteps; t++ {
			rho := int(math.Round(x*cosT[t]+y*sinT[t])) + diag
			acc[t*rhoSpan+rho]++
		}
	}

	peaks := make([]houghPeak, 0)
	for t := 0; t < houghAngleSteps; t++ {
		for r := 0; r < rhoSpan; r++ {
			if votes := acc[t*rhoSpan+r]; votes >= houghThreshold {
				peaks = append(peaks, houghPeak{theta: t, rho: r - diag, votes: int(votes)})
			}
		}
	}
	slices.SortFunc(peaks, func(a, b houghPeak) int {
		if a.votes != b.votes {
			return b.votes - a.votes
		}
		if a.theta != b.theta {
			return a.theta - b.theta
		}
		return a.rho - b.rho
	})
	if len(peaks) > houghMaxPeaks {
		peaks = peaks[:houghMaxPeaks]
	}

	work := &GrayPlane{Width: w, Height: h, Pix: slices.Clone(edges.Pix)}
	lines := 0
	for _, p := range peaks {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		lines += traceSegments(work, float64(p.rho), sinT[p.theta], cosT[p.theta], diag)
	}
	return lines, nil
}

// traceSegments walks the line rho = x·cosθ + y·sinθ across the plane and
// counts runs of edge pixels at least houghMinLineLength long, tolerating
// gaps up to houghMaxLineGap. Accepted runs are erased.
func traceSegments(edges *GrayPlane, rho, sinTheta, cosTheta float64, diag int) int {
	w, h := edges.Width, edges.Height
	baseX, baseY := rho*cosTheta, rho*sinTheta
	dirX, dirY := -sinTheta, cosTheta

	type point struct{ x, y int }
	run := make([]point, 0, 64)
	lines := 0

	flush := func() {
		if len(run) >= houghMinLineLength {
			lines++
			for _, p := range run {
				edges.Set(p.x, p.y, 0)
			}
		}
		run = run[:0]
	}

	gap := 0
	lastX, lastY := math.MinInt, math.MinInt
	for t := -diag; t <= diag; t++ {
		x := int(math.Round(baseX + float64(t)*dirX))
		y := int(math.Round(baseY + float64(t)*dirY))
		if x == lastX && y == lastY {
			continue
		}
		lastX, lastY = x, y

		if x < 0 || x >= w || y < 0 || y >= h {
			flush()
			gap = 0
			continue
		}

		if edges.At(x, y) > 0 {
			run = append(run, point{x: x, y: y})
			gap = 0
			continue
		}
		if len(run) > 0 {
			if gap++; gap > houghMaxLineGap {
				flush()
				gap = 0
			}
		}
	}
	flush()
	return lines
}

// edgeSuspicion maps the multi-scale spread and the straight-line count
// onto a suspicion level.
func edgeSuspicion(multiScale float64, lineCount int) model.Suspicion {
	switch {
	case multiScale < 0.1 && lineCount < 10:
		return model.SuspicionLow
	case multiScale < 0.2 && lineCount < 30:
		return model.SuspicionModerate
	case multiScale < 0.3 || lineCount < 50:
		return model.SuspicionHigh
	default:
		return model.SuspicionVeryHigh
	}
}

// Ensure EdgeAnalyzer implements Analyzer.
var _ Analyzer = (*EdgeAnalyzer)(nil)
