package analyze

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/pixelproof/pixelproof/internal/model"
)

const (
	// cloneBlockSize is the side of the sliding analysis block.
	cloneBlockSize = 16

	// cloneStride is the sliding step. Overlapping blocks keep duplicated
	// regions detectable at any alignment.
	cloneStride = 4

	// cloneHammingMax is the maximum signature distance for two blocks to
	// count as copies of each other.
	cloneHammingMax = 2

	// cloneMinSeparation rejects pairs closer than this many pixels, else
	// every textured area matches its own neighborhood.
	cloneMinSeparation = 50.0

	// cloneShiftQuantum is the shift-vector quantization step used when
	// clustering pairs that share one copy-paste displacement.
	cloneShiftQuantum = 8

	// cloneMinClusterSize is the pair support a shift cluster needs to
	// become a reported region pair.
	cloneMinClusterSize = 5

	// cloneFlatnessMin skips blocks whose standard deviation falls below
	// it. Featureless blocks match everything and mean nothing.
	cloneFlatnessMin = 1.5

	// cloneBucketCap drops candidate buckets larger than this. A bucket
	// that large holds repetitive texture, not a copied region.
	cloneBucketCap = 512

	// cloneOverlayName is the visual artifact written under the scratch
	// dir when region pairs are found.
	cloneOverlayName = "clone_overlay.png"
)

// BlockBox is an axis-aligned pixel rectangle in image coordinates.
type BlockBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CloneRegionPair describes one detected copy-paste: the bounding boxes of
// the matched block sets on both ends of a shared displacement.
type CloneRegionPair struct {
	// Source bounds the matched blocks on the canonical near end of the
	// displacement. Which end was copied from cannot be decided from
	// pixels alone.
	Source BlockBox `json:"source"`

	// Destination bounds the matched blocks on the far end.
	Destination BlockBox `json:"destination"`

	// ShiftX and ShiftY are the quantized displacement in pixels.
	ShiftX int `json:"shift_x"`
	ShiftY int `json:"shift_y"`

	// Support is the number of block pairs behind this region pair.
	Support int `json:"support"`
}

// cloneBlock is one analysis block with its perceptual signature.
type cloneBlock struct {
	x, y int
	sig  uint64
}

// clonePair indexes two matched blocks.
type clonePair struct {
	a, b int
}

// shiftKey is a quantized displacement vector.
type shiftKey struct {
	dx, dy int
}

// CloneAnalyzer searches for duplicated regions, the signature of
// copy-paste manipulation within one image.
//
// The search slides overlapping blocks across the luminance plane and
// derives a 64-bit perceptual signature per block: the signs of the DCT
// coefficients of the block downsampled to 8×8. Sign bits survive
// brightness shifts and mild recompression while exact pixel hashes do
// not. Candidate blocks are bucketed by an xxhash of the low-frequency
// signature quadrant, matched within buckets under a Hamming bound, then
// clustered by displacement: genuine copy-paste moves many blocks by one
// shared shift, while chance matches scatter.
type CloneAnalyzer struct{}

// NewCloneAnalyzer creates a CloneAnalyzer.
func NewCloneAnalyzer() *CloneAnalyzer {
	return &CloneAnalyzer{}
}

// Name returns the analyzer name.
func (a *CloneAnalyzer) Name() string {
	return "clone_detection"
}

// Category returns the analyzer category.
func (a *CloneAnalyzer) Category() string {
	return CategoryCopyMove
}

// Analyze runs the duplicated-region search.
func (a *CloneAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	gray := subject.Gray
	if gray.Width < cloneBlockSize || gray.Height < cloneBlockSize {
		return &model.AnalyzerResult{
			Status:    model.StatusSuccess,
			Suspicion: model.SuspicionLow,
			Findings: map[string]any{
				"match_count": 0,
				"summary":     "image smaller than one analysis block",
			},
		}, nil
	}

	blocks, buckets, err := collectBlocks(ctx, gray)
	if err != nil {
		return nil, err
	}

	pairs, err := matchPairs(ctx, blocks, buckets)
	if err != nil {
		return nil, err
	}

	clusters := clusterByShift(blocks, pairs)
	regions, matchCount := qualifyingRegions(blocks, clusters)

	overlayPath := ""
	if subject.ScratchDir != "" && len(regions) > 0 {
		overlayPath = filepath.Join(subject.ScratchDir, cloneOverlayName)
		if err := writePlanePNG(overlayPath, cloneOverlay(gray.Width, gray.Height, regions)); err != nil {
			return nil, err
		}
	}

	findings := map[string]any{
		"block_count":     len(blocks),
		"candidate_pairs": len(pairs),
		"match_count":     matchCount,
		"region_pairs":    regions,
		"summary":         cloneSummary(matchCount, len(regions)),
	}
	if overlayPath != "" {
		findings["overlay"] = overlayPath
	}

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: cloneSuspicion(matchCount),
		Findings:  findings,
	}, nil
}

// collectBlocks slides the analysis window and fills the candidate
// buckets. Flat blocks are skipped before they can pollute the buckets.
func collectBlocks(ctx context.Context, gray *GrayPlane) ([]cloneBlock, map[uint64][]int, error) {
	blocks := make([]cloneBlock, 0, 1024)
	buckets := make(map[uint64][]int)

	for y := 0; y+cloneBlockSize <= gray.Height; y += cloneStride {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for x := 0; x+cloneBlockSize <= gray.Width; x += cloneStride {
			sig, ok := cloneSignature(gray, x, y)
			if !ok {
				continue
			}
			idx := len(blocks)
			blocks = append(blocks, cloneBlock{x: x, y: y, sig: sig})

			key := bucketKey(sig)
			buckets[key] = append(buckets[key], idx)
		}
	}
	return blocks, buckets, nil
}

// cloneSignature computes the 64-bit sign signature of the block at
// (x, y), or reports false for a block too flat to carry structure.
func cloneSignature(gray *GrayPlane, x, y int) (uint64, bool) {
	block := make([]float64, 0, cloneBlockSize*cloneBlockSize)
	for dy := 0; dy < cloneBlockSize; dy++ {
		row := (y + dy) * gray.Width
		block = append(block, gray.Pix[row+x:row+x+cloneBlockSize]...)
	}
	if _, std := MeanStd(block); std < cloneFlatnessMin {
		return 0, false
	}

	coefs := DCT8(downsampleTile(gray, x, y, cloneBlockSize))
	var sig uint64
	for i, c := range coefs {
		if c > 0 {
			sig |= 1 << uint(i)
		}
	}
	return sig, true
}

// bucketKey hashes the low-frequency quadrant of the signature. Those 16
// sign bits are the most stable under noise, so near-duplicates share a
// bucket; pairs whose low-frequency signs differ are never compared, but
// exact duplicates always meet.
func bucketKey(sig uint64) uint64 {
	var quantized uint16
	bit := 0
	for v := 0; v < 4; v++ {
		for u := 0; u < 4; u++ {
			if sig&(1<<uint(v*8+u)) != 0 {
				quantized |= 1 << uint(bit)
			}
			bit++
		}
	}

	var key [2]byte
	binary.LittleEndian.PutUint16(key[:], quantized)
	return xxhash.Sum64(key[:])
}

// matchPairs compares blocks within each bucket under the Hamming and
// separation bounds.
func matchPairs(ctx context.Context, blocks []cloneBlock, buckets map[uint64][]int) ([]clonePair, error) {
	pairs := make([]clonePair, 0)
	for _, members := range buckets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(members) < 2 || len(members) > cloneBucketCap {
			continue
		}

		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				ba, bb := blocks[members[i]], blocks[members[j]]
				if bits.OnesCount64(ba.sig^bb.sig) > cloneHammingMax {
					continue
				}
				dx := float64(bb.x - ba.x)
				dy := float64(bb.y - ba.y)
				if math.Hypot(dx, dy) < cloneMinSeparation {
					continue
				}
				pairs = append(pairs, clonePair{a: members[i], b: members[j]})
			}
		}
	}
	return pairs, nil
}

// clusterByShift groups pairs by their quantized displacement vector,
// canonicalized so a shift and its inverse land in the same cluster.
func clusterByShift(blocks []cloneBlock, pairs []clonePair) map[shiftKey][]clonePair {
	clusters := make(map[shiftKey][]clonePair)
	for _, p := range pairs {
		ba, bb := blocks[p.a], blocks[p.b]
		dx, dy := bb.x-ba.x, bb.y-ba.y
		if dy < 0 || (dy == 0 && dx < 0) {
			p.a, p.b = p.b, p.a
			dx, dy = -dx, -dy
		}

		key := shiftKey{dx: quantizeShift(dx), dy: quantizeShift(dy)}
		clusters[key] = append(clusters[key], p)
	}
	return clusters
}

// quantizeShift snaps a displacement component to the cluster grid.
func quantizeShift(v int) int {
	return int(math.Round(float64(v) / cloneShiftQuantum))
}

// qualifyingRegions turns clusters with enough support into region pairs
// and counts the block pairs behind them. Output order is deterministic:
// strongest support first, ties by position.
func qualifyingRegions(blocks []cloneBlock, clusters map[shiftKey][]clonePair) ([]CloneRegionPair, int) {
	regions := make([]CloneRegionPair, 0)
	matchCount := 0

	for key, members := range clusters {
		if len(members) < cloneMinClusterSize {
			continue
		}
		matchCount += len(members)
		regions = append(regions, CloneRegionPair{
			Source:      boundingBox(blocks, members, true),
			Destination: boundingBox(blocks, members, false),
			ShiftX:      key.dx * cloneShiftQuantum,
			ShiftY:      key.dy * cloneShiftQuantum,
			Support:     len(members),
		})
	}

	slices.SortFunc(regions, func(a, b CloneRegionPair) int {
		if a.Support != b.Support {
			return b.Support - a.Support
		}
		if a.Source.Y != b.Source.Y {
			return a.Source.Y - b.Source.Y
		}
		return a.Source.X - b.Source.X
	})
	return regions, matchCount
}

// boundingBox bounds one end of every pair in a cluster.
func boundingBox(blocks []cloneBlock, pairs []clonePair, source bool) BlockBox {
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := 0, 0
	for _, p := range pairs {
		b := blocks[p.a]
		if !source {
			b = blocks[p.b]
		}
		minX = min(minX, b.x)
		minY = min(minY, b.y)
		maxX = max(maxX, b.x+cloneBlockSize)
		maxY = max(maxY, b.y+cloneBlockSize)
	}
	return BlockBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// cloneOverlay renders the region pairs as a mask: near ends bright, far
// ends half-bright, everything else black.
func cloneOverlay(width, height int, regions []CloneRegionPair) *GrayPlane {
	mask := NewGrayPlane(width, height)
	for _, r := range regions {
		fillBox(mask, r.Source, 255)
		fillBox(mask, r.Destination, 128)
	}
	return mask
}

// fillBox paints a clamped rectangle into the mask.
func fillBox(mask *GrayPlane, box BlockBox, value float64) {
	x0 := max(box.X, 0)
	y0 := max(box.Y, 0)
	x1 := min(box.X+box.Width, mask.Width)
	y1 := min(box.Y+box.Height, mask.Height)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			mask.Set(x, y, value)
		}
	}
}

// cloneSuspicion maps the match volume onto a suspicion level.
func cloneSuspicion(matchCount int) model.Suspicion {
	switch {
	case matchCount < 5:
		return model.SuspicionLow
	case matchCount < 20:
		return model.SuspicionModerate
	case matchCount < 50:
		return model.SuspicionHigh
	default:
		return model.SuspicionVeryHigh
	}
}

// cloneSummary builds the one-line headline for the report.
func cloneSummary(matchCount, regionCount int) string {
	if matchCount == 0 {
		return "no duplicated regions"
	}
	return fmt.Sprintf("%d matched block pairs in %d duplicated region pair(s)", matchCount, regionCount)
}

// Ensure CloneAnalyzer implements Analyzer.
var _ Analyzer = (*CloneAnalyzer)(nil)
