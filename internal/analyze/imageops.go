package analyze

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"slices"
)

// GrayPlane is a float64 luminance raster in row-major order. Analyzers
// work on float planes rather than image.Gray so intermediate filters keep
// sub-integer precision.
type GrayPlane struct {
	// Width and Height are the raster dimensions in pixels.
	Width  int
	Height int

	// Pix holds Width*Height values, row-major, nominally 0..255.
	Pix []float64
}

// NewGrayPlane allocates a zeroed plane of the given dimensions.
func NewGrayPlane(width, height int) *GrayPlane {
	return &GrayPlane{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// At returns the value at (x, y). The caller guarantees bounds.
func (g *GrayPlane) At(x, y int) float64 {
	return g.Pix[y*g.Width+x]
}

// Set stores v at (x, y). The caller guarantees bounds.
func (g *GrayPlane) Set(x, y int, v float64) {
	g.Pix[y*g.Width+x] = v
}

// atClamped returns the value at (x, y) with replicated borders, so
// filters stay defined at the image edge.
func (g *GrayPlane) atClamped(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= g.Width {
		x = g.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.Height {
		y = g.Height - 1
	}
	return g.Pix[y*g.Width+x]
}

// Grayscale converts a decoded image to a luminance plane using the
// ITU-R BT.601 weights on the 0..255 scale.
func Grayscale(img image.Image) *GrayPlane {
	bounds := img.Bounds()
	g := NewGrayPlane(bounds.Dx(), bounds.Dy())

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, gr, b, _ := img.At(x, y).RGBA()
			g.Pix[i] = (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(b)) / 257.0
			i++
		}
	}
	return g
}

// gaussianKernel builds a normalized 1-D Gaussian of the given odd size.
// Sigma follows the usual size-derived rule so a 5-tap kernel behaves like
// the common (5,5) blur.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*((float64(size)-1)*0.5-1) + 0.8
	half := size / 2

	kernel := make([]float64, size)
	sum := 0.0
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur smooths the plane with a separable Gaussian of the given
// odd kernel size. Borders are replicated.
func GaussianBlur(g *GrayPlane, size int) *GrayPlane {
	kernel := gaussianKernel(size)
	half := size / 2

	horiz := NewGrayPlane(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			acc := 0.0
			for k := -half; k <= half; k++ {
				acc += kernel[k+half] * g.atClamped(x+k, y)
			}
			horiz.Set(x, y, acc)
		}
	}

	out := NewGrayPlane(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			acc := 0.0
			for k := -half; k <= half; k++ {
				acc += kernel[k+half] * horiz.atClamped(x, y+k)
			}
			out.Set(x, y, acc)
		}
	}
	return out
}

// MedianFilter replaces every value with the median of its size×size
// neighborhood. Borders are replicated. The residual against the original
// plane is the noise estimate used by several analyzers.
func MedianFilter(g *GrayPlane, size int) *GrayPlane {
	half := size / 2
	out := NewGrayPlane(g.Width, g.Height)

	window := make([]float64, 0, size*size)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			window = window[:0]
			for ky := -half; ky <= half; ky++ {
				for kx := -half; kx <= half; kx++ {
					window = append(window, g.atClamped(x+kx, y+ky))
				}
			}
			slices.Sort(window)
			out.Set(x, y, window[len(window)/2])
		}
	}
	return out
}

// Sobel computes horizontal and vertical first-derivative planes with the
// standard 3×3 kernels.
func Sobel(g *GrayPlane) (gx, gy *GrayPlane) {
	gx = NewGrayPlane(g.Width, g.Height)
	gy = NewGrayPlane(g.Width, g.Height)

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			tl := g.atClamped(x-1, y-1)
			tc := g.atClamped(x, y-1)
			tr := g.atClamped(x+1, y-1)
			ml := g.atClamped(x-1, y)
			mr := g.atClamped(x+1, y)
			bl := g.atClamped(x-1, y+1)
			bc := g.atClamped(x, y+1)
			br := g.atClamped(x+1, y+1)

			gx.Set(x, y, (tr+2*mr+br)-(tl+2*ml+bl))
			gy.Set(x, y, (bl+2*bc+br)-(tl+2*tc+tr))
		}
	}
	return gx, gy
}

// Magnitude combines gradient planes into per-pixel magnitude.
func Magnitude(gx, gy *GrayPlane) *GrayPlane {
	out := NewGrayPlane(gx.Width, gx.Height)
	for i := range out.Pix {
		out.Pix[i] = math.Hypot(gx.Pix[i], gy.Pix[i])
	}
	return out
}

// AbsDiff returns the per-pixel absolute difference of two equally sized
// planes.
func AbsDiff(a, b *GrayPlane) *GrayPlane {
	out := NewGrayPlane(a.Width, a.Height)
	for i := range out.Pix {
		out.Pix[i] = math.Abs(a.Pix[i] - b.Pix[i])
	}
	return out
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MeanStd returns the mean and the population standard deviation.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean = Mean(values)
	acc := 0.0
	for _, v := range values {
		d := v - mean
		acc += d * d
	}
	return mean, math.Sqrt(acc / float64(len(values)))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	_, std := MeanStd(values)
	return std
}

// coefficientOfVariation returns std/mean, or 0 when the mean vanishes.
func coefficientOfVariation(values []float64) float64 {
	mean, std := MeanStd(values)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// round2 rounds to two decimals for report-facing numbers.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// blockVariances computes the population variance of every full
// size×size block, row-major.
func blockVariances(g *GrayPlane, size int) []float64 {
	variances := make([]float64, 0, (g.Height/size)*(g.Width/size))
	block := make([]float64, 0, size*size)

	for y := 0; y+size <= g.Height; y += size {
		for x := 0; x+size <= g.Width; x += size {
			block = block[:0]
			for dy := 0; dy < size; dy++ {
				row := (y + dy) * g.Width
				block = append(block, g.Pix[row+x:row+x+size]...)
			}
			_, std := MeanStd(block)
			variances = append(variances, std*std)
		}
	}
	return variances
}

// normalizePlane rescales a plane to 0..1 by min-max. A constant plane
// normalizes to all zeros.
func normalizePlane(g *GrayPlane) *GrayPlane {
	out := NewGrayPlane(g.Width, g.Height)
	if len(g.Pix) == 0 {
		return out
	}

	lo, hi := g.Pix[0], g.Pix[0]
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return out
	}

	span := hi - lo
	for i, v := range g.Pix {
		out.Pix[i] = (v - lo) / span
	}
	return out
}

// dctCos caches cos((2i+1)·u·π/16) for the 8-point transform.
var dctCos = func() [8][8]float64 {
	var t [8][8]float64
	for i := 0; i < 8; i++ {
		for u := 0; u < 8; u++ {
			t[i][u] = math.Cos(float64(2*i+1) * float64(u) * math.Pi / 16)
		}
	}
	return t
}()

// DCT8 computes the orthonormal two-dimensional type-II DCT of an 8×8
// tile in row-major order. The output is row-major with the DC term at
// index 0.
func DCT8(tile []float64) []float64 {
	const (
		a0 = 1.0 / (2.0 * math.Sqrt2)
		a  = 0.5
	)

	var rows [64]float64
	for y := 0; y < 8; y++ {
		for u := 0; u < 8; u++ {
			sum := 0.0
			for x := 0; x < 8; x++ {
				sum += tile[y*8+x] * dctCos[x][u]
			}
			c := a
			if u == 0 {
				c = a0
			}
			rows[y*8+u] = c * sum
		}
	}

	out := make([]float64, 64)
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			sum := 0.0
			for y := 0; y < 8; y++ {
				sum += rows[y*8+u] * dctCos[y][v]
			}
			c := a
			if v == 0 {
				c = a0
			}
			out[v*8+u] = c * sum
		}
	}
	return out
}

// downsampleTile box-averages the size×size region at (x0, y0) down to an
// 8×8 tile. size must be a positive multiple of 8 and the region must lie
// fully inside the plane.
func downsampleTile(g *GrayPlane, x0, y0, size int) []float64 {
	cell := size / 8
	norm := float64(cell * cell)

	tile := make([]float64, 64)
	for ty := 0; ty < 8; ty++ {
		for tx := 0; tx < 8; tx++ {
			sum := 0.0
			for dy := 0; dy < cell; dy++ {
				for dx := 0; dx < cell; dx++ {
					sum += g.At(x0+tx*cell+dx, y0+ty*cell+dy)
				}
			}
			tile[ty*8+tx] = sum / norm
		}
	}
	return tile
}

// writePlanePNG renders a plane as an 8-bit grayscale PNG, clamping values
// to 0..255. Visual artifacts (heat maps, overlay masks) go through here.
func writePlanePNG(path string, g *GrayPlane) error {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := g.At(x, y)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}

	f, err := os.Create(path) //nolint:gosec // Scratch artifact under the run directory
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close() //nolint:errcheck,gosec // Already failing
		return fmt.Errorf("encode artifact %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", path, err)
	}
	return nil
}
