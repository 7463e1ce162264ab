package analyze

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelproof/pixelproof/internal/model"
)

// noiseRGBA builds a gray-valued noise image with a deterministic seed.
func noiseRGBA(w, h int, seed uint64) *image.RGBA {
	r := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(r.IntN(256))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// flatRGBA builds a constant gray image.
func flatRGBA(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// gradientRGBA builds a smooth diagonal ramp with no hard edges.
func gradientRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(min(255, (x+y)/4))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// halfFlatHalfNoise builds an image whose left half is flat and whose
// right half carries strong gray noise around the same level.
func halfFlatHalfNoise(w, h int, seed uint64) *image.RGBA {
	r := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(128)
			if x >= w/2 {
				v = uint8(128 - 40 + r.IntN(81))
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// encodeImage serializes img in the given format.
func encodeImage(t *testing.T, img image.Image, format string, quality int) []byte {
	t.Helper()

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			t.Fatalf("encode jpeg: %v", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("encode png: %v", err)
		}
	default:
		t.Fatalf("unsupported test format %q", format)
	}
	return buf.Bytes()
}

// subjectFromBytes builds a Subject around already-encoded image bytes,
// writing them to disk so analyzers that read the file path work too.
func subjectFromBytes(t *testing.T, data []byte) *Subject {
	t.Helper()

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode subject image: %v", err)
	}

	path := filepath.Join(t.TempDir(), "subject."+format)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write subject file: %v", err)
	}

	artifact := &model.ImageArtifact{
		Path:      path,
		Format:    format,
		Width:     decoded.Bounds().Dx(),
		Height:    decoded.Bounds().Dy(),
		SizeBytes: int64(len(data)),
		Data:      data,
		Image:     decoded,
	}
	return NewSubject(artifact, t.TempDir())
}

// subjectFromImage encodes img in the given format and builds a Subject.
func subjectFromImage(t *testing.T, img image.Image, format string, quality int) *Subject {
	t.Helper()
	return subjectFromBytes(t, encodeImage(t, img, format, quality))
}
