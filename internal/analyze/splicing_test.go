package analyze

import (
	"context"
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/pixelproof/pixelproof/internal/model"
)

// halfFlatPlane builds a 64×32 luminance plane: left block flat, right
// block noisy.
func halfFlatPlane(seed uint64) *GrayPlane {
	r := rand.New(rand.NewPCG(seed, seed+1))
	g := NewGrayPlane(64, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			v := 128.0
			if x >= 32 {
				v = float64(88 + r.IntN(81))
			}
			g.Set(x, y, v)
		}
	}
	return g
}

func TestSplicingAnalyzer(t *testing.T) {
	t.Parallel()

	t.Run("uniform scene scores zero", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, flatRGBA(128, 128, 100), "png", 0)

		result, err := NewSplicingAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Suspicion != model.SuspicionLow {
			t.Errorf("suspicion = %v, want low", result.Suspicion)
		}
		if got := result.Findings["global_score"]; got != 0.0 {
			t.Errorf("global_score = %v, want 0", got)
		}
	})

	t.Run("split statistics are flagged", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, halfFlatHalfNoise(256, 256, 61), "png", 0)

		result, err := NewSplicingAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Suspicion < model.SuspicionHigh {
			t.Errorf("suspicion = %v, want at least high", result.Suspicion)
		}

		global, ok := result.Findings["global_score"].(float64)
		if !ok || global < 40 {
			t.Errorf("global_score = %v, want >= 40", result.Findings["global_score"])
		}
	})

	t.Run("small grid reports cleanly", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, flatRGBA(48, 48, 100), "png", 0)

		result, err := NewSplicingAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Status != model.StatusSuccess {
			t.Errorf("status = %q, want success", result.Status)
		}
		if got := result.Findings["block_count"]; got != 1 {
			t.Errorf("block_count = %v, want 1", got)
		}
	})
}

func TestNoiseEnergyMap(t *testing.T) {
	t.Parallel()

	out := noiseEnergyMap(halfFlatPlane(7), 2, 1)
	if out.At(0, 0) != 0 {
		t.Errorf("flat block energy = %v, want 0", out.At(0, 0))
	}
	if out.At(1, 0) <= 1 {
		t.Errorf("noisy block energy = %v, want > 1", out.At(1, 0))
	}
}

func TestDCTEnergyMap(t *testing.T) {
	t.Parallel()

	out := dctEnergyMap(halfFlatPlane(9), 2, 1)
	if out.At(0, 0) > 1e-9 {
		t.Errorf("flat block energy = %v, want ~0", out.At(0, 0))
	}
	if out.At(1, 0) <= out.At(0, 0) {
		t.Errorf("noisy block energy %v not above flat block %v", out.At(1, 0), out.At(0, 0))
	}
}

func TestChromaVarianceMap(t *testing.T) {
	t.Parallel()

	t.Run("grayscale image has a zero map", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, noiseRGBA(64, 32, 13), "png", 0)

		out := chromaVarianceMap(subject, 2, 1)
		if out.At(0, 0) != 0 || out.At(1, 0) != 0 {
			t.Errorf("map = %v, %v, want 0, 0", out.At(0, 0), out.At(1, 0))
		}
	})

	t.Run("mixed chroma raises block variance", func(t *testing.T) {
		t.Parallel()

		img := image.NewRGBA(image.Rect(0, 0, 64, 32))
		for y := 0; y < 32; y++ {
			for x := 0; x < 64; x++ {
				c := color.RGBA{R: 200, G: 50, B: 50, A: 255}
				if x >= 32 && (x+y)%2 == 0 {
					c = color.RGBA{R: 50, G: 50, B: 200, A: 255}
				}
				img.Set(x, y, c)
			}
		}
		subject := subjectFromImage(t, img, "png", 0)

		out := chromaVarianceMap(subject, 2, 1)
		if out.At(0, 0) != 0 {
			t.Errorf("constant block variance = %v, want 0", out.At(0, 0))
		}
		if out.At(1, 0) <= 100 {
			t.Errorf("mixed block variance = %v, want > 100", out.At(1, 0))
		}
	})
}

func TestSplicingSuspicion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		global float64
		want   model.Suspicion
	}{
		{global: 0, want: model.SuspicionLow},
		{global: 19.9, want: model.SuspicionLow},
		{global: 20, want: model.SuspicionModerate},
		{global: 39.9, want: model.SuspicionModerate},
		{global: 40, want: model.SuspicionHigh},
		{global: 59.9, want: model.SuspicionHigh},
		{global: 60, want: model.SuspicionVeryHigh},
		{global: 150, want: model.SuspicionVeryHigh},
	}
	for _, tc := range cases {
		if got := splicingSuspicion(tc.global); got != tc.want {
			t.Errorf("splicingSuspicion(%v) = %v, want %v", tc.global, got, tc.want)
		}
	}
}
