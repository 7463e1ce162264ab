package analyze

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/pixelproof/pixelproof/internal/model"
)

// horizontalRampRGBA builds an image whose brightness rises linearly
// with x, so every gradient in it points the same way.
func horizontalRampRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x % 256)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestLuminanceAnalyzer(t *testing.T) {
	t.Parallel()

	t.Run("uniform lighting is coherent", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, horizontalRampRGBA(256, 256), "png", 0)

		result, err := NewLuminanceAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Suspicion != model.SuspicionLow {
			t.Errorf("suspicion = %v, want low", result.Suspicion)
		}

		inconsistency, ok := result.Findings["direction_inconsistency"].(float64)
		if !ok || inconsistency >= 0.3 {
			t.Errorf("direction_inconsistency = %v, want < 0.3", result.Findings["direction_inconsistency"])
		}
	})

	t.Run("split direction field is flagged", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, halfFlatHalfNoise(256, 256, 29), "png", 0)

		result, err := NewLuminanceAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Suspicion < model.SuspicionHigh {
			t.Errorf("suspicion = %v, want at least high", result.Suspicion)
		}
	})

	t.Run("tiny image reports cleanly", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, noiseRGBA(16, 16, 3), "png", 0)

		result, err := NewLuminanceAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Status != model.StatusSuccess {
			t.Errorf("status = %q, want success", result.Status)
		}
		if got := result.Findings["block_count"]; got != 0 {
			t.Errorf("block_count = %v, want 0", got)
		}
	})
}

func TestDirectionVariances(t *testing.T) {
	t.Parallel()

	t.Run("aligned field has no spread", func(t *testing.T) {
		t.Parallel()

		gx := NewGrayPlane(32, 32)
		gy := NewGrayPlane(32, 32)
		for i := range gx.Pix {
			gx.Pix[i] = 1
		}

		variances := directionVariances(gx, gy, 32)
		if len(variances) != 1 {
			t.Fatalf("len(variances) = %d, want 1", len(variances))
		}
		if variances[0] > 1e-9 {
			t.Errorf("circular variance = %v, want ~0", variances[0])
		}
	})

	t.Run("opposed field has full spread", func(t *testing.T) {
		t.Parallel()

		gx := NewGrayPlane(32, 32)
		gy := NewGrayPlane(32, 32)
		for i := range gx.Pix {
			if i%2 == 0 {
				gx.Pix[i] = 1
			} else {
				gx.Pix[i] = -1
			}
		}

		variances := directionVariances(gx, gy, 32)
		if len(variances) != 1 {
			t.Fatalf("len(variances) = %d, want 1", len(variances))
		}
		if math.Abs(variances[0]-1) > 1e-9 {
			t.Errorf("circular variance = %v, want ~1", variances[0])
		}
	})

	t.Run("undersized plane yields nothing", func(t *testing.T) {
		t.Parallel()

		gx := NewGrayPlane(16, 16)
		gy := NewGrayPlane(16, 16)
		if got := directionVariances(gx, gy, 32); len(got) != 0 {
			t.Errorf("len(variances) = %d, want 0", len(got))
		}
	})
}

func TestLuminanceSuspicion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		inconsistency float64
		want          model.Suspicion
	}{
		{inconsistency: 0, want: model.SuspicionLow},
		{inconsistency: 0.29, want: model.SuspicionLow},
		{inconsistency: 0.3, want: model.SuspicionModerate},
		{inconsistency: 0.59, want: model.SuspicionModerate},
		{inconsistency: 0.6, want: model.SuspicionHigh},
		{inconsistency: 0.99, want: model.SuspicionHigh},
		{inconsistency: 1.0, want: model.SuspicionVeryHigh},
	}
	for _, tc := range cases {
		if got := luminanceSuspicion(tc.inconsistency); got != tc.want {
			t.Errorf("luminanceSuspicion(%v) = %v, want %v", tc.inconsistency, got, tc.want)
		}
	}
}
