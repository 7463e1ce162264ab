package analyze

import (
	"context"
	"testing"

	"github.com/pixelproof/pixelproof/internal/model"
)

func TestNoiseAnalyzer(t *testing.T) {
	t.Parallel()

	t.Run("uniform noise is consistent", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, noiseRGBA(256, 256, 11), "png", 0)

		result, err := NewNoiseAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Suspicion != model.SuspicionLow {
			t.Errorf("suspicion = %v, want low", result.Suspicion)
		}
		if got := result.Findings["consistency"]; got != "very_consistent" {
			t.Errorf("consistency = %v, want very_consistent", got)
		}
		if got := result.Findings["block_count"]; got != 64 {
			t.Errorf("block_count = %v, want 64", got)
		}
	})

	t.Run("split noise profile is flagged", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, halfFlatHalfNoise(256, 256, 11), "png", 0)

		result, err := NewNoiseAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Suspicion < model.SuspicionHigh {
			t.Errorf("suspicion = %v, want at least high", result.Suspicion)
		}

		cv, ok := result.Findings["noise_cv"].(float64)
		if !ok || cv < 0.8 {
			t.Errorf("noise_cv = %v, want >= 0.8", result.Findings["noise_cv"])
		}
	})

	t.Run("tiny image reports cleanly", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, noiseRGBA(16, 16, 3), "png", 0)

		result, err := NewNoiseAnalyzer().Analyze(context.Background(), subject)
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

	t.Run("honors context cancellation", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, noiseRGBA(64, 64, 3), "png", 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := NewNoiseAnalyzer().Analyze(ctx, subject); err == nil {
			t.Fatal("Analyze() with cancelled context returned nil error")
		}
	})
}

func TestNoiseSuspicion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cv   float64
		want model.Suspicion
	}{
		{cv: 0, want: model.SuspicionLow},
		{cv: 0.49, want: model.SuspicionLow},
		{cv: 0.5, want: model.SuspicionModerate},
		{cv: 0.79, want: model.SuspicionModerate},
		{cv: 0.8, want: model.SuspicionHigh},
		{cv: 1.19, want: model.SuspicionHigh},
		{cv: 1.2, want: model.SuspicionVeryHigh},
	}
	for _, tc := range cases {
		if got := noiseSuspicion(tc.cv); got != tc.want {
			t.Errorf("noiseSuspicion(%v) = %v, want %v", tc.cv, got, tc.want)
		}
	}
}

func TestNoiseConsistency(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cv   float64
		want string
	}{
		{cv: 0.1, want: "very_consistent"},
		{cv: 0.3, want: "consistent"},
		{cv: 0.5, want: "somewhat_inconsistent"},
		{cv: 0.8, want: "inconsistent"},
		{cv: 1.2, want: "very_inconsistent"},
	}
	for _, tc := range cases {
		if got := noiseConsistency(tc.cv); got != tc.want {
			t.Errorf("noiseConsistency(%v) = %q, want %q", tc.cv, got, tc.want)
		}
	}
}
