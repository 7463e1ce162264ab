package analyze

import (
	"context"
	"testing"

	"github.com/pixelproof/pixelproof/internal/model"
)

func TestJPEGQualityAnalyzer(t *testing.T) {
	t.Parallel()

	t.Run("reads the save quality from the quantization table", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, gradientRGBA(256, 256), "jpeg", 90)

		result, err := NewJPEGQualityAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if got := result.Findings["estimation_method"]; got != "quantization_table" {
			t.Errorf("estimation_method = %v, want quantization_table", got)
		}
		if got := result.Findings["estimated_quality"]; got != 85 {
			t.Errorf("estimated_quality = %v, want 85", got)
		}

		mean, ok := result.Findings["quantization_mean"].(float64)
		if !ok || mean <= 0 {
			t.Errorf("quantization_mean = %v, want > 0", result.Findings["quantization_mean"])
		}
	})

	t.Run("recognizes a low save quality", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, gradientRGBA(256, 256), "jpeg", 50)

		result, err := NewJPEGQualityAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if got := result.Findings["estimated_quality"]; got != 60 {
			t.Errorf("estimated_quality = %v, want 60", got)
		}
	})

	t.Run("smooth single save shows no double compression", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, gradientRGBA(256, 256), "jpeg", 90)

		result, err := NewJPEGQualityAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if got := result.Findings["double_compression"]; got != "not_detected" {
			t.Errorf("double_compression = %v, want not_detected", got)
		}
		if result.Suspicion != model.SuspicionLow {
			t.Errorf("suspicion = %v, want low", result.Suspicion)
		}
	})

	t.Run("non jpeg input has no compression history", func(t *testing.T) {
		t.Parallel()

		subject := subjectFromImage(t, gradientRGBA(64, 64), "png", 0)

		result, err := NewJPEGQualityAnalyzer().Analyze(context.Background(), subject)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if result.Suspicion != model.SuspicionNone {
			t.Errorf("suspicion = %v, want none", result.Suspicion)
		}
		if got := result.Findings["note"]; got != "not_jpeg" {
			t.Errorf("note = %v, want not_jpeg", got)
		}
		if _, ok := result.Findings["estimated_quality"]; ok {
			t.Error("estimated_quality present for non-JPEG input")
		}
	})
}

func TestLuminanceQuantTable(t *testing.T) {
	t.Parallel()

	t.Run("parses an eight bit table", func(t *testing.T) {
		t.Parallel()

		data := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x43, 0x00}
		for k := 0; k < 64; k++ {
			data = append(data, byte(k+1))
		}
		data = append(data, 0xFF, 0xD9)

		table, err := luminanceQuantTable(data)
		if err != nil {
			t.Fatalf("luminanceQuantTable() error = %v", err)
		}
		if len(table) != 64 {
			t.Fatalf("len(table) = %d, want 64", len(table))
		}
		if table[0] != 1 || table[63] != 64 {
			t.Errorf("table bounds = %d, %d, want 1, 64", table[0], table[63])
		}
	})

	t.Run("parses a sixteen bit table", func(t *testing.T) {
		t.Parallel()

		data := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x83, 0x10}
		for k := 0; k < 64; k++ {
			v := 256 + k
			data = append(data, byte(v>>8), byte(v))
		}
		data = append(data, 0xFF, 0xD9)

		table, err := luminanceQuantTable(data)
		if err != nil {
			t.Fatalf("luminanceQuantTable() error = %v", err)
		}
		if table[0] != 256 || table[63] != 319 {
			t.Errorf("table bounds = %d, %d, want 256, 319", table[0], table[63])
		}
	})

	t.Run("skips a chroma table and keeps walking", func(t *testing.T) {
		t.Parallel()

		// One DQT payload holding the chroma table first, then luminance.
		data := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x84, 0x01}
		for k := 0; k < 64; k++ {
			data = append(data, 0x07)
		}
		data = append(data, 0x00)
		for k := 0; k < 64; k++ {
			data = append(data, 0x03)
		}
		data = append(data, 0xFF, 0xD9)

		table, err := luminanceQuantTable(data)
		if err != nil {
			t.Fatalf("luminanceQuantTable() error = %v", err)
		}
		if table[0] != 3 {
			t.Errorf("table[0] = %d, want 3 from the luminance table", table[0])
		}
	})

	t.Run("rejects a stream without a soi marker", func(t *testing.T) {
		t.Parallel()

		if _, err := luminanceQuantTable([]byte{0x89, 0x50, 0x4E, 0x47}); err == nil {
			t.Fatal("expected an error for non-JPEG bytes")
		}
	})

	t.Run("gives up at start of scan", func(t *testing.T) {
		t.Parallel()

		data := []byte{0xFF, 0xD8, 0xFF, 0xDA, 0x00, 0x02, 0x00}
		if _, err := luminanceQuantTable(data); err == nil {
			t.Fatal("expected an error when no table precedes the scan")
		}
	})

	t.Run("reads a real encoder stream", func(t *testing.T) {
		t.Parallel()

		data := encodeImage(t, gradientRGBA(64, 64), "jpeg", 75)

		table, err := luminanceQuantTable(data)
		if err != nil {
			t.Fatalf("luminanceQuantTable() error = %v", err)
		}
		for i, v := range table {
			if v < 1 {
				t.Fatalf("table[%d] = %d, want >= 1", i, v)
			}
		}
	})
}

func TestBlockDiscontinuity(t *testing.T) {
	t.Parallel()

	t.Run("block checkerboard is pure boundary energy", func(t *testing.T) {
		t.Parallel()

		g := NewGrayPlane(64, 64)
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				g.Set(x, y, float64(10*((x/8+y/8)%2)))
			}
		}

		blockiness, boundary, interior := blockDiscontinuity(g)
		if boundary != 10 {
			t.Errorf("boundary = %v, want 10", boundary)
		}
		if interior != 0 {
			t.Errorf("interior = %v, want 0", interior)
		}
		if blockiness != 10 {
			t.Errorf("blockiness = %v, want 10", blockiness)
		}
	})

	t.Run("flat plane has no signal", func(t *testing.T) {
		t.Parallel()

		g := NewGrayPlane(64, 64)
		if blockiness, _, _ := blockDiscontinuity(g); blockiness != 0 {
			t.Errorf("blockiness = %v, want 0", blockiness)
		}
	})
}

func TestQualityFromTableMean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		mean float64
		want int
	}{
		{mean: 5, want: 95},
		{mean: 9.9, want: 95},
		{mean: 10, want: 85},
		{mean: 19.9, want: 85},
		{mean: 20, want: 75},
		{mean: 39.9, want: 75},
		{mean: 40, want: 60},
		{mean: 59.9, want: 60},
		{mean: 60, want: 50},
		{mean: 120, want: 50},
	}
	for _, tc := range cases {
		if got := qualityFromTableMean(tc.mean); got != tc.want {
			t.Errorf("qualityFromTableMean(%v) = %d, want %d", tc.mean, got, tc.want)
		}
	}
}

func TestDoubleCompressionVerdict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		blockiness float64
		wantLabel  string
		wantLevel  model.Suspicion
	}{
		{blockiness: 0, wantLabel: "not_detected", wantLevel: model.SuspicionLow},
		{blockiness: 1.9, wantLabel: "not_detected", wantLevel: model.SuspicionLow},
		{blockiness: 2, wantLabel: "possible", wantLevel: model.SuspicionModerate},
		{blockiness: 4.9, wantLabel: "possible", wantLevel: model.SuspicionModerate},
		{blockiness: 5, wantLabel: "probable", wantLevel: model.SuspicionHigh},
		{blockiness: 9.9, wantLabel: "probable", wantLevel: model.SuspicionHigh},
		{blockiness: 10, wantLabel: "very_probable", wantLevel: model.SuspicionVeryHigh},
	}
	for _, tc := range cases {
		label, level := doubleCompressionVerdict(tc.blockiness)
		if label != tc.wantLabel || level != tc.wantLevel {
			t.Errorf("doubleCompressionVerdict(%v) = %q, %v, want %q, %v",
				tc.blockiness, label, level, tc.wantLabel, tc.wantLevel)
		}
	}
}
