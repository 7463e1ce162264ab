package model

import (
	"encoding/json"
	"testing"
)

func TestSuspicionString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level Suspicion
		want  string
	}{
		{SuspicionNone, "none"},
		{SuspicionLow, "low"},
		{SuspicionModerate, "moderate"},
		{SuspicionHigh, "high"},
		{SuspicionVeryHigh, "very_high"},
		{Suspicion(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Suspicion(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestSuspicionOrdering(t *testing.T) {
	t.Parallel()

	if !(SuspicionNone < SuspicionLow && SuspicionLow < SuspicionModerate &&
		SuspicionModerate < SuspicionHigh && SuspicionHigh < SuspicionVeryHigh) {
		t.Error("suspicion levels must be strictly ordered from none to very_high")
	}
}

func TestSuspicionScore(t *testing.T) {
	t.Parallel()

	t.Run("scores rise with level", func(t *testing.T) {
		t.Parallel()

		levels := []Suspicion{SuspicionNone, SuspicionLow, SuspicionModerate, SuspicionHigh, SuspicionVeryHigh}
		prev := -1.0
		for _, level := range levels {
			score := level.Score()
			if score <= prev {
				t.Errorf("Score() for %s = %v, want greater than %v", level, score, prev)
			}
			prev = score
		}
	})

	t.Run("none scores zero", func(t *testing.T) {
		t.Parallel()

		if got := SuspicionNone.Score(); got != 0 {
			t.Errorf("SuspicionNone.Score() = %v, want 0", got)
		}
	})
}

func TestParseSuspicion(t *testing.T) {
	t.Parallel()

	t.Run("round trips every level", func(t *testing.T) {
		t.Parallel()

		for _, level := range []Suspicion{SuspicionNone, SuspicionLow, SuspicionModerate, SuspicionHigh, SuspicionVeryHigh} {
			got, err := ParseSuspicion(level.String())
			if err != nil {
				t.Fatalf("ParseSuspicion(%q) returned error: %v", level.String(), err)
			}
			if got != level {
				t.Errorf("ParseSuspicion(%q) = %v, want %v", level.String(), got, level)
			}
		}
	})

	t.Run("rejects unknown identifier", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseSuspicion("catastrophic"); err == nil {
			t.Error("ParseSuspicion should reject an unknown identifier")
		}
	})
}

func TestSuspicionJSON(t *testing.T) {
	t.Parallel()

	t.Run("marshals as stable identifier", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(SuspicionVeryHigh)
		if err != nil {
			t.Fatalf("Marshal returned error: %v", err)
		}
		if string(data) != `"very_high"` {
			t.Errorf("Marshal = %s, want %q", data, `"very_high"`)
		}
	})

	t.Run("unmarshals archived value", func(t *testing.T) {
		t.Parallel()

		var level Suspicion
		if err := json.Unmarshal([]byte(`"moderate"`), &level); err != nil {
			t.Fatalf("Unmarshal returned error: %v", err)
		}
		if level != SuspicionModerate {
			t.Errorf("Unmarshal = %v, want %v", level, SuspicionModerate)
		}
	})

	t.Run("rejects malformed value", func(t *testing.T) {
		t.Parallel()

		var level Suspicion
		if err := json.Unmarshal([]byte(`"sideways"`), &level); err == nil {
			t.Error("Unmarshal should reject an unknown identifier")
		}
	})
}
