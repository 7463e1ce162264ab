package model

import (
	"encoding/json"
	"fmt"
)

// Suspicion represents how strongly an analyzer's evidence points at
// digital manipulation. Levels are ordered: a higher value always means
// stronger evidence, so results can be compared and aggregated numerically.
type Suspicion int

const (
	// SuspicionNone indicates the technique produced no signal at all.
	// Example: the JPEG quality analyzer on a PNG input.
	SuspicionNone Suspicion = iota

	// SuspicionLow indicates measurements consistent with an unmodified image.
	SuspicionLow

	// SuspicionModerate indicates minor anomalies that warrant review but
	// commonly occur in legitimately re-saved or post-processed images.
	SuspicionModerate

	// SuspicionHigh indicates anomalies unlikely to occur without editing,
	// such as clusters of near-duplicate blocks or localized noise deficits.
	SuspicionHigh

	// SuspicionVeryHigh indicates strong, localized evidence of manipulation.
	SuspicionVeryHigh
)

// String returns the stable lowercase identifier used in reports and
// in the scan archive.
func (s Suspicion) String() string {
	switch s {
	case SuspicionNone:
		return "none"
	case SuspicionLow:
		return "low"
	case SuspicionModerate:
		return "moderate"
	case SuspicionHigh:
		return "high"
	case SuspicionVeryHigh:
		return "very_high"
	default:
		return "unknown"
	}
}

// Score maps the level to the numeric scale used by the consolidator.
// The mapping is part of the documented overall-score policy and must not
// change between runs of the same version.
func (s Suspicion) Score() float64 {
	switch s {
	case SuspicionLow:
		return 10
	case SuspicionModerate:
		return 40
	case SuspicionHigh:
		return 70
	case SuspicionVeryHigh:
		return 95
	default:
		return 0
	}
}

// ParseSuspicion converts the stable identifier back into a level.
// It is the inverse of String for all defined levels.
func ParseSuspicion(s string) (Suspicion, error) {
	switch s {
	case "none":
		return SuspicionNone, nil
	case "low":
		return SuspicionLow, nil
	case "moderate":
		return SuspicionModerate, nil
	case "high":
		return SuspicionHigh, nil
	case "very_high":
		return SuspicionVeryHigh, nil
	default:
		return SuspicionNone, fmt.Errorf("unknown suspicion level %q", s)
	}
}

// MarshalJSON serializes the level as its stable identifier so reports
// remain readable and archived JSON stays comparable across versions.
func (s Suspicion) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON restores a level from its stable identifier.
func (s *Suspicion) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSuspicion(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
