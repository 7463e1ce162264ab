package acquire

import "errors"

// Acquisition errors. All three are fatal to a run: they compromise the
// evidentiary validity of everything that would follow, so the pipeline
// aborts before any analysis begins. Callers classify them with errors.Is.
var (
	// ErrSourceUnreadable is returned when the source image is missing or
	// cannot be opened or read.
	ErrSourceUnreadable = errors.New("source image missing or unreadable")

	// ErrUnsupportedFormat is returned when the source is not one of the
	// configured input formats, or its pixel data cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrIntegrityViolation is returned when the working copy's digests do
	// not match the source after copying. The copy cannot be trusted for
	// analysis.
	ErrIntegrityViolation = errors.New("integrity violation: working copy does not match source")
)
