package pipeline

import "github.com/pixelproof/pixelproof/internal/acquire"

// The three fatal error classes of a run. Only the stages before analysis
// produce them; every error returned by Run matches exactly one of these
// under errors.Is, or is a context error when the caller cancelled.
//
// They alias the acquisition sentinels so a class matches no matter which
// layer wrapped it.
var (
	// ErrIO marks an unreadable or unwritable source, evidence, or
	// scratch location.
	ErrIO = acquire.ErrSourceUnreadable

	// ErrUnsupportedFormat marks a source whose sniffed content type is
	// not in the accepted format set.
	ErrUnsupportedFormat = acquire.ErrUnsupportedFormat

	// ErrIntegrityViolation marks a working copy whose digests do not
	// match the source digests recorded before the copy.
	ErrIntegrityViolation = acquire.ErrIntegrityViolation
)
