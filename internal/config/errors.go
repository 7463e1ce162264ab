package config

import "errors"

// Configuration validation errors. These are returned by Config.Validate()
// and name the exact field that is wrong, so the CLI can report the problem
// without string matching. Callers use errors.Is() for programmatic checks.
var (
	// ErrNoSource is returned when no image path was supplied.
	ErrNoSource = errors.New("no source image specified: provide an image path")

	// ErrInvalidTimeout is returned when the analyzer timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid analyzer timeout: must be positive")

	// ErrInvalidConcurrency is returned when the worker-pool size is not
	// positive. Parallel mode with zero workers would deadlock at the
	// join barrier.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidFormat is returned when the report format is not one of
	// simple, json, markdown, or all.
	ErrInvalidFormat = errors.New("invalid report format: must be simple, json, markdown, or all")

	// ErrInvalidELAQuality is returned when the error-level re-encode
	// quality is outside 1..100.
	ErrInvalidELAQuality = errors.New("invalid ela quality: must be between 1 and 100")

	// ErrInvalidThreshold is returned when a score threshold is outside
	// its valid range.
	ErrInvalidThreshold = errors.New("invalid threshold: must be within the score range")

	// ErrNoFormats is returned when the accepted input format set is empty,
	// which would reject every image.
	ErrNoFormats = errors.New("no supported input formats configured")
)
