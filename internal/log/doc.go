// Package log provides the logging setup for pixelproof, built on top of
// the standard slog package.
//
// This package extends slog to provide:
//   - Scrubbing of control characters from attribute values
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Why scrubbing
//
// Analyzer output routinely carries strings extracted from the evidence
// itself: EXIF tag values, embedded software names, file paths from foreign
// systems. Those strings are untrusted input. A crafted tag value containing
// terminal escape sequences or raw control bytes must never reach a log
// stream verbatim, so the ScrubHandler replaces every control character in
// string attributes before the record is emitted.
//
// # Usage
//
//	// Create a logger for a scan run
//	logger := log.NewForensicLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("metadata extracted",
//	    "software", tagValue, // control characters replaced
//	    "path", copyPath,
//	)
//
// Components receive the logger explicitly (typically via a WithLogger
// option); no package sets a process-global default.
package log
