package analyze

import "errors"

// Analyzer-boundary errors. Unlike the acquisition errors these are never
// fatal: the coordinator converts them into failed or timeout results and
// the run continues with the remaining analyzers.
var (
	// ErrAnalyzerFailure is returned when an analyzer hits an internal
	// fault, including a recovered panic.
	ErrAnalyzerFailure = errors.New("analyzer failure")

	// ErrExternalTool is returned when a subprocess an analyzer depends on
	// (exiftool) is present but exits abnormally or produces unparseable
	// output.
	ErrExternalTool = errors.New("external tool failure")

	// ErrTimeout marks an analyzer cancelled by its per-analyzer deadline.
	ErrTimeout = errors.New("analyzer timeout")
)
