// Package analyze implements the forensic analyzers and the coordinator
// that runs them against an acquired image.
//
// Each analyzer examines one class of manipulation evidence (compression
// artifacts, copied regions, noise statistics, metadata provenance) and
// reports a suspicion level with technique-specific findings. Analyzers
// are stateless and read-only with respect to the subject: many can run
// against the same working copy concurrently.
//
// The Coordinator owns the registry, the per-analyzer deadline, and the
// failure boundary. An analyzer that returns an error, panics, or exceeds
// its deadline yields a failed or timeout result; it never aborts the run
// and never disturbs the other analyzers.
package analyze
