// Package pipeline orchestrates one complete forensic run over a single
// source image: integrity verification, evidentiary acquisition, analyzer
// execution, and report consolidation.
//
// A run walks a fixed sequence of stages tracked as an explicit state
// machine (Idle, VerifyingIntegrity, Acquiring, Analyzing, Consolidating,
// Done). Only the stages before analysis can abort the run: an unreadable
// source, an unsupported format, or a working copy whose digests diverge
// from the source leave the pipeline in the Failed state with a sentinel
// error. From Analyzing onward, individual analyzer faults are recorded
// inside their own results and the run still reaches a consolidated
// report.
//
// Usage:
//
//	p := pipeline.New(cfg, pipeline.WithLogger(logger))
//	report, err := p.Run(ctx)
package pipeline
