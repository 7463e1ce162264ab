// Package model defines the core data structures used throughout pixelproof.
//
// This package contains the following main types:
//   - ImageArtifact: The immutable working copy handed to every analyzer
//   - IntegrityRecord: Multi-algorithm content hashes of the evidence
//   - CustodyRecord: The chain-of-custody entry created at acquisition
//   - AnalyzerResult: The outcome of one analyzer run
//   - ConsolidatedReport: The canonical report assembled at the end of a run
//   - ScanSummary: A condensed, human-readable view of a report
//
// Models live in their own package so that acquisition, analysis,
// consolidation, and reporting can all share them without import cycles.
// All report-facing types serialize to JSON for report output and for
// storage in the scan archive.
package model
