// Package database provides the SQLite-backed scan archive.
//
// The archive stores one row per pipeline run: the consolidated report
// as JSON plus the columns needed to list and look up runs without
// deserializing full reports (source path, SHA-256, score, assessment).
// Past runs feed the history listing and the run comparison command.
//
// SQLite via modernc.org/sqlite keeps the archive a single CGO-free
// file, and WAL mode keeps concurrent readers cheap.
package database
