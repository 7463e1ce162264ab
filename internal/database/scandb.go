package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pixelproof/pixelproof/internal/model"
)

// dbFileName is the archive file created inside the database directory.
const dbFileName = "pixelproof.db"

// ErrAmbiguousRunID is returned when a run id prefix matches more than
// one archived run.
var ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")

// ScanDB provides SQLite-based storage for consolidated scan reports.
// One archive file holds every run, so history listings and run
// comparisons work across sources.
type ScanDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent read
	// performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScanDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are
// created; otherwise a missing database is an error.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection strings: mode=rw fails on a missing
	// file, mode=rwc creates it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer; a single pooled connection avoids
	// SQLITE_BUSY on concurrent saves.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScanDB) createTables() error {
	schema := `
	-- One row per pipeline run. The full consolidated report lives in
	-- report_json; the remaining columns serve listings and lookups.
	CREATE TABLE IF NOT EXISTS scan_runs (
		run_id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		tlsh TEXT,
		format TEXT NOT NULL,
		overall_score REAL NOT NULL,
		assessment TEXT NOT NULL,
		analyzer_count INTEGER NOT NULL,
		report_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_sha256 ON scan_runs(sha256);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON scan_runs(source_path);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON scan_runs(created_at);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport archives a consolidated report. Re-saving a run id replaces
// the stored report but keeps the original created_at, so archives stay
// in first-seen order.
func (sdb *ScanDB) SaveReport(ctx context.Context, report *model.ConsolidatedReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO scan_runs (run_id, source_path, sha256, tlsh, format, overall_score, assessment, analyzer_count, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		source_path = excluded.source_path,
		sha256 = excluded.sha256,
		tlsh = excluded.tlsh,
		format = excluded.format,
		overall_score = excluded.overall_score,
		assessment = excluded.assessment,
		analyzer_count = excluded.analyzer_count,
		report_json = excluded.report_json
	`

	_, err = sdb.db.ExecContext(ctx, query,
		report.ReportMetadata.RunID,
		report.ImageInfo.Path,
		strings.ToLower(report.Integrity.SHA256),
		report.Integrity.TLSH,
		report.ImageInfo.Format,
		report.OverallScore,
		report.Assessment,
		len(report.Analysis),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by its exact run id. A missing run
// returns (nil, nil).
func (sdb *ScanDB) GetReport(ctx context.Context, runID string) (*model.ConsolidatedReport, error) {
	query := `
	SELECT report_json FROM scan_runs
	WHERE run_id = ?
	`

	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	return unmarshalReport(reportJSON)
}

// GetReportByPrefix retrieves a report by run id or by a unique run id
// prefix, so terminal users can address runs by the short id shown in
// listings. A missing run returns (nil, nil); a prefix matching several
// runs returns ErrAmbiguousRunID.
func (sdb *ScanDB) GetReportByPrefix(ctx context.Context, prefix string) (*model.ConsolidatedReport, error) {
	if report, err := sdb.GetReport(ctx, prefix); err != nil || report != nil {
		return report, err
	}

	query := `
	SELECT report_json FROM scan_runs
	WHERE run_id LIKE ?
	LIMIT 2
	`

	rows, err := sdb.db.QueryContext(ctx, query, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search by run id prefix: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		matches = append(matches, reportJSON)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search by run id prefix: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return unmarshalReport(matches[0])
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousRunID, prefix)
	}
}

// RunMetadata summarizes one archived run without the report payload.
type RunMetadata struct {
	// RunID identifies the pipeline run.
	RunID string

	// SourcePath is the image the run analyzed.
	SourcePath string

	// SHA256 is the content hash of the evidence.
	SHA256 string

	// Format is the detected image format.
	Format string

	// OverallScore is the consolidated suspicion score.
	OverallScore float64

	// Assessment is the label derived from the score.
	Assessment string

	// AnalyzerCount is how many analyzers contributed results.
	AnalyzerCount int

	// CreatedAt is when the run was first archived.
	CreatedAt time.Time
}

// ListRuns returns archived runs, most recent first. A non-positive
// limit returns every run.
func (sdb *ScanDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited
	}

	query := `
	SELECT run_id, source_path, sha256, format, overall_score, assessment, analyzer_count, created_at
	FROM scan_runs
	ORDER BY created_at DESC, run_id
	LIMIT ?
	`

	rows, err := sdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return scanRunMetadata(rows)
}

// RunsForSHA256 returns every archived run of content with the given
// hash, most recent first. This answers whether a file has been
// analyzed before, regardless of the path it arrived under.
func (sdb *ScanDB) RunsForSHA256(ctx context.Context, sha256 string) ([]RunMetadata, error) {
	query := `
	SELECT run_id, source_path, sha256, format, overall_score, assessment, analyzer_count, created_at
	FROM scan_runs
	WHERE sha256 = ?
	ORDER BY created_at DESC, run_id
	`

	rows, err := sdb.db.QueryContext(ctx, query, strings.ToLower(sha256))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs by hash: %w", err)
	}
	defer rows.Close()

	return scanRunMetadata(rows)
}

// scanRunMetadata drains a metadata result set.
func scanRunMetadata(rows *sql.Rows) ([]RunMetadata, error) {
	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var createdAt string

		err := rows.Scan(
			&meta.RunID,
			&meta.SourcePath,
			&meta.SHA256,
			&meta.Format,
			&meta.OverallScore,
			&meta.Assessment,
			&meta.AnalyzerCount,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}

		meta.CreatedAt = parseTimestamp(createdAt)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// unmarshalReport decodes one stored report payload.
func unmarshalReport(reportJSON string) (*model.ConsolidatedReport, error) {
	var report model.ConsolidatedReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse stored report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats, because SQLite returns timestamps in different formats
// depending on configuration. Returns zero time when nothing matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
