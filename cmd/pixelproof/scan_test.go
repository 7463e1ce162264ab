package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pixelproof/pixelproof/internal/config"
	"github.com/pixelproof/pixelproof/internal/database"
	"github.com/pixelproof/pixelproof/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeNoiseJPEG writes a seeded low-amplitude noise image that every
// analyzer agrees is clean.
func writeNoiseJPEG(t *testing.T, dir string, width, height int) string {
	t.Helper()

	rng := rand.New(rand.NewPCG(7, 11))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(118 + rng.IntN(21))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	path := filepath.Join(dir, "subject.jpg")
	f, err := os.Create(path) //nolint:gosec // Test fixture under t.TempDir
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return path
}

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "scan [image-file...]" {
			t.Errorf("expected use 'scan [image-file...]', got %q", cmd.Use)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != "" {
			t.Errorf("expected empty default, got %q", flag.DefValue)
		}
	})

	t.Run("has format flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("format")
		if flag == nil {
			t.Fatal("expected format flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
		if flag.DefValue != "simple" {
			t.Errorf("expected default 'simple', got %q", flag.DefValue)
		}
	})

	t.Run("has parallel flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("parallel")
		if flag == nil {
			t.Fatal("expected parallel flag")
		}
		if flag.Shorthand != "p" {
			t.Errorf("expected shorthand 'p', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has concurrency flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("concurrency")
		if flag == nil {
			t.Fatal("expected concurrency flag")
		}
		if flag.Shorthand != "n" {
			t.Errorf("expected shorthand 'n', got %q", flag.Shorthand)
		}
		if flag.DefValue != "4" {
			t.Errorf("expected default '4', got %q", flag.DefValue)
		}
	})

	t.Run("has timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("timeout")
		if flag == nil {
			t.Fatal("expected timeout flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
		if flag.DefValue != "30s" {
			t.Errorf("expected default '30s', got %q", flag.DefValue)
		}
	})

	t.Run("has analyzers flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("analyzers")
		if flag == nil {
			t.Fatal("expected analyzers flag")
		}
		if flag.Shorthand != "a" {
			t.Errorf("expected shorthand 'a', got %q", flag.Shorthand)
		}
	})

	t.Run("has exiftool flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("exiftool")
		if flag == nil {
			t.Fatal("expected exiftool flag")
		}
		if flag.DefValue != "exiftool" {
			t.Errorf("expected default 'exiftool', got %q", flag.DefValue)
		}
	})

	t.Run("has ela-quality flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("ela-quality")
		if flag == nil {
			t.Fatal("expected ela-quality flag")
		}
		if flag.DefValue != "90" {
			t.Errorf("expected default '90', got %q", flag.DefValue)
		}
	})

	t.Run("has threshold flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("threshold")
		if flag == nil {
			t.Fatal("expected threshold flag")
		}
		if flag.DefValue != "40" {
			t.Errorf("expected default '40', got %q", flag.DefValue)
		}
	})

	t.Run("has keep-artifacts flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("keep-artifacts")
		if flag == nil {
			t.Fatal("expected keep-artifacts flag")
		}
		if flag.Shorthand != "k" {
			t.Errorf("expected shorthand 'k', got %q", flag.Shorthand)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("does not have save flag (scans always archive)", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("save") != nil {
			t.Error("save flag should not exist")
		}
	})

	t.Run("does not have db-dir flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("db-dir") != nil {
			t.Error("db-dir flag should not exist")
		}
	})
}

// TestGetVerboseFlag tests verbose flag retrieval with parent fallback.
func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("standalone command defaults to false", func(t *testing.T) {
		t.Parallel()
		if getVerboseFlag(NewScanCmd()) {
			t.Error("expected false without a verbose flag anywhere")
		}
	})

	t.Run("falls back to the root persistent flag", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		scanCmd, _, err := root.Find([]string{"scan"})
		if err != nil {
			t.Fatalf("Find() returned error: %v", err)
		}

		if getVerboseFlag(scanCmd) {
			t.Error("expected false by default")
		}

		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatalf("failed to set verbose: %v", err)
		}
		if !getVerboseFlag(scanCmd) {
			t.Error("expected true after setting the root flag")
		}
	})
}

// TestSetupLogger tests logger level selection.
func TestSetupLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("verbose enables debug", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(true)
		if logger == nil {
			t.Fatal("expected non-nil logger")
		}
		if !logger.Enabled(ctx, slog.LevelDebug) {
			t.Error("expected debug level to be enabled")
		}
	})

	t.Run("quiet keeps warnings only", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(false)
		if logger.Enabled(ctx, slog.LevelDebug) {
			t.Error("expected debug level to be disabled")
		}
		if !logger.Enabled(ctx, slog.LevelWarn) {
			t.Error("expected warn level to be enabled")
		}
	})
}

// TestBuildScanConfig tests configuration assembly from file and flags.
func TestBuildScanConfig(t *testing.T) {
	// The config search reads the working directory and the home
	// directory; point both at empty temp dirs so a developer's
	// .pixelproof cannot leak in. t.Setenv and t.Chdir rule out
	// t.Parallel here.
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	t.Run("applies defaults", func(t *testing.T) {
		cfg, err := buildScanConfig(NewScanCmd())
		if err != nil {
			t.Fatalf("buildScanConfig() returned error: %v", err)
		}

		if cfg.Format != config.FormatSimple {
			t.Errorf("expected format simple, got %q", cfg.Format)
		}
		if cfg.Parallel {
			t.Error("expected parallel false")
		}
		if cfg.Concurrency != config.DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", config.DefaultConcurrency, cfg.Concurrency)
		}
		if cfg.AnalyzerTimeout != config.DefaultAnalyzerTimeout {
			t.Errorf("expected timeout %v, got %v", config.DefaultAnalyzerTimeout, cfg.AnalyzerTimeout)
		}
		if cfg.ExiftoolPath != config.DefaultExiftoolPath {
			t.Errorf("expected exiftool path %q, got %q", config.DefaultExiftoolPath, cfg.ExiftoolPath)
		}
		if cfg.ELAQuality != config.DefaultELAQuality {
			t.Errorf("expected ela quality %d, got %d", config.DefaultELAQuality, cfg.ELAQuality)
		}
		if cfg.SuspiciousThreshold != config.DefaultSuspiciousThreshold {
			t.Errorf("expected threshold %v, got %v", config.DefaultSuspiciousThreshold, cfg.SuspiciousThreshold)
		}
		if cfg.ReportFile != "" {
			t.Errorf("expected empty report file, got %q", cfg.ReportFile)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB true")
		}
		if cfg.DBDir == "" {
			t.Error("expected non-empty archive directory")
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		cmd := NewScanCmd()
		_ = cmd.Flags().Set("output", "report.json")
		_ = cmd.Flags().Set("format", "json")
		_ = cmd.Flags().Set("output-dir", "out")
		_ = cmd.Flags().Set("parallel", "true")
		_ = cmd.Flags().Set("concurrency", "8")
		_ = cmd.Flags().Set("timeout", "5s")
		_ = cmd.Flags().Set("analyzers", "ela, noise")
		_ = cmd.Flags().Set("ela-quality", "75")
		_ = cmd.Flags().Set("threshold", "60")
		_ = cmd.Flags().Set("evidence-dir", "evidence")
		_ = cmd.Flags().Set("keep-artifacts", "true")

		cfg, err := buildScanConfig(cmd)
		if err != nil {
			t.Fatalf("buildScanConfig() returned error: %v", err)
		}

		if cfg.ReportFile != "report.json" {
			t.Errorf("expected report file 'report.json', got %q", cfg.ReportFile)
		}
		if cfg.Format != config.FormatJSON {
			t.Errorf("expected format json, got %q", cfg.Format)
		}
		if cfg.OutputDir != "out" {
			t.Errorf("expected output dir 'out', got %q", cfg.OutputDir)
		}
		if !cfg.Parallel {
			t.Error("expected parallel true")
		}
		if cfg.Concurrency != 8 {
			t.Errorf("expected concurrency 8, got %d", cfg.Concurrency)
		}
		if cfg.AnalyzerTimeout != 5*time.Second {
			t.Errorf("expected timeout 5s, got %v", cfg.AnalyzerTimeout)
		}
		if len(cfg.Analyzers) != 2 || !cfg.Analyzers["ela"] || !cfg.Analyzers["noise"] {
			t.Errorf("expected analyzers {ela, noise}, got %v", cfg.Analyzers)
		}
		if cfg.ELAQuality != 75 {
			t.Errorf("expected ela quality 75, got %d", cfg.ELAQuality)
		}
		if cfg.SuspiciousThreshold != 60 {
			t.Errorf("expected threshold 60, got %v", cfg.SuspiciousThreshold)
		}
		if cfg.EvidenceDir != "evidence" {
			t.Errorf("expected evidence dir 'evidence', got %q", cfg.EvidenceDir)
		}
		if !cfg.KeepArtifacts {
			t.Error("expected keep-artifacts true")
		}
	})

	t.Run("config file overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		archiveDir := filepath.Join(dir, "archive")
		configPath := filepath.Join(dir, "config.yaml")
		content := "format: markdown\nconcurrency: 2\ndb_dir: " + archiveDir + "\n"
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", configPath)

		cfg, err := buildScanConfig(cmd)
		if err != nil {
			t.Fatalf("buildScanConfig() returned error: %v", err)
		}

		if cfg.Format != config.FormatMarkdown {
			t.Errorf("expected format markdown, got %q", cfg.Format)
		}
		if cfg.Concurrency != 2 {
			t.Errorf("expected concurrency 2, got %d", cfg.Concurrency)
		}
		if cfg.DBDir != archiveDir {
			t.Errorf("expected archive dir %q, got %q", archiveDir, cfg.DBDir)
		}
	})

	t.Run("flags override the config file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.yaml")
		content := "format: markdown\nconcurrency: 2\n"
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", configPath)
		_ = cmd.Flags().Set("format", "json")

		cfg, err := buildScanConfig(cmd)
		if err != nil {
			t.Fatalf("buildScanConfig() returned error: %v", err)
		}

		if cfg.Format != config.FormatJSON {
			t.Errorf("expected the format flag to win, got %q", cfg.Format)
		}
		if cfg.Concurrency != 2 {
			t.Errorf("expected the file concurrency to survive, got %d", cfg.Concurrency)
		}
	})

	t.Run("missing explicit config file fails", func(t *testing.T) {
		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := buildScanConfig(cmd)
		if err == nil {
			t.Fatal("expected error for missing explicit config file")
		}
		if !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("malformed config file fails", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(configPath, []byte("format: [unclosed"), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewScanCmd()
		_ = cmd.Flags().Set("config", configPath)

		_, err := buildScanConfig(cmd)
		if err == nil {
			t.Fatal("expected error for malformed config file")
		}
		if !strings.Contains(err.Error(), "failed to load config file") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty exiftool flag disables the external tool", func(t *testing.T) {
		cmd := NewScanCmd()
		_ = cmd.Flags().Set("exiftool", "")

		cfg, err := buildScanConfig(cmd)
		if err != nil {
			t.Fatalf("buildScanConfig() returned error: %v", err)
		}
		if cfg.ExiftoolPath != "" {
			t.Errorf("expected empty exiftool path, got %q", cfg.ExiftoolPath)
		}
	})
}

// TestNewReportWriter tests writer selection per format.
func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	for _, format := range []config.ReportFormat{
		config.FormatSimple,
		config.FormatJSON,
		config.FormatMarkdown,
	} {
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()
			writer, err := newReportWriter(format, io.Discard)
			if err != nil {
				t.Fatalf("newReportWriter(%s) returned error: %v", format, err)
			}
			if writer == nil {
				t.Error("expected non-nil writer")
			}
		})
	}

	t.Run("unknown format fails", func(t *testing.T) {
		t.Parallel()
		_, err := newReportWriter(config.ReportFormat("xml"), io.Discard)
		if err == nil {
			t.Fatal("expected error for unknown format")
		}
		if !strings.Contains(err.Error(), "unsupported report format") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// TestOutputReport tests report rendering to files and stdout.
func TestOutputReport(t *testing.T) {
	// Subtests capture os.Stdout, so none of them may run in parallel.
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	sha := strings.Repeat("ab", 32)

	t.Run("writes json to the configured file", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "report.json")
		cfg := &config.Config{Format: config.FormatJSON, ReportFile: reportPath}
		consolidated := testReport("abcdef1234567890", "photo.jpg", sha, 12.5, base)

		if err := outputReport(cfg, consolidated); err != nil {
			t.Fatalf("outputReport() returned error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report file: %v", err)
		}
		var parsed model.ConsolidatedReport
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("report file is not valid JSON: %v", err)
		}
		if parsed.ReportMetadata.RunID != "abcdef1234567890" {
			t.Errorf("expected run id to round-trip, got %q", parsed.ReportMetadata.RunID)
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "nested", "deep", "report.json")
		cfg := &config.Config{Format: config.FormatJSON, ReportFile: reportPath}

		if err := outputReport(cfg, testReport("abcdef1234567890", "photo.jpg", sha, 12.5, base)); err != nil {
			t.Fatalf("outputReport() returned error: %v", err)
		}
		if _, err := os.Stat(reportPath); err != nil {
			t.Errorf("expected report file at %s: %v", reportPath, err)
		}
	})

	t.Run("writes markdown to the configured file", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "report.md")
		cfg := &config.Config{Format: config.FormatMarkdown, ReportFile: reportPath}

		if err := outputReport(cfg, testReport("abcdef1234567890", "photo.jpg", sha, 12.5, base)); err != nil {
			t.Fatalf("outputReport() returned error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report file: %v", err)
		}
		if !strings.Contains(string(data), "PixelProof Forensic Report") {
			t.Error("expected markdown report heading")
		}
	})

	t.Run("writes to stdout without a report file", func(t *testing.T) {
		cfg := &config.Config{Format: config.FormatSimple}

		oldStdout := os.Stdout
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("failed to create pipe: %v", err)
		}
		os.Stdout = w

		outErr := outputReport(cfg, testReport("abcdef1234567890", "photo.jpg", sha, 12.5, base))

		_ = w.Close()
		os.Stdout = oldStdout

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)

		if outErr != nil {
			t.Fatalf("outputReport() returned error: %v", outErr)
		}
		if !strings.Contains(buf.String(), "PIXELPROOF FORENSIC REPORT") {
			t.Errorf("expected terminal report on stdout, got:\n%s", buf.String())
		}
	})

	t.Run("all formats share one stem", func(t *testing.T) {
		outDir := t.TempDir()
		cfg := &config.Config{Format: config.FormatAll, OutputDir: outDir}
		consolidated := testReport("abcdef1234567890", "photo.jpg", sha, 12.5, base)

		oldStdout := os.Stdout
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("failed to create pipe: %v", err)
		}
		os.Stdout = w

		outErr := outputReport(cfg, consolidated)

		_ = w.Close()
		os.Stdout = oldStdout

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)

		if outErr != nil {
			t.Fatalf("outputReport() returned error: %v", outErr)
		}
		if !strings.Contains(buf.String(), "Reports written:") {
			t.Errorf("expected file locations on stdout, got:\n%s", buf.String())
		}

		stem := filepath.Join(outDir, "pixelproof-abcdef12")
		for _, path := range []string{stem + ".json", stem + ".md"} {
			if _, err := os.Stat(path); err != nil {
				t.Errorf("expected report file at %s: %v", path, err)
			}
		}
	})

	t.Run("unsupported format fails", func(t *testing.T) {
		cfg := &config.Config{Format: config.ReportFormat("xml"), ReportFile: filepath.Join(t.TempDir(), "r.xml")}
		if err := outputReport(cfg, testReport("abcdef1234567890", "photo.jpg", sha, 12.5, base)); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

// TestReportStem tests the shared stem for per-format report files.
func TestReportStem(t *testing.T) {
	t.Parallel()

	t.Run("explicit report file keeps its path", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{ReportFile: filepath.Join("reports", "scan.json")}
		want := filepath.Join("reports", "scan")
		if got := reportStem(cfg, "abcdef1234567890"); got != want {
			t.Errorf("reportStem() = %q, want %q", got, want)
		}
	})

	t.Run("default lands in the output directory", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{OutputDir: "out"}
		want := filepath.Join("out", "pixelproof-abcdef12")
		if got := reportStem(cfg, "abcdef1234567890"); got != want {
			t.Errorf("reportStem() = %q, want %q", got, want)
		}
	})
}

// TestShortID tests run id truncation.
func TestShortID(t *testing.T) {
	t.Parallel()

	if got := shortID("abcdef1234567890"); got != "abcdef12" {
		t.Errorf("shortID() = %q, want 'abcdef12'", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID() = %q, want 'abc'", got)
	}
}

// TestArchiveReport tests report archiving.
func TestArchiveReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("nil database is a no-op", func(t *testing.T) {
		t.Parallel()
		consolidated := testReport("abcdef1234567890", "photo.jpg", strings.Repeat("ab", 32), 12.5, base)
		if err := archiveReport(ctx, nil, consolidated, discardLogger()); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("stores the report", func(t *testing.T) {
		t.Parallel()

		db := seedArchive(t)
		consolidated := testReport("abcdef1234567890", "photo.jpg", strings.Repeat("ab", 32), 12.5, base)

		if err := archiveReport(ctx, db, consolidated, discardLogger()); err != nil {
			t.Fatalf("archiveReport() returned error: %v", err)
		}

		stored, err := db.GetReport(ctx, "abcdef1234567890")
		if err != nil {
			t.Fatalf("GetReport() returned error: %v", err)
		}
		if stored == nil {
			t.Fatal("expected the report to be archived")
		}
		if stored.ReportMetadata.RunID != "abcdef1234567890" {
			t.Errorf("unexpected run id %q", stored.ReportMetadata.RunID)
		}
	})
}

// TestRunScan tests the scan loop error paths.
func TestRunScan(t *testing.T) {
	t.Parallel()

	t.Run("fails without sources", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		err := runScan(context.Background(), cfg, nil, discardLogger())
		if err == nil {
			t.Fatal("expected error without sources")
		}
		if !strings.Contains(err.Error(), "no image files provided") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("reports how many scans failed", func(t *testing.T) {
		t.Parallel()

		base := t.TempDir()
		cfg := config.NewConfig()
		cfg.SourcePath = filepath.Join(base, "absent.jpg")
		cfg.EvidenceDir = filepath.Join(base, "evidence")
		cfg.ScratchDir = filepath.Join(base, "scratch")
		cfg.OutputDir = filepath.Join(base, "out")
		cfg.ExiftoolPath = ""
		cfg.SaveToDB = true
		cfg.DBDir = filepath.Join(base, "archive")

		err := runScan(context.Background(), cfg, []string{cfg.SourcePath}, discardLogger())
		if err == nil {
			t.Fatal("expected error for a missing source")
		}
		if !strings.Contains(err.Error(), "1 of 1 scans failed") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("cancelled context stops before scanning", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cfg := config.NewConfig()
		cfg.SaveToDB = false
		err := runScan(ctx, cfg, []string{"whatever.jpg"}, discardLogger())
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestScanCommandEndToEnd scans a generated image through the full
// command, then checks the report file and the archive.
func TestScanCommandEndToEnd(t *testing.T) {
	// The scan command installs a process-wide default logger, so this
	// test stays sequential.
	base := t.TempDir()
	source := writeNoiseJPEG(t, base, 512, 512)
	archiveDir := filepath.Join(base, "archive")
	reportPath := filepath.Join(base, "report.json")

	configPath := filepath.Join(base, "config.yaml")
	configContent := "evidence_dir: " + filepath.Join(base, "evidence") + "\n" +
		"scratch_dir: " + filepath.Join(base, "scratch") + "\n" +
		"output_dir: " + filepath.Join(base, "out") + "\n" +
		"db_dir: " + archiveDir + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	root := NewRootCmd()
	root.SetArgs([]string{
		"scan",
		"-c", configPath,
		"--exiftool", "",
		"-a", "ela,noise,jpeg_quality",
		"-f", "json",
		"-o", reportPath,
		"--threshold", "100",
		source,
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("failed to read report file: %v", err)
	}
	var consolidated model.ConsolidatedReport
	if err := json.Unmarshal(data, &consolidated); err != nil {
		t.Fatalf("report file is not valid JSON: %v", err)
	}
	if consolidated.ImageInfo.Path != source {
		t.Errorf("expected source path %q, got %q", source, consolidated.ImageInfo.Path)
	}
	if len(consolidated.Analysis) != 3 {
		t.Errorf("expected 3 analyzer results, got %d", len(consolidated.Analysis))
	}
	if consolidated.Integrity.SHA256 == "" {
		t.Error("expected a recorded content hash")
	}

	db, err := database.Open(archiveDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns() returned error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 archived run, got %d", len(runs))
	}
	if runs[0].RunID != consolidated.ReportMetadata.RunID {
		t.Errorf("archived run id %q does not match report %q", runs[0].RunID, consolidated.ReportMetadata.RunID)
	}
}

// TestScanCommandSuspiciousExit checks the non-zero exit when a scan
// crosses the suspicious threshold.
func TestScanCommandSuspiciousExit(t *testing.T) {
	// Sequential for the same reason as the end-to-end scan above.
	base := t.TempDir()
	source := writeNoiseJPEG(t, base, 512, 512)

	configPath := filepath.Join(base, "config.yaml")
	configContent := "evidence_dir: " + filepath.Join(base, "evidence") + "\n" +
		"scratch_dir: " + filepath.Join(base, "scratch") + "\n" +
		"output_dir: " + filepath.Join(base, "out") + "\n" +
		"db_dir: " + filepath.Join(base, "archive") + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	root := NewRootCmd()
	root.SetArgs([]string{
		"scan",
		"-c", configPath,
		"--exiftool", "",
		"-a", "ela,noise,jpeg_quality",
		"-f", "json",
		"-o", filepath.Join(base, "report.json"),
		"--threshold", "0",
		source,
	})

	err := root.Execute()
	if err == nil {
		t.Fatal("expected error with a zero threshold")
	}
	if !strings.Contains(err.Error(), "suspicious threshold") {
		t.Errorf("unexpected error: %v", err)
	}
}
