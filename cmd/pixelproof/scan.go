package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pixelproof/pixelproof/internal/config"
	"github.com/pixelproof/pixelproof/internal/database"
	"github.com/pixelproof/pixelproof/internal/log"
	"github.com/pixelproof/pixelproof/internal/model"
	"github.com/pixelproof/pixelproof/internal/pipeline"
	"github.com/pixelproof/pixelproof/internal/report"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [image-file...]",
		Short: "Analyze image files for manipulation traces",
		Long: `Scan runs the full forensic pipeline against one or more image files.

For each file it records SHA-256, SHA-1, MD5, and TLSH digests, acquires
a verified working copy into the evidence directory, runs the enabled
analyzers, and consolidates their findings into a weighted suspicion
score with an assessment label. Every completed scan is archived so
'history' and 'compare' can work with it later.

The command exits non-zero when any image scores at or above the
suspicious threshold, so it can gate automated workflows.

Examples:
  # Scan a single image
  pixelproof scan photo.jpg

  # Scan several images in sequence
  pixelproof scan a.jpg b.png c.webp

  # Run analyzers concurrently and keep heat maps and overlay masks
  pixelproof scan --parallel --keep-artifacts photo.jpg

  # Full JSON report to a file
  pixelproof scan --format json --output report.json photo.jpg

  # Terminal summary plus JSON and Markdown files
  pixelproof scan --format all photo.jpg

  # Restrict the run to specific analyzers
  pixelproof scan --analyzers ela,noise,clone_detection photo.jpg

  # Use a custom configuration file
  pixelproof scan -c myconfig.yaml photo.jpg`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Report flags
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file instead of stdout")
	cmd.Flags().StringP("format", "f", string(config.FormatSimple),
		"Report format: simple, json, markdown, or all")
	cmd.Flags().String("output-dir", "",
		"Directory for kept artifacts and per-format report files")

	// Analysis behavior flags
	cmd.Flags().BoolP("parallel", "p", false,
		"Run analyzers on a bounded worker pool instead of sequentially")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Worker count in parallel mode")
	cmd.Flags().DurationP("timeout", "t", config.DefaultAnalyzerTimeout,
		"Time limit for each analyzer")
	cmd.Flags().StringSliceP("analyzers", "a", nil,
		"Run only the named analyzers (comma-separated)")
	cmd.Flags().String("exiftool", config.DefaultExiftoolPath,
		"External metadata tool (empty value uses the built-in EXIF parser)")
	cmd.Flags().Int("ela-quality", config.DefaultELAQuality,
		"JPEG quality for the error-level re-encode")
	cmd.Flags().Float64("threshold", config.DefaultSuspiciousThreshold,
		"Overall score at which the scan exits non-zero")

	// Evidence handling flags
	cmd.Flags().String("evidence-dir", "",
		"Directory for verified working copies (default: XDG data directory)")
	cmd.Flags().BoolP("keep-artifacts", "k", false,
		"Copy analyzer artifacts (heat maps, masks) into the output directory")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .pixelproof in current or home directory)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no image files provided (pass one or more paths as arguments)")
	}

	// Build config from the config file and flags
	cfg, err := buildScanConfig(cmd)
	if err != nil {
		return err
	}
	cfg.SourcePath = args[0]

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	verbose := getVerboseFlag(cmd)
	cfg.Verbose = verbose
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScan(ctx, cfg, args, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildScanConfig creates a Config from the config file and cobra flags.
// The file is applied first, then every flag the user explicitly set, so
// flags always win over the file and the file wins over defaults.
func buildScanConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = configPath

	// If the user explicitly specified a config file path, error when it
	// is missing. An absent default file is not an error.
	explicitConfigPath := configPath != ""
	foundPath := config.FindConfigFile(configPath)
	if foundPath != "" {
		fc, err := config.LoadConfigFile(foundPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", foundPath, err)
		}
		if err := cfg.Apply(fc); err != nil {
			return nil, fmt.Errorf("failed to apply config file %s: %w", foundPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	if flags.Changed("output") {
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("format") {
		format, err := flags.GetString("format")
		if err != nil {
			return nil, err
		}
		cfg.Format = config.ReportFormat(format)
	}

	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("parallel") {
		if cfg.Parallel, err = flags.GetBool("parallel"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("timeout") {
		if cfg.AnalyzerTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("analyzers") {
		names, err := flags.GetStringSlice("analyzers")
		if err != nil {
			return nil, err
		}
		enabled := make(map[string]bool, len(names))
		for _, name := range names {
			enabled[strings.TrimSpace(name)] = true
		}
		cfg.Analyzers = enabled
	}

	if flags.Changed("exiftool") {
		if cfg.ExiftoolPath, err = flags.GetString("exiftool"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("ela-quality") {
		if cfg.ELAQuality, err = flags.GetInt("ela-quality"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("threshold") {
		if cfg.SuspiciousThreshold, err = flags.GetFloat64("threshold"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("evidence-dir") {
		if cfg.EvidenceDir, err = flags.GetString("evidence-dir"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("keep-artifacts") {
		if cfg.KeepArtifacts, err = flags.GetBool("keep-artifacts"); err != nil {
			return nil, err
		}
	}

	// Scans are always archived so compare and history work out of the
	// box. The config file may point the archive somewhere else.
	cfg.SaveToDB = true
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// Evidence-derived strings pass through a scrubbing handler before they
// reach the terminal.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewForensicLogger(os.Stderr, verbose)
}

// runScan executes the scan for each source image in sequence.
// A failed scan is reported and the remaining sources still run; the
// command fails afterwards when any scan failed or crossed the
// suspicious threshold.
func runScan(ctx context.Context, cfg *config.Config, sources []string, logger *slog.Logger) error {
	if len(sources) == 0 {
		return errors.New("no image files provided (pass one or more paths as arguments)")
	}

	logger.Info("starting scan",
		"sources", sources,
		"parallel", cfg.Parallel,
		"format", string(cfg.Format),
		"saveToDB", cfg.SaveToDB,
	)

	// Open the scan archive if enabled
	var db *database.ScanDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open scan archive: %w", err)
		}
		defer db.Close()
		logger.Info("scan archive opened", "dir", cfg.DBDir)
	}

	var failed, suspicious int
	for _, source := range sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Each source gets its own single-use pipeline.
		runCfg := *cfg
		runCfg.SourcePath = source
		p := pipeline.New(&runCfg,
			pipeline.WithLogger(logger),
			pipeline.WithVersion(getVersion()),
		)

		// With several sources an explicit report file would be
		// overwritten per run, so each report gets its run id.
		if len(sources) > 1 && runCfg.ReportFile != "" {
			ext := filepath.Ext(runCfg.ReportFile)
			runCfg.ReportFile = strings.TrimSuffix(runCfg.ReportFile, ext) + "-" + shortID(p.RunID()) + ext
		}

		fmt.Printf("Scanning %s...\n", source)
		startTime := time.Now()

		consolidated, err := p.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			logger.Error("scan failed", "source", source, "error", err)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", source, err)
			continue
		}

		elapsed := time.Since(startTime)
		fmt.Printf("Scan completed in %s\n\n", elapsed.Round(time.Millisecond))

		// Render the report in the requested format
		if err := outputReport(&runCfg, consolidated); err != nil {
			logger.Error("report failed", "source", source, "error", err)
		}

		// Archive the run if enabled
		if err := archiveReport(ctx, db, consolidated, logger); err != nil {
			logger.Error("failed to archive report", "source", source, "error", err)
		}

		if consolidated.OverallScore >= runCfg.SuspiciousThreshold {
			suspicious++
		}
	}

	if len(sources) > 1 {
		fmt.Printf("Scanned %d images: %d suspicious, %d failed\n",
			len(sources), suspicious, failed)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(sources))
	}
	if suspicious > 0 {
		return fmt.Errorf("%d of %d images scored at or above the suspicious threshold (%.0f)",
			suspicious, len(sources), cfg.SuspiciousThreshold)
	}
	return nil
}

// outputReport renders the consolidated report in the configured format.
func outputReport(cfg *config.Config, consolidated *model.ConsolidatedReport) error {
	if cfg.Format == config.FormatAll {
		return outputAllFormats(cfg, consolidated)
	}

	// Determine output destination
	var output io.Writer = os.Stdout
	if cfg.ReportFile != "" {
		f, err := openReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	writer, err := newReportWriter(cfg.Format, output)
	if err != nil {
		return err
	}
	_, err = writer.Write(consolidated)
	return err
}

// newReportWriter selects the report writer for a single-format rendering.
func newReportWriter(format config.ReportFormat, output io.Writer) (report.Writer, error) {
	switch format {
	case config.FormatJSON:
		return report.NewJSONWriter(output, report.WithPrettyPrint()), nil
	case config.FormatMarkdown:
		return report.NewMarkdownWriter(output), nil
	case config.FormatSimple:
		return report.NewSimpleWriter(output), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// outputAllFormats writes the terminal summary to stdout and the full
// JSON and Markdown renderings to files sharing one stem.
func outputAllFormats(cfg *config.Config, consolidated *model.ConsolidatedReport) error {
	stem := reportStem(cfg, consolidated.ReportMetadata.RunID)

	jsonFile, err := openReportFile(stem + ".json")
	if err != nil {
		return err
	}
	defer jsonFile.Close()

	mdFile, err := openReportFile(stem + ".md")
	if err != nil {
		return err
	}
	defer mdFile.Close()

	multi := report.NewMultiWriter(
		report.NewSimpleWriter(os.Stdout),
		report.NewJSONWriter(jsonFile, report.WithPrettyPrint()),
		report.NewMarkdownWriter(mdFile),
	)
	if _, err := multi.Write(consolidated); err != nil {
		return err
	}

	fmt.Printf("Reports written: %s.json %s.md\n", stem, stem)
	return nil
}

// reportStem derives the shared base path for per-format report files.
// An explicit --output keeps its directory and name with the extension
// stripped; otherwise files land in the output directory under the
// short run id.
func reportStem(cfg *config.Config, runID string) string {
	if cfg.ReportFile != "" {
		return strings.TrimSuffix(cfg.ReportFile, filepath.Ext(cfg.ReportFile))
	}
	return filepath.Join(cfg.OutputDir, "pixelproof-"+shortID(runID))
}

// openReportFile creates path for writing with owner-only permissions,
// creating parent directories as needed. Reports describe evidence and
// should not be world-readable by default.
func openReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// archiveReport saves the consolidated report to the scan archive.
// If db is nil, this function is a no-op.
func archiveReport(ctx context.Context, db *database.ScanDB, consolidated *model.ConsolidatedReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveReport(ctx, consolidated); err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}

	logger.Info("report archived", "run_id", consolidated.ReportMetadata.RunID)
	return nil
}

// shortID returns the first eight characters of a run id for file names
// and terminal listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
