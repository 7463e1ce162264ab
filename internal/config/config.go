package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These mirror the behavior of the classic
// desktop forensic workflow where sensible: analyzers are conservative by
// default and every evidentiary step is recorded.
const (
	// DefaultAnalyzerTimeout bounds each analyzer invocation, including the
	// external metadata tool. 30 seconds is generous for the block scans on
	// large images while keeping a stuck external process from stalling
	// the run.
	DefaultAnalyzerTimeout = 30 * time.Second

	// DefaultConcurrency is the worker-pool size in parallel mode.
	// Analyzers are CPU-bound; four workers keep a typical desktop busy
	// without starving the rest of the system.
	DefaultConcurrency = 4

	// DefaultELAQuality is the JPEG quality used for the error-level
	// re-encode. 90 is the standard ELA setting: high enough that benign
	// regions compress almost identically, low enough that previously
	// recompressed regions stand out.
	DefaultELAQuality = 90

	// DefaultELABenignThreshold is the mean error level below which a
	// frame is considered untouched by the error-level analyzer.
	DefaultELABenignThreshold = 10.0

	// DefaultSuspiciousThreshold is the overall score at which a scan is
	// flagged as suspicious in terminal output and exit status.
	DefaultSuspiciousThreshold = 40.0

	// DefaultExiftoolPath is the external metadata tool invoked by the
	// metadata analyzer. Resolution uses PATH lookup; when the tool is
	// missing the analyzer falls back to the built-in EXIF parser.
	DefaultExiftoolPath = "exiftool"

	// AppName is the application name used for XDG directory paths.
	AppName = "pixelproof"
)

// DefaultFormats lists the image formats accepted at acquisition.
// The set matches what the decoder registry can actually decode.
func DefaultFormats() []string {
	return []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"}
}

// ReportFormat selects how the consolidated report is rendered.
type ReportFormat string

const (
	// FormatSimple renders the condensed human-readable summary.
	FormatSimple ReportFormat = "simple"

	// FormatJSON renders the full canonical report as JSON.
	FormatJSON ReportFormat = "json"

	// FormatMarkdown renders the full report as GitHub Flavored Markdown.
	FormatMarkdown ReportFormat = "markdown"

	// FormatAll renders every format; file outputs get one file per format.
	FormatAll ReportFormat = "all"
)

// Config holds all configuration options for pixelproof.
// It is populated from defaults, then the YAML config file, then CLI
// flags, and passed through the application via dependency injection
// rather than global state. A single flat struct keeps the option
// surface easy to scan; the analyzer enable set is the only nested value.
type Config struct {
	// SourcePath is the image file to verify, acquire, and analyze.
	SourcePath string

	// EvidenceDir is where verified working copies are placed.
	// The directory is created when missing.
	EvidenceDir string

	// ScratchDir is the parent for run-scoped temporary directories.
	// Each run creates its own subdirectory there and removes it at the
	// end regardless of analyzer outcomes.
	ScratchDir string

	// OutputDir receives the report file and, with KeepArtifacts,
	// analyzer artifacts rescued from the scratch directory.
	OutputDir string

	// ReportFile is the output file path for the report. When empty the
	// report is written to stdout.
	ReportFile string

	// Format selects the report rendering.
	Format ReportFormat

	// Analyzers is the per-analyzer enable set loaded from configuration.
	// A nil or empty map enables every registered analyzer; otherwise an
	// analyzer runs only when its name maps to true.
	Analyzers map[string]bool

	// Formats is the set of acceptable input image formats.
	Formats []string

	// Parallel runs enabled analyzers on a bounded worker pool instead of
	// sequentially in registry order.
	Parallel bool

	// Concurrency is the worker-pool size in parallel mode.
	Concurrency int

	// AnalyzerTimeout bounds each analyzer invocation. An analyzer that
	// exceeds it is cancelled and recorded with timeout status.
	AnalyzerTimeout time.Duration

	// ExiftoolPath locates the external metadata tool. An empty value
	// skips the external tool and uses the built-in EXIF parser directly.
	ExiftoolPath string

	// ELAQuality is the JPEG quality for the error-level re-encode.
	ELAQuality int

	// ELABenignThreshold is the mean error level under which the
	// error-level analyzer reports an untouched frame.
	ELABenignThreshold float64

	// SuspiciousThreshold is the overall score at which the scan is
	// surfaced as suspicious to the caller.
	SuspiciousThreshold float64

	// KeepArtifacts copies analyzer artifacts (heat maps, overlay masks)
	// from the scratch directory into OutputDir before cleanup.
	KeepArtifacts bool

	// DBDir is the directory holding the scan-archive database.
	// When empty, runs are not archived.
	DBDir string

	// SaveToDB indicates whether to archive the consolidated report.
	// Set automatically when DBDir is configured.
	SaveToDB bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. If empty, the
	// tool searches for .pixelproof in the current directory and then in
	// the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values. All fields are set
// to safe defaults that work for most use cases; callers override specific
// values from the config file and CLI flags afterwards.
func NewConfig() *Config {
	return &Config{
		EvidenceDir:         filepath.Join(XDGDataDir(), "evidence"),
		ScratchDir:          XDGCacheDir(),
		OutputDir:           ".",
		Format:              FormatSimple,
		Formats:             DefaultFormats(),
		Concurrency:         DefaultConcurrency,
		AnalyzerTimeout:     DefaultAnalyzerTimeout,
		ExiftoolPath:        DefaultExiftoolPath,
		ELAQuality:          DefaultELAQuality,
		ELABenignThreshold:  DefaultELABenignThreshold,
		SuspiciousThreshold: DefaultSuspiciousThreshold,
	}
}

// XDGDataDir returns the XDG data directory for pixelproof.
// On Linux: ~/.local/share/pixelproof
// On macOS: ~/Library/Application Support/pixelproof
// On Windows: %LOCALAPPDATA%\pixelproof
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pixelproof.
// On Linux: ~/.config/pixelproof
// On macOS: ~/Library/Application Support/pixelproof
// On Windows: %APPDATA%\pixelproof
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for pixelproof.
// On Linux: ~/.cache/pixelproof
// On macOS: ~/Library/Caches/pixelproof
// On Windows: %LOCALAPPDATA%\pixelproof\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// AnalyzerEnabled reports whether the named analyzer should run.
// An empty enable set means every analyzer runs.
func (c *Config) AnalyzerEnabled(name string) bool {
	if len(c.Analyzers) == 0 {
		return true
	}
	return c.Analyzers[name]
}

// Validate checks if the configuration is valid and returns a specific
// error describing the first problem found. It is called once after CLI
// parsing, before the pipeline starts, so bad input fails fast with a
// clear message instead of dying mid-run.
func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return ErrNoSource
	}

	if c.AnalyzerTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	switch c.Format {
	case FormatSimple, FormatJSON, FormatMarkdown, FormatAll:
	default:
		return ErrInvalidFormat
	}

	if c.ELAQuality < 1 || c.ELAQuality > 100 {
		return ErrInvalidELAQuality
	}

	if c.ELABenignThreshold < 0 {
		return ErrInvalidThreshold
	}

	if c.SuspiciousThreshold < 0 || c.SuspiciousThreshold > 100 {
		return ErrInvalidThreshold
	}

	if len(c.Formats) == 0 {
		return ErrNoFormats
	}

	return nil
}

// FormatSupported reports whether the detected input format is in the
// configured accept set.
func (c *Config) FormatSupported(format string) bool {
	if format == "jpg" {
		format = "jpeg"
	}
	return slices.Contains(c.Formats, format)
}
