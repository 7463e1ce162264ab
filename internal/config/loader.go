package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".pixelproof"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// FileConfig is the structure of the .pixelproof YAML configuration file.
// Every field is optional; absent fields keep their defaults. Durations
// are written in Go syntax ("30s", "2m").
type FileConfig struct {
	// Analyzers maps analyzer names to an enable flag.
	// An empty map enables every registered analyzer.
	Analyzers map[string]bool `yaml:"analyzers,omitempty"`

	// Formats lists the acceptable input image formats.
	Formats []string `yaml:"formats,omitempty"`

	// EvidenceDir is where verified working copies are placed.
	EvidenceDir string `yaml:"evidence_dir,omitempty"`

	// ScratchDir is the parent for run-scoped temporary directories.
	ScratchDir string `yaml:"scratch_dir,omitempty"`

	// OutputDir receives report files and rescued artifacts.
	OutputDir string `yaml:"output_dir,omitempty"`

	// Format selects the report rendering (simple, json, markdown, all).
	Format string `yaml:"format,omitempty"`

	// Parallel runs analyzers on a bounded worker pool.
	Parallel bool `yaml:"parallel,omitempty"`

	// Concurrency is the worker-pool size in parallel mode.
	Concurrency int `yaml:"concurrency,omitempty"`

	// AnalyzerTimeout bounds each analyzer invocation, e.g. "30s".
	AnalyzerTimeout string `yaml:"analyzer_timeout,omitempty"`

	// ExiftoolPath locates the external metadata tool.
	ExiftoolPath string `yaml:"exiftool_path,omitempty"`

	// ELAQuality is the JPEG quality for the error-level re-encode.
	ELAQuality int `yaml:"ela_quality,omitempty"`

	// ELABenignThreshold is the benign mean error level.
	ELABenignThreshold float64 `yaml:"ela_benign_threshold,omitempty"`

	// SuspiciousThreshold is the overall score flagged as suspicious.
	SuspiciousThreshold float64 `yaml:"suspicious_threshold,omitempty"`

	// KeepArtifacts preserves analyzer artifacts in the output directory.
	KeepArtifacts bool `yaml:"keep_artifacts,omitempty"`

	// DBDir is the scan-archive database directory.
	DBDir string `yaml:"db_dir,omitempty"`
}

// LoadConfigFile loads a FileConfig from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound. Callers decide
// how to handle that based on whether the path was explicitly specified.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .pixelproof in the current directory
// 3. Look for .pixelproof in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if
// not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply overlays the file configuration onto c. Only fields present in the
// file change c, so CLI flags applied afterwards still win over the file.
func (c *Config) Apply(fc *FileConfig) error {
	if fc == nil {
		return nil
	}

	if len(fc.Analyzers) > 0 {
		c.Analyzers = fc.Analyzers
	}
	if len(fc.Formats) > 0 {
		c.Formats = fc.Formats
	}
	if fc.EvidenceDir != "" {
		c.EvidenceDir = fc.EvidenceDir
	}
	if fc.ScratchDir != "" {
		c.ScratchDir = fc.ScratchDir
	}
	if fc.OutputDir != "" {
		c.OutputDir = fc.OutputDir
	}
	if fc.Format != "" {
		c.Format = ReportFormat(fc.Format)
	}
	if fc.Parallel {
		c.Parallel = true
	}
	if fc.Concurrency > 0 {
		c.Concurrency = fc.Concurrency
	}
	if fc.AnalyzerTimeout != "" {
		d, err := time.ParseDuration(fc.AnalyzerTimeout)
		if err != nil {
			return fmt.Errorf("parse analyzer_timeout: %w", err)
		}
		c.AnalyzerTimeout = d
	}
	if fc.ExiftoolPath != "" {
		c.ExiftoolPath = fc.ExiftoolPath
	}
	if fc.ELAQuality > 0 {
		c.ELAQuality = fc.ELAQuality
	}
	if fc.ELABenignThreshold > 0 {
		c.ELABenignThreshold = fc.ELABenignThreshold
	}
	if fc.SuspiciousThreshold > 0 {
		c.SuspiciousThreshold = fc.SuspiciousThreshold
	}
	if fc.KeepArtifacts {
		c.KeepArtifacts = true
	}
	if fc.DBDir != "" {
		c.DBDir = fc.DBDir
		c.SaveToDB = true
	}

	return nil
}

// DefaultConfigYAML is the commented template written by the init command.
const DefaultConfigYAML = `# pixelproof configuration file
#
# Every setting is optional. Remove the leading '#' to activate a line.

# Enable or disable individual analyzers. Omitting the block runs all of
# them. Names: metadata, ela, clone_detection, noise, jpeg_quality,
# luminance, edge, splicing.
#analyzers:
#  metadata: true
#  ela: true
#  clone_detection: true
#  noise: true
#  jpeg_quality: true
#  luminance: true
#  edge: true
#  splicing: true

# Acceptable input image formats.
#formats: [jpeg, png, gif, webp, bmp, tiff]

# Where verified working copies are stored.
#evidence_dir: ~/.local/share/pixelproof/evidence

# Parent directory for run-scoped scratch space.
#scratch_dir: ~/.cache/pixelproof

# Report format: simple, json, markdown, or all.
#format: simple

# Run analyzers concurrently on a bounded worker pool.
#parallel: false
#concurrency: 4

# Per-analyzer time limit (Go duration syntax).
#analyzer_timeout: 30s

# External metadata tool. Leave unset to use the bundled EXIF parser only.
#exiftool_path: exiftool

# Error-level analysis settings.
#ela_quality: 90
#ela_benign_threshold: 10.0

# Overall score at or above which a scan is flagged as suspicious.
#suspicious_threshold: 40.0

# Keep analyzer artifacts (heat maps, overlays) in the output directory.
#keep_artifacts: false

# Archive consolidated reports in a SQLite database under this directory.
#db_dir: ~/.local/share/pixelproof
`

// WriteDefaultConfigFile writes the commented template to path.
// It refuses to overwrite an existing file.
func WriteDefaultConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	return os.WriteFile(path, []byte(DefaultConfigYAML), 0o600)
}
