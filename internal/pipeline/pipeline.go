package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/pixelproof/pixelproof/internal/acquire"
	"github.com/pixelproof/pixelproof/internal/analyze"
	"github.com/pixelproof/pixelproof/internal/config"
	"github.com/pixelproof/pixelproof/internal/consolidate"
	"github.com/pixelproof/pixelproof/internal/integrity"
	"github.com/pixelproof/pixelproof/internal/model"
)

// scratchDirPerm keeps scratch directories private to the user.
const scratchDirPerm = 0o750

// Pipeline executes one forensic run over a single source image. A
// Pipeline is single-use: build one per run with New and call Run once.
type Pipeline struct {
	// cfg is the validated run configuration.
	cfg *config.Config

	// logger receives structured progress, stamped with the run id.
	logger *slog.Logger

	// version is stamped into the report metadata.
	version string

	// runID names the run in logs, the report, and kept artifacts.
	runID string

	// acquirer creates and re-verifies the working copy.
	acquirer *acquire.Service

	// coordinator runs the analyzer registry.
	coordinator *analyze.Coordinator

	// consolidator merges analyzer results into the report.
	consolidator *consolidate.Consolidator

	// mu guards state and trace.
	mu sync.Mutex

	// state is the stage the run is currently in.
	state State

	// trace is every state the run has entered, in order.
	trace []State
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline and every component
// it builds. If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithVersion sets the tool version stamped into the report metadata.
func WithVersion(version string) Option {
	return func(p *Pipeline) {
		p.version = version
	}
}

// WithRunID overrides the generated run id.
func WithRunID(runID string) Option {
	return func(p *Pipeline) {
		p.runID = runID
	}
}

// New builds a Pipeline from a validated configuration. The analyzer
// registry, acquisition service, and consolidator are all derived from
// the configuration here; Run only executes.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		version: "dev",
		runID:   uuid.NewString(),
		state:   StateIdle,
		trace:   []State{StateIdle},
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With(slog.String("run_id", p.runID))

	p.acquirer = acquire.NewService(
		acquire.WithLogger(p.logger),
		acquire.WithFormats(cfg.Formats),
	)
	p.coordinator = analyze.NewCoordinator(func(o *analyze.Options) {
		o.Timeout = cfg.AnalyzerTimeout
		o.Parallel = cfg.Parallel
		o.Concurrency = cfg.Concurrency
		o.Enabled = cfg.Analyzers
		o.ExiftoolPath = cfg.ExiftoolPath
		o.ELAQuality = cfg.ELAQuality
		o.Logger = p.logger
	})
	p.consolidator = consolidate.NewConsolidator(
		consolidate.WithLogger(p.logger),
		consolidate.WithVersion(p.version),
	)

	return p
}

// RunID returns the identifier of this run.
func (p *Pipeline) RunID() string {
	return p.runID
}

// RegisterAnalyzer adds an analyzer to the run's registry alongside the
// built-ins selected by the configuration.
func (p *Pipeline) RegisterAnalyzer(a analyze.Analyzer) {
	p.coordinator.Register(a)
}

// State returns the stage the run is currently in.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Trace returns every state the run has entered, in order, starting
// with StateIdle.
func (p *Pipeline) Trace() []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.trace)
}

// Run executes the full pipeline and returns the consolidated report.
//
// The returned error is nil whenever a report was produced, including
// runs where analyzers failed or timed out; those outcomes live inside
// the report. A non-nil error means the run aborted before consolidation
// and matches ErrIO, ErrUnsupportedFormat, ErrIntegrityViolation, or a
// context error.
func (p *Pipeline) Run(ctx context.Context) (*model.ConsolidatedReport, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	p.logger.Info("starting forensic run", slog.String("source", p.cfg.SourcePath))

	p.transition(StateVerifyingIntegrity)
	record, err := p.verifySource(ctx)
	if err != nil {
		return nil, p.fail(err)
	}

	p.transition(StateAcquiring)
	artifact, custody, err := p.acquirer.Acquire(ctx, p.cfg.SourcePath, p.cfg.EvidenceDir, *record)
	if err != nil {
		return nil, p.fail(err)
	}

	p.transition(StateAnalyzing)
	scratchDir, err := p.makeScratchDir()
	if err != nil {
		return nil, p.fail(err)
	}
	defer p.cleanupScratch(scratchDir)

	results, err := p.coordinator.Run(ctx, analyze.NewSubject(artifact, scratchDir))
	if err != nil {
		return nil, p.fail(err)
	}

	p.transition(StateConsolidating)
	info := model.ImageInfo{
		Path:      p.cfg.SourcePath,
		Format:    artifact.Format,
		Width:     artifact.Width,
		Height:    artifact.Height,
		SizeBytes: artifact.SizeBytes,
	}
	report := p.consolidator.Consolidate(p.runID, info, *record, *custody, results)

	if p.cfg.KeepArtifacts {
		if err := p.keepArtifacts(scratchDir); err != nil {
			p.logger.Warn("could not keep analyzer artifacts", slog.Any("error", err))
		}
	}

	p.transition(StateDone)
	p.logger.Info("forensic run complete",
		slog.Float64("overall_score", report.OverallScore),
		slog.String("assessment", report.Assessment),
	)
	return report, nil
}

// begin moves an idle pipeline into its first run. A pipeline that
// already ran refuses to run again.
func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return fmt.Errorf("run already started (state %s)", p.state)
	}
	return nil
}

// transition records entry into the next stage.
func (p *Pipeline) transition(next State) {
	p.mu.Lock()
	prev := p.state
	p.state = next
	p.trace = append(p.trace, next)
	p.mu.Unlock()

	p.logger.Debug("pipeline stage change",
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
	)
}

// fail moves the run into the Failed state and passes the cause through.
func (p *Pipeline) fail(err error) error {
	p.transition(StateFailed)
	p.logger.Error("forensic run aborted", slog.Any("error", err))
	return err
}

// verifySource hashes the untouched source before anything else reads
// it. The fuzzy hash is recorded when computable; sources too small or
// too uniform for TLSH leave the field empty.
func (p *Pipeline) verifySource(ctx context.Context) (*model.IntegrityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := integrity.Compute(p.cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: hash source: %w", ErrIO, err)
	}

	if fuzzy, err := integrity.FuzzyHash(p.cfg.SourcePath); err == nil {
		record.TLSH = fuzzy
	} else {
		p.logger.Debug("fuzzy hash unavailable", slog.Any("error", err))
	}

	p.logger.Info("source integrity recorded",
		slog.String("sha256", record.SHA256),
		slog.Bool("tlsh", record.TLSH != ""),
	)
	return record, nil
}

// makeScratchDir creates the per-run scratch directory for analyzer
// artifacts. An empty ScratchDir falls through to the OS temp dir.
func (p *Pipeline) makeScratchDir() (string, error) {
	if p.cfg.ScratchDir != "" {
		if err := os.MkdirAll(p.cfg.ScratchDir, scratchDirPerm); err != nil {
			return "", fmt.Errorf("%w: create scratch dir: %w", ErrIO, err)
		}
	}

	dir, err := os.MkdirTemp(p.cfg.ScratchDir, "run-"+p.shortRunID()+"-")
	if err != nil {
		return "", fmt.Errorf("%w: create scratch dir: %w", ErrIO, err)
	}
	return dir, nil
}

// cleanupScratch removes the per-run scratch directory and everything
// the analyzers wrote into it.
func (p *Pipeline) cleanupScratch(scratchDir string) {
	if err := os.RemoveAll(scratchDir); err != nil {
		p.logger.Warn("could not remove scratch dir",
			slog.String("dir", scratchDir),
			slog.Any("error", err),
		)
	}
}

// keepArtifacts copies analyzer artifacts out of the scratch directory
// into the output directory before the scratch cleanup deletes them.
func (p *Pipeline) keepArtifacts(scratchDir string) error {
	destDir := filepath.Join(p.cfg.OutputDir, p.shortRunID()+"-artifacts")
	if err := os.MkdirAll(destDir, scratchDirPerm); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return fmt.Errorf("read scratch dir: %w", err)
	}

	kept := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(scratchDir, entry.Name())) //nolint:gosec // Reading artifacts this run just wrote
		if err != nil {
			return fmt.Errorf("read artifact %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(destDir, entry.Name()), data, 0o600); err != nil {
			return fmt.Errorf("keep artifact %s: %w", entry.Name(), err)
		}
		kept++
	}

	p.logger.Info("analyzer artifacts kept",
		slog.String("dir", destDir),
		slog.Int("count", kept),
	)
	return nil
}

// shortRunID returns the first uuid group of the run id, used in scratch
// and artifact directory names.
func (p *Pipeline) shortRunID() string {
	if len(p.runID) >= 8 {
		return p.runID[:8]
	}
	return p.runID
}
