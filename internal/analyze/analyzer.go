package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pixelproof/pixelproof/internal/model"
)

// Analyzer category constants.
const (
	// CategoryProvenance is used by analyzers that read embedded metadata.
	CategoryProvenance = "provenance"
	// CategoryCompression is used by analyzers that study codec artifacts.
	CategoryCompression = "compression"
	// CategoryPixelStatistics is used by analyzers over pixel-level statistics.
	CategoryPixelStatistics = "pixel_statistics"
	// CategoryCopyMove is used by analyzers that search for duplicated regions.
	CategoryCopyMove = "copy_move"
	// CategoryComposite is used by analyzers that fuse several evidence maps.
	CategoryComposite = "composite"
)

// Analyzer is the interface every forensic check implements. Analyzers are
// stateless across invocations and read-only with respect to the subject.
type Analyzer interface {
	// Name returns the analyzer's registry name. It keys the report's
	// analysis mapping, so it must be unique and stable.
	Name() string

	// Category returns the analyzer's evidence category.
	Category() string

	// Analyze runs the check against the subject. A returned error marks
	// the result failed; it never aborts the run.
	Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error)
}

// Options configures the coordinator and the built-in analyzers.
type Options struct {
	// Timeout is the per-analyzer deadline. An analyzer still working when
	// it expires is recorded as status timeout.
	Timeout time.Duration

	// Parallel runs analyzers on a bounded worker pool instead of
	// sequentially in registry order.
	Parallel bool

	// Concurrency bounds the worker pool in parallel mode.
	Concurrency int

	// Enabled selects the analyzers to register by name. Empty means all
	// built-in analyzers run.
	Enabled map[string]bool

	// ExiftoolPath locates the exiftool binary for the metadata analyzer.
	ExiftoolPath string

	// ELAQuality is the JPEG re-encode quality for error level analysis.
	ELAQuality int

	// Logger receives structured progress and diagnostics.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultOptions returns the coordinator defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		Concurrency:  4,
		ExiftoolPath: "exiftool",
		ELAQuality:   90,
	}
}

// Coordinator owns the analyzer registry and runs every registered
// analyzer against one subject per call. Failures stay inside the failing
// analyzer's result: the coordinator guarantees one result per registered
// analyzer no matter what the analyzers do.
type Coordinator struct {
	// analyzers is the registry, in registration order.
	analyzers []Analyzer

	// options configures execution behavior.
	options Options

	// logger receives structured progress and diagnostics.
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator with the built-in analyzers
// registered, filtered by the Enabled set.
func NewCoordinator(opts ...func(*Options)) *Coordinator {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		analyzers: make([]Analyzer, 0),
		options:   options,
		logger:    logger,
	}

	builtins := []Analyzer{
		NewMetadataAnalyzer(options.ExiftoolPath),
		NewELAAnalyzer(options.ELAQuality),
		NewCloneAnalyzer(),
		NewNoiseAnalyzer(),
		NewJPEGQualityAnalyzer(),
		NewLuminanceAnalyzer(),
		NewEdgeAnalyzer(),
		NewSplicingAnalyzer(),
	}
	for _, a := range builtins {
		if analyzerEnabled(options.Enabled, a.Name()) {
			c.Register(a)
		}
	}

	return c
}

// analyzerEnabled reports whether name is selected. An empty set selects
// everything.
func analyzerEnabled(enabled map[string]bool, name string) bool {
	if len(enabled) == 0 {
		return true
	}
	return enabled[name]
}

// Register adds an analyzer to the registry.
func (c *Coordinator) Register(a Analyzer) {
	c.analyzers = append(c.analyzers, a)
}

// AnalyzerNames returns the registered names in registry order.
func (c *Coordinator) AnalyzerNames() []string {
	names := make([]string, 0, len(c.analyzers))
	for _, a := range c.analyzers {
		names = append(names, a.Name())
	}
	return names
}

// Run executes every registered analyzer against the subject and returns
// one result per analyzer, keyed by name. Sequential in registry order by
// default; bounded-parallel when Options.Parallel is set. A cancelled run
// context returns the results gathered so far along with the context
// error.
func (c *Coordinator) Run(ctx context.Context, subject *Subject) (map[string]*model.AnalyzerResult, error) {
	results := make(map[string]*model.AnalyzerResult, len(c.analyzers))

	if c.options.Parallel {
		return c.runParallel(ctx, subject, results)
	}

	for _, a := range c.analyzers {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		results[a.Name()] = c.runOne(ctx, a, subject)
	}
	return results, nil
}

// runParallel fans the registry out over an errgroup worker pool. Worker
// functions never return errors: failures are already folded into results,
// and one analyzer must not cancel another.
func (c *Coordinator) runParallel(ctx context.Context, subject *Subject, results map[string]*model.AnalyzerResult) (map[string]*model.AnalyzerResult, error) {
	concurrency := c.options.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, a := range c.analyzers {
		g.Go(func() error {
			result := c.runOne(gctx, a, subject)

			mu.Lock()
			results[a.Name()] = result
			mu.Unlock()
			return nil
		})
	}

	g.Wait() //nolint:errcheck // Workers never return errors
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// runOne executes a single analyzer under the per-analyzer deadline and
// converts every possible misbehavior (error return, panic, overrun,
// missing result) into a well-formed AnalyzerResult.
func (c *Coordinator) runOne(ctx context.Context, a Analyzer, subject *Subject) *model.AnalyzerResult {
	started := time.Now().UTC()

	actx, cancel := context.WithTimeout(ctx, c.options.Timeout)
	defer cancel()

	c.logger.Info("running analyzer", "analyzer", a.Name(), "category", a.Category())

	done := make(chan *model.AnalyzerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- model.NewFailedResult(a.Name(), started, fmt.Errorf("%w: panic: %v", ErrAnalyzerFailure, r))
			}
		}()

		result, err := a.Analyze(actx, subject)
		switch {
		case err != nil:
			done <- model.NewFailedResult(a.Name(), started, err)
		case result == nil:
			done <- model.NewFailedResult(a.Name(), started, fmt.Errorf("%w: analyzer returned no result", ErrAnalyzerFailure))
		default:
			result.Analyzer = a.Name()
			result.StartedAt = started
			result.DurationMS = time.Since(started).Milliseconds()
			done <- result
		}
	}()

	select {
	case result := <-done:
		if result.Status == model.StatusFailed {
			c.logger.Error("analyzer failed",
				"analyzer", a.Name(),
				"error", result.ErrorMessage,
			)
		} else {
			c.logger.Debug("analyzer completed",
				"analyzer", a.Name(),
				"suspicion", result.Suspicion.String(),
				"duration_ms", result.DurationMS,
			)
		}
		return result
	case <-actx.Done():
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("analyzer timed out",
				"analyzer", a.Name(),
				"timeout", c.options.Timeout,
				"error", ErrTimeout,
			)
			return model.NewTimeoutResult(a.Name(), started, c.options.Timeout)
		}
		return model.NewFailedResult(a.Name(), started, actx.Err())
	}
}
