package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/djherbis/times"

	"github.com/pixelproof/pixelproof/internal/integrity"
	"github.com/pixelproof/pixelproof/internal/model"
)

const (
	// copyBufferSize bounds the per-read chunk during the byte copy.
	copyBufferSize = 32 * 1024

	// timestampLayout prefixes every working-copy name, so copies sort
	// chronologically in the evidence directory.
	timestampLayout = "20060102_150405"

	// evidenceDirPerm keeps evidence directories private to the user.
	evidenceDirPerm = 0o750

	// evidenceFilePerm keeps working copies read-writable by owner only.
	evidenceFilePerm = 0o600
)

// Service performs evidentiary acquisitions. It validates the source,
// creates the working copy, re-verifies it against the source digests,
// and assembles the custody record.
type Service struct {
	// logger receives structured progress and diagnostics.
	logger *slog.Logger

	// formats is the accepted input format set.
	formats []string
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFormats replaces the accepted input format set.
func WithFormats(formats []string) Option {
	return func(s *Service) {
		s.formats = formats
	}
}

// NewService creates a new acquisition Service with the given options.
func NewService(opts ...Option) *Service {
	s := &Service{
		formats: []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Acquire validates the source image, copies it byte-for-byte into destDir
// under a timestamped collision-free name, re-hashes the copy from disk,
// and compares it against expected (the digests of the source, computed by
// the caller immediately beforehand).
//
// On success it returns the decoded working copy and its custody record.
// The source is never written to. Failure modes: ErrSourceUnreadable,
// ErrUnsupportedFormat, ErrIntegrityViolation; all are fatal to the run.
func (s *Service) Acquire(ctx context.Context, sourcePath, destDir string, expected model.IntegrityRecord) (*model.ImageArtifact, *model.CustodyRecord, error) {
	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	info, err := os.Stat(absSource)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: %s is not a regular file", ErrSourceUnreadable, absSource)
	}

	format, err := SniffFormat(absSource)
	if err != nil {
		return nil, nil, err
	}
	if !slices.Contains(s.formats, format) {
		return nil, nil, fmt.Errorf("%w: %s is not in the accepted set %v", ErrUnsupportedFormat, format, s.formats)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	copyPath, preserved, err := s.createWorkingCopy(absSource, destDir)
	if err != nil {
		return nil, nil, err
	}

	ok, err := integrity.Verify(copyPath, expected)
	if err != nil {
		s.discardCopy(copyPath)
		return nil, nil, fmt.Errorf("re-hash working copy: %w", err)
	}
	if !ok {
		s.discardCopy(copyPath)
		s.logger.Error("working copy digests do not match source",
			"source", absSource,
			"copy", copyPath,
		)
		return nil, nil, fmt.Errorf("%w: %s", ErrIntegrityViolation, copyPath)
	}

	artifact, err := s.decodeArtifact(copyPath, format, info.Size())
	if err != nil {
		s.discardCopy(copyPath)
		return nil, nil, err
	}

	custody := &model.CustodyRecord{
		OriginalPath:      absSource,
		CopyPath:          copyPath,
		AcquiredAt:        time.Now().UTC(),
		PreservedMetadata: preserved,
		SizeBytes:         info.Size(),
		SourceModTime:     info.ModTime(),
		Host:              CollectHostContext(),
	}
	if ts, err := times.Stat(absSource); err == nil {
		custody.SourceModTime = ts.ModTime()
		custody.SourceAccessTime = ts.AccessTime()
		if ts.HasChangeTime() {
			custody.SourceChangeTime = ts.ChangeTime()
		}
		if ts.HasBirthTime() {
			custody.SourceBirthTime = ts.BirthTime()
		}
	} else {
		s.logger.Debug("source timestamps unavailable", "source", absSource, "error", err)
	}

	s.logger.Info("acquisition complete",
		"source", absSource,
		"copy", copyPath,
		"format", artifact.Format,
		"size_bytes", info.Size(),
	)

	return artifact, custody, nil
}

// createWorkingCopy copies the source byte-for-byte into destDir under a
// timestamped name, probing with O_EXCL until an unclaimed name is found.
// The returned bool reports whether the source's file timestamps were
// carried over to the copy.
func (s *Service) createWorkingCopy(sourcePath, destDir string) (string, bool, error) {
	if err := os.MkdirAll(destDir, evidenceDirPerm); err != nil {
		return "", false, fmt.Errorf("create evidence directory: %w", err)
	}

	src, err := os.Open(sourcePath) //nolint:gosec // Copying user-specified evidence is the point
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	defer src.Close() //nolint:errcheck // Read-only descriptor

	copyPath, dst, err := claimCopyFile(sourcePath, destDir)
	if err != nil {
		return "", false, err
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(dst, src, buf); err != nil {
		dst.Close() //nolint:errcheck,gosec // Already failing
		s.discardCopy(copyPath)
		return "", false, fmt.Errorf("copy evidence bytes: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close() //nolint:errcheck,gosec // Already failing
		s.discardCopy(copyPath)
		return "", false, fmt.Errorf("flush working copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		s.discardCopy(copyPath)
		return "", false, fmt.Errorf("close working copy: %w", err)
	}

	preserved := false
	if ts, err := times.Stat(sourcePath); err == nil {
		if err := os.Chtimes(copyPath, ts.AccessTime(), ts.ModTime()); err == nil {
			preserved = true
		}
	}

	return copyPath, preserved, nil
}

// claimCopyFile reserves a collision-free destination name. The timestamp
// prefix orders copies chronologically; a numeric suffix resolves clashes
// when the same file is acquired twice within a second.
func claimCopyFile(sourcePath, destDir string) (string, *os.File, error) {
	stamp := time.Now().Format(timestampLayout)
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	name := fmt.Sprintf("%s_%s", stamp, base)
	for attempt := 1; ; attempt++ {
		copyPath := filepath.Join(destDir, name)
		dst, err := os.OpenFile(copyPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, evidenceFilePerm) //nolint:gosec
		if err == nil {
			return copyPath, dst, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, fmt.Errorf("create working copy: %w", err)
		}
		name = fmt.Sprintf("%s_%s_%d%s", stamp, stem, attempt, ext)
	}
}

// decodeArtifact loads the verified copy into memory and decodes its
// pixels. The artifact keeps both the encoded bytes and the decoded image
// so analyzers never touch the filesystem again.
func (s *Service) decodeArtifact(copyPath, sniffedFormat string, size int64) (*model.ImageArtifact, error) {
	data, err := os.ReadFile(copyPath) //nolint:gosec // Reading the copy this service just created
	if err != nil {
		return nil, fmt.Errorf("read working copy: %w", err)
	}

	img, decodedFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrUnsupportedFormat, sniffedFormat, err)
	}

	bounds := img.Bounds()
	return &model.ImageArtifact{
		Path:      copyPath,
		Format:    decodedFormat,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SizeBytes: size,
		Data:      data,
		Image:     img,
	}, nil
}

// discardCopy removes a working copy that failed verification or decoding.
// An unverifiable copy has no evidentiary value and must not linger in the
// evidence directory.
func (s *Service) discardCopy(copyPath string) {
	if err := os.Remove(copyPath); err != nil {
		s.logger.Warn("could not remove rejected working copy", "copy", copyPath, "error", err)
	}
}
