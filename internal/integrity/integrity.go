package integrity

import (
	"crypto/md5"  //nolint:gosec // Legacy registry interoperability, never sole proof
	"crypto/sha1" //nolint:gosec // Legacy registry interoperability, never sole proof
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pixelproof/pixelproof/internal/model"
)

// hashBufferSize bounds the per-read chunk so hashing a large image never
// loads the whole file into memory.
const hashBufferSize = 32 * 1024

// Compute streams the file at path through SHA-256, MD5, and SHA-1
// accumulators in one pass and returns all three digests. The record is
// purely a function of byte content.
func Compute(path string) (*model.IntegrityRecord, error) {
	f, err := os.Open(path) //nolint:gosec // Hashing user-specified evidence is the point
	if err != nil {
		return nil, fmt.Errorf("open file for hashing: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only descriptor

	sha2 := sha256.New()
	md := md5.New()   //nolint:gosec
	sha := sha1.New() //nolint:gosec

	buf := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(io.MultiWriter(sha2, md, sha), f, buf); err != nil {
		return nil, fmt.Errorf("read file for hashing: %w", err)
	}

	return &model.IntegrityRecord{
		SHA256:     hex.EncodeToString(sha2.Sum(nil)),
		MD5:        hex.EncodeToString(md.Sum(nil)),
		SHA1:       hex.EncodeToString(sha.Sum(nil)),
		ComputedAt: time.Now().UTC(),
	}, nil
}

// Verify recomputes the digests of the file at path and compares them
// against expected. It returns false when any digest differs. The error is
// non-nil only when the file cannot be read.
func Verify(path string, expected model.IntegrityRecord) (bool, error) {
	actual, err := Compute(path)
	if err != nil {
		return false, err
	}
	return actual.Equal(expected), nil
}
