package integrity

import (
	"bufio"
	"fmt"
	"os"

	"github.com/glaslos/tlsh"
)

// FuzzyHash computes the TLSH digest of the file at path. Unlike the
// cryptographic digests, similar content yields similar digests, which lets
// the scan archive answer "have we seen something close to this before".
//
// TLSH needs a minimum amount of input with some byte variance; on files
// too small or too uniform it returns an error, which callers should treat
// as "no fuzzy hash available" rather than a failure of the run.
func FuzzyHash(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Hashing user-specified evidence is the point
	if err != nil {
		return "", fmt.Errorf("open file for fuzzy hashing: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only descriptor

	hash, err := tlsh.HashReader(bufio.NewReader(f))
	if err != nil {
		return "", fmt.Errorf("fuzzy hash: %w", err)
	}
	return hash.String(), nil
}

// FuzzyDistance compares two TLSH digest strings and returns their
// distance. Zero means identical structure; values under roughly 50 mean
// closely related content. Used by the compare command to relate two
// archived scans.
func FuzzyDistance(a, b string) (int, error) {
	ha, err := tlsh.ParseStringToTlsh(a)
	if err != nil {
		return 0, fmt.Errorf("parse fuzzy hash %q: %w", a, err)
	}
	hb, err := tlsh.ParseStringToTlsh(b)
	if err != nil {
		return 0, fmt.Errorf("parse fuzzy hash %q: %w", b, err)
	}
	return ha.Diff(hb), nil
}
