package acquire

import (
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"

	// Decoder registration for every format the acquisition accepts.
	// image.Decode and image.DecodeConfig see only registered formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// sniffLength is how many leading bytes the magic-byte matcher needs to
// classify every type it knows.
const sniffLength = 261

// SniffFormat identifies the image format of the file at path from its
// magic bytes alone. The file extension never participates: evidence
// files are routinely misnamed. Returns the canonical format name
// (jpeg, png, gif, webp, bmp, tiff) or ErrUnsupportedFormat when the
// content is not a recognizable image.
func SniffFormat(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Inspecting user-specified evidence is the point
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}
	defer f.Close() //nolint:errcheck // Read-only descriptor

	head := make([]byte, sniffLength)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: %w", ErrSourceUnreadable, err)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if kind == filetype.Unknown {
		return "", fmt.Errorf("%w: unrecognized magic bytes", ErrUnsupportedFormat)
	}

	format := canonicalFormat(kind.Extension)
	if format == "" {
		return "", fmt.Errorf("%w: %s is not an image", ErrUnsupportedFormat, kind.MIME.Value)
	}
	return format, nil
}

// canonicalFormat maps the matcher's extension names onto the decoder
// registry's format names. Non-image types map to the empty string.
func canonicalFormat(ext string) string {
	switch ext {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	case "jpeg", "png", "gif", "webp", "bmp", "tiff":
		return ext
	default:
		return ""
	}
}
