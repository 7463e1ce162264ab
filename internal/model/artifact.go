package model

import "image"

// ImageArtifact is the working copy handed to every analyzer: the raw bytes
// of the verified copy plus its decoded pixels. It is created once per run
// by the acquisition service and treated as read-only from then on. Nothing
// may mutate it; analyzers that need derived data (grayscale planes,
// residual maps) build their own from it.
type ImageArtifact struct {
	// Path is the absolute path of the verified working copy on disk.
	Path string `json:"path"`

	// Format is the detected image format (jpeg, png, gif, webp, bmp, tiff).
	Format string `json:"format"`

	// Width is the pixel width of the decoded image.
	Width int `json:"width"`

	// Height is the pixel height of the decoded image.
	Height int `json:"height"`

	// SizeBytes is the byte length of the encoded file.
	SizeBytes int64 `json:"size_bytes"`

	// Data holds the encoded file bytes. Analyzers that work on the
	// compressed stream (quantization tables, embedded metadata) read
	// these instead of re-opening CopyPath.
	Data []byte `json:"-"`

	// Image is the decoded pixel data shared by all analyzers.
	Image image.Image `json:"-"`
}

// Bounds returns the pixel bounds of the decoded image.
func (a *ImageArtifact) Bounds() image.Rectangle {
	if a.Image == nil {
		return image.Rectangle{}
	}
	return a.Image.Bounds()
}

// IsJPEG reports whether the artifact's encoded form is a JPEG stream.
func (a *ImageArtifact) IsJPEG() bool {
	return a.Format == "jpeg" || a.Format == "jpg"
}
