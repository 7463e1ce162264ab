package analyze

import (
	"github.com/pixelproof/pixelproof/internal/model"
)

// Subject is everything an analyzer may look at: the verified working copy
// and derived views shared across analyzers. Analyzers must treat every
// field as read-only; derived planes they need beyond these are computed
// locally.
type Subject struct {
	// Artifact is the decoded working copy under analysis.
	Artifact *model.ImageArtifact

	// Gray is the luminance plane of the artifact, computed once and
	// shared by every pixel-statistics analyzer.
	Gray *GrayPlane

	// ScratchDir receives visual artifacts such as heat maps and overlay
	// masks. Empty means visual artifacts are skipped.
	ScratchDir string
}

// NewSubject prepares a Subject for one run, decoding the luminance plane
// up front so analyzers never repeat that work.
func NewSubject(artifact *model.ImageArtifact, scratchDir string) *Subject {
	return &Subject{
		Artifact:   artifact,
		Gray:       Grayscale(artifact.Image),
		ScratchDir: scratchDir,
	}
}
