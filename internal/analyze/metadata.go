package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	exif "github.com/dsoprea/go-exif/v3"

	"github.com/pixelproof/pixelproof/internal/model"
)

// metadataToolTimeout bounds one exiftool invocation. The analyzer's own
// deadline still applies on top.
const metadataToolTimeout = 30 * time.Second

// bookkeepingTags are exiftool outputs about the file system entry rather
// than the image, dropped before analysis.
var bookkeepingTags = map[string]bool{
	"SourceFile":      true,
	"ExifToolVersion": true,
	"FileName":        true,
	"Directory":       true,
	"FilePermissions": true,
}

// manipulationIndicators are lowercase substrings of tag values that point
// at editing software or generative tooling. Matched case-insensitively
// against every extracted value.
var manipulationIndicators = []string{
	"photoshop",
	"lightroom",
	"gimp",
	"paint.net",
	"affinity photo",
	"pixelmator",
	"corel",
	"luminar",
	"snapseed",
	"picsart",
	"facetune",
	"faceapp",
	"canva",
	"stable diffusion",
	"midjourney",
	"dall-e",
	"dalle",
	"firefly",
	"generative fill",
	"ai generated",
	"neural filter",
	"topaz",
	"remini",
	"upscayl",
	"waifu2x",
	"esrgan",
}

// IndicatorHit records one manipulation indicator found in a tag value.
type IndicatorHit struct {
	// Tag is the metadata tag whose value matched.
	Tag string `json:"tag"`

	// Indicator is the dictionary entry that matched.
	Indicator string `json:"indicator"`
}

// MetadataAnalyzer extracts embedded metadata and scans it for traces of
// editing or generative software.
//
// Extraction prefers exiftool when the binary is on the path, because it
// reads far more tag families (XMP, IPTC, maker notes) than any native
// parser. When exiftool is absent the analyzer falls back to walking the
// EXIF segment natively. A present-but-broken exiftool is an external
// tool failure, not a silent fallback.
//
// This analyzer checks for:
//   - Editing software names in Software/CreatorTool/History tags
//   - Generative-AI markers in any tag value
//   - The overall tag surface (count and raw values) for the report
type MetadataAnalyzer struct {
	// exiftoolPath is the binary to invoke, usually just "exiftool".
	exiftoolPath string

	// indicators is the dictionary behind matcher, kept for index lookup.
	indicators []string

	// matcher scans tag values for all indicators in one pass.
	matcher *ahocorasick.Matcher
}

// NewMetadataAnalyzer creates a MetadataAnalyzer using the given exiftool
// binary. An empty path disables the external tool and forces the native
// EXIF parser.
func NewMetadataAnalyzer(exiftoolPath string) *MetadataAnalyzer {
	return &MetadataAnalyzer{
		exiftoolPath: exiftoolPath,
		indicators:   manipulationIndicators,
		matcher:      ahocorasick.NewStringMatcher(manipulationIndicators),
	}
}

// Name returns the analyzer name.
func (a *MetadataAnalyzer) Name() string {
	return "metadata"
}

// Category returns the analyzer category.
func (a *MetadataAnalyzer) Category() string {
	return CategoryProvenance
}

// Analyze extracts the metadata tags and scans them for indicators.
func (a *MetadataAnalyzer) Analyze(ctx context.Context, subject *Subject) (*model.AnalyzerResult, error) {
	tags, extractor, err := a.extractTags(ctx, subject)
	if err != nil {
		return nil, err
	}

	hits := a.scanIndicators(tags)

	suspicion := model.SuspicionLow
	if len(hits) > 0 {
		suspicion = model.SuspicionModerate
	}

	return &model.AnalyzerResult{
		Status:    model.StatusSuccess,
		Suspicion: suspicion,
		Findings: map[string]any{
			"extractor":      extractor,
			"tag_count":      len(tags),
			"tags":           tags,
			"indicator_hits": hits,
			"summary":        metadataSummary(len(tags), hits),
		},
	}, nil
}

// extractTags returns the tag map and the name of the extractor used.
func (a *MetadataAnalyzer) extractTags(ctx context.Context, subject *Subject) (map[string]string, string, error) {
	if a.exiftoolPath == "" {
		tags, err := a.nativeTags(subject.Artifact.Data)
		if err != nil {
			return nil, "", err
		}
		return tags, "native_exif", nil
	}

	if _, err := exec.LookPath(a.exiftoolPath); err == nil {
		tags, err := a.exiftoolTags(ctx, subject.Artifact.Path)
		if err != nil {
			return nil, "", err
		}
		return tags, "exiftool", nil
	}

	tags, err := a.nativeTags(subject.Artifact.Data)
	if err != nil {
		return nil, "", err
	}
	return tags, "native_exif", nil
}

// exiftoolTags runs exiftool in JSON mode and flattens the first record.
func (a *MetadataAnalyzer) exiftoolTags(ctx context.Context, path string) (map[string]string, error) {
	tctx, cancel := context.WithTimeout(ctx, metadataToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, a.exiftoolPath, "-j", "-G", "-a", "-s", path) //nolint:gosec // Binary path comes from config, argument is the working copy
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: exiftool: %w", ErrExternalTool, err)
	}

	var docs []map[string]any
	if err := json.Unmarshal(out, &docs); err != nil {
		return nil, fmt.Errorf("%w: parse exiftool output: %w", ErrExternalTool, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: exiftool produced no records", ErrExternalTool)
	}

	tags := make(map[string]string, len(docs[0]))
	for key, value := range docs[0] {
		if bookkeepingTags[bareTagName(key)] {
			continue
		}
		tags[key] = fmt.Sprint(value)
	}
	return tags, nil
}

// bareTagName strips the -G group prefix ("File:FileName" -> "FileName").
func bareTagName(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// nativeTags walks the EXIF segment of the encoded bytes. An image with
// no EXIF segment yields an empty tag map, not an error.
func (a *MetadataAnalyzer) nativeTags(data []byte) (map[string]string, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("extract exif segment: %w", err)
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("parse exif entries: %w", err)
	}

	tags := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.TagName == "" {
			continue
		}
		tags["EXIF:"+entry.TagName] = entry.Formatted
	}
	return tags, nil
}

// scanIndicators matches every tag value against the indicator dictionary.
// Tags are visited in sorted order so hit lists are deterministic.
func (a *MetadataAnalyzer) scanIndicators(tags map[string]string) []IndicatorHit {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	hits := make([]IndicatorHit, 0)
	for _, key := range keys {
		value := strings.ToLower(tags[key])
		for _, idx := range a.matcher.MatchThreadSafe([]byte(value)) {
			hits = append(hits, IndicatorHit{Tag: key, Indicator: a.indicators[idx]})
		}
	}
	return hits
}

// metadataSummary builds the one-line headline for the report.
func metadataSummary(tagCount int, hits []IndicatorHit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("%d metadata tags, no manipulation indicators", tagCount)
	}
	return fmt.Sprintf("%d metadata tags, %d manipulation indicator hit(s) including %q in %s",
		tagCount, len(hits), hits[0].Indicator, hits[0].Tag)
}

// Ensure MetadataAnalyzer implements Analyzer.
var _ Analyzer = (*MetadataAnalyzer)(nil)
