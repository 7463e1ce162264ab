package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// scrubReplacement substitutes each control character found in a logged
// string attribute. Replacing rather than deleting keeps the tampering
// visible in the log.
const scrubReplacement = '�'

// ScrubHandler wraps an slog.Handler to neutralize control characters in
// string attributes. Evidence-derived strings (EXIF values, embedded
// software names) pass through logs; a crafted value must not be able to
// inject terminal escape sequences or split log lines. The wrapper works
// with any underlying handler, text or JSON.
type ScrubHandler struct {
	// handler is the underlying slog handler that receives scrubbed records.
	handler slog.Handler
}

// NewScrubHandler creates a new ScrubHandler wrapping the given handler.
// If handler is nil, the returned ScrubHandler wraps slog.Default().Handler().
func NewScrubHandler(handler slog.Handler) *ScrubHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &ScrubHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *ScrubHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle scrubs the record's attributes and passes it to the underlying
// handler.
func (h *ScrubHandler) Handle(ctx context.Context, r slog.Record) error {
	scrubbed := slog.NewRecord(r.Time, r.Level, scrubValue(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(h.scrubAttr(a))
		return true
	})

	return h.handler.Handle(ctx, scrubbed)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are scrubbed before being added.
func (h *ScrubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbedAttrs[i] = h.scrubAttr(a)
	}
	return &ScrubHandler{handler: h.handler.WithAttrs(scrubbedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *ScrubHandler) WithGroup(name string) slog.Handler {
	return &ScrubHandler{handler: h.handler.WithGroup(name)}
}

// scrubAttr scrubs a single attribute, recursively handling groups.
func (h *ScrubHandler) scrubAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		scrubbedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			scrubbedAttrs[i] = h.scrubAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(scrubbedAttrs...)}
	}

	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, scrubValue(a.Value.String()))
	}

	return a
}

// scrubValue replaces every control character in s. Tabs survive, they are
// common in extracted metadata and carry no injection risk on their own.
func scrubValue(s string) string {
	if !needsScrub(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return scrubReplacement
		}
		return r
	}, s)
}

// needsScrub reports whether s contains at least one control character.
// The common case is a clean string; checking first avoids allocating.
func needsScrub(s string) bool {
	for _, r := range s {
		if isControl(r) {
			return true
		}
	}
	return false
}

// isControl reports whether r is a control character other than tab.
// This covers C0 controls (including ESC, which opens ANSI sequences),
// DEL, and the C1 range some encodings smuggle through.
func isControl(r rune) bool {
	if r == '\t' {
		return false
	}
	return r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

// NewForensicLogger creates a new slog.Logger for scan runs.
// Output is the standard text format with control-character scrubbing.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
//
// The returned logger is meant to be passed explicitly into components
// that accept *slog.Logger.
func NewForensicLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	textHandler := slog.NewTextHandler(w, opts)
	return slog.New(NewScrubHandler(textHandler))
}

// NewForensicJSONLogger creates a new slog.Logger that outputs JSON with
// the same scrubbing. Useful for structured log aggregation.
func NewForensicJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	jsonHandler := slog.NewJSONHandler(w, opts)
	return slog.New(NewScrubHandler(jsonHandler))
}
