package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
// The run configuration carries an API key and SMTP credentials; none of
// them may ever reach a log line, even in verbose mode.
var sensitiveKeys = map[string]bool{
	"api_key":         true,
	"api-key":         true,
	"apikey":          true,
	"password":        true,
	"passwd":          true,
	"sender_password": true,
	"secret":          true,
	"token":           true,
	"authorization":   true,
	"cookie":          true,
	"set-cookie":      true,
}

// sensitivePatterns contains value patterns masked regardless of key.
var sensitivePatterns = []*regexp.Regexp{
	// api-key query parameters embedded in logged URLs
	regexp.MustCompile(`(?i)api-key=[^&\s]+`),

	// Bearer / Basic auth header values
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// Handler wraps an slog.Handler and masks credential-bearing attributes
// before they reach the underlying handler.
//
// Design decision: a handler wrapper rather than a custom logger, so it
// composes with any slog backend (text, JSON) and with every component
// that accepts a *slog.Logger.
type Handler struct {
	inner slog.Handler
}

// NewHandler creates a Handler wrapping inner. A nil inner falls back to
// slog.Default's handler.
func NewHandler(inner slog.Handler) *Handler {
	if inner == nil {
		inner = slog.Default().Handler()
	}
	return &Handler{inner: inner}
}

// Enabled delegates to the underlying handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle masks the record's attributes and forwards it.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.inner.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added,
// masked first.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &Handler{inner: h.inner.WithAttrs(maskedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

func (h *Handler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			maskedAttrs[i] = h.maskAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		if v, masked := maskValue(a.Value.String()); masked {
			return slog.String(a.Key, v)
		}
	}
	return a
}

// maskValue masks sensitive substrings inside a value. Whole-value
// patterns (auth headers) replace the value entirely; embedded patterns
// (api-key query parameters) are replaced in place so the rest of the
// URL stays diagnosable.
func maskValue(v string) (string, bool) {
	masked := false
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(v) {
			v = pattern.ReplaceAllString(v, MaskValue)
			masked = true
		}
	}
	return v, masked
}

// NewLogger creates a *slog.Logger writing text to w with credential
// masking. Verbose selects LevelDebug; the default is LevelWarn so cron
// output stays quiet unless something needs attention.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewHandler(text))
}
