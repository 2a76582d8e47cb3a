package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces secret values.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values are always replaced.
var sensitiveKeys = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"authorization": {},
	"password":      {},
	"token":         {},
}

// Redactor masks API keys and bearer tokens.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a Redactor with the built-in secret patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`sk-[A-Za-z0-9_\-]{8,}`),
			regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`),
		},
	}
}

// Redact masks secrets inside s.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, Redacted)
	}
	return s
}

// RedactAttr masks a, recursing into groups.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, RedactKey(a.Value.String()))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		scrubbed := make([]any, len(group))
		for i, ga := range group {
			scrubbed[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, scrubbed...)
	default:
		return a
	}
}

// RedactKey returns a display form of a secret that keeps at most its last
// four characters, e.g. "...c3d4". Short or empty keys are fully masked.
func RedactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) < 12 {
		return Redacted
	}
	return "..." + key[len(key)-4:]
}
