package pii

import (
	"log/slog"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive keys in notification payloads before they are
// fanned out to browser subscribers.
type Redactor struct {
	fieldsToRedact map[string]struct{} // lower-cased keys
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor for the given keys. Matching ignores case.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field != "" {
			fieldSet[field] = struct{}{}
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger.With("component", "redactor"),
	}
}

// Redact returns a copy of data with every configured key masked, including
// keys inside nested objects and arrays. data itself is not modified. The
// bool reports whether anything was masked.
func (r *Redactor) Redact(data map[string]any) (map[string]any, bool) {
	if len(r.fieldsToRedact) == 0 || len(data) == 0 {
		return data, false
	}
	out, redacted := r.redactMap(data)
	if redacted {
		r.logger.Debug("redacted notification payload")
	}
	return out, redacted
}

func (r *Redactor) redactMap(in map[string]any) (map[string]any, bool) {
	out := make(map[string]any, len(in))
	redacted := false
	for k, v := range in {
		if _, ok := r.fieldsToRedact[strings.ToLower(k)]; ok {
			out[k] = RedactedPlaceholder
			redacted = true
			continue
		}
		nv, changed := r.redactValue(v)
		out[k] = nv
		redacted = redacted || changed
	}
	return out, redacted
}

func (r *Redactor) redactValue(v any) (any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return r.redactMap(val)
	case []any:
		out := make([]any, len(val))
		redacted := false
		for i, item := range val {
			nv, changed := r.redactValue(item)
			out[i] = nv
			redacted = redacted || changed
		}
		return out, redacted
	default:
		return v, false
	}
}
