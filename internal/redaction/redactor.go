package redaction

import (
	"regexp"
	"strings"
)

// Placeholder replaces redacted keys and pattern matches.
const Placeholder = "[REDACTED]"

// Redactor scrubs sensitive fields and patterns from request payloads
// before they reach a provider, a log line or an audit row.
type Redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// New builds a redactor from the given rules.
func New(rules Rules) (*Redactor, error) {
	patterns, err := rules.compile()
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(rules.Keys))
	for _, k := range rules.Keys {
		keys[strings.ToLower(k)] = struct{}{}
	}

	return &Redactor{keys: keys, patterns: patterns}, nil
}

// Redact returns a scrubbed deep copy of the payload. The input and
// everything reachable from it are left untouched; the result shares
// no maps or slices with the original.
func (r *Redactor) Redact(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	return r.redactMap(payload)
}

func (r *Redactor) redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, denied := r.keys[strings.ToLower(k)]; denied {
			out[k] = Placeholder
			continue
		}
		out[k] = r.redactValue(v)
	}
	return out
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return r.redactMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.redactValue(item)
		}
		return out
	case string:
		return r.redactString(val)
	default:
		return val
	}
}

func (r *Redactor) redactString(s string) string {
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, Placeholder)
	}
	return s
}
