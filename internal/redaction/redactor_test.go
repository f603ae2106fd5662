package redaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultRedactor(t *testing.T) *Redactor {
	r, err := New(DefaultRules())
	require.NoError(t, err)
	return r
}

func TestRedactor_DeniedKeys(t *testing.T) {
	r := newDefaultRedactor(t)

	out := r.Redact(map[string]any{
		"model":    "gpt-4o",
		"password": "hunter2",
		"APIKEY":   "sk-live",
		"nested": map[string]any{
			"Token": "abc",
			"safe":  "value",
		},
	})

	assert.Equal(t, "gpt-4o", out["model"])
	assert.Equal(t, Placeholder, out["password"])
	assert.Equal(t, Placeholder, out["APIKEY"])

	nested := out["nested"].(map[string]any)
	assert.Equal(t, Placeholder, nested["Token"])
	assert.Equal(t, "value", nested["safe"])
}

func TestRedactor_Patterns(t *testing.T) {
	r := newDefaultRedactor(t)

	out := r.Redact(map[string]any{
		"messages": []any{
			map[string]any{
				"role":    "user",
				"content": "mail me at alice@example.com, ssn 123-45-6789, card 4111111111111111",
			},
		},
	})

	content := out["messages"].([]any)[0].(map[string]any)["content"].(string)
	assert.NotContains(t, content, "alice@example.com")
	assert.NotContains(t, content, "123-45-6789")
	assert.NotContains(t, content, "4111111111111111")
	assert.Contains(t, content, Placeholder)
}

// The scrubbed copy must not alias the original: mutating one side
// never shows up on the other.
func TestRedactor_ReturnsIndependentCopy(t *testing.T) {
	r := newDefaultRedactor(t)

	inner := map[string]any{"content": "hello"}
	payload := map[string]any{
		"messages": []any{inner},
		"password": "hunter2",
	}

	out := r.Redact(payload)

	// Original is untouched, including the denied key.
	assert.Equal(t, "hunter2", payload["password"])
	assert.Equal(t, "hello", inner["content"])

	// Mutations on the copy do not leak back.
	out["messages"].([]any)[0].(map[string]any)["content"] = "mutated"
	assert.Equal(t, "hello", inner["content"])

	// And vice versa.
	inner["content"] = "changed"
	assert.Equal(t, "mutated", out["messages"].([]any)[0].(map[string]any)["content"])
}

func TestRedactor_NonStringValuesPassThrough(t *testing.T) {
	r := newDefaultRedactor(t)

	out := r.Redact(map[string]any{
		"temperature": 0.7,
		"max_tokens":  256,
		"stream":      false,
		"stop":        nil,
	})

	assert.Equal(t, 0.7, out["temperature"])
	assert.Equal(t, 256, out["max_tokens"])
	assert.Equal(t, false, out["stream"])
	assert.Nil(t, out["stop"])
}

func TestRedactor_NilPayload(t *testing.T) {
	r := newDefaultRedactor(t)
	assert.Nil(t, r.Redact(nil))
}

func TestLoadRules(t *testing.T) {
	t.Run("overrides listed sections", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keys:\n  - internalId\n"), 0o600))

		rules, err := LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"internalId"}, rules.Keys)
		// Patterns keep their defaults.
		assert.Equal(t, DefaultRules().Patterns, rules.Patterns)

		r, err := New(rules)
		require.NoError(t, err)

		out := r.Redact(map[string]any{"internalId": "x", "password": "y"})
		assert.Equal(t, Placeholder, out["internalId"])
		assert.Equal(t, "y", out["password"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := New(Rules{Patterns: []string{"("}})
		assert.Error(t, err)
	})
}
