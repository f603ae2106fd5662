package redaction

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Rules configures what the redactor scrubs: field names replaced
// wholesale and regex patterns rewritten inside string values.
type Rules struct {
	// Keys are matched case-insensitively against map keys.
	Keys []string `yaml:"keys"`
	// Patterns are applied to every string value.
	Patterns []string `yaml:"patterns"`
}

// DefaultRules covers credentials and the common PII shapes: emails,
// US SSNs and 13-19 digit card numbers.
func DefaultRules() Rules {
	return Rules{
		Keys: []string{
			"password",
			"secret",
			"apiKey",
			"token",
			"authorization",
			"ssn",
			"creditCard",
		},
		Patterns: []string{
			`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`,
			`\b\d{3}-\d{2}-\d{4}\b`,
			`\b\d{13,19}\b`,
		},
	}
}

// LoadRules reads a YAML rules file. Lists present in the file replace
// the corresponding defaults; absent lists keep them.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	var loaded Rules
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules := DefaultRules()
	if loaded.Keys != nil {
		rules.Keys = loaded.Keys
	}
	if loaded.Patterns != nil {
		rules.Patterns = loaded.Patterns
	}

	return rules, nil
}

func (r Rules) compile() ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(r.Patterns))
	for _, p := range r.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
