package providers

import (
	"context"
)

// Invocation is a normalized provider result. CostUSD is always 0 from
// adapters; pricing is the control plane's job, not the adapter's.
// Usage fields missing from the upstream response stay 0.
type Invocation struct {
	Output    map[string]any
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// Adapter is implemented by each concrete provider variant. Adapters
// are stateless singletons: decrypted credentials arrive per call and
// are never retained.
type Adapter interface {
	// Type returns the canonical provider type this adapter serves
	Type() string

	// Invoke executes one model call with the given credentials
	Invoke(ctx context.Context, creds map[string]any, model string, payload map[string]any) (*Invocation, error)
}

// credString reads an optional string credential.
func credString(creds map[string]any, key string) string {
	v, _ := creds[key].(string)
	return v
}

// requireCred reads a mandatory string credential.
func requireCred(creds map[string]any, providerType, key string) (string, error) {
	v := credString(creds, key)
	if v == "" {
		return "", &ConfigError{Provider: providerType, Reason: "missing credential " + key}
	}
	return v, nil
}

// chatMessage is the lowest common denominator of the OpenAI-style
// messages array, used when translating payloads for non-OpenAI wire
// formats.
type chatMessage struct {
	Role    string
	Content string
}

// payloadMessages extracts the messages array from an OpenAI-style
// payload. Entries without a string content are skipped.
func payloadMessages(payload map[string]any) []chatMessage {
	raw, _ := payload["messages"].([]any)
	messages := make([]chatMessage, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, ok := m["content"].(string)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		messages = append(messages, chatMessage{Role: role, Content: content})
	}
	return messages
}

// payloadFloat reads an optional numeric field from a decoded payload.
func payloadFloat(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// payloadInt reads an optional integer field from a decoded payload.
func payloadInt(payload map[string]any, key string) int {
	return int(payloadFloat(payload, key))
}
