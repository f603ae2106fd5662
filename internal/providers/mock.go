package providers

import (
	"context"

	"controlplane/internal/models"
)

const (
	mockTokensIn  = 50
	mockTokensOut = 20
)

// MockAdapter returns a canned response without any network call. It
// exists for integration tests and for exercising the pipeline in
// environments without provider credentials.
type MockAdapter struct{}

// NewMockAdapter creates a mock adapter
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// Type returns the provider type
func (a *MockAdapter) Type() string {
	return models.ProviderTypeMock
}

// Invoke returns a deterministic response with fixed token usage
func (a *MockAdapter) Invoke(ctx context.Context, creds map[string]any, model string, payload map[string]any) (*Invocation, error) {
	output := map[string]any{
		"id":     "mock-completion",
		"object": "chat.completion",
		"model":  model,
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": "This is a mock response",
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     mockTokensIn,
			"completion_tokens": mockTokensOut,
			"total_tokens":      mockTokensIn + mockTokensOut,
		},
	}

	return &Invocation{
		Output:    output,
		TokensIn:  mockTokensIn,
		TokensOut: mockTokensOut,
	}, nil
}
