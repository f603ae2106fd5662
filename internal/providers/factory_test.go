package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controlplane/internal/models"
)

func TestFactory_Resolve(t *testing.T) {
	factory := NewFactory(5 * time.Second)

	tests := []struct {
		input    string
		wantType string
	}{
		{"openai", models.ProviderTypeOpenAI},
		{"OpenAI", models.ProviderTypeOpenAI},
		{"openai-compatible", models.ProviderTypeOpenAI},
		{"azure", models.ProviderTypeAzure},
		{"azure-openai", models.ProviderTypeAzure},
		{"aws", models.ProviderTypeBedrock},
		{"bedrock", models.ProviderTypeBedrock},
		{"aws-bedrock", models.ProviderTypeBedrock},
		{"google", models.ProviderTypeVertex},
		{"vertex", models.ProviderTypeVertex},
		{"vertexai", models.ProviderTypeVertex},
		{"google-vertex", models.ProviderTypeVertex},
		{"mock", models.ProviderTypeMock},
		{" Mock ", models.ProviderTypeMock},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			adapter, known := factory.Resolve(tt.input)
			assert.True(t, known)
			assert.Equal(t, tt.wantType, adapter.Type())
		})
	}
}

func TestFactory_ResolveUnknownFallsBackToOpenAI(t *testing.T) {
	factory := NewFactory(5 * time.Second)

	adapter, known := factory.Resolve("acme-llm")
	assert.False(t, known)
	assert.Equal(t, models.ProviderTypeOpenAI, adapter.Type())
}

func TestFactory_AdaptersAreShared(t *testing.T) {
	factory := NewFactory(5 * time.Second)

	first, _ := factory.Resolve("openai")
	second, _ := factory.Resolve("openai-compatible")
	assert.Same(t, first, second)
}

func TestMockAdapter_Invoke(t *testing.T) {
	adapter := NewMockAdapter()

	result, err := adapter.Invoke(context.Background(), nil, "test-model", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, mockTokensIn, result.TokensIn)
	assert.Equal(t, mockTokensOut, result.TokensOut)
	assert.Equal(t, "test-model", result.Output["model"])
	assert.Equal(t, float64(0), result.CostUSD)
}
