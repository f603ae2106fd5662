package providers

import (
	"strings"
	"time"

	"controlplane/internal/models"
)

// Factory resolves provider type strings to adapter singletons.
// Adapters are constructed once and shared; they hold no per-tenant
// state.
type Factory struct {
	openai  *OpenAIAdapter
	azure   *AzureOpenAIAdapter
	bedrock *BedrockAdapter
	vertex  *VertexAdapter
	mock    *MockAdapter

	aliases map[string]Adapter
}

// NewFactory creates a factory with one adapter per provider family
func NewFactory(timeout time.Duration) *Factory {
	f := &Factory{
		openai:  NewOpenAIAdapter(timeout),
		azure:   NewAzureOpenAIAdapter(timeout),
		bedrock: NewBedrockAdapter(timeout),
		vertex:  NewVertexAdapter(timeout),
		mock:    NewMockAdapter(),
	}

	f.aliases = map[string]Adapter{
		models.ProviderTypeOpenAI:  f.openai,
		"openai-compatible":        f.openai,
		models.ProviderTypeAzure:   f.azure,
		"azure":                    f.azure,
		models.ProviderTypeBedrock: f.bedrock,
		"aws":                      f.bedrock,
		"bedrock":                  f.bedrock,
		models.ProviderTypeVertex:  f.vertex,
		"google":                   f.vertex,
		"vertex":                   f.vertex,
		"vertexai":                 f.vertex,
		models.ProviderTypeMock:    f.mock,
	}

	return f
}

// Resolve maps a provider type string to an adapter. Matching is
// case-insensitive. Unknown types fall back to the OpenAI adapter with
// known=false so callers can flag the mismatch instead of failing the
// request outright.
func (f *Factory) Resolve(providerType string) (Adapter, bool) {
	if adapter, ok := f.aliases[strings.ToLower(strings.TrimSpace(providerType))]; ok {
		return adapter, true
	}
	return f.openai, false
}
