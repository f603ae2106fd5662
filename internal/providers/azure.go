package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"controlplane/internal/models"
)

const azureDefaultAPIVersion = "2024-02-01"

// AzureOpenAIAdapter talks to Azure OpenAI deployments. Azure routes
// by deployment name in the URL rather than a model field, and
// authenticates with an api-key header instead of a bearer token.
type AzureOpenAIAdapter struct {
	client *http.Client
}

// NewAzureOpenAIAdapter creates an Azure OpenAI adapter
func NewAzureOpenAIAdapter(timeout time.Duration) *AzureOpenAIAdapter {
	return &AzureOpenAIAdapter{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Type returns the provider type
func (a *AzureOpenAIAdapter) Type() string {
	return models.ProviderTypeAzure
}

// Invoke sends a chat completion request to an Azure deployment
func (a *AzureOpenAIAdapter) Invoke(ctx context.Context, creds map[string]any, model string, payload map[string]any) (*Invocation, error) {
	apiKey, err := requireCred(creds, a.Type(), "apiKey")
	if err != nil {
		return nil, err
	}
	endpoint, err := requireCred(creds, a.Type(), "endpoint")
	if err != nil {
		return nil, err
	}
	deployment, err := requireCred(creds, a.Type(), "deployment")
	if err != nil {
		return nil, err
	}

	apiVersion := credString(creds, "apiVersion")
	if apiVersion == "" {
		apiVersion = azureDefaultAPIVersion
	}

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	if body["model"] == nil {
		body["model"] = model
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(endpoint, "/"),
		url.PathEscape(deployment),
		url.QueryEscape(apiVersion),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", apiKey)

	output, raw, err := doChatRequest(a.client, req, a.Type())
	if err != nil {
		return nil, err
	}

	tokensIn, tokensOut := extractChatUsage(raw)

	return &Invocation{
		Output:    output,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}, nil
}
