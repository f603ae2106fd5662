package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"controlplane/internal/models"
)

const openAIDefaultBaseURL = "https://api.openai.com"

// OpenAIAdapter talks to OpenAI and any OpenAI-compatible endpoint.
// It is also the fallback adapter for unrecognized provider types,
// since most aggregators speak this wire format.
type OpenAIAdapter struct {
	client *http.Client
}

// NewOpenAIAdapter creates an OpenAI adapter with a bounded timeout
func NewOpenAIAdapter(timeout time.Duration) *OpenAIAdapter {
	return &OpenAIAdapter{
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
func (a *OpenAIAdapter) Type() string {
	return models.ProviderTypeOpenAI
}

// Invoke sends a chat completion request
func (a *OpenAIAdapter) Invoke(ctx context.Context, creds map[string]any, model string, payload map[string]any) (*Invocation, error) {
	apiKey, err := requireCred(creds, a.Type(), "apiKey")
	if err != nil {
		return nil, err
	}

	baseURL := credString(creds, "baseUrl")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

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

// doChatRequest executes the request and decodes a successful body.
// Non-2xx statuses and transport failures come back as ProviderError.
func doChatRequest(client *http.Client, req *http.Request, providerType string) (map[string]any, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, &ProviderError{Provider: providerType, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &ProviderError{Provider: providerType, StatusCode: resp.StatusCode, Body: "failed to read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &ProviderError{Provider: providerType, StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}

	var output map[string]any
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, nil, &ProviderError{Provider: providerType, StatusCode: resp.StatusCode, Body: "invalid JSON response: " + err.Error()}
	}

	return output, raw, nil
}

// extractChatUsage reads token usage from an OpenAI-style response,
// accepting both field name conventions.
func extractChatUsage(raw []byte) (tokensIn, tokensOut int) {
	var response struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			// Alternative field names used by newer endpoints
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(raw, &response); err != nil {
		return 0, 0
	}

	tokensIn = response.Usage.PromptTokens
	if tokensIn == 0 {
		tokensIn = response.Usage.InputTokens
	}
	tokensOut = response.Usage.CompletionTokens
	if tokensOut == 0 {
		tokensOut = response.Usage.OutputTokens
	}

	return tokensIn, tokensOut
}
