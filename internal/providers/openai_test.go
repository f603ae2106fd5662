package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIAdapter_Invoke(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"choices": [{"message": {"role": "assistant", "content": "hi"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7}
		}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(5 * time.Second)
	creds := map[string]any{"apiKey": "sk-test", "baseUrl": server.URL}
	payload := map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "hello"},
		},
	}

	result, err := adapter.Invoke(context.Background(), creds, "gpt-4o", payload)
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.Equal(t, 12, result.TokensIn)
	assert.Equal(t, 7, result.TokensOut)
	assert.Equal(t, float64(0), result.CostUSD)
	assert.Equal(t, "chatcmpl-1", result.Output["id"])
}

func TestOpenAIAdapter_InvokeKeepsPayloadModel(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"usage": {"prompt_tokens": 1, "completion_tokens": 1}}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(5 * time.Second)
	creds := map[string]any{"apiKey": "sk-test", "baseUrl": server.URL}
	payload := map[string]any{"model": "gpt-3.5-turbo"}

	_, err := adapter.Invoke(context.Background(), creds, "gpt-4o", payload)
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", gotBody["model"])
}

func TestOpenAIAdapter_AlternativeUsageFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"usage": {"input_tokens": 30, "output_tokens": 11}}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(5 * time.Second)
	creds := map[string]any{"apiKey": "sk-test", "baseUrl": server.URL}

	result, err := adapter.Invoke(context.Background(), creds, "gpt-4o", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 30, result.TokensIn)
	assert.Equal(t, 11, result.TokensOut)
}

func TestOpenAIAdapter_MissingAPIKey(t *testing.T) {
	adapter := NewOpenAIAdapter(5 * time.Second)

	_, err := adapter.Invoke(context.Background(), map[string]any{}, "gpt-4o", map[string]any{})
	require.Error(t, err)

	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, configErr.Reason, "apiKey")
}

func TestOpenAIAdapter_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(5 * time.Second)
	creds := map[string]any{"apiKey": "sk-test", "baseUrl": server.URL}

	_, err := adapter.Invoke(context.Background(), creds, "gpt-4o", map[string]any{})
	require.Error(t, err)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusTooManyRequests, providerErr.StatusCode)
	assert.Contains(t, providerErr.Body, "rate limited")
}

func TestOpenAIAdapter_ErrorBodyTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", maxErrorBodyBytes*2)))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(5 * time.Second)
	creds := map[string]any{"apiKey": "sk-test", "baseUrl": server.URL}

	_, err := adapter.Invoke(context.Background(), creds, "gpt-4o", map[string]any{})
	require.Error(t, err)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Len(t, providerErr.Body, maxErrorBodyBytes)
}

func TestOpenAIAdapter_TransportError(t *testing.T) {
	adapter := NewOpenAIAdapter(time.Second)
	creds := map[string]any{"apiKey": "sk-test", "baseUrl": "http://127.0.0.1:1"}

	_, err := adapter.Invoke(context.Background(), creds, "gpt-4o", map[string]any{})
	require.Error(t, err)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 0, providerErr.StatusCode)
}
