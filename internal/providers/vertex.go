package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"controlplane/internal/models"
)

const (
	vertexDefaultLocation = "us-central1"
	vertexTokenURL        = "https://oauth2.googleapis.com/token"
	vertexScope           = "https://www.googleapis.com/auth/cloud-platform"
	vertexJWTGrantType    = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// VertexAdapter talks to Google Vertex AI Gemini models. Service
// account credentials are exchanged for an OAuth access token via a
// signed RS256 assertion; tokens are cached per service account until
// shortly before expiry.
type VertexAdapter struct {
	client *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken
}

type cachedToken struct {
	token   string
	expires time.Time
}

// NewVertexAdapter creates a Vertex AI adapter
func NewVertexAdapter(timeout time.Duration) *VertexAdapter {
	return &VertexAdapter{
		client: &http.Client{Timeout: timeout},
		tokens: make(map[string]cachedToken),
	}
}

// Type returns the provider type
func (a *VertexAdapter) Type() string {
	return models.ProviderTypeVertex
}

// Gemini wire types.
type vertexPart struct {
	Text string `json:"text"`
}

type vertexContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []vertexPart `json:"parts"`
}

type vertexGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

type vertexRequest struct {
	Contents          []vertexContent         `json:"contents"`
	SystemInstruction *vertexContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *vertexGenerationConfig `json:"generationConfig,omitempty"`
}

// Invoke translates the OpenAI-style payload to a generateContent call
func (a *VertexAdapter) Invoke(ctx context.Context, creds map[string]any, model string, payload map[string]any) (*Invocation, error) {
	clientEmail, err := requireCred(creds, a.Type(), "clientEmail")
	if err != nil {
		return nil, err
	}
	privateKey, err := requireCred(creds, a.Type(), "privateKey")
	if err != nil {
		return nil, err
	}
	projectID, err := requireCred(creds, a.Type(), "projectId")
	if err != nil {
		return nil, err
	}

	location := credString(creds, "location")
	if location == "" {
		location = vertexDefaultLocation
	}

	accessToken, err := a.accessToken(ctx, clientEmail, privateKey, credString(creds, "tokenUrl"))
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildVertexRequest(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// endpoint override serves regional endpoints and tests
	endpoint := credString(creds, "endpoint")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com", location)
	}

	requestURL := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		strings.TrimSuffix(endpoint, "/"), projectID, location, url.PathEscape(model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	output, raw, err := doChatRequest(a.client, req, a.Type())
	if err != nil {
		return nil, err
	}

	var usage struct {
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	_ = json.Unmarshal(raw, &usage)

	return &Invocation{
		Output:    output,
		TokensIn:  usage.UsageMetadata.PromptTokenCount,
		TokensOut: usage.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// buildVertexRequest maps an OpenAI-style payload onto the Gemini
// request shape. The assistant role becomes "model"; system messages
// become the systemInstruction block.
func buildVertexRequest(payload map[string]any) vertexRequest {
	var contents []vertexContent
	var systemInstruction *vertexContent

	for _, m := range payloadMessages(payload) {
		if m.Role == "system" {
			systemInstruction = &vertexContent{
				Parts: []vertexPart{{Text: m.Content}},
			}
			continue
		}

		role := m.Role
		if role == "assistant" {
			role = "model"
		}

		contents = append(contents, vertexContent{
			Role:  role,
			Parts: []vertexPart{{Text: m.Content}},
		})
	}

	req := vertexRequest{
		Contents:          contents,
		SystemInstruction: systemInstruction,
	}

	maxTokens := payloadInt(payload, "max_tokens")
	temperature := payloadFloat(payload, "temperature")
	topP := payloadFloat(payload, "top_p")

	if maxTokens > 0 || temperature > 0 || topP > 0 {
		req.GenerationConfig = &vertexGenerationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
			TopP:            topP,
		}
	}

	return req
}

// accessToken returns a cached token for the service account or mints
// a new one. Tokens are refreshed one minute before they expire.
func (a *VertexAdapter) accessToken(ctx context.Context, clientEmail, privateKey, tokenURL string) (string, error) {
	if tokenURL == "" {
		tokenURL = vertexTokenURL
	}

	a.mu.Lock()
	if cached, ok := a.tokens[clientEmail]; ok && time.Now().Before(cached.expires) {
		a.mu.Unlock()
		return cached.token, nil
	}
	a.mu.Unlock()

	assertion, err := signAssertion(clientEmail, privateKey, tokenURL)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {vertexJWTGrantType},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: a.Type(), Body: "token exchange failed: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: a.Type(), StatusCode: resp.StatusCode, Body: "failed to read token response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: a.Type(), StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", &ProviderError{Provider: a.Type(), StatusCode: resp.StatusCode, Body: "invalid token response: " + err.Error()}
	}
	if token.AccessToken == "" {
		return "", &ProviderError{Provider: a.Type(), StatusCode: resp.StatusCode, Body: "token response missing access_token"}
	}

	expires := time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)

	a.mu.Lock()
	a.tokens[clientEmail] = cachedToken{token: token.AccessToken, expires: expires}
	a.mu.Unlock()

	return token.AccessToken, nil
}

// signAssertion builds the RS256 service-account JWT for the OAuth
// jwt-bearer grant.
func signAssertion(clientEmail, privateKey, audience string) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKey))
	if err != nil {
		return "", &ConfigError{Provider: models.ProviderTypeVertex, Reason: "invalid privateKey: " + err.Error()}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   clientEmail,
		"scope": vertexScope,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}

	return signed, nil
}
