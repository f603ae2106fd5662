package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"controlplane/internal/models"
)

const bedrockDefaultRegion = "us-east-1"

// BedrockAdapter talks to the AWS Bedrock Converse API. Requests are
// signed with Signature V4 directly; the full SDK is not needed for a
// single signed POST.
type BedrockAdapter struct {
	client *http.Client
	now    func() time.Time
}

// NewBedrockAdapter creates a Bedrock adapter
func NewBedrockAdapter(timeout time.Duration) *BedrockAdapter {
	return &BedrockAdapter{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Type returns the provider type
func (a *BedrockAdapter) Type() string {
	return models.ProviderTypeBedrock
}

// Converse API wire types.
type bedrockContentBlock struct {
	Text string `json:"text,omitempty"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockInferenceConfig struct {
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"topP,omitempty"`
	StopSeqs    []string `json:"stopSequences,omitempty"`
}

type bedrockConverseRequest struct {
	Messages        []bedrockMessage        `json:"messages"`
	System          []bedrockContentBlock   `json:"system,omitempty"`
	InferenceConfig *bedrockInferenceConfig `json:"inferenceConfig,omitempty"`
}

// Invoke translates the OpenAI-style payload to a Converse call
func (a *BedrockAdapter) Invoke(ctx context.Context, creds map[string]any, model string, payload map[string]any) (*Invocation, error) {
	accessKeyID, err := requireCred(creds, a.Type(), "accessKeyId")
	if err != nil {
		return nil, err
	}
	secretAccessKey, err := requireCred(creds, a.Type(), "secretAccessKey")
	if err != nil {
		return nil, err
	}
	sessionToken := credString(creds, "sessionToken")

	region := credString(creds, "region")
	if region == "" {
		region = bedrockDefaultRegion
	}

	// endpoint override serves VPC endpoints and tests
	endpoint := credString(creds, "endpoint")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)
	}

	body, err := json.Marshal(buildConverseRequest(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := fmt.Sprintf("%s/model/%s/converse", strings.TrimSuffix(endpoint, "/"), url.PathEscape(model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	signSigV4(req, body, sigV4Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
		Region:          region,
		Service:         "bedrock",
	}, a.now().UTC())

	output, raw, err := doChatRequest(a.client, req, a.Type())
	if err != nil {
		return nil, err
	}

	var usage struct {
		Usage struct {
			InputTokens  int `json:"inputTokens"`
			OutputTokens int `json:"outputTokens"`
		} `json:"usage"`
	}
	_ = json.Unmarshal(raw, &usage)

	return &Invocation{
		Output:    output,
		TokensIn:  usage.Usage.InputTokens,
		TokensOut: usage.Usage.OutputTokens,
	}, nil
}

// buildConverseRequest maps an OpenAI-style payload onto the Converse
// request shape. System messages move to the system block; sampling
// parameters move to inferenceConfig.
func buildConverseRequest(payload map[string]any) bedrockConverseRequest {
	var system []bedrockContentBlock
	var messages []bedrockMessage

	for _, m := range payloadMessages(payload) {
		if m.Role == "system" {
			system = append(system, bedrockContentBlock{Text: m.Content})
			continue
		}
		messages = append(messages, bedrockMessage{
			Role:    m.Role,
			Content: []bedrockContentBlock{{Text: m.Content}},
		})
	}

	req := bedrockConverseRequest{
		Messages: messages,
		System:   system,
	}

	maxTokens := payloadInt(payload, "max_tokens")
	temperature := payloadFloat(payload, "temperature")
	topP := payloadFloat(payload, "top_p")

	if maxTokens > 0 || temperature > 0 || topP > 0 {
		req.InferenceConfig = &bedrockInferenceConfig{
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
		}
	}

	return req
}

type sigV4Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Service         string
}

// signSigV4 signs an HTTP request with AWS Signature V4.
func signSigV4(req *http.Request, payload []byte, creds sigV4Credentials, now time.Time) {
	datestamp := now.Format("20060102")
	amzdate := now.Format("20060102T150405Z")
	host := req.URL.Host

	payloadHash := sha256Hex(payload)

	req.Header.Set("Host", host)
	req.Header.Set("X-Amz-Date", amzdate)
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)
	if creds.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	}

	signedHeaders := []string{"content-type", "host", "x-amz-content-sha256", "x-amz-date"}
	if creds.SessionToken != "" {
		signedHeaders = append(signedHeaders, "x-amz-security-token")
	}
	sort.Strings(signedHeaders)
	signedHeadersStr := strings.Join(signedHeaders, ";")

	var canonicalHeaders strings.Builder
	for _, h := range signedHeaders {
		var val string
		switch h {
		case "host":
			val = host
		case "content-type":
			val = req.Header.Get("Content-Type")
		case "x-amz-date":
			val = amzdate
		case "x-amz-content-sha256":
			val = payloadHash
		case "x-amz-security-token":
			val = creds.SessionToken
		}
		canonicalHeaders.WriteString(h)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(val)
		canonicalHeaders.WriteString("\n")
	}

	canonicalRequest := strings.Join([]string{
		req.Method,
		req.URL.Path,
		req.URL.RawQuery,
		canonicalHeaders.String(),
		signedHeadersStr,
		payloadHash,
	}, "\n")

	algorithm := "AWS4-HMAC-SHA256"
	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", datestamp, creds.Region, creds.Service)
	stringToSign := strings.Join([]string{
		algorithm,
		amzdate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	kDate := hmacSHA256([]byte("AWS4"+creds.SecretAccessKey), []byte(datestamp))
	kRegion := hmacSHA256(kDate, []byte(creds.Region))
	kService := hmacSHA256(kRegion, []byte(creds.Service))
	kSigning := hmacSHA256(kService, []byte("aws4_request"))
	signature := hex.EncodeToString(hmacSHA256(kSigning, []byte(stringToSign)))

	authHeader := fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, creds.AccessKeyID, credentialScope, signedHeadersStr, signature)
	req.Header.Set("Authorization", authHeader)
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
