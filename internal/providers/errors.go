package providers

import "fmt"

// maxErrorBodyBytes caps how much of an upstream error body is carried
// around in errors and logs.
const maxErrorBodyBytes = 2048

// ConfigError marks a provider configuration problem (missing or
// malformed credentials). Retrying cannot fix it.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// ProviderError marks an upstream failure: a non-2xx status or a
// transport error talking to the provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: request failed: %s", e.Provider, e.Body)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// truncateBody clips an upstream body for error reporting.
func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		return string(body[:maxErrorBodyBytes])
	}
	return string(body)
}
