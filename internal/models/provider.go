package models

import (
	"time"

	"github.com/google/uuid"
)

// Canonical provider types. Aliases are resolved by the adapter factory.
const (
	ProviderTypeOpenAI  = "openai"
	ProviderTypeAzure   = "azure-openai"
	ProviderTypeBedrock = "aws-bedrock"
	ProviderTypeVertex  = "google-vertex"
	ProviderTypeMock    = "mock"
)

// Provider is a tenant-scoped upstream LLM endpoint configuration.
// Credentials are stored encrypted (AES-GCM with a key-version prefix)
// and only decrypted on the request path.
type Provider struct {
	ID                   uuid.UUID `db:"id"`
	TenantID             uuid.UUID `db:"tenant_id"`
	ProviderType         string    `db:"provider_type"`
	DisplayName          string    `db:"display_name"`
	EncryptedCredentials string    `db:"encrypted_credentials"`
	Config               JSONB     `db:"config"`
	Enabled              bool      `db:"enabled"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}
