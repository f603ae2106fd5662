package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort   string
	Database   DatabaseConfig
	Redis      RedisConfig
	Provider   ProviderConfig
	Policy     PolicyConfig
	Encryption EncryptionConfig
	Redaction  RedactionConfig
	Export     ExportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProviderConfig holds provider-related settings
type ProviderConfig struct {
	RequestTimeout time.Duration // Default timeout for provider requests
}

// PolicyConfig holds enforcement settings
type PolicyConfig struct {
	Timezone      string        // IANA zone for the daily budget boundary
	KillSwitchTTL time.Duration // How long the global kill switch value is cached
}

// EncryptionConfig holds credential encryption settings
type EncryptionConfig struct {
	MasterKey  string // Base64-encoded 32-byte master secret
	KeyVersion int    // Current key version for new ciphertexts
}

// RedactionConfig holds payload redaction settings
type RedactionConfig struct {
	RulesPath string // Optional YAML rules file; empty means built-in defaults
}

// ExportConfig holds audit export settings
type ExportConfig struct {
	Enabled      bool
	UseRedis     bool // Redis-backed queue instead of in-memory
	WebhookURL   string
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	masterKey := os.Getenv("ENCRYPTION_MASTER_KEY")
	if masterKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_MASTER_KEY is required")
	}

	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Provider: ProviderConfig{
			RequestTimeout: getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Policy: PolicyConfig{
			Timezone:      getEnvString("POLICY_TIMEZONE", "UTC"),
			KillSwitchTTL: getEnvDuration("POLICY_KILL_SWITCH_TTL", 30*time.Second),
		},
		Encryption: EncryptionConfig{
			MasterKey:  masterKey,
			KeyVersion: getEnvInt("ENCRYPTION_KEY_VERSION", 1),
		},
		Redaction: RedactionConfig{
			RulesPath: getEnvString("REDACTION_RULES_PATH", ""),
		},
		Export: ExportConfig{
			Enabled:      getEnvString("EXPORT_ENABLED", "false") == "true",
			UseRedis:     getEnvString("EXPORT_USE_REDIS", "false") == "true",
			WebhookURL:   getEnvString("EXPORT_WEBHOOK_URL", ""),
			BatchSize:    getEnvInt("EXPORT_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("EXPORT_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("EXPORT_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("EXPORT_RETRY_BACKOFF", 1*time.Second),
		},
	}

	if cfg.Export.Enabled && cfg.Export.WebhookURL == "" {
		return nil, fmt.Errorf("EXPORT_WEBHOOK_URL is required when export is enabled")
	}

	return cfg, nil
}
