package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Encryption provides AES-256-GCM encryption for credentials at rest.
//
// Ciphertexts carry a "v{n}:" key-version prefix followed by
// base64(nonce || ciphertext). Each version's key is derived from the
// master secret with HKDF-SHA256, so rotating to a new version keeps
// every previously written row decryptable.
type Encryption struct {
	keys    map[int][]byte
	current int
}

// NewEncryption derives per-version keys from the master secret.
// currentVersion is the version new ciphertexts are written with;
// versions 1..currentVersion remain readable.
func NewEncryption(master []byte, currentVersion int) (*Encryption, error) {
	if len(master) < 16 {
		return nil, fmt.Errorf("master secret too short: need at least 16 bytes, got %d", len(master))
	}
	if currentVersion < 1 {
		return nil, fmt.Errorf("key version must be >= 1, got %d", currentVersion)
	}

	keys := make(map[int][]byte, currentVersion)
	for v := 1; v <= currentVersion; v++ {
		key := make([]byte, 32)
		kdf := hkdf.New(sha256.New, master, nil, []byte("credentials-v"+strconv.Itoa(v)))
		if _, err := io.ReadFull(kdf, key); err != nil {
			return nil, fmt.Errorf("failed to derive key v%d: %w", v, err)
		}
		keys[v] = key
	}

	return &Encryption{keys: keys, current: currentVersion}, nil
}

// NewEncryptionFromBase64 creates an encryption service from a
// base64-encoded master secret.
func NewEncryptionFromBase64(encoded string, currentVersion int) (*Encryption, error) {
	if encoded == "" {
		return nil, fmt.Errorf("encryption key cannot be empty")
	}

	master, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}

	return NewEncryption(master, currentVersion)
}

// GenerateKey generates a random 32-byte master secret, base64 encoded
// for storage in an environment variable.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals plaintext with the current key version.
func (e *Encryption) Encrypt(plaintext []byte) (string, error) {
	gcm, err := e.aead(e.current)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	return fmt.Sprintf("v%d:%s", e.current, base64.StdEncoding.EncodeToString(ciphertext)), nil
}

// Decrypt opens a versioned ciphertext using the key version named in
// its prefix.
func (e *Encryption) Decrypt(versioned string) ([]byte, error) {
	version, encoded, err := splitVersion(versioned)
	if err != nil {
		return nil, err
	}

	gcm, err := e.aead(version)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// EncryptJSON encrypts a JSON-serializable map
func (e *Encryption) EncryptJSON(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return e.Encrypt(jsonBytes)
}

// DecryptJSON decrypts a versioned ciphertext into a map
func (e *Encryption) DecryptJSON(versioned string) (map[string]any, error) {
	if versioned == "" {
		return nil, nil
	}

	plaintext, err := e.Decrypt(versioned)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(plaintext, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return result, nil
}

func (e *Encryption) aead(version int) (cipher.AEAD, error) {
	key, ok := e.keys[version]
	if !ok {
		return nil, fmt.Errorf("unknown key version %d", version)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

func splitVersion(versioned string) (int, string, error) {
	if !strings.HasPrefix(versioned, "v") {
		return 0, "", fmt.Errorf("ciphertext missing key version prefix")
	}

	idx := strings.IndexByte(versioned, ':')
	if idx < 2 {
		return 0, "", fmt.Errorf("ciphertext missing key version prefix")
	}

	version, err := strconv.Atoi(versioned[1:idx])
	if err != nil || version < 1 {
		return 0, "", fmt.Errorf("invalid key version prefix %q", versioned[:idx])
	}

	return version, versioned[idx+1:], nil
}
