package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// apiKeyPrefix marks locally issued gate keys.
const apiKeyPrefix = "copilotx-"

// APIKeyManager issues and validates the optional local gate keys accepted
// by the server middleware. Keys are HS256 JWTs, base64url-wrapped behind a
// product prefix so they survive copy-paste into Authorization headers.
type APIKeyManager struct {
	secretKey string
}

// APIKeyClaims are the claims carried by a gate key.
type APIKeyClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// NewAPIKeyManager creates a manager around an HMAC secret.
func NewAPIKeyManager(secretKey string) *APIKeyManager {
	return &APIKeyManager{secretKey: secretKey}
}

// LoadOrCreateSecret reads the HMAC secret from disk, generating and
// persisting a fresh one on first use.
func LoadOrCreateSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		return strings.TrimSpace(string(data)), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
		return "", fmt.Errorf("failed to persist secret: %w", err)
	}
	return secret, nil
}

// GenerateAPIKey issues a key for the given client identifier.
func (a *APIKeyManager) GenerateAPIKey(clientID string) (string, error) {
	if clientID == "" {
		clientID = uuid.NewString()
	}

	claims := &APIKeyClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign API key: %w", err)
	}

	// base64url without padding keeps the key header-safe
	encoded := strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(signed)), "=")
	return apiKeyPrefix + encoded, nil
}

// ValidateAPIKey checks a prefixed key and returns its claims.
func (a *APIKeyManager) ValidateAPIKey(key string) (*APIKeyClaims, error) {
	key = strings.TrimPrefix(key, "Bearer ")

	if !strings.HasPrefix(key, apiKeyPrefix) {
		return nil, fmt.Errorf("invalid API key format: must start with %q", apiKeyPrefix)
	}
	encoded := key[len(apiKeyPrefix):]

	// Restore base64 padding
	if padding := len(encoded) % 4; padding != 0 {
		encoded += strings.Repeat("=", 4-padding)
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode API key: %w", err)
	}

	token, err := jwt.ParseWithClaims(string(raw), &APIKeyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse API key: %w", err)
	}

	claims, ok := token.Claims.(*APIKeyClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid API key")
	}
	return claims, nil
}

// IsAPIKeyFormat reports whether the token looks like a locally issued key.
func (a *APIKeyManager) IsAPIKeyFormat(key string) bool {
	key = strings.TrimPrefix(key, "Bearer ")
	return strings.HasPrefix(key, apiKeyPrefix)
}
