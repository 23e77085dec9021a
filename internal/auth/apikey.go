package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// HashAPIKey produces the bcrypt hash stored in API_KEY_HASHES.
func HashAPIKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("api key is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// VerifyAPIKey reports whether key matches any of the configured hashes.
func VerifyAPIKey(key string, hashes []string) bool {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return false
	}
	for _, hash := range hashes {
		trimmedHash := strings.TrimSpace(hash)
		if trimmedHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmed)) == nil {
			return true
		}
	}
	return false
}
