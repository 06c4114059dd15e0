package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashAdminKey hashes an admin key using bcrypt. Used by ops tooling to
// produce the ADMIN_KEY_HASH configuration value.
func HashAdminKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(bytes), nil
}

// VerifyAdminKey compares a presented admin key against the configured hash.
// An empty hash disables admin access entirely.
func VerifyAdminKey(key, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
