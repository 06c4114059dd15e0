package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const gcmTagSize = 16

// Common vault errors
var (
	// ErrMalformed is returned when a stored secret does not match the
	// nonce:tag:ciphertext encoding.
	ErrMalformed = errors.New("malformed encrypted payload")

	// ErrIntegrity is returned when authentication fails during decryption.
	// It signals tampering or a wrong key; the secret must be treated as unusable.
	ErrIntegrity = errors.New("integrity verification failed")
)

// Vault encrypts and decrypts member refresh tokens with AES-256-GCM.
// The key is fixed at construction and never leaves the vault.
type Vault struct {
	aead cipher.AEAD
}

// New creates a vault from a raw 256-bit key.
func New(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a random nonce and returns the opaque
// hex(nonce):hex(tag):hex(ciphertext) encoding used for storage.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; split them for the encoding.
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	), nil
}

// Decrypt reverses Encrypt. A malformed encoding yields ErrMalformed; a
// failed tag check yields ErrIntegrity. Neither is recoverable by the caller.
func (v *Vault) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("expected 3 segments, got %d: %w", len(parts), ErrMalformed)
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid nonce encoding: %w", ErrMalformed)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid tag encoding: %w", ErrMalformed)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", ErrMalformed)
	}

	if len(nonce) != v.aead.NonceSize() || len(tag) != gcmTagSize {
		return "", fmt.Errorf("wrong nonce or tag length: %w", ErrMalformed)
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", ErrIntegrity)
	}

	return string(plaintext), nil
}
