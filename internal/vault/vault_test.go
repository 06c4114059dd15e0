package vault

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	v, err := New(key)
	if err != nil {
		t.Fatalf("Failed to create vault: %v", err)
	}
	return v
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := New(bytes.Repeat([]byte{0x01}, n)); err == nil {
			t.Errorf("Expected error for %d-byte key", n)
		}
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := testVault(t)

	plaintexts := []string{
		"",
		"x",
		"a-long-lived-oauth-refresh-token-value",
		strings.Repeat("secret", 100),
		"unicode: пароль 密码",
	}

	for _, pt := range plaintexts {
		encoded, err := v.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", pt, err)
		}

		got, err := v.Decrypt(encoded)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if got != pt {
			t.Errorf("Round trip mismatch: got %q, want %q", got, pt)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v := testVault(t)

	a, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	b, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("Expected distinct ciphertexts for repeated plaintext")
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	v := testVault(t)

	encoded, err := v.Encrypt("do not touch")
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		t.Fatalf("Unexpected encoding: %s", encoded)
	}

	// Flip one byte in every segment in turn; all must fail verification.
	for i := range parts {
		raw, err := hex.DecodeString(parts[i])
		if err != nil {
			t.Fatal(err)
		}
		if len(raw) == 0 {
			continue
		}
		raw[0] ^= 0xff

		mutated := make([]string, 3)
		copy(mutated, parts)
		mutated[i] = hex.EncodeToString(raw)

		if _, err := v.Decrypt(strings.Join(mutated, ":")); err == nil {
			t.Errorf("Expected failure after flipping byte in segment %d", i)
		}
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	v := testVault(t)

	encoded, err := v.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}

	other, err := New(bytes.Repeat([]byte{0x7f}, 32))
	if err != nil {
		t.Fatal(err)
	}

	_, err = other.Decrypt(encoded)
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("Expected ErrIntegrity with wrong key, got %v", err)
	}
}

func TestDecryptMalformed(t *testing.T) {
	v := testVault(t)

	cases := []string{
		"",
		"not-hex",
		"aaaa:bbbb",
		"aaaa:bbbb:cccc:dddd",
		"zz:bbbb:cccc",
		"aaaa:zz:cccc",
		"aaaa:bbbb:zz",
	}

	for _, c := range cases {
		_, err := v.Decrypt(c)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Decrypt(%q): expected ErrMalformed, got %v", c, err)
		}
	}
}
