package utils

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test-session-token-secret-0123456789ab"

func TestSessionTokenRoundTrip(t *testing.T) {
	m := NewSessionTokenManager(testSecret, time.Hour)

	token, err := m.Generate("session-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	sessionID, expiresAt, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sessionID != "session-1" {
		t.Errorf("sessionID = %q, want session-1", sessionID)
	}
	if until := time.Until(expiresAt); until < 55*time.Minute || until > time.Hour {
		t.Errorf("unexpected expiry %v from now", until)
	}
}

func TestSessionTokenRejectsWrongSecret(t *testing.T) {
	m := NewSessionTokenManager(testSecret, time.Hour)
	other := NewSessionTokenManager("a-completely-different-secret-value-xyz", time.Hour)

	token, err := m.Generate("session-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, _, err := other.Validate(token); err == nil {
		t.Error("token signed with a different secret must not validate")
	}
}

func TestSessionTokenRejectsExpired(t *testing.T) {
	m := NewSessionTokenManager(testSecret, -time.Minute)

	token, err := m.Generate("session-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, _, err := m.Validate(token); err == nil {
		t.Error("expired token must not validate")
	}
}

func TestSessionTokenRejectsTampering(t *testing.T) {
	m := NewSessionTokenManager(testSecret, time.Hour)

	token, err := m.Generate("session-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, _, err := m.Validate(tampered); err == nil {
		t.Error("tampered signature must not validate")
	}
}
