package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTokenManager mints and validates the signed control tokens handed
// out when a session registers for background refresh. The token is the only
// proof of ownership the status/stop endpoints accept.
type SessionTokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewSessionTokenManager creates a new session token manager
func NewSessionTokenManager(secret string, expiry time.Duration) *SessionTokenManager {
	return &SessionTokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Generate mints a control token bound to a session id.
func (m *SessionTokenManager) Generate(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"type":       "session",
		"exp":        now.Add(m.expiry).Unix(),
		"iat":        now.Unix(),
		"jti":        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Validate checks a control token and returns the session id it is bound to
// along with its expiry.
func (m *SessionTokenManager) Validate(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})

	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse session token: %w", err)
	}

	if !token.Valid {
		return "", time.Time{}, fmt.Errorf("invalid session token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, fmt.Errorf("invalid session token claims")
	}

	if claims["type"] != "session" {
		return "", time.Time{}, fmt.Errorf("invalid token type")
	}

	sessionID, ok := claims["session_id"].(string)
	if !ok || sessionID == "" {
		return "", time.Time{}, fmt.Errorf("invalid session_id in token")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", time.Time{}, fmt.Errorf("invalid exp in token")
	}

	expiresAt := time.Unix(int64(exp), 0)
	if time.Now().After(expiresAt) {
		return "", time.Time{}, fmt.Errorf("session token is expired")
	}

	return sessionID, expiresAt, nil
}
