package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pzhurov/fitrank/pkg/database"
)

// SessionTokenBlacklist records revoked session control tokens in Redis so a
// stopped session's token cannot be replayed against the status endpoint.
// Only a hash of the token is stored.
type SessionTokenBlacklist struct {
	redis *database.Redis
}

// NewSessionTokenBlacklist creates a new session token blacklist
func NewSessionTokenBlacklist(redis *database.Redis) *SessionTokenBlacklist {
	return &SessionTokenBlacklist{redis: redis}
}

// Revoke blacklists a token until its natural expiry.
func (s *SessionTokenBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Client.Set(ctx, s.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session token: %w", err)
	}
	return nil
}

// IsRevoked checks whether a token has been blacklisted.
func (s *SessionTokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	exists, err := s.redis.Client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session token: %w", err)
	}
	return exists > 0, nil
}

func (s *SessionTokenBlacklist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "revoked:session-token:" + hex.EncodeToString(sum[:])
}
