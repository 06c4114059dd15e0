package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pzhurov/fitrank/internal/domain"
	"github.com/pzhurov/fitrank/internal/dto"
	"github.com/pzhurov/fitrank/internal/provider"
)

// SecretVault encrypts and decrypts custodied refresh tokens.
type SecretVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// TokenRefresher is the slice of the provider client the session refresher needs.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*provider.TokenSet, error)
}

// MetricsProvider is the full provider surface the aggregator consumes.
type MetricsProvider interface {
	TokenRefresher
	SleepForDay(ctx context.Context, accessToken string, date time.Time) ([]provider.SleepRecord, error)
	RecoveryForDay(ctx context.Context, accessToken string, date time.Time) (json.RawMessage, error)
	CycleForDay(ctx context.Context, accessToken string, date time.Time) (*provider.CycleRecord, error)
}

// ProfileFetcher resolves provider access tokens to user profiles.
type ProfileFetcher interface {
	Profile(ctx context.Context, accessToken string) (*provider.Profile, error)
}

// LeaderboardService runs aggregation passes over all enrolled members.
type LeaderboardService interface {
	Run(ctx context.Context, force ForceMode) (*domain.Leaderboard, error)
}

// EnrollmentService manages the member lifecycle outside of aggregation.
type EnrollmentService interface {
	Enroll(ctx context.Context, req *dto.EnrollRequest) (*dto.MemberResponse, error)
	Unlink(ctx context.Context, accessToken string) error
	AdminUnlink(ctx context.Context, externalID string) error
}
