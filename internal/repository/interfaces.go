package repository

import (
	"context"
	"time"

	"github.com/pzhurov/fitrank/internal/domain"
)

// MemberRepository defines methods for member operations
type MemberRepository interface {
	Upsert(ctx context.Context, member *domain.Member) error
	GetAll(ctx context.Context) ([]*domain.Member, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Member, error)
	UpdateSecret(ctx context.Context, memberID, encryptedSecret string) error
	DeleteByID(ctx context.Context, memberID string) error
	DeleteByExternalID(ctx context.Context, externalID string) error
}

// MetricsRepository defines methods for daily metric snapshots
type MetricsRepository interface {
	Get(ctx context.Context, memberID string, date time.Time) (*domain.DailyMetricSnapshot, error)
	Merge(ctx context.Context, memberID string, date time.Time, update domain.MetricUpdate) error
}
