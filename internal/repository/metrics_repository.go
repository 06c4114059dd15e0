package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pzhurov/fitrank/internal/domain"
	"github.com/pzhurov/fitrank/pkg/database"
)

// metricsRepository implements MetricsRepository interface
type metricsRepository struct {
	db *database.Postgres
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *database.Postgres) MetricsRepository {
	return &metricsRepository{db: db}
}

// Get retrieves the snapshot for (member, date)
func (r *metricsRepository) Get(ctx context.Context, memberID string, date time.Time) (*domain.DailyMetricSnapshot, error) {
	query := `
		SELECT member_id, date, sleep_seconds, sleep_performance_pct, sleep_consistency_pct,
		       recovery_score, strain_score, strain_updated_at, sleep_updated_at, updated_at
		FROM daily_metrics
		WHERE member_id = $1 AND date = $2
	`

	snapshot, err := scanSnapshot(r.db.DB.QueryRowContext(ctx, query, memberID, dateOnly(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot for member %s not found: %w", memberID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return snapshot, nil
}

// Merge applies a partial refresh to the (member, date) row. Non-nil fields
// of the update overwrite; nil fields never erase existing values. The merge
// is computed in application code under a row lock so no reader ever
// observes a half-written snapshot.
func (r *metricsRepository) Merge(ctx context.Context, memberID string, date time.Time, update domain.MetricUpdate) error {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	day := dateOnly(date)

	existing, err := scanSnapshot(tx.QueryRowContext(ctx, `
		SELECT member_id, date, sleep_seconds, sleep_performance_pct, sleep_consistency_pct,
		       recovery_score, strain_score, strain_updated_at, sleep_updated_at, updated_at
		FROM daily_metrics
		WHERE member_id = $1 AND date = $2
		FOR UPDATE
	`, memberID, day))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read snapshot for merge: %w", err)
	}

	merged := domain.MetricUpdate{}
	if existing != nil {
		merged.SleepSeconds = existing.SleepSeconds
		merged.SleepPerformancePct = existing.SleepPerformancePct
		merged.SleepConsistencyPct = existing.SleepConsistencyPct
		merged.RecoveryScore = existing.RecoveryScore
		merged.StrainScore = existing.StrainScore
	}
	if update.SleepSeconds != nil {
		merged.SleepSeconds = update.SleepSeconds
	}
	if update.SleepPerformancePct != nil {
		merged.SleepPerformancePct = update.SleepPerformancePct
	}
	if update.SleepConsistencyPct != nil {
		merged.SleepConsistencyPct = update.SleepConsistencyPct
	}
	if update.RecoveryScore != nil {
		merged.RecoveryScore = update.RecoveryScore
	}
	if update.StrainScore != nil {
		merged.StrainScore = update.StrainScore
	}

	// Each class advances its own refresh timestamp only when this update
	// actually carried fields of that class, so a strain-only refresh never
	// resets the sleep clock and vice versa.
	now := time.Now()
	var strainUpdatedAt, sleepUpdatedAt *time.Time
	if existing != nil {
		strainUpdatedAt = existing.StrainUpdatedAt
		sleepUpdatedAt = existing.SleepUpdatedAt
	}
	if update.TouchesStrain() {
		strainUpdatedAt = &now
	}
	if update.TouchesSleep() {
		sleepUpdatedAt = &now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_metrics
			(member_id, date, sleep_seconds, sleep_performance_pct, sleep_consistency_pct,
			 recovery_score, strain_score, strain_updated_at, sleep_updated_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (member_id, date) DO UPDATE
		SET sleep_seconds = EXCLUDED.sleep_seconds,
		    sleep_performance_pct = EXCLUDED.sleep_performance_pct,
		    sleep_consistency_pct = EXCLUDED.sleep_consistency_pct,
		    recovery_score = EXCLUDED.recovery_score,
		    strain_score = EXCLUDED.strain_score,
		    strain_updated_at = EXCLUDED.strain_updated_at,
		    sleep_updated_at = EXCLUDED.sleep_updated_at,
		    updated_at = EXCLUDED.updated_at
	`,
		memberID,
		day,
		merged.SleepSeconds,
		merged.SleepPerformancePct,
		merged.SleepConsistencyPct,
		merged.RecoveryScore,
		merged.StrainScore,
		strainUpdatedAt,
		sleepUpdatedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to write merged snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}

	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func scanSnapshot(row rowScanner) (*domain.DailyMetricSnapshot, error) {
	snapshot := &domain.DailyMetricSnapshot{}
	var (
		sleepSeconds    sql.NullInt64
		perfPct         sql.NullFloat64
		consistencyPct  sql.NullFloat64
		recovery        sql.NullFloat64
		strain          sql.NullFloat64
		strainUpdatedAt sql.NullTime
		sleepUpdatedAt  sql.NullTime
		updatedAt       sql.NullTime
	)

	err := row.Scan(
		&snapshot.MemberID,
		&snapshot.Date,
		&sleepSeconds,
		&perfPct,
		&consistencyPct,
		&recovery,
		&strain,
		&strainUpdatedAt,
		&sleepUpdatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sleepSeconds.Valid {
		v := int(sleepSeconds.Int64)
		snapshot.SleepSeconds = &v
	}
	if perfPct.Valid {
		snapshot.SleepPerformancePct = &perfPct.Float64
	}
	if consistencyPct.Valid {
		snapshot.SleepConsistencyPct = &consistencyPct.Float64
	}
	if recovery.Valid {
		snapshot.RecoveryScore = &recovery.Float64
	}
	if strain.Valid {
		snapshot.StrainScore = &strain.Float64
	}
	if strainUpdatedAt.Valid {
		snapshot.StrainUpdatedAt = &strainUpdatedAt.Time
	}
	if sleepUpdatedAt.Valid {
		snapshot.SleepUpdatedAt = &sleepUpdatedAt.Time
	}
	if updatedAt.Valid {
		snapshot.UpdatedAt = &updatedAt.Time
	}

	return snapshot, nil
}
