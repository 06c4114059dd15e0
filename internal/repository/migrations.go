package repository

import (
	"context"
	"fmt"

	"github.com/pzhurov/fitrank/pkg/database"
)

// migrations are applied in order on every startup. Changes are strictly
// additive (new tables, new nullable columns) so older deployments upgrade
// in place without a data migration.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id UUID PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		avatar_url TEXT,
		encrypted_secret TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_metrics (
		member_id UUID NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		sleep_seconds INTEGER,
		sleep_performance_pct DOUBLE PRECISION,
		recovery_score DOUBLE PRECISION,
		strain_score DOUBLE PRECISION,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (member_id, date)
	)`,
	// sleep_consistency_pct shipped after the first release.
	`ALTER TABLE daily_metrics ADD COLUMN IF NOT EXISTS sleep_consistency_pct DOUBLE PRECISION`,
	// Per-class refresh timestamps so strain and sleep age out on their own
	// clocks. Rows written before the split read as NULL and refresh on the
	// next pass.
	`ALTER TABLE daily_metrics ADD COLUMN IF NOT EXISTS strain_updated_at TIMESTAMPTZ`,
	`ALTER TABLE daily_metrics ADD COLUMN IF NOT EXISTS sleep_updated_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_daily_metrics_date ON daily_metrics (date)`,
}

// Migrate ensures the schema exists and is up to date.
func Migrate(ctx context.Context, db *database.Postgres) error {
	for i, stmt := range migrations {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
