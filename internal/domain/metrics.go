package domain

import "time"

// DailyMetricSnapshot holds one member's cached metrics for one calendar
// date. Every metric column is independently nullable: a class with no
// successful fetch yet stays nil without blocking the others.
type DailyMetricSnapshot struct {
	MemberID            string     `json:"member_id" db:"member_id"`
	Date                time.Time  `json:"date" db:"date"`
	SleepSeconds        *int       `json:"sleep_seconds" db:"sleep_seconds"`
	SleepPerformancePct *float64   `json:"sleep_performance_pct" db:"sleep_performance_pct"`
	SleepConsistencyPct *float64   `json:"sleep_consistency_pct" db:"sleep_consistency_pct"`
	RecoveryScore       *float64   `json:"recovery_score" db:"recovery_score"`
	StrainScore         *float64   `json:"strain_score" db:"strain_score"`
	StrainUpdatedAt     *time.Time `json:"strain_updated_at" db:"strain_updated_at"`
	SleepUpdatedAt      *time.Time `json:"sleep_updated_at" db:"sleep_updated_at"`
	UpdatedAt           *time.Time `json:"updated_at" db:"updated_at"`
}

// MetricUpdate carries the fields obtained by one refresh. Nil fields are
// merged away on upsert and never erase previously known values.
type MetricUpdate struct {
	SleepSeconds        *int
	SleepPerformancePct *float64
	SleepConsistencyPct *float64
	RecoveryScore       *float64
	StrainScore         *float64
}

// Empty reports whether the update carries no fields at all.
func (u MetricUpdate) Empty() bool {
	return !u.TouchesStrain() && !u.TouchesSleep()
}

// TouchesStrain reports whether the update carries strain-class fields.
func (u MetricUpdate) TouchesStrain() bool {
	return u.StrainScore != nil
}

// TouchesSleep reports whether the update carries sleep-class fields.
// Recovery rides the sleep refresh window, so it counts here.
func (u MetricUpdate) TouchesSleep() bool {
	return u.SleepSeconds != nil ||
		u.SleepPerformancePct != nil ||
		u.SleepConsistencyPct != nil ||
		u.RecoveryScore != nil
}

// RankEntry is one row of a recovery or strain rank list.
type RankEntry struct {
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Value       float64 `json:"value"`
}

// SleepRankEntry additionally carries the derived duration and consistency
// for presentation.
type SleepRankEntry struct {
	RankEntry
	SleepSeconds   int      `json:"sleep_seconds"`
	ConsistencyPct *float64 `json:"consistency_pct"`
}

// Leaderboard is the output of one aggregation pass: three rank lists,
// each sorted descending by value, plus the reference date.
type Leaderboard struct {
	Date     time.Time        `json:"date"`
	Sleep    []SleepRankEntry `json:"sleep"`
	Recovery []RankEntry      `json:"recovery"`
	Strain   []RankEntry      `json:"strain"`
}
