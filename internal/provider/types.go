package provider

import (
	"encoding/json"
	"time"
)

type sleepRecordsResponse struct {
	Records []SleepRecord `json:"records"`
}

// SleepStages carries per-stage sleep minutes when the provider reports them.
type SleepStages struct {
	LightMinutes float64 `json:"light_minutes"`
	DeepMinutes  float64 `json:"deep_minutes"`
	RemMinutes   float64 `json:"rem_minutes"`
}

// SleepRecord is one sleep activity. Not every field is present on every
// response variant, which is why duration has a derivation chain.
type SleepRecord struct {
	Start          time.Time    `json:"start"`
	End            time.Time    `json:"end"`
	Stages         *SleepStages `json:"stages"`
	InBedMinutes   *float64     `json:"in_bed_minutes"`
	AwakeMinutes   *float64     `json:"awake_minutes"`
	PerformancePct *float64     `json:"performance_pct"`
	ConsistencyPct *float64     `json:"consistency_pct"`
}

// DurationSeconds derives total sleep duration: stage minutes when present,
// else in-bed minus awake, else the start/end timestamp delta. Returns
// ok=false when no variant applies.
func (r SleepRecord) DurationSeconds() (int, bool) {
	if r.Stages != nil {
		total := r.Stages.LightMinutes + r.Stages.DeepMinutes + r.Stages.RemMinutes
		if total > 0 {
			return int(total * 60), true
		}
	}

	if r.InBedMinutes != nil && r.AwakeMinutes != nil {
		if asleep := *r.InBedMinutes - *r.AwakeMinutes; asleep > 0 {
			return int(asleep * 60), true
		}
	}

	if !r.Start.IsZero() && !r.End.IsZero() && r.End.After(r.Start) {
		return int(r.End.Sub(r.Start).Seconds()), true
	}

	return 0, false
}

// CycleRecord is the day's physiological cycle. Strain lives here; the
// nested recovery sub-resource is kept raw for the extractor since its shape
// varies.
type CycleRecord struct {
	Strain   *float64        `json:"strain"`
	Recovery json.RawMessage `json:"recovery"`
}

// Profile is the provider's view of the authenticated user.
type Profile struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

// DisplayName joins the profile name fields.
func (p Profile) DisplayName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
