package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pzhurov/fitrank/internal/domain"
	"github.com/pzhurov/fitrank/internal/provider"
	"github.com/pzhurov/fitrank/internal/repository"
	"github.com/pzhurov/fitrank/pkg/observability"
	"go.uber.org/zap"
)

// ForceMode selects which metric classes a caller wants refreshed regardless
// of cache age.
type ForceMode string

const (
	ForceNone   ForceMode = ""
	ForceAll    ForceMode = "all"
	ForceStrain ForceMode = "strain"
	ForceSleep  ForceMode = "sleep"
)

// ParseForceMode validates a caller-supplied force parameter.
func ParseForceMode(s string) (ForceMode, error) {
	switch ForceMode(s) {
	case ForceNone, ForceAll, ForceStrain, ForceSleep:
		return ForceMode(s), nil
	}
	return ForceNone, fmt.Errorf("unknown force mode %q", s)
}

// AggregatorConfig carries the staleness policy. Strain tracks the current
// multi-hour physiological cycle and goes stale quickly; sleep and recovery
// change roughly once a day and share a much wider window.
type AggregatorConfig struct {
	StrainStaleness time.Duration
	SleepStaleness  time.Duration
	Location        *time.Location
	MaxConcurrency  int
}

// aggregatorService implements LeaderboardService
type aggregatorService struct {
	memberRepo  repository.MemberRepository
	metricsRepo repository.MetricsRepository
	vault       SecretVault
	provider    MetricsProvider
	cfg         AggregatorConfig
	logger      *zap.Logger
	metrics     *observability.EngineMetrics
	now         func() time.Time
}

// NewLeaderboardService creates the tiered aggregator.
func NewLeaderboardService(
	memberRepo repository.MemberRepository,
	metricsRepo repository.MetricsRepository,
	vault SecretVault,
	metricsProvider MetricsProvider,
	cfg AggregatorConfig,
	logger *zap.Logger,
	engineMetrics *observability.EngineMetrics,
) LeaderboardService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &aggregatorService{
		memberRepo:  memberRepo,
		metricsRepo: metricsRepo,
		vault:       vault,
		provider:    metricsProvider,
		cfg:         cfg,
		logger:      logger,
		metrics:     engineMetrics,
		now:         time.Now,
	}
}

type memberResult struct {
	member   *domain.Member
	snapshot *domain.DailyMetricSnapshot
	revoked  bool
}

// Run produces the three rank lists for the current reference day. Members
// are processed with bounded fan-out; one member's failure never aborts the
// pass.
func (s *aggregatorService) Run(ctx context.Context, force ForceMode) (*domain.Leaderboard, error) {
	started := s.now()
	refDate := referenceDate(started, s.cfg.Location)

	members, err := s.memberRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	results := make([]*memberResult, len(members))
	sem := make(chan struct{}, s.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for i, member := range members {
		wg.Add(1)
		go func(i int, member *domain.Member) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.processMember(ctx, member, refDate, force)
		}(i, member)
	}
	wg.Wait()

	board := buildLeaderboard(refDate, results)
	s.metrics.RecordPass(ctx, s.now().Sub(started))

	s.logger.Info("aggregation pass complete",
		zap.Time("date", refDate),
		zap.Int("members", len(members)),
		zap.Int("sleep_entries", len(board.Sleep)),
		zap.Int("recovery_entries", len(board.Recovery)),
		zap.Int("strain_entries", len(board.Strain)),
		zap.Duration("elapsed", s.now().Sub(started)),
	)

	return board, nil
}

func (s *aggregatorService) processMember(ctx context.Context, member *domain.Member, refDate time.Time, force ForceMode) *memberResult {
	log := s.logger.With(
		zap.String("member_id", member.ID),
		zap.String("external_id", member.ExternalID),
	)

	cached, err := s.metricsRepo.Get(ctx, member.ID, refDate)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error("failed to read cached snapshot", zap.Error(err))
	}

	// Each class ages on its own timestamp: a recent strain refresh must not
	// hide a recovery score that is hours old.
	var strainStamp, sleepStamp *time.Time
	if cached != nil {
		strainStamp = cached.StrainUpdatedAt
		sleepStamp = cached.SleepUpdatedAt
	}
	needStrain := force == ForceAll || force == ForceStrain || s.classAge(strainStamp) > s.cfg.StrainStaleness
	needSleep := force == ForceAll || force == ForceSleep || s.classAge(sleepStamp) > s.cfg.SleepStaleness

	if !needStrain && !needSleep {
		s.metrics.RecordMemberOutcome(ctx, "cached")
		return &memberResult{member: member, snapshot: cached}
	}

	refreshToken, err := s.vault.Decrypt(member.EncryptedSecret)
	if err != nil {
		// Tampering or a wrong key, not the provider's verdict: keep the
		// member, serve whatever is cached.
		log.Error("stored secret is unusable", zap.Error(err))
		s.metrics.RecordMemberOutcome(ctx, "fallback")
		return &memberResult{member: member, snapshot: cached}
	}

	tokens, err := s.provider.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, provider.ErrCredentialRejected) {
			s.metrics.RecordTokenRefresh(ctx, "rejected")
			s.revokeMember(ctx, member, log)
			s.metrics.RecordMemberOutcome(ctx, "revoked")
			return &memberResult{member: member, revoked: true}
		}
		s.metrics.RecordTokenRefresh(ctx, "transient")
		log.Warn("token refresh failed, falling back to cache", zap.Error(err))
		s.metrics.RecordMemberOutcome(ctx, "fallback")
		return &memberResult{member: member, snapshot: cached}
	}
	s.metrics.RecordTokenRefresh(ctx, "ok")

	// A rotated refresh token must be durable before any fetch below can
	// fail and abandon this member's pass.
	if tokens.RefreshToken != "" && tokens.RefreshToken != refreshToken {
		encrypted, err := s.vault.Encrypt(tokens.RefreshToken)
		if err == nil {
			err = s.memberRepo.UpdateSecret(ctx, member.ID, encrypted)
		}
		if err != nil {
			log.Error("failed to persist rotated refresh token", zap.Error(err))
			s.metrics.RecordMemberOutcome(ctx, "fallback")
			return &memberResult{member: member, snapshot: cached}
		}
	}

	update := s.fetchMetrics(ctx, tokens.AccessToken, refDate, needSleep, needStrain, cached, log)

	if !update.Empty() {
		if err := s.metricsRepo.Merge(ctx, member.ID, refDate, update); err != nil {
			log.Error("failed to persist snapshot", zap.Error(err))
		}
	}

	s.metrics.RecordMemberOutcome(ctx, "refreshed")
	return &memberResult{member: member, snapshot: applyUpdate(member.ID, refDate, cached, update)}
}

// fetchMetrics performs the per-class resource fetches. Each class fails
// independently; a miss leaves its fields nil rather than blocking the rest.
func (s *aggregatorService) fetchMetrics(
	ctx context.Context,
	accessToken string,
	refDate time.Time,
	needSleep, needStrain bool,
	cached *domain.DailyMetricSnapshot,
	log *zap.Logger,
) domain.MetricUpdate {
	var update domain.MetricUpdate

	// The cycle record serves both the recovery fallback and the strain
	// read; fetch it at most once.
	var cycle *provider.CycleRecord
	cycleTried := false
	getCycle := func() *provider.CycleRecord {
		if !cycleTried {
			cycleTried = true
			c, err := s.provider.CycleForDay(ctx, accessToken, refDate)
			if err != nil {
				log.Warn("cycle fetch failed", zap.Error(err))
			} else {
				cycle = c
			}
		}
		return cycle
	}

	extractFromCycle := func() *float64 {
		c := getCycle()
		if c == nil || len(c.Recovery) == 0 {
			return nil
		}
		if score, ok := provider.ExtractRecoveryScore(c.Recovery); ok {
			return &score
		}
		return nil
	}

	if needSleep {
		records, err := s.provider.SleepForDay(ctx, accessToken, refDate)
		if err != nil {
			log.Warn("sleep fetch failed", zap.Error(err))
		} else {
			applySleepRecords(&update, records)
		}

		raw, err := s.provider.RecoveryForDay(ctx, accessToken, refDate)
		if err != nil {
			log.Warn("recovery fetch failed", zap.Error(err))
		} else if score, ok := provider.ExtractRecoveryScore(raw); ok {
			update.RecoveryScore = &score
		}
		if update.RecoveryScore == nil {
			// Primary lookup came up empty; try the day's cycle sub-resource.
			update.RecoveryScore = extractFromCycle()
		}
	}

	if needStrain {
		if c := getCycle(); c != nil {
			if c.Strain != nil {
				update.StrainScore = c.Strain
			}
			// Secondary chance to backfill recovery from the same cycle.
			if update.RecoveryScore == nil && (cached == nil || cached.RecoveryScore == nil) {
				update.RecoveryScore = extractFromCycle()
			}
		}
	}

	return update
}

func (s *aggregatorService) revokeMember(ctx context.Context, member *domain.Member, log *zap.Logger) {
	log.Info("revoking member: provider permanently rejected the stored credential")
	if err := s.memberRepo.DeleteByID(ctx, member.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Error("failed to delete revoked member", zap.Error(err))
	}
}

func (s *aggregatorService) classAge(refreshedAt *time.Time) time.Duration {
	if refreshedAt == nil {
		return time.Duration(1<<63 - 1)
	}
	return s.now().Sub(*refreshedAt)
}

// referenceDate normalizes "now" to the aggregation day in the configured
// time zone, stored as a UTC-midnight date value.
func referenceDate(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// applySleepRecords derives the sleep-class fields across the day's records:
// the longest derivable duration and the best-of performance and consistency.
func applySleepRecords(update *domain.MetricUpdate, records []provider.SleepRecord) {
	var (
		bestSeconds int
		haveSeconds bool
	)

	for _, r := range records {
		if secs, ok := r.DurationSeconds(); ok && secs > bestSeconds {
			bestSeconds = secs
			haveSeconds = true
		}
		if r.PerformancePct != nil {
			if update.SleepPerformancePct == nil || *r.PerformancePct > *update.SleepPerformancePct {
				v := *r.PerformancePct
				update.SleepPerformancePct = &v
			}
		}
		if r.ConsistencyPct != nil {
			if update.SleepConsistencyPct == nil || *r.ConsistencyPct > *update.SleepConsistencyPct {
				v := *r.ConsistencyPct
				update.SleepConsistencyPct = &v
			}
		}
	}

	if haveSeconds {
		update.SleepSeconds = &bestSeconds
	}
}

// applyUpdate overlays an update on the cached snapshot so the caller sees
// the same state a re-read after merge would return.
func applyUpdate(memberID string, date time.Time, cached *domain.DailyMetricSnapshot, update domain.MetricUpdate) *domain.DailyMetricSnapshot {
	if cached == nil && update.Empty() {
		return nil
	}

	snapshot := &domain.DailyMetricSnapshot{MemberID: memberID, Date: date}
	if cached != nil {
		*snapshot = *cached
	}
	if update.SleepSeconds != nil {
		snapshot.SleepSeconds = update.SleepSeconds
	}
	if update.SleepPerformancePct != nil {
		snapshot.SleepPerformancePct = update.SleepPerformancePct
	}
	if update.SleepConsistencyPct != nil {
		snapshot.SleepConsistencyPct = update.SleepConsistencyPct
	}
	if update.RecoveryScore != nil {
		snapshot.RecoveryScore = update.RecoveryScore
	}
	if update.StrainScore != nil {
		snapshot.StrainScore = update.StrainScore
	}
	return snapshot
}

// buildLeaderboard assembles the three descending rank lists. A member with
// an unknown value for a class is simply omitted from that list.
func buildLeaderboard(refDate time.Time, results []*memberResult) *domain.Leaderboard {
	board := &domain.Leaderboard{
		Date:     refDate,
		Sleep:    []domain.SleepRankEntry{},
		Recovery: []domain.RankEntry{},
		Strain:   []domain.RankEntry{},
	}

	for _, r := range results {
		if r == nil || r.revoked || r.snapshot == nil {
			continue
		}

		entry := domain.RankEntry{
			DisplayName: r.member.DisplayName,
			AvatarURL:   r.member.AvatarURL,
		}

		if r.snapshot.SleepPerformancePct != nil {
			sleepEntry := domain.SleepRankEntry{
				RankEntry:      entry,
				ConsistencyPct: r.snapshot.SleepConsistencyPct,
			}
			sleepEntry.Value = *r.snapshot.SleepPerformancePct
			if r.snapshot.SleepSeconds != nil {
				sleepEntry.SleepSeconds = *r.snapshot.SleepSeconds
			}
			board.Sleep = append(board.Sleep, sleepEntry)
		}

		if r.snapshot.RecoveryScore != nil {
			recoveryEntry := entry
			recoveryEntry.Value = *r.snapshot.RecoveryScore
			board.Recovery = append(board.Recovery, recoveryEntry)
		}

		if r.snapshot.StrainScore != nil {
			strainEntry := entry
			strainEntry.Value = *r.snapshot.StrainScore
			board.Strain = append(board.Strain, strainEntry)
		}
	}

	sort.SliceStable(board.Sleep, func(i, j int) bool { return board.Sleep[i].Value > board.Sleep[j].Value })
	sort.SliceStable(board.Recovery, func(i, j int) bool { return board.Recovery[i].Value > board.Recovery[j].Value })
	sort.SliceStable(board.Strain, func(i, j int) bool { return board.Strain[i].Value > board.Strain[j].Value })

	return board
}
