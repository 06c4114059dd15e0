package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pzhurov/fitrank/internal/domain"
	"github.com/pzhurov/fitrank/internal/dto"
	"github.com/pzhurov/fitrank/internal/repository"
	"github.com/pzhurov/fitrank/internal/utils"
	"go.uber.org/zap"
)

// enrollmentService implements EnrollmentService
type enrollmentService struct {
	memberRepo repository.MemberRepository
	vault      SecretVault
	profiles   ProfileFetcher
	logger     *zap.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	memberRepo repository.MemberRepository,
	vault SecretVault,
	profiles ProfileFetcher,
	logger *zap.Logger,
) EnrollmentService {
	return &enrollmentService{
		memberRepo: memberRepo,
		vault:      vault,
		profiles:   profiles,
		logger:     logger,
	}
}

// Enroll custodies a freshly obtained refresh token for a member. Called
// after the route layer has completed the authorization-code exchange.
// Idempotent: re-enrolling an existing member updates display fields and
// replaces the stored secret.
func (s *enrollmentService) Enroll(ctx context.Context, req *dto.EnrollRequest) (*dto.MemberResponse, error) {
	if !utils.ValidateExternalID(req.ProviderUserID) {
		return nil, fmt.Errorf("invalid provider user id: %w", ErrValidation)
	}

	displayName := utils.SanitizeDisplayName(req.DisplayName)
	if displayName == "" {
		return nil, fmt.Errorf("display name is required: %w", ErrValidation)
	}

	if req.AvatarURL != "" && !utils.ValidateAvatarURL(req.AvatarURL) {
		return nil, fmt.Errorf("invalid avatar url: %w", ErrValidation)
	}

	if req.RefreshToken == "" {
		return nil, fmt.Errorf("refresh token is required: %w", ErrValidation)
	}

	// The plaintext refresh token must never persist; only ciphertext is stored.
	encrypted, err := s.vault.Encrypt(req.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	member := &domain.Member{
		ExternalID:      req.ProviderUserID,
		DisplayName:     displayName,
		EncryptedSecret: encrypted,
	}
	if req.AvatarURL != "" {
		member.AvatarURL = &req.AvatarURL
	}

	if err := s.memberRepo.Upsert(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to enroll member: %w", err)
	}

	s.logger.Info("member enrolled",
		zap.String("member_id", member.ID),
		zap.String("external_id", member.ExternalID),
	)

	return &dto.MemberResponse{
		ID:          member.ID,
		ExternalID:  member.ExternalID,
		DisplayName: member.DisplayName,
		AvatarURL:   member.AvatarURL,
		CreatedAt:   member.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Unlink removes the member identified by a provider access token. The token
// is used solely to resolve which member to remove.
func (s *enrollmentService) Unlink(ctx context.Context, accessToken string) error {
	profile, err := s.profiles.Profile(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("failed to identify member: %w", err)
	}

	if err := s.memberRepo.DeleteByExternalID(ctx, profile.UserID); err != nil {
		return fmt.Errorf("failed to unlink member: %w", err)
	}

	s.logger.Info("member unlinked", zap.String("external_id", profile.UserID))
	return nil
}

// AdminUnlink removes a member by external id without touching the provider.
func (s *enrollmentService) AdminUnlink(ctx context.Context, externalID string) error {
	if err := s.memberRepo.DeleteByExternalID(ctx, externalID); err != nil {
		return fmt.Errorf("failed to unlink member: %w", err)
	}

	s.logger.Info("member unlinked by admin", zap.String("external_id", externalID))
	return nil
}
