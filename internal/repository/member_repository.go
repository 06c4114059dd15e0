package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pzhurov/fitrank/internal/domain"
	"github.com/pzhurov/fitrank/pkg/database"
)

// memberRepository implements MemberRepository interface
type memberRepository struct {
	db *database.Postgres
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.Postgres) MemberRepository {
	return &memberRepository{db: db}
}

// Upsert inserts a member or, when the external id is already enrolled,
// updates display fields and the encrypted secret in place. Idempotent.
func (r *memberRepository) Upsert(ctx context.Context, member *domain.Member) error {
	query := `
		INSERT INTO members (id, external_id, display_name, avatar_url, encrypted_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    avatar_url = EXCLUDED.avatar_url,
		    encrypted_secret = EXCLUDED.encrypted_secret,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	if member.ID == "" {
		member.ID = uuid.New().String()
	}

	now := time.Now()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now

	err := r.db.DB.QueryRowContext(ctx, query,
		member.ID,
		member.ExternalID,
		member.DisplayName,
		member.AvatarURL,
		member.EncryptedSecret,
		member.CreatedAt,
		member.UpdatedAt,
	).Scan(&member.ID, &member.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("member with external id %s: %w", member.ExternalID, ErrDuplicateMember)
			}
		}
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	return nil
}

// GetAll retrieves every enrolled member
func (r *memberRepository) GetAll(ctx context.Context) ([]*domain.Member, error) {
	query := `
		SELECT id, external_id, display_name, avatar_url, encrypted_secret, created_at, updated_at
		FROM members
		ORDER BY created_at
	`

	rows, err := r.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// GetByExternalID retrieves a member by provider external id
func (r *memberRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Member, error) {
	query := `
		SELECT id, external_id, display_name, avatar_url, encrypted_secret, created_at, updated_at
		FROM members
		WHERE external_id = $1
	`

	member, err := scanMember(r.db.DB.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member with external id %s not found: %w", externalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get member by external id: %w", err)
	}

	return member, nil
}

// UpdateSecret persists a rotated refresh token ciphertext. Callers must
// invoke this before any further provider call that could fail and strand
// the old secret.
func (r *memberRepository) UpdateSecret(ctx context.Context, memberID, encryptedSecret string) error {
	query := `
		UPDATE members
		SET encrypted_secret = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, memberID, encryptedSecret, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update member secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("member with id %s not found: %w", memberID, ErrNotFound)
	}

	return nil
}

// DeleteByID deletes a member; daily_metrics rows cascade
func (r *memberRepository) DeleteByID(ctx context.Context, memberID string) error {
	return r.deleteWhere(ctx, `DELETE FROM members WHERE id = $1`, memberID)
}

// DeleteByExternalID deletes a member by provider external id; daily_metrics rows cascade
func (r *memberRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	return r.deleteWhere(ctx, `DELETE FROM members WHERE external_id = $1`, externalID)
}

func (r *memberRepository) deleteWhere(ctx context.Context, query, arg string) error {
	result, err := r.db.DB.ExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("member %s not found: %w", arg, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*domain.Member, error) {
	member := &domain.Member{}
	var avatarURL sql.NullString

	err := row.Scan(
		&member.ID,
		&member.ExternalID,
		&member.DisplayName,
		&avatarURL,
		&member.EncryptedSecret,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if avatarURL.Valid {
		member.AvatarURL = &avatarURL.String
	}

	return member, nil
}
