package domain

import "time"

// Member represents an enrolled person whose provider refresh token is
// custodied for unattended metric aggregation.
type Member struct {
	ID              string    `json:"id" db:"id"`
	ExternalID      string    `json:"external_id" db:"external_id"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	AvatarURL       *string   `json:"avatar_url" db:"avatar_url"`
	EncryptedSecret string    `json:"-" db:"encrypted_secret"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
