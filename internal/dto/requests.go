package dto

// EnrollRequest enrolls a member after the route layer finished the OAuth
// exchange. RefreshToken arrives in plaintext exactly once and is encrypted
// before storage.
type EnrollRequest struct {
	ProviderUserID string `json:"provider_user_id" binding:"required"`
	DisplayName    string `json:"display_name" binding:"required"`
	AvatarURL      string `json:"avatar_url"`
	RefreshToken   string `json:"refresh_token" binding:"required"`
}

// MemberResponse represents an enrolled member in responses
type MemberResponse struct {
	ID          string  `json:"id"`
	ExternalID  string  `json:"external_id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	CreatedAt   string  `json:"created_at"`
}

// StartSessionRefreshRequest registers a session for background token refresh
type StartSessionRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SessionRefreshResponse is returned when background refresh starts
type SessionRefreshResponse struct {
	SessionToken           string `json:"session_token"`
	TokenType              string `json:"token_type"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
}

// SessionStatusResponse reflects whether a session's background timer is
// still registered
type SessionStatusResponse struct {
	SessionID      string  `json:"session_id"`
	Active         bool    `json:"active"`
	HasAccessToken bool    `json:"has_access_token"`
	ExpiresAt      *string `json:"expires_at,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
