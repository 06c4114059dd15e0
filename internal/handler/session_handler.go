package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pzhurov/fitrank/internal/dto"
	"github.com/pzhurov/fitrank/internal/service"
	"github.com/pzhurov/fitrank/internal/utils"
)

// SessionHandler handles background session refresh requests
type SessionHandler struct {
	refresher *service.SessionRefresher
	tokens    *utils.SessionTokenManager
	blacklist *service.SessionTokenBlacklist
	interval  time.Duration
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	refresher *service.SessionRefresher,
	tokens *utils.SessionTokenManager,
	blacklist *service.SessionTokenBlacklist,
	interval time.Duration,
) *SessionHandler {
	return &SessionHandler{
		refresher: refresher,
		tokens:    tokens,
		blacklist: blacklist,
		interval:  interval,
	}
}

// Start handles session refresh registration
// @Summary Start background token refresh for a session
// @Description Register a session so its access token is refreshed on a timer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param request body dto.StartSessionRefreshRequest true "Refresh token to adopt"
// @Success 201 {object} dto.SessionRefreshResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /sessions/{id}/refresh [post]
func (h *SessionHandler) Start(c *gin.Context) {
	sessionID := c.Param("id")

	var req dto.StartSessionRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	sessionToken, err := h.tokens.Generate(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to issue session token",
		})
		return
	}

	h.refresher.Start(sessionID, req.RefreshToken)

	c.JSON(http.StatusCreated, dto.SessionRefreshResponse{
		SessionToken:           sessionToken,
		TokenType:              "Bearer",
		RefreshIntervalSeconds: int(h.interval.Seconds()),
	})
}

// Status handles session refresh status lookups
// @Summary Get session refresh status
// @Tags sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} dto.SessionStatusResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /sessions/{id}/refresh [get]
func (h *SessionHandler) Status(c *gin.Context) {
	sessionID := c.Param("id")
	if !h.authorized(c, sessionID) {
		return
	}

	status, active := h.refresher.Status(sessionID)

	resp := dto.SessionStatusResponse{
		SessionID:      sessionID,
		Active:         active,
		HasAccessToken: status.HasAccessToken,
	}
	if active && !status.ExpiresAt.IsZero() {
		expiresAt := status.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &expiresAt
	}

	c.JSON(http.StatusOK, resp)
}

// Stop handles session refresh cancellation
// @Summary Stop background token refresh for a session
// @Description Unregister the session's timer and revoke the session token
// @Tags sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} dto.SuccessResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /sessions/{id}/refresh [delete]
func (h *SessionHandler) Stop(c *gin.Context) {
	sessionID := c.Param("id")
	if !h.authorized(c, sessionID) {
		return
	}

	h.refresher.Stop(sessionID)

	// Revoke the control token for the remainder of its lifetime so it
	// cannot restart or inspect the session after this point.
	token := c.GetString("session_token")
	if expiresAt, ok := c.Get("session_token_expires_at"); ok {
		if exp, ok := expiresAt.(time.Time); ok && token != "" {
			_ = h.blacklist.Revoke(c.Request.Context(), token, time.Until(exp))
		}
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Session refresh stopped"})
}

// authorized rejects requests whose session token was minted for a
// different session id.
func (h *SessionHandler) authorized(c *gin.Context, sessionID string) bool {
	if c.GetString("session_id") != sessionID {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "Forbidden",
			Message: "Session token does not match this session",
		})
		return false
	}
	return true
}
