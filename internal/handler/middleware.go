package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pzhurov/fitrank/internal/dto"
	"github.com/pzhurov/fitrank/internal/service"
	"github.com/pzhurov/fitrank/internal/utils"
)

// BearerToken extracts the token from an Authorization header, or "" when absent.
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// SessionAuthMiddleware validates the session control token issued when
// background refresh started and binds the request to its session id.
func SessionAuthMiddleware(tokens *utils.SessionTokenManager, blacklist *service.SessionTokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Session token is required",
			})
			c.Abort()
			return
		}

		revoked, err := blacklist.IsRevoked(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal server error",
				Message: "Failed to check session token",
			})
			c.Abort()
			return
		}
		if revoked {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Session token has been revoked",
			})
			c.Abort()
			return
		}

		sessionID, expiresAt, err := tokens.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired session token",
			})
			c.Abort()
			return
		}

		c.Set("session_id", sessionID)
		c.Set("session_token", token)
		c.Set("session_token_expires_at", expiresAt)

		c.Next()
	}
}

// AdminKeyMiddleware guards admin routes with the configured bcrypt-hashed key.
func AdminKeyMiddleware(adminKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if key == "" || !utils.VerifyAdminKey(key, adminKeyHash) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid admin key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
