package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pzhurov/fitrank/internal/dto"
	"github.com/pzhurov/fitrank/internal/service"
)

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	leaderboardService service.LeaderboardService
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboardService service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

// Get handles leaderboard retrieval
// @Summary Get today's leaderboard
// @Description Run an aggregation pass and return the tiered rank lists
// @Tags leaderboard
// @Produce json
// @Param force query string false "Force refresh: all, strain or sleep"
// @Success 200 {object} domain.Leaderboard
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /leaderboard [get]
func (h *LeaderboardHandler) Get(c *gin.Context) {
	force, err := service.ParseForceMode(c.Query("force"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	board, err := h.leaderboardService.Run(c.Request.Context(), force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to build leaderboard",
		})
		return
	}

	c.JSON(http.StatusOK, board)
}
