package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pzhurov/fitrank/internal/dto"
	"github.com/pzhurov/fitrank/internal/repository"
	"github.com/pzhurov/fitrank/internal/service"
)

// MemberHandler handles member enrollment and unlink requests
type MemberHandler struct {
	enrollmentService service.EnrollmentService
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(enrollmentService service.EnrollmentService) *MemberHandler {
	return &MemberHandler{
		enrollmentService: enrollmentService,
	}
}

// Enroll handles member enrollment
// @Summary Enroll a member
// @Description Enroll a member, taking custody of their provider refresh token
// @Tags members
// @Accept json
// @Produce json
// @Param request body dto.EnrollRequest true "Enrollment request"
// @Success 201 {object} dto.MemberResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /members [post]
func (h *MemberHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	response, err := h.enrollmentService.Enroll(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateMember) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{
				Error:   "Conflict",
				Message: "Member is already enrolled",
			})
			return
		}
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to enroll member",
		})
		return
	}

	c.JSON(http.StatusCreated, response)
}

// Unlink handles self-service unlink
// @Summary Unlink the calling member
// @Description Remove the member identified by the supplied provider access token
// @Tags members
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /members [delete]
func (h *MemberHandler) Unlink(c *gin.Context) {
	accessToken := BearerToken(c)
	if accessToken == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Provider access token is required",
		})
		return
	}

	if err := h.enrollmentService.Unlink(c.Request.Context(), accessToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: "Member is not enrolled",
			})
			return
		}
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Failed to identify member with the supplied token",
		})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Member unlinked"})
}

// AdminUnlink handles administrative unlink by external id
// @Summary Unlink a member (admin)
// @Description Remove a member by provider user id
// @Tags admin
// @Produce json
// @Param externalID path string true "Provider user id"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /admin/members/{externalID} [delete]
func (h *MemberHandler) AdminUnlink(c *gin.Context) {
	externalID := c.Param("externalID")

	if err := h.enrollmentService.AdminUnlink(c.Request.Context(), externalID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: "Member is not enrolled",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to unlink member",
		})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Member unlinked"})
}
