package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/services"
)

// UserHandler lets users edit their own profile
type UserHandler struct {
	users *services.UserService
	audit *services.LogService
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(users *services.UserService, audit *services.LogService) *UserHandler {
	return &UserHandler{users: users, audit: audit}
}

type profileUpdate struct {
	Nickname string `json:"nickname" binding:"max=100"`
}

type passwordChange struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// UpdateProfile changes the nickname
// PUT /api/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req profileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	u, err := h.users.UpdateNickname(c.Request.Context(), userID, req.Nickname)
	if err != nil {
		respondServiceError(c, err, "Failed to update profile")
		return
	}
	h.audit.LogInfo(userID, models.LogModuleUser, "profile_update", "Nickname changed", nil)
	respondOK(c, profileOf(u))
}

// ChangePassword replaces the password after checking the old one
// PUT /api/user/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req passwordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		h.audit.LogInfo(userID, models.LogModuleUser, "password_change", "Password changed", nil)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed"})
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Old password is incorrect")
	case errors.Is(err, services.ErrPasswordTooShort):
		respondValidation(c, err.Error(), nil)
	default:
		respondServiceError(c, err, "Failed to change password")
	}
}
