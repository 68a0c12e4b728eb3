package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tonojkeee/koordinator/internal/api/middleware"
	"github.com/tonojkeee/koordinator/internal/services"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondValidation(c *gin.Context, message string, err error) {
	body := gin.H{"code": "VALIDATION_ERROR", "message": message}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": body})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// respondServiceError maps service errors to status codes. NotFound covers
// foreign rows too.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrInvalidEmailData):
		respondValidation(c, err.Error(), nil)
	case errors.Is(err, services.ErrFolderExists):
		respondError(c, http.StatusConflict, "CONFLICT", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

// currentUserID aborts with 401 when the request carries no user.
func currentUserID(c *gin.Context) (uint, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return 0, false
	}
	return userID, true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondValidation(c, "Invalid "+name, err)
		return 0, false
	}
	return uint(id), true
}
