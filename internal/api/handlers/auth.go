package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonojkeee/koordinator/internal/api/middleware"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/services"
)

// AuthHandler issues bearer tokens
type AuthHandler struct {
	users  *services.UserService
	tokens *middleware.JWTManager
	audit  *services.LogService
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(users *services.UserService, tokens *middleware.JWTManager, audit *services.LogService) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, audit: audit}
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
	User      userProfile `json:"user"`
}

type userProfile struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	CreatedAt int64  `json:"created_at"`
}

func profileOf(u *models.User) userProfile {
	return userProfile{ID: u.ID, Username: u.Username, Nickname: u.Nickname, CreatedAt: u.CreatedAt.Unix()}
}

func (h *AuthHandler) issue(c *gin.Context, u *models.User) {
	token, expiresAt, err := h.tokens.GenerateToken(u.ID, u.Username)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}
	respondOK(c, tokenResponse{Token: token, ExpiresAt: expiresAt, User: profileOf(u)})
}

// Login exchanges username and password for a token
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.audit.LogLogin(0, req.Username, c.ClientIP(), false, err)
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid username or password")
		return
	}
	h.audit.LogLogin(u.ID, u.Username, c.ClientIP(), true, nil)
	h.issue(c, u)
}

// RefreshToken issues a fresh token to a still authenticated user
// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	h.issue(c, u)
}

// GetCurrentUser returns the authenticated user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	if u, ok := h.currentUser(c); ok {
		respondOK(c, profileOf(u))
	}
}

// currentUser loads the token's user so deleted users stop refreshing.
func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	u, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User no longer exists")
		return nil, false
	}
	return u, true
}
