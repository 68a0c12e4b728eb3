package handlers

import (
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/mailbox"
	"github.com/tonojkeee/koordinator/internal/services"
)

// EmailHandler handles mailbox related requests
type EmailHandler struct {
	emailService   *services.EmailService
	accountService *services.AccountService
	userService    *services.UserService
	logService     *services.LogService
}

// NewEmailHandler creates a new EmailHandler instance
func NewEmailHandler(emailService *services.EmailService, accountService *services.AccountService, userService *services.UserService, logService *services.LogService) *EmailHandler {
	return &EmailHandler{
		emailService:   emailService,
		accountService: accountService,
		userService:    userService,
		logService:     logService,
	}
}

// account resolves the mailbox of the authenticated user, creating it on
// first use. It writes the error response itself.
func (h *EmailHandler) account(c *gin.Context) (*models.EmailAccount, bool) {
	return accountOf(c, h.userService, h.accountService)
}

func accountOf(c *gin.Context, users *services.UserService, accounts *services.AccountService) (*models.EmailAccount, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	user, err := users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not found")
		return nil, false
	}
	acc, err := accounts.GetOrCreateForUser(c.Request.Context(), user)
	if err != nil {
		log.Printf("[api] failed to load account for user %d: %v", userID, err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load email account")
		return nil, false
	}
	return acc, true
}

// GetAccount returns the current user's email account
// GET /api/email/account
func (h *EmailHandler) GetAccount(c *gin.Context) {
	acc, ok := h.account(c)
	if !ok {
		return
	}
	respondOK(c, acc)
}

// Lookup resolves a recipient address while composing
// GET /api/email/lookup?address=
func (h *EmailHandler) Lookup(c *gin.Context) {
	address := services.NormalizeAddress(c.Query("address"))
	if address == "" {
		respondValidation(c, "address is required", nil)
		return
	}

	acc, err := h.accountService.Resolve(c.Request.Context(), address)
	if err != nil {
		respondServiceError(c, err, "Failed to resolve address")
		return
	}
	if acc == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "No mailbox for "+address)
		return
	}
	respondOK(c, acc)
}

// ListMessages returns one view of the mailbox, newest first
// GET /api/email/messages?view=&skip=&limit=
func (h *EmailHandler) ListMessages(c *gin.Context) {
	view, err := mailbox.ParseView(c.Query("view"))
	if err != nil {
		respondValidation(c, "Invalid view", err)
		return
	}
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		respondValidation(c, "Invalid skip", err)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultListLimit)))
	if err != nil || limit < 1 || limit > services.MaxListLimit {
		respondValidation(c, fmt.Sprintf("limit must be between 1 and %d", services.MaxListLimit), err)
		return
	}

	acc, ok := h.account(c)
	if !ok {
		return
	}

	result, err := h.emailService.ListMessages(c.Request.Context(), acc.ID, services.MessageListOptions{
		View:  view,
		Skip:  skip,
		Limit: limit,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to list messages")
		return
	}
	respondOK(c, result)
}

// GetMessage returns a message and marks it read
// GET /api/email/messages/:id
func (h *EmailHandler) GetMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	acc, ok := h.account(c)
	if !ok {
		return
	}

	msg, err := h.emailService.OpenMessage(c.Request.Context(), acc.ID, id)
	if err != nil {
		respondServiceError(c, err, "Failed to get message")
		return
	}
	respondOK(c, msg)
}

// SendEmail persists and transmits a message
// POST /api/email/send
func (h *EmailHandler) SendEmail(c *gin.Context) {
	var req services.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}
	acc, ok := h.account(c)
	if !ok {
		return
	}

	// Transmission failures are logged by the service and never reach here.
	msg, err := h.emailService.Send(c.Request.Context(), acc, req)
	if err != nil {
		respondServiceError(c, err, "Failed to send email")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": msg})
}

// UpdateMessage changes flags or the location of a message
// PATCH /api/email/messages/:id
func (h *EmailHandler) UpdateMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.MessageUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}
	acc, ok := h.account(c)
	if !ok {
		return
	}

	msg, err := h.emailService.UpdateMessage(c.Request.Context(), acc.ID, id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update message")
		return
	}
	respondOK(c, msg)
}

// DeleteMessage removes a message and its attachments
// DELETE /api/email/messages/:id
func (h *EmailHandler) DeleteMessage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	acc, ok := h.account(c)
	if !ok {
		return
	}

	if err := h.emailService.DeleteMessage(c.Request.Context(), acc.ID, id); err != nil {
		respondServiceError(c, err, "Failed to delete message")
		return
	}
	userID, _ := currentUserID(c)
	h.logService.LogInfo(userID, models.LogModuleEmail, "delete", "Message deleted", map[string]uint{"message_id": id})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message deleted"})
}

// DownloadAttachment streams an attachment of one of the user's messages
// GET /api/email/attachments/:id/download
func (h *EmailHandler) DownloadAttachment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	acc, ok := h.account(c)
	if !ok {
		return
	}

	att, rc, err := h.emailService.OpenAttachment(c.Request.Context(), acc.ID, id)
	if err != nil {
		respondServiceError(c, err, "Failed to download attachment")
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	c.Header("Content-Length", strconv.FormatInt(att.Size, 10))
	c.Header("Content-Type", att.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		log.Printf("[api] attachment %d download interrupted: %v", att.ID, err)
	}
}
