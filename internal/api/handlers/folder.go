package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tonojkeee/koordinator/internal/services"
)

// FolderHandler handles custom folder requests
type FolderHandler struct {
	folderService  *services.FolderService
	accountService *services.AccountService
	userService    *services.UserService
}

// NewFolderHandler creates a new FolderHandler instance
func NewFolderHandler(folderService *services.FolderService, accountService *services.AccountService, userService *services.UserService) *FolderHandler {
	return &FolderHandler{
		folderService:  folderService,
		accountService: accountService,
		userService:    userService,
	}
}

// CreateFolderRequest represents the request to create a folder
type CreateFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListFolders returns the user's folders ordered by name
// GET /api/email/folders
func (h *FolderHandler) ListFolders(c *gin.Context) {
	acc, ok := accountOf(c, h.userService, h.accountService)
	if !ok {
		return
	}
	folders, err := h.folderService.ListFolders(c.Request.Context(), acc.ID)
	if err != nil {
		respondServiceError(c, err, "Failed to list folders")
		return
	}
	respondOK(c, folders)
}

// CreateFolder creates a folder
// POST /api/email/folders
func (h *FolderHandler) CreateFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respondValidation(c, "Folder name is required", err)
		return
	}
	acc, ok := accountOf(c, h.userService, h.accountService)
	if !ok {
		return
	}

	folder, err := h.folderService.CreateFolder(c.Request.Context(), acc.ID, req.Name)
	if err != nil {
		respondServiceError(c, err, "Failed to create folder")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": folder})
}

// DeleteFolder deletes a folder and moves its messages back to the inbox
// DELETE /api/email/folders/:id
func (h *FolderHandler) DeleteFolder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	acc, ok := accountOf(c, h.userService, h.accountService)
	if !ok {
		return
	}

	if err := h.folderService.DeleteFolder(c.Request.Context(), acc.ID, id); err != nil {
		respondServiceError(c, err, "Failed to delete folder")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Folder deleted"})
}
