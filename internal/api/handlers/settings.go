package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tonojkeee/koordinator/internal/services"
	"github.com/tonojkeee/koordinator/internal/settings"
)

// editableSettings lists the keys that may be changed over the API
var editableSettings = map[string]bool{
	settings.KeyMaxAttachmentSizeMB:      true,
	settings.KeyMaxTotalAttachmentSizeMB: true,
	settings.KeyAllowedFileTypes:         true,
	settings.KeySMTPHost:                 true,
	settings.KeySMTPPort:                 true,
	settings.KeySMTPUsername:             true,
	settings.KeySMTPPassword:             true,
	settings.KeyInternalDomain:           true,
}

const maskedValue = "********"

// SettingsHandler handles system settings requests
type SettingsHandler struct {
	store      *settings.Store
	logService *services.LogService
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(store *settings.Store, logService *services.LogService) *SettingsHandler {
	return &SettingsHandler{
		store:      store,
		logService: logService,
	}
}

// SettingResponse is one setting as returned by the API
type SettingResponse struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Group     string `json:"group"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpdateSettingRequest represents the request to change a setting
type UpdateSettingRequest struct {
	Value *string `json:"value" binding:"required"`
}

// GetSettings returns every stored setting; secrets are masked
// GET /api/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), true)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get settings")
		return
	}

	resp := make([]SettingResponse, 0, len(list))
	for _, s := range list {
		value := s.Value
		if s.Key == settings.KeySMTPPassword && value != "" {
			value = maskedValue
		}
		resp = append(resp, SettingResponse{
			Key:       s.Key,
			Value:     value,
			Group:     s.Group,
			UpdatedAt: s.UpdatedAt.Unix(),
		})
	}
	respondOK(c, resp)
}

// UpdateSetting sets one setting. The new value applies to the next
// delivery or send without a restart.
// PUT /api/settings/:key
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	key := c.Param("key")
	if !editableSettings[key] {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Unknown setting "+key)
		return
	}

	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	if err := h.store.Set(c.Request.Context(), key, *req.Value); err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update setting")
		return
	}

	userID, _ := currentUserID(c)
	h.logService.LogSettingChanged(userID, key)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Setting updated"})
}
