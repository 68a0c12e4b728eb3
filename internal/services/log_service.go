package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"gorm.io/gorm"
)

// LogService writes audit rows below a minimum level
type LogService struct {
	db  *gorm.DB
	min models.LogLevel
}

// NewLogService records INFO and above
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db, min: models.LogLevelInfo}
}

// NewLogServiceWithLevel records level and above; see models.ParseLogLevel
func NewLogServiceWithLevel(db *gorm.DB, level string) *LogService {
	return &LogService{db: db, min: models.ParseLogLevel(level)}
}

// WithDB returns a copy writing through db. Inside a transaction the rows
// commit or roll back with it.
func (s *LogService) WithDB(db *gorm.DB) *LogService {
	return &LogService{db: db, min: s.min}
}

func (s *LogService) write(level models.LogLevel, userID uint, module models.LogModule, action, message string, details interface{}) error {
	if !level.AtLeast(s.min) {
		return nil
	}
	row := models.Log{
		UserID:  userID,
		Level:   string(level),
		Module:  string(module),
		Action:  action,
		Message: message,
	}
	if details != nil {
		row.Details = "{}"
		if b, err := json.Marshal(details); err == nil {
			row.Details = string(b)
		}
	}
	return s.db.Create(&row).Error
}

func (s *LogService) LogDebug(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.write(models.LogLevelDebug, userID, module, action, message, details)
}

func (s *LogService) LogInfo(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.write(models.LogLevelInfo, userID, module, action, message, details)
}

func (s *LogService) LogWarn(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.write(models.LogLevelWarn, userID, module, action, message, details)
}

func (s *LogService) LogError(userID uint, module models.LogModule, action, message string, details interface{}) error {
	return s.write(models.LogLevelError, userID, module, action, message, details)
}

// DeliveryDetails describes one ingestion call
type DeliveryDetails struct {
	Sender        string   `json:"sender"`
	Recipients    []string `json:"recipients"`
	Copies        int      `json:"copies"`
	Undeliverable []string `json:"undeliverable,omitempty"`
	State         string   `json:"state,omitempty"`
	ErrorMsg      string   `json:"error_msg,omitempty"`
}

// LogDelivery records the outcome of an ingestion call
func (s *LogService) LogDelivery(details DeliveryDetails, err error) error {
	if err != nil {
		details.ErrorMsg = err.Error()
		return s.LogError(0, models.LogModuleEmail, "deliver", "Inbound delivery aborted", details)
	}
	return s.LogInfo(0, models.LogModuleEmail, "deliver", "Inbound message delivered", details)
}

// LogAccountProvisioned records an auto-created account
func (s *LogService) LogAccountProvisioned(userID uint, address string) error {
	return s.LogInfo(userID, models.LogModuleAccount, "auto_create", "Auto-created email account", map[string]string{
		"email_address": address,
	})
}

// LogAttachmentRejected records an attachment refused by policy
func (s *LogService) LogAttachmentRejected(sender, filename string, size int64, reason string) error {
	return s.LogWarn(0, models.LogModuleEmail, "attachment_rejected", "Attachment rejected", map[string]interface{}{
		"sender":   sender,
		"filename": filename,
		"size":     size,
		"reason":   reason,
	})
}

// SendDetails describes an outbound send
type SendDetails struct {
	MessageID uint   `json:"message_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// LogSend records a send and its transmission outcome
func (s *LogService) LogSend(userID uint, details SendDetails, err error) error {
	if err != nil {
		details.Status = "failed"
		details.ErrorMsg = err.Error()
		return s.LogError(userID, models.LogModuleSMTP, "send", "Transmission failed", details)
	}
	details.Status = "transmitted"
	return s.LogInfo(userID, models.LogModuleSMTP, "send", "Message transmitted", details)
}

// LogLogin logs a login attempt
func (s *LogService) LogLogin(userID uint, username, clientIP string, success bool, err error) error {
	details := map[string]string{"username": username, "client_ip": clientIP, "status": "success"}
	if !success {
		details["status"] = "failed"
		if err != nil {
			details["error_msg"] = err.Error()
		}
		return s.LogWarn(userID, models.LogModuleAuth, "login", "Login attempt failed", details)
	}
	return s.LogInfo(userID, models.LogModuleAuth, "login", "User logged in successfully", details)
}

// LogSettingChanged records an update of a dynamic setting
func (s *LogService) LogSettingChanged(userID uint, key string) error {
	return s.LogInfo(userID, models.LogModuleSettings, "update", "Setting updated", map[string]string{"key": key})
}

// LogQuery filters audit rows. Zero fields match everything.
type LogQuery struct {
	UserID uint
	Level  string
	Module string
	Action string
	Since  time.Time
	Page   int
	Limit  int
}

// LogPage is one page of audit rows and the unpaged total
type LogPage struct {
	Total int64        `json:"total"`
	Logs  []models.Log `json:"logs"`
}

// QueryLogs returns matching rows, newest first. Page counts from 1 and
// Limit defaults to 50.
func (s *LogService) QueryLogs(q LogQuery) (*LogPage, error) {
	db := s.db.Model(&models.Log{}).Where(&models.Log{
		UserID: q.UserID,
		Level:  strings.ToUpper(q.Level),
		Module: q.Module,
		Action: q.Action,
	})
	if !q.Since.IsZero() {
		db = db.Where("created_at >= ?", q.Since)
	}

	page := &LogPage{}
	if err := db.Count(&page.Total).Error; err != nil {
		return nil, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}
	err := db.Order("created_at DESC, id DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&page.Logs).Error
	if err != nil {
		return nil, err
	}
	return page, nil
}
