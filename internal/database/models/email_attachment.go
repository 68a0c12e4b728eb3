package models

import (
	"time"
)

// EmailAttachment is a stored attachment of one message copy. StoragePath is
// a generated name and never contains the original filename.
type EmailAttachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MessageID   uint      `gorm:"index;not null" json:"message_id"`
	Filename    string    `gorm:"size:255" json:"filename"`
	ContentType string    `gorm:"size:255" json:"content_type"`
	Size        int64     `json:"size"`
	StoragePath string    `gorm:"size:500;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
