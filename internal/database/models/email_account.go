package models

import (
	"time"
)

// EmailAccount is a mailbox identified by a unique address. Accounts of
// external correspondents have no linked user.
type EmailAccount struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       *uint     `gorm:"index" json:"user_id"`
	EmailAddress string    `gorm:"uniqueIndex;size:255;not null" json:"email_address"`
	CreatedAt    time.Time `json:"created_at"`

	// Relations
	Messages []EmailMessage `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Folders  []EmailFolder  `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}
