package models

import (
	"time"
)

// EmailFolder is a custom folder of an account
type EmailFolder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"uniqueIndex:idx_folder_account_slug;not null" json:"account_id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex:idx_folder_account_slug;size:120;not null" json:"slug"`
	IsSystem  bool      `gorm:"default:false" json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
}
