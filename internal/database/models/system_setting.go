package models

import (
	"time"
)

// SystemSetting is one entry of the dynamic key/value settings store.
// Values are always strings; typed access lives in the settings package.
type SystemSetting struct {
	Key         string    `gorm:"primaryKey;size:100" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Type        string    `gorm:"size:20;default:'str'" json:"type"`
	Description string    `gorm:"size:255" json:"description"`
	IsPublic    bool      `gorm:"default:false" json:"is_public"`
	Group       string    `gorm:"size:50;default:'general'" json:"group"`
	UpdatedAt   time.Time `json:"updated_at"`
}
