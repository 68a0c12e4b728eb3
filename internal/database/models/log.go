package models

import (
	"strings"
	"time"
)

// Log is one audit row. Details holds a JSON document.
type Log struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Level     string    `gorm:"size:20;index" json:"level"`
	Module    string    `gorm:"size:50;index" json:"module"`
	Action    string    `gorm:"size:100" json:"action"`
	Message   string    `gorm:"type:text" json:"message"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// LogLevel orders audit rows by severity
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var logLevelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// AtLeast reports whether l is as severe as min
func (l LogLevel) AtLeast(min LogLevel) bool {
	return logLevelRank[l] >= logLevelRank[min]
}

// ParseLogLevel maps a config value to a level, defaulting to INFO.
// WARNING is accepted as WARN.
func ParseLogLevel(s string) LogLevel {
	l := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if l == "WARNING" {
		return LogLevelWarn
	}
	if _, ok := logLevelRank[l]; ok {
		return l
	}
	return LogLevelInfo
}

// LogModule names the subsystem that wrote a row
type LogModule string

const (
	LogModuleAuth     LogModule = "auth"
	LogModuleUser     LogModule = "user"
	LogModuleEmail    LogModule = "email"
	LogModuleAccount  LogModule = "account"
	LogModuleSettings LogModule = "settings"
	LogModuleSMTP     LogModule = "smtp"
)
