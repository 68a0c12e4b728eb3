package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Options selects and tunes the database connection
type Options struct {
	Driver   string
	Path     string // sqlite file path
	DSN      string // mysql data source name
	LogLevel string
}

// Initialize creates and returns a database connection
func Initialize(opts Options) (*gorm.DB, error) {
	dialector, err := openDialector(opts)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		// Unique-constraint violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

func openDialector(opts Options) (gorm.Dialector, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		// Ensure the directory exists
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, err
		}
		// Foreign keys are off by default in SQLite
		return sqlite.Open(opts.Path + "?_foreign_keys=on"), nil
	case DriverMySQL:
		if opts.DSN == "" {
			return nil, fmt.Errorf("mysql driver requires a dsn")
		}
		return mysql.Open(opts.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logger.Info
	case "ERROR":
		return logger.Error
	case "SILENT":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// RunMigrations migrates every model and upgrades legacy rows
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.EmailAccount{},
		&models.EmailFolder{},
		&models.EmailMessage{},
		&models.EmailAttachment{},
		&models.SystemSetting{},
		&models.Log{},
	); err != nil {
		return err
	}

	return migrateLegacyFlags(db)
}

// legacyFlagColumns are the boolean columns that described a message's
// location before it became a single field.
var legacyFlagColumns = []string{"is_sent", "is_deleted", "is_archived"}

// migrateLegacyFlags derives location and trashed_from for rows written by
// the flag-based schema. Rows are only touched while the legacy columns exist
// and the location still holds its column default.
func migrateLegacyFlags(db *gorm.DB) error {
	for _, col := range legacyFlagColumns {
		if !db.Migrator().HasColumn(&models.EmailMessage{}, col) {
			return nil
		}
	}

	base := `CASE
		WHEN is_sent THEN 'sent'
		WHEN is_archived THEN 'archive'
		WHEN folder_id IS NOT NULL THEN 'folder'
		ELSE 'inbox' END`

	stmts := []string{
		"UPDATE email_messages SET trashed_from = " + base + ", location = 'trash' WHERE is_deleted AND location = 'inbox' AND (trashed_from IS NULL OR trashed_from = '')",
		"UPDATE email_messages SET location = " + base + " WHERE NOT is_deleted AND location = 'inbox'",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate legacy flags: %w", err)
		}
	}

	for _, col := range legacyFlagColumns {
		if err := db.Migrator().DropColumn(&models.EmailMessage{}, col); err != nil {
			log.Printf("[Migration] Warning: failed to drop legacy column %s: %v", col, err)
		}
	}
	log.Printf("[Migration] Derived message locations from legacy flags")
	return nil
}
