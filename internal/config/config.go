package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	DatabaseDriver string `json:"database_driver" yaml:"database_driver"` // sqlite or mysql
	DatabasePath   string `json:"database_path" yaml:"database_path"`
	DatabaseDSN    string `json:"database_dsn" yaml:"database_dsn"`
	APIPort        string `json:"api_port" yaml:"api_port"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
	DataDir        string `json:"data_dir" yaml:"data_dir"`
	JWTSecret      string `json:"jwt_secret" yaml:"jwt_secret"`
	CORSOrigins    string `json:"cors_origins" yaml:"cors_origins"` // comma separated, * allows all

	// Inbound SMTP listener; empty SMTPListen disables it
	SMTPListen      string `json:"smtp_listen" yaml:"smtp_listen"`
	SMTPDomain      string `json:"smtp_domain" yaml:"smtp_domain"`
	MaxMessageBytes int64  `json:"max_message_bytes" yaml:"max_message_bytes"`

	// Default for the email_internal_domain setting
	InternalEmailDomain string `json:"internal_email_domain" yaml:"internal_email_domain"`

	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// StorageConfig selects where attachment bytes live
type StorageConfig struct {
	Backend        string `json:"backend" yaml:"backend"` // disk or s3
	AttachmentsDir string `json:"attachments_dir" yaml:"attachments_dir"`
	S3Bucket       string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint     string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3Prefix       string `json:"s3_prefix" yaml:"s3_prefix"`
}

// Default configuration values
const (
	DefaultDatabaseDriver      = "sqlite"
	DefaultDatabasePath        = "data/koordinator.db"
	DefaultAPIPort             = "8080"
	DefaultLogLevel            = "INFO"
	DefaultDataDir             = "data"
	DefaultJWTSecret           = "koordinator-default-secret-change-in-production"
	DefaultCORSOrigins         = "*"
	DefaultSMTPListen          = ":2525"
	DefaultSMTPDomain          = "localhost"
	DefaultMaxMessageBytes     = 64 << 20
	DefaultInternalEmailDomain = "coordinator.local"
	DefaultStorageBackend      = "disk"
	DefaultS3Prefix            = "email_attachments/"
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDriver:      DefaultDatabaseDriver,
		DatabasePath:        DefaultDatabasePath,
		APIPort:             DefaultAPIPort,
		LogLevel:            DefaultLogLevel,
		DataDir:             DefaultDataDir,
		JWTSecret:           DefaultJWTSecret,
		CORSOrigins:         DefaultCORSOrigins,
		SMTPListen:          DefaultSMTPListen,
		SMTPDomain:          DefaultSMTPDomain,
		MaxMessageBytes:     DefaultMaxMessageBytes,
		InternalEmailDomain: DefaultInternalEmailDomain,
		Storage: StorageConfig{
			Backend:  DefaultStorageBackend,
			S3Prefix: DefaultS3Prefix,
		},
	}

	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads the first config file found. Both JSON and YAML are
// accepted, chosen by extension.
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		"config.yaml",
		"config.yml",
		filepath.Join(c.DataDir, "config.json"),
		filepath.Join(c.DataDir, "config.yaml"),
	}
	if path := os.Getenv("KOORDINATOR_CONFIG"); path != "" {
		configPaths = []string{path}
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return c.decode(path, data)
	}

	return nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	default:
		return json.Unmarshal(data, c)
	}
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	strVars := map[string]*string{
		"KOORDINATOR_DATABASE_DRIVER":       &c.DatabaseDriver,
		"KOORDINATOR_DATABASE_PATH":         &c.DatabasePath,
		"KOORDINATOR_DATABASE_DSN":          &c.DatabaseDSN,
		"KOORDINATOR_API_PORT":              &c.APIPort,
		"KOORDINATOR_LOG_LEVEL":             &c.LogLevel,
		"KOORDINATOR_DATA_DIR":              &c.DataDir,
		"KOORDINATOR_JWT_SECRET":            &c.JWTSecret,
		"KOORDINATOR_CORS_ORIGINS":          &c.CORSOrigins,
		"KOORDINATOR_SMTP_LISTEN":           &c.SMTPListen,
		"KOORDINATOR_SMTP_DOMAIN":           &c.SMTPDomain,
		"KOORDINATOR_INTERNAL_EMAIL_DOMAIN": &c.InternalEmailDomain,
		"KOORDINATOR_STORAGE_BACKEND":       &c.Storage.Backend,
		"KOORDINATOR_ATTACHMENTS_DIR":       &c.Storage.AttachmentsDir,
		"KOORDINATOR_S3_BUCKET":             &c.Storage.S3Bucket,
		"KOORDINATOR_S3_REGION":             &c.Storage.S3Region,
		"KOORDINATOR_S3_ENDPOINT":           &c.Storage.S3Endpoint,
		"KOORDINATOR_S3_PREFIX":             &c.Storage.S3Prefix,
	}
	for key, dst := range strVars {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	if val := os.Getenv("KOORDINATOR_MAX_MESSAGE_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			c.MaxMessageBytes = n
		}
	}
}

// GetAttachmentsDir returns the directory for attachment files.
// If AttachmentsDir is set, use it; otherwise use DataDir/uploads/email_attachments
func (c *Config) GetAttachmentsDir() string {
	if c.Storage.AttachmentsDir != "" {
		return c.Storage.AttachmentsDir
	}
	return filepath.Join(c.DataDir, "uploads", "email_attachments")
}

// GetCORSOrigins splits CORSOrigins into a list
func (c *Config) GetCORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
