// Package settings provides read-through access to the dynamic key/value
// settings store. Nothing is cached: every accessor reads the current value,
// so operators can change policy without a restart.
package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting keys
const (
	KeyMaxAttachmentSizeMB      = "email_max_attachment_size_mb"
	KeyMaxTotalAttachmentSizeMB = "email_max_total_attachment_size_mb"
	KeyAllowedFileTypes         = "email_allowed_file_types"
	KeySMTPHost                 = "email_smtp_host"
	KeySMTPPort                 = "email_smtp_port"
	KeySMTPUsername             = "email_smtp_username"
	KeySMTPPassword             = "email_smtp_password"
	KeyInternalDomain           = "email_internal_domain"
)

// Defaults applied when a value is missing or malformed
const (
	DefaultMaxAttachmentSizeMB      = 25
	DefaultMaxTotalAttachmentSizeMB = 50
	DefaultSMTPHost                 = "127.0.0.1"
	DefaultSMTPPort                 = 2525
)

const megabyte = 1024 * 1024

// Provider is the raw string-keyed store.
type Provider interface {
	// Get returns the value for key and whether it is set.
	Get(ctx context.Context, key string) (string, bool, error)
}

// AttachmentPolicy is the attachment validation configuration for one call.
type AttachmentPolicy struct {
	MaxFileBytes      int64
	MaxTotalBytes     int64
	AllowedExtensions []string
}

// SMTPEndpoint is the outbound relay.
type SMTPEndpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Settings wraps a Provider with typed accessors.
type Settings struct {
	provider      Provider
	defaultDomain string
}

// New returns typed accessors over p. defaultDomain is used when the
// internal domain setting is absent.
func New(p Provider, defaultDomain string) *Settings {
	return &Settings{provider: p, defaultDomain: defaultDomain}
}

// AttachmentPolicy reads the per-file cap, the per-copy cap and the allowed
// extensions. Each cap falls back to its default on its own.
func (s *Settings) AttachmentPolicy(ctx context.Context) (AttachmentPolicy, error) {
	perFile, err := s.positiveInt(ctx, KeyMaxAttachmentSizeMB, DefaultMaxAttachmentSizeMB)
	if err != nil {
		return AttachmentPolicy{}, err
	}
	total, err := s.positiveInt(ctx, KeyMaxTotalAttachmentSizeMB, DefaultMaxTotalAttachmentSizeMB)
	if err != nil {
		return AttachmentPolicy{}, err
	}
	types, _, err := s.provider.Get(ctx, KeyAllowedFileTypes)
	if err != nil {
		return AttachmentPolicy{}, err
	}

	return AttachmentPolicy{
		MaxFileBytes:      int64(perFile) * megabyte,
		MaxTotalBytes:     int64(total) * megabyte,
		AllowedExtensions: ParseExtensions(types),
	}, nil
}

// SMTPEndpoint reads the outbound relay address and optional credentials.
func (s *Settings) SMTPEndpoint(ctx context.Context) (SMTPEndpoint, error) {
	host, err := s.str(ctx, KeySMTPHost, DefaultSMTPHost)
	if err != nil {
		return SMTPEndpoint{}, err
	}
	port, err := s.positiveInt(ctx, KeySMTPPort, DefaultSMTPPort)
	if err != nil {
		return SMTPEndpoint{}, err
	}
	user, err := s.str(ctx, KeySMTPUsername, "")
	if err != nil {
		return SMTPEndpoint{}, err
	}
	pass, err := s.str(ctx, KeySMTPPassword, "")
	if err != nil {
		return SMTPEndpoint{}, err
	}
	return SMTPEndpoint{Host: host, Port: port, Username: user, Password: pass}, nil
}

// InternalDomain is the mail domain for which accounts are auto-provisioned.
func (s *Settings) InternalDomain(ctx context.Context) (string, error) {
	d, err := s.str(ctx, KeyInternalDomain, s.defaultDomain)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.ToLower(d), "@"), nil
}

func (s *Settings) str(ctx context.Context, key, def string) (string, error) {
	v, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return def, nil
	}
	return v, nil
}

func (s *Settings) positiveInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def, nil
	}
	return n, nil
}

// ParseExtensions splits a comma separated list such as "pdf, .DOCX" into
// lower-cased extensions with a leading dot.
func ParseExtensions(list string) []string {
	var exts []string
	for _, t := range strings.Split(list, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || t == "." {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		exts = append(exts, t)
	}
	return exts
}

// Store is the gorm-backed Provider.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get implements Provider
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	var setting models.SystemSetting
	err := s.db.WithContext(ctx).Where(&models.SystemSetting{Key: key}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// Set creates or replaces the value of key
func (s *Store) Set(ctx context.Context, key, value string) error {
	var setting models.SystemSetting
	err := s.db.WithContext(ctx).Where(&models.SystemSetting{Key: key}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.SystemSetting{Key: key, Value: value, Group: "email"}
		return s.db.WithContext(ctx).Create(&setting).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&setting).Update("value", value).Error
}

// List returns all settings ordered by key. Non-public settings are skipped
// unless includePrivate is set.
func (s *Store) List(ctx context.Context, includePrivate bool) ([]models.SystemSetting, error) {
	var list []models.SystemSetting
	q := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}})
	if !includePrivate {
		q = q.Where("is_public = ?", true)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
