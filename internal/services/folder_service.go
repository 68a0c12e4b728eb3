package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/mailbox"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// FolderService manages the custom folders of an account
type FolderService struct {
	db *gorm.DB
}

// NewFolderService creates a new FolderService instance
func NewFolderService(db *gorm.DB) *FolderService {
	return &FolderService{db: db}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify folds name to lowercase ASCII words joined by dashes. Names with no
// usable characters get a random folder-xxxxxxxx slug.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(b.String(), "-"), "-")
	if len(slug) > 100 {
		slug = strings.TrimRight(slug[:100], "-")
	}
	if slug == "" {
		slug = "folder-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	}
	return slug
}

// ListFolders returns the folders of an account ordered by name
func (s *FolderService) ListFolders(ctx context.Context, accountID uint) ([]models.EmailFolder, error) {
	folders := []models.EmailFolder{}
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("name").Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

// CreateFolder creates a folder named name
func (s *FolderService) CreateFolder(ctx context.Context, accountID uint, name string) (*models.EmailFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidEmailData)
	}
	folder := &models.EmailFolder{AccountID: accountID, Name: name, Slug: Slugify(name)}
	if err := s.db.WithContext(ctx).Create(folder).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrFolderExists
		}
		return nil, err
	}
	return folder, nil
}

// DeleteFolder deletes a folder after moving its messages to the inbox.
func (s *FolderService) DeleteFolder(ctx context.Context, accountID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var folder models.EmailFolder
		if err := tx.Where("id = ? AND account_id = ?", id, accountID).First(&folder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFolderNotFound
			}
			return err
		}
		if folder.IsSystem {
			return fmt.Errorf("%w: system folders cannot be deleted", ErrInvalidEmailData)
		}
		if err := mailbox.DemoteFolder(tx, accountID, folder.ID); err != nil {
			return err
		}
		return tx.Delete(&folder).Error
	})
}
