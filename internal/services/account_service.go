package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"github.com/tonojkeee/koordinator/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountService resolves addresses to mailbox accounts, provisioning
// accounts for platform users of the internal domain on first contact.
type AccountService struct {
	db         *gorm.DB
	users      UserDirectory
	settings   *settings.Settings
	logService *LogService
}

// NewAccountService creates a new AccountService instance
func NewAccountService(db *gorm.DB, users UserDirectory, s *settings.Settings, logService *LogService) *AccountService {
	return &AccountService{
		db:         db,
		users:      users,
		settings:   s,
		logService: logService,
	}
}

// NormalizeAddress trims raw, unwraps a "Name <addr>" form and lowercases
// the domain. The local part is kept as written.
func NormalizeAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	if open := strings.LastIndex(addr, "<"); open >= 0 {
		if end := strings.Index(addr[open:], ">"); end > 0 {
			addr = strings.TrimSpace(addr[open+1 : open+end])
		}
	}
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		addr = addr[:at+1] + strings.ToLower(addr[at+1:])
	}
	return addr
}

// ResolveBatch maps every normalized address of raws to its account, or to
// nil when none exists and none may be created. Accounts are provisioned
// inside tx; the caller owns the commit.
func (s *AccountService) ResolveBatch(ctx context.Context, tx *gorm.DB, raws []string) (map[string]*models.EmailAccount, error) {
	result := make(map[string]*models.EmailAccount, len(raws))
	addrs := make([]string, 0, len(raws))
	for _, raw := range raws {
		addr := NormalizeAddress(raw)
		if addr == "" {
			continue
		}
		if _, seen := result[addr]; !seen {
			result[addr] = nil
			addrs = append(addrs, addr)
		}
	}
	if len(addrs) == 0 {
		return result, nil
	}

	db := tx.WithContext(ctx)
	var existing []models.EmailAccount
	if err := db.Where("email_address IN ?", addrs).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("lookup accounts: %w", err)
	}
	for i := range existing {
		result[existing[i].EmailAddress] = &existing[i]
	}

	var domain string
	for _, addr := range addrs {
		if result[addr] != nil {
			continue
		}
		if domain == "" {
			d, err := s.settings.InternalDomain(ctx)
			if err != nil {
				return nil, fmt.Errorf("read internal domain: %w", err)
			}
			domain = d
		}
		acc, err := s.provision(ctx, db, addr, domain)
		if err != nil {
			return nil, err
		}
		result[addr] = acc
	}

	return result, nil
}

// Resolve resolves a single address in its own transaction.
func (s *AccountService) Resolve(ctx context.Context, raw string) (*models.EmailAccount, error) {
	var acc *models.EmailAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved, err := s.ResolveBatch(ctx, tx, []string{raw})
		if err != nil {
			return err
		}
		acc = resolved[NormalizeAddress(raw)]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// GetOrCreateForUser returns the account of user, creating
// <username>@<internal domain> on first use.
func (s *AccountService) GetOrCreateForUser(ctx context.Context, user *models.User) (*models.EmailAccount, error) {
	db := s.db.WithContext(ctx)

	var acc models.EmailAccount
	err := db.Where("user_id = ?", user.ID).Order("id").First(&acc).Error
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	domain, err := s.settings.InternalDomain(ctx)
	if err != nil {
		return nil, err
	}
	addr := NormalizeAddress(user.Username + "@" + domain)

	err = db.Transaction(func(tx *gorm.DB) error {
		// An external correspondent row may already hold the address.
		var found models.EmailAccount
		err := tx.Where("email_address = ?", addr).First(&found).Error
		switch {
		case err == nil:
			if found.UserID == nil {
				found.UserID = &user.ID
				if err := tx.Model(&found).Update("user_id", user.ID).Error; err != nil {
					return err
				}
			}
			acc = found
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		created, err := s.create(ctx, tx, user.ID, addr)
		if err != nil {
			return err
		}
		acc = *created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetAccount returns the account with the given id.
func (s *AccountService) GetAccount(ctx context.Context, id uint) (*models.EmailAccount, error) {
	var acc models.EmailAccount
	if err := s.db.WithContext(ctx).First(&acc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// provision creates an account for addr when its local part names a user and
// its domain is the internal one. It returns nil, nil when addr is not
// eligible.
func (s *AccountService) provision(ctx context.Context, db *gorm.DB, addr, domain string) (*models.EmailAccount, error) {
	at := strings.Index(addr, "@")
	if at <= 0 {
		return nil, nil
	}
	local := addr[:at]
	if addr[strings.LastIndex(addr, "@")+1:] != strings.ToLower(domain) {
		return nil, nil
	}

	user, err := s.users.FindByUsername(ctx, local)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", local, err)
	}

	return s.create(ctx, db, user.ID, addr)
}

// create inserts the account inside a savepoint. When a concurrent writer
// inserted the same address first, the existing row is returned.
func (s *AccountService) create(ctx context.Context, db *gorm.DB, userID uint, addr string) (*models.EmailAccount, error) {
	acc := &models.EmailAccount{UserID: &userID, EmailAddress: addr}
	err := db.Transaction(func(sp *gorm.DB) error {
		return sp.Create(acc).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var existing models.EmailAccount
		// A locking read sees the winner's committed row even under a
		// REPEATABLE READ snapshot.
		err := db.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("email_address = ?", addr).First(&existing).Error
		if err != nil {
			return nil, fmt.Errorf("refetch account %s: %w", addr, err)
		}
		return &existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create account %s: %w", addr, err)
	}

	log.Printf("[accounts] auto-created account %s for user %d", addr, userID)
	if s.logService != nil {
		if err := s.logService.WithDB(db).LogAccountProvisioned(userID, addr); err != nil {
			log.Printf("[accounts] failed to write audit log: %v", err)
		}
	}
	return acc, nil
}
