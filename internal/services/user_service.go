package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tonojkeee/koordinator/internal/database/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// UserDirectory looks up platform users by username.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// UserService is the platform user store. The mail core only needs lookups;
// the rest serves the API and the CLI.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService instance
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser stores a user with a bcrypt hash of password. The username must
// be a usable mailbox local part.
func (s *UserService) CreateUser(ctx context.Context, username, password, nickname string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, "@ <>") {
		return nil, errors.New("username must be a non-empty mailbox name")
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &models.User{Username: username, PasswordHash: hashed, Nickname: nickname}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) first(ctx context.Context, query interface{}, args ...interface{}) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns the user with the given id
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

// FindByUsername implements UserDirectory. The match is exact.
func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(ctx, "username = ?", username)
}

// ListUsers returns all users ordered by id
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.db.WithContext(ctx).Order("id").Find(&users).Error
	return users, err
}

// Authenticate returns the user when password matches. Unknown users and
// wrong passwords are indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !ComparePassword(u.PasswordHash, password)) {
		return nil, ErrInvalidCredentials
	}
	return u, err
}

// ResetPassword sets a new password without checking the old one
func (s *UserService) ResetPassword(ctx context.Context, id uint, newPassword string) error {
	hashed, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hashed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ChangePassword replaces the password after checking the old one
func (s *UserService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword string) error {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !ComparePassword(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	return s.ResetPassword(ctx, id, newPassword)
}

// UpdateNickname changes the display name
func (s *UserService) UpdateNickname(ctx context.Context, id uint, nickname string) (*models.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("nickname", nickname).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// HashPassword hashes a password with bcrypt, enforcing the minimum length
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

// ComparePassword reports whether password matches the bcrypt hash
func ComparePassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
