package services

import (
	"context"
	"errors"
	"testing"
)

func TestUserLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	service := NewUserService(db)
	ctx := context.Background()

	if _, err := service.CreateUser(ctx, "alice", "short", ""); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: %v", err)
	}
	if _, err := service.CreateUser(ctx, "al ice", "secret123", ""); err == nil {
		t.Error("username with a space should be refused")
	}
	u, err := service.CreateUser(ctx, "alice", "secret123", "Alice")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.PasswordHash == "secret123" {
		t.Error("password stored in plaintext")
	}
	if _, err := service.CreateUser(ctx, "alice", "secret123", ""); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("duplicate user: %v", err)
	}

	if _, err := service.Authenticate(ctx, "alice", "secret123"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}
	if _, err := service.Authenticate(ctx, "alice", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := service.Authenticate(ctx, "mallory", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}

	if err := service.ChangePassword(ctx, u.ID, "wrong-old", "another1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("change with a wrong old password: %v", err)
	}
	if err := service.ChangePassword(ctx, u.ID, "secret123", "another1"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := service.Authenticate(ctx, "alice", "another1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if err := service.ResetPassword(ctx, 9999, "another1"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: %v", err)
	}

	updated, err := service.UpdateNickname(ctx, u.ID, "Al")
	if err != nil || updated.Nickname != "Al" {
		t.Errorf("UpdateNickname = %+v, %v", updated, err)
	}

	// Lookup by username is exact.
	if _, err := service.FindByUsername(ctx, "Alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("case-folded lookup: %v", err)
	}
	users, err := service.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Errorf("ListUsers = %v, %v", users, err)
	}
}
