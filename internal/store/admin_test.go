// ABOUTME: Tests for admin user, session, and audit log persistence
// ABOUTME: Covers session expiry, duplicate usernames, and audit ordering

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCreateAndGetAdminUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := &AdminUser{
		ID:           uuid.New().String(),
		Username:     "admin",
		PasswordHash: "$2a$10$fakehashfortesting",
		DisplayName:  "Administrator",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	if err := store.CreateAdminUser(ctx, user); err != nil {
		t.Fatalf("CreateAdminUser failed: %v", err)
	}

	got, err := store.GetAdminUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetAdminUserByUsername failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, user.ID)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Errorf("PasswordHash mismatch")
	}

	byID, err := store.GetAdminUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetAdminUser failed: %v", err)
	}
	if byID.Username != "admin" {
		t.Errorf("Username mismatch: got %q", byID.Username)
	}
}

func TestCreateAdminUser_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := &AdminUser{
		ID:           uuid.New().String(),
		Username:     "admin",
		PasswordHash: "hash",
		DisplayName:  "First",
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateAdminUser(ctx, user); err != nil {
		t.Fatalf("CreateAdminUser failed: %v", err)
	}

	dup := &AdminUser{
		ID:           uuid.New().String(),
		Username:     "admin",
		PasswordHash: "hash2",
		DisplayName:  "Second",
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateAdminUser(ctx, dup); err != ErrUsernameExists {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}
}

func TestGetAdminUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if _, err := store.GetAdminUser(context.Background(), "nope"); err != ErrAdminUserNotFound {
		t.Errorf("expected ErrAdminUserNotFound, got %v", err)
	}
	if _, err := store.GetAdminUserByUsername(context.Background(), "nope"); err != ErrAdminUserNotFound {
		t.Errorf("expected ErrAdminUserNotFound, got %v", err)
	}
}

func createTestAdminUser(t *testing.T, s *SQLiteStore) *AdminUser {
	t.Helper()
	user := &AdminUser{
		ID:           uuid.New().String(),
		Username:     "admin",
		PasswordHash: "hash",
		DisplayName:  "Administrator",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateAdminUser(context.Background(), user); err != nil {
		t.Fatalf("CreateAdminUser failed: %v", err)
	}
	return user
}

func TestAdminSession_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := createTestAdminUser(t, store)

	session := &AdminSession{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := store.CreateAdminSession(ctx, session); err != nil {
		t.Fatalf("CreateAdminSession failed: %v", err)
	}

	got, err := store.GetAdminSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetAdminSession failed: %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("UserID mismatch: got %q", got.UserID)
	}

	if err := store.DeleteAdminSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteAdminSession failed: %v", err)
	}
	if _, err := store.GetAdminSession(ctx, session.ID); err != ErrAdminSessionNotFound {
		t.Errorf("expected ErrAdminSessionNotFound after delete, got %v", err)
	}
}

func TestGetAdminSession_Expired(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := createTestAdminUser(t, store)

	session := &AdminSession{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := store.CreateAdminSession(ctx, session); err != nil {
		t.Fatalf("CreateAdminSession failed: %v", err)
	}

	if _, err := store.GetAdminSession(ctx, session.ID); err != ErrAdminSessionNotFound {
		t.Errorf("expected ErrAdminSessionNotFound for expired session, got %v", err)
	}

	// Cleanup removes it entirely
	if err := store.DeleteExpiredAdminSessions(ctx); err != nil {
		t.Fatalf("DeleteExpiredAdminSessions failed: %v", err)
	}
}

func TestAdminActions_RecordAndList(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	actions := []*AdminAction{
		{
			ID:        uuid.New().String(),
			AdminUser: "admin",
			Action:    ActionLogin,
			CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
		},
		{
			ID:        uuid.New().String(),
			AdminUser: "admin",
			Action:    ActionDeleteLead,
			Details:   "lead-123",
			CreatedAt: time.Now().UTC().Add(-time.Minute),
		},
		{
			ID:        uuid.New().String(),
			AdminUser: "admin",
			Action:    ActionLogout,
			CreatedAt: time.Now().UTC(),
		},
	}
	for _, action := range actions {
		if err := store.RecordAdminAction(ctx, action); err != nil {
			t.Fatalf("RecordAdminAction failed: %v", err)
		}
	}

	got, err := store.ListAdminActions(ctx, 0)
	if err != nil {
		t.Fatalf("ListAdminActions failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(got))
	}

	// Newest first
	if got[0].Action != ActionLogout {
		t.Errorf("expected logout first, got %q", got[0].Action)
	}
	if got[1].Details != "lead-123" {
		t.Errorf("expected delete details, got %q", got[1].Details)
	}
}
