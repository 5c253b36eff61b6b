// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers session CRUD, turn append-only ordering, and limiting

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func createTestSession(t *testing.T, s *SQLiteStore, id string) *Session {
	t.Helper()

	session := &Session{
		ID:        id,
		Channel:   ChannelWeb,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return session
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetSession(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	session := &Session{
		ID:        "session-123",
		Channel:   ChannelWeb,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "session-123")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	if got.ID != session.ID {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, session.ID)
	}
	if got.Channel != ChannelWeb {
		t.Errorf("Channel mismatch: got %q, want %q", got.Channel, ChannelWeb)
	}
	if !got.CreatedAt.Equal(session.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, session.CreatedAt)
	}
}

func TestCreateSession_Duplicate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	createTestSession(t, store, "dup-session")

	err := store.CreateSession(context.Background(), &Session{
		ID:        "dup-session",
		Channel:   ChannelWeb,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != ErrDuplicateSession {
		t.Errorf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetSession(context.Background(), "nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendTurn_OrderPreserved(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	createTestSession(t, store, "order-session")

	// Append 20 turns in quick succession; timestamps alone would collide
	// at second resolution, so ordering must come from the sequence number.
	const n = 20
	for i := 0; i < n; i++ {
		role := RoleVisitor
		if i%2 == 1 {
			role = RoleAssistant
		}
		turn := &Turn{
			ID:        uuid.New().String(),
			SessionID: "order-session",
			Role:      role,
			Content:   fmt.Sprintf("turn %d", i),
		}
		if err := store.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn %d failed: %v", i, err)
		}
		if turn.Seq != int64(i+1) {
			t.Errorf("turn %d: expected seq %d, got %d", i, i+1, turn.Seq)
		}
	}

	turns, err := store.GetSessionTurns(ctx, "order-session", 0)
	if err != nil {
		t.Fatalf("GetSessionTurns failed: %v", err)
	}

	if len(turns) != n {
		t.Fatalf("expected %d turns, got %d", n, len(turns))
	}
	for i, turn := range turns {
		want := fmt.Sprintf("turn %d", i)
		if turn.Content != want {
			t.Errorf("turn %d out of order: got %q, want %q", i, turn.Content, want)
		}
	}
}

func TestGetSessionTurns_Limit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	createTestSession(t, store, "limit-session")

	for i := 0; i < 10; i++ {
		turn := &Turn{
			ID:        uuid.New().String(),
			SessionID: "limit-session",
			Role:      RoleVisitor,
			Content:   fmt.Sprintf("turn %d", i),
		}
		if err := store.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	// Limit returns the most recent turns, oldest first
	turns, err := store.GetSessionTurns(ctx, "limit-session", 3)
	if err != nil {
		t.Fatalf("GetSessionTurns failed: %v", err)
	}

	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, want := range []string{"turn 7", "turn 8", "turn 9"} {
		if turns[i].Content != want {
			t.Errorf("turn %d: got %q, want %q", i, turns[i].Content, want)
		}
	}
}

func TestGetSessionTurns_Empty(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	createTestSession(t, store, "empty-session")

	turns, err := store.GetSessionTurns(context.Background(), "empty-session", 0)
	if err != nil {
		t.Fatalf("GetSessionTurns failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
}

func TestAppendTurn_IsolatedPerSession(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	createTestSession(t, store, "session-a")
	createTestSession(t, store, "session-b")

	for _, sid := range []string{"session-a", "session-b"} {
		for i := 0; i < 3; i++ {
			turn := &Turn{
				ID:        uuid.New().String(),
				SessionID: sid,
				Role:      RoleVisitor,
				Content:   fmt.Sprintf("%s message %d", sid, i),
			}
			if err := store.AppendTurn(ctx, turn); err != nil {
				t.Fatalf("AppendTurn failed: %v", err)
			}
		}
	}

	turnsA, err := store.GetSessionTurns(ctx, "session-a", 0)
	if err != nil {
		t.Fatalf("GetSessionTurns failed: %v", err)
	}
	if len(turnsA) != 3 {
		t.Fatalf("expected 3 turns for session-a, got %d", len(turnsA))
	}
	for _, turn := range turnsA {
		if turn.SessionID != "session-a" {
			t.Errorf("session-a turns contain turn from %q", turn.SessionID)
		}
	}
}

func TestListSessions_RecentFirst(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	older := &Session{
		ID:        "older",
		Channel:   ChannelWeb,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second),
	}
	newer := &Session{
		ID:        "newer",
		Channel:   ChannelMessenger,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.CreateSession(ctx, older); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.CreateSession(ctx, newer); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sessions, err := store.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "newer" {
		t.Errorf("expected newer session first, got %q", sessions[0].ID)
	}
}
