// ABOUTME: Admin user and session types and store methods
// ABOUTME: Supports username/password auth for the lead dashboard

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAdminUserNotFound is returned when an admin user doesn't exist.
var ErrAdminUserNotFound = errors.New("admin user not found")

// ErrAdminSessionNotFound is returned when a session doesn't exist or is expired.
var ErrAdminSessionNotFound = errors.New("admin session not found")

// ErrUsernameExists is returned when trying to create a user with an existing username.
var ErrUsernameExists = errors.New("username already exists")

// AdminUser represents an admin who can access the web UI.
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	DisplayName  string
	CreatedAt    time.Time
}

// AdminSession represents an authenticated admin session.
type AdminSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AdminStore defines the interface for admin-related persistence.
type AdminStore interface {
	// Admin Users
	CreateAdminUser(ctx context.Context, user *AdminUser) error
	GetAdminUser(ctx context.Context, id string) (*AdminUser, error)
	GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error)
	CountAdminUsers(ctx context.Context) (int, error)

	// Sessions
	CreateAdminSession(ctx context.Context, session *AdminSession) error
	GetAdminSession(ctx context.Context, id string) (*AdminSession, error)
	DeleteAdminSession(ctx context.Context, id string) error
	DeleteExpiredAdminSessions(ctx context.Context) error

	// Audit log
	RecordAdminAction(ctx context.Context, action *AdminAction) error
	ListAdminActions(ctx context.Context, limit int) ([]*AdminAction, error)
}

// Ensure SQLiteStore implements AdminStore.
var _ AdminStore = (*SQLiteStore)(nil)

// CreateAdminUser creates a new admin user.
func (s *SQLiteStore) CreateAdminUser(ctx context.Context, user *AdminUser) error {
	query := `
		INSERT INTO admin_users (id, username, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting admin user: %w", err)
	}

	s.logger.Info("created admin user", "id", user.ID, "username", user.Username)
	return nil
}

// GetAdminUser retrieves an admin user by ID.
func (s *SQLiteStore) GetAdminUser(ctx context.Context, id string) (*AdminUser, error) {
	query := `
		SELECT id, username, password_hash, display_name, created_at
		FROM admin_users
		WHERE id = ?
	`
	return s.scanAdminUser(s.db.QueryRowContext(ctx, query, id))
}

// GetAdminUserByUsername retrieves an admin user by username.
func (s *SQLiteStore) GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	query := `
		SELECT id, username, password_hash, display_name, created_at
		FROM admin_users
		WHERE username = ?
	`
	return s.scanAdminUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanAdminUser(row *sql.Row) (*AdminUser, error) {
	var user AdminUser
	var createdAtStr string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// CountAdminUsers returns the number of admin users.
// Used to decide whether bootstrap is still needed.
func (s *SQLiteStore) CountAdminUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting admin users: %w", err)
	}
	return count, nil
}

// CreateAdminSession creates a new admin session.
func (s *SQLiteStore) CreateAdminSession(ctx context.Context, session *AdminSession) error {
	query := `
		INSERT INTO admin_sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting admin session: %w", err)
	}

	return nil
}

// GetAdminSession retrieves a non-expired session by ID.
// Expired or missing sessions return ErrAdminSessionNotFound.
func (s *SQLiteStore) GetAdminSession(ctx context.Context, id string) (*AdminSession, error) {
	query := `
		SELECT id, user_id, created_at, expires_at
		FROM admin_sessions
		WHERE id = ? AND expires_at > ?
	`

	var session AdminSession
	var createdAtStr, expiresAtStr string

	err := s.db.QueryRowContext(ctx, query, id, time.Now().UTC().Format(time.RFC3339)).Scan(
		&session.ID,
		&session.UserID,
		&createdAtStr,
		&expiresAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin session: %w", err)
	}

	session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return &session, nil
}

// DeleteAdminSession removes a session (logout).
func (s *SQLiteStore) DeleteAdminSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting admin session: %w", err)
	}
	return nil
}

// DeleteExpiredAdminSessions removes all expired sessions.
func (s *SQLiteStore) DeleteExpiredAdminSessions(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE expires_at <= ?`,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("deleting expired admin sessions: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired admin sessions", "count", rowsAffected)
	}
	return nil
}
