// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides session/turn persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL DEFAULT 'web',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,

			CHECK (channel IN ('web', 'messenger'))
		);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,

			FOREIGN KEY (session_id) REFERENCES sessions(id),
			UNIQUE (session_id, seq),
			CHECK (role IN ('visitor', 'assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_turns_session_seq
			ON turns(session_id, seq);

		CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			name TEXT,
			email TEXT NOT NULL,
			phone TEXT,
			location TEXT,
			home_value TEXT,
			interest_level TEXT NOT NULL DEFAULT 'low',
			source TEXT NOT NULL DEFAULT 'chat',
			conversation_summary TEXT,
			quote_requested INTEGER NOT NULL DEFAULT 0,
			affiliate_clicked INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,

			CHECK (email <> ''),
			CHECK (interest_level IN ('low', 'high')),
			CHECK (source IN ('chat', 'form', 'messenger'))
		);

		CREATE INDEX IF NOT EXISTS idx_leads_created ON leads(created_at DESC);

		-- Admin users (humans who manage leads via web UI)
		CREATE TABLE IF NOT EXISTS admin_users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_admin_users_username ON admin_users(username);

		-- Admin sessions (cookie-based)
		CREATE TABLE IF NOT EXISTS admin_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_admin_sessions_user ON admin_sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_admin_sessions_expires ON admin_sessions(expires_at);

		-- Admin action audit log
		CREATE TABLE IF NOT EXISTS admin_actions (
			id TEXT PRIMARY KEY,
			admin_user TEXT NOT NULL,
			action TEXT NOT NULL,
			details TEXT,
			created_at TEXT NOT NULL,

			CHECK (action IN (
				'login',
				'logout',
				'delete_lead',
				'create_token',
				'view_transcript'
			))
		);

		CREATE INDEX IF NOT EXISTS idx_admin_actions_ts ON admin_actions(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// Migration: add lead flag columns that predate the current schema.
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first.
	migrations := []struct {
		check  string // Query to check if migration is needed
		apply  string // Query to apply the migration
		column string // Column name for logging
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('leads') WHERE name = 'quote_requested'`,
			apply:  `ALTER TABLE leads ADD COLUMN quote_requested INTEGER NOT NULL DEFAULT 0`,
			column: "quote_requested",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('leads') WHERE name = 'affiliate_clicked'`,
			apply:  `ALTER TABLE leads ADD COLUMN affiliate_clicked INTEGER NOT NULL DEFAULT 0`,
			column: "affiliate_clicked",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('sessions') WHERE name = 'channel'`,
			apply:  `ALTER TABLE sessions ADD COLUMN channel TEXT NOT NULL DEFAULT 'web'`,
			column: "channel",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		// Column doesn't exist, apply migration
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateSession creates a new session in the database.
// If a session with the same ID already exists, it returns ErrDuplicateSession.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	channel := session.Channel
	if channel == "" {
		channel = ChannelWeb
	}

	query := `
		INSERT INTO sessions (id, channel, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		channel,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "channel", channel)
	return nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, channel, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`

	var session Session
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Channel,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &session, nil
}

// ListSessions retrieves sessions ordered by most recent activity.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, channel, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var session Session
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&session.ID, &session.Channel, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}

		session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	return sessions, nil
}

// AppendTurn appends a turn to a session. The sequence number is assigned
// atomically inside the insert so concurrent sessions never interleave and
// turn order within a session is strictly preserved.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := turn.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}

	// Assign the next sequence number within the insert itself
	query := `
		INSERT INTO turns (id, session_id, seq, role, content, created_at)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM turns WHERE session_id = ?
	`

	_, err = tx.ExecContext(ctx, query,
		turn.ID,
		turn.SessionID,
		turn.Role,
		turn.Content,
		now.UTC().Format(time.RFC3339),
		turn.SessionID,
	)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	// Bump session activity timestamp
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		now.UTC().Format(time.RFC3339), turn.SessionID,
	); err != nil {
		return fmt.Errorf("updating session timestamp: %w", err)
	}

	// Read back the assigned sequence number
	if err := tx.QueryRowContext(ctx,
		`SELECT seq FROM turns WHERE id = ?`, turn.ID,
	).Scan(&turn.Seq); err != nil {
		return fmt.Errorf("reading turn seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing turn: %w", err)
	}

	s.logger.Debug("appended turn", "id", turn.ID, "session_id", turn.SessionID, "seq", turn.Seq, "role", turn.Role)
	return nil
}

// GetSessionTurns retrieves turns for a session, limited to the most recent
// `limit` turns. Turns are returned in sequence order (oldest first).
// If limit is 0 or negative, all turns are returned.
func (s *SQLiteStore) GetSessionTurns(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	var query string
	var args []any

	if limit > 0 {
		// Get the N most recent turns, but return them in sequence order
		query = `
			SELECT id, session_id, seq, role, content, created_at
			FROM (
				SELECT id, session_id, seq, role, content, created_at
				FROM turns
				WHERE session_id = ?
				ORDER BY seq DESC
				LIMIT ?
			)
			ORDER BY seq ASC
		`
		args = []any{sessionID, limit}
	} else {
		query = `
			SELECT id, session_id, seq, role, content, created_at
			FROM turns
			WHERE session_id = ?
			ORDER BY seq ASC
		`
		args = []any{sessionID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []*Turn
	for rows.Next() {
		var turn Turn
		var createdAtStr string

		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Seq, &turn.Role, &turn.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}

		turn.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing turn created_at: %w", err)
		}

		turns = append(turns, &turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turn rows: %w", err)
	}

	return turns, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
