// ABOUTME: Admin action audit log types and store methods
// ABOUTME: Records every mutating dashboard action with actor and detail

package store

import (
	"context"
	"fmt"
	"time"
)

// AdminAction constants recorded in the audit log
const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionDeleteLead     = "delete_lead"
	ActionCreateToken    = "create_token"
	ActionViewTranscript = "view_transcript"
)

// AdminAction is one entry in the admin audit log.
type AdminAction struct {
	ID        string
	AdminUser string // username of the actor
	Action    string
	Details   string
	CreatedAt time.Time
}

// RecordAdminAction appends an entry to the admin audit log.
func (s *SQLiteStore) RecordAdminAction(ctx context.Context, action *AdminAction) error {
	createdAt := action.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO admin_actions (id, admin_user, action, details, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		action.ID,
		action.AdminUser,
		action.Action,
		action.Details,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting admin action: %w", err)
	}

	s.logger.Debug("recorded admin action", "admin_user", action.AdminUser, "action", action.Action)
	return nil
}

// ListAdminActions returns the most recent audit entries, newest first.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListAdminActions(ctx context.Context, limit int) ([]*AdminAction, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, admin_user, action, details, created_at
		FROM admin_actions
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying admin actions: %w", err)
	}
	defer rows.Close()

	var actions []*AdminAction
	for rows.Next() {
		var action AdminAction
		var createdAtStr string

		if err := rows.Scan(&action.ID, &action.AdminUser, &action.Action, &action.Details, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning admin action row: %w", err)
		}

		action.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		actions = append(actions, &action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admin action rows: %w", err)
	}

	return actions, nil
}
