// ABOUTME: Lead persistence methods on SQLiteStore
// ABOUTME: Upsert-by-session semantics with the required-contact invariant enforced

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertLead inserts a lead or updates the existing lead for the same session.
// The email contact field is required: leads without it are rejected with
// ErrMissingContact and nothing is written.
//
// On update, non-empty incoming fields overwrite stored values (most recent
// mention wins); empty incoming fields leave stored values untouched.
// Interest level is only ever raised, never lowered.
func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *Lead) error {
	if lead.Email == "" {
		return ErrMissingContact
	}

	interest := lead.InterestLevel
	if interest == "" {
		interest = InterestLow
	}
	source := lead.Source
	if source == "" {
		source = LeadSourceChat
	}

	now := time.Now()
	createdAt := lead.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO leads (
			id, session_id, name, email, phone, location, home_value,
			interest_level, source, conversation_summary,
			quote_requested, affiliate_clicked, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE leads.name END,
			email = excluded.email,
			phone = CASE WHEN excluded.phone <> '' THEN excluded.phone ELSE leads.phone END,
			location = CASE WHEN excluded.location <> '' THEN excluded.location ELSE leads.location END,
			home_value = CASE WHEN excluded.home_value <> '' THEN excluded.home_value ELSE leads.home_value END,
			interest_level = CASE WHEN excluded.interest_level = 'high' THEN 'high' ELSE leads.interest_level END,
			source = excluded.source,
			conversation_summary = CASE WHEN excluded.conversation_summary <> '' THEN excluded.conversation_summary ELSE leads.conversation_summary END,
			quote_requested = MAX(leads.quote_requested, excluded.quote_requested),
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		lead.ID,
		lead.SessionID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Location,
		lead.HomeValue,
		interest,
		source,
		lead.ConversationSummary,
		boolToInt(lead.QuoteRequested),
		boolToInt(lead.AffiliateClicked),
		createdAt.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting lead: %w", err)
	}

	s.logger.Debug("upserted lead", "session_id", lead.SessionID, "email", lead.Email)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const leadColumns = `
	id, session_id, name, email, phone, location, home_value,
	interest_level, source, conversation_summary,
	quote_requested, affiliate_clicked, created_at, updated_at
`

// scanLead scans a single lead row from either *sql.Row or *sql.Rows
func scanLead(scan func(dest ...any) error) (*Lead, error) {
	var lead Lead
	var name, phone, location, homeValue, summary sql.NullString
	var quoteRequested, affiliateClicked int
	var createdAtStr, updatedAtStr string

	err := scan(
		&lead.ID,
		&lead.SessionID,
		&name,
		&lead.Email,
		&phone,
		&location,
		&homeValue,
		&lead.InterestLevel,
		&lead.Source,
		&summary,
		&quoteRequested,
		&affiliateClicked,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	lead.Name = name.String
	lead.Phone = phone.String
	lead.Location = location.String
	lead.HomeValue = homeValue.String
	lead.ConversationSummary = summary.String
	lead.QuoteRequested = quoteRequested != 0
	lead.AffiliateClicked = affiliateClicked != 0

	lead.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	lead.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &lead, nil
}

// GetLeadBySession retrieves the lead captured for a session.
// Returns ErrNotFound if no lead exists for the session.
func (s *SQLiteStore) GetLeadBySession(ctx context.Context, sessionID string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)
	lead, err := scanLead(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying lead: %w", err)
	}
	return lead, nil
}

// ListLeads returns all leads, newest first.
func (s *SQLiteStore) ListLeads(ctx context.Context) ([]*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		lead, err := scanLead(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning lead row: %w", err)
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lead rows: %w", err)
	}
	return leads, nil
}

// CountLeads returns the total number of captured leads.
func (s *SQLiteStore) CountLeads(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting leads: %w", err)
	}
	return count, nil
}

// CountLeadsSince returns the number of leads created at or after the given time.
func (s *SQLiteStore) CountLeadsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE created_at >= ?`,
		since.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recent leads: %w", err)
	}
	return count, nil
}

// DeleteLead removes a lead by ID.
// Returns ErrNotFound if the lead doesn't exist.
func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting lead: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted lead", "id", id)
	return nil
}

// MarkAffiliateClicked flags the lead for a session as having followed an
// affiliate link. Missing leads are not an error: clicks can arrive before
// a lead is captured.
func (s *SQLiteStore) MarkAffiliateClicked(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET affiliate_clicked = 1, updated_at = ? WHERE session_id = ?`,
		time.Now().UTC().Format(time.RFC3339), sessionID,
	)
	if err != nil {
		return fmt.Errorf("marking affiliate click: %w", err)
	}
	return nil
}
