// ABOUTME: Store interface and data types for quotedesk persistence
// ABOUTME: Defines Session, Turn, Lead structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateSession is returned when trying to create a session that already exists
var ErrDuplicateSession = errors.New("session already exists")

// ErrMissingContact is returned when persisting a lead without its required
// contact field (email). Partial leads stay unpersisted until contact is known.
var ErrMissingContact = errors.New("lead is missing required contact field")

// Channel constants for session origins
const (
	ChannelWeb       = "web"
	ChannelMessenger = "messenger"
)

// Role constants for conversation turns
const (
	RoleVisitor   = "visitor"
	RoleAssistant = "assistant"
)

// Session represents one visitor's continuous interaction with the assistant
type Session struct {
	ID        string
	Channel   string // "web" or "messenger"
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn represents a single message within a session.
// Seq is assigned by the store and strictly increases within a session;
// turns are always returned in Seq order.
type Turn struct {
	ID        string
	SessionID string
	Seq       int64
	Role      string // "visitor" or "assistant"
	Content   string
	CreatedAt time.Time
}

// InterestLevel constants for leads
const (
	InterestLow  = "low"
	InterestHigh = "high"
)

// LeadSource constants describing how a lead was captured
const (
	LeadSourceChat      = "chat"
	LeadSourceForm      = "form"
	LeadSourceMessenger = "messenger"
)

// Lead represents a prospective customer's captured contact and interest
// information, keyed by the session that produced it.
type Lead struct {
	ID                  string
	SessionID           string
	Name                string
	Email               string // required contact field
	Phone               string
	Location            string
	HomeValue           string
	InterestLevel       string // "low" or "high"
	Source              string // "chat", "form", "messenger"
	ConversationSummary string
	QuoteRequested      bool
	AffiliateClicked    bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Store defines the interface for session, turn, and lead persistence
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)

	// Turns (append-only within a session)
	AppendTurn(ctx context.Context, turn *Turn) error
	GetSessionTurns(ctx context.Context, sessionID string, limit int) ([]*Turn, error)

	// Leads
	UpsertLead(ctx context.Context, lead *Lead) error
	GetLeadBySession(ctx context.Context, sessionID string) (*Lead, error)
	ListLeads(ctx context.Context) ([]*Lead, error)
	CountLeads(ctx context.Context) (int, error)
	CountLeadsSince(ctx context.Context, since time.Time) (int, error)
	DeleteLead(ctx context.Context, id string) error
	MarkAffiliateClicked(ctx context.Context, sessionID string) error

	// Close releases any resources held by the store
	Close() error
}
