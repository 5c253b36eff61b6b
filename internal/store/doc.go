// Package store provides persistent storage for quotedesk using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with two
// specialized interfaces:
//
//   - Store: Sessions, conversation turns, and leads
//   - AdminStore: Admin users, cookie sessions, and the action audit log
//
// SQLiteStore implements both interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Data Models
//
//   - Session: One visitor's continuous interaction (web or messenger)
//   - Turn: A single (role, text) message; append-only, sequence-ordered
//   - Lead: Captured contact and interest fields, keyed by session
//   - AdminUser: Dashboard accounts with bcrypt password hashes
//   - AdminSession: Browser sessions
//   - AdminAction: Audit log entries for dashboard activity
//
// # Invariants
//
//   - Turns within a session are never reordered or deleted; Seq strictly
//     increases and reads always return Seq order.
//   - A lead is never persisted without its required contact field (email);
//     UpsertLead rejects such writes with ErrMissingContact.
//   - Leads are keyed by session, so concurrent visitors never overwrite
//     each other's leads.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateSession: Session already exists
//   - ErrMissingContact: Lead lacks the required contact field
//
// All methods accept context.Context for cancellation support.
//
// # Migrations
//
// The schema is created idempotently on startup; column-level migrations
// for older databases run automatically and are safe to re-run.
package store
