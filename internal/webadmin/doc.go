// Package webadmin is the password-gated lead dashboard.
//
// Admins sign in with username/password (bcrypt) and get a 7-day cookie
// session. All state-changing routes are CSRF-protected with a
// double-submit cookie. Every login, logout, lead deletion, transcript
// view, and token creation lands in the audit log.
//
// Besides the HTML dashboard, the package serves GET /api/admin/leads,
// a JSON export gated by short-lived HS256 JWTs minted from the
// dashboard. Templates are embedded, so the binary is self-contained.
package webadmin
