// ABOUTME: Admin web UI package for lead management
// ABOUTME: Provides authentication, session management, and admin routes

package webadmin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/quotedesk/quotedesk/internal/store"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "quotedesk_admin_session"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "quotedesk_admin_csrf"

	// SessionDuration is how long sessions last
	SessionDuration = 7 * 24 * time.Hour // 7 days
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userContextKey contextKey = "admin_user"
const csrfContextKey contextKey = "csrf_token"

// Config holds admin UI configuration
type Config struct {
	// BaseURL is the external URL of the service
	BaseURL string

	// JWTSecret signs lead export tokens
	JWTSecret string
}

// FullStore combines AdminStore with the lead and transcript operations
// the dashboard needs.
type FullStore interface {
	store.AdminStore

	// Leads
	ListLeads(ctx context.Context) ([]*store.Lead, error)
	CountLeads(ctx context.Context) (int, error)
	CountLeadsSince(ctx context.Context, since time.Time) (int, error)
	GetLeadBySession(ctx context.Context, sessionID string) (*store.Lead, error)
	DeleteLead(ctx context.Context, id string) error

	// Transcripts
	GetSessionTurns(ctx context.Context, sessionID string, limit int) ([]*store.Turn, error)
}

// Admin handles admin UI routes and authentication
type Admin struct {
	store  FullStore
	config Config
	logger *slog.Logger
}

// New creates a new Admin handler
func New(fullStore FullStore, cfg Config) *Admin {
	return &Admin{
		store:  fullStore,
		config: cfg,
		logger: slog.Default().With("component", "admin"),
	}
}

// RegisterRoutes registers all admin routes on the given mux
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.HandleFunc("GET /admin/login", a.handleLoginPage)
	mux.HandleFunc("POST /admin/login", a.handleLogin)

	// Protected routes (auth required)
	mux.HandleFunc("GET /admin/", a.requireAuth(a.handleDashboard))
	mux.HandleFunc("GET /admin", a.requireAuth(a.handleDashboard))
	mux.HandleFunc("POST /admin/logout", a.requireAuth(a.handleLogout))

	// Lead management
	mux.HandleFunc("GET /admin/leads", a.requireAuth(a.handleLeadsPage))
	mux.HandleFunc("GET /admin/leads/{session}", a.requireAuth(a.handleLeadDetail))
	mux.HandleFunc("POST /admin/leads/{id}/delete", a.requireAuth(a.handleLeadDelete))

	// Audit log
	mux.HandleFunc("GET /admin/actions", a.requireAuth(a.handleActionsPage))

	// Export tokens
	mux.HandleFunc("POST /admin/tokens", a.requireAuth(a.handleCreateToken))

	// Token-authenticated JSON export (no cookie auth)
	mux.HandleFunc("GET /api/admin/leads", a.handleAPILeads)

	a.logger.Info("admin routes registered")
}

// requireAuth wraps a handler to require authentication
func (a *Admin) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := a.getUserFromSession(r)
		if err != nil {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}

		// Add user to context
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// getUserFromSession retrieves the authenticated user from the session cookie
func (a *Admin) getUserFromSession(r *http.Request) (*store.AdminUser, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, err
	}

	session, err := a.store.GetAdminSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}

	user, err := a.store.GetAdminUser(r.Context(), session.UserID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// getUserFromContext retrieves the authenticated user from the request context
func getUserFromContext(r *http.Request) *store.AdminUser {
	user, _ := r.Context().Value(userContextKey).(*store.AdminUser)
	return user
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (a *Admin) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	// Try to get existing token from cookie
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	// Generate new token
	token, err := generateSecureToken(32)
	if err != nil {
		a.logger.Error("failed to generate CSRF token", "error", err)
		token = "" // Will fail validation, but won't crash
	}

	// Set cookie
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/admin",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form against cookie
func (a *Admin) validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// createSession creates a new session for a user and sets the cookie
func (a *Admin) createSession(w http.ResponseWriter, r *http.Request, userID string) error {
	sessionID, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	session := &store.AdminSession{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(SessionDuration),
	}

	if err := a.store.CreateAdminSession(r.Context(), session); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/admin",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// recordAction appends an audit entry. Audit failures are logged, never fatal.
func (a *Admin) recordAction(ctx context.Context, username, action, details string) {
	err := a.store.RecordAdminAction(ctx, &store.AdminAction{
		ID:        uuid.New().String(),
		AdminUser: username,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		a.logger.Error("failed to record admin action",
			"error", err,
			"action", action,
			"admin_user", username)
	}
}

// handleLoginPage renders the login page
func (a *Admin) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to dashboard
	if _, err := a.getUserFromSession(r); err == nil {
		http.Redirect(w, r, "/admin/", http.StatusSeeOther)
		return
	}

	_, csrfToken := a.ensureCSRFToken(w, r)
	a.renderLoginPage(w, "", csrfToken)
}

// handleLogin processes login form submission
func (a *Admin) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, "Invalid form data", csrfToken)
		return
	}

	if !a.validateCSRF(r) {
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, "Invalid request, please try again", csrfToken)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	if username == "" || password == "" {
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, "Username and password required", csrfToken)
		return
	}

	user, err := a.store.GetAdminUserByUsername(r.Context(), username)

	// Use a dummy hash for timing-safe comparison when user doesn't exist
	// This prevents timing attacks that could enumerate valid usernames
	dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

	if err != nil {
		if errors.Is(err, store.ErrAdminUserNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			_, csrfToken := a.ensureCSRFToken(w, r)
			a.renderLoginPage(w, "Invalid username or password", csrfToken)
			return
		}
		a.logger.Error("failed to get user", "error", err)
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, "An error occurred", csrfToken)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, "Invalid username or password", csrfToken)
		return
	}

	if err := a.createSession(w, r, user.ID); err != nil {
		a.logger.Error("failed to create session", "error", err)
		_, csrfToken := a.ensureCSRFToken(w, r)
		a.renderLoginPage(w, "An error occurred", csrfToken)
		return
	}

	a.recordAction(r.Context(), user.Username, store.ActionLogin, "")
	a.logger.Info("admin login successful", "username", username)
	http.Redirect(w, r, "/admin/", http.StatusSeeOther)
}

// handleLogout logs out the current user
func (a *Admin) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Validate CSRF - but don't block logout if invalid (security trade-off)
	if err := r.ParseForm(); err == nil {
		if !a.validateCSRF(r) {
			a.logger.Warn("logout request with invalid CSRF token")
		}
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil {
		_ = a.store.DeleteAdminSession(r.Context(), cookie.Value)
	}

	if user := getUserFromContext(r); user != nil {
		a.recordAction(r.Context(), user.Username, store.ActionLogout, "")
	}

	// Clear session cookie
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
	})

	// Clear CSRF cookie
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
