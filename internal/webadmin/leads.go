// ABOUTME: Dashboard and lead management handlers
// ABOUTME: Lead listing, transcript viewing, deletion, and the audit log page

package webadmin

import (
	"errors"
	"net/http"
	"time"

	"github.com/quotedesk/quotedesk/internal/store"
)

// recentLeadLimit caps how many leads the dashboard shows inline.
const recentLeadLimit = 10

// handleDashboard renders the main admin dashboard with lead stats
func (a *Admin) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	_, csrfToken := a.ensureCSRFToken(w, r)

	total, err := a.store.CountLeads(r.Context())
	if err != nil {
		a.logger.Error("failed to count leads", "error", err)
	}

	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	today, err := a.store.CountLeadsSince(r.Context(), midnight)
	if err != nil {
		a.logger.Error("failed to count today's leads", "error", err)
	}

	leads, err := a.store.ListLeads(r.Context())
	if err != nil {
		a.logger.Error("failed to list leads", "error", err)
		leads = nil // Show empty state on error
	}
	if len(leads) > recentLeadLimit {
		leads = leads[:recentLeadLimit]
	}

	a.renderDashboard(w, user, total, today, leads, csrfToken)
}

// handleLeadsPage renders the full lead list
func (a *Admin) handleLeadsPage(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	_, csrfToken := a.ensureCSRFToken(w, r)

	leads, err := a.store.ListLeads(r.Context())
	if err != nil {
		a.logger.Error("failed to list leads", "error", err)
		http.Error(w, "Failed to load leads", http.StatusInternalServerError)
		return
	}

	a.renderLeadsPage(w, user, leads, csrfToken)
}

// handleLeadDetail renders a single lead with its conversation transcript
func (a *Admin) handleLeadDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	lead, err := a.store.GetLeadBySession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Lead not found", http.StatusNotFound)
			return
		}
		a.logger.Error("failed to get lead", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to load lead", http.StatusInternalServerError)
		return
	}

	turns, err := a.store.GetSessionTurns(r.Context(), sessionID, 0)
	if err != nil {
		a.logger.Error("failed to get transcript", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to load transcript", http.StatusInternalServerError)
		return
	}

	user := getUserFromContext(r)
	_, csrfToken := a.ensureCSRFToken(w, r)

	a.recordAction(r.Context(), user.Username, store.ActionViewTranscript, sessionID)
	a.renderLeadDetail(w, user, lead, turns, csrfToken)
}

// handleLeadDelete deletes a lead by ID
func (a *Admin) handleLeadDelete(w http.ResponseWriter, r *http.Request) {
	if !a.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}

	leadID := r.PathValue("id")
	if leadID == "" {
		http.Error(w, "Lead ID required", http.StatusBadRequest)
		return
	}

	if err := a.store.DeleteLead(r.Context(), leadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Lead not found", http.StatusNotFound)
			return
		}
		a.logger.Error("failed to delete lead", "error", err, "lead_id", leadID)
		http.Error(w, "Failed to delete lead", http.StatusInternalServerError)
		return
	}

	user := getUserFromContext(r)
	a.recordAction(r.Context(), user.Username, store.ActionDeleteLead, leadID)
	a.logger.Info("lead deleted", "lead_id", leadID, "admin_user", user.Username)

	http.Redirect(w, r, "/admin/leads", http.StatusSeeOther)
}

// handleActionsPage renders the audit log
func (a *Admin) handleActionsPage(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	_, csrfToken := a.ensureCSRFToken(w, r)

	actions, err := a.store.ListAdminActions(r.Context(), 100)
	if err != nil {
		a.logger.Error("failed to list admin actions", "error", err)
		http.Error(w, "Failed to load audit log", http.StatusInternalServerError)
		return
	}

	a.renderActionsPage(w, user, actions, csrfToken)
}
