// ABOUTME: HTTP API handlers for visitor chat, quote form leads, and affiliate tracking
// ABOUTME: Provides POST /api/chat, POST /api/lead, and GET /track/{partner}

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quotedesk/quotedesk/internal/conversation"
	"github.com/quotedesk/quotedesk/internal/store"
)

// maxMessageLength caps visitor messages to keep provider requests bounded.
const maxMessageLength = 4000

// ChatRequest is the JSON request body for POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// LeadRequest is the JSON request body for POST /api/lead (the quick
// quote form). Form-encoded submissions use the same field names.
type LeadRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	HomeValue string `json:"home_value,omitempty"`
}

// LeadResponse is the JSON response for POST /api/lead.
type LeadResponse struct {
	Status       string `json:"status"`
	SessionID    string `json:"session_id"`
	AffiliateURL string `json:"affiliate_url,omitempty"`
}

// errorResponse is the JSON error shape for all API endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

// sendJSONError writes a JSON error response with the given status.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message}); err != nil {
		g.logger.Error("failed to encode error response", "error", err)
	}
}

// handleChat handles POST /api/chat requests.
// One request is one exchange: the visitor message goes through the
// conversation service and the assistant reply (or the fallback when the
// provider is down) comes back with the session ID to reuse.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > maxMessageLength {
		g.sendJSONError(w, http.StatusBadRequest, "message too long")
		return
	}

	resp, err := g.conversation.HandleMessage(r.Context(), &conversation.MessageRequest{
		SessionID: req.SessionID,
		Channel:   store.ChannelWeb,
		Content:   req.Message,
	})
	if err != nil {
		g.logger.Error("chat exchange failed", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable, please try again")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChatResponse{
		SessionID: resp.SessionID,
		Reply:     resp.Reply,
		Degraded:  resp.Degraded,
	})
}

// handleLeadForm handles POST /api/lead requests from the quick quote
// form. Form submissions bypass chat extraction entirely: the visitor
// explicitly asked for a quote, so the lead lands with high interest.
func (g *Gateway) handleLeadForm(w http.ResponseWriter, r *http.Request) {
	req, err := parseLeadRequest(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Email == "" {
		g.sendJSONError(w, http.StatusBadRequest, "email is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// The lead is keyed by session; create one for direct form submissions
	now := time.Now().UTC()
	err = g.store.CreateSession(r.Context(), &store.Session{
		ID:        sessionID,
		Channel:   store.ChannelWeb,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateSession) {
		g.logger.Error("failed to create session for lead form", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable, please try again")
		return
	}

	lead := &store.Lead{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Location:       req.Location,
		HomeValue:      req.HomeValue,
		InterestLevel:  store.InterestHigh,
		Source:         store.LeadSourceForm,
		QuoteRequested: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := g.store.UpsertLead(r.Context(), lead); err != nil {
		if errors.Is(err, store.ErrMissingContact) {
			g.sendJSONError(w, http.StatusBadRequest, "email is required")
			return
		}
		g.logger.Error("failed to save lead", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable, please try again")
		return
	}

	g.logger.Info("lead captured from quote form", "session_id", sessionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LeadResponse{
		Status:       "ok",
		SessionID:    sessionID,
		AffiliateURL: g.affiliateURL(g.config.Affiliates.Default, sessionID, req.Email),
	})
}

// parseLeadRequest decodes the quote form body from JSON or form encoding.
func parseLeadRequest(r *http.Request) (*LeadRequest, error) {
	var req LeadRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("invalid JSON body")
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errors.New("invalid form data")
	}
	req.SessionID = r.FormValue("session_id")
	req.Name = r.FormValue("name")
	req.Email = r.FormValue("email")
	req.Phone = r.FormValue("phone")
	req.Location = r.FormValue("location")
	req.HomeValue = r.FormValue("home_value")
	return &req, nil
}

// affiliateURL builds a /track link for the given partner, or "" when no
// partner is configured.
func (g *Gateway) affiliateURL(partner, sessionID, email string) string {
	if partner == "" {
		return ""
	}
	q := url.Values{}
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	if email != "" {
		q.Set("email", email)
	}
	link := g.baseURL + "/track/" + url.PathEscape(partner)
	if encoded := q.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return link
}

// handleTrack handles GET /track/{partner} affiliate redirects.
// The click is recorded on the session's lead (when one exists) and the
// visitor is forwarded to the partner with the email and source attached.
func (g *Gateway) handleTrack(w http.ResponseWriter, r *http.Request) {
	partner := r.PathValue("partner")

	target, ok := g.config.Affiliates.Partners[partner]
	if !ok {
		// Fall back to the default partner when configured
		if g.config.Affiliates.Default == "" {
			http.NotFound(w, r)
			return
		}
		partner = g.config.Affiliates.Default
		target = g.config.Affiliates.Partners[partner]
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		if err := g.store.MarkAffiliateClicked(r.Context(), sessionID); err != nil {
			g.logger.Error("failed to mark affiliate click", "error", err, "session_id", sessionID)
		}
	}

	dest, err := url.Parse(target)
	if err != nil {
		g.logger.Error("invalid partner URL configured", "partner", partner, "error", err)
		http.NotFound(w, r)
		return
	}

	q := dest.Query()
	if email := r.URL.Query().Get("email"); email != "" {
		q.Set("email", email)
	}
	q.Set("utm_source", "quotedesk")
	dest.RawQuery = q.Encode()

	g.logger.Info("affiliate redirect", "partner", partner)
	http.Redirect(w, r, dest.String(), http.StatusFound)
}
