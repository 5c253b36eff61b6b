// ABOUTME: Lead export tokens for the JSON admin API
// ABOUTME: Mints and verifies HS256 JWTs so external tools can pull leads without cookies

package webadmin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quotedesk/quotedesk/internal/store"
)

// TokenDuration is how long export tokens are valid
const TokenDuration = 24 * time.Hour

// tokenPurpose marks export tokens so other JWTs signed with the same
// secret can't be replayed against the lead API.
const tokenPurpose = "lead-export"

// exportClaims are the claims carried by a lead export token.
type exportClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// mintExportToken creates a signed export token for the given admin user.
func (a *Admin) mintExportToken(username string) (string, error) {
	if a.config.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}

	now := time.Now().UTC()
	claims := exportClaims{
		Purpose: tokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "quotedesk",
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// verifyExportToken validates a token and returns the admin username it
// was issued to.
func (a *Admin) verifyExportToken(tokenString string) (string, error) {
	if a.config.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}

	var claims exportClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Purpose != tokenPurpose {
		return "", fmt.Errorf("wrong token purpose")
	}
	return claims.Subject, nil
}

// handleCreateToken mints an export token for the logged-in admin
func (a *Admin) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	if !a.validateCSRF(r) {
		http.Error(w, "Invalid request", http.StatusForbidden)
		return
	}

	user := getUserFromContext(r)
	token, err := a.mintExportToken(user.Username)
	if err != nil {
		a.logger.Error("failed to mint export token", "error", err)
		http.Error(w, "Failed to create token", http.StatusInternalServerError)
		return
	}

	a.recordAction(r.Context(), user.Username, store.ActionCreateToken, "")
	a.logger.Info("export token created", "admin_user", user.Username)

	a.renderTokenCreated(w, token)
}

// leadExport is the JSON shape returned by the export API.
type leadExport struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	Name             string    `json:"name,omitempty"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone,omitempty"`
	Location         string    `json:"location,omitempty"`
	HomeValue        string    `json:"home_value,omitempty"`
	InterestLevel    string    `json:"interest_level"`
	Source           string    `json:"source"`
	QuoteRequested   bool      `json:"quote_requested"`
	AffiliateClicked bool      `json:"affiliate_clicked"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// handleAPILeads serves the lead list as JSON, gated by a Bearer export token
func (a *Admin) handleAPILeads(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || tokenString == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	username, err := a.verifyExportToken(tokenString)
	if err != nil {
		a.logger.Warn("rejected export token", "error", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	leads, err := a.store.ListLeads(r.Context())
	if err != nil {
		a.logger.Error("failed to list leads for export", "error", err)
		http.Error(w, "Failed to load leads", http.StatusInternalServerError)
		return
	}

	out := make([]leadExport, 0, len(leads))
	for _, lead := range leads {
		out = append(out, leadExport{
			ID:               lead.ID,
			SessionID:        lead.SessionID,
			Name:             lead.Name,
			Email:            lead.Email,
			Phone:            lead.Phone,
			Location:         lead.Location,
			HomeValue:        lead.HomeValue,
			InterestLevel:    lead.InterestLevel,
			Source:           lead.Source,
			QuoteRequested:   lead.QuoteRequested,
			AffiliateClicked: lead.AffiliateClicked,
			CreatedAt:        lead.CreatedAt,
			UpdatedAt:        lead.UpdatedAt,
		})
	}

	a.logger.Debug("lead export served", "admin_user", username, "count", len(out))
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"leads": out}); err != nil {
		a.logger.Error("failed to encode lead export", "error", err)
	}
}
