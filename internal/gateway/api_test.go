// ABOUTME: Tests for the visitor-facing HTTP API
// ABOUTME: Runs the full gateway against a fake AI provider and a temp SQLite store

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotedesk/quotedesk/internal/assistant"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/store"
)

// newFakeProvider returns an httptest server speaking the chat completions
// protocol with a fixed reply.
func newFakeProvider(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestGateway(t *testing.T, providerURL string) (*Gateway, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Assistant.BaseURL = providerURL
	cfg.Assistant.APIKey = "test-key"
	cfg.Assistant.Model = "llama-3.1-8b-instant"
	cfg.Assistant.Temperature = 0.3
	cfg.Assistant.MaxTokens = 500
	cfg.Assistant.HistoryWindow = 6
	cfg.Assistant.Timeout = 5 * time.Second
	cfg.Admin.JWTSecret = "test-secret"
	cfg.Affiliates.Partners = map[string]string{
		"thezebra":     "https://www.thezebra.com/homeowners-insurance/",
		"policygenius": "https://www.policygenius.com/home-insurance/",
	}
	cfg.Affiliates.Default = "thezebra"

	gw, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { gw.store.Close() })

	server := httptest.NewServer(gw.httpServer.Handler)
	t.Cleanup(server.Close)
	gw.baseURL = server.URL

	return gw, server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestChat_Exchange(t *testing.T) {
	provider := newFakeProvider(t, "Home insurance covers your dwelling and belongings.", http.StatusOK)
	gw, server := newTestGateway(t, provider.URL)

	resp := postJSON(t, server.URL+"/api/chat", ChatRequest{Message: "What does home insurance cover?"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chat ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.NotEmpty(t, chat.SessionID)
	assert.Equal(t, "Home insurance covers your dwelling and belongings.", chat.Reply)
	assert.False(t, chat.Degraded)

	// Second message continues the same session
	resp2 := postJSON(t, server.URL+"/api/chat", ChatRequest{
		SessionID: chat.SessionID,
		Message:   "And what about floods?",
	})
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var chat2 ChatResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&chat2))
	assert.Equal(t, chat.SessionID, chat2.SessionID)

	turns, err := gw.store.GetSessionTurns(context.Background(), chat.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestChat_EmptyMessage(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	_, server := newTestGateway(t, provider.URL)

	resp := postJSON(t, server.URL+"/api/chat", ChatRequest{Message: "   "})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChat_ProviderDown(t *testing.T) {
	provider := newFakeProvider(t, "", http.StatusInternalServerError)
	gw, server := newTestGateway(t, provider.URL)

	resp := postJSON(t, server.URL+"/api/chat", ChatRequest{Message: "hello"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chat ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.True(t, chat.Degraded)
	assert.Equal(t, assistant.FallbackReply, chat.Reply)

	// The visitor message and the fallback are both in the transcript
	turns, err := gw.store.GetSessionTurns(context.Background(), chat.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestLeadForm_JSON(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	gw, server := newTestGateway(t, provider.URL)

	resp := postJSON(t, server.URL+"/api/lead", LeadRequest{
		Name:      "Jane Doe",
		Email:     "jane@example.com",
		Location:  "Austin",
		HomeValue: "$450,000",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out LeadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
	require.NotEmpty(t, out.SessionID)
	assert.Contains(t, out.AffiliateURL, "/track/thezebra")
	assert.Contains(t, out.AffiliateURL, "jane%40example.com")

	lead, err := gw.store.GetLeadBySession(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", lead.Name)
	assert.Equal(t, store.InterestHigh, lead.InterestLevel)
	assert.Equal(t, store.LeadSourceForm, lead.Source)
	assert.True(t, lead.QuoteRequested)
}

func TestLeadForm_FormEncoded(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	gw, server := newTestGateway(t, provider.URL)

	form := url.Values{
		"name":  {"Jane Doe"},
		"email": {"jane@example.com"},
	}
	resp, err := http.Post(server.URL+"/api/lead", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out LeadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	lead, err := gw.store.GetLeadBySession(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", lead.Email)
}

func TestLeadForm_MissingEmail(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	_, server := newTestGateway(t, provider.URL)

	resp := postJSON(t, server.URL+"/api/lead", LeadRequest{Name: "Jane Doe"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeadForm_UpdatesExistingChatLead(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	gw, server := newTestGateway(t, provider.URL)

	// Start a chat session first
	resp := postJSON(t, server.URL+"/api/chat", ChatRequest{Message: "hello"})
	var chat ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	resp.Body.Close()

	// Submit the form against the same session
	resp = postJSON(t, server.URL+"/api/lead", LeadRequest{
		SessionID: chat.SessionID,
		Email:     "jane@example.com",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lead, err := gw.store.GetLeadBySession(context.Background(), chat.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", lead.Email)
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestTrack_Redirect(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	gw, server := newTestGateway(t, provider.URL)

	// Seed a lead so the click has something to land on
	resp := postJSON(t, server.URL+"/api/lead", LeadRequest{Email: "jane@example.com"})
	var out LeadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()

	trackURL := server.URL + "/track/thezebra?session_id=" + out.SessionID + "&email=jane%40example.com"
	resp, err := noRedirectClient().Get(trackURL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.Contains(t, location, "thezebra.com")
	assert.Contains(t, location, "email=jane%40example.com")
	assert.Contains(t, location, "utm_source=quotedesk")

	lead, err := gw.store.GetLeadBySession(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.True(t, lead.AffiliateClicked)
}

func TestTrack_UnknownPartnerFallsBackToDefault(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	_, server := newTestGateway(t, provider.URL)

	resp, err := noRedirectClient().Get(server.URL + "/track/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "thezebra.com")
}

func TestTrack_NoDefaultIs404(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	gw, server := newTestGateway(t, provider.URL)
	gw.config.Affiliates.Default = ""

	resp, err := noRedirectClient().Get(server.URL + "/track/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	provider := newFakeProvider(t, "reply", http.StatusOK)
	_, server := newTestGateway(t, provider.URL)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
