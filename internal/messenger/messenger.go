// ABOUTME: Facebook Messenger webhook frontend for the chat service
// ABOUTME: Verifies webhook subscriptions, receives page messages, replies via the Send API

package messenger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/quotedesk/quotedesk/internal/conversation"
	"github.com/quotedesk/quotedesk/internal/store"
)

// sessionPrefix namespaces Messenger sender IDs so they can't collide
// with generated web session IDs.
const sessionPrefix = "fb_"

// Exchanger is the slice of the conversation service the webhook needs.
type Exchanger interface {
	HandleMessage(ctx context.Context, req *conversation.MessageRequest) (*conversation.MessageResponse, error)
}

// Replier sends a text reply back to a Messenger user.
type Replier interface {
	SendText(ctx context.Context, recipientID, text string) error
}

// Config holds Messenger webhook settings.
type Config struct {
	// VerifyToken must match what's configured in the Meta app dashboard.
	VerifyToken string
}

// Webhook handles Messenger webhook verification and inbound events.
type Webhook struct {
	exchanger Exchanger
	replier   Replier
	config    Config
	logger    *slog.Logger
}

// New creates a new Messenger webhook handler.
func New(exchanger Exchanger, replier Replier, cfg Config) *Webhook {
	return &Webhook{
		exchanger: exchanger,
		replier:   replier,
		config:    cfg,
		logger:    slog.Default().With("component", "messenger"),
	}
}

// RegisterRoutes registers the webhook endpoints on the given mux.
func (wh *Webhook) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook", wh.handleVerify)
	mux.HandleFunc("POST /webhook", wh.handleEvent)
	wh.logger.Info("messenger webhook routes registered")
}

// handleVerify answers the Meta webhook subscription handshake.
func (wh *Webhook) handleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != wh.config.VerifyToken {
		wh.logger.Warn("webhook verification rejected", "mode", mode)
		http.Error(w, "Verification failed", http.StatusForbidden)
		return
	}

	wh.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

// webhookEvent is the inbound payload shape from the Messenger platform.
type webhookEvent struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// handleEvent processes inbound Messenger events. The platform expects a
// 200 quickly regardless of per-message outcomes; failures are logged and
// the affected sender simply gets no reply.
func (wh *Webhook) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if event.Object != "page" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	for _, entry := range event.Entry {
		for _, msg := range entry.Messaging {
			if msg.Sender.ID == "" || msg.Message.Text == "" {
				continue // delivery receipts, postbacks, attachments
			}
			wh.processMessage(r.Context(), msg.Sender.ID, msg.Message.Text)
		}
	}

	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "EVENT_RECEIVED")
}

// processMessage runs one sender message through the conversation service
// and replies over the Send API.
func (wh *Webhook) processMessage(ctx context.Context, senderID, text string) {
	resp, err := wh.exchanger.HandleMessage(ctx, &conversation.MessageRequest{
		SessionID: sessionPrefix + senderID,
		Channel:   store.ChannelMessenger,
		Content:   text,
	})
	if err != nil {
		wh.logger.Error("messenger exchange failed", "error", err, "sender_id", senderID)
		return
	}

	if err := wh.replier.SendText(ctx, senderID, resp.Reply); err != nil {
		wh.logger.Error("failed to send messenger reply", "error", err, "sender_id", senderID)
	}
}
