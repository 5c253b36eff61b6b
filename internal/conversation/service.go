// ABOUTME: Service is the central layer for chat exchanges
// ABOUTME: All turns flow through here - the transcript is the source of truth, not a side effect

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quotedesk/quotedesk/internal/assistant"
	"github.com/quotedesk/quotedesk/internal/extractor"
	"github.com/quotedesk/quotedesk/internal/store"
)

// summaryLimit caps the conversation summary stored on a lead.
const summaryLimit = 200

// quoteNudge is appended to the reply when the visitor's message shows
// quote intent, steering them toward the quick quote form.
const quoteNudge = "Want a personalized quote? Use the quick quote form, or share your name, email, and city here and I'll get one started."

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	CreateSession(ctx context.Context, session *store.Session) error
	GetSession(ctx context.Context, id string) (*store.Session, error)

	AppendTurn(ctx context.Context, turn *store.Turn) error
	GetSessionTurns(ctx context.Context, sessionID string, limit int) ([]*store.Turn, error)

	UpsertLead(ctx context.Context, lead *store.Lead) error
}

// Completer defines what the service needs from the assistant layer
type Completer interface {
	Complete(ctx context.Context, history []assistant.Message) (string, error)
}

// Service coordinates one chat exchange: it records the visitor turn,
// obtains the assistant reply, records it, and captures lead fields from
// the conversation so far.
type Service struct {
	store     ConversationStore
	completer Completer
	window    int
	logger    *slog.Logger
}

// New creates a new conversation Service. window is the number of recent
// turns sent to the assistant per exchange.
func New(cs ConversationStore, completer Completer, window int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 6
	}
	return &Service{
		store:     cs,
		completer: completer,
		window:    window,
		logger:    logger.With("component", "conversation"),
	}
}

// MessageRequest contains everything needed to run one exchange.
type MessageRequest struct {
	// SessionID identifies the conversation. Empty means start a new
	// web session with a generated ID.
	SessionID string

	// Channel is the session origin, used only when the session has to
	// be created. Defaults to web.
	Channel string

	// Content is the visitor's message.
	Content string
}

// MessageResponse is the result of one exchange.
type MessageResponse struct {
	SessionID string
	Reply     string

	// Degraded is set when the assistant was unavailable and Reply is
	// the fallback text. Lead state is untouched for degraded exchanges.
	Degraded bool
}

// HandleMessage runs a full exchange.
//
// Key principle: record first, then act. The visitor turn is persisted
// BEFORE the assistant is called, so the transcript survives provider
// failures. When the assistant is unavailable the visitor still gets the
// fallback reply and the conversation continues; lead capture is skipped
// for that exchange only.
func (s *Service) HandleMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("message content is required")
	}

	session, err := s.ensureSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("session resolution failed: %w", err)
	}

	// 1. Record visitor turn FIRST
	if err := s.store.AppendTurn(ctx, &store.Turn{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      store.RoleVisitor,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("recording visitor turn: %w", err)
	}

	// 2. Ask the assistant with the recent window
	history, err := s.store.GetSessionTurns(ctx, session.ID, s.window)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	reply, err := s.completer.Complete(ctx, toMessages(history))
	degraded := false
	if err != nil {
		if !errors.Is(err, assistant.ErrUnavailable) {
			return nil, fmt.Errorf("assistant call failed: %w", err)
		}
		s.logger.Warn("assistant unavailable, serving fallback",
			"session_id", session.ID,
			"error", err)
		reply = assistant.FallbackReply
		degraded = true
	}

	if !degraded && extractor.Extract([]string{req.Content}).QuoteIntent {
		reply += "\n\n" + quoteNudge
	}

	// 3. Record the reply. Uses a detached context so the transcript
	// stays consistent even if the request context is already gone.
	s.recordTurn(&store.Turn{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      store.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	})

	// 4. Capture lead fields, but never from a degraded exchange
	if !degraded {
		s.captureLead(ctx, session)
	}

	return &MessageResponse{
		SessionID: session.ID,
		Reply:     reply,
		Degraded:  degraded,
	}, nil
}

// Transcript returns the full turn history for a session, oldest first.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]*store.Turn, error) {
	return s.store.GetSessionTurns(ctx, sessionID, 0)
}

// ensureSession resolves an existing session or creates a new one
func (s *Service) ensureSession(ctx context.Context, req *MessageRequest) (*store.Session, error) {
	channel := req.Channel
	if channel == "" {
		channel = store.ChannelWeb
	}

	if req.SessionID != "" {
		session, err := s.store.GetSession(ctx, req.SessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	session := &store.Session{
		ID:        req.SessionID,
		Channel:   channel,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		// Race: another request created the session between lookup and insert
		if errors.Is(err, store.ErrDuplicateSession) {
			existing, lookupErr := s.store.GetSession(ctx, session.ID)
			if lookupErr == nil {
				s.logger.Debug("found existing session after race", "session_id", existing.ID)
				return existing, nil
			}
		}
		return nil, err
	}
	s.logger.Debug("session created", "session_id", session.ID, "channel", channel)
	return session, nil
}

// captureLead re-extracts fields from all visitor turns and upserts the
// lead when the required contact field is known. Extraction failures never
// fail the exchange; the reply has already been recorded.
func (s *Service) captureLead(ctx context.Context, session *store.Session) {
	turns, err := s.store.GetSessionTurns(ctx, session.ID, 0)
	if err != nil {
		s.logger.Error("failed to load turns for lead capture",
			"error", err,
			"session_id", session.ID)
		return
	}

	var visitorText []string
	for _, turn := range turns {
		if turn.Role == store.RoleVisitor {
			visitorText = append(visitorText, turn.Content)
		}
	}

	fields := extractor.Extract(visitorText)
	if !fields.Complete() {
		if !fields.Empty() {
			s.logger.Debug("partial lead fields, waiting for contact info",
				"session_id", session.ID)
		}
		return
	}

	interest := store.InterestLow
	if fields.QuoteIntent {
		interest = store.InterestHigh
	}
	source := store.LeadSourceChat
	if session.Channel == store.ChannelMessenger {
		source = store.LeadSourceMessenger
	}

	lead := &store.Lead{
		ID:                  uuid.New().String(),
		SessionID:           session.ID,
		Name:                fields.Name,
		Email:               fields.Email,
		Phone:               fields.Phone,
		Location:            fields.Location,
		HomeValue:           fields.HomeValue,
		InterestLevel:       interest,
		Source:              source,
		ConversationSummary: summarize(visitorText),
		QuoteRequested:      fields.QuoteIntent,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}

	if err := s.store.UpsertLead(ctx, lead); err != nil {
		s.logger.Error("failed to upsert lead",
			"error", err,
			"session_id", session.ID)
		return
	}
	s.logger.Info("lead captured",
		"session_id", session.ID,
		"interest", interest,
		"quote_requested", fields.QuoteIntent)
}

// recordTurn appends a turn with a separate timeout context.
// This ensures persistence continues even if the request context is cancelled.
func (s *Service) recordTurn(turn *store.Turn) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.AppendTurn(saveCtx, turn); err != nil {
		s.logger.Error("failed to record turn",
			"error", err,
			"session_id", turn.SessionID,
			"role", turn.Role)
	}
}

// toMessages converts stored turns to assistant wire messages.
func toMessages(turns []*store.Turn) []assistant.Message {
	messages := make([]assistant.Message, 0, len(turns))
	for _, turn := range turns {
		role := assistant.RoleUser
		if turn.Role == store.RoleAssistant {
			role = assistant.RoleAssistant
		}
		messages = append(messages, assistant.Message{Role: role, Content: turn.Content})
	}
	return messages
}

// summarize joins the most recent visitor messages into a short summary.
func summarize(visitorText []string) string {
	if len(visitorText) == 0 {
		return ""
	}
	summary := visitorText[len(visitorText)-1]
	if len(summary) > summaryLimit {
		summary = summary[:summaryLimit]
	}
	return summary
}
