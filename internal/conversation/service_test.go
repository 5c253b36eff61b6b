// ABOUTME: Tests for the conversation exchange pipeline
// ABOUTME: Uses in-memory fakes to verify record-first ordering, fallback, and lead capture

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotedesk/quotedesk/internal/assistant"
	"github.com/quotedesk/quotedesk/internal/store"
)

// fakeStore is an in-memory ConversationStore.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*store.Session
	turns    map[string][]*store.Turn
	leads    map[string]*store.Lead

	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*store.Session),
		turns:    make(map[string][]*store.Turn),
		leads:    make(map[string]*store.Lead),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, session *store.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.ID]; ok {
		return store.ErrDuplicateSession
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) AppendTurn(_ context.Context, turn *store.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	turn.Seq = int64(len(f.turns[turn.SessionID]) + 1)
	f.turns[turn.SessionID] = append(f.turns[turn.SessionID], turn)
	return nil
}

func (f *fakeStore) GetSessionTurns(_ context.Context, sessionID string, limit int) ([]*store.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	turns := f.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]*store.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (f *fakeStore) UpsertLead(_ context.Context, lead *store.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if lead.Email == "" {
		return store.ErrMissingContact
	}
	f.leads[lead.SessionID] = lead
	return nil
}

// fakeCompleter returns a fixed reply or error and remembers the last history.
type fakeCompleter struct {
	mu          sync.Mutex
	reply       string
	err         error
	lastHistory []assistant.Message
	calls       int
}

func (f *fakeCompleter) Complete(_ context.Context, history []assistant.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestService(fs *fakeStore, fc *fakeCompleter, window int) *Service {
	return New(fs, fc, window, nil)
}

func TestHandleMessage_NewSession(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "Happy to help with home insurance."}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		Content: "What does home insurance cover?",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Happy to help with home insurance.", resp.Reply)
	assert.False(t, resp.Degraded)

	// Both turns recorded, visitor first
	turns := fs.turns[resp.SessionID]
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleVisitor, turns[0].Role)
	assert.Equal(t, "What does home insurance cover?", turns[0].Content)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
}

func TestHandleMessage_ReusesSession(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 6)

	first, err := svc.HandleMessage(context.Background(), &MessageRequest{Content: "hello"})
	require.NoError(t, err)

	second, err := svc.HandleMessage(context.Background(), &MessageRequest{
		SessionID: first.SessionID,
		Content:   "another question",
	})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Len(t, fs.sessions, 1)
	assert.Len(t, fs.turns[first.SessionID], 4)
}

func TestHandleMessage_EmptyContent(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeCompleter{}, 6)
	_, err := svc.HandleMessage(context.Background(), &MessageRequest{})
	assert.Error(t, err)
}

func TestHandleMessage_FallbackWhenUnavailable(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{err: fmt.Errorf("%w: status 503", assistant.ErrUnavailable)}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		Content: "my email is jane@example.com, I want a quote",
	})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.Equal(t, assistant.FallbackReply, resp.Reply)

	// Visitor turn and fallback reply are both in the transcript
	turns := fs.turns[resp.SessionID]
	require.Len(t, turns, 2)
	assert.Equal(t, assistant.FallbackReply, turns[1].Content)

	// Lead state untouched for degraded exchanges, even with contact info
	assert.Empty(t, fs.leads)
}

func TestHandleMessage_UnexpectedAssistantError(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{err: errors.New("boom")}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{Content: "hello"})
	require.Error(t, err)
	assert.Nil(t, resp)

	// Record-first: the visitor turn survives the failure
	require.Len(t, fs.sessions, 1)
	for id := range fs.sessions {
		turns := fs.turns[id]
		require.Len(t, turns, 1)
		assert.Equal(t, store.RoleVisitor, turns[0].Role)
	}
}

func TestHandleMessage_WindowsHistory(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 4)

	var sessionID string
	for i := 0; i < 5; i++ {
		resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
			SessionID: sessionID,
			Content:   fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		sessionID = resp.SessionID
	}

	// Last call saw at most the window, ending with the newest visitor turn
	require.LessOrEqual(t, len(fc.lastHistory), 4)
	last := fc.lastHistory[len(fc.lastHistory)-1]
	assert.Equal(t, assistant.RoleUser, last.Role)
	assert.Equal(t, "message 4", last.Content)
}

func TestHandleMessage_CapturesLeadWithContact(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		Content: "I'm in Austin, my name is Jane Doe, email jane@example.com. How much is a quote?",
	})
	require.NoError(t, err)

	lead := fs.leads[resp.SessionID]
	require.NotNil(t, lead, "lead should be captured once contact info is present")
	assert.Equal(t, "Jane Doe", lead.Name)
	assert.Equal(t, "jane@example.com", lead.Email)
	assert.Equal(t, "Austin", lead.Location)
	assert.Equal(t, store.InterestHigh, lead.InterestLevel)
	assert.Equal(t, store.LeadSourceChat, lead.Source)
	assert.True(t, lead.QuoteRequested)
}

func TestHandleMessage_NoLeadWithoutContact(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		Content: "I need home insurance in Austin, my name is Jane Doe",
	})
	require.NoError(t, err)

	assert.Empty(t, fs.leads, "no lead until contact info is known")
	// Transcript still grows
	assert.Len(t, fs.turns[resp.SessionID], 2)
}

func TestHandleMessage_LeadAccumulatesAcrossExchanges(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		Content: "my name is Jane Doe, I'm in Austin",
	})
	require.NoError(t, err)
	assert.Empty(t, fs.leads)

	_, err = svc.HandleMessage(context.Background(), &MessageRequest{
		SessionID: resp.SessionID,
		Content:   "you can reach me at jane@example.com",
	})
	require.NoError(t, err)

	lead := fs.leads[resp.SessionID]
	require.NotNil(t, lead)
	assert.Equal(t, "Jane Doe", lead.Name)
	assert.Equal(t, "Austin", lead.Location)
	assert.Equal(t, store.InterestLow, lead.InterestLevel)
	assert.False(t, lead.QuoteRequested)
}

func TestHandleMessage_QuoteIntentNudge(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "Premiums depend on your home and location."}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		Content: "How much does home insurance cost?",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Reply, "Premiums depend on your home and location."))
	assert.Contains(t, resp.Reply, "quick quote form")

	// The nudge is part of the recorded transcript
	turns := fs.turns[resp.SessionID]
	require.Len(t, turns, 2)
	assert.Contains(t, turns[1].Content, "quick quote form")
}

func TestHandleMessage_MessengerChannelSource(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		SessionID: "fb_12345",
		Channel:   store.ChannelMessenger,
		Content:   "quote please, email jane@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "fb_12345", resp.SessionID)
	lead := fs.leads["fb_12345"]
	require.NotNil(t, lead)
	assert.Equal(t, store.LeadSourceMessenger, lead.Source)
}

func TestHandleMessage_UpsertFailureDoesNotFailExchange(t *testing.T) {
	fs := newFakeStore()
	fs.upsertErr = errors.New("disk full")
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 6)

	resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
		Content: "email jane@example.com",
	})
	require.NoError(t, err, "lead capture failures must not fail the exchange")
	assert.Equal(t, "reply", resp.Reply)
}

func TestTranscript(t *testing.T) {
	fs := newFakeStore()
	fc := &fakeCompleter{reply: "reply"}
	svc := newTestService(fs, fc, 2)

	var sessionID string
	for i := 0; i < 3; i++ {
		resp, err := svc.HandleMessage(context.Background(), &MessageRequest{
			SessionID: sessionID,
			Content:   fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		sessionID = resp.SessionID
	}

	turns, err := svc.Transcript(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 6, "transcript is never windowed")
}
