// ABOUTME: HTTP client for the OpenAI-compatible chat completions API
// ABOUTME: Sends windowed conversation history and returns the assistant reply

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrUnavailable is returned when the AI provider is unreachable, times out,
// or returns an error response. Callers surface a fallback message and must
// not mutate lead state for the failed exchange.
var ErrUnavailable = errors.New("assistant unavailable")

// FallbackReply is shown to the visitor when the provider fails.
// The conversation continues; only this exchange is degraded.
const FallbackReply = "I apologize, but I'm having trouble processing your request. Please try again or use our quick quote form."

// systemPrompt steers the model toward insurance assistance and quote-field
// collection. Kept close to the behavior the service was tuned against.
const systemPrompt = `You are a professional home insurance assistant. Help users with:
1. Insurance information and quotes
2. Coverage explanations
3. Risk assessment guidance
4. Premium estimations

Always be helpful, professional, and suggest speaking with licensed agents.
When users ask for quotes, collect: location, home value, and contact info.
Never give financial advice - recommend consulting professionals.`

// Message is a single chat turn in provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Role constants in provider wire format
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// chatRequest is the JSON request body for the chat completions endpoint.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// chatResponse is the JSON response body from the chat completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Config holds provider settings for the client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new assistant client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "assistant"),
	}
}

// Complete sends the conversation history to the provider and returns the
// reply text. The system prompt is prepended; history should already be
// windowed to the configured number of recent turns.
//
// Provider failures of any kind (network, timeout, non-200, empty choices)
// are reported as ErrUnavailable with the cause wrapped alongside.
func (c *Client) Complete(ctx context.Context, history []Message) (string, error) {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)

	body := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("provider request failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("provider returned error status", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	if parsed.Error.Message != "" {
		c.logger.Warn("provider returned error", "message", parsed.Error.Message)
		return "", fmt.Errorf("%w: %s", ErrUnavailable, parsed.Error.Message)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUnavailable)
	}

	reply := parsed.Choices[0].Message.Content
	c.logger.Debug("completion received", "model", c.config.Model, "reply_len", len(reply))
	return reply, nil
}
