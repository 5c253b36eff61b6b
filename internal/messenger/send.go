// ABOUTME: Client for the Messenger Send API
// ABOUTME: Posts text replies to the Graph API using the page access token

package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultSendURL is the Graph API endpoint for page messages.
const DefaultSendURL = "https://graph.facebook.com/v18.0/me/messages"

// SendClient posts replies to the Messenger Send API.
type SendClient struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSendClient creates a Send API client. url falls back to DefaultSendURL
// when empty.
func NewSendClient(url, pageAccessToken string) *SendClient {
	if url == "" {
		url = DefaultSendURL
	}
	return &SendClient{
		url:        url,
		token:      pageAccessToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default().With("component", "messenger"),
	}
}

type sendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// SendText sends a plain text message to a Messenger user.
func (c *SendClient) SendText(ctx context.Context, recipientID, text string) error {
	var body sendRequest
	body.Recipient.ID = recipientID
	body.Message.Text = text

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.url+"?access_token="+c.token, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to send api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send api returned status %d: %s", resp.StatusCode, detail)
	}

	c.logger.Debug("messenger reply sent", "recipient_id", recipientID)
	return nil
}
