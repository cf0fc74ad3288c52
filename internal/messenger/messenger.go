// Package messenger wraps the Messenger Send API for symptomsbot.
//
// It provides methods for delivering text messages, quick-reply prompts,
// and sender actions to a recipient. Delivery is best effort: a single
// request per message with the outcome logged.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/demosglok/symptomsbot/internal/models"
)

// Constants for Send API configuration
const (
	// DefaultSendAPIURL is the Messenger Send API endpoint.
	DefaultSendAPIURL = "https://graph.facebook.com/v2.6/me/messages"
	// DefaultRequestTimeout bounds a single Send API call.
	DefaultRequestTimeout = 10 * time.Second
)

// Sender is an interface for delivering outbound messages (for production and testing).
type Sender interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// Opts holds configuration options for the Send API client.
type Opts struct {
	PageAccessToken string
	APIURL          string
	HTTPClient      *http.Client
}

// Option defines a configuration option for the Send API client.
type Option func(*Opts)

// WithPageAccessToken sets the page access token used to authenticate Send API calls.
func WithPageAccessToken(token string) Option {
	return func(o *Opts) {
		o.PageAccessToken = token
	}
}

// WithAPIURL overrides the Send API endpoint (used in tests).
func WithAPIURL(u string) Option {
	return func(o *Opts) {
		o.APIURL = u
	}
}

// WithHTTPClient overrides the HTTP client used for Send API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// Client calls the Messenger Send API over HTTP.
type Client struct {
	token  string
	apiURL string
	http   *http.Client
}

// NewClient creates a new Send API client, applying any provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("messenger.NewClient options set", "token_set", cfg.PageAccessToken != "", "api_url_set", cfg.APIURL != "")

	if cfg.PageAccessToken == "" {
		slog.Error("messenger.NewClient: page access token not set")
		return nil, fmt.Errorf("page access token not set")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultSendAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	return &Client{token: cfg.PageAccessToken, apiURL: apiURL, http: httpClient}, nil
}

// sendRequest is the Send API wire format.
type sendRequest struct {
	Recipient    recipient    `json:"recipient"`
	Message      *sendMessage `json:"message,omitempty"`
	SenderAction string       `json:"sender_action,omitempty"`
}

type recipient struct {
	ID string `json:"id"`
}

type sendMessage struct {
	Text         string          `json:"text"`
	Metadata     string          `json:"metadata,omitempty"`
	QuickReplies []wireQuickReply `json:"quick_replies,omitempty"`
}

type wireQuickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

// sendResponse is the subset of the Send API response used for logging.
type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	Error       *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send delivers an outbound message via the Send API.
func (c *Client) Send(ctx context.Context, msg models.OutboundMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	req := sendRequest{Recipient: recipient{ID: msg.To}}
	if msg.SenderAction != "" {
		req.SenderAction = msg.SenderAction
	} else {
		m := &sendMessage{Text: msg.Text, Metadata: msg.Metadata}
		for _, qr := range msg.QuickReplies {
			m.QuickReplies = append(m.QuickReplies, wireQuickReply{
				ContentType: "text",
				Title:       qr.Title,
				Payload:     qr.Payload,
			})
		}
		req.Message = m
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Error("messenger.Send: failed to marshal request", "error", err, "to", msg.To)
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	u := c.apiURL + "?" + url.Values{"access_token": {c.token}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		slog.Error("messenger.Send: failed to build request", "error", err, "to", msg.To)
		return fmt.Errorf("failed to build send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("messenger.Send: calling Send API", "to", msg.To, "text_length", len(msg.Text), "quick_replies", len(msg.QuickReplies), "sender_action", msg.SenderAction)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		slog.Error("messenger.Send: Send API request failed", "error", err, "to", msg.To)
		return fmt.Errorf("send API request failed for %s: %w", msg.To, err)
	}
	defer resp.Body.Close()

	var result sendResponse
	respBody, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("messenger.Send: could not parse Send API response", "error", err, "status", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		errMsg := ""
		if result.Error != nil {
			errMsg = result.Error.Message
		}
		slog.Error("messenger.Send: Send API returned non-success status", "status", resp.StatusCode, "to", msg.To, "api_error", errMsg)
		return fmt.Errorf("send API returned status %d for %s", resp.StatusCode, msg.To)
	}

	if result.MessageID != "" {
		slog.Info("messenger.Send: message sent", "to", result.RecipientID, "message_id", result.MessageID)
	} else {
		slog.Info("messenger.Send: Send API call succeeded", "to", msg.To)
	}
	return nil
}

// MockSender implements Sender and records sent messages (for tests).
type MockSender struct {
	Sent []models.OutboundMessage
	Err  error
}

// NewMockSender creates a MockSender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send records the message and returns the configured error, if any.
func (m *MockSender) Send(ctx context.Context, msg models.OutboundMessage) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}
