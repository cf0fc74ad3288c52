package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/demosglok/symptomsbot/internal/models"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender is the subset of the Twilio REST client used by the
// service (for production and testing).
type TwilioSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioOpts holds configuration options for the Twilio SMS client.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioOption defines a configuration option for the Twilio SMS client.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromNumber sets the Twilio sending number.
func WithFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromNumber = from }
}

// TwilioClient wraps the Twilio REST API for SMS delivery.
type TwilioClient struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioClient creates a Twilio SMS client, falling back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER
// environment variables for unset options.
func NewTwilioClient(opts ...TwilioOption) (*TwilioClient, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioClient{client: client, from: cfg.FromNumber}, nil
}

// SendSMS sends a plain SMS message via the Twilio API.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendSMS failed", "to", to, "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	slog.Debug("Twilio SMS sent", "to", to)
	return nil
}

// TwilioService implements Service over SMS. Quick replies are rendered as
// numbered text options since SMS has no buttons; users answer by text.
type TwilioService struct {
	client  TwilioSender
	mu      sync.RWMutex
	stopped bool
}

// NewTwilioService creates a new TwilioService with the given sender.
func NewTwilioService(client TwilioSender) *TwilioService {
	slog.Debug("NewTwilioService created")
	return &TwilioService{client: client}
}

// SendText sends a plain SMS. Metadata has no SMS representation and is
// dropped after logging.
func (s *TwilioService) SendText(ctx context.Context, to, text, metadata string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	if metadata != "" {
		slog.Debug("TwilioService SendText dropping metadata (unsupported over SMS)", "to", to, "metadata", metadata)
	}
	return s.client.SendSMS(ctx, to, text)
}

// SendQuickReplies renders the buttons as a numbered option list appended
// to the prompt text.
func (s *TwilioService) SendQuickReplies(ctx context.Context, to, text string, buttons []models.QuickReplyButton) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	var b strings.Builder
	b.WriteString(text)
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Title)
	}
	return s.client.SendSMS(ctx, to, b.String())
}

// SendSenderAction is a no-op since SMS has no sender actions.
func (s *TwilioService) SendSenderAction(ctx context.Context, to, action string) error {
	slog.Debug("TwilioService SendSenderAction ignored (unsupported)", "to", to, "action", action)
	return nil
}

// Stop marks the service stopped; subsequent sends fail fast.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("TwilioService stopped")
	return nil
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}
