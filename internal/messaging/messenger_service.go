package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/demosglok/symptomsbot/internal/messenger"
	"github.com/demosglok/symptomsbot/internal/models"
)

// MessengerService implements Service using the Messenger Send API client.
type MessengerService struct {
	sender  messenger.Sender
	mu      sync.RWMutex
	stopped bool
}

// NewMessengerService creates a new MessengerService wrapping the given Sender.
func NewMessengerService(sender messenger.Sender) *MessengerService {
	slog.Debug("NewMessengerService created")
	return &MessengerService{sender: sender}
}

// SendText sends a plain text message, optionally tagged with metadata.
func (s *MessengerService) SendText(ctx context.Context, to, text, metadata string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	err := s.sender.Send(ctx, models.OutboundMessage{To: to, Text: text, Metadata: metadata})
	if err != nil {
		slog.Error("MessengerService SendText failed", "error", err, "to", to)
		return err
	}
	slog.Debug("MessengerService SendText succeeded", "to", to, "text_length", len(text))
	return nil
}

// SendQuickReplies sends a text message with quick-reply buttons.
func (s *MessengerService) SendQuickReplies(ctx context.Context, to, text string, buttons []models.QuickReplyButton) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	err := s.sender.Send(ctx, models.OutboundMessage{To: to, Text: text, QuickReplies: buttons})
	if err != nil {
		slog.Error("MessengerService SendQuickReplies failed", "error", err, "to", to, "buttons", len(buttons))
		return err
	}
	slog.Debug("MessengerService SendQuickReplies succeeded", "to", to, "buttons", len(buttons))
	return nil
}

// SendSenderAction sends a sender-action marker such as mark_seen.
func (s *MessengerService) SendSenderAction(ctx context.Context, to, action string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	err := s.sender.Send(ctx, models.OutboundMessage{To: to, SenderAction: action})
	if err != nil {
		slog.Error("MessengerService SendSenderAction failed", "error", err, "to", to, "action", action)
		return err
	}
	return nil
}

// Stop marks the service stopped; subsequent sends fail fast.
func (s *MessengerService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("MessengerService stopped")
	return nil
}

func (s *MessengerService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}
