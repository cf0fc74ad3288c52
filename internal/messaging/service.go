// Package messaging provides the pluggable delivery abstraction for
// symptomsbot.
//
// The survey core hands structured outbound messages to a Service; the
// default implementation delivers via the Messenger Send API, with a
// Twilio SMS service available as an alternate channel.
package messaging

import (
	"context"
	"errors"

	"github.com/demosglok/symptomsbot/internal/models"
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// SendText sends a plain text message to a recipient. Metadata tags the
	// outbound message so a later inbound reply can be correlated with it.
	SendText(ctx context.Context, to, text, metadata string) error

	// SendQuickReplies sends a text message with quick-reply buttons.
	SendQuickReplies(ctx context.Context, to, text string, buttons []models.QuickReplyButton) error

	// SendSenderAction sends a sender-action marker (e.g. mark_seen).
	SendSenderAction(ctx context.Context, to, action string) error

	// Stop stops the service and releases resources.
	Stop() error
}
