package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/demosglok/symptomsbot/internal/messenger"
	"github.com/demosglok/symptomsbot/internal/models"
)

// fakeSMS records SMS bodies for assertions.
type fakeSMS struct {
	sent []string
	to   []string
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, body)
	return nil
}

func TestMessengerServiceSendText(t *testing.T) {
	mock := messenger.NewMockSender()
	svc := NewMessengerService(mock)

	if err := svc.SendText(context.Background(), "u1", "hello", "QUESTION_CITY"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Sent) != 1 {
		t.Fatalf("expected one sent message, got %d", len(mock.Sent))
	}
	got := mock.Sent[0]
	if got.To != "u1" || got.Text != "hello" || got.Metadata != "QUESTION_CITY" {
		t.Errorf("unexpected outbound message: %+v", got)
	}
}

func TestMessengerServiceSendQuickReplies(t *testing.T) {
	mock := messenger.NewMockSender()
	svc := NewMessengerService(mock)

	buttons := []models.QuickReplyButton{
		{Title: "I agree", Payload: models.PayloadAgree},
		{Title: "I don't agree", Payload: models.PayloadDisagree},
	}
	if err := svc.SendQuickReplies(context.Background(), "u1", "Do you agree?", buttons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Sent) != 1 || len(mock.Sent[0].QuickReplies) != 2 {
		t.Fatalf("unexpected sends: %+v", mock.Sent)
	}
}

func TestMessengerServiceStop(t *testing.T) {
	mock := messenger.NewMockSender()
	svc := NewMessengerService(mock)

	if err := svc.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SendText(context.Background(), "u1", "hello", ""); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped after Stop, got %v", err)
	}
	if err := svc.SendSenderAction(context.Background(), "u1", "typing_on"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped after Stop, got %v", err)
	}
}

func TestTwilioServiceRendersQuickRepliesAsNumberedOptions(t *testing.T) {
	sms := &fakeSMS{}
	svc := NewTwilioService(sms)

	buttons := []models.QuickReplyButton{
		{Title: "YES", Payload: models.PayloadAnswerYes},
		{Title: "NO", Payload: models.PayloadAnswerNo},
		{Title: "Not sure", Payload: models.PayloadAnswerNotSure},
	}
	err := svc.SendQuickReplies(context.Background(), "+15551234", "Do you have a fever?", buttons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sms.sent) != 1 {
		t.Fatalf("expected one SMS, got %d", len(sms.sent))
	}
	body := sms.sent[0]
	if !strings.HasPrefix(body, "Do you have a fever?") {
		t.Errorf("prompt text missing from SMS body: %q", body)
	}
	for _, want := range []string{"\n1. YES", "\n2. NO", "\n3. Not sure"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in SMS body %q", want, body)
		}
	}
}

func TestTwilioServiceDropsMetadata(t *testing.T) {
	sms := &fakeSMS{}
	svc := NewTwilioService(sms)

	if err := svc.SendText(context.Background(), "+15551234", "What city do you live in?", "QUESTION_CITY"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sms.sent) != 1 || sms.sent[0] != "What city do you live in?" {
		t.Errorf("metadata must not leak into the SMS body: %v", sms.sent)
	}
}

func TestTwilioServiceSenderActionIsNoOp(t *testing.T) {
	sms := &fakeSMS{}
	svc := NewTwilioService(sms)

	if err := svc.SendSenderAction(context.Background(), "+15551234", "typing_on"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sms.sent) != 0 {
		t.Errorf("sender action must not produce an SMS, got %v", sms.sent)
	}
}

func TestTwilioServiceStop(t *testing.T) {
	sms := &fakeSMS{}
	svc := NewTwilioService(sms)

	if err := svc.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SendText(context.Background(), "+15551234", "hi", ""); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped after Stop, got %v", err)
	}
}

func TestNewTwilioClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
	if _, err := NewTwilioClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromNumber("+15550000")); err != nil {
		t.Errorf("unexpected error with full credentials: %v", err)
	}
}
