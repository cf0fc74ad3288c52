// Package bot implements the conversation dispatcher for symptomsbot.
//
// The dispatcher interprets inbound webhook events, drives the per-user
// survey state machine, and asks the delivery service to reply. All
// failures are operator-visible only: a failed store read abandons the
// triggering action, failed writes and sends are logged, and nothing is
// ever surfaced to the end user as an error.
package bot

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/demosglok/symptomsbot/internal/catalog"
	"github.com/demosglok/symptomsbot/internal/messaging"
	"github.com/demosglok/symptomsbot/internal/models"
	"github.com/demosglok/symptomsbot/internal/session"
	"github.com/demosglok/symptomsbot/internal/store"
)

// punctuationRegex strips everything but word characters and whitespace
// before command matching.
var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

// Dispatcher routes inbound events to the survey state machine.
type Dispatcher struct {
	tracker *session.Tracker
	store   store.Store
	catalog *catalog.Catalog
	svc     messaging.Service
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher over the given collaborators.
func NewDispatcher(tracker *session.Tracker, st store.Store, cat *catalog.Catalog, svc messaging.Service) *Dispatcher {
	return &Dispatcher{
		tracker: tracker,
		store:   st,
		catalog: cat,
		svc:     svc,
		now:     time.Now,
	}
}

// SetClock overrides the dispatcher clock (for tests).
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// HandleEvent processes one inbound messaging event. Events that do not
// drive the survey core (postback, delivery, read, optin, account linking)
// are logged and otherwise ignored.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev models.MessagingEvent) {
	userID := ev.Sender.ID

	switch {
	case ev.Optin != nil:
		slog.Info("Dispatcher received optin event", "userID", userID, "ref", ev.Optin.Ref)
		d.sendText(ctx, userID, "Authentication successful", "")
	case ev.Message != nil:
		d.handleMessage(ctx, userID, ev.Message)
	case ev.Delivery != nil:
		slog.Debug("Dispatcher received delivery confirmation", "userID", userID, "watermark", ev.Delivery.Watermark, "mids", len(ev.Delivery.MIDs))
	case ev.Postback != nil:
		slog.Info("Dispatcher received postback", "userID", userID, "payload", ev.Postback.Payload)
	case ev.Read != nil:
		slog.Debug("Dispatcher received read event", "userID", userID, "watermark", ev.Read.Watermark)
	case ev.AccountLinking != nil:
		slog.Info("Dispatcher received account linking event", "userID", userID, "status", ev.AccountLinking.Status)
	default:
		slog.Warn("Dispatcher received unknown event shape", "userID", userID)
	}
}

// handleMessage branches on the shape of an inbound message per the
// dispatch order: echo, quick reply, awaited free-text answer, plain text
// command, attachment.
func (d *Dispatcher) handleMessage(ctx context.Context, userID string, msg *models.Message) {
	if msg.IsEcho {
		slog.Debug("Dispatcher ignoring echo message", "mid", msg.MID, "app_id", msg.AppID, "metadata", msg.Metadata)
		return
	}

	if msg.QuickReply != nil {
		slog.Debug("Dispatcher routing quick reply", "userID", userID, "payload", msg.QuickReply.Payload)
		d.ProcessPayload(ctx, userID, msg.QuickReply.Payload)
		return
	}

	if msg.Metadata == models.MetadataQuestionCity && msg.Text != "" {
		d.handleFreeTextAnswer(ctx, userID, msg.Text)
		return
	}

	if msg.Text != "" {
		d.handleTextCommand(ctx, userID, msg.Text)
		return
	}

	if len(msg.Attachments) > 0 {
		slog.Debug("Dispatcher acknowledging attachment", "userID", userID, "count", len(msg.Attachments))
		d.sendText(ctx, userID, attachmentAckText, "")
	}
}

// handleFreeTextAnswer records text as the answer to the awaited free-text
// question, then either asks the next question or completes the survey.
// Keyword matching is short-circuited either way.
func (d *Dispatcher) handleFreeTextAnswer(ctx context.Context, userID, text string) {
	if d.tracker.RecordAnswer(userID, text) == nil {
		slog.Debug("Dispatcher free-text answer with no active session, ignoring", "userID", userID)
		return
	}
	if d.tracker.IsComplete(userID) {
		d.completeSurvey(ctx, userID)
		return
	}
	d.askCurrentQuestion(ctx, userID)
}

// handleTextCommand normalizes text and matches it against the fixed
// command vocabulary; unrecognized text is echoed back verbatim.
func (d *Dispatcher) handleTextCommand(ctx context.Context, userID, text string) {
	normalized := strings.ToLower(strings.TrimSpace(punctuationRegex.ReplaceAllString(text, "")))

	switch normalized {
	case "hi", "hello":
		if _, err := d.store.EnsureProfile(ctx, userID); err != nil {
			slog.Error("Dispatcher greeting abandoned, profile lookup failed", "error", err, "userID", userID)
			return
		}
		d.sendText(ctx, userID, greetingText, "")
		d.sendQuickReplies(ctx, userID, consentPromptText, consentButtons())
	case "stop":
		if err := d.store.SetAgree(ctx, userID, false); err != nil {
			slog.Error("Dispatcher stop command: consent update failed", "error", err, "userID", userID)
		}
		d.sendText(ctx, userID, stopAckText, "")
	case "askme":
		d.promptSurveyStart(ctx, userID)
	default:
		slog.Debug("Dispatcher echoing unrecognized text", "userID", userID, "length", len(text))
		d.sendText(ctx, userID, text, "")
	}
}

// promptSurveyStart sends the start-survey prompt, with the keep-previous
// variant when a prior answer record exists for the user. A failed record
// lookup abandons the prompt entirely.
func (d *Dispatcher) promptSurveyStart(ctx context.Context, userID string) {
	record, err := d.store.GetAnswers(ctx, userID)
	if err != nil {
		slog.Error("Dispatcher survey prompt abandoned, answers lookup failed", "error", err, "userID", userID)
		return
	}
	d.SendStartPrompt(ctx, userID, record != nil)
}

// SendStartPrompt sends the start-survey quick-reply prompt. It is shared
// with the daily re-engagement sweep.
func (d *Dispatcher) SendStartPrompt(ctx context.Context, userID string, keepPrevious bool) {
	text := startSkipTodayText
	if keepPrevious {
		text = startKeepPreviousText
	}
	d.sendQuickReplies(ctx, userID, text, startButtons(keepPrevious))
}

// ProcessPayload maps a quick-reply payload onto its action. Payloads
// outside the fixed vocabulary are silently dropped.
func (d *Dispatcher) ProcessPayload(ctx context.Context, userID, payload string) {
	switch payload {
	case models.PayloadAgree:
		if err := d.store.SetAgree(ctx, userID, true); err != nil {
			slog.Error("Dispatcher consent grant failed", "error", err, "userID", userID)
		}
		d.promptSurveyStart(ctx, userID)
	case models.PayloadDisagree:
		if err := d.store.SetAgree(ctx, userID, false); err != nil {
			slog.Error("Dispatcher consent revoke failed", "error", err, "userID", userID)
		}
		d.sendText(ctx, userID, disagreeAckText, "")
	case models.PayloadStartOK:
		d.tracker.StartSession(userID)
		d.askCurrentQuestion(ctx, userID)
	case models.PayloadNothingChange, models.PayloadSkipToday:
		ts := d.now().Unix()
		if err := d.store.TouchLastQuestionTime(ctx, userID, ts); err != nil {
			slog.Error("Dispatcher skip/no-change stamp failed", "error", err, "userID", userID)
		}
	case models.PayloadAnswerYes:
		d.recordHealthAnswer(ctx, userID, models.AnswerYes)
	case models.PayloadAnswerNo:
		d.recordHealthAnswer(ctx, userID, models.AnswerNo)
	case models.PayloadAnswerNotSure:
		d.recordHealthAnswer(ctx, userID, models.AnswerNotSure)
	default:
		slog.Debug("Dispatcher dropping unrecognized payload", "userID", userID, "payload", payload)
	}
}

// recordHealthAnswer records a tri-state answer and advances the survey:
// next question if the session is incomplete, completion otherwise.
func (d *Dispatcher) recordHealthAnswer(ctx context.Context, userID, value string) {
	if d.tracker.RecordAnswer(userID, value) == nil {
		slog.Debug("Dispatcher health answer with no active session, ignoring", "userID", userID)
		return
	}
	if d.tracker.IsComplete(userID) {
		d.completeSurvey(ctx, userID)
		return
	}
	d.askCurrentQuestion(ctx, userID)
}

// askCurrentQuestion sends the question at the session's current step:
// metadata-tagged plain text for free-text questions, tri-state quick
// replies otherwise.
func (d *Dispatcher) askCurrentQuestion(ctx context.Context, userID string) {
	q := d.tracker.CurrentQuestion(userID)
	if q == nil {
		slog.Debug("Dispatcher askCurrentQuestion: no pending question", "userID", userID)
		return
	}
	if q.Kind == models.AnswerKindFreeText {
		d.sendText(ctx, userID, q.Text, models.MetadataQuestionCity)
		return
	}
	d.sendQuickReplies(ctx, userID, q.Text, healthAnswerButtons())
}

// completeSurvey runs the survey completion flow: finalize the session,
// persist the snapshot and the profile stamp as two independent
// best-effort writes, then thank the user. Failed writes are logged and
// never rolled back.
func (d *Dispatcher) completeSurvey(ctx context.Context, userID string) {
	answers, err := d.tracker.FinalizeAndClear(userID)
	if err != nil {
		slog.Error("Dispatcher completion aborted, finalize failed", "error", err, "userID", userID)
		return
	}

	ts := d.now().Unix()
	record := models.AnswerRecord{UserID: userID, Fields: answers, Timestamp: ts}
	if err := d.store.SaveAnswers(ctx, record); err != nil {
		slog.Error("Dispatcher failed to persist answer record", "error", err, "userID", userID)
	}
	if err := d.store.TouchLastQuestionTime(ctx, userID, ts); err != nil {
		slog.Error("Dispatcher failed to stamp profile after completion", "error", err, "userID", userID)
	}

	slog.Info("Dispatcher survey completed", "userID", userID, "answers", len(answers))
	d.sendText(ctx, userID, thankYouText, "")
}

// sendText delivers a plain text reply, logging delivery failures.
func (d *Dispatcher) sendText(ctx context.Context, userID, text, metadata string) {
	if err := d.svc.SendText(ctx, userID, text, metadata); err != nil {
		slog.Error("Dispatcher text delivery failed", "error", err, "userID", userID)
	}
}

// sendQuickReplies delivers a quick-reply prompt, logging delivery failures.
func (d *Dispatcher) sendQuickReplies(ctx context.Context, userID, text string, buttons []models.QuickReplyButton) {
	if err := d.svc.SendQuickReplies(ctx, userID, text, buttons); err != nil {
		slog.Error("Dispatcher quick-reply delivery failed", "error", err, "userID", userID)
	}
}
