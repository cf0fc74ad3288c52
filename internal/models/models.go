// Package models defines the core data structures for symptomsbot.
//
// It includes the survey question and answer types, user profiles, the
// Messenger webhook event shapes, and the outbound send payloads shared
// across modules.
package models

import (
	"errors"
)

// AnswerKind defines how a question expects to be answered.
type AnswerKind string

const (
	// AnswerKindTriState expects one of yes / no / not sure via quick-reply buttons.
	AnswerKindTriState AnswerKind = "tristate"
	// AnswerKindFreeText expects free-form text (the city question).
	AnswerKindFreeText AnswerKind = "freetext"
)

// Question is one entry of the survey catalog. The field name is stable
// across runs and keys the answer in the stored record.
type Question struct {
	FieldName string     `json:"fieldname"`
	Text      string     `json:"text"`
	Kind      AnswerKind `json:"kind"`
}

// UserProfile is the durable per-user record. Agree is a tri-state: nil
// means the user was never asked for consent.
type UserProfile struct {
	UserID           string `json:"user_id" bson:"user_id"`
	Agree            *bool  `json:"agree,omitempty" bson:"agree,omitempty"`
	LastQuestionTime int64  `json:"last_question_time" bson:"last_question_time"`
}

// Consented reports whether the user has explicitly agreed to be questioned.
func (p *UserProfile) Consented() bool {
	return p.Agree != nil && *p.Agree
}

// AnswerRecord is the snapshot of the most recently completed survey for
// one user. Fields maps question field names to answer values; a new
// completion overwrites the previous record.
type AnswerRecord struct {
	UserID    string            `json:"user_id" bson:"user_id"`
	Fields    map[string]string `json:"fields" bson:"fields"`
	Timestamp int64             `json:"timestamp" bson:"timestamp"`
}

// SurveySession is the transient in-progress survey walk for one user.
// Answers contains exactly the field names for steps [0, Step), and Order
// preserves their insertion order (catalog order).
type SurveySession struct {
	UserID  string
	Step    int
	Answers map[string]string
	Order   []string
}

// Quick-reply payload vocabulary. The Answer Processor recognizes these
// strings verbatim; anything else is dropped.
const (
	PayloadAgree         = "AGREE_TO_BE_QUESTIONED"
	PayloadDisagree      = "DISAGREE_TO_BE_QUESTIONED"
	PayloadStartOK       = "START_QUESTIONING_OK"
	PayloadNothingChange = "QUESTIONING_NOTHING_CHANGE"
	PayloadSkipToday     = "QUESTIONING_SKIP_TODAY"
	PayloadAnswerYes     = "HEALTH_ANSWER_YES"
	PayloadAnswerNo      = "HEALTH_ANSWER_NO"
	PayloadAnswerNotSure = "HEALTH_ANSWER_NOT_SURE"
)

// MetadataQuestionCity tags the outbound city prompt so the next plain-text
// reply can be routed as the city answer.
const MetadataQuestionCity = "QUESTION_CITY"

// Answer values stored for tri-state replies.
const (
	AnswerYes     = "yes"
	AnswerNo      = "no"
	AnswerNotSure = "not sure"
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient    = errors.New("recipient cannot be empty")
	ErrEmptyBody         = errors.New("message body cannot be empty")
	ErrNoActiveSession   = errors.New("no active survey session for user")
	ErrSessionIncomplete = errors.New("survey session is not complete")
)

// WebhookPayload is the envelope POSTed by the Messenger platform.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one page subscription entry; events may be batched.
type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is a single inbound event. Exactly one of the event
// pointers is set.
type MessagingEvent struct {
	Sender         Party           `json:"sender"`
	Recipient      Party           `json:"recipient"`
	Timestamp      int64           `json:"timestamp"`
	Message        *Message        `json:"message,omitempty"`
	Postback       *Postback       `json:"postback,omitempty"`
	Delivery       *Delivery       `json:"delivery,omitempty"`
	Read           *Read           `json:"read,omitempty"`
	AccountLinking *AccountLinking `json:"account_linking,omitempty"`
	Optin          *Optin          `json:"optin,omitempty"`
}

// Party identifies a sender or recipient by platform-assigned ID.
type Party struct {
	ID string `json:"id"`
}

// Message is an inbound message event. Text and attachments are mutually
// exclusive in practice.
type Message struct {
	MID         string       `json:"mid,omitempty"`
	AppID       int64        `json:"app_id,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
	Text        string       `json:"text,omitempty"`
	Metadata    string       `json:"metadata,omitempty"`
	QuickReply  *QuickReply  `json:"quick_reply,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// QuickReply carries the payload of a tapped quick-reply button.
type QuickReply struct {
	Payload string `json:"payload"`
}

// Attachment is an inbound media attachment; content is never interpreted.
type Attachment struct {
	Type string `json:"type"`
}

// Postback is a structured-message button tap.
type Postback struct {
	Payload string `json:"payload"`
}

// Delivery confirms delivery of previously sent messages.
type Delivery struct {
	MIDs      []string `json:"mids,omitempty"`
	Watermark int64    `json:"watermark"`
	Seq       int64    `json:"seq,omitempty"`
}

// Read confirms a previously sent message has been read.
type Read struct {
	Watermark int64 `json:"watermark"`
	Seq       int64 `json:"seq,omitempty"`
}

// AccountLinking reports a Link/Unlink Account action.
type AccountLinking struct {
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
}

// Optin is the authentication/opt-in event.
type Optin struct {
	Ref string `json:"ref"`
}

// QuickReplyButton is one outbound quick-reply option.
type QuickReplyButton struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// OutboundMessage is the structured message handed to the delivery
// collaborator: plain text, text with quick replies, or a sender action.
type OutboundMessage struct {
	To           string             `json:"to"`
	Text         string             `json:"text,omitempty"`
	Metadata     string             `json:"metadata,omitempty"`
	QuickReplies []QuickReplyButton `json:"quick_replies,omitempty"`
	SenderAction string             `json:"sender_action,omitempty"`
}

// Validate performs basic validation on an OutboundMessage.
func (m *OutboundMessage) Validate() error {
	if m.To == "" {
		return ErrEmptyRecipient
	}
	if m.Text == "" && m.SenderAction == "" {
		return ErrEmptyBody
	}
	return nil
}
