// Package session provides the in-memory survey session tracker.
//
// A session exists for a user exactly while a survey is in progress for
// that user. The tracker is injected into the dispatcher rather than held
// as ambient state, and is safe for concurrent use. It has no durability:
// a process restart loses all in-progress sessions.
package session

import (
	"log/slog"
	"sync"

	"github.com/demosglok/symptomsbot/internal/catalog"
	"github.com/demosglok/symptomsbot/internal/models"
)

// Tracker maps user identifiers to in-progress survey sessions.
type Tracker struct {
	catalog  *catalog.Catalog
	mu       sync.RWMutex
	sessions map[string]*models.SurveySession
}

// NewTracker creates a Tracker over the given question catalog.
func NewTracker(cat *catalog.Catalog) *Tracker {
	slog.Debug("session.NewTracker: creating tracker", "catalog_len", cat.Len())
	return &Tracker{
		catalog:  cat,
		sessions: make(map[string]*models.SurveySession),
	}
}

// StartSession creates a fresh session for the user at step 0 with no
// answers, overwriting any prior session. Overwrite-on-start silently
// discards stale sessions left behind by a crash or a re-invite.
func (t *Tracker) StartSession(userID string) *models.SurveySession {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, exists := t.sessions[userID]; exists {
		slog.Info("Tracker.StartSession: discarding stale session", "userID", userID, "stale_step", old.Step)
	}

	sess := &models.SurveySession{
		UserID:  userID,
		Step:    0,
		Answers: make(map[string]string),
	}
	t.sessions[userID] = sess
	slog.Debug("Tracker.StartSession: session started", "userID", userID)
	return sess
}

// RecordAnswer appends the answer for the current step and advances the
// session. A missing session or an out-of-range step is a defensive no-op
// and returns nil; duplicate or late events must not corrupt state.
func (t *Tracker) RecordAnswer(userID, value string) *models.SurveySession {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, exists := t.sessions[userID]
	if !exists {
		slog.Debug("Tracker.RecordAnswer: no active session, ignoring", "userID", userID)
		return nil
	}

	q := t.catalog.QuestionAt(sess.Step)
	if q == nil {
		slog.Debug("Tracker.RecordAnswer: step out of range, ignoring", "userID", userID, "step", sess.Step)
		return sess
	}

	sess.Answers[q.FieldName] = value
	sess.Order = append(sess.Order, q.FieldName)
	sess.Step++
	slog.Debug("Tracker.RecordAnswer: answer recorded", "userID", userID, "field", q.FieldName, "step", sess.Step)
	return sess
}

// IsComplete reports whether the user's session has answered every catalog
// question. A missing session also counts as complete: there is nothing
// left to continue.
func (t *Tracker) IsComplete(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sess, exists := t.sessions[userID]
	if !exists {
		return true
	}
	return sess.Step >= t.catalog.Len()
}

// CurrentQuestion returns the question the user should answer next, or nil
// if the session is absent or already complete.
func (t *Tracker) CurrentQuestion(userID string) *models.Question {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sess, exists := t.sessions[userID]
	if !exists {
		return nil
	}
	return t.catalog.QuestionAt(sess.Step)
}

// FinalizeAndClear returns the final answer snapshot and removes the
// session from the tracker. It is the only path by which a session is
// destroyed. Calling it before completion is an error.
func (t *Tracker) FinalizeAndClear(userID string) (map[string]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, exists := t.sessions[userID]
	if !exists {
		return nil, models.ErrNoActiveSession
	}
	if sess.Step < t.catalog.Len() {
		slog.Error("Tracker.FinalizeAndClear: session incomplete", "userID", userID, "step", sess.Step, "catalog_len", t.catalog.Len())
		return nil, models.ErrSessionIncomplete
	}

	snapshot := make(map[string]string, len(sess.Answers))
	for k, v := range sess.Answers {
		snapshot[k] = v
	}
	delete(t.sessions, userID)
	slog.Info("Tracker.FinalizeAndClear: session finalized", "userID", userID, "answers", len(snapshot))
	return snapshot, nil
}

// HasSession reports whether a survey is currently in progress for the user.
func (t *Tracker) HasSession(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.sessions[userID]
	return exists
}

// ActiveCount returns the number of in-progress sessions.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
