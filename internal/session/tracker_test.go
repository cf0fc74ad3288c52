package session

import (
	"errors"
	"testing"

	"github.com/demosglok/symptomsbot/internal/catalog"
	"github.com/demosglok/symptomsbot/internal/models"
)

func twoQuestionTracker() *Tracker {
	return NewTracker(catalog.New([]models.Question{
		{FieldName: "fever", Text: "Do you have a fever?", Kind: models.AnswerKindTriState},
		{FieldName: "city", Text: "What city do you live in?", Kind: models.AnswerKindFreeText},
	}))
}

func TestNoSessionSemantics(t *testing.T) {
	tr := twoQuestionTracker()

	if !tr.IsComplete("u1") {
		t.Error("expected missing session to count as complete")
	}
	if q := tr.CurrentQuestion("u1"); q != nil {
		t.Errorf("expected nil current question without a session, got %+v", q)
	}
	if sess := tr.RecordAnswer("u1", models.AnswerYes); sess != nil {
		t.Errorf("expected RecordAnswer without a session to be a no-op, got %+v", sess)
	}
	if _, err := tr.FinalizeAndClear("u1"); !errors.Is(err, models.ErrNoActiveSession) {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
	if tr.HasSession("u1") {
		t.Error("expected no session for u1")
	}
}

func TestStartSessionResetsState(t *testing.T) {
	tr := twoQuestionTracker()

	tr.StartSession("u1")
	tr.RecordAnswer("u1", models.AnswerYes)

	sess := tr.StartSession("u1")
	if sess.Step != 0 {
		t.Errorf("expected restarted session at step 0, got %d", sess.Step)
	}
	if len(sess.Answers) != 0 {
		t.Errorf("expected restarted session with no answers, got %v", sess.Answers)
	}
	if tr.ActiveCount() != 1 {
		t.Errorf("expected one active session, got %d", tr.ActiveCount())
	}
}

func TestSurveyProgression(t *testing.T) {
	tr := twoQuestionTracker()
	tr.StartSession("u1")

	if tr.IsComplete("u1") {
		t.Error("fresh session must not be complete")
	}
	q := tr.CurrentQuestion("u1")
	if q == nil || q.FieldName != "fever" {
		t.Fatalf("expected fever as first question, got %+v", q)
	}

	tr.RecordAnswer("u1", models.AnswerNo)
	q = tr.CurrentQuestion("u1")
	if q == nil || q.FieldName != "city" {
		t.Fatalf("expected city as second question, got %+v", q)
	}
	if tr.IsComplete("u1") {
		t.Error("session must not be complete with one answer outstanding")
	}

	tr.RecordAnswer("u1", "Lisbon")
	if !tr.IsComplete("u1") {
		t.Error("expected session complete after answering every question")
	}
	if q := tr.CurrentQuestion("u1"); q != nil {
		t.Errorf("expected nil current question on a complete session, got %+v", q)
	}
}

func TestAnswersFollowCatalogOrder(t *testing.T) {
	tr := twoQuestionTracker()
	tr.StartSession("u1")

	sess := tr.RecordAnswer("u1", models.AnswerYes)
	if len(sess.Order) != 1 || sess.Order[0] != "fever" {
		t.Errorf("unexpected answer order after one answer: %v", sess.Order)
	}
	sess = tr.RecordAnswer("u1", "Kyiv")
	if len(sess.Order) != 2 || sess.Order[1] != "city" {
		t.Errorf("unexpected answer order after two answers: %v", sess.Order)
	}
	if sess.Answers["fever"] != models.AnswerYes || sess.Answers["city"] != "Kyiv" {
		t.Errorf("unexpected answers map: %v", sess.Answers)
	}
}

func TestRecordAnswerAfterCompleteIsNoOp(t *testing.T) {
	tr := twoQuestionTracker()
	tr.StartSession("u1")
	tr.RecordAnswer("u1", models.AnswerYes)
	tr.RecordAnswer("u1", "Kyiv")

	sess := tr.RecordAnswer("u1", "extra")
	if sess == nil {
		t.Fatal("expected existing session back from late answer")
	}
	if sess.Step != 2 || len(sess.Answers) != 2 {
		t.Errorf("late answer corrupted session: step=%d answers=%v", sess.Step, sess.Answers)
	}
}

func TestFinalizeAndClear(t *testing.T) {
	tr := twoQuestionTracker()
	tr.StartSession("u1")
	tr.RecordAnswer("u1", models.AnswerNotSure)

	if _, err := tr.FinalizeAndClear("u1"); !errors.Is(err, models.ErrSessionIncomplete) {
		t.Errorf("expected ErrSessionIncomplete for a partial session, got %v", err)
	}

	tr.RecordAnswer("u1", "Berlin")
	answers, err := tr.FinalizeAndClear("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answers["fever"] != models.AnswerNotSure || answers["city"] != "Berlin" {
		t.Errorf("unexpected snapshot: %v", answers)
	}
	if tr.HasSession("u1") {
		t.Error("expected session removed after finalize")
	}
	if tr.ActiveCount() != 0 {
		t.Errorf("expected zero active sessions, got %d", tr.ActiveCount())
	}
}

func TestSessionsAreIndependentPerUser(t *testing.T) {
	tr := twoQuestionTracker()
	tr.StartSession("u1")
	tr.StartSession("u2")
	tr.RecordAnswer("u1", models.AnswerYes)

	if tr.CurrentQuestion("u2").FieldName != "fever" {
		t.Error("u2 session advanced by u1 answer")
	}
	if tr.ActiveCount() != 2 {
		t.Errorf("expected two active sessions, got %d", tr.ActiveCount())
	}
}
