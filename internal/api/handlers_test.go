package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/demosglok/symptomsbot/internal/bot"
	"github.com/demosglok/symptomsbot/internal/catalog"
	"github.com/demosglok/symptomsbot/internal/messaging"
	"github.com/demosglok/symptomsbot/internal/messenger"
	"github.com/demosglok/symptomsbot/internal/models"
	"github.com/demosglok/symptomsbot/internal/session"
	"github.com/demosglok/symptomsbot/internal/store"
)

func newTestServer(opts ...Option) (*Server, *messenger.MockSender) {
	cat := catalog.New([]models.Question{
		{FieldName: "fever", Text: "Do you have a fever?", Kind: models.AnswerKindTriState},
	})
	tracker := session.NewTracker(cat)
	outbox := messenger.NewMockSender()
	st := store.NewInMemoryStore()
	dispatcher := bot.NewDispatcher(tracker, st, cat, messaging.NewMessengerService(outbox))
	return NewServer(dispatcher, tracker, st, opts...), outbox
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

const messageBody = `{
	"object": "page",
	"entry": [{
		"id": "page1",
		"time": 1,
		"messaging": [{
			"sender": {"id": "u1"},
			"recipient": {"id": "page1"},
			"timestamp": 1,
			"message": {"mid": "m1", "text": "random text"}
		}]
	}]
}`

func TestWebhookVerificationHandshake(t *testing.T) {
	srv, _ := newTestServer(WithVerifyToken("secret-token"))
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "12345" {
		t.Errorf("expected challenge echoed, got %q", w.Body.String())
	}
}

func TestWebhookVerificationRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(WithVerifyToken("secret-token"))

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong token, got %d", w.Code)
	}
}

func TestWebhookDispatchesEvents(t *testing.T) {
	srv, outbox := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(messageBody))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	// "random text" is no command, so the dispatcher echoes it back.
	if len(outbox.Sent) != 1 || outbox.Sent[0].Text != "random text" {
		t.Errorf("expected dispatched echo reply, got %+v", outbox.Sent)
	}
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	srv, outbox := newTestServer(WithAppSecret("app-secret"))
	body := []byte(messageBody)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature", signBody("app-secret", body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid signature, got %d", w.Code)
	}
	if len(outbox.Sent) != 1 {
		t.Errorf("expected event dispatched, got %+v", outbox.Sent)
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	srv, outbox := newTestServer(WithAppSecret("app-secret"))
	body := []byte(messageBody)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature", signBody("some-other-secret", body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for bad signature, got %d", w.Code)
	}
	if len(outbox.Sent) != 0 {
		t.Errorf("rejected request must dispatch nothing, got %+v", outbox.Sent)
	}
}

func TestWebhookAcceptsMissingSignature(t *testing.T) {
	srv, outbox := newTestServer(WithAppSecret("app-secret"))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(messageBody))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("missing signature is logged but accepted, got %d", w.Code)
	}
	if len(outbox.Sent) != 1 {
		t.Errorf("expected event dispatched, got %+v", outbox.Sent)
	}
}

func TestWebhookIgnoresNonPageObjects(t *testing.T) {
	srv, outbox := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object": "user", "entry": []}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for non-page object, got %d", w.Code)
	}
	if len(outbox.Sent) != 0 {
		t.Errorf("non-page object must dispatch nothing, got %+v", outbox.Sent)
	}
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", w.Code)
	}
}

func TestWebhookRejectsUnsupportedMethod(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodDelete, "/webhook", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	srv.tracker.StartSession("u1")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"active_sessions":1`) {
		t.Errorf("unexpected stats body: %s", w.Body.String())
	}
}

func TestAnswersEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	srv.store.SaveAnswers(context.Background(), models.AnswerRecord{
		UserID:    "u1",
		Fields:    map[string]string{"fever": "no", "city": "Oslo"},
		Timestamp: 42,
	})

	req := httptest.NewRequest(http.MethodGet, "/answers?user_id=u1", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"city":"Oslo"`) {
		t.Errorf("unexpected answers body: %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/answers?user_id=nobody", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/answers", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", w.Code)
	}
}

func TestAuthorizePageIncludesRedirect(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/authorize?account_linking_token=tok&redirect_uri=https://example.com/cb?x=1", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "authorization_code=") {
		t.Errorf("expected authorization code in page, got %s", w.Body.String())
	}
}
