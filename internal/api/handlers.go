package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/demosglok/symptomsbot/internal/models"
)

// webhookHandler serves both halves of the Messenger webhook contract:
// the GET verification handshake and POSTed event batches.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhookHandler(w, r)
	case http.MethodPost:
		s.receiveWebhookHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhookHandler answers the platform's subscription handshake: echo
// hub.challenge when the mode and token match, 403 otherwise.
func (s *Server) verifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.verifyToken && s.verifyToken != "" {
		slog.Info("Webhook verification succeeded")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	slog.Warn("Webhook verification failed, token mismatch")
	w.WriteHeader(http.StatusForbidden)
}

// receiveWebhookHandler verifies the request signature, decodes the event
// envelope, and fans the batched messaging events out to the dispatcher.
// Processed bodies always get a 200 so the platform does not re-deliver.
func (s *Server) receiveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	requestID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Webhook body read failed", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}

	if !s.verifySignature(r.Header.Get("X-Hub-Signature"), body, requestID) {
		writeJSONResponse(w, http.StatusForbidden, models.Error("Invalid request signature"))
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("Webhook payload decode failed", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if payload.Object != "page" {
		slog.Debug("Webhook ignoring non-page object", "object", payload.Object, "request_id", requestID)
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, entry := range payload.Entry {
		slog.Debug("Webhook processing entry", "page_id", entry.ID, "events", len(entry.Messaging), "request_id", requestID)
		for _, ev := range entry.Messaging {
			s.dispatcher.HandleEvent(r.Context(), ev)
		}
	}

	// The platform expects a 200 within its delivery window; anything else
	// triggers re-delivery of the whole batch.
	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the X-Hub-Signature header (HMAC-SHA1 over the
// raw body with the app secret). A missing header is logged but accepted;
// a present-but-wrong signature is rejected.
func (s *Server) verifySignature(header string, body []byte, requestID string) bool {
	if s.appSecret == "" {
		slog.Warn("Webhook signature check skipped, app secret not configured", "request_id", requestID)
		return true
	}
	if header == "" {
		slog.Warn("Webhook request missing X-Hub-Signature header", "request_id", requestID)
		return true
	}

	method, sigHex, found := strings.Cut(header, "=")
	if !found || method != "sha1" {
		slog.Warn("Webhook signature header malformed", "header_method", method, "request_id", requestID)
		return false
	}

	mac := hmac.New(sha1.New, []byte(s.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sigHex)) {
		slog.Error("Webhook signature mismatch", "request_id", requestID)
		return false
	}
	return true
}

// authorizeHandler serves the account-linking redirect page. The
// authorization code would normally be generated per user; the account
// linking flow itself is outside the survey core.
func (s *Server) authorizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	accountLinkingToken := r.URL.Query().Get("account_linking_token")
	redirectURI := r.URL.Query().Get("redirect_uri")
	authCode := uuid.NewString()
	redirectURISuccess := redirectURI + "&authorization_code=" + authCode

	slog.Info("Authorize page requested", "token_set", accountLinkingToken != "")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Account Linking</title></head>
<body>
<h1>Link your account</h1>
<a href=%q>Confirm</a>
</body>
</html>`, html.EscapeString(redirectURISuccess))
}

// healthHandler provides a health check endpoint for monitoring.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": s.tracker.ActiveCount(),
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// answersHandler returns the latest answer record for a user
// (GET /answers?user_id=...). Operator-facing.
func (s *Server) answersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id query parameter is required"))
		return
	}

	record, err := s.store.GetAnswers(r.Context(), userID)
	if err != nil {
		slog.Error("Server.answersHandler: answers lookup failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load answers"))
		return
	}
	if record == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No answers recorded for user"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(record))
}

// statsHandler returns operator-facing counters (GET /stats).
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"active_sessions": s.tracker.ActiveCount(),
	}
	slog.Debug("stats computed", "active_sessions", s.tracker.ActiveCount())
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}
