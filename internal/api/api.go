// Package api provides the HTTP surface of symptomsbot.
//
// It exposes the Messenger webhook endpoints (verification handshake and
// event delivery with signature checking), the account-linking redirect
// page, a health endpoint, and static file serving for the public site.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/demosglok/symptomsbot/internal/bot"
	"github.com/demosglok/symptomsbot/internal/session"
	"github.com/demosglok/symptomsbot/internal/store"
)

// Constants for API server configuration
const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":9003"
	// DefaultReadHeaderTimeout bounds request header reads.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	VerifyToken string
	AppSecret   string
	PublicDir   string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithVerifyToken sets the webhook verification token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) {
		o.VerifyToken = token
	}
}

// WithAppSecret sets the app secret used for webhook signature verification.
func WithAppSecret(secret string) Option {
	return func(o *Opts) {
		o.AppSecret = secret
	}
}

// WithPublicDir sets the directory served at the site root.
func WithPublicDir(dir string) Option {
	return func(o *Opts) {
		o.PublicDir = dir
	}
}

// Server is the symptomsbot HTTP server.
type Server struct {
	addr        string
	verifyToken string
	appSecret   string
	publicDir   string
	dispatcher  *bot.Dispatcher
	tracker     *session.Tracker
	store       store.Store
	httpServer  *http.Server
}

// NewServer creates a Server wired to the given dispatcher, session
// tracker, and store, applying any provided options.
func NewServer(dispatcher *bot.Dispatcher, tracker *session.Tracker, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("api.NewServer configured", "addr", cfg.Addr, "verify_token_set", cfg.VerifyToken != "", "app_secret_set", cfg.AppSecret != "", "public_dir", cfg.PublicDir)

	return &Server{
		addr:        cfg.Addr,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		publicDir:   cfg.PublicDir,
		dispatcher:  dispatcher,
		tracker:     tracker,
		store:       st,
	}
}

// Handler builds the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/authorize", s.authorizeHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/answers", s.answersHandler)
	if s.publicDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.publicDir)))
	}
	return mux
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	slog.Info("API server listening", "addr", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
