package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/demosglok/symptomsbot/internal/api"
	"github.com/demosglok/symptomsbot/internal/bot"
	"github.com/demosglok/symptomsbot/internal/catalog"
	"github.com/demosglok/symptomsbot/internal/messaging"
	"github.com/demosglok/symptomsbot/internal/messenger"
	"github.com/demosglok/symptomsbot/internal/session"
	"github.com/demosglok/symptomsbot/internal/store"
	"github.com/demosglok/symptomsbot/internal/sweep"
	"github.com/demosglok/symptomsbot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for symptomsbot state data
	DefaultStateDir = "/var/lib/symptomsbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "symptomsbot.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	slog.Info("Bootstrapping symptomsbot with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "channel", *flags.channel)
	if err := run(flags); err != nil {
		slog.Error("symptomsbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("symptomsbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	PageAccessToken string
	AppSecret       string
	ValidationToken string
	DatabaseURL     string
	StateDir        string
	APIAddr         string
	SweepCron       string
	QuestionsFile   string
	PublicDir       string
	Channel         string
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	pageAccessToken *string
	appSecret       *string
	validationToken *string
	apiAddr         *string
	sweepCron       *string
	questionsFile   *string
	publicDir       *string
	channel         *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		PageAccessToken: os.Getenv("MESSENGER_PAGE_ACCESS_TOKEN"),
		AppSecret:       os.Getenv("MESSENGER_APP_SECRET"),
		ValidationToken: os.Getenv("MESSENGER_VALIDATION_TOKEN"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("SYMPTOMSBOT_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
		SweepCron:       os.Getenv("SWEEP_SCHEDULE"),
		QuestionsFile:   os.Getenv("QUESTIONS_FILE"),
		PublicDir:       os.Getenv("PUBLIC_DIR"),
		Channel:         os.Getenv("MESSAGE_CHANNEL"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SYMPTOMSBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("SYMPTOMSBOT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	if config.Channel == "" {
		config.Channel = "messenger"
	}

	slog.Debug("environment variables loaded",
		"MESSENGER_PAGE_ACCESS_TOKEN_SET", config.PageAccessToken != "",
		"MESSENGER_APP_SECRET_SET", config.AppSecret != "",
		"MESSENGER_VALIDATION_TOKEN_SET", config.ValidationToken != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SYMPTOMSBOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"SWEEP_SCHEDULE", config.SweepCron,
		"QUESTIONS_FILE", config.QuestionsFile,
		"MESSAGE_CHANNEL", config.Channel)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for symptomsbot data (overrides $SYMPTOMSBOT_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN for the profile and answer store (overrides $DATABASE_URL)"),
		pageAccessToken: flag.String("page-access-token", config.PageAccessToken, "Messenger page access token (overrides $MESSENGER_PAGE_ACCESS_TOKEN)"),
		appSecret:       flag.String("app-secret", config.AppSecret, "Messenger app secret for webhook signature checks (overrides $MESSENGER_APP_SECRET)"),
		validationToken: flag.String("validation-token", config.ValidationToken, "Messenger webhook verify token (overrides $MESSENGER_VALIDATION_TOKEN)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sweepCron:       flag.String("sweep-cron", config.SweepCron, "cron schedule for the daily re-engagement sweep (overrides $SWEEP_SCHEDULE)"),
		questionsFile:   flag.String("questions-file", config.QuestionsFile, "path to a JSON question catalog (overrides $QUESTIONS_FILE)"),
		publicDir:       flag.String("public-dir", config.PublicDir, "directory of static files to serve at / (overrides $PUBLIC_DIR)"),
		channel:         flag.String("channel", config.Channel, "outbound message channel, messenger or twilio (overrides $MESSAGE_CHANNEL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"pageAccessToken_set", *flags.pageAccessToken != "",
		"appSecret_set", *flags.appSecret != "",
		"validationToken_set", *flags.validationToken != "",
		"apiAddr", *flags.apiAddr,
		"sweepCron", *flags.sweepCron,
		"questionsFile", *flags.questionsFile,
		"channel", *flags.channel)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore selects a store backend from the DSN shape.
func buildStore(flags Flags) (store.Store, error) {
	switch store.DetectDSNType(*flags.dbDSN) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	case "mongo":
		slog.Debug("Detected MongoDB URI, configuring Mongo store", "dsn_set", true)
		return store.NewMongoStore(store.WithMongoURI(*flags.dbDSN))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
		return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	}
}

// buildMessagingService selects the outbound channel implementation.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.channel == "twilio" {
		client, err := messaging.NewTwilioClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	}

	var msgOpts []messenger.Option
	if *flags.pageAccessToken != "" {
		msgOpts = append(msgOpts, messenger.WithPageAccessToken(*flags.pageAccessToken))
	}
	client, err := messenger.NewClient(msgOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewMessengerService(client), nil
}

// buildCatalog loads the question catalog from disk or falls back to the
// built-in list.
func buildCatalog(flags Flags) (*catalog.Catalog, error) {
	if *flags.questionsFile == "" {
		slog.Debug("No questions file configured, using built-in catalog")
		return catalog.Default(), nil
	}
	return catalog.Load(*flags.questionsFile)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.validationToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.validationToken))
	}
	if *flags.appSecret != "" {
		apiOpts = append(apiOpts, api.WithAppSecret(*flags.appSecret))
	}
	if *flags.publicDir != "" {
		apiOpts = append(apiOpts, api.WithPublicDir(*flags.publicDir))
	}
	return apiOpts
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	cat, err := buildCatalog(flags)
	if err != nil {
		return err
	}
	slog.Debug("Question catalog loaded", "questions", cat.Len())

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	defer svc.Stop()

	tracker := session.NewTracker(cat)
	dispatcher := bot.NewDispatcher(tracker, st, cat, svc)

	sw := sweep.NewSweep(st, dispatcher, *flags.sweepCron)
	if err := sw.Start(); err != nil {
		return err
	}
	defer sw.Stop()

	if util.ParseBoolEnv("SWEEP_RUN_ON_START", false) {
		slog.Info("SWEEP_RUN_ON_START set, running initial sweep pass")
		go func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), sweep.DefaultRunTimeout)
			defer cancel()
			sw.RunOnce(sweepCtx)
		}()
	}

	server := api.NewServer(dispatcher, tracker, st, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
			return err
		}
		<-errCh
		return nil
	}
}
