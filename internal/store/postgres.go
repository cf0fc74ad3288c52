// Package store provides storage backends for symptomsbot.
//
// This file implements a PostgreSQL-backed store for profiles and answers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/demosglok/symptomsbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, last_question_time) VALUES ($1, 0)
		 ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		slog.Error("PostgresStore EnsureProfile insert failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to ensure profile for %s: %w", userID, err)
	}
	return s.GetProfile(ctx, userID)
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	var agree sql.NullBool
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, agree, last_question_time FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &agree, &p.LastQuestionTime)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProfile not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query profile for %s: %w", userID, err)
	}
	if agree.Valid {
		p.Agree = &agree.Bool
	}
	return &p, nil
}

func (s *PostgresStore) SetAgree(ctx context.Context, userID string, agree bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE profiles SET agree = $1 WHERE user_id = $2`, agree, userID)
	if err != nil {
		slog.Error("PostgresStore SetAgree failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update agree for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore SetAgree succeeded", "userID", userID, "agree", agree)
	return nil
}

func (s *PostgresStore) TouchLastQuestionTime(ctx context.Context, userID string, ts int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE profiles SET last_question_time = $1 WHERE user_id = $2`, ts, userID)
	if err != nil {
		slog.Error("PostgresStore TouchLastQuestionTime failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update last_question_time for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore TouchLastQuestionTime succeeded", "userID", userID, "ts", ts)
	return nil
}

func (s *PostgresStore) ListProfilesDueBefore(ctx context.Context, cutoff int64) ([]models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, agree, last_question_time FROM profiles WHERE last_question_time < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore ListProfilesDueBefore query failed", "error", err)
		return nil, fmt.Errorf("failed to query due profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		var p models.UserProfile
		var agree sql.NullBool
		if err := rows.Scan(&p.UserID, &agree, &p.LastQuestionTime); err != nil {
			slog.Error("PostgresStore ListProfilesDueBefore scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		if agree.Valid {
			p.Agree = &agree.Bool
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListProfilesDueBefore rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate profile rows: %w", err)
	}
	slog.Debug("PostgresStore ListProfilesDueBefore succeeded", "count", len(profiles))
	return profiles, nil
}

func (s *PostgresStore) SaveAnswers(ctx context.Context, record models.AnswerRecord) error {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		slog.Error("PostgresStore SaveAnswers JSON marshal failed", "error", err, "userID", record.UserID)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answers (user_id, fields, timestamp) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET fields = EXCLUDED.fields, timestamp = EXCLUDED.timestamp`,
		record.UserID, string(fieldsJSON), record.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveAnswers failed", "error", err, "userID", record.UserID)
		return fmt.Errorf("failed to save answers for %s: %w", record.UserID, err)
	}
	slog.Debug("PostgresStore SaveAnswers succeeded", "userID", record.UserID, "fields", len(record.Fields))
	return nil
}

func (s *PostgresStore) GetAnswers(ctx context.Context, userID string) (*models.AnswerRecord, error) {
	var r models.AnswerRecord
	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, fields, timestamp FROM answers WHERE user_id = $1`, userID).
		Scan(&r.UserID, &fieldsJSON, &r.Timestamp)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetAnswers not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetAnswers failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query answers for %s: %w", userID, err)
	}
	r.Fields = make(map[string]string)
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
			slog.Error("PostgresStore GetAnswers JSON unmarshal failed", "error", err, "userID", userID)
			r.Fields = make(map[string]string)
		}
	}
	return &r, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
