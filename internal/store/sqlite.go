// Package store provides storage backends for symptomsbot.
//
// This file implements an SQLite-backed store for profiles and answers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/demosglok/symptomsbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, last_question_time) VALUES (?, 0)
		 ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		slog.Error("SQLiteStore EnsureProfile insert failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to ensure profile for %s: %w", userID, err)
	}
	return s.GetProfile(ctx, userID)
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	var agree sql.NullBool
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, agree, last_question_time FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &agree, &p.LastQuestionTime)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProfile not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query profile for %s: %w", userID, err)
	}
	if agree.Valid {
		p.Agree = &agree.Bool
	}
	return &p, nil
}

func (s *SQLiteStore) SetAgree(ctx context.Context, userID string, agree bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE profiles SET agree = ? WHERE user_id = ?`, agree, userID)
	if err != nil {
		slog.Error("SQLiteStore SetAgree failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update agree for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SetAgree succeeded", "userID", userID, "agree", agree)
	return nil
}

func (s *SQLiteStore) TouchLastQuestionTime(ctx context.Context, userID string, ts int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE profiles SET last_question_time = ? WHERE user_id = ?`, ts, userID)
	if err != nil {
		slog.Error("SQLiteStore TouchLastQuestionTime failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update last_question_time for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore TouchLastQuestionTime succeeded", "userID", userID, "ts", ts)
	return nil
}

func (s *SQLiteStore) ListProfilesDueBefore(ctx context.Context, cutoff int64) ([]models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, agree, last_question_time FROM profiles WHERE last_question_time < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore ListProfilesDueBefore query failed", "error", err)
		return nil, fmt.Errorf("failed to query due profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		var p models.UserProfile
		var agree sql.NullBool
		if err := rows.Scan(&p.UserID, &agree, &p.LastQuestionTime); err != nil {
			slog.Error("SQLiteStore ListProfilesDueBefore scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		if agree.Valid {
			p.Agree = &agree.Bool
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListProfilesDueBefore rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate profile rows: %w", err)
	}
	slog.Debug("SQLiteStore ListProfilesDueBefore succeeded", "count", len(profiles))
	return profiles, nil
}

func (s *SQLiteStore) SaveAnswers(ctx context.Context, record models.AnswerRecord) error {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		slog.Error("SQLiteStore SaveAnswers JSON marshal failed", "error", err, "userID", record.UserID)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO answers (user_id, fields, timestamp) VALUES (?, ?, ?)`,
		record.UserID, string(fieldsJSON), record.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore SaveAnswers failed", "error", err, "userID", record.UserID)
		return fmt.Errorf("failed to save answers for %s: %w", record.UserID, err)
	}
	slog.Debug("SQLiteStore SaveAnswers succeeded", "userID", record.UserID, "fields", len(record.Fields))
	return nil
}

func (s *SQLiteStore) GetAnswers(ctx context.Context, userID string) (*models.AnswerRecord, error) {
	var r models.AnswerRecord
	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, fields, timestamp FROM answers WHERE user_id = ?`, userID).
		Scan(&r.UserID, &fieldsJSON, &r.Timestamp)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetAnswers not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetAnswers failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query answers for %s: %w", userID, err)
	}
	r.Fields = make(map[string]string)
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
			slog.Error("SQLiteStore GetAnswers JSON unmarshal failed", "error", err, "userID", userID)
			// Continue with empty map rather than failing
			r.Fields = make(map[string]string)
		}
	}
	return &r, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
