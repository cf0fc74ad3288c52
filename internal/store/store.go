// Package store provides storage backends for symptomsbot user profiles
// and answer records.
//
// Backends: in-memory (tests and default), SQLite, PostgreSQL, and MongoDB.
// All reads return (nil, nil) for absent records so callers can distinguish
// "not found" from store failure.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/demosglok/symptomsbot/internal/models"
)

// Store is the persistence contract for user profiles and answer records.
type Store interface {
	// EnsureProfile creates a profile with last_question_time = 0 if none
	// exists, and returns the current profile either way.
	EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error)

	// GetProfile returns the profile for the user, or (nil, nil) if absent.
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)

	// SetAgree updates the consent flag of an existing profile. Updating a
	// missing profile is a no-op, matching lazy profile creation.
	SetAgree(ctx context.Context, userID string, agree bool) error

	// TouchLastQuestionTime stamps the last survey time of an existing
	// profile. Missing profiles are a no-op.
	TouchLastQuestionTime(ctx context.Context, userID string, ts int64) error

	// ListProfilesDueBefore returns every profile whose last_question_time
	// is strictly below the cutoff (epoch seconds).
	ListProfilesDueBefore(ctx context.Context, cutoff int64) ([]models.UserProfile, error)

	// SaveAnswers overwrites the user's answer record.
	SaveAnswers(ctx context.Context, record models.AnswerRecord) error

	// GetAnswers returns the latest answer record, or (nil, nil) if absent.
	GetAnswers(ctx context.Context, userID string) (*models.AnswerRecord, error)

	// Close releases backend resources.
	Close() error
}

// InMemoryStore is a simple mutex-guarded store used in tests and as the
// fallback when no DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
	answers  map[string]models.AnswerRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.UserProfile),
		answers:  make(map[string]models.AnswerRecord),
	}
}

func (s *InMemoryStore) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.profiles[userID]
	if !exists {
		p = models.UserProfile{UserID: userID, LastQuestionTime: 0}
		s.profiles[userID] = p
		slog.Debug("InMemoryStore EnsureProfile created", "userID", userID)
	}
	cp := p
	return &cp, nil
}

func (s *InMemoryStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exists := s.profiles[userID]
	if !exists {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (s *InMemoryStore) SetAgree(ctx context.Context, userID string, agree bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.profiles[userID]
	if !exists {
		slog.Debug("InMemoryStore SetAgree: profile absent, ignoring", "userID", userID)
		return nil
	}
	p.Agree = &agree
	s.profiles[userID] = p
	return nil
}

func (s *InMemoryStore) TouchLastQuestionTime(ctx context.Context, userID string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.profiles[userID]
	if !exists {
		slog.Debug("InMemoryStore TouchLastQuestionTime: profile absent, ignoring", "userID", userID)
		return nil
	}
	p.LastQuestionTime = ts
	s.profiles[userID] = p
	return nil
}

func (s *InMemoryStore) ListProfilesDueBefore(ctx context.Context, cutoff int64) ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []models.UserProfile
	for _, p := range s.profiles {
		if p.LastQuestionTime < cutoff {
			due = append(due, p)
		}
	}
	return due, nil
}

func (s *InMemoryStore) SaveAnswers(ctx context.Context, record models.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[record.UserID] = record
	return nil
}

func (s *InMemoryStore) GetAnswers(ctx context.Context, userID string) (*models.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.answers[userID]
	if !exists {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
