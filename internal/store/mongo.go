// Package store provides storage backends for symptomsbot.
//
// This file implements a MongoDB-backed store. The document layout mirrors
// the two collections the bot has always used: "people" for profiles keyed
// by user_id and "answers" for the latest answer record per user.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/demosglok/symptomsbot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo configuration constants
const (
	// DefaultMongoDatabase is the database name used when the URI does not select one.
	DefaultMongoDatabase = "symptomsbot"
	// DefaultMongoConnectTimeout bounds the initial connect and ping.
	DefaultMongoConnectTimeout = 10 * time.Second
	// peopleCollection holds one profile document per user.
	peopleCollection = "people"
	// answersCollection holds the latest answer record per user.
	answersCollection = "answers"
)

type MongoStore struct {
	client   *mongo.Client
	people   *mongo.Collection
	answers  *mongo.Collection
	database string
}

// NewMongoStore creates a new MongoDB store based on provided options.
// The DSN must be a mongodb:// or mongodb+srv:// URI.
func NewMongoStore(opts ...Option) (*MongoStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewMongoStore invoked", "URI_set", cfg.DSN != "")

	uri := cfg.DSN
	if uri == "" {
		slog.Error("MongoStore URI not set")
		return nil, fmt.Errorf("database URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultMongoConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetMaxConnIdleTime(5 * time.Minute)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		slog.Error("MongoDB ping failed", "error", err)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(DefaultMongoDatabase)
	s := &MongoStore{
		client:   client,
		people:   db.Collection(peopleCollection),
		answers:  db.Collection(answersCollection),
		database: DefaultMongoDatabase,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		slog.Error("MongoStore failed to ensure indexes", "error", err)
		return nil, err
	}

	slog.Info("Connected to MongoDB", "database", s.database)
	return s, nil
}

// ensureIndexes creates the unique user_id indexes and the sweep index on
// last_question_time.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := s.people.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "last_question_time", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create people indexes: %w", err)
	}
	_, err = s.answers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create answers index: %w", err)
	}
	return nil
}

func (s *MongoStore) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	filter := bson.M{"user_id": userID}
	update := bson.M{"$setOnInsert": bson.M{"user_id": userID, "last_question_time": int64(0)}}
	_, err := s.people.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("MongoStore EnsureProfile upsert failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to ensure profile for %s: %w", userID, err)
	}
	return s.GetProfile(ctx, userID)
}

func (s *MongoStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.people.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		slog.Debug("MongoStore GetProfile not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("MongoStore GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query profile for %s: %w", userID, err)
	}
	return &p, nil
}

func (s *MongoStore) SetAgree(ctx context.Context, userID string, agree bool) error {
	res, err := s.people.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{"agree": agree}})
	if err != nil {
		slog.Error("MongoStore SetAgree failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update agree for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		slog.Debug("MongoStore SetAgree: profile absent, ignoring", "userID", userID)
	}
	return nil
}

func (s *MongoStore) TouchLastQuestionTime(ctx context.Context, userID string, ts int64) error {
	res, err := s.people.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{"last_question_time": ts}})
	if err != nil {
		slog.Error("MongoStore TouchLastQuestionTime failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update last_question_time for %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		slog.Debug("MongoStore TouchLastQuestionTime: profile absent, ignoring", "userID", userID)
	}
	return nil
}

func (s *MongoStore) ListProfilesDueBefore(ctx context.Context, cutoff int64) ([]models.UserProfile, error) {
	cursor, err := s.people.Find(ctx, bson.M{"last_question_time": bson.M{"$lt": cutoff}})
	if err != nil {
		slog.Error("MongoStore ListProfilesDueBefore query failed", "error", err)
		return nil, fmt.Errorf("failed to query due profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.UserProfile
	if err := cursor.All(ctx, &profiles); err != nil {
		slog.Error("MongoStore ListProfilesDueBefore decode failed", "error", err)
		return nil, fmt.Errorf("failed to decode profile documents: %w", err)
	}
	slog.Debug("MongoStore ListProfilesDueBefore succeeded", "count", len(profiles))
	return profiles, nil
}

func (s *MongoStore) SaveAnswers(ctx context.Context, record models.AnswerRecord) error {
	filter := bson.M{"user_id": record.UserID}
	update := bson.M{"$set": bson.M{
		"user_id":   record.UserID,
		"fields":    record.Fields,
		"timestamp": record.Timestamp,
	}}
	_, err := s.answers.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("MongoStore SaveAnswers failed", "error", err, "userID", record.UserID)
		return fmt.Errorf("failed to save answers for %s: %w", record.UserID, err)
	}
	slog.Debug("MongoStore SaveAnswers succeeded", "userID", record.UserID, "fields", len(record.Fields))
	return nil
}

func (s *MongoStore) GetAnswers(ctx context.Context, userID string) (*models.AnswerRecord, error) {
	var r models.AnswerRecord
	err := s.answers.FindOne(ctx, bson.M{"user_id": userID}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		slog.Debug("MongoStore GetAnswers not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("MongoStore GetAnswers failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query answers for %s: %w", userID, err)
	}
	return &r, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	slog.Debug("Closing MongoDB connection")
	ctx, cancel := context.WithTimeout(context.Background(), DefaultMongoConnectTimeout)
	defer cancel()
	err := s.client.Disconnect(ctx)
	if err != nil {
		slog.Error("Failed to close MongoDB connection", "error", err)
	}
	return err
}
