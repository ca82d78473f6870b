// Package mongo implements the repository stores on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quillpost/quillpost-go/internal/repository"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	sessionsCollection = "sessions"
)

// Store wraps a MongoDB database holding the users, posts and sessions collections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an existing database handle. The caller owns the client.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Connect dials uri, verifies the connection and makes sure the indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique and lookup indexes. It is idempotent.
// Sessions carry a TTL index so the server expires them even if the janitor never runs.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_key"),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_username_key").
				SetPartialFilterExpression(bson.M{"username": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	_, err = s.db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "author", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating post indexes: %w", err)
	}

	_, err = s.db.Collection(sessionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("creating session indexes: %w", err)
	}
	return nil
}

// Stores returns the repository views over this Store.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Users:    &UserStore{db: s.db},
		Posts:    &PostStore{coll: s.db.Collection(postsCollection)},
		Sessions: &SessionStore{coll: s.db.Collection(sessionsCollection)},
		Close: func(ctx context.Context) error {
			if s.client == nil {
				return nil
			}
			return s.client.Disconnect(ctx)
		},
	}
}

func duplicateUserError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	if strings.Contains(err.Error(), "username") {
		return repository.ErrDuplicateUsername
	}
	return repository.ErrDuplicateEmail
}

func notFound(err, sentinel error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sentinel
	}
	return err
}

// idValue matches an id as this service stores it (a string) and, for
// 24-hex ids, as ObjectId keys written by the earlier Node app. The driver
// decodes those ObjectIds into their hex form.
func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$in": bson.A{id, oid}}
	}
	return id
}
