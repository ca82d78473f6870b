package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// SessionStore persists sessions keyed by token digest.
type SessionStore struct {
	coll *mongo.Collection
}

var _ repository.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Create(ctx context.Context, session *model.Session) error {
	_, err := s.coll.InsertOne(ctx, session)
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&sess); err != nil {
		return nil, notFound(err, repository.ErrSessionNotFound)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
