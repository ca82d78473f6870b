package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// UserStore persists users. Deleting a user also removes their posts and sessions.
type UserStore struct {
	db *mongo.Database
}

var _ repository.UserStore = (*UserStore)(nil)

func (s *UserStore) users() *mongo.Collection { return s.db.Collection(usersCollection) }

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if _, err := s.users().InsertOne(ctx, user); err != nil {
		return duplicateUserError(err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"_id": idValue(id)})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, repository.ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	if err := s.users().FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, notFound(err, repository.ErrUserNotFound)
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.users().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id, hash string, updatedAt time.Time) error {
	res, err := s.users().UpdateOne(ctx, bson.M{"_id": idValue(id)}, bson.M{
		"$set":   bson.M{"hash": hash, "updatedAt": updatedAt},
		"$unset": bson.M{"salt": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.users().DeleteOne(ctx, bson.M{"_id": idValue(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrUserNotFound
	}

	if _, err := s.db.Collection(postsCollection).DeleteMany(ctx, bson.M{"author": idValue(id)}); err != nil {
		return err
	}
	if _, err := s.db.Collection(sessionsCollection).DeleteMany(ctx, bson.M{"userId": id}); err != nil {
		return err
	}
	return nil
}
