package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// PostStore persists posts.
type PostStore struct {
	coll *mongo.Collection
}

var _ repository.PostStore = (*PostStore)(nil)

func (s *PostStore) Create(ctx context.Context, post *model.Post) error {
	_, err := s.coll.InsertOne(ctx, post)
	return err
}

func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := s.coll.FindOne(ctx, bson.M{"_id": idValue(id)}).Decode(&p); err != nil {
		return nil, notFound(err, repository.ErrPostNotFound)
	}
	return &p, nil
}

func (s *PostStore) List(ctx context.Context) ([]model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	posts := []model.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Update replaces title and content. The author is never changed.
func (s *PostStore) Update(ctx context.Context, post *model.Post) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": idValue(post.ID)}, bson.M{
		"$set": bson.M{"title": post.Title, "content": post.Content, "updatedAt": post.UpdatedAt},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrPostNotFound
	}
	return nil
}

func (s *PostStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": idValue(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrPostNotFound
	}
	return nil
}

func (s *PostStore) DeleteByAuthor(ctx context.Context, authorID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"author": idValue(authorID)})
	return err
}
