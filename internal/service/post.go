package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillpost/quillpost-go/internal/auth"
	"github.com/quillpost/quillpost-go/internal/ids"
	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// PostService handles post business logic. Mutations are restricted to the post's author.
type PostService struct {
	posts repository.PostStore
	users repository.UserStore
	now   func() time.Time
}

// NewPostService creates a new PostService.
func NewPostService(posts repository.PostStore, users repository.UserStore) *PostService {
	return &PostService{posts: posts, users: users, now: time.Now}
}

// List returns every post, newest first.
func (s *PostService) List(ctx context.Context) ([]model.PostResponse, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	authors := make(map[string]model.AuthorSummary)
	result := make([]model.PostResponse, len(posts))
	for i := range posts {
		a, ok := authors[posts[i].AuthorID]
		if !ok {
			if a, err = s.author(ctx, posts[i].AuthorID); err != nil {
				return nil, err
			}
			authors[posts[i].AuthorID] = a
		}
		result[i] = postToResponse(&posts[i], a)
	}
	return result, nil
}

// Get returns a single post.
func (s *PostService) Get(ctx context.Context, id string) (model.PostResponse, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return model.PostResponse{}, err
	}
	return s.respond(ctx, post)
}

// Create stores a new post authored by the caller.
func (s *PostService) Create(ctx context.Context, req model.PostRequest) (model.PostResponse, error) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return model.PostResponse{}, ErrUnauthenticated
	}
	if err := validatePost(&req); err != nil {
		return model.PostResponse{}, err
	}

	now := s.now().UTC()
	post := &model.Post{
		ID:        ids.New(),
		Title:     req.Title,
		Content:   req.Content,
		AuthorID:  id.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return model.PostResponse{}, fmt.Errorf("creating post: %w", err)
	}
	return s.respond(ctx, post)
}

// Update replaces a post's title and content. Only the author may do this.
func (s *PostService) Update(ctx context.Context, postID string, req model.PostRequest) (model.PostResponse, error) {
	post, err := s.load(ctx, postID)
	if err != nil {
		return model.PostResponse{}, err
	}
	if err := auth.Authorize(ctx, post); err != nil {
		return model.PostResponse{}, err
	}
	if err := validatePost(&req); err != nil {
		return model.PostResponse{}, err
	}

	post.Title = req.Title
	post.Content = req.Content
	post.UpdatedAt = s.now().UTC()
	if err := s.posts.Update(ctx, post); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return model.PostResponse{}, ErrPostNotFound
		}
		return model.PostResponse{}, fmt.Errorf("updating post: %w", err)
	}
	return s.respond(ctx, post)
}

// Delete removes a post. Only the author may do this.
func (s *PostService) Delete(ctx context.Context, postID string) error {
	post, err := s.load(ctx, postID)
	if err != nil {
		return err
	}
	if err := auth.Authorize(ctx, post); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("deleting post: %w", err)
	}
	return nil
}

func (s *PostService) load(ctx context.Context, id string) (*model.Post, error) {
	if !ids.Valid(id) {
		return nil, ErrPostNotFound
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("loading post: %w", err)
	}
	return post, nil
}

func (s *PostService) respond(ctx context.Context, post *model.Post) (model.PostResponse, error) {
	a, err := s.author(ctx, post.AuthorID)
	if err != nil {
		return model.PostResponse{}, err
	}
	return postToResponse(post, a), nil
}

// author falls back to the bare id when the author record is gone.
func (s *PostService) author(ctx context.Context, id string) (model.AuthorSummary, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.AuthorSummary{ID: id}, nil
		}
		return model.AuthorSummary{}, fmt.Errorf("loading author: %w", err)
	}
	return model.AuthorSummary{ID: u.ID, Name: u.Name, Username: u.Username}, nil
}

func postToResponse(p *model.Post, author model.AuthorSummary) model.PostResponse {
	return model.PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    author,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
