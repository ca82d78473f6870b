// Package repository defines the credential and content stores and implements them on SQL databases.
// The mongo and memory subpackages provide the other backends; all of them return the sentinel errors below.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quillpost/quillpost-go/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrPostNotFound      = errors.New("post not found")
	ErrSessionNotFound   = errors.New("session not found")
)

// UserStore persists user records.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// UpdatePassword replaces the stored hash and clears any legacy salt.
	UpdatePassword(ctx context.Context, id, hash string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// PostStore persists posts.
type PostStore interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// List returns all posts, newest first.
	List(ctx context.Context) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error
	DeleteByAuthor(ctx context.Context, authorID string) error
}

// SessionStore persists server-side sessions keyed by token digest.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stores bundles one backend's stores.
type Stores struct {
	Users    UserStore
	Posts    PostStore
	Sessions SessionStore
	// Close releases the backend's connections.
	Close func(ctx context.Context) error
}
