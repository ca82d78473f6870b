// Package memory provides in-memory implementations of the repository stores
// for tests and lightweight deployments. Data is lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// Store holds users, posts and sessions behind a single lock.
// Deleting a user removes their posts and sessions, matching the SQL schema.
type Store struct {
	mu       sync.RWMutex
	users    map[string]model.User
	posts    map[string]model.Post
	sessions map[string]model.Session
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]model.User),
		posts:    make(map[string]model.Post),
		sessions: make(map[string]model.Session),
	}
}

// Stores returns the repository views over this Store.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Users:    (*userStore)(s),
		Posts:    (*postStore)(s),
		Sessions: (*sessionStore)(s),
		Close:    func(context.Context) error { return nil },
	}
}

type userStore Store

var _ repository.UserStore = (*userStore)(nil)

func (s *userStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if user.Username != "" && u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *userStore) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.Email == email })
}

func (s *userStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, repository.ErrUserNotFound
	}
	return s.find(func(u model.User) bool { return u.Username == username })
}

func (s *userStore) find(match func(model.User) bool) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *userStore) List(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *userStore) UpdatePassword(_ context.Context, id, hash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.Salt = ""
	u.UpdatedAt = updatedAt
	s.users[id] = u
	return nil
}

func (s *userStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	for pid, p := range s.posts {
		if p.AuthorID == id {
			delete(s.posts, pid)
		}
	}
	for sid, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, sid)
		}
	}
	return nil
}

type postStore Store

var _ repository.PostStore = (*postStore)(nil)

func (s *postStore) Create(_ context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts[post.ID] = *post
	return nil
}

func (s *postStore) GetByID(_ context.Context, id string) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return &p, nil
}

func (s *postStore) List(_ context.Context) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (s *postStore) Update(_ context.Context, post *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[post.ID]
	if !ok {
		return repository.ErrPostNotFound
	}
	p.Title = post.Title
	p.Content = post.Content
	p.UpdatedAt = post.UpdatedAt
	s.posts[post.ID] = p
	return nil
}

func (s *postStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return repository.ErrPostNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *postStore) DeleteByAuthor(_ context.Context, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.posts {
		if p.AuthorID == authorID {
			delete(s.posts, id)
		}
	}
	return nil
}

type sessionStore Store

var _ repository.SessionStore = (*sessionStore)(nil)

func (s *sessionStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = *session
	return nil
}

func (s *sessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *sessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *sessionStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *sessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
