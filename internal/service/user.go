package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillpost/quillpost-go/internal/ids"
	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// UserService serves public user profiles.
type UserService struct {
	users repository.UserStore
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserStore) *UserService {
	return &UserService{users: users}
}

// List returns every user's public profile.
func (s *UserService) List(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	result := make([]model.UserResponse, len(users))
	for i := range users {
		result[i] = users[i].Public()
	}
	return result, nil
}

// Get returns one user's public profile.
func (s *UserService) Get(ctx context.Context, id string) (model.UserResponse, error) {
	if !ids.Valid(id) {
		return model.UserResponse{}, ErrUserNotFound
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.UserResponse{}, ErrUserNotFound
		}
		return model.UserResponse{}, fmt.Errorf("loading user: %w", err)
	}
	return u.Public(), nil
}
