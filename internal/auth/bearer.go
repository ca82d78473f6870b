package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/quillpost/quillpost-go/internal/crypto"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// BearerStrategy authenticates "Authorization: Bearer <jwt>" headers.
type BearerStrategy struct {
	tokens TokenVerifier
	users  UserLookup
}

// NewBearerStrategy creates a BearerStrategy.
func NewBearerStrategy(tokens TokenVerifier, users UserLookup) *BearerStrategy {
	return &BearerStrategy{tokens: tokens, users: users}
}

func (s *BearerStrategy) Name() string { return "bearer" }

func (s *BearerStrategy) Authenticate(ctx context.Context, r *http.Request) Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Result{Decision: Abstain}
	}

	scheme, token, _ := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !strings.EqualFold(scheme, "Bearer") || token == "" {
		return rejected(s.Name(), ReasonMissingCredentials)
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, crypto.ErrTokenExpired):
			return rejected(s.Name(), ReasonTokenExpired)
		case errors.Is(err, crypto.ErrTokenInvalidSignature):
			return rejected(s.Name(), ReasonTokenInvalidSignature)
		default:
			return rejected(s.Name(), ReasonTokenMalformed)
		}
	}

	return resolveUser(ctx, s.users, s.Name(), userID, "")
}

// resolveUser re-reads the user so that credentials outliving their account fail closed.
func resolveUser(ctx context.Context, users UserLookup, strategy, userID, sessionID string) Result {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return rejected(strategy, ReasonUnknownUser)
		}
		return errored(strategy, fmt.Errorf("loading user: %w", err))
	}
	return authenticated(strategy, &Identity{
		UserID:    user.ID,
		User:      user,
		Method:    strategy,
		SessionID: sessionID,
	})
}
