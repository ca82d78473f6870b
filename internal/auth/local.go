package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quillpost/quillpost-go/internal/crypto"
	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

const maxLoginBody = 1 << 20

// LocalStrategy authenticates an identifier and password against the user store.
type LocalStrategy struct {
	users UserLookup
	// dummy is verified when the identifier is unknown so both failure paths cost one hash.
	dummy crypto.HashRecord
}

// NewLocalStrategy hashes a throwaway password with params so that lookups of
// unknown identifiers take as long as real verifications.
func NewLocalStrategy(users UserLookup, params crypto.HashParams) (*LocalStrategy, error) {
	hash, err := crypto.HashPasswordWithParams("quillpost-timing-equaliser", params)
	if err != nil {
		return nil, fmt.Errorf("hashing dummy password: %w", err)
	}
	return &LocalStrategy{users: users, dummy: crypto.HashRecord{Hash: hash}}, nil
}

func (s *LocalStrategy) Name() string { return "local" }

// Authenticate reads a JSON login body from r.
func (s *LocalStrategy) Authenticate(ctx context.Context, r *http.Request) Result {
	if r.Body == nil {
		return Result{Decision: Abstain}
	}
	var req model.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBody)).Decode(&req); err != nil {
		return rejected(s.Name(), ReasonMissingCredentials)
	}
	return s.Verify(ctx, req.Login(), req.Password)
}

// Verify checks identifier and password. An identifier containing "@" is
// looked up as an email, anything else as a username.
func (s *LocalStrategy) Verify(ctx context.Context, identifier, password string) Result {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return rejected(s.Name(), ReasonMissingCredentials)
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			crypto.VerifyPassword(password, s.dummy)
			return rejected(s.Name(), ReasonInvalidCredentials)
		}
		return errored(s.Name(), fmt.Errorf("looking up user: %w", err))
	}

	if !crypto.VerifyPassword(password, crypto.HashRecord{Hash: user.PasswordHash, Salt: user.Salt}) {
		return rejected(s.Name(), ReasonInvalidCredentials)
	}
	return authenticated(s.Name(), &Identity{UserID: user.ID, User: user, Method: s.Name()})
}
