package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillpost/quillpost-go/internal/auth"
	"github.com/quillpost/quillpost-go/internal/crypto"
	"github.com/quillpost/quillpost-go/internal/ids"
	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// DefaultSessionTTL is how long a cookie session stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

// AuthService handles registration, login and account lifecycle.
type AuthService struct {
	users      repository.UserStore
	sessions   repository.SessionStore
	tokens     *crypto.TokenIssuer
	local      *auth.LocalStrategy
	params     crypto.HashParams
	sessionTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
	observe    auth.Observer
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithHashParams sets the argon2id cost used for new and upgraded hashes.
func WithHashParams(p crypto.HashParams) AuthOption {
	return func(s *AuthService) { s.params = p }
}

// WithSessionTTL sets the lifetime of cookie sessions.
func WithSessionTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithClock sets the clock used for timestamps and session expiry.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) AuthOption {
	return func(s *AuthService) { s.logger = l }
}

// WithObserver reports the outcome of every password check.
func WithObserver(o auth.Observer) AuthOption {
	return func(s *AuthService) { s.observe = o }
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repository.UserStore, sessions repository.SessionStore, tokens *crypto.TokenIssuer, opts ...AuthOption) (*AuthService, error) {
	s := &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		params:     crypto.DefaultHashParams(),
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
		logger:     slog.Default(),
		observe:    func(string, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}

	local, err := auth.NewLocalStrategy(users, s.params)
	if err != nil {
		return nil, err
	}
	s.local = local
	return s, nil
}

// SessionTTL returns the configured cookie session lifetime.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Register creates a new user account and returns an auth token.
func (s *AuthService) Register(ctx context.Context, req model.CreateUserRequest) (model.AuthResponse, error) {
	if err := validateRegistration(&req); err != nil {
		return model.AuthResponse{}, err
	}

	hash, err := crypto.HashPasswordWithParams(req.Password, s.params)
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           ids.New(),
		Name:         req.Name,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return model.AuthResponse{}, ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicateUsername):
			return model.AuthResponse{}, ErrUsernameTaken
		}
		return model.AuthResponse{}, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.tokenResponse(user)
}

// Login verifies credentials with the local strategy and returns an auth token.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	user, err := s.verify(ctx, req)
	if err != nil {
		return model.AuthResponse{}, err
	}
	return s.tokenResponse(user)
}

// CreateSession verifies credentials and opens a server-side session.
// The returned token is the cookie value; only its digest is stored.
func (s *AuthService) CreateSession(ctx context.Context, req model.LoginRequest) (string, time.Time, model.UserResponse, error) {
	user, err := s.verify(ctx, req)
	if err != nil {
		return "", time.Time{}, model.UserResponse{}, err
	}

	token, digest, err := crypto.NewSessionToken()
	if err != nil {
		return "", time.Time{}, model.UserResponse{}, err
	}

	now := s.now().UTC()
	sess := &model.Session{
		ID:        digest,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", time.Time{}, model.UserResponse{}, fmt.Errorf("creating session: %w", err)
	}

	return token, sess.ExpiresAt, user.Public(), nil
}

// Logout ends the caller's session. Token-authenticated callers have nothing to end.
func (s *AuthService) Logout(ctx context.Context, id *auth.Identity) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.SessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, id.SessionID)
}

// Me returns the caller's public profile.
func (s *AuthService) Me(ctx context.Context, id *auth.Identity) (model.UserResponse, error) {
	if id == nil {
		return model.UserResponse{}, ErrUnauthenticated
	}
	if id.User != nil {
		return id.User.Public(), nil
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.UserResponse{}, ErrUnauthenticated
		}
		return model.UserResponse{}, err
	}
	return user.Public(), nil
}

// DeleteAccount removes the caller along with their posts and sessions.
// Tokens already issued stop working because strategies re-read the user.
func (s *AuthService) DeleteAccount(ctx context.Context, id *auth.Identity) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if err := s.users.Delete(ctx, id.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("deleting user: %w", err)
	}
	s.logger.Info("user deleted", "user_id", id.UserID)
	return nil
}

// PurgeExpiredSessions removes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}

func (s *AuthService) verify(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	identifier := req.Login()
	if identifier == "" {
		return nil, invalid("identifier", "email or username is required")
	}
	if req.Password == "" {
		return nil, invalid("password", "password is required")
	}

	res := s.local.Verify(ctx, identifier, req.Password)
	s.observe(s.local.Name(), res.Decision.String())
	switch res.Decision {
	case auth.Authenticated:
	case auth.Errored:
		return nil, res.Err
	default:
		return nil, ErrInvalidCredentials
	}

	user := res.Identity.User
	s.upgradeHash(ctx, user, req.Password)
	return user, nil
}

// upgradeHash re-hashes legacy or outdated records after a successful login.
// Failure is logged and never fails the login.
func (s *AuthService) upgradeHash(ctx context.Context, user *model.User, password string) {
	if !crypto.NeedsRehashWithParams(crypto.HashRecord{Hash: user.PasswordHash, Salt: user.Salt}, s.params) {
		return
	}
	hash, err := crypto.HashPasswordWithParams(password, s.params)
	if err != nil {
		s.logger.Warn("rehashing password failed", "user_id", user.ID, "error", err)
		return
	}
	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		s.logger.Warn("storing upgraded hash failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash, user.Salt, user.UpdatedAt = hash, "", now
	s.logger.Info("password hash upgraded", "user_id", user.ID)
}

func (s *AuthService) tokenResponse(user *model.User) (model.AuthResponse, error) {
	issued, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.AuthResponse{}, fmt.Errorf("issuing token: %w", err)
	}
	expiresAt := issued.ExpiresAt
	return model.AuthResponse{
		Success:   true,
		User:      user.Public(),
		Token:     issued.Token,
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
		ExpiresAt: &expiresAt,
	}, nil
}
