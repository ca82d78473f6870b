package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/quillpost/quillpost-go/internal/crypto"
	"github.com/quillpost/quillpost-go/internal/model"
	"github.com/quillpost/quillpost-go/internal/repository"
)

// DefaultSessionCookie is the cookie that carries the raw session token.
const DefaultSessionCookie = "qp_session"

// SessionLookup is the slice of the session store the strategy needs.
type SessionLookup interface {
	Get(ctx context.Context, id string) (*model.Session, error)
}

// SessionStrategy authenticates the session cookie against server-side sessions.
type SessionStrategy struct {
	sessions SessionLookup
	users    UserLookup
	cookie   string
	now      func() time.Time
}

// SessionOption configures a SessionStrategy.
type SessionOption func(*SessionStrategy)

// WithCookieName overrides DefaultSessionCookie.
func WithCookieName(name string) SessionOption {
	return func(s *SessionStrategy) {
		if name != "" {
			s.cookie = name
		}
	}
}

// WithSessionClock sets the clock used for expiry checks.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionStrategy) { s.now = now }
}

// NewSessionStrategy creates a SessionStrategy.
func NewSessionStrategy(sessions SessionLookup, users UserLookup, opts ...SessionOption) *SessionStrategy {
	s := &SessionStrategy{
		sessions: sessions,
		users:    users,
		cookie:   DefaultSessionCookie,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStrategy) Name() string { return "session" }

// CookieName returns the cookie this strategy reads.
func (s *SessionStrategy) CookieName() string { return s.cookie }

func (s *SessionStrategy) Authenticate(ctx context.Context, r *http.Request) Result {
	c, err := r.Cookie(s.cookie)
	if err != nil || c.Value == "" {
		return Result{Decision: Abstain}
	}

	digest := crypto.SessionDigest(c.Value)
	sess, err := s.sessions.Get(ctx, digest)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return rejected(s.Name(), ReasonSessionInvalid)
		}
		return errored(s.Name(), fmt.Errorf("loading session: %w", err))
	}
	if sess.Expired(s.now()) {
		return rejected(s.Name(), ReasonSessionInvalid)
	}

	return resolveUser(ctx, s.users, s.Name(), sess.UserID, sess.ID)
}
