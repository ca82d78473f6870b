package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("you are not allowed to modify this resource")
)

// Owned is a resource with a single owning user.
type Owned interface {
	OwnerID() string
}

// RequireOwner reports whether id owns res.
func RequireOwner(id *Identity, res Owned) bool {
	if id == nil || res == nil || id.UserID == "" {
		return false
	}
	return id.UserID == res.OwnerID()
}

// Authorize checks that the identity in ctx owns res.
func Authorize(ctx context.Context, res Owned) error {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if !RequireOwner(id, res) {
		return ErrForbidden
	}
	return nil
}

// Observer is told the outcome of every authentication attempt. Anonymous
// requests to optional routes are not attempts and are not reported.
type Observer func(strategy, outcome string)

// Guard runs a Chain in front of handlers.
type Guard struct {
	chain   *Chain
	logger  *slog.Logger
	observe Observer
	realm   string
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets the logger for rejected and failed attempts.
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// WithObserver registers an Observer, typically a metrics counter.
func WithObserver(o Observer) GuardOption {
	return func(g *Guard) { g.observe = o }
}

// WithRealm sets the realm advertised in WWW-Authenticate.
func WithRealm(realm string) GuardOption {
	return func(g *Guard) { g.realm = realm }
}

// NewGuard creates a Guard.
func NewGuard(chain *Chain, opts ...GuardOption) *Guard {
	g := &Guard{
		chain:   chain,
		logger:  slog.Default(),
		observe: func(string, string) {},
		realm:   "quillpost",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) authenticate(r *http.Request, anonymousOK bool) Result {
	res := g.chain.Authenticate(r.Context(), r)
	if anonymousOK && res.Decision == Rejected && res.Reason == ReasonMissingCredentials {
		return res
	}
	g.observe(res.Strategy, res.Decision.String())
	return res
}

// Require rejects requests without a valid identity and attaches the identity otherwise.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.authenticate(r, false)

		switch res.Decision {
		case Authenticated:
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), res.Identity)))
		case Errored:
			g.logger.Error("authentication failed",
				"strategy", res.Strategy,
				"path", r.URL.Path,
				"error", res.Err,
			)
			writeError(w, http.StatusInternalServerError, "internal server error")
		default:
			g.logger.Debug("authentication rejected",
				"strategy", res.Strategy,
				"reason", res.Reason.String(),
				"path", r.URL.Path,
			)
			w.Header().Set("WWW-Authenticate", g.challenge(res.Reason))
			writeError(w, http.StatusUnauthorized, res.Reason.Message())
		}
	})
}

// Optional attaches the identity when the request carries valid credentials
// and passes every other request through untouched.
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.authenticate(r, true)
		switch res.Decision {
		case Authenticated:
			r = r.WithContext(WithIdentity(r.Context(), res.Identity))
		case Errored:
			g.logger.Warn("optional authentication failed", "strategy", res.Strategy, "error", res.Err)
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) challenge(reason Reason) string {
	if reason.tokenProblem() {
		return fmt.Sprintf(`Bearer realm=%q, error="invalid_token", error_description=%q`, g.realm, reason.Message())
	}
	return fmt.Sprintf(`Bearer realm=%q`, g.realm)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
