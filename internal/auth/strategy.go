// Package auth resolves request credentials into an Identity and guards
// handlers that need one.
//
// Strategies vote on each request: Authenticated, Rejected, Errored or
// Abstain. A Chain asks each strategy in turn and stops at the first vote
// that is not Abstain, so bearer tokens and session cookies are
// interchangeable transports for the same Identity.
package auth

import (
	"context"
	"net/http"

	"github.com/quillpost/quillpost-go/internal/model"
)

// Decision is the outcome of an authentication attempt.
type Decision int

const (
	// Abstain means the strategy found no credentials of its kind.
	Abstain Decision = iota
	// Authenticated means the credentials are valid. Result.Identity is set.
	Authenticated
	// Rejected means credentials were presented but are not acceptable. Result.Reason is set.
	Rejected
	// Errored means the strategy could not decide because a dependency failed. Result.Err is set.
	Errored
)

func (d Decision) String() string {
	switch d {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	case Errored:
		return "errored"
	default:
		return "abstain"
	}
}

// Reason explains a rejection. Its message is safe to return to clients.
type Reason int

const (
	ReasonMissingCredentials Reason = iota + 1
	ReasonInvalidCredentials
	ReasonTokenMalformed
	ReasonTokenInvalidSignature
	ReasonTokenExpired
	ReasonUnknownUser
	ReasonSessionInvalid
)

// Message returns the client-facing description of the reason.
// Unknown users and wrong passwords share one message so logins do not reveal which emails are registered.
func (r Reason) Message() string {
	switch r {
	case ReasonInvalidCredentials:
		return "incorrect email or password"
	case ReasonTokenMalformed:
		return "malformed token"
	case ReasonTokenInvalidSignature:
		return "invalid token signature"
	case ReasonTokenExpired:
		return "token expired"
	case ReasonUnknownUser:
		return "account no longer exists"
	case ReasonSessionInvalid:
		return "session expired or invalid"
	default:
		return "authentication required"
	}
}

func (r Reason) String() string {
	switch r {
	case ReasonMissingCredentials:
		return "missing_credentials"
	case ReasonInvalidCredentials:
		return "invalid_credentials"
	case ReasonTokenMalformed:
		return "token_malformed"
	case ReasonTokenInvalidSignature:
		return "token_invalid_signature"
	case ReasonTokenExpired:
		return "token_expired"
	case ReasonUnknownUser:
		return "unknown_user"
	case ReasonSessionInvalid:
		return "session_invalid"
	default:
		return "unknown"
	}
}

// tokenProblem reports whether the client presented a credential that was
// unusable, as opposed to presenting none.
func (r Reason) tokenProblem() bool {
	switch r {
	case ReasonTokenMalformed, ReasonTokenInvalidSignature, ReasonTokenExpired, ReasonUnknownUser, ReasonSessionInvalid:
		return true
	}
	return false
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	User   *model.User
	// Method names the strategy that produced the identity.
	Method string
	// SessionID is the stored session digest when Method is "session".
	SessionID string
}

// Result carries a strategy's vote.
type Result struct {
	Decision Decision
	Identity *Identity
	Reason   Reason
	Err      error
	// Strategy is the name of the strategy that decided.
	Strategy string
}

func authenticated(strategy string, id *Identity) Result {
	return Result{Decision: Authenticated, Identity: id, Strategy: strategy}
}

func rejected(strategy string, reason Reason) Result {
	return Result{Decision: Rejected, Reason: reason, Strategy: strategy}
}

func errored(strategy string, err error) Result {
	return Result{Decision: Errored, Err: err, Strategy: strategy}
}

// Strategy turns request credentials into a Result.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, r *http.Request) Result
}

// UserLookup is the slice of the user store the strategies need.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

// Chain evaluates strategies left to right.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a Chain. Order matters: the first strategy to vote wins.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Authenticate stops on the first vote other than Abstain.
// If every strategy abstains the request is rejected for missing credentials.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, s := range c.strategies {
		res := s.Authenticate(ctx, r)
		if res.Decision == Abstain {
			continue
		}
		if res.Strategy == "" {
			res.Strategy = s.Name()
		}
		return res
	}
	return rejected("none", ReasonMissingCredentials)
}
