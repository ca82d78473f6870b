package service

import (
	"errors"

	"github.com/quillpost/quillpost-go/internal/auth"
)

// Error kinds. Handlers map these to status codes with errors.Is; the
// concrete errors below carry client-safe messages.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicate          = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrUnauthenticated    = auth.ErrUnauthenticated
	ErrForbidden          = auth.ErrForbidden
)

var (
	ErrEmailTaken    error = &kindError{kind: ErrDuplicate, msg: "email already registered"}
	ErrUsernameTaken error = &kindError{kind: ErrDuplicate, msg: "username already taken"}
	ErrUserNotFound  error = &kindError{kind: ErrNotFound, msg: "user not found"}
	ErrPostNotFound  error = &kindError{kind: ErrNotFound, msg: "post not found"}
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

// ValidationError reports a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
