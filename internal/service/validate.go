package service

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/quillpost/quillpost-go/internal/model"
)

const (
	maxNameLength     = 100
	maxTitleLength    = 200
	maxContentLength  = 100_000
	minUsernameLength = 3
	maxUsernameLength = 32
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(req *model.CreateUserRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	switch {
	case req.Name == "":
		return invalid("name", "name is required")
	case utf8.RuneCountInString(req.Name) > maxNameLength:
		return invalid("name", "name is too long")
	case req.Email == "":
		return invalid("email", "email is required")
	case req.Password == "":
		return invalid("password", "password is required")
	}

	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return invalid("email", "email is invalid")
	}
	if req.Username != "" {
		if err := validateUsername(req.Username); err != nil {
			return err
		}
	}
	return nil
}

// validateUsername keeps usernames distinguishable from emails at login.
func validateUsername(u string) error {
	if n := len(u); n < minUsernameLength || n > maxUsernameLength {
		return invalid("username", "username must be between 3 and 32 characters")
	}
	for _, r := range u {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return invalid("username", "username may only contain letters, digits, '.', '_' and '-'")
		}
	}
	return nil
}

func validatePost(req *model.PostRequest) error {
	req.Title = strings.TrimSpace(req.Title)

	switch {
	case req.Title == "":
		return invalid("title", "title is required")
	case utf8.RuneCountInString(req.Title) > maxTitleLength:
		return invalid("title", "title is too long")
	case strings.TrimSpace(req.Content) == "":
		return invalid("content", "content is required")
	case len(req.Content) > maxContentLength:
		return invalid("content", "content is too long")
	}
	return nil
}
