package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/quillpost/quillpost-go/internal/model"
)

const userColumns = `id, name, email, username, password_hash, salt, created_at, updated_at`

// UserRepository handles user persistence operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. The caller assigns ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := r.db.rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, nullString(user.Username),
		user.PasswordHash, user.Salt, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if key, ok := duplicateKey(err); ok {
			if strings.Contains(key, "username") {
				return ErrDuplicateUsername
			}
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByUsername retrieves a user by their username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// List returns all users ordered by creation.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	return users, rows.Err()
}

// UpdatePassword stores a new hash and clears the legacy salt.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, updatedAt time.Time) error {
	query := r.db.rebind(`UPDATE users SET password_hash = ?, salt = '', updated_at = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, hash, updatedAt, id)
	if err != nil {
		return err
	}
	return expectAffected(result, ErrUserNotFound)
}

// Delete removes a user. Posts and sessions cascade in the schema.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectAffected(result, ErrUserNotFound)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, r.db.rebind(query), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		user     model.User
		username sql.NullString
	)
	if err := s.Scan(
		&user.ID, &user.Name, &user.Email, &username,
		&user.PasswordHash, &user.Salt, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Username = username.String
	return &user, nil
}

// nullString stores empty usernames as NULL so the unique key ignores them.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
