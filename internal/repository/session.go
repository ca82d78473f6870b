package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/quillpost/quillpost-go/internal/model"
)

// SessionRepository handles session persistence operations.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	query := r.db.rebind(`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.ExpiresAt, s.CreatedAt)
	return err
}

// Get retrieves a session by its digest. Expired sessions are still returned; callers check Expired.
func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	query := r.db.rebind(`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?`)

	var s model.Session
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

// DeleteByUser removes all sessions of a user.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	return err
}

// DeleteExpired removes sessions that expired at or before now and returns how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
