package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/quillpost/quillpost-go/internal/model"
)

const postColumns = `id, title, content, author_id, created_at, updated_at`

// PostRepository handles post persistence operations.
type PostRepository struct {
	db *DB
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create inserts a new post.
func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	query := r.db.rebind(`INSERT INTO posts (` + postColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Content, post.AuthorID, post.CreatedAt, post.UpdatedAt,
	)
	return err
}

// GetByID retrieves a post by its ID.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id)

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

// List returns all posts, newest first.
func (r *PostRepository) List(ctx context.Context) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}

	return posts, rows.Err()
}

// Update replaces the title and content of a post.
func (r *PostRepository) Update(ctx context.Context, post *model.Post) error {
	query := r.db.rebind(`UPDATE posts SET title = ?, content = ?, updated_at = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, post.Title, post.Content, post.UpdatedAt, post.ID)
	if err != nil {
		return err
	}
	return expectAffected(result, ErrPostNotFound)
}

// Delete removes a post.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectAffected(result, ErrPostNotFound)
}

// DeleteByAuthor removes every post written by authorID.
func (r *PostRepository) DeleteByAuthor(ctx context.Context, authorID string) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM posts WHERE author_id = ?`), authorID)
	return err
}

func scanPost(s scanner) (*model.Post, error) {
	var p model.Post
	if err := s.Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
