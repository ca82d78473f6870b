package model

import "time"

// Post is a blog post owned by its author.
type Post struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Content   string    `bson:"content"`
	AuthorID  string    `bson:"author"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// OwnerID implements auth.Owned.
func (p *Post) OwnerID() string {
	return p.AuthorID
}

// PostRequest is the body of create and update requests.
type PostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// PostResponse represents a post in API responses.
type PostResponse struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Author    AuthorSummary `json:"author"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
