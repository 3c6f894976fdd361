package models

import (
	"time"
)

// Comment represents a comment on a post. ParentID is nil for top-level
// comments and references another comment on the same post otherwise.
type Comment struct {
	ID              string     `json:"id" db:"id"`
	PostID          string     `json:"post_id" db:"post_id"`
	ParentID        *string    `json:"parent_id,omitempty" db:"parent_id"`
	UserAddress     string     `json:"user_address" db:"user_address"`
	Username        string     `json:"username,omitempty" db:"-"`
	Content         string     `json:"content" db:"content"`
	Likes           int        `json:"likes" db:"likes"`
	TransactionHash *string    `json:"transaction_hash,omitempty" db:"transaction_hash"`
	IsLikedByUser   bool       `json:"is_liked_by_user" db:"-"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	DeletedAt       *time.Time `json:"-" db:"deleted_at"`
}

// CreateCommentRequest is the payload for comment creation
type CreateCommentRequest struct {
	PostID          string  `json:"post_id"`
	ParentID        *string `json:"parent_id,omitempty"`
	UserAddress     string  `json:"user_address"`
	Content         string  `json:"content"`
	TransactionHash string  `json:"blockchain_transaction_hash,omitempty"`
}

// MaxCommentLength is the maximum allowed comment length in characters
const MaxCommentLength = 2000
