package models

import (
	"time"
)

// Post represents a forum post
type Post struct {
	ID              string     `json:"id" db:"id"`
	UserAddress     string     `json:"user_address" db:"user_address"`
	Username        string     `json:"username,omitempty" db:"-"`
	Title           string     `json:"title" db:"title"`
	Content         string     `json:"content" db:"content"`
	Tags            []string   `json:"tags" db:"-"` // Stored as JSON string in DB
	TagsJSON        string     `json:"-" db:"tags"` // For DB storage
	ImageURL        string     `json:"image_url,omitempty" db:"image_url"`
	Likes           int        `json:"likes" db:"likes"`
	CommentsCount   int        `json:"comments_count" db:"comments_count"`
	Views           int        `json:"views" db:"views"`
	TransactionHash *string    `json:"transaction_hash,omitempty" db:"transaction_hash"`
	ChainPostID     *int64     `json:"chain_post_id,omitempty" db:"chain_post_id"`
	IsLikedByUser   bool       `json:"is_liked_by_user" db:"-"`
	HeatScore       float64    `json:"heat_score,omitempty" db:"-"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"-" db:"deleted_at"`
}

// CreatePostRequest is the payload for post creation
type CreatePostRequest struct {
	UserAddress     string   `json:"user_address"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Tags            []string `json:"tags,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
	TransactionHash string   `json:"blockchain_transaction_hash,omitempty"`
	ChainPostID     *int64   `json:"chain_post_id,omitempty"`
}

// MaxTitleLength and MaxContentLength bound post fields
const (
	MaxTitleLength   = 200
	MaxContentLength = 10000
)
