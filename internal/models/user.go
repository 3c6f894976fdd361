package models

import (
	"time"
)

// User represents a forum user, identified primarily by wallet address
type User struct {
	Address       string    `json:"address" db:"address"`
	Username      string    `json:"username,omitempty" db:"username"`
	HasUsername   bool      `json:"has_username" db:"has_username"`
	AvatarURL     string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Bio           string    `json:"bio,omitempty" db:"bio"`
	PostsCount    int       `json:"posts_count" db:"posts_count"`
	CommentsCount int       `json:"comments_count" db:"comments_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the registered username, or the default derived
// from the address when none has been registered.
func (u *User) DisplayName() string {
	if u.HasUsername && u.Username != "" {
		return u.Username
	}
	return DefaultUsername(u.Address)
}

// DefaultUsername derives the placeholder name shown for users who have
// not registered: "user_" plus the first 8 hex characters of the address.
func DefaultUsername(address string) string {
	hex := address
	if len(hex) >= 2 && hex[0] == '0' && (hex[1] == 'x' || hex[1] == 'X') {
		hex = hex[2:]
	}
	if len(hex) > 8 {
		hex = hex[:8]
	}
	return "user_" + hex
}

// Reputation computes the user's reputation score from activity counters
func (u *User) Reputation() int {
	return u.PostsCount*10 + u.CommentsCount*5
}

// UserProfile is the public profile view returned by the API
type UserProfile struct {
	Address       string    `json:"address"`
	Username      string    `json:"username"`
	HasUsername   bool      `json:"has_username"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	PostsCount    int       `json:"posts_count"`
	CommentsCount int       `json:"comments_count"`
	Reputation    int       `json:"reputation"`
	Followers     int       `json:"followers_count"`
	Following     int       `json:"following_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// RegisterUsernameRequest is the payload for username registration
type RegisterUsernameRequest struct {
	UserAddress     string `json:"user_address"`
	Username        string `json:"username"`
	TransactionHash string `json:"blockchain_transaction_hash,omitempty"`
}

// UpdateBioRequest is the payload for bio updates
type UpdateBioRequest struct {
	UserAddress string `json:"user_address"`
	Bio         string `json:"bio"`
}

// Username policy bounds (counted in characters, not bytes)
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MaxBioLength      = 500
)
