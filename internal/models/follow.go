package models

import (
	"time"
)

// Follow represents a directed edge in the social graph
type Follow struct {
	FollowerAddress  string    `json:"follower_address" db:"follower_address"`
	FollowingAddress string    `json:"following_address" db:"following_address"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// FollowRequest is the payload for follow/unfollow operations
type FollowRequest struct {
	FollowerAddress  string `json:"follower_address"`
	FollowingAddress string `json:"following_address"`
}

// FollowResult reports the outcome of a follow/unfollow call. The
// operations are idempotent: repeating one reports the same state.
type FollowResult struct {
	IsFollowing    bool `json:"is_following"`
	FollowersCount int  `json:"followers_count"`
}

// FollowStatus reports the edge state between two users
type FollowStatus struct {
	IsFollowing bool `json:"is_following"`
	IsMutual    bool `json:"is_mutual"`
}

// FollowStats carries per-user follow counters
type FollowStats struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	FriendsCount   int `json:"friends_count"`
}
