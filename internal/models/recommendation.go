package models

import (
	"time"
)

// DailyRecommendation is a persisted ranked row for one day's top posts
type DailyRecommendation struct {
	ID           string    `json:"id" db:"id"`
	PostID       string    `json:"post_id" db:"post_id"`
	RankPosition int       `json:"rank_position" db:"rank_position"`
	HeatScore    float64   `json:"heat_score" db:"heat_score"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RecommendationResult is the API response for daily recommendations
type RecommendationResult struct {
	Posts           []*Post   `json:"posts"`
	LastRefreshTime time.Time `json:"last_refresh_time"`
}

// Heat score weights and time-decay brackets for daily recommendations.
// Posts older than the lookback window are not considered.
const (
	HeatLikeWeight    = 3.0
	HeatCommentWeight = 2.0
	HeatViewWeight    = 0.1

	RecommendationLookback = 7 * 24 * time.Hour
	RecommendationLimit    = 10
)

// HeatScore computes the ranking score for a post as of now. The decay
// factor steps down with age: full weight inside 24h, then 0.8, 0.6, and
// 0.4 beyond 72h.
func HeatScore(p *Post, now time.Time) float64 {
	base := float64(p.Likes)*HeatLikeWeight +
		float64(p.CommentsCount)*HeatCommentWeight +
		float64(p.Views)*HeatViewWeight

	age := now.Sub(p.CreatedAt)
	var decay float64
	switch {
	case age <= 24*time.Hour:
		decay = 1.0
	case age <= 48*time.Hour:
		decay = 0.8
	case age <= 72*time.Hour:
		decay = 0.6
	default:
		decay = 0.4
	}
	return base * decay
}
