package models

// GlobalStats aggregates forum-wide counters
type GlobalStats struct {
	TotalUsers    int `json:"total_users"`
	TotalPosts    int `json:"total_posts"`
	TotalComments int `json:"total_comments"`
	TotalLikes    int `json:"total_likes"`
}

// ActiveUser is one row of the active-user ranking, ordered by
// reputation, then posts, then comments.
type ActiveUser struct {
	Address       string `json:"address"`
	Username      string `json:"username"`
	PostsCount    int    `json:"posts_count"`
	CommentsCount int    `json:"comments_count"`
	Reputation    int    `json:"reputation"`
}
