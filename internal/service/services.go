package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/cache"
	"github.com/web3-forum-api/internal/config"
	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/repository"
)

// ForumService defines the interface for write operations: content
// submission, likes, and identity management
type ForumService interface {
	CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.Post, error)
	CreateComment(ctx context.Context, req *models.CreateCommentRequest) (*models.Comment, error)
	TogglePostLike(ctx context.Context, postID, address string) (bool, int, error)
	ToggleCommentLike(ctx context.Context, commentID, address string) (bool, int, error)
	RegisterUsername(ctx context.Context, req *models.RegisterUsernameRequest) (*models.User, error)
	CheckUsername(ctx context.Context, username string) (string, bool, error)
	SyncUsername(ctx context.Context, address string) (*models.User, error)
	Username(ctx context.Context, address string) (string, error)
	GetProfile(ctx context.Context, address string) (*models.UserProfile, error)
	HasUsername(ctx context.Context, address string) (bool, error)
	UpdateAvatar(ctx context.Context, address, avatarURL string) error
	UpdateBio(ctx context.Context, req *models.UpdateBioRequest) error
}

// QueryService defines the interface for read operations
type QueryService interface {
	ListPosts(ctx context.Context, limit, offset int, viewer string) ([]*models.Post, bool, error)
	GetPost(ctx context.Context, id, viewer string) (*models.Post, error)
	ListUserPosts(ctx context.Context, address string, limit, offset int, viewer string) ([]*models.Post, bool, error)
	ListComments(ctx context.Context, postID string, limit, offset int, viewer string) ([]*models.Comment, bool, error)
	DailyRecommendations(ctx context.Context, viewer string) (*models.RecommendationResult, error)
	GlobalStats(ctx context.Context) (*models.GlobalStats, error)
	ActiveUsers(ctx context.Context, limit int) ([]*models.ActiveUser, error)
}

// SocialService defines the interface for the follow graph
type SocialService interface {
	Follow(ctx context.Context, follower, following string) (*models.FollowResult, error)
	Unfollow(ctx context.Context, follower, following string) (*models.FollowResult, error)
	Status(ctx context.Context, follower, following string) (*models.FollowStatus, error)
	Following(ctx context.Context, address string, limit, offset int) ([]*models.UserProfile, bool, error)
	Followers(ctx context.Context, address string, limit, offset int) ([]*models.UserProfile, bool, error)
	Friends(ctx context.Context, address string, limit, offset int) ([]*models.UserProfile, bool, error)
	Stats(ctx context.Context, address string) (*models.FollowStats, error)
}

// TaskService defines the interface for the async submission queue
type TaskService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	SubmitPost(ctx context.Context, req *models.CreatePostRequest) (*models.Task, error)
	SubmitComment(ctx context.Context, req *models.CreateCommentRequest) (*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	SetForumService(forum ForumService)
}

// Services holds all service interfaces
type Services struct {
	Forum  ForumService
	Query  QueryService
	Social SocialService
	Task   TaskService
}

// NewServices creates all services. verifier may be nil when no chain
// endpoint is configured; submissions then run in offline mode.
func NewServices(repos *repository.Repositories, c cache.Cache, verifier ChainVerifier, cfg *config.Config, log zerolog.Logger) *Services {
	forumSvc := newForumService(repos, c, verifier, log)
	querySvc := newQueryService(repos, c, log)
	socialSvc := newSocialService(repos, log)
	taskSvc := newTaskService(cfg.Queue.Workers, cfg.Queue.TaskRetention, log)

	// Wire up the task workers to the forum orchestrator
	taskSvc.SetForumService(forumSvc)

	return &Services{
		Forum:  forumSvc,
		Query:  querySvc,
		Social: socialSvc,
		Task:   taskSvc,
	}
}
