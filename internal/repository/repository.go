package repository

import (
	"context"
	"errors"
	"time"

	"github.com/web3-forum-api/internal/database"
	"github.com/web3-forum-api/internal/models"
)

// Sentinel errors surfaced by storage implementations. Uniqueness
// violations must come from the store's atomic constraints, not from
// application-level check-then-write.
var (
	ErrNotFound         = errors.New("not found")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrTransactionUsed  = errors.New("transaction hash already used")
	ErrAlreadyFollowing = errors.New("already following")
	ErrNotFollowing     = errors.New("not following")
	ErrSelfFollow       = errors.New("cannot follow yourself")
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ListByUser(ctx context.Context, address string, limit, offset int) ([]*models.Post, error)
	ListSince(ctx context.Context, since time.Time) ([]*models.Post, error)
	IncrementViews(ctx context.Context, id string) error
	IncrementComments(ctx context.Context, id string) error
	FindRecentDuplicate(ctx context.Context, address, title, content string, window time.Duration) (bool, error)
	Count(ctx context.Context) (int, error)
}

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error)
	FindRecentDuplicate(ctx context.Context, address, postID, content string, window time.Duration) (bool, error)
	Count(ctx context.Context) (int, error)
}

// LikeRepository toggles like records atomically with the parent
// entity's counter. Toggle operations return the liked state after the
// call and the resulting count.
type LikeRepository interface {
	TogglePostLike(ctx context.Context, postID, address string) (liked bool, likes int, err error)
	ToggleCommentLike(ctx context.Context, commentID, address string) (liked bool, likes int, err error)
	PostLikesByUser(ctx context.Context, address string, postIDs []string) (map[string]bool, error)
	CommentLikesByUser(ctx context.Context, address string, commentIDs []string) (map[string]bool, error)
	CountPostLikes(ctx context.Context) (int, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	GetOrCreate(ctx context.Context, address string) (*models.User, error)
	GetByAddress(ctx context.Context, address string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	RegisterUsername(ctx context.Context, address, username string) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateAvatar(ctx context.Context, address, avatarURL string) error
	UpdateBio(ctx context.Context, address, bio string) error
	IncrementPosts(ctx context.Context, address string) error
	IncrementComments(ctx context.Context, address string) error
	Count(ctx context.Context) (int, error)
	MostActive(ctx context.Context, limit int) ([]*models.ActiveUser, error)
}

// FollowRepository maintains the social graph. Follow and Unfollow
// report the edge state and counters after the operation.
type FollowRepository interface {
	Follow(ctx context.Context, follower, following string) error
	Unfollow(ctx context.Context, follower, following string) error
	IsFollowing(ctx context.Context, follower, following string) (bool, error)
	Following(ctx context.Context, address string, limit, offset int) ([]string, error)
	Followers(ctx context.Context, address string, limit, offset int) ([]string, error)
	Friends(ctx context.Context, address string, limit, offset int) ([]string, error)
	Stats(ctx context.Context, address string) (*models.FollowStats, error)
}

// TransactionRepository records consumed transaction hashes for replay
// protection. Record returns ErrTransactionUsed when the hash has been
// seen before.
type TransactionRepository interface {
	Record(ctx context.Context, tx *models.UsedTransaction) error
	IsUsed(ctx context.Context, hash string) (bool, error)
}

// RecommendationRepository persists the daily top-post ranking
type RecommendationRepository interface {
	ForDay(ctx context.Context, day time.Time) ([]*models.DailyRecommendation, error)
	ReplaceDay(ctx context.Context, day time.Time, recs []*models.DailyRecommendation) error
	LastRefreshTime(ctx context.Context) (time.Time, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Post           PostRepository
	Comment        CommentRepository
	Like           LikeRepository
	User           UserRepository
	Follow         FollowRepository
	Transaction    TransactionRepository
	Recommendation RecommendationRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Post:           NewPostRepo(db),
		Comment:        NewCommentRepo(db),
		Like:           NewLikeRepo(db),
		User:           NewUserRepo(db),
		Follow:         NewFollowRepo(db),
		Transaction:    NewTransactionRepo(db),
		Recommendation: NewRecommendationRepo(db),
	}
}
