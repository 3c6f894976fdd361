package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/cache"
	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/repository"
	"github.com/web3-forum-api/internal/validation"
)

// Pagination bounds for list endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// refreshLockKey guards the daily recommendation recompute across
// instances; TTL bounds how long a crashed holder can block refreshes.
const (
	refreshLockKey = "recommendations:refresh:lock"
	refreshLockTTL = 60 * time.Second
)

// queryService is the concrete implementation of QueryService
type queryService struct {
	repos *repository.Repositories
	cache cache.Cache
	log   zerolog.Logger
	now   func() time.Time
}

func newQueryService(repos *repository.Repositories, c cache.Cache, log zerolog.Logger) *queryService {
	return &queryService{
		repos: repos,
		cache: c,
		log:   log.With().Str("service", "query").Logger(),
		now:   time.Now,
	}
}

// NormalizePage clamps limit/offset to the supported range
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListPosts returns one page of posts, newest first, with the viewer's
// like status overlaid. hasMore signals that the caller should try the
// next offset. Cache holds base pages only; the like overlay always
// runs after retrieval so cached pages are never viewer-specific.
func (s *queryService) ListPosts(ctx context.Context, limit, offset int, viewer string) ([]*models.Post, bool, error) {
	limit, offset = NormalizePage(limit, offset)

	posts, hit, err := s.cache.GetPosts(ctx, limit, offset)
	if err != nil {
		s.log.Warn().Err(err).Msg("Post cache read failed, falling back to store")
	}
	if !hit {
		posts, err = s.repos.Post.List(ctx, limit, offset)
		if err != nil {
			return nil, false, errBackendUnavailable("storage unavailable: %v", err)
		}
		if err := s.annotateAuthors(ctx, posts); err != nil {
			return nil, false, err
		}
		if err := s.cache.SetPosts(ctx, limit, offset, posts); err != nil {
			s.log.Warn().Err(err).Msg("Post cache write failed")
		}
	}

	if err := s.overlayPostLikes(ctx, posts, viewer); err != nil {
		return nil, false, err
	}
	return posts, len(posts) == limit, nil
}

// GetPost fetches one post and counts the view
func (s *queryService) GetPost(ctx context.Context, id, viewer string) (*models.Post, error) {
	post, err := s.repos.Post.GetByID(ctx, id)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if post == nil {
		return nil, errNotFound("post %s not found", id)
	}

	if err := s.repos.Post.IncrementViews(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("post_id", id).Msg("View counter update failed")
	} else {
		post.Views++
	}

	posts := []*models.Post{post}
	if err := s.annotateAuthors(ctx, posts); err != nil {
		return nil, err
	}
	if err := s.overlayPostLikes(ctx, posts, viewer); err != nil {
		return nil, err
	}
	return post, nil
}

// ListUserPosts returns one page of a user's posts
func (s *queryService) ListUserPosts(ctx context.Context, address string, limit, offset int, viewer string) ([]*models.Post, bool, error) {
	if !validation.IsValidAddress(address) {
		return nil, false, errInvalidInputMsg("invalid wallet address format")
	}
	limit, offset = NormalizePage(limit, offset)

	posts, err := s.repos.Post.ListByUser(ctx, address, limit, offset)
	if err != nil {
		return nil, false, errBackendUnavailable("storage unavailable: %v", err)
	}
	if err := s.annotateAuthors(ctx, posts); err != nil {
		return nil, false, err
	}
	if err := s.overlayPostLikes(ctx, posts, viewer); err != nil {
		return nil, false, err
	}
	return posts, len(posts) == limit, nil
}

// ListComments returns one page of a post's comments, oldest first
func (s *queryService) ListComments(ctx context.Context, postID string, limit, offset int, viewer string) ([]*models.Comment, bool, error) {
	limit, offset = NormalizePage(limit, offset)

	post, err := s.repos.Post.GetByID(ctx, postID)
	if err != nil {
		return nil, false, errBackendUnavailable("storage unavailable: %v", err)
	}
	if post == nil {
		return nil, false, errNotFound("post %s not found", postID)
	}

	// Only the default first page is cached; it covers the hot path of
	// rendering a thread.
	useCache := limit == DefaultPageSize && offset == 0

	var comments []*models.Comment
	hit := false
	if useCache {
		comments, hit, err = s.cache.GetComments(ctx, postID)
		if err != nil {
			s.log.Warn().Err(err).Msg("Comment cache read failed, falling back to store")
			hit = false
		}
	}
	if !hit {
		comments, err = s.repos.Comment.ListByPost(ctx, postID, limit, offset)
		if err != nil {
			return nil, false, errBackendUnavailable("storage unavailable: %v", err)
		}
		if err := s.annotateCommentAuthors(ctx, comments); err != nil {
			return nil, false, err
		}
		if useCache {
			if err := s.cache.SetComments(ctx, postID, comments); err != nil {
				s.log.Warn().Err(err).Msg("Comment cache write failed")
			}
		}
	}

	if viewer != "" {
		ids := make([]string, len(comments))
		for i, c := range comments {
			ids[i] = c.ID
		}
		liked, err := s.repos.Like.CommentLikesByUser(ctx, viewer, ids)
		if err != nil {
			return nil, false, errBackendUnavailable("storage unavailable: %v", err)
		}
		for _, c := range comments {
			c.IsLikedByUser = liked[c.ID]
		}
	}
	return comments, len(comments) == limit, nil
}

// DailyRecommendations returns today's top posts, recomputing the
// ranking when no rows exist for today. The cache lock keeps concurrent
// instances from refreshing twice; losing the lock is not an error.
func (s *queryService) DailyRecommendations(ctx context.Context, viewer string) (*models.RecommendationResult, error) {
	today := s.now()

	recs, err := s.repos.Recommendation.ForDay(ctx, today)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	if len(recs) == 0 {
		recs, err = s.refreshRecommendations(ctx, today)
		if err != nil {
			return nil, err
		}
	}

	posts := make([]*models.Post, 0, len(recs))
	for _, rec := range recs {
		post, err := s.repos.Post.GetByID(ctx, rec.PostID)
		if err != nil {
			return nil, errBackendUnavailable("storage unavailable: %v", err)
		}
		if post == nil {
			continue // post deleted since ranking
		}
		post.HeatScore = rec.HeatScore
		posts = append(posts, post)
	}
	if err := s.annotateAuthors(ctx, posts); err != nil {
		return nil, err
	}
	if err := s.overlayPostLikes(ctx, posts, viewer); err != nil {
		return nil, err
	}

	lastRefresh, err := s.repos.Recommendation.LastRefreshTime(ctx)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	return &models.RecommendationResult{Posts: posts, LastRefreshTime: lastRefresh}, nil
}

func (s *queryService) refreshRecommendations(ctx context.Context, today time.Time) ([]*models.DailyRecommendation, error) {
	acquired, err := s.cache.AcquireLock(ctx, refreshLockKey, refreshLockTTL)
	if err != nil {
		s.log.Warn().Err(err).Msg("Refresh lock unavailable, refreshing anyway")
		acquired = true
	}
	if !acquired {
		// Another instance is refreshing; serve whatever it has
		// persisted so far, possibly nothing.
		recs, err := s.repos.Recommendation.ForDay(ctx, today)
		if err != nil {
			return nil, errBackendUnavailable("storage unavailable: %v", err)
		}
		return recs, nil
	}
	defer func() {
		if err := s.cache.ReleaseLock(ctx, refreshLockKey); err != nil {
			s.log.Warn().Err(err).Msg("Refresh lock release failed")
		}
	}()

	candidates, err := s.repos.Post.ListSince(ctx, today.Add(-models.RecommendationLookback))
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	type scored struct {
		post  *models.Post
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, post := range candidates {
		ranked = append(ranked, scored{post: post, score: models.HeatScore(post, today)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score == ranked[j].score {
			return ranked[i].post.CreatedAt.After(ranked[j].post.CreatedAt)
		}
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > models.RecommendationLimit {
		ranked = ranked[:models.RecommendationLimit]
	}

	recs := make([]*models.DailyRecommendation, len(ranked))
	for i, r := range ranked {
		recs[i] = &models.DailyRecommendation{
			ID:           uuid.NewString(),
			PostID:       r.post.ID,
			RankPosition: i + 1,
			HeatScore:    r.score,
			CreatedAt:    s.now(),
		}
	}

	if err := s.repos.Recommendation.ReplaceDay(ctx, today, recs); err != nil {
		// A concurrent refresh may have won the (day, rank) constraint;
		// fall back to reading its rows.
		s.log.Warn().Err(err).Msg("Recommendation persist failed, re-reading")
		return s.repos.Recommendation.ForDay(ctx, today)
	}

	s.log.Info().Int("count", len(recs)).Msg("Daily recommendations refreshed")
	return recs, nil
}

// GlobalStats aggregates forum-wide counters
func (s *queryService) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	users, err := s.repos.User.Count(ctx)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	posts, err := s.repos.Post.Count(ctx)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	comments, err := s.repos.Comment.Count(ctx)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	likes, err := s.repos.Like.CountPostLikes(ctx)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	return &models.GlobalStats{
		TotalUsers:    users,
		TotalPosts:    posts,
		TotalComments: comments,
		TotalLikes:    likes,
	}, nil
}

// ActiveUsers returns the user ranking by reputation
func (s *queryService) ActiveUsers(ctx context.Context, limit int) ([]*models.ActiveUser, error) {
	limit, _ = NormalizePage(limit, 0)

	users, err := s.repos.User.MostActive(ctx, limit)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	return users, nil
}

// annotateAuthors fills display usernames on posts
func (s *queryService) annotateAuthors(ctx context.Context, posts []*models.Post) error {
	names := make(map[string]string)
	for _, post := range posts {
		name, ok := names[post.UserAddress]
		if !ok {
			user, err := s.repos.User.GetByAddress(ctx, post.UserAddress)
			if err != nil {
				return errBackendUnavailable("storage unavailable: %v", err)
			}
			if user != nil {
				name = user.DisplayName()
			} else {
				name = models.DefaultUsername(post.UserAddress)
			}
			names[post.UserAddress] = name
		}
		post.Username = name
	}
	return nil
}

func (s *queryService) annotateCommentAuthors(ctx context.Context, comments []*models.Comment) error {
	names := make(map[string]string)
	for _, comment := range comments {
		name, ok := names[comment.UserAddress]
		if !ok {
			user, err := s.repos.User.GetByAddress(ctx, comment.UserAddress)
			if err != nil {
				return errBackendUnavailable("storage unavailable: %v", err)
			}
			if user != nil {
				name = user.DisplayName()
			} else {
				name = models.DefaultUsername(comment.UserAddress)
			}
			names[comment.UserAddress] = name
		}
		comment.Username = name
	}
	return nil
}

// overlayPostLikes marks which of the posts the viewer has liked
func (s *queryService) overlayPostLikes(ctx context.Context, posts []*models.Post, viewer string) error {
	if viewer == "" || len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
	}
	liked, err := s.repos.Like.PostLikesByUser(ctx, viewer, ids)
	if err != nil {
		return errBackendUnavailable("storage unavailable: %v", err)
	}
	for _, post := range posts {
		post.IsLikedByUser = liked[post.ID]
	}
	return nil
}
