package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/repository"
	"github.com/web3-forum-api/internal/validation"
)

// socialService is the concrete implementation of SocialService
type socialService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

func newSocialService(repos *repository.Repositories, log zerolog.Logger) *socialService {
	return &socialService{
		repos: repos,
		log:   log.With().Str("service", "social").Logger(),
	}
}

func (s *socialService) checkEdge(follower, following string) error {
	if !validation.IsValidAddress(follower) {
		return errInvalidInputMsg("invalid follower address format")
	}
	if !validation.IsValidAddress(following) {
		return errInvalidInputMsg("invalid following address format")
	}
	if follower == following {
		return errInvalidInputMsg("cannot follow yourself")
	}
	return nil
}

// Follow adds an edge from follower to following. Repeating the call is
// not an error; the result reflects the edge state either way.
func (s *socialService) Follow(ctx context.Context, follower, following string) (*models.FollowResult, error) {
	if err := s.checkEdge(follower, following); err != nil {
		return nil, err
	}

	if _, err := s.repos.User.GetOrCreate(ctx, follower); err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if _, err := s.repos.User.GetOrCreate(ctx, following); err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	err := s.repos.Follow.Follow(ctx, follower, following)
	switch {
	case err == nil:
		s.log.Info().Str("follower", follower).Str("following", following).Msg("Follow edge added")
	case errors.Is(err, repository.ErrAlreadyFollowing):
		// idempotent
	case errors.Is(err, repository.ErrSelfFollow):
		return nil, errInvalidInputMsg("cannot follow yourself")
	default:
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	return s.followResult(ctx, following, true)
}

// Unfollow removes the edge from follower to following. Removing an
// absent edge is not an error.
func (s *socialService) Unfollow(ctx context.Context, follower, following string) (*models.FollowResult, error) {
	if err := s.checkEdge(follower, following); err != nil {
		return nil, err
	}

	err := s.repos.Follow.Unfollow(ctx, follower, following)
	switch {
	case err == nil:
		s.log.Info().Str("follower", follower).Str("following", following).Msg("Follow edge removed")
	case errors.Is(err, repository.ErrNotFollowing):
		// idempotent
	default:
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	return s.followResult(ctx, following, false)
}

func (s *socialService) followResult(ctx context.Context, following string, isFollowing bool) (*models.FollowResult, error) {
	stats, err := s.repos.Follow.Stats(ctx, following)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	return &models.FollowResult{
		IsFollowing:    isFollowing,
		FollowersCount: stats.FollowersCount,
	}, nil
}

// Status reports whether follower follows following and whether the
// relationship is mutual
func (s *socialService) Status(ctx context.Context, follower, following string) (*models.FollowStatus, error) {
	if !validation.IsValidAddress(follower) || !validation.IsValidAddress(following) {
		return nil, errInvalidInputMsg("invalid wallet address format")
	}

	forward, err := s.repos.Follow.IsFollowing(ctx, follower, following)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	backward := false
	if forward {
		backward, err = s.repos.Follow.IsFollowing(ctx, following, follower)
		if err != nil {
			return nil, errBackendUnavailable("storage unavailable: %v", err)
		}
	}

	return &models.FollowStatus{IsFollowing: forward, IsMutual: forward && backward}, nil
}

// Following lists the users the address follows
func (s *socialService) Following(ctx context.Context, address string, limit, offset int) ([]*models.UserProfile, bool, error) {
	return s.listEdges(ctx, address, limit, offset, s.repos.Follow.Following)
}

// Followers lists the users following the address
func (s *socialService) Followers(ctx context.Context, address string, limit, offset int) ([]*models.UserProfile, bool, error) {
	return s.listEdges(ctx, address, limit, offset, s.repos.Follow.Followers)
}

// Friends lists mutual follows
func (s *socialService) Friends(ctx context.Context, address string, limit, offset int) ([]*models.UserProfile, bool, error) {
	return s.listEdges(ctx, address, limit, offset, s.repos.Follow.Friends)
}

func (s *socialService) listEdges(ctx context.Context, address string, limit, offset int,
	list func(context.Context, string, int, int) ([]string, error)) ([]*models.UserProfile, bool, error) {

	if !validation.IsValidAddress(address) {
		return nil, false, errInvalidInputMsg("invalid wallet address format")
	}
	limit, offset = NormalizePage(limit, offset)

	addresses, err := list(ctx, address, limit, offset)
	if err != nil {
		return nil, false, errBackendUnavailable("storage unavailable: %v", err)
	}

	profiles := make([]*models.UserProfile, 0, len(addresses))
	for _, addr := range addresses {
		user, err := s.repos.User.GetByAddress(ctx, addr)
		if err != nil {
			return nil, false, errBackendUnavailable("storage unavailable: %v", err)
		}
		if user == nil {
			continue
		}
		profiles = append(profiles, &models.UserProfile{
			Address:       user.Address,
			Username:      user.DisplayName(),
			HasUsername:   user.HasUsername,
			AvatarURL:     user.AvatarURL,
			Bio:           user.Bio,
			PostsCount:    user.PostsCount,
			CommentsCount: user.CommentsCount,
			Reputation:    user.Reputation(),
			CreatedAt:     user.CreatedAt,
		})
	}
	return profiles, len(addresses) == limit, nil
}

// Stats returns the follow counters for one user
func (s *socialService) Stats(ctx context.Context, address string) (*models.FollowStats, error) {
	if !validation.IsValidAddress(address) {
		return nil, errInvalidInputMsg("invalid wallet address format")
	}
	stats, err := s.repos.Follow.Stats(ctx, address)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	return stats, nil
}
