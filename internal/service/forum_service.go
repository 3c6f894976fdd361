package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/cache"
	"github.com/web3-forum-api/internal/chain"
	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/repository"
	"github.com/web3-forum-api/internal/validation"
)

// DuplicateWindow is the span inside which identical content from the
// same author is rejected. Best-effort: concurrent submissions can race
// through it.
const DuplicateWindow = 5 * time.Minute

// ChainVerifier is the slice of the chain client the forum service
// depends on. A nil verifier means offline mode: hashes are checked for
// format and reuse only.
type ChainVerifier interface {
	VerifyTransaction(ctx context.Context, hash, expectedSender string) *chain.Result
	UsernameOf(ctx context.Context, address string) (string, error)
}

// forumService is the concrete implementation of ForumService
type forumService struct {
	repos    *repository.Repositories
	cache    cache.Cache
	verifier ChainVerifier
	log      zerolog.Logger
}

func newForumService(repos *repository.Repositories, c cache.Cache, verifier ChainVerifier, log zerolog.Logger) *forumService {
	return &forumService{
		repos:    repos,
		cache:    c,
		verifier: verifier,
		log:      log.With().Str("service", "forum").Logger(),
	}
}

// CreatePost runs the full submission pipeline: username gate, input
// validation, duplicate window, replay protection, chain verification,
// then persistence and counter updates.
func (s *forumService) CreatePost(ctx context.Context, req *models.CreatePostRequest) (*models.Post, error) {
	if fields := validation.ValidatePost(req); len(fields) > 0 {
		return nil, errInvalidInput(fields)
	}

	user, err := s.repos.User.GetOrCreate(ctx, req.UserAddress)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if !user.HasUsername {
		return nil, errPermissionDenied("register a username before posting")
	}

	dup, err := s.repos.Post.FindRecentDuplicate(ctx, req.UserAddress, req.Title, req.Content, DuplicateWindow)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if dup {
		return nil, errDuplicate("identical post submitted within the last %s", DuplicateWindow)
	}

	now := time.Now()
	post := &models.Post{
		ID:          uuid.NewString(),
		UserAddress: req.UserAddress,
		Title:       req.Title,
		Content:     req.Content,
		Tags:        req.Tags,
		ImageURL:    req.ImageURL,
		ChainPostID: req.ChainPostID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if req.TransactionHash != "" {
		// Burn the hash before persisting the post: a failed write must
		// not leave the hash replayable.
		if err := s.consumeTransaction(ctx, req.TransactionHash, req.UserAddress,
			models.TransactionTypePost, &post.ID, nil); err != nil {
			return nil, err
		}
		post.TransactionHash = &req.TransactionHash
	}

	if err := s.repos.Post.Create(ctx, post); err != nil {
		return nil, errBackendUnavailable("failed to persist post: %v", err)
	}
	if err := s.repos.User.IncrementPosts(ctx, req.UserAddress); err != nil {
		s.log.Error().Err(err).Str("address", req.UserAddress).Msg("Failed to bump post counter")
	}
	if err := s.cache.InvalidatePosts(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Post cache invalidation failed")
	}

	post.Username = user.DisplayName()
	s.log.Info().Str("post_id", post.ID).Str("address", req.UserAddress).Msg("Post created")
	return post, nil
}

// CreateComment mirrors the post pipeline, plus post existence and
// parent consistency checks
func (s *forumService) CreateComment(ctx context.Context, req *models.CreateCommentRequest) (*models.Comment, error) {
	if fields := validation.ValidateComment(req); len(fields) > 0 {
		return nil, errInvalidInput(fields)
	}

	user, err := s.repos.User.GetOrCreate(ctx, req.UserAddress)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if !user.HasUsername {
		return nil, errPermissionDenied("register a username before commenting")
	}

	post, err := s.repos.Post.GetByID(ctx, req.PostID)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if post == nil {
		return nil, errNotFound("post %s not found", req.PostID)
	}

	if req.ParentID != nil {
		parent, err := s.repos.Comment.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, errBackendUnavailable("storage unavailable: %v", err)
		}
		if parent == nil {
			return nil, errNotFound("parent comment %s not found", *req.ParentID)
		}
		if parent.PostID != req.PostID {
			return nil, errInvalidInputMsg("parent comment belongs to a different post")
		}
	}

	dup, err := s.repos.Comment.FindRecentDuplicate(ctx, req.UserAddress, req.PostID, req.Content, DuplicateWindow)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if dup {
		return nil, errDuplicate("identical comment submitted within the last %s", DuplicateWindow)
	}

	comment := &models.Comment{
		ID:          uuid.NewString(),
		PostID:      req.PostID,
		ParentID:    req.ParentID,
		UserAddress: req.UserAddress,
		Content:     req.Content,
		CreatedAt:   time.Now(),
	}

	if req.TransactionHash != "" {
		if err := s.consumeTransaction(ctx, req.TransactionHash, req.UserAddress,
			models.TransactionTypeComment, nil, &comment.ID); err != nil {
			return nil, err
		}
		comment.TransactionHash = &req.TransactionHash
	}

	if err := s.repos.Comment.Create(ctx, comment); err != nil {
		return nil, errBackendUnavailable("failed to persist comment: %v", err)
	}
	if err := s.repos.Post.IncrementComments(ctx, req.PostID); err != nil {
		s.log.Error().Err(err).Str("post_id", req.PostID).Msg("Failed to bump comment counter")
	}
	if err := s.repos.User.IncrementComments(ctx, req.UserAddress); err != nil {
		s.log.Error().Err(err).Str("address", req.UserAddress).Msg("Failed to bump user comment counter")
	}
	if err := s.cache.InvalidateComments(ctx, req.PostID); err != nil {
		s.log.Warn().Err(err).Msg("Comment cache invalidation failed")
	}
	if err := s.cache.InvalidatePosts(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Post cache invalidation failed")
	}

	comment.Username = user.DisplayName()
	s.log.Info().Str("comment_id", comment.ID).Str("post_id", req.PostID).Msg("Comment created")
	return comment, nil
}

// consumeTransaction verifies a hash against the chain (when a verifier
// is configured) and records it as used. Replay is rejected both by the
// pre-check and by the record's uniqueness constraint.
func (s *forumService) consumeTransaction(ctx context.Context, hash, address string, txType models.TransactionType, postID, commentID *string) error {
	// Hex hashes are case-insensitive; normalize so both storage
	// backends agree on what counts as a replay.
	hash = strings.ToLower(hash)

	used, err := s.repos.Transaction.IsUsed(ctx, hash)
	if err != nil {
		return errBackendUnavailable("storage unavailable: %v", err)
	}
	if used {
		return errReplay("transaction hash already used")
	}

	record := &models.UsedTransaction{
		ID:              uuid.NewString(),
		TransactionHash: hash,
		TransactionType: txType,
		UserAddress:     address,
		PostID:          postID,
		CommentID:       commentID,
		VerifiedAt:      time.Now(),
	}

	if s.verifier != nil {
		result := s.verifier.VerifyTransaction(ctx, hash, address)
		switch result.Outcome {
		case chain.OutcomeInvalid:
			return errChainVerification("transaction rejected: %s", result.Reason)
		case chain.OutcomeUnavailable:
			// Degrade to offline mode for this request rather than hang
			// or fail it; the hash is still burned below.
			s.log.Warn().Str("hash", hash).Str("reason", result.Reason).
				Msg("Chain endpoint unavailable, accepting without on-chain verification")
		case chain.OutcomeVerified:
			record.BlockNumber = result.BlockNumber
		}
	}

	if err := s.repos.Transaction.Record(ctx, record); err != nil {
		if errors.Is(err, repository.ErrTransactionUsed) {
			return errReplay("transaction hash already used")
		}
		return errBackendUnavailable("failed to record transaction: %v", err)
	}
	return nil
}

// TogglePostLike flips the caller's like on a post and returns the
// liked state plus the new count
func (s *forumService) TogglePostLike(ctx context.Context, postID, address string) (bool, int, error) {
	if !validation.IsValidAddress(address) {
		return false, 0, errInvalidInputMsg("invalid wallet address format")
	}

	post, err := s.repos.Post.GetByID(ctx, postID)
	if err != nil {
		return false, 0, errBackendUnavailable("storage unavailable: %v", err)
	}
	if post == nil {
		return false, 0, errNotFound("post %s not found", postID)
	}

	liked, likes, err := s.repos.Like.TogglePostLike(ctx, postID, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, 0, errNotFound("post %s not found", postID)
		}
		return false, 0, errBackendUnavailable("storage unavailable: %v", err)
	}

	if err := s.cache.InvalidatePosts(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Post cache invalidation failed")
	}
	return liked, likes, nil
}

// ToggleCommentLike flips the caller's like on a comment
func (s *forumService) ToggleCommentLike(ctx context.Context, commentID, address string) (bool, int, error) {
	if !validation.IsValidAddress(address) {
		return false, 0, errInvalidInputMsg("invalid wallet address format")
	}

	comment, err := s.repos.Comment.GetByID(ctx, commentID)
	if err != nil {
		return false, 0, errBackendUnavailable("storage unavailable: %v", err)
	}
	if comment == nil {
		return false, 0, errNotFound("comment %s not found", commentID)
	}

	liked, likes, err := s.repos.Like.ToggleCommentLike(ctx, commentID, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, 0, errNotFound("comment %s not found", commentID)
		}
		return false, 0, errBackendUnavailable("storage unavailable: %v", err)
	}

	if err := s.cache.InvalidateComments(ctx, comment.PostID); err != nil {
		s.log.Warn().Err(err).Msg("Comment cache invalidation failed")
	}
	return liked, likes, nil
}

// RegisterUsername assigns a unique, policy-conforming username to an
// address. At most one registration per address; concurrent claims of
// the same name resolve to one winner via the storage constraint.
func (s *forumService) RegisterUsername(ctx context.Context, req *models.RegisterUsernameRequest) (*models.User, error) {
	if !validation.IsValidAddress(req.UserAddress) {
		return nil, errInvalidInputMsg("invalid wallet address format")
	}

	username := validation.NormalizeUsername(req.Username)
	if fields := validation.ValidateUsername(username); len(fields) > 0 {
		return nil, errInvalidInput(fields)
	}

	user, err := s.repos.User.GetOrCreate(ctx, req.UserAddress)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if user.HasUsername {
		return nil, errDuplicate("address already has a registered username")
	}

	if req.TransactionHash != "" {
		if !validation.IsValidTransactionHash(req.TransactionHash) {
			return nil, errInvalidInputMsg("invalid transaction hash format")
		}
		if err := s.consumeTransaction(ctx, req.TransactionHash, req.UserAddress,
			models.TransactionTypeUsername, nil, nil); err != nil {
			return nil, err
		}
	}

	if err := s.repos.User.RegisterUsername(ctx, req.UserAddress, username); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, errDuplicate("username %q is taken", username)
		}
		return nil, errBackendUnavailable("failed to register username: %v", err)
	}

	user.Username = username
	user.HasUsername = true
	s.log.Info().Str("address", req.UserAddress).Str("username", username).Msg("Username registered")
	return user, nil
}

// CheckUsername reports whether a name is free, returning the
// normalized form that would be registered
func (s *forumService) CheckUsername(ctx context.Context, username string) (string, bool, error) {
	normalized := validation.NormalizeUsername(username)
	if fields := validation.ValidateUsername(normalized); len(fields) > 0 {
		return normalized, false, errInvalidInput(fields)
	}

	exists, err := s.repos.User.UsernameExists(ctx, normalized)
	if err != nil {
		return normalized, false, errBackendUnavailable("storage unavailable: %v", err)
	}
	return normalized, !exists, nil
}

// SyncUsername pulls the on-chain username for an address into the
// store. Requires a configured verifier.
func (s *forumService) SyncUsername(ctx context.Context, address string) (*models.User, error) {
	if !validation.IsValidAddress(address) {
		return nil, errInvalidInputMsg("invalid wallet address format")
	}
	if s.verifier == nil {
		return nil, errBackendUnavailable("chain verification is not configured")
	}

	chainName, err := s.verifier.UsernameOf(ctx, address)
	if err != nil {
		return nil, errBackendUnavailable("chain lookup failed: %v", err)
	}
	if chainName == "" {
		return nil, errNotFound("no on-chain username for %s", address)
	}

	user, err := s.repos.User.GetOrCreate(ctx, address)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if user.HasUsername {
		if user.Username != chainName {
			s.log.Warn().Str("address", address).Str("local", user.Username).
				Str("chain", chainName).Msg("Local username diverges from chain")
		}
		return user, nil
	}

	normalized := validation.NormalizeUsername(chainName)
	if err := s.repos.User.RegisterUsername(ctx, address, normalized); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, errDuplicate("on-chain username %q is taken locally", normalized)
		}
		return nil, errBackendUnavailable("failed to register username: %v", err)
	}

	user.Username = normalized
	user.HasUsername = true
	s.log.Info().Str("address", address).Str("username", normalized).Msg("Username synced from chain")
	return user, nil
}

// GetProfile assembles the public profile for an address
func (s *forumService) GetProfile(ctx context.Context, address string) (*models.UserProfile, error) {
	if !validation.IsValidAddress(address) {
		return nil, errInvalidInputMsg("invalid wallet address format")
	}

	user, err := s.repos.User.GetByAddress(ctx, address)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}
	if user == nil {
		return nil, errNotFound("user %s not found", address)
	}

	stats, err := s.repos.Follow.Stats(ctx, address)
	if err != nil {
		return nil, errBackendUnavailable("storage unavailable: %v", err)
	}

	return &models.UserProfile{
		Address:       user.Address,
		Username:      user.DisplayName(),
		HasUsername:   user.HasUsername,
		AvatarURL:     user.AvatarURL,
		Bio:           user.Bio,
		PostsCount:    user.PostsCount,
		CommentsCount: user.CommentsCount,
		Reputation:    user.Reputation(),
		Followers:     stats.FollowersCount,
		Following:     stats.FollowingCount,
		CreatedAt:     user.CreatedAt,
	}, nil
}

// Username returns the registered name for an address, or "" when the
// address is unknown or has not registered one.
func (s *forumService) Username(ctx context.Context, address string) (string, error) {
	if !validation.IsValidAddress(address) {
		return "", errInvalidInputMsg("invalid wallet address format")
	}

	user, err := s.repos.User.GetByAddress(ctx, address)
	if err != nil {
		return "", errBackendUnavailable("storage unavailable: %v", err)
	}
	if user == nil || !user.HasUsername {
		return "", nil
	}
	return user.Username, nil
}

// HasUsername reports whether the address has registered a name.
// Unknown addresses simply have none.
func (s *forumService) HasUsername(ctx context.Context, address string) (bool, error) {
	if !validation.IsValidAddress(address) {
		return false, errInvalidInputMsg("invalid wallet address format")
	}

	user, err := s.repos.User.GetByAddress(ctx, address)
	if err != nil {
		return false, errBackendUnavailable("storage unavailable: %v", err)
	}
	return user != nil && user.HasUsername, nil
}

// UpdateAvatar persists the avatar URL for an address. The handler owns
// file validation and storage.
func (s *forumService) UpdateAvatar(ctx context.Context, address, avatarURL string) error {
	if !validation.IsValidAddress(address) {
		return errInvalidInputMsg("invalid wallet address format")
	}
	if _, err := s.repos.User.GetOrCreate(ctx, address); err != nil {
		return errBackendUnavailable("storage unavailable: %v", err)
	}
	if err := s.repos.User.UpdateAvatar(ctx, address, avatarURL); err != nil {
		return errBackendUnavailable("failed to update avatar: %v", err)
	}
	return nil
}

// UpdateBio persists the user's bio
func (s *forumService) UpdateBio(ctx context.Context, req *models.UpdateBioRequest) error {
	if fields := validation.ValidateBio(req); len(fields) > 0 {
		return errInvalidInput(fields)
	}
	if _, err := s.repos.User.GetOrCreate(ctx, req.UserAddress); err != nil {
		return errBackendUnavailable("storage unavailable: %v", err)
	}
	if err := s.repos.User.UpdateBio(ctx, req.UserAddress, req.Bio); err != nil {
		return errBackendUnavailable("failed to update bio: %v", err)
	}
	return nil
}
