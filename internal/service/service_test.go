package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-forum-api/internal/cache"
	"github.com/web3-forum-api/internal/chain"
	"github.com/web3-forum-api/internal/config"
	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/repository/memory"
	"github.com/web3-forum-api/internal/service"
)

const (
	addrAlice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrBob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrCarol = "0xcccccccccccccccccccccccccccccccccccccccc"
)

// txHash returns a distinct well-formed transaction hash per test step
func txHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func newTestServices(t *testing.T, workers int) *service.Services {
	t.Helper()
	store := memory.NewStore()
	cfg := &config.Config{}
	cfg.Queue.Workers = workers
	cfg.Queue.TaskRetention = time.Hour
	return service.NewServices(store.Repositories(), cache.NewNoop(), nil, cfg, zerolog.Nop())
}

func registerUser(t *testing.T, svcs *service.Services, address, username string) {
	t.Helper()
	_, err := svcs.Forum.RegisterUsername(context.Background(), &models.RegisterUsernameRequest{
		UserAddress: address,
		Username:    username,
	})
	require.NoError(t, err)
}

func createPost(t *testing.T, svcs *service.Services, address, title, content string) *models.Post {
	t.Helper()
	post, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress: address,
		Title:       title,
		Content:     content,
	})
	require.NoError(t, err)
	return post
}

func kindOf(err error) service.ErrorKind {
	return service.AsServiceError(err).Kind
}

func TestCreatePostRequiresUsername(t *testing.T) {
	svcs := newTestServices(t, 0)

	_, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress: addrAlice,
		Title:       "Hello",
		Content:     "World",
	})
	require.Error(t, err)
	assert.Equal(t, service.KindPermissionDenied, kindOf(err))
}

func TestCreatePostLifecycle(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")

	post := createPost(t, svcs, addrAlice, "Hello", "World")
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, 0, post.Likes)
	assert.Equal(t, 0, post.CommentsCount)

	// Identical resubmission inside the window is rejected
	_, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress: addrAlice,
		Title:       "Hello",
		Content:     "World",
	})
	require.Error(t, err)
	assert.Equal(t, service.KindDuplicate, kindOf(err))

	// Different content from the same author goes through
	createPost(t, svcs, addrAlice, "Hello again", "Different body")
}

func TestCreatePostInvalidInput(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")

	_, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress: addrAlice,
		Title:       "",
		Content:     "body",
	})
	require.Error(t, err)
	svcErr := service.AsServiceError(err)
	assert.Equal(t, service.KindInvalidInput, svcErr.Kind)
	assert.NotEmpty(t, svcErr.Fields)
}

func TestReplayProtection(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")

	hash := txHash(1)
	_, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "On-chain post",
		Content:         "Backed by a transaction",
		TransactionHash: hash,
	})
	require.NoError(t, err)

	// Reusing the hash is rejected regardless of submission type
	_, err = svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Another post",
		Content:         "Trying to reuse the hash",
		TransactionHash: hash,
	})
	require.Error(t, err)
	assert.Equal(t, service.KindReplayDetected, kindOf(err))
}

func TestReplayIgnoresHashCase(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")

	_, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Backed",
		Content:         "By a transaction",
		TransactionHash: "0x" + strings.Repeat("AB", 32),
	})
	require.NoError(t, err)

	// Same hash with flipped hex case is the same transaction
	_, err = svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Other",
		Content:         "Content",
		TransactionHash: "0x" + strings.Repeat("ab", 32),
	})
	require.Error(t, err)
	assert.Equal(t, service.KindReplayDetected, kindOf(err))
}

// stubVerifier returns a fixed verification result
type stubVerifier struct {
	result chain.Result
}

func (v *stubVerifier) VerifyTransaction(ctx context.Context, hash, expectedSender string) *chain.Result {
	r := v.result
	return &r
}

func (v *stubVerifier) UsernameOf(ctx context.Context, address string) (string, error) {
	return "", nil
}

func newVerifiedServices(t *testing.T, verifier service.ChainVerifier) *service.Services {
	t.Helper()
	store := memory.NewStore()
	cfg := &config.Config{}
	cfg.Queue.TaskRetention = time.Hour
	return service.NewServices(store.Repositories(), cache.NewNoop(), verifier, cfg, zerolog.Nop())
}

func TestChainVerificationRejection(t *testing.T) {
	verifier := &stubVerifier{result: chain.Result{Outcome: chain.OutcomeInvalid, Reason: "sender mismatch"}}
	svcs := newVerifiedServices(t, verifier)
	registerUser(t, svcs, addrAlice, "alice")

	_, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Post",
		Content:         "Body",
		TransactionHash: txHash(2),
	})
	require.Error(t, err)
	assert.Equal(t, service.KindChainVerification, kindOf(err))
}

func TestChainUnavailableDegrades(t *testing.T) {
	verifier := &stubVerifier{result: chain.Result{Outcome: chain.OutcomeUnavailable, Reason: "timeout"}}
	svcs := newVerifiedServices(t, verifier)
	registerUser(t, svcs, addrAlice, "alice")

	hash := txHash(3)
	_, err := svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Post",
		Content:         "Accepted despite chain outage",
		TransactionHash: hash,
	})
	require.NoError(t, err)

	// The hash is still burned
	_, err = svcs.Forum.CreatePost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Second",
		Content:         "Reuse attempt",
		TransactionHash: hash,
	})
	require.Error(t, err)
	assert.Equal(t, service.KindReplayDetected, kindOf(err))
}

func TestCommentPipeline(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	registerUser(t, svcs, addrBob, "bob")
	post := createPost(t, svcs, addrAlice, "Discussion", "Open thread")

	comment, err := svcs.Forum.CreateComment(context.Background(), &models.CreateCommentRequest{
		PostID:      post.ID,
		UserAddress: addrBob,
		Content:     "First reply",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", comment.Username)

	// Reply threading
	reply, err := svcs.Forum.CreateComment(context.Background(), &models.CreateCommentRequest{
		PostID:      post.ID,
		ParentID:    &comment.ID,
		UserAddress: addrAlice,
		Content:     "Nested reply",
	})
	require.NoError(t, err)
	assert.Equal(t, comment.ID, *reply.ParentID)

	// Parent must belong to the same post
	other := createPost(t, svcs, addrAlice, "Other thread", "Elsewhere")
	_, err = svcs.Forum.CreateComment(context.Background(), &models.CreateCommentRequest{
		PostID:      other.ID,
		ParentID:    &comment.ID,
		UserAddress: addrBob,
		Content:     "Cross-post reply",
	})
	require.Error(t, err)
	assert.Equal(t, service.KindInvalidInput, kindOf(err))

	// Comment counter is visible on the post
	got, err := svcs.Query.GetPost(context.Background(), post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentsCount)

	_, err = svcs.Forum.CreateComment(context.Background(), &models.CreateCommentRequest{
		PostID:      "no-such-post",
		UserAddress: addrBob,
		Content:     "Orphan",
	})
	require.Error(t, err)
	assert.Equal(t, service.KindNotFound, kindOf(err))
}

func TestLikeToggle(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	post := createPost(t, svcs, addrAlice, "Likeable", "Content")

	liked, count, err := svcs.Forum.TogglePostLike(context.Background(), post.ID, addrBob)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, count)

	liked, count, err = svcs.Forum.TogglePostLike(context.Background(), post.ID, addrBob)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 0, count)

	_, _, err = svcs.Forum.TogglePostLike(context.Background(), "missing", addrBob)
	require.Error(t, err)
	assert.Equal(t, service.KindNotFound, kindOf(err))
}

func TestRegisterUsernameRules(t *testing.T) {
	svcs := newTestServices(t, 0)

	user, err := svcs.Forum.RegisterUsername(context.Background(), &models.RegisterUsernameRequest{
		UserAddress: addrAlice,
		Username:    "  alice  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.HasUsername)

	// One username per address
	_, err = svcs.Forum.RegisterUsername(context.Background(), &models.RegisterUsernameRequest{
		UserAddress: addrAlice,
		Username:    "alice2",
	})
	require.Error(t, err)
	assert.Equal(t, service.KindDuplicate, kindOf(err))

	// Names are unique across addresses
	_, err = svcs.Forum.RegisterUsername(context.Background(), &models.RegisterUsernameRequest{
		UserAddress: addrBob,
		Username:    "alice",
	})
	require.Error(t, err)
	assert.Equal(t, service.KindDuplicate, kindOf(err))

	normalized, available, err := svcs.Forum.CheckUsername(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", normalized)
	assert.True(t, available)

	_, available, err = svcs.Forum.CheckUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestProfileReputation(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	post := createPost(t, svcs, addrAlice, "One", "Post")
	_, err := svcs.Forum.CreateComment(context.Background(), &models.CreateCommentRequest{
		PostID:      post.ID,
		UserAddress: addrAlice,
		Content:     "Self reply",
	})
	require.NoError(t, err)

	profile, err := svcs.Forum.GetProfile(context.Background(), addrAlice)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.PostsCount)
	assert.Equal(t, 1, profile.CommentsCount)
	assert.Equal(t, 15, profile.Reputation)
}

func TestListPostsPagination(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	for i := 0; i < 5; i++ {
		createPost(t, svcs, addrAlice, fmt.Sprintf("Post %d", i), fmt.Sprintf("Body %d", i))
	}

	page, hasMore, err := svcs.Query.ListPosts(context.Background(), 3, 0, "")
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.True(t, hasMore)

	page, hasMore, err = svcs.Query.ListPosts(context.Background(), 3, 3, "")
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.False(t, hasMore)

	// Oversized limits are clamped
	page, _, err = svcs.Query.ListPosts(context.Background(), 10000, 0, "")
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestListPostsLikeOverlay(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	liked := createPost(t, svcs, addrAlice, "Liked", "By bob")
	createPost(t, svcs, addrAlice, "Not liked", "By anyone")

	_, _, err := svcs.Forum.TogglePostLike(context.Background(), liked.ID, addrBob)
	require.NoError(t, err)

	page, _, err := svcs.Query.ListPosts(context.Background(), 10, 0, addrBob)
	require.NoError(t, err)
	for _, p := range page {
		assert.Equal(t, p.ID == liked.ID, p.IsLikedByUser)
	}
}

func TestGetPostCountsView(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	post := createPost(t, svcs, addrAlice, "Viewed", "Content")

	got, err := svcs.Query.GetPost(context.Background(), post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views)

	got, err = svcs.Query.GetPost(context.Background(), post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)

	_, err = svcs.Query.GetPost(context.Background(), "missing", "")
	require.Error(t, err)
	assert.Equal(t, service.KindNotFound, kindOf(err))
}

func TestDailyRecommendations(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	registerUser(t, svcs, addrBob, "bob")

	hot := createPost(t, svcs, addrAlice, "Hot", "Popular content")
	cold := createPost(t, svcs, addrAlice, "Cold", "Ignored content")

	for _, addr := range []string{addrBob, addrCarol} {
		_, _, err := svcs.Forum.TogglePostLike(context.Background(), hot.ID, addr)
		require.NoError(t, err)
	}

	result, err := svcs.Query.DailyRecommendations(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Posts)
	assert.Equal(t, hot.ID, result.Posts[0].ID)
	assert.Greater(t, result.Posts[0].HeatScore, 0.0)
	assert.False(t, result.LastRefreshTime.IsZero())

	// Second read serves the persisted ranking; liking the cold post
	// now must not reorder today's list.
	_, _, err = svcs.Forum.TogglePostLike(context.Background(), cold.ID, addrBob)
	require.NoError(t, err)

	again, err := svcs.Query.DailyRecommendations(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, hot.ID, again.Posts[0].ID)
}

func TestGlobalStats(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")
	post := createPost(t, svcs, addrAlice, "Stats", "Content")
	_, err := svcs.Forum.CreateComment(context.Background(), &models.CreateCommentRequest{
		PostID:      post.ID,
		UserAddress: addrAlice,
		Content:     "Comment",
	})
	require.NoError(t, err)
	_, _, err = svcs.Forum.TogglePostLike(context.Background(), post.ID, addrBob)
	require.NoError(t, err)

	stats, err := svcs.Query.GlobalStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPosts)
	assert.Equal(t, 1, stats.TotalComments)
	assert.Equal(t, 1, stats.TotalLikes)
	assert.GreaterOrEqual(t, stats.TotalUsers, 1)
}

func TestFollowIdempotent(t *testing.T) {
	svcs := newTestServices(t, 0)

	result, err := svcs.Social.Follow(context.Background(), addrAlice, addrBob)
	require.NoError(t, err)
	assert.True(t, result.IsFollowing)
	assert.Equal(t, 1, result.FollowersCount)

	// Repeating reports the same state
	result, err = svcs.Social.Follow(context.Background(), addrAlice, addrBob)
	require.NoError(t, err)
	assert.True(t, result.IsFollowing)
	assert.Equal(t, 1, result.FollowersCount)

	result, err = svcs.Social.Unfollow(context.Background(), addrAlice, addrBob)
	require.NoError(t, err)
	assert.False(t, result.IsFollowing)
	assert.Equal(t, 0, result.FollowersCount)

	result, err = svcs.Social.Unfollow(context.Background(), addrAlice, addrBob)
	require.NoError(t, err)
	assert.False(t, result.IsFollowing)

	_, err = svcs.Social.Follow(context.Background(), addrAlice, addrAlice)
	require.Error(t, err)
	assert.Equal(t, service.KindInvalidInput, kindOf(err))
}

func TestFollowStatusAndFriends(t *testing.T) {
	svcs := newTestServices(t, 0)

	_, err := svcs.Social.Follow(context.Background(), addrAlice, addrBob)
	require.NoError(t, err)

	status, err := svcs.Social.Status(context.Background(), addrAlice, addrBob)
	require.NoError(t, err)
	assert.True(t, status.IsFollowing)
	assert.False(t, status.IsMutual)

	_, err = svcs.Social.Follow(context.Background(), addrBob, addrAlice)
	require.NoError(t, err)

	status, err = svcs.Social.Status(context.Background(), addrAlice, addrBob)
	require.NoError(t, err)
	assert.True(t, status.IsMutual)

	friends, _, err := svcs.Social.Friends(context.Background(), addrAlice, 20, 0)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, addrBob, friends[0].Address)
}

func TestTaskSynchronousMode(t *testing.T) {
	svcs := newTestServices(t, 0)
	registerUser(t, svcs, addrAlice, "alice")

	task, err := svcs.Task.SubmitPost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Queued",
		Content:         "Runs inline with zero workers",
		TransactionHash: txHash(10),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)

	got, err := svcs.Task.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)

	// A failing submission surfaces the error kind on the task
	task, err = svcs.Task.SubmitPost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrBob, // no username registered
		Title:           "Queued",
		Content:         "Should fail",
		TransactionHash: txHash(11),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Equal(t, string(service.KindPermissionDenied), task.ErrorKind)

	// Queued submissions require a transaction hash
	_, err = svcs.Task.SubmitPost(context.Background(), &models.CreatePostRequest{
		UserAddress: addrAlice,
		Title:       "No hash",
		Content:     "Rejected",
	})
	require.Error(t, err)
	assert.Equal(t, service.KindInvalidInput, kindOf(err))

	_, err = svcs.Task.GetTask(context.Background(), "no-such-task")
	require.Error(t, err)
	assert.Equal(t, service.KindNotFound, kindOf(err))
}

func TestTaskWorkerPool(t *testing.T) {
	svcs := newTestServices(t, 2)
	registerUser(t, svcs, addrAlice, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svcs.Task.StartProcessor(ctx)
	defer svcs.Task.StopProcessor()

	task, err := svcs.Task.SubmitPost(context.Background(), &models.CreatePostRequest{
		UserAddress:     addrAlice,
		Title:           "Async",
		Content:         "Processed by a worker",
		TransactionHash: txHash(20),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svcs.Task.GetTask(context.Background(), task.ID)
		if err != nil {
			return false
		}
		return got.Status == models.TaskStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	got, err := svcs.Task.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Result)
}
