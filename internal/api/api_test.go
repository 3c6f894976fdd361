package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-forum-api/internal/api"
	"github.com/web3-forum-api/internal/cache"
	"github.com/web3-forum-api/internal/config"
	"github.com/web3-forum-api/internal/repository/memory"
	"github.com/web3-forum-api/internal/service"
)

const (
	addrAlice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrBob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080"},
		Queue:  config.QueueConfig{Workers: 0, TaskRetention: time.Hour},
		Upload: config.UploadConfig{
			MaxAvatarSize: 5 * 1024 * 1024,
			AvatarDir:     t.TempDir(),
		},
	}

	log := zerolog.Nop()
	services := service.NewServices(store.Repositories(), cache.NewNoop(), nil, cfg, log)
	return api.NewRouter(services, cfg, log)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func registerUsername(t *testing.T, router *gin.Engine, address, username string) {
	t.Helper()
	code, env := doJSON(t, router, "POST", "/api/username/register", gin.H{
		"user_address": address,
		"username":     username,
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

// TestForumScenario walks the main submission path end to end: posting
// without a username fails, registration unlocks it, duplicate content
// is rejected, likes toggle.
func TestForumScenario(t *testing.T) {
	router := setupTestRouter(t)

	// No username yet
	code, env := doJSON(t, router, "POST", "/api/posts", gin.H{
		"user_address": addrAlice,
		"title":        "Hello",
		"content":      "World",
	})
	require.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.Success)
	assert.Equal(t, "permission_denied", env.Kind)

	registerUsername(t, router, addrAlice, "alice")

	code, env = doJSON(t, router, "POST", "/api/posts", gin.H{
		"user_address": addrAlice,
		"title":        "Hello",
		"content":      "World",
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)

	var post struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		Likes         int    `json:"likes"`
		CommentsCount int    `json:"comments_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, 0, post.Likes)
	assert.Equal(t, 0, post.CommentsCount)

	// Duplicate content inside the window
	code, env = doJSON(t, router, "POST", "/api/posts", gin.H{
		"user_address": addrAlice,
		"title":        "Hello",
		"content":      "World",
	})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_submission", env.Kind)

	// Like from another address
	code, env = doJSON(t, router, "POST", "/api/posts/"+post.ID+"/like", gin.H{
		"user_address": addrBob,
	})
	require.Equal(t, http.StatusOK, code)
	var likeResult struct {
		IsLiked bool `json:"is_liked"`
		Likes   int  `json:"likes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &likeResult))
	assert.True(t, likeResult.IsLiked)
	assert.Equal(t, 1, likeResult.Likes)

	// Unlike
	code, env = doJSON(t, router, "POST", "/api/posts/"+post.ID+"/like", gin.H{
		"user_address": addrBob,
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &likeResult))
	assert.False(t, likeResult.IsLiked)
	assert.Equal(t, 0, likeResult.Likes)
}

func TestReplayRejectedOverHTTP(t *testing.T) {
	router := setupTestRouter(t)
	registerUsername(t, router, addrAlice, "alice")

	hash := fmt.Sprintf("0x%064x", 7)
	code, _ := doJSON(t, router, "POST", "/api/posts", gin.H{
		"user_address":                addrAlice,
		"title":                       "Backed",
		"content":                     "By a transaction",
		"blockchain_transaction_hash": hash,
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := doJSON(t, router, "POST", "/api/posts", gin.H{
		"user_address":                addrAlice,
		"title":                       "Other",
		"content":                     "Content",
		"blockchain_transaction_hash": hash,
	})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "replay_detected", env.Kind)
}

func TestCommentsOverHTTP(t *testing.T) {
	router := setupTestRouter(t)
	registerUsername(t, router, addrAlice, "alice")
	registerUsername(t, router, addrBob, "bob")

	_, env := doJSON(t, router, "POST", "/api/posts", gin.H{
		"user_address": addrAlice,
		"title":        "Thread",
		"content":      "Open",
	})
	var post struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))

	code, env := doJSON(t, router, "POST", "/api/posts/"+post.ID+"/comments", gin.H{
		"user_address": addrBob,
		"content":      "Reply",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env = doJSON(t, router, "GET", "/api/posts/"+post.ID+"/comments", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Comments []struct {
			Content  string `json:"content"`
			Username string `json:"username"`
		} `json:"comments"`
		HasMore bool `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Comments, 1)
	assert.Equal(t, "Reply", page.Comments[0].Content)
	assert.Equal(t, "bob", page.Comments[0].Username)
	assert.False(t, page.HasMore)

	// Commenting on a missing post
	code, env = doJSON(t, router, "POST", "/api/posts/missing/comments", gin.H{
		"user_address": addrBob,
		"content":      "Orphan",
	})
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Kind)
}

func TestPaginationOverHTTP(t *testing.T) {
	router := setupTestRouter(t)
	registerUsername(t, router, addrAlice, "alice")

	for i := 0; i < 3; i++ {
		code, _ := doJSON(t, router, "POST", "/api/posts", gin.H{
			"user_address": addrAlice,
			"title":        fmt.Sprintf("Post %d", i),
			"content":      fmt.Sprintf("Body %d", i),
		})
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := doJSON(t, router, "GET", "/api/posts?limit=2&offset=0", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Posts   []json.RawMessage `json:"posts"`
		HasMore bool              `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Posts, 2)
	assert.True(t, page.HasMore)

	code, env = doJSON(t, router, "GET", "/api/posts?limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Posts, 1)
	assert.False(t, page.HasMore)
}

func TestUsernameEndpoints(t *testing.T) {
	router := setupTestRouter(t)
	registerUsername(t, router, addrAlice, "alice")

	code, env := doJSON(t, router, "GET", "/api/username/check?username=alice", nil)
	require.Equal(t, http.StatusOK, code)
	var check struct {
		Username  string `json:"username"`
		Available bool   `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.False(t, check.Available)

	// Second registration for the same address
	code, env = doJSON(t, router, "POST", "/api/username/register", gin.H{
		"user_address": addrAlice,
		"username":     "alice2",
	})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_submission", env.Kind)

	// Invalid name
	code, env = doJSON(t, router, "POST", "/api/username/register", gin.H{
		"user_address": addrBob,
		"username":     "x",
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", env.Kind)

	// Registered name is readable per address
	code, env = doJSON(t, router, "GET", "/api/users/"+addrAlice+"/username", nil)
	require.Equal(t, http.StatusOK, code)
	var name string
	require.NoError(t, json.Unmarshal(env.Data, &name))
	assert.Equal(t, "alice", name)

	// No registration yet: success with an empty payload
	code, env = doJSON(t, router, "GET", "/api/users/"+addrBob+"/username", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Empty(t, env.Data)

	code, env = doJSON(t, router, "GET", "/api/users/"+addrAlice+"/has-username", nil)
	require.Equal(t, http.StatusOK, code)
	var has struct {
		HasUsername bool `json:"has_username"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &has))
	assert.True(t, has.HasUsername)
}

func TestFollowEndpoints(t *testing.T) {
	router := setupTestRouter(t)

	code, env := doJSON(t, router, "POST", "/api/follow", gin.H{
		"follower_address":  addrAlice,
		"following_address": addrBob,
	})
	require.Equal(t, http.StatusOK, code)
	var result struct {
		IsFollowing    bool `json:"is_following"`
		FollowersCount int  `json:"followers_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.IsFollowing)
	assert.Equal(t, 1, result.FollowersCount)

	// Self-follow
	code, env = doJSON(t, router, "POST", "/api/follow", gin.H{
		"follower_address":  addrAlice,
		"following_address": addrAlice,
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", env.Kind)

	code, env = doJSON(t, router, "GET", "/api/users/"+addrBob+"/followers", nil)
	require.Equal(t, http.StatusOK, code)
	var followers struct {
		Followers []struct {
			Address string `json:"address"`
		} `json:"followers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &followers))
	require.Len(t, followers.Followers, 1)
	assert.Equal(t, addrAlice, followers.Followers[0].Address)
}

func TestAsyncSubmission(t *testing.T) {
	router := setupTestRouter(t)
	registerUsername(t, router, addrAlice, "alice")

	code, env := doJSON(t, router, "POST", "/api/posts/async", gin.H{
		"user_address":                addrAlice,
		"title":                       "Queued",
		"content":                     "Via task",
		"blockchain_transaction_hash": fmt.Sprintf("0x%064x", 42),
	})
	require.Equal(t, http.StatusAccepted, code)
	var task struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.NotEmpty(t, task.TaskID)

	// Zero workers configured: the task completes inline
	code, env = doJSON(t, router, "GET", "/api/tasks/"+task.TaskID, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, "completed", task.Status)

	// Async submissions require a hash
	code, env = doJSON(t, router, "POST", "/api/posts/async", gin.H{
		"user_address": addrAlice,
		"title":        "No hash",
		"content":      "Rejected",
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", env.Kind)

	code, env = doJSON(t, router, "GET", "/api/tasks/unknown", nil)
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Kind)
}

func TestAvatarUpload(t *testing.T) {
	router := setupTestRouter(t)

	// Minimal PNG header so content sniffing passes
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_address", addrAlice))
	part, err := mw.CreateFormFile("avatar", "avatar.png")
	require.NoError(t, err)
	_, err = part.Write(pngMagic)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/users/avatar/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var upload struct {
		AvatarURL string `json:"avatar_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &upload))
	assert.Contains(t, upload.AvatarURL, "/uploads/avatars/")

	// Non-image payloads are rejected
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_address", addrAlice))
	part, err = mw.CreateFormFile("avatar", "avatar.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("plain text, not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req = httptest.NewRequest("POST", "/api/users/avatar/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBioUpdate(t *testing.T) {
	router := setupTestRouter(t)

	code, _ := doJSON(t, router, "POST", "/api/users/bio/update", gin.H{
		"user_address": addrAlice,
		"bio":          "Building on-chain things",
	})
	require.Equal(t, http.StatusOK, code)

	code, env := doJSON(t, router, "GET", "/api/users/"+addrAlice, nil)
	require.Equal(t, http.StatusOK, code)
	var profile struct {
		Bio      string `json:"bio"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, "Building on-chain things", profile.Bio)
	assert.Equal(t, "user_aaaaaaaa", profile.Username)
}

func TestGlobalStatsEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	registerUsername(t, router, addrAlice, "alice")

	code, _ := doJSON(t, router, "POST", "/api/posts", gin.H{
		"user_address": addrAlice,
		"title":        "Stat",
		"content":      "Material",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := doJSON(t, router, "GET", "/api/stats/global", nil)
	require.Equal(t, http.StatusOK, code)
	var stats struct {
		TotalPosts int `json:"total_posts"`
		TotalUsers int `json:"total_users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalPosts)
	assert.GreaterOrEqual(t, stats.TotalUsers, 1)
}
