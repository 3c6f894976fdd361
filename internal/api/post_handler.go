package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/service"
)

// PostHandler handles post endpoints
type PostHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(services *service.Services, log zerolog.Logger) *PostHandler {
	return &PostHandler{
		services: services,
		log:      log.With().Str("handler", "post").Logger(),
	}
}

// pageParams reads limit/offset from the query string. Bounds are
// enforced service-side.
func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	return limit, offset
}

// viewerParam is the optional caller address used to overlay like status
func viewerParam(c *gin.Context) string {
	return c.Query("user_address")
}

// CreatePost handles POST /api/posts
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	post, err := h.services.Forum.CreatePost(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, post)
}

// CreatePostAsync handles POST /api/posts/async
func (h *PostHandler) CreatePostAsync(c *gin.Context) {
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	task, err := h.services.Task.SubmitPost(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, task)
}

// ListPosts handles GET /api/posts
func (h *PostHandler) ListPosts(c *gin.Context) {
	limit, offset := pageParams(c)

	posts, hasMore, err := h.services.Query.ListPosts(c.Request.Context(), limit, offset, viewerParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"posts":    posts,
		"has_more": hasMore,
	})
}

// GetPost handles GET /api/posts/:post_id
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.services.Query.GetPost(c.Request.Context(), c.Param("post_id"), viewerParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, post)
}

// ToggleLike handles POST /api/posts/:post_id/like
func (h *PostHandler) ToggleLike(c *gin.Context) {
	var req struct {
		UserAddress string `json:"user_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	liked, count, err := h.services.Forum.TogglePostLike(c.Request.Context(), c.Param("post_id"), req.UserAddress)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"is_liked": liked,
		"likes":    count,
	})
}

// DailyRecommendations handles GET /api/recommendations/daily
func (h *PostHandler) DailyRecommendations(c *gin.Context) {
	result, err := h.services.Query.DailyRecommendations(c.Request.Context(), viewerParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}
