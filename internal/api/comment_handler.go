package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/service"
)

// CommentHandler handles comment endpoints
type CommentHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(services *service.Services, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		services: services,
		log:      log.With().Str("handler", "comment").Logger(),
	}
}

// CreateComment handles POST /api/posts/:post_id/comments
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}
	req.PostID = c.Param("post_id")

	comment, err := h.services.Forum.CreateComment(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, comment)
}

// CreateCommentAsync handles POST /api/comments/async
func (h *CommentHandler) CreateCommentAsync(c *gin.Context) {
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	task, err := h.services.Task.SubmitComment(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, task)
}

// ListComments handles GET /api/posts/:post_id/comments
func (h *CommentHandler) ListComments(c *gin.Context) {
	limit, offset := pageParams(c)

	comments, hasMore, err := h.services.Query.ListComments(c.Request.Context(), c.Param("post_id"), limit, offset, viewerParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"comments": comments,
		"has_more": hasMore,
	})
}

// ToggleLike handles POST /api/comments/:comment_id/like
func (h *CommentHandler) ToggleLike(c *gin.Context) {
	var req struct {
		UserAddress string `json:"user_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	liked, count, err := h.services.Forum.ToggleCommentLike(c.Request.Context(), c.Param("comment_id"), req.UserAddress)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"is_liked": liked,
		"likes":    count,
	})
}
