package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/service"
)

// SocialHandler handles follow graph endpoints
type SocialHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewSocialHandler creates a new SocialHandler
func NewSocialHandler(services *service.Services, log zerolog.Logger) *SocialHandler {
	return &SocialHandler{
		services: services,
		log:      log.With().Str("handler", "social").Logger(),
	}
}

// Follow handles POST /api/follow
func (h *SocialHandler) Follow(c *gin.Context) {
	var req models.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Social.Follow(c.Request.Context(), req.FollowerAddress, req.FollowingAddress)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Unfollow handles POST /api/unfollow
func (h *SocialHandler) Unfollow(c *gin.Context) {
	var req models.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	result, err := h.services.Social.Unfollow(c.Request.Context(), req.FollowerAddress, req.FollowingAddress)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// Status handles GET /api/follow/status
func (h *SocialHandler) Status(c *gin.Context) {
	follower := c.Query("follower")
	following := c.Query("following")
	if follower == "" || following == "" {
		failBadRequest(c, "follower and following query parameters are required")
		return
	}

	status, err := h.services.Social.Status(c.Request.Context(), follower, following)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, status)
}

// Following handles GET /api/users/:address/following
func (h *SocialHandler) Following(c *gin.Context) {
	h.listEdges(c, h.services.Social.Following, "following")
}

// Followers handles GET /api/users/:address/followers
func (h *SocialHandler) Followers(c *gin.Context) {
	h.listEdges(c, h.services.Social.Followers, "followers")
}

// Friends handles GET /api/users/:address/friends
func (h *SocialHandler) Friends(c *gin.Context) {
	h.listEdges(c, h.services.Social.Friends, "friends")
}

func (h *SocialHandler) listEdges(c *gin.Context,
	list func(ctx context.Context, address string, limit, offset int) ([]*models.UserProfile, bool, error), key string) {

	limit, offset := pageParams(c)

	profiles, hasMore, err := list(c.Request.Context(), c.Param("address"), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		key:        profiles,
		"has_more": hasMore,
	})
}

// FollowStats handles GET /api/users/:address/follow-stats
func (h *SocialHandler) FollowStats(c *gin.Context) {
	stats, err := h.services.Social.Stats(c.Request.Context(), c.Param("address"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}
