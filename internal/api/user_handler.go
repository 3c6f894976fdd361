package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/config"
	"github.com/web3-forum-api/internal/models"
	"github.com/web3-forum-api/internal/service"
	"github.com/web3-forum-api/internal/validation"
)

// UserHandler handles user identity and profile endpoints
type UserHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *UserHandler {
	return &UserHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "user").Logger(),
	}
}

// RegisterUsername handles POST /api/username/register
func (h *UserHandler) RegisterUsername(c *gin.Context) {
	var req models.RegisterUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	user, err := h.services.Forum.RegisterUsername(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

// CheckUsername handles GET /api/username/check
func (h *UserHandler) CheckUsername(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		failBadRequest(c, "username query parameter is required")
		return
	}

	normalized, available, err := h.services.Forum.CheckUsername(c.Request.Context(), username)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"username":  normalized,
		"available": available,
	})
}

// SyncUsername handles POST /api/username/sync
func (h *UserHandler) SyncUsername(c *gin.Context) {
	var req struct {
		UserAddress string `json:"user_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	user, err := h.services.Forum.SyncUsername(c.Request.Context(), req.UserAddress)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, user)
}

// GetUsername handles GET /api/users/:address/username. Addresses
// without a registered name get a null payload, not an error.
func (h *UserHandler) GetUsername(c *gin.Context) {
	username, err := h.services.Forum.Username(c.Request.Context(), c.Param("address"))
	if err != nil {
		fail(c, err)
		return
	}

	var data interface{}
	if username != "" {
		data = username
	}
	respond(c, http.StatusOK, data)
}

// HasUsername handles GET /api/users/:address/has-username
func (h *UserHandler) HasUsername(c *gin.Context) {
	has, err := h.services.Forum.HasUsername(c.Request.Context(), c.Param("address"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"has_username": has})
}

// GetProfile handles GET /api/users/:address
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.services.Forum.GetProfile(c.Request.Context(), c.Param("address"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// ListUserPosts handles GET /api/users/:address/posts
func (h *UserHandler) ListUserPosts(c *gin.Context) {
	limit, offset := pageParams(c)

	posts, hasMore, err := h.services.Query.ListUserPosts(c.Request.Context(), c.Param("address"), limit, offset, viewerParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"posts":    posts,
		"has_more": hasMore,
	})
}

// UpdateBio handles POST /api/users/bio/update
func (h *UserHandler) UpdateBio(c *gin.Context) {
	var req models.UpdateBioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failBadRequest(c, "invalid request body")
		return
	}

	if err := h.services.Forum.UpdateBio(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"bio": req.Bio})
}

// UploadAvatar handles POST /api/users/avatar/upload.
// Accepts multipart "user_address" and "avatar" parts, JPEG or PNG,
// capped by config.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	address := c.PostForm("user_address")
	if !validation.IsValidAddress(address) {
		failBadRequest(c, "invalid wallet address format")
		return
	}

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		failBadRequest(c, "avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > h.cfg.Upload.MaxAvatarSize {
		failBadRequest(c, fmt.Sprintf("avatar exceeds the %d byte limit", h.cfg.Upload.MaxAvatarSize))
		return
	}

	// Sniff the real content type; the client header is not trusted
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		fail(c, err)
		return
	}
	var ext string
	switch http.DetectContentType(head[:n]) {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	default:
		failBadRequest(c, "avatar must be a JPEG or PNG image")
		return
	}

	if err := os.MkdirAll(h.cfg.Upload.AvatarDir, 0o755); err != nil {
		fail(c, err)
		return
	}

	filename := strings.ToLower(address) + ext
	path := filepath.Join(h.cfg.Upload.AvatarDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		fail(c, err)
		return
	}
	defer dst.Close()

	if _, err := dst.Write(head[:n]); err != nil {
		fail(c, err)
		return
	}
	if _, err := io.Copy(dst, io.LimitReader(file, h.cfg.Upload.MaxAvatarSize)); err != nil {
		fail(c, err)
		return
	}

	avatarURL := "/uploads/avatars/" + filename
	if err := h.services.Forum.UpdateAvatar(c.Request.Context(), address, avatarURL); err != nil {
		os.Remove(path)
		fail(c, err)
		return
	}

	h.log.Info().Str("address", address).Str("path", path).Msg("Avatar uploaded")
	respond(c, http.StatusOK, gin.H{"avatar_url": avatarURL})
}

// ActiveUsers handles GET /api/stats/active-users
func (h *UserHandler) ActiveUsers(c *gin.Context) {
	limit, _ := pageParams(c)

	users, err := h.services.Query.ActiveUsers(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"users": users})
}

// GlobalStats handles GET /api/stats/global
func (h *UserHandler) GlobalStats(c *gin.Context) {
	stats, err := h.services.Query.GlobalStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}
