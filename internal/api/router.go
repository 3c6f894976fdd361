package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/web3-forum-api/internal/config"
	"github.com/web3-forum-api/internal/service"
)

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	postHandler := NewPostHandler(services, log)
	commentHandler := NewCommentHandler(services, log)
	userHandler := NewUserHandler(services, cfg, log)
	socialHandler := NewSocialHandler(services, log)
	taskHandler := NewTaskHandler(services, log)

	// Health check
	router.GET("/health", healthCheck)

	// Uploaded avatars
	router.Static("/uploads/avatars", cfg.Upload.AvatarDir)

	api := router.Group("/api")
	{
		posts := api.Group("/posts")
		{
			posts.POST("", postHandler.CreatePost)
			posts.POST("/async", postHandler.CreatePostAsync)
			posts.GET("", postHandler.ListPosts)
			posts.GET("/:post_id", postHandler.GetPost)
			posts.GET("/:post_id/comments", commentHandler.ListComments)
			posts.POST("/:post_id/comments", commentHandler.CreateComment)
			posts.POST("/:post_id/like", postHandler.ToggleLike)
		}

		comments := api.Group("/comments")
		{
			comments.POST("/async", commentHandler.CreateCommentAsync)
			comments.POST("/:comment_id/like", commentHandler.ToggleLike)
		}

		username := api.Group("/username")
		{
			username.POST("/register", userHandler.RegisterUsername)
			username.GET("/check", userHandler.CheckUsername)
			username.POST("/sync", userHandler.SyncUsername)
		}

		users := api.Group("/users")
		{
			users.GET("/:address", userHandler.GetProfile)
			users.GET("/:address/posts", userHandler.ListUserPosts)
			users.GET("/:address/username", userHandler.GetUsername)
			users.GET("/:address/has-username", userHandler.HasUsername)
			users.POST("/avatar/upload", userHandler.UploadAvatar)
			users.POST("/bio/update", userHandler.UpdateBio)
			users.GET("/:address/following", socialHandler.Following)
			users.GET("/:address/followers", socialHandler.Followers)
			users.GET("/:address/friends", socialHandler.Friends)
			users.GET("/:address/follow-stats", socialHandler.FollowStats)
		}

		api.POST("/follow", socialHandler.Follow)
		api.POST("/unfollow", socialHandler.Unfollow)
		api.GET("/follow/status", socialHandler.Status)

		api.GET("/tasks/:task_id", taskHandler.GetTask)

		api.GET("/recommendations/daily", postHandler.DailyRecommendations)

		stats := api.Group("/stats")
		{
			stats.GET("/global", userHandler.GlobalStats)
			stats.GET("/active-users", userHandler.ActiveUsers)
		}
	}

	return router
}

// healthCheck returns the health status
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "web3-forum-api",
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, Response{
					Success: false,
					Error:   "internal server error",
					Kind:    string(service.KindInternal),
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
