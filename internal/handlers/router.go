package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vladislav-moscow/Social/internal/middleware"
)

// RouterConfig controls cross-cutting router behaviour.
type RouterConfig struct {
	AllowedOrigin string
	// StaticDir, when set, is served under StaticPath.
	StaticDir  string
	StaticPath string
}

// NewRouter mounts every route both at the root and under /api.
func NewRouter(h *Handlers, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.TracingMiddleware("social-server"))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.AllowedOrigin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "social-server",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.StaticDir != "" {
		path := cfg.StaticPath
		if path == "" {
			path = "/images"
		}
		r.Static(path, cfg.StaticDir)
	}

	h.RegisterRoutes(&r.RouterGroup)
	h.RegisterRoutes(r.Group("/api"))
	return r
}

// RegisterRoutes mounts the API on rg.
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	conversations := rg.Group("/conversations")
	{
		conversations.POST("", h.CreateConversation)
		conversations.GET("/find/:firstUserId/:secondUserId", h.FindConversation)
		conversations.GET("/:userId", h.GetUserConversations)
	}

	messages := rg.Group("/messages")
	{
		messages.POST("", h.CreateMessage)
		messages.GET("/:conversationId", h.GetMessages)
	}

	rg.POST("/upload", h.Upload)

	posts := rg.Group("/posts")
	{
		posts.POST("", h.CreatePost)
		posts.GET("/timeline/:userId", h.GetTimeline)
		posts.PUT("/:id/like", h.ToggleLike)
	}

	users := rg.Group("/users")
	{
		users.PUT("/:id/follow", h.FollowUser)
		users.PUT("/:id/unfollow", h.UnfollowUser)
		users.GET("/:id/following", h.GetFollowing)
	}
}
