package relay

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vladislav-moscow/Social/internal/middleware"
)

// NewRouter exposes the relay socket on "/" and "/socket" plus the health,
// online and metrics endpoints. Socket upgrades bypass gin: its response
// writer cannot be hijacked once the middleware chain has touched it.
func NewRouter(hub *Hub, allowedOrigin string) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.TracingMiddleware("social-relay"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{allowedOrigin}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	h := NewHandler(hub, allowedOrigin)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "social-relay",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/online", h.HandleOnline)

	mux := http.NewServeMux()
	mux.HandleFunc("/socket", h.ServeWebSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/" && isUpgrade(req) {
			h.ServeWebSocket(w, req)
			return
		}
		r.ServeHTTP(w, req)
	})
	return mux
}
