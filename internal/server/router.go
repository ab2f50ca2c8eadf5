package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/handlers"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware   *middleware.AuthMiddleware
	SessionHandler   *handlers.SessionHandler
	PostHandler      *handlers.PostHandler
	AutopilotHandler *handlers.AutopilotHandler
	ProfileHandler   *handlers.ProfileHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Session
	protected.POST("/session/start", cfg.SessionHandler.Start)
	// Posts
	protected.POST("/posts/generate", cfg.PostHandler.Generate)
	protected.GET("/posts", cfg.PostHandler.List)
	protected.DELETE("/posts/:id", cfg.PostHandler.Delete)
	// Autopilot
	protected.GET("/autopilot", cfg.AutopilotHandler.GetConfig)
	protected.PUT("/autopilot", cfg.AutopilotHandler.UpdateConfig)
	// Profile
	protected.GET("/profile", cfg.ProfileHandler.GetMe)

	return router
}
